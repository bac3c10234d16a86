package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/skillgrid/assessor/internal/weights"
)

func newWeightsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "weights",
		Short: "Manage competency weights",
	}
	cmd.AddCommand(newWeightsImportCmd(a), newWeightsListCmd(a))
	return cmd
}

func newWeightsImportCmd(a *app) *cobra.Command {
	var (
		mode           string
		specialization string
		sheet          string
		asJSON         bool
	)
	cmd := &cobra.Command{
		Use:   "import <workbook.xlsx>",
		Short: "Apply competency weights from a spreadsheet",
		Long: `Read competency_name and weight columns from an xlsx workbook and apply the
normalized weights.

In create mode, competencies missing from --specialization are added with their
weight and existing ones are left alone. In update mode, matching competencies
get the new weight; without --specialization every specialization is matched.`,
		Example: `  assessor weights import hr.xlsx --mode create --specialization "Go developer"
  assessor weights import hr.xlsx --mode update --sheet 2026`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			rows, err := weights.ReadFile(args[0], sheet)
			if err != nil {
				return err
			}

			b, err := a.openBackend(ctx, false)
			if err != nil {
				return err
			}
			defer b.Close()

			report, err := weights.NewImporter(b.store).Import(ctx, weights.Mode(mode), specialization, rows)
			if len(report.Created)+len(report.Updated) > 0 {
				b.invalidate(ctx)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, report)
			}
			printNames(out, "created", report.Created)
			printNames(out, "updated", report.Updated)
			printNames(out, "already present", report.Existing)
			printNames(out, "not found", report.NotFound)
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", string(weights.ModeUpdate), "Import mode: create or update")
	cmd.Flags().StringVar(&specialization, "specialization", "", "Specialization to apply weights to")
	cmd.Flags().StringVar(&sheet, "sheet", "", "Sheet name (default: first sheet)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the import report as JSON")
	return cmd
}

func newWeightsListCmd(a *app) *cobra.Command {
	var specialization string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List competencies and their weights",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			b, err := a.openBackend(ctx, false)
			if err != nil {
				return err
			}
			defer b.Close()

			list, err := weights.NewImporter(b.store).List(ctx, specialization)
			if err != nil {
				return err
			}

			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "SPECIALIZATION\tID\tCOMPETENCY\tWEIGHT")
			for _, rec := range list {
				fmt.Fprintf(tw, "%s\t%d\t%s\t%.4f\n", rec.Specialization, rec.ID, rec.Name, rec.Weight)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&specialization, "specialization", "", "Only list this specialization")
	return cmd
}
