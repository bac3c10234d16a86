package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/skillgrid/assessor/internal/bank"
)

func newBankCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bank",
		Short: "Manage question banks",
	}

	var asJSON bool
	load := &cobra.Command{
		Use:   "load [path]",
		Short: "Import question bank files into the catalog",
		Long: `Import JSON or YAML question bank files. A directory is walked recursively;
invalid files are reported and skipped. The path defaults to ASSESS_BANK_PATH.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.cfg.BankPath
			if len(args) == 1 {
				path = args[0]
			}
			return a.runBankLoad(cmd, path, asJSON)
		},
	}
	load.Flags().BoolVar(&asJSON, "json", false, "Print the import report as JSON")

	cmd.AddCommand(load)
	return cmd
}

func (a *app) runBankLoad(cmd *cobra.Command, path string, asJSON bool) error {
	ctx := cmd.Context()

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("bank path: %w", err)
	}

	b, err := a.openBackend(ctx, false)
	if err != nil {
		return err
	}
	defer b.Close()

	loader, err := bank.NewLoader(b.store)
	if err != nil {
		return err
	}

	var report bank.Report
	if info.IsDir() {
		report, err = loader.LoadDir(ctx, path)
	} else {
		var fr bank.FileReport
		fr, err = loader.LoadFile(ctx, path)
		if err == nil {
			report.Files = append(report.Files, fr)
		}
	}
	if len(report.Files) > 0 {
		b.invalidate(ctx)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		return writeJSON(out, report)
	}

	tw := newTable(out)
	fmt.Fprintln(tw, "FILE\tSPECIALIZATION\tTHEMES\tQUESTIONS\tNEW COMPETENCIES")
	for _, f := range report.Files {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\n", f.Path, f.Specialization, f.Themes, f.Questions, f.NewCompetencies)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, s := range report.Skipped {
		fmt.Fprintf(out, "skipped %s: %v\n", s.Path, s.Err)
	}
	fmt.Fprintf(out, "%d files, %d questions, %d skipped\n", len(report.Files), report.Questions(), len(report.Skipped))
	return nil
}
