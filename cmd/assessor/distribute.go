package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/skillgrid/assessor/internal/allocation"
	"github.com/skillgrid/assessor/internal/model"
	"github.com/skillgrid/assessor/internal/random"
)

type distributeOptions struct {
	total          int
	seed           uint64
	specialization string
	asJSON         bool
}

func newDistributeCmd(a *app) *cobra.Command {
	var opts distributeOptions
	cmd := &cobra.Command{
		Use:   "distribute [weight...]",
		Short: "Apportion test themes across competencies",
		Long: `Apportion themes across competencies by weight and print how each count was derived.

Weights come either from the positional arguments, numbered in order, or from
the competencies of --specialization in the catalog.`,
		Example: `  assessor distribute --total 20 47 33 20
  assessor distribute --specialization "Go developer" --seed 42`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runDistribute(cmd, opts, args)
		},
	}
	cmd.Flags().IntVar(&opts.total, "total", 0, "Number of themes to apportion (default ASSESS_TEST_THEMES)")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 0, "Seed for the remainder draw (default ASSESS_TEST_SEED, 0 for the clock)")
	cmd.Flags().StringVar(&opts.specialization, "specialization", "", "Read competencies of this specialization from the catalog")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Print the allocation as JSON")
	return cmd
}

func (a *app) runDistribute(cmd *cobra.Command, opts distributeOptions, args []string) error {
	total := opts.total
	if total == 0 {
		total = a.cfg.Test.Themes
	}
	seed := opts.seed
	if !cmd.Flags().Changed("seed") {
		seed = a.cfg.Test.Seed
	}

	var (
		comps []model.Competency
		names = map[int64]string{}
	)
	switch {
	case opts.specialization != "" && len(args) > 0:
		return fmt.Errorf("give either weights or --specialization, not both")
	case opts.specialization != "":
		ctx := cmd.Context()
		b, err := a.openBackend(ctx, false)
		if err != nil {
			return err
		}
		defer b.Close()

		spec, err := b.store.SpecializationByName(ctx, opts.specialization)
		if err != nil {
			return fmt.Errorf("specialization %q: %w", opts.specialization, err)
		}
		comps, err = b.source.Competencies(ctx, spec.ID)
		if err != nil {
			return err
		}
	case len(args) > 0:
		for i, arg := range args {
			w, err := strconv.ParseFloat(arg, 64)
			if err != nil {
				return fmt.Errorf("weight %d: %q is not a number", i+1, arg)
			}
			comps = append(comps, model.Competency{ID: int64(i + 1), Name: "#" + strconv.Itoa(i+1), Weight: w})
		}
	default:
		return fmt.Errorf("no weights given; pass weights or --specialization")
	}
	for _, c := range comps {
		names[c.ID] = c.Name
	}

	quota, err := allocation.Allocate(comps, total, random.SeededFactory(seed)())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.asJSON {
		return writeJSON(out, struct {
			Total  int              `json:"total"`
			Quota  allocation.Quota `json:"quota"`
			Counts map[int64]int    `json:"counts"`
		}{total, quota, quota.Map()})
	}

	tw := newTable(out)
	fmt.Fprintln(tw, "ID\tCOMPETENCY\tWEIGHT\tEXACT\tBASE\tFRACTION\tPRIORITY\tBONUS\tCOUNT")
	for _, s := range quota {
		bonus := ""
		switch {
		case s.Reassigned:
			bonus = "+1 (heaviest)"
		case s.Bonus:
			bonus = "+1"
		}
		fmt.Fprintf(tw, "%d\t%s\t%g\t%.4f\t%d\t%.4f\t%.4f\t%s\t%d\n",
			s.CompetencyID, names[s.CompetencyID], s.Weight, s.Exact, s.Base, s.Fraction, s.Priority, bonus, s.Count)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "total %d, remainder slots %d\n", quota.Total(), quota.Bonuses())
	return nil
}
