package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/skillgrid/assessor/internal/assessment"
	"github.com/skillgrid/assessor/internal/platform/metrics"
	"github.com/skillgrid/assessor/internal/random"
	"github.com/skillgrid/assessor/internal/sampling"
)

const pushTimeout = 5 * time.Second

type generateOptions struct {
	user             string
	specialization   string
	specializationID int64
	themes           int
	policy           string
	seed             uint64
	asJSON           bool
}

func newGenerateCmd(a *app) *cobra.Command {
	var opts generateOptions
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate and store a test for a user",
		Example: `  assessor generate --user u-123 --specialization "Go developer"
  assessor generate --user u-123 --specialization-id 4 --policy redistribute --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runGenerate(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.user, "user", "", "User the test is generated for (required)")
	cmd.Flags().StringVar(&opts.specialization, "specialization", "", "Specialization name")
	cmd.Flags().Int64Var(&opts.specializationID, "specialization-id", 0, "Specialization ID")
	cmd.Flags().IntVar(&opts.themes, "themes", 0, "Themes per test (default ASSESS_TEST_THEMES)")
	cmd.Flags().StringVar(&opts.policy, "policy", "", "Shortfall policy: fail or redistribute (default ASSESS_TEST_SHORTFALL_POLICY)")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 0, "Random seed (default ASSESS_TEST_SEED, 0 for the clock)")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Print the generated test as JSON")
	_ = cmd.MarkFlagRequired("user")
	cmd.MarkFlagsMutuallyExclusive("specialization", "specialization-id")
	cmd.MarkFlagsOneRequired("specialization", "specialization-id")
	return cmd
}

func (a *app) runGenerate(cmd *cobra.Command, opts generateOptions) error {
	ctx := cmd.Context()

	themes := opts.themes
	if themes == 0 {
		themes = a.cfg.Test.Themes
	}
	policyName := opts.policy
	if policyName == "" {
		policyName = a.cfg.Test.ShortfallPolicy
	}
	policy, err := assessment.ParsePolicy(policyName)
	if err != nil {
		return err
	}
	seed := opts.seed
	if !cmd.Flags().Changed("seed") {
		seed = a.cfg.Test.Seed
	}

	b, err := a.openBackend(ctx, true)
	if err != nil {
		return err
	}
	defer b.Close()

	specID := opts.specializationID
	if opts.specialization != "" {
		spec, err := b.store.SpecializationByName(ctx, opts.specialization)
		if err != nil {
			return fmt.Errorf("specialization %q: %w", opts.specialization, err)
		}
		specID = spec.ID
	}

	m := metrics.New()
	defer a.pushMetrics(ctx, m)

	gen, err := assessment.NewGenerator(assessment.Config{
		Source:   b.source,
		Sessions: b.store,
		Events:   b.events(a.cfg.NATS.Subject),
		Metrics:  m,
		Random:   random.SeededFactory(seed),
		Themes:   themes,
		Policy:   policy,
	})
	if err != nil {
		return err
	}

	res, err := gen.Generate(ctx, assessment.Request{UserID: opts.user, SpecializationID: specID})
	if err != nil {
		if errors.Is(err, sampling.ErrCapacity) {
			return fmt.Errorf("catalog cannot fill a %d-theme test: %w", themes, err)
		}
		return err
	}

	out := cmd.OutOrStdout()
	if opts.asJSON {
		return writeJSON(out, res)
	}

	s := res.Session
	fmt.Fprintf(out, "session %d (%s) for %s: %d themes, max score %d\n", s.ID, s.Reference, s.UserID, s.Themes, s.MaxScore)
	for _, r := range res.Remediated {
		fmt.Fprintf(out, "remediated %s shortfall in competency %d\n", r.Kind, r.CompetencyID)
	}

	tw := newTable(out)
	fmt.Fprintln(tw, "POS\tCOMPETENCY\tTOPIC\tLEVEL\tQUESTION")
	for _, as := range res.Assignments {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%s\t%d\n", as.Position, as.CompetencyID, as.TopicID, as.Level, as.QuestionID)
	}
	return tw.Flush()
}

// pushMetrics sends the run's metrics to the configured Pushgateway. A failed
// push is logged; the test is already stored by then.
func (a *app) pushMetrics(ctx context.Context, m *metrics.Metrics) {
	if a.cfg.Metrics.PushURL == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), pushTimeout)
	defer cancel()
	if err := m.Push(ctx, a.cfg.Metrics.PushURL, a.cfg.Metrics.Job); err != nil {
		slog.Warn("failed to push generation metrics", "error", err)
	}
}
