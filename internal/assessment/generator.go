// Package assessment assembles a complete test for a user: it apportions the
// theme count across competencies, draws topics and questions for each, numbers
// the result and persists it as one session.
package assessment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/skillgrid/assessor/internal/allocation"
	"github.com/skillgrid/assessor/internal/catalog"
	"github.com/skillgrid/assessor/internal/model"
	"github.com/skillgrid/assessor/internal/platform/metrics"
	"github.com/skillgrid/assessor/internal/random"
	"github.com/skillgrid/assessor/internal/sampling"
)

// DefaultThemes is the number of themes per test when none is configured.
const DefaultThemes = 20

// ErrIncomplete is returned when a run produces fewer or more questions than
// themes × levels. Nothing is persisted.
var ErrIncomplete = errors.New("incomplete test")

// ShortfallPolicy decides what happens when a competency cannot fill its quota.
type ShortfallPolicy string

const (
	// PolicyFail aborts the run on any capacity shortfall.
	PolicyFail ShortfallPolicy = "fail"
	// PolicyRedistribute caps short competencies at what they can supply and
	// re-apportions the deficit over competencies with spare topics.
	PolicyRedistribute ShortfallPolicy = "redistribute"
)

// ParsePolicy parses a policy name.
func ParsePolicy(s string) (ShortfallPolicy, error) {
	switch p := ShortfallPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyFail, PolicyRedistribute:
		return p, nil
	case "":
		return PolicyFail, nil
	default:
		return "", fmt.Errorf("unknown shortfall policy %q", s)
	}
}

// Config holds dependencies for the generator.
type Config struct {
	Source   catalog.Source
	Sessions catalog.SessionStore
	Events   EventLogger      // default: NopEventLogger
	Metrics  *metrics.Metrics // optional
	Random   random.Factory   // default: clock-seeded source per run
	Themes   int              // default: DefaultThemes
	Policy   ShortfallPolicy  // default: PolicyFail
}

// Generator produces and persists tests.
type Generator struct {
	source   catalog.Source
	sessions catalog.SessionStore
	events   EventLogger
	metrics  *metrics.Metrics
	random   random.Factory
	themes   int
	policy   ShortfallPolicy
}

// NewGenerator creates a generator.
func NewGenerator(cfg Config) (*Generator, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("catalog source is nil")
	}
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("session store is nil")
	}
	if cfg.Themes < 0 {
		return nil, fmt.Errorf("themes must be positive, got %d", cfg.Themes)
	}

	g := &Generator{
		source:   cfg.Source,
		sessions: cfg.Sessions,
		events:   cfg.Events,
		metrics:  cfg.Metrics,
		random:   cfg.Random,
		themes:   cfg.Themes,
		policy:   cfg.Policy,
	}
	if g.events == nil {
		g.events = NopEventLogger{}
	}
	if g.random == nil {
		g.random = random.SeededFactory(0)
	}
	if g.themes == 0 {
		g.themes = DefaultThemes
	}
	if g.policy == "" {
		g.policy = PolicyFail
	}
	if g.policy != PolicyFail && g.policy != PolicyRedistribute {
		return nil, fmt.Errorf("unknown shortfall policy %q", g.policy)
	}
	return g, nil
}

// Request identifies who the test is for and what it covers.
type Request struct {
	UserID           string
	SpecializationID int64
}

// Remediation records one shortfall the redistribute policy worked around.
type Remediation struct {
	Kind         string      `json:"kind"` // "topics" or "questions"
	CompetencyID int64       `json:"competency_id"`
	TopicID      int64       `json:"topic_id,omitempty"`
	Level        model.Level `json:"level,omitempty"`
	Requested    int         `json:"requested,omitempty"`
	Available    int         `json:"available,omitempty"`
}

// Result is a persisted test.
type Result struct {
	Session     model.TestSession
	Quota       allocation.Quota // as apportioned, before any redistribution
	Counts      map[int64]int    // themes actually drawn per competency
	Assignments []model.Assignment
	Remediated  []Remediation
}

// Generate builds a test for req and stores it atomically. On error nothing
// is persisted.
func (g *Generator) Generate(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	res, err := g.generate(ctx, req)
	elapsed := time.Since(start)
	if err != nil {
		outcome := metrics.OutcomeError
		if errors.Is(err, sampling.ErrCapacity) {
			outcome = metrics.OutcomeCapacity
		}
		g.metrics.ObserveRun(outcome, elapsed, 0)
		g.logEvent(ctx, Event{
			UserID:    req.UserID,
			EventType: EventGenerationFailed,
			Data: map[string]any{
				"specialization_id": req.SpecializationID,
				"outcome":           outcome,
				"error":             err.Error(),
			},
		})
		return nil, err
	}

	g.metrics.ObserveRun(metrics.OutcomeOK, elapsed, len(res.Assignments))
	slog.Info("test generated",
		"session_id", res.Session.ID,
		"reference", res.Session.Reference,
		"user_id", req.UserID,
		"specialization_id", req.SpecializationID,
		"themes", g.themes,
		"questions", len(res.Assignments),
		"remediations", len(res.Remediated),
		"duration", elapsed,
	)

	if len(res.Remediated) > 0 {
		g.logEvent(ctx, Event{
			SessionReference: res.Session.Reference,
			UserID:           req.UserID,
			EventType:        EventShortfallRemediated,
			Data: map[string]any{
				"specialization_id": req.SpecializationID,
				"remediations":      res.Remediated,
			},
		})
	}
	g.logEvent(ctx, Event{
		SessionReference: res.Session.Reference,
		UserID:           req.UserID,
		EventType:        EventTestGenerated,
		Data: map[string]any{
			"session_id":        res.Session.ID,
			"specialization_id": req.SpecializationID,
			"themes":            g.themes,
			"questions":         len(res.Assignments),
			"counts":            res.Counts,
		},
	})
	return res, nil
}

func (g *Generator) generate(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, fmt.Errorf("user id is required")
	}

	comps, err := g.source.Competencies(ctx, req.SpecializationID)
	if err != nil {
		return nil, fmt.Errorf("load competencies: %w", err)
	}
	if len(comps) == 0 {
		return nil, fmt.Errorf("specialization %d has no competencies: %w", req.SpecializationID, allocation.ErrInvalidInput)
	}

	src := g.random()
	quota, err := allocation.Allocate(comps, g.themes, src)
	if err != nil {
		return nil, fmt.Errorf("allocate themes: %w", err)
	}

	p := &plan{comps: comps, counts: quota.Map(), pools: make(map[int64][]int64, len(comps))}
	for _, c := range comps {
		if g.policy == PolicyFail && p.counts[c.ID] == 0 {
			continue
		}
		ids, err := g.source.TopicIDs(ctx, c.ID)
		if err != nil {
			return nil, fmt.Errorf("load topics for competency %d: %w", c.ID, err)
		}
		p.pools[c.ID] = distinct(ids)
	}

	sampler := sampling.New(g.source, src)
	assignments, err := g.draw(ctx, sampler, src, p)
	if err != nil {
		return nil, err
	}

	for i := range assignments {
		assignments[i].Position = i + 1
	}
	want := g.themes * len(model.Levels)
	if len(assignments) != want {
		return nil, fmt.Errorf("%w: %d questions, want %d", ErrIncomplete, len(assignments), want)
	}

	session, err := g.sessions.SaveSession(ctx, model.TestSession{
		UserID:           req.UserID,
		SpecializationID: req.SpecializationID,
		Themes:           g.themes,
		MaxScore:         len(assignments),
	}, assignments)
	if err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	return &Result{
		Session:     session,
		Quota:       quota,
		Counts:      p.counts,
		Assignments: assignments,
		Remediated:  p.remediated,
	}, nil
}

// plan is the mutable per-run state the shortfall policy works on.
type plan struct {
	comps      []model.Competency
	counts     map[int64]int
	pools      map[int64][]int64
	remediated []Remediation
}

// draw runs the sampler for every competency in order. Under the redistribute
// policy a topic missing a level is dropped from its pool and the whole draw
// repeated; each retry removes a topic, so the loop ends.
func (g *Generator) draw(ctx context.Context, sampler *sampling.Sampler, src random.Source, p *plan) ([]model.Assignment, error) {
	for {
		if g.policy == PolicyRedistribute {
			if err := g.rebalance(src, p); err != nil {
				return nil, err
			}
		}

		out, err := g.drawOnce(ctx, sampler, p)
		if err == nil {
			return out, nil
		}

		var missing *sampling.MissingQuestionsError
		if g.policy != PolicyRedistribute || !errors.As(err, &missing) {
			g.recordShortfall(err, false)
			return nil, err
		}

		slog.Warn("topic lacks questions for a level; excluding it",
			"competency_id", missing.CompetencyID,
			"topic_id", missing.TopicID,
			"level", missing.Level.String(),
		)
		g.metrics.Shortfall("questions", true)
		p.pools[missing.CompetencyID] = without(p.pools[missing.CompetencyID], missing.TopicID)
		p.remediated = append(p.remediated, Remediation{
			Kind:         "questions",
			CompetencyID: missing.CompetencyID,
			TopicID:      missing.TopicID,
			Level:        missing.Level,
		})
	}
}

func (g *Generator) drawOnce(ctx context.Context, sampler *sampling.Sampler, p *plan) ([]model.Assignment, error) {
	out := make([]model.Assignment, 0, g.themes*len(model.Levels))
	for _, c := range p.comps {
		n := p.counts[c.ID]
		if n == 0 {
			continue
		}
		drawn, err := sampler.Draw(ctx, c.ID, n, p.pools[c.ID])
		if err != nil {
			return nil, err
		}
		out = append(out, drawn...)
	}
	return out, nil
}

// rebalance caps every competency at its pool size and hands the deficit to
// competencies with spare topics, apportioned by weight, until nothing
// overflows. It fails when the pools together cannot hold the theme count.
func (g *Generator) rebalance(src random.Source, p *plan) error {
	for {
		deficit := 0
		var last *sampling.TopicShortfallError
		for _, c := range p.comps {
			avail := len(p.pools[c.ID])
			if p.counts[c.ID] <= avail {
				continue
			}
			last = &sampling.TopicShortfallError{
				CompetencyID: c.ID,
				Requested:    p.counts[c.ID],
				Available:    avail,
			}
			deficit += p.counts[c.ID] - avail
			p.counts[c.ID] = avail
		}
		if deficit == 0 {
			return nil
		}

		var spare []model.Competency
		for _, c := range p.comps {
			if len(p.pools[c.ID]) > p.counts[c.ID] {
				spare = append(spare, c)
			}
		}
		if len(spare) == 0 {
			g.metrics.Shortfall("topics", false)
			return fmt.Errorf("redistribute %d themes: no competency has spare topics: %w", deficit, last)
		}

		extra, err := allocation.Allocate(spare, deficit, src)
		if err != nil {
			return fmt.Errorf("redistribute %d themes: %w", deficit, err)
		}
		slog.Warn("topic pool smaller than quota; redistributing",
			"competency_id", last.CompetencyID,
			"requested", last.Requested,
			"available", last.Available,
			"deficit", deficit,
			"recipients", len(spare),
		)
		g.metrics.Shortfall("topics", true)
		p.remediated = append(p.remediated, Remediation{
			Kind:         "topics",
			CompetencyID: last.CompetencyID,
			Requested:    last.Requested,
			Available:    last.Available,
		})
		for _, s := range extra {
			p.counts[s.CompetencyID] += s.Count
		}
	}
}

func (g *Generator) recordShortfall(err error, remediated bool) {
	var topics *sampling.TopicShortfallError
	var questions *sampling.MissingQuestionsError
	switch {
	case errors.As(err, &topics):
		g.metrics.Shortfall("topics", remediated)
	case errors.As(err, &questions):
		g.metrics.Shortfall("questions", remediated)
	}
}

func (g *Generator) logEvent(ctx context.Context, event Event) {
	if err := g.events.LogEvent(ctx, event); err != nil {
		slog.Warn("failed to log event", "type", event.EventType, "error", err)
	}
}

func distinct(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func without(ids []int64, drop int64) []int64 {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id != drop {
			out = append(out, id)
		}
	}
	return out
}
