// Package metrics defines the Prometheus collectors for test generation.
//
// Generation runs are short-lived CLI invocations, so their collectors are
// pushed to a Pushgateway when the run ends. Long-running processes expose
// only runtime metrics through RuntimeHandler.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "assessor"

// Run outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeCapacity = "capacity"
	OutcomeError    = "error"
)

// Metrics holds the generation collectors and the registry they live in.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	runs       *prometheus.CounterVec
	duration   prometheus.Histogram
	shortfalls *prometheus.CounterVec
	questions  prometheus.Counter
}

// New creates the generation collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_runs_total",
			Help:      "Test generation runs by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Wall time of a test generation run.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		shortfalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capacity_shortfalls_total",
			Help:      "Capacity shortfalls met during generation, by kind and whether they were remediated.",
		}, []string{"kind", "remediated"}),
		questions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "questions_assigned_total",
			Help:      "Questions placed into persisted tests.",
		}),
	}
	reg.MustRegister(
		m.runs,
		m.duration,
		m.shortfalls,
		m.questions,
	)
	return m
}

// ObserveRun records one generation run.
func (m *Metrics) ObserveRun(outcome string, elapsed time.Duration, questions int) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(outcome).Inc()
	m.duration.Observe(elapsed.Seconds())
	if outcome == OutcomeOK {
		m.questions.Add(float64(questions))
	}
}

// Shortfall records a capacity shortfall of the given kind ("topics" or
// "questions").
func (m *Metrics) Shortfall(kind string, remediated bool) {
	if m == nil {
		return
	}
	r := "false"
	if remediated {
		r = "true"
	}
	m.shortfalls.WithLabelValues(kind, r).Inc()
}

// Push sends the registry to the Pushgateway at url under job, replacing
// whatever that job pushed before.
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	if m == nil {
		return nil
	}
	if err := push.New(url, job).Gatherer(m.Registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}

// RuntimeHandler serves Go runtime and process metrics.
func RuntimeHandler() http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
