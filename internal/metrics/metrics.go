// Package metrics exposes pipeline and HTTP instrumentation for Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sells-group/grant-cli/internal/model"
)

const (
	namespace = "grant"

	stageLabel   = "stage"
	outcomeLabel = "outcome"
	statusLabel  = "status"
	kindLabel    = "kind"
)

// Metrics holds the pipeline collectors.
type Metrics struct {
	runs         *prometheus.CounterVec
	runDuration  prometheus.Histogram
	stageItems   *prometheus.CounterVec
	progress     *prometheus.CounterVec
	tokens       *prometheus.CounterVec
	costUSD      prometheus.Counter
	dedupRemoved prometheus.Counter
	filteredOut  prometheus.Counter
}

// New creates the collectors and registers them with reg. A nil reg uses the
// default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "number of finished pipeline runs by terminal status",
		}, []string{statusLabel}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "wall time of completed pipeline runs",
			Buckets:   []float64{1, 10, 60, 300, 900, 1800, 3600},
		}),
		stageItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_items_total",
			Help:      "documents handled per stage by outcome",
		}, []string{stageLabel, outcomeLabel}),
		progress: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "progress_events_total",
			Help:      "progress events emitted per stage",
		}, []string{stageLabel}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_tokens_total",
			Help:      "model tokens consumed by kind",
		}, []string{kindLabel}),
		costUSD: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_cost_usd_total",
			Help:      "estimated model spend in USD",
		}),
		dedupRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicates_removed_total",
			Help:      "duplicate programs removed during ingest",
		}),
		filteredOut: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "filtered_out_total",
			Help:      "programs rejected by the keyword filter",
		}),
	}
	reg.MustRegister(
		m.runs, m.runDuration, m.stageItems, m.progress,
		m.tokens, m.costUSD, m.dedupRemoved, m.filteredOut,
	)
	return m
}

// ObserveSummary records a completed run.
func (m *Metrics) ObserveSummary(s *model.Summary) {
	m.runs.With(prometheus.Labels{statusLabel: string(model.RunStatusComplete)}).Inc()
	if s == nil {
		return
	}
	m.runDuration.Observe(s.Duration.Seconds())
	for stage, c := range s.Stages {
		m.stageItems.WithLabelValues(stage, "processed").Add(float64(c.Processed))
		m.stageItems.WithLabelValues(stage, "errors").Add(float64(c.Errors))
		m.stageItems.WithLabelValues(stage, "skipped").Add(float64(c.Skipped))
	}
	m.dedupRemoved.Add(float64(s.DuplicatesRemoved))
	m.filteredOut.Add(float64(s.FilteredOut))
	m.ObserveUsage(s.Usage)
}

// ObserveUsage records token consumption outside of a run, e.g. re-enrichment.
func (m *Metrics) ObserveUsage(u model.TokenUsage) {
	m.tokens.WithLabelValues("input").Add(float64(u.InputTokens))
	m.tokens.WithLabelValues("output").Add(float64(u.OutputTokens))
	m.tokens.WithLabelValues("cache_write").Add(float64(u.CacheCreationTokens))
	m.tokens.WithLabelValues("cache_read").Add(float64(u.CacheReadTokens))
	if u.Cost > 0 {
		m.costUSD.Add(u.Cost)
	}
}

// Sink adapts Metrics to a progress sink so it can be teed next to the
// caller's own sink.
func (m *Metrics) Sink() *Sink { return &Sink{m: m} }

// Sink counts progress events and the terminal outcome of a run.
type Sink struct {
	m *Metrics
}

func (s *Sink) Progress(ev model.ProgressEvent) {
	s.m.progress.WithLabelValues(ev.Stage).Inc()
}

func (s *Sink) Complete(summary *model.Summary) {
	s.m.ObserveSummary(summary)
}

func (s *Sink) Fail(error) {
	s.m.runs.With(prometheus.Labels{statusLabel: string(model.RunStatusFailed)}).Inc()
}
