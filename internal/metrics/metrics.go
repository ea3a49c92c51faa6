// Package metrics defines the Prometheus collectors for ingest and
// reconciliation runs. Runs are short-lived, so counters are exported to a
// node-exporter textfile instead of being scraped.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	SpeechesTotal          *prometheus.CounterVec
	ParseErrorsTotal       *prometheus.CounterVec
	FlagsFixedTotal        *prometheus.CounterVec
	TotalsUpdatedTotal     *prometheus.CounterVec
	ProfilingUpdatedTotal  prometheus.Counter
	SessionsTotal          *prometheus.CounterVec
	LastRunTimestamp       *prometheus.GaugeVec
	LastRunDurationSeconds *prometheus.GaugeVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SpeechesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parlcorpus_speeches_total",
				Help: "Speech events seen during ingest by outcome (created, existed, skipped).",
			},
			[]string{"outcome"},
		),
		ParseErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parlcorpus_parse_errors_total",
				Help: "Audit log entries by error type.",
			},
			[]string{"type"},
		),
		FlagsFixedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parlcorpus_flags_fixed_total",
				Help: "Incompleteness flags rewritten by entity.",
			},
			[]string{"entity"},
		),
		TotalsUpdatedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parlcorpus_totals_updated_total",
				Help: "Speaking-time totals rewritten by entity (agenda, politician).",
			},
			[]string{"entity"},
		),
		ProfilingUpdatedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "parlcorpus_profiling_updated_total",
				Help: "Politicians whose profiling counters were rewritten.",
			},
		),
		SessionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parlcorpus_sessions_total",
				Help: "Plenary sessions seen during ingest by outcome (processed, skipped).",
			},
			[]string{"outcome"},
		),
		LastRunTimestamp: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "parlcorpus_last_run_timestamp_seconds",
				Help: "Unix time a command last finished.",
			},
			[]string{"command", "status"},
		),
		LastRunDurationSeconds: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "parlcorpus_last_run_duration_seconds",
				Help: "Wall time of the last run of a command.",
			},
			[]string{"command"},
		),
	}

	reg.MustRegister(
		m.SpeechesTotal,
		m.ParseErrorsTotal,
		m.FlagsFixedTotal,
		m.TotalsUpdatedTotal,
		m.ProfilingUpdatedTotal,
		m.SessionsTotal,
		m.LastRunTimestamp,
		m.LastRunDurationSeconds,
	)
	return m
}

func (m *Metrics) Speech(outcome string) {
	if m != nil {
		m.SpeechesTotal.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) ParseError(typ string) {
	if m != nil {
		m.ParseErrorsTotal.WithLabelValues(typ).Inc()
	}
}

func (m *Metrics) FlagsFixed(entity string, n int) {
	if m != nil && n > 0 {
		m.FlagsFixedTotal.WithLabelValues(entity).Add(float64(n))
	}
}

func (m *Metrics) TotalsUpdated(entity string, n int) {
	if m != nil && n > 0 {
		m.TotalsUpdatedTotal.WithLabelValues(entity).Add(float64(n))
	}
}

func (m *Metrics) ProfilingUpdated(n int) {
	if m != nil && n > 0 {
		m.ProfilingUpdatedTotal.Add(float64(n))
	}
}

func (m *Metrics) Session(outcome string) {
	if m != nil {
		m.SessionsTotal.WithLabelValues(outcome).Inc()
	}
}

// RunFinished records when a command ended and how long it took.
func (m *Metrics) RunFinished(command string, ok bool, finishedUnix, seconds float64) {
	if m == nil {
		return
	}
	status := "success"
	if !ok {
		status = "failure"
	}
	m.LastRunTimestamp.WithLabelValues(command, status).Set(finishedUnix)
	m.LastRunDurationSeconds.WithLabelValues(command).Set(seconds)
}

// WriteTextfile writes everything g gathers to path in the text exposition
// format. The file is replaced atomically.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
