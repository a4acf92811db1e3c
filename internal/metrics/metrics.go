// Package metrics provides Prometheus metrics for live check-in sessions.
//
// Labels are bounded enums (mode, outcome, category); session and subject
// identifiers never become label values.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

var (
	// AttemptsTotal counts completed verification attempts by mode and outcome.
	AttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkin_attempts_total",
		Help: "Total number of completed verification attempts, by mode and outcome.",
	}, []string{"mode", "outcome"})

	// SkippedTicksTotal counts ticks dropped because an attempt was still in flight.
	SkippedTicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkin_skipped_ticks_total",
		Help: "Total number of capture ticks skipped while a verification call was in flight.",
	})

	// ConfirmationsTotal counts subjects confirmed present, by mode.
	ConfirmationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkin_confirmations_total",
		Help: "Total number of subjects confirmed present, by mode.",
	}, []string{"mode"})

	// FatalTotal counts sessions that ended in a fatal error, by category.
	FatalTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkin_fatal_total",
		Help: "Total number of sessions ended by a fatal error, by category.",
	}, []string{"category"})

	// DroppedEventsTotal counts session events a slow listener never received.
	DroppedEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkin_dropped_events_total",
		Help: "Total number of session events dropped for slow listeners, by event type.",
	}, []string{"type"})

	// ActiveSessions tracks sessions that currently hold a frame source.
	ActiveSessions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "checkin_active_sessions",
		Help: "Current number of scanning sessions, by mode.",
	}, []string{"mode"})

	// VerifyDuration observes verification call latency.
	VerifyDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checkin_verify_duration_seconds",
		Help:    "Latency of verification calls, by mode.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 3, 5, 10, 30},
	}, []string{"mode"})
)

// CounterValue returns the current value of a counter (for testing).
func CounterValue(c prometheus.Counter) float64 {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

// GaugeValue returns the current value of a gauge (for testing).
func GaugeValue(g prometheus.Gauge) float64 {
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		return 0
	}
	return m.GetGauge().GetValue()
}
