// Package metrics holds the Prometheus collectors for the tracking pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Integration names used as label values.
const (
	IntegrationML     = "ml"
	IntegrationLLM    = "llm"
	IntegrationVoice  = "voice"
	IntegrationEmail  = "email"
	IntegrationEvents = "events"
)

// Metrics:
//   - focusflow_tracking_requests_total{result}
//   - focusflow_scores_total{source}
//   - focusflow_focus_score
//   - focusflow_enrichments_total{kind}
//   - focusflow_integration_failures_total{integration}
//   - focusflow_sessions_started_total
//   - focusflow_sessions_completed_total
type Metrics struct {
	TrackingRequests    *prometheus.CounterVec
	Scores              *prometheus.CounterVec
	FocusScore          prometheus.Histogram
	Enrichments         *prometheus.CounterVec
	IntegrationFailures *prometheus.CounterVec
	SessionsStarted     prometheus.Counter
	SessionsCompleted   prometheus.Counter
}

// New registers the collectors on reg. A nil reg yields unregistered
// collectors, which is what tests want.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		TrackingRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "focusflow_tracking_requests_total",
				Help: "Tracking samples received, by outcome",
			},
			[]string{"result"}, // "ok", "invalid", "error"
		),
		Scores: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "focusflow_scores_total",
				Help: "Focus scores produced, by source",
			},
			[]string{"source"}, // "ml" or "fallback"
		),
		FocusScore: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "focusflow_focus_score",
				Help:    "Distribution of produced focus scores",
				Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
			},
		),
		Enrichments: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "focusflow_enrichments_total",
				Help: "Feedback produced for degraded focus, by kind",
			},
			[]string{"kind"}, // "message_llm", "message_canned", "voice"
		),
		IntegrationFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "focusflow_integration_failures_total",
				Help: "Failed calls to external integrations",
			},
			[]string{"integration"},
		),
		SessionsStarted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "focusflow_sessions_started_total",
				Help: "Focus sessions created",
			},
		),
		SessionsCompleted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "focusflow_sessions_completed_total",
				Help: "Focus sessions ended",
			},
		),
	}
}

// Nop returns unregistered collectors.
func Nop() *Metrics {
	return New(nil)
}
