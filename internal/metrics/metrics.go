package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recorderbot_events_total",
			Help: "Inbound gateway events by kind and outcome",
		},
		[]string{"kind", "outcome"}, // kind: invite, message, reaction
	)

	ClassificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recorderbot_classifications_total",
			Help: "Messages classified, by predicted category",
		},
		[]string{"category"},
	)

	TrackingSubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recorderbot_tracking_submissions_total",
			Help: "Tracking service submissions by category and result",
		},
		[]string{"category", "result"},
	)

	LedgerDuplicatesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recorderbot_ledger_duplicates_total",
			Help: "Reaction side effects suppressed by the action ledger",
		},
	)

	EventDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recorderbot_event_duration_seconds",
			Help:    "Time spent processing one inbound event",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"kind"},
	)
)

func RecordEvent(kind, outcome string) {
	EventsTotal.WithLabelValues(kind, outcome).Inc()
}

func RecordSubmission(category string, err error) {
	result := "ok"
	if err != nil {
		result = "failed"
	}
	TrackingSubmissionsTotal.WithLabelValues(category, result).Inc()
}
