// Package observability holds process-wide Prometheus collectors that do not
// belong to a single component.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	workoutLoggedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fittrack",
		Subsystem: "workouts",
		Name:      "last_logged_timestamp_seconds",
		Help:      "Unix timestamp of the most recent workout stored.",
	})
	personalRecordCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fittrack",
		Subsystem: "workouts",
		Name:      "personal_records_total",
		Help:      "Personal records set by logged workouts.",
	})
	billingAppliedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fittrack",
		Subsystem: "billing",
		Name:      "last_event_applied_timestamp_seconds",
		Help:      "Unix timestamp of the most recent billing event applied to a subscription.",
	})
	billingEventsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fittrack",
		Subsystem: "billing",
		Name:      "events_total",
		Help:      "Billing events received, labeled by outcome.",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(workoutLoggedGauge, personalRecordCounter, billingAppliedGauge, billingEventsCounter)
}

// RecordWorkoutLogged updates the workout watermark and counts new records.
func RecordWorkoutLogged(ts time.Time, records int) {
	if records > 0 {
		personalRecordCounter.Add(float64(records))
	}
	if ts.IsZero() {
		return
	}
	workoutLoggedGauge.Set(float64(ts.Unix()))
}

// RecordBillingEvent counts a billing webhook by outcome. Only "applied"
// moves the watermark.
func RecordBillingEvent(outcome string, ts time.Time) {
	billingEventsCounter.WithLabelValues(outcome).Inc()
	if outcome != "applied" || ts.IsZero() {
		return
	}
	billingAppliedGauge.Set(float64(ts.Unix()))
}
