package outbox

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	deliveredCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fittrack",
		Subsystem: "outbox",
		Name:      "events_delivered_total",
		Help:      "Number of outbox events successfully published to Kafka.",
	})

	failedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fittrack",
		Subsystem: "outbox",
		Name:      "events_failed_total",
		Help:      "Number of outbox events that failed to publish and routed to DLQ.",
	})

	batchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "fittrack",
		Subsystem: "outbox",
		Name:      "batch_duration_seconds",
		Help:      "Time spent fetching, delivering, and marking outbox batches.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
	})

	dlqCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fittrack",
		Subsystem: "outbox",
		Name:      "events_dlq_total",
		Help:      "Number of outbox events routed to the dead-letter queue, labeled by topic.",
	}, []string{"topic"})

	dlqEntries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fittrack",
		Subsystem: "dlq",
		Name:      "entries_total",
		Help:      "DLQ entries handled by the manager, labeled by outcome (requeued, retry_scheduled, quarantined).",
	}, []string{"outcome", "topic", "event_type"})

	dlqBacklogGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fittrack",
		Subsystem: "dlq",
		Name:      "queued_messages",
		Help:      "Current number of entries remaining in the DLQ.",
	})
)

func init() {
	prometheus.MustRegister(deliveredCounter, failedCounter, batchDuration, dlqCounter, dlqEntries, dlqBacklogGauge)
}

func recordDLQOutcome(outcome string, entry dlqEntry) {
	dlqEntries.WithLabelValues(outcome, entry.Topic, entry.EventType).Inc()
}

func updateBacklogGauge(ctx context.Context, pool *pgxpool.Pool) {
	var count int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_dlq WHERE quarantined_at IS NULL`).Scan(&count); err != nil {
		return
	}
	dlqBacklogGauge.Set(float64(count))
}
