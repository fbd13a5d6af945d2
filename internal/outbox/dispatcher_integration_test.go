//go:build integration

package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"example.com/fittrack/internal/domain"
	"example.com/fittrack/internal/persistence/postgres"
	"example.com/fittrack/internal/testsupport"
)

func TestDispatcherPublishesRepositoryEvents(t *testing.T) {
	ctx := context.Background()
	pool := testsupport.StartPostgres(ctx, t)
	userID := seedWorkout(t, ctx, pool)

	producer := &stubProducer{}
	registry := &stubRegistry{id: 42}
	dispatcher := NewDispatcher(pool, producer, registry, zaptest.NewLogger(t), 10*time.Millisecond, 10)

	beforeDelivered := testutil.ToFloat64(deliveredCounter)
	beforeHistogram := histogramSampleCount(t)

	require.NoError(t, dispatcher.processBatch(ctx))

	require.Len(t, producer.writes, 1)
	require.Equal(t, "workout_events", producer.writes[0].topic)
	require.Len(t, producer.writes[0].messages, 2, "workout.logged plus personal_record.set")
	require.Equal(t, userID, string(producer.writes[0].messages[0].Key))
	require.Len(t, registry.calls, 2)

	require.InDelta(t, beforeDelivered+2, testutil.ToFloat64(deliveredCounter), 0.0001)
	require.Greater(t, histogramSampleCount(t), beforeHistogram)

	var pending int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE published_at IS NULL`).Scan(&pending))
	require.Zero(t, pending)

	require.NoError(t, dispatcher.processBatch(ctx))
	require.Len(t, producer.writes, 1, "published events are not delivered twice")
}

func TestDispatcherRoutesFailuresToDLQAndManagerRequeues(t *testing.T) {
	ctx := context.Background()
	pool := testsupport.StartPostgres(ctx, t)
	seedWorkout(t, ctx, pool)

	producer := &stubProducer{err: errors.New("kafka write failed")}
	dispatcher := NewDispatcher(pool, producer, &stubRegistry{id: 7}, zaptest.NewLogger(t), 10*time.Millisecond, 10)

	beforeFailed := testutil.ToFloat64(failedCounter)
	beforeDLQ := testutil.ToFloat64(dlqCounter.WithLabelValues("workout_events"))

	require.NoError(t, dispatcher.processBatch(ctx))

	require.InDelta(t, beforeFailed+2, testutil.ToFloat64(failedCounter), 0.0001)
	require.InDelta(t, beforeDLQ+2, testutil.ToFloat64(dlqCounter.WithLabelValues("workout_events")), 0.0001)

	var dlqCount int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_dlq`).Scan(&dlqCount))
	require.Equal(t, 2, dlqCount)

	manager := NewDLQManager(pool, zaptest.NewLogger(t), 3, time.Minute)
	requeued, err := manager.RunOnce(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 2, requeued)
	require.Zero(t, testutil.ToFloat64(dlqBacklogGauge))

	var pending int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE published_at IS NULL`).Scan(&pending))
	require.Equal(t, 2, pending)

	producer.err = nil
	require.NoError(t, dispatcher.processBatch(ctx))
	require.Len(t, producer.writes, 1)
}

func TestDLQManagerQuarantinesExhaustedEntries(t *testing.T) {
	ctx := context.Background()
	pool := testsupport.StartPostgres(ctx, t)

	_, err := pool.Exec(ctx,
		`INSERT INTO outbox_dlq (event_id, event_type, topic, payload, reason, aggregate_type, aggregate_id, schema_subject, partition_key, retry_count, next_retry_at)
         VALUES (1, 'workout.logged', 'workout_events', '{}', 'boom', 'workout', 'w1', 'workout_events-workout.logged', 'u1', 3, NOW())`)
	require.NoError(t, err)

	manager := NewDLQManager(pool, zaptest.NewLogger(t), 3, time.Minute)
	requeued, err := manager.RunOnce(ctx, 10)
	require.NoError(t, err)
	require.Zero(t, requeued)

	var quarantined int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_dlq WHERE quarantined_at IS NOT NULL`).Scan(&quarantined))
	require.Equal(t, 1, quarantined)
}

func seedWorkout(t *testing.T, ctx context.Context, pool *pgxpool.Pool) string {
	t.Helper()
	userID := uuid.NewString()
	svc := domain.NewService(postgres.NewRepository(pool), nil)
	_, _, err := svc.LogWorkout(ctx, userID, domain.LogWorkoutInput{
		Title:       "Pull",
		PerformedAt: time.Now().UTC().Add(-time.Hour),
		Sets:        []domain.LogSetInput{{ExerciseName: "Deadlift", Reps: 5, WeightKg: 140}},
	})
	require.NoError(t, err)
	return userID
}

func histogramSampleCount(t *testing.T) uint64 {
	t.Helper()

	metric := &dto.Metric{}
	require.NoError(t, batchDuration.Write(metric))
	hist := metric.GetHistogram()
	require.NotNil(t, hist)
	return hist.GetSampleCount()
}
