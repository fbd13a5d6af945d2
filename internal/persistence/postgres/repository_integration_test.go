//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"example.com/fittrack/internal/audit"
	"example.com/fittrack/internal/domain"
	"example.com/fittrack/internal/testsupport"
)

func TestRepositoryWorkoutLifecycle(t *testing.T) {
	ctx := context.Background()
	pool := testsupport.StartPostgres(ctx, t)
	repo := NewRepository(pool)
	svc := domain.NewService(repo, nil)

	userID := uuid.NewString()
	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Microsecond)
	for i := 0; i < 3; i++ {
		_, _, err := svc.LogWorkout(ctx, userID, domain.LogWorkoutInput{
			Title:       "Session",
			PerformedAt: base.Add(time.Duration(i) * time.Minute),
			Sets: []domain.LogSetInput{
				{ExerciseName: "Squat", Reps: 5, WeightKg: 100 + float64(i)},
				{ExerciseName: "Squat", Reps: 5, WeightKg: 90},
			},
		})
		require.NoError(t, err)
	}

	page, cursor, err := repo.ListWorkouts(ctx, userID, nil, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.NotNil(t, cursor)
	require.Len(t, page[0].Sets, 2)
	require.Equal(t, 1, page[0].Sets[0].SetIndex)

	rest, next, err := repo.ListWorkouts(ctx, userID, cursor, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	require.Nil(t, next)

	records, err := svc.PersonalRecords(ctx, userID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.InDelta(t, 102.0, records[0].WeightKg, 0.001)

	var outboxCount int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE partition_key = $1`, userID).Scan(&outboxCount))
	require.Equal(t, 6, outboxCount, "three workout.logged plus three personal_record.set")

	deleted, err := repo.DeleteWorkout(ctx, uuid.NewString(), rest[0].ID)
	require.NoError(t, err)
	require.False(t, deleted, "other users cannot delete")

	deleted, err = repo.DeleteWorkout(ctx, userID, rest[0].ID)
	require.NoError(t, err)
	require.True(t, deleted)
}

func TestRepositoryBillingAndPrograms(t *testing.T) {
	ctx := context.Background()
	pool := testsupport.StartPostgres(ctx, t)
	repo := NewRepository(pool)
	now := time.Now().UTC().Truncate(time.Microsecond)
	svc := domain.NewService(repo, nil, domain.WithClock(func() time.Time { return now }))

	userID := uuid.NewString()
	_, err := svc.FollowProgram(ctx, userID, "powerlifting-peak")
	require.ErrorIs(t, err, domain.ErrUpgradeRequired)

	periodEnd := now.AddDate(0, 1, 0)
	sub, applied, err := svc.ApplyBillingEvent(ctx, domain.BillingEvent{
		UserID: userID, ProviderSubscriptionID: "sub_" + uuid.NewString(), Status: domain.StatusActive,
		RenewsAt: &periodEnd, Amount: decimal.RequireFromString("12.50"), Currency: "EUR", OccurredAt: now,
	})
	require.NoError(t, err)
	require.True(t, applied)

	stored, err := repo.FindSubscriptionByProviderID(ctx, sub.ProviderSubscriptionID)
	require.NoError(t, err)
	require.True(t, decimal.RequireFromString("12.50").Equal(stored.Amount))

	_, err = svc.FollowProgram(ctx, userID, "powerlifting-peak")
	require.NoError(t, err)
	_, err = svc.FollowProgram(ctx, userID, "POWERLIFTING-PEAK")
	require.ErrorIs(t, err, domain.ErrAlreadyFollowing)

	enrollments, err := repo.ListEnrollments(ctx, userID)
	require.NoError(t, err)
	require.Len(t, enrollments, 1)
}

func TestApplySubscriptionKeepsNewerState(t *testing.T) {
	ctx := context.Background()
	pool := testsupport.StartPostgres(ctx, t)
	repo := NewRepository(pool)

	userID := uuid.NewString()
	subID := "sub_" + uuid.NewString()
	newer := time.Now().UTC().Truncate(time.Microsecond)
	periodEnd := newer.AddDate(0, 1, 0)

	active := domain.Subscription{
		UserID: userID, ProviderSubscriptionID: subID, Plan: domain.FeaturePro, Status: domain.StatusActive,
		CurrentPeriodEnd: &periodEnd, Amount: decimal.RequireFromString("9.99"), Currency: "USD", UpdatedAt: newer,
	}
	applied, err := repo.ApplySubscription(ctx, active, domain.EntitlementFor(active, newer))
	require.NoError(t, err)
	require.True(t, applied)

	expired := active
	expired.Status = domain.StatusExpired
	expired.UpdatedAt = newer.Add(-time.Minute)
	applied, err = repo.ApplySubscription(ctx, expired, domain.EntitlementFor(expired, newer))
	require.NoError(t, err)
	require.False(t, applied)

	entitlements, err := repo.ListEntitlements(ctx, userID)
	require.NoError(t, err)
	require.Len(t, entitlements, 1)
	require.True(t, entitlements[0].Active)

	stored, err := repo.FindSubscriptionByProviderID(ctx, subID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusActive, stored.Status)

	var outboxRows int
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT count(*) FROM outbox WHERE aggregate_id = $1 AND event_type = 'subscription.changed'`, subID,
	).Scan(&outboxRows))
	require.Equal(t, 1, outboxRows)
}

func TestAuditSinkWrites(t *testing.T) {
	ctx := context.Background()
	pool := testsupport.StartPostgres(ctx, t)
	sink := NewAuditSink(pool)

	require.NoError(t, sink.Write(ctx, audit.Event{
		Action:     audit.ActionWorkoutLogged,
		ActorID:    "user-1",
		Metadata:   map[string]any{"sets": 3},
		OccurredAt: time.Now().UTC(),
	}))

	var action string
	var sets int
	require.NoError(t, pool.QueryRow(ctx, `SELECT action, (metadata->>'sets')::int FROM audit_logs WHERE actor_id = 'user-1'`).Scan(&action, &sets))
	require.Equal(t, audit.ActionWorkoutLogged, action)
	require.Equal(t, 3, sets)
}
