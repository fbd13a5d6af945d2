package persistence

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/fittrack/internal/domain"
	"example.com/fittrack/internal/platform/events"
)

func TestWorkoutLoggedEventsIncludesRecords(t *testing.T) {
	performed := time.Date(2025, 5, 1, 7, 0, 0, 0, time.UTC)
	workout := domain.Workout{
		ID:          "w-1",
		UserID:      "u-1",
		Title:       "Push",
		PerformedAt: performed,
		Sets: []domain.WorkoutSet{
			{ExerciseName: "Bench Press", Reps: 5, WeightKg: 100},
			{ExerciseName: "Bench Press", Reps: 5, WeightKg: 100},
		},
	}
	records := []domain.PersonalRecord{{ExerciseName: "Bench Press", WeightKg: 100, Reps: 5, WorkoutID: "w-1", AchievedAt: performed, PreviousBestKg: 95}}

	out, err := WorkoutLoggedEvents(workout, records)
	require.NoError(t, err)
	require.Len(t, out, 2)

	require.Equal(t, events.TypeWorkoutLogged, out[0].EventType)
	require.Equal(t, TopicWorkoutEvents, out[0].Topic)
	require.Equal(t, "u-1", out[0].PartitionKey)
	var logged events.WorkoutLogged
	require.NoError(t, json.Unmarshal(out[0].Payload, &logged))
	require.Equal(t, 2, logged.SetCount)
	require.InDelta(t, 1000.0, logged.VolumeKg, 0.001)

	require.Equal(t, events.TypePersonalRecordSet, out[1].EventType)
	require.NotEqual(t, out[0].DedupeKey, out[1].DedupeKey)
}

func TestNewOutboxEventUnknownType(t *testing.T) {
	_, err := NewOutboxEvent("workout.exploded", "w-1", "u-1", struct{}{})
	require.Error(t, err)
}

func TestSubscriptionChangedEventRoutesToBilling(t *testing.T) {
	sub := domain.Subscription{UserID: "u-1", ProviderSubscriptionID: "sub-9", Status: domain.StatusActive, UpdatedAt: time.Now().UTC()}
	evt, err := SubscriptionChangedEvent(sub, domain.Entitlement{Active: true})
	require.NoError(t, err)
	require.Equal(t, TopicBillingEvents, evt.Topic)
	require.Equal(t, "subscription", evt.AggregateType)
	require.Equal(t, "sub-9", evt.AggregateID)
}
