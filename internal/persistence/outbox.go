package persistence

import (
	"encoding/json"
	"fmt"
	"time"

	"example.com/fittrack/internal/domain"
	"example.com/fittrack/internal/platform/events"
)

// Topics events are published to.
const (
	TopicWorkoutEvents = "workout_events"
	TopicBillingEvents = "billing_events"
)

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	AggregateType string
	Topic         string
	SchemaSubject string
}

var eventCatalog = map[string]EventMetadata{
	events.TypeWorkoutLogged:       route("workout", TopicWorkoutEvents, events.TypeWorkoutLogged),
	events.TypeWorkoutDeleted:      route("workout", TopicWorkoutEvents, events.TypeWorkoutDeleted),
	events.TypePersonalRecordSet:   route("workout", TopicWorkoutEvents, events.TypePersonalRecordSet),
	events.TypeProgramFollowed:     route("program", TopicWorkoutEvents, events.TypeProgramFollowed),
	events.TypeSubscriptionChanged: route("subscription", TopicBillingEvents, events.TypeSubscriptionChanged),
}

// route names schema subjects topic-eventtype so several event types can share a topic.
func route(aggregateType, topic, eventType string) EventMetadata {
	return EventMetadata{AggregateType: aggregateType, Topic: topic, SchemaSubject: topic + "-" + eventType}
}

// OutboxEvent is a row waiting in the outbox for the dispatcher.
type OutboxEvent struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Topic         string
	SchemaSubject string
	PartitionKey  string
	Payload       []byte
	DedupeKey     string
}

// NewOutboxEvent resolves routing metadata for eventType and encodes payload.
// Events are partitioned by user so a user's history stays ordered.
func NewOutboxEvent(eventType, aggregateID, userID string, payload any) (OutboxEvent, error) {
	meta, ok := eventCatalog[eventType]
	if !ok {
		return OutboxEvent{}, fmt.Errorf("unknown event type: %s", eventType)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return OutboxEvent{}, err
	}
	return OutboxEvent{
		AggregateType: meta.AggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Topic:         meta.Topic,
		SchemaSubject: meta.SchemaSubject,
		PartitionKey:  userID,
		Payload:       body,
		DedupeKey:     fmt.Sprintf("%s:%s", aggregateID, eventType),
	}, nil
}

// WorkoutLoggedEvents builds the workout.logged event plus one
// personal_record.set event per record.
func WorkoutLoggedEvents(workout domain.Workout, records []domain.PersonalRecord) ([]OutboxEvent, error) {
	out := make([]OutboxEvent, 0, 1+len(records))
	logged, err := NewOutboxEvent(events.TypeWorkoutLogged, workout.ID, workout.UserID, events.WorkoutLogged{
		WorkoutID:   workout.ID,
		UserID:      workout.UserID,
		Title:       workout.Title,
		PerformedAt: workout.PerformedAt,
		SetCount:    len(workout.Sets),
		VolumeKg:    workout.Volume(),
	})
	if err != nil {
		return nil, err
	}
	out = append(out, logged)

	for _, pr := range records {
		evt, err := NewOutboxEvent(events.TypePersonalRecordSet, workout.ID, workout.UserID, events.PersonalRecordSet{
			UserID:         workout.UserID,
			WorkoutID:      workout.ID,
			ExerciseName:   pr.ExerciseName,
			WeightKg:       pr.WeightKg,
			Reps:           pr.Reps,
			PreviousBestKg: pr.PreviousBestKg,
			AchievedAt:     pr.AchievedAt,
		})
		if err != nil {
			return nil, err
		}
		// one record per exercise per workout
		evt.DedupeKey = fmt.Sprintf("%s:%s:%s", workout.ID, evt.EventType, pr.ExerciseName)
		out = append(out, evt)
	}
	return out, nil
}

// WorkoutDeletedEvent builds the workout.deleted event.
func WorkoutDeletedEvent(userID, workoutID string, deletedAt time.Time) (OutboxEvent, error) {
	return NewOutboxEvent(events.TypeWorkoutDeleted, workoutID, userID, events.WorkoutDeleted{
		WorkoutID: workoutID,
		UserID:    userID,
		DeletedAt: deletedAt,
	})
}

// ProgramFollowedEvent builds the program.followed event.
func ProgramFollowedEvent(enrollment domain.Enrollment) (OutboxEvent, error) {
	evt, err := NewOutboxEvent(events.TypeProgramFollowed, enrollment.ProgramID, enrollment.UserID, events.ProgramFollowed{
		UserID:    enrollment.UserID,
		ProgramID: enrollment.ProgramID,
		StartedAt: enrollment.StartedAt,
	})
	if err != nil {
		return OutboxEvent{}, err
	}
	evt.DedupeKey = fmt.Sprintf("%s:%s:%s:%d", enrollment.ProgramID, evt.EventType, enrollment.UserID, enrollment.StartedAt.UnixNano())
	return evt, nil
}

// SubscriptionChangedEvent builds the subscription.changed event.
func SubscriptionChangedEvent(sub domain.Subscription, entitlement domain.Entitlement) (OutboxEvent, error) {
	evt, err := NewOutboxEvent(events.TypeSubscriptionChanged, sub.ProviderSubscriptionID, sub.UserID, events.SubscriptionChanged{
		UserID:           sub.UserID,
		SubscriptionID:   sub.ProviderSubscriptionID,
		Status:           sub.Status,
		ProActive:        entitlement.Active,
		CurrentPeriodEnd: sub.CurrentPeriodEnd,
		OccurredAt:       sub.UpdatedAt,
	})
	if err != nil {
		return OutboxEvent{}, err
	}
	evt.DedupeKey = fmt.Sprintf("%s:%s:%d", sub.ProviderSubscriptionID, evt.EventType, sub.UpdatedAt.UnixNano())
	return evt, nil
}
