// Package events defines event payloads written to the outbox and consumed downstream.
package events

import "time"

// Event types recorded in the outbox.
const (
	TypeWorkoutLogged       = "workout.logged"
	TypeWorkoutDeleted      = "workout.deleted"
	TypePersonalRecordSet   = "personal_record.set"
	TypeProgramFollowed     = "program.followed"
	TypeSubscriptionChanged = "subscription.changed"
)

// WorkoutLogged is emitted when a user records a workout.
type WorkoutLogged struct {
	WorkoutID   string    `json:"workout_id"`
	UserID      string    `json:"user_id"`
	Title       string    `json:"title"`
	PerformedAt time.Time `json:"performed_at"`
	SetCount    int       `json:"set_count"`
	VolumeKg    float64   `json:"volume_kg"`
}

// WorkoutDeleted is emitted when a user removes a workout.
type WorkoutDeleted struct {
	WorkoutID string    `json:"workout_id"`
	UserID    string    `json:"user_id"`
	DeletedAt time.Time `json:"deleted_at"`
}

// PersonalRecordSet is emitted when a logged set beats the previous best weight for an exercise.
type PersonalRecordSet struct {
	UserID         string    `json:"user_id"`
	WorkoutID      string    `json:"workout_id"`
	ExerciseName   string    `json:"exercise_name"`
	WeightKg       float64   `json:"weight_kg"`
	Reps           int       `json:"reps"`
	PreviousBestKg float64   `json:"previous_best_kg"`
	AchievedAt     time.Time `json:"achieved_at"`
}

// ProgramFollowed is emitted when a user enrolls in a program.
type ProgramFollowed struct {
	UserID    string    `json:"user_id"`
	ProgramID string    `json:"program_id"`
	StartedAt time.Time `json:"started_at"`
}

// SubscriptionChanged tracks billing state transitions and the resulting Pro entitlement.
type SubscriptionChanged struct {
	UserID           string     `json:"user_id"`
	SubscriptionID   string     `json:"subscription_id"`
	Status           string     `json:"status"`
	ProActive        bool       `json:"pro_active"`
	CurrentPeriodEnd *time.Time `json:"current_period_end,omitempty"`
	OccurredAt       time.Time  `json:"occurred_at"`
}
