package domain

import (
	"context"
	"time"

	"example.com/fittrack/internal/observability"
)

// Workout is a single training session made of sets.
type Workout struct {
	ID          string
	UserID      string
	Title       string
	Notes       string
	PerformedAt time.Time
	DurationMin int
	Sets        []WorkoutSet
	CreatedAt   time.Time
}

// WorkoutSet is one set of an exercise within a workout.
type WorkoutSet struct {
	ID           string
	WorkoutID    string
	ExerciseName string
	SetIndex     int
	Reps         int
	WeightKg     float64
	RPE          *float64
}

// Volume returns reps × weight for the set.
func (s WorkoutSet) Volume() float64 {
	return float64(s.Reps) * s.WeightKg
}

// Volume sums the volume of every set in the workout.
func (w Workout) Volume() float64 {
	total := 0.0
	for _, set := range w.Sets {
		total += set.Volume()
	}
	return total
}

// Cursor models the workout pagination token.
type Cursor struct {
	PerformedAt time.Time
	ID          string
}

// LogWorkoutInput captures the payload from the API layer.
type LogWorkoutInput struct {
	Title       string
	Notes       string
	PerformedAt time.Time
	DurationMin int
	Sets        []LogSetInput
}

// LogSetInput is a single set in LogWorkoutInput.
type LogSetInput struct {
	ExerciseName string
	Reps         int
	WeightKg     float64
	RPE          *float64
}

// LogWorkout stores a workout and reports the personal records it set.
func (s *Service) LogWorkout(ctx context.Context, userID string, input LogWorkoutInput) (*Workout, []PersonalRecord, error) {
	history, err := s.repo.ListSets(ctx, userID, time.Time{}, time.Time{})
	if err != nil {
		return nil, nil, err
	}

	now := s.clock()
	workout := Workout{
		ID:          s.newID(),
		UserID:      userID,
		Title:       input.Title,
		Notes:       input.Notes,
		PerformedAt: input.PerformedAt.UTC(),
		DurationMin: input.DurationMin,
		Sets:        make([]WorkoutSet, 0, len(input.Sets)),
		CreatedAt:   now,
	}
	for i, in := range input.Sets {
		workout.Sets = append(workout.Sets, WorkoutSet{
			ID:           s.newID(),
			WorkoutID:    workout.ID,
			ExerciseName: in.ExerciseName,
			SetIndex:     i + 1,
			Reps:         in.Reps,
			WeightKg:     in.WeightKg,
			RPE:          in.RPE,
		})
	}

	records := NewRecords(PersonalRecords(history), workout)
	if err := s.repo.CreateWorkout(ctx, workout, records); err != nil {
		return nil, nil, err
	}
	observability.RecordWorkoutLogged(workout.CreatedAt, len(records))
	return &workout, records, nil
}

// GetWorkout fetches one of the user's workouts.
func (s *Service) GetWorkout(ctx context.Context, userID, workoutID string) (*Workout, error) {
	workout, err := s.repo.GetWorkout(ctx, userID, workoutID)
	if err != nil {
		return nil, err
	}
	if workout == nil {
		return nil, ErrWorkoutNotFound
	}
	return workout, nil
}

// ListWorkouts returns the user's workouts newest first with cursor pagination.
func (s *Service) ListWorkouts(ctx context.Context, userID string, cursor *Cursor, limit int) ([]Workout, *Cursor, error) {
	return s.repo.ListWorkouts(ctx, userID, cursor, limit)
}

// DeleteWorkout removes one of the user's workouts.
func (s *Service) DeleteWorkout(ctx context.Context, userID, workoutID string) error {
	deleted, err := s.repo.DeleteWorkout(ctx, userID, workoutID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrWorkoutNotFound
	}
	return nil
}
