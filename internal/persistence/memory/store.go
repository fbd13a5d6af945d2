// Package memory provides an in-process implementation of the domain
// repositories for local development and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"example.com/fittrack/internal/domain"
	"example.com/fittrack/internal/persistence"
)

// Store keeps every table in maps guarded by a single RWMutex.
type Store struct {
	mu            sync.RWMutex
	profiles      map[string]domain.Profile
	workouts      map[string]domain.Workout
	programs      map[string]domain.Program
	enrollments   map[string]map[string]domain.Enrollment
	subscriptions map[string]domain.Subscription
	entitlements  map[string]map[string]domain.Entitlement
	outbox        []persistence.OutboxEvent
}

// NewStore constructs a Store populated with the seed program catalog.
func NewStore() *Store {
	s := &Store{
		profiles:      make(map[string]domain.Profile),
		workouts:      make(map[string]domain.Workout),
		programs:      make(map[string]domain.Program),
		enrollments:   make(map[string]map[string]domain.Enrollment),
		subscriptions: make(map[string]domain.Subscription),
		entitlements:  make(map[string]map[string]domain.Entitlement),
	}
	for _, p := range SeedPrograms() {
		s.programs[p.ID] = p
	}
	return s
}

// SeedPrograms returns the catalog shipped with a fresh install. The same rows
// are inserted by the initial database migration.
func SeedPrograms() []domain.Program {
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return []domain.Program{
		{ID: "5d3c8a52-0f4e-4c53-9a57-1b0a3f6a2c01", Slug: "starting-strength", Title: "Starting Strength", Description: "Linear progression on the main barbell lifts.", Weeks: 12, CreatedAt: created},
		{ID: "5d3c8a52-0f4e-4c53-9a57-1b0a3f6a2c02", Slug: "couch-to-5k", Title: "Couch to 5K", Description: "Run/walk intervals building to a continuous 5K.", Weeks: 9, CreatedAt: created},
		{ID: "5d3c8a52-0f4e-4c53-9a57-1b0a3f6a2c03", Slug: "hypertrophy-block", Title: "Hypertrophy Block", Description: "Upper/lower split with progressive volume.", Weeks: 8, Premium: true, CreatedAt: created},
		{ID: "5d3c8a52-0f4e-4c53-9a57-1b0a3f6a2c04", Slug: "powerlifting-peak", Title: "Powerlifting Peak", Description: "Meet preparation with a taper and attempt selection.", Weeks: 6, Premium: true, CreatedAt: created},
	}
}

// GetProfile implements domain.ProfileRepository.
func (s *Store) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// UpsertProfile implements domain.ProfileRepository.
func (s *Store) UpsertProfile(ctx context.Context, profile domain.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[profile.UserID] = profile
	return nil
}

// CreateWorkout implements domain.WorkoutRepository.
func (s *Store) CreateWorkout(ctx context.Context, workout domain.Workout, records []domain.PersonalRecord) error {
	evts, err := persistence.WorkoutLoggedEvents(workout, records)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	workout.Sets = append([]domain.WorkoutSet(nil), workout.Sets...)
	s.workouts[workout.ID] = workout
	s.outbox = append(s.outbox, evts...)
	return nil
}

// GetWorkout implements domain.WorkoutRepository.
func (s *Store) GetWorkout(ctx context.Context, userID, workoutID string) (*domain.Workout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.workouts[workoutID]
	if !ok || w.UserID != userID {
		return nil, nil
	}
	w.Sets = append([]domain.WorkoutSet(nil), w.Sets...)
	return &w, nil
}

// ListWorkouts implements domain.WorkoutRepository, newest first.
func (s *Store) ListWorkouts(ctx context.Context, userID string, cursor *domain.Cursor, limit int) ([]domain.Workout, *domain.Cursor, error) {
	s.mu.RLock()
	all := make([]domain.Workout, 0)
	for _, w := range s.workouts {
		if w.UserID == userID {
			all = append(all, w)
		}
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return newerThan(all[i], all[j].PerformedAt, all[j].ID) })

	results := make([]domain.Workout, 0, limit)
	for _, w := range all {
		if cursor != nil && !newerThan(domain.Workout{PerformedAt: cursor.PerformedAt, ID: cursor.ID}, w.PerformedAt, w.ID) {
			continue
		}
		if len(results) == limit {
			break
		}
		w.Sets = append([]domain.WorkoutSet(nil), w.Sets...)
		results = append(results, w)
	}

	var next *domain.Cursor
	if limit > 0 && len(results) == limit {
		last := results[len(results)-1]
		next = &domain.Cursor{PerformedAt: last.PerformedAt, ID: last.ID}
	}
	return results, next, nil
}

// after reports whether w sorts before (performedAt, id) in newest-first order.
func newerThan(w domain.Workout, performedAt time.Time, id string) bool {
	if !w.PerformedAt.Equal(performedAt) {
		return w.PerformedAt.After(performedAt)
	}
	return w.ID > id
}

// DeleteWorkout implements domain.WorkoutRepository.
func (s *Store) DeleteWorkout(ctx context.Context, userID, workoutID string) (bool, error) {
	evt, err := persistence.WorkoutDeletedEvent(userID, workoutID, time.Now().UTC())
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.workouts[workoutID]
	if !ok || w.UserID != userID {
		return false, nil
	}
	delete(s.workouts, workoutID)
	s.outbox = append(s.outbox, evt)
	return true, nil
}

// ListSets implements domain.WorkoutRepository.
func (s *Store) ListSets(ctx context.Context, userID string, since, until time.Time) ([]domain.SetRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.SetRecord, 0)
	for _, w := range s.workouts {
		if w.UserID != userID {
			continue
		}
		if !since.IsZero() && w.PerformedAt.Before(since) {
			continue
		}
		if !until.IsZero() && !w.PerformedAt.Before(until) {
			continue
		}
		for _, set := range w.Sets {
			out = append(out, domain.SetRecord{
				WorkoutID:    w.ID,
				PerformedAt:  w.PerformedAt,
				ExerciseName: set.ExerciseName,
				Reps:         set.Reps,
				WeightKg:     set.WeightKg,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PerformedAt.Before(out[j].PerformedAt) })
	return out, nil
}

// ListPrograms implements domain.ProgramRepository ordered by title.
func (s *Store) ListPrograms(ctx context.Context) ([]domain.Program, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Program, 0, len(s.programs))
	for _, p := range s.programs {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

// GetProgram implements domain.ProgramRepository.
func (s *Store) GetProgram(ctx context.Context, idOrSlug string) (*domain.Program, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.programs[idOrSlug]; ok {
		return &p, nil
	}
	for _, p := range s.programs {
		if strings.EqualFold(p.Slug, idOrSlug) {
			return &p, nil
		}
	}
	return nil, nil
}

// AddProgram inserts or replaces a catalog entry.
func (s *Store) AddProgram(p domain.Program) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	s.programs[p.ID] = p
}

// CreateEnrollment implements domain.ProgramRepository.
func (s *Store) CreateEnrollment(ctx context.Context, enrollment domain.Enrollment) error {
	evt, err := persistence.ProgramFollowedEvent(enrollment)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	byProgram := s.enrollments[enrollment.UserID]
	if byProgram == nil {
		byProgram = make(map[string]domain.Enrollment)
		s.enrollments[enrollment.UserID] = byProgram
	}
	if _, ok := byProgram[enrollment.ProgramID]; ok {
		return domain.ErrAlreadyFollowing
	}
	byProgram[enrollment.ProgramID] = enrollment
	s.outbox = append(s.outbox, evt)
	return nil
}

// DeleteEnrollment implements domain.ProgramRepository.
func (s *Store) DeleteEnrollment(ctx context.Context, userID, programID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byProgram := s.enrollments[userID]
	if _, ok := byProgram[programID]; !ok {
		return false, nil
	}
	delete(byProgram, programID)
	return true, nil
}

// ListEnrollments implements domain.ProgramRepository, most recent first.
func (s *Store) ListEnrollments(ctx context.Context, userID string) ([]domain.Enrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Enrollment, 0, len(s.enrollments[userID]))
	for _, e := range s.enrollments[userID] {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}

// GetSubscription implements domain.BillingRepository.
func (s *Store) GetSubscription(ctx context.Context, userID string) (*domain.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *domain.Subscription
	for _, sub := range s.subscriptions {
		if sub.UserID != userID {
			continue
		}
		if latest == nil || sub.UpdatedAt.After(latest.UpdatedAt) {
			latest = &sub
		}
	}
	return latest, nil
}

// FindSubscriptionByProviderID implements domain.BillingRepository.
func (s *Store) FindSubscriptionByProviderID(ctx context.Context, providerSubscriptionID string) (*domain.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.subscriptions[providerSubscriptionID]
	if !ok {
		return nil, nil
	}
	return &sub, nil
}

// ApplySubscription implements domain.BillingRepository.
func (s *Store) ApplySubscription(ctx context.Context, sub domain.Subscription, entitlement domain.Entitlement) (bool, error) {
	evt, err := persistence.SubscriptionChangedEvent(sub, entitlement)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.subscriptions[sub.ProviderSubscriptionID]; ok && existing.UpdatedAt.After(sub.UpdatedAt) {
		return false, nil
	}
	s.subscriptions[sub.ProviderSubscriptionID] = sub
	byFeature := s.entitlements[entitlement.UserID]
	if byFeature == nil {
		byFeature = make(map[string]domain.Entitlement)
		s.entitlements[entitlement.UserID] = byFeature
	}
	byFeature[entitlement.Feature] = entitlement
	s.outbox = append(s.outbox, evt)
	return true, nil
}

// ListEntitlements implements domain.BillingRepository.
func (s *Store) ListEntitlements(ctx context.Context, userID string) ([]domain.Entitlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Entitlement, 0, len(s.entitlements[userID]))
	for _, e := range s.entitlements[userID] {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Feature < out[j].Feature })
	return out, nil
}

// Outbox returns a copy of the events recorded so far.
func (s *Store) Outbox() []persistence.OutboxEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]persistence.OutboxEvent(nil), s.outbox...)
}
