// Package domain defines the business logic for workouts, programs and the Pro subscription.
package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository captures every persistence operation the service needs. Both the
// Postgres repository and the in-memory store implement it.
type Repository interface {
	ProfileRepository
	WorkoutRepository
	ProgramRepository
	BillingRepository
}

// ProfileRepository persists user profiles.
type ProfileRepository interface {
	GetProfile(ctx context.Context, userID string) (*Profile, error)
	UpsertProfile(ctx context.Context, profile Profile) error
}

// WorkoutRepository persists workouts and their sets.
type WorkoutRepository interface {
	// CreateWorkout stores the workout and its sets and records outbox events
	// for the workout and any personal records it set.
	CreateWorkout(ctx context.Context, workout Workout, records []PersonalRecord) error
	GetWorkout(ctx context.Context, userID, workoutID string) (*Workout, error)
	ListWorkouts(ctx context.Context, userID string, cursor *Cursor, limit int) ([]Workout, *Cursor, error)
	DeleteWorkout(ctx context.Context, userID, workoutID string) (bool, error)
	// ListSets returns the user's sets performed in [since, until). Zero bounds are open.
	ListSets(ctx context.Context, userID string, since, until time.Time) ([]SetRecord, error)
}

// ProgramRepository persists the program catalog and enrollments.
type ProgramRepository interface {
	ListPrograms(ctx context.Context) ([]Program, error)
	GetProgram(ctx context.Context, idOrSlug string) (*Program, error)
	// CreateEnrollment returns ErrAlreadyFollowing when the enrollment exists.
	CreateEnrollment(ctx context.Context, enrollment Enrollment) error
	DeleteEnrollment(ctx context.Context, userID, programID string) (bool, error)
	ListEnrollments(ctx context.Context, userID string) ([]Enrollment, error)
}

// BillingRepository persists subscriptions and entitlements.
type BillingRepository interface {
	GetSubscription(ctx context.Context, userID string) (*Subscription, error)
	FindSubscriptionByProviderID(ctx context.Context, providerSubscriptionID string) (*Subscription, error)
	// ApplySubscription upserts the subscription and entitlement together and
	// records a subscription.changed outbox event. It reports applied=false and
	// writes nothing when the stored subscription is newer than sub.
	ApplySubscription(ctx context.Context, sub Subscription, entitlement Entitlement) (applied bool, err error)
	ListEntitlements(ctx context.Context, userID string) ([]Entitlement, error)
}

// Option configures optional behaviour for the Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides the id generator.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// Service orchestrates fittrack workflows.
type Service struct {
	repo     Repository
	checkout CheckoutProvider
	now      func() time.Time
	newID    func() string
}

// NewService constructs a Service. checkout may be nil when billing is not configured.
func NewService(repo Repository, checkout CheckoutProvider, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		checkout: checkout,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) clock() time.Time {
	return s.now().UTC()
}
