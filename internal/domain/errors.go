package domain

import "errors"

var (
	// ErrWorkoutNotFound is returned when a workout does not exist or belongs to another user.
	ErrWorkoutNotFound = errors.New("workout not found")
	// ErrProgramNotFound is returned when a program id or slug matches nothing.
	ErrProgramNotFound = errors.New("program not found")
	// ErrSubscriptionNotFound is returned when the user has never subscribed.
	ErrSubscriptionNotFound = errors.New("subscription not found")
	// ErrUpgradeRequired is returned when a Pro-only feature is used without an active entitlement.
	ErrUpgradeRequired = errors.New("pro subscription required")
	// ErrAlreadyFollowing is returned when enrolling twice in the same program.
	ErrAlreadyFollowing = errors.New("already following program")
	// ErrNotFollowing is returned when leaving a program the user never joined.
	ErrNotFollowing = errors.New("not following program")
	// ErrUnlinkedSubscription is returned for billing events that cannot be tied to a user.
	ErrUnlinkedSubscription = errors.New("billing event has no linked user")
	// ErrBillingUnavailable is returned when no checkout provider is configured.
	ErrBillingUnavailable = errors.New("billing provider not configured")
)
