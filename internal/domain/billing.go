package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// FeaturePro is the entitlement granted by the Pro subscription.
const FeaturePro = "pro"

// Subscription statuses reported by the billing provider.
const (
	StatusActive    = "active"
	StatusOnTrial   = "on_trial"
	StatusPastDue   = "past_due"
	StatusCancelled = "cancelled"
	StatusExpired   = "expired"
	StatusUnpaid    = "unpaid"
	StatusPaused    = "paused"
)

// Subscription mirrors the provider's view of a user's Pro plan.
type Subscription struct {
	UserID                 string
	ProviderSubscriptionID string
	ProviderCustomerID     string
	VariantID              string
	Plan                   string
	Status                 string
	CurrentPeriodEnd       *time.Time
	CancelAtPeriodEnd      bool
	Amount                 decimal.Decimal
	Currency               string
	UpdatedAt              time.Time
}

// Entitlement grants a feature to a user, optionally until ExpiresAt.
type Entitlement struct {
	UserID    string
	Feature   string
	Active    bool
	ExpiresAt *time.Time
	UpdatedAt time.Time
}

// ActiveAt reports whether the entitlement grants access at t.
func (e Entitlement) ActiveAt(t time.Time) bool {
	if !e.Active {
		return false
	}
	return e.ExpiresAt == nil || t.Before(*e.ExpiresAt)
}

// BillingEvent is a normalized webhook notification from the billing provider.
type BillingEvent struct {
	Name                   string
	UserID                 string
	ProviderSubscriptionID string
	ProviderCustomerID     string
	VariantID              string
	Status                 string
	RenewsAt               *time.Time
	EndsAt                 *time.Time
	Cancelled              bool
	Amount                 decimal.Decimal
	Currency               string
	OccurredAt             time.Time
}

// CheckoutRequest is what the provider needs to open a hosted checkout.
type CheckoutRequest struct {
	UserID      string
	Email       string
	RedirectURL string
}

// CheckoutProvider creates hosted billing pages.
type CheckoutProvider interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (string, error)
	CustomerPortalURL(ctx context.Context, providerSubscriptionID string) (string, error)
}

// Entitlements returns the user's entitlements with Active resolved against the current time.
func (s *Service) Entitlements(ctx context.Context, userID string) ([]Entitlement, error) {
	entitlements, err := s.repo.ListEntitlements(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.clock()
	for i := range entitlements {
		entitlements[i].Active = entitlements[i].ActiveAt(now)
	}
	return entitlements, nil
}

// IsPro reports whether the user currently holds the Pro entitlement.
func (s *Service) IsPro(ctx context.Context, userID string) (bool, error) {
	entitlements, err := s.Entitlements(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, e := range entitlements {
		if e.Feature == FeaturePro && e.Active {
			return true, nil
		}
	}
	return false, nil
}

// StartCheckout returns a hosted checkout URL for the Pro plan.
func (s *Service) StartCheckout(ctx context.Context, userID, email, redirectURL string) (string, error) {
	if s.checkout == nil {
		return "", ErrBillingUnavailable
	}
	return s.checkout.CreateCheckout(ctx, CheckoutRequest{UserID: userID, Email: email, RedirectURL: redirectURL})
}

// PortalURL returns the provider's self-service page for the user's subscription.
func (s *Service) PortalURL(ctx context.Context, userID string) (string, error) {
	if s.checkout == nil {
		return "", ErrBillingUnavailable
	}
	sub, err := s.repo.GetSubscription(ctx, userID)
	if err != nil {
		return "", err
	}
	if sub == nil {
		return "", ErrSubscriptionNotFound
	}
	return s.checkout.CustomerPortalURL(ctx, sub.ProviderSubscriptionID)
}

// ApplyBillingEvent updates the subscription and Pro entitlement from a
// provider notification. Events older than the stored state are ignored and
// reported with applied=false.
func (s *Service) ApplyBillingEvent(ctx context.Context, event BillingEvent) (sub *Subscription, applied bool, err error) {
	existing, err := s.repo.FindSubscriptionByProviderID(ctx, event.ProviderSubscriptionID)
	if err != nil {
		return nil, false, err
	}

	userID := event.UserID
	if userID == "" && existing != nil {
		userID = existing.UserID
	}
	if userID == "" {
		return nil, false, ErrUnlinkedSubscription
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = s.clock()
	}
	if existing != nil && existing.UpdatedAt.After(occurredAt) {
		return existing, false, nil
	}

	periodEnd := event.RenewsAt
	if event.EndsAt != nil {
		periodEnd = event.EndsAt
	}

	next := Subscription{
		UserID:                 userID,
		ProviderSubscriptionID: event.ProviderSubscriptionID,
		ProviderCustomerID:     event.ProviderCustomerID,
		VariantID:              event.VariantID,
		Plan:                   FeaturePro,
		Status:                 event.Status,
		CurrentPeriodEnd:       periodEnd,
		CancelAtPeriodEnd:      event.Cancelled || event.Status == StatusCancelled,
		Amount:                 event.Amount,
		Currency:               event.Currency,
		UpdatedAt:              occurredAt,
	}
	if existing != nil {
		if next.ProviderCustomerID == "" {
			next.ProviderCustomerID = existing.ProviderCustomerID
		}
		if next.Currency == "" {
			next.Currency = existing.Currency
			next.Amount = existing.Amount
		}
	}

	entitlement := EntitlementFor(next, s.clock())
	applied, err = s.repo.ApplySubscription(ctx, next, entitlement)
	if err != nil {
		return nil, false, err
	}
	if !applied {
		current, err := s.repo.FindSubscriptionByProviderID(ctx, next.ProviderSubscriptionID)
		return current, false, err
	}
	return &next, true, nil
}

// EntitlementFor derives the Pro entitlement from a subscription status.
// Active, trialing and past-due plans keep access until the period ends;
// cancelled plans keep it until their end date; anything else revokes it.
func EntitlementFor(sub Subscription, now time.Time) Entitlement {
	e := Entitlement{UserID: sub.UserID, Feature: FeaturePro, UpdatedAt: now}
	switch sub.Status {
	case StatusActive, StatusOnTrial, StatusPastDue:
		e.Active = true
		e.ExpiresAt = sub.CurrentPeriodEnd
	case StatusCancelled:
		if sub.CurrentPeriodEnd != nil && now.Before(*sub.CurrentPeriodEnd) {
			e.Active = true
			e.ExpiresAt = sub.CurrentPeriodEnd
		}
	}
	return e
}

// IsNotFound reports whether err is one of the domain's not-found errors.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrWorkoutNotFound) || errors.Is(err, ErrProgramNotFound) || errors.Is(err, ErrSubscriptionNotFound)
}
