package domain

import (
	"context"
	"time"
)

// Units a user prefers for displaying weights.
const (
	UnitsKilograms = "kg"
	UnitsPounds    = "lb"
)

// Profile holds user-editable account details.
type Profile struct {
	UserID       string
	DisplayName  string
	Bio          string
	Units        string
	BodyweightKg *float64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UpdateProfileInput is the validated payload from the API layer.
type UpdateProfileInput struct {
	DisplayName  string
	Bio          string
	Units        string
	BodyweightKg *float64
}

// GetProfile returns the stored profile or an unsaved default one.
func (s *Service) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	profile, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return &Profile{UserID: userID, Units: UnitsKilograms}, nil
	}
	return profile, nil
}

// UpdateProfile creates or replaces the user's profile.
func (s *Service) UpdateProfile(ctx context.Context, userID string, input UpdateProfileInput) (*Profile, error) {
	existing, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	profile := Profile{
		UserID:       userID,
		DisplayName:  input.DisplayName,
		Bio:          input.Bio,
		Units:        input.Units,
		BodyweightKg: input.BodyweightKg,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if profile.Units == "" {
		profile.Units = UnitsKilograms
	}
	if existing != nil {
		profile.CreatedAt = existing.CreatedAt
	}

	if err := s.repo.UpsertProfile(ctx, profile); err != nil {
		return nil, err
	}
	return &profile, nil
}
