package domain

import (
	"context"
	"time"
)

// Program is a multi-week training plan from the catalog.
type Program struct {
	ID          string
	Slug        string
	Title       string
	Description string
	Weeks       int
	Premium     bool
	CreatedAt   time.Time
}

// Enrollment records that a user follows a program.
type Enrollment struct {
	UserID    string
	ProgramID string
	StartedAt time.Time
}

// ListPrograms returns the program catalog.
func (s *Service) ListPrograms(ctx context.Context) ([]Program, error) {
	return s.repo.ListPrograms(ctx)
}

// GetProgram looks a program up by id or slug.
func (s *Service) GetProgram(ctx context.Context, idOrSlug string) (*Program, error) {
	program, err := s.repo.GetProgram(ctx, idOrSlug)
	if err != nil {
		return nil, err
	}
	if program == nil {
		return nil, ErrProgramNotFound
	}
	return program, nil
}

// FollowProgram enrolls the user. Premium programs need an active Pro entitlement.
func (s *Service) FollowProgram(ctx context.Context, userID, programID string) (*Enrollment, error) {
	program, err := s.GetProgram(ctx, programID)
	if err != nil {
		return nil, err
	}

	if program.Premium {
		pro, err := s.IsPro(ctx, userID)
		if err != nil {
			return nil, err
		}
		if !pro {
			return nil, ErrUpgradeRequired
		}
	}

	enrollment := Enrollment{UserID: userID, ProgramID: program.ID, StartedAt: s.clock()}
	if err := s.repo.CreateEnrollment(ctx, enrollment); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// UnfollowProgram removes the user's enrollment.
func (s *Service) UnfollowProgram(ctx context.Context, userID, programID string) error {
	program, err := s.GetProgram(ctx, programID)
	if err != nil {
		return err
	}
	deleted, err := s.repo.DeleteEnrollment(ctx, userID, program.ID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrNotFollowing
	}
	return nil
}

// ListEnrollments returns the programs the user follows.
func (s *Service) ListEnrollments(ctx context.Context, userID string) ([]Enrollment, error) {
	return s.repo.ListEnrollments(ctx, userID)
}
