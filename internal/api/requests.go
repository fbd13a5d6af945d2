package api

import (
	"strconv"
	"time"

	"example.com/fittrack/internal/domain"
	"example.com/fittrack/internal/validation"
)

const (
	maxSetsPerWorkout = 100
	maxFutureSkew     = 24 * time.Hour
)

// UpdateProfileRequest is the payload for PUT /v1/profile.
type UpdateProfileRequest struct {
	DisplayName  string   `json:"display_name"`
	Bio          string   `json:"bio"`
	Units        string   `json:"units"`
	BodyweightKg *float64 `json:"bodyweight_kg"`
}

// Normalize strips markup and surrounding whitespace from the free-text
// fields. It runs before Validate so the bounds apply to what is stored.
func (r *UpdateProfileRequest) Normalize() {
	r.DisplayName = validation.SanitizeText(r.DisplayName)
	r.Bio = validation.SanitizeText(r.Bio)
}

// Validate ensures request correctness.
func (r UpdateProfileRequest) Validate() error {
	var errs validation.Errors
	validation.RequiredString(&errs, "display_name", r.DisplayName, 1, 50)
	validation.OptionalString(&errs, "bio", r.Bio, 500)
	if r.Units != "" {
		validation.OneOf(&errs, "units", r.Units, domain.UnitsKilograms, domain.UnitsPounds)
	}
	if r.BodyweightKg != nil {
		validation.FloatRange(&errs, "bodyweight_kg", *r.BodyweightKg, 20, 500)
	}
	return errs.Err()
}

func (r UpdateProfileRequest) toInput() domain.UpdateProfileInput {
	return domain.UpdateProfileInput{
		DisplayName:  r.DisplayName,
		Bio:          r.Bio,
		Units:        r.Units,
		BodyweightKg: r.BodyweightKg,
	}
}

// LogWorkoutRequest is the payload for POST /v1/workouts.
type LogWorkoutRequest struct {
	Title       string          `json:"title"`
	Notes       string          `json:"notes"`
	PerformedAt time.Time       `json:"performed_at"`
	DurationMin int             `json:"duration_min"`
	Sets        []LogSetRequest `json:"sets"`
}

// LogSetRequest is one set inside LogWorkoutRequest.
type LogSetRequest struct {
	ExerciseName string   `json:"exercise_name"`
	Reps         int      `json:"reps"`
	WeightKg     float64  `json:"weight_kg"`
	RPE          *float64 `json:"rpe"`
}

// Normalize sanitizes the title, notes and exercise names in place.
func (r *LogWorkoutRequest) Normalize() {
	r.Title = validation.SanitizeText(r.Title)
	r.Notes = validation.SanitizeText(r.Notes)
	for i := range r.Sets {
		r.Sets[i].ExerciseName = validation.SanitizeText(r.Sets[i].ExerciseName)
	}
}

// Validate ensures request correctness. now bounds how far in the future a
// workout may be dated.
func (r LogWorkoutRequest) Validate(now time.Time) error {
	var errs validation.Errors
	validation.RequiredString(&errs, "title", r.Title, 1, 100)
	validation.OptionalString(&errs, "notes", r.Notes, 2000)
	switch {
	case r.PerformedAt.IsZero():
		errs.Add("performed_at", "is required")
	case r.PerformedAt.After(now.Add(maxFutureSkew)):
		errs.Add("performed_at", "must not be in the future")
	}
	validation.IntRange(&errs, "duration_min", r.DurationMin, 0, 1440)
	if len(r.Sets) == 0 || len(r.Sets) > maxSetsPerWorkout {
		errs.Add("sets", "must contain between 1 and %d sets", maxSetsPerWorkout)
	}
	for i, set := range r.Sets {
		if i >= maxSetsPerWorkout {
			break
		}
		prefix := "sets[" + strconv.Itoa(i) + "]."
		validation.RequiredString(&errs, prefix+"exercise_name", set.ExerciseName, 1, 100)
		validation.IntRange(&errs, prefix+"reps", set.Reps, 1, 1000)
		validation.FloatRange(&errs, prefix+"weight_kg", set.WeightKg, 0, 1000)
		if set.RPE != nil {
			validation.FloatRange(&errs, prefix+"rpe", *set.RPE, 1, 10)
		}
	}
	return errs.Err()
}

func (r LogWorkoutRequest) toInput() domain.LogWorkoutInput {
	in := domain.LogWorkoutInput{
		Title:       r.Title,
		Notes:       r.Notes,
		PerformedAt: r.PerformedAt,
		DurationMin: r.DurationMin,
		Sets:        make([]domain.LogSetInput, 0, len(r.Sets)),
	}
	for _, set := range r.Sets {
		in.Sets = append(in.Sets, domain.LogSetInput{
			ExerciseName: set.ExerciseName,
			Reps:         set.Reps,
			WeightKg:     set.WeightKg,
			RPE:          set.RPE,
		})
	}
	return in
}

// CheckoutRequest is the optional payload for POST /v1/billing/checkout.
type CheckoutRequest struct {
	RedirectPath string `json:"redirect_path"`
}

// Validate ensures request correctness.
func (r CheckoutRequest) Validate() error {
	var errs validation.Errors
	validation.OptionalString(&errs, "redirect_path", r.RedirectPath, 200)
	if r.RedirectPath != "" && r.RedirectPath[0] != '/' {
		errs.Add("redirect_path", "must start with /")
	}
	return errs.Err()
}
