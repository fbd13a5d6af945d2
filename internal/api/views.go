package api

import (
	"time"

	"example.com/fittrack/internal/domain"
)

// ProfileView is the JSON shape of a profile.
type ProfileView struct {
	UserID       string     `json:"user_id"`
	DisplayName  string     `json:"display_name"`
	Bio          string     `json:"bio"`
	Units        string     `json:"units"`
	BodyweightKg *float64   `json:"bodyweight_kg,omitempty"`
	CreatedAt    *time.Time `json:"created_at,omitempty"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
}

func toProfileView(p domain.Profile) ProfileView {
	view := ProfileView{
		UserID:       p.UserID,
		DisplayName:  p.DisplayName,
		Bio:          p.Bio,
		Units:        p.Units,
		BodyweightKg: p.BodyweightKg,
	}
	if !p.CreatedAt.IsZero() {
		view.CreatedAt = &p.CreatedAt
		view.UpdatedAt = &p.UpdatedAt
	}
	return view
}

// WorkoutView exposes full details about a workout.
type WorkoutView struct {
	WorkoutID   string    `json:"workout_id"`
	Title       string    `json:"title"`
	Notes       string    `json:"notes,omitempty"`
	PerformedAt time.Time `json:"performed_at"`
	DurationMin int       `json:"duration_min"`
	Volume      float64   `json:"volume"`
	Sets        []SetView `json:"sets"`
	CreatedAt   time.Time `json:"created_at"`
}

// SetView is one set inside WorkoutView.
type SetView struct {
	SetID        string   `json:"set_id"`
	SetIndex     int      `json:"set_index"`
	ExerciseName string   `json:"exercise_name"`
	Reps         int      `json:"reps"`
	WeightKg     float64  `json:"weight_kg"`
	RPE          *float64 `json:"rpe,omitempty"`
}

func toWorkoutView(w domain.Workout) WorkoutView {
	view := WorkoutView{
		WorkoutID:   w.ID,
		Title:       w.Title,
		Notes:       w.Notes,
		PerformedAt: w.PerformedAt,
		DurationMin: w.DurationMin,
		Volume:      w.Volume(),
		Sets:        make([]SetView, 0, len(w.Sets)),
		CreatedAt:   w.CreatedAt,
	}
	for _, s := range w.Sets {
		view.Sets = append(view.Sets, SetView{
			SetID:        s.ID,
			SetIndex:     s.SetIndex,
			ExerciseName: s.ExerciseName,
			Reps:         s.Reps,
			WeightKg:     s.WeightKg,
			RPE:          s.RPE,
		})
	}
	return view
}

// LogWorkoutResponse describes the response body for POST /v1/workouts.
type LogWorkoutResponse struct {
	Workout         WorkoutView          `json:"workout"`
	PersonalRecords []PersonalRecordView `json:"personal_records"`
}

// ListWorkoutsResponse packages list results.
type ListWorkoutsResponse struct {
	Items      []WorkoutView `json:"items"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

// PersonalRecordView is the JSON shape of a personal record.
type PersonalRecordView struct {
	ExerciseName   string    `json:"exercise_name"`
	WeightKg       float64   `json:"weight_kg"`
	Reps           int       `json:"reps"`
	WorkoutID      string    `json:"workout_id"`
	AchievedAt     time.Time `json:"achieved_at"`
	PreviousBestKg float64   `json:"previous_best_kg,omitempty"`
}

func toRecordViews(records []domain.PersonalRecord) []PersonalRecordView {
	out := make([]PersonalRecordView, 0, len(records))
	for _, pr := range records {
		out = append(out, PersonalRecordView{
			ExerciseName:   pr.ExerciseName,
			WeightKg:       pr.WeightKg,
			Reps:           pr.Reps,
			WorkoutID:      pr.WorkoutID,
			AchievedAt:     pr.AchievedAt,
			PreviousBestKg: pr.PreviousBestKg,
		})
	}
	return out
}

// VolumeView is the JSON shape of a volume summary.
type VolumeView struct {
	Days         int                  `json:"days"`
	Since        time.Time            `json:"since"`
	Until        time.Time            `json:"until"`
	TotalVolume  float64              `json:"total_volume"`
	TotalSets    int                  `json:"total_sets"`
	TotalReps    int                  `json:"total_reps"`
	WorkoutCount int                  `json:"workout_count"`
	ByExercise   []ExerciseVolumeView `json:"by_exercise"`
}

// ExerciseVolumeView is one per-exercise row of VolumeView.
type ExerciseVolumeView struct {
	ExerciseName string  `json:"exercise_name"`
	Volume       float64 `json:"volume"`
	Sets         int     `json:"sets"`
	Reps         int     `json:"reps"`
}

func toVolumeView(days int, v domain.VolumeSummary) VolumeView {
	view := VolumeView{
		Days:         days,
		Since:        v.Since,
		Until:        v.Until,
		TotalVolume:  v.TotalVolume,
		TotalSets:    v.TotalSets,
		TotalReps:    v.TotalReps,
		WorkoutCount: v.WorkoutCount,
		ByExercise:   make([]ExerciseVolumeView, 0, len(v.ByExercise)),
	}
	for _, e := range v.ByExercise {
		view.ByExercise = append(view.ByExercise, ExerciseVolumeView(e))
	}
	return view
}

// ProgramView is the JSON shape of a catalog program.
type ProgramView struct {
	ProgramID   string `json:"program_id"`
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Weeks       int    `json:"weeks"`
	Premium     bool   `json:"premium"`
}

func toProgramView(p domain.Program) ProgramView {
	return ProgramView{
		ProgramID:   p.ID,
		Slug:        p.Slug,
		Title:       p.Title,
		Description: p.Description,
		Weeks:       p.Weeks,
		Premium:     p.Premium,
	}
}

// EnrollmentView is the JSON shape of a followed program.
type EnrollmentView struct {
	ProgramID string    `json:"program_id"`
	StartedAt time.Time `json:"started_at"`
}

// EntitlementView is the JSON shape of an entitlement.
type EntitlementView struct {
	Feature   string     `json:"feature"`
	Active    bool       `json:"active"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// EntitlementsResponse lists entitlements with a Pro shortcut.
type EntitlementsResponse struct {
	Pro          bool              `json:"pro"`
	Entitlements []EntitlementView `json:"entitlements"`
}

// URLResponse carries a provider-hosted page the client should open.
type URLResponse struct {
	URL string `json:"url"`
}

// WebhookResponse reports how a billing notification was handled.
type WebhookResponse struct {
	Applied bool   `json:"applied"`
	Reason  string `json:"reason,omitempty"`
}
