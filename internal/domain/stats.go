package domain

import (
	"context"
	"sort"
	"strings"
	"time"
)

// SetRecord is a flattened set joined with its workout, used for aggregation.
type SetRecord struct {
	WorkoutID    string
	PerformedAt  time.Time
	ExerciseName string
	Reps         int
	WeightKg     float64
}

// ExerciseVolume is the volume lifted for one exercise.
type ExerciseVolume struct {
	ExerciseName string
	Volume       float64
	Sets         int
	Reps         int
}

// VolumeSummary aggregates training volume over a period.
type VolumeSummary struct {
	Since        time.Time
	Until        time.Time
	TotalVolume  float64
	TotalSets    int
	TotalReps    int
	WorkoutCount int
	ByExercise   []ExerciseVolume
}

// PersonalRecord is the heaviest set logged for an exercise.
type PersonalRecord struct {
	ExerciseName   string
	WeightKg       float64
	Reps           int
	WorkoutID      string
	AchievedAt     time.Time
	PreviousBestKg float64
}

// exerciseKey folds spelling differences so "Bench Press" and "bench press " match.
func exerciseKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// SummarizeVolume aggregates sets into a VolumeSummary. Per-exercise rows are
// ordered by volume descending, then name.
func SummarizeVolume(sets []SetRecord, since, until time.Time) VolumeSummary {
	summary := VolumeSummary{Since: since, Until: until}
	workouts := make(map[string]struct{})
	byKey := make(map[string]*ExerciseVolume)
	order := make([]string, 0)

	for _, set := range sets {
		volume := float64(set.Reps) * set.WeightKg
		summary.TotalVolume += volume
		summary.TotalSets++
		summary.TotalReps += set.Reps
		workouts[set.WorkoutID] = struct{}{}

		key := exerciseKey(set.ExerciseName)
		ev, ok := byKey[key]
		if !ok {
			ev = &ExerciseVolume{ExerciseName: strings.TrimSpace(set.ExerciseName)}
			byKey[key] = ev
			order = append(order, key)
		}
		ev.Volume += volume
		ev.Sets++
		ev.Reps += set.Reps
	}

	summary.WorkoutCount = len(workouts)
	summary.ByExercise = make([]ExerciseVolume, 0, len(order))
	for _, key := range order {
		summary.ByExercise = append(summary.ByExercise, *byKey[key])
	}
	sort.SliceStable(summary.ByExercise, func(i, j int) bool {
		a, b := summary.ByExercise[i], summary.ByExercise[j]
		if a.Volume != b.Volume {
			return a.Volume > b.Volume
		}
		return strings.ToLower(a.ExerciseName) < strings.ToLower(b.ExerciseName)
	})
	return summary
}

// PersonalRecords returns the max-weight set per exercise, ordered by name.
// Ties on weight go to the set with more reps, then to the earliest one.
func PersonalRecords(sets []SetRecord) []PersonalRecord {
	best := make(map[string]*PersonalRecord)
	for _, set := range sets {
		key := exerciseKey(set.ExerciseName)
		current, ok := best[key]
		if !ok {
			best[key] = &PersonalRecord{
				ExerciseName: strings.TrimSpace(set.ExerciseName),
				WeightKg:     set.WeightKg,
				Reps:         set.Reps,
				WorkoutID:    set.WorkoutID,
				AchievedAt:   set.PerformedAt,
			}
			continue
		}
		if beats(set, *current) {
			current.WeightKg = set.WeightKg
			current.Reps = set.Reps
			current.WorkoutID = set.WorkoutID
			current.AchievedAt = set.PerformedAt
		}
	}

	out := make([]PersonalRecord, 0, len(best))
	for _, pr := range best {
		out = append(out, *pr)
	}
	sort.Slice(out, func(i, j int) bool {
		return exerciseKey(out[i].ExerciseName) < exerciseKey(out[j].ExerciseName)
	})
	return out
}

func beats(set SetRecord, pr PersonalRecord) bool {
	switch {
	case set.WeightKg != pr.WeightKg:
		return set.WeightKg > pr.WeightKg
	case set.Reps != pr.Reps:
		return set.Reps > pr.Reps
	default:
		return set.PerformedAt.Before(pr.AchievedAt)
	}
}

// NewRecords compares the workout's heaviest set per exercise with the
// existing records and returns the ones it beats on weight. Exercises logged
// for the first time with a positive weight count as records.
func NewRecords(existing []PersonalRecord, workout Workout) []PersonalRecord {
	previous := make(map[string]PersonalRecord, len(existing))
	for _, pr := range existing {
		previous[exerciseKey(pr.ExerciseName)] = pr
	}

	sets := make([]SetRecord, 0, len(workout.Sets))
	for _, set := range workout.Sets {
		sets = append(sets, SetRecord{
			WorkoutID:    workout.ID,
			PerformedAt:  workout.PerformedAt,
			ExerciseName: set.ExerciseName,
			Reps:         set.Reps,
			WeightKg:     set.WeightKg,
		})
	}

	records := make([]PersonalRecord, 0)
	for _, candidate := range PersonalRecords(sets) {
		if candidate.WeightKg <= 0 {
			continue
		}
		prev, ok := previous[exerciseKey(candidate.ExerciseName)]
		if ok && candidate.WeightKg <= prev.WeightKg {
			continue
		}
		if ok {
			candidate.PreviousBestKg = prev.WeightKg
		}
		records = append(records, candidate)
	}
	return records
}

// VolumeSummary aggregates the user's training volume over the last days.
func (s *Service) VolumeSummary(ctx context.Context, userID string, days int) (VolumeSummary, error) {
	until := s.clock()
	since := until.AddDate(0, 0, -days)
	sets, err := s.repo.ListSets(ctx, userID, since, until)
	if err != nil {
		return VolumeSummary{}, err
	}
	return SummarizeVolume(sets, since, until), nil
}

// PersonalRecords returns the user's best set per exercise.
func (s *Service) PersonalRecords(ctx context.Context, userID string) ([]PersonalRecord, error) {
	sets, err := s.repo.ListSets(ctx, userID, time.Time{}, time.Time{})
	if err != nil {
		return nil, err
	}
	return PersonalRecords(sets), nil
}
