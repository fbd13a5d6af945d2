package api

import (
	"net/http"
	"strconv"
	"strings"

	"example.com/fittrack/internal/audit"
	"example.com/fittrack/internal/persistence"
	"example.com/fittrack/internal/validation"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	defaultStatDays = 30
	maxStatDays     = 365
)

func (h *Handler) workouts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listWorkouts(w, r)
	case http.MethodPost:
		h.logWorkout(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (h *Handler) workoutByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/workouts/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "not_found", "resource not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.getWorkout(w, r, id)
	case http.MethodDelete:
		h.deleteWorkout(w, r, id)
	default:
		methodNotAllowed(w)
	}
}

func (h *Handler) logWorkout(w http.ResponseWriter, r *http.Request) {
	claims, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req LogWorkoutRequest
	if !decode(w, r, &req) {
		return
	}
	req.Normalize()
	if err := req.Validate(h.now()); err != nil {
		writeValidation(w, err)
		return
	}

	workout, records, err := h.service.LogWorkout(r.Context(), claims.UserID(), req.toInput())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	h.record(r, audit.ActionWorkoutLogged, claims.UserID(), "workout", workout.ID, map[string]any{
		"sets":             len(workout.Sets),
		"personal_records": len(records),
	})
	writeJSON(w, http.StatusCreated, LogWorkoutResponse{
		Workout:         toWorkoutView(*workout),
		PersonalRecords: toRecordViews(records),
	})
}

func (h *Handler) getWorkout(w http.ResponseWriter, r *http.Request, id string) {
	claims, ok := currentUser(w, r)
	if !ok {
		return
	}
	if !validation.IsUUID(id) {
		writeError(w, http.StatusBadRequest, "validation_failed", "id must be a valid UUID")
		return
	}

	workout, err := h.service.GetWorkout(r.Context(), claims.UserID(), id)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWorkoutView(*workout))
}

func (h *Handler) deleteWorkout(w http.ResponseWriter, r *http.Request, id string) {
	claims, ok := currentUser(w, r)
	if !ok {
		return
	}
	if !validation.IsUUID(id) {
		writeError(w, http.StatusBadRequest, "validation_failed", "id must be a valid UUID")
		return
	}

	if err := h.service.DeleteWorkout(r.Context(), claims.UserID(), id); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.record(r, audit.ActionWorkoutDeleted, claims.UserID(), "workout", id, nil)
	writeJSON(w, http.StatusOK, map[string]string{"workout_id": id, "status": "deleted"})
}

func (h *Handler) listWorkouts(w http.ResponseWriter, r *http.Request) {
	claims, ok := currentUser(w, r)
	if !ok {
		return
	}

	limit := defaultPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "validation_failed", "limit must be a positive integer")
			return
		}
		limit = min(parsed, maxPageSize)
	}

	cursor, err := persistence.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return
	}

	workouts, next, err := h.service.ListWorkouts(r.Context(), claims.UserID(), cursor, limit)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	items := make([]WorkoutView, 0, len(workouts))
	for _, workout := range workouts {
		items = append(items, toWorkoutView(workout))
	}
	writeJSON(w, http.StatusOK, ListWorkoutsResponse{
		Items:      items,
		NextCursor: persistence.EncodeCursor(next),
	})
}

func (h *Handler) volumeStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	claims, ok := currentUser(w, r)
	if !ok {
		return
	}

	days := defaultStatDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxStatDays {
			writeError(w, http.StatusBadRequest, "validation_failed", "days must be between 1 and 365")
			return
		}
		days = parsed
	}

	summary, err := h.service.VolumeSummary(r.Context(), claims.UserID(), days)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toVolumeView(days, summary))
}

func (h *Handler) personalRecords(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	claims, ok := currentUser(w, r)
	if !ok {
		return
	}

	records, err := h.service.PersonalRecords(r.Context(), claims.UserID())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": toRecordViews(records)})
}
