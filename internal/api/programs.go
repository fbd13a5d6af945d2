package api

import (
	"net/http"
	"strings"

	"example.com/fittrack/internal/audit"
)

func (h *Handler) programs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if _, ok := currentUser(w, r); !ok {
		return
	}

	programs, err := h.service.ListPrograms(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	items := make([]ProgramView, 0, len(programs))
	for _, p := range programs {
		items = append(items, toProgramView(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// programRoutes serves /v1/programs/following, /v1/programs/{id} and
// /v1/programs/{id}/follow.
func (h *Handler) programRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/programs/"), "/")
	parts := strings.Split(rest, "/")

	switch {
	case rest == "following":
		h.following(w, r)
	case len(parts) == 1 && parts[0] != "":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		h.getProgram(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "follow":
		switch r.Method {
		case http.MethodPost:
			h.followProgram(w, r, parts[0])
		case http.MethodDelete:
			h.unfollowProgram(w, r, parts[0])
		default:
			methodNotAllowed(w)
		}
	default:
		writeError(w, http.StatusNotFound, "not_found", "resource not found")
	}
}

func (h *Handler) getProgram(w http.ResponseWriter, r *http.Request, idOrSlug string) {
	if _, ok := currentUser(w, r); !ok {
		return
	}
	program, err := h.service.GetProgram(r.Context(), idOrSlug)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProgramView(*program))
}

func (h *Handler) followProgram(w http.ResponseWriter, r *http.Request, idOrSlug string) {
	claims, ok := currentUser(w, r)
	if !ok {
		return
	}
	enrollment, err := h.service.FollowProgram(r.Context(), claims.UserID(), idOrSlug)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.record(r, audit.ActionProgramFollowed, claims.UserID(), "program", enrollment.ProgramID, nil)
	writeJSON(w, http.StatusCreated, EnrollmentView{ProgramID: enrollment.ProgramID, StartedAt: enrollment.StartedAt})
}

func (h *Handler) unfollowProgram(w http.ResponseWriter, r *http.Request, idOrSlug string) {
	claims, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := h.service.UnfollowProgram(r.Context(), claims.UserID(), idOrSlug); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.record(r, audit.ActionProgramUnfollowed, claims.UserID(), "program", idOrSlug, nil)
	writeJSON(w, http.StatusOK, map[string]string{"program": idOrSlug, "status": "unfollowed"})
}

func (h *Handler) following(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	claims, ok := currentUser(w, r)
	if !ok {
		return
	}
	enrollments, err := h.service.ListEnrollments(r.Context(), claims.UserID())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	items := make([]EnrollmentView, 0, len(enrollments))
	for _, e := range enrollments {
		items = append(items, EnrollmentView{ProgramID: e.ProgramID, StartedAt: e.StartedAt})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}
