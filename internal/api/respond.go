package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"example.com/fittrack/internal/domain"
	"example.com/fittrack/internal/validation"
)

type envelope struct {
	Success bool                    `json:"success"`
	Data    any                     `json:"data,omitempty"`
	Type    string                  `json:"type,omitempty"`
	Detail  string                  `json:"detail,omitempty"`
	Fields  []validation.FieldError `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{Success: true, Data: data}); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	writeEnvelope(w, status, envelope{Type: code, Detail: detail})
}

func writeEnvelope(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeValidation(w http.ResponseWriter, err error) {
	var verrs *validation.Errors
	if errors.As(err, &verrs) {
		writeEnvelope(w, http.StatusBadRequest, envelope{
			Type:   "validation_failed",
			Detail: verrs.Error(),
			Fields: verrs.Fields,
		})
		return
	}
	writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
}

// writeDomainError maps service errors onto HTTP statuses. Anything unknown is
// logged and reported as a generic server error.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrUpgradeRequired):
		writeError(w, http.StatusForbidden, "upgrade_required", err.Error())
	case errors.Is(err, domain.ErrAlreadyFollowing):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	case domain.IsNotFound(err), errors.Is(err, domain.ErrNotFollowing):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrBillingUnavailable):
		writeError(w, http.StatusServiceUnavailable, "billing_unavailable", err.Error())
	default:
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "server_error", "internal server error")
	}
}
