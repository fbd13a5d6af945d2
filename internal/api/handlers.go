// Package api exposes the fittrack HTTP endpoints.
package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"example.com/fittrack/internal/audit"
	"example.com/fittrack/internal/domain"
	"example.com/fittrack/internal/platform/auth"
	"example.com/fittrack/internal/validation"
)

// Handler wires HTTP endpoints to the domain service.
type Handler struct {
	service       *domain.Service
	audit         *audit.Logger
	logger        *zap.Logger
	webhookSecret string
	appBaseURL    string
	now           func() time.Time
}

// Option customises a Handler.
type Option func(*Handler)

// WithWebhookSecret sets the shared secret used to verify billing webhooks.
// Without it the webhook endpoint answers 503.
func WithWebhookSecret(secret string) Option {
	return func(h *Handler) { h.webhookSecret = secret }
}

// WithAppBaseURL sets the front-end origin checkout redirects return to.
func WithAppBaseURL(base string) Option {
	return func(h *Handler) { h.appBaseURL = strings.TrimRight(base, "/") }
}

// NewHandler constructs a Handler.
func NewHandler(service *domain.Service, auditLog *audit.Logger, logger *zap.Logger, opts ...Option) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{
		service: service,
		audit:   auditLog,
		logger:  logger.Named("api"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes attaches handlers to mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", h.healthz)
	mux.HandleFunc("/v1/profile", h.profile)
	mux.HandleFunc("/v1/workouts", h.workouts)
	mux.HandleFunc("/v1/workouts/", h.workoutByID)
	mux.HandleFunc("/v1/stats/volume", h.volumeStats)
	mux.HandleFunc("/v1/stats/personal-records", h.personalRecords)
	mux.HandleFunc("/v1/programs", h.programs)
	mux.HandleFunc("/v1/programs/", h.programRoutes)
	mux.HandleFunc("/v1/billing/entitlements", h.entitlements)
	mux.HandleFunc("/v1/billing/checkout", h.checkout)
	mux.HandleFunc("/v1/billing/portal", h.portal)
	mux.HandleFunc("/v1/billing/webhook", h.billingWebhook)
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// currentUser returns the authenticated user or writes a 401.
func currentUser(w http.ResponseWriter, r *http.Request) (*auth.Claims, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok || claims.UserID() == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return nil, false
	}
	return claims, true
}

// decode reads a JSON body into dst and writes a 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := validation.DecodeJSON(w, r, dst, validation.DefaultMaxBodyBytes); err != nil {
		detail := "unable to parse body"
		if errors.Is(err, validation.ErrBodyTooLarge) {
			detail = err.Error()
		}
		writeError(w, http.StatusBadRequest, "invalid_request", detail)
		return false
	}
	return true
}

func (h *Handler) record(r *http.Request, action, actorID, resourceType, resourceID string, metadata map[string]any) {
	event := audit.FromRequest(r, action, actorID)
	event.ResourceType = resourceType
	event.ResourceID = resourceID
	event.Metadata = metadata
	h.audit.Record(r.Context(), event)
}

func (h *Handler) profile(w http.ResponseWriter, r *http.Request) {
	claims, ok := currentUser(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		profile, err := h.service.GetProfile(r.Context(), claims.UserID())
		if err != nil {
			h.writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toProfileView(*profile))
	case http.MethodPut:
		var req UpdateProfileRequest
		if !decode(w, r, &req) {
			return
		}
		req.Normalize()
		if err := req.Validate(); err != nil {
			writeValidation(w, err)
			return
		}
		profile, err := h.service.UpdateProfile(r.Context(), claims.UserID(), req.toInput())
		if err != nil {
			h.writeDomainError(w, r, err)
			return
		}
		h.record(r, audit.ActionProfileUpdated, claims.UserID(), "profile", claims.UserID(), map[string]any{
			"units": profile.Units,
		})
		writeJSON(w, http.StatusOK, toProfileView(*profile))
	default:
		methodNotAllowed(w)
	}
}
