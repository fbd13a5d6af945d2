package api

import (
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"example.com/fittrack/internal/audit"
	"example.com/fittrack/internal/billing"
	"example.com/fittrack/internal/domain"
	"example.com/fittrack/internal/observability"
	"example.com/fittrack/internal/validation"
)

const defaultCheckoutReturnPath = "/settings/billing?checkout=success"

func (h *Handler) entitlements(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	claims, ok := currentUser(w, r)
	if !ok {
		return
	}

	entitlements, err := h.service.Entitlements(r.Context(), claims.UserID())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	resp := EntitlementsResponse{Entitlements: make([]EntitlementView, 0, len(entitlements))}
	for _, e := range entitlements {
		if e.Feature == domain.FeaturePro && e.Active {
			resp.Pro = true
		}
		resp.Entitlements = append(resp.Entitlements, EntitlementView{
			Feature:   e.Feature,
			Active:    e.Active,
			ExpiresAt: e.ExpiresAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	claims, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req CheckoutRequest
	if r.ContentLength != 0 {
		if !decode(w, r, &req) {
			return
		}
	}
	if err := req.Validate(); err != nil {
		writeValidation(w, err)
		return
	}
	path := req.RedirectPath
	if path == "" {
		path = defaultCheckoutReturnPath
	}

	url, err := h.service.StartCheckout(r.Context(), claims.UserID(), claims.Email, h.appBaseURL+path)
	if err != nil {
		h.writeBillingError(w, r, err)
		return
	}
	h.record(r, audit.ActionCheckoutStarted, claims.UserID(), "subscription", "", nil)
	writeJSON(w, http.StatusOK, URLResponse{URL: url})
}

func (h *Handler) portal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	claims, ok := currentUser(w, r)
	if !ok {
		return
	}

	url, err := h.service.PortalURL(r.Context(), claims.UserID())
	if err != nil {
		h.writeBillingError(w, r, err)
		return
	}
	h.record(r, audit.ActionPortalOpened, claims.UserID(), "subscription", "", nil)
	writeJSON(w, http.StatusOK, URLResponse{URL: url})
}

func (h *Handler) writeBillingError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *billing.APIError
	if errors.As(err, &apiErr) {
		h.logger.Warn("billing provider request failed", zap.Int("status", apiErr.StatusCode), zap.Error(err))
		writeError(w, http.StatusBadGateway, "billing_provider_error", "billing provider request failed")
		return
	}
	if errors.Is(err, billing.ErrProviderUnavailable) {
		h.logger.Warn("billing provider unreachable", zap.Error(err))
		writeError(w, http.StatusBadGateway, "billing_provider_error", "billing provider request failed")
		return
	}
	h.writeDomainError(w, r, err)
}

// billingWebhook applies provider notifications. It is not behind bearer auth;
// the HMAC signature authenticates the sender. Anything that a retry cannot fix
// is acknowledged with 200 so the provider stops redelivering it.
func (h *Handler) billingWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if h.webhookSecret == "" {
		writeError(w, http.StatusServiceUnavailable, "billing_unavailable", domain.ErrBillingUnavailable.Error())
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, validation.DefaultMaxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to read body")
		return
	}

	if err := billing.VerifySignature(h.webhookSecret, body, r.Header.Get(billing.SignatureHeader)); err != nil {
		observability.RecordBillingEvent("rejected", h.now())
		h.record(r, audit.ActionWebhookRejected, "", "subscription", "", map[string]any{"reason": err.Error()})
		writeError(w, http.StatusUnauthorized, "invalid_signature", err.Error())
		return
	}

	event, err := billing.ParseWebhook(body)
	switch {
	case errors.Is(err, billing.ErrIgnoredEvent):
		observability.RecordBillingEvent("ignored", h.now())
		writeJSON(w, http.StatusOK, WebhookResponse{Reason: "ignored_event"})
		return
	case err != nil:
		observability.RecordBillingEvent("rejected", h.now())
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	sub, applied, err := h.service.ApplyBillingEvent(r.Context(), event)
	switch {
	case errors.Is(err, domain.ErrUnlinkedSubscription):
		observability.RecordBillingEvent("unlinked", h.now())
		h.logger.Warn("billing event without linked user",
			zap.String("event", event.Name),
			zap.String("subscription_id", event.ProviderSubscriptionID))
		writeJSON(w, http.StatusOK, WebhookResponse{Reason: "unlinked_subscription"})
		return
	case err != nil:
		observability.RecordBillingEvent("failed", h.now())
		h.writeDomainError(w, r, err)
		return
	case !applied:
		observability.RecordBillingEvent("stale", h.now())
		writeJSON(w, http.StatusOK, WebhookResponse{Reason: "stale_event"})
		return
	}

	observability.RecordBillingEvent("applied", sub.UpdatedAt)
	h.record(r, audit.ActionBillingWebhook, sub.UserID, "subscription", sub.ProviderSubscriptionID, map[string]any{
		"event":  event.Name,
		"status": sub.Status,
	})
	writeJSON(w, http.StatusOK, WebhookResponse{Applied: true})
}
