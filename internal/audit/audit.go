// Package audit records security- and billing-relevant user actions.
package audit

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Actions recorded by the API.
const (
	ActionProfileUpdated    = "profile.updated"
	ActionWorkoutLogged     = "workout.logged"
	ActionWorkoutDeleted    = "workout.deleted"
	ActionProgramFollowed   = "program.followed"
	ActionProgramUnfollowed = "program.unfollowed"
	ActionCheckoutStarted   = "billing.checkout_started"
	ActionPortalOpened      = "billing.portal_opened"
	ActionBillingWebhook    = "billing.webhook_applied"
	ActionWebhookRejected   = "billing.webhook_rejected"
)

// EventActionPrefix marks audit rows projected from consumed domain events,
// keeping them apart from the rows the API writes for the same change.
const EventActionPrefix = "event."

// Event is a single audit record.
type Event struct {
	Action       string         `json:"action"`
	ActorID      string         `json:"actor_id,omitempty"`
	ResourceType string         `json:"resource_type,omitempty"`
	ResourceID   string         `json:"resource_id,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	IP           string         `json:"ip,omitempty"`
	UserAgent    string         `json:"user_agent,omitempty"`
	OccurredAt   time.Time      `json:"occurred_at"`
}

// Sink persists audit events.
type Sink interface {
	Write(ctx context.Context, event Event) error
}

var fallbackCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "fittrack",
	Subsystem: "audit",
	Name:      "fallback_total",
	Help:      "Audit events written to the console instead of the sink, labeled by reason.",
}, []string{"reason"})

func init() {
	prometheus.MustRegister(fallbackCounter)
}

// Logger writes audit events to a Sink and falls back to the console logger
// when the sink is absent, disabled or failing.
type Logger struct {
	sink    Sink
	logger  *zap.Logger
	enabled bool
	now     func() time.Time
}

// NewLogger constructs a Logger. A nil sink sends every event to the console.
func NewLogger(sink Sink, logger *zap.Logger, enabled bool) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{sink: sink, logger: logger.Named("audit"), enabled: enabled, now: time.Now}
}

// Record stores event. Failures are logged and never surfaced to the caller.
func (l *Logger) Record(ctx context.Context, event Event) {
	if l == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = l.now().UTC()
	}

	switch {
	case !l.enabled:
		l.console(event, "disabled", nil)
	case l.sink == nil:
		l.console(event, "no_sink", nil)
	default:
		if err := l.sink.Write(ctx, event); err != nil {
			l.console(event, "sink_error", err)
		}
	}
}

func (l *Logger) console(event Event, reason string, err error) {
	fallbackCounter.WithLabelValues(reason).Inc()
	fields := []zap.Field{
		zap.String("action", event.Action),
		zap.String("actor_id", event.ActorID),
		zap.String("resource_type", event.ResourceType),
		zap.String("resource_id", event.ResourceID),
		zap.Any("metadata", event.Metadata),
		zap.String("ip", event.IP),
		zap.String("user_agent", event.UserAgent),
		zap.Time("occurred_at", event.OccurredAt),
		zap.String("fallback_reason", reason),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
		l.logger.Warn("audit event", fields...)
		return
	}
	l.logger.Info("audit event", fields...)
}

// FromRequest fills the client address and user agent of a new event.
func FromRequest(r *http.Request, action, actorID string) Event {
	return Event{
		Action:    action,
		ActorID:   actorID,
		IP:        clientIP(r),
		UserAgent: truncate(r.UserAgent(), 512),
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first := strings.TrimSpace(strings.Split(fwd, ",")[0]); first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
