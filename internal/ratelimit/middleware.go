package ratelimit

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"example.com/fittrack/internal/platform/auth"
)

var rejectedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "fittrack",
	Subsystem: "ratelimit",
	Name:      "rejected_total",
	Help:      "Requests rejected with 429, labeled by policy.",
}, []string{"policy"})

func init() {
	prometheus.MustRegister(rejectedCounter)
}

// Classifier selects the policy that applies to a request. Returning ok=false
// exempts the request from limiting.
type Classifier func(r *http.Request) (policy Policy, ok bool)

// Policies groups the per-class limits used by DefaultClassifier.
type Policies struct {
	Read    Policy
	Write   Policy
	Billing Policy
}

// DefaultClassifier limits billing endpoints separately and splits the rest
// into reads and writes. Health checks, metrics and the signed provider
// webhook are exempt: webhook deliveries share a handful of provider IPs and
// a 429 there drops subscription updates.
func DefaultClassifier(p Policies) Classifier {
	return func(r *http.Request) (Policy, bool) {
		switch {
		case r.Method == http.MethodOptions, r.URL.Path == "/healthz", r.URL.Path == "/metrics",
			r.URL.Path == "/v1/billing/webhook":
			return Policy{}, false
		case strings.HasPrefix(r.URL.Path, "/v1/billing/"):
			return p.Billing, true
		case r.Method == http.MethodGet || r.Method == http.MethodHead:
			return p.Read, true
		default:
			return p.Write, true
		}
	}
}

// Middleware enforces limits on requests selected by classify.
func Middleware(limiter *Limiter, classify Classifier, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			policy, ok := classify(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			key := ClientKey(r)
			decision, err := limiter.Allow(r.Context(), policy, key)
			if err != nil {
				logger.Warn("rate limiter unavailable, allowing request",
					zap.String("policy", policy.Name), zap.String("key", key), zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))

			if !decision.Allowed {
				rejectedCounter.WithLabelValues(policy.Name).Inc()
				logger.Info("rate limit exceeded",
					zap.String("policy", policy.Name), zap.String("key", key), zap.String("path", r.URL.Path))
				h.Set("Retry-After", strconv.Itoa(decision.RetryAfter(time.Now())))
				h.Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"success": false,
					"type":    "rate_limited",
					"detail":  "too many requests, retry later",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientKey identifies the caller: the authenticated user when present,
// otherwise the first X-Forwarded-For hop or the remote address.
func ClientKey(r *http.Request) string {
	if claims, ok := auth.FromContext(r.Context()); ok && claims.UserID() != "" {
		return "user:" + claims.UserID()
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first := strings.TrimSpace(strings.Split(fwd, ",")[0])
		if first != "" {
			return "ip:" + first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
