package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"example.com/fittrack/internal/platform/auth"
)

var testPolicies = Policies{
	Read:    Policy{Name: "read", Limit: 5, Window: time.Minute},
	Write:   Policy{Name: "write", Limit: 1, Window: time.Minute},
	Billing: Policy{Name: "billing", Limit: 1, Window: time.Minute},
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddlewareReturns429WhenExceeded(t *testing.T) {
	limiter := NewLimiter(NewMemoryStore(WithSweepProbability(0)))
	handler := Middleware(limiter, DefaultClassifier(testPolicies), zap.NewNop())(okHandler())

	before := testutil.ToFloat64(rejectedCounter.WithLabelValues("write"))

	newReq := func() *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/v1/workouts", nil)
		return req.WithContext(auth.WithClaims(req.Context(), &auth.Claims{Subject: "user-1"}))
	}

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, newReq())
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "1", rr.Header().Get("X-RateLimit-Limit"))
	require.Equal(t, "0", rr.Header().Get("X-RateLimit-Remaining"))

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, newReq())
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	require.NotEmpty(t, rr.Header().Get("Retry-After"))
	require.JSONEq(t, `{"success":false,"type":"rate_limited","detail":"too many requests, retry later"}`, rr.Body.String())

	require.InDelta(t, before+1, testutil.ToFloat64(rejectedCounter.WithLabelValues("write")), 0.0001)
}

func TestMiddlewareExemptsHealthAndSplitsByClient(t *testing.T) {
	limiter := NewLimiter(NewMemoryStore(WithSweepProbability(0)))
	handler := Middleware(limiter, DefaultClassifier(testPolicies), zap.NewNop())(okHandler())

	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		require.Empty(t, rr.Header().Get("X-RateLimit-Limit"))
	}

	first := httptest.NewRequest(http.MethodPost, "/v1/billing/checkout", nil)
	first.RemoteAddr = "10.0.0.1:5555"
	second := httptest.NewRequest(http.MethodPost, "/v1/billing/checkout", nil)
	second.RemoteAddr = "10.0.0.2:5555"

	for _, req := range []*http.Request{first, second} {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		require.Equal(t, http.StatusOK, rr.Code)
	}
}

func TestMiddlewareExemptsBillingWebhook(t *testing.T) {
	limiter := NewLimiter(NewMemoryStore(WithSweepProbability(0)))
	handler := Middleware(limiter, DefaultClassifier(testPolicies), zap.NewNop())(okHandler())

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodPost, "/v1/billing/webhook", nil)
		req.RemoteAddr = "198.51.100.4:443"
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		require.Equal(t, http.StatusOK, rr.Code)
		require.Empty(t, rr.Header().Get("X-RateLimit-Limit"))
	}

	for i, code := range []int{http.StatusOK, http.StatusTooManyRequests} {
		req := httptest.NewRequest(http.MethodPost, "/v1/billing/portal", nil)
		req.RemoteAddr = "198.51.100.4:443"
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		require.Equal(t, code, rr.Code, "request %d", i)
	}
}

type failingStore struct{}

func (failingStore) Hit(context.Context, string, time.Duration) (int, time.Time, error) {
	return 0, time.Time{}, errors.New("redis down")
}

func TestMiddlewareFailsOpen(t *testing.T) {
	handler := Middleware(NewLimiter(failingStore{}), DefaultClassifier(testPolicies), zap.NewNop())(okHandler())
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/programs", nil))
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestClientKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.10:1234"
	require.Equal(t, "ip:192.0.2.10", ClientKey(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	require.Equal(t, "ip:203.0.113.7", ClientKey(req))

	req = req.WithContext(auth.WithClaims(context.Background(), &auth.Claims{Subject: "u-1"}))
	require.Equal(t, "user:u-1", ClientKey(req))
}
