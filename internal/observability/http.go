package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fittrack",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests served, labeled by method, route and status code.",
	}, []string{"method", "route", "status"})
	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fittrack",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency, labeled by method and route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
)

func init() {
	prometheus.MustRegister(httpRequests, httpDuration)
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(p)
}

// HTTPMiddleware records request counts and latency per route.
func HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)
		if sw.status == 0 {
			sw.status = http.StatusOK
		}

		route := Route(r.URL.Path)
		httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(sw.status)).Inc()
		httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// RouteOther labels every path that does not match a registered route.
const RouteOther = "other"

var knownRoutes = map[string]struct{}{
	"/healthz":                   {},
	"/metrics":                   {},
	"/v1/profile":                {},
	"/v1/workouts":               {},
	"/v1/workouts/{id}":          {},
	"/v1/stats/volume":           {},
	"/v1/stats/personal-records": {},
	"/v1/programs":               {},
	"/v1/programs/following":     {},
	"/v1/programs/{id}":          {},
	"/v1/programs/{id}/follow":   {},
	"/v1/billing/entitlements":   {},
	"/v1/billing/checkout":       {},
	"/v1/billing/portal":         {},
	"/v1/billing/webhook":        {},
}

// Route collapses path parameters so label cardinality stays bounded, e.g.
// /v1/workouts/<uuid> becomes /v1/workouts/{id}. Unknown paths map to
// RouteOther.
func Route(path string) string {
	route := collapse(path)
	if _, ok := knownRoutes[route]; ok {
		return route
	}
	return RouteOther
}

func collapse(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) < 3 || segments[0] != "v1" {
		return path
	}
	switch segments[1] {
	case "workouts":
		segments[2] = "{id}"
	case "programs":
		if segments[2] != "following" {
			segments[2] = "{id}"
		}
	default:
		return path
	}
	return "/" + strings.Join(segments, "/")
}
