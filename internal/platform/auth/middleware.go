package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// Skipper allows callers to bypass authentication for specific requests.
type Skipper func(r *http.Request) bool

// SkipPaths builds a Skipper matching exact request paths.
func SkipPaths(paths ...string) Skipper {
	set := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		set[p] = struct{}{}
	}
	return func(r *http.Request) bool {
		if r.Method == http.MethodOptions {
			return true
		}
		_, ok := set[r.URL.Path]
		return ok
	}
}

// Middleware provides HTTP middleware for bearer-token validation.
type Middleware struct {
	Config  Config
	Skipper Skipper
}

// NewMiddleware constructs a middleware with optional skipper.
func NewMiddleware(cfg Config, skipper Skipper) Middleware {
	return Middleware{Config: cfg, Skipper: skipper}
}

// Wrap authenticates and rejects unauthenticated requests in one step.
func (m Middleware) Wrap(next http.Handler) http.Handler {
	return m.Authenticate(m.Require(next))
}

// Authenticate parses the bearer token and stores either the claims or the
// failure on the request context. It never rejects, so middleware placed
// between Authenticate and Require (rate limiting) sees the caller identity
// when there is one and still runs for anonymous or forged requests.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Skipper != nil && m.Skipper(r) {
			next.ServeHTTP(w, r)
			return
		}
		claims, err := m.parseRequest(r)
		ctx := r.Context()
		if err != nil {
			ctx = withAuthError(ctx, err)
		} else {
			ctx = WithClaims(ctx, claims)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Require rejects requests that carry no valid claims with 401. When
// Authenticate did not run first, the token is parsed here.
func (m Middleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Skipper != nil && m.Skipper(r) {
			next.ServeHTTP(w, r)
			return
		}
		if _, ok := FromContext(r.Context()); ok {
			next.ServeHTTP(w, r)
			return
		}

		err := authErrorFrom(r.Context())
		if err == nil {
			claims, parseErr := m.parseRequest(r)
			if parseErr == nil {
				next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
				return
			}
			err = parseErr
		}

		detail := "invalid bearer token"
		if errors.Is(err, ErrMissingToken) {
			detail = "missing bearer token"
		}
		unauthorized(w, detail)
	})
}

func (m Middleware) parseRequest(r *http.Request) (*Claims, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, ErrMissingToken
	}
	if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return nil, ErrInvalidToken
	}
	token := strings.TrimSpace(header[len("Bearer "):])
	return Parse(token, m.Config)
}

func unauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="fittrack"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"type":    "unauthorized",
		"detail":  detail,
	})
}
