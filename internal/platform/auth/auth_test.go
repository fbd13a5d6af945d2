package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

var testConfig = Config{Secret: "test-secret", Issuer: "https://auth.fittrack.test/auth/v1", Audience: RoleAuthenticated}

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub":   "2b7c4b1e-5c36-4c39-9d53-6c2b8c0b6f11",
		"email": "Lifter@Example.com",
		"role":  RoleAuthenticated,
		"aud":   RoleAuthenticated,
		"iss":   testConfig.Issuer,
		"exp":   time.Now().Add(time.Hour).Unix(),
	}
}

func TestParseValidToken(t *testing.T) {
	claims, err := Parse(signToken(t, testConfig.Secret, validClaims()), testConfig)
	require.NoError(t, err)
	require.Equal(t, "2b7c4b1e-5c36-4c39-9d53-6c2b8c0b6f11", claims.UserID())
	require.Equal(t, "lifter@example.com", claims.Email)
	require.True(t, claims.HasRole(RoleAuthenticated))
	require.Contains(t, claims.Audience, RoleAuthenticated)
}

func TestParseRejectsBadTokens(t *testing.T) {
	expired := validClaims()
	expired["exp"] = time.Now().Add(-time.Minute).Unix()

	wrongAudience := validClaims()
	wrongAudience["aud"] = "anon"

	noSubject := validClaims()
	delete(noSubject, "sub")

	noExpiry := validClaims()
	delete(noExpiry, "exp")

	serviceSubject := validClaims()
	serviceSubject["sub"] = "cron-worker"

	urnSubject := validClaims()
	urnSubject["sub"] = "urn:uuid:2b7c4b1e-5c36-4c39-9d53-6c2b8c0b6f11"

	cases := map[string]string{
		"expired":        signToken(t, testConfig.Secret, expired),
		"wrong audience": signToken(t, testConfig.Secret, wrongAudience),
		"no subject":     signToken(t, testConfig.Secret, noSubject),
		"no expiry":      signToken(t, testConfig.Secret, noExpiry),
		"non-uuid sub":   signToken(t, testConfig.Secret, serviceSubject),
		"urn sub":        signToken(t, testConfig.Secret, urnSubject),
		"wrong secret":   signToken(t, "other-secret", validClaims()),
		"garbage":        "not-a-jwt",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(token, testConfig)
			require.ErrorIs(t, err, ErrInvalidToken)
		})
	}

	_, err := Parse("  ", testConfig)
	require.ErrorIs(t, err, ErrMissingToken)
}

func TestMiddlewareRejectsMissingToken(t *testing.T) {
	called := false
	mw := NewMiddleware(testConfig, SkipPaths("/healthz"))
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/workouts", nil))

	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.False(t, called)
	require.JSONEq(t, `{"success":false,"type":"unauthorized","detail":"missing bearer token"}`, rr.Body.String())
}

func TestMiddlewareStoresClaimsAndHonoursSkipper(t *testing.T) {
	var seen *Claims
	mw := NewMiddleware(testConfig, SkipPaths("/healthz"))
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/workouts", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testConfig.Secret, validClaims()))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.NotNil(t, seen)

	seen = nil
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Nil(t, seen)
}

func TestAuthenticateDefersRejectionToRequire(t *testing.T) {
	mw := NewMiddleware(testConfig, SkipPaths("/healthz"))

	var between []string
	record := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if claims, ok := FromContext(r.Context()); ok {
				between = append(between, claims.UserID())
			} else {
				between = append(between, "anonymous")
			}
			next.ServeHTTP(w, r)
		})
	}
	reached := 0
	handler := mw.Authenticate(record(mw.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached++
		w.WriteHeader(http.StatusNoContent)
	}))))

	forged := httptest.NewRequest(http.MethodGet, "/v1/workouts", nil)
	forged.Header.Set("Authorization", "Bearer "+signToken(t, "other-secret", validClaims()))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, forged)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.JSONEq(t, `{"success":false,"type":"unauthorized","detail":"invalid bearer token"}`, rr.Body.String())

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/workouts", nil))
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Contains(t, rr.Body.String(), "missing bearer token")

	valid := httptest.NewRequest(http.MethodGet, "/v1/workouts", nil)
	valid.Header.Set("Authorization", "Bearer "+signToken(t, testConfig.Secret, validClaims()))
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, valid)
	require.Equal(t, http.StatusNoContent, rr.Code)

	require.Equal(t, []string{"anonymous", "anonymous", "2b7c4b1e-5c36-4c39-9d53-6c2b8c0b6f11"}, between)
	require.Equal(t, 1, reached)
}

func TestRequireParsesWhenUsedAlone(t *testing.T) {
	mw := NewMiddleware(testConfig, nil)
	handler := mw.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := FromContext(r.Context())
		require.True(t, ok)
		require.Equal(t, "2b7c4b1e-5c36-4c39-9d53-6c2b8c0b6f11", claims.UserID())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/profile", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testConfig.Secret, validClaims()))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNoContent, rr.Code)
}
