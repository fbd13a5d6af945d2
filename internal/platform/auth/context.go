package auth

import "context"

type contextKey string

const (
	claimsKey    contextKey = "fittrack-auth-claims"
	authErrorKey contextKey = "fittrack-auth-error"
)

// WithClaims stores claims on the context.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// FromContext retrieves claims stored by WithClaims.
func FromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*Claims)
	return claims, ok && claims != nil
}

func withAuthError(ctx context.Context, err error) context.Context {
	return context.WithValue(ctx, authErrorKey, err)
}

// authErrorFrom returns the failure recorded by Authenticate, or nil when
// Authenticate did not run or did not fail.
func authErrorFrom(ctx context.Context) error {
	err, _ := ctx.Value(authErrorKey).(error)
	return err
}
