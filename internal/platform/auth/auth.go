// Package auth verifies access tokens issued by the managed auth service.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// RoleAuthenticated is the role the auth service stamps on signed-in users.
const RoleAuthenticated = "authenticated"

// Config holds token verification parameters.
type Config struct {
	Secret   string
	Issuer   string
	Audience string
}

// Claims represents the payload extracted from an access token.
type Claims struct {
	Subject   string
	Email     string
	Role      string
	Audience  []string
	ExpiresAt time.Time
}

// ErrMissingToken is returned when the Authorization header is absent.
var ErrMissingToken = errors.New("missing bearer token")

// ErrInvalidToken wraps parsing/validation errors.
var ErrInvalidToken = errors.New("invalid bearer token")

// Parse validates a JWT and returns normalized claims.
func Parse(token string, cfg Config) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMissingToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(cfg.Secret), nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return nil, ErrInvalidToken
	}
	if _, err := uuid.Parse(subject); err != nil || len(subject) != 36 {
		return nil, fmt.Errorf("%w: subject is not a user id", ErrInvalidToken)
	}
	email, _ := claims["email"].(string)
	role, _ := claims["role"].(string)

	audience, err := claims.GetAudience()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, ErrInvalidToken
	}

	return &Claims{
		Subject:   subject,
		Email:     strings.ToLower(strings.TrimSpace(email)),
		Role:      role,
		Audience:  []string(audience),
		ExpiresAt: exp.Time,
	}, nil
}

// UserID returns the subject, which the auth service sets to the user's UUID.
func (c *Claims) UserID() string {
	if c == nil {
		return ""
	}
	return c.Subject
}

// HasRole reports whether the claim set carries the provided role.
func (c *Claims) HasRole(role string) bool {
	if c == nil {
		return false
	}
	return c.Role == role
}
