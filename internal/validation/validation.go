// Package validation holds the request-time field checks shared by the HTTP handlers.
package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
)

// DefaultMaxBodyBytes caps JSON request bodies.
const DefaultMaxBodyBytes = 1 << 20

// FieldError describes a single invalid field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Errors collects field errors in the order they were found.
type Errors struct {
	Fields []FieldError
}

// Add records a message for field.
func (e *Errors) Add(field, format string, args ...any) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// Empty reports whether no errors were recorded.
func (e *Errors) Empty() bool {
	return e == nil || len(e.Fields) == 0
}

// Err returns e as an error, or nil when nothing was recorded.
func (e *Errors) Err() error {
	if e.Empty() {
		return nil
	}
	return e
}

func (e *Errors) Error() string {
	if e.Empty() {
		return "validation passed"
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+" "+f.Message)
	}
	return strings.Join(parts, "; ")
}

// RequiredString checks that the trimmed value holds between min and max runes.
func RequiredString(errs *Errors, field, value string, min, max int) {
	n := utf8.RuneCountInString(strings.TrimSpace(value))
	switch {
	case n == 0:
		errs.Add(field, "is required")
	case n < min:
		errs.Add(field, "must be at least %d characters", min)
	case max > 0 && n > max:
		errs.Add(field, "must be at most %d characters", max)
	}
}

// OptionalString checks the length of a value that may be empty.
func OptionalString(errs *Errors, field, value string, max int) {
	if n := utf8.RuneCountInString(strings.TrimSpace(value)); max > 0 && n > max {
		errs.Add(field, "must be at most %d characters", max)
	}
}

// UUID checks that value is a canonical hyphenated UUID.
func UUID(errs *Errors, field, value string) {
	if !IsUUID(value) {
		errs.Add(field, "must be a valid UUID")
	}
}

// IsUUID reports whether value is a 36-character hyphenated UUID.
func IsUUID(value string) bool {
	if len(value) != 36 {
		return false
	}
	_, err := uuid.Parse(value)
	return err == nil
}

// IntRange checks min <= value <= max.
func IntRange(errs *Errors, field string, value, min, max int) {
	if value < min || value > max {
		errs.Add(field, "must be between %d and %d", min, max)
	}
}

// FloatRange checks min <= value <= max and rejects NaN and infinities.
func FloatRange(errs *Errors, field string, value, min, max float64) {
	if math.IsNaN(value) || math.IsInf(value, 0) || value < min || value > max {
		errs.Add(field, "must be between %g and %g", min, max)
	}
}

// OneOf checks that value is one of allowed.
func OneOf(errs *Errors, field, value string, allowed ...string) {
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	errs.Add(field, "must be one of %s", strings.Join(allowed, ", "))
}

// SanitizeText trims s, strips control characters other than newline and tab,
// drops angle brackets and collapses runs of spaces.
func SanitizeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevSpace := false
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r == '<' || r == '>':
			continue
		case r == '\n' || r == '\t':
			b.WriteRune(r)
			prevSpace = false
		case unicode.IsControl(r):
			continue
		case r == ' ':
			if prevSpace {
				continue
			}
			b.WriteRune(r)
			prevSpace = true
		default:
			b.WriteRune(r)
			prevSpace = false
		}
	}
	return strings.TrimSpace(b.String())
}

// ErrBodyTooLarge is returned when a request body exceeds the configured cap.
var ErrBodyTooLarge = errors.New("request body too large")

// DecodeJSON decodes a single JSON object from r into dst, rejecting unknown
// fields, trailing data and bodies larger than maxBytes.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any, maxBytes int64) error {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return ErrBodyTooLarge
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}
