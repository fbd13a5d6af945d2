package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"example.com/fittrack/internal/domain"
)

// SignatureHeader carries the hex HMAC of the webhook body.
const SignatureHeader = "X-Signature"

var (
	// ErrInvalidSignature is returned when the webhook HMAC does not match.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrIgnoredEvent is returned for well-formed events that do not affect subscriptions.
	ErrIgnoredEvent = errors.New("ignored webhook event")
	// ErrMalformedPayload is returned when required webhook fields are missing.
	ErrMalformedPayload = errors.New("malformed webhook payload")
)

var subscriptionEvents = map[string]struct{}{
	"subscription_created":           {},
	"subscription_updated":           {},
	"subscription_cancelled":         {},
	"subscription_resumed":           {},
	"subscription_expired":           {},
	"subscription_paused":            {},
	"subscription_unpaused":          {},
	"subscription_payment_success":   {},
	"subscription_payment_failed":    {},
	"subscription_payment_recovered": {},
}

// VerifySignature checks signatureHex against HMAC-SHA256(secret, body) in constant time.
func VerifySignature(secret string, body []byte, signatureHex string) error {
	if secret == "" || signatureHex == "" {
		return ErrInvalidSignature
	}
	got, err := hex.DecodeString(strings.TrimSpace(signatureHex))
	if err != nil {
		return ErrInvalidSignature
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	if !hmac.Equal(mac.Sum(nil), got) {
		return ErrInvalidSignature
	}
	return nil
}

// Sign returns the hex signature the provider would send for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// ParseWebhook normalises a subscription webhook into a domain.BillingEvent.
func ParseWebhook(body []byte) (domain.BillingEvent, error) {
	if !gjson.ValidBytes(body) {
		return domain.BillingEvent{}, ErrMalformedPayload
	}
	doc := gjson.ParseBytes(body)

	name := doc.Get("meta.event_name").String()
	if _, ok := subscriptionEvents[name]; !ok {
		return domain.BillingEvent{}, ErrIgnoredEvent
	}

	attrs := doc.Get("data.attributes")
	event := domain.BillingEvent{
		Name:                   name,
		UserID:                 doc.Get("meta.custom_data.user_id").String(),
		ProviderSubscriptionID: doc.Get("data.id").String(),
		ProviderCustomerID:     attrs.Get("customer_id").String(),
		VariantID:              attrs.Get("variant_id").String(),
		Status:                 attrs.Get("status").String(),
		RenewsAt:               timeField(attrs.Get("renews_at")),
		EndsAt:                 timeField(attrs.Get("ends_at")),
		Cancelled:              attrs.Get("cancelled").Bool(),
		Currency:               strings.ToUpper(attrs.Get("currency").String()),
	}
	if event.ProviderSubscriptionID == "" || event.Status == "" {
		return domain.BillingEvent{}, ErrMalformedPayload
	}

	if price := attrs.Get("first_subscription_item.price"); price.Exists() {
		event.Amount = decimal.NewFromInt(price.Int()).Shift(-2)
	}
	if event.Currency == "" {
		event.Currency = "USD"
	}
	if updated := timeField(attrs.Get("updated_at")); updated != nil {
		event.OccurredAt = *updated
	}
	return event, nil
}

func timeField(v gjson.Result) *time.Time {
	if v.Type != gjson.String {
		return nil
	}
	t, err := time.Parse(time.RFC3339, v.String())
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}
