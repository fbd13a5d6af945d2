// Package billing talks to the hosted billing provider: it opens checkouts,
// resolves customer portal links and parses signed webhook notifications.
package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"example.com/fittrack/internal/domain"
)

const (
	defaultTimeout = 10 * time.Second
	mediaType      = "application/vnd.api+json"
)

// Config holds client configuration.
type Config struct {
	BaseURL        string
	APIKey         string
	StoreID        string
	VariantID      string
	RequestsPerSec float64
	HTTPClient     *http.Client
}

// Client is a JSON:API client for the billing provider.
type Client struct {
	baseURL    string
	apiKey     string
	storeID    string
	variantID  string
	limiter    *rate.Limiter
	httpClient *http.Client
}

var _ domain.CheckoutProvider = (*Client)(nil)

// APIError is returned for non-2xx provider responses.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("billing provider returned %d: %s", e.StatusCode, e.Detail)
}

// ErrProviderUnavailable is wrapped by every failure to reach the provider or
// to read a usable answer from it.
var ErrProviderUnavailable = errors.New("billing: provider unavailable")

// NewClient validates cfg and builds a Client.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("billing: base URL is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("billing: API key is required")
	}
	if cfg.StoreID == "" || cfg.VariantID == "" {
		return nil, errors.New("billing: store and variant ids are required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	perSec := cfg.RequestsPerSec
	if perSec <= 0 {
		perSec = 5
	}
	burst := int(perSec)
	if burst < 1 {
		burst = 1
	}

	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		storeID:    cfg.StoreID,
		variantID:  cfg.VariantID,
		limiter:    rate.NewLimiter(rate.Limit(perSec), burst),
		httpClient: httpClient,
	}, nil
}

type relationship struct {
	Data struct {
		Type string `json:"type"`
		ID   string `json:"id"`
	} `json:"data"`
}

func relation(kind, id string) relationship {
	var r relationship
	r.Data.Type = kind
	r.Data.ID = id
	return r
}

type checkoutDocument struct {
	Data struct {
		Type       string `json:"type"`
		Attributes struct {
			CheckoutData struct {
				Email  string            `json:"email,omitempty"`
				Custom map[string]string `json:"custom"`
			} `json:"checkout_data"`
			ProductOptions struct {
				RedirectURL string `json:"redirect_url,omitempty"`
			} `json:"product_options"`
		} `json:"attributes"`
		Relationships struct {
			Store   relationship `json:"store"`
			Variant relationship `json:"variant"`
		} `json:"relationships"`
	} `json:"data"`
}

// CreateCheckout opens a hosted checkout for the Pro variant. The user id is
// sent as custom data so webhooks can be tied back to the account.
func (c *Client) CreateCheckout(ctx context.Context, req domain.CheckoutRequest) (string, error) {
	var doc checkoutDocument
	doc.Data.Type = "checkouts"
	doc.Data.Attributes.CheckoutData.Email = req.Email
	doc.Data.Attributes.CheckoutData.Custom = map[string]string{"user_id": req.UserID}
	doc.Data.Attributes.ProductOptions.RedirectURL = req.RedirectURL
	doc.Data.Relationships.Store = relation("stores", c.storeID)
	doc.Data.Relationships.Variant = relation("variants", c.variantID)

	body, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	resp, err := c.do(ctx, http.MethodPost, "/checkouts", body)
	if err != nil {
		return "", err
	}
	checkoutURL := gjson.GetBytes(resp, "data.attributes.url").String()
	if checkoutURL == "" {
		return "", fmt.Errorf("%w: checkout response missing url", ErrProviderUnavailable)
	}
	return checkoutURL, nil
}

// CustomerPortalURL returns the signed self-service link for a subscription.
func (c *Client) CustomerPortalURL(ctx context.Context, subscriptionID string) (string, error) {
	if subscriptionID == "" {
		return "", errors.New("billing: subscription id is required")
	}
	resp, err := c.do(ctx, http.MethodGet, "/subscriptions/"+url.PathEscape(subscriptionID), nil)
	if err != nil {
		return "", err
	}
	portalURL := gjson.GetBytes(resp, "data.attributes.urls.customer_portal").String()
	if portalURL == "" {
		return "", fmt.Errorf("%w: subscription response missing customer portal url", ErrProviderUnavailable)
	}
	return portalURL, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: throttle: %w", ErrProviderUnavailable, err)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", mediaType)
	if body != nil {
		req.Header.Set("Content-Type", mediaType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrProviderUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s %s: %w", ErrProviderUnavailable, method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := gjson.GetBytes(payload, "errors.0.detail").String()
		if detail == "" {
			detail = http.StatusText(resp.StatusCode)
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Detail: detail}
	}
	return payload, nil
}
