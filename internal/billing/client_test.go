package billing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"example.com/fittrack/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(Config{BaseURL: srv.URL + "/", APIKey: "sk_test", StoreID: "11", VariantID: "22", RequestsPerSec: 50})
	require.NoError(t, err)
	return client
}

func TestCreateCheckout(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/checkouts", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		assert.Equal(t, mediaType, r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.Equal(t, "user-1", gjson.GetBytes(body, "data.attributes.checkout_data.custom.user_id").String())
		assert.Equal(t, "sam@example.com", gjson.GetBytes(body, "data.attributes.checkout_data.email").String())
		assert.Equal(t, "11", gjson.GetBytes(body, "data.relationships.store.data.id").String())
		assert.Equal(t, "22", gjson.GetBytes(body, "data.relationships.variant.data.id").String())

		w.Header().Set("Content-Type", mediaType)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"type":"checkouts","id":"c1","attributes":{"url":"https://pay.example/c1"}}}`))
	})

	url, err := client.CreateCheckout(context.Background(), domain.CheckoutRequest{UserID: "user-1", Email: "sam@example.com"})
	require.NoError(t, err)
	require.Equal(t, "https://pay.example/c1", url)
}

func TestCustomerPortalURL(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/subscriptions/sub_1", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":{"id":"sub_1","attributes":{"urls":{"customer_portal":"https://portal.example/sub_1"}}}}`))
	})

	url, err := client.CustomerPortalURL(context.Background(), "sub_1")
	require.NoError(t, err)
	require.Equal(t, "https://portal.example/sub_1", url)
}

func TestProviderErrorSurfacesDetail(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"errors":[{"detail":"variant is not published"}]}`))
	})

	_, err := client.CreateCheckout(context.Background(), domain.CheckoutRequest{UserID: "user-1"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	require.Equal(t, "variant is not published", apiErr.Detail)
}

func TestMissingURLIsAnError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"attributes":{}}}`))
	})
	_, err := client.CreateCheckout(context.Background(), domain.CheckoutRequest{UserID: "user-1"})
	require.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestCustomerPortalURLEscapesSubscriptionID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/subscriptions/sub%2F..%2Fstores", r.URL.EscapedPath())
		_, _ = w.Write([]byte(`{"data":{"attributes":{"urls":{"customer_portal":"https://portal.example/x"}}}}`))
	})

	_, err := client.CustomerPortalURL(context.Background(), "sub/../stores")
	require.NoError(t, err)
}

func TestTransportFailureIsProviderUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	client, err := NewClient(Config{BaseURL: base, APIKey: "sk_test", StoreID: "11", VariantID: "22"})
	require.NoError(t, err)

	_, err = client.CustomerPortalURL(context.Background(), "sub_1")
	require.ErrorIs(t, err, ErrProviderUnavailable)
	var apiErr *APIError
	require.False(t, errors.As(err, &apiErr))
}

func TestNewClientValidatesConfig(t *testing.T) {
	_, err := NewClient(Config{APIKey: "k", StoreID: "1", VariantID: "2"})
	require.Error(t, err)
	_, err = NewClient(Config{BaseURL: "https://api.example", StoreID: "1", VariantID: "2"})
	require.Error(t, err)
	_, err = NewClient(Config{BaseURL: "https://api.example", APIKey: "k"})
	require.Error(t, err)
}

func TestThrottleHonoursContext(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"attributes":{"url":"https://pay.example/x"}}}`))
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.CreateCheckout(ctx, domain.CheckoutRequest{UserID: "user-1"})
	require.ErrorIs(t, err, ErrProviderUnavailable)
	require.ErrorIs(t, err, context.Canceled)
}
