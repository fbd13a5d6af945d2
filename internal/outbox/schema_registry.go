package outbox

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
)

const schemaRegistryMediaType = "application/vnd.schemaregistry.v1+json"

var errSchemaNotFound = errors.New("schema not registered under subject")

// SchemaRegistryClient provides minimal interactions with Confluent Schema Registry.
type SchemaRegistryClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewSchemaRegistryClient constructs a client with sane defaults.
func NewSchemaRegistryClient(baseURL string) *SchemaRegistryClient {
	return &SchemaRegistryClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// EnsureSchema returns the id of schema under subject, registering it when
// the registry does not know it yet.
func (c *SchemaRegistryClient) EnsureSchema(ctx context.Context, subject string, schema string) (int, error) {
	id, err := c.lookup(ctx, subject, schema)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, errSchemaNotFound) {
		return 0, err
	}
	return c.register(ctx, subject, schema)
}

func (c *SchemaRegistryClient) lookup(ctx context.Context, subject, schema string) (int, error) {
	id, status, err := c.post(ctx, fmt.Sprintf("%s/subjects/%s", c.baseURL, url.PathEscape(subject)), schema)
	if status == http.StatusNotFound {
		return 0, errSchemaNotFound
	}
	return id, err
}

func (c *SchemaRegistryClient) register(ctx context.Context, subject, schema string) (int, error) {
	id, _, err := c.post(ctx, fmt.Sprintf("%s/subjects/%s/versions", c.baseURL, url.PathEscape(subject)), schema)
	if err != nil {
		return 0, fmt.Errorf("register schema %s: %w", subject, err)
	}
	return id, nil
}

func (c *SchemaRegistryClient) post(ctx context.Context, endpoint, schema string) (int, int, error) {
	body, err := json.Marshal(map[string]any{
		"schemaType": "JSON",
		"schema":     schema,
	})
	if err != nil {
		return 0, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, 0, err
	}
	req.Header.Set("Content-Type", schemaRegistryMediaType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return 0, resp.StatusCode, fmt.Errorf("schema registry error (%d): %s", resp.StatusCode, data)
	}

	var payload struct {
		ID int `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, resp.StatusCode, err
	}
	return payload.ID, resp.StatusCode, nil
}
