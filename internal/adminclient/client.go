// Package adminclient is an HTTP client for the rollgate admin API, used
// by the CLI.
package adminclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rollgate/rollgate-go/internal/rules"
)

// Client is an HTTP client for the rollgate admin API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new admin API client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// UpsertFlagParams is the body of a flag upsert.
type UpsertFlagParams struct {
	Description       string         `json:"description"`
	Enabled           bool           `json:"enabled"`
	RolloutPercentage int            `json:"rolloutPercentage"`
	TargetUsers       []string       `json:"targetUsers,omitempty"`
	Rules             []rules.Rule   `json:"rules,omitempty"`
	Variations        map[string]any `json:"variations,omitempty"`
	DefaultVariation  string         `json:"defaultVariation,omitempty"`
	Env               string         `json:"env,omitempty"`
}

// ListFlags retrieves all flags.
func (c *Client) ListFlags(ctx context.Context) ([]rules.Flag, error) {
	var result struct {
		Flags []rules.Flag `json:"flags"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/flags", nil, &result); err != nil {
		return nil, err
	}
	return result.Flags, nil
}

// GetFlag retrieves a single flag by key.
func (c *Client) GetFlag(ctx context.Context, key string) (*rules.Flag, error) {
	var flag rules.Flag
	if err := c.do(ctx, http.MethodGet, "/v1/flags/"+key, nil, &flag); err != nil {
		return nil, err
	}
	return &flag, nil
}

// UpsertFlag creates or updates a flag.
func (c *Client) UpsertFlag(ctx context.Context, key string, params UpsertFlagParams) error {
	return c.do(ctx, http.MethodPut, "/v1/flags/"+key, params, nil)
}

// DeleteFlag deletes a flag.
func (c *Client) DeleteFlag(ctx context.Context, key string) error {
	return c.do(ctx, http.MethodDelete, "/v1/flags/"+key, nil, nil)
}

// ListSegments retrieves all segments.
func (c *Client) ListSegments(ctx context.Context) ([]rules.Segment, error) {
	var result struct {
		Segments []rules.Segment `json:"segments"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/segments", nil, &result); err != nil {
		return nil, err
	}
	return result.Segments, nil
}

// UpsertSegment creates or updates a segment.
func (c *Client) UpsertSegment(ctx context.Context, id string, conditions []rules.Condition) error {
	body := map[string]any{"conditions": conditions}
	return c.do(ctx, http.MethodPut, "/v1/segments/"+id, body, nil)
}

// DeleteSegment deletes a segment.
func (c *Client) DeleteSegment(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/v1/segments/"+id, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(bodyBytes))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
