// Package syncclient is the HTTP client for the fin sync server.
package syncclient

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Sentinel errors for common HTTP error classes.
var (
	ErrBadRequest  = errors.New("bad request")
	ErrRateLimited = errors.New("rate limited")
	ErrUnreachable = errors.New("server unreachable")
)

// Client is an HTTP client for the fin-server sync endpoint.
type Client struct {
	BaseURL string
	HTTP    *http.Client

	// MaxRetries bounds the retry loop for transient failures
	// (connection errors, 5xx, 429). Zero disables retries.
	MaxRetries uint64
}

// New creates a new sync client.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTP:       &http.Client{Timeout: 30 * time.Second},
		MaxRetries: 3,
	}
}

// --- Wire types (mirrors internal/api/sync.go, independently defined) ---

// SyncRequest is the body for POST /sync.
type SyncRequest struct {
	UserID     string           `json:"user_id"`
	LastCursor int64            `json:"last_cursor"`
	PushEvents []PushEventInput `json:"push_events"`
}

// PushEventInput is a single mutation in a sync request.
type PushEventInput struct {
	MutationID  string          `json:"mutation_id"`
	EntityType  string          `json:"entity_type"`
	EntityID    string          `json:"entity_id"`
	Action      string          `json:"action"`
	BaseVersion int64           `json:"base_version"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

// SyncResponse is the response from a sync request.
type SyncResponse struct {
	NewCursor            int64       `json:"new_cursor"`
	ProcessedMutationIDs []string    `json:"processed_mutation_ids"`
	PullEvents           []PullEvent `json:"pull_events"`
}

// PullEvent is a single change-log record in a sync response.
type PullEvent struct {
	ID         int64   `json:"id"`
	MutationID string  `json:"mutation_id"`
	EntityType string  `json:"entity_type"`
	EntityID   string  `json:"entity_id"`
	Action     string  `json:"action"`
	Version    int64   `json:"version"`
	Payload    *string `json:"payload"`
}

// HealthResponse is the response from GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// HealthCheck hits the /healthz endpoint to verify server reachability.
func (c *Client) HealthCheck() (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.do("GET", "/healthz", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Sync runs one push/pull exchange. Transient failures are retried
// with exponential backoff; 4xx responses are returned immediately.
func (c *Client) Sync(req *SyncRequest) (*SyncResponse, error) {
	var resp SyncResponse
	op := func() error {
		err := c.do("POST", "/sync", req, &resp)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrBadRequest) {
			return backoff.Permanent(err)
		}
		return err
	}
	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.MaxRetries)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- HTTP helpers ---

// apiError is the standard error body from the server.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Code
}

type errorEnvelope struct {
	Error apiError `json:"error"`
}

func (c *Client) do(method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.BaseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var envelope errorEnvelope
		if json.Unmarshal(respBody, &envelope) == nil && envelope.Error.Code != "" {
			switch resp.StatusCode {
			case http.StatusBadRequest:
				return fmt.Errorf("%w: %s", ErrBadRequest, envelope.Error.Message)
			case http.StatusTooManyRequests:
				return fmt.Errorf("%w: %s", ErrRateLimited, envelope.Error.Message)
			default:
				return &envelope.Error
			}
		}
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}
