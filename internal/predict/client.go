package predict

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const maxResponseBytes = 64 << 10

// Client posts frames to a prediction endpoint.
type Client struct {
	endpoint  string
	sessionID string
	http      *http.Client
}

// NewClient builds a client for endpoint. Requests carry sessionID so the
// server keeps a dedicated window for this caller.
func NewClient(endpoint, sessionID string, timeout time.Duration) *Client {
	return &Client{
		endpoint:  strings.TrimSpace(endpoint),
		sessionID: sessionID,
		http:      &http.Client{Timeout: timeout},
	}
}

// Endpoint returns the configured URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Predict sends one data-URL frame and returns the decoded verdict. Non-2xx
// answers are returned as *StatusError.
func (c *Client) Predict(ctx context.Context, dataURL string) (Result, error) {
	body, err := json.Marshal(Request{Image: dataURL})
	if err != nil {
		return Result{}, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.sessionID != "" {
		req.Header.Set(SessionHeader, c.sessionID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("post frame: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Result{}, fmt.Errorf("read response: %w", err)
	}

	var result Result
	decodeErr := json.Unmarshal(payload, &result)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := result.Detail
		if decodeErr != nil || detail == "" {
			detail = strings.TrimSpace(string(payload))
		}
		return Result{}, &StatusError{Code: resp.StatusCode, Detail: detail}
	}
	if decodeErr != nil {
		return Result{}, fmt.Errorf("decode response: %w", decodeErr)
	}
	return result, nil
}
