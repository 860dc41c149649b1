package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Client calls a NoisyMarket API and unwraps its APIResponse envelope.
type Client struct {
	baseURL    string
	client     *http.Client
	maxElapsed time.Duration
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = timeout
	}
}

// WithRetryWindow bounds the total time spent retrying one call. Zero disables retries.
func WithRetryWindow(d time.Duration) ClientOption {
	return func(c *Client) {
		c.maxElapsed = d
	}
}

// NewClient creates a new HTTP client for baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    baseURL,
		client:     &http.Client{Timeout: 5 * time.Minute},
		maxElapsed: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StatusError is a non-2xx API answer.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Status, e.Body)
}

// Do sends body as JSON to method path and decodes the envelope's data into dest. Transport
// errors and 5xx answers are retried with exponential backoff; 4xx answers are not.
func (c *Client) Do(ctx context.Context, method, path string, body, dest interface{}) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal json: %w", err)
		}
		payload = b
	}

	var raw []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("new request: %w", err))
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		raw, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			serr := &StatusError{Status: resp.StatusCode, Body: string(raw)}
			if resp.StatusCode < 500 {
				return backoff.Permanent(serr)
			}
			return serr
		}
		return nil
	}

	var policy backoff.BackOff = &backoff.StopBackOff{}
	if c.maxElapsed > 0 {
		eb := backoff.NewExponentialBackOff()
		eb.MaxElapsedTime = c.maxElapsed
		policy = eb
	}
	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return err
	}

	if dest == nil {
		return nil
	}
	env := APIResponse{Data: dest}
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}
	return nil
}
