// Package central is the HTTP client for the restaurant's central
// management backend.
package central

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

	"github.com/facekiosk/facekiosk/internal/config"
)

// ErrUnavailable wraps transport-level failures. Records that hit it stay
// in the outbox and are retried on the next sync run.
var ErrUnavailable = errors.New("central backend unavailable")

const (
	rosterEndpoint     = "api/method/restaurant_management.api.get_restaurant_staff"
	attendanceEndpoint = "api/method/restaurant_management.api.record_staff_attendance"
	encodingEndpoint   = "api/method/restaurant_management.api.update_staff_encoding"
)

// Client talks to the central backend.
type Client struct {
	baseURL *url.URL
	token   string
	client  *http.Client
}

// NewClient creates a Client from config.
func NewClient(cfg *config.CentralConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("central backend URL is required")
	}

	parsed, err := url.Parse(strings.TrimRight(cfg.URL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid central backend URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("invalid central backend URL scheme: %q", parsed.Scheme)
	}

	return &Client{
		baseURL: parsed,
		token:   cfg.Token,
		client:  &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (c *Client) resolveURL(endpoint string) string {
	return c.baseURL.String() + "/" + strings.TrimLeft(endpoint, "/")
}

// envelope is the central backend's response wrapper.
type envelope[T any] struct {
	Message T `json:"message"`
}

// doGetJSON performs a GET request and unwraps the response envelope.
func doGetJSON[T any](ctx context.Context, c *Client, endpoint string) (*T, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.resolveURL(endpoint), nil)
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	return doJSON[T](c, req)
}

// doPostJSON performs a POST request with a JSON body and unwraps the
// response envelope.
func doPostJSON[T any](ctx context.Context, c *Client, endpoint string, requestBody any) (*T, error) {
	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("could not marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.resolveURL(endpoint), bytes.NewReader(jsonBody),
	)
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	return doJSON[T](c, req)
}

func doJSON[T any](c *Client, req *http.Request) (*T, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: could not read response body: %v", ErrUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: truncate(string(body), 1024)}
	}

	var result envelope[T]
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("could not unmarshal response: %w", err)
	}
	return &result.Message, nil
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// FetchRoster returns the central staff roster.
func (c *Client) FetchRoster(ctx context.Context) ([]RosterEntry, error) {
	entries, err := doGetJSON[[]RosterEntry](ctx, c, rosterEndpoint)
	if err != nil {
		return nil, err
	}
	return *entries, nil
}

// pushResult is the backend's acknowledgement of an attendance push.
type pushResult struct {
	Recorded bool   `json:"recorded"`
	Detail   string `json:"detail"`
}

// PushAttendance uploads one attendance record. An *APIError means the
// backend looked at the record and refused it; ErrUnavailable means it
// never got there.
func (c *Client) PushAttendance(ctx context.Context, payload AttendancePayload) error {
	result, err := doPostJSON[pushResult](ctx, c, attendanceEndpoint, payload)
	if err != nil {
		return err
	}
	if !result.Recorded {
		return &APIError{StatusCode: http.StatusOK, Message: result.Detail}
	}
	return nil
}

// encodingUpdate is the body of an encoding push.
type encodingUpdate struct {
	StaffID  string    `json:"staff_id"`
	Encoding []float32 `json:"encoding"`
}

// updateResult is the backend's acknowledgement of an encoding push.
type updateResult struct {
	Updated bool   `json:"updated"`
	Detail  string `json:"detail"`
}

// PushEncoding uploads a staff member's face encoding so other terminals of
// the restaurant can recognize them too.
func (c *Client) PushEncoding(ctx context.Context, staffID string, encoding []float32) error {
	result, err := doPostJSON[updateResult](ctx, c, encodingEndpoint, encodingUpdate{
		StaffID:  staffID,
		Encoding: encoding,
	})
	if err != nil {
		return err
	}
	if !result.Updated {
		return &APIError{StatusCode: http.StatusOK, Message: result.Detail}
	}
	return nil
}

// Ping verifies the central backend is reachable.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.FetchRoster(ctx)
	return err
}
