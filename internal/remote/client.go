// Package remote speaks the hosted document tree's REST dialect:
// path-addressed point reads and writes, partial-field updates, client-side
// push-key allocation, and live event-stream subscriptions that replay as
// full-subtree snapshots. It is the only package that knows the wire
// contract; everything above it works with paths and entities.
package remote

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

	"go.uber.org/zap"
)

// ErrNotFound is returned by Get when the path holds no value.
var ErrNotFound = errors.New("remote: not found")

// TokenSource supplies the auth token attached to every request. It is
// consulted per request so token refreshes take effect immediately.
type TokenSource func() string

// Client is a path-addressed client for the hosted document tree.
type Client struct {
	baseURL string
	token   TokenSource
	http    *http.Client
	// stream requests must not carry a client timeout; they stay open
	// until cancelled.
	stream *http.Client
	logger *zap.Logger
}

// NewClient creates a client rooted at baseURL. token may be nil for
// unauthenticated trees (emulators, tests).
func NewClient(baseURL string, token TokenSource, logger *zap.Logger) *Client {
	if token == nil {
		token = func() string { return "" }
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
		stream:  &http.Client{},
		logger:  logger,
	}
}

func (c *Client) endpoint(path string) string {
	u := c.baseURL + "/" + strings.Trim(path, "/") + ".json"
	if tok := c.token(); tok != "" {
		u += "?auth=" + url.QueryEscape(tok)
	}
	return u
}

// Get reads the value at path into v. Returns ErrNotFound when the path is
// empty.
func (c *Client) Get(ctx context.Context, path string, v any) error {
	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if isNull(body) {
		return ErrNotFound
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// Set writes v as the full value at path, replacing whatever was there.
func (c *Client) Set(ctx context.Context, path string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	_, err = c.do(ctx, http.MethodPut, path, payload)
	return err
}

// Update applies a partial-field update at path. Fields mapped to nil are
// removed.
func (c *Client) Update(ctx context.Context, path string, fields map[string]any) error {
	payload, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	_, err = c.do(ctx, http.MethodPatch, path, payload)
	return err
}

// Delete removes the value at path. Deleting an absent path is not an error.
func (c *Client) Delete(ctx context.Context, path string) error {
	_, err := c.do(ctx, http.MethodDelete, path, nil)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: read response: %w", method, path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, firstLine(data))
	}
	return data, nil
}

func isNull(body []byte) bool {
	return bytes.Equal(bytes.TrimSpace(body), []byte("null"))
}

func firstLine(data []byte) string {
	s := strings.TrimSpace(string(data))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
