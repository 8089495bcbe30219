package signaling

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/1ureka/tangysync/internal/config"
)

// Relay endpoints, relative to the configured base URL.
const (
	PathOffer     = "/signal/offer"
	PathAnswer    = "/signal/answer"
	PathInbox     = "/signal/inbox"
	PathSubscribe = "/signal/ws"
	PathHeartbeat = "/presence/heartbeat"
)

const defaultTimeout = 8 * time.Second

// StatusError is returned when the relay answers with a non-2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("relay returned %d", e.Code)
	}
	return fmt.Sprintf("relay returned %d: %s", e.Code, e.Body)
}

// Client calls the relay. Every call returns the HTTP status it received, or
// 0 when no response arrived. Calls are never retried.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a client for the relay described by cfg.
func NewClient(cfg config.RelayConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		http:    &http.Client{Timeout: timeout},
	}
}

// PostOffer delivers an encoded offer to the inbox of handle to.
func (c *Client) PostOffer(ctx context.Context, to, sdp string) (int, error) {
	status, _, err := c.do(ctx, http.MethodPost, PathOffer, Envelope{To: to, SDP: sdp})
	return status, err
}

// PostAnswer delivers an answer to the inbox of handle to.
func (c *Client) PostAnswer(ctx context.Context, to, sdp string) (int, error) {
	status, _, err := c.do(ctx, http.MethodPost, PathAnswer, Envelope{To: to, SDP: sdp})
	return status, err
}

// Inbox fetches and drains our inbox.
func (c *Client) Inbox(ctx context.Context) ([]Message, int, error) {
	status, body, err := c.do(ctx, http.MethodGet, PathInbox, nil)
	if err != nil {
		return nil, status, err
	}
	var msgs []Message
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &msgs); err != nil {
			return nil, status, fmt.Errorf("decode inbox: %w", err)
		}
	}
	return msgs, status, nil
}

// Heartbeat reports our presence.
func (c *Client) Heartbeat(ctx context.Context, p Presence) (int, error) {
	status, _, err := c.do(ctx, http.MethodPost, PathHeartbeat, p)
	return status, err
}

func (c *Client) do(ctx context.Context, method, path string, in any) (int, []byte, error) {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return 0, nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req.Header)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	return resp.StatusCode, data, nil
}

func (c *Client) authorize(h http.Header) {
	if c.token != "" {
		h.Set("Authorization", "Bearer "+c.token)
	}
}
