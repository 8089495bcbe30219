package signaling

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
)

// Subscribe opens the relay push channel and calls fn for every message
// delivered to our inbox until ctx is cancelled or the connection drops.
// fn runs on the read loop and should not block for long.
func (c *Client) Subscribe(ctx context.Context, fn func(Message)) error {
	conn, err := c.connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
		conn.Close()
	})
	defer stop()

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("subscription read: %w", err)
		}
		fn(msg)
	}
}

// connect dials the push endpoint with the same credentials as REST calls.
func (c *Client) connect(ctx context.Context) (*websocket.Conn, error) {
	url, err := wsURL(c.baseURL + PathSubscribe)
	if err != nil {
		return nil, err
	}
	header := http.Header{}
	c.authorize(header)

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = c.http.Timeout
	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to subscribe: %w", &StatusError{Code: resp.StatusCode})
		}
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}
	return conn, nil
}

func wsURL(httpURL string) (string, error) {
	switch {
	case strings.HasPrefix(httpURL, "https://"):
		return "wss://" + strings.TrimPrefix(httpURL, "https://"), nil
	case strings.HasPrefix(httpURL, "http://"):
		return "ws://" + strings.TrimPrefix(httpURL, "http://"), nil
	case strings.HasPrefix(httpURL, "ws://"), strings.HasPrefix(httpURL, "wss://"):
		return httpURL, nil
	}
	return "", errors.New("relay base URL must be http(s) or ws(s)")
}
