package slackclient

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

// SocketEnvelope is one Socket Mode frame from Slack.
type SocketEnvelope struct {
	EnvelopeID string          `json:"envelope_id,omitempty"`
	Type       string          `json:"type,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

type openConnectionResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	URL   string `json:"url,omitempty"`
}

// OpenSocketURL asks Slack for a fresh Socket Mode websocket URL. The
// app-level token (xapp-...) authorizes the call, not the bot token.
func (c *Client) OpenSocketURL(ctx context.Context, appToken string) (string, error) {
	appToken = strings.TrimSpace(appToken)
	if appToken == "" {
		return "", fmt.Errorf("slack app token is required")
	}
	body, status, _, err := c.postWithToken(ctx, appToken, "/apps.connections.open", "application/json", nil)
	if err != nil {
		return "", err
	}
	if status < 200 || status >= 300 {
		return "", fmt.Errorf("slack apps.connections.open http %d", status)
	}
	var out openConnectionResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", err
	}
	if !out.OK {
		return "", fmt.Errorf("slack apps.connections.open failed: %s", errorCode(out.Error))
	}
	socketURL := strings.TrimSpace(out.URL)
	if socketURL == "" {
		return "", fmt.Errorf("slack apps.connections.open returned empty url")
	}
	return socketURL, nil
}

// ConnectSocket opens a Socket Mode websocket connection.
func (c *Client) ConnectSocket(ctx context.Context, appToken string) (*websocket.Conn, error) {
	socketURL, err := c.OpenSocketURL(ctx, appToken)
	if err != nil {
		return nil, err
	}
	dialer := *websocket.DefaultDialer
	conn, _, err := dialer.DialContext(ctx, socketURL, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// ConsumeSocket reads envelopes off the connection until it fails or the
// context is canceled. Envelopes with an id are acked before dispatch.
func ConsumeSocket(ctx context.Context, conn *websocket.Conn, onEnvelope func(SocketEnvelope) error) error {
	if conn == nil {
		return fmt.Errorf("slack websocket connection is nil")
	}
	for {
		if ctx != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var env SocketEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			continue
		}
		if strings.TrimSpace(env.EnvelopeID) != "" {
			if err := conn.WriteJSON(map[string]string{"envelope_id": env.EnvelopeID}); err != nil {
				return err
			}
		}
		if onEnvelope == nil {
			continue
		}
		if err := onEnvelope(env); err != nil {
			return err
		}
	}
}
