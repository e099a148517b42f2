package portalclient

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/wifimgr/internal/logging"
)

// Watch follows the portal's live feed, calling fn for every frame until
// ctx ends, fn returns false or the portal closes the connection. A
// closed portal returns nil.
func (c *Client) Watch(ctx context.Context, fn func(LiveMessage) bool) error {
	target, err := c.wsURL()
	if err != nil {
		return classifyNetworkError("invalid portal URL", err)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		return classifyNetworkError("live feed unavailable", err)
	}
	defer conn.Close()

	// Unblock ReadMessage when ctx ends.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				return nil
			}
			return classifyNetworkError("live feed interrupted", err)
		}
		logging.LogWebSocketMessage(target, "received", websocket.TextMessage, data)

		var msg LiveMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logging.Warn("Ignoring malformed live message", zap.Error(err))
			continue
		}
		if !fn(msg) {
			return nil
		}
	}
}

// RequestScan asks the portal to push a fresh network list over the live
// feed. force bypasses the device's scan cache.
func (c *Client) RequestScan(ctx context.Context, force bool, fn func([]Network) bool) error {
	target, err := c.wsURL()
	if err != nil {
		return classifyNetworkError("invalid portal URL", err)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		return classifyNetworkError("live feed unavailable", err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	req := struct {
		Type  string `json:"type"`
		Force bool   `json:"force,omitempty"`
	}{Type: "scan", Force: force}
	if err := conn.WriteJSON(req); err != nil {
		return classifyNetworkError("failed to request scan", err)
	}

	for {
		var msg LiveMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return classifyNetworkError("live feed interrupted", err)
		}
		if msg.Type == "scan" && !fn(msg.Networks) {
			return nil
		}
	}
}
