package portal

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/wifimgr/internal/logging"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
	wsReadLimit  = 512
	wsSendBuffer = 8
)

// liveMessage is pushed to /ws subscribers.
type liveMessage struct {
	Type     string      `json:"type"`
	State    *deviceInfo `json:"state,omitempty"`
	Networks []scanItem  `json:"networks,omitempty"`
}

// liveRequest is what subscribers may send: {"type":"state"} or {"type":"scan"}.
type liveRequest struct {
	Type  string `json:"type"`
	Force bool   `json:"force,omitempty"`
}

type wsClient struct {
	conn *websocket.Conn
	send chan liveMessage
	once sync.Once
}

func (c *wsClient) close() {
	c.once.Do(func() { close(c.send) })
}

// hub fans live messages out to websocket subscribers.
type hub struct {
	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

func newHub() *hub {
	return &hub{clients: make(map[*wsClient]struct{})}
}

func (h *hub) add(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *hub) remove(c *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.close()
	}
	h.mu.Unlock()
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// broadcast never blocks; a subscriber with a full buffer misses the message.
func (h *hub) broadcast(msg liveMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			logging.Debug("Dropping live message for slow subscriber",
				zap.String("remote_addr", c.conn.RemoteAddr().String()))
		}
	}
}

// sendTo queues msg for c unless c has been removed or its buffer is full.
func (h *hub) sendTo(c *wsClient, msg liveMessage) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, subscribed := h.clients[c]; !subscribed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
}

func (m *Manager) stateMessage() liveMessage {
	info := m.info()
	return liveMessage{Type: "state", State: &info}
}

func (m *Manager) handleWebSocket() http.HandlerFunc {
	upgrader := &websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logging.Warn("WebSocket upgrade failed", zap.Error(err))
			return
		}

		// The first frame is queued before the hub can close the channel.
		c := &wsClient{conn: conn, send: make(chan liveMessage, wsSendBuffer)}
		c.send <- m.stateMessage()
		m.hub.add(c)

		go m.wsWritePump(c)
		m.wsReadPump(r.Context(), c)
	}
}

func (m *Manager) wsReadPump(ctx context.Context, c *wsClient) {
	defer func() {
		m.hub.remove(c)
		_ = c.conn.Close()
	}()

	remote := c.conn.RemoteAddr().String()
	c.conn.SetReadLimit(wsReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Warn("Unexpected websocket closure", zap.String("remote_addr", remote), zap.Error(err))
			}
			return
		}
		logging.LogWebSocketMessage(remote, "received", msgType, data)

		var req liveRequest
		if err := json.Unmarshal(data, &req); err != nil {
			continue
		}

		var reply liveMessage
		switch req.Type {
		case "state":
			reply = m.stateMessage()
		case "scan":
			results, err := m.scanner.Scan(ctx, req.Force)
			if err != nil {
				logging.Warn("Scan for websocket subscriber failed", zap.Error(err))
				continue
			}
			reply = liveMessage{Type: "scan", Networks: scanItems(results)}
		default:
			continue
		}

		m.hub.sendTo(c, reply)
	}
}

func (m *Manager) wsWritePump(c *wsClient) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	remote := c.conn.RemoteAddr().String()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			logging.LogWebSocketMessage(remote, "sent", websocket.TextMessage, data)
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
