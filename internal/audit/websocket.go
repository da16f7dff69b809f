package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Shubhojit-17/cewce/internal/core/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
)

// WSHandler bridges websocket connections into broadcaster subscriptions.
// The optional `instance` query parameter becomes the subscription's
// instance filter.
type WSHandler struct {
	broadcaster *Broadcaster
	upgrader    websocket.Upgrader
	log         *slog.Logger
}

// NewWSHandler creates the websocket endpoint handler.
func NewWSHandler(broadcaster *Broadcaster, log *slog.Logger) *WSHandler {
	return &WSHandler{
		broadcaster: broadcaster,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log: log.With("component", "websocket"),
	}
}

// ServeHTTP upgrades the connection and registers it as a subscriber until
// the socket closes.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("websocket upgrade failed", "error", err)
		return
	}

	clientID := uuid.NewString()
	instanceFilter := r.URL.Query().Get("instance")

	wsc := &wsConn{
		clientID: clientID,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		done:     make(chan struct{}),
	}

	h.broadcaster.Register(clientID, wsc.deliver, Options{InstanceFilter: instanceFilter})
	h.log.Info("websocket client connected", "client_id", clientID, "instance_filter", instanceFilter)

	// Welcome frame so the client learns its id.
	welcome, _ := json.Marshal(map[string]any{
		"type":      "connected",
		"clientId":  clientID,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	wsc.enqueue(welcome)

	go h.writePump(wsc)
	go h.readPump(wsc)
}

type wsConn struct {
	clientID  string
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// deliver marshals the event onto the connection's send queue. A full queue
// means the client is not keeping up; the event is dropped for this client
// rather than stalling the broadcaster.
func (c *wsConn) deliver(_ context.Context, event domain.AuditEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return c.enqueue(data)
}

func (c *wsConn) enqueue(data []byte) error {
	select {
	case <-c.done:
		return websocket.ErrCloseSent
	case c.send <- data:
		return nil
	default:
		return errSlowConsumer
	}
}

var errSlowConsumer = &websocket.CloseError{Code: websocket.ClosePolicyViolation, Text: "send queue full"}

// readPump drains inbound frames to process pings and detect close.
func (h *WSHandler) readPump(c *wsConn) {
	defer h.teardown(c)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("websocket read error", "client_id", c.clientID, "error", err)
			}
			return
		}
	}
}

// writePump flushes the send queue and keeps the connection alive with pings.
func (h *WSHandler) writePump(c *wsConn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		h.teardown(c)
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// teardown unregisters and closes exactly once; safe from both pumps.
func (h *WSHandler) teardown(c *wsConn) {
	c.closeOnce.Do(func() {
		close(c.done)
		h.broadcaster.Unregister(c.clientID)
		_ = c.conn.Close()
		h.log.Info("websocket client disconnected", "client_id", c.clientID)
	})
}
