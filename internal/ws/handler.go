// Package ws exposes the WebSocket endpoint. The upgrade is guarded by
// the same origin allow-list the CORS middleware uses, so a browser
// origin that cannot make API calls cannot open a socket either.
package ws

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/perimeterhq/gatehouse/internal/events"
	"github.com/perimeterhq/gatehouse/internal/origin"
	"github.com/perimeterhq/gatehouse/internal/request"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 45 * time.Second
)

// Message is the wire envelope for socket traffic.
type Message struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

// Handler manages WebSocket connections.
type Handler struct {
	upgrader websocket.Upgrader
	sink     events.Sink
	logger   *zap.Logger
}

// NewHandler creates a WebSocket handler whose origin check is the
// shared allow-list. A refused origin fails the handshake before any
// upgrade happens and emits the same blocked event CORS emits.
func NewHandler(allow *origin.AllowList, sink events.Sink, logger *zap.Logger) *Handler {
	h := &Handler{sink: sink, logger: logger}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if allow.AllowRequest(r) {
				return true
			}
			sink.Emit(events.Event{
				Name:      events.CORSBlocked,
				IP:        request.ClientIP(r),
				Path:      r.URL.Path,
				UserAgent: r.UserAgent(),
			})
			return false
		},
	}
	return h
}

// ServeHTTP upgrades the connection and runs the message loop.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the refusal response.
		h.logger.Debug("websocket_upgrade_failed", zap.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	h.logger.Info("websocket_connected", zap.String("ip", request.ClientIP(r)))

	conn.SetReadLimit(1 << 16)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	go h.keepAlive(conn, done)
	defer close(done)

	if err := h.send(conn, Message{Type: "system", Message: "connected"}); err != nil {
		return
	}

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket_read_error", zap.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		switch msg.Type {
		case "ping":
			if err := h.send(conn, Message{Type: "pong"}); err != nil {
				return
			}
		default:
			if err := h.send(conn, Message{Type: "error", Message: "unknown message type"}); err != nil {
				return
			}
		}
	}
}

func (h *Handler) keepAlive(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (h *Handler) send(conn *websocket.Conn, msg Message) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(msg)
}
