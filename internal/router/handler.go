package router

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yogami/AIVoiceTranslator-sub012/internal/registry"
	"github.com/yogami/AIVoiceTranslator-sub012/pkg/types"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Classroom clients connect from arbitrary school networks.
		return true
	},
	HandshakeTimeout: 10 * time.Second,
}

// HandlerConfig tunes per-connection transport behavior.
type HandlerConfig struct {
	WriteBuffer  int
	WriteTimeout time.Duration
	ReadTimeout  time.Duration
}

// Handler upgrades HTTP requests to WebSocket connections and pumps each
// connection's events through the router in arrival order.
type Handler struct {
	registry *registry.Registry
	router   *Router
	cfg      HandlerConfig
}

// NewHandler creates the WebSocket handler.
func NewHandler(reg *registry.Registry, router *Router, cfg HandlerConfig) *Handler {
	if cfg.WriteBuffer <= 0 {
		cfg.WriteBuffer = 100
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 90 * time.Second
	}
	return &Handler{registry: reg, router: router, cfg: cfg}
}

// HandleWebSocket upgrades the request and runs the connection's read loop
// until the client disconnects or is evicted.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	// The request context dies when ServeHTTP returns; the connection
	// lives on its own context instead.
	conn := registry.NewConnection(ws, h.cfg.WriteBuffer, h.cfg.WriteTimeout)
	go h.readLoop(context.Background(), ws, conn)
}

func (h *Handler) readLoop(ctx context.Context, ws *websocket.Conn, conn *registry.Connection) {
	defer func() {
		h.registry.Remove(conn)
		_ = conn.Close()
	}()

	// The heartbeat monitor owns liveness; the read deadline is a backstop
	// for transports that die without a close frame.
	_ = ws.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	ws.SetPongHandler(func(string) error {
		conn.MarkAlive()
		return ws.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	})

	for {
		messageType, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WebSocket read error: %v", err)
			}
			return
		}
		conn.MarkAlive()
		_ = ws.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))

		if messageType != websocket.TextMessage {
			continue
		}

		var env types.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			h.sendError(conn, "malformed event payload")
			continue
		}

		if err := h.router.Route(ctx, conn, &env); err != nil {
			h.sendError(conn, err.Error())
		}
	}
}

// sendError reports an input problem to the offending connection only.
func (h *Handler) sendError(conn *registry.Connection, message string) {
	err := conn.WriteJSON(types.ErrorMessage{
		Type:    types.EventError,
		Message: message,
	})
	if err != nil {
		log.Printf("Failed to send error event: %v", err)
	}
}
