package websocket

import (
	"net/http"
	"slices"

	"github.com/gorilla/websocket"

	"github.com/dealroom/api/internal/infra/http/middleware"
	"github.com/dealroom/api/pkg/logger"
)

// Handler upgrades stream connections.
type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
	logger   *logger.Logger
}

// NewHandler creates a handler accepting browser connections only from
// allowedOrigins. "*" allows any origin.
func NewHandler(hub *Hub, allowedOrigins []string, log *logger.Logger) *Handler {
	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger: log,
	}
}

// originChecker admits requests without an Origin header, which come from
// non-browser clients.
func originChecker(allowed []string) func(r *http.Request) bool {
	if slices.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, origin)
	}
}

// ServeWS handles GET /api/v1/ws
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	actorID := middleware.GetActorID(r.Context())

	// Upgrade writes its own error response.
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed",
			"remote_addr", r.RemoteAddr,
			"error", err,
		)
		return
	}

	client := NewClient(h.hub, conn, actorID, h.logger)
	h.hub.RegisterClient(client)

	h.logger.Info("websocket client connected",
		"client_id", client.ID,
		"actor_id", actorID,
		"remote_addr", r.RemoteAddr,
	)

	go client.WritePump()
	go client.ReadPump()
}

// Hub returns the hub instance.
func (h *Handler) Hub() *Hub {
	return h.hub
}
