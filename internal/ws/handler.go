// Package ws is the streaming submission front-end: a bulk generation
// run opens one socket, pours queries down it and receives outcomes as
// they settle, without one slow batch blocking the pipe.
package ws

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"gqlherd/internal/batcher"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins
	},
}

// Handler handles WebSocket connections
type Handler struct {
	batcher *batcher.Batcher
	logger  zerolog.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(b *batcher.Batcher, logger zerolog.Logger) *Handler {
	return &Handler{
		batcher: b,
		logger:  logger.With().Str("component", "ws").Logger(),
	}
}

// ServeHTTP handles WebSocket upgrade requests
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to upgrade connection")
		return
	}

	h.logger.Info().Str("remoteAddr", r.RemoteAddr).Msg("new WebSocket connection")

	client := NewClient(conn, h.batcher, h.logger.With().Str("remoteAddr", r.RemoteAddr).Logger())
	client.Run()
}
