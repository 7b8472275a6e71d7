package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"gqlherd/internal/batcher"
	"gqlherd/internal/graphql"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024 * 1024 // 1MB
)

// Client represents a WebSocket client connection
type Client struct {
	conn    *websocket.Conn
	batcher *batcher.Batcher
	logger  zerolog.Logger

	sendChan  chan []byte
	closeChan chan struct{}
	closeOnce sync.Once
}

// NewClient creates a new WebSocket client
func NewClient(conn *websocket.Conn, b *batcher.Batcher, logger zerolog.Logger) *Client {
	return &Client{
		conn:      conn,
		batcher:   b,
		logger:    logger,
		sendChan:  make(chan []byte, 256),
		closeChan: make(chan struct{}),
	}
}

// Run starts the client read and write loops
func (c *Client) Run() {
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.writePump()

	// Read loop (runs in current goroutine)
	c.readPump()
}

// Close closes the connection
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.closeChan)
		c.conn.Close()
	})
}

// readPump reads submission frames from the WebSocket connection.
// Each frame is submitted to the batcher; a goroutine per frame
// forwards the settled outcome to the write pump.
func (c *Client) readPump() {
	defer c.Close()

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn().Err(err).Msg("unexpected close")
			}
			return
		}

		var frame submitFrame
		if err := json.Unmarshal(message, &frame); err != nil {
			c.sendError(frame.ID, "invalid frame")
			continue
		}

		if frame.ID == "" {
			c.sendError("", "frame id is required")
			continue
		}
		if frame.Query == "" {
			c.sendError(frame.ID, "query is required")
			continue
		}
		if err := graphql.ValidateQuery(frame.Query); err != nil {
			c.sendError(frame.ID, err.Error())
			continue
		}

		outCh := c.batcher.Submit(frame.Query, frame.Variables, frame.Fresh)

		go func(frameID string, outCh <-chan batcher.Outcome) {
			select {
			case out := <-outCh:
				c.sendOutcome(frameID, out)
			case <-c.closeChan:
			}
		}(frame.ID, outCh)
	}
}

// sendOutcome maps one settled outcome onto a result frame
func (c *Client) sendOutcome(frameID string, out batcher.Outcome) {
	frame := resultFrame{ID: frameID}

	switch {
	case out.Err == nil:
		frame.Data = out.Response.Data
		frame.Extensions = out.Response.Extensions
	case out.Response != nil && out.Response.HasErrors():
		frame.Errors = out.Response.Errors
	default:
		frame.Errors = []*graphql.Error{{Message: out.Err.Error()}}
	}

	c.send(frame)
}

// sendError sends an error result frame
func (c *Client) sendError(frameID, message string) {
	c.send(resultFrame{
		ID:     frameID,
		Errors: []*graphql.Error{{Message: message}},
	})
}

// send queues a frame for the write pump
func (c *Client) send(frame resultFrame) {
	data, err := json.Marshal(frame)
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to marshal result frame")
		return
	}

	select {
	case c.sendChan <- data:
	case <-c.closeChan:
	}
}

// writePump writes queued frames and keepalive pings to the connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message := <-c.sendChan:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Debug().Err(err).Msg("write failed")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.closeChan:
			return
		}
	}
}
