// Package server contains the websocket hub that routes client messages
// into matchmaking, game and session handling.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/tecu23/arena-server/pkg/messages"
)

// sendBuffer is the per-connection outbound queue size. A client that
// cannot drain it is treated as gone.
const sendBuffer = 256

var (
	errConnectionClosed = errors.New("connection closed")
	errSendBufferFull   = errors.New("send buffer full")
)

// Connection wraps one websocket client. Reading, handling and writing run
// as three pumps so a handler blocked in matchmaking never stalls reads,
// while each connection's messages are still handled in arrival order.
type Connection struct {
	id  uuid.UUID
	ws  *websocket.Conn
	hub *Hub

	send    chan []byte
	inbound chan messages.InboundMessage

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once

	logger *zap.Logger
}

// NewConnection wraps an upgraded websocket. The caller must register it
// with the hub before starting the pumps.
func NewConnection(ws *websocket.Conn, hub *Hub, logger *zap.Logger) *Connection {
	ctx, cancel := context.WithCancel(context.Background())

	return &Connection{
		id:      uuid.New(),
		ws:      ws,
		hub:     hub,
		send:    make(chan []byte, sendBuffer),
		inbound: make(chan messages.InboundMessage, 32),
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger,
	}
}

// ID returns the server-assigned connection id.
func (c *Connection) ID() uuid.UUID { return c.id }

// Context is cancelled when the connection is torn down. Long-running
// handlers such as matchmaking waits use it to unblock.
func (c *Connection) Context() context.Context { return c.ctx }

// Send marshals v and queues it without blocking. A non-nil error means
// the connection should be treated as dead.
func (c *Connection) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("error marshaling outbound message", zap.Error(err))
		return err
	}

	select {
	case <-c.ctx.Done():
		return errConnectionClosed
	case c.send <- data:
		return nil
	default:
		return errSendBufferFull
	}
}

// Close tears the connection down exactly once: cancels the context and
// closes the underlying socket, which unblocks all three pumps.
func (c *Connection) Close() error {
	c.once.Do(func() {
		c.cancel()
		c.ws.Close()
	})

	return nil
}

// ReadPump reads client frames and feeds them to the process pump. It owns
// the disconnect: when the socket dies the hub is told exactly once.
func (c *Connection) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.Close()
		close(c.inbound)
	}()

	for {
		msgType, msg, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("websocket read error", zap.Error(err))
			}
			return
		}

		if msgType != websocket.TextMessage {
			continue
		}

		var inbound messages.InboundMessage
		if err := json.Unmarshal(msg, &inbound); err != nil {
			c.logger.Error("failed to parse incoming message", zap.Error(err))
			continue
		}

		select {
		case c.inbound <- inbound:
		case <-c.ctx.Done():
			return
		}
	}
}

// ProcessPump handles inbound messages one at a time. It exits once the
// read pump closes the inbound channel and the backlog is drained.
func (c *Connection) ProcessPump() {
	for msg := range c.inbound {
		c.hub.route(c, msg)
	}
}

// WritePump serializes all writes to the websocket.
func (c *Connection) WritePump() {
	defer c.ws.Close()

	for {
		select {
		case <-c.ctx.Done():
			return
		case message := <-c.send:
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Error("websocket write error", zap.Error(err))
				return
			}
		}
	}
}
