// Package ws exposes the messenger over WebSocket connections.
package ws

import (
	"context"
	"log/slog"
	"messenger/domain"
	"messenger/domain/event"
	customerrors "messenger/errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Connection is the live handle of one WebSocket session.
// Push only enqueues; the write pump is the single writer of the socket.
type Connection struct {
	id        string
	userID    domain.UserID
	createdAt time.Time
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	log       *slog.Logger
	writeWait time.Duration
	pongWait  time.Duration
}

func NewConnection(log *slog.Logger, conn *websocket.Conn, userID domain.UserID, config Config) *Connection {
	id := uuid.NewString()
	return &Connection{
		id:        id,
		userID:    userID,
		createdAt: time.Now().UTC(),
		conn:      conn,
		send:      make(chan []byte, config.BufferSize),
		done:      make(chan struct{}),
		log:       log.With("connection_id", id, "user_id", userID),
		writeWait: config.WriteWait,
		pongWait:  config.PongWait,
	}
}

func (c *Connection) ID() string { return c.id }
func (c *Connection) UserID() domain.UserID { return c.userID }
func (c *Connection) CreatedAt() time.Time { return c.createdAt }
func (c *Connection) Done() <-chan struct{} { return c.done }

// Push encodes the event and queues it. It never waits: a closed connection
// or a full buffer is reported as an error, and a full buffer closes the connection.
func (c *Connection) Push(ctx context.Context, name event.Name, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-c.done:
		return customerrors.ErrConnectionClosed
	default:
	}
	data, err := event.Encode(name, payload)
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return customerrors.ErrConnectionClosed
	case c.send <- data:
		return nil
	default:
		// A client this far behind is dropped: it reconnects and refetches.
		c.log.Warn("Send buffer full, closing connection", "event", name)
		_ = c.Close()
		return customerrors.ErrSendBufferFull
	}
}

// Close is idempotent. The write pump sends a close frame and releases the socket.
func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	return nil
}

func (c *Connection) writePump() {
	ticker := time.NewTicker((c.pongWait * 9) / 10)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.log.Debug("Write failed", "error", err)
				_ = c.Close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = c.Close()
				return
			}
		case <-c.done:
			c.flush()
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(c.writeWait))
			return
		}
	}
}

// flush writes what was queued before the close, without waiting for more.
func (c *Connection) flush() {
	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		default:
			return
		}
	}
}

// readPump hands every frame to handle until the peer goes away or the
// connection is closed.
func (c *Connection) readPump(maxMessageSize int64, handle func(raw []byte)) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	})
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("Read error", "error", err)
			}
			return
		}
		handle(raw)
	}
}
