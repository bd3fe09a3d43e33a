package http

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"trivia-quiz-service/internal/domain"
)

// ConnectionConfig holds configuration for participant websocket connections.
type ConnectionConfig struct {
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
	SendBuffer     int
}

func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:   10 * time.Second,
		ReadTimeout:    60 * time.Second,
		PingInterval:   30 * time.Second,
		MaxMessageSize: 1024,
		SendBuffer:     64,
	}
}

// connection is one participant socket. It implements app.Handle: Send only
// enqueues, and a dedicated writer goroutine owns every socket write.
type connection struct {
	id     string
	roomID string
	player string
	conn   *websocket.Conn
	cfg    ConnectionConfig

	mu     sync.Mutex
	send   chan domain.OutboundMessage
	closed bool

	writerDone chan struct{}
}

func newConnection(id, roomID, player string, conn *websocket.Conn, cfg ConnectionConfig) *connection {
	return &connection{
		id:         id,
		roomID:     roomID,
		player:     player,
		conn:       conn,
		cfg:        cfg,
		send:       make(chan domain.OutboundMessage, cfg.SendBuffer),
		writerDone: make(chan struct{}),
	}
}

func (c *connection) ID() string { return c.id }

func (c *connection) Send(msg domain.OutboundMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return domain.ErrHandleClosed
	}
	select {
	case c.send <- msg:
		return nil
	default:
		return domain.ErrSlowConsumer
	}
}

// Close stops accepting messages. Already queued messages are still written,
// followed by a normal close frame.
func (c *connection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *connection) writePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		close(c.writerDone)
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"))
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				log.Warn().
					Err(err).
					Str("handle_id", c.id).
					Str("room_id", c.roomID).
					Msg("failed to write message to websocket")
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().Err(err).Str("handle_id", c.id).Msg("failed to send ping")
				return
			}
		}
	}
}
