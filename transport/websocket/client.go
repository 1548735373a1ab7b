package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rocketscienceinc/dotsandboxes-backend/internal/apperror"
	"github.com/rocketscienceinc/dotsandboxes-backend/internal/broadcast"
	"github.com/rocketscienceinc/dotsandboxes-backend/internal/pkg"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 64 * 1024
	sendBuffer     = 64
)

// Client is one websocket connection. It joins match rooms as a broadcast subscriber.
type Client struct {
	id   string
	conn *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	userID string
	name   string
	closed bool
}

func newClient(conn *websocket.Conn, userID string) *Client {
	return &Client{
		id:     pkg.NewInternalID(),
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		userID: userID,
	}
}

func (that *Client) ID() string {
	return that.id
}

// Send queues data for the writer. It reports false when the buffer is full or the client is gone.
func (that *Client) Send(data []byte) bool {
	that.mu.RLock()
	defer that.mu.RUnlock()

	if that.closed {
		return false
	}

	select {
	case that.send <- data:
		return true
	default:
		return false
	}
}

func (that *Client) User() (string, string) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return that.userID, that.name
}

func (that *Client) setUser(userID, name string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.userID = userID
	that.name = name
}

func (that *Client) close() {
	that.mu.Lock()
	defer that.mu.Unlock()

	if !that.closed {
		that.closed = true
		close(that.send)
	}
}

// reply sends an event to this client only.
func (that *Client) reply(action string, payload any) {
	event, err := broadcast.NewEvent(action, payload)
	if err != nil {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	that.Send(data)
}

func (that *Client) replyError(action string, err error) {
	that.reply(action, ErrorPayload{Error: apperror.Reason(err)})
}

// writePump - writes queued messages and keeps the connection alive with pings.
func (that *Client) writePump(logger *slog.Logger) {
	log := logger.With("method", "writePump", "client_id", that.id)

	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		that.conn.Close()
	}()

	for {
		select {
		case message, ok := <-that.send:
			_ = that.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = that.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := that.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Warn("failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = that.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := that.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Warn("failed to ping", "error", err)
				return
			}
		}
	}
}
