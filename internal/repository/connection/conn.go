package connection

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	sendBufferSize = 64
	writeWait      = 10 * time.Second
)

var ErrSendBufferFull = errors.New("send buffer full")

type Identity struct {
	UserId   int64
	Username string
}

// Conn wraps a websocket connection with an authenticated identity and a
// buffered write pump. All outbound writes go through the pump so broadcasts
// from different rooms never interleave partial frames, and a slow consumer
// never blocks the sender: when the buffer is full the message is dropped.
type Conn struct {
	Id       string
	identity Identity

	ws     *websocket.Conn
	logger *slog.Logger

	send chan []byte
	done chan struct{}

	mu        sync.Mutex
	roomCode  string
	closeOnce sync.Once
}

func NewConn(id string, ws *websocket.Conn, identity Identity, logger *slog.Logger) *Conn {
	c := &Conn{
		Id:       id,
		identity: identity,
		ws:       ws,
		logger:   logger,
		send:     make(chan []byte, sendBufferSize),
		done:     make(chan struct{}),
	}

	go c.writePump()

	return c
}

func (c *Conn) Identity() Identity {
	return c.identity
}

func (c *Conn) WS() *websocket.Conn {
	return c.ws
}

// BindRoom records the room this connection currently belongs to, replacing
// any previous binding. An empty code clears the binding.
func (c *Conn) BindRoom(roomCode string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roomCode = roomCode
}

func (c *Conn) BoundRoom() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomCode
}

// Send queues a message for delivery. Delivery is fire-and-forget: a full
// buffer or a closed connection drops the message and reports the reason.
func (c *Conn) Send(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	select {
	case <-c.done:
		return websocket.ErrCloseSent
	case c.send <- b:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.ws.Close()
	})
}

func (c *Conn) writePump() {
	for {
		select {
		case <-c.done:
			return
		case b := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, b); err != nil {
				c.logger.Debug("write failed, closing connection", "connection_id", c.Id, "error", err)
				c.Close()
				return
			}
		}
	}
}
