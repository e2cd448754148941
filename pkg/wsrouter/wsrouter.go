package wsrouter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"
)

// Message is the wire envelope. Id is optional and is used to correlate a
// request with its reply for request/response message types.
type Message struct {
	Type    string          `json:"type"`
	Id      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type HandlerFunc[T any] func(ctx context.Context, conn *websocket.Conn, payload T) error

type Middleware func(next HandlerFunc[any]) HandlerFunc[any]

// ErrorFunc is called when a handler returns an error or a message cannot be
// routed. It must not write to the connection directly.
type ErrorFunc func(ctx context.Context, conn *websocket.Conn, err error)

type WSRouter struct {
	routes      map[string]HandlerFunc[json.RawMessage]
	middlewares []Middleware
	onError     ErrorFunc
}

func New() *WSRouter {
	return &WSRouter{
		routes:  make(map[string]HandlerFunc[json.RawMessage]),
		onError: func(context.Context, *websocket.Conn, error) {},
	}
}

func (r *WSRouter) Use(mw Middleware) {
	r.middlewares = append(r.middlewares, mw)
}

func (r *WSRouter) OnError(f ErrorFunc) {
	r.onError = f
}

// Handle registers a handler for a message type, decoding the payload into T
// before invoking it.
func Handle[T any](r *WSRouter, messageType string, handler HandlerFunc[T]) {
	r.routes[messageType] = func(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error {
		var in T
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &in); err != nil {
				return fmt.Errorf("failed to decode %q payload: %w", messageType, err)
			}
		}

		return handler(ctx, conn, in)
	}
}

// ServeConn reads messages from the connection and routes them until the
// connection is closed or the context is canceled. Unknown message types are
// reported through the error callback and otherwise ignored.
func (r *WSRouter) ServeConn(ctx context.Context, conn *websocket.Conn) error {
	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			return err
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		handler, ok := r.routes[msg.Type]
		if !ok {
			r.onError(ctx, conn, fmt.Errorf("unknown message type %q", msg.Type))
			continue
		}

		msgCtx := context.WithValue(ctx, messageTypeKey, msg.Type)
		msgCtx = context.WithValue(msgCtx, messageIdKey, msg.Id)

		wrapped := func(ctx context.Context, conn *websocket.Conn, payload any) error {
			return handler(ctx, conn, payload.(json.RawMessage))
		}
		for i := len(r.middlewares) - 1; i >= 0; i-- {
			wrapped = r.middlewares[i](wrapped)
		}

		if err := wrapped(msgCtx, conn, msg.Payload); err != nil {
			r.onError(msgCtx, conn, err)
		}
	}
}
