package controller

import (
	"context"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/watchparty/server/pkg/ctxlogger"
	"github.com/watchparty/server/pkg/wsrouter"
)

func (c *controller) loggerWSMw() wsrouter.Middleware {
	return func(next wsrouter.HandlerFunc[any]) wsrouter.HandlerFunc[any] {
		return func(ctx context.Context, conn *websocket.Conn, payload any) error {
			ctx = ctxlogger.AppendCtx(ctx, slog.String("message_type", wsrouter.GetMessageTypeFromCtx(ctx)))

			start := time.Now()
			err := next(ctx, conn, payload)

			c.logger.DebugContext(ctx, "websocket message handled",
				"processing_time_us", time.Since(start).Microseconds(),
				"error", err,
			)

			return err
		}
	}
}

// wsErrorHandler logs routing and handler failures. Room-operation failures
// are not surfaced to the peer: per protocol, invalid intents fail silently.
func (c *controller) wsErrorHandler(ctx context.Context, _ *websocket.Conn, err error) {
	c.logger.DebugContext(ctx, "websocket message dropped", "error", err)
}
