package controller

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/watchparty/server/internal/repository/connection"
	"github.com/watchparty/server/internal/service/room"
	"github.com/watchparty/server/pkg/ctxlogger"
)

// serveWS admits a realtime connection. The credential is resolved before the
// upgrade: an unauthenticated peer is refused without ever reaching a room
// operation.
func (c *controller) serveWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")

	identity, err := c.roomService.Authenticate(token)
	if err != nil {
		if !errors.Is(err, room.ErrUnauthorized) {
			c.logger.ErrorContext(r.Context(), "failed to authenticate", "error", err)
		}

		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	ws, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to upgrade to websocket", "error", err)
		return
	}

	conn := connection.NewConn(uuid.NewString(), ws, identity, c.logger)
	if err := c.roomService.RegisterConnection(conn); err != nil {
		c.logger.WarnContext(r.Context(), "failed to register connection", "error", err)
		conn.Close()
		return
	}

	ctx := ctxlogger.AppendCtx(r.Context(),
		slog.String("connection_id", conn.Id),
		slog.Int64("user_id", identity.UserId),
	)
	ctx = context.WithValue(ctx, connCtxKey, conn)

	c.logger.InfoContext(ctx, "connection established")

	if err := c.wsmux.ServeConn(ctx, ws); err != nil {
		c.logger.DebugContext(ctx, "connection read loop ended", "error", err)
	}

	// the request context may already be canceled; cleanup still has to run
	cleanupCtx := context.WithoutCancel(ctx)

	disconnectResp, err := c.roomService.Disconnect(cleanupCtx, ws)
	if err != nil {
		c.logger.WarnContext(cleanupCtx, "failed to clean up connection", "error", err)
		return
	}

	if disconnectResp.RoomCode != "" {
		c.notifyLeft(cleanupCtx, disconnectResp.RoomCode, disconnectResp.LeftMember, disconnectResp.IsRoomClosed, disconnectResp.Conns)
	}

	c.logger.InfoContext(cleanupCtx, "connection closed")
}
