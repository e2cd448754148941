package controller

import (
	"context"

	"github.com/watchparty/server/internal/repository/connection"
)

type contextKey int

const (
	identityCtxKey contextKey = iota
	connCtxKey
)

func (c *controller) getIdentityFromCtx(ctx context.Context) connection.Identity {
	identity, ok := ctx.Value(identityCtxKey).(connection.Identity)
	if !ok {
		return connection.Identity{}
	}

	return identity
}

func (c *controller) getConnFromCtx(ctx context.Context) *connection.Conn {
	conn, ok := ctx.Value(connCtxKey).(*connection.Conn)
	if !ok {
		return nil
	}

	return conn
}
