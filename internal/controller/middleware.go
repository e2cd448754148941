package controller

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/watchparty/server/internal/service/room"
	"github.com/watchparty/server/pkg/ctxlogger"
	"github.com/watchparty/server/pkg/rest"
)

func (c *controller) requestIdMw(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := ctxlogger.AppendCtx(r.Context(), slog.String("request_id", uuid.NewString()))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (c *controller) requestLoggingMw(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.logger.InfoContext(r.Context(), "request",
			"method", r.Method,
			"url", r.URL.String(),
			"remote_addr", r.RemoteAddr,
		)
		next.ServeHTTP(w, r)
	})
}

// authMw resolves the Bearer credential to a user identity before any room
// operation is reached.
func (c *controller) authMw(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			rest.WriteJSON(w, http.StatusUnauthorized, rest.Envelope{"error": "missing credentials"})
			return
		}

		identity, err := c.roomService.Authenticate(token)
		if err != nil {
			if errors.Is(err, room.ErrUnauthorized) {
				rest.WriteJSON(w, http.StatusUnauthorized, rest.Envelope{"error": "invalid credentials"})
				return
			}

			c.logger.ErrorContext(r.Context(), "failed to authenticate", "error", err)
			rest.WriteJSON(w, http.StatusInternalServerError, rest.Envelope{"error": "internal error"})
			return
		}

		ctx := context.WithValue(r.Context(), identityCtxKey, identity)
		ctx = ctxlogger.AppendCtx(ctx, slog.Int64("user_id", identity.UserId))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
