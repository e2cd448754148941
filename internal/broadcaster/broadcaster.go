package broadcaster

import (
	"context"
	"log/slog"

	"github.com/watchparty/server/internal/repository/connection"
)

// Broadcaster fans an event out to a set of room connections. Delivery is
// fire-and-forget: individual send failures are logged and never abort the
// operation for the remaining members. Echo suppression for state-mutating
// events is enforced here, not by the clients.
type Broadcaster struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Broadcaster {
	return &Broadcaster{logger: logger}
}

func (b *Broadcaster) Broadcast(ctx context.Context, conns []*connection.Conn, msg any) {
	b.send(ctx, conns, "", msg)
}

// BroadcastExcept delivers to every connection except the originating one.
func (b *Broadcaster) BroadcastExcept(ctx context.Context, conns []*connection.Conn, originConnId string, msg any) {
	b.send(ctx, conns, originConnId, msg)
}

func (b *Broadcaster) send(ctx context.Context, conns []*connection.Conn, skipConnId string, msg any) {
	for _, c := range conns {
		if c.Id == skipConnId {
			continue
		}

		if err := c.Send(msg); err != nil {
			b.logger.DebugContext(ctx, "failed to deliver event",
				"connection_id", c.Id,
				"error", err,
			)
		}
	}
}
