package redis

import (
	"context"
	"fmt"

	"github.com/watchparty/server/internal/repository/room"
)

func (r repo) getPlayerKey(roomCode string) string {
	return "room:" + roomCode + ":player"
}

func (r repo) getSequenceKey(roomCode string) string {
	return "room:" + roomCode + ":seq"
}

func (r repo) SetPlayer(ctx context.Context, params *room.SetPlayerParams) error {
	r.logger.DebugContext(ctx, "SetPlayer", "params", params)
	pipe := r.rc.TxPipeline()

	playerKey := r.getPlayerKey(params.RoomCode)
	pipe.HSet(ctx, playerKey,
		"state", string(params.State),
		"video_id", params.VideoId,
		"scheduled_start_at", params.ScheduledStartAt,
		"last_position", params.LastPosition,
		"updated_at", params.UpdatedAt,
	)
	pipe.Expire(ctx, playerKey, r.expireDuration)

	if err := r.executePipe(ctx, pipe); err != nil {
		return fmt.Errorf("failed to set player: %w", err)
	}

	return nil
}

func (r repo) GetPlayer(ctx context.Context, roomCode string) (room.Player, error) {
	playerKey := r.getPlayerKey(roomCode)

	var player room.Player
	if err := r.rc.HGetAll(ctx, playerKey).Scan(&player); err != nil {
		return room.Player{}, fmt.Errorf("failed to get player: %w", err)
	}

	if player.State == "" {
		return room.Player{}, room.ErrPlayerNotFound
	}

	r.rc.Expire(ctx, playerKey, r.expireDuration)

	return player, nil
}

func (r repo) UpdatePlayerState(ctx context.Context, params *room.UpdatePlayerStateParams) error {
	r.logger.DebugContext(ctx, "UpdatePlayerState", "params", params)
	playerKey := r.getPlayerKey(params.RoomCode)

	cmd := r.rc.Exists(ctx, playerKey)
	if err := cmd.Err(); err != nil {
		return err
	}
	if cmd.Val() == 0 {
		return room.ErrPlayerNotFound
	}

	if err := r.rc.HSet(ctx, playerKey,
		"state", string(params.State),
		"last_position", params.LastPosition,
		"updated_at", params.UpdatedAt,
	).Err(); err != nil {
		return err
	}

	r.rc.Expire(ctx, playerKey, r.expireDuration)

	return nil
}

func (r repo) RemovePlayer(ctx context.Context, roomCode string) error {
	r.logger.DebugContext(ctx, "RemovePlayer", "room_code", roomCode)
	res, err := r.rc.Del(ctx, r.getPlayerKey(roomCode)).Result()
	if err != nil {
		return fmt.Errorf("failed to remove player: %w", err)
	}

	if res == 0 {
		return room.ErrPlayerNotFound
	}

	return nil
}

// NextSequence returns the next event sequence number for a room. Sequence
// numbers are monotonic per room for the lifetime of the key.
func (r repo) NextSequence(ctx context.Context, roomCode string) (int64, error) {
	seqKey := r.getSequenceKey(roomCode)

	seq, err := r.rc.Incr(ctx, seqKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment sequence: %w", err)
	}

	r.rc.Expire(ctx, seqKey, r.expireDuration)

	return seq, nil
}
