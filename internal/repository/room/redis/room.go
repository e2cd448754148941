package redis

import (
	"context"
	"fmt"

	"github.com/watchparty/server/internal/repository/room"
)

func (r repo) getRoomKey(roomCode string) string {
	return "room:" + roomCode
}

// SetRoom claims a room code. The creator_id field is written with HSETNX so
// a concurrent create with the same code loses and gets ErrRoomAlreadyExists.
func (r repo) SetRoom(ctx context.Context, params *room.SetRoomParams) error {
	r.logger.DebugContext(ctx, "SetRoom", "params", params)
	roomKey := r.getRoomKey(params.RoomCode)

	claimed, err := r.rc.HSetNX(ctx, roomKey, "creator_id", params.CreatorId).Result()
	if err != nil {
		return fmt.Errorf("failed to claim room code: %w", err)
	}
	if !claimed {
		return room.ErrRoomAlreadyExists
	}

	pipe := r.rc.TxPipeline()
	pipe.HSet(ctx, roomKey,
		"creator_username", params.CreatorUsername,
		"is_active", true,
		"created_at", params.CreatedAt,
	)
	pipe.Expire(ctx, roomKey, r.expireDuration)

	if err := r.executePipe(ctx, pipe); err != nil {
		return fmt.Errorf("failed to set room: %w", err)
	}

	return nil
}

func (r repo) GetRoom(ctx context.Context, roomCode string) (room.Room, error) {
	roomKey := r.getRoomKey(roomCode)

	var rm room.Room
	if err := r.rc.HGetAll(ctx, roomKey).Scan(&rm); err != nil {
		return room.Room{}, fmt.Errorf("failed to get room: %w", err)
	}

	if rm.CreatorId == 0 {
		return room.Room{}, room.ErrRoomNotFound
	}

	r.rc.Expire(ctx, roomKey, r.expireDuration)

	return rm, nil
}

func (r repo) DeactivateRoom(ctx context.Context, roomCode string) error {
	r.logger.DebugContext(ctx, "DeactivateRoom", "room_code", roomCode)
	roomKey := r.getRoomKey(roomCode)

	cmd := r.rc.Exists(ctx, roomKey)
	if err := cmd.Err(); err != nil {
		return err
	}
	if cmd.Val() == 0 {
		return room.ErrRoomNotFound
	}

	if err := r.rc.HSet(ctx, roomKey, "is_active", false).Err(); err != nil {
		return fmt.Errorf("failed to deactivate room: %w", err)
	}

	r.rc.Expire(ctx, roomKey, r.expireDuration)

	return nil
}
