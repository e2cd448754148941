package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/watchparty/server/internal/repository/room"
)

func (r repo) getMemberKey(roomCode string, userId int64) string {
	return "room:" + roomCode + ":member:" + strconv.FormatInt(userId, 10)
}

func (r repo) getMemberListKey(roomCode string) string {
	return "room:" + roomCode + ":memberlist"
}

func (r repo) SetMember(ctx context.Context, params *room.SetMemberParams) error {
	r.logger.DebugContext(ctx, "SetMember", "params", params)
	pipe := r.rc.TxPipeline()

	memberKey := r.getMemberKey(params.RoomCode, params.UserId)
	pipe.HSet(ctx, memberKey,
		"user_id", params.UserId,
		"username", params.Username,
		"connection_id", params.ConnectionId,
		"joined_at", params.JoinedAt,
	)
	pipe.Expire(ctx, memberKey, r.expireDuration)

	memberListKey := r.getMemberListKey(params.RoomCode)
	r.addWithIncrement(ctx, pipe, memberListKey, params.UserId)
	pipe.Expire(ctx, memberListKey, r.expireDuration)

	if err := r.executePipe(ctx, pipe); err != nil {
		return fmt.Errorf("failed to set member: %w", err)
	}

	return nil
}

func (r repo) UpdateMemberConnection(ctx context.Context, params *room.UpdateMemberConnectionParams) error {
	r.logger.DebugContext(ctx, "UpdateMemberConnection", "params", params)
	memberKey := r.getMemberKey(params.RoomCode, params.UserId)

	cmd := r.rc.Exists(ctx, memberKey)
	if err := cmd.Err(); err != nil {
		return err
	}
	if cmd.Val() == 0 {
		return room.ErrMemberNotFound
	}

	if err := r.rc.HSet(ctx, memberKey, "connection_id", params.ConnectionId).Err(); err != nil {
		return err
	}

	r.rc.Expire(ctx, memberKey, r.expireDuration)

	return nil
}

func (r repo) GetMember(ctx context.Context, params *room.GetMemberParams) (room.Member, error) {
	var member room.Member
	if err := r.rc.HGetAll(ctx, r.getMemberKey(params.RoomCode, params.UserId)).Scan(&member); err != nil {
		return room.Member{}, fmt.Errorf("failed to get member: %w", err)
	}

	if member.UserId == 0 {
		return room.Member{}, room.ErrMemberNotFound
	}

	return member, nil
}

func (r repo) GetMemberIds(ctx context.Context, roomCode string) ([]int64, error) {
	fields, err := r.rc.ZRange(ctx, r.getMemberListKey(roomCode), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get member ids: %w", err)
	}

	memberIds := make([]int64, 0, len(fields))
	for _, field := range fields {
		id, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed member id %q: %w", field, err)
		}

		memberIds = append(memberIds, id)
	}

	return memberIds, nil
}

func (r repo) RemoveMember(ctx context.Context, params *room.RemoveMemberParams) error {
	r.logger.DebugContext(ctx, "RemoveMember", "params", params)
	if err := r.rc.ZRem(ctx, r.getMemberListKey(params.RoomCode), params.UserId).Err(); err != nil {
		return err
	}

	res, err := r.rc.Del(ctx, r.getMemberKey(params.RoomCode, params.UserId)).Result()
	if err != nil {
		return err
	}
	if res == 0 {
		return room.ErrMemberNotFound
	}

	return nil
}

func (r repo) RemoveAllMembers(ctx context.Context, roomCode string) error {
	r.logger.DebugContext(ctx, "RemoveAllMembers", "room_code", roomCode)
	memberIds, err := r.GetMemberIds(ctx, roomCode)
	if err != nil {
		return err
	}

	pipe := r.rc.TxPipeline()
	for _, userId := range memberIds {
		pipe.Del(ctx, r.getMemberKey(roomCode, userId))
	}
	pipe.Del(ctx, r.getMemberListKey(roomCode))

	if err := r.executePipe(ctx, pipe); err != nil {
		return fmt.Errorf("failed to remove members: %w", err)
	}

	return nil
}
