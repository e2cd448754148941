package room

import (
	"context"
	"errors"
	"fmt"

	"github.com/watchparty/server/internal/repository/connection"
	"github.com/watchparty/server/internal/repository/room"
)

// getRoomConns resolves the current member set to live connections. Members
// without a bound connection (joined over REST only, or mid-reconnect) are
// skipped.
func (s *service) getRoomConns(ctx context.Context, roomCode string) ([]*connection.Conn, error) {
	memberIds, err := s.roomRepo.GetMemberIds(ctx, roomCode)
	if err != nil {
		return nil, fmt.Errorf("failed to get member ids: %w", err)
	}

	conns := make([]*connection.Conn, 0, len(memberIds))
	for _, userId := range memberIds {
		member, err := s.roomRepo.GetMember(ctx, &room.GetMemberParams{RoomCode: roomCode, UserId: userId})
		if err != nil {
			if errors.Is(err, room.ErrMemberNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to get member: %w", err)
		}

		if member.ConnectionId == "" {
			continue
		}

		conn, err := s.connRepo.GetById(member.ConnectionId)
		if err != nil {
			continue
		}

		conns = append(conns, conn)
	}

	return conns, nil
}

func (s *service) getMemberList(ctx context.Context, roomCode string) ([]Member, error) {
	memberIds, err := s.roomRepo.GetMemberIds(ctx, roomCode)
	if err != nil {
		return nil, fmt.Errorf("failed to get member ids: %w", err)
	}

	members := make([]Member, 0, len(memberIds))
	for _, userId := range memberIds {
		member, err := s.roomRepo.GetMember(ctx, &room.GetMemberParams{RoomCode: roomCode, UserId: userId})
		if err != nil {
			if errors.Is(err, room.ErrMemberNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to get member: %w", err)
		}

		members = append(members, Member{
			Id: member.UserId,
			User: User{
				Id:       member.UserId,
				Username: member.Username,
			},
		})
	}

	return members, nil
}

func (s *service) buildRoom(ctx context.Context, roomCode string, rm room.Room) (Room, error) {
	members, err := s.getMemberList(ctx, roomCode)
	if err != nil {
		return Room{}, err
	}

	result := Room{
		RoomCode: roomCode,
		IsActive: rm.IsActive,
		Creator: User{
			Id:       rm.CreatorId,
			Username: rm.CreatorUsername,
		},
		Members: members,
	}

	player, err := s.roomRepo.GetPlayer(ctx, roomCode)
	if err != nil {
		if !errors.Is(err, room.ErrPlayerNotFound) {
			return Room{}, fmt.Errorf("failed to get player: %w", err)
		}
	} else if player.State != room.StateIdle {
		videoId := player.VideoId
		result.CurrentVideoId = &videoId
	}

	return result, nil
}

// effectiveState maps the stored state to the state implied by time: a
// scheduled start that has elapsed counts as playing even though no timer
// fired a transition.
func effectiveState(player room.Player, nowMs int64) room.PlaybackState {
	if player.State == room.StateScheduled && nowMs >= player.ScheduledStartAt {
		return room.StatePlaying
	}

	return player.State
}

// requireMember verifies the sender belongs to the room before an intent is
// accepted.
func (s *service) requireMember(ctx context.Context, roomCode string, userId int64) (room.Member, error) {
	member, err := s.roomRepo.GetMember(ctx, &room.GetMemberParams{RoomCode: roomCode, UserId: userId})
	if err != nil {
		if errors.Is(err, room.ErrMemberNotFound) {
			return room.Member{}, ErrMemberNotFound
		}
		return room.Member{}, fmt.Errorf("failed to get member: %w", err)
	}

	return member, nil
}

// requireActiveRoom loads a room and fails with ErrRoomNotFound for unknown
// and inactive rooms alike, so a closed room is indistinguishable from one
// that never existed.
func (s *service) requireActiveRoom(ctx context.Context, roomCode string) (room.Room, error) {
	rm, err := s.roomRepo.GetRoom(ctx, roomCode)
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			return room.Room{}, ErrRoomNotFound
		}
		return room.Room{}, fmt.Errorf("failed to get room: %w", err)
	}

	if !rm.IsActive {
		return room.Room{}, ErrRoomNotFound
	}

	return rm, nil
}
