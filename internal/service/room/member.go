package room

import (
	"context"
	"errors"
	"fmt"

	"github.com/watchparty/server/internal/repository/connection"
	"github.com/watchparty/server/internal/repository/room"
)

type JoinRoomParams struct {
	RoomCode string
	UserId   int64
	Username string
	// ConnectionId binds the member to a live connection. Empty for a REST
	// join, which registers membership without a realtime binding.
	ConnectionId string
}

type JoinRoomResponse struct {
	Room         Room
	JoinedMember Member
	Conns        []*connection.Conn
}

// JoinRoom adds a member to an active room, or rebinds an existing member to
// a new connection. A user holds at most one connection per room: rejoining
// replaces the previous binding.
func (s *service) JoinRoom(ctx context.Context, params *JoinRoomParams) (JoinRoomResponse, error) {
	mu := s.lockRoom(params.RoomCode)
	mu.Lock()
	defer mu.Unlock()

	rm, err := s.requireActiveRoom(ctx, params.RoomCode)
	if err != nil {
		return JoinRoomResponse{}, err
	}

	existing, err := s.roomRepo.GetMember(ctx, &room.GetMemberParams{
		RoomCode: params.RoomCode,
		UserId:   params.UserId,
	})
	switch {
	case err == nil:
		if params.ConnectionId != "" && params.ConnectionId != existing.ConnectionId {
			s.unbindConnection(existing.ConnectionId)

			if err := s.roomRepo.UpdateMemberConnection(ctx, &room.UpdateMemberConnectionParams{
				RoomCode:     params.RoomCode,
				UserId:       params.UserId,
				ConnectionId: params.ConnectionId,
			}); err != nil {
				return JoinRoomResponse{}, fmt.Errorf("failed to rebind member connection: %w", err)
			}
		}
	case errors.Is(err, room.ErrMemberNotFound):
		memberIds, err := s.roomRepo.GetMemberIds(ctx, params.RoomCode)
		if err != nil {
			return JoinRoomResponse{}, fmt.Errorf("failed to get member ids: %w", err)
		}
		if len(memberIds) >= s.membersLimit {
			return JoinRoomResponse{}, ErrMembersLimit
		}

		if err := s.roomRepo.SetMember(ctx, &room.SetMemberParams{
			RoomCode:     params.RoomCode,
			UserId:       params.UserId,
			Username:     params.Username,
			ConnectionId: params.ConnectionId,
			JoinedAt:     s.clock.Now().UnixMilli(),
		}); err != nil {
			return JoinRoomResponse{}, fmt.Errorf("failed to set member: %w", err)
		}
	default:
		return JoinRoomResponse{}, fmt.Errorf("failed to get member: %w", err)
	}

	if params.ConnectionId != "" {
		if conn, err := s.connRepo.GetById(params.ConnectionId); err == nil {
			conn.BindRoom(params.RoomCode)
		}
	}

	result, err := s.buildRoom(ctx, params.RoomCode, rm)
	if err != nil {
		return JoinRoomResponse{}, err
	}

	conns, err := s.getRoomConns(ctx, params.RoomCode)
	if err != nil {
		return JoinRoomResponse{}, err
	}

	s.logger.InfoContext(ctx, "member joined room",
		"room_code", params.RoomCode,
		"user_id", params.UserId,
	)

	return JoinRoomResponse{
		Room: result,
		JoinedMember: Member{
			Id:   params.UserId,
			User: User{Id: params.UserId, Username: params.Username},
		},
		Conns: conns,
	}, nil
}

type LeaveRoomParams struct {
	RoomCode string
	UserId   int64
}

type LeaveRoomResponse struct {
	LeftMember Member
	// IsRoomClosed reports that the departing member was the creator, which
	// closes the room and evicts everyone.
	IsRoomClosed bool
	// Conns are the remaining members' connections.
	Conns []*connection.Conn
}

func (s *service) LeaveRoom(ctx context.Context, params *LeaveRoomParams) (LeaveRoomResponse, error) {
	mu := s.lockRoom(params.RoomCode)
	mu.Lock()
	defer mu.Unlock()

	rm, err := s.requireActiveRoom(ctx, params.RoomCode)
	if err != nil {
		return LeaveRoomResponse{}, err
	}

	member, err := s.requireMember(ctx, params.RoomCode, params.UserId)
	if err != nil {
		return LeaveRoomResponse{}, err
	}

	left := Member{
		Id:   member.UserId,
		User: User{Id: member.UserId, Username: member.Username},
	}

	if rm.CreatorId == params.UserId {
		s.unbindConnection(member.ConnectionId)

		conns, err := s.teardownRoom(ctx, params.RoomCode)
		if err != nil {
			return LeaveRoomResponse{}, err
		}

		remaining := make([]*connection.Conn, 0, len(conns))
		for _, conn := range conns {
			if conn.Id != member.ConnectionId {
				remaining = append(remaining, conn)
			}
		}

		s.logger.InfoContext(ctx, "creator left, room closed", "room_code", params.RoomCode)

		return LeaveRoomResponse{
			LeftMember:   left,
			IsRoomClosed: true,
			Conns:        remaining,
		}, nil
	}

	if err := s.roomRepo.RemoveMember(ctx, &room.RemoveMemberParams{
		RoomCode: params.RoomCode,
		UserId:   params.UserId,
	}); err != nil {
		return LeaveRoomResponse{}, fmt.Errorf("failed to remove member: %w", err)
	}

	s.unbindConnection(member.ConnectionId)

	conns, err := s.getRoomConns(ctx, params.RoomCode)
	if err != nil {
		return LeaveRoomResponse{}, err
	}

	s.logger.InfoContext(ctx, "member left room",
		"room_code", params.RoomCode,
		"user_id", params.UserId,
	)

	return LeaveRoomResponse{
		LeftMember: left,
		Conns:      conns,
	}, nil
}

func (s *service) unbindConnection(connectionId string) {
	if connectionId == "" {
		return
	}

	if conn, err := s.connRepo.GetById(connectionId); err == nil {
		conn.BindRoom("")
	}
}
