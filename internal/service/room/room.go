package room

import (
	"context"
	"errors"
	"fmt"

	"github.com/watchparty/server/internal/repository/connection"
	"github.com/watchparty/server/internal/repository/room"
)

type CreateRoomParams struct {
	CreatorId       int64
	CreatorUsername string
}

type CreateRoomResponse struct {
	Room Room
}

func (s *service) CreateRoom(ctx context.Context, params *CreateRoomParams) (CreateRoomResponse, error) {
	now := s.clock.Now()

	var roomCode string
	for attempt := 0; ; attempt++ {
		if attempt == roomCodeAttempts {
			return CreateRoomResponse{}, errors.New("failed to generate a unique room code")
		}

		roomCode = s.generator.GenerateRandomString(s.roomCodeLength)
		err := s.roomRepo.SetRoom(ctx, &room.SetRoomParams{
			RoomCode:        roomCode,
			CreatorId:       params.CreatorId,
			CreatorUsername: params.CreatorUsername,
			CreatedAt:       now.UnixMilli(),
		})
		if err == nil {
			break
		}
		if !errors.Is(err, room.ErrRoomAlreadyExists) {
			return CreateRoomResponse{}, fmt.Errorf("failed to set room: %w", err)
		}
	}

	s.logger.InfoContext(ctx, "room created", "room_code", roomCode, "creator_id", params.CreatorId)

	if err := s.roomRepo.SetMember(ctx, &room.SetMemberParams{
		RoomCode: roomCode,
		UserId:   params.CreatorId,
		Username: params.CreatorUsername,
		JoinedAt: now.UnixMilli(),
	}); err != nil {
		return CreateRoomResponse{}, fmt.Errorf("failed to set creator member: %w", err)
	}

	if err := s.roomRepo.SetPlayer(ctx, &room.SetPlayerParams{
		RoomCode:  roomCode,
		State:     room.StateIdle,
		UpdatedAt: now.UnixMilli(),
	}); err != nil {
		return CreateRoomResponse{}, fmt.Errorf("failed to set player: %w", err)
	}

	rm, err := s.roomRepo.GetRoom(ctx, roomCode)
	if err != nil {
		return CreateRoomResponse{}, fmt.Errorf("failed to get room: %w", err)
	}

	result, err := s.buildRoom(ctx, roomCode, rm)
	if err != nil {
		return CreateRoomResponse{}, err
	}

	return CreateRoomResponse{Room: result}, nil
}

func (s *service) GetRoom(ctx context.Context, roomCode string) (Room, error) {
	rm, err := s.requireActiveRoom(ctx, roomCode)
	if err != nil {
		return Room{}, err
	}

	return s.buildRoom(ctx, roomCode, rm)
}

type CloseRoomParams struct {
	RoomCode    string
	RequesterId int64
}

type CloseRoomResponse struct {
	// Conns are the connections of the evicted members, for the room-closed
	// notification.
	Conns []*connection.Conn
}

// CloseRoom deactivates a room and evicts every member. Only the creator may
// close a room.
func (s *service) CloseRoom(ctx context.Context, params *CloseRoomParams) (CloseRoomResponse, error) {
	mu := s.lockRoom(params.RoomCode)
	mu.Lock()
	defer mu.Unlock()

	rm, err := s.requireActiveRoom(ctx, params.RoomCode)
	if err != nil {
		return CloseRoomResponse{}, err
	}

	if rm.CreatorId != params.RequesterId {
		return CloseRoomResponse{}, ErrPermissionDenied
	}

	conns, err := s.teardownRoom(ctx, params.RoomCode)
	if err != nil {
		return CloseRoomResponse{}, err
	}

	s.logger.InfoContext(ctx, "room closed", "room_code", params.RoomCode, "requester_id", params.RequesterId)

	return CloseRoomResponse{Conns: conns}, nil
}

// teardownRoom marks the room inactive, evicts all members and unbinds their
// connections. Caller must hold the room lock.
func (s *service) teardownRoom(ctx context.Context, roomCode string) ([]*connection.Conn, error) {
	conns, err := s.getRoomConns(ctx, roomCode)
	if err != nil {
		return nil, err
	}

	if err := s.roomRepo.DeactivateRoom(ctx, roomCode); err != nil {
		return nil, fmt.Errorf("failed to deactivate room: %w", err)
	}

	if err := s.roomRepo.RemoveAllMembers(ctx, roomCode); err != nil {
		return nil, fmt.Errorf("failed to evict members: %w", err)
	}

	if err := s.roomRepo.RemovePlayer(ctx, roomCode); err != nil && !errors.Is(err, room.ErrPlayerNotFound) {
		return nil, fmt.Errorf("failed to remove player: %w", err)
	}

	for _, conn := range conns {
		conn.BindRoom("")
	}

	s.forgetLock(roomCode)

	return conns, nil
}
