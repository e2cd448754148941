package room

import (
	"context"
	"errors"
	"fmt"

	"github.com/gorilla/websocket"

	"github.com/watchparty/server/internal/repository/connection"
)

// RegisterConnection admits an authenticated connection into the connection
// table.
func (s *service) RegisterConnection(conn *connection.Conn) error {
	if err := s.connRepo.Add(conn); err != nil {
		return fmt.Errorf("failed to register connection: %w", err)
	}

	return nil
}

type DisconnectResponse struct {
	// RoomCode is the room the connection was bound to, empty if none.
	RoomCode   string
	LeftMember Member
	// IsRoomClosed reports that the disconnecting member was the creator.
	IsRoomClosed bool
	// Conns are the remaining members' connections for the user-left or
	// room-closed notification.
	Conns []*connection.Conn
}

// Disconnect removes a connection from the table and runs membership cleanup
// for the room it was bound to. This is the only membership cleanup path:
// there is no heartbeat reaper.
func (s *service) Disconnect(ctx context.Context, ws *websocket.Conn) (DisconnectResponse, error) {
	conn, err := s.connRepo.Remove(ws)
	if err != nil {
		if errors.Is(err, connection.ErrNotFound) {
			return DisconnectResponse{}, nil
		}
		return DisconnectResponse{}, err
	}
	defer conn.Close()

	roomCode := conn.BoundRoom()
	if roomCode == "" {
		return DisconnectResponse{}, nil
	}

	leaveResp, err := s.LeaveRoom(ctx, &LeaveRoomParams{
		RoomCode: roomCode,
		UserId:   conn.Identity().UserId,
	})
	if err != nil {
		// the room may have been closed or the member replaced concurrently;
		// nothing left to clean up
		if errors.Is(err, ErrRoomNotFound) || errors.Is(err, ErrMemberNotFound) {
			return DisconnectResponse{}, nil
		}
		return DisconnectResponse{}, err
	}

	s.logger.InfoContext(ctx, "connection disconnected",
		"connection_id", conn.Id,
		"user_id", conn.Identity().UserId,
		"room_code", roomCode,
	)

	return DisconnectResponse{
		RoomCode:     roomCode,
		LeftMember:   leaveResp.LeftMember,
		IsRoomClosed: leaveResp.IsRoomClosed,
		Conns:        leaveResp.Conns,
	}, nil
}
