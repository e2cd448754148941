package controller

import (
	"context"
	"fmt"

	"github.com/gorilla/websocket"

	"github.com/watchparty/server/internal/repository/connection"
	"github.com/watchparty/server/internal/service/room"
	"github.com/watchparty/server/pkg/wsrouter"
)

type Output struct {
	Type    string `json:"type"`
	Id      string `json:"id,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

type JoinRoomInput struct {
	RoomCode string `json:"roomCode" validate:"required"`
}

type LeaveRoomInput struct {
	RoomCode string `json:"roomCode" validate:"required"`
}

type SyncVideoInput struct {
	RoomCode    string   `json:"roomCode" validate:"required"`
	Action      string   `json:"action" validate:"required,oneof=play pause seek"`
	CurrentTime *float64 `json:"currentTime"`
}

type PlayVideoInput struct {
	RoomCode string `json:"roomCode" validate:"required"`
	VideoId  int64  `json:"videoId" validate:"required"`
}

type TimeSyncOutput struct {
	ServerTime int64 `json:"serverTime"`
}

type SyncVideoOutput struct {
	Action      string   `json:"action"`
	CurrentTime *float64 `json:"currentTime,omitempty"`
	ServerTime  int64    `json:"serverTime"`
	Seq         int64    `json:"seq"`
	TriggeredBy int64    `json:"triggeredBy"`
}

type PlayVideoOutput struct {
	VideoId          int64 `json:"videoId"`
	ScheduledStartAt int64 `json:"scheduledStartAt"`
	ServerTime       int64 `json:"serverTime"`
	Seq              int64 `json:"seq"`
	StartedBy        int64 `json:"startedBy"`
}

type UserJoinedOutput struct {
	UserId   int64  `json:"userId"`
	Username string `json:"username"`
}

type UserLeftOutput struct {
	UserId   int64  `json:"userId"`
	Username string `json:"username"`
}

type RoomClosedOutput struct {
	RoomCode string `json:"roomCode"`
}

func (c *controller) handleJoinRoom(ctx context.Context, _ *websocket.Conn, input JoinRoomInput) error {
	if validationErrors, ok := c.validate.Validate(input); !ok {
		return fmt.Errorf("invalid join-room payload: %v", validationErrors)
	}

	conn := c.getConnFromCtx(ctx)
	identity := conn.Identity()

	// a connection belongs to at most one room; switching rooms leaves the
	// previous one first
	if bound := conn.BoundRoom(); bound != "" && bound != input.RoomCode {
		if err := c.leaveRoom(ctx, bound); err != nil {
			c.logger.DebugContext(ctx, "failed to leave previous room", "error", err)
		}
	}

	joinRoomResp, err := c.roomService.JoinRoom(ctx, &room.JoinRoomParams{
		RoomCode:     input.RoomCode,
		UserId:       identity.UserId,
		Username:     identity.Username,
		ConnectionId: conn.Id,
	})
	if err != nil {
		// no join confirmation is sent for unknown or inactive rooms
		return fmt.Errorf("failed to join room: %w", err)
	}

	c.broadcaster.Broadcast(ctx, joinRoomResp.Conns, &Output{
		Type: "user-joined",
		Payload: UserJoinedOutput{
			UserId:   identity.UserId,
			Username: identity.Username,
		},
	})

	return nil
}

func (c *controller) handleLeaveRoom(ctx context.Context, _ *websocket.Conn, input LeaveRoomInput) error {
	if validationErrors, ok := c.validate.Validate(input); !ok {
		return fmt.Errorf("invalid leave-room payload: %v", validationErrors)
	}

	return c.leaveRoom(ctx, input.RoomCode)
}

func (c *controller) leaveRoom(ctx context.Context, roomCode string) error {
	conn := c.getConnFromCtx(ctx)
	identity := conn.Identity()

	leaveRoomResp, err := c.roomService.LeaveRoom(ctx, &room.LeaveRoomParams{
		RoomCode: roomCode,
		UserId:   identity.UserId,
	})
	if err != nil {
		return fmt.Errorf("failed to leave room: %w", err)
	}

	c.notifyLeft(ctx, roomCode, leaveRoomResp.LeftMember, leaveRoomResp.IsRoomClosed, leaveRoomResp.Conns)

	return nil
}

func (c *controller) handleTimeSync(ctx context.Context, _ *websocket.Conn, _ struct{}) error {
	conn := c.getConnFromCtx(ctx)

	return conn.Send(&Output{
		Type:    "time-sync",
		Id:      wsrouter.GetMessageIdFromCtx(ctx),
		Payload: TimeSyncOutput{ServerTime: c.roomService.Now().UnixMilli()},
	})
}

func (c *controller) handleSyncVideo(ctx context.Context, _ *websocket.Conn, input SyncVideoInput) error {
	if validationErrors, ok := c.validate.Validate(input); !ok {
		return fmt.Errorf("invalid sync-video payload: %v", validationErrors)
	}

	conn := c.getConnFromCtx(ctx)
	identity := conn.Identity()

	syncResp, err := c.roomService.SyncPlayback(ctx, &room.SyncPlaybackParams{
		RoomCode:     input.RoomCode,
		Action:       input.Action,
		CurrentTime:  input.CurrentTime,
		SenderId:     identity.UserId,
		SenderConnId: conn.Id,
	})
	if err != nil {
		return fmt.Errorf("failed to sync playback: %w", err)
	}

	// the originator already reflects its own action locally
	c.broadcaster.BroadcastExcept(ctx, syncResp.Conns, conn.Id, &Output{
		Type: "sync-video",
		Payload: SyncVideoOutput{
			Action:      syncResp.Action,
			CurrentTime: syncResp.CurrentTime,
			ServerTime:  syncResp.ServerTime,
			Seq:         syncResp.Seq,
			TriggeredBy: identity.UserId,
		},
	})

	return nil
}

func (c *controller) handlePlayVideo(ctx context.Context, _ *websocket.Conn, input PlayVideoInput) error {
	if validationErrors, ok := c.validate.Validate(input); !ok {
		return fmt.Errorf("invalid play-video payload: %v", validationErrors)
	}

	conn := c.getConnFromCtx(ctx)
	identity := conn.Identity()

	selectResp, err := c.roomService.SelectVideo(ctx, &room.SelectVideoParams{
		RoomCode:     input.RoomCode,
		VideoId:      input.VideoId,
		SenderId:     identity.UserId,
		SenderConnId: conn.Id,
	})
	if err != nil {
		return fmt.Errorf("failed to select video: %w", err)
	}

	// selection goes to everyone, the originator's client must navigate too
	c.broadcaster.Broadcast(ctx, selectResp.Conns, &Output{
		Type: "play-video",
		Payload: PlayVideoOutput{
			VideoId:          selectResp.VideoId,
			ScheduledStartAt: selectResp.ScheduledStartAt,
			ServerTime:       selectResp.ServerTime,
			Seq:              selectResp.Seq,
			StartedBy:        identity.UserId,
		},
	})

	return nil
}

// notifyLeft tells the remaining members about a departure, and about the
// room closing when the departing member was the creator.
func (c *controller) notifyLeft(ctx context.Context, roomCode string, left room.Member, isRoomClosed bool, conns []*connection.Conn) {
	c.broadcaster.Broadcast(ctx, conns, &Output{
		Type: "user-left",
		Payload: UserLeftOutput{
			UserId:   left.User.Id,
			Username: left.User.Username,
		},
	})

	if isRoomClosed {
		c.broadcaster.Broadcast(ctx, conns, &Output{
			Type:    "room-closed",
			Payload: RoomClosedOutput{RoomCode: roomCode},
		})
	}
}
