package room

import (
	"context"
	"errors"
	"fmt"

	"github.com/watchparty/server/internal/repository/connection"
	"github.com/watchparty/server/internal/repository/room"
)

const (
	ActionPlay  = "play"
	ActionPause = "pause"
	ActionSeek  = "seek"
)

type SelectVideoParams struct {
	RoomCode     string
	VideoId      int64
	SenderId     int64
	SenderConnId string
}

type SelectVideoResponse struct {
	VideoId          int64
	ScheduledStartAt int64
	ServerTime       int64
	Seq              int64
	// Conns is the full member connection set; video selection is delivered
	// to every member including the originator.
	Conns []*connection.Conn
}

// SelectVideo schedules synchronized playback of a video: the start is set a
// fixed lead time into the future so every client has time to buffer before
// the room starts in lock-step.
func (s *service) SelectVideo(ctx context.Context, params *SelectVideoParams) (SelectVideoResponse, error) {
	mu := s.lockRoom(params.RoomCode)
	mu.Lock()
	defer mu.Unlock()

	if _, err := s.requireActiveRoom(ctx, params.RoomCode); err != nil {
		return SelectVideoResponse{}, err
	}

	if _, err := s.requireMember(ctx, params.RoomCode, params.SenderId); err != nil {
		return SelectVideoResponse{}, err
	}

	seq, err := s.roomRepo.NextSequence(ctx, params.RoomCode)
	if err != nil {
		return SelectVideoResponse{}, err
	}

	now := s.clock.Now().UnixMilli()
	scheduledStartAt := now + s.leadTime.Milliseconds()

	if err := s.roomRepo.SetPlayer(ctx, &room.SetPlayerParams{
		RoomCode:         params.RoomCode,
		State:            room.StateScheduled,
		VideoId:          params.VideoId,
		ScheduledStartAt: scheduledStartAt,
		LastPosition:     0,
		UpdatedAt:        now,
	}); err != nil {
		return SelectVideoResponse{}, fmt.Errorf("failed to set player: %w", err)
	}

	conns, err := s.getRoomConns(ctx, params.RoomCode)
	if err != nil {
		return SelectVideoResponse{}, err
	}

	s.logger.InfoContext(ctx, "video selected",
		"room_code", params.RoomCode,
		"video_id", params.VideoId,
		"sender_id", params.SenderId,
		"scheduled_start_at", scheduledStartAt,
		"seq", seq,
	)

	return SelectVideoResponse{
		VideoId:          params.VideoId,
		ScheduledStartAt: scheduledStartAt,
		ServerTime:       now,
		Seq:              seq,
		Conns:            conns,
	}, nil
}

type SyncPlaybackParams struct {
	RoomCode     string
	Action       string
	CurrentTime  *float64
	SenderId     int64
	SenderConnId string
}

type SyncPlaybackResponse struct {
	Action      string
	CurrentTime *float64
	ServerTime  int64
	Seq         int64
	// SenderConnId is echoed back so the broadcaster can exclude the
	// originator, which already reflects its own local action.
	SenderConnId string
	Conns        []*connection.Conn
}

// SyncPlayback applies a play, pause or seek intent to the room's playback
// state. Intents are serialized per room; the last applied one wins. Each
// accepted intent gets the room's next sequence number, which receivers use
// to discard stale or duplicate deliveries.
func (s *service) SyncPlayback(ctx context.Context, params *SyncPlaybackParams) (SyncPlaybackResponse, error) {
	if params.Action == ActionSeek && params.CurrentTime == nil {
		return SyncPlaybackResponse{}, ErrMissingPosition
	}

	mu := s.lockRoom(params.RoomCode)
	mu.Lock()
	defer mu.Unlock()

	if _, err := s.requireActiveRoom(ctx, params.RoomCode); err != nil {
		return SyncPlaybackResponse{}, err
	}

	if _, err := s.requireMember(ctx, params.RoomCode, params.SenderId); err != nil {
		return SyncPlaybackResponse{}, err
	}

	player, err := s.roomRepo.GetPlayer(ctx, params.RoomCode)
	if err != nil {
		if errors.Is(err, room.ErrPlayerNotFound) {
			return SyncPlaybackResponse{}, ErrNoVideoSelected
		}
		return SyncPlaybackResponse{}, err
	}

	now := s.clock.Now().UnixMilli()
	state := effectiveState(player, now)
	if state == room.StateIdle {
		return SyncPlaybackResponse{}, ErrNoVideoSelected
	}

	position := player.LastPosition

	switch params.Action {
	case ActionPlay:
		state = room.StatePlaying
	case ActionPause:
		state = room.StatePaused
		if params.CurrentTime != nil {
			position = *params.CurrentTime
		}
	case ActionSeek:
		position = *params.CurrentTime
	default:
		return SyncPlaybackResponse{}, fmt.Errorf("unknown action %q", params.Action)
	}

	seq, err := s.roomRepo.NextSequence(ctx, params.RoomCode)
	if err != nil {
		return SyncPlaybackResponse{}, err
	}

	if err := s.roomRepo.UpdatePlayerState(ctx, &room.UpdatePlayerStateParams{
		RoomCode:     params.RoomCode,
		State:        state,
		LastPosition: position,
		UpdatedAt:    now,
	}); err != nil {
		return SyncPlaybackResponse{}, fmt.Errorf("failed to update player state: %w", err)
	}

	conns, err := s.getRoomConns(ctx, params.RoomCode)
	if err != nil {
		return SyncPlaybackResponse{}, err
	}

	return SyncPlaybackResponse{
		Action:       params.Action,
		CurrentTime:  params.CurrentTime,
		ServerTime:   now,
		Seq:          seq,
		SenderConnId: params.SenderConnId,
		Conns:        conns,
	}, nil
}

// GetPlayer reports the room's playback state with the scheduled-to-playing
// transition already applied.
func (s *service) GetPlayer(ctx context.Context, roomCode string) (Player, error) {
	if _, err := s.requireActiveRoom(ctx, roomCode); err != nil {
		return Player{}, err
	}

	player, err := s.roomRepo.GetPlayer(ctx, roomCode)
	if err != nil {
		if errors.Is(err, room.ErrPlayerNotFound) {
			return Player{}, ErrNoVideoSelected
		}
		return Player{}, err
	}

	return Player{
		State:            string(effectiveState(player, s.clock.Now().UnixMilli())),
		VideoId:          player.VideoId,
		ScheduledStartAt: player.ScheduledStartAt,
		LastPosition:     player.LastPosition,
	}, nil
}
