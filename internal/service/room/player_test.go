package room

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watchparty/server/internal/repository/room"
)

func ptr(v float64) *float64 { return &v }

func setupRoomWithMembers(t *testing.T, s *service) string {
	t.Helper()

	created, err := s.CreateRoom(context.Background(), &CreateRoomParams{CreatorId: 1, CreatorUsername: "ann"})
	require.NoError(t, err)

	_, err = s.JoinRoom(context.Background(), &JoinRoomParams{RoomCode: created.Room.RoomCode, UserId: 2, Username: "bob"})
	require.NoError(t, err)

	return created.Room.RoomCode
}

func TestSelectVideoSchedulesStart(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.UnixMilli(1_700_000_000_000))
	s := newTestService(t, clock, testConfig())
	roomCode := setupRoomWithMembers(t, s)

	resp, err := s.SelectVideo(context.Background(), &SelectVideoParams{
		RoomCode: roomCode,
		VideoId:  42,
		SenderId: 2,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(42), resp.VideoId)
	assert.Equal(t, int64(1_700_000_000_000), resp.ServerTime)
	assert.Equal(t, int64(1_700_000_003_000), resp.ScheduledStartAt)
	assert.Equal(t, int64(1), resp.Seq)

	player, err := s.GetPlayer(context.Background(), roomCode)
	require.NoError(t, err)
	assert.Equal(t, string(room.StateScheduled), player.State)
	assert.Equal(t, int64(42), player.VideoId)
}

func TestScheduledStartBecomesPlaying(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.UnixMilli(1_700_000_000_000))
	s := newTestService(t, clock, testConfig())
	roomCode := setupRoomWithMembers(t, s)

	_, err := s.SelectVideo(context.Background(), &SelectVideoParams{RoomCode: roomCode, VideoId: 42, SenderId: 1})
	require.NoError(t, err)

	// no timer fires the transition, it is implied by time
	clock.Advance(3 * time.Second)

	player, err := s.GetPlayer(context.Background(), roomCode)
	require.NoError(t, err)
	assert.Equal(t, string(room.StatePlaying), player.State)
}

func TestSelectVideoRequiresMembership(t *testing.T) {
	s := newTestService(t, clockwork.NewFakeClock(), testConfig())
	roomCode := setupRoomWithMembers(t, s)

	_, err := s.SelectVideo(context.Background(), &SelectVideoParams{RoomCode: roomCode, VideoId: 42, SenderId: 99})
	assert.ErrorIs(t, err, ErrMemberNotFound)
}

func TestSelectVideoReplacesCurrent(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.UnixMilli(1_700_000_000_000))
	s := newTestService(t, clock, testConfig())
	roomCode := setupRoomWithMembers(t, s)

	_, err := s.SelectVideo(context.Background(), &SelectVideoParams{RoomCode: roomCode, VideoId: 42, SenderId: 1})
	require.NoError(t, err)

	clock.Advance(10 * time.Second)

	resp, err := s.SelectVideo(context.Background(), &SelectVideoParams{RoomCode: roomCode, VideoId: 43, SenderId: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(2), resp.Seq)

	player, err := s.GetPlayer(context.Background(), roomCode)
	require.NoError(t, err)
	assert.Equal(t, string(room.StateScheduled), player.State)
	assert.Equal(t, int64(43), player.VideoId)
	assert.Equal(t, float64(0), player.LastPosition)
}

func TestSyncPlaybackWithoutVideo(t *testing.T) {
	s := newTestService(t, clockwork.NewFakeClock(), testConfig())
	roomCode := setupRoomWithMembers(t, s)

	_, err := s.SyncPlayback(context.Background(), &SyncPlaybackParams{
		RoomCode: roomCode,
		Action:   ActionPause,
		SenderId: 1,
	})
	assert.ErrorIs(t, err, ErrNoVideoSelected)
}

func TestSyncPlaybackSeekRequiresPosition(t *testing.T) {
	s := newTestService(t, clockwork.NewFakeClock(), testConfig())
	roomCode := setupRoomWithMembers(t, s)

	_, err := s.SyncPlayback(context.Background(), &SyncPlaybackParams{
		RoomCode: roomCode,
		Action:   ActionSeek,
		SenderId: 1,
	})
	assert.ErrorIs(t, err, ErrMissingPosition)
}

func TestSyncPlaybackPauseCapturesPosition(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.UnixMilli(1_700_000_000_000))
	s := newTestService(t, clock, testConfig())
	roomCode := setupRoomWithMembers(t, s)

	_, err := s.SelectVideo(context.Background(), &SelectVideoParams{RoomCode: roomCode, VideoId: 42, SenderId: 1})
	require.NoError(t, err)

	clock.Advance(30 * time.Second)

	resp, err := s.SyncPlayback(context.Background(), &SyncPlaybackParams{
		RoomCode:    roomCode,
		Action:      ActionPause,
		CurrentTime: ptr(42.5),
		SenderId:    2,
	})
	require.NoError(t, err)
	assert.Equal(t, ActionPause, resp.Action)
	require.NotNil(t, resp.CurrentTime)
	assert.Equal(t, 42.5, *resp.CurrentTime)

	player, err := s.GetPlayer(context.Background(), roomCode)
	require.NoError(t, err)
	assert.Equal(t, string(room.StatePaused), player.State)
	assert.Equal(t, 42.5, player.LastPosition)
}

func TestSyncPlaybackSequenceIsMonotonic(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.UnixMilli(1_700_000_000_000))
	s := newTestService(t, clock, testConfig())
	roomCode := setupRoomWithMembers(t, s)

	selectResp, err := s.SelectVideo(context.Background(), &SelectVideoParams{RoomCode: roomCode, VideoId: 42, SenderId: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(1), selectResp.Seq)

	clock.Advance(5 * time.Second)

	last := selectResp.Seq
	for _, action := range []string{ActionPause, ActionPlay, ActionSeek} {
		resp, err := s.SyncPlayback(context.Background(), &SyncPlaybackParams{
			RoomCode:    roomCode,
			Action:      action,
			CurrentTime: ptr(10),
			SenderId:    2,
		})
		require.NoError(t, err)
		assert.Equal(t, last+1, resp.Seq)
		last = resp.Seq
	}
}

func TestSyncPlaybackResumeAfterPause(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.UnixMilli(1_700_000_000_000))
	s := newTestService(t, clock, testConfig())
	roomCode := setupRoomWithMembers(t, s)

	_, err := s.SelectVideo(context.Background(), &SelectVideoParams{RoomCode: roomCode, VideoId: 42, SenderId: 1})
	require.NoError(t, err)

	clock.Advance(5 * time.Second)

	_, err = s.SyncPlayback(context.Background(), &SyncPlaybackParams{
		RoomCode:    roomCode,
		Action:      ActionPause,
		CurrentTime: ptr(12),
		SenderId:    1,
	})
	require.NoError(t, err)

	_, err = s.SyncPlayback(context.Background(), &SyncPlaybackParams{
		RoomCode: roomCode,
		Action:   ActionPlay,
		SenderId: 2,
	})
	require.NoError(t, err)

	player, err := s.GetPlayer(context.Background(), roomCode)
	require.NoError(t, err)
	assert.Equal(t, string(room.StatePlaying), player.State)
	assert.Equal(t, float64(12), player.LastPosition)
}

func TestGetPlayerUnknownRoom(t *testing.T) {
	s := newTestService(t, clockwork.NewFakeClock(), testConfig())

	_, err := s.GetPlayer(context.Background(), "AAAAAA")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}
