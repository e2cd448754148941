package redis

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watchparty/server/internal/repository/room"
)

func newTestRepo(t *testing.T) (*repo, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rc := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rc.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return NewRepo(rc, time.Hour, logger), mr
}

func TestSetRoomClaimsCode(t *testing.T) {
	r, mr := newTestRepo(t)
	ctx := context.Background()

	err := r.SetRoom(ctx, &room.SetRoomParams{
		RoomCode:        "AB12CD",
		CreatorId:       1,
		CreatorUsername: "ann",
		CreatedAt:       1000,
	})
	require.NoError(t, err)

	// the same code cannot be claimed twice
	err = r.SetRoom(ctx, &room.SetRoomParams{RoomCode: "AB12CD", CreatorId: 2, CreatorUsername: "bob"})
	assert.ErrorIs(t, err, room.ErrRoomAlreadyExists)

	rm, err := r.GetRoom(ctx, "AB12CD")
	require.NoError(t, err)
	assert.Equal(t, int64(1), rm.CreatorId)
	assert.Equal(t, "ann", rm.CreatorUsername)
	assert.True(t, rm.IsActive)
	assert.Equal(t, int64(1000), rm.CreatedAt)

	assert.Greater(t, mr.TTL("room:AB12CD"), time.Duration(0))
}

func TestGetRoomNotFound(t *testing.T) {
	r, _ := newTestRepo(t)

	_, err := r.GetRoom(context.Background(), "AAAAAA")
	assert.ErrorIs(t, err, room.ErrRoomNotFound)
}

func TestDeactivateRoom(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, r.SetRoom(ctx, &room.SetRoomParams{RoomCode: "AB12CD", CreatorId: 1, CreatorUsername: "ann"}))
	require.NoError(t, r.DeactivateRoom(ctx, "AB12CD"))

	rm, err := r.GetRoom(ctx, "AB12CD")
	require.NoError(t, err)
	assert.False(t, rm.IsActive)

	assert.ErrorIs(t, r.DeactivateRoom(ctx, "ZZZZZZ"), room.ErrRoomNotFound)
}

func TestMembersKeepJoinOrder(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()

	for i, username := range []string{"ann", "bob", "eve"} {
		require.NoError(t, r.SetMember(ctx, &room.SetMemberParams{
			RoomCode: "AB12CD",
			UserId:   int64(i + 1),
			Username: username,
			JoinedAt: int64(1000 + i),
		}))
	}

	ids, err := r.GetMemberIds(ctx, "AB12CD")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, ids)

	member, err := r.GetMember(ctx, &room.GetMemberParams{RoomCode: "AB12CD", UserId: 2})
	require.NoError(t, err)
	assert.Equal(t, "bob", member.Username)
}

func TestRemoveMember(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, r.SetMember(ctx, &room.SetMemberParams{RoomCode: "AB12CD", UserId: 1, Username: "ann"}))
	require.NoError(t, r.SetMember(ctx, &room.SetMemberParams{RoomCode: "AB12CD", UserId: 2, Username: "bob"}))

	require.NoError(t, r.RemoveMember(ctx, &room.RemoveMemberParams{RoomCode: "AB12CD", UserId: 1}))

	ids, err := r.GetMemberIds(ctx, "AB12CD")
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, ids)

	_, err = r.GetMember(ctx, &room.GetMemberParams{RoomCode: "AB12CD", UserId: 1})
	assert.ErrorIs(t, err, room.ErrMemberNotFound)

	assert.ErrorIs(t, r.RemoveMember(ctx, &room.RemoveMemberParams{RoomCode: "AB12CD", UserId: 1}), room.ErrMemberNotFound)
}

func TestRemoveAllMembers(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, r.SetMember(ctx, &room.SetMemberParams{RoomCode: "AB12CD", UserId: 1, Username: "ann"}))
	require.NoError(t, r.SetMember(ctx, &room.SetMemberParams{RoomCode: "AB12CD", UserId: 2, Username: "bob"}))

	require.NoError(t, r.RemoveAllMembers(ctx, "AB12CD"))

	ids, err := r.GetMemberIds(ctx, "AB12CD")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestUpdateMemberConnection(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, r.SetMember(ctx, &room.SetMemberParams{RoomCode: "AB12CD", UserId: 1, Username: "ann", ConnectionId: "old"}))

	require.NoError(t, r.UpdateMemberConnection(ctx, &room.UpdateMemberConnectionParams{
		RoomCode:     "AB12CD",
		UserId:       1,
		ConnectionId: "new",
	}))

	member, err := r.GetMember(ctx, &room.GetMemberParams{RoomCode: "AB12CD", UserId: 1})
	require.NoError(t, err)
	assert.Equal(t, "new", member.ConnectionId)

	err = r.UpdateMemberConnection(ctx, &room.UpdateMemberConnectionParams{RoomCode: "AB12CD", UserId: 99, ConnectionId: "x"})
	assert.ErrorIs(t, err, room.ErrMemberNotFound)
}

func TestPlayerRoundTrip(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, r.SetPlayer(ctx, &room.SetPlayerParams{
		RoomCode:         "AB12CD",
		State:            room.StateScheduled,
		VideoId:          42,
		ScheduledStartAt: 5000,
		LastPosition:     0,
		UpdatedAt:        2000,
	}))

	player, err := r.GetPlayer(ctx, "AB12CD")
	require.NoError(t, err)
	assert.Equal(t, room.StateScheduled, player.State)
	assert.Equal(t, int64(42), player.VideoId)
	assert.Equal(t, int64(5000), player.ScheduledStartAt)

	require.NoError(t, r.UpdatePlayerState(ctx, &room.UpdatePlayerStateParams{
		RoomCode:     "AB12CD",
		State:        room.StatePaused,
		LastPosition: 42.5,
		UpdatedAt:    3000,
	}))

	player, err = r.GetPlayer(ctx, "AB12CD")
	require.NoError(t, err)
	assert.Equal(t, room.StatePaused, player.State)
	assert.Equal(t, 42.5, player.LastPosition)
	// selection details survive state updates
	assert.Equal(t, int64(42), player.VideoId)
}

func TestPlayerNotFound(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()

	_, err := r.GetPlayer(ctx, "AAAAAA")
	assert.ErrorIs(t, err, room.ErrPlayerNotFound)

	err = r.UpdatePlayerState(ctx, &room.UpdatePlayerStateParams{RoomCode: "AAAAAA", State: room.StatePlaying})
	assert.ErrorIs(t, err, room.ErrPlayerNotFound)

	assert.ErrorIs(t, r.RemovePlayer(ctx, "AAAAAA"), room.ErrPlayerNotFound)
}

func TestNextSequenceMonotonic(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()

	for want := int64(1); want <= 5; want++ {
		seq, err := r.NextSequence(ctx, "AB12CD")
		require.NoError(t, err)
		assert.Equal(t, want, seq)
	}

	// sequences are scoped per room
	seq, err := r.NextSequence(ctx, "ZZ99XX")
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq)
}
