package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watchparty/server/internal/broadcaster"
	"github.com/watchparty/server/internal/repository/connection/inmemory"
	roomRedis "github.com/watchparty/server/internal/repository/room/redis"
	"github.com/watchparty/server/internal/service/room"
	"github.com/watchparty/server/pkg/partyclient"
)

type tokenIssuer interface {
	GenerateToken(userId int64, username string) (string, error)
}

type testStack struct {
	server *httptest.Server
	tokens tokenIssuer
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()

	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rc.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	roomService := room.NewService(
		roomRedis.NewRepo(rc, time.Hour, logger),
		inmemory.NewRepo(),
		clockwork.NewRealClock(),
		&room.Config{
			Secret:         "test-secret",
			MembersLimit:   9,
			RoomCodeLength: 6,
			LeadTime:       3 * time.Second,
		},
		logger,
	)

	ctrl := NewController(roomService, broadcaster.New(logger), logger)

	server := httptest.NewServer(ctrl.GetMux())
	t.Cleanup(server.Close)

	return &testStack{server: server, tokens: roomService}
}

func (ts *testStack) token(t *testing.T, userId int64, username string) string {
	t.Helper()

	token, err := ts.tokens.GenerateToken(userId, username)
	require.NoError(t, err)

	return token
}

func (ts *testStack) request(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, ts.server.URL+path, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ts.server.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	return resp
}

func decodeData[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	var envelope struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))

	return envelope.Data
}

func dialClient(t *testing.T, ts *testStack, token string) *partyclient.Client {
	t.Helper()

	client, err := partyclient.Dial(context.Background(), ts.server.URL, token)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client
}

func nextEvent(t *testing.T, client *partyclient.Client) partyclient.Event {
	t.Helper()

	select {
	case event, ok := <-client.Events():
		require.True(t, ok, "events channel closed")
		return event
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
		return partyclient.Event{}
	}
}

func TestHealthz(t *testing.T) {
	ts := newTestStack(t)

	resp := ts.request(t, http.MethodGet, "/api/v1/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRESTRequiresAuth(t *testing.T) {
	ts := newTestStack(t)

	resp := ts.request(t, http.MethodPost, "/api/v1/party/", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = ts.request(t, http.MethodPost, "/api/v1/party/", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWSRejectsBadToken(t *testing.T) {
	ts := newTestStack(t)

	_, err := partyclient.Dial(context.Background(), ts.server.URL, "garbage")
	assert.Error(t, err)
}

func TestGetUnknownParty(t *testing.T) {
	ts := newTestStack(t)

	resp := ts.request(t, http.MethodGet, "/api/v1/party/AAAAAA/", ts.token(t, 1, "ann"), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCloseByNonCreatorForbidden(t *testing.T) {
	ts := newTestStack(t)

	resp := ts.request(t, http.MethodPost, "/api/v1/party/", ts.token(t, 1, "ann"), nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeData[room.Room](t, resp)

	resp = ts.request(t, http.MethodPost, "/api/v1/party/"+created.RoomCode+"/join", ts.token(t, 2, "bob"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.request(t, http.MethodDelete, "/api/v1/party/"+created.RoomCode+"/", ts.token(t, 2, "bob"), nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestTimeSync(t *testing.T) {
	ts := newTestStack(t)

	client := dialClient(t, ts, ts.token(t, 1, "ann"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	serverTime, err := client.ServerTime(ctx)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), serverTime, 2*time.Second)

	est := client.Calibrate(ctx)
	require.False(t, est.Degraded)
	// server and client share the machine clock here
	assert.Less(t, client.Offset().Abs(), time.Second)
}

// TestWatchPartySession walks a full session: create over REST, both members
// joining the realtime surface, a scheduled video start, a playback intent
// that skips its originator, and the room closing when the creator leaves.
func TestWatchPartySession(t *testing.T) {
	ts := newTestStack(t)

	annToken := ts.token(t, 1, "ann")
	bobToken := ts.token(t, 2, "bob")

	resp := ts.request(t, http.MethodPost, "/api/v1/party/", annToken, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeData[room.Room](t, resp)
	require.Len(t, created.RoomCode, 6)
	require.Nil(t, created.CurrentVideoId)

	ann := dialClient(t, ts, annToken)
	bob := dialClient(t, ts, bobToken)

	require.NoError(t, ann.JoinRoom(created.RoomCode))

	event := nextEvent(t, ann)
	require.NotNil(t, event.Joined)
	assert.Equal(t, int64(1), event.Joined.UserId)

	require.NoError(t, bob.JoinRoom(created.RoomCode))

	for _, client := range []*partyclient.Client{ann, bob} {
		event = nextEvent(t, client)
		require.NotNil(t, event.Joined)
		assert.Equal(t, int64(2), event.Joined.UserId)
		assert.Equal(t, "bob", event.Joined.Username)
	}

	resp = ts.request(t, http.MethodGet, "/api/v1/party/"+created.RoomCode+"/", annToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	fetched := decodeData[room.Room](t, resp)
	assert.Len(t, fetched.Members, 2)

	// selection reaches everyone, the originator's client navigates too
	require.NoError(t, ann.SelectVideo(created.RoomCode, 42))

	var selected partyclient.VideoSelected
	for _, client := range []*partyclient.Client{ann, bob} {
		event = nextEvent(t, client)
		require.NotNil(t, event.Select)
		assert.Equal(t, int64(42), event.Select.VideoId)
		assert.Equal(t, int64(1), event.Select.StartedBy)
		assert.Equal(t, event.Select.ServerTime+3000, event.Select.ScheduledStartAt)
		selected = *event.Select
	}

	// the originator already paused locally, only the other member is told
	pos := 42.5
	require.NoError(t, bob.SyncPlayback(created.RoomCode, partyclient.ActionPause, &pos))

	event = nextEvent(t, ann)
	require.NotNil(t, event.Sync)
	assert.Equal(t, partyclient.ActionPause, event.Sync.Action)
	require.NotNil(t, event.Sync.CurrentTime)
	assert.Equal(t, 42.5, *event.Sync.CurrentTime)
	assert.Equal(t, int64(2), event.Sync.TriggeredBy)
	assert.Greater(t, event.Sync.Seq, selected.Seq)

	require.NoError(t, ann.SyncPlayback(created.RoomCode, partyclient.ActionPlay, nil))

	// bob never saw his own pause; ann's play is his next event and its
	// sequence number confirms the pause happened in between
	event = nextEvent(t, bob)
	require.NotNil(t, event.Sync)
	assert.Equal(t, partyclient.ActionPlay, event.Sync.Action)
	assert.Equal(t, int64(1), event.Sync.TriggeredBy)
	assert.Equal(t, selected.Seq+2, event.Sync.Seq)

	resp = ts.request(t, http.MethodGet, "/api/v1/party/"+created.RoomCode+"/", bobToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	fetched = decodeData[room.Room](t, resp)
	require.NotNil(t, fetched.CurrentVideoId)
	assert.Equal(t, int64(42), *fetched.CurrentVideoId)

	// creator departure closes the room for everyone
	require.NoError(t, ann.LeaveRoom(created.RoomCode))

	event = nextEvent(t, bob)
	require.NotNil(t, event.Left)
	assert.Equal(t, int64(1), event.Left.UserId)

	event = nextEvent(t, bob)
	require.NotNil(t, event.RoomClosed)
	assert.Equal(t, created.RoomCode, event.RoomClosed.RoomCode)

	resp = ts.request(t, http.MethodGet, "/api/v1/party/"+created.RoomCode+"/", bobToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// TestDisconnectLeavesRoom drops a guest's socket without a leave-room message
// and expects the remaining member to be told.
func TestDisconnectLeavesRoom(t *testing.T) {
	ts := newTestStack(t)

	annToken := ts.token(t, 1, "ann")

	resp := ts.request(t, http.MethodPost, "/api/v1/party/", annToken, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeData[room.Room](t, resp)

	ann := dialClient(t, ts, annToken)
	bob := dialClient(t, ts, ts.token(t, 2, "bob"))

	require.NoError(t, ann.JoinRoom(created.RoomCode))
	nextEvent(t, ann)

	require.NoError(t, bob.JoinRoom(created.RoomCode))
	nextEvent(t, ann)
	nextEvent(t, bob)

	bob.Close()

	event := nextEvent(t, ann)
	require.NotNil(t, event.Left)
	assert.Equal(t, int64(2), event.Left.UserId)

	resp = ts.request(t, http.MethodGet, "/api/v1/party/"+created.RoomCode+"/", annToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	fetched := decodeData[room.Room](t, resp)
	require.Len(t, fetched.Members, 1)
	assert.Equal(t, "ann", fetched.Members[0].User.Username)
}

// TestCloseBroadcastsToMembers closes a room over REST and expects every
// connected member to receive room-closed.
func TestCloseBroadcastsToMembers(t *testing.T) {
	ts := newTestStack(t)

	annToken := ts.token(t, 1, "ann")

	resp := ts.request(t, http.MethodPost, "/api/v1/party/", annToken, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeData[room.Room](t, resp)

	bob := dialClient(t, ts, ts.token(t, 2, "bob"))
	require.NoError(t, bob.JoinRoom(created.RoomCode))
	nextEvent(t, bob)

	resp = ts.request(t, http.MethodDelete, "/api/v1/party/"+created.RoomCode+"/", annToken, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	event := nextEvent(t, bob)
	require.NotNil(t, event.RoomClosed)
	assert.Equal(t, created.RoomCode, event.RoomClosed.RoomCode)
}
