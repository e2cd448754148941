// Package partyclient is the Go client for the watch party protocol. It
// speaks the websocket message envelope, correlates time-sync replies by
// message id, calibrates a server clock offset and drops stale playback
// events before they reach the caller.
package partyclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/watchparty/server/pkg/timesync"
	"github.com/watchparty/server/pkg/wsrouter"
)

var ErrClosed = errors.New("partyclient: connection closed")

const (
	ActionPlay  = "play"
	ActionPause = "pause"
	ActionSeek  = "seek"
)

type Client struct {
	ws    *websocket.Conn
	clock clockwork.Clock

	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]chan json.RawMessage

	events chan Event
	gate   seqGate

	offsetNs atomic.Int64
	degraded atomic.Bool

	closeOnce sync.Once
	done      chan struct{}
}

type Option func(*Client)

func WithClock(clock clockwork.Clock) Option {
	return func(c *Client) { c.clock = clock }
}

// Dial connects to the realtime endpoint of a server. rawURL is the server's
// base URL (http or ws scheme), token the credential presented before the
// upgrade.
func Dial(ctx context.Context, rawURL, token string, opts ...Option) (*Client, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse server url: %w", err)
	}

	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = "/api/v1/ws"
	u.RawQuery = url.Values{"token": {token}}.Encode()

	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to dial %s: %w (status %d)", u.Host, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("failed to dial %s: %w", u.Host, err)
	}

	c := &Client{
		ws:      ws,
		clock:   clockwork.NewRealClock(),
		pending: map[string]chan json.RawMessage{},
		events:  make(chan Event, 32),
		done:    make(chan struct{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	go c.readLoop()

	return c, nil
}

// Events delivers room notifications in arrival order. The channel is closed
// when the connection ends. Playback events that lost the race against a
// newer one are filtered out before delivery.
func (c *Client) Events() <-chan Event {
	return c.events
}

func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.ws.Close()
	})
	return err
}

// JoinRoom enters a room. Confirmation arrives as a user-joined event echoed
// back to every member, including the joiner.
func (c *Client) JoinRoom(roomCode string) error {
	c.gate.Reset()

	return c.send(&wsrouter.Message{
		Type:    "join-room",
		Payload: mustMarshal(map[string]string{"roomCode": roomCode}),
	})
}

func (c *Client) LeaveRoom(roomCode string) error {
	return c.send(&wsrouter.Message{
		Type:    "leave-room",
		Payload: mustMarshal(map[string]string{"roomCode": roomCode}),
	})
}

// SelectVideo asks the server to schedule a coordinated start of the given
// video for the whole room.
func (c *Client) SelectVideo(roomCode string, videoId int64) error {
	return c.send(&wsrouter.Message{
		Type: "play-video",
		Payload: mustMarshal(map[string]any{
			"roomCode": roomCode,
			"videoId":  videoId,
		}),
	})
}

// SyncPlayback reports a local play, pause or seek. currentTime is required
// for seek and pause and carries the playback position in seconds.
func (c *Client) SyncPlayback(roomCode, action string, currentTime *float64) error {
	payload := map[string]any{
		"roomCode": roomCode,
		"action":   action,
	}
	if currentTime != nil {
		payload["currentTime"] = *currentTime
	}

	return c.send(&wsrouter.Message{
		Type:    "sync-video",
		Payload: mustMarshal(payload),
	})
}

// ServerTime performs one time-sync round trip and returns the server's clock
// reading.
func (c *Client) ServerTime(ctx context.Context) (time.Time, error) {
	id := uuid.NewString()
	reply := make(chan json.RawMessage, 1)

	c.pendingMu.Lock()
	c.pending[id] = reply
	c.pendingMu.Unlock()

	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	if err := c.send(&wsrouter.Message{Type: "time-sync", Id: id}); err != nil {
		return time.Time{}, err
	}

	select {
	case <-ctx.Done():
		return time.Time{}, ctx.Err()
	case <-c.done:
		return time.Time{}, ErrClosed
	case raw := <-reply:
		var out struct {
			ServerTime int64 `json:"serverTime"`
		}
		if err := json.Unmarshal(raw, &out); err != nil {
			return time.Time{}, fmt.Errorf("failed to parse time-sync reply: %w", err)
		}
		return time.UnixMilli(out.ServerTime), nil
	}
}

// Calibrate measures the server clock offset over several time-sync round
// trips and stores it for LocalStartTime. Must be rerun after a reconnect.
func (c *Client) Calibrate(ctx context.Context, opts ...timesync.Option) timesync.Estimate {
	opts = append([]timesync.Option{timesync.WithClock(c.clock)}, opts...)
	est := timesync.NewEstimator(c.ServerTime, opts...).Estimate(ctx)

	c.offsetNs.Store(int64(est.Offset))
	c.degraded.Store(est.Degraded)

	return est
}

// Offset is the calibrated server-minus-local clock difference. Zero until
// Calibrate has run, or when calibration degraded.
func (c *Client) Offset() time.Duration {
	return time.Duration(c.offsetNs.Load())
}

func (c *Client) Degraded() bool {
	return c.degraded.Load()
}

// LocalStartTime converts a scheduled start expressed in server clock millis
// into the local clock using the calibrated offset.
func (c *Client) LocalStartTime(scheduledStartAt int64) time.Time {
	return time.UnixMilli(scheduledStartAt).Add(-c.Offset())
}

func (c *Client) send(msg *wsrouter.Message) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	return c.ws.WriteJSON(msg)
}

func (c *Client) readLoop() {
	defer close(c.events)
	defer c.Close()

	for {
		var msg wsrouter.Message
		if err := c.ws.ReadJSON(&msg); err != nil {
			return
		}

		if msg.Id != "" {
			c.dispatchReply(&msg)
			continue
		}

		event, ok := c.decodeEvent(&msg)
		if !ok {
			continue
		}

		select {
		case c.events <- event:
		case <-c.done:
			return
		}
	}
}

func (c *Client) dispatchReply(msg *wsrouter.Message) {
	c.pendingMu.Lock()
	reply, ok := c.pending[msg.Id]
	if ok {
		delete(c.pending, msg.Id)
	}
	c.pendingMu.Unlock()

	if ok {
		reply <- msg.Payload
	}
}

func (c *Client) decodeEvent(msg *wsrouter.Message) (Event, bool) {
	switch msg.Type {
	case "user-joined":
		var p UserJoined
		if json.Unmarshal(msg.Payload, &p) != nil {
			return Event{}, false
		}
		return Event{Joined: &p}, true
	case "user-left":
		var p UserLeft
		if json.Unmarshal(msg.Payload, &p) != nil {
			return Event{}, false
		}
		return Event{Left: &p}, true
	case "sync-video":
		var p PlaybackSync
		if json.Unmarshal(msg.Payload, &p) != nil || !c.gate.Admit(p.Seq) {
			return Event{}, false
		}
		return Event{Sync: &p}, true
	case "play-video":
		var p VideoSelected
		if json.Unmarshal(msg.Payload, &p) != nil || !c.gate.Admit(p.Seq) {
			return Event{}, false
		}
		return Event{Select: &p}, true
	case "room-closed":
		var p RoomClosed
		if json.Unmarshal(msg.Payload, &p) != nil {
			return Event{}, false
		}
		return Event{RoomClosed: &p}, true
	default:
		return Event{}, false
	}
}

func mustMarshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
