package partyclient

// Event is the closed set of notifications a party member can receive. Exactly
// one field is non-nil.
type Event struct {
	Joined     *UserJoined
	Left       *UserLeft
	Sync       *PlaybackSync
	Select     *VideoSelected
	RoomClosed *RoomClosed
}

type UserJoined struct {
	UserId   int64  `json:"userId"`
	Username string `json:"username"`
}

type UserLeft struct {
	UserId   int64  `json:"userId"`
	Username string `json:"username"`
}

type PlaybackSync struct {
	Action      string   `json:"action"`
	CurrentTime *float64 `json:"currentTime,omitempty"`
	ServerTime  int64    `json:"serverTime"`
	Seq         int64    `json:"seq"`
	TriggeredBy int64    `json:"triggeredBy"`
}

type VideoSelected struct {
	VideoId          int64 `json:"videoId"`
	ScheduledStartAt int64 `json:"scheduledStartAt"`
	ServerTime       int64 `json:"serverTime"`
	Seq              int64 `json:"seq"`
	StartedBy        int64 `json:"startedBy"`
}

type RoomClosed struct {
	RoomCode string `json:"roomCode"`
}
