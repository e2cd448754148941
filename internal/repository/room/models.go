package room

// PlaybackState is the stored playback state of a room. A scheduled state is
// reported as playing once the scheduled start has elapsed; that mapping
// happens at the service layer, the repository stores what it was given.
type PlaybackState string

const (
	StateIdle      PlaybackState = "idle"
	StateScheduled PlaybackState = "scheduled"
	StatePlaying   PlaybackState = "playing"
	StatePaused    PlaybackState = "paused"
)

type Room struct {
	CreatorId       int64  `redis:"creator_id"`
	CreatorUsername string `redis:"creator_username"`
	IsActive        bool   `redis:"is_active"`
	CreatedAt       int64  `redis:"created_at"`
}

type Member struct {
	UserId       int64  `redis:"user_id"`
	Username     string `redis:"username"`
	ConnectionId string `redis:"connection_id"`
	JoinedAt     int64  `redis:"joined_at"`
}

type Player struct {
	State            PlaybackState `redis:"state"`
	VideoId          int64         `redis:"video_id"`
	ScheduledStartAt int64         `redis:"scheduled_start_at"`
	LastPosition     float64       `redis:"last_position"`
	UpdatedAt        int64         `redis:"updated_at"`
}
