package room

type SetRoomParams struct {
	RoomCode        string `json:"room_code"`
	CreatorId       int64  `json:"creator_id"`
	CreatorUsername string `json:"creator_username"`
	CreatedAt       int64  `json:"created_at"`
}

type SetMemberParams struct {
	RoomCode     string `json:"room_code"`
	UserId       int64  `json:"user_id"`
	Username     string `json:"username"`
	ConnectionId string `json:"connection_id"`
	JoinedAt     int64  `json:"joined_at"`
}

type UpdateMemberConnectionParams struct {
	RoomCode     string `json:"room_code"`
	UserId       int64  `json:"user_id"`
	ConnectionId string `json:"connection_id"`
}

type RemoveMemberParams struct {
	RoomCode string `json:"room_code"`
	UserId   int64  `json:"user_id"`
}

type GetMemberParams struct {
	RoomCode string `json:"room_code"`
	UserId   int64  `json:"user_id"`
}

type SetPlayerParams struct {
	RoomCode         string        `json:"room_code"`
	State            PlaybackState `json:"state"`
	VideoId          int64         `json:"video_id"`
	ScheduledStartAt int64         `json:"scheduled_start_at"`
	LastPosition     float64       `json:"last_position"`
	UpdatedAt        int64         `json:"updated_at"`
}

type UpdatePlayerStateParams struct {
	RoomCode     string        `json:"room_code"`
	State        PlaybackState `json:"state"`
	LastPosition float64       `json:"last_position"`
	UpdatedAt    int64         `json:"updated_at"`
}
