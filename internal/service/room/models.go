package room

type User struct {
	Id       int64  `json:"id"`
	Username string `json:"username"`
}

type Member struct {
	Id   int64 `json:"id"`
	User User  `json:"user"`
}

type Room struct {
	RoomCode       string   `json:"roomCode"`
	IsActive       bool     `json:"isActive"`
	Creator        User     `json:"creator"`
	Members        []Member `json:"members"`
	CurrentVideoId *int64   `json:"currentVideoId"`
}

type Player struct {
	State            string  `json:"state"`
	VideoId          int64   `json:"videoId"`
	ScheduledStartAt int64   `json:"scheduledStartAt"`
	LastPosition     float64 `json:"lastPosition"`
}
