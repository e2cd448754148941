package controller

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/watchparty/server/internal/broadcaster"
	"github.com/watchparty/server/internal/repository/connection"
	"github.com/watchparty/server/internal/service/room"
	"github.com/watchparty/server/pkg/validator"
	"github.com/watchparty/server/pkg/wsrouter"
)

type iRoomService interface {
	// gateway
	Authenticate(token string) (connection.Identity, error)
	RegisterConnection(*connection.Conn) error
	Disconnect(context.Context, *websocket.Conn) (room.DisconnectResponse, error)
	// registry
	CreateRoom(context.Context, *room.CreateRoomParams) (room.CreateRoomResponse, error)
	GetRoom(context.Context, string) (room.Room, error)
	JoinRoom(context.Context, *room.JoinRoomParams) (room.JoinRoomResponse, error)
	LeaveRoom(context.Context, *room.LeaveRoomParams) (room.LeaveRoomResponse, error)
	CloseRoom(context.Context, *room.CloseRoomParams) (room.CloseRoomResponse, error)
	// playback
	SelectVideo(context.Context, *room.SelectVideoParams) (room.SelectVideoResponse, error)
	SyncPlayback(context.Context, *room.SyncPlaybackParams) (room.SyncPlaybackResponse, error)
	GetPlayer(context.Context, string) (room.Player, error)
	Now() time.Time
}

type controller struct {
	roomService iRoomService
	broadcaster *broadcaster.Broadcaster
	upgrader    websocket.Upgrader
	validate    *validator.Validator
	logger      *slog.Logger
	wsmux       *wsrouter.WSRouter
}

func NewController(roomService iRoomService, bc *broadcaster.Broadcaster, logger *slog.Logger) *controller {
	c := &controller{
		roomService: roomService,
		broadcaster: bc,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		validate: validator.NewValidator(),
		logger:   logger,
	}

	c.wsmux = c.getWSRouter()

	return c
}
