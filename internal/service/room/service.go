package room

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/watchparty/server/internal/repository/connection"
	"github.com/watchparty/server/internal/repository/room"
	"github.com/watchparty/server/pkg/randstr"
)

var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrMemberNotFound   = errors.New("member not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrMembersLimit     = errors.New("members limit reached")
	ErrNoVideoSelected  = errors.New("no video selected")
	ErrMissingPosition  = errors.New("seek requires a position")
	ErrUnauthorized     = errors.New("invalid credentials")
)

const roomCodeAttempts = 10

type iRoomRepo interface {
	// room
	SetRoom(context.Context, *room.SetRoomParams) error
	GetRoom(context.Context, string) (room.Room, error)
	DeactivateRoom(context.Context, string) error
	// member
	SetMember(context.Context, *room.SetMemberParams) error
	UpdateMemberConnection(context.Context, *room.UpdateMemberConnectionParams) error
	GetMember(context.Context, *room.GetMemberParams) (room.Member, error)
	GetMemberIds(context.Context, string) ([]int64, error)
	RemoveMember(context.Context, *room.RemoveMemberParams) error
	RemoveAllMembers(context.Context, string) error
	// player
	SetPlayer(context.Context, *room.SetPlayerParams) error
	GetPlayer(context.Context, string) (room.Player, error)
	UpdatePlayerState(context.Context, *room.UpdatePlayerStateParams) error
	RemovePlayer(context.Context, string) error
	NextSequence(context.Context, string) (int64, error)
}

type iConnRepo interface {
	Add(*connection.Conn) error
	GetById(string) (*connection.Conn, error)
	GetByWS(*websocket.Conn) (*connection.Conn, error)
	Remove(*websocket.Conn) (*connection.Conn, error)
}

type iGenerator interface {
	GenerateRandomString(length int) string
}

type Config struct {
	Secret         string
	MembersLimit   int
	RoomCodeLength int
	// LeadTime is the delay between a video being selected and its scheduled
	// start, giving every client time to buffer.
	LeadTime time.Duration
}

type service struct {
	roomRepo  iRoomRepo
	connRepo  iConnRepo
	generator iGenerator
	clock     clockwork.Clock
	logger    *slog.Logger

	secret         string
	membersLimit   int
	roomCodeLength int
	leadTime       time.Duration

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

func NewService(roomRepo iRoomRepo, connRepo iConnRepo, clock clockwork.Clock, cfg *Config, logger *slog.Logger) *service {
	s := service{
		roomRepo:       roomRepo,
		connRepo:       connRepo,
		clock:          clock,
		logger:         logger,
		secret:         cfg.Secret,
		membersLimit:   cfg.MembersLimit,
		roomCodeLength: cfg.RoomCodeLength,
		leadTime:       cfg.LeadTime,
		locks:          make(map[string]*sync.Mutex),
	}

	letterBytes := []byte("ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789")
	s.generator = randstr.New(letterBytes)

	return &s
}

// Now exposes the service clock, the time authority every scheduled start and
// broadcast timestamp is derived from.
func (s *service) Now() time.Time {
	return s.clock.Now()
}
