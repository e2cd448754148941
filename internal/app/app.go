package app

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/watchparty/server/internal/broadcaster"
	"github.com/watchparty/server/internal/controller"
	"github.com/watchparty/server/internal/repository/connection/inmemory"
	roomRedis "github.com/watchparty/server/internal/repository/room/redis"
	"github.com/watchparty/server/internal/service/room"
	"github.com/watchparty/server/pkg/ctxlogger"
	"github.com/watchparty/server/pkg/redisclient"
)

type AppConfig struct {
	Secret         string `json:"-"`
	Host           string `json:"host"`
	Port           int    `json:"port"`
	LogLevel       string `json:"log_level"`
	MembersLimit   int    `json:"members_limit"`
	RoomCodeLength int    `json:"room_code_length"`
	RoomTTLHours   int    `json:"room_ttl_hours"`
	LeadTimeMs     int    `json:"lead_time_ms"`
	RedisHost      string `json:"redis_host"`
	RedisPort      int    `json:"redis_port"`
	RedisPassword  string `json:"-"`
}

func (cfg *AppConfig) Validate() error {
	if cfg.Secret == "" {
		return fmt.Errorf("secret must be set")
	}
	if cfg.MembersLimit < 1 {
		return fmt.Errorf("members limit must be greater than 0")
	}
	if cfg.RoomCodeLength < 4 {
		return fmt.Errorf("room code length must be at least 4")
	}
	if cfg.LeadTimeMs < 0 {
		return fmt.Errorf("lead time must not be negative")
	}
	return nil
}

func Run(ctx context.Context, cfg *AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	logLevel := slog.LevelInfo
	if err := logLevel.UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel))); err != nil {
		return err
	}

	h := ctxlogger.ContextHandler{
		Handler: slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: logLevel,
		}),
	}
	logger := slog.New(h)

	rc, err := redisclient.NewRedisClient(&redisclient.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		return fmt.Errorf("failed to create redis client: %w", err)
	}
	defer rc.Close()

	roomRepo := roomRedis.NewRepo(rc, time.Duration(cfg.RoomTTLHours)*time.Hour, logger)
	connRepo := inmemory.NewRepo()
	roomService := room.NewService(roomRepo, connRepo, clockwork.NewRealClock(), &room.Config{
		Secret:         cfg.Secret,
		MembersLimit:   cfg.MembersLimit,
		RoomCodeLength: cfg.RoomCodeLength,
		LeadTime:       time.Duration(cfg.LeadTimeMs) * time.Millisecond,
	}, logger)
	bc := broadcaster.New(logger)
	ctrl := controller.NewController(roomService, bc, logger)

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: ctrl.GetMux(),
	}

	// graceful shutdown
	serverCtx, serverStopCtx := context.WithCancel(ctx)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sig

		shutdownCtx, cancel := context.WithTimeout(serverCtx, 30*time.Second)
		defer cancel()

		go func() {
			<-shutdownCtx.Done()
			if shutdownCtx.Err() == context.DeadlineExceeded {
				log.Fatal("graceful shutdown timed out.. forcing exit.")
			}
		}()

		for _, conn := range connRepo.All() {
			conn.Close()
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Fatal(err)
		}
		serverStopCtx()
	}()

	logger.InfoContext(serverCtx, "starting server", "address", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	<-serverCtx.Done()

	return nil
}
