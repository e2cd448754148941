package controller

import (
	"github.com/watchparty/server/pkg/wsrouter"
)

func (c *controller) getWSRouter() *wsrouter.WSRouter {
	mux := wsrouter.New()

	mux.Use(c.loggerWSMw())
	mux.OnError(c.wsErrorHandler)

	// membership
	wsrouter.Handle(mux, "join-room", c.handleJoinRoom)
	wsrouter.Handle(mux, "leave-room", c.handleLeaveRoom)

	// clock calibration
	wsrouter.Handle(mux, "time-sync", c.handleTimeSync)

	// playback
	wsrouter.Handle(mux, "sync-video", c.handleSyncVideo)
	wsrouter.Handle(mux, "play-video", c.handlePlayVideo)

	return mux
}
