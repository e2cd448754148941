package controller

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/watchparty/server/internal/service/room"
	"github.com/watchparty/server/pkg/rest"
)

func (c *controller) createParty(w http.ResponseWriter, r *http.Request) {
	identity := c.getIdentityFromCtx(r.Context())

	createRoomResp, err := c.roomService.CreateRoom(r.Context(), &room.CreateRoomParams{
		CreatorId:       identity.UserId,
		CreatorUsername: identity.Username,
	})
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusCreated, rest.Envelope{"data": createRoomResp.Room})
}

func (c *controller) getParty(w http.ResponseWriter, r *http.Request) {
	roomCode := chi.URLParam(r, "room-code")

	rm, err := c.roomService.GetRoom(r.Context(), roomCode)
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": rm})
}

func (c *controller) joinParty(w http.ResponseWriter, r *http.Request) {
	identity := c.getIdentityFromCtx(r.Context())
	roomCode := chi.URLParam(r, "room-code")

	joinRoomResp, err := c.roomService.JoinRoom(r.Context(), &room.JoinRoomParams{
		RoomCode: roomCode,
		UserId:   identity.UserId,
		Username: identity.Username,
	})
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": joinRoomResp.Room})
}

func (c *controller) closeParty(w http.ResponseWriter, r *http.Request) {
	identity := c.getIdentityFromCtx(r.Context())
	roomCode := chi.URLParam(r, "room-code")

	closeRoomResp, err := c.roomService.CloseRoom(r.Context(), &room.CloseRoomParams{
		RoomCode:    roomCode,
		RequesterId: identity.UserId,
	})
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}

	c.broadcaster.Broadcast(r.Context(), closeRoomResp.Conns, &Output{
		Type:    "room-closed",
		Payload: RoomClosedOutput{RoomCode: roomCode},
	})

	w.WriteHeader(http.StatusNoContent)
}

func (c *controller) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, room.ErrRoomNotFound):
		rest.WriteJSON(w, http.StatusNotFound, rest.Envelope{"error": "room not found or inactive"})
	case errors.Is(err, room.ErrPermissionDenied):
		rest.WriteJSON(w, http.StatusForbidden, rest.Envelope{"error": "only the creator can close the room"})
	case errors.Is(err, room.ErrMembersLimit):
		rest.WriteJSON(w, http.StatusConflict, rest.Envelope{"error": "room is full"})
	default:
		c.logger.ErrorContext(r.Context(), "internal error", "error", err)
		rest.WriteJSON(w, http.StatusInternalServerError, rest.Envelope{"error": "internal error"})
	}
}
