// Package http holds the REST handlers of the presence API.
package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Presence/internal/app"
	"github.com/dkeye/Presence/internal/app/progress"
	"github.com/dkeye/Presence/internal/core"
	"github.com/dkeye/Presence/internal/domain"
)

// UserKey is where the auth middleware leaves the caller.
const UserKey = "user"

type Handlers struct {
	Rooms       *app.RoomManager
	Progress    *progress.Tracker
	Credentials core.CredentialStore
}

type ReserveResponse struct {
	RoomID    domain.RoomID `json:"room_id"`
	ExpiresAt time.Time     `json:"expires_at"`
}

// ProgressEventRequest credits the caller; the username comes from the token.
type ProgressEventRequest struct {
	Source domain.ProgressSource `json:"source" binding:"required"`
	Count  int                   `json:"count" binding:"required,gt=0"`
}

type CredentialRequest struct {
	Login string `json:"login" binding:"required"`
	Token string `json:"token" binding:"required"`
}

func CurrentUser(c *gin.Context) (*domain.User, bool) {
	v, ok := c.Get(UserKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*domain.User)
	return u, ok && u != nil
}

func (h *Handlers) Reserve(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	roomID := domain.RoomID(c.Param("id"))
	err := h.Rooms.Reserve(user.ID, roomID)
	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "room_not_found"})
		return
	case errors.Is(err, domain.ErrRoomFull):
		c.JSON(http.StatusBadRequest, gin.H{"error": "room_full"})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}
	_, expires, _ := h.Rooms.ReservationOf(user.ID)
	c.JSON(http.StatusOK, ReserveResponse{RoomID: roomID, ExpiresAt: expires})
}

func (h *Handlers) ListRooms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": h.Rooms.List()})
}

func (h *Handlers) AddRoom(c *gin.Context) {
	id := h.Rooms.AddRoom()
	room, _ := h.Rooms.Room(id)
	log.Info().Str("module", "transport.http").Str("room", string(id)).Msg("room added")
	c.JSON(http.StatusCreated, room)
}

func (h *Handlers) GetProgress(c *gin.Context) {
	c.JSON(http.StatusOK, h.Progress.State())
}

func (h *Handlers) PostProgressEvent(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var req ProgressEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	state, err := h.Progress.ApplyFirstPartyProgress(user.Username, req.Source, req.Count)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, state)
}

func (h *Handlers) PutCredential(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	if domain.UserID(c.Param("id")) != user.ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	var req CredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing login or token"})
		return
	}
	cred := domain.Credential{Login: req.Login, Token: req.Token}
	if err := h.Credentials.PutCredential(c.Request.Context(), user.ID, cred); err != nil {
		log.Error().Err(err).Str("module", "transport.http").Str("user", string(user.ID)).Msg("store credential")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}
	c.Status(http.StatusNoContent)
}
