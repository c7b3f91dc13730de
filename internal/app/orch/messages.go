package orch

import (
	"github.com/dkeye/Presence/internal/app"
	"github.com/dkeye/Presence/internal/core"
	"github.com/dkeye/Presence/internal/domain"
)

// Outgoing message types.
const (
	TypePlayersSynced   = "players_synced"
	TypePlayerJoined    = "player_joined"
	TypePlayerLeft      = "player_left"
	TypeMoved           = "moved"
	TypeStatusChanged   = "status_changed"
	TypeSessionReplaced = "session_replaced"
	TypeJoinFailed      = "join_failed"
	TypeGithubEvent     = "github_event"
	TypeGameState       = "game_state"
)

// Join failure reasons.
const (
	ReasonRoomNotFound = "room_not_found"
	ReasonRoomFull     = "room_full"
	ReasonNotConnected = "not_connected"
)

type PlayerView struct {
	SID      core.SessionID      `json:"sid"`
	UserID   domain.UserID       `json:"user_id"`
	Username string              `json:"username"`
	Position domain.Position     `json:"position"`
	State    domain.DisplayState `json:"state"`
}

func viewOf(s app.PlayerSnapshot) PlayerView {
	return PlayerView{
		SID:      s.SID,
		UserID:   s.User.ID,
		Username: s.User.Username,
		Position: s.Position,
		State:    s.DisplayState,
	}
}

type PlayersSynced struct {
	Type         string        `json:"type"`
	RoomID       domain.RoomID `json:"room_id"`
	Self         PlayerView    `json:"self"`
	Players      []PlayerView  `json:"players"`
	FocusedCount int           `json:"focused_count"`
}

type PlayerJoined struct {
	Type   string     `json:"type"`
	Player PlayerView `json:"player"`
}

type PlayerLeft struct {
	Type   string         `json:"type"`
	SID    core.SessionID `json:"sid"`
	UserID domain.UserID  `json:"user_id"`
}

type Moved struct {
	Type     string          `json:"type"`
	SID      core.SessionID  `json:"sid"`
	UserID   domain.UserID   `json:"user_id"`
	Position domain.Position `json:"position"`
}

type StatusChanged struct {
	Type         string              `json:"type"`
	SID          core.SessionID      `json:"sid"`
	UserID       domain.UserID       `json:"user_id"`
	State        domain.DisplayState `json:"state"`
	FocusedCount int                 `json:"focused_count"`
}

type SessionReplaced struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

type JoinFailed struct {
	Type   string        `json:"type"`
	Reason string        `json:"reason"`
	RoomID domain.RoomID `json:"room_id,omitempty"`
}

// GithubEvent relays one activity delta to the room of its user.
type GithubEvent struct {
	Type     string                      `json:"type"`
	UserID   domain.UserID               `json:"user_id"`
	Username string                      `json:"username"`
	Counts   map[domain.ActivityKind]int `json:"counts"`
	Items    []domain.ActivityItem       `json:"items"`
}

type GameState struct {
	Type   string        `json:"type"`
	RoomID domain.RoomID `json:"room_id,omitempty"`
	domain.ProgressState
}
