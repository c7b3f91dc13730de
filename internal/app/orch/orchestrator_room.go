package orch

import (
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Presence/internal/app"
	"github.com/dkeye/Presence/internal/core"
	"github.com/dkeye/Presence/internal/domain"
	"github.com/dkeye/Presence/internal/metrics"
)

// JoinRequest is what a client sends to enter a room. An empty RoomID asks
// for any room with space.
type JoinRequest struct {
	RoomID   domain.RoomID
	Position domain.Position
}

func (o *Orchestrator) resolveRoom(sid core.SessionID, userID domain.UserID, roomID domain.RoomID) (domain.RoomID, error) {
	if roomID != "" {
		return o.Rooms.JoinRoom(sid, roomID, userID)
	}
	id, err := o.Rooms.RandomJoin(sid, userID)
	if errors.Is(err, domain.ErrRoomFull) {
		added := o.Rooms.AddRoom()
		log.Info().Str("module", "orch").Str("room", string(added)).Msg("pool saturated, room added")
		return o.Rooms.RandomJoin(sid, userID)
	}
	return id, err
}

func reasonOf(err error) string {
	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		return ReasonRoomNotFound
	case errors.Is(err, domain.ErrRoomFull):
		return ReasonRoomFull
	default:
		return ReasonNotConnected
	}
}

// Join places sid in a room. A previous connection of the same user is
// evicted before the newcomer is registered. On failure the client gets a
// join_failed notice and stays connected but not joined.
func (o *Orchestrator) Join(sid core.SessionID, req JoinRequest) (domain.RoomID, error) {
	pre, ok := o.Registry.Get(sid)
	if !ok {
		return "", domain.ErrUnauthorized
	}
	cred, hasCred := o.lookupCredential(pre.User.ID)

	o.mu.Lock()
	defer o.mu.Unlock()

	snap, ok := o.Registry.Get(sid)
	if !ok {
		return "", domain.ErrUnauthorized
	}
	user := snap.User
	if snap.State == app.StateJoined {
		o.syncPlayers(sid, snap.RoomID)
		return snap.RoomID, nil
	}

	roomID, err := o.resolveRoom(sid, user.ID, req.RoomID)
	if err != nil {
		o.Registry.Send(sid, JoinFailed{Type: TypeJoinFailed, Reason: reasonOf(err), RoomID: req.RoomID})
		log.Info().Err(err).Str("module", "orch").Str("sid", string(sid)).Str("room", string(req.RoomID)).Msg("join rejected")
		return "", err
	}

	if prev, replaced := o.Registry.Claim(user.ID, sid); replaced {
		o.Registry.Send(prev, SessionReplaced{Type: TypeSessionReplaced, Reason: "signed in elsewhere"})
		o.Registry.Close(prev)
		o.disconnectLocked(prev)
		log.Info().Str("module", "orch").Str("user", string(user.ID)).Str("old_sid", string(prev)).Str("sid", string(sid)).Msg("session replaced")
	}

	o.Registry.Join(sid, roomID, req.Position)
	if o.Status != nil && o.Status.IsFocused(user.ID) {
		o.Registry.UpdateDisplayState(sid, domain.DisplayFocused)
	}
	o.Rooms.AddPlayer(roomID, user.ID)
	metrics.Connections.Inc()

	o.syncPlayers(sid, roomID)
	if joined, ok := o.Registry.Get(sid); ok {
		o.Registry.BroadcastRoom(roomID, sid, PlayerJoined{Type: TypePlayerJoined, Player: viewOf(joined)})
	}
	if hasCred {
		o.Feed.Subscribe(sid, roomID, user, cred)
	}
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("user", string(user.ID)).Str("room", string(roomID)).Msg("joined")
	return roomID, nil
}

func (o *Orchestrator) syncPlayers(sid core.SessionID, roomID domain.RoomID) {
	members := o.Registry.MembersOfRoom(roomID)
	msg := PlayersSynced{
		Type:         TypePlayersSynced,
		RoomID:       roomID,
		Players:      make([]PlayerView, 0, len(members)),
		FocusedCount: o.focusedIn(roomID),
	}
	for _, m := range members {
		if m.SID == sid {
			msg.Self = viewOf(m)
			continue
		}
		msg.Players = append(msg.Players, viewOf(m))
	}
	o.Registry.Send(sid, msg)
}

func (o *Orchestrator) focusedIn(roomID domain.RoomID) int {
	if o.Focus == nil {
		return 0
	}
	return o.Focus.CountFocused(o.Rooms.PlayerIDs(roomID))
}

// Move records a new position and relays it to the rest of the room.
func (o *Orchestrator) Move(sid core.SessionID, pos domain.Position) bool {
	roomID, ok := o.Registry.UpdatePosition(sid, pos)
	if !ok {
		return false
	}
	snap, ok := o.Registry.Get(sid)
	if !ok {
		return false
	}
	o.Registry.BroadcastRoom(roomID, sid, Moved{Type: TypeMoved, SID: sid, UserID: snap.User.ID, Position: pos})
	return true
}

// SetStatus changes the display state of sid and tells the whole room,
// sender included, how many of its players are focused.
func (o *Orchestrator) SetStatus(sid core.SessionID, state domain.DisplayState) bool {
	if !state.Valid() {
		return false
	}
	roomID, ok := o.Registry.UpdateDisplayState(sid, state)
	if !ok {
		return false
	}
	snap, ok := o.Registry.Get(sid)
	if !ok {
		return false
	}
	if o.Focus != nil {
		o.Focus.SetFocused(snap.User.ID, state == domain.DisplayFocused)
	}
	o.Registry.BroadcastRoom(roomID, "", StatusChanged{
		Type:         TypeStatusChanged,
		SID:          sid,
		UserID:       snap.User.ID,
		State:        state,
		FocusedCount: o.focusedIn(roomID),
	})
	return true
}
