package app

import (
	"encoding/json"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Presence/internal/core"
	"github.com/dkeye/Presence/internal/domain"
)

type ConnState int

const (
	StateAuthenticated ConnState = iota + 1
	StateJoined
)

type sessionEntry struct {
	Member *domain.Member
	RoomID domain.RoomID
	Conn   core.SignalConnection
	State  ConnState
}

// PlayerSnapshot is a copy of one registry entry, safe to use outside the lock.
type PlayerSnapshot struct {
	SID          core.SessionID
	User         domain.User
	RoomID       domain.RoomID
	Position     domain.Position
	DisplayState domain.DisplayState
	State        ConnState
}

// Registry is the live connection->player table used for broadcasting, plus
// the user->authoritative connection mapping.
type Registry struct {
	mu         sync.RWMutex
	sessions   map[core.SessionID]*sessionEntry
	identities map[domain.UserID]core.SessionID
}

func NewRegistry() *Registry {
	return &Registry{
		sessions:   make(map[core.SessionID]*sessionEntry),
		identities: make(map[domain.UserID]core.SessionID),
	}
}

func snapshotOf(sid core.SessionID, e *sessionEntry) PlayerSnapshot {
	return PlayerSnapshot{
		SID:          sid,
		User:         *e.Member.User,
		RoomID:       e.RoomID,
		Position:     e.Member.Position,
		DisplayState: e.Member.DisplayState,
		State:        e.State,
	}
}

// Bind registers an authenticated connection that has not joined a room yet.
func (r *Registry) Bind(sid core.SessionID, user *domain.User, conn core.SignalConnection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sid] = &sessionEntry{
		Member: domain.NewMember(user),
		Conn:   conn,
		State:  StateAuthenticated,
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("user", string(user.ID)).Msg("bound signal")
}

func (r *Registry) Get(sid core.SessionID) (PlayerSnapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sid]
	if !ok {
		return PlayerSnapshot{}, false
	}
	return snapshotOf(sid, e), true
}

// Join moves a bound connection into the Joined state.
func (r *Registry) Join(sid core.SessionID, roomID domain.RoomID, pos domain.Position) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return false
	}
	e.RoomID = roomID
	e.Member.Position = pos
	e.State = StateJoined
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("room", string(roomID)).Msg("joined room")
	return true
}

func (r *Registry) UpdatePosition(sid core.SessionID, pos domain.Position) (domain.RoomID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok || e.State != StateJoined {
		return "", false
	}
	e.Member.Position = pos
	return e.RoomID, true
}

func (r *Registry) UpdateDisplayState(sid core.SessionID, state domain.DisplayState) (domain.RoomID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok || e.State != StateJoined {
		return "", false
	}
	e.Member.DisplayState = state
	return e.RoomID, true
}

// Unbind removes sid and returns what it held. Only the first call for a
// given sid reports ok.
func (r *Registry) Unbind(sid core.SessionID) (PlayerSnapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return PlayerSnapshot{}, false
	}
	delete(r.sessions, sid)
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("unbind session")
	return snapshotOf(sid, e), true
}

// Claim makes sid the authoritative connection of userID and returns the
// connection it replaced, if any.
func (r *Registry) Claim(userID domain.UserID, sid core.SessionID) (core.SessionID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.identities[userID]
	r.identities[userID] = sid
	if !ok || prev == sid {
		return "", false
	}
	return prev, true
}

// Release clears the identity mapping only while sid is still authoritative.
func (r *Registry) Release(userID domain.UserID, sid core.SessionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.identities[userID] != sid {
		return false
	}
	delete(r.identities, userID)
	return true
}

func (r *Registry) Authoritative(userID domain.UserID) (core.SessionID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sid, ok := r.identities[userID]
	return sid, ok
}

// MembersOfRoom returns the joined connections of a room ordered by sid.
func (r *Registry) MembersOfRoom(roomID domain.RoomID) []PlayerSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]PlayerSnapshot, 0)
	for sid, e := range r.sessions {
		if e.State == StateJoined && e.RoomID == roomID {
			out = append(out, snapshotOf(sid, e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SID < out[j].SID })
	return out
}

func (r *Registry) JoinedCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, e := range r.sessions {
		if e.State == StateJoined {
			n++
		}
	}
	return n
}

func encode(v any) (core.Frame, bool) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.registry").Msg("encode message")
		return nil, false
	}
	return b, true
}

func trySend(sid core.SessionID, conn core.SignalConnection, f core.Frame) {
	if err := conn.TrySend(f); err != nil {
		log.Warn().Err(err).Str("module", "app.registry").Str("sid", string(sid)).Msg("drop frame")
	}
}

// Send delivers v to one connection, joined or not.
func (r *Registry) Send(sid core.SessionID, v any) bool {
	f, ok := encode(v)
	if !ok {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sid]
	if !ok {
		return false
	}
	trySend(sid, e.Conn, f)
	return true
}

// BroadcastRoom delivers v to every joined connection of roomID except one.
func (r *Registry) BroadcastRoom(roomID domain.RoomID, except core.SessionID, v any) int {
	f, ok := encode(v)
	if !ok {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	sent := 0
	for sid, e := range r.sessions {
		if sid == except || e.State != StateJoined || e.RoomID != roomID {
			continue
		}
		trySend(sid, e.Conn, f)
		sent++
	}
	return sent
}

// BroadcastAll delivers v to every joined connection.
func (r *Registry) BroadcastAll(v any) {
	f, ok := encode(v)
	if !ok {
		return
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for sid, e := range r.sessions {
		if e.State == StateJoined {
			trySend(sid, e.Conn, f)
		}
	}
}

// Close closes the transport of sid without unbinding it.
func (r *Registry) Close(sid core.SessionID) {
	r.mu.RLock()
	e, ok := r.sessions[sid]
	r.mu.RUnlock()
	if ok {
		e.Conn.Close()
	}
}
