package orch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Presence/internal/app"
	"github.com/dkeye/Presence/internal/app/progress"
	"github.com/dkeye/Presence/internal/core"
	"github.com/dkeye/Presence/internal/domain"
	"github.com/dkeye/Presence/internal/metrics"
)

const credentialLookupTimeout = 3 * time.Second

var ErrNotJoined = errors.New("connection has not joined a room")

// ActivityFeed is the poller as seen by the orchestrator.
type ActivityFeed interface {
	Subscribe(sid core.SessionID, roomID domain.RoomID, user domain.User, cred domain.Credential)
	Unsubscribe(sid core.SessionID)
}

// Orchestrator drives the lifecycle of every connection: join, eviction of
// a duplicate session, movement, status and teardown.
type Orchestrator struct {
	Registry    *app.Registry
	Rooms       *app.RoomManager
	Focus       *app.FocusTracker
	Status      core.StatusSource
	Progress    *progress.Tracker
	Feed        ActivityFeed
	Credentials core.CredentialStore

	// mu serializes join and teardown so that eviction and registration of
	// one user never interleave with another join.
	mu sync.Mutex
}

// Connect registers an authenticated connection.
func (o *Orchestrator) Connect(sid core.SessionID, user *domain.User, conn core.SignalConnection) {
	o.Registry.Bind(sid, user, conn)
}

// Disconnect tears sid down. Calling it again for the same sid is a no-op.
func (o *Orchestrator) Disconnect(sid core.SessionID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.disconnectLocked(sid)
}

func (o *Orchestrator) disconnectLocked(sid core.SessionID) {
	snap, ok := o.Registry.Unbind(sid)
	if !ok {
		return
	}
	if snap.State == app.StateJoined {
		metrics.Connections.Dec()
		o.Registry.BroadcastRoom(snap.RoomID, sid, PlayerLeft{Type: TypePlayerLeft, SID: sid, UserID: snap.User.ID})
		o.Rooms.RemovePlayer(snap.RoomID, snap.User.ID)
	}
	o.Rooms.Exit(sid)
	if o.Feed != nil {
		o.Feed.Unsubscribe(sid)
	}
	if o.Registry.Release(snap.User.ID, sid) && o.Focus != nil {
		o.Focus.SetFocused(snap.User.ID, false)
	}
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("user", string(snap.User.ID)).Msg("disconnected")
}

// HandleActivity folds a poller delta into the shared progress and relays
// it to the room of the user.
func (o *Orchestrator) HandleActivity(delta domain.ActivityDelta) {
	if o.Progress != nil {
		o.Progress.ApplyExternalActivity(delta.Username, delta.Counts)
	}
	o.Registry.BroadcastRoom(delta.RoomID, "", GithubEvent{
		Type:     TypeGithubEvent,
		UserID:   delta.UserID,
		Username: delta.Username,
		Counts:   delta.Counts,
		Items:    delta.Items,
	})
}

// FocusCompleted credits a finished focus interval to the player on sid.
func (o *Orchestrator) FocusCompleted(sid core.SessionID, count int) error {
	snap, ok := o.Registry.Get(sid)
	if !ok {
		return domain.ErrUnauthorized
	}
	if snap.State != app.StateJoined {
		return ErrNotJoined
	}
	if o.Progress == nil {
		return nil
	}
	if count <= 0 {
		count = 1
	}
	_, err := o.Progress.ApplyFirstPartyProgress(snap.User.Username, domain.SourceFocusCompleted, count)
	return err
}

// SendGameState answers an explicit state request from sid.
func (o *Orchestrator) SendGameState(sid core.SessionID) {
	snap, ok := o.Registry.Get(sid)
	if !ok || o.Progress == nil {
		return
	}
	o.Registry.Send(sid, GameState{
		Type:          TypeGameState,
		RoomID:        snap.RoomID,
		ProgressState: o.Progress.State(),
	})
}

func (o *Orchestrator) lookupCredential(userID domain.UserID) (domain.Credential, bool) {
	if o.Credentials == nil || o.Feed == nil {
		return domain.Credential{}, false
	}
	ctx, cancel := context.WithTimeout(context.Background(), credentialLookupTimeout)
	defer cancel()
	cred, ok, err := o.Credentials.GetCredential(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("user", string(userID)).Msg("credential lookup failed")
		return domain.Credential{}, false
	}
	return cred, ok && cred.Valid()
}
