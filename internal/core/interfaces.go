//go:generate go run go.uber.org/mock/mockgen -source=interfaces.go -destination=../mocks/mock_core.go -package=mocks
package core

import (
	"context"

	"github.com/dkeye/Presence/internal/domain"
)

// Frame is a raw encoded message for one client.
type Frame []byte

// SessionID identifies one live transport connection.
type SessionID string

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// ProgressStore persists the shared progress aggregate.
type ProgressStore interface {
	Load(ctx context.Context) (domain.ProgressRecord, bool, error)
	Save(ctx context.Context, rec domain.ProgressRecord) error
}

// ActivitySink receives activity counts found by the poller.
type ActivitySink interface {
	IncrementActivity(ctx context.Context, userID domain.UserID, kind domain.ActivityKind, count int) error
	AddPointEvent(ctx context.Context, ev domain.PointEvent) error
}

// CredentialStore resolves the external feed credential of a user.
type CredentialStore interface {
	GetCredential(ctx context.Context, userID domain.UserID) (domain.Credential, bool, error)
	PutCredential(ctx context.Context, userID domain.UserID, cred domain.Credential) error
}

// StatusSource answers whether a player is currently focused.
type StatusSource interface {
	IsFocused(userID domain.UserID) bool
}

// Broadcaster fans a message out to every live connection.
type Broadcaster interface {
	BroadcastAll(v any)
}
