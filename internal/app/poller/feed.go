package poller

import (
	"context"
	"time"

	"github.com/dkeye/Presence/internal/domain"
)

// Outcome classifies one conditional request against the feed.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeNotModified
	OutcomeUnauthorized
	OutcomeRateLimited
	OutcomeTransient
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeNotModified:
		return "not_modified"
	case OutcomeUnauthorized:
		return "unauthorized"
	case OutcomeRateLimited:
		return "rate_limited"
	default:
		return "transient"
	}
}

// FeedItem is one entry of the user's recent activity window, newest first.
type FeedItem struct {
	ID          string
	Type        string
	Action      string
	Repo        string
	Title       string
	Merged      bool
	ReviewState string
	Before      string
	Head        string
	CreatedAt   time.Time
	// ParseErr is set when the item payload could not be decoded.
	ParseErr error
}

type Page struct {
	Outcome Outcome
	ETag    string
	Items   []FeedItem
}

// Comparison is the result of the per-push compare lookup.
type Comparison struct {
	Total    int
	Messages []string
}

// Feed is the external activity source.
type Feed interface {
	Events(ctx context.Context, cred domain.Credential, etag string) (Page, error)
	Compare(ctx context.Context, cred domain.Credential, repo, base, head string) (Comparison, error)
}
