package domain

import "time"

type ActivityKind string

const (
	KindCommit         ActivityKind = "commit"
	KindReviewOpened   ActivityKind = "review_opened"
	KindReviewMerged   ActivityKind = "review_merged"
	KindIssueOpened    ActivityKind = "issue_opened"
	KindReviewApproved ActivityKind = "review_approved"
)

// ActivityKinds lists every kind in a stable order.
var ActivityKinds = []ActivityKind{
	KindCommit,
	KindReviewOpened,
	KindReviewMerged,
	KindIssueOpened,
	KindReviewApproved,
}

// Credential is the per-user access to the external activity feed.
type Credential struct {
	Login string `json:"login"`
	Token string `json:"token"`
}

func (c Credential) Valid() bool { return c.Login != "" && c.Token != "" }

// ActivityItem is one classified feed entry.
type ActivityItem struct {
	Kind       ActivityKind `json:"kind"`
	Count      int          `json:"count"`
	Repo       string       `json:"repo"`
	Detail     string       `json:"detail"`
	OccurredAt time.Time    `json:"occurred_at"`
}

// ActivityDelta aggregates the new items found by one poll.
type ActivityDelta struct {
	UserID   UserID               `json:"user_id"`
	Username string               `json:"username"`
	RoomID   RoomID               `json:"room_id"`
	Counts   map[ActivityKind]int `json:"counts"`
	Items    []ActivityItem       `json:"items"`
}

func (d ActivityDelta) Empty() bool {
	for _, n := range d.Counts {
		if n > 0 {
			return false
		}
	}
	return true
}

// PointEvent is one per-item record handed to the activity sink.
type PointEvent struct {
	UserID     UserID       `json:"user_id"`
	Kind       ActivityKind `json:"kind"`
	Count      int          `json:"count"`
	Source     string       `json:"source"`
	Detail     string       `json:"detail"`
	OccurredAt time.Time    `json:"occurred_at"`
}
