package poller

import (
	"strings"

	"github.com/dkeye/Presence/internal/domain"
)

// emptyFeedMarker is recorded when the baseline poll saw no items.
const emptyFeedMarker = "<empty>"

const (
	placeholderCommitMessage = "(commit details unavailable)"
	maxCommitMessages        = 5
)

// diffItems returns the items newer than marker. The first poll only
// records a marker and reports nothing. When the marker has left the
// window every item counts as new.
func diffItems(marker string, items []FeedItem) (fresh []FeedItem, next string, baseline bool) {
	if marker == "" {
		if len(items) == 0 {
			return nil, emptyFeedMarker, true
		}
		return nil, items[0].ID, true
	}
	next = marker
	if len(items) > 0 {
		next = items[0].ID
	}
	for i, it := range items {
		if it.ID == marker {
			return items[:i], next, false
		}
	}
	return items, next, false
}

// classify maps a feed item to an activity kind.
func classify(it FeedItem) (domain.ActivityKind, bool) {
	switch it.Type {
	case "PushEvent":
		return domain.KindCommit, true
	case "PullRequestEvent":
		switch {
		case it.Action == "opened":
			return domain.KindReviewOpened, true
		case it.Action == "closed" && it.Merged:
			return domain.KindReviewMerged, true
		}
	case "IssuesEvent":
		if it.Action == "opened" {
			return domain.KindIssueOpened, true
		}
	case "PullRequestReviewEvent":
		if strings.EqualFold(it.ReviewState, "approved") {
			return domain.KindReviewApproved, true
		}
	}
	return "", false
}

func summarizeCommits(messages []string) string {
	lines := make([]string, 0, min(len(messages), maxCommitMessages))
	for _, m := range messages {
		if len(lines) == maxCommitMessages {
			break
		}
		first, _, _ := strings.Cut(m, "\n")
		if first = strings.TrimSpace(first); first != "" {
			lines = append(lines, first)
		}
	}
	if len(lines) == 0 {
		return placeholderCommitMessage
	}
	return strings.Join(lines, "; ")
}
