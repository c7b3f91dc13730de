package github

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dkeye/Presence/internal/app/poller"
	"github.com/dkeye/Presence/internal/domain"
)

const eventsBody = `[
  {"id":"4","type":"PullRequestReviewEvent","repo":{"name":"acme/app"},"created_at":"2024-05-01T10:04:00Z",
   "payload":{"action":"created","review":{"state":"approved"},"pull_request":{"title":"Add feed"}}},
  {"id":"3","type":"PullRequestEvent","repo":{"name":"acme/app"},"created_at":"2024-05-01T10:03:00Z",
   "payload":{"action":"closed","pull_request":{"title":"Add rooms","merged":true}}},
  {"id":"2","type":"IssuesEvent","repo":{"name":"acme/app"},"created_at":"2024-05-01T10:02:00Z",
   "payload":{"action":"opened","issue":{"title":"Crash on join"}}},
  {"id":"1","type":"PushEvent","repo":{"name":"acme/app"},"created_at":"2024-05-01T10:01:00Z",
   "payload":{"before":"b0","head":"h1","size":2}}
]`

var cred = domain.Credential{Login: "alice-gh", Token: "secret"}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(srv.Client(), srv.URL)
	require.NoError(t, err)
	return c
}

func TestClient_Events(t *testing.T) {
	req := require.New(t)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		req.Equal("/users/alice-gh/events", r.URL.Path)
		req.Equal("Bearer secret", r.Header.Get("Authorization"))
		req.Empty(r.Header.Get("If-None-Match"))
		w.Header().Set("ETag", `"abc"`)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(eventsBody))
	})

	page, err := c.Events(context.Background(), cred, "")
	req.NoError(err)
	req.Equal(poller.OutcomeOK, page.Outcome)
	req.Equal(`"abc"`, page.ETag)
	req.Len(page.Items, 4)

	review, merged, issue, push := page.Items[0], page.Items[1], page.Items[2], page.Items[3]
	req.Equal("4", review.ID)
	req.Equal("approved", review.ReviewState)
	req.Equal("Add feed", review.Title)

	req.Equal("closed", merged.Action)
	req.True(merged.Merged)

	req.Equal("opened", issue.Action)
	req.Equal("Crash on join", issue.Title)
	req.Equal("acme/app", issue.Repo)

	req.Equal("PushEvent", push.Type)
	req.Equal("b0", push.Before)
	req.Equal("h1", push.Head)
	req.Equal(2024, push.CreatedAt.Year())
}

func TestClient_EventsOutcomes(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   poller.Outcome
	}{
		{name: "not modified", status: http.StatusNotModified, want: poller.OutcomeNotModified},
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{"message":"Bad credentials"}`, want: poller.OutcomeUnauthorized},
		{name: "forbidden", status: http.StatusForbidden, body: `{"message":"Forbidden"}`, want: poller.OutcomeRateLimited},
		{name: "too many requests", status: http.StatusTooManyRequests, body: `{"message":"slow down"}`, want: poller.OutcomeRateLimited},
		{name: "server error", status: http.StatusBadGateway, body: `{"message":"bad gateway"}`, want: poller.OutcomeTransient},
		{name: "malformed body", status: http.StatusOK, body: `{"not":"a list"`, want: poller.OutcomeTransient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if tt.status == http.StatusNotModified {
					req.Equal(`"abc"`, r.Header.Get("If-None-Match"))
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			page, _ := c.Events(context.Background(), cred, `"abc"`)
			req.Equal(tt.want, page.Outcome)
			req.Empty(page.Items)
		})
	}
}

func TestClient_EventsNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	c, err := NewClient(srv.Client(), srv.URL)
	require.NoError(t, err)
	srv.Close()

	page, err := c.Events(context.Background(), cred, "")
	require.Error(t, err)
	require.Equal(t, poller.OutcomeTransient, page.Outcome)
}

func TestClient_Compare(t *testing.T) {
	req := require.New(t)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		req.Equal("/repos/acme/app/compare/b0...h1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"total_commits":3,"commits":[
			{"commit":{"message":"one"}},{"commit":{"message":"two"}},{"commit":{"message":"three"}}]}`))
	})

	cmp, err := c.Compare(context.Background(), cred, "acme/app", "b0", "h1")
	req.NoError(err)
	req.Equal(3, cmp.Total)
	req.Equal([]string{"one", "two", "three"}, cmp.Messages)

	_, err = c.Compare(context.Background(), cred, "no-slash", "b0", "h1")
	req.Error(err)
}

func TestClient_CompareFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Not Found"}`))
	})
	_, err := c.Compare(context.Background(), cred, "acme/app", "b0", "h1")
	require.Error(t, err)
}
