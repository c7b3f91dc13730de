package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/dkeye/Presence/internal/domain"
	"github.com/dkeye/Presence/internal/mocks"
)

type pageResult struct {
	page Page
	err  error
}

type fakeFeed struct {
	mu       sync.Mutex
	pages    []pageResult
	etags    []string
	tokens   []string
	compare  func(repo, base, head string) (Comparison, error)
	onEvents func()
}

func (f *fakeFeed) script(results ...pageResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages = append(f.pages, results...)
}

func (f *fakeFeed) Events(_ context.Context, cred domain.Credential, etag string) (Page, error) {
	f.mu.Lock()
	f.etags = append(f.etags, etag)
	f.tokens = append(f.tokens, cred.Token)
	var r pageResult
	if len(f.pages) > 0 {
		r = f.pages[0]
		if len(f.pages) > 1 {
			f.pages = f.pages[1:]
		}
	}
	hook := f.onEvents
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return r.page, r.err
}

func (f *fakeFeed) Compare(_ context.Context, _ domain.Credential, repo, base, head string) (Comparison, error) {
	if f.compare == nil {
		return Comparison{}, errors.New("no compare")
	}
	return f.compare(repo, base, head)
}

func (f *fakeFeed) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.etags)
}

type deltaRecorder struct {
	mu     sync.Mutex
	deltas []domain.ActivityDelta
}

func (r *deltaRecorder) handle(d domain.ActivityDelta) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deltas = append(r.deltas, d)
}

func (r *deltaRecorder) all() []domain.ActivityDelta {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.ActivityDelta(nil), r.deltas...)
}

func ok(etag string, items ...FeedItem) pageResult {
	return pageResult{page: Page{Outcome: OutcomeOK, ETag: etag, Items: items}}
}

func issue(id string) FeedItem {
	return FeedItem{ID: id, Type: "IssuesEvent", Action: "opened", Repo: "acme/app", Title: "issue " + id}
}

var (
	alice     = domain.User{ID: "u1", Username: "alice"}
	aliceCred = domain.Credential{Login: "alice-gh", Token: "t1"}
)

type harness struct {
	p     *Poller
	feed  *fakeFeed
	sink  *mocks.MockActivitySink
	rec   *deltaRecorder
	clock *quartz.Mock
	ctx   context.Context
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	ctrl := gomock.NewController(t)
	h := &harness{
		feed:  &fakeFeed{},
		sink:  mocks.NewMockActivitySink(ctrl),
		rec:   &deltaRecorder{},
		clock: quartz.NewMock(t),
		ctx:   ctx,
	}
	cfg := Config{Interval: time.Minute, Backoff: 10 * time.Minute, InitialDelay: 2 * time.Second, RequestTimeout: time.Second}
	h.p = New(cfg, h.feed, h.sink, h.clock)
	h.p.OnActivity(h.rec.handle)
	t.Cleanup(h.p.Close)
	return h
}

func (h *harness) step(t *testing.T, want time.Duration) {
	t.Helper()
	d, ok := h.clock.Peek()
	require.True(t, ok, "no poll scheduled")
	require.Equal(t, want, d)
	h.clock.Advance(d).MustWait(h.ctx)
}

func (h *harness) anySink() {
	h.sink.EXPECT().IncrementActivity(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	h.sink.EXPECT().AddPointEvent(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
}

func TestPoller_BaselineThenNewItem(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	h.feed.script(
		ok(`"e1"`, issue("A"), issue("B"), issue("C")),
		ok(`"e2"`, issue("X"), issue("A"), issue("B"), issue("C")),
	)
	h.sink.EXPECT().IncrementActivity(gomock.Any(), domain.UserID("u1"), domain.KindIssueOpened, 1).Return(nil).Times(1)
	h.sink.EXPECT().AddPointEvent(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, ev domain.PointEvent) error {
			req.Equal("issue X", ev.Detail)
			req.Equal("github:acme/app", ev.Source)
			return nil
		}).Times(1)

	h.p.Subscribe("c1", "room-1", alice, aliceCred)
	h.step(t, 2*time.Second)
	req.Empty(h.rec.all(), "baseline poll must not emit")

	h.step(t, time.Minute)
	deltas := h.rec.all()
	req.Len(deltas, 1)
	req.Equal(map[domain.ActivityKind]int{domain.KindIssueOpened: 1}, deltas[0].Counts)
	req.Equal(domain.RoomID("room-1"), deltas[0].RoomID)
	req.Equal("alice", deltas[0].Username)
	req.Len(deltas[0].Items, 1)

	req.Equal([]string{"", `"e1"`}, h.feed.etags)
}

func TestPoller_MarkerNotFoundReportsEverything(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	h.anySink()
	h.feed.script(
		ok("", issue("A"), issue("B"), issue("C")),
		ok("", issue("D"), issue("E"), issue("F")),
		ok("", issue("G"), issue("D"), issue("E"), issue("F")),
	)

	h.p.Subscribe("c1", "room-1", alice, aliceCred)
	h.step(t, 2*time.Second)
	h.step(t, time.Minute)

	deltas := h.rec.all()
	req.Len(deltas, 1)
	req.Equal(3, deltas[0].Counts[domain.KindIssueOpened])
	req.Equal("issue F", deltas[0].Items[0].Detail)

	// The marker advanced to D.
	h.step(t, time.Minute)
	deltas = h.rec.all()
	req.Len(deltas, 2)
	req.Equal(1, deltas[1].Counts[domain.KindIssueOpened])
}

func TestPoller_EmptyBaseline(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	h.anySink()
	h.feed.script(ok(""), ok("", issue("A")))

	h.p.Subscribe("c1", "room-1", alice, aliceCred)
	h.step(t, 2*time.Second)
	h.step(t, time.Minute)

	deltas := h.rec.all()
	req.Len(deltas, 1)
	req.Equal(1, deltas[0].Counts[domain.KindIssueOpened])
}

func TestPoller_UnauthorizedStopsPermanently(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	h.feed.script(pageResult{page: Page{Outcome: OutcomeUnauthorized}, err: errors.New("401 Bad credentials")})

	h.p.Subscribe("c1", "room-1", alice, aliceCred)
	h.step(t, 2*time.Second)
	req.Equal(1, h.feed.calls())

	_, scheduled := h.clock.Peek()
	req.False(scheduled)
	h.clock.Advance(time.Hour).MustWait(h.ctx)
	req.Equal(1, h.feed.calls())
	req.False(h.p.Active("u1"))

	// Another tab with the same credential does not revive the loop.
	h.p.Subscribe("c2", "room-1", alice, aliceCred)
	_, scheduled = h.clock.Peek()
	req.False(scheduled)

	// A fresh credential does.
	h.p.Subscribe("c3", "room-1", alice, domain.Credential{Login: "alice-gh", Token: "t2"})
	req.True(h.p.Active("u1"))
	h.step(t, 2*time.Second)
	req.Equal(2, h.feed.calls())
}

func TestPoller_RotatedCredentialAdoptedByLiveLoop(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	h.feed.script(ok(`"e1"`, issue("A")))

	h.p.Subscribe("c1", "room-1", alice, aliceCred)
	h.step(t, 2*time.Second)

	// A second tab arrives after the token was rotated.
	h.p.Subscribe("c2", "room-1", alice, domain.Credential{Login: "alice-gh", Token: "t2"})
	h.step(t, time.Minute)

	req.Equal([]string{"t1", "t2"}, h.feed.tokens)
	req.True(h.p.Active("u1"))
	req.Equal(2, h.p.Subscribers("u1"))
	d, scheduled := h.clock.Peek()
	req.True(scheduled)
	req.Equal(time.Minute, d)
}

func TestPoller_CloseStopsScheduling(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	h.feed.script(ok("", issue("A")))

	h.p.Subscribe("c1", "room-1", alice, aliceCred)
	h.p.Close()
	_, scheduled := h.clock.Peek()
	req.False(scheduled)

	h.p.Subscribe("c2", "room-1", domain.User{ID: "u2", Username: "bob"}, aliceCred)
	_, scheduled = h.clock.Peek()
	req.False(scheduled)
	h.clock.Advance(time.Hour).MustWait(h.ctx)
	req.Equal(0, h.feed.calls())
}

func TestPoller_RateLimitedBacksOff(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	h.feed.script(
		pageResult{page: Page{Outcome: OutcomeRateLimited}, err: errors.New("429")},
		pageResult{page: Page{Outcome: OutcomeNotModified}},
	)

	h.p.Subscribe("c1", "room-1", alice, aliceCred)
	h.step(t, 2*time.Second)

	d, scheduled := h.clock.Peek()
	req.True(scheduled)
	req.Equal(10*time.Minute, d)

	h.step(t, 10*time.Minute)
	req.Equal(2, h.feed.calls())
	d, _ = h.clock.Peek()
	req.Equal(time.Minute, d)
}

func TestPoller_TransientAndNotModifiedKeepInterval(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	h.feed.script(
		ok(`"e1"`, issue("A")),
		pageResult{page: Page{Outcome: OutcomeNotModified}},
		pageResult{page: Page{Outcome: OutcomeTransient}, err: errors.New("connection reset")},
		ok(`"e2"`, issue("A")),
	)

	h.p.Subscribe("c1", "room-1", alice, aliceCred)
	h.step(t, 2*time.Second)
	h.step(t, time.Minute)
	h.step(t, time.Minute)
	h.step(t, time.Minute)

	req.Equal([]string{"", `"e1"`, `"e1"`, `"e1"`}, h.feed.etags)
	req.Empty(h.rec.all())
	d, _ := h.clock.Peek()
	req.Equal(time.Minute, d)
}

func TestPoller_SharedSubscription(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	h.feed.script(ok("", issue("A")))

	h.p.Subscribe("c1", "room-1", alice, aliceCred)
	h.p.Subscribe("c2", "room-1", alice, aliceCred)
	req.Equal(2, h.p.Subscribers("u1"))

	h.step(t, 2*time.Second)
	req.Equal(1, h.feed.calls())

	h.p.Unsubscribe("c1")
	req.True(h.p.Active("u1"))
	_, scheduled := h.clock.Peek()
	req.True(scheduled)

	h.p.Unsubscribe("c2")
	req.Equal(0, h.p.Subscribers("u1"))
	_, scheduled = h.clock.Peek()
	req.False(scheduled)

	h.p.Unsubscribe("c2")
}

func TestPoller_ResubscribeRebaselines(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	h.feed.script(
		ok("", issue("A")),
		ok("", issue("B"), issue("A")),
	)

	h.p.Subscribe("c1", "room-1", alice, aliceCred)
	h.step(t, 2*time.Second)
	h.p.Unsubscribe("c1")

	h.p.Subscribe("c2", "room-1", alice, aliceCred)
	h.step(t, 2*time.Second)
	req.Empty(h.rec.all())
	req.Equal([]string{"", ""}, h.feed.etags)
}

func TestPoller_UnsubscribeMidPollDiscardsResult(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	h.feed.script(ok("", issue("A")), ok("", issue("B"), issue("A")))

	h.p.Subscribe("c1", "room-1", alice, aliceCred)
	h.step(t, 2*time.Second)

	h.feed.mu.Lock()
	h.feed.onEvents = func() { h.p.Unsubscribe("c1") }
	h.feed.mu.Unlock()

	h.step(t, time.Minute)
	req.Empty(h.rec.all())
	_, scheduled := h.clock.Peek()
	req.False(scheduled)
}

func TestPoller_CommitCountsFromCompare(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	h.anySink()
	h.feed.compare = func(repo, base, head string) (Comparison, error) {
		if head == "bad" {
			return Comparison{}, errors.New("404")
		}
		req.Equal("acme/app", repo)
		req.Equal("b0", base)
		return Comparison{Total: 3, Messages: []string{"fix a\n\nbody", "fix b", "fix c"}}, nil
	}
	push := func(id, head string) FeedItem {
		return FeedItem{ID: id, Type: "PushEvent", Repo: "acme/app", Before: "b0", Head: head}
	}
	h.feed.script(
		ok("", issue("A")),
		ok("", push("P2", "bad"), push("P1", "h1"), issue("A")),
	)

	h.p.Subscribe("c1", "room-1", alice, aliceCred)
	h.step(t, 2*time.Second)
	h.step(t, time.Minute)

	deltas := h.rec.all()
	req.Len(deltas, 1)
	req.Equal(4, deltas[0].Counts[domain.KindCommit])
	req.Len(deltas[0].Items, 2)
	req.Equal("fix a; fix b; fix c", deltas[0].Items[0].Detail)
	req.Equal(1, deltas[0].Items[1].Count)
	req.Equal(placeholderCommitMessage, deltas[0].Items[1].Detail)
}

func TestPoller_MalformedItemSkipped(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	h.anySink()
	broken := issue("Y")
	broken.ParseErr = errors.New("unexpected end of JSON input")
	h.feed.script(
		ok("", issue("A")),
		ok("", issue("Z"), broken, issue("X"), issue("A")),
	)

	h.p.Subscribe("c1", "room-1", alice, aliceCred)
	h.step(t, 2*time.Second)
	h.step(t, time.Minute)

	deltas := h.rec.all()
	req.Len(deltas, 1)
	req.Equal(2, deltas[0].Counts[domain.KindIssueOpened])
}

func TestPoller_SinkFailureDoesNotAbortBatch(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	h.sink.EXPECT().IncrementActivity(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("db closed")).AnyTimes()
	h.sink.EXPECT().AddPointEvent(gomock.Any(), gomock.Any()).Return(errors.New("db closed")).Times(2)
	h.feed.script(
		ok("", issue("A")),
		ok("", issue("C"), issue("B"), issue("A")),
	)

	h.p.Subscribe("c1", "room-1", alice, aliceCred)
	h.step(t, 2*time.Second)
	h.step(t, time.Minute)

	req.Len(h.rec.all(), 1)
	d, _ := h.clock.Peek()
	req.Equal(time.Minute, d)
}

func TestDiffItems(t *testing.T) {
	ids := func(items []FeedItem) []string {
		out := make([]string, 0, len(items))
		for _, it := range items {
			out = append(out, it.ID)
		}
		return out
	}
	items := []FeedItem{{ID: "X"}, {ID: "A"}, {ID: "B"}}

	fresh, next, baseline := diffItems("", items)
	require.True(t, baseline)
	require.Empty(t, fresh)
	require.Equal(t, "X", next)

	fresh, next, baseline = diffItems("A", items)
	require.False(t, baseline)
	require.Equal(t, []string{"X"}, ids(fresh))
	require.Equal(t, "X", next)

	fresh, next, _ = diffItems("X", items)
	require.Empty(t, fresh)
	require.Equal(t, "X", next)

	fresh, next, _ = diffItems("A", nil)
	require.Empty(t, fresh)
	require.Equal(t, "A", next)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		item FeedItem
		kind domain.ActivityKind
		ok   bool
	}{
		{FeedItem{Type: "PushEvent"}, domain.KindCommit, true},
		{FeedItem{Type: "PullRequestEvent", Action: "opened"}, domain.KindReviewOpened, true},
		{FeedItem{Type: "PullRequestEvent", Action: "closed", Merged: true}, domain.KindReviewMerged, true},
		{FeedItem{Type: "PullRequestEvent", Action: "closed"}, "", false},
		{FeedItem{Type: "IssuesEvent", Action: "opened"}, domain.KindIssueOpened, true},
		{FeedItem{Type: "IssuesEvent", Action: "closed"}, "", false},
		{FeedItem{Type: "PullRequestReviewEvent", Action: "created", ReviewState: "APPROVED"}, domain.KindReviewApproved, true},
		{FeedItem{Type: "PullRequestReviewEvent", ReviewState: "commented"}, "", false},
		{FeedItem{Type: "WatchEvent"}, "", false},
	}
	for _, tt := range tests {
		kind, ok := classify(tt.item)
		require.Equal(t, tt.ok, ok, tt.item.Type)
		require.Equal(t, tt.kind, kind, tt.item.Type)
	}
}
