package progress

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

type captureBroadcaster struct {
	mu   sync.Mutex
	msgs []any
}

func (c *captureBroadcaster) BroadcastAll(v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, v)
}

func (c *captureBroadcaster) stageAdvances() []StageAdvance {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []StageAdvance
	for _, m := range c.msgs {
		if sa, ok := m.(StageAdvance); ok {
			out = append(out, sa)
		}
	}
	return out
}

func (c *captureBroadcaster) updates() []ProgressUpdate {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []ProgressUpdate
	for _, m := range c.msgs {
		if pu, ok := m.(ProgressUpdate); ok {
			out = append(out, pu)
		}
	}
	return out
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Thresholds = []int{10, 20, 30}
	return cfg
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func newTestTracker(t *testing.T) (*Tracker, *mocks.MockProgressStore, *captureBroadcaster, *quartz.Mock) {
	t.Helper()
	ctrl := gomock.NewController(t)
	store := mocks.NewMockProgressStore(ctrl)
	out := &captureBroadcaster{}
	mClock := quartz.NewMock(t)
	return NewTracker(testConfig(), store, out, mClock), store, out, mClock
}

func TestTracker_StageAdvance(t *testing.T) {
	req := require.New(t)
	tr, _, out, _ := newTestTracker(t)

	state, err := tr.ApplyFirstPartyProgress("alice", domain.SourceFocusCompleted, 1)
	req.NoError(err)
	req.Equal(5, state.Progress)
	req.Equal(0, state.StageIndex)
	req.Empty(out.stageAdvances())

	state, err = tr.ApplyFirstPartyProgress("bob", domain.SourceFocusCompleted, 2)
	req.NoError(err)
	req.Equal(0, state.Progress)
	req.Equal(1, state.StageIndex)
	req.Equal(20, state.Threshold)
	req.Equal(map[string]int{"alice": 5, "bob": 10}, state.Contributions)

	advances := out.stageAdvances()
	req.Len(advances, 1)
	req.Equal(StageAdvance{Type: TypeMapSwitch, StageIndex: 1, Threshold: 20}, advances[0])
	req.Len(out.updates(), 2)
}

func TestTracker_FinalStageSaturates(t *testing.T) {
	req := require.New(t)
	tr, _, out, _ := newTestTracker(t)

	// 10 + 20 points move the aggregate to the final stage.
	tr.ApplyExternalActivity("alice", map[domain.ActivityKind]int{domain.KindReviewOpened: 1})
	tr.ApplyExternalActivity("alice", map[domain.ActivityKind]int{domain.KindReviewMerged: 1})
	req.Equal(2, tr.State().StageIndex)

	state := tr.ApplyExternalActivity("bob", map[domain.ActivityKind]int{domain.KindCommit: 100})
	req.Equal(2, state.StageIndex)
	req.Equal(30, state.Progress)
	req.Equal(500, state.Contributions["bob"])
	req.Len(out.stageAdvances(), 2)

	state = tr.ApplyExternalActivity("bob", map[domain.ActivityKind]int{domain.KindCommit: 1})
	req.Equal(30, state.Progress)
	req.Equal(2, state.StageIndex)
}

func TestTracker_ExternalActivityWeights(t *testing.T) {
	tr, _, _, _ := newTestTracker(t)
	state := tr.ApplyExternalActivity("alice", map[domain.ActivityKind]int{
		domain.KindCommit:      1,
		domain.KindIssueOpened: 0,
	})
	require.Equal(t, 5, state.Progress)
	require.Equal(t, 5, state.Contributions["alice"])
}

func TestTracker_FirstPartyValidation(t *testing.T) {
	req := require.New(t)
	tr, _, out, _ := newTestTracker(t)

	_, err := tr.ApplyFirstPartyProgress("alice", "meditation", 1)
	req.ErrorIs(err, ErrUnknownSource)

	_, err = tr.ApplyFirstPartyProgress("alice", domain.SourceTaskCompleted, 0)
	req.ErrorIs(err, ErrInvalidCount)
	req.Empty(out.updates())
}

func TestTracker_DebouncedSave(t *testing.T) {
	req := require.New(t)
	ctx := testCtx(t)
	tr, store, _, mClock := newTestTracker(t)

	store.EXPECT().Save(gomock.Any(), domain.ProgressRecord{
		Progress:          9,
		ContributionsJSON: `{"alice":6,"bob":3}`,
		StageIndex:        0,
	}).Return(nil).Times(1)

	_, err := tr.ApplyFirstPartyProgress("alice", domain.SourceTaskCompleted, 1)
	req.NoError(err)
	mClock.Advance(500 * time.Millisecond).MustWait(ctx)
	_, err = tr.ApplyFirstPartyProgress("bob", domain.SourceTaskCompleted, 1)
	req.NoError(err)
	_, err = tr.ApplyFirstPartyProgress("alice", domain.SourceTaskCompleted, 1)
	req.NoError(err)

	d, ok := mClock.Peek()
	req.True(ok)
	req.Equal(time.Second, d)
	mClock.Advance(time.Second).MustWait(ctx)

	_, ok = mClock.Peek()
	req.False(ok)
}

func TestTracker_SaveFailureIsRetriedOnNextMutation(t *testing.T) {
	req := require.New(t)
	ctx := testCtx(t)
	tr, store, _, mClock := newTestTracker(t)

	gomock.InOrder(
		store.EXPECT().Save(gomock.Any(), gomock.Any()).Return(errors.New("disk full")),
		store.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil),
	)

	tr.ApplyExternalActivity("alice", map[domain.ActivityKind]int{domain.KindCommit: 1})
	mClock.Advance(time.Second).MustWait(ctx)
	req.Equal(5, tr.State().Progress)

	tr.ApplyExternalActivity("alice", map[domain.ActivityKind]int{domain.KindCommit: 1})
	mClock.Advance(time.Second).MustWait(ctx)
	req.Equal(10, tr.State().Contributions["alice"])
}

func TestTracker_Load(t *testing.T) {
	tests := []struct {
		name    string
		rec     domain.ProgressRecord
		found   bool
		err     error
		want    domain.ProgressState
		restore bool
	}{
		{
			name:    "valid record",
			rec:     domain.ProgressRecord{Progress: 7, ContributionsJSON: `{"alice":27}`, StageIndex: 1},
			found:   true,
			restore: true,
			want:    domain.ProgressState{Progress: 7, Contributions: map[string]int{"alice": 27}, StageIndex: 1, Threshold: 20},
		},
		{
			name:  "nested contributions",
			rec:   domain.ProgressRecord{Progress: 7, ContributionsJSON: `{"alice":{"points":27}}`, StageIndex: 1},
			found: true,
		},
		{
			name:  "fractional contributions",
			rec:   domain.ProgressRecord{Progress: 7, ContributionsJSON: `{"alice":2.5}`, StageIndex: 1},
			found: true,
		},
		{
			name:  "array contributions",
			rec:   domain.ProgressRecord{Progress: 7, ContributionsJSON: `[1,2]`, StageIndex: 1},
			found: true,
		},
		{
			name:  "stage out of range",
			rec:   domain.ProgressRecord{Progress: 7, ContributionsJSON: `{"alice":27}`, StageIndex: 3},
			found: true,
		},
		{
			name:  "negative stage",
			rec:   domain.ProgressRecord{Progress: 7, ContributionsJSON: `{}`, StageIndex: -1},
			found: true,
		},
		{
			name: "nothing stored",
		},
		{
			name: "store error",
			err:  errors.New("boom"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			tr, store, _, _ := newTestTracker(t)
			store.EXPECT().Load(gomock.Any()).Return(tt.rec, tt.found, tt.err)

			tr.Load(context.Background())

			want := tt.want
			if !tt.restore {
				want = domain.ProgressState{Progress: 0, Contributions: map[string]int{}, StageIndex: 0, Threshold: 10}
			}
			req.Equal(want, tr.State())
		})
	}
}

func TestTracker_Flush(t *testing.T) {
	req := require.New(t)
	tr, store, _, mClock := newTestTracker(t)

	store.EXPECT().Save(gomock.Any(), domain.ProgressRecord{
		Progress:          5,
		ContributionsJSON: `{"alice":5}`,
	}).Return(nil).Times(1)

	tr.ApplyExternalActivity("alice", map[domain.ActivityKind]int{domain.KindCommit: 1})
	req.NoError(tr.Flush(context.Background()))

	_, ok := mClock.Peek()
	req.False(ok)
}
