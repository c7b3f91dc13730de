// Package progress keeps the shared progress aggregate every player
// contributes to, and persists it on a debounce timer.
package progress

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Presence/internal/core"
	"github.com/dkeye/Presence/internal/domain"
	"github.com/dkeye/Presence/internal/metrics"
)

var (
	ErrUnknownSource = errors.New("unknown progress source")
	ErrInvalidCount  = errors.New("count must be positive")
)

const (
	TypeProgressUpdate = "progress_update"
	TypeMapSwitch      = "map_switch"
)

const saveTimeout = 5 * time.Second

type Config struct {
	Thresholds      []int
	Debounce        time.Duration
	ActivityWeights map[domain.ActivityKind]int
	SourceWeights   map[domain.ProgressSource]int
}

func DefaultConfig() Config {
	return Config{
		Thresholds: []int{100, 250, 500, 1000},
		Debounce:   time.Second,
		ActivityWeights: map[domain.ActivityKind]int{
			domain.KindCommit:         5,
			domain.KindReviewOpened:   10,
			domain.KindReviewMerged:   20,
			domain.KindIssueOpened:    5,
			domain.KindReviewApproved: 10,
		},
		SourceWeights: map[domain.ProgressSource]int{
			domain.SourceTaskCompleted:  3,
			domain.SourceFocusCompleted: 5,
		},
	}
}

// ProgressUpdate carries the full state after every mutation.
type ProgressUpdate struct {
	Type string `json:"type"`
	domain.ProgressState
}

// StageAdvance is sent once each time the stage index moves forward.
type StageAdvance struct {
	Type       string `json:"type"`
	StageIndex int    `json:"stage_index"`
	Threshold  int    `json:"threshold"`
}

type Tracker struct {
	mu            sync.Mutex
	cfg           Config
	clock         quartz.Clock
	store         core.ProgressStore
	out           core.Broadcaster
	progress      int
	contributions map[string]int
	stage         int
	saveTimer     *quartz.Timer
}

func NewTracker(cfg Config, store core.ProgressStore, out core.Broadcaster, clock quartz.Clock) *Tracker {
	if len(cfg.Thresholds) == 0 {
		cfg.Thresholds = DefaultConfig().Thresholds
	}
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &Tracker{
		cfg:           cfg,
		clock:         clock,
		store:         store,
		out:           out,
		contributions: make(map[string]int),
	}
}

func (t *Tracker) threshold(stage int) int { return t.cfg.Thresholds[stage] }

func (t *Tracker) lastStage() int { return len(t.cfg.Thresholds) - 1 }

// Load restores the persisted aggregate. Anything that fails validation
// leaves the tracker at the zero state.
func (t *Tracker) Load(ctx context.Context) {
	rec, ok, err := t.store.Load(ctx)
	if err != nil {
		log.Error().Err(err).Str("module", "app.progress").Msg("load progress, starting from zero")
		return
	}
	if !ok {
		log.Info().Str("module", "app.progress").Msg("no stored progress, starting from zero")
		return
	}
	contributions, err := domain.ParseContributions(rec.ContributionsJSON)
	if err != nil {
		log.Warn().Err(err).Str("module", "app.progress").Msg("stored contributions invalid, starting from zero")
		return
	}
	if rec.StageIndex < 0 || rec.StageIndex > t.lastStage() || rec.Progress < 0 {
		log.Warn().Str("module", "app.progress").Int("stage", rec.StageIndex).Int("progress", rec.Progress).
			Msg("stored stage out of range, starting from zero")
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.stage = rec.StageIndex
	t.progress = min(rec.Progress, t.threshold(rec.StageIndex))
	t.contributions = contributions
	log.Info().Str("module", "app.progress").Int("stage", t.stage).Int("progress", t.progress).Msg("progress loaded")
}

// ApplyExternalActivity converts per-kind counts to points with the
// configured weights.
func (t *Tracker) ApplyExternalActivity(username string, counts map[domain.ActivityKind]int) domain.ProgressState {
	inc := 0
	for kind, n := range counts {
		if n > 0 {
			inc += n * t.cfg.ActivityWeights[kind]
		}
	}
	return t.apply(username, inc)
}

func (t *Tracker) ApplyFirstPartyProgress(username string, source domain.ProgressSource, count int) (domain.ProgressState, error) {
	weight, ok := t.cfg.SourceWeights[source]
	if !ok {
		return domain.ProgressState{}, fmt.Errorf("%w: %q", ErrUnknownSource, source)
	}
	if count <= 0 {
		return domain.ProgressState{}, ErrInvalidCount
	}
	return t.apply(username, weight*count), nil
}

func (t *Tracker) apply(username string, inc int) domain.ProgressState {
	t.mu.Lock()
	defer t.mu.Unlock()
	if inc <= 0 {
		return t.stateLocked()
	}

	t.contributions[username] += inc
	if t.stage < t.lastStage() {
		t.progress += inc
		if t.progress >= t.threshold(t.stage) {
			t.progress = 0
			t.stage++
			metrics.StageAdvances.Inc()
			log.Info().Str("module", "app.progress").Int("stage", t.stage).Str("by", username).Msg("stage advanced")
			t.out.BroadcastAll(StageAdvance{
				Type:       TypeMapSwitch,
				StageIndex: t.stage,
				Threshold:  t.threshold(t.stage),
			})
		}
	} else {
		t.progress = min(t.progress+inc, t.threshold(t.stage))
	}

	state := t.stateLocked()
	t.out.BroadcastAll(ProgressUpdate{Type: TypeProgressUpdate, ProgressState: state})
	t.scheduleSaveLocked()
	return state
}

func (t *Tracker) scheduleSaveLocked() {
	if t.saveTimer != nil {
		t.saveTimer.Stop()
	}
	t.saveTimer = t.clock.AfterFunc(t.cfg.Debounce, t.save, "progress", "debounce")
}

func (t *Tracker) recordLocked() (domain.ProgressRecord, error) {
	raw, err := domain.EncodeContributions(t.contributions)
	if err != nil {
		return domain.ProgressRecord{}, err
	}
	return domain.ProgressRecord{Progress: t.progress, ContributionsJSON: raw, StageIndex: t.stage}, nil
}

func (t *Tracker) save() {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("module", "app.progress").Interface("panic", r).Msg("save panicked")
		}
	}()
	t.mu.Lock()
	rec, err := t.recordLocked()
	t.mu.Unlock()
	if err != nil {
		log.Error().Err(err).Str("module", "app.progress").Msg("encode progress")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := t.store.Save(ctx, rec); err != nil {
		metrics.ProgressSaves.WithLabelValues("error").Inc()
		log.Error().Err(err).Str("module", "app.progress").Msg("save progress")
		return
	}
	metrics.ProgressSaves.WithLabelValues("ok").Inc()
	log.Debug().Str("module", "app.progress").Int("stage", rec.StageIndex).Int("progress", rec.Progress).Msg("progress saved")
}

// Flush cancels a pending debounce and writes the current state now.
func (t *Tracker) Flush(ctx context.Context) error {
	t.mu.Lock()
	if t.saveTimer != nil {
		t.saveTimer.Stop()
		t.saveTimer = nil
	}
	rec, err := t.recordLocked()
	t.mu.Unlock()
	if err != nil {
		return err
	}
	return t.store.Save(ctx, rec)
}

func (t *Tracker) stateLocked() domain.ProgressState {
	return domain.ProgressState{
		Progress:      t.progress,
		Contributions: maps.Clone(t.contributions),
		StageIndex:    t.stage,
		Threshold:     t.threshold(t.stage),
	}
}

func (t *Tracker) State() domain.ProgressState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stateLocked()
}
