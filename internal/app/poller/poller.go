// Package poller runs one conditional-request loop per subscribed user
// against the external activity feed and reports new activity.
package poller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Presence/internal/core"
	"github.com/dkeye/Presence/internal/domain"
	"github.com/dkeye/Presence/internal/metrics"
)

type Config struct {
	Interval       time.Duration
	Backoff        time.Duration
	InitialDelay   time.Duration
	RequestTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Interval:       time.Minute,
		Backoff:        10 * time.Minute,
		InitialDelay:   2 * time.Second,
		RequestTimeout: 15 * time.Second,
	}
}

type subscription struct {
	user        domain.User
	roomID      domain.RoomID
	cred        domain.Credential
	etag        string
	marker      string
	subscribers map[core.SessionID]struct{}
	timer       *quartz.Timer
	stopped     bool
}

// Poller owns the subscription table. Subscriptions are keyed by user so
// that several connections of one user share a single outbound loop.
type Poller struct {
	mu       sync.Mutex
	cfg      Config
	clock    quartz.Clock
	feed     Feed
	sink     core.ActivitySink
	handler  func(domain.ActivityDelta)
	subs     map[domain.UserID]*subscription
	owners   map[core.SessionID]domain.UserID
	baseCtx  context.Context
	cancel   context.CancelFunc
	closed   bool
	inflight sync.WaitGroup
}

func New(cfg Config, feed Feed, sink core.ActivitySink, clock quartz.Clock) *Poller {
	if clock == nil {
		clock = quartz.NewReal()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Poller{
		cfg:     cfg,
		clock:   clock,
		feed:    feed,
		sink:    sink,
		subs:    make(map[domain.UserID]*subscription),
		owners:  make(map[core.SessionID]domain.UserID),
		baseCtx: ctx,
		cancel:  cancel,
	}
}

// OnActivity sets the callback receiving one aggregated delta per poll
// that found new activity.
func (p *Poller) OnActivity(fn func(domain.ActivityDelta)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handler = fn
}

func (p *Poller) logger(userID domain.UserID) zerolog.Logger {
	return log.With().Str("module", "app.poller").Str("user", string(userID)).Logger()
}

// Subscribe attaches sid to the user's subscription, creating it and
// scheduling its first poll when none exists.
func (p *Poller) Subscribe(sid core.SessionID, roomID domain.RoomID, user domain.User, cred domain.Credential) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if owner, ok := p.owners[sid]; ok && owner != user.ID {
		p.detachLocked(sid)
	}
	logger := p.logger(user.ID)

	if sub, ok := p.subs[user.ID]; ok {
		sub.subscribers[sid] = struct{}{}
		sub.roomID = roomID
		p.owners[sid] = user.ID
		if cred.Valid() && cred.Token != sub.cred.Token {
			sub.cred = cred
			if sub.stopped {
				// A fresh credential revives a loop stopped by a 401.
				sub.stopped = false
				sub.etag, sub.marker = "", ""
				p.scheduleLocked(sub, p.cfg.InitialDelay)
				logger.Info().Msg("credential replaced, polling resumed")
			} else {
				logger.Info().Msg("credential replaced")
			}
		}
		logger.Debug().Str("sid", string(sid)).Int("subscribers", len(sub.subscribers)).Msg("attached to subscription")
		return
	}

	sub := &subscription{
		user:        user,
		roomID:      roomID,
		cred:        cred,
		subscribers: map[core.SessionID]struct{}{sid: {}},
	}
	p.subs[user.ID] = sub
	p.owners[sid] = user.ID
	p.scheduleLocked(sub, p.cfg.InitialDelay)
	metrics.Subscriptions.Set(float64(len(p.subs)))
	logger.Info().Str("sid", string(sid)).Str("login", cred.Login).Msg("subscription created")
}

// Unsubscribe detaches sid. The subscription, its marker and its ETag are
// dropped with the last subscriber.
func (p *Poller) Unsubscribe(sid core.SessionID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.detachLocked(sid)
}

func (p *Poller) detachLocked(sid core.SessionID) {
	userID, ok := p.owners[sid]
	if !ok {
		return
	}
	delete(p.owners, sid)
	sub, ok := p.subs[userID]
	if !ok {
		return
	}
	delete(sub.subscribers, sid)
	if len(sub.subscribers) > 0 {
		return
	}
	if sub.timer != nil {
		sub.timer.Stop()
		sub.timer = nil
	}
	delete(p.subs, userID)
	metrics.Subscriptions.Set(float64(len(p.subs)))
	logger := p.logger(userID)
	logger.Info().Msg("subscription removed")
}

// Subscribers reports the connections attached to a user's subscription.
func (p *Poller) Subscribers(userID domain.UserID) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if sub, ok := p.subs[userID]; ok {
		return len(sub.subscribers)
	}
	return 0
}

// Active reports whether the user's loop is still scheduled to run.
func (p *Poller) Active(userID domain.UserID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	sub, ok := p.subs[userID]
	return ok && !sub.stopped
}

func (p *Poller) scheduleLocked(sub *subscription, d time.Duration) {
	if sub.timer != nil {
		sub.timer.Stop()
		sub.timer = nil
	}
	if p.closed {
		return
	}
	sub.timer = p.clock.AfterFunc(d, func() { p.poll(sub) }, "poller", "poll")
}

func (p *Poller) currentLocked(sub *subscription) bool {
	return p.subs[sub.user.ID] == sub && !sub.stopped
}

func (p *Poller) reschedule(sub *subscription, d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.currentLocked(sub) {
		return
	}
	p.scheduleLocked(sub, d)
}

func (p *Poller) poll(sub *subscription) {
	p.mu.Lock()
	if p.closed || !p.currentLocked(sub) {
		p.mu.Unlock()
		return
	}
	// Added under mu so that Close never waits on a counter still growing.
	p.inflight.Add(1)
	defer p.inflight.Done()
	sub.timer = nil
	cred, etag := sub.cred, sub.etag
	p.mu.Unlock()

	logger := p.logger(sub.user.ID)
	next := p.cfg.Interval
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("poll panicked")
			next = p.cfg.Interval
		}
		p.reschedule(sub, next)
	}()

	ctx, cancel := context.WithTimeout(p.baseCtx, p.cfg.RequestTimeout)
	page, err := p.feed.Events(ctx, cred, etag)
	cancel()
	metrics.PollOutcomes.WithLabelValues(page.Outcome.String()).Inc()

	switch page.Outcome {
	case OutcomeUnauthorized:
		p.mu.Lock()
		if p.subs[sub.user.ID] == sub {
			sub.stopped = true
		}
		p.mu.Unlock()
		logger.Warn().Err(err).Msg("feed credential rejected, polling stopped")
		return
	case OutcomeRateLimited:
		logger.Warn().Err(err).Dur("backoff", p.cfg.Backoff).Msg("feed rate limited")
		next = p.cfg.Backoff
		return
	case OutcomeNotModified:
		logger.Debug().Msg("feed not modified")
		return
	case OutcomeTransient:
		logger.Warn().Err(err).Msg("feed request failed")
		return
	}

	p.mu.Lock()
	if !p.currentLocked(sub) {
		p.mu.Unlock()
		return
	}
	if page.ETag != "" {
		sub.etag = page.ETag
	}
	fresh, marker, baseline := diffItems(sub.marker, page.Items)
	sub.marker = marker
	p.mu.Unlock()

	if baseline {
		logger.Info().Str("marker", marker).Int("items", len(page.Items)).Msg("baseline recorded")
		return
	}
	if len(fresh) == 0 {
		return
	}
	p.process(sub, cred, fresh, logger)
}

// process classifies the new items, resolves push sizes and hands the
// result to the sink and the activity callback.
func (p *Poller) process(sub *subscription, cred domain.Credential, fresh []FeedItem, logger zerolog.Logger) {
	counts := make(map[domain.ActivityKind]int)
	items := make([]domain.ActivityItem, 0, len(fresh))

	// Oldest first, so that emitted items read chronologically.
	for i := len(fresh) - 1; i >= 0; i-- {
		it := fresh[i]
		if it.ParseErr != nil {
			logger.Warn().Err(it.ParseErr).Str("item", it.ID).Msg("skip malformed feed item")
			continue
		}
		kind, ok := classify(it)
		if !ok {
			continue
		}
		ai := domain.ActivityItem{Kind: kind, Count: 1, Repo: it.Repo, Detail: it.Title, OccurredAt: it.CreatedAt}
		if kind == domain.KindCommit {
			ai.Count, ai.Detail = p.resolvePush(cred, it, logger)
		}
		counts[kind] += ai.Count
		items = append(items, ai)
	}
	p.mu.Lock()
	if !p.currentLocked(sub) {
		p.mu.Unlock()
		logger.Debug().Msg("subscription gone, discarding poll result")
		return
	}
	delta := domain.ActivityDelta{
		UserID:   sub.user.ID,
		Username: sub.user.Username,
		RoomID:   sub.roomID,
		Counts:   counts,
		Items:    items,
	}
	handler := p.handler
	p.mu.Unlock()
	if delta.Empty() {
		return
	}

	p.record(delta, logger)
	logger.Info().Int("items", len(items)).Msg("new activity")
	if handler != nil {
		handler(delta)
	}
}

func (p *Poller) resolvePush(cred domain.Credential, it FeedItem, logger zerolog.Logger) (int, string) {
	ctx, cancel := context.WithTimeout(p.baseCtx, p.cfg.RequestTimeout)
	defer cancel()
	cmp, err := p.feed.Compare(ctx, cred, it.Repo, it.Before, it.Head)
	if err != nil || cmp.Total <= 0 {
		logger.Warn().Err(err).Str("repo", it.Repo).Str("item", it.ID).Msg("compare lookup failed, counting one commit")
		return 1, placeholderCommitMessage
	}
	return cmp.Total, summarizeCommits(cmp.Messages)
}

func (p *Poller) record(delta domain.ActivityDelta, logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(p.baseCtx, p.cfg.RequestTimeout)
	defer cancel()
	for _, kind := range domain.ActivityKinds {
		n := delta.Counts[kind]
		if n == 0 {
			continue
		}
		if err := p.sink.IncrementActivity(ctx, delta.UserID, kind, n); err != nil {
			logger.Error().Err(err).Str("kind", string(kind)).Msg("increment activity")
		}
	}
	for _, it := range delta.Items {
		ev := domain.PointEvent{
			UserID:     delta.UserID,
			Kind:       it.Kind,
			Count:      it.Count,
			Source:     fmt.Sprintf("github:%s", it.Repo),
			Detail:     it.Detail,
			OccurredAt: it.OccurredAt,
		}
		if err := p.sink.AddPointEvent(ctx, ev); err != nil {
			logger.Error().Err(err).Str("kind", string(it.Kind)).Msg("add point event")
		}
	}
}

// Close stops every loop and cancels requests in flight.
func (p *Poller) Close() {
	p.mu.Lock()
	p.closed = true
	p.cancel()
	for _, sub := range p.subs {
		if sub.timer != nil {
			sub.timer.Stop()
			sub.timer = nil
		}
	}
	p.mu.Unlock()
	p.inflight.Wait()
}
