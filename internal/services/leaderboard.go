package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"paperpayout-client/internal/logger"
	"paperpayout-client/internal/models"
)

type BoardBackend interface {
	Stats(ctx context.Context) (*models.GlobalStats, error)
	Leaderboard(ctx context.Context, period models.Period) ([]models.LeaderboardEntry, error)
}

// LeaderboardPoller keeps the leaderboard for the selected period and the
// global stats. Neither depends on the session. Failed fetches keep whatever
// was there before.
type LeaderboardPoller struct {
	backend BoardBackend
	feed    Broadcaster
	log     *zap.Logger

	mu      sync.RWMutex
	period  models.Period
	entries []models.LeaderboardEntry
	stats   models.GlobalStats
}

func NewLeaderboardPoller(backend BoardBackend, feed Broadcaster, log *zap.Logger) *LeaderboardPoller {
	return &LeaderboardPoller{
		backend: backend,
		feed:    feed,
		log:     logger.OrNop(log).Named("leaderboard"),
		period:  models.PeriodAll,
		entries: []models.LeaderboardEntry{},
	}
}

// SetPeriod switches the period. A change discards the old sequence and
// reloads stats alongside the new leaderboard.
func (p *LeaderboardPoller) SetPeriod(ctx context.Context, period models.Period) error {
	if !period.Valid() {
		return &Error{Kind: KindValidation, Op: "leaderboard.period", Message: "invalid period: " + string(period)}
	}

	p.mu.Lock()
	changed := p.period != period
	if changed {
		p.period = period
		p.entries = []models.LeaderboardEntry{}
	}
	p.mu.Unlock()

	if !changed {
		return p.RefreshLeaderboard(ctx, period)
	}

	p.notify(SliceLeaderboard)
	var g errgroup.Group
	g.Go(func() error { return p.RefreshStats(ctx) })
	g.Go(func() error { return p.RefreshLeaderboard(ctx, period) })
	return g.Wait()
}

// RefreshLeaderboard fetches period and applies it only if period is still
// the selected one when the response lands.
func (p *LeaderboardPoller) RefreshLeaderboard(ctx context.Context, period models.Period) error {
	if !period.Valid() {
		return &Error{Kind: KindValidation, Op: "leaderboard.refresh", Message: "invalid period: " + string(period)}
	}

	entries, err := p.backend.Leaderboard(ctx, period)
	if err != nil {
		p.log.Debug("leaderboard refresh failed, keeping previous", zap.String("period", string(period)), zap.Error(err))
		return err
	}
	if entries == nil {
		entries = []models.LeaderboardEntry{}
	}

	p.mu.Lock()
	if p.period != period {
		current := p.period
		p.mu.Unlock()
		p.log.Debug("discarding leaderboard for stale period",
			zap.String("period", string(period)), zap.String("current", string(current)))
		return nil
	}
	p.entries = entries
	p.mu.Unlock()

	p.notify(SliceLeaderboard)
	return nil
}

func (p *LeaderboardPoller) RefreshStats(ctx context.Context) error {
	stats, err := p.backend.Stats(ctx)
	if err != nil {
		p.log.Debug("stats refresh failed, keeping previous", zap.Error(err))
		return err
	}

	p.mu.Lock()
	p.stats = *stats
	p.mu.Unlock()

	p.notify(SliceStats)
	return nil
}

// Tick refreshes stats and the current leaderboard concurrently. One failing
// does not stop the other.
func (p *LeaderboardPoller) Tick(ctx context.Context) error {
	period := p.Period()

	var g errgroup.Group
	g.Go(func() error { return p.RefreshStats(ctx) })
	g.Go(func() error { return p.RefreshLeaderboard(ctx, period) })
	return g.Wait()
}

// Run ticks every interval until ctx is done.
func (p *LeaderboardPoller) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = p.Tick(ctx)
		}
	}
}

func (p *LeaderboardPoller) Period() models.Period {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.period
}

func (p *LeaderboardPoller) Entries() []models.LeaderboardEntry {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]models.LeaderboardEntry{}, p.entries...)
}

// Top returns at most n leading entries.
func (p *LeaderboardPoller) Top(n int) []models.LeaderboardEntry {
	entries := p.Entries()
	if n >= 0 && len(entries) > n {
		entries = entries[:n]
	}
	return entries
}

func (p *LeaderboardPoller) Stats() models.GlobalStats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stats
}

func (p *LeaderboardPoller) notify(slice Slice) {
	if p.feed != nil {
		p.feed.BroadcastChange(slice)
	}
}
