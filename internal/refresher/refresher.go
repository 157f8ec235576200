// Package refresher keeps the market snapshot cache warm on cron schedules.
package refresher

import (
	"context"
	"fmt"
	"time"

	"market-lens/config"
	"market-lens/models"
	"market-lens/observability"
	"market-lens/repository"
	"market-lens/services"

	"github.com/robfig/cron/v3"
)

const (
	JobIndices   = "indices"
	JobWatchlist = "watchlist"
	JobCleanup   = "cleanup"

	cleanupSpec = "@hourly"
	minTTL      = 10 * time.Second
)

// Parser accepts the same specs as config validation: an optional leading
// seconds field plus descriptors such as @hourly
var Parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Refresher writes index and watchlist snapshots into the store cache
type Refresher struct {
	cron      *cron.Cron
	overview  *services.MarketOverview
	store     repository.Store
	watchlist []string
	ctx       context.Context
	cancel    context.CancelFunc
	now       func() time.Time
	ttls      map[string]time.Duration
}

func New(overview *services.MarketOverview, store repository.Store, watchlist []string) *Refresher {
	return &Refresher{
		cron:      cron.New(cron.WithParser(Parser)),
		overview:  overview,
		store:     store,
		watchlist: watchlist,
		ctx:       context.Background(),
		cancel:    func() {},
		now:       time.Now,
		ttls:      map[string]time.Duration{JobIndices: time.Minute, JobWatchlist: time.Minute},
	}
}

// Register schedules the refresh jobs from cfg plus an hourly cache cleanup
func (r *Refresher) Register(cfg config.RefreshConfig) error {
	jobs := []struct {
		name string
		spec string
		run  func(context.Context) error
	}{
		{JobIndices, cfg.IndicesCron, r.RefreshIndices},
		{JobWatchlist, cfg.WatchlistCron, r.RefreshWatchlist},
	}
	for _, job := range jobs {
		sched, err := Parser.Parse(job.spec)
		if err != nil {
			return fmt.Errorf("register %s job: %w", job.name, err)
		}
		r.ttls[job.name] = ttlFor(sched, r.now())
		r.cron.Schedule(sched, r.wrap(job.name, job.run))
	}

	if _, err := r.cron.AddFunc(cleanupSpec, r.wrap(JobCleanup, r.cleanup)); err != nil {
		return fmt.Errorf("register cleanup job: %w", err)
	}
	return nil
}

// ttlFor keeps a snapshot alive for two schedule periods so one missed run
// does not empty the cache
func ttlFor(sched cron.Schedule, now time.Time) time.Duration {
	next := sched.Next(now)
	ttl := 2 * sched.Next(next).Sub(next)
	if ttl < minTTL {
		return minTTL
	}
	return ttl
}

func (r *Refresher) wrap(name string, run func(context.Context) error) cron.FuncJob {
	return func() {
		if err := run(r.ctx); err != nil {
			observability.Error("snapshot refresh failed", "job", name, "error", err)
		}
	}
}

// Start fills the cache once, then runs the schedule until Stop or ctx ends
func (r *Refresher) Start(ctx context.Context) {
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.RunNow(r.ctx)
	r.cron.Start()
	observability.Info("refresher started", "jobs", len(r.cron.Entries()))
}

// Stop halts the schedule and waits for running jobs
func (r *Refresher) Stop() {
	<-r.cron.Stop().Done()
	r.cancel()
	observability.Info("refresher stopped")
}

// RunNow refreshes both snapshots immediately
func (r *Refresher) RunNow(ctx context.Context) {
	if err := r.RefreshIndices(ctx); err != nil {
		observability.Warn("initial snapshot refresh failed", "job", JobIndices, "error", err)
	}
	if err := r.RefreshWatchlist(ctx); err != nil {
		observability.Warn("initial snapshot refresh failed", "job", JobWatchlist, "error", err)
	}
}

// RefreshIndices caches the index strip
func (r *Refresher) RefreshIndices(ctx context.Context) error {
	snap := models.MarketSnapshot{Indices: r.overview.Indices(), UpdatedAt: r.now()}
	return r.save(ctx, JobIndices, repository.CacheKeyIndices, snap)
}

// RefreshWatchlist quotes every watchlist symbol and caches the rows
func (r *Refresher) RefreshWatchlist(ctx context.Context) error {
	snap := models.MarketSnapshot{Watchlist: r.overview.Watchlist(ctx, r.watchlist), UpdatedAt: r.now()}
	return r.save(ctx, JobWatchlist, repository.CacheKeyWatchlist, snap)
}

func (r *Refresher) save(ctx context.Context, job, key string, snap models.MarketSnapshot) error {
	if err := r.store.SetCachedSnapshot(ctx, key, snap, r.ttls[job]); err != nil {
		return fmt.Errorf("cache %s snapshot: %w", job, err)
	}
	observability.GetMetrics().RecordSnapshotRefresh(job)
	observability.Debug("snapshot refreshed", "job", job, "indices", len(snap.Indices), "watchlist", len(snap.Watchlist))
	return nil
}

func (r *Refresher) cleanup(ctx context.Context) error {
	n, err := r.store.CleanExpiredCache(ctx)
	if err != nil {
		return fmt.Errorf("clean expired snapshots: %w", err)
	}
	observability.GetMetrics().RecordSnapshotRefresh(JobCleanup)
	if n > 0 {
		observability.Info("expired snapshots removed", "count", n)
	}
	return nil
}

// TTL returns the cache lifetime used for job
func (r *Refresher) TTL(job string) time.Duration {
	return r.ttls[job]
}
