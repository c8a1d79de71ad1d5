package recheck

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"imagewatch/internal/alerts"
	"imagewatch/internal/logging"
)

// Scope selects which matches a batch revisits.
const (
	ScopeAll  = "all"
	ScopeOpen = "open"
)

// URLChecker classifies one URL's liveness.
type URLChecker interface {
	CheckURL(ctx context.Context, url string) alerts.Liveness
}

// Options configures a Runner.
type Options struct {
	Store   *alerts.Store
	Checker URLChecker
	Logger  *slog.Logger

	Workers      int
	BatchLimit   int
	Scope        string
	Interval     time.Duration
	InitialDelay time.Duration
}

// Runner drives periodic recheck batches. A batch that is still running when
// the next tick fires makes that tick a no-op, so the store never has two
// recheck writers.
type Runner struct {
	store   *alerts.Store
	checker URLChecker
	logger  *slog.Logger

	workers      int
	batchLimit   int
	scope        string
	interval     time.Duration
	initialDelay time.Duration

	running atomic.Bool
}

// NewRunner builds a runner; zero option fields get conservative defaults.
// A zero InitialDelay is meaningful and runs the first batch immediately.
func NewRunner(opts Options) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 8
	}
	batchLimit := opts.BatchLimit
	if batchLimit <= 0 {
		batchLimit = 500
	}
	scope := opts.Scope
	if scope != ScopeOpen {
		scope = ScopeAll
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = 10 * time.Minute
	}

	return &Runner{
		store:        opts.Store,
		checker:      opts.Checker,
		logger:       logging.NewComponentLogger(logger, "recheck"),
		workers:      workers,
		batchLimit:   batchLimit,
		scope:        scope,
		interval:     interval,
		initialDelay: opts.InitialDelay,
	}
}

// RunOnce checks one batch of matches concurrently and persists the merged
// results. It returns the number of URLs processed; zero when a batch is
// already in flight.
func (r *Runner) RunOnce(ctx context.Context) int {
	if !r.running.CompareAndSwap(false, true) {
		r.logger.Debug("recheck batch already in flight, skipping")
		return 0
	}
	defer r.running.Store(false)

	targets := r.selectTargets()
	if len(targets) == 0 {
		return 0
	}

	jobs := make(chan alerts.MatchRef)
	var wg sync.WaitGroup
	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for target := range jobs {
				result := r.checker.CheckURL(ctx, target.ImageURL)
				r.store.ApplyLiveness(target.SiteKey, target.ImageURL, result)
			}
		}()
	}

	for _, target := range targets {
		if ctx.Err() != nil {
			break
		}
		jobs <- target
	}
	close(jobs)
	wg.Wait()

	if err := r.store.Save(); err != nil {
		r.logger.Error("persist alert state after recheck", logging.Error(err))
	}

	r.logger.Info("recheck batch complete", logging.Int("processed", len(targets)))
	return len(targets)
}

func (r *Runner) selectTargets() []alerts.MatchRef {
	refs := r.store.Matches()
	targets := make([]alerts.MatchRef, 0, len(refs))
	for _, ref := range refs {
		if len(targets) >= r.batchLimit {
			break
		}
		if r.scope == ScopeOpen && (ref.Status == alerts.StatusClosed || ref.Muted) {
			continue
		}
		targets = append(targets, ref)
	}
	return targets
}

// Start launches the periodic loop: one batch after the initial delay, then
// one per interval until the context is cancelled.
func (r *Runner) Start(ctx context.Context) {
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(r.initialDelay):
		}
		r.RunOnce(ctx)

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.RunOnce(ctx)
			}
		}
	}()
}
