// Package daemon runs the monitoring process: scheduled scans, the periodic
// takedown rechecker, and the review HTTP API, with single-instance
// enforcement via a file lock.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"imagewatch/internal/alerts"
	"imagewatch/internal/auditlog"
	"imagewatch/internal/config"
	"imagewatch/internal/discovery"
	"imagewatch/internal/fingerprint"
	"imagewatch/internal/imagefetch"
	"imagewatch/internal/logging"
	"imagewatch/internal/notify"
	"imagewatch/internal/recheck"
	"imagewatch/internal/scan"
)

// Daemon owns the long-running services and the shared state handles.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger

	store     *alerts.Store
	audit     *auditlog.Log
	pipeline  *scan.Pipeline
	rechecker *recheck.Runner
	notifier  notify.Service
	refCount  int

	lockPath string
	lock     *flock.Flock

	api *apiServer

	running  atomic.Bool
	scanning atomic.Bool
	cancel   context.CancelFunc
}

// Status reports daemon runtime information.
type Status struct {
	Running        bool   `json:"running"`
	PID            int    `json:"pid"`
	LockFilePath   string `json:"lock_file"`
	ReferenceCount int    `json:"reference_count"`
	SiteCount      int    `json:"site_count"`
	MatchCount     int    `json:"match_count"`
}

// New wires the full pipeline from configuration: reference database, alert
// store, audit log, discovery, matcher, notifier, scan pipeline, and
// rechecker.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires a config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	db, err := fingerprint.LoadDB(cfg.Paths.HashDB)
	if err != nil {
		return nil, fmt.Errorf("load reference database: %w", err)
	}

	audit := auditlog.New(cfg.Paths.AuditLog)
	store := alerts.NewStore(cfg.Paths.AlertsState, audit, logger)
	notifier := notify.NewService(cfg.Notify, logger)

	var verifier fingerprint.Verifier
	if cfg.Match.UseSSIM {
		verifier = &fingerprint.SSIMVerifier{}
	}
	matcher := fingerprint.NewMatcher(db, cfg.Match.Threshold, cfg.Match.UseSSIM, cfg.Match.SSIMMinScore, verifier)

	searchTimeout := time.Duration(cfg.Search.RequestTimeout) * time.Second
	var provider discovery.Provider
	if cfg.Google.Enabled && cfg.Google.APIKey != "" {
		provider, err = discovery.NewGoogleClient(cfg.Google.APIKey, cfg.Google.CSEID, searchTimeout)
		if err != nil {
			return nil, fmt.Errorf("configure search provider: %w", err)
		}
	}

	pipeline := scan.New(scan.Options{
		Terms:           cfg.Search.Terms,
		ImagesPerTerm:   cfg.Search.ImageCountPerTerm,
		WebPagesPerTerm: cfg.Search.WebCountPerTerm,
		ExcludedDomains: cfg.Search.ExcludedDomains,
		SeenCachePath:   cfg.Paths.SeenCache,
		DownloadDir:     cfg.Paths.DownloadDir,
		Provider:        provider,
		Extractor:       discovery.NewExtractor(searchTimeout),
		Fetcher:         imagefetch.NewFetcher(searchTimeout),
		Matcher:         matcher,
		Store:           store,
		Audit:           audit,
		Notifier:        notifier,
		Logger:          logger,
	})

	rechecker := recheck.NewRunner(recheck.Options{
		Store:        store,
		Checker:      recheck.NewChecker(time.Duration(cfg.Recheck.TimeoutSeconds) * time.Second),
		Logger:       logger,
		Workers:      cfg.Recheck.Workers,
		BatchLimit:   cfg.Recheck.BatchLimit,
		Scope:        cfg.Recheck.Scope,
		Interval:     time.Duration(cfg.Recheck.IntervalSeconds) * time.Second,
		InitialDelay: time.Duration(cfg.Recheck.InitialDelaySeconds) * time.Second,
	})

	lockPath := filepath.Join(cfg.Paths.LogDir, "imagewatch.lock")
	return &Daemon{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		store:     store,
		audit:     audit,
		pipeline:  pipeline,
		rechecker: rechecker,
		notifier:  notifier,
		refCount:  len(db),
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}, nil
}

// Start acquires the instance lock and launches the API server, the recheck
// loop, and the scan scheduler. It returns once everything is running.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire instance lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another imagewatch instance holds %s", d.lockPath)
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	api, err := newAPIServer(d.cfg.Paths.APIBind, d, d.logger)
	if err != nil {
		d.releaseLock()
		cancel()
		return err
	}
	d.api = api
	if d.api != nil {
		if err := d.api.start(runCtx); err != nil {
			d.releaseLock()
			cancel()
			return err
		}
	}

	d.rechecker.Start(runCtx)
	go d.scanLoop(runCtx)

	d.running.Store(true)
	d.logger.Info("daemon started",
		logging.Int("references", d.refCount),
		logging.String("lock", d.lockPath))
	return nil
}

// Stop shuts the services down and releases the instance lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
	}
	if d.api != nil {
		d.api.stop()
	}
	d.releaseLock()
	d.running.Store(false)
	d.logger.Info("daemon stopped")
}

func (d *Daemon) releaseLock() {
	if d.lock != nil {
		_ = d.lock.Unlock()
	}
}

// scanLoop runs scheduled scans when an interval is configured.
func (d *Daemon) scanLoop(ctx context.Context) {
	interval := time.Duration(d.cfg.Search.IntervalSeconds) * time.Second
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := d.TriggerScan(ctx); err != nil && !errors.Is(err, errScanInFlight) {
				d.logger.Error("scheduled scan failed", logging.Error(err))
			}
		}
	}
}

var errScanInFlight = errors.New("scan already in progress")

// TriggerScan runs one scan unless one is already in progress.
func (d *Daemon) TriggerScan(ctx context.Context) (*scan.Summary, error) {
	if !d.scanning.CompareAndSwap(false, true) {
		return nil, errScanInFlight
	}
	defer d.scanning.Store(false)
	return d.pipeline.Run(ctx)
}

// RecheckNow synchronously runs one recheck batch and returns the processed
// count.
func (d *Daemon) RecheckNow(ctx context.Context) int {
	return d.rechecker.RunOnce(ctx)
}

// Store exposes the alert store to the API layer.
func (d *Daemon) Store() *alerts.Store {
	return d.store
}

// Status summarizes the daemon's runtime state.
func (d *Daemon) Status() Status {
	refs := d.store.Matches()
	sites := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		sites[ref.SiteKey] = struct{}{}
	}
	return Status{
		Running:        d.running.Load(),
		PID:            os.Getpid(),
		LockFilePath:   d.lockPath,
		ReferenceCount: d.refCount,
		SiteCount:      len(sites),
		MatchCount:     len(refs),
	}
}
