// Package scan orchestrates one monitoring run: candidate discovery,
// download, fingerprint matching, alert-state upserts, and the per-site
// notification batches.
package scan

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"imagewatch/internal/alerts"
	"imagewatch/internal/auditlog"
	"imagewatch/internal/discovery"
	"imagewatch/internal/fingerprint"
	"imagewatch/internal/imagefetch"
	"imagewatch/internal/logging"
	"imagewatch/internal/notify"
	"imagewatch/internal/seencache"
	"imagewatch/internal/textutil"
)

// ImageFetcher downloads one candidate image.
type ImageFetcher interface {
	Fetch(ctx context.Context, url, referer string) (*imagefetch.Result, error)
}

// PageExtractor scrapes the image URLs out of a result page.
type PageExtractor interface {
	ExtractImages(ctx context.Context, pageURL string) ([]string, error)
}

// Options wires a pipeline. Provider may be nil when no search engine is
// configured; Extractor is only consulted when WebPagesPerTerm is positive.
type Options struct {
	Terms           []string
	ImagesPerTerm   int
	WebPagesPerTerm int
	ExcludedDomains []string

	SeenCachePath string
	DownloadDir   string

	Provider  discovery.Provider
	Extractor PageExtractor
	Fetcher   ImageFetcher
	Matcher   *fingerprint.Matcher
	Store     *alerts.Store
	Audit     *auditlog.Log
	Notifier  notify.Service
	Logger    *slog.Logger

	Now func() time.Time
}

// Summary reports what one run did.
type Summary struct {
	RunID      string
	Candidates int
	Fetched    int
	Matches    int
	Notified   int
}

// Pipeline executes monitoring runs. One run at a time; the daemon's
// scheduler is responsible for not overlapping runs.
type Pipeline struct {
	opts     Options
	excluded []string
	logger   *slog.Logger
	now      func() time.Time
}

// New builds a pipeline from wired collaborators.
func New(opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	excluded := make([]string, 0, len(opts.ExcludedDomains))
	for _, domain := range opts.ExcludedDomains {
		domain = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(domain, "*.")))
		if domain != "" {
			excluded = append(excluded, domain)
		}
	}

	return &Pipeline{
		opts:     opts,
		excluded: excluded,
		logger:   logging.NewComponentLogger(logger, "scan"),
		now:      now,
	}
}

// Run executes one full scan. Per-candidate failures are logged and skipped;
// only state persistence failures abort the run. State is persisted before
// any notification is attempted.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	summary := &Summary{RunID: uuid.NewString()}
	logger := p.logger.With(logging.String(logging.FieldRunID, summary.RunID))
	logger.Info("scan started", logging.Int("terms", len(p.opts.Terms)))

	seen, err := seencache.Load(p.opts.SeenCachePath)
	if err != nil {
		return nil, fmt.Errorf("load seen cache: %w", err)
	}

	now := p.now()
	batches := make(map[string][]notify.Match)

	for _, term := range p.opts.Terms {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p.scanTerm(ctx, logger, term, now, seen, summary, batches)
	}

	if err := seen.Save(); err != nil {
		return nil, fmt.Errorf("persist seen cache: %w", err)
	}
	if err := p.opts.Store.Save(); err != nil {
		return nil, fmt.Errorf("persist alert state: %w", err)
	}

	siteKeys := make([]string, 0, len(batches))
	for siteKey := range batches {
		siteKeys = append(siteKeys, siteKey)
	}
	sort.Strings(siteKeys)
	for _, siteKey := range siteKeys {
		if err := p.opts.Notifier.NotifySiteMatches(ctx, siteKey, batches[siteKey]); err != nil {
			logger.Warn("site notification failed",
				logging.String(logging.FieldSite, siteKey),
				logging.Error(err))
			continue
		}
		summary.Notified++
	}

	logger.Info("scan finished",
		logging.Int("candidates", summary.Candidates),
		logging.Int("fetched", summary.Fetched),
		logging.Int("matches", summary.Matches),
		logging.Int("notified_sites", summary.Notified))
	return summary, nil
}

func (p *Pipeline) scanTerm(ctx context.Context, logger *slog.Logger, term string, now time.Time, seen *seencache.Cache, summary *Summary, batches map[string][]notify.Match) {
	termLogger := logger.With(logging.String(logging.FieldTerm, term))

	candidates := p.collect(ctx, termLogger, term)
	candidates = p.dedupe(candidates)
	summary.Candidates += len(candidates)

	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return
		}
		if p.isExcluded(candidate) {
			continue
		}
		if seen.Contains(candidate.ImageURL) {
			continue
		}
		// Mark before the download so a failed fetch is terminal for this
		// URL rather than retried on later runs.
		seen.Add(candidate.ImageURL)

		result, err := p.opts.Fetcher.Fetch(ctx, candidate.ImageURL, candidate.ContextURL)
		if err != nil {
			termLogger.Debug("candidate fetch failed",
				logging.String(logging.FieldURL, candidate.ImageURL),
				logging.Error(err))
			continue
		}
		summary.Fetched++

		hashes, err := fingerprint.Compute(result.Image)
		if err != nil {
			termLogger.Debug("candidate hash failed",
				logging.String(logging.FieldURL, candidate.ImageURL),
				logging.Error(err))
			continue
		}
		referenceID, ok := p.opts.Matcher.Match(result.Image, hashes)
		if !ok {
			continue
		}
		summary.Matches++

		p.recordMatch(termLogger, term, now, candidate, referenceID, result.Data, batches)
	}
}

func (p *Pipeline) recordMatch(logger *slog.Logger, term string, now time.Time, candidate discovery.Candidate, referenceID string, data []byte, batches map[string][]notify.Match) {
	source := candidate.ContextURL
	if source == "" {
		source = candidate.ImageURL
	}
	siteKey := alerts.SiteKey(source)

	savedPath := p.saveCopy(logger, siteKey, candidate.ImageURL, data)

	entry := auditlog.Entry{
		Timestamp:          now,
		Term:               term,
		ImageURL:           candidate.ImageURL,
		HostPage:           candidate.ContextURL,
		MatchedReferenceID: referenceID,
		SavedCopyPath:      savedPath,
	}
	if err := p.opts.Audit.Append(entry); err != nil {
		logger.Warn("audit log append failed", logging.Error(err))
	}

	record := p.opts.Store.Upsert(siteKey, candidate.ImageURL, alerts.UpsertPayload{
		Timestamp:          now,
		HostPage:           candidate.ContextURL,
		Term:               term,
		MatchedReferenceID: referenceID,
		SavedCopyPath:      savedPath,
	})

	logger.Info("match confirmed",
		logging.String(logging.FieldSite, siteKey),
		logging.String(logging.FieldURL, candidate.ImageURL),
		logging.String("reference", referenceID),
		logging.Int("seen_count", record.SeenCount))

	// Only first-time, unmuted matches alert. A rediscovered match that was
	// already reviewed or muted stays quiet.
	if record.Status == alerts.StatusNew && !record.Muted {
		batches[siteKey] = append(batches[siteKey], notify.Match{
			ImageURL: candidate.ImageURL,
			HostPage: candidate.ContextURL,
			Term:     term,
		})
	}
}

// saveCopy writes a best-effort local copy under a per-site subdirectory.
// Failures are non-fatal and leave the saved path empty; name collisions
// overwrite.
func (p *Pipeline) saveCopy(logger *slog.Logger, siteKey, imageURL string, data []byte) string {
	if p.opts.DownloadDir == "" || len(data) == 0 {
		return ""
	}
	dir := filepath.Join(p.opts.DownloadDir, textutil.SanitizeToken(siteKey))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.Warn("create download directory failed", logging.Error(err))
		return ""
	}
	target := filepath.Join(dir, copyFilename(imageURL))
	if err := os.WriteFile(target, data, 0o644); err != nil {
		logger.Warn("save local copy failed",
			logging.String(logging.FieldURL, imageURL),
			logging.Error(err))
		return ""
	}
	return target
}

func copyFilename(imageURL string) string {
	parsed, err := url.Parse(imageURL)
	if err == nil {
		if name := path.Base(parsed.Path); name != "" && name != "." && name != "/" {
			if safe := textutil.SanitizeFileName(name); safe != "" {
				return safe
			}
		}
	}
	return "image.jpg"
}

func (p *Pipeline) collect(ctx context.Context, logger *slog.Logger, term string) []discovery.Candidate {
	if p.opts.Provider == nil {
		return nil
	}

	var candidates []discovery.Candidate
	if p.opts.ImagesPerTerm > 0 {
		images, err := p.opts.Provider.SearchImages(ctx, term, p.opts.ImagesPerTerm)
		if err != nil {
			logger.Warn("image search failed", logging.Error(err))
		} else {
			candidates = append(candidates, images...)
		}
	}

	if p.opts.WebPagesPerTerm > 0 && p.opts.Extractor != nil {
		pages, err := p.opts.Provider.SearchWeb(ctx, term, p.opts.WebPagesPerTerm)
		if err != nil {
			logger.Warn("web search failed", logging.Error(err))
			return candidates
		}
		for _, pageURL := range pages {
			images, err := p.opts.Extractor.ExtractImages(ctx, pageURL)
			if err != nil {
				logger.Debug("page extraction failed",
					logging.String(logging.FieldURL, pageURL),
					logging.Error(err))
				continue
			}
			for _, imageURL := range images {
				candidates = append(candidates, discovery.Candidate{ImageURL: imageURL, ContextURL: pageURL})
			}
		}
	}
	return candidates
}

func (p *Pipeline) dedupe(candidates []discovery.Candidate) []discovery.Candidate {
	seen := make(map[string]struct{}, len(candidates))
	out := candidates[:0]
	for _, candidate := range candidates {
		if candidate.ImageURL == "" {
			continue
		}
		if _, ok := seen[candidate.ImageURL]; ok {
			continue
		}
		seen[candidate.ImageURL] = struct{}{}
		out = append(out, candidate)
	}
	return out
}

// isExcluded drops a candidate when either its image host or its host page
// falls under a configured domain, including subdomains.
func (p *Pipeline) isExcluded(candidate discovery.Candidate) bool {
	if len(p.excluded) == 0 {
		return false
	}
	return p.hostExcluded(candidate.ImageURL) || p.hostExcluded(candidate.ContextURL)
}

func (p *Pipeline) hostExcluded(rawURL string) bool {
	if rawURL == "" {
		return false
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return false
	}
	for _, domain := range p.excluded {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}
