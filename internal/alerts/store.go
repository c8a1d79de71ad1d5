package alerts

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"imagewatch/internal/fileutil"
	"imagewatch/internal/logging"
)

// ErrNotFound reports a manual action against a (site, image URL) pair that
// exists neither in the alert state nor in the audit log.
var ErrNotFound = errors.New("match not found")

// Seeder recovers the provenance of a match record that a manual action
// references before the scan pipeline has created it. The audit log is the
// canonical implementation.
type Seeder interface {
	Seed(siteKey, imageURL string) (UpsertPayload, bool)
}

// Store provides serialized access to the persistent alert state. All
// mutations go through the store's lock, so overlapping scan and recheck runs
// never interleave partial saves.
type Store struct {
	path   string
	logger *slog.Logger
	seeder Seeder

	mu    sync.Mutex
	state *State
}

// NewStore loads the alert state at path. A missing or corrupt document
// starts the store empty rather than failing; corruption is logged.
func NewStore(path string, seeder Seeder, logger *slog.Logger) *Store {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "alerts")

	s := &Store{
		path:   path,
		logger: logger,
		seeder: seeder,
		state:  NewState(),
	}
	s.load()
	return s
}

func (s *Store) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("failed to read alert state, starting empty",
				logging.String("path", s.path),
				logging.Error(err))
		}
		return
	}
	if len(data) == 0 {
		return
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		s.logger.Warn("alert state is corrupt, starting empty",
			logging.String("path", s.path),
			logging.Error(err))
		return
	}
	if state.Sites == nil {
		state.Sites = make(map[string]*SiteState)
	}
	for _, site := range state.Sites {
		if site.Matches == nil {
			site.Matches = make(map[string]*MatchRecord)
		}
	}
	s.state = &state
}

// Save writes the current state to disk atomically. Callers batch in-memory
// mutations and save once per run.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal alert state: %w", err)
	}
	if err := fileutil.WriteFileAtomic(s.path, data, 0o644); err != nil {
		return fmt.Errorf("persist alert state: %w", err)
	}
	return nil
}

// Upsert records a discovery of imageURL on siteKey and returns a copy of the
// post-merge record. The first discovery creates the record; rediscoveries
// bump last-seen and seen-count and overwrite provenance fields only when the
// payload carries a non-empty value. The change is in-memory only until Save.
func (s *Store) Upsert(siteKey, imageURL string, payload UpsertPayload) MatchRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := s.upsertLocked(siteKey, imageURL, payload)
	return *record
}

func (s *Store) upsertLocked(siteKey, imageURL string, payload UpsertPayload) *MatchRecord {
	site, ok := s.state.Sites[siteKey]
	if !ok {
		site = &SiteState{Matches: make(map[string]*MatchRecord)}
		s.state.Sites[siteKey] = site
	}

	record, ok := site.Matches[imageURL]
	if !ok {
		record = &MatchRecord{
			Status:             StatusNew,
			Notes:              []Note{},
			SeenCount:          1,
			FirstSeenAt:        payload.Timestamp,
			LastSeenAt:         payload.Timestamp,
			HostPage:           payload.HostPage,
			Term:               payload.Term,
			MatchedReferenceID: payload.MatchedReferenceID,
			SavedCopyPath:      payload.SavedCopyPath,
		}
		site.Matches[imageURL] = record
		return record
	}

	record.LastSeenAt = payload.Timestamp
	record.SeenCount++
	if payload.HostPage != "" {
		record.HostPage = payload.HostPage
	}
	if payload.Term != "" {
		record.Term = payload.Term
	}
	if payload.MatchedReferenceID != "" {
		record.MatchedReferenceID = payload.MatchedReferenceID
	}
	if payload.SavedCopyPath != "" {
		record.SavedCopyPath = payload.SavedCopyPath
	}
	return record
}

// ApplyLiveness merges one recheck result into the record. Status fields are
// always updated; the up/gone classification never overrides a manual
// disposition, while a transport error is recorded unconditionally because it
// carries no disposition of its own. Unknown records are ignored. The change
// is in-memory only until Save.
func (s *Store) ApplyLiveness(siteKey, imageURL string, result Liveness) {
	s.mu.Lock()
	defer s.mu.Unlock()

	site, ok := s.state.Sites[siteKey]
	if !ok {
		return
	}
	record, ok := site.Matches[imageURL]
	if !ok {
		return
	}

	checkedAt := result.CheckedAt
	record.HTTPStatus = result.HTTPStatus
	record.FailReason = result.FailReason
	record.LastCheckedAt = &checkedAt

	manual := record.Status == StatusClosed || record.Status == StatusAck
	switch result.State {
	case StatusUp:
		record.LastSeenAt = checkedAt
		record.RemovedAt = nil
		if !manual {
			record.Status = StatusUp
		}
	case StatusGone:
		record.RemovedAt = &checkedAt
		if !manual {
			record.Status = StatusGone
		}
	case StatusError:
		record.Status = StatusError
	}
}

// Acknowledge marks the match as reviewed. Idempotent.
func (s *Store) Acknowledge(siteKey, imageURL string) error {
	return s.mutate(siteKey, imageURL, func(record *MatchRecord) {
		record.Status = StatusAck
	})
}

// Close marks the match as resolved. Idempotent.
func (s *Store) Close(siteKey, imageURL string) error {
	return s.mutate(siteKey, imageURL, func(record *MatchRecord) {
		record.Status = StatusClosed
	})
}

// SetMuted sets the notification mute flag for the match. Idempotent.
func (s *Store) SetMuted(siteKey, imageURL string, muted bool) error {
	return s.mutate(siteKey, imageURL, func(record *MatchRecord) {
		record.Muted = muted
	})
}

// AddNote appends a reviewer note to the match.
func (s *Store) AddNote(siteKey, imageURL, text string, at time.Time) error {
	return s.mutate(siteKey, imageURL, func(record *MatchRecord) {
		record.Notes = append(record.Notes, Note{Timestamp: at, Text: text})
	})
}

// mutate applies a manual action and persists it immediately. An unknown
// (site, URL) pair is first seeded from the audit log; without an audit entry
// the action fails with ErrNotFound instead of silently dropping.
func (s *Store) mutate(siteKey, imageURL string, apply func(*MatchRecord)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := s.lookupLocked(siteKey, imageURL)
	if record == nil {
		if s.seeder == nil {
			return ErrNotFound
		}
		payload, ok := s.seeder.Seed(siteKey, imageURL)
		if !ok {
			return ErrNotFound
		}
		s.logger.Info("seeding match record from audit log",
			logging.String(logging.FieldSite, siteKey),
			logging.String(logging.FieldURL, imageURL))
		record = s.upsertLocked(siteKey, imageURL, payload)
	}

	apply(record)
	return s.saveLocked()
}

func (s *Store) lookupLocked(siteKey, imageURL string) *MatchRecord {
	site, ok := s.state.Sites[siteKey]
	if !ok {
		return nil
	}
	return site.Matches[imageURL]
}

// Get returns a copy of one match record.
func (s *Store) Get(siteKey, imageURL string) (MatchRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := s.lookupLocked(siteKey, imageURL)
	if record == nil {
		return MatchRecord{}, false
	}
	return *record, true
}

// Matches lists every match record reference, sorted by site key then image
// URL so batch selection is deterministic.
func (s *Store) Matches() []MatchRef {
	s.mu.Lock()
	defer s.mu.Unlock()

	refs := make([]MatchRef, 0)
	for siteKey, site := range s.state.Sites {
		for imageURL, record := range site.Matches {
			refs = append(refs, MatchRef{
				SiteKey:  siteKey,
				ImageURL: imageURL,
				Status:   record.Status,
				Muted:    record.Muted,
			})
		}
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].SiteKey != refs[j].SiteKey {
			return refs[i].SiteKey < refs[j].SiteKey
		}
		return refs[i].ImageURL < refs[j].ImageURL
	})
	return refs
}

// Snapshot returns a deep copy of the current state for read-only consumers.
func (s *Store) Snapshot() *State {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := NewState()
	for siteKey, site := range s.state.Sites {
		copied := &SiteState{Matches: make(map[string]*MatchRecord, len(site.Matches))}
		for imageURL, record := range site.Matches {
			dup := *record
			dup.Notes = append([]Note(nil), record.Notes...)
			if record.HTTPStatus != nil {
				status := *record.HTTPStatus
				dup.HTTPStatus = &status
			}
			if record.LastCheckedAt != nil {
				at := *record.LastCheckedAt
				dup.LastCheckedAt = &at
			}
			if record.RemovedAt != nil {
				at := *record.RemovedAt
				dup.RemovedAt = &at
			}
			copied.Matches[imageURL] = &dup
		}
		snapshot.Sites[siteKey] = copied
	}
	return snapshot
}
