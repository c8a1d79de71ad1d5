// Package auditlog keeps the append-only record of every confirmed match.
// One CSV row per match, header written once; the log also serves as the
// recovery source when a manual action references a match the alert state
// does not know yet.
package auditlog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"imagewatch/internal/alerts"
)

var header = []string{"timestamp_utc", "term", "image_url", "host_page", "matched_reference", "saved_copy"}

// Entry is one confirmed-match row.
type Entry struct {
	Timestamp          time.Time
	Term               string
	ImageURL           string
	HostPage           string
	MatchedReferenceID string
	SavedCopyPath      string
}

// Log appends entries to a CSV file. Not safe for concurrent use; the scan
// pipeline is the only writer.
type Log struct {
	path string
}

// New returns a log backed by the CSV file at path. The file is created on
// first append.
func New(path string) *Log {
	return &Log{path: path}
}

// Append writes one row, creating the file with a header row first if needed.
func (l *Log) Append(entry Entry) error {
	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create audit log directory: %w", err)
		}
	}

	_, statErr := os.Stat(l.path)
	isNew := errors.Is(statErr, fs.ErrNotExist)

	file, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if isNew {
		if err := writer.Write(header); err != nil {
			return fmt.Errorf("write audit log header: %w", err)
		}
	}
	row := []string{
		entry.Timestamp.UTC().Format(time.RFC3339),
		entry.Term,
		entry.ImageURL,
		entry.HostPage,
		entry.MatchedReferenceID,
		entry.SavedCopyPath,
	}
	if err := writer.Write(row); err != nil {
		return fmt.Errorf("write audit log row: %w", err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush audit log: %w", err)
	}
	return nil
}

// Read returns all entries in file order. A missing log is empty, not an
// error. Rows with an unparseable timestamp keep a zero time rather than
// dropping the row.
func (l *Log) Read() ([]Entry, error) {
	file, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	var entries []Entry
	first := true
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read audit log: %w", err)
		}
		if first {
			first = false
			if len(row) > 0 && row[0] == header[0] {
				continue
			}
		}
		if len(row) < len(header) {
			continue
		}
		ts, _ := time.Parse(time.RFC3339, row[0])
		entries = append(entries, Entry{
			Timestamp:          ts,
			Term:               row[1],
			ImageURL:           row[2],
			HostPage:           row[3],
			MatchedReferenceID: row[4],
			SavedCopyPath:      row[5],
		})
	}
	return entries, nil
}

// Seed implements alerts.Seeder: it recovers the provenance of a match from
// the newest audit row for (siteKey, imageURL).
func (l *Log) Seed(siteKey, imageURL string) (alerts.UpsertPayload, bool) {
	entries, err := l.Read()
	if err != nil {
		return alerts.UpsertPayload{}, false
	}

	var found *Entry
	for i := range entries {
		entry := &entries[i]
		if entry.ImageURL != imageURL {
			continue
		}
		source := entry.HostPage
		if source == "" {
			source = entry.ImageURL
		}
		if alerts.SiteKey(source) != siteKey {
			continue
		}
		if found == nil || entry.Timestamp.After(found.Timestamp) {
			found = entry
		}
	}
	if found == nil {
		return alerts.UpsertPayload{}, false
	}
	return alerts.UpsertPayload{
		Timestamp:          found.Timestamp,
		HostPage:           found.HostPage,
		Term:               found.Term,
		MatchedReferenceID: found.MatchedReferenceID,
		SavedCopyPath:      found.SavedCopyPath,
	}, true
}
