package auditlog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func sampleEntry(ts time.Time, url string) Entry {
	return Entry{
		Timestamp:          ts,
		Term:               "sunset print",
		ImageURL:           url,
		HostPage:           "https://example.com/gallery",
		MatchedReferenceID: "images/sunset.png",
		SavedCopyPath:      "downloads/a.jpg",
	}
}

func TestAppendWritesHeaderOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "matches.csv")
	log := New(path)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	if err := log.Append(sampleEntry(now, "https://example.com/a.jpg")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := log.Append(sampleEntry(now, "https://example.com/b.jpg")); err != nil {
		t.Fatalf("Append: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(string(data), "timestamp_utc"); got != 1 {
		t.Errorf("header appears %d times, want 1", got)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Errorf("file has %d lines, want header plus 2 rows", len(lines))
	}
}

func TestAppendReadRoundTrip(t *testing.T) {
	log := New(filepath.Join(t.TempDir(), "matches.csv"))
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	if err := log.Append(sampleEntry(now, "https://example.com/a.jpg")); err != nil {
		t.Fatalf("Append: %v", err)
	}

	entries, err := log.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("read %d entries, want 1", len(entries))
	}
	entry := entries[0]
	if !entry.Timestamp.Equal(now) {
		t.Errorf("timestamp = %v, want %v", entry.Timestamp, now)
	}
	if entry.ImageURL != "https://example.com/a.jpg" || entry.Term != "sunset print" {
		t.Errorf("entry fields lost: %+v", entry)
	}
}

func TestReadMissingFile(t *testing.T) {
	log := New(filepath.Join(t.TempDir(), "absent.csv"))
	entries, err := log.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("missing log should be empty, got %d entries", len(entries))
	}
}

func TestSeedReturnsNewestRow(t *testing.T) {
	log := New(filepath.Join(t.TempDir(), "matches.csv"))
	older := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(48 * time.Hour)

	first := sampleEntry(older, "https://example.com/a.jpg")
	first.Term = "old term"
	second := sampleEntry(newer, "https://example.com/a.jpg")
	second.Term = "new term"
	for _, entry := range []Entry{first, second} {
		if err := log.Append(entry); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	payload, ok := log.Seed("example.com", "https://example.com/a.jpg")
	if !ok {
		t.Fatal("expected a seed payload")
	}
	if payload.Term != "new term" {
		t.Errorf("term = %q, want the newest row's term", payload.Term)
	}
	if !payload.Timestamp.Equal(newer) {
		t.Errorf("timestamp = %v, want %v", payload.Timestamp, newer)
	}
}

func TestSeedUnknownPair(t *testing.T) {
	log := New(filepath.Join(t.TempDir(), "matches.csv"))
	if err := log.Append(sampleEntry(time.Now().UTC(), "https://example.com/a.jpg")); err != nil {
		t.Fatalf("Append: %v", err)
	}

	if _, ok := log.Seed("other.com", "https://example.com/a.jpg"); ok {
		t.Error("seed matched the wrong site")
	}
	if _, ok := log.Seed("example.com", "https://example.com/missing.jpg"); ok {
		t.Error("seed matched a URL that was never logged")
	}
}
