package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"imagewatch/internal/alerts"
	"imagewatch/internal/auditlog"
	"imagewatch/internal/testsupport"
)

func startDaemon(t *testing.T) (*Daemon, string) {
	t.Helper()
	d, err := New(testsupport.NewConfig(t), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(d.Stop)
	return d, "http://" + d.api.listener.Addr().String()
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func postJSON(t *testing.T, url string, payload, out any) int {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestStatusEndpoint(t *testing.T) {
	d, base := startDaemon(t)

	var status Status
	if code := getJSON(t, base+"/api/status", &status); code != http.StatusOK {
		t.Fatalf("status code = %d", code)
	}
	if !status.Running {
		t.Error("status.running = false, want true")
	}
	if status.LockFilePath != d.lockPath {
		t.Errorf("lock file = %q, want %q", status.LockFilePath, d.lockPath)
	}
}

func TestStateAndSitesEndpoints(t *testing.T) {
	d, base := startDaemon(t)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	d.Store().Upsert("pirate.example", "https://pirate.example/a.jpg", alerts.UpsertPayload{
		Timestamp: now,
		Term:      "sunset print",
	})

	var state alerts.State
	if code := getJSON(t, base+"/api/state", &state); code != http.StatusOK {
		t.Fatalf("state code = %d", code)
	}
	if _, ok := state.Sites["pirate.example"]; !ok {
		t.Error("state missing site")
	}

	var sites struct {
		Sites []siteSummary `json:"sites"`
	}
	if code := getJSON(t, base+"/api/sites", &sites); code != http.StatusOK {
		t.Fatalf("sites code = %d", code)
	}
	if len(sites.Sites) != 1 || sites.Sites[0].Site != "pirate.example" {
		t.Fatalf("sites = %+v", sites.Sites)
	}
	if sites.Sites[0].NewCount != 1 {
		t.Errorf("new count = %d, want 1", sites.Sites[0].NewCount)
	}

	var site alerts.SiteState
	if code := getJSON(t, base+"/api/sites/pirate.example", &site); code != http.StatusOK {
		t.Fatalf("site detail code = %d", code)
	}
	if len(site.Matches) != 1 {
		t.Errorf("site detail matches = %d, want 1", len(site.Matches))
	}

	if code := getJSON(t, base+"/api/sites/unknown.example", nil); code != http.StatusNotFound {
		t.Errorf("unknown site code = %d, want 404", code)
	}
}

func TestSiteSummaryTermsSerializeAsArray(t *testing.T) {
	d, base := startDaemon(t)
	// A record with no term must still yield "terms": [] rather than null.
	d.Store().Upsert("pirate.example", "https://pirate.example/a.jpg", alerts.UpsertPayload{Timestamp: time.Now().UTC()})

	resp, err := http.Get(base + "/api/sites")
	if err != nil {
		t.Fatalf("GET sites: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(body), `"terms":[]`) {
		t.Fatalf("terms should serialize as an empty array, got %s", body)
	}
}

func TestMatchActionEndpoints(t *testing.T) {
	d, base := startDaemon(t)
	now := time.Now().UTC()
	url := "https://pirate.example/a.jpg"
	d.Store().Upsert("pirate.example", url, alerts.UpsertPayload{Timestamp: now})

	var record alerts.MatchRecord
	code := postJSON(t, base+"/api/sites/pirate.example/matches/ack", matchActionRequest{ImageURL: url}, &record)
	if code != http.StatusOK {
		t.Fatalf("ack code = %d", code)
	}
	if record.Status != alerts.StatusAck {
		t.Errorf("status after ack = %q", record.Status)
	}

	code = postJSON(t, base+"/api/sites/pirate.example/matches/mute", matchActionRequest{ImageURL: url}, &record)
	if code != http.StatusOK || !record.Muted {
		t.Errorf("mute: code = %d, muted = %v", code, record.Muted)
	}

	code = postJSON(t, base+"/api/sites/pirate.example/matches/note", matchActionRequest{ImageURL: url, Note: "filed"}, &record)
	if code != http.StatusOK || len(record.Notes) != 1 {
		t.Errorf("note: code = %d, notes = %v", code, record.Notes)
	}

	code = postJSON(t, base+"/api/sites/pirate.example/matches/close", matchActionRequest{ImageURL: url}, &record)
	if code != http.StatusOK || record.Status != alerts.StatusClosed {
		t.Errorf("close: code = %d, status = %q", code, record.Status)
	}
}

func TestMatchActionUnknownPair(t *testing.T) {
	_, base := startDaemon(t)

	code := postJSON(t, base+"/api/sites/pirate.example/matches/ack",
		matchActionRequest{ImageURL: "https://pirate.example/never-seen.jpg"}, nil)
	if code != http.StatusNotFound {
		t.Errorf("code = %d, want 404 for a pair with no audit history", code)
	}
}

func TestMatchActionSeedsFromAuditLog(t *testing.T) {
	d, base := startDaemon(t)
	url := "https://pirate.example/logged.jpg"
	entry := auditlog.Entry{
		Timestamp:          time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		Term:               "sunset print",
		ImageURL:           url,
		HostPage:           "https://pirate.example/gallery",
		MatchedReferenceID: "images/sunset.png",
	}
	if err := d.audit.Append(entry); err != nil {
		t.Fatalf("Append: %v", err)
	}

	var record alerts.MatchRecord
	code := postJSON(t, base+"/api/sites/pirate.example/matches/ack", matchActionRequest{ImageURL: url}, &record)
	if code != http.StatusOK {
		t.Fatalf("code = %d, want 200 after audit seeding", code)
	}
	if record.Status != alerts.StatusAck || record.Term != "sunset print" {
		t.Errorf("seeded record = %+v", record)
	}
}

func TestRecheckEndpoint(t *testing.T) {
	_, base := startDaemon(t)

	var result map[string]int
	code := postJSON(t, base+"/api/recheck", struct{}{}, &result)
	if code != http.StatusOK {
		t.Fatalf("code = %d", code)
	}
	if result["processed"] != 0 {
		t.Errorf("processed = %d, want 0 with empty state", result["processed"])
	}
}

func TestTriggerScanGuard(t *testing.T) {
	d, _ := startDaemon(t)

	// Hold the guard and confirm a second trigger is rejected.
	if !d.scanning.CompareAndSwap(false, true) {
		t.Fatal("guard unexpectedly held")
	}
	defer d.scanning.Store(false)

	if _, err := d.TriggerScan(context.Background()); err == nil {
		t.Fatal("expected in-flight error")
	} else if err.Error() != errScanInFlight.Error() {
		t.Fatalf("err = %v", err)
	}
}

func TestDaemonStopIsIdempotent(t *testing.T) {
	d, _ := startDaemon(t)
	d.Stop()
	d.Stop()
	if d.running.Load() {
		t.Error("daemon still marked running")
	}
}

func TestStatusCountsMatches(t *testing.T) {
	d, _ := startDaemon(t)
	now := time.Now().UTC()
	for i := 0; i < 3; i++ {
		d.Store().Upsert("pirate.example", fmt.Sprintf("https://pirate.example/%d.jpg", i), alerts.UpsertPayload{Timestamp: now})
	}
	d.Store().Upsert("other.example", "https://other.example/x.jpg", alerts.UpsertPayload{Timestamp: now})

	status := d.Status()
	if status.MatchCount != 4 {
		t.Errorf("match count = %d, want 4", status.MatchCount)
	}
	if status.SiteCount != 2 {
		t.Errorf("site count = %d, want 2", status.SiteCount)
	}
}
