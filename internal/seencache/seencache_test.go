package seencache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileStartsEmpty(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "seen.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("Len = %d, want 0", c.Len())
	}
}

func TestRoundTripSorted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen.json")
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	c.Add("https://b.example/2.jpg")
	c.Add("https://a.example/1.jpg")
	c.Add("https://b.example/2.jpg")
	if err := c.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var doc struct {
		URLs []string `json:"urls"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("persisted cache is not valid JSON: %v", err)
	}
	want := []string{"https://a.example/1.jpg", "https://b.example/2.jpg"}
	if len(doc.URLs) != len(want) {
		t.Fatalf("urls = %v, want %v", doc.URLs, want)
	}
	for i := range want {
		if doc.URLs[i] != want[i] {
			t.Fatalf("urls = %v, want sorted %v", doc.URLs, want)
		}
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !reloaded.Contains("https://a.example/1.jpg") || !reloaded.Contains("https://b.example/2.jpg") {
		t.Error("reloaded cache lost entries")
	}
}

func TestLoadCorruptFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen.json")
	if err := os.WriteFile(path, []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error for corrupt cache")
	}
}
