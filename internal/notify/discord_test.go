package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"imagewatch/internal/config"
)

type recordedRequest struct {
	payload map[string]any
}

func newTestService(t *testing.T, serverURL string) (*discordService, *[]time.Duration) {
	t.Helper()
	service := NewService(config.Notify{
		DiscordWebhook: serverURL,
		Username:       "imagewatch",
		RequestTimeout: 5,
	}, nil)
	discord, ok := service.(*discordService)
	if !ok {
		t.Fatalf("service is %T, want *discordService", service)
	}
	var slept []time.Duration
	discord.sleep = func(d time.Duration) { slept = append(slept, d) }
	return discord, &slept
}

func decodePayload(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		t.Fatalf("decode webhook payload: %v", err)
	}
	return payload
}

func TestNoopWhenUnconfigured(t *testing.T) {
	service := NewService(config.Notify{}, nil)
	if _, ok := service.(noopService); !ok {
		t.Fatalf("service is %T, want noopService", service)
	}
	if err := service.NotifySiteMatches(context.Background(), "example.com", []Match{{ImageURL: "x"}}); err != nil {
		t.Errorf("noop returned %v", err)
	}
}

func TestDeliverSendsSuppressedPayload(t *testing.T) {
	var requests []recordedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, recordedRequest{payload: decodePayload(t, r)})
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	discord, _ := newTestService(t, server.URL)
	err := discord.NotifySiteMatches(context.Background(), "example.com", []Match{
		{ImageURL: "https://example.com/a.jpg", HostPage: "https://example.com", Term: "term"},
	})
	if err != nil {
		t.Fatalf("NotifySiteMatches: %v", err)
	}

	if len(requests) != 1 {
		t.Fatalf("made %d requests, want 1", len(requests))
	}
	payload := requests[0].payload
	if payload["flags"] != float64(4) {
		t.Errorf("flags = %v, want 4", payload["flags"])
	}
	if payload["username"] != "imagewatch" {
		t.Errorf("username = %v", payload["username"])
	}
	mentions, ok := payload["allowed_mentions"].(map[string]any)
	if !ok {
		t.Fatal("missing allowed_mentions")
	}
	if parse, ok := mentions["parse"].([]any); !ok || len(parse) != 0 {
		t.Errorf("allowed_mentions.parse = %v, want empty list", mentions["parse"])
	}
}

func TestDeliverChunksLongMessage(t *testing.T) {
	var contents []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload := decodePayload(t, r)
		contents = append(contents, payload["content"].(string))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	discord, _ := newTestService(t, server.URL)
	long := strings.Repeat("z", 4500)
	discord.deliver(context.Background(), long)

	if len(contents) != 3 {
		t.Fatalf("sent %d chunks, want 3", len(contents))
	}
	if strings.Join(contents, "") != long {
		t.Error("chunked delivery lost or duplicated characters")
	}
	for i, content := range contents {
		if len(content) > 2000 {
			t.Errorf("chunk %d is %d characters", i, len(content))
		}
	}
}

func TestRateLimitRetry(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `{"retry_after": 1200}`)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	discord, slept := newTestService(t, server.URL)
	if err := discord.deliverChunk(context.Background(), "hello"); err != nil {
		t.Fatalf("deliverChunk: %v", err)
	}

	if attempts != 2 {
		t.Errorf("made %d attempts, want 2", attempts)
	}
	if len(*slept) != 1 || (*slept)[0] != 1200*time.Millisecond {
		t.Errorf("slept %v, want one 1.2s wait", *slept)
	}
}

func TestRateLimitDelayIsCapped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"retry_after": 60000}`)
	}))
	defer server.Close()

	discord, slept := newTestService(t, server.URL)
	if err := discord.deliverChunk(context.Background(), "hello"); err == nil {
		t.Fatal("expected failure after exhausting attempts")
	}

	if len(*slept) != 3 {
		t.Fatalf("slept %d times, want 3", len(*slept))
	}
	for _, d := range *slept {
		if d > 5*time.Second {
			t.Errorf("waited %v, want at most 5s", d)
		}
	}
}

func TestFlagRejectionFallsBackToWrappedLinks(t *testing.T) {
	var payloads []map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload := decodePayload(t, r)
		payloads = append(payloads, payload)
		if payload["flags"] != nil {
			http.Error(w, `{"message": "invalid flags"}`, http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	discord, _ := newTestService(t, server.URL)
	chunk := "match at https://example.com/a.jpg today"
	if err := discord.deliverChunk(context.Background(), chunk); err != nil {
		t.Fatalf("deliverChunk: %v", err)
	}

	if len(payloads) != 2 {
		t.Fatalf("made %d requests, want flag attempt plus fallback", len(payloads))
	}
	fallback := payloads[1]
	if fallback["flags"] != nil {
		t.Error("fallback must not set flags")
	}
	if got := fallback["content"].(string); !strings.Contains(got, "<https://example.com/a.jpg>") {
		t.Errorf("fallback content = %q, want angle-bracket wrapped URL", got)
	}
}

func TestTransportErrorRetriesThenDrops(t *testing.T) {
	discord, slept := newTestService(t, "http://127.0.0.1:1/webhook")

	// deliver drops the chunk after exhausting retries and never errors the run
	if err := discord.NotifySiteMatches(context.Background(), "example.com", []Match{{ImageURL: "x", Term: "t"}}); err != nil {
		t.Fatalf("NotifySiteMatches: %v", err)
	}
	if len(*slept) != 3 {
		t.Errorf("slept %d times, want one per failed attempt", len(*slept))
	}
}
