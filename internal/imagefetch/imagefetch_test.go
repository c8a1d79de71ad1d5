package imagefetch

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 32), G: uint8(y * 32), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestFetchDecodesImage(t *testing.T) {
	payload := pngBytes(t)
	var gotReferer string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReferer = r.Header.Get("Referer")
		w.Header().Set("Content-Type", "image/png")
		w.Write(payload)
	}))
	defer server.Close()

	fetcher := NewFetcher(5 * time.Second)
	result, err := fetcher.Fetch(context.Background(), server.URL+"/img.png", "https://example.com/page")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if result.Format != "png" {
		t.Errorf("format = %q, want png", result.Format)
	}
	if got := result.Image.Bounds(); got.Dx() != 8 || got.Dy() != 8 {
		t.Errorf("bounds = %v, want 8x8", got)
	}
	if !bytes.Equal(result.Data, payload) {
		t.Error("raw bytes differ from the served payload")
	}
	if gotReferer != "https://example.com/page" {
		t.Errorf("referer = %q", gotReferer)
	}
}

func TestFetchErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer server.Close()

	fetcher := NewFetcher(5 * time.Second)
	if _, err := fetcher.Fetch(context.Background(), server.URL, ""); err == nil {
		t.Fatal("expected error for non-200 status")
	}
}

func TestFetchUndecodableBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not an image</html>"))
	}))
	defer server.Close()

	fetcher := NewFetcher(5 * time.Second)
	if _, err := fetcher.Fetch(context.Background(), server.URL, ""); err == nil {
		t.Fatal("expected decode error")
	}
}
