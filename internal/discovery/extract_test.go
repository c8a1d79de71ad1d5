package discovery

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestExtractImages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body>
			<img src="/static/a.jpg">
			<img data-src="https://cdn.example/b.png">
			<img data-original="gallery/c.gif">
			<img alt="no source">
			<img src="  ">
		</body></html>`)
	}))
	defer server.Close()

	extractor := NewExtractor(5 * time.Second)
	images, err := extractor.ExtractImages(context.Background(), server.URL+"/page/")
	if err != nil {
		t.Fatalf("ExtractImages: %v", err)
	}

	want := []string{
		server.URL + "/static/a.jpg",
		"https://cdn.example/b.png",
		server.URL + "/page/gallery/c.gif",
	}
	if len(images) != len(want) {
		t.Fatalf("images = %v, want %v", images, want)
	}
	for i := range want {
		if images[i] != want[i] {
			t.Errorf("images[%d] = %q, want %q", i, images[i], want[i])
		}
	}
}

func TestExtractImagesNon200IsEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	extractor := NewExtractor(5 * time.Second)
	images, err := extractor.ExtractImages(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("ExtractImages: %v", err)
	}
	if len(images) != 0 {
		t.Errorf("images = %v, want none", images)
	}
}

func TestExtractImagesTransportError(t *testing.T) {
	extractor := NewExtractor(time.Second)
	if _, err := extractor.ExtractImages(context.Background(), "http://127.0.0.1:1/none"); err == nil {
		t.Fatal("expected transport error")
	}
}
