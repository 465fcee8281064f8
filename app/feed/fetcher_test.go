package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestFetcherFileURL(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "feed.xml")
	if err := os.WriteFile(path, []byte(sampleFeed), 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	fetcher := NewFetcher(&http.Client{}, "test-agent")
	data, err := fetcher.Run(context.Background(), "file://"+path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != sampleFeed {
		t.Error("file content mismatch")
	}
}

func TestFetcherFileURLMissing(t *testing.T) {
	fetcher := NewFetcher(&http.Client{}, "test-agent")
	if _, err := fetcher.Run(context.Background(), "file:///nonexistent/feed.xml"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestFetcherHTTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "test-agent" {
			t.Errorf("unexpected user agent: %q", got)
		}
		w.Write([]byte("feed body"))
	}))
	defer server.Close()

	fetcher := NewFetcher(server.Client(), "test-agent")
	data, err := fetcher.Run(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "feed body" {
		t.Errorf("unexpected body: %q", data)
	}
}

func TestFetcherHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	fetcher := NewFetcher(server.Client(), "test-agent")
	if _, err := fetcher.Run(context.Background(), server.URL); err == nil {
		t.Error("expected error for non-200 response")
	}
}
