package reader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"optionflow/config"
)

func TestFetchSendsCacheBustingHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html><body>日経平均株価</body></html>"))
	}))
	defer srv.Close()

	f := NewFetcher(config.SourceConfig{
		UserAgent: "optionflow-test",
		Timeout:   time.Second,
		RateLimit: config.RateLimitConfig{RequestsPerSecond: 100, BurstSize: 1},
	})

	body, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !strings.Contains(string(body), "日経平均株価") {
		t.Fatalf("unexpected body: %s", body)
	}

	want := map[string]string{
		"Referer":       defaultReferer,
		"Pragma":        "no-cache",
		"Cache-Control": "no-cache",
		"User-Agent":    "optionflow-test",
	}
	for k, v := range want {
		if got.Get(k) != v {
			t.Errorf("header %s = %q, want %q", k, got.Get(k), v)
		}
	}
}

func TestFetchNonOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := NewFetcher(config.SourceConfig{Timeout: time.Second})
	if _, err := f.Fetch(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error for 503")
	}
}

func TestFetchCancelled(t *testing.T) {
	f := NewFetcher(config.SourceConfig{Timeout: time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.Fetch(ctx, "http://127.0.0.1:1/"); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
