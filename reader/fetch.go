package reader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"optionflow/config"
	"optionflow/logger"

	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"
)

const defaultReferer = "https://svc.qri.jp/jpx/nkopm/2"

// Fetcher downloads option price pages with cache-busting headers. Calls
// are paced by a shared rate limiter.
type Fetcher struct {
	client    *http.Client
	limiter   *rate.Limiter
	referer   string
	userAgent string
	log       *logger.Log
}

func NewFetcher(cfg config.SourceConfig) *Fetcher {
	log := logger.GetLogger()

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	rps := cfg.RateLimit.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	burst := cfg.RateLimit.BurstSize
	if burst <= 0 {
		burst = 1
	}
	referer := cfg.Referer
	if referer == "" {
		referer = defaultReferer
	}

	f := &Fetcher{
		client:    &http.Client{Timeout: timeout},
		limiter:   rate.NewLimiter(rate.Limit(rps), burst),
		referer:   referer,
		userAgent: cfg.UserAgent,
		log:       log,
	}

	log.WithComponent("fetcher").WithFields(logger.Fields{
		"timeout":             timeout,
		"requests_per_second": rps,
		"burst":               burst,
	}).Debug("page fetcher initialized")

	return f
}

// Fetch returns the page body decoded to UTF-8.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	log := f.log.WithComponent("fetcher").WithFields(logger.Fields{"url": url, "operation": "fetch"})

	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Referer", f.referer)
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("Cache-Control", "no-cache")
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("fetch %s: unexpected status %s", url, resp.Status)
	}

	body, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", url, err)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}

	logger.LogPerformanceEntry(log, "fetcher", "fetch", time.Since(start), logger.Fields{"bytes": len(data)})
	return data, nil
}
