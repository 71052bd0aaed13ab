// Package fetch provides the two interchangeable page fetchers: a static
// HTTP fetcher and a headless-browser renderer for JavaScript-heavy or
// bot-protected pages.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"imovel-scraper/utils"
)

// Result contains the fetched page and metadata.
type Result struct {
	HTML       string
	StatusCode int
	FinalURL   string
}

// Fetcher is the single contract both fetch variants satisfy.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Result, error)
	Close() error
}

// Realistic Chrome user agent; some targets serve stripped pages or block
// outright on default Go user agents.
const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Static fetches pages with a plain HTTP GET. Used when no JavaScript
// execution is required.
type Static struct {
	client  *http.Client
	timeout time.Duration
	retry   *utils.RetryConfig
	logger  *slog.Logger
}

// NewStatic creates a Static fetcher with the given per-request timeout and
// retry budget.
func NewStatic(timeout time.Duration, maxRetries int, logger *slog.Logger) *Static {
	return &Static{
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
		retry: &utils.RetryConfig{
			MaxAttempts: maxRetries,
			Delay:       2 * time.Second,
			Logger:      logger,
		},
		logger: logger,
	}
}

// Fetch performs the GET with browser-like headers, retrying transient
// failures before surfacing a permanent error for the URL.
func (s *Static) Fetch(ctx context.Context, url string) (*Result, error) {
	var result *Result

	err := s.retry.Do(ctx, "static-fetch", func() error {
		reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Accept",
			"text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		req.Header.Set("Accept-Language", "pt-BR,pt;q=0.9,en;q=0.8")

		resp, err := s.client.Do(req)
		if err != nil {
			return fmt.Errorf("get %s: %w", url, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return fmt.Errorf("get %s: status %d", url, resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}

		result = &Result{
			HTML:       string(body),
			StatusCode: resp.StatusCode,
			FinalURL:   resp.Request.URL.String(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// Close is a no-op for the static fetcher.
func (s *Static) Close() error { return nil }
