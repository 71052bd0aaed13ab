package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	cdpfetch "github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"imovel-scraper/utils"
)

// Browser fetches pages through headless Chrome. One browser instance is
// reused across navigations within a run; each navigation gets its own
// isolated tab that is closed after use.
type Browser struct {
	allocCtx    context.Context
	cancelAlloc context.CancelFunc
	browserCtx  context.Context
	cancelCtx   context.CancelFunc

	timeout     time.Duration
	settleDelay time.Duration
	retry       *utils.RetryConfig
	logger      *slog.Logger
}

// NewBrowser launches the headless browser with a fixed viewport, pt-BR
// locale and a realistic user agent.
func NewBrowser(timeout, settleDelay time.Duration, maxRetries int, chromeBin string, logger *slog.Logger) (*Browser, error) {
	if chromeBin == "" {
		chromeBin = findChromeBinary()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("lang", "pt-BR"),
		chromedp.WindowSize(1366, 768),
		chromedp.UserAgent(userAgent),
	)
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)

	// Root browser context; tabs are derived from it so Chrome is started
	// once and reused.
	browserCtx, cancelCtx := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(string, ...interface{}) {}))

	if err := chromedp.Run(browserCtx); err != nil {
		cancelCtx()
		cancelAlloc()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	return &Browser{
		allocCtx:    allocCtx,
		cancelAlloc: cancelAlloc,
		browserCtx:  browserCtx,
		cancelCtx:   cancelCtx,
		timeout:     timeout,
		settleDelay: settleDelay,
		retry: &utils.RetryConfig{
			MaxAttempts: maxRetries,
			Delay:       2 * time.Second,
			Logger:      logger,
		},
		logger: logger,
	}, nil
}

// Fetch navigates a fresh tab to the URL, waits for the DOM plus a settle
// delay, and returns the fully rendered document.
func (b *Browser) Fetch(ctx context.Context, url string) (*Result, error) {
	var result *Result

	err := b.retry.Do(ctx, "browser-fetch", func() error {
		tabCtx, cancelTab := chromedp.NewContext(b.browserCtx)
		defer cancelTab()

		tabCtx, cancelTimeout := context.WithTimeout(tabCtx, b.timeout)
		defer cancelTimeout()

		blockHeavyResources(tabCtx)

		var html, finalURL string
		err := chromedp.Run(tabCtx,
			cdpfetch.Enable(),
			emulation.SetTimezoneOverride("America/Sao_Paulo"),
			network.SetExtraHTTPHeaders(network.Headers(map[string]interface{}{
				"Accept-Language": "pt-BR,pt;q=0.9,en;q=0.8",
			})),
			chromedp.Navigate(url),
			chromedp.WaitReady("body", chromedp.ByQuery),
			chromedp.Sleep(b.settleDelay),
			chromedp.OuterHTML("html", &html, chromedp.ByQuery),
			chromedp.Location(&finalURL),
		)
		if err != nil {
			return fmt.Errorf("render %s: %w", url, err)
		}

		result = &Result{HTML: html, StatusCode: 200, FinalURL: finalURL}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// blockHeavyResources aborts image/font/stylesheet/media sub-requests to cut
// page-load time. The fetch domain pauses every request; anything else is
// continued untouched.
func blockHeavyResources(ctx context.Context) {
	chromedp.ListenTarget(ctx, func(ev interface{}) {
		paused, ok := ev.(*cdpfetch.EventRequestPaused)
		if !ok {
			return
		}

		go func() {
			c := chromedp.FromContext(ctx)
			execCtx := cdp.WithExecutor(ctx, c.Target)

			switch paused.ResourceType {
			case network.ResourceTypeImage,
				network.ResourceTypeFont,
				network.ResourceTypeStylesheet,
				network.ResourceTypeMedia:
				_ = cdpfetch.FailRequest(paused.RequestID,
					network.ErrorReasonBlockedByClient).Do(execCtx)
			default:
				_ = cdpfetch.ContinueRequest(paused.RequestID).Do(execCtx)
			}
		}()
	})
}

// Close shuts the browser down, releasing the Chrome process.
func (b *Browser) Close() error {
	b.cancelCtx()
	b.cancelAlloc()
	return nil
}

// findChromeBinary locates a Chrome/Chromium binary.
func findChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
