// Package fetch renders market pages in a headless browser and returns
// their HTML for parsing.
package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/Nityess/GenerateWealth/internal/config"
)

// FetchError reports a page that could not be rendered after all
// attempts were exhausted.
type FetchError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// renderFunc renders a single page and returns its HTML. Swapped out in
// tests to avoid launching a browser.
type renderFunc func(ctx context.Context, url string) (string, error)

// Fetcher renders JavaScript-driven pages through a shared Chrome
// process. One browser allocator is held for the Fetcher's lifetime;
// each attempt runs in a fresh tab so a wedged page cannot poison the
// next try.
type Fetcher struct {
	cfg      config.ScraperConfig
	logger   *slog.Logger
	allocCtx context.Context
	cancel   context.CancelFunc
	render   renderFunc
}

// New creates a Fetcher backed by a headless Chrome allocator.
func New(cfg config.ScraperConfig, logger *slog.Logger) *Fetcher {
	opts := chromedp.DefaultExecAllocatorOptions[:]
	opts = append(opts, chromedp.Flag("headless", cfg.Headless))
	opts = append(opts, chromedp.Flag("disable-gpu", true))
	opts = append(opts, chromedp.Flag("no-sandbox", true))

	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)

	f := &Fetcher{
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "fetcher")),
		allocCtx: allocCtx,
		cancel:   cancel,
	}
	f.render = f.renderPage
	return f
}

// Close releases the browser allocator.
func (f *Fetcher) Close() {
	if f.cancel != nil {
		f.cancel()
	}
}

// Fetch renders the page at url and returns its full HTML. The page is
// retried with exponential backoff; the caller's context aborts both
// the render and the backoff wait.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= f.cfg.Retries; attempt++ {
		html, err := f.render(ctx, url)
		if err == nil {
			f.logger.Debug("page rendered",
				slog.String("url", url),
				slog.Int("attempt", attempt),
				slog.Int("html_bytes", len(html)))
			return html, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return "", &FetchError{URL: url, Attempts: attempt, Err: ctx.Err()}
		}

		if attempt < f.cfg.Retries {
			wait := backoff(f.cfg.BackoffBase, attempt)
			f.logger.Warn("render attempt failed, backing off",
				slog.String("url", url),
				slog.Int("attempt", attempt),
				slog.Duration("wait", wait),
				slog.String("error", err.Error()))
			if err := sleepCtx(ctx, wait); err != nil {
				return "", &FetchError{URL: url, Attempts: attempt, Err: err}
			}
		}
	}

	f.logger.Error("page fetch exhausted retries",
		slog.String("url", url),
		slog.Int("attempts", f.cfg.Retries),
		slog.String("error", lastErr.Error()))
	return "", &FetchError{URL: url, Attempts: f.cfg.Retries, Err: lastErr}
}

// renderPage performs one attempt in its own tab: navigate under the
// navigation timeout, wait for a table to appear under the shorter
// table timeout, then capture the document HTML.
func (f *Fetcher) renderPage(ctx context.Context, url string) (string, error) {
	tabCtx, cancelTab := chromedp.NewContext(f.allocCtx)
	defer cancelTab()

	// Stop the tab when the caller gives up.
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	navCtx, cancelNav := context.WithTimeout(tabCtx, f.cfg.NavigationTimeout)
	defer cancelNav()

	if err := chromedp.Run(navCtx, chromedp.Navigate(url)); err != nil {
		return "", fmt.Errorf("navigate: %w", err)
	}

	tableCtx, cancelTable := context.WithTimeout(tabCtx, f.cfg.TableTimeout)
	defer cancelTable()

	if err := chromedp.Run(tableCtx, chromedp.WaitVisible("table", chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("wait for table: %w", err)
	}

	var html string
	if err := chromedp.Run(navCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("capture html: %w", err)
	}
	return html, nil
}

func backoff(base time.Duration, attempt int) time.Duration {
	wait := base
	for i := 1; i < attempt; i++ {
		wait *= 2
	}
	return wait
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
