package render

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"
)

// ErrClosed is returned by Render after Close.
var ErrClosed = errors.New("renderer closed")

// Chrome renders pages in one headless browser, launched on first use and
// shared by every call. Each call opens its own tab. Safe for concurrent use.
type Chrome struct {
	UserAgent string
	// Settle is how long to wait after navigation for scripts to populate
	// the page. Zero means one second.
	Settle time.Duration

	mu            sync.Mutex
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
	closed        bool
}

// browser returns the shared browser context, launching Chrome if needed.
// Callers hold c.mu.
func (c *Chrome) browser() (context.Context, error) {
	if c.browserCtx != nil {
		return c.browserCtx, nil
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
	)
	if c.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(c.UserAgent))
	}
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	log.Debug().Msg("headless browser started")
	c.browserCtx, c.cancelBrowser, c.cancelAlloc = browserCtx, cancelBrowser, cancelAlloc
	return browserCtx, nil
}

// Render navigates to url and returns the outer HTML of the document once
// the body is ready. The deadline and cancellation of ctx apply to the tab.
func (c *Chrome) Render(ctx context.Context, url string) (string, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return "", ErrClosed
	}
	browserCtx, err := c.browser()
	c.mu.Unlock()
	if err != nil {
		return "", err
	}

	tabCtx, cancelTab := chromedp.NewContext(browserCtx)
	defer cancelTab()
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()
	if dl, ok := ctx.Deadline(); ok {
		var cancel context.CancelFunc
		tabCtx, cancel = context.WithDeadline(tabCtx, dl)
		defer cancel()
	}

	settle := c.Settle
	if settle <= 0 {
		settle = time.Second
	}
	var html string
	start := time.Now()
	err = chromedp.Run(tabCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(settle),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("render %s: %w", url, err)
	}
	log.Debug().Str("url", url).Dur("elapsed", time.Since(start)).Int("bytes", len(html)).Msg("page rendered")
	return html, nil
}

// Close shuts the browser down.
func (c *Chrome) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.cancelBrowser != nil {
		c.cancelBrowser()
		c.cancelAlloc()
	}
}
