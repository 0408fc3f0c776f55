package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/goindicator/internal/cache"
	"github.com/hyperifyio/goindicator/internal/model"
)

// DefaultMaxBodyBytes caps how much of a response body is read.
const DefaultMaxBodyBytes = 10 << 20

// Response is a fetched document.
type Response struct {
	Body        []byte
	ContentType string
	Status      int
	FromCache   bool
	Rendered    bool
}

// Renderer produces the DOM of a page after scripts ran.
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
}

// Client wraps http.Client with per-request timeouts, limited retry on
// transient errors, a concurrency gate and an optional on-disk cache.
type Client struct {
	HTTPClient *http.Client
	UserAgent  string
	// MaxAttempts includes the initial attempt. Minimum 1.
	MaxAttempts int
	// PerRequestTimeout bounds each request. Callers may pass a tighter
	// budget per call.
	PerRequestTimeout time.Duration
	Cache             *cache.HTTPCache
	// BypassCache skips conditional requests but still saves responses.
	BypassCache bool
	// RedirectMaxHops caps redirect following. Zero means 5.
	RedirectMaxHops int
	// MaxConcurrent limits in-flight requests. Zero means unlimited.
	MaxConcurrent int
	// MaxBodyBytes caps the body size. Zero means DefaultMaxBodyBytes.
	MaxBodyBytes int64
	// Renderer, when set, is used by GetRendered.
	Renderer Renderer

	limiter     chan struct{}
	limiterOnce sync.Once
}

type statusError struct{ code int }

func (e *statusError) Error() string { return fmt.Sprintf("unexpected status: %d", e.code) }

func (c *Client) getHTTPClient() *http.Client {
	if c.HTTPClient != nil {
		base := *c.HTTPClient
		base.CheckRedirect = c.checkRedirectFunc()
		return &base
	}
	return &http.Client{CheckRedirect: c.checkRedirectFunc()}
}

// Timeout returns the effective timeout for a call with the given budget:
// the smaller of the per-request timeout and the budget.
func (c *Client) Timeout(budget time.Duration) time.Duration {
	switch {
	case budget <= 0:
		return c.PerRequestTimeout
	case c.PerRequestTimeout <= 0:
		return budget
	}
	return min(budget, c.PerRequestTimeout)
}

// Get fetches rawURL. budget further bounds each attempt. Every error wraps
// model.ErrFetch.
func (c *Client) Get(ctx context.Context, rawURL string, budget time.Duration) (*Response, error) {
	var (
		entry  *cache.HTTPEntry
		cached []byte
	)
	if c.Cache != nil && !c.BypassCache {
		if e, b, err := c.Cache.Lookup(ctx, rawURL); err == nil {
			entry, cached = e, b
		}
	}
	attempts := c.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	timeout := c.Timeout(budget)
	var lastErr error
	for i := 0; i < attempts; i++ {
		resp, err := c.tryOnce(ctx, rawURL, entry, timeout)
		if err == nil {
			if resp.Status == http.StatusNotModified && cached != nil {
				_ = c.Cache.Refresh(ctx, rawURL)
				return &Response{Body: cached, ContentType: entry.ContentType, Status: http.StatusOK, FromCache: true}, nil
			}
			if c.Cache != nil && resp.Status == http.StatusOK {
				if err := c.Cache.Save(ctx, rawURL, resp.ContentType, resp.etag, resp.lastModified, resp.Body); err != nil {
					log.Debug().Err(err).Str("url", rawURL).Msg("cache save failed")
				}
			}
			return &resp.Response, nil
		}
		lastErr = err
		if ctx.Err() != nil || !isTransient(err) || i == attempts-1 {
			break
		}
		log.Debug().Err(err).Str("url", rawURL).Int("attempt", i+1).Msg("transient fetch error, retrying")
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("fetch %s: %w: %w", rawURL, model.ErrFetch, ctx.Err())
		case <-time.After(time.Duration(i+1) * 200 * time.Millisecond):
		}
	}
	if lastErr == nil {
		lastErr = errors.New("unknown error")
	}
	return nil, fmt.Errorf("fetch %s: %w: %w", rawURL, model.ErrFetch, lastErr)
}

// GetRendered renders rawURL with the configured Renderer and falls back to
// a plain Get when rendering is unavailable or fails.
func (c *Client) GetRendered(ctx context.Context, rawURL string, budget time.Duration) (*Response, error) {
	if c.Renderer == nil {
		return c.Get(ctx, rawURL, budget)
	}
	rctx, cancel := context.WithTimeout(ctx, c.Timeout(budget))
	html, err := c.Renderer.Render(rctx, rawURL)
	cancel()
	if err == nil && strings.TrimSpace(html) != "" {
		return &Response{Body: []byte(html), ContentType: "text/html", Status: http.StatusOK, Rendered: true}, nil
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("render %s: %w: %w", rawURL, model.ErrFetch, ctx.Err())
	}
	log.Debug().Err(err).Str("url", rawURL).Msg("render failed, falling back to http")
	return c.Get(ctx, rawURL, budget)
}

type rawResponse struct {
	Response
	etag         string
	lastModified string
}

func (c *Client) tryOnce(ctx context.Context, rawURL string, entry *cache.HTTPEntry, timeout time.Duration) (*rawResponse, error) {
	if err := c.acquire(ctx); err != nil {
		return nil, err
	}
	defer c.release()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	if !isHTTPScheme(req.URL) {
		return nil, fmt.Errorf("unsupported URL scheme: %q", req.URL.Scheme)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/json,text/csv,application/xml;q=0.9,text/plain;q=0.8")
	if entry.Validators() {
		if entry.ETag != "" {
			req.Header.Set("If-None-Match", entry.ETag)
		}
		if entry.LastModified != "" {
			req.Header.Set("If-Modified-Since", entry.LastModified)
		}
	}

	resp, err := c.getHTTPClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return &rawResponse{Response: Response{Status: resp.StatusCode}}, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &statusError{code: resp.StatusCode}
	}
	contentType := resp.Header.Get("Content-Type")
	if !IsAllowedContentType(contentType) {
		return nil, fmt.Errorf("unsupported content type: %s", contentType)
	}
	limit := c.MaxBodyBytes
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return &rawResponse{
		Response:     Response{Body: b, ContentType: contentType, Status: resp.StatusCode},
		etag:         resp.Header.Get("ETag"),
		lastModified: resp.Header.Get("Last-Modified"),
	}, nil
}

// isTransient treats 5xx, 429 and deadlines as worth retrying.
func isTransient(err error) bool {
	if model.IsTimeout(err) {
		return true
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 500 || se.code == http.StatusTooManyRequests
	}
	return false
}

func (c *Client) checkRedirectFunc() func(req *http.Request, via []*http.Request) error {
	max := c.RedirectMaxHops
	if max <= 0 {
		max = 5
	}
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= max {
			return errors.New("too many redirects")
		}
		if !isHTTPScheme(req.URL) {
			return errors.New("redirect to unsupported scheme")
		}
		return nil
	}
}

func isHTTPScheme(u *url.URL) bool {
	if u == nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return scheme == "http" || scheme == "https"
}

var allowedContentTypes = []string{
	"text/html",
	"application/xhtml+xml",
	"application/json",
	"text/json",
	"application/xml",
	"text/xml",
	"text/csv",
	"application/csv",
	"text/plain",
}

// IsAllowedContentType gates bodies the extractors can read. A missing
// header is accepted and sniffed at ingestion.
func IsAllowedContentType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	if ct == "" {
		return true
	}
	for _, a := range allowedContentTypes {
		if strings.HasPrefix(ct, a) {
			return true
		}
	}
	return strings.Contains(ct, "+json") || strings.Contains(ct, "+xml")
}

func (c *Client) acquire(ctx context.Context) error {
	if c.MaxConcurrent <= 0 {
		return nil
	}
	c.limiterOnce.Do(func() {
		c.limiter = make(chan struct{}, c.MaxConcurrent)
	})
	select {
	case c.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) release() {
	if c.MaxConcurrent <= 0 || c.limiter == nil {
		return
	}
	select {
	case <-c.limiter:
	default:
	}
}
