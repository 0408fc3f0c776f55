package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hyperifyio/goindicator/internal/cache"
	"github.com/hyperifyio/goindicator/internal/model"
)

func TestGet_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"page":1},[]]`))
	}))
	defer srv.Close()

	c := &Client{UserAgent: "goindicator-test", MaxAttempts: 2, PerRequestTimeout: 2 * time.Second}
	resp, err := c.Get(context.Background(), srv.URL, 5*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.ContentType != "application/json" || len(resp.Body) == 0 {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestGet_RetryOn5xx(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	c := &Client{MaxAttempts: 2, PerRequestTimeout: 2 * time.Second}
	if _, err := c.Get(context.Background(), srv.URL, 0); err != nil {
		t.Fatalf("expected success after retry, got %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 calls, got %d", calls.Load())
	}
}

func TestGet_NoRetryOn404AndWrapsErrFetch(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := &Client{MaxAttempts: 3}
	_, err := c.Get(context.Background(), srv.URL, time.Second)
	if !errors.Is(err, model.ErrFetch) {
		t.Fatalf("expected ErrFetch, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single call, got %d", calls.Load())
	}
}

func TestGet_BudgetBoundsRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := &Client{MaxAttempts: 1, PerRequestTimeout: 10 * time.Second}
	start := time.Now()
	_, err := c.Get(context.Background(), srv.URL, 100*time.Millisecond)
	if err == nil || !model.IsTimeout(err) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("budget not applied")
	}
}

func TestTimeout_MinOfBudgetAndPerRequest(t *testing.T) {
	c := &Client{PerRequestTimeout: 15 * time.Second}
	if got := c.Timeout(45 * time.Second); got != 15*time.Second {
		t.Fatalf("got %v", got)
	}
	if got := c.Timeout(10 * time.Second); got != 10*time.Second {
		t.Fatalf("got %v", got)
	}
	if got := (&Client{}).Timeout(3 * time.Second); got != 3*time.Second {
		t.Fatalf("got %v", got)
	}
}

func TestGet_Conditional304_UsesCache(t *testing.T) {
	var calls atomic.Int32
	etag := `"abc123"`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		w.Header().Set("Content-Type", "text/html")
		if n == 1 {
			w.Header().Set("ETag", etag)
			_, _ = w.Write([]byte("first"))
			return
		}
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		_, _ = w.Write([]byte("unexpected"))
	}))
	defer srv.Close()

	c := &Client{MaxAttempts: 1, PerRequestTimeout: 2 * time.Second, Cache: &cache.HTTPCache{Dir: t.TempDir()}}
	r1, err := c.Get(context.Background(), srv.URL, 0)
	if err != nil || string(r1.Body) != "first" {
		t.Fatalf("first get: %v %+v", err, r1)
	}
	r2, err := c.Get(context.Background(), srv.URL, 0)
	if err != nil {
		t.Fatalf("second get: %v", err)
	}
	if string(r2.Body) != "first" || !r2.FromCache {
		t.Fatalf("expected cached body, got %+v", r2)
	}
}

func TestGet_RejectsNonHTTP(t *testing.T) {
	c := &Client{MaxAttempts: 1, PerRequestTimeout: time.Second}
	if _, err := c.Get(context.Background(), "file:///etc/hosts", 0); err == nil {
		t.Fatalf("expected error for non-http scheme")
	}
}

func TestIsAllowedContentType(t *testing.T) {
	allowed := []string{"text/html; charset=utf-8", "application/json", "application/vnd.api+json", "text/csv", "text/plain", ""}
	for _, ct := range allowed {
		if !IsAllowedContentType(ct) {
			t.Errorf("expected %q allowed", ct)
		}
	}
	for _, ct := range []string{"application/pdf", "image/png"} {
		if IsAllowedContentType(ct) {
			t.Errorf("expected %q rejected", ct)
		}
	}
}

func TestGet_RedirectLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			http.Redirect(w, r, "/next", http.StatusFound)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := &Client{MaxAttempts: 1, PerRequestTimeout: 2 * time.Second, RedirectMaxHops: 1}
	if _, err := c.Get(context.Background(), srv.URL, 0); err == nil {
		t.Fatalf("expected redirect limit error")
	}
}

type fakeRenderer struct {
	html string
	err  error
}

func (f fakeRenderer) Render(ctx context.Context, url string) (string, error) { return f.html, f.err }

func TestGetRendered_FallsBackToHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<p>http</p>"))
	}))
	defer srv.Close()

	c := &Client{MaxAttempts: 1, Renderer: fakeRenderer{err: errors.New("no browser")}}
	resp, err := c.GetRendered(context.Background(), srv.URL, time.Second)
	if err != nil || resp.Rendered || string(resp.Body) != "<p>http</p>" {
		t.Fatalf("expected http fallback, got %+v %v", resp, err)
	}

	c.Renderer = fakeRenderer{html: "<p>rendered</p>"}
	resp, err = c.GetRendered(context.Background(), srv.URL, time.Second)
	if err != nil || !resp.Rendered {
		t.Fatalf("expected rendered response, got %+v %v", resp, err)
	}
}

func TestGet_MaxConcurrent(t *testing.T) {
	var inFlight, maxObserved atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		curr := inFlight.Add(1)
		for {
			prev := maxObserved.Load()
			if curr <= prev || maxObserved.CompareAndSwap(prev, curr) {
				break
			}
		}
		time.Sleep(150 * time.Millisecond)
		inFlight.Add(-1)
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := &Client{MaxAttempts: 1, PerRequestTimeout: 2 * time.Second, MaxConcurrent: 2}
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, _ = c.Get(context.Background(), srv.URL, 0)
		}()
	}
	close(start)
	wg.Wait()
	if maxObserved.Load() > 2 {
		t.Fatalf("expected max concurrency <= 2, got %d", maxObserved.Load())
	}
}
