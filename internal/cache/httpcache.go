package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrMiss is returned when no usable entry exists.
var ErrMiss = errors.New("cache miss")

// HTTPEntry carries the validators needed for conditional revalidation.
type HTTPEntry struct {
	URL          string    `json:"url"`
	ContentType  string    `json:"content_type"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	SavedAt      time.Time `json:"saved_at"`
	Size         int       `json:"size"`
}

// Validators reports whether the entry can be revalidated with a
// conditional request.
func (e *HTTPEntry) Validators() bool {
	return e != nil && (e.ETag != "" || e.LastModified != "")
}

// HTTPCache stores fetched bodies on disk as <sha256(url)>.body with a
// sibling .meta.json. A zero MaxAge keeps entries until purged.
type HTTPCache struct {
	Dir         string
	StrictPerms bool
	MaxAge      time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

func (c *HTTPCache) now() time.Time {
	if c.Now != nil {
		return c.Now().UTC()
	}
	return time.Now().UTC()
}

func (c *HTTPCache) key(url string) string {
	h := sha256.Sum256([]byte(url))
	return hex.EncodeToString(h[:])
}

func (c *HTTPCache) metaPath(key string) string { return filepath.Join(c.Dir, key+".meta.json") }
func (c *HTTPCache) bodyPath(key string) string { return filepath.Join(c.Dir, key+".body") }

// Lookup returns the entry and body for url. Expired entries are reported
// as ErrMiss.
func (c *HTTPCache) Lookup(_ context.Context, url string) (*HTTPEntry, []byte, error) {
	if c == nil || c.Dir == "" {
		return nil, nil, ErrMiss
	}
	key := c.key(url)
	b, err := os.ReadFile(c.metaPath(key))
	if err != nil {
		return nil, nil, ErrMiss
	}
	var e HTTPEntry
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, nil, fmt.Errorf("decode cache meta: %w", err)
	}
	if c.MaxAge > 0 && c.now().Sub(e.SavedAt) > c.MaxAge {
		return nil, nil, ErrMiss
	}
	body, err := os.ReadFile(c.bodyPath(key))
	if err != nil {
		return nil, nil, ErrMiss
	}
	return &e, body, nil
}

// Save writes body then metadata; the metadata is renamed into place so a
// reader never sees meta without its body.
func (c *HTTPCache) Save(_ context.Context, url, contentType, etag, lastModified string, body []byte) error {
	if err := ensureDir(c.Dir, c.StrictPerms); err != nil {
		return err
	}
	key := c.key(url)
	mode := fileMode(c.StrictPerms)
	if err := os.WriteFile(c.bodyPath(key), body, mode); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	meta := HTTPEntry{
		URL:          url,
		ContentType:  contentType,
		ETag:         etag,
		LastModified: lastModified,
		SavedAt:      c.now(),
		Size:         len(body),
	}
	b, err := json.Marshal(&meta)
	if err != nil {
		return fmt.Errorf("encode meta: %w", err)
	}
	tmp := c.metaPath(key) + ".tmp"
	if err := os.WriteFile(tmp, b, mode); err != nil {
		return fmt.Errorf("write meta: %w", err)
	}
	return os.Rename(tmp, c.metaPath(key))
}

// Refresh resets SavedAt after a successful revalidation (304).
func (c *HTTPCache) Refresh(ctx context.Context, url string) error {
	key := c.key(url)
	b, err := os.ReadFile(c.metaPath(key))
	if err != nil {
		return ErrMiss
	}
	var e HTTPEntry
	if err := json.Unmarshal(b, &e); err != nil {
		return fmt.Errorf("decode cache meta: %w", err)
	}
	body, err := os.ReadFile(c.bodyPath(key))
	if err != nil {
		return ErrMiss
	}
	return c.Save(ctx, url, e.ContentType, e.ETag, e.LastModified, body)
}

func ensureDir(dir string, strict bool) error {
	if dir == "" {
		return errors.New("cache dir not configured")
	}
	perm := os.FileMode(0o755)
	if strict {
		perm = 0o700
	}
	if err := os.MkdirAll(dir, perm); err != nil {
		return err
	}
	if strict {
		if info, err := os.Stat(dir); err == nil && info.Mode()&0o777 != 0o700 {
			_ = os.Chmod(dir, 0o700)
		}
	}
	return nil
}

func fileMode(strict bool) os.FileMode {
	if strict {
		return 0o600
	}
	return 0o644
}
