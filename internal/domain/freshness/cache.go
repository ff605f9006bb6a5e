package freshness

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/bytedance/sonic"

	"poap-og-server/internal/platform/logging"
)

// DefaultWindow is how long an uploaded card may be served by redirect.
const DefaultWindow = 24 * time.Hour

// Entry is the cached CDN location of an address's card.
type Entry struct {
	URL         string
	LastUpdated time.Time
}

// Fresh reports whether the entry is younger than window at now.
func (e Entry) Fresh(now time.Time, window time.Duration) bool {
	return now.Sub(e.LastUpdated) < window
}

type wireEntry struct {
	URL         string      `json:"url"`
	LastUpdated epochMillis `json:"lastUpdated"`
}

// epochMillis encodes as a quoted millisecond count and also accepts a bare number.
type epochMillis int64

func (m epochMillis) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(strconv.FormatInt(int64(m), 10))), nil
}

func (m *epochMillis) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(bytes.TrimSpace(data), `"`)
	v, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("lastUpdated %q: %w", data, err)
	}
	*m = epochMillis(v)
	return nil
}

// Encode renders e as {"url": ..., "lastUpdated": "<millis>"}.
func Encode(e Entry) (string, error) {
	data, err := sonic.Marshal(wireEntry{URL: e.URL, LastUpdated: epochMillis(e.LastUpdated.UnixMilli())})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Decode parses a stored entry. Entries without a URL are rejected.
func Decode(raw string) (Entry, error) {
	var w wireEntry
	if err := sonic.UnmarshalString(raw, &w); err != nil {
		return Entry{}, err
	}
	if w.URL == "" {
		return Entry{}, errors.New("entry has no url")
	}
	return Entry{URL: w.URL, LastUpdated: time.UnixMilli(int64(w.LastUpdated))}, nil
}

// Cache is the typed view over a Backend used by the request path.
type Cache struct {
	backend Backend
	logger  *logging.Logger
}

func NewCache(backend Backend, logger *logging.Logger) *Cache {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Cache{backend: backend, logger: logger}
}

// Get never fails: misses, backend errors, and undecodable values all return nil.
func (c *Cache) Get(ctx context.Context, key string) *Entry {
	raw, err := c.backend.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		c.logger.WarnTag("CACHE", "get %s failed, treating as miss: %v", key, err)
		return nil
	}
	entry, err := Decode(raw)
	if err != nil {
		c.logger.WarnTag("CACHE", "decode %s failed, treating as miss: %v", key, err)
		return nil
	}
	return &entry
}

// Set overwrites the entry for key. Concurrent writers race; the last write wins.
func (c *Cache) Set(ctx context.Context, key string, entry Entry) error {
	raw, err := Encode(entry)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}
	if err := c.backend.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Backend exposes the raw store for non-entry values such as the warm-up watermark.
func (c *Cache) Backend() Backend {
	return c.backend
}
