// Package cache stores benchmark baselines on disk so later runs can be
// compared against them.
package cache

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/zeebo/blake3"
)

// ErrMiss is returned when no usable entry exists for a key.
var ErrMiss = errors.New("cache miss")

// ErrFingerprintMismatch is returned when an entry exists but was stored for
// a different workload fingerprint.
var ErrFingerprintMismatch = errors.New("cached entry was recorded with a different configuration")

// Cache provides file-based storage keyed by name.
type Cache struct {
	dir     string
	ttl     time.Duration
	enabled bool
}

// Entry is one stored value together with the fingerprint of the
// configuration that produced it.
type Entry struct {
	Fingerprint string          `json:"fingerprint"`
	Timestamp   time.Time       `json:"timestamp"`
	Data        json.RawMessage `json:"data"`
}

// New creates a new cache instance.
func New(dir string, ttlHours int, enabled bool) (*Cache, error) {
	if !enabled {
		return &Cache{enabled: false}, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	return &Cache{
		dir:     dir,
		ttl:     time.Duration(ttlHours) * time.Hour,
		enabled: true,
	}, nil
}

// Enabled reports whether the cache stores anything.
func (c *Cache) Enabled() bool {
	return c.enabled
}

// HashBytes computes a BLAKE3 hash of bytes and returns it as a hex string.
func HashBytes(data []byte) string {
	hash := blake3.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// Fingerprint hashes the JSON encoding of v.
func Fingerprint(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return HashBytes(data), nil
}

// Put stores v as JSON under key, tagged with fingerprint.
func (c *Cache) Put(key, fingerprint string, v any) error {
	if !c.enabled {
		return nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	entry := Entry{
		Fingerprint: fingerprint,
		Timestamp:   time.Now(),
		Data:        data,
	}
	entryData, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	return os.WriteFile(c.keyPath(key), entryData, 0600)
}

// Get decodes the entry under key into v. It returns ErrMiss when the cache
// is disabled, the entry is absent, unreadable or expired, and
// ErrFingerprintMismatch when fingerprint is non-empty and differs from the
// stored one.
func (c *Cache) Get(key, fingerprint string, v any) (*Entry, error) {
	if !c.enabled {
		return nil, ErrMiss
	}

	path := c.keyPath(key)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ErrMiss
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, ErrMiss
	}

	if c.ttl > 0 && time.Since(entry.Timestamp) > c.ttl {
		os.Remove(path)
		return nil, ErrMiss
	}

	if fingerprint != "" && entry.Fingerprint != fingerprint {
		return &entry, ErrFingerprintMismatch
	}

	if err := json.Unmarshal(entry.Data, v); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Invalidate removes a cache entry.
func (c *Cache) Invalidate(key string) error {
	if !c.enabled {
		return nil
	}
	return os.Remove(c.keyPath(key))
}

// Clear removes all cache entries.
func (c *Cache) Clear() error {
	if !c.enabled {
		return nil
	}
	return os.RemoveAll(c.dir)
}

// keyPath converts a key to a filesystem path.
func (c *Cache) keyPath(key string) string {
	// Use BLAKE3 hash of key for filename to avoid path issues
	return filepath.Join(c.dir, HashBytes([]byte(key))+".json")
}

// Stats returns cache statistics.
type Stats struct {
	Entries   int           `json:"entries"`
	TotalSize int64         `json:"total_size"`
	OldestAge time.Duration `json:"oldest_age"`
	NewestAge time.Duration `json:"newest_age"`
}

// GetStats returns statistics about the cache.
func (c *Cache) GetStats() (*Stats, error) {
	if !c.enabled {
		return &Stats{}, nil
	}

	stats := &Stats{}
	var oldest, newest time.Time

	err := filepath.Walk(c.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}

		stats.Entries++
		stats.TotalSize += info.Size()

		modTime := info.ModTime()
		if oldest.IsZero() || modTime.Before(oldest) {
			oldest = modTime
		}
		if newest.IsZero() || modTime.After(newest) {
			newest = modTime
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !oldest.IsZero() {
		stats.OldestAge = time.Since(oldest)
	}
	if !newest.IsZero() {
		stats.NewestAge = time.Since(newest)
	}

	return stats, nil
}
