// Package cache provides a local byte cache for downloaded volumes with
// TTL-based expiration, LRU eviction under a byte budget, and access
// statistics. Entries are content files under a cache directory addressed
// by the MD5 of their key, with a JSON metadata sidecar persisted alongside
// them so the cache survives restarts.
package cache

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

const metadataFile = "cache_metadata.json"

// Entry describes one cached item.
type Entry struct {
	Key          string    `json:"key"`
	LocalPath    string    `json:"local_path"`
	FileSize     int64     `json:"file_size"`
	FileHash     string    `json:"file_hash"`
	CreatedAt    time.Time `json:"created_at"`
	LastAccessed time.Time `json:"last_accessed"`
	AccessCount  int       `json:"access_count"`
	TTL          Duration  `json:"ttl_seconds"`
}

// Duration marshals as whole seconds in the metadata file.
type Duration time.Duration

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(int64(time.Duration(d) / time.Second))
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var secs int64
	if err := json.Unmarshal(data, &secs); err != nil {
		return err
	}
	*d = Duration(time.Duration(secs) * time.Second)
	return nil
}

func (e *Entry) expired(now time.Time) bool {
	return now.Sub(e.CreatedAt) > time.Duration(e.TTL)
}

// Stats is a snapshot of cache performance counters.
type Stats struct {
	Hits      int
	Misses    int
	Evictions int
	Expired   int
	Entries   int
	SizeBytes int64
	HitRate   float64
}

// Options configures a cache.
type Options struct {
	// MaxBytes is the byte budget; exceeding it triggers LRU eviction.
	MaxBytes int64

	// DefaultTTL applies to entries stored via Put.
	DefaultTTL time.Duration
}

// Cache is a TTL+LRU byte cache rooted at a directory. Safe for use from
// multiple goroutines within one process; not safe across processes.
type Cache struct {
	mu      sync.Mutex
	dir     string
	opts    Options
	entries map[string]*Entry
	stats   Stats
	now     func() time.Time
}

// New opens (or creates) a cache rooted at dir and loads any metadata left
// by a previous run, dropping entries whose files have disappeared.
func New(dir string, opts Options) (*Cache, error) {
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = 10 << 30
	}
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = time.Hour
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	c := &Cache{
		dir:     dir,
		opts:    opts,
		entries: make(map[string]*Entry),
		now:     time.Now,
	}
	if err := c.loadMetadata(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Cache) loadMetadata() error {
	data, err := os.ReadFile(filepath.Join(c.dir, metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read cache metadata: %w", err)
	}
	var entries map[string]*Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		// Corrupt metadata: start over rather than fail the host process.
		return nil
	}
	for key, e := range entries {
		if _, err := os.Stat(e.LocalPath); err == nil {
			c.entries[key] = e
		}
	}
	return nil
}

func (c *Cache) saveMetadata() error {
	data, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache metadata: %w", err)
	}
	path := filepath.Join(c.dir, metadataFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write cache metadata: %w", err)
	}
	return os.Rename(tmp, path)
}

func (c *Cache) localPath(key string) string {
	sum := md5.Sum([]byte(key))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:])+".cached")
}

// Get returns the cached bytes for the key if present and unexpired.
// A hit refreshes the entry's last-access time and access count.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.stats.Misses++
		return nil, false
	}
	if e.expired(c.now()) {
		c.removeEntry(key, e)
		c.stats.Expired++
		c.stats.Misses++
		c.saveMetadata()
		return nil, false
	}
	data, err := os.ReadFile(e.LocalPath)
	if err != nil {
		// File vanished behind our back; treat as a miss.
		delete(c.entries, key)
		c.stats.Misses++
		c.saveMetadata()
		return nil, false
	}
	e.LastAccessed = c.now()
	e.AccessCount++
	c.stats.Hits++
	c.saveMetadata()
	return data, true
}

// Put stores bytes under the key with the default TTL, evicting
// least-recently-used entries first when the byte budget would be exceeded.
func (c *Cache) Put(key string, data []byte) error {
	return c.PutTTL(key, data, c.opts.DefaultTTL)
}

// PutTTL stores bytes under the key with an explicit TTL.
func (c *Cache) PutTTL(key string, data []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.purgeExpiredLocked()
	c.makeSpaceLocked(int64(len(data)))

	path := c.localPath(key)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	sum := sha256.Sum256(data)
	now := c.now()
	c.entries[key] = &Entry{
		Key:          key,
		LocalPath:    path,
		FileSize:     int64(len(data)),
		FileHash:     hex.EncodeToString(sum[:]),
		CreatedAt:    now,
		LastAccessed: now,
		AccessCount:  0,
		TTL:          Duration(ttl),
	}
	return c.saveMetadata()
}

// Remove drops an entry and its file.
func (c *Cache) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		c.removeEntry(key, e)
		c.saveMetadata()
	}
}

// Clear drops every entry and file.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, e := range c.entries {
		c.removeEntry(key, e)
	}
	c.saveMetadata()
}

// Stats returns a snapshot of the counters plus current size and entry count.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats
	s.Entries = len(c.entries)
	s.SizeBytes = c.sizeLocked()
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}

func (c *Cache) removeEntry(key string, e *Entry) {
	os.Remove(e.LocalPath)
	delete(c.entries, key)
}

func (c *Cache) sizeLocked() int64 {
	var size int64
	for _, e := range c.entries {
		size += e.FileSize
	}
	return size
}

func (c *Cache) purgeExpiredLocked() {
	now := c.now()
	for key, e := range c.entries {
		if e.expired(now) {
			c.removeEntry(key, e)
			c.stats.Expired++
		}
	}
}

// makeSpaceLocked evicts least-recently-used entries until the incoming
// payload fits within the byte budget.
func (c *Cache) makeSpaceLocked(incoming int64) {
	need := c.sizeLocked() + incoming - c.opts.MaxBytes
	if need <= 0 {
		return
	}

	type kv struct {
		key string
		e   *Entry
	}
	sorted := make([]kv, 0, len(c.entries))
	for key, e := range c.entries {
		sorted = append(sorted, kv{key, e})
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].e.LastAccessed.Before(sorted[j].e.LastAccessed)
	})

	var freed int64
	for _, item := range sorted {
		if freed >= need {
			break
		}
		freed += item.e.FileSize
		c.removeEntry(item.key, item.e)
		c.stats.Evictions++
	}
}
