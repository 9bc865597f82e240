package cache

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// newTestCache creates a cache rooted in a temp dir with a controllable
// clock. The returned advance function moves the clock forward.
func newTestCache(t *testing.T, opts Options) (*Cache, func(time.Duration)) {
	t.Helper()
	c, err := New(t.TempDir(), opts)
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	advance := func(d time.Duration) { now = now.Add(d) }
	return c, advance
}

func TestPutAndGet(t *testing.T) {
	c, _ := newTestCache(t, Options{})

	payload := []byte("nifti bytes")
	if err := c.Put("patient/scan.nii.gz", payload); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, ok := c.Get("patient/scan.nii.gz")
	if !ok {
		t.Fatal("Expected a cache hit")
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("Cached bytes differ: %q vs %q", got, payload)
	}

	if _, ok := c.Get("patient/other.nii.gz"); ok {
		t.Error("Expected a miss for an unknown key")
	}

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("Expected 1 hit / 1 miss, got %d / %d", stats.Hits, stats.Misses)
	}
	if stats.Entries != 1 || stats.SizeBytes != int64(len(payload)) {
		t.Errorf("Unexpected size accounting: %+v", stats)
	}
	if stats.HitRate != 0.5 {
		t.Errorf("Expected hit rate 0.5, got %f", stats.HitRate)
	}
}

func TestTTLExpiry(t *testing.T) {
	c, advance := newTestCache(t, Options{DefaultTTL: time.Hour})

	if err := c.Put("scan", []byte("data")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	advance(59 * time.Minute)
	if _, ok := c.Get("scan"); !ok {
		t.Fatal("Entry expired before its TTL")
	}

	advance(2 * time.Minute) // 61 minutes after creation
	if _, ok := c.Get("scan"); ok {
		t.Fatal("Entry survived past its TTL")
	}

	stats := c.Stats()
	if stats.Expired != 1 {
		t.Errorf("Expected 1 expired entry, got %d", stats.Expired)
	}
	if stats.Entries != 0 {
		t.Errorf("Expired entry still present: %+v", stats)
	}
}

func TestLRUEviction(t *testing.T) {
	c, advance := newTestCache(t, Options{MaxBytes: 250, DefaultTTL: 24 * time.Hour})

	payload := make([]byte, 100)
	if err := c.Put("a", payload); err != nil {
		t.Fatalf("Put a failed: %v", err)
	}
	advance(time.Minute)
	if err := c.Put("b", payload); err != nil {
		t.Fatalf("Put b failed: %v", err)
	}

	// Touch a so b becomes the least recently used entry.
	advance(time.Minute)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("Expected a to be cached")
	}

	advance(time.Minute)
	if err := c.Put("c", payload); err != nil {
		t.Fatalf("Put c failed: %v", err)
	}

	if _, ok := c.Get("b"); ok {
		t.Error("Expected b to be evicted as least recently used")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("Recently used entry a was evicted")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("Fresh entry c missing")
	}

	stats := c.Stats()
	if stats.Evictions != 1 {
		t.Errorf("Expected 1 eviction, got %d", stats.Evictions)
	}
	if stats.SizeBytes > 250 {
		t.Errorf("Cache over budget: %d bytes", stats.SizeBytes)
	}
}

func TestMetadataSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	first, err := New(dir, Options{DefaultTTL: 24 * time.Hour})
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}
	if err := first.Put("scan", []byte("payload")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	second, err := New(dir, Options{DefaultTTL: 24 * time.Hour})
	if err != nil {
		t.Fatalf("Failed to reopen cache: %v", err)
	}
	got, ok := second.Get("scan")
	if !ok || !bytes.Equal(got, []byte("payload")) {
		t.Errorf("Entry lost across reopen: ok=%t, data=%q", ok, got)
	}
}

func TestReopenDropsMissingFiles(t *testing.T) {
	dir := t.TempDir()

	first, err := New(dir, Options{})
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}
	if err := first.Put("scan", []byte("payload")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// Delete the content file behind the cache's back.
	entries, err := filepath.Glob(filepath.Join(dir, "*.cached"))
	if err != nil || len(entries) != 1 {
		t.Fatalf("Expected one cached file, got %v (err %v)", entries, err)
	}
	os.Remove(entries[0])

	second, err := New(dir, Options{})
	if err != nil {
		t.Fatalf("Failed to reopen cache: %v", err)
	}
	if _, ok := second.Get("scan"); ok {
		t.Error("Entry with a missing file survived reopen")
	}
}

func TestClear(t *testing.T) {
	c, _ := newTestCache(t, Options{})
	c.Put("a", []byte("1"))
	c.Put("b", []byte("2"))

	c.Clear()

	stats := c.Stats()
	if stats.Entries != 0 || stats.SizeBytes != 0 {
		t.Errorf("Cache not empty after Clear: %+v", stats)
	}
}
