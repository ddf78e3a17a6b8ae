package assets

import "testing"

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewCache(10)
	c.Set("a", make([]byte, 4))
	c.Set("b", make([]byte, 4))

	// Touch a so b is the eviction candidate.
	if _, ok := c.Get("a"); !ok {
		t.Fatal("expected a to be cached")
	}
	c.Set("c", make([]byte, 4))

	if _, ok := c.Get("b"); ok {
		t.Error("expected b to be evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("expected a to survive")
	}
	if files, size := c.Len(); files != 2 || size != 8 {
		t.Errorf("expected 2 files of 8 bytes, got %d files of %d bytes", files, size)
	}
}

func TestCacheSkipsOversized(t *testing.T) {
	c := NewCache(4)
	c.Set("big", make([]byte, 5))
	if _, ok := c.Get("big"); ok {
		t.Error("expected oversized file not to be cached")
	}
}

func TestCacheReplace(t *testing.T) {
	c := NewCache(10)
	c.Set("a", []byte("old"))
	c.Set("a", []byte("newer"))

	data, ok := c.Get("a")
	if !ok || string(data) != "newer" {
		t.Errorf("expected newer, got %q", data)
	}
	if _, size := c.Len(); size != 5 {
		t.Errorf("expected 5 bytes, got %d", size)
	}
}

func TestCacheClear(t *testing.T) {
	c := NewCache(10)
	c.Set("a", []byte("x"))
	c.Get("a")
	c.Get("b")
	c.Clear()

	if files, _ := c.Len(); files != 0 {
		t.Errorf("expected empty cache, got %d files", files)
	}
	if hits, misses := c.Stats(); hits != 0 || misses != 0 {
		t.Errorf("expected reset stats, got %d hits %d misses", hits, misses)
	}
}
