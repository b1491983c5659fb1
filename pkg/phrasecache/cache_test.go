package phrasecache

import (
	"os"
	"path/filepath"
	"testing"

	"pgregory.net/rapid"
)

func TestLoadAndGetStatic(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "welcome.raw"), []byte{1, 2, 3, 4}, 0o644); err != nil {
		t.Fatal(err)
	}

	c := New(10, nil)
	if err := c.Load(dir); err != nil {
		t.Fatalf("Load: %v", err)
	}

	pcm, ok := c.GetStatic("welcome")
	if !ok {
		t.Fatalf("expected welcome to be loaded")
	}
	if len(pcm) != 4 {
		t.Fatalf("unexpected payload length %d", len(pcm))
	}

	if _, ok := c.GetStatic("missing"); ok {
		t.Fatalf("missing key should not be found")
	}
}

func TestDynamicCacheHitNeverAppliesWithoutPut(t *testing.T) {
	c := New(2, nil)
	if _, ok := c.GetDynamic("hello"); ok {
		t.Fatalf("expected miss before any Put")
	}
	c.PutDynamic("hello", []byte{9, 9})
	pcm, ok := c.GetDynamic("hello")
	if !ok || len(pcm) != 2 {
		t.Fatalf("expected hit after Put")
	}
}

func TestDynamicCacheFIFOEviction(t *testing.T) {
	c := New(2, nil)
	c.PutDynamic("a", []byte{1})
	c.PutDynamic("b", []byte{2})
	c.PutDynamic("c", []byte{3}) // evicts "a", the oldest insert

	if _, ok := c.GetDynamic("a"); ok {
		t.Fatalf("oldest entry should have been evicted")
	}
	if _, ok := c.GetDynamic("b"); !ok {
		t.Fatalf("b should still be present")
	}
	if _, ok := c.GetDynamic("c"); !ok {
		t.Fatalf("c should still be present")
	}
	if c.DynamicLen() != 2 {
		t.Fatalf("expected size capped at 2, got %d", c.DynamicLen())
	}
}

func TestDynamicCacheAccessDoesNotRefreshPosition(t *testing.T) {
	c := New(2, nil)
	c.PutDynamic("a", []byte{1})
	c.PutDynamic("b", []byte{2})

	// Access "a" repeatedly; it must not become "newer" than "b".
	for i := 0; i < 5; i++ {
		c.GetDynamic("a")
	}
	c.PutDynamic("c", []byte{3}) // must still evict "a", not "b"

	if _, ok := c.GetDynamic("a"); ok {
		t.Fatalf("access must not refresh FIFO position")
	}
	if _, ok := c.GetDynamic("b"); !ok {
		t.Fatalf("b should survive")
	}
}

// TestDynamicCacheBoundProperty is the §8 "dynamic-cache bound" invariant:
// after any sequence of PutDynamic calls, size never exceeds the configured
// maximum.
func TestDynamicCacheBoundProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		maxSize := rapid.IntRange(1, 8).Draw(rt, "maxSize")
		c := New(maxSize, nil)

		texts := rapid.SliceOfN(rapid.StringMatching(`[a-z]{1,4}`), 0, 50).Draw(rt, "texts")
		for _, text := range texts {
			c.PutDynamic(text, []byte(text))
		}

		if c.DynamicLen() > maxSize {
			rt.Fatalf("dynamic cache exceeded bound: %d > %d", c.DynamicLen(), maxSize)
		}
	})
}
