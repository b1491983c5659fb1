// Package phrasecache holds pre-rendered 8kHz PCM audio: an immutable
// static set loaded from disk at startup, and a bounded dynamic set of
// TTS output keyed by the text that produced it (§3, §4.3).
package phrasecache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Logger is the narrow logging surface the cache needs. Its method shape
// matches the other packages' Logger interfaces so that one concrete
// implementation (cmd/voicebot's logAdapter) serves them all.
type Logger interface {
	Debug(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) Warn(string, ...interface{})  {}

// Cache is the process-wide phrase store: a read-only static map (filled
// once at Load) and a mutex-guarded dynamic map with FIFO eviction.
type Cache struct {
	static map[string][]byte // read-only after Load, no locking needed

	mu       sync.Mutex
	dynamic  map[string][]byte
	order    *list.List // front = oldest inserted
	elements map[string]*list.Element
	maxSize  int

	logger Logger
}

// New creates a Cache whose dynamic store holds at most maxSize entries.
func New(maxSize int, logger Logger) *Cache {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Cache{
		static:   make(map[string][]byte),
		dynamic:  make(map[string][]byte),
		order:    list.New(),
		elements: make(map[string]*list.Element),
		maxSize:  maxSize,
		logger:   logger,
	}
}

// Load scans dir for files named "<key>.raw" and loads each as the static
// PCM for that key. Missing expected keys are not errors here — Load simply
// populates whatever it finds; callers that need a specific enumerated set
// present should check GetStatic after calling Load and log warnings for
// gaps (§4.3).
func (c *Cache) Load(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("phrasecache: reading %s: %w", dir, err)
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".raw") {
			continue
		}
		key := strings.TrimSuffix(name, ".raw")
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			c.logger.Warn("phrasecache: failed to read static phrase", "key", key, "error", err)
			continue
		}
		c.static[key] = data
	}
	return nil
}

// WarnMissing logs a warning (not an error) for every key in want that
// isn't present in the static map, per §4.3.
func (c *Cache) WarnMissing(want []string) {
	for _, key := range want {
		if _, ok := c.static[key]; !ok {
			c.logger.Warn("phrasecache: static phrase missing", "key", key)
		}
	}
}

// GetStatic returns the PCM for key and whether it was found.
func (c *Cache) GetStatic(key string) ([]byte, bool) {
	pcm, ok := c.static[key]
	return pcm, ok
}

// HashText derives the dynamic-cache key for a piece of text (§3: "keyed by
// a hash of the exact text sent to TTS").
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// GetDynamic returns the cached PCM for text, if any. A hit never triggers
// TTS (§4.3 invariant) — that policy lives in the caller (C8's SayDynamic).
func (c *Cache) GetDynamic(text string) ([]byte, bool) {
	key := HashText(text)
	c.mu.Lock()
	defer c.mu.Unlock()
	pcm, ok := c.dynamic[key]
	return pcm, ok
}

// PutDynamic inserts the PCM produced for text. If the dynamic store is at
// capacity, the oldest-inserted entry is evicted first (FIFO, not LRU —
// access never refreshes position, per §3/§9).
func (c *Cache) PutDynamic(text string, pcm []byte) {
	if c.maxSize <= 0 {
		return
	}
	key := HashText(text)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.dynamic[key]; exists {
		// Re-inserting the same text updates the audio but must not move it
		// to the back of the eviction order — FIFO order is insertion order.
		c.dynamic[key] = pcm
		return
	}

	for len(c.dynamic) >= c.maxSize {
		oldest := c.order.Front()
		if oldest == nil {
			break
		}
		oldestKey := oldest.Value.(string)
		c.order.Remove(oldest)
		delete(c.elements, oldestKey)
		delete(c.dynamic, oldestKey)
	}

	c.dynamic[key] = pcm
	elem := c.order.PushBack(key)
	c.elements[key] = elem
}

// DynamicLen returns the current number of dynamic entries.
func (c *Cache) DynamicLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.dynamic)
}
