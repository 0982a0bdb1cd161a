package framecache

import (
	"image"
	"math"
	"sync"
)

const (
	// BucketsPerSecond sets the bucket width to a quarter second.
	BucketsPerSecond = 4
	// DefaultEvictBatch is how many entries one overflow evicts.
	DefaultEvictBatch = 32
)

// BucketOf returns the bucket index of a clip-local timestamp.
func BucketOf(ts float64) int {
	if ts <= 0 {
		return 0
	}
	return int(math.Floor(ts * BucketsPerSecond))
}

// Key identifies a cached frame.
type Key struct {
	Clip   string
	Bucket int
}

// Entry is one cached frame.
type Entry struct {
	Image *image.RGBA
	PTS   float64
	Size  int64
}

// Stats is a snapshot of the cache.
type Stats struct {
	Entries   int
	Bytes     int64
	Budget    int64
	Evictions int64
	Hits      int64
	Misses    int64
}

// Cache is the rolling scrub store.
type Cache struct {
	mu       sync.Mutex
	entries  map[Key]*Entry
	bytes    int64
	budget   int64
	batch    int
	playhead int
	observer Observer

	evictions    int64
	hits, misses int64
}

// Option configures a Cache.
type Option func(*Cache)

// WithEvictBatch sets the eviction batch size.
func WithEvictBatch(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.batch = n
		}
	}
}

// WithObserver reports statistics to o.
func WithObserver(o Observer) Option {
	return func(c *Cache) {
		if o != nil {
			c.observer = o
		}
	}
}

// New creates a cache holding at most budget bytes of pixels.
func New(budget int64, opts ...Option) *Cache {
	c := &Cache{
		entries:  make(map[Key]*Entry),
		budget:   max(budget, 0),
		batch:    DefaultEvictBatch,
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.observer.ObserveBudget(c.budget)
	return c
}

// SetPlayhead records the playhead position used to rank evictions.
func (c *Cache) SetPlayhead(ts float64) {
	c.mu.Lock()
	c.playhead = BucketOf(ts)
	c.mu.Unlock()
}

// Insert stores img for clip at ts, replacing any frame in the same bucket.
// It returns the number of entries evicted to make room. A frame larger
// than the whole budget is not stored.
func (c *Cache) Insert(clip string, ts float64, img *image.RGBA) int {
	if img == nil {
		return 0
	}
	size := int64(len(img.Pix))

	c.mu.Lock()
	defer c.mu.Unlock()
	if size > c.budget {
		return 0
	}

	key := Key{Clip: clip, Bucket: BucketOf(ts)}
	if old, ok := c.entries[key]; ok {
		c.bytes -= old.Size
		delete(c.entries, key)
	}

	evicted := 0
	for c.bytes+size > c.budget && len(c.entries) > 0 {
		evicted += c.evictLocked()
	}

	c.entries[key] = &Entry{Image: img, PTS: ts, Size: size}
	c.bytes += size

	if evicted > 0 {
		c.evictions += int64(evicted)
		c.observer.ObserveEvictions(evicted)
	}
	c.observer.ObserveSize(c.bytes, len(c.entries))
	return evicted
}

// evictLocked removes up to batch entries furthest from the playhead.
func (c *Cache) evictLocked() int {
	keys := make([]Key, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	n := min(c.batch, len(keys))
	selectFurthest(keys, n, c.playhead)
	for _, k := range keys[:n] {
		c.bytes -= c.entries[k].Size
		delete(c.entries, k)
	}
	return n
}

// Get returns the frame cached for clip in the bucket containing ts.
func (c *Cache) Get(clip string, ts float64) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[Key{Clip: clip, Bucket: BucketOf(ts)}]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	c.observer.ObserveLookup(ok)
	return e, ok
}

// Contains reports whether the bucket containing ts is cached, without
// counting as a lookup.
func (c *Cache) Contains(clip string, ts float64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[Key{Clip: clip, Bucket: BucketOf(ts)}]
	return ok
}

// RemoveClip drops every entry of clip and returns how many were removed.
func (c *Cache) RemoveClip(clip string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for k, e := range c.entries {
		if k.Clip == clip {
			c.bytes -= e.Size
			delete(c.entries, k)
			removed++
		}
	}
	c.observer.ObserveSize(c.bytes, len(c.entries))
	return removed
}

// Shed evicts entries furthest from the playhead until at most target
// bytes remain. It returns the number of entries removed.
func (c *Cache) Shed(target int64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for c.bytes > target && len(c.entries) > 0 {
		removed += c.evictLocked()
	}
	if removed > 0 {
		c.evictions += int64(removed)
		c.observer.ObserveEvictions(removed)
		c.observer.ObserveSize(c.bytes, len(c.entries))
	}
	return removed
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
	c.bytes = 0
	c.observer.ObserveSize(0, 0)
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Bytes returns the tracked byte total.
func (c *Cache) Bytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bytes
}

// Budget returns the configured byte budget.
func (c *Cache) Budget() int64 {
	return c.budget
}

// Stats returns a snapshot.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Entries:   len(c.entries),
		Bytes:     c.bytes,
		Budget:    c.budget,
		Evictions: c.evictions,
		Hits:      c.hits,
		Misses:    c.misses,
	}
}
