// Package caching implements the beacon cache: a thread-safe, per-session
// payload store with size/age eviction and a chunking protocol used by the
// sender to hand out transmission-sized slices while guaranteeing
// at-most-once delivery under crash-free operation and at-least-once
// re-queueing on send failure.
//
// Locking discipline mirrors the teacher's chainStore: the entry map uses a
// reader-writer lock (read for lookup on the hot insertion path, write only
// for create/delete); each entry guards its own lists with a private mutex.
// Acquisition order is always global-map-lock then entry-lock, and no
// operation holds the global lock while doing I/O.
package caching

import (
	"sync"
	"sync/atomic"

	"github.com/openkit-go/openkit/log"
)

// BeaconCache is the global, per-BeaconKey payload store.
type BeaconCache struct {
	mu      sync.RWMutex
	entries map[BeaconKey]*CacheEntry

	// globalBytes is advisory: it is updated outside any entry lock, so it
	// may transiently disagree with the sum of per-entry totals during a
	// concurrent mutation, but converges to the true sum at quiescence.
	globalBytes atomic.Int64

	l log.Logger

	// wake is closed-and-replaced to notify a single evictor subscriber that
	// the cache changed, instead of iterating an observer list.
	wakeMu sync.Mutex
	wake   chan struct{}
}

// NewBeaconCache constructs an empty cache.
func NewBeaconCache(l log.Logger) *BeaconCache {
	return &BeaconCache{
		entries: make(map[BeaconKey]*CacheEntry),
		l:       l.Named("BeaconCache"),
		wake:    make(chan struct{}),
	}
}

// Subscribe returns a channel that is closed the next time the cache is
// mutated by an Add* call. There is exactly one logical subscriber (the
// evictor); calling Subscribe again replaces nothing, it simply hands back
// the channel that is current at that moment (the same one until the next
// mutation closes it).
func (c *BeaconCache) Subscribe() <-chan struct{} {
	c.wakeMu.Lock()
	defer c.wakeMu.Unlock()
	return c.wake
}

func (c *BeaconCache) notify() {
	c.wakeMu.Lock()
	defer c.wakeMu.Unlock()
	close(c.wake)
	c.wake = make(chan struct{})
}

func (c *BeaconCache) getOrCreateEntry(key BeaconKey) *CacheEntry {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return e
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok = c.entries[key]
	if ok {
		return e
	}
	e = newCacheEntry()
	c.entries[key] = e
	return e
}

// AddEvent appends an event record to key's bucket, creating the bucket if
// necessary.
func (c *BeaconCache) AddEvent(key BeaconKey, r Record) {
	e := c.getOrCreateEntry(key)
	e.addEvent(r)
	c.globalBytes.Add(r.SizeInBytes())
	c.notify()
}

// AddAction appends an action record to key's bucket, creating the bucket if
// necessary.
func (c *BeaconCache) AddAction(key BeaconKey, r Record) {
	e := c.getOrCreateEntry(key)
	e.addAction(r)
	c.globalBytes.Add(r.SizeInBytes())
	c.notify()
}

// DeleteCacheEntry atomically removes key's bucket and subtracts its entire
// total from the global counter.
func (c *BeaconCache) DeleteCacheEntry(key BeaconKey) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if ok {
		delete(c.entries, key)
	}
	c.mu.Unlock()

	if !ok {
		return
	}
	total := e.totalBytesSnapshot()
	c.globalBytes.Add(-total)
}

// ChunkHandle represents an in-flight chunking snapshot for one BeaconKey.
type ChunkHandle struct {
	cache *BeaconCache
	key   BeaconKey
	entry *CacheEntry
}

// PrepareChunkSnapshot moves key's active records into its *_being_sent
// lists and returns a handle to drive NextChunk/CommitChunk/RollbackChunk.
// It returns ok=false for an unknown key, an empty bucket, or a bucket that
// already has a snapshot in flight.
func (c *BeaconCache) PrepareChunkSnapshot(key BeaconKey) (handle *ChunkHandle, ok bool) {
	c.mu.RLock()
	e, exists := c.entries[key]
	c.mu.RUnlock()
	if !exists {
		return nil, false
	}

	moved, snapshotted := e.prepareSnapshot()
	if !snapshotted {
		return nil, false
	}
	c.globalBytes.Add(-moved)
	return &ChunkHandle{cache: c, key: key, entry: e}, true
}

// NextChunk builds the next transmission-sized chunk from the snapshot,
// marking included records for sending. Returns "" once the snapshot is
// exhausted (which also ends the snapshot).
func (h *ChunkHandle) NextChunk(prefix string, maxBytes int, delimiter string) string {
	return h.entry.nextChunk(prefix, maxBytes, delimiter)
}

// CommitChunk drops every record marked for sending from the snapshot.
func (h *ChunkHandle) CommitChunk() {
	h.entry.commitChunk()
}

// RollbackChunk restores the remaining snapshot records to the head of
// their active lists and returns their bytes to the global counter.
func (h *ChunkHandle) RollbackChunk() {
	restored := h.entry.rollbackChunk()
	h.cache.globalBytes.Add(restored)
}

// EvictByAge drops, from key's active lists, every record older than
// minTimestamp. Records in an in-flight snapshot are untouched.
func (c *BeaconCache) EvictByAge(key BeaconKey, minTimestamp int64) int {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return 0
	}
	count, bytes := e.evictByAge(minTimestamp)
	if bytes != 0 {
		c.globalBytes.Add(-bytes)
	}
	return count
}

// EvictByNumber drops up to n oldest active records from key's bucket.
// Records in an in-flight snapshot are untouched.
func (c *BeaconCache) EvictByNumber(key BeaconKey, n int) int {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return 0
	}
	count, bytes := e.evictByNumber(n)
	if bytes != 0 {
		c.globalBytes.Add(-bytes)
	}
	return count
}

// GetBeaconKeys returns a snapshot of the keys currently present.
func (c *BeaconCache) GetBeaconKeys() []BeaconKey {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]BeaconKey, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	return keys
}

// IsEmpty reports whether key's bucket has no active records. An unknown key
// counts as empty.
func (c *BeaconCache) IsEmpty(key BeaconKey) bool {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return true
	}
	return e.isEmpty()
}

// NumBytesInCache returns the cache-wide byte counter.
func (c *BeaconCache) NumBytesInCache() int64 {
	return c.globalBytes.Load()
}
