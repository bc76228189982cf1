package caching

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openkit-go/openkit/log"
)

func testCache(t *testing.T) *BeaconCache {
	t.Helper()
	return NewBeaconCache(log.NewDefault())
}

// S1: basic send. add two records, snapshot, build one chunk, commit.
func TestBasicSendScenario(t *testing.T) {
	c := testCache(t)
	key := NewBeaconKey(7, 0)

	c.AddEvent(key, NewRecord(100, "e1"))
	c.AddAction(key, NewRecord(101, "a1"))
	require.EqualValues(t, 4, c.NumBytesInCache())

	handle, ok := c.PrepareChunkSnapshot(key)
	require.True(t, ok)

	chunk := handle.NextChunk("PFX", 1024, "&")
	require.Equal(t, "PFX&e1&a1", chunk)

	handle.CommitChunk()

	require.True(t, c.IsEmpty(key))
	require.EqualValues(t, 0, c.NumBytesInCache())

	// a second NextChunk call after everything was committed returns "".
	require.Equal(t, "", handle.NextChunk("PFX", 1024, "&"))
}

// S2: 429 rollback restores exact order and byte totals.
func TestRollbackRestoresOrderAndBytes(t *testing.T) {
	c := testCache(t)
	key := NewBeaconKey(7, 0)

	c.AddEvent(key, NewRecord(100, "e1"))
	c.AddAction(key, NewRecord(101, "a1"))

	handle, ok := c.PrepareChunkSnapshot(key)
	require.True(t, ok)
	_ = handle.NextChunk("PFX", 1024, "&")

	handle.RollbackChunk()

	require.False(t, c.IsEmpty(key))
	require.EqualValues(t, 4, c.NumBytesInCache())

	// the active lists must again be exactly the pre-snapshot contents, in order.
	handle2, ok := c.PrepareChunkSnapshot(key)
	require.True(t, ok)
	chunk := handle2.NextChunk("", 1024, "&")
	require.Equal(t, "&e1&a1", chunk)
}

func TestPrepareChunkSnapshotUnknownKeyOrAlreadyInFlight(t *testing.T) {
	c := testCache(t)
	key := NewBeaconKey(1, 0)

	_, ok := c.PrepareChunkSnapshot(key)
	require.False(t, ok, "unknown key must yield no handle")

	c.AddEvent(key, NewRecord(1, "x"))
	h1, ok := c.PrepareChunkSnapshot(key)
	require.True(t, ok)

	_, ok = c.PrepareChunkSnapshot(key)
	require.False(t, ok, "a second snapshot must not be allowed while one is in flight")

	h1.RollbackChunk()
}

func TestNextChunkExactlyPrefixWhenMaxEqualsPrefixLen(t *testing.T) {
	c := testCache(t)
	key := NewBeaconKey(1, 0)
	c.AddEvent(key, NewRecord(1, "abcdef"))

	handle, ok := c.PrepareChunkSnapshot(key)
	require.True(t, ok)

	chunk := handle.NextChunk("PFX", len("PFX"), "&")
	require.Equal(t, "PFX", chunk)
}

func TestDeleteCacheEntry(t *testing.T) {
	c := testCache(t)
	key := NewBeaconKey(1, 0)
	c.AddEvent(key, NewRecord(1, "abc"))
	require.EqualValues(t, 3, c.NumBytesInCache())

	c.DeleteCacheEntry(key)
	require.EqualValues(t, 0, c.NumBytesInCache())
	require.True(t, c.IsEmpty(key))

	// deleting an unknown key is a no-op, not a panic.
	c.DeleteCacheEntry(NewBeaconKey(99, 0))
}

// S4: eviction by size converges to at-or-below the lower bound and keeps
// the most recent records.
func TestEvictByNumberKeepsMostRecent(t *testing.T) {
	c := testCache(t)
	key := NewBeaconKey(1, 0)
	for i := 0; i < 10; i++ {
		c.AddEvent(key, NewRecord(int64(i), "12345678901234"+string(rune('0'+i)))) // 15 bytes
	}
	require.EqualValues(t, 150, c.NumBytesInCache())

	var removed int
	for c.NumBytesInCache() > 50 {
		removed += c.EvictByNumber(key, 1)
	}
	require.GreaterOrEqual(t, removed, 7)
	require.LessOrEqual(t, c.NumBytesInCache(), int64(50))

	handle, ok := c.PrepareChunkSnapshot(key)
	require.True(t, ok)
	chunk := handle.NextChunk("", 10000, "|")
	require.Equal(t, "|123456789012347|123456789012348|123456789012349", chunk)
}

func TestEvictionNeverTouchesInFlightSnapshot(t *testing.T) {
	c := testCache(t)
	key := NewBeaconKey(1, 0)
	c.AddEvent(key, NewRecord(1, "old"))
	c.AddEvent(key, NewRecord(1000, "new"))

	handle, ok := c.PrepareChunkSnapshot(key)
	require.True(t, ok)

	// new records land in the active list, not the snapshot.
	c.AddEvent(key, NewRecord(2000, "concurrent"))

	removedAge := c.EvictByAge(key, 5000)
	removedNum := c.EvictByNumber(key, 10)
	require.Zero(t, removedAge+removedNum, "in-flight records must never be evicted")

	chunk := handle.NextChunk("", 10000, "|")
	require.Contains(t, chunk, "old")
	require.Contains(t, chunk, "new")
	require.NotContains(t, chunk, "concurrent")
}

func TestPrepareThenRollbackIsNoOpOnTotals(t *testing.T) {
	c := testCache(t)
	key := NewBeaconKey(1, 0)
	c.AddEvent(key, NewRecord(1, "abc"))
	c.AddAction(key, NewRecord(2, "de"))

	before := c.NumBytesInCache()
	handle, ok := c.PrepareChunkSnapshot(key)
	require.True(t, ok)
	handle.RollbackChunk()

	require.Equal(t, before, c.NumBytesInCache())
}
