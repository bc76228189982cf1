package caching

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCacheEntryByteConservation(t *testing.T) {
	e := newCacheEntry()
	e.addEvent(NewRecord(1, "aa"))
	e.addEvent(NewRecord(2, "bb"))
	e.addAction(NewRecord(3, "ccc"))
	require.EqualValues(t, 7, e.totalBytesSnapshot())

	moved, ok := e.prepareSnapshot()
	require.True(t, ok)
	require.EqualValues(t, 7, moved)
	require.EqualValues(t, 0, e.totalBytesSnapshot())

	e.commitChunk() // nothing marked yet: no-op
	e.rollbackChunk()
	require.EqualValues(t, 7, e.totalBytesSnapshot())
}

func TestCacheEntryCommitOnlyRemovesMarked(t *testing.T) {
	e := newCacheEntry()
	e.addEvent(NewRecord(1, "e1"))
	e.addEvent(NewRecord(2, "e2"))
	e.addAction(NewRecord(3, "a1"))

	_, ok := e.prepareSnapshot()
	require.True(t, ok)

	// only mark the first event and then commit: actions must not be
	// touched because not all events were removed.
	e.eventsBeingSent.records[0].markedForSending = true
	e.commitChunk()

	require.Equal(t, 1, e.eventsBeingSent.len())
	require.Equal(t, 1, e.actionsBeingSent.len())
}

func TestEvictByNumberTiesFavorEvents(t *testing.T) {
	e := newCacheEntry()
	e.addEvent(NewRecord(10, "ev"))
	e.addAction(NewRecord(10, "ac"))

	count, bytes := e.evictByNumber(1)
	require.Equal(t, 1, count)
	require.EqualValues(t, 2, bytes)
	require.Equal(t, 1, e.events.len()+e.actions.len())
	require.Equal(t, 1, e.actions.len(), "the event (tie) should have been evicted, leaving the action")
}

func TestEvictByAgeStopsAtMinTimestamp(t *testing.T) {
	e := newCacheEntry()
	e.addEvent(NewRecord(1, "old1"))
	e.addEvent(NewRecord(5, "old2"))
	e.addEvent(NewRecord(10, "keep"))

	count, bytes := e.evictByAge(10)
	require.Equal(t, 2, count)
	require.EqualValues(t, 8, bytes)
	require.Equal(t, 1, e.events.len())
	rec, ok := e.events.peekFront()
	require.True(t, ok)
	require.Equal(t, "keep", rec.Data)
}

func TestPrepareSnapshotRejectsEmptyOrInFlight(t *testing.T) {
	e := newCacheEntry()
	_, ok := e.prepareSnapshot()
	require.False(t, ok, "an empty entry has nothing to snapshot")

	e.addEvent(NewRecord(1, "x"))
	_, ok = e.prepareSnapshot()
	require.True(t, ok)

	_, ok = e.prepareSnapshot()
	require.False(t, ok, "a second snapshot must not be allowed while one is in flight")
}
