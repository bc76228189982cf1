package caching

import "sync"

// recordQueue is a small FIFO over Record, append at tail / pop at head.
// It exists so CacheEntry's four lists share one set of primitives instead
// of reimplementing slice-splicing four times.
type recordQueue struct {
	records []Record
}

func (q *recordQueue) pushBack(r Record) {
	q.records = append(q.records, r)
}

func (q *recordQueue) len() int {
	return len(q.records)
}

func (q *recordQueue) peekFront() (Record, bool) {
	if len(q.records) == 0 {
		return Record{}, false
	}
	return q.records[0], true
}

// drainAll empties the queue and returns everything it held, in order.
func (q *recordQueue) drainAll() []Record {
	out := q.records
	q.records = nil
	return out
}

// prependAll splices recs (already in order) back onto the head of the queue.
func (q *recordQueue) prependAll(recs []Record) {
	if len(recs) == 0 {
		return
	}
	q.records = append(recs, q.records...)
}

// popFront removes and returns the head record.
func (q *recordQueue) popFront() (Record, bool) {
	if len(q.records) == 0 {
		return Record{}, false
	}
	r := q.records[0]
	q.records = q.records[1:]
	return r, true
}

// dropBefore removes every record with Timestamp < minTimestamp and returns
// how many were removed. Order is preserved.
func (q *recordQueue) dropBefore(minTimestamp int64) int {
	if len(q.records) == 0 {
		return 0
	}
	kept := q.records[:0:0]
	removed := 0
	for _, r := range q.records {
		if r.Timestamp < minTimestamp {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	q.records = kept
	return removed
}

// CacheEntry is the per-BeaconKey bucket: two active lists (events, actions),
// two in-flight snapshot lists, and a running byte total for the active
// lists only. All access goes through the entry's own mutex; entries never
// lock the cache's global map lock while held.
type CacheEntry struct {
	mu sync.Mutex

	events          recordQueue
	actions         recordQueue
	eventsBeingSent recordQueue
	actionsBeingSent recordQueue

	totalBytes int64
}

func newCacheEntry() *CacheEntry {
	return &CacheEntry{}
}

func (e *CacheEntry) addEvent(r Record) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events.pushBack(r)
	e.totalBytes += r.SizeInBytes()
}

func (e *CacheEntry) addAction(r Record) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.actions.pushBack(r)
	e.totalBytes += r.SizeInBytes()
}

// totalBytesSnapshot reads the entry's current active-list byte total.
func (e *CacheEntry) totalBytesSnapshot() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.totalBytes
}

func (e *CacheEntry) isEmpty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.events.len() == 0 && e.actions.len() == 0
}

// hasSnapshotInFlight reports whether a chunking snapshot is already open.
func (e *CacheEntry) hasSnapshotInFlight() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.eventsBeingSent.len() > 0 || e.actionsBeingSent.len() > 0
}

// prepareSnapshot moves the active lists into the *_being_sent lists and
// returns the number of bytes moved (to be subtracted from global_bytes by
// the caller, outside this entry's lock). ok is false if there was nothing
// to snapshot or a snapshot was already in flight.
func (e *CacheEntry) prepareSnapshot() (movedBytes int64, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.eventsBeingSent.len() > 0 || e.actionsBeingSent.len() > 0 {
		return 0, false
	}
	if e.events.len() == 0 && e.actions.len() == 0 {
		return 0, false
	}
	e.eventsBeingSent.records = e.events.drainAll()
	e.actionsBeingSent.records = e.actions.drainAll()
	moved := e.totalBytes
	e.totalBytes = 0
	return moved, true
}

// nextChunk greedily appends records from eventsBeingSent then
// actionsBeingSent into a chunk, stopping when the assembled length *before*
// appending the next record would exceed maxBytes. Each appended record is
// marked for sending. Returns the built chunk. If no records remain in
// either _being_sent list, both are cleared (ending the snapshot) and an
// empty string is returned.
func (e *CacheEntry) nextChunk(prefix string, maxBytes int, delimiter string) string {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.eventsBeingSent.len() == 0 && e.actionsBeingSent.len() == 0 {
		return ""
	}

	var b []byte
	b = append(b, prefix...)

	appendFrom := func(q *recordQueue) bool {
		for i := range q.records {
			rec := &q.records[i]
			if len(b)+len(delimiter)+len(rec.Data) > maxBytes && len(b) > 0 {
				return false
			}
			b = append(b, delimiter...)
			b = append(b, rec.Data...)
			rec.markedForSending = true
		}
		return true
	}
	if appendFrom(&e.eventsBeingSent) {
		appendFrom(&e.actionsBeingSent)
	}

	return string(b)
}

// commitChunk drops exactly the records in the *_being_sent lists whose
// markedForSending flag is set. Events are processed first; actions are
// only processed once every event has been removed, preserving the
// events-before-actions ordering guarantee.
func (e *CacheEntry) commitChunk() {
	e.mu.Lock()
	defer e.mu.Unlock()

	remaining := e.eventsBeingSent.records[:0:0]
	for _, r := range e.eventsBeingSent.records {
		if !r.markedForSending {
			remaining = append(remaining, r)
		}
	}
	e.eventsBeingSent.records = remaining

	if len(e.eventsBeingSent.records) == 0 {
		remaining = e.actionsBeingSent.records[:0:0]
		for _, r := range e.actionsBeingSent.records {
			if !r.markedForSending {
				remaining = append(remaining, r)
			}
		}
		e.actionsBeingSent.records = remaining
	}
}

// rollbackChunk clears markedForSending on everything still in the
// *_being_sent lists, splices them back to the head of the matching active
// list, and returns the number of bytes restored (to be added back to
// global_bytes by the caller).
func (e *CacheEntry) rollbackChunk() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	var restored int64
	for i := range e.eventsBeingSent.records {
		e.eventsBeingSent.records[i].markedForSending = false
		restored += e.eventsBeingSent.records[i].SizeInBytes()
	}
	for i := range e.actionsBeingSent.records {
		e.actionsBeingSent.records[i].markedForSending = false
		restored += e.actionsBeingSent.records[i].SizeInBytes()
	}

	e.events.prependAll(e.eventsBeingSent.drainAll())
	e.actions.prependAll(e.actionsBeingSent.drainAll())
	e.totalBytes += restored
	return restored
}

// evictByAge drops every record with Timestamp < minTimestamp from both
// active lists (never from the *_being_sent lists) and returns the number
// of bytes removed.
func (e *CacheEntry) evictByAge(minTimestamp int64) (removedCount int, removedBytes int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	removedCount, removedBytes = dropBeforeWithBytes(&e.events, minTimestamp)
	rc, rb := dropBeforeWithBytes(&e.actions, minTimestamp)
	removedCount += rc
	removedBytes += rb
	e.totalBytes -= removedBytes
	return removedCount, removedBytes
}

func dropBeforeWithBytes(q *recordQueue, minTimestamp int64) (count int, bytes int64) {
	if q.len() == 0 {
		return 0, 0
	}
	kept := q.records[:0:0]
	for _, r := range q.records {
		if r.Timestamp < minTimestamp {
			count++
			bytes += r.SizeInBytes()
			continue
		}
		kept = append(kept, r)
	}
	q.records = kept
	return count, bytes
}

// evictByNumber drops up to n oldest records from the active lists (never
// from *_being_sent), taking from whichever of events/actions has the older
// head; ties favor events. Returns the number and bytes removed.
func (e *CacheEntry) evictByNumber(n int) (removedCount int, removedBytes int64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for removedCount < n {
		ev, evOK := e.events.peekFront()
		ac, acOK := e.actions.peekFront()
		if !evOK && !acOK {
			break
		}

		var fromEvents bool
		switch {
		case evOK && !acOK:
			fromEvents = true
		case !evOK && acOK:
			fromEvents = false
		default:
			fromEvents = ev.Timestamp <= ac.Timestamp
		}

		var r Record
		if fromEvents {
			r, _ = e.events.popFront()
		} else {
			r, _ = e.actions.popFront()
		}
		removedCount++
		removedBytes += r.SizeInBytes()
	}
	e.totalBytes -= removedBytes
	return removedCount, removedBytes
}
