package caching

// Record is an immutable (outside the marked-for-sending flag) unit of
// beacon payload data: one pre-encoded event or action fragment and the
// timestamp it was produced at. Timestamps are opaque but totally ordered
// within a session; they are supplied by a providers.TimingProvider at the
// call site, not generated here.
type Record struct {
	Timestamp int64
	Data      string

	// markedForSending is only ever mutated while the record is owned by a
	// chunking snapshot (i.e. sitting in an *_being_sent list).
	markedForSending bool
}

// NewRecord builds a Record. size is derived from Data, matching the
// original's "rough estimation" comment: it's the length of the encoded
// fragment, nothing more.
func NewRecord(timestamp int64, data string) Record {
	return Record{Timestamp: timestamp, Data: data}
}

// SizeInBytes is the number of bytes this record contributes to its entry's
// and the cache's running totals.
func (r Record) SizeInBytes() int64 {
	return int64(len(r.Data))
}
