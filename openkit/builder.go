package openkit

import "time"

// Configuration is the minimal, code-only set of knobs the core actually
// consumes. It intentionally does not reproduce the original project's
// full fluent builder facade (device/OS/model metadata, consent, crash
// reporting toggles beyond what the server already controls) — that
// surface is a Non-goal; this struct covers only what CreateSession,
// the sender, the evictor, and the watchdog read.
type Configuration struct {
	Endpoint      string
	ApplicationID string
	ApplicationVersion string

	// RandomSeed seeds the session/beacon id PRNG. Zero uses a
	// time-derived seed.
	RandomSeed int64

	// CacheMaxRecordAge bounds how long a record may sit in the cache
	// before the evictor drops it regardless of space pressure.
	CacheMaxRecordAge time.Duration
	// CacheLowerBoundBytes/CacheUpperBoundBytes gate space-based eviction;
	// a non-positive bound on either disables it (spec.md §4.2).
	CacheLowerBoundBytes int64
	CacheUpperBoundBytes int64

	// StatusCheckInterval is CaptureOff's re-poll cadence absent a
	// server-directed Retry-After. Zero uses the 2h default.
	StatusCheckInterval time.Duration
	// InitTimeout bounds WaitForInitCompletion's default wait when the
	// caller passes zero.
	InitTimeout time.Duration
}

// DefaultConfiguration returns a Configuration with the same cache/evictor
// defaults the original project ships.
func DefaultConfiguration(endpoint, applicationID string) Configuration {
	return Configuration{
		Endpoint:             endpoint,
		ApplicationID:        applicationID,
		ApplicationVersion:   "1.0",
		CacheMaxRecordAge:    2 * time.Hour,
		CacheLowerBoundBytes: 80 * 1024,
		CacheUpperBoundBytes: 100 * 1024,
		InitTimeout:          10 * time.Second,
	}
}
