package communication

import "time"

// initialStateBackoffSequence is the bounded delay sequence used by the
// Initial state after a non-429 status-request failure (spec.md §4.3): the
// index advances on each failure and is capped at the last entry.
var initialStateBackoffSequence = []time.Duration{
	1 * time.Minute,
	5 * time.Minute,
	15 * time.Minute,
	1 * time.Hour,
	2 * time.Hour,
}

// nextInitialBackoff returns the delay for the given failure count (0-based)
// and the count to use next time, capping at the sequence's last entry.
func nextInitialBackoff(failureCount int) (delay time.Duration, nextCount int) {
	idx := failureCount
	if idx >= len(initialStateBackoffSequence) {
		idx = len(initialStateBackoffSequence) - 1
	}
	nextIdx := failureCount + 1
	if nextIdx > len(initialStateBackoffSequence)-1 {
		nextIdx = len(initialStateBackoffSequence) - 1
	}
	return initialStateBackoffSequence[idx], nextIdx
}
