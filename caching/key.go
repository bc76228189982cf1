package caching

import "fmt"

// BeaconKey identifies one session's payload bucket in the cache. Sessions
// split from the same logical session share BeaconID but differ in
// SequenceNumber. It is a plain comparable struct so it can be used directly
// as a map key (structural equality/hashing, same as the original's
// BeaconKey::Hash).
type BeaconKey struct {
	BeaconID       int32
	SequenceNumber int32
}

// NewBeaconKey constructs a BeaconKey.
func NewBeaconKey(beaconID, sequenceNumber int32) BeaconKey {
	return BeaconKey{BeaconID: beaconID, SequenceNumber: sequenceNumber}
}

func (k BeaconKey) String() string {
	return fmt.Sprintf("%d/%d", k.BeaconID, k.SequenceNumber)
}
