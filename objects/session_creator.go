package objects

import (
	"sync"

	"github.com/openkit-go/openkit/caching"
	"github.com/openkit-go/openkit/log"
	"github.com/openkit-go/openkit/protocol"
	"github.com/openkit-go/openkit/providers"
)

// SessionCreator assigns BeaconKeys and constructs Sessions for one logical
// session lifetime: a fixed BeaconID (re-randomized only on Reset) paired
// with a sequence number that increments on every split.
type SessionCreator struct {
	mu sync.Mutex

	cache    *caching.BeaconCache
	clock    providers.TimingProvider
	thread   providers.ThreadIDProvider
	rnd      providers.RandomProvider
	l        log.Logger
	clientIP string

	beaconID       int32
	sequenceNumber int32
}

// NewSessionCreator constructs a SessionCreator with a freshly randomized
// BeaconID.
func NewSessionCreator(cache *caching.BeaconCache, clock providers.TimingProvider, thread providers.ThreadIDProvider, rnd providers.RandomProvider, l log.Logger, clientIP string) *SessionCreator {
	c := &SessionCreator{
		cache:    cache,
		clock:    clock,
		thread:   thread,
		rnd:      rnd,
		l:        l,
		clientIP: clientIP,
	}
	c.randomizeBeaconID()
	return c
}

func (c *SessionCreator) randomizeBeaconID() {
	c.beaconID = int32(c.rnd.NextInt63() & 0x7fffffff)
	c.sequenceNumber = 0
}

// CreateSession builds a new Session sharing this creator's BeaconID and
// the next sequence number. initialServerConfig, when non-nil, is applied
// immediately so the split-off session skips its own new-session handshake.
func (c *SessionCreator) CreateSession(initialServerConfig *protocol.ServerConfig) *Session {
	c.mu.Lock()
	key := caching.NewBeaconKey(c.beaconID, c.sequenceNumber)
	c.sequenceNumber++
	c.mu.Unlock()

	return NewSession(c.l, c.cache, key, c.clock, c.thread, c.clientIP, initialServerConfig)
}

// Reset starts a brand-new logical session identity: a new random BeaconID
// and sequence number zero (original_source ISessionCreator::reset).
// SessionProxy never calls it: splits keep the BeaconID.
func (c *SessionCreator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.randomizeBeaconID()
}
