package caching

import (
	"context"
	"sort"
	"time"

	"github.com/openkit-go/openkit/log"
	"github.com/openkit-go/openkit/providers"
)

// EvictorConfig bounds the two eviction strategies. Space-based eviction is
// a no-op when LowerBound <= 0, UpperBound <= 0, or UpperBound < LowerBound;
// age-based eviction is a no-op when MaxRecordAge <= 0.
type EvictorConfig struct {
	MaxRecordAge time.Duration
	LowerBound   int64
	UpperBound   int64
}

func (c EvictorConfig) spaceEvictionDisabled() bool {
	return c.LowerBound <= 0 || c.UpperBound <= 0 || c.UpperBound < c.LowerBound
}

// Evictor is the background worker applying time-based then space-based
// eviction against a BeaconCache. It is the unique component allowed to
// issue Evict* calls: instrumentation and the sender never evict.
type Evictor struct {
	cache  *BeaconCache
	cfg    EvictorConfig
	clock  providers.TimingProvider
	l      log.Logger
	period time.Duration

	stop chan struct{}
	done chan struct{}
}

// NewEvictor constructs an Evictor. period is how often a pass runs absent
// any wake-up from the cache (mirrors the chainStore aggregator's idiom of
// waking on either an external signal or a timeout).
func NewEvictor(cache *BeaconCache, cfg EvictorConfig, clock providers.TimingProvider, l log.Logger, period time.Duration) *Evictor {
	return &Evictor{
		cache:  cache,
		cfg:    cfg,
		clock:  clock,
		l:      l.Named("Evictor"),
		period: period,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start runs the evictor loop on a new goroutine.
func (e *Evictor) Start(ctx context.Context) {
	go e.run(ctx)
}

// Stop requests shutdown and blocks until the loop has exited.
func (e *Evictor) Stop() {
	close(e.stop)
	<-e.done
}

func (e *Evictor) run(ctx context.Context) {
	defer close(e.done)
	wake := e.cache.Subscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stop:
			return
		case <-wake:
			wake = e.cache.Subscribe()
		case <-e.clock.After(e.period):
		}
		e.runPass()
	}
}

func (e *Evictor) runPass() {
	e.evictByAge()
	e.evictBySpace()
}

func (e *Evictor) evictByAge() {
	if e.cfg.MaxRecordAge <= 0 {
		return
	}
	threshold := e.clock.Now().Add(-e.cfg.MaxRecordAge).UnixMilli()
	for _, key := range e.cache.GetBeaconKeys() {
		removed := e.cache.EvictByAge(key, threshold)
		if removed > 0 {
			e.l.Debugw("evicted by age", "key", key.String(), "removed", removed)
		}
	}
}

func (e *Evictor) evictBySpace() {
	if e.cfg.spaceEvictionDisabled() || e.cache.NumBytesInCache() <= e.cfg.UpperBound {
		return
	}
	for e.cache.NumBytesInCache() > e.cfg.LowerBound {
		select {
		case <-e.stop:
			return
		default:
		}

		keys := e.cache.GetBeaconKeys()
		sort.Slice(keys, func(i, j int) bool {
			if keys[i].BeaconID != keys[j].BeaconID {
				return keys[i].BeaconID < keys[j].BeaconID
			}
			return keys[i].SequenceNumber < keys[j].SequenceNumber
		})

		removedAny := false
		for _, key := range keys {
			if e.cache.NumBytesInCache() <= e.cfg.LowerBound {
				return
			}
			if e.cache.EvictByNumber(key, 1) > 0 {
				removedAny = true
			}
		}
		if !removedAny {
			// nothing left to evict anywhere; avoid spinning.
			return
		}
	}
}
