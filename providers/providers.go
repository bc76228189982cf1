// Package providers holds the pure capability interfaces injected into every
// other component: a time source, a PRNG, and a thread-id source (the HTTP
// client factory lives in package protocol). None of them carry business
// logic; they exist so the rest
// of the core never touches a global (time.Now, math/rand's global source)
// directly and can be driven deterministically in tests.
package providers

import (
	"math/rand"
	"sync"

	"github.com/jonboulle/clockwork"
)

// TimingProvider is the sole source of wall-clock time and sleeping for the
// core. Production code uses clockwork.NewRealClock(); tests substitute
// clockwork.NewFakeClock() to drive background workers deterministically.
type TimingProvider = clockwork.Clock

// NewDefaultTimingProvider returns the real-clock provider used in production.
func NewDefaultTimingProvider() TimingProvider {
	return clockwork.NewRealClock()
}

// RandomProvider issues pseudo-random 63-bit non-negative integers, used for
// session ids and device ids when the host application doesn't supply one.
// It is safe for concurrent use.
type RandomProvider interface {
	NextInt63() int64
	// NextPercentage returns a value in [0, 100), used for multiplicity-based
	// sampling decisions.
	NextPercentage() int
}

type randomProvider struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRandomProvider returns a RandomProvider seeded from seed. Two providers
// built from the same seed produce the same sequence, which tests rely on
// for reproducing sampling decisions.
func NewRandomProvider(seed int64) RandomProvider {
	return &randomProvider{rnd: rand.New(rand.NewSource(seed))}
}

func (p *randomProvider) NextInt63() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rnd.Int63()
}

func (p *randomProvider) NextPercentage() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rnd.Intn(100)
}

// ThreadIDProvider stands in for the original C++ core's OS thread ids,
// which it surfaced for crash diagnostics (src/core/util/ThreadSurrogate.h).
// Go has no stable, cheap equivalent to a kernel thread id (goroutines are
// not pinned to OS threads and expose no public id), so ThreadIDProvider
// instead hands out a process-local monotonic counter: every call returns a
// new id, so two calls from the same caller never share one.
type ThreadIDProvider interface {
	CurrentThreadID() int64
}

type counterThreadIDProvider struct {
	next int64
	mu   sync.Mutex
}

// NewThreadIDProvider returns a ThreadIDProvider handing out a fresh id per call.
func NewThreadIDProvider() ThreadIDProvider {
	return &counterThreadIDProvider{}
}

func (p *counterThreadIDProvider) CurrentThreadID() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next++
	return p.next
}
