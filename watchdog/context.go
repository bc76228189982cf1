// Package watchdog implements the session watchdog: a single background
// worker that force-closes sessions once their post-crash/post-split grace
// period elapses, and splits still-open sessions once their configured
// max-duration or idle-timeout deadline is reached. The interruptible-sleep
// idiom (a stop channel raced against a timer, woken early when a new,
// earlier deadline is registered) is grounded in the teacher's beacon
// ticker.
package watchdog

import (
	"sync"
	"time"

	"github.com/openkit-go/openkit/caching"
	"github.com/openkit-go/openkit/log"
	"github.com/openkit-go/openkit/providers"
)

// ClosableSession is the surface the watchdog needs to force-close a
// session once its grace period elapses.
type ClosableSession interface {
	BeaconKey() caching.BeaconKey
	IsFinished() bool
	End()
}

// SplittableSession is the surface the watchdog needs to split a session
// once its time-based deadline is reached. SplitSessionByTime performs the
// split (if one is still warranted) and returns the next deadline to wait
// for; ok is false if the proxy has no further splitting to do (e.g. it has
// since finished).
type SplittableSession interface {
	BeaconKey() caching.BeaconKey
	SplitSessionByTime(now time.Time) (next time.Time, ok bool)
}

type closingEntry struct {
	session  ClosableSession
	deadline time.Time
}

type splittingEntry struct {
	session  SplittableSession
	deadline time.Time
}

// SessionWatchdogContext owns the closing queue and the splitting queue.
type SessionWatchdogContext struct {
	mu        sync.Mutex
	closing   map[caching.BeaconKey]closingEntry
	splitting map[caching.BeaconKey]splittingEntry

	clock providers.TimingProvider
	l     log.Logger

	wakeMu sync.Mutex
	wake   chan struct{}

	stop chan struct{}
	done chan struct{}

	idlePeriod time.Duration
}

// NewSessionWatchdogContext constructs an empty watchdog context. idlePeriod
// bounds how long the loop sleeps when neither queue has a pending entry.
func NewSessionWatchdogContext(clock providers.TimingProvider, l log.Logger, idlePeriod time.Duration) *SessionWatchdogContext {
	return &SessionWatchdogContext{
		closing:    make(map[caching.BeaconKey]closingEntry),
		splitting:  make(map[caching.BeaconKey]splittingEntry),
		clock:      clock,
		l:          l.Named("SessionWatchdog"),
		wake:       make(chan struct{}),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
		idlePeriod: idlePeriod,
	}
}

func (w *SessionWatchdogContext) notify() {
	w.wakeMu.Lock()
	defer w.wakeMu.Unlock()
	close(w.wake)
	w.wake = make(chan struct{})
}

func (w *SessionWatchdogContext) subscribe() <-chan struct{} {
	w.wakeMu.Lock()
	defer w.wakeMu.Unlock()
	return w.wake
}

// CloseOrEnqueueForClosing either ends session immediately (already
// finished, or a zero grace period) or schedules it to be force-closed once
// gracePeriod elapses — giving a crashed or split-away session one last
// window to flush naturally before the watchdog steps in.
func (w *SessionWatchdogContext) CloseOrEnqueueForClosing(session ClosableSession, gracePeriod time.Duration) {
	if session.IsFinished() || gracePeriod <= 0 {
		session.End()
		return
	}
	deadline := w.clock.Now().Add(gracePeriod)
	w.mu.Lock()
	w.closing[session.BeaconKey()] = closingEntry{session: session, deadline: deadline}
	w.mu.Unlock()
	w.notify()
}

// DequeueFromClosing removes key from the closing queue, e.g. because the
// session finished on its own before the grace period elapsed.
func (w *SessionWatchdogContext) DequeueFromClosing(key caching.BeaconKey) {
	w.mu.Lock()
	delete(w.closing, key)
	w.mu.Unlock()
}

// AddToSplitByTime schedules session to be split when now reaches deadline.
func (w *SessionWatchdogContext) AddToSplitByTime(session SplittableSession, deadline time.Time) {
	w.mu.Lock()
	w.splitting[session.BeaconKey()] = splittingEntry{session: session, deadline: deadline}
	w.mu.Unlock()
	w.notify()
}

// RemoveFromSplitByTime stops tracking key for time-based splitting.
func (w *SessionWatchdogContext) RemoveFromSplitByTime(key caching.BeaconKey) {
	w.mu.Lock()
	delete(w.splitting, key)
	w.mu.Unlock()
}

// ClosingQueueLen and SplittingQueueLen are test/diagnostic helpers.
func (w *SessionWatchdogContext) ClosingQueueLen() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.closing)
}

func (w *SessionWatchdogContext) SplittingQueueLen() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.splitting)
}
