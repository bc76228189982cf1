// Package communication implements the sender's finite-state machine: a
// single background worker driving Initial → CaptureOn ↔ CaptureOff →
// FlushSessions → Terminal, coordinating status polling, batched beacon
// transmission, retry/backoff with server-directed Retry-After, and
// graceful shutdown.
//
// The state machine is a tagged enum dispatched through a table, not
// virtual dispatch across state classes (spec.md §9 design note); shutdown
// handling is a pure function of the current state's kind, not a second
// virtual slot.
package communication

import (
	"sync"
	"time"

	"github.com/openkit-go/openkit/caching"
	"github.com/openkit-go/openkit/log"
	"github.com/openkit-go/openkit/protocol"
	"github.com/openkit-go/openkit/providers"
)

// StateKind names the sender's finite-state-machine states.
type StateKind int

const (
	StateInitial StateKind = iota
	StateCaptureOn
	StateCaptureOff
	StateFlushSessions
	StateTerminal
)

func (k StateKind) String() string {
	switch k {
	case StateInitial:
		return "Initial"
	case StateCaptureOn:
		return "CaptureOn"
	case StateCaptureOff:
		return "CaptureOff"
	case StateFlushSessions:
		return "FlushSessions"
	case StateTerminal:
		return "Terminal"
	default:
		return "Unknown"
	}
}

// SenderState is the sender's current state: a tag plus CaptureOff's
// optional explicit sleep override (set when the server directed a
// Retry-After delay).
type SenderState struct {
	Kind          StateKind
	SleepOverride *time.Duration
}

// IsTerminal reports whether the sender loop should stop.
func (s SenderState) IsTerminal() bool {
	return s.Kind == StateTerminal
}

func durPtr(d time.Duration) *time.Duration { return &d }

// shutdownState computes the state a shutdown request forces current into,
// per spec.md §4.3: Initial → Terminal; any other active state →
// FlushSessions; FlushSessions → Terminal.
func shutdownState(current StateKind) SenderState {
	switch current {
	case StateInitial, StateTerminal:
		return SenderState{Kind: StateTerminal}
	case StateFlushSessions:
		return SenderState{Kind: StateTerminal}
	default:
		return SenderState{Kind: StateFlushSessions}
	}
}

// Config bundles the static settings the sender needs that aren't part of
// the server-directed ServerConfig.
type Config struct {
	Endpoint                string
	AppID                   string
	Version                 string
	StatusCheckIntervalMs   int32 // default 2h, applied when CaptureOff has no explicit override
}

// SenderContext owns the set of live sessions and runs the sender's state
// transitions, issuing HTTP via an injected HTTPClientFactory.
type SenderContext struct {
	cfg           Config
	cache         *caching.BeaconCache
	clientFactory protocol.HTTPClientFactory
	clock         providers.TimingProvider
	l             log.Logger

	mu       sync.Mutex
	sessions map[caching.BeaconKey]ManagedSession
	server   protocol.ServerConfig

	captureEnabled bool

	lastOpenSessionSendTime time.Time
	lastStatusCheckTime     time.Time

	initFailureCount int

	shutdownOnce sync.Once
	shutdownCh   chan struct{}

	initDone   chan struct{}
	initDoneOk bool
	initOnce   sync.Once

	currentState SenderState
}

// NewSenderContext constructs a SenderContext in state Initial.
func NewSenderContext(cfg Config, cache *caching.BeaconCache, factory protocol.HTTPClientFactory, clock providers.TimingProvider, l log.Logger) *SenderContext {
	return &SenderContext{
		cfg:           cfg,
		cache:         cache,
		clientFactory: factory,
		clock:         clock,
		l:             l.Named("Sender"),
		sessions:      make(map[caching.BeaconKey]ManagedSession),
		server:        protocol.DefaultServerConfig(),
		captureEnabled: true,
		shutdownCh:    make(chan struct{}),
		initDone:      make(chan struct{}),
		currentState:  SenderState{Kind: StateInitial},
	}
}

// RegisterSession adds a session the sender should track.
func (c *SenderContext) RegisterSession(sess ManagedSession) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[sess.BeaconKey()] = sess
}

// RemoveSession stops tracking a session (it has been fully flushed or
// closed by the watchdog).
func (c *SenderContext) RemoveSession(key caching.BeaconKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, key)
}

func (c *SenderContext) sessionsMatching(pred func(ManagedSession) bool) []ManagedSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ManagedSession, 0, len(c.sessions))
	for _, s := range c.sessions {
		if pred(s) {
			out = append(out, s)
		}
	}
	return out
}

func (c *SenderContext) unconfiguredSessions() []ManagedSession {
	return c.sessionsMatching(func(s ManagedSession) bool { return !s.IsConfigured() })
}

func (c *SenderContext) finishedConfiguredSessions() []ManagedSession {
	return c.sessionsMatching(func(s ManagedSession) bool { return s.IsConfigured() && s.IsFinished() })
}

func (c *SenderContext) openConfiguredSessions() []ManagedSession {
	return c.sessionsMatching(func(s ManagedSession) bool { return s.IsConfigured() && !s.IsFinished() })
}

func (c *SenderContext) openSessions() []ManagedSession {
	return c.sessionsMatching(func(s ManagedSession) bool { return !s.IsFinished() })
}

func (c *SenderContext) clearAllSessionData() {
	c.mu.Lock()
	sessions := make([]ManagedSession, 0, len(c.sessions))
	for _, s := range c.sessions {
		sessions = append(sessions, s)
	}
	c.mu.Unlock()
	for _, s := range sessions {
		s.ClearCapturedData()
	}
}

// RequestShutdown signals every cancellation point in the sender loop.
// Idempotent.
func (c *SenderContext) RequestShutdown() {
	c.shutdownOnce.Do(func() { close(c.shutdownCh) })
}

// ShutdownRequested is a non-blocking check of the shutdown signal.
func (c *SenderContext) ShutdownRequested() bool {
	select {
	case <-c.shutdownCh:
		return true
	default:
		return false
	}
}

// sleep waits for d, waking early if shutdown is requested. Returns false
// if it was interrupted by shutdown.
func (c *SenderContext) sleep(d time.Duration) bool {
	if d <= 0 {
		return !c.ShutdownRequested()
	}
	timer := c.clock.After(d)
	select {
	case <-timer:
		return true
	case <-c.shutdownCh:
		return false
	}
}

func (c *SenderContext) setCaptureEnabled(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.captureEnabled = v
}

func (c *SenderContext) applyServerConfig(cfg protocol.ServerConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.server = cfg
	c.captureEnabled = cfg.Capture
}

func (c *SenderContext) serverConfig() protocol.ServerConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.server
}

func (c *SenderContext) sendInterval() time.Duration {
	return time.Duration(c.serverConfig().SendIntervalMs) * time.Millisecond
}

func (c *SenderContext) statusCheckInterval() time.Duration {
	if c.cfg.StatusCheckIntervalMs > 0 {
		return time.Duration(c.cfg.StatusCheckIntervalMs) * time.Millisecond
	}
	return 2 * time.Hour
}

// setLastOpenSessionBeaconSendTime records when open sessions were last
// flushed. The original C++ core has a documented bug here — it assigns to
// mLastStatusCheckTime instead of mLastOpenSessionBeaconSendTime
// (spec.md §9) — which this implementation deliberately does not
// replicate: it updates the correct field.
func (c *SenderContext) setLastOpenSessionBeaconSendTime(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastOpenSessionSendTime = t
}

func (c *SenderContext) getLastOpenSessionBeaconSendTime() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastOpenSessionSendTime
}

func (c *SenderContext) setLastStatusCheckTime(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastStatusCheckTime = t
}

func (c *SenderContext) getLastStatusCheckTime() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastStatusCheckTime
}

func (c *SenderContext) markInitCompleted(ok bool) {
	c.initOnce.Do(func() {
		c.initDoneOk = ok
		close(c.initDone)
	})
}

// WaitForInitCompletion blocks until the sender's Initial state finishes
// (successfully or not) or timeout elapses. Returns false on timeout or if
// shutdown happens before init completes.
func (c *SenderContext) WaitForInitCompletion(timeout time.Duration) bool {
	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timeoutCh = c.clock.After(timeout)
	}
	select {
	case <-c.initDone:
		return c.initDoneOk
	case <-c.shutdownCh:
		return false
	case <-timeoutCh:
		return false
	}
}

func (c *SenderContext) httpClient() (protocol.HTTPClient, error) {
	return c.clientFactory()
}

// Run drives the state machine to completion (Terminal). It is meant to be
// launched on its own goroutine by the facade.
func (c *SenderContext) Run() {
	for {
		executed := dispatch(c)
		if c.ShutdownRequested() {
			executed = shutdownState(c.currentState.Kind)
		}
		c.currentState = executed
		if c.currentState.IsTerminal() {
			c.markInitCompleted(c.initDoneOk)
			return
		}
	}
}

// CurrentStateKind reports the sender's current state, for diagnostics and
// tests.
func (c *SenderContext) CurrentStateKind() StateKind {
	return c.currentState.Kind
}

func dispatch(c *SenderContext) SenderState {
	switch c.currentState.Kind {
	case StateInitial:
		return executeInitial(c)
	case StateCaptureOn:
		return executeCaptureOn(c)
	case StateCaptureOff:
		return executeCaptureOff(c, c.currentState)
	case StateFlushSessions:
		return executeFlushSessions(c)
	default:
		return SenderState{Kind: StateTerminal}
	}
}
