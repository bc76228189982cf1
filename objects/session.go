package objects

import (
	"sync"
	"sync/atomic"

	"github.com/openkit-go/openkit/caching"
	"github.com/openkit-go/openkit/log"
	"github.com/openkit-go/openkit/protocol"
	"github.com/openkit-go/openkit/providers"
)

// Session is the concrete event producer for one logical session/split: it
// turns Enter/report/trace/end calls into encoded beacon fragments pushed
// into the shared cache under its BeaconKey. It satisfies
// communication.ManagedSession by method shape alone, without naming that
// interface.
type Session struct {
	l      log.Logger
	cache  *caching.BeaconCache
	key    caching.BeaconKey
	clock  providers.TimingProvider
	thread providers.ThreadIDProvider

	clientIP string

	mu                  sync.Mutex
	configured          bool
	finished            bool
	serverCfg           protocol.ServerConfig
	userTag             string
	topLevelActionCount int32
	lastInteractionTime int64
	startTime           int64
	onConfigured        func(protocol.ServerConfig)

	seq     int32
	actionID int32
	actions *Composite
}

// NewSession constructs a Session bound to key, ready to accept calls.
// initialServerConfig, when non-nil, is applied immediately (the split-off
// child of an already-configured session never needs its own new-session
// handshake); a nil value leaves the session unconfigured.
func NewSession(l log.Logger, cache *caching.BeaconCache, key caching.BeaconKey, clock providers.TimingProvider, thread providers.ThreadIDProvider, clientIP string, initialServerConfig *protocol.ServerConfig) *Session {
	s := &Session{
		l:         l.Named("Session"),
		cache:     cache,
		key:       key,
		clock:     clock,
		thread:    thread,
		clientIP:  clientIP,
		serverCfg: protocol.DefaultServerConfig(),
		actions:   NewComposite(),
		startTime: clock.Now().UnixNano() / int64(1e6),
	}
	if initialServerConfig != nil {
		s.configured = true
		s.serverCfg = *initialServerConfig
	}
	s.recordSessionStart()
	return s
}

func (s *Session) nextSeq() int32 {
	return atomic.AddInt32(&s.seq, 1)
}

func (s *Session) nowMs() int64 {
	return s.clock.Now().UnixNano() / int64(1e6)
}

func (s *Session) recordSessionStart() {
	frag := protocol.EncodeSessionStart(s.startTime, s.nextSeq())
	s.cache.AddEvent(s.key, caching.NewRecord(s.startTime, frag))
}

// BeaconKey identifies this session's cache bucket.
func (s *Session) BeaconKey() caching.BeaconKey { return s.key }

// IsConfigured reports whether a server configuration has been applied
// (directly, or because the session was split off from an already
// configured one).
func (s *Session) IsConfigured() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.configured
}

// IsFinished reports whether End has been called.
func (s *Session) IsFinished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finished
}

// SetOnConfigured installs a callback invoked every time ApplyServerConfig
// runs on this session, after the session's own state has been updated. The
// owning SessionProxy uses this to learn about server configs the sender
// applies directly to the session it tracks, without the sender needing to
// know proxies exist.
func (s *Session) SetOnConfigured(fn func(protocol.ServerConfig)) {
	s.mu.Lock()
	s.onConfigured = fn
	s.mu.Unlock()
}

// ApplyServerConfig merges a server response into this session's
// configuration, marks it configured, and notifies the callback installed
// via SetOnConfigured, if any.
func (s *Session) ApplyServerConfig(cfg protocol.ServerConfig) {
	s.mu.Lock()
	s.serverCfg = s.serverCfg.Merge(cfg)
	s.configured = true
	hook := s.onConfigured
	s.mu.Unlock()

	if hook != nil {
		hook(cfg)
	}
}

// ClearCapturedData discards every buffered record for this session
// (invoked when the server turns capturing off).
func (s *Session) ClearCapturedData() {
	s.cache.DeleteCacheEntry(s.key)
}

// ClientIP returns the IP address recorded at session creation.
func (s *Session) ClientIP() string { return s.clientIP }

// End marks the session finished and records a session-end fragment. It is
// idempotent.
func (s *Session) End() {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return
	}
	s.finished = true
	s.mu.Unlock()

	ts := s.nowMs()
	frag := protocol.EncodeSessionEnd(ts, s.nextSeq())
	s.cache.AddEvent(s.key, caching.NewRecord(ts, frag))
	s.l.Debugw("session ended", "key", s.key.String())
}

// ServerConfig returns a snapshot of the session's current server
// configuration.
func (s *Session) ServerConfig() protocol.ServerConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serverCfg
}

// TopLevelActionCount returns how many top-level actions have been opened.
func (s *Session) TopLevelActionCount() int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.topLevelActionCount
}

// LastInteractionTime returns the millisecond timestamp of the most recent
// top-level interaction (action, identify-user, crash, or web request).
func (s *Session) LastInteractionTime() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastInteractionTime
}

func (s *Session) touch(ts int64) {
	s.mu.Lock()
	s.lastInteractionTime = ts
	s.mu.Unlock()
}

// Action is a started-but-not-yet-ended top-level action.
type Action struct {
	session   *Session
	id        int32
	name      string
	startTime int64
	startSeq  int32
	handle    NodeHandle
	ended     bool
}

// EnterAction starts a new top-level action and returns a handle used to
// close it.
func (s *Session) EnterAction(name string) *Action {
	s.mu.Lock()
	s.topLevelActionCount++
	id := atomic.AddInt32(&s.actionID, 1)
	s.mu.Unlock()

	ts := s.nowMs()
	s.touch(ts)
	return &Action{
		session:   s,
		id:        id,
		name:      name,
		startTime: ts,
		startSeq:  s.nextSeq(),
		handle:    s.actions.Open(),
	}
}

// End closes the action, recording it to the cache. Idempotent.
func (a *Action) End() {
	if a.ended {
		return
	}
	a.ended = true
	a.session.actions.Close(a.handle)

	ts := a.session.nowMs()
	frag := protocol.EncodeAction(a.id, 0, a.name, a.startTime, ts, a.startSeq, a.session.nextSeq())
	a.session.cache.AddAction(a.session.key, caching.NewRecord(a.startTime, frag))
}

// ReportValueString records a string value event on the session's
// top-level beacon stream.
func (s *Session) ReportValueString(actionID int32, name, value string) {
	ts := s.nowMs()
	frag := protocol.EncodeValueString(actionID, name, value, ts, s.nextSeq())
	s.cache.AddEvent(s.key, caching.NewRecord(ts, frag))
}

// IdentifyUser tags the session with a user identifier, recorded as an
// identify-user event. Re-identifying replaces the stored tag, which a
// split re-applies to the new session (spec.md §4.5).
func (s *Session) IdentifyUser(userTag string) {
	s.mu.Lock()
	s.userTag = userTag
	s.mu.Unlock()

	ts := s.nowMs()
	frag := protocol.EncodeIdentifyUser(userTag, ts, s.nextSeq())
	s.cache.AddEvent(s.key, caching.NewRecord(ts, frag))
	s.touch(ts)
}

// UserTag returns the last tag passed to IdentifyUser, or "" if none was
// ever set.
func (s *Session) UserTag() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userTag
}

// ReportCrash records an application crash event. It does nothing else to
// the session; SessionProxy.ReportCrash is what schedules the forced close
// with the watchdog.
func (s *Session) ReportCrash(errorName, reason, stacktrace string) {
	ts := s.nowMs()
	frag := protocol.EncodeCrash(errorName, reason, stacktrace, ts, s.nextSeq())
	s.cache.AddEvent(s.key, caching.NewRecord(ts, frag))
	s.touch(ts)
}

// TraceWebRequest records a completed web request trace.
func (s *Session) TraceWebRequest(url string, responseCode int32, bytesSent, bytesReceived, startTime, endTime int64) {
	startSeq := s.nextSeq()
	endSeq := s.nextSeq()
	frag := protocol.EncodeWebRequest(0, url, responseCode, bytesSent, bytesReceived, startTime, endTime, startSeq, endSeq)
	s.cache.AddEvent(s.key, caching.NewRecord(startTime, frag))
	s.touch(endTime)
}

// HasOpenChildObjects reports whether any action is still open.
func (s *Session) HasOpenChildObjects() bool {
	return !s.actions.IsEmpty()
}
