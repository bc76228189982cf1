package objects

import (
	"sync"
	"time"

	"github.com/openkit-go/openkit/caching"
	"github.com/openkit-go/openkit/communication"
	"github.com/openkit-go/openkit/log"
	"github.com/openkit-go/openkit/protocol"
	"github.com/openkit-go/openkit/watchdog"
)

// sessionRegistrar is the narrow slice of *communication.SenderContext a
// SessionProxy needs: registering/removing the session currently backing
// it. Declared locally (rather than importing the whole SenderContext
// type into call sites) purely for readability; *communication.SenderContext
// satisfies it directly.
type sessionRegistrar interface {
	RegisterSession(sess communication.ManagedSession)
	RemoveSession(key caching.BeaconKey)
}

// SessionProxy is the splitting facade handed to callers in place of a raw
// Session: it transparently swaps in a new underlying Session once the
// current one is split by event count or by elapsed time, and re-applies
// the active user tag to each successor (spec.md §4.5).
type SessionProxy struct {
	l        log.Logger
	creator  *SessionCreator
	sender   sessionRegistrar
	watchdog *watchdog.SessionWatchdogContext

	mu      sync.Mutex
	current *Session
	cfg     protocol.ServerConfig
	userTag string
	finished bool
}

// NewSessionProxy creates the proxy and its initial Session, registering
// that session with the sender.
func NewSessionProxy(l log.Logger, creator *SessionCreator, sender sessionRegistrar, wd *watchdog.SessionWatchdogContext) *SessionProxy {
	p := &SessionProxy{
		l:        l.Named("SessionProxy"),
		creator:  creator,
		sender:   sender,
		watchdog: wd,
		cfg:      protocol.DefaultServerConfig(),
	}
	p.current = creator.CreateSession(nil)
	p.current.SetOnConfigured(p.onSessionConfigured)
	sender.RegisterSession(p.current)
	return p
}

func (p *SessionProxy) activeSession() *Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// BeaconKey identifies the proxy's currently active split, for the
// watchdog's splitting-queue bookkeeping.
func (p *SessionProxy) BeaconKey() caching.BeaconKey {
	return p.activeSession().BeaconKey()
}

// IsFinished reports whether End has been called on the proxy.
func (p *SessionProxy) IsFinished() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.finished
}

// EnterAction starts a top-level action on the active split, splitting by
// event count first if the server-configured limit has been reached.
func (p *SessionProxy) EnterAction(name string) *Action {
	sess := p.sessionForNextEvent()
	return sess.EnterAction(name)
}

// IdentifyUser tags the active split and remembers the tag so future
// splits re-apply it immediately (original_source SessionProxy::reTagCurrentSession).
func (p *SessionProxy) IdentifyUser(userTag string) {
	p.mu.Lock()
	p.userTag = userTag
	p.mu.Unlock()
	p.activeSession().IdentifyUser(userTag)
}

// ReportCrash records the crash on the active split and asks the watchdog
// to force-close that split after one send interval — giving the sender a
// last chance to flush it normally first (spec.md §4.4).
func (p *SessionProxy) ReportCrash(errorName, reason, stacktrace string) {
	sess := p.activeSession()
	sess.ReportCrash(errorName, reason, stacktrace)

	grace := time.Duration(p.serverConfig().SendIntervalMs) * time.Millisecond
	p.watchdog.CloseOrEnqueueForClosing(sess, grace)
}

// TraceWebRequest records a web request trace on the active split.
func (p *SessionProxy) TraceWebRequest(url string, responseCode int32, bytesSent, bytesReceived, startTime, endTime int64) {
	p.activeSession().TraceWebRequest(url, responseCode, bytesSent, bytesReceived, startTime, endTime)
}

// End closes the proxy: the active split is ended and deregistered from
// both watchdog queues. It stays registered with the sender, which
// transmits it as a finished session and then drops it. Idempotent.
func (p *SessionProxy) End() {
	p.mu.Lock()
	if p.finished {
		p.mu.Unlock()
		return
	}
	p.finished = true
	sess := p.current
	p.mu.Unlock()

	p.watchdog.RemoveFromSplitByTime(sess.BeaconKey())
	p.watchdog.DequeueFromClosing(sess.BeaconKey())
	sess.End()
}

func (p *SessionProxy) serverConfig() protocol.ServerConfig {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg
}

// OnServerConfigurationUpdate applies a fresh server configuration to the
// proxy's active session. This is the path a caller that only holds a
// SessionProxy (never the underlying Session) uses to push a config through;
// it ends up at onSessionConfigured via the session's SetOnConfigured hook,
// same as a config the sender applies directly to the tracked Session.
func (p *SessionProxy) OnServerConfigurationUpdate(cfg protocol.ServerConfig) {
	p.activeSession().ApplyServerConfig(cfg)
}

// onSessionConfigured is the active session's SetOnConfigured callback: it
// merges the config into the proxy's own copy and, if the server now bounds
// session duration or idle timeout, (re-)enrolls the proxy in the watchdog's
// time-based splitting queue (spec.md §4.4 triggers 2 and 3). Registering the
// sender's tracked object — the Session, not the proxy — never reached this
// enrollment before; routing every ApplyServerConfig through this hook fixes
// that without changing what the sender tracks.
func (p *SessionProxy) onSessionConfigured(cfg protocol.ServerConfig) {
	p.mu.Lock()
	p.cfg = p.cfg.Merge(cfg)
	needsSplit := p.cfg.MaxSessionDurationMs > 0 || p.cfg.SessionTimeoutMs > 0
	sess := p.current
	p.mu.Unlock()

	if needsSplit {
		p.watchdog.AddToSplitByTime(p, p.nextSplitDeadline(sess))
	}
}

func (p *SessionProxy) nextSplitDeadline(sess *Session) time.Time {
	cfg := p.serverConfig()
	now := sess.clock.Now()
	candidate := now.Add(time.Hour * 24 * 365) // effectively unbounded default

	if cfg.MaxSessionDurationMs > 0 {
		start := time.Unix(0, sess.startTime*int64(time.Millisecond))
		byDuration := start.Add(time.Duration(cfg.MaxSessionDurationMs) * time.Millisecond)
		if byDuration.Before(candidate) {
			candidate = byDuration
		}
	}
	if cfg.SessionTimeoutMs > 0 {
		lastInteraction := time.Unix(0, sess.LastInteractionTime()*int64(time.Millisecond))
		byIdle := lastInteraction.Add(time.Duration(cfg.SessionTimeoutMs) * time.Millisecond)
		if byIdle.Before(candidate) {
			candidate = byIdle
		}
	}
	return candidate
}

// SplitSessionByTime implements watchdog.SplittableSession: it splits the
// active session if its time-based deadline has truly been reached (the
// deadline may have moved later, e.g. new interactions pushing the idle
// timeout out, since it was scheduled) and returns the next deadline to
// wait for. ok is false once the proxy has finished.
func (p *SessionProxy) SplitSessionByTime(now time.Time) (time.Time, bool) {
	if p.IsFinished() {
		return time.Time{}, false
	}

	sess := p.activeSession()
	deadline := p.nextSplitDeadline(sess)
	if now.Before(deadline) {
		return deadline, true
	}

	p.split(sess)
	return p.nextSplitDeadline(p.activeSession()), true
}

// sessionForNextEvent returns the split that should receive the next
// top-level action, performing an event-count-triggered split first if the
// server-configured per-session action limit has been reached (spec.md §4.5
// scenario S3).
func (p *SessionProxy) sessionForNextEvent() *Session {
	sess := p.activeSession()
	cfg := p.serverConfig()
	if cfg.MaxEventsPerSession > 0 && sess.TopLevelActionCount() >= cfg.MaxEventsPerSession {
		p.split(sess)
		return p.activeSession()
	}
	return sess
}

// split replaces the active session with a freshly created one sharing the
// proxy's server configuration (so the new split skips its own new-session
// handshake), re-applies the active user tag, and schedules the old split
// to be force-closed by the watchdog after one grace period rather than
// ended immediately — giving the sender a chance to flush it in its normal
// rotation.
func (p *SessionProxy) split(old *Session) {
	p.mu.Lock()
	if old != p.current {
		// already split by a concurrent caller.
		p.mu.Unlock()
		return
	}
	cfg := p.cfg
	tag := p.userTag
	next := p.creator.CreateSession(&cfg)
	next.SetOnConfigured(p.onSessionConfigured)
	p.current = next
	p.mu.Unlock()

	if tag != "" {
		next.IdentifyUser(tag)
	}
	p.sender.RegisterSession(next)

	grace := time.Duration(cfg.SendIntervalMs) * time.Millisecond
	p.watchdog.CloseOrEnqueueForClosing(old, grace)
}
