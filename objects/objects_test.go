package objects

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/openkit-go/openkit/caching"
	"github.com/openkit-go/openkit/communication"
	"github.com/openkit-go/openkit/log"
	"github.com/openkit-go/openkit/protocol"
	"github.com/openkit-go/openkit/providers"
	"github.com/openkit-go/openkit/watchdog"
)

func testSessionCreator(cache *caching.BeaconCache, clock providers.TimingProvider) *SessionCreator {
	return NewSessionCreator(cache, clock, providers.NewThreadIDProvider(), providers.NewRandomProvider(1), log.NewDefault(), "127.0.0.1")
}

func TestSessionRecordsStartAndEnd(t *testing.T) {
	cache := caching.NewBeaconCache(log.NewDefault())
	clock := clockwork.NewFakeClock()
	creator := testSessionCreator(cache, clock)

	sess := creator.CreateSession(nil)
	require.False(t, sess.IsConfigured())
	sess.End()
	require.True(t, sess.IsFinished())
	require.False(t, cache.IsEmpty(sess.BeaconKey()))
}

func TestSessionActionRoundTrip(t *testing.T) {
	cache := caching.NewBeaconCache(log.NewDefault())
	clock := clockwork.NewFakeClock()
	creator := testSessionCreator(cache, clock)

	sess := creator.CreateSession(nil)
	a := sess.EnterAction("tap")
	require.EqualValues(t, 1, sess.TopLevelActionCount())
	a.End()
	a.End() // idempotent

	require.False(t, cache.IsEmpty(sess.BeaconKey()))
}

func TestApplyServerConfigMarksConfigured(t *testing.T) {
	cache := caching.NewBeaconCache(log.NewDefault())
	clock := clockwork.NewFakeClock()
	creator := testSessionCreator(cache, clock)

	sess := creator.CreateSession(nil)
	require.False(t, sess.IsConfigured())
	sess.ApplyServerConfig(protocol.DefaultServerConfig())
	require.True(t, sess.IsConfigured())
}

func TestSessionCreatorResetChangesBeaconID(t *testing.T) {
	cache := caching.NewBeaconCache(log.NewDefault())
	clock := clockwork.NewFakeClock()
	creator := testSessionCreator(cache, clock)

	s1 := creator.CreateSession(nil)
	creator.Reset()
	s2 := creator.CreateSession(nil)
	require.NotEqual(t, s1.BeaconKey().BeaconID, s2.BeaconKey().BeaconID)
	require.EqualValues(t, 0, s2.BeaconKey().SequenceNumber)
}

type nullRegistrar struct {
	registered []caching.BeaconKey
	removed    []caching.BeaconKey
}

func (n *nullRegistrar) RegisterSession(sess communication.ManagedSession) {
	n.registered = append(n.registered, sess.BeaconKey())
}
func (n *nullRegistrar) RemoveSession(key caching.BeaconKey) {
	n.removed = append(n.removed, key)
}

func testProxy(t *testing.T, clock clockwork.FakeClock) (*SessionProxy, *caching.BeaconCache, *nullRegistrar, *watchdog.SessionWatchdogContext) {
	t.Helper()
	cache := caching.NewBeaconCache(log.NewDefault())
	creator := testSessionCreator(cache, clock)
	reg := &nullRegistrar{}
	wd := watchdog.NewSessionWatchdogContext(clock, log.NewDefault(), time.Minute)
	wd.Start()
	t.Cleanup(wd.Stop)
	proxy := NewSessionProxy(log.NewDefault(), creator, reg, wd)
	return proxy, cache, reg, wd
}

func TestSessionProxySplitsByEventCount(t *testing.T) {
	clock := clockwork.NewFakeClock()
	proxy, _, reg, _ := testProxy(t, clock)

	proxy.OnServerConfigurationUpdate(protocol.ServerConfig{Capture: true, MaxEventsPerSession: 2, SendIntervalMs: 1000})

	firstKey := proxy.BeaconKey()
	proxy.EnterAction("a1").End()
	proxy.EnterAction("a2").End()
	// third action should trigger a split since the limit (2) was reached.
	proxy.EnterAction("a3").End()

	require.NotEqual(t, firstKey, proxy.BeaconKey())
	require.Len(t, reg.registered, 2) // initial session + one split
}

func TestSessionProxyReTagsUserOnSplit(t *testing.T) {
	clock := clockwork.NewFakeClock()
	proxy, _, _, _ := testProxy(t, clock)
	proxy.OnServerConfigurationUpdate(protocol.ServerConfig{Capture: true, MaxEventsPerSession: 1, SendIntervalMs: 1000})

	proxy.IdentifyUser("alice")
	proxy.EnterAction("a1").End()
	proxy.EnterAction("a2").End() // forces split

	require.Equal(t, "alice", proxy.activeSession().UserTag())
}

func TestSessionProxyEndIsIdempotentAndDeregisters(t *testing.T) {
	clock := clockwork.NewFakeClock()
	proxy, _, _, wd := testProxy(t, clock)
	proxy.ReportCrash("NPE", "boom", "stack")
	require.Equal(t, 1, wd.ClosingQueueLen())
	proxy.End()
	proxy.End()
	require.True(t, proxy.IsFinished())
	require.Equal(t, 0, wd.ClosingQueueLen())
}

func TestSessionProxyCrashSchedulesForcedClose(t *testing.T) {
	clock := clockwork.NewFakeClock()
	proxy, _, _, wd := testProxy(t, clock)
	proxy.OnServerConfigurationUpdate(protocol.ServerConfig{Capture: true, SendIntervalMs: 1000})

	proxy.ReportCrash("NPE", "boom", "stack")
	require.Equal(t, 1, wd.ClosingQueueLen())
}
