package watchdog

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/openkit-go/openkit/caching"
	"github.com/openkit-go/openkit/log"
)

type fakeClosable struct {
	key      caching.BeaconKey
	finished bool
	ended    int
}

func (f *fakeClosable) BeaconKey() caching.BeaconKey { return f.key }
func (f *fakeClosable) IsFinished() bool             { return f.finished }
func (f *fakeClosable) End()                         { f.ended++; f.finished = true }

type fakeSplittable struct {
	key    caching.BeaconKey
	splits int
}

func (f *fakeSplittable) BeaconKey() caching.BeaconKey { return f.key }
func (f *fakeSplittable) SplitSessionByTime(now time.Time) (time.Time, bool) {
	f.splits++
	if f.splits >= 2 {
		return time.Time{}, false
	}
	return now.Add(time.Hour), true
}

func TestCloseOrEnqueueForClosingImmediateWhenNoGrace(t *testing.T) {
	clock := clockwork.NewFakeClock()
	w := NewSessionWatchdogContext(clock, log.NewDefault(), time.Minute)
	sess := &fakeClosable{key: caching.NewBeaconKey(1, 0)}

	w.CloseOrEnqueueForClosing(sess, 0)
	require.Equal(t, 1, sess.ended)
	require.Equal(t, 0, w.ClosingQueueLen())
}

func TestCloseOrEnqueueForClosingSchedulesGracePeriod(t *testing.T) {
	clock := clockwork.NewFakeClock()
	w := NewSessionWatchdogContext(clock, log.NewDefault(), time.Minute)
	sess := &fakeClosable{key: caching.NewBeaconKey(1, 0)}

	w.CloseOrEnqueueForClosing(sess, 5*time.Second)
	require.Equal(t, 1, w.ClosingQueueLen())
	require.Equal(t, 0, sess.ended)

	w.Start()
	defer w.Stop()

	clock.BlockUntil(1)
	clock.Advance(10 * time.Second)

	require.Eventually(t, func() bool { return sess.ended == 1 }, time.Second, time.Millisecond)
}

func TestDequeueFromClosingCancelsForcedClose(t *testing.T) {
	clock := clockwork.NewFakeClock()
	w := NewSessionWatchdogContext(clock, log.NewDefault(), time.Minute)
	sess := &fakeClosable{key: caching.NewBeaconKey(1, 0)}

	w.CloseOrEnqueueForClosing(sess, 5*time.Second)
	w.DequeueFromClosing(sess.key)
	require.Equal(t, 0, w.ClosingQueueLen())
}

func TestSplitByTimeReschedulesUntilProxyDeclines(t *testing.T) {
	clock := clockwork.NewFakeClock()
	w := NewSessionWatchdogContext(clock, log.NewDefault(), time.Minute)
	sess := &fakeSplittable{key: caching.NewBeaconKey(2, 0)}

	w.AddToSplitByTime(sess, clock.Now().Add(time.Second))
	w.Start()
	defer w.Stop()

	clock.BlockUntil(1)
	clock.Advance(2 * time.Second)
	require.Eventually(t, func() bool { return sess.splits == 1 }, time.Second, time.Millisecond)

	clock.BlockUntil(1)
	clock.Advance(time.Hour + time.Second)
	require.Eventually(t, func() bool { return sess.splits == 2 }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return w.SplittingQueueLen() == 0 }, time.Second, time.Millisecond)
}

func TestStartStop(t *testing.T) {
	clock := clockwork.NewFakeClock()
	w := NewSessionWatchdogContext(clock, log.NewDefault(), time.Millisecond)
	w.Start()
	w.Stop()
}
