package caching

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/openkit-go/openkit/log"
)

func TestEvictorDisabledWhenBoundsAreZero(t *testing.T) {
	cfg := EvictorConfig{LowerBound: 0, UpperBound: 0}
	require.True(t, cfg.spaceEvictionDisabled())

	cfg = EvictorConfig{LowerBound: 100, UpperBound: 50}
	require.True(t, cfg.spaceEvictionDisabled(), "upper < lower disables the strategy")

	cfg = EvictorConfig{LowerBound: 10, UpperBound: 100}
	require.False(t, cfg.spaceEvictionDisabled())
}

func TestEvictorSpaceEvictionConvergesToLowerBound(t *testing.T) {
	c := NewBeaconCache(log.NewDefault())
	key := NewBeaconKey(1, 0)
	for i := 0; i < 10; i++ {
		c.AddEvent(key, NewRecord(int64(i), "123456789012345")) // 15 bytes each
	}
	require.EqualValues(t, 150, c.NumBytesInCache())

	clock := clockwork.NewFakeClock()
	e := NewEvictor(c, EvictorConfig{LowerBound: 50, UpperBound: 100}, clock, log.NewDefault(), time.Hour)
	e.runPass()

	require.LessOrEqual(t, c.NumBytesInCache(), int64(50))
}

func TestEvictorAgeEvictionUsesClockNow(t *testing.T) {
	c := NewBeaconCache(log.NewDefault())
	key := NewBeaconKey(1, 0)
	clock := clockwork.NewFakeClock()

	c.AddEvent(key, NewRecord(clock.Now().Add(-time.Hour).UnixMilli(), "stale"))
	c.AddEvent(key, NewRecord(clock.Now().UnixMilli(), "fresh"))

	e := NewEvictor(c, EvictorConfig{MaxRecordAge: 10 * time.Minute}, clock, log.NewDefault(), time.Hour)
	e.runPass()

	handle, ok := c.PrepareChunkSnapshot(key)
	require.True(t, ok)
	chunk := handle.NextChunk("", 10000, "|")
	require.NotContains(t, chunk, "stale")
	require.Contains(t, chunk, "fresh")
}

func TestEvictorStartStop(t *testing.T) {
	c := NewBeaconCache(log.NewDefault())
	clock := clockwork.NewFakeClock()
	e := NewEvictor(c, EvictorConfig{}, clock, log.NewDefault(), time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e.Start(ctx)
	e.Stop()
}
