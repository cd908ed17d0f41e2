package quote

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(src Source, ttl time.Duration) (*Cache, *fakeClock) {
	f, clock := newTestFetcher(src, 0)
	c := NewCache(f, ttl)
	c.now = clock.Now
	return c, clock
}

func TestCacheTierPrecedence(t *testing.T) {
	src := &fakeSource{snaps: map[string]*Snapshot{"AAPL": fullSnapshot("AAPL", 150)}}
	c, _ := newTestCache(src, 6*time.Hour)
	ctx := context.Background()

	_, tier, ferr := c.Get(ctx, "sess-a", "AAPL")
	require.Nil(t, ferr)
	assert.Equal(t, TierFresh, tier)
	assert.Equal(t, 1, src.calls)

	// Same session, same day: session tier, no upstream call.
	_, tier, ferr = c.Get(ctx, "sess-a", "AAPL")
	require.Nil(t, ferr)
	assert.Equal(t, TierSession, tier)
	assert.Equal(t, 1, src.calls)

	// Different session inside the TTL: shared tier.
	_, tier, ferr = c.Get(ctx, "sess-b", "AAPL")
	require.Nil(t, ferr)
	assert.Equal(t, TierShared, tier)
	assert.Equal(t, 1, src.calls)
}

func TestCacheSharedTTLExpiry(t *testing.T) {
	src := &fakeSource{snaps: map[string]*Snapshot{"AAPL": fullSnapshot("AAPL", 150)}}
	c, clock := newTestCache(src, 6*time.Hour)
	ctx := context.Background()

	_, _, ferr := c.Get(ctx, "sess-a", "AAPL")
	require.Nil(t, ferr)

	clock.now = clock.now.Add(6*time.Hour + time.Minute)

	// Past the TTL and on a new session key, so it refetches.
	_, tier, ferr := c.Get(ctx, "sess-b", "AAPL")
	require.Nil(t, ferr)
	assert.Equal(t, TierFresh, tier)
	assert.Equal(t, 2, src.calls)
}

func TestCacheSessionPinsCalendarDay(t *testing.T) {
	src := &fakeSource{snaps: map[string]*Snapshot{"AAPL": fullSnapshot("AAPL", 150)}}
	c, clock := newTestCache(src, 6*time.Hour)
	ctx := context.Background()

	clock.now = time.Date(2025, 6, 2, 22, 0, 0, 0, time.UTC)
	_, _, ferr := c.Get(ctx, "sess-a", "AAPL")
	require.Nil(t, ferr)

	// Still inside the TTL but the clock crossed midnight: the
	// session key rolls over and the shared tier serves.
	clock.now = time.Date(2025, 6, 3, 0, 30, 0, 0, time.UTC)
	_, tier, ferr := c.Get(ctx, "sess-a", "AAPL")
	require.Nil(t, ferr)
	assert.Equal(t, TierShared, tier)
	assert.Equal(t, 1, src.calls)
}

func TestCacheNeverStoresFailures(t *testing.T) {
	src := &fakeSource{errs: map[string]error{"BAD": errors.New("connection refused")}}
	c, _ := newTestCache(src, 6*time.Hour)
	ctx := context.Background()

	_, _, ferr := c.Get(ctx, "sess-a", "BAD")
	require.NotNil(t, ferr)
	assert.Equal(t, ErrConnection, ferr.Kind)

	// The failure was not memoized, a later request tries upstream
	// again and succeeds.
	delete(src.errs, "BAD")
	src.snaps = map[string]*Snapshot{"BAD": fullSnapshot("BAD", 12)}
	snap, tier, ferr := c.Get(ctx, "sess-a", "BAD")
	require.Nil(t, ferr)
	assert.Equal(t, TierFresh, tier)
	assert.Equal(t, 2, src.calls)
	assert.Equal(t, 12.0, *snap.CurrentPrice)
}

func TestCacheInvalidate(t *testing.T) {
	src := &fakeSource{snaps: map[string]*Snapshot{"AAPL": fullSnapshot("AAPL", 150)}}
	c, _ := newTestCache(src, 6*time.Hour)
	ctx := context.Background()

	_, _, ferr := c.Get(ctx, "sess-a", "AAPL")
	require.Nil(t, ferr)

	c.Invalidate("AAPL")

	_, tier, ferr := c.Get(ctx, "sess-a", "AAPL")
	require.Nil(t, ferr)
	assert.Equal(t, TierFresh, tier)
	assert.Equal(t, 2, src.calls)
}

func TestCachePrune(t *testing.T) {
	src := &fakeSource{snaps: map[string]*Snapshot{
		"AAPL": fullSnapshot("AAPL", 150),
		"MSFT": fullSnapshot("MSFT", 400),
	}}
	c, clock := newTestCache(src, 6*time.Hour)
	ctx := context.Background()

	c.Get(ctx, "sess-a", "AAPL")
	clock.now = clock.now.Add(26 * time.Hour)
	c.Get(ctx, "sess-a", "MSFT")

	c.Prune()
	shared, session := c.Stats()
	assert.Equal(t, 1, shared)
	assert.Equal(t, 1, session)
}
