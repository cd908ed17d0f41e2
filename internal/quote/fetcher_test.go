package quote

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	snaps map[string]*Snapshot
	errs  map[string]error
	calls int
}

func (f *fakeSource) Fetch(_ context.Context, ticker string) (*Snapshot, error) {
	f.calls++
	if err, ok := f.errs[ticker]; ok {
		return nil, err
	}
	if snap, ok := f.snaps[ticker]; ok {
		return snap, nil
	}
	return nil, errors.New("no data returned for " + ticker)
}

// fakeClock drives the fetcher's clock and records sleeps instead of
// actually waiting.
type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

func newTestFetcher(src Source, rnd float64) (*Fetcher, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)}
	f := NewFetcher(src)
	f.now = clock.Now
	f.sleep = clock.Sleep
	f.randF = func() float64 { return rnd }
	return f, clock
}

func fullSnapshot(ticker string, price float64) *Snapshot {
	return &Snapshot{
		Ticker:       ticker,
		CompanyName:  ticker + " Corp",
		Sector:       "Technology",
		Industry:     "Software",
		CurrentPrice: ptr(price),
		MarketCap:    ptr(1e12),
		TrailingPE:   ptr(25),
		EPS:          ptr(6),
	}
}

func TestFetchThrottleSpacing(t *testing.T) {
	src := &fakeSource{snaps: map[string]*Snapshot{
		"AAPL": fullSnapshot("AAPL", 150),
		"MSFT": fullSnapshot("MSFT", 400),
	}}
	f, clock := newTestFetcher(src, 0.5)

	_, ferr := f.Fetch(context.Background(), "AAPL")
	require.Nil(t, ferr)
	_, ferr = f.Fetch(context.Background(), "MSFT")
	require.Nil(t, ferr)

	// First call sees a zero-value last timestamp far in the past so
	// it never sleeps. The second waits the full randomized delay.
	require.Len(t, clock.sleeps, 1)
	assert.Equal(t, 4500*time.Millisecond, clock.sleeps[0])
}

func TestFetchThrottleBounds(t *testing.T) {
	for _, rnd := range []float64{0, 0.999} {
		src := &fakeSource{snaps: map[string]*Snapshot{
			"AAPL": fullSnapshot("AAPL", 150),
			"MSFT": fullSnapshot("MSFT", 400),
		}}
		f, clock := newTestFetcher(src, rnd)
		f.Fetch(context.Background(), "AAPL")
		f.Fetch(context.Background(), "MSFT")
		require.Len(t, clock.sleeps, 1)
		assert.GreaterOrEqual(t, clock.sleeps[0], 3*time.Second)
		assert.Less(t, clock.sleeps[0], 6*time.Second)
	}
}

func TestFetchThrottleAdvancesOnFailure(t *testing.T) {
	src := &fakeSource{errs: map[string]error{
		"BAD1": errors.New("connection refused"),
		"BAD2": errors.New("connection refused"),
	}}
	f, clock := newTestFetcher(src, 0)

	_, ferr := f.Fetch(context.Background(), "BAD1")
	require.NotNil(t, ferr)
	_, ferr = f.Fetch(context.Background(), "BAD2")
	require.NotNil(t, ferr)

	// The failed first request still pushed the timestamp forward.
	require.Len(t, clock.sleeps, 1)
	assert.GreaterOrEqual(t, clock.sleeps[0], 3*time.Second)
}

func TestFetchFieldThreshold(t *testing.T) {
	thin := &Snapshot{
		Ticker:       "THIN",
		CompanyName:  "Thin Corp",
		CurrentPrice: ptr(10),
		MarketCap:    ptr(1e9),
		TrailingPE:   ptr(12),
	}
	require.Equal(t, 4, thin.FieldCount())

	src := &fakeSource{snaps: map[string]*Snapshot{"THIN": thin}}
	f, _ := newTestFetcher(src, 0)
	_, ferr := f.Fetch(context.Background(), "THIN")
	require.NotNil(t, ferr)
	assert.Equal(t, ErrInvalidTicker, ferr.Kind)

	// One more populated field crosses the threshold.
	thin.Sector = "Technology"
	require.Equal(t, 5, thin.FieldCount())
	_, ferr = f.Fetch(context.Background(), "THIN")
	assert.Nil(t, ferr)
}

func TestFetchNoPriceData(t *testing.T) {
	snap := fullSnapshot("NOPX", 0)
	snap.CurrentPrice = nil
	snap.PreviousClose = ptr(0)
	src := &fakeSource{snaps: map[string]*Snapshot{"NOPX": snap}}
	f, _ := newTestFetcher(src, 0)

	_, ferr := f.Fetch(context.Background(), "NOPX")
	require.NotNil(t, ferr)
	assert.Equal(t, ErrNoPriceData, ferr.Kind)
}

func TestPriceFallsBackToPreviousClose(t *testing.T) {
	snap := fullSnapshot("AAPL", 0)
	snap.CurrentPrice = nil
	snap.PreviousClose = ptr(149.5)
	price := snap.Price()
	require.NotNil(t, price)
	assert.Equal(t, 149.5, *price)
}
