package quote

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/phuslu/log"

	"stock-valuation-pro/internal/metrics"
)

const (
	// Upstream requests are spaced by a uniformly random delay in
	// [minDelay, maxDelay) so the traffic does not look mechanical.
	minDelay = 3 * time.Second
	maxDelay = 6 * time.Second

	// A quoteSummary response carrying fewer fields than this is a
	// shell listing, not a quotable company.
	minFields = 5
)

// Source fetches a raw snapshot for one ticker.
type Source interface {
	Fetch(ctx context.Context, ticker string) (*Snapshot, error)
}

// Fetcher wraps a Source with the global request throttle and with
// snapshot validation. All upstream traffic in the process goes
// through one Fetcher so the spacing holds across sessions.
type Fetcher struct {
	src Source

	mu   sync.Mutex
	last time.Time

	// Injected for tests.
	now   func() time.Time
	sleep func(context.Context, time.Duration) error
	randF func() float64
}

// FetcherOption customizes a Fetcher, mainly so tests can drive the
// clock instead of waiting out the throttle.
type FetcherOption func(*Fetcher)

func WithClock(now func() time.Time) FetcherOption {
	return func(f *Fetcher) { f.now = now }
}

func WithSleep(sleep func(context.Context, time.Duration) error) FetcherOption {
	return func(f *Fetcher) { f.sleep = sleep }
}

func WithRand(r func() float64) FetcherOption {
	return func(f *Fetcher) { f.randF = r }
}

func NewFetcher(src Source, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		src:   src,
		now:   time.Now,
		sleep: sleepCtx,
		randF: rand.Float64,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Fetch throttles, delegates to the source, and validates the result.
// The throttle timestamp advances whether the upstream call succeeds
// or fails, so a burst of failures cannot speed the request rate up.
func (f *Fetcher) Fetch(ctx context.Context, ticker string) (*Snapshot, *FetchError) {
	f.mu.Lock()
	defer f.mu.Unlock()

	delay := minDelay + time.Duration(f.randF()*float64(maxDelay-minDelay))
	if wait := delay - f.now().Sub(f.last); wait > 0 {
		log.Debug().Str("ticker", ticker).Dur("wait", wait).Msg("throttling yahoo request")
		metrics.ThrottleWait.Observe(wait.Seconds())
		if err := f.sleep(ctx, wait); err != nil {
			return nil, Classify(ticker, fmt.Errorf("connection interrupted: %w", err))
		}
	}

	snap, err := f.src.Fetch(ctx, ticker)
	f.last = f.now()
	if err != nil {
		return nil, Classify(ticker, err)
	}
	if snap.FieldCount() < minFields {
		return nil, newFetchError(ErrInvalidTicker, ticker,
			fmt.Sprintf("%s does not look like a valid ticker", ticker))
	}
	if snap.Price() == nil {
		return nil, newFetchError(ErrNoPriceData, ticker,
			fmt.Sprintf("no price data available for %s", ticker))
	}
	return snap, nil
}
