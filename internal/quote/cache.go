package quote

import (
	"context"
	"sync"
	"time"

	"github.com/phuslu/log"
)

// Tier names where a snapshot came from.
const (
	TierSession = "session"
	TierShared  = "shared"
	TierFresh   = "fresh"
)

type sharedEntry struct {
	snap      *Snapshot
	fetchedAt time.Time
}

// Cache layers two memoization tiers over a Fetcher. The session tier
// pins a ticker for the rest of the calendar day for one session, the
// shared tier serves every session until its TTL lapses. Failures are
// never stored, a failed ticker is retried on the next request.
type Cache struct {
	fetcher *Fetcher
	ttl     time.Duration
	now     func() time.Time

	mu       sync.Mutex
	shared   map[string]sharedEntry
	session  map[string]*Snapshot
	inflight map[string]*sync.Mutex
}

func NewCache(fetcher *Fetcher, ttl time.Duration) *Cache {
	return &Cache{
		fetcher:  fetcher,
		ttl:      ttl,
		now:      time.Now,
		shared:   make(map[string]sharedEntry),
		session:  make(map[string]*Snapshot),
		inflight: make(map[string]*sync.Mutex),
	}
}

func (c *Cache) sessionKey(sessionID, ticker string) string {
	return sessionID + "|" + ticker + "|" + c.now().Format("2006-01-02")
}

// Get returns the snapshot for ticker, consulting the session tier,
// then the shared tier, then the network. The returned tier names
// which of the three served the request.
func (c *Cache) Get(ctx context.Context, sessionID, ticker string) (*Snapshot, string, *FetchError) {
	skey := c.sessionKey(sessionID, ticker)

	c.mu.Lock()
	if snap, ok := c.session[skey]; ok {
		c.mu.Unlock()
		return snap, TierSession, nil
	}
	if entry, ok := c.shared[ticker]; ok && c.now().Sub(entry.fetchedAt) < c.ttl {
		c.session[skey] = entry.snap
		c.mu.Unlock()
		return entry.snap, TierShared, nil
	}
	flight := c.inflight[ticker]
	if flight == nil {
		flight = &sync.Mutex{}
		c.inflight[ticker] = flight
	}
	c.mu.Unlock()

	// One request per ticker at a time. Whoever loses the race reads
	// the winner's result from the shared tier.
	flight.Lock()
	defer flight.Unlock()

	c.mu.Lock()
	if entry, ok := c.shared[ticker]; ok && c.now().Sub(entry.fetchedAt) < c.ttl {
		c.session[skey] = entry.snap
		c.mu.Unlock()
		return entry.snap, TierShared, nil
	}
	c.mu.Unlock()

	snap, ferr := c.fetcher.Fetch(ctx, ticker)
	if ferr != nil {
		log.Warn().Str("ticker", ticker).Str("kind", string(ferr.Kind)).Str("error", ferr.Message).Msg("quote fetch failed")
		return nil, TierFresh, ferr
	}

	c.mu.Lock()
	c.shared[ticker] = sharedEntry{snap: snap, fetchedAt: c.now()}
	c.session[skey] = snap
	c.mu.Unlock()
	log.Info().Str("ticker", ticker).Str("company", snap.CompanyName).Msg("quote fetched and cached")
	return snap, TierFresh, nil
}

// Invalidate drops ticker from the shared tier and from every session
// so the next request goes back upstream. Used by the retry action.
func (c *Cache) Invalidate(ticker string) {
	suffix := "|" + ticker + "|" + c.now().Format("2006-01-02")
	c.mu.Lock()
	delete(c.shared, ticker)
	for key := range c.session {
		if len(key) >= len(suffix) && key[len(key)-len(suffix):] == suffix {
			delete(c.session, key)
		}
	}
	c.mu.Unlock()
}

// Prune drops expired shared entries and session entries from past
// days. Called periodically from the server.
func (c *Cache) Prune() {
	today := "|" + c.now().Format("2006-01-02")
	c.mu.Lock()
	for ticker, entry := range c.shared {
		if c.now().Sub(entry.fetchedAt) >= c.ttl {
			delete(c.shared, ticker)
		}
	}
	for key := range c.session {
		if len(key) < len(today) || key[len(key)-len(today):] != today {
			delete(c.session, key)
		}
	}
	c.mu.Unlock()
}

// Stats reports current entry counts per tier.
func (c *Cache) Stats() (shared, session int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.shared), len(c.session)
}
