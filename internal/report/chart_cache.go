package report

import (
	"sync"
	"time"
)

// Rendered charts are cheap to keep and expensive to redraw, so they
// get a short private cache keyed by chart kind and ticker.
const chartCacheTTL = 10 * time.Minute

type chartCacheEntry struct {
	createdAt time.Time
	image     []byte
}

var (
	chartCache   = map[string]chartCacheEntry{}
	chartCacheMu sync.Mutex
)

func cacheGet(key string) ([]byte, bool) {
	chartCacheMu.Lock()
	defer chartCacheMu.Unlock()
	if entry, ok := chartCache[key]; ok {
		if time.Now().Before(entry.createdAt.Add(chartCacheTTL)) {
			img := make([]byte, len(entry.image))
			copy(img, entry.image)
			return img, true
		}
	}
	return nil, false
}

func cacheSet(key string, img []byte) {
	chartCacheMu.Lock()
	chartCache[key] = chartCacheEntry{createdAt: time.Now(), image: img}
	chartCacheMu.Unlock()
}
