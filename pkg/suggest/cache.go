package suggest

import (
	"math"
	"sync"

	"github.com/charmbracelet/log"
)

// HotCache keeps the formatted results of recent queries. Keys carry the snapshot
// generation, so entries of a replaced snapshot are never served; Purge drops them
// eagerly when a new snapshot is published.
type HotCache struct {
	hits        map[string][]Hit
	accessTime  map[string]int64
	accessCount int64
	lookups     int64
	served      int64
	maxEntries  int
	mu          sync.Mutex
}

// NewHotCache returns a cache holding at most maxEntries results.
func NewHotCache(maxEntries int) *HotCache {
	return &HotCache{
		hits:       make(map[string][]Hit, maxEntries),
		accessTime: make(map[string]int64, maxEntries),
		maxEntries: maxEntries,
	}
}

// Get returns a copy of the cached hits for key.
func (hc *HotCache) Get(key string) ([]Hit, bool) {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	hc.lookups++
	hits, ok := hc.hits[key]
	if !ok {
		return nil, false
	}
	hc.served++
	hc.markAccessed(key)
	return append([]Hit(nil), hits...), true
}

// Put stores a copy of hits under key, evicting the least recently used entry when full.
func (hc *HotCache) Put(key string, hits []Hit) {
	if hc.maxEntries <= 0 {
		return
	}
	hc.mu.Lock()
	defer hc.mu.Unlock()

	if _, exists := hc.hits[key]; !exists && len(hc.hits) >= hc.maxEntries {
		hc.evictLRU()
	}
	hc.hits[key] = append([]Hit(nil), hits...)
	hc.markAccessed(key)
}

// Purge drops every entry.
func (hc *HotCache) Purge() {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	n := len(hc.hits)
	hc.hits = make(map[string][]Hit, hc.maxEntries)
	hc.accessTime = make(map[string]int64, hc.maxEntries)
	if n > 0 {
		log.Debugf("Purged %d cached results", n)
	}
}

func (hc *HotCache) Stats() map[string]int {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	return map[string]int{
		"cacheEntries":    len(hc.hits),
		"cacheMaxEntries": hc.maxEntries,
		"cacheLookups":    int(hc.lookups),
		"cacheHits":       int(hc.served),
	}
}

func (hc *HotCache) markAccessed(key string) {
	hc.accessCount++
	hc.accessTime[key] = hc.accessCount
}

func (hc *HotCache) evictLRU() {
	var oldestKey string
	var oldestTime int64 = math.MaxInt64

	for key, accessTime := range hc.accessTime {
		if accessTime < oldestTime {
			oldestTime = accessTime
			oldestKey = key
		}
	}

	if oldestKey != "" {
		delete(hc.hits, oldestKey)
		delete(hc.accessTime, oldestKey)
		log.Debugf("Evicted '%s' from hot cache", oldestKey)
	}
}
