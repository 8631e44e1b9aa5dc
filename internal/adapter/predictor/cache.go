package predictor

import (
	"context"
	"fmt"
	"sync"

	"github.com/couchcryptid/river-wqi-etl/internal/domain"
	"github.com/couchcryptid/river-wqi-etl/internal/observability"
)

// CachedPredictor wraps a Predictor with an in-memory LRU cache keyed by the
// feature vector. Replayed readings reuse the earlier prediction.
type CachedPredictor struct {
	inner   domain.Predictor
	cache   *lruCache[domain.Prediction]
	metrics *observability.Metrics
}

// NewCachedPredictor creates a cache decorator around a predictor.
func NewCachedPredictor(inner domain.Predictor, maxEntries int, metrics *observability.Metrics) *CachedPredictor {
	return &CachedPredictor{
		inner:   inner,
		cache:   newLRUCache[domain.Prediction](maxEntries),
		metrics: metrics,
	}
}

func (c *CachedPredictor) Predict(ctx context.Context, features domain.PredictionFeatures) (domain.Prediction, error) {
	key := cacheKey(features)
	if p, ok := c.cache.get(key); ok {
		c.metrics.PredictorCache.WithLabelValues("hit").Inc()
		return p, nil
	}
	c.metrics.PredictorCache.WithLabelValues("miss").Inc()

	p, err := c.inner.Predict(ctx, features)
	if err != nil {
		// Failures are not cached so the next reading retries.
		return p, err
	}
	c.cache.put(key, p)
	return p, nil
}

// cacheKey rounds every feature to four decimals, below the feed's reporting
// precision.
func cacheKey(f domain.PredictionFeatures) string {
	return fmt.Sprintf("%.4f|%.4f|%.4f|%.4f|%.4f|%.4f|%.4f|%.4f",
		f.DO, f.DOSat, f.BOD, f.COD, f.SS, f.PH, f.NH3N, f.Temp)
}

// lruCache is a small thread-safe LRU cache.
type lruCache[V any] struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry[V]
	head       *entry[V] // most recently used
	tail       *entry[V] // least recently used
}

type entry[V any] struct {
	key   string
	value V
	prev  *entry[V]
	next  *entry[V]
}

func newLRUCache[V any](maxEntries int) *lruCache[V] {
	return &lruCache[V]{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry[V]),
	}
}

func (c *lruCache[V]) get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache[V]) put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry[V]{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache[V]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache[V]) moveToFront(e *entry[V]) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache[V]) addToFront(e *entry[V]) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache[V]) remove(e *entry[V]) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache[V]) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
