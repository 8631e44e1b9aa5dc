package predictor

import (
	"context"
	"errors"
	"testing"

	"github.com/couchcryptid/river-wqi-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mock for cache tests ---

type countingPredictor struct {
	calls  int
	result domain.Prediction
	err    error
}

func (m *countingPredictor) Predict(_ context.Context, _ domain.PredictionFeatures) (domain.Prediction, error) {
	m.calls++
	return m.result, m.err
}

// --- CachedPredictor tests ---

func TestCachedPredictor_CacheHit(t *testing.T) {
	inner := &countingPredictor{result: domain.Prediction{Status: "Clean", Confidence: 0.9}}
	cached := NewCachedPredictor(inner, 10, testMetrics())

	p1, err := cached.Predict(context.Background(), sampleFeatures())
	require.NoError(t, err)
	assert.Equal(t, "Clean", p1.Status)

	p2, err := cached.Predict(context.Background(), sampleFeatures())
	require.NoError(t, err)
	assert.Equal(t, p1, p2)

	assert.Equal(t, 1, inner.calls, "should only call inner once")
}

func TestCachedPredictor_DifferentFeaturesMiss(t *testing.T) {
	inner := &countingPredictor{result: domain.Prediction{Status: "Clean"}}
	cached := NewCachedPredictor(inner, 10, testMetrics())

	other := sampleFeatures()
	other.BOD = 12

	_, _ = cached.Predict(context.Background(), sampleFeatures())
	_, _ = cached.Predict(context.Background(), other)

	assert.Equal(t, 2, inner.calls)
}

func TestCachedPredictor_ErrorsNotCached(t *testing.T) {
	inner := &countingPredictor{err: errors.New("unavailable")}
	cached := NewCachedPredictor(inner, 10, testMetrics())

	_, err := cached.Predict(context.Background(), sampleFeatures())
	require.Error(t, err)
	_, err = cached.Predict(context.Background(), sampleFeatures())
	require.Error(t, err)

	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, 0, cached.cache.len())
}

func TestCacheKey_IgnoresSubPrecisionNoise(t *testing.T) {
	a := sampleFeatures()
	b := sampleFeatures()
	b.COD += 1e-7
	assert.Equal(t, cacheKey(a), cacheKey(b))

	b.COD += 0.01
	assert.NotEqual(t, cacheKey(a), cacheKey(b))
}

// --- LRU cache unit tests ---

func TestLRUCache_BasicGetPut(t *testing.T) {
	c := newLRUCache[string](3)

	c.put("a", "A")
	c.put("b", "B")

	v, ok := c.get("a")
	assert.True(t, ok)
	assert.Equal(t, "A", v)

	_, ok = c.get("missing")
	assert.False(t, ok)
}

func TestLRUCache_Eviction(t *testing.T) {
	c := newLRUCache[string](2)

	c.put("a", "A")
	c.put("b", "B")
	c.put("c", "C") // evicts "a"

	_, ok := c.get("a")
	assert.False(t, ok, "a should have been evicted")

	v, ok := c.get("b")
	assert.True(t, ok)
	assert.Equal(t, "B", v)

	v, ok = c.get("c")
	assert.True(t, ok)
	assert.Equal(t, "C", v)
	assert.Equal(t, 2, c.len())
}

func TestLRUCache_AccessPromotesEntry(t *testing.T) {
	c := newLRUCache[string](2)

	c.put("a", "A")
	c.put("b", "B")
	c.get("a")
	c.put("c", "C")

	_, ok := c.get("a")
	assert.True(t, ok, "a was accessed recently, should not be evicted")

	_, ok = c.get("b")
	assert.False(t, ok, "b should have been evicted")
}

func TestLRUCache_UpdateExisting(t *testing.T) {
	c := newLRUCache[string](2)

	c.put("a", "A1")
	c.put("a", "A2")

	v, ok := c.get("a")
	assert.True(t, ok)
	assert.Equal(t, "A2", v)
	assert.Equal(t, 1, c.len())
}
