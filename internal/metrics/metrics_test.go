package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var pb dto.Metric
	require.NoError(t, c.Write(&pb))
	return pb.GetCounter().GetValue()
}

func TestGetReturnsSingleton(t *testing.T) {
	assert.Same(t, Get(), Initialize())
}

func TestThumbnailObserver(t *testing.T) {
	m := Get()
	m.CacheHitsTotal.Reset()
	m.CacheMissesTotal.Reset()
	m.CacheEvictionsTotal.Reset()

	var obs ThumbnailObserver
	obs.ThumbnailHit()
	obs.ThumbnailHit()
	obs.ThumbnailMiss()
	obs.ThumbnailCleared(500)

	assert.Equal(t, 2.0, counterValue(t, m.CacheHitsTotal.WithLabelValues(ThumbnailCacheName)))
	assert.Equal(t, 1.0, counterValue(t, m.CacheMissesTotal.WithLabelValues(ThumbnailCacheName)))
	assert.Equal(t, 500.0, counterValue(t, m.CacheEvictionsTotal.WithLabelValues(ThumbnailCacheName)))
}
