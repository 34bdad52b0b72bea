package metrics

// ThumbnailCacheName labels thumbnail cache series
const ThumbnailCacheName = "thumbnail"

// ThumbnailObserver forwards thumbnail cache events to Prometheus
type ThumbnailObserver struct{}

func (ThumbnailObserver) ThumbnailHit() {
	Get().CacheHitsTotal.WithLabelValues(ThumbnailCacheName).Inc()
}

func (ThumbnailObserver) ThumbnailMiss() {
	Get().CacheMissesTotal.WithLabelValues(ThumbnailCacheName).Inc()
}

func (ThumbnailObserver) ThumbnailCleared(entries int) {
	Get().CacheEvictionsTotal.WithLabelValues(ThumbnailCacheName).Add(float64(entries))
}
