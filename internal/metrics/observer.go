package metrics

import "media-editor/internal/framecache"

// frameCacheObserver implements framecache.Observer using the Prometheus
// metrics declared in this package.
type frameCacheObserver struct{}

// NewFrameCacheObserver creates an observer that records frame cache and
// playback promotion metrics into the gauges and counters in metrics.go.
func NewFrameCacheObserver() framecache.Observer {
	return &frameCacheObserver{}
}

func (o *frameCacheObserver) ObserveSize(bytes int64, entries int) {
	FrameCacheBytes.Set(float64(bytes))
	FrameCacheEntries.Set(float64(entries))
}

func (o *frameCacheObserver) ObserveBudget(bytes int64) {
	FrameCacheBudgetBytes.Set(float64(bytes))
}

func (o *frameCacheObserver) ObserveEvictions(n int) {
	FrameCacheEvictionsTotal.Add(float64(n))
}

func (o *frameCacheObserver) ObserveLookup(hit bool) {
	if hit {
		FrameCacheLookupsTotal.WithLabelValues("hit").Inc()
		return
	}
	FrameCacheLookupsTotal.WithLabelValues("miss").Inc()
}

func (o *frameCacheObserver) ObservePromotion(promoted bool, skipped int) {
	if promoted {
		PlaybackFramesPromoted.Inc()
	}
	if skipped > 0 {
		PlaybackFramesSkipped.Add(float64(skipped))
	}
}
