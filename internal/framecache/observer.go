package framecache

// Observer receives cache and playback statistics. Implementations must
// not call back into the cache.
type Observer interface {
	ObserveSize(bytes int64, entries int)
	ObserveBudget(bytes int64)
	ObserveEvictions(n int)
	ObserveLookup(hit bool)
	ObservePromotion(promoted bool, skipped int)
}

type nopObserver struct{}

func (nopObserver) ObserveSize(int64, int)     {}
func (nopObserver) ObserveBudget(int64)        {}
func (nopObserver) ObserveEvictions(int)       {}
func (nopObserver) ObserveLookup(bool)         {}
func (nopObserver) ObservePromotion(bool, int) {}
