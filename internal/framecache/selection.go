package framecache

func distance(k Key, playhead int) int {
	d := k.Bucket - playhead
	if d < 0 {
		return -d
	}
	return d
}

// selectFurthest reorders keys so the n keys furthest from playhead occupy
// keys[:n], in no particular order. It runs in expected linear time.
func selectFurthest(keys []Key, n, playhead int) {
	if n <= 0 || n >= len(keys) {
		return
	}
	lo, hi := 0, len(keys)-1
	// Find the key that belongs at index n-1 in descending distance order.
	for lo < hi {
		p := partition(keys, lo, hi, playhead)
		switch {
		case p == n-1:
			return
		case p < n-1:
			lo = p + 1
		default:
			hi = p - 1
		}
	}
}

// partition places keys further than the pivot before it and returns the
// pivot's final index. The middle element is the pivot.
func partition(keys []Key, lo, hi, playhead int) int {
	mid := lo + (hi-lo)/2
	keys[mid], keys[hi] = keys[hi], keys[mid]
	pivot := distance(keys[hi], playhead)
	store := lo
	for i := lo; i < hi; i++ {
		if distance(keys[i], playhead) > pivot {
			keys[i], keys[store] = keys[store], keys[i]
			store++
		}
	}
	keys[store], keys[hi] = keys[hi], keys[store]
	return store
}
