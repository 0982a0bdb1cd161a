// Package framecache holds decoded frames on the consuming side.
//
// There are two stores. Current keeps the one frame on screen per clip.
// Cache is the rolling scrub store keyed by clip and quarter-second bucket,
// bounded by a byte budget. Cache.Insert is the only way in: it stores the
// entry and maintains the running byte total in one place, evicting the
// batch of entries whose buckets lie furthest from the playhead when the
// budget would be exceeded.
//
// Promoter paces playback: decoded frames arrive faster than real time, so
// at most one is promoted per tick, and only when the wall-clock play
// position has caught up with it.
//
// None of these types are safe for concurrent mutation; they belong to the
// goroutine that consumes orchestrator results. Cache.Stats may be read
// from any goroutine.
package framecache
