// Package preview is the consuming end of the orchestrator.
//
// A Preview is driven by one goroutine calling Tick once per display
// refresh. Each tick drains scrub frames first, then at most a bounded
// number of shared results, then promotes at most one playback frame. Scrub
// frames fill the rolling cache and, unless playback is running, the
// on-screen slot. Playback frames are paced by a framecache.Promoter.
//
// Probe and encode results are folded into per-clip and per-job state that
// callers read back with Clip and Job.
package preview
