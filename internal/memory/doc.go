// Package memory keeps the editor inside its memory envelope.
//
// Decoded frames are large (a 640-wide RGBA preview frame is over a megabyte)
// and the editor keeps hundreds of them for scrubbing, so memory is managed in
// three places:
//
//   - [ConfigureFromEnv] sets GOMEMLIMIT from a container limit. Call it early
//     in main:
//
//     func main() {
//     memory.ConfigureFromEnv()
//     ...
//     }
//
//   - [FrameCacheBudget] sizes the rolling scrub cache: FRAME_CACHE_BYTES when
//     set, otherwise 1/16 of system RAM (read with gopsutil) clamped to
//     [128 MiB, 1 GiB].
//
//   - [Monitor] samples the heap against the limit. Above the high water mark
//     it notifies OnThrottle listeners (the preview loop sheds scrub frames);
//     above the critical mark background producers block in WaitIfPaused
//     until usage falls back under the high water mark.
//
// # Environment Variables
//
//   - GOMEMLIMIT: Standard Go variable; takes precedence when set.
//   - MEMORY_LIMIT: Container memory limit in bytes, typically from the
//     Kubernetes Downward API.
//   - MEMORY_RATIO: Share of MEMORY_LIMIT given to the Go heap (default 0.85).
//     Lower it when exports run many ffmpeg processes.
package memory
