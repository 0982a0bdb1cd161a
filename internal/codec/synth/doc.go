// Package synth is an in-memory codec backend.
//
// Sources are registered under a path with a duration, frame rate, size,
// keyframe interval and optional audio. Decoded frames carry a luma value
// derived from the frame index so a test can tell exactly which source
// frame it received; seeks land on the preceding keyframe like a real
// decoder. Muxers record everything written to them and, on Close, register
// the finished output as a new source so exported files can be probed and
// decoded again.
//
// The media-editor CLI selects this backend with BACKEND=synth for dry runs.
package synth
