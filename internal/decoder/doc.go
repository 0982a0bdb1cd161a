// Package decoder turns a codec.VideoReader into display frames.
//
// A Decoder owns one open source and moves through three states:
//
//	Idle ──Seek──▶ Positioned ──NextFrame / AdvanceTo / BurnTo──▶ Positioned
//	  └──────────────────────────Close──────────────────────────▶ Closed
//
// NextFrame serves sequential playback. AdvanceTo serves forward scrubbing:
// every frame before the target is decoded but never converted, and the one
// frame that reaches the target is converted exactly once. BurnTo is the
// decode-only half of AdvanceTo, used to position playback before the first
// frame is sent.
//
// Output size always follows the source's own aspect ratio (see
// planes.FitWidth). A consumer wanting another aspect crops the undistorted
// frame itself.
//
// All seeks go through SeekTo, which skips targets at or before the start of
// the stream and reports failures as "not repositioned" instead of an error.
package decoder
