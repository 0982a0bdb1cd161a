// Package encoder renders an export job (an ordered list of trimmed clips
// and the transitions between them) into one finished container.
//
// # Jobs
//
// A Job is usually loaded from YAML:
//
//	output: /exports/cut.mp4
//	width: 1280
//	height: 720
//	fps: 30
//	clips:
//	  - path: /media/a.mp4
//	    start: 2
//	    duration: 5
//	  - path: /media/b.mov
//	    duration: 5
//	    gain: 0.8
//	transitions:
//	  - after_clip: 0
//	    kind: crossfade
//	    duration: 1
//
// JSON is accepted as well, since it is valid YAML.
//
// # Timing
//
// Every clip contributes ceil(duration*fps) frames. A transition overlaps
// the tail of one clip with the head of the next, so the output is
// shorter than the sum of clips by the overlapped frames. Output video
// timestamps are a frame counter starting at zero; audio timestamps are a
// sample counter in the muxer's audio time base, read after the header is
// written.
//
// Audio for output frame g is the slice of samples between
// floor(g*rate/fps) and floor((g+1)*rate/fps), so audio never runs past the
// video it belongs to. Samples pass through a fixed-size FIFO; the final
// packet is zero padded.
//
// # Cancellation
//
// The cancel flag is checked after every frame. A cancelled run aborts the
// muxer and returns ErrCancelled, whose message is the distinguished
// "cancelled" outcome.
package encoder
