// Package codec defines the boundary between the editing core and the
// library that actually demuxes, decodes, encodes and muxes media.
//
// A Backend opens containers and hands out three kinds of object:
//
//   - VideoReader: seekable decoder yielding raw yuv420p frames, never
//     format-converted or scaled (the caller decides whether conversion is
//     worth paying for).
//   - AudioReader: interleaved float32 samples resampled to a requested
//     rate and channel layout.
//   - Muxer: encoder plus container writer. The audio time base is only
//     valid after WriteHeader, since muxers may normalize it there.
//
// internal/transcoder implements Backend with ffmpeg processes;
// internal/codec/synth implements it in memory for tests and dry runs.
package codec
