// Package transcoder is the production codec backend. It drives the ffmpeg
// and ffprobe binaries as child processes:
//
//   - Open runs ffprobe once and parses its JSON report
//   - video readers pipe packed yuv420p frames out of ffmpeg and recover
//     each frame's timestamp from the showinfo filter on stderr
//   - audio readers pipe interleaved float32 samples
//   - muxers feed raw frames on stdin and raw samples on a second pipe to an
//     ffmpeg process encoding H.264 and AAC
//
// Every running process is tracked so Cleanup can kill them on shutdown.
// Both binaries must be on PATH unless other locations are configured.
package transcoder
