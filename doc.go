// Command media-editor is the media core of a video editor: it probes clips,
// decodes preview and full-resolution frames, extracts audio and waveforms,
// and encodes timeline exports with transitions.
//
// # Commands
//
// The binary runs either as a long-lived server or as a one-shot tool:
//
//	media-editor serve                          HTTP control surface
//	media-editor probe [-json] <file>           duration, size and streams
//	media-editor frame <file> <seconds> <out>   one full-resolution frame
//	media-editor waveform <file>                audio peaks as JSON
//	media-editor export [-o out] <job|list>     encode a job or a .wpl/.m3u playlist
//	media-editor project <file> <media>...      append clips to a YAML project
//	media-editor render [-o out] <project>      export track V1 of a project
//	media-editor index <dir>                    fill the probe cache
//	media-editor version                        build information
//
// # Application Lifecycle
//
// serve follows the same initialization sequence on every start:
//
//  1. Memory Configuration: Sets GOMEMLIMIT from environment or cgroup limits
//  2. Configuration Loading: Reads CONFIG_FILE and environment variables
//  3. Database Initialization: Opens the SQLite probe cache and export history
//  4. Component Initialization:
//     - Codec backend: ffmpeg/ffprobe processes, or the synthetic backend
//     - Memory Monitor: Tracks memory pressure and trims the frame cache
//     - Orchestrator: Probe, scrub, playback, audio and export workers
//     - Preview Session: Single goroutine that owns the frame cache
//     - Indexer: Walks MEDIA_DIR and keeps the probe cache warm (optional)
//     - Metrics Collector: Gathers Prometheus metrics
//  5. HTTP Server Setup: Configures routes, middleware, and starts server
//  6. Graceful Shutdown: Handles SIGINT/SIGTERM, stops all components cleanly
//
// # Result Stream
//
// Worker results (probe data, thumbnails, waveforms, export progress and
// completion) are recorded in export history and broadcast as JSON over the
// /ws/events WebSocket.
//
// # Environment Variables
//
//   - CONFIG_FILE: Optional YAML file, overridden by the variables below
//   - MEDIA_DIR: Root directory of source clips (enables the indexer)
//   - CACHE_DIR: Directory for extracted audio and saved frames
//   - DATABASE_DIR: Directory for the SQLite database
//   - PORT: HTTP server port (default: 8080)
//   - METRICS_ENABLED: Serve /metrics (default: true)
//   - BACKEND: ffmpeg or synth (default: ffmpeg)
//   - FFMPEG_PATH, FFPROBE_PATH: Codec binaries
//   - PROBE_CONCURRENCY: Parallel probes (default: 4)
//   - PREVIEW_WIDTH: Width of decoded preview frames (default: 640)
//   - FRAME_CACHE_BYTES: Frame cache budget (default: derived from memory)
//   - INDEX_INTERVAL: Media directory scan interval (default: 30m)
//   - ENCODE_CRF, ENCODE_PRESET: Export quality defaults
//   - LOG_LEVEL: Logging level (debug/info/warn/error)
//   - GOMEMLIMIT: Memory limit (auto-detected from cgroups if not set)
//
// # Graceful Shutdown
//
//  1. Stop accepting new HTTP requests
//  2. Stop the indexer
//  3. Stop the preview session and close WebSocket clients
//  4. Cancel exports and stop workers
//  5. Kill leftover codec processes
//  6. Close database connections
//
// # Build Requirements
//
// CGO is required for SQLite and libvips. FFmpeg must be on PATH unless
// BACKEND=synth.
//
// # Related Packages
//
//   - [media-editor/internal/orchestrator]: Worker pool and result queue
//   - [media-editor/internal/decoder]: Stateful seek-and-decode
//   - [media-editor/internal/encoder]: Export pipeline
//   - [media-editor/internal/preview]: Frame cache and playback state
//   - [media-editor/internal/handlers]: HTTP request handlers
//   - [media-editor/internal/startup]: Configuration and initialization
//   - [media-editor/internal/transcoder]: FFmpeg process backend
package main
