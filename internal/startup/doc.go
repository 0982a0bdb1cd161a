// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// [LoadConfig] starts from [DefaultConfig], merges an optional YAML file
// named by CONFIG_FILE and then applies environment variables, which always
// win. Supported variables (YAML key in parentheses):
//
//   - CACHE_DIR (cache_dir): extracted audio and saved frames (default: ./cache)
//   - DATABASE_DIR (database_dir): probe cache and export history (default: ./data)
//   - MEDIA_DIR (media_dir): directory kept indexed; empty disables the indexer
//   - PORT (port): HTTP server port (default: 8080)
//   - METRICS_ENABLED (metrics_enabled): serve /metrics (default: true)
//   - BACKEND (backend): ffmpeg or synth (default: ffmpeg)
//   - FFMPEG_PATH, FFPROBE_PATH (ffmpeg_path, ffprobe_path): binaries
//   - PROBE_CONCURRENCY (probe_concurrency): concurrent probes (default: 4)
//   - PREVIEW_WIDTH (preview_width): scrub and playback frame width (default: 640)
//   - FRAME_CACHE_BYTES (frame_cache_bytes): scrub cache budget, 0 derives it
//     from system memory
//   - INDEX_INTERVAL (index_interval): Go duration between full scans (default: 30m)
//   - ENCODE_CRF, ENCODE_PRESET (encode_crf, encode_preset): x264 quality (default: 18, fast)
//   - LOG_HEALTH_CHECKS (log_health_checks): log health requests (default: false)
//   - LOG_LEVEL, DEBUG: see package logging
//   - MEMORY_LIMIT, MEMORY_RATIO, GOMEMLIMIT: see package memory
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo].
//
// # Lifecycle Logging
//
// [LogDatabaseInit], [LogBackendInit], [LogMemoryConfig], [LogIndexerInit],
// [LogHTTPRoutes], [LogServerStarted] and the shutdown helpers print the
// sectioned startup log used by the serve command.
package startup
