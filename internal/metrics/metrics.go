package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_editor_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_editor_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_editor_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	EventSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_editor_event_subscribers",
			Help: "Number of connected websocket event subscribers",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_editor_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_editor_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_editor_db_connections_open",
			Help: "Number of open database connections",
		},
	)

	DBSizeBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_editor_db_size_bytes",
			Help: "Size of SQLite database files in bytes",
		},
		[]string{"file"}, // "main", "wal", "shm"
	)

	ProbeCacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_editor_probe_cache_entries",
			Help: "Number of probe results stored in the database",
		},
	)

	ExportHistoryTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_editor_export_history",
			Help: "Number of recorded exports by final status",
		},
		[]string{"status"},
	)
)

// Indexer metrics
var (
	IndexerRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_editor_indexer_runs_total",
			Help: "Total number of media directory scans",
		},
	)

	IndexerLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_editor_indexer_last_run_timestamp",
			Help: "Timestamp of the last media directory scan",
		},
	)

	IndexerLastRunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_editor_indexer_last_run_duration_seconds",
			Help: "Duration of the last media directory scan in seconds",
		},
	)

	IndexerFilesProbed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_editor_indexer_files_probed_total",
			Help: "Files probed by the indexer because they were new or changed",
		},
	)

	IndexerFilesSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_editor_indexer_files_skipped_total",
			Help: "Files skipped by the indexer because the probe cache was current",
		},
	)

	IndexerErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_editor_indexer_errors_total",
			Help: "Total number of indexer errors",
		},
	)

	IndexerIsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_editor_indexer_running",
			Help: "Whether the indexer is currently running (1 = running, 0 = idle)",
		},
	)

	IndexerFilesRemoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_editor_indexer_files_removed_total",
			Help: "Probe cache entries dropped because their file disappeared",
		},
	)

	IndexerParallelWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_editor_indexer_parallel_workers",
			Help: "Number of directory walk workers",
		},
	)

	IndexerPollChecksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_editor_indexer_poll_checks_total",
			Help: "Lightweight change detection checks performed",
		},
	)

	IndexerPollChangesDetected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_editor_indexer_poll_changes_detected_total",
			Help: "Change detection checks that triggered a rescan",
		},
	)

	IndexerPollDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_editor_indexer_poll_duration_seconds",
			Help:    "Duration of one change detection check",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
	)
)

// Filesystem retry metrics
var (
	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_editor_filesystem_retry_attempts_total",
			Help: "Retries of filesystem operations after a stale NFS handle",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_editor_filesystem_retry_success_total",
			Help: "Filesystem operations that succeeded after at least one retry",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_editor_filesystem_retry_failures_total",
			Help: "Filesystem operations that still failed after all retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_editor_filesystem_stale_errors_total",
			Help: "ESTALE errors seen by filesystem operations",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_editor_filesystem_operation_duration_seconds",
			Help:    "Duration of retried filesystem operations including backoff",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.5, 1, 2},
		},
		[]string{"operation", "volume"},
	)
)

// Decoder metrics
var (
	DecoderOpensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_editor_decoder_opens_total",
			Help: "Decoder opens, labelled by whether the previous scaler was reused",
		},
		[]string{"scaler"}, // "reused", "new"
	)

	DecoderFramesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_editor_decoder_frames_total",
			Help: "Frames decoded, split by whether they were converted for display",
		},
		[]string{"mode", "converted"}, // mode: "playback", "scrub", "hq", "probe"
	)

	DecoderConvertDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_editor_decoder_convert_duration_seconds",
			Help:    "Time spent converting one frame to RGBA",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
		},
	)

	DecoderSeeksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_editor_decoder_seeks_total",
			Help: "Seeks issued to the decoder",
		},
		[]string{"result"}, // "ok", "skipped", "failed"
	)

	FFmpegProcessesActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_editor_ffmpeg_processes_active",
			Help: "Number of ffmpeg processes currently running",
		},
	)

	FFmpegProcessesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_editor_ffmpeg_processes_total",
			Help: "ffmpeg and ffprobe processes started",
		},
		[]string{"kind"}, // "probe", "video", "audio", "mux"
	)
)

// Orchestrator metrics
var (
	ScrubRequestsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_editor_scrub_requests_total",
			Help: "Scrub requests submitted to the orchestrator",
		},
	)

	ScrubSupersededTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_editor_scrub_superseded_total",
			Help: "Scrub requests overwritten by a newer one before being served",
		},
	)

	ScrubLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_editor_scrub_latency_seconds",
			Help:    "Time from picking up a scrub request to delivering its frame",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	ScrubDecoderResets = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_editor_scrub_decoder_resets_total",
			Help: "Scrub decoder reopen decisions",
		},
		[]string{"reason"}, // "new_file", "backward", "jump"
	)

	PlaybackSessionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_editor_playback_sessions_total",
			Help: "Playback sessions started",
		},
	)

	PlaybackFramesDrained = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_editor_playback_frames_drained_total",
			Help: "Buffered playback frames discarded by stop or seek",
		},
	)

	PlaybackFramesPromoted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_editor_playback_frames_promoted_total",
			Help: "Playback frames promoted to the display slot",
		},
	)

	PlaybackFramesSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_editor_playback_frames_skipped_total",
			Help: "Overdue playback frames fast-forwarded without display",
		},
	)

	WorkerErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_editor_worker_errors_total",
			Help: "Errors reported on the result stream by worker kind",
		},
		[]string{"worker"}, // "probe", "scrub", "playback", "encode", "audio", "frame"
	)
)

// Probe metrics
var (
	ProbesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_editor_probes_total",
			Help: "Probe operations by kind and status",
		},
		[]string{"kind", "status"}, // kind: "duration", "thumbnail", "waveform", "audio"
	)

	ProbeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_editor_probe_duration_seconds",
			Help:    "Probe operation duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"kind"},
	)

	ProbeGateInUse = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_editor_probe_gate_in_use",
			Help: "Probe permits currently held",
		},
	)
)

// Encode metrics
var (
	EncodeJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_editor_encode_jobs_total",
			Help: "Finished encode jobs by outcome",
		},
		[]string{"status"}, // "done", "error", "cancelled"
	)

	EncodeJobsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_editor_encode_jobs_active",
			Help: "Encode jobs currently running",
		},
	)

	EncodeFramesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_editor_encode_frames_total",
			Help: "Video frames written by encode jobs",
		},
	)

	EncodeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_editor_encode_duration_seconds",
			Help:    "Wall time of finished encode jobs",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
	)
)

// Frame cache metrics
var (
	FrameCacheBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_editor_frame_cache_bytes",
			Help: "Bytes held by the rolling scrub frame cache",
		},
	)

	FrameCacheBudgetBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_editor_frame_cache_budget_bytes",
			Help: "Configured byte budget of the rolling scrub frame cache",
		},
	)

	FrameCacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_editor_frame_cache_entries",
			Help: "Entries in the rolling scrub frame cache",
		},
	)

	FrameCacheEvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_editor_frame_cache_evictions_total",
			Help: "Entries evicted from the rolling scrub frame cache",
		},
	)

	FrameCacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_editor_frame_cache_lookups_total",
			Help: "Frame cache lookups by result",
		},
		[]string{"result"}, // "hit", "miss"
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_editor_memory_usage_ratio",
			Help: "Heap allocation as a fraction of the memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_editor_memory_paused",
			Help: "Whether background work is paused for memory (1 = paused)",
		},
	)

	MemoryGCPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_editor_memory_gc_pauses_total",
			Help: "Times the memory monitor paused work and forced a GC",
		},
	)
)

// Application info
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_editor_app_info",
			Help: "Build information, always 1",
		},
		[]string{"version", "commit", "go_version", "backend"},
	)
)
