// Package metrics provides Prometheus instrumentation for the media editor.
//
// All metrics are prefixed with "media_editor_" and registered on the default
// registry through promauto, so the /metrics handler exports them without
// further wiring. InitializeMetrics pre-populates label combinations so
// dashboards see zero values from the first scrape.
//
// # Metric Categories
//
// ## HTTP
//
//   - HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight
//   - EventSubscribers: connected websocket clients
//
// ## Database
//
//   - DBQueryTotal, DBQueryDuration by operation
//   - DBSizeBytes per SQLite file, DBConnectionsOpen
//   - ProbeCacheEntries and ExportHistoryTotal, refreshed by the Collector
//
// ## Indexer
//
//   - IndexerRunsTotal, IndexerLastRunTimestamp, IndexerLastRunDuration
//   - IndexerFilesProbed / IndexerFilesSkipped, IndexerErrors, IndexerIsRunning
//
// ## Decoder and orchestrator
//
//   - DecoderOpensTotal{scaler}: whether a scaler survived a decoder swap
//   - DecoderFramesTotal{mode,converted}: decode-only vs converted frames
//   - DecoderSeeksTotal{result}: ok, skipped (target at stream start), failed
//   - ScrubRequestsTotal, ScrubSupersededTotal, ScrubLatency, ScrubDecoderResets
//   - PlaybackSessionsTotal, PlaybackFramesDrained/Promoted/Skipped
//   - WorkerErrorsTotal{worker}
//
// ## Probe and encode
//
//   - ProbesTotal{kind,status}, ProbeDuration{kind}, ProbeGateInUse
//   - EncodeJobsTotal{status}, EncodeJobsActive, EncodeFramesTotal, EncodeDuration
//
// ## Frame cache and memory
//
//   - FrameCacheBytes, FrameCacheBudgetBytes, FrameCacheEntries,
//     FrameCacheEvictionsTotal, FrameCacheLookupsTotal{result}
//   - MemoryUsageRatio, MemoryPaused, MemoryGCPauses
//
// The frame cache reports through NewFrameCacheObserver so that package does
// not import Prometheus itself.
package metrics
