// Package indexer keeps the probe cache warm for a media directory.
//
// The indexer walks the configured directory and probes every video, audio
// and image file whose size or modification time no longer matches its
// cached entry. Results are stored in the probes table so that later
// probe requests for unchanged files never open the container.
//
// The indexer operates in multiple modes:
//   - Initial index: Full scan on application startup
//   - Periodic index: Configurable interval-based re-indexing
//   - Change polling: Lightweight checks of the root and its top-level
//     directories
//   - Manual trigger: On-demand re-indexing via API or CLI
//
// Cache entries whose files no longer exist are removed during each scan.
// Hidden files and directories (prefixed with '.') are skipped.
package indexer
