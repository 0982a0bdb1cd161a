package database

import (
	"context"
	"os"
	"time"

	"media-editor/internal/logging"
	"media-editor/internal/metrics"
)

var _ metrics.StatsProvider = (*Database)(nil)

// GetStats returns probe cache and export counts plus database file sizes
// for the periodic metrics collector.
func (d *Database) GetStats() metrics.Stats {
	start := time.Now()
	var err error
	defer func() { recordQuery("export_counts", start, err) }()

	stats := metrics.Stats{
		Exports: make(map[string]int),
		DBFiles: d.fileSizes(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	if stats.ProbeCacheEntries, err = d.CountProbes(ctx); err != nil {
		logging.Debug("failed to count probes for stats: %v", err)
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM exports GROUP BY status")
	if err != nil {
		return stats
	}
	defer func() { _ = rows.Close() }()
	for _, s := range []ExportStatus{ExportQueued, ExportRunning, ExportDone, ExportError, ExportCancelled} {
		stats.Exports[string(s)] = 0
	}
	for rows.Next() {
		var status string
		var n int
		if err = rows.Scan(&status, &n); err != nil {
			return stats
		}
		stats.Exports[status] = n
	}
	err = rows.Err()
	return stats
}

func (d *Database) fileSizes() map[string]int64 {
	sizes := make(map[string]int64, 3)
	for label, path := range map[string]string{
		"main": d.dbPath,
		"wal":  d.dbPath + "-wal",
		"shm":  d.dbPath + "-shm",
	} {
		if info, err := os.Stat(path); err == nil {
			sizes[label] = info.Size()
		} else {
			sizes[label] = 0
		}
	}
	return sizes
}
