package metrics

import (
	"time"

	"media-editor/internal/logging"
)

// StatsProvider interface for collecting stats
type StatsProvider interface {
	GetStats() Stats
}

// Stats holds the current statistics
type Stats struct {
	ProbeCacheEntries int
	// Exports maps an export status to the number of rows with it.
	Exports map[string]int
	// DBFiles maps "main", "wal" and "shm" to file sizes in bytes.
	DBFiles map[string]int64
}

// Collector periodically collects and updates metrics
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection
func (c *Collector) Stop() {
	close(c.stopChan)
}

func (c *Collector) collectLoop() {
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.statsProvider == nil {
		return
	}

	stats := c.statsProvider.GetStats()

	ProbeCacheEntries.Set(float64(stats.ProbeCacheEntries))
	for status, n := range stats.Exports {
		ExportHistoryTotal.WithLabelValues(status).Set(float64(n))
	}
	for file, size := range stats.DBFiles {
		DBSizeBytes.WithLabelValues(file).Set(float64(size))
	}

	logging.Debug("Metrics collected: probes=%d, exports=%v", stats.ProbeCacheEntries, stats.Exports)
}
