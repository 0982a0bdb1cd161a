package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"media-editor/internal/codec"
	"media-editor/internal/database"
	"media-editor/internal/filesystem"
	"media-editor/internal/logging"
	"media-editor/internal/media"
	"media-editor/internal/mediatypes"
	"media-editor/internal/metrics"
	"media-editor/internal/workers"
)

const (
	// Default polling interval for change detection
	defaultPollInterval = 30 * time.Second

	// Cap on concurrent probes when no gate is supplied
	maxProbeWorkers = 4

	// Bound on a single container open
	probeTimeout = 30 * time.Second
)

var log = logging.For("indexer")

// Indexer keeps the probe cache warm for every media file under a
// directory.
type Indexer struct {
	db       *database.Database
	cache    *database.ProbeCache
	backend  codec.Backend
	gate     *workers.Gate
	mediaDir string

	indexInterval time.Duration
	pollInterval  time.Duration

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once

	indexMu              sync.Mutex
	isIndexing           bool
	lastIndexTime        time.Time
	lastResult           Result
	initialIndexComplete bool
	initialIndexError    error
	startTime            time.Time

	// Progress tracking
	filesFound  atomic.Int64
	filesProbed atomic.Int64

	parallelConfig ParallelWalkerConfig

	onIndexComplete func(Result)

	// Last known state for lightweight change detection
	stateMu            sync.RWMutex
	lastRootModTime    time.Time
	lastTopLevelCount  int
	lastSubdirModTimes map[string]time.Time
}

// Result summarizes one scan.
type Result struct {
	Found    int           `json:"found"`
	Probed   int           `json:"probed"`
	Skipped  int           `json:"skipped"`
	Failed   int           `json:"failed"`
	Removed  int           `json:"removed"`
	Duration time.Duration `json:"duration"`
}

// New creates an Indexer. A nil gate allows one probe per CPU, at most four.
func New(db *database.Database, backend codec.Backend, gate *workers.Gate, mediaDir string, indexInterval time.Duration) *Indexer {
	if gate == nil {
		gate = workers.NewGate(workers.ForCPU(maxProbeWorkers))
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Indexer{
		db:                 db,
		cache:              database.NewProbeCache(db),
		backend:            backend,
		gate:               gate,
		mediaDir:           mediaDir,
		indexInterval:      indexInterval,
		pollInterval:       defaultPollInterval,
		ctx:                ctx,
		cancel:             cancel,
		startTime:          time.Now(),
		parallelConfig:     DefaultParallelWalkerConfig(),
		lastSubdirModTimes: make(map[string]time.Time),
	}
}

// SetPollInterval sets the interval for polling-based change detection.
func (idx *Indexer) SetPollInterval(interval time.Duration) {
	if interval > 0 {
		idx.pollInterval = interval
	}
}

// SetParallelConfig sets the parallel walker configuration.
func (idx *Indexer) SetParallelConfig(config ParallelWalkerConfig) {
	idx.parallelConfig = config
}

// SetOnIndexComplete sets a callback invoked after every successful scan.
func (idx *Indexer) SetOnIndexComplete(callback func(Result)) {
	idx.onIndexComplete = callback
}

// Start runs an initial scan in the background, then rescans on change
// detection and on the periodic interval.
func (idx *Indexer) Start() {
	idx.wg.Add(3)
	go func() {
		defer idx.wg.Done()
		log.Info("Starting initial index of %s in background...", idx.mediaDir)
		if _, err := idx.Index(idx.ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Initial index error: %v", err)
			idx.indexMu.Lock()
			idx.initialIndexError = err
			idx.indexMu.Unlock()
		}
	}()
	go idx.pollForChanges()
	go idx.periodicIndex()
}

// Stop cancels any running scan and waits for background loops to exit.
func (idx *Indexer) Stop() {
	idx.stopOnce.Do(func() {
		idx.cancel()
		idx.wg.Wait()
	})
}

// IsReady reports whether the initial scan has finished.
func (idx *Indexer) IsReady() bool {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()
	return idx.initialIndexComplete
}

// HealthStatus contains health check information.
type HealthStatus struct {
	Ready             bool      `json:"ready"`
	Indexing          bool      `json:"indexing"`
	StartTime         time.Time `json:"startTime"`
	Uptime            string    `json:"uptime"`
	LastIndexed       time.Time `json:"lastIndexed,omitempty"`
	InitialIndexError string    `json:"initialIndexError,omitempty"`
	FilesFound        int64     `json:"filesFound"`
	FilesProbed       int64     `json:"filesProbed"`
	LastResult        *Result   `json:"lastResult,omitempty"`
}

// GetHealthStatus returns detailed health information.
func (idx *Indexer) GetHealthStatus() HealthStatus {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()

	status := HealthStatus{
		Ready:       idx.initialIndexComplete,
		Indexing:    idx.isIndexing,
		StartTime:   idx.startTime,
		Uptime:      time.Since(idx.startTime).String(),
		LastIndexed: idx.lastIndexTime,
		FilesFound:  idx.filesFound.Load(),
		FilesProbed: idx.filesProbed.Load(),
	}
	if !idx.lastIndexTime.IsZero() {
		r := idx.lastResult
		status.LastResult = &r
	}
	if idx.initialIndexError != nil {
		status.InitialIndexError = idx.initialIndexError.Error()
	}
	return status
}

// pollForChanges periodically checks for file changes.
func (idx *Indexer) pollForChanges() {
	defer idx.wg.Done()

	// Wait for initial index to complete
	for !idx.IsReady() {
		select {
		case <-time.After(1 * time.Second):
		case <-idx.ctx.Done():
			return
		}
	}

	log.Info("Starting change detection polling (interval: %v)", idx.pollInterval)

	ticker := time.NewTicker(idx.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			changed, err := idx.detectChanges()
			if err != nil {
				log.Error("Error detecting changes: %v", err)
				continue
			}
			if changed {
				log.Info("File changes detected, triggering re-index")
				if _, err := idx.Index(idx.ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.Error("Re-index after change detection failed: %v", err)
				}
			}
		case <-idx.ctx.Done():
			log.Info("Change detection polling stopped")
			return
		}
	}
}

func (idx *Indexer) periodicIndex() {
	defer idx.wg.Done()
	if idx.indexInterval <= 0 {
		return
	}

	ticker := time.NewTicker(idx.indexInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			log.Debug("Periodic re-index triggered")
			if _, err := idx.Index(idx.ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("periodic re-index failed: %v", err)
			}
		case <-idx.ctx.Done():
			return
		}
	}
}

// detectChanges performs a lightweight check to detect if files have changed.
// It only checks the root directory's modification time, a count of
// top-level entries and the modification times of top-level directories.
func (idx *Indexer) detectChanges() (bool, error) {
	start := time.Now()
	defer func() {
		metrics.IndexerPollDuration.Observe(time.Since(start).Seconds())
		metrics.IndexerPollChecksTotal.Inc()
	}()

	rootInfo, err := os.Stat(idx.mediaDir)
	if err != nil {
		return false, fmt.Errorf("failed to stat media directory: %w", err)
	}

	idx.stateMu.RLock()
	lastRootModTime := idx.lastRootModTime
	lastTopLevelCount := idx.lastTopLevelCount
	idx.stateMu.RUnlock()

	if rootInfo.ModTime().After(lastRootModTime) {
		log.Debug("Root directory modified: %v > %v", rootInfo.ModTime(), lastRootModTime)
		metrics.IndexerPollChangesDetected.Inc()
		return true, nil
	}

	entries, err := filesystem.ReadDirWithRetry(idx.mediaDir, filesystem.DefaultRetryConfig())
	if err != nil {
		return false, fmt.Errorf("failed to read media directory: %w", err)
	}

	topLevelCount := 0
	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name(), ".") {
			topLevelCount++
		}
	}
	if topLevelCount != lastTopLevelCount {
		log.Debug("Top-level count changed: %d -> %d", lastTopLevelCount, topLevelCount)
		metrics.IndexerPollChangesDetected.Inc()
		return true, nil
	}

	if idx.checkSubdirectorySample(entries) {
		metrics.IndexerPollChangesDetected.Inc()
		return true, nil
	}
	return false, nil
}

// checkSubdirectorySample checks modification times of top-level
// subdirectories.
func (idx *Indexer) checkSubdirectorySample(entries []fs.DirEntry) bool {
	idx.stateMu.RLock()
	lastSubdirModTimes := idx.lastSubdirModTimes
	idx.stateMu.RUnlock()

	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		info, err := os.Stat(filepath.Join(idx.mediaDir, entry.Name()))
		if err != nil {
			continue
		}
		lastMod, exists := lastSubdirModTimes[entry.Name()]
		if !exists {
			log.Debug("New subdirectory detected: %s", entry.Name())
			return true
		}
		if info.ModTime().After(lastMod) {
			log.Debug("Subdirectory %s modified: %v > %v", entry.Name(), info.ModTime(), lastMod)
			return true
		}
	}
	return false
}

// updateLastKnownState updates the cached state after indexing.
func (idx *Indexer) updateLastKnownState() {
	rootInfo, err := os.Stat(idx.mediaDir)
	if err != nil {
		log.Warn("Failed to stat media directory for state update: %v", err)
		return
	}
	entries, err := filesystem.ReadDirWithRetry(idx.mediaDir, filesystem.DefaultRetryConfig())
	if err != nil {
		log.Warn("Failed to read media directory for state update: %v", err)
		return
	}

	topLevelCount := 0
	subdirModTimes := make(map[string]time.Time)
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		topLevelCount++
		if entry.IsDir() {
			if info, err := os.Stat(filepath.Join(idx.mediaDir, entry.Name())); err == nil {
				subdirModTimes[entry.Name()] = info.ModTime()
			}
		}
	}

	idx.stateMu.Lock()
	idx.lastRootModTime = rootInfo.ModTime()
	idx.lastTopLevelCount = topLevelCount
	idx.lastSubdirModTimes = subdirModTimes
	idx.stateMu.Unlock()
}

// ErrIndexInProgress is returned by Index when another scan is running.
var ErrIndexInProgress = errors.New("index already in progress")

// Index walks the media directory, probes new or changed files into the
// cache and drops entries whose files are gone.
func (idx *Indexer) Index(ctx context.Context) (Result, error) {
	if !idx.tryStartIndexing() {
		log.Info("Index already in progress, skipping...")
		return Result{}, ErrIndexInProgress
	}
	defer idx.finishIndexing()

	metrics.IndexerIsRunning.Set(1)
	defer metrics.IndexerIsRunning.Set(0)
	metrics.IndexerRunsTotal.Inc()

	start := time.Now()
	idx.filesFound.Store(0)
	idx.filesProbed.Store(0)

	walker := NewParallelWalker(idx.mediaDir, idx.parallelConfig)
	found, err := walker.Walk(ctx)
	if err != nil {
		metrics.IndexerErrors.Inc()
		return Result{}, fmt.Errorf("walk error: %w", err)
	}
	idx.filesFound.Store(int64(len(found)))

	res := idx.probeAll(ctx, found)
	if err := ctx.Err(); err != nil {
		return res, err
	}

	removed, err := idx.cleanupMissing(ctx, found)
	if err != nil {
		log.Error("Error cleaning up missing files: %v", err)
		metrics.IndexerErrors.Inc()
	}
	res.Removed = removed
	res.Duration = time.Since(start)

	idx.finalizeIndex(ctx, res)
	idx.updateLastKnownState()
	return res, nil
}

// probeAll probes every candidate not already current in the cache, at
// most gate-capacity at a time.
func (idx *Indexer) probeAll(ctx context.Context, found []Candidate) Result {
	res := Result{Found: len(found)}
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, c := range found {
		if e, ok := idx.cache.Current(ctx, c.Path); ok && e.Matches(c.Size, c.ModTime) {
			res.Skipped++
			metrics.IndexerFilesSkipped.Inc()
			continue
		}

		release, err := idx.gate.Acquire(ctx)
		if err != nil {
			break
		}
		wg.Add(1)
		go func(c Candidate) {
			defer wg.Done()
			defer release()

			err := idx.probeFile(ctx, c)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Failed++
				metrics.IndexerErrors.Inc()
				log.Warn("Failed to probe %s: %v", c.Path, err)
				return
			}
			res.Probed++
			idx.filesProbed.Add(1)
			metrics.IndexerFilesProbed.Inc()
		}(c)
	}
	wg.Wait()
	return res
}

func (idx *Indexer) probeFile(ctx context.Context, c Candidate) error {
	entry := database.ProbeEntry{}
	if c.Kind == mediatypes.KindImage {
		dims, err := media.GetImageDimensions(c.Path)
		if err != nil {
			return err
		}
		entry.Width, entry.Height = dims.Width, dims.Height
		return idx.cache.Put(ctx, c.Path, entry)
	}

	pctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	info, err := idx.backend.Open(pctx, c.Path)
	if err != nil {
		return err
	}
	entry.Duration = info.Duration
	if v, ok := info.Video(); ok {
		entry.Width, entry.Height = v.Width, v.Height
	}
	_, entry.HasAudio = info.Audio()
	return idx.cache.Put(ctx, c.Path, entry)
}

// cleanupMissing drops cache entries under the media directory whose files
// were not found by the walk.
func (idx *Indexer) cleanupMissing(ctx context.Context, found []Candidate) (int, error) {
	seen := make(map[string]bool, len(found))
	for _, c := range found {
		seen[c.Path] = true
	}

	paths, err := idx.db.ProbePaths(ctx)
	if err != nil {
		return 0, err
	}
	prefix := filepath.Clean(idx.mediaDir) + string(filepath.Separator)
	removed := 0
	for _, p := range paths {
		if !strings.HasPrefix(p, prefix) || seen[p] {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			// Hidden or otherwise skipped but still present.
			continue
		}
		if err := idx.db.DeleteProbe(ctx, p); err != nil {
			return removed, err
		}
		removed++
	}
	if removed > 0 {
		metrics.IndexerFilesRemoved.Add(float64(removed))
		log.Info("Removed %d missing files from probe cache", removed)
	}
	return removed, nil
}

func (idx *Indexer) tryStartIndexing() bool {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()

	if idx.isIndexing {
		return false
	}
	idx.isIndexing = true
	return true
}

func (idx *Indexer) finishIndexing() {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()
	idx.isIndexing = false
}

// finalizeIndex records the scan and notifies the callback.
func (idx *Indexer) finalizeIndex(ctx context.Context, res Result) {
	now := time.Now()
	idx.indexMu.Lock()
	idx.lastIndexTime = now
	idx.lastResult = res
	idx.initialIndexComplete = true
	idx.indexMu.Unlock()

	if err := idx.db.SetLastIndexRun(ctx, now); err != nil {
		log.Warn("failed to store last index time: %v", err)
	}
	if _, err := idx.db.CountProbes(ctx); err != nil {
		log.Debug("failed to count probe cache entries: %v", err)
	}

	metrics.IndexerLastRunTimestamp.Set(float64(now.Unix()))
	metrics.IndexerLastRunDuration.Set(res.Duration.Seconds())

	log.Info("Index complete: %d found, %d probed, %d unchanged, %d failed, %d removed in %v",
		res.Found, res.Probed, res.Skipped, res.Failed, res.Removed, res.Duration)

	if idx.onIndexComplete != nil {
		idx.onIndexComplete(res)
	}
}

// IsIndexing returns whether an index operation is currently in progress.
func (idx *Indexer) IsIndexing() bool {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()
	return idx.isIndexing
}

// LastIndexTime returns the time of the last completed index operation.
func (idx *Indexer) LastIndexTime() time.Time {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()
	return idx.lastIndexTime
}

// TriggerIndex starts a rescan in the background.
func (idx *Indexer) TriggerIndex() {
	idx.wg.Add(1)
	go func() {
		defer idx.wg.Done()
		if _, err := idx.Index(idx.ctx); err != nil && !errors.Is(err, ErrIndexInProgress) && !errors.Is(err, context.Canceled) {
			log.Error("manually triggered re-index failed: %v", err)
		}
	}()
}
