package indexer

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"media-editor/internal/logging"
	"media-editor/internal/mediatypes"
	"media-editor/internal/metrics"
	"media-editor/internal/workers"
)

// ParallelWalkerConfig configures the parallel directory walker
type ParallelWalkerConfig struct {
	// NumWorkers is the number of parallel workers
	NumWorkers int
	// ChannelBuffer is the size of the work channel buffer
	ChannelBuffer int
	// SkipHidden skips files and directories starting with "."
	SkipHidden bool
}

// maxWalkWorkers keeps directory walks gentle on NFS mounts.
const maxWalkWorkers = 3

// DefaultParallelWalkerConfig returns defaults sized by workers.ForIO.
func DefaultParallelWalkerConfig() ParallelWalkerConfig {
	return ParallelWalkerConfig{
		NumWorkers:    workers.ForIO(maxWalkWorkers),
		ChannelBuffer: 1000,
		SkipHidden:    true,
	}
}

// Candidate is a media file found by a walk.
type Candidate struct {
	Path    string
	Kind    mediatypes.Kind
	Size    int64
	ModTime time.Time
}

type fileJob struct {
	path  string
	entry fs.DirEntry
}

// ParallelWalker walks a directory tree, classifying files on several
// workers.
type ParallelWalker struct {
	config  ParallelWalkerConfig
	rootDir string

	jobs    chan fileJob
	results chan Candidate

	wg sync.WaitGroup

	filesFound  atomic.Int64
	errorsCount atomic.Int64
}

// NewParallelWalker creates a new parallel directory walker
func NewParallelWalker(rootDir string, config ParallelWalkerConfig) *ParallelWalker {
	if config.NumWorkers <= 0 {
		config.NumWorkers = 1
	}
	return &ParallelWalker{
		config:  config,
		rootDir: rootDir,
		jobs:    make(chan fileJob, config.ChannelBuffer),
		results: make(chan Candidate, config.ChannelBuffer),
	}
}

// Walk returns every video, audio and image file under the root. A
// cancelled ctx stops the walk early and returns what was found so far.
func (pw *ParallelWalker) Walk(ctx context.Context) ([]Candidate, error) {
	logging.Debug("Starting parallel directory walk with %d workers", pw.config.NumWorkers)
	startTime := time.Now()
	metrics.IndexerParallelWorkers.Set(float64(pw.config.NumWorkers))

	for i := 0; i < pw.config.NumWorkers; i++ {
		pw.wg.Add(1)
		go pw.worker(ctx)
	}

	var found []Candidate
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for c := range pw.results {
			found = append(found, c)
		}
	}()

	err := pw.walkAndEnqueue(ctx)
	close(pw.jobs)
	pw.wg.Wait()
	close(pw.results)
	<-collected

	logging.Debug("Parallel walk complete: %d media files in %v (errors: %d)",
		pw.filesFound.Load(), time.Since(startTime), pw.errorsCount.Load())

	if err != nil {
		return found, err
	}
	return found, ctx.Err()
}

func (pw *ParallelWalker) walkAndEnqueue(ctx context.Context) error {
	return filepath.WalkDir(pw.rootDir, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return fs.SkipAll
		}
		if err != nil {
			if path == pw.rootDir {
				return err
			}
			pw.errorsCount.Add(1)
			logging.Warn("Error accessing path %s: %v", path, err)
			return nil
		}

		if path != pw.rootDir && pw.config.SkipHidden && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		select {
		case pw.jobs <- fileJob{path: path, entry: d}:
		case <-ctx.Done():
			return fs.SkipAll
		}
		return nil
	})
}

func (pw *ParallelWalker) worker(ctx context.Context) {
	defer pw.wg.Done()

	for job := range pw.jobs {
		if ctx.Err() != nil {
			continue
		}
		c, ok := pw.processFile(job)
		if !ok {
			continue
		}
		pw.filesFound.Add(1)
		pw.results <- c
	}
}

func (pw *ParallelWalker) processFile(job fileJob) (Candidate, bool) {
	kind := mediatypes.KindOf(job.path)
	if kind == mediatypes.KindOther {
		return Candidate{}, false
	}
	info, err := job.entry.Info()
	if err != nil {
		pw.errorsCount.Add(1)
		logging.Debug("Error getting info for %s: %v", job.path, err)
		return Candidate{}, false
	}
	if !info.Mode().IsRegular() {
		return Candidate{}, false
	}
	return Candidate{
		Path:    job.path,
		Kind:    kind,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, true
}

// Stats returns how many media files were found and how many entries
// failed.
func (pw *ParallelWalker) Stats() (files, errors int64) {
	return pw.filesFound.Load(), pw.errorsCount.Load()
}
