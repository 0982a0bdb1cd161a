package orchestrator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"media-editor/internal/codec"
	"media-editor/internal/logging"
	"media-editor/internal/metrics"
	"media-editor/internal/workers"
)

// ErrShutdown is returned by commands issued after Shutdown.
var ErrShutdown = errors.New("orchestrator: shut down")

var log = logging.For("worker")

// Orchestrator runs decode, probe and encode work in the background.
type Orchestrator struct {
	cfg     Config
	backend codec.Backend

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	results  chan Result
	scrubOut chan Result
	playOut  chan PlaybackFrame
	playCmds chan playCommand

	gate *workers.Gate

	scrubMu   sync.Mutex
	scrubCond *sync.Cond
	scrubReq  *scrubRequest
	scrubStop bool

	jobsMu sync.Mutex
	jobs   map[string]*atomic.Bool

	session atomic.Uint64

	// stash holds a frame of the current session met while draining.
	stashMu sync.Mutex
	stash   *PlaybackFrame

	closing      atomic.Bool
	shutdownOnce sync.Once
}

// New starts the scrub and playback goroutines.
func New(cfg Config) *Orchestrator {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		cfg:      cfg,
		backend:  cfg.Backend,
		ctx:      ctx,
		cancel:   cancel,
		results:  make(chan Result, cfg.ResultBuffer),
		scrubOut: make(chan Result, cfg.ScrubBuffer),
		playOut:  make(chan PlaybackFrame, cfg.PlaybackBuffer),
		playCmds: make(chan playCommand, cfg.PlaybackCommands),
		gate:     cfg.ProbeGate,
		jobs:     make(map[string]*atomic.Bool),
	}
	o.scrubCond = sync.NewCond(&o.scrubMu)

	o.wg.Add(2)
	go o.scrubLoop()
	go o.playbackLoop()

	log.Debug("Started: probe concurrency %d, preview width %d", cfg.ProbeGate.Capacity(), cfg.PreviewWidth)
	return o
}

// spawn runs fn on a tracked goroutine unless shutdown has begun.
func (o *Orchestrator) spawn(fn func()) bool {
	if o.closing.Load() {
		return false
	}
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		fn()
	}()
	return true
}

// emit queues r on the shared result channel. It only gives up when the
// channel is full and shutdown has begun.
func (o *Orchestrator) emit(r Result) bool {
	return sendResult(o.ctx, o.results, r)
}

func sendResult(ctx context.Context, ch chan<- Result, r Result) bool {
	select {
	case ch <- r:
		return true
	default:
	}
	select {
	case ch <- r:
		return true
	case <-ctx.Done():
		log.Debug("Dropped %s result during shutdown", r.Kind)
		return false
	}
}

// fail reports err as a ResultError for clip.
func (o *Orchestrator) fail(worker, clip string, err error) {
	metrics.WorkerErrorsTotal.WithLabelValues(worker).Inc()
	log.Warn("%s failed for %s: %v", worker, clip, err)
	o.emit(Result{Kind: ResultError, Clip: clip, Message: err.Error()})
}

// PollResult returns the next shared result without blocking.
func (o *Orchestrator) PollResult() (Result, bool) {
	select {
	case r := <-o.results:
		return r, true
	default:
		return Result{}, false
	}
}

// PollScrub returns the next scrub frame without blocking.
func (o *Orchestrator) PollScrub() (Result, bool) {
	select {
	case r := <-o.scrubOut:
		return r, true
	default:
		return Result{}, false
	}
}

// PollPlayback returns the next playback frame without blocking.
func (o *Orchestrator) PollPlayback() (PlaybackFrame, bool) {
	o.stashMu.Lock()
	if f := o.stash; f != nil {
		o.stash = nil
		o.stashMu.Unlock()
		return *f, true
	}
	o.stashMu.Unlock()

	select {
	case f := <-o.playOut:
		return f, true
	default:
		return PlaybackFrame{}, false
	}
}

// Shutdown cancels every job, stops every goroutine and waits for them.
// It is safe to call more than once.
func (o *Orchestrator) Shutdown() {
	o.shutdownOnce.Do(func() {
		log.Info("Shutting down")
		o.closing.Store(true)

		o.jobsMu.Lock()
		for _, flag := range o.jobs {
			flag.Store(true)
		}
		o.jobsMu.Unlock()

		o.cancel()
		o.gate.Close()

		o.scrubMu.Lock()
		o.scrubStop = true
		o.scrubMu.Unlock()
		o.scrubCond.Broadcast()

		o.wg.Wait()
		log.Info("All workers stopped")
	})
}
