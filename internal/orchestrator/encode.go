package orchestrator

import (
	"errors"
	"sort"
	"sync/atomic"

	"github.com/lithammer/shortuuid/v4"

	"media-editor/internal/encoder"
	"media-editor/internal/metrics"
)

// StartEncode starts encoding job in the background. The returned ID names
// the job in every result it produces; a job without an ID gets a fresh one.
// Validation failures arrive as a ResultEncodeError.
func (o *Orchestrator) StartEncode(job *encoder.Job) (string, error) {
	if job.ID == "" {
		job.ID = shortuuid.New()
	}
	id := job.ID
	if o.closing.Load() {
		return id, ErrShutdown
	}

	flag := new(atomic.Bool)
	o.jobsMu.Lock()
	if _, dup := o.jobs[id]; dup {
		o.jobsMu.Unlock()
		return id, errors.New("orchestrator: job " + id + " is already running")
	}
	o.jobs[id] = flag
	o.jobsMu.Unlock()

	if !o.spawn(func() { o.encode(job, flag) }) {
		o.removeJob(id)
		return id, ErrShutdown
	}
	log.Info("Encode %s started: %d clips -> %s", id, len(job.Clips), job.Output)
	return id, nil
}

// CancelEncode asks job id to stop. It reports whether the job was running.
func (o *Orchestrator) CancelEncode(id string) bool {
	o.jobsMu.Lock()
	flag, ok := o.jobs[id]
	o.jobsMu.Unlock()
	if ok {
		flag.Store(true)
		log.Info("Encode %s cancel requested", id)
	}
	return ok
}

// ActiveJobs lists the IDs of running encodes.
func (o *Orchestrator) ActiveJobs() []string {
	o.jobsMu.Lock()
	ids := make([]string, 0, len(o.jobs))
	for id := range o.jobs {
		ids = append(ids, id)
	}
	o.jobsMu.Unlock()
	sort.Strings(ids)
	return ids
}

func (o *Orchestrator) removeJob(id string) {
	o.jobsMu.Lock()
	delete(o.jobs, id)
	o.jobsMu.Unlock()
}

func (o *Orchestrator) encode(job *encoder.Job, flag *atomic.Bool) {
	metrics.EncodeJobsActive.Inc()
	defer metrics.EncodeJobsActive.Dec()

	res, err := o.cfg.Encoder.Run(o.ctx, job, flag, func(frame, total int) {
		o.emit(Result{Kind: ResultEncodeProgress, Job: job.ID, FrameIndex: frame, Total: total})
	})
	o.removeJob(job.ID)

	switch {
	case errors.Is(err, encoder.ErrCancelled):
		metrics.EncodeJobsTotal.WithLabelValues("cancelled").Inc()
		log.Info("Encode %s cancelled", job.ID)
		o.emit(Result{Kind: ResultEncodeError, Job: job.ID, Message: CancelledMessage})
	case err != nil:
		metrics.EncodeJobsTotal.WithLabelValues("error").Inc()
		metrics.WorkerErrorsTotal.WithLabelValues("encode").Inc()
		log.Error("Encode %s failed: %v", job.ID, err)
		o.emit(Result{Kind: ResultEncodeError, Job: job.ID, Message: err.Error()})
	default:
		metrics.EncodeJobsTotal.WithLabelValues("done").Inc()
		log.Info("Encode %s done: %d frames in %s", job.ID, res.Frames, res.Elapsed)
		o.emit(Result{Kind: ResultEncodeDone, Job: job.ID, Path: res.Output, FrameIndex: res.Frames, Total: res.Frames, Duration: res.Duration})
	}
}
