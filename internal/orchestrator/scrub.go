package orchestrator

import (
	"time"

	"media-editor/internal/decoder"
	"media-editor/internal/metrics"
	"media-editor/internal/planes"
)

type scrubRequest struct {
	clip string
	path string
	ts   float64
}

// RequestScrub asks for the frame of path at ts. Only the newest request
// waiting in the slot is served; older ones are dropped unseen.
func (o *Orchestrator) RequestScrub(clip, path string, ts float64) {
	metrics.ScrubRequestsTotal.Inc()
	o.scrubMu.Lock()
	if o.scrubReq != nil {
		metrics.ScrubSupersededTotal.Inc()
	}
	o.scrubReq = &scrubRequest{clip: clip, path: path, ts: ts}
	o.scrubMu.Unlock()
	o.scrubCond.Signal()
}

// nextScrub blocks until a request is waiting or the slot is stopped.
func (o *Orchestrator) nextScrub() (*scrubRequest, bool) {
	o.scrubMu.Lock()
	defer o.scrubMu.Unlock()
	for o.scrubReq == nil && !o.scrubStop {
		o.scrubCond.Wait()
	}
	if o.scrubStop {
		return nil, false
	}
	req := o.scrubReq
	o.scrubReq = nil
	return req, true
}

func (o *Orchestrator) scrubLoop() {
	defer o.wg.Done()

	var dec *decoder.Decoder
	defer func() {
		if dec != nil {
			dec.Close()
		}
	}()

	for {
		req, ok := o.nextScrub()
		if !ok {
			return
		}
		start := time.Now()

		if reason := o.resetReason(dec, req); reason != "" {
			metrics.ScrubDecoderResets.WithLabelValues(reason).Inc()
			var reuse *planes.Scaler
			if dec != nil {
				reuse = dec.Scaler()
				dec.Close()
				dec = nil
			}
			d, err := decoder.Open(o.ctx, o.backend, req.path, decoder.Options{MaxWidth: o.cfg.PreviewWidth, Mode: "scrub"}, reuse)
			if err != nil {
				o.fail("scrub", req.clip, err)
				continue
			}
			dec = d
			if _, err := dec.Seek(req.ts); err != nil {
				o.fail("scrub", req.clip, err)
				continue
			}
		}

		frame, err := dec.AdvanceTo(req.ts)
		if err != nil {
			o.fail("scrub", req.clip, err)
			dec.Close()
			dec = nil
			continue
		}

		sendResult(o.ctx, o.scrubOut, Result{Kind: ResultFrame, Clip: req.clip, Path: req.path, Time: req.ts, Frame: frame})
		metrics.ScrubLatency.Observe(time.Since(start).Seconds())
	}
}

// resetReason says why the scrub decoder must be reopened, or "" when it
// can decode forward to the request.
func (o *Orchestrator) resetReason(dec *decoder.Decoder, req *scrubRequest) string {
	switch {
	case dec == nil || dec.Path() != req.path:
		return "new_file"
	case req.ts <= dec.LastPTS():
		return "backward"
	case req.ts > dec.LastPTS()+o.cfg.ScrubJump:
		return "jump"
	}
	return ""
}
