package preview

import "media-editor/internal/orchestrator"

// Clip returns a copy of the probe state of clip.
func (p *Preview) Clip(id string) (ClipState, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	c, ok := p.clips[id]
	if !ok {
		return ClipState{}, false
	}
	return *c, true
}

// Job returns a copy of the state of encode job id.
func (p *Preview) Job(id string) (JobState, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	j, ok := p.jobs[id]
	if !ok {
		return JobState{}, false
	}
	return *j, true
}

// Forget drops everything known about clip, cached frames included.
func (p *Preview) Forget(clip string) {
	p.mu.Lock()
	delete(p.clips, clip)
	p.mu.Unlock()
	p.current.Remove(clip)
	p.cache.RemoveClip(clip)
}

func (p *Preview) clip(id string) *ClipState {
	c, ok := p.clips[id]
	if !ok {
		c = &ClipState{}
		p.clips[id] = c
	}
	return c
}

func (p *Preview) job(id string) *JobState {
	j, ok := p.jobs[id]
	if !ok {
		j = &JobState{ID: id}
		p.jobs[id] = j
	}
	return j
}

// apply folds one shared result into clip or job state.
func (p *Preview) apply(r orchestrator.Result) {
	p.mu.Lock()
	switch r.Kind {
	case orchestrator.ResultDuration:
		p.clip(r.Clip).Duration = r.Duration
	case orchestrator.ResultVideoSize:
		c := p.clip(r.Clip)
		c.Width, c.Height = r.Width, r.Height
	case orchestrator.ResultThumbnail:
		p.clip(r.Clip).Thumbnail = r.Thumbnail
	case orchestrator.ResultWaveform:
		p.clip(r.Clip).Peaks = r.Peaks
	case orchestrator.ResultAudioPath:
		p.clip(r.Clip).AudioPath = r.Path
	case orchestrator.ResultError:
		if r.Clip != "" {
			p.clip(r.Clip).Err = r.Message
		}
	case orchestrator.ResultEncodeProgress:
		j := p.job(r.Job)
		j.Frame, j.Total = r.FrameIndex, r.Total
	case orchestrator.ResultEncodeDone:
		j := p.job(r.Job)
		j.Done, j.Output = true, r.Path
		j.Frame, j.Total = r.FrameIndex, r.Total
	case orchestrator.ResultEncodeError:
		j := p.job(r.Job)
		j.Done, j.Err, j.Cancelled = true, r.Message, r.Cancelled()
	}
	p.mu.Unlock()

	if r.IsError() && !r.Cancelled() {
		id := r.Clip
		if id == "" {
			id = r.Job
		}
		log.Warn("%s for %s: %s", r.Kind, id, r.Message)
	}
	if p.onResult != nil {
		p.onResult(r)
	}
}
