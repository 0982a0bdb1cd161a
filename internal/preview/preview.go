package preview

import (
	"image"
	"sync"
	"sync/atomic"

	"media-editor/internal/framecache"
	"media-editor/internal/logging"
	"media-editor/internal/memory"
	"media-editor/internal/orchestrator"
)

// DefaultMaxResults bounds how many shared results one tick applies.
const DefaultMaxResults = 64

var log = logging.For("preview")

// Source is the part of the orchestrator a Preview drives.
type Source interface {
	PollScrub() (orchestrator.Result, bool)
	PollResult() (orchestrator.Result, bool)
	PollPlayback() (orchestrator.PlaybackFrame, bool)
	RequestScrub(clip, path string, ts float64)
	StartPlayback(clip, path string, ts float64) (uint64, error)
	StopPlayback() error
}

// ClipState collects what probing has reported about a clip.
type ClipState struct {
	Duration  float64
	Width     int
	Height    int
	Thumbnail *image.NRGBA
	Peaks     []float32
	AudioPath string
	Err       string
}

// JobState tracks an encode job.
type JobState struct {
	ID        string
	Frame     int
	Total     int
	Done      bool
	Output    string
	Err       string
	Cancelled bool
}

// TickStats reports what one tick did.
type TickStats struct {
	Scrubbed int
	Results  int
	Promoted bool
}

// Preview applies orchestrator output to the frame stores.
type Preview struct {
	src      Source
	cache    *framecache.Cache
	current  *framecache.Current
	promoter *framecache.Promoter

	playing bool
	// ended is set once the playing session reports it has no more frames.
	ended bool

	maxResults int
	onResult   func(orchestrator.Result)

	// shed is set from the memory monitor goroutine and consumed by Tick.
	shed atomic.Bool

	mu    sync.RWMutex
	clips map[string]*ClipState
	jobs  map[string]*JobState
}

// New creates a Preview. A nil observer is allowed.
func New(src Source, cache *framecache.Cache, obs framecache.Observer) *Preview {
	return &Preview{
		src:        src,
		cache:      cache,
		current:    framecache.NewCurrent(),
		promoter:   framecache.NewPromoter(obs),
		maxResults: DefaultMaxResults,
		clips:      make(map[string]*ClipState),
		jobs:       make(map[string]*JobState),
	}
}

// SetMaxResults changes the per-tick result bound.
func (p *Preview) SetMaxResults(n int) {
	if n > 0 {
		p.maxResults = n
	}
}

// OnResult registers fn to see every shared result after it is applied.
// fn runs on the ticking goroutine.
func (p *Preview) OnResult(fn func(orchestrator.Result)) {
	p.onResult = fn
}

// WatchMemory sheds half the cache on the next tick whenever m reports
// memory pressure.
func (p *Preview) WatchMemory(m *memory.Monitor) {
	m.OnThrottle(p.Throttle)
}

// Throttle requests a cache shed on the next tick.
func (p *Preview) Throttle(throttle bool) {
	if throttle {
		p.shed.Store(true)
	}
}

// Cache returns the rolling frame cache.
func (p *Preview) Cache() *framecache.Cache {
	return p.cache
}

// Frame returns the frame on screen for clip.
func (p *Preview) Frame(clip string) (framecache.Frame, bool) {
	return p.current.Get(clip)
}

// Playing reports whether a playback session is active.
func (p *Preview) Playing() bool {
	return p.playing
}

// Scrub shows the frame of clip at ts. A cached frame is shown at once and
// true returned; otherwise a decode is requested.
func (p *Preview) Scrub(clip, path string, ts float64) bool {
	p.cache.SetPlayhead(ts)
	if e, ok := p.cache.Get(clip, ts); ok {
		if !p.playing {
			p.current.Set(clip, framecache.Frame{Image: e.Image, PTS: e.PTS})
		}
		return true
	}
	p.src.RequestScrub(clip, path, ts)
	return false
}

// Play starts playback of clip from ts.
func (p *Preview) Play(clip, path string, ts float64) error {
	session, err := p.src.StartPlayback(clip, path, ts)
	if err != nil {
		return err
	}
	p.promoter.Reset(session)
	p.playing, p.ended = true, false
	log.Debug("Playback session %d: %s from %.3fs", session, clip, ts)
	return nil
}

// Stop ends playback. The last promoted frame stays on screen.
func (p *Preview) Stop() error {
	if !p.playing {
		return nil
	}
	p.playing, p.ended = false, false
	p.promoter.Reset(0)
	return p.src.StopPlayback()
}

// Tick runs one consumer step. local is the play position within the
// playing clip; known is false when the playhead is outside it.
func (p *Preview) Tick(local float64, known bool) TickStats {
	var st TickStats

	if p.shed.Swap(false) {
		if n := p.cache.Shed(p.cache.Budget() / 2); n > 0 {
			log.Info("Memory pressure: shed %d cached frames", n)
		}
	}
	if known {
		p.cache.SetPlayhead(local)
	}

	for {
		r, ok := p.src.PollScrub()
		if !ok {
			break
		}
		p.applyScrub(r)
		st.Scrubbed++
	}

	for st.Results < p.maxResults {
		r, ok := p.src.PollResult()
		if !ok {
			break
		}
		p.apply(r)
		st.Results++
	}

	if p.playing {
		if item, ok := p.promoter.Tick(local, known, p.receive); ok {
			p.current.Set(item.Clip, framecache.Frame{Image: item.Image, PTS: item.PTS})
			p.cache.Insert(item.Clip, item.PTS, item.Image)
			st.Promoted = true
		}
		if p.ended && p.drained(local, known) {
			log.Debug("Playback session %d finished", p.promoter.Session())
			p.playing, p.ended = false, false
			p.promoter.Reset(0)
		}
	}
	return st
}

// drained reports whether an ended session has nothing left to show.
func (p *Preview) drained(local float64, known bool) bool {
	item, ok := p.promoter.Pending()
	return !ok || (known && item.PTS < local-framecache.StaleWindow)
}

func (p *Preview) receive() (framecache.PlaybackItem, bool) {
	f, ok := p.src.PollPlayback()
	if !ok {
		return framecache.PlaybackItem{}, false
	}
	if f.End {
		if f.Session == p.promoter.Session() {
			p.ended = true
		}
		return framecache.PlaybackItem{}, false
	}
	if f.Frame == nil {
		return framecache.PlaybackItem{}, false
	}
	return framecache.PlaybackItem{Clip: f.Clip, Session: f.Session, PTS: f.Frame.PTS, Image: f.Frame.Image}, true
}

func (p *Preview) applyScrub(r orchestrator.Result) {
	if r.Frame == nil {
		return
	}
	p.cache.Insert(r.Clip, r.Time, r.Frame.Image)
	if !p.playing {
		p.current.Set(r.Clip, framecache.Frame{Image: r.Frame.Image, PTS: r.Frame.PTS})
	}
}
