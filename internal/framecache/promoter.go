package framecache

import "image"

// Playback pacing windows, in seconds.
const (
	// OverdueWindow is how far behind the play position a pending frame may
	// fall before newer frames replace it.
	OverdueWindow = 1.0 / 30
	// EarlyWindow is how far ahead of the play position a frame may be shown.
	EarlyWindow = 1.0 / 60
	// StaleWindow rejects frames this far behind the play position, such as
	// leftovers from a previous clip.
	StaleWindow = 0.5
)

// PlaybackItem is one decoded playback frame with its session tag.
type PlaybackItem struct {
	Clip    string
	Session uint64
	PTS     float64
	Image   *image.RGBA
}

// Receiver is a non-blocking source of playback frames.
type Receiver func() (PlaybackItem, bool)

// Promoter holds one pending playback frame and releases it when the play
// position reaches it. Promoted timestamps never decrease within a session.
type Promoter struct {
	session  uint64
	pending  *PlaybackItem
	last     float64
	promoted bool
	observer Observer
}

// NewPromoter creates a promoter. A nil observer is allowed.
func NewPromoter(o Observer) *Promoter {
	if o == nil {
		o = nopObserver{}
	}
	return &Promoter{observer: o}
}

// Reset starts a new session; frames tagged with any other session are
// discarded from now on.
func (p *Promoter) Reset(session uint64) {
	p.session = session
	p.pending = nil
	p.last = 0
	p.promoted = false
}

// Session returns the current session.
func (p *Promoter) Session() uint64 {
	return p.session
}

// Pending returns the frame waiting to be shown, if any.
func (p *Promoter) Pending() (PlaybackItem, bool) {
	if p.pending == nil {
		return PlaybackItem{}, false
	}
	return *p.pending, true
}

// next receives the next frame of the current session and drops the rest.
func (p *Promoter) next(recv Receiver) (*PlaybackItem, int) {
	skipped := 0
	for {
		item, ok := recv()
		if !ok {
			return nil, skipped
		}
		if item.Session != p.session {
			skipped++
			continue
		}
		return &item, skipped
	}
}

// Tick runs one consumer tick. local is the clip-local play position; known
// is false when the playhead is outside any clip, in which case the pending
// frame is shown as soon as it arrives. It returns the promoted frame, if
// any.
func (p *Promoter) Tick(local float64, known bool, recv Receiver) (PlaybackItem, bool) {
	skipped := 0

	if p.pending == nil {
		var n int
		p.pending, n = p.next(recv)
		skipped += n
	}

	// The consumer lagged behind decode: jump to newer frames.
	if known {
		for p.pending != nil && p.pending.PTS < local-OverdueWindow {
			newer, n := p.next(recv)
			skipped += n
			if newer == nil {
				break
			}
			skipped++
			p.pending = newer
		}
	}

	// Never step backwards within a session.
	if p.pending != nil && p.promoted && p.pending.PTS < p.last {
		p.pending = nil
		skipped++
	}

	due := p.pending != nil &&
		(!known || (p.pending.PTS <= local+EarlyWindow && p.pending.PTS >= local-StaleWindow))
	if !due {
		if skipped > 0 {
			p.observer.ObservePromotion(false, skipped)
		}
		return PlaybackItem{}, false
	}

	out := *p.pending
	p.last = out.PTS
	p.promoted = true
	var n int
	p.pending, n = p.next(recv)
	skipped += n
	p.observer.ObservePromotion(true, skipped)
	return out, true
}
