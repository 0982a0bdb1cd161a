package timeline

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"media-editor/internal/mediatypes"
	"media-editor/internal/transitions"
)

// Track rows.
const (
	TrackV1 = 0
	TrackA1 = 1
	TrackV2 = 2
	TrackA2 = 3
)

// Placeholder length of a clip whose source has not been probed yet.
const placeholderDuration = 1.0

// Media is a source file in the library.
type Media struct {
	ID       uuid.UUID       `yaml:"id" json:"id"`
	Path     string          `yaml:"path" json:"path"`
	Name     string          `yaml:"name" json:"name"`
	Kind     mediatypes.Kind `yaml:"kind" json:"kind"`
	Duration float64         `yaml:"duration" json:"duration"`
	Probed   bool            `yaml:"probed" json:"probed"`
	Width    int             `yaml:"width,omitempty" json:"width,omitempty"`
	Height   int             `yaml:"height,omitempty" json:"height,omitempty"`
}

// Clip is a piece of a Media placed on a track.
type Clip struct {
	ID       uuid.UUID `yaml:"id" json:"id"`
	MediaID  uuid.UUID `yaml:"media" json:"media"`
	Start    float64   `yaml:"start" json:"start"`
	Duration float64   `yaml:"duration" json:"duration"`
	Track    int       `yaml:"track" json:"track"`
	// Offset is where in the source the clip begins.
	Offset float64 `yaml:"offset" json:"offset"`
	Volume float64 `yaml:"volume" json:"volume"`
	// Linked is the other half of an extracted audio pair, or uuid.Nil.
	Linked     uuid.UUID `yaml:"linked,omitempty" json:"linked,omitempty"`
	AudioMuted bool      `yaml:"audio_muted,omitempty" json:"audio_muted,omitempty"`
}

// UnmarshalYAML gives clips without a volume full volume.
func (c *Clip) UnmarshalYAML(node *yaml.Node) error {
	type plain Clip
	p := plain{Volume: 1}
	if err := node.Decode(&p); err != nil {
		return err
	}
	*c = Clip(p)
	return nil
}

// End returns the timeline time the clip ends at.
func (c Clip) End() float64 {
	return c.Start + c.Duration
}

// Transition joins a clip to the one after it on the same track.
type Transition struct {
	After    uuid.UUID        `yaml:"after" json:"after"`
	Kind     transitions.Kind `yaml:"kind" json:"kind"`
	Duration float64          `yaml:"duration,omitempty" json:"duration,omitempty"`
}

// Timeline is a whole project.
type Timeline struct {
	Aspect      Aspect       `yaml:"aspect" json:"aspect"`
	Library     []Media      `yaml:"library" json:"library"`
	Clips       []Clip       `yaml:"clips" json:"clips"`
	Transitions []Transition `yaml:"transitions,omitempty" json:"transitions,omitempty"`
}

// New returns an empty 16:9 project.
func New() *Timeline {
	return &Timeline{Aspect: Aspect16x9}
}

// Load reads a project file.
func Load(path string) (*Timeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read project: %w", err)
	}
	t := New()
	if err := yaml.Unmarshal(data, t); err != nil {
		return nil, fmt.Errorf("failed to parse project %s: %w", path, err)
	}
	return t, nil
}

// Save writes the project as YAML.
func (t *Timeline) Save(path string) error {
	data, err := yaml.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to encode project: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write project: %w", err)
	}
	return nil
}

// AddMedia imports path into the library and returns its ID. Importing a
// path twice returns the existing entry.
func (t *Timeline) AddMedia(path string) uuid.UUID {
	for _, m := range t.Library {
		if m.Path == path {
			return m.ID
		}
	}
	kind := mediatypes.KindOf(path)
	if kind != mediatypes.KindAudio {
		kind = mediatypes.KindVideo
	}
	m := Media{
		ID:   uuid.New(),
		Path: path,
		Name: filepath.Base(path),
		Kind: kind,
	}
	t.Library = append(t.Library, m)
	return m.ID
}

// Media returns the library entry id.
func (t *Timeline) Media(id uuid.UUID) (*Media, bool) {
	for i := range t.Library {
		if t.Library[i].ID == id {
			return &t.Library[i], true
		}
	}
	return nil, false
}

// SetProbe records what probing found. Clips still at their placeholder
// length grow to the full duration. The first video with a known size sets
// the project aspect.
func (t *Timeline) SetProbe(id uuid.UUID, duration float64, w, h int) {
	m, ok := t.Media(id)
	if !ok {
		return
	}
	m.Duration, m.Probed = duration, true
	if w > 0 && h > 0 {
		first := true
		for _, o := range t.Library {
			if o.ID != id && o.Width > 0 {
				first = false
				break
			}
		}
		m.Width, m.Height = w, h
		if first {
			t.Aspect = DetectAspect(w, h)
		}
	}
	for i := range t.Clips {
		c := &t.Clips[i]
		if c.MediaID == id && c.Duration <= placeholderDuration {
			c.Duration = duration
		}
	}
}

// RemoveMedia drops a library entry and every clip made from it.
func (t *Timeline) RemoveMedia(id uuid.UUID) bool {
	idx := -1
	for i, m := range t.Library {
		if m.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	t.Library = append(t.Library[:idx], t.Library[idx+1:]...)
	var drop []uuid.UUID
	for _, c := range t.Clips {
		if c.MediaID == id {
			drop = append(drop, c.ID)
		}
	}
	for _, c := range drop {
		t.RemoveClip(c)
	}
	return true
}

// Place puts media on the timeline near at, on the track closest to row
// that fits its kind. Starts within half a second of zero snap to zero; an
// empty track always starts at zero; a start within a second of the end of
// the track snaps to that end.
func (t *Timeline) Place(mediaID uuid.UUID, at float64, row int) (uuid.UUID, bool) {
	m, ok := t.Media(mediaID)
	if !ok {
		return uuid.Nil, false
	}

	if m.Kind == mediatypes.KindAudio {
		if row%2 == 0 {
			row++
		}
		row = min(row, TrackA2)
	} else {
		if row%2 == 1 {
			row--
		}
		row = min(max(row, TrackV1), TrackV2)
	}

	start := at
	if start < 0.5 {
		start = 0
	}
	end, used := t.trackEnd(row)
	switch {
	case !used:
		start = 0
	case math.Abs(start-end) < 1:
		start = end
	}

	c := Clip{
		ID:       uuid.New(),
		MediaID:  mediaID,
		Start:    start,
		Duration: max(m.Duration, placeholderDuration),
		Track:    row,
		Volume:   1,
	}
	t.Clips = append(t.Clips, c)
	return c.ID, true
}

func (t *Timeline) trackEnd(row int) (float64, bool) {
	end, used := 0.0, false
	for _, c := range t.Clips {
		if c.Track == row {
			end, used = max(end, c.End()), true
		}
	}
	return end, used
}

// Clip returns the clip id.
func (t *Timeline) Clip(id uuid.UUID) (*Clip, bool) {
	for i := range t.Clips {
		if t.Clips[i].ID == id {
			return &t.Clips[i], true
		}
	}
	return nil, false
}

// Linked returns the clip paired with id by audio extraction.
func (t *Timeline) Linked(id uuid.UUID) (*Clip, bool) {
	c, ok := t.Clip(id)
	if !ok || c.Linked == uuid.Nil {
		return nil, false
	}
	return t.Clip(c.Linked)
}

// ClipAt returns the clip on track under time.
func (t *Timeline) ClipAt(track int, time float64) (*Clip, bool) {
	for i := range t.Clips {
		c := &t.Clips[i]
		if c.Track == track && time >= c.Start && time < c.End() {
			return c, true
		}
	}
	return nil, false
}

// ExtractAudio moves the sound of video clip id onto the audio track below
// it. The video clip is muted and the two clips are linked. It returns the
// new audio clip.
func (t *Timeline) ExtractAudio(id uuid.UUID) (uuid.UUID, bool) {
	c, ok := t.Clip(id)
	if !ok || c.AudioMuted || c.Track%2 == 1 {
		return uuid.Nil, false
	}
	if m, ok := t.Media(c.MediaID); !ok || m.Kind != mediatypes.KindVideo {
		return uuid.Nil, false
	}

	audio := Clip{
		ID:       uuid.New(),
		MediaID:  c.MediaID,
		Start:    c.Start,
		Duration: c.Duration,
		Track:    min(c.Track+1, TrackA2),
		Offset:   c.Offset,
		Volume:   1,
		Linked:   c.ID,
	}
	c.AudioMuted = true
	c.Linked = audio.ID
	t.Clips = append(t.Clips, audio)
	return audio.ID, true
}

// RemoveClip deletes clip id with its transition. A linked partner stays
// and is unlinked; a muted video clip whose audio clip is deleted stays
// muted.
func (t *Timeline) RemoveClip(id uuid.UUID) bool {
	if partner, ok := t.Linked(id); ok {
		partner.Linked = uuid.Nil
	}
	for i, c := range t.Clips {
		if c.ID == id {
			t.Clips = append(t.Clips[:i], t.Clips[i+1:]...)
			t.RemoveTransition(id)
			return true
		}
	}
	return false
}

// SetTransition joins clip after to its successor. A cut removes any
// transition there.
func (t *Timeline) SetTransition(after uuid.UUID, kind transitions.Kind, duration float64) {
	t.RemoveTransition(after)
	if kind == transitions.KindCut || kind == "" {
		return
	}
	t.Transitions = append(t.Transitions, Transition{After: after, Kind: kind, Duration: duration})
}

// RemoveTransition deletes the transition following clip after.
func (t *Timeline) RemoveTransition(after uuid.UUID) {
	out := t.Transitions[:0]
	for _, tr := range t.Transitions {
		if tr.After != after {
			out = append(out, tr)
		}
	}
	t.Transitions = out
}

// TransitionAfter returns the transition following clip id.
func (t *Timeline) TransitionAfter(id uuid.UUID) (Transition, bool) {
	for _, tr := range t.Transitions {
		if tr.After == id {
			return tr, true
		}
	}
	return Transition{}, false
}

// Track returns the clips of row in timeline order.
func (t *Timeline) Track(row int) []Clip {
	var out []Clip
	for _, c := range t.Clips {
		if c.Track == row {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// TotalDuration is the end of the last clip on any track.
func (t *Timeline) TotalDuration() float64 {
	end := 0.0
	for _, c := range t.Clips {
		end = max(end, c.End())
	}
	return end
}
