package encoder

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"media-editor/internal/transitions"

	"gopkg.in/yaml.v3"
)

// Default encoder settings.
const (
	DefaultCRF    = 18
	DefaultPreset = "fast"
)

// ClipSpec is one clip's contribution to an export.
type ClipSpec struct {
	Path string `yaml:"path" json:"path"`
	// Start is the trim offset into the source in seconds.
	Start float64 `yaml:"start" json:"start"`
	// Duration is how much of the source to include, in seconds.
	Duration float64 `yaml:"duration" json:"duration"`
	// Gain scales the clip's audio. It defaults to 1 when omitted.
	Gain float64 `yaml:"gain" json:"gain"`
	// SkipAudio suppresses audio decode entirely; the clip contributes
	// silence.
	SkipAudio bool `yaml:"skip_audio" json:"skip_audio"`
}

// UnmarshalYAML applies the default gain before decoding.
func (c *ClipSpec) UnmarshalYAML(node *yaml.Node) error {
	type plain ClipSpec
	p := plain{Gain: 1}
	if err := node.Decode(&p); err != nil {
		return err
	}
	*c = ClipSpec(p)
	return nil
}

// TransitionSpec joins clip AfterClip to clip AfterClip+1.
type TransitionSpec struct {
	AfterClip int              `yaml:"after_clip" json:"after_clip"`
	Kind      transitions.Kind `yaml:"kind" json:"kind"`
	// Duration of the overlap in seconds. Zero selects the kind's default.
	Duration float64 `yaml:"duration" json:"duration"`
}

// Job is a complete export request.
type Job struct {
	ID          string           `yaml:"id,omitempty" json:"id,omitempty"`
	Clips       []ClipSpec       `yaml:"clips" json:"clips"`
	Transitions []TransitionSpec `yaml:"transitions,omitempty" json:"transitions,omitempty"`
	Width       int              `yaml:"width" json:"width"`
	Height      int              `yaml:"height" json:"height"`
	FPS         int              `yaml:"fps" json:"fps"`
	Output      string           `yaml:"output" json:"output"`
	CRF         int              `yaml:"crf,omitempty" json:"crf,omitempty"`
	Preset      string           `yaml:"preset,omitempty" json:"preset,omitempty"`
}

// ParseJob decodes a YAML or JSON job.
func ParseJob(data []byte) (*Job, error) {
	var job Job
	if err := yaml.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("parse job: %w", err)
	}
	return &job, nil
}

// LoadJob reads a job file.
func LoadJob(path string) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load job: %w", err)
	}
	return ParseJob(data)
}

// Marshal encodes the job as YAML.
func (j *Job) Marshal() ([]byte, error) {
	return yaml.Marshal(j)
}

// Validate checks the job against the registry. A nil registry uses the
// default one.
func (j *Job) Validate(reg *transitions.Registry) error {
	if reg == nil {
		reg = transitions.Default()
	}
	var errs []error
	if len(j.Clips) == 0 {
		errs = append(errs, errors.New("nothing to encode: timeline is empty"))
	}
	if strings.TrimSpace(j.Output) == "" {
		errs = append(errs, errors.New("output path is required"))
	}
	if j.Width <= 0 || j.Height <= 0 || j.Width%2 != 0 || j.Height%2 != 0 {
		errs = append(errs, fmt.Errorf("output size %dx%d must be positive and even", j.Width, j.Height))
	}
	if j.FPS <= 0 {
		errs = append(errs, fmt.Errorf("fps %d must be positive", j.FPS))
	}
	for i, c := range j.Clips {
		if c.Path == "" {
			errs = append(errs, fmt.Errorf("clip %d: path is required", i))
		}
		if c.Start < 0 {
			errs = append(errs, fmt.Errorf("clip %d: negative start %v", i, c.Start))
		}
		if c.Duration <= 0 {
			errs = append(errs, fmt.Errorf("clip %d: duration %v must be positive", i, c.Duration))
		}
		if c.Gain < 0 {
			errs = append(errs, fmt.Errorf("clip %d: negative gain %v", i, c.Gain))
		}
	}
	seen := make(map[int]bool, len(j.Transitions))
	for _, t := range j.Transitions {
		if t.AfterClip < 0 || t.AfterClip >= len(j.Clips)-1 {
			errs = append(errs, fmt.Errorf("transition after clip %d has no following clip", t.AfterClip))
			continue
		}
		if seen[t.AfterClip] {
			errs = append(errs, fmt.Errorf("more than one transition after clip %d", t.AfterClip))
		}
		seen[t.AfterClip] = true
		if _, ok := reg.Lookup(t.Kind); !ok {
			errs = append(errs, fmt.Errorf("transition after clip %d: unknown kind %q", t.AfterClip, t.Kind))
		}
		if t.Duration < 0 {
			errs = append(errs, fmt.Errorf("transition after clip %d: negative duration", t.AfterClip))
		}
	}
	return errors.Join(errs...)
}

// ClipFrames is the number of output frames a clip of the given duration
// contributes at fps.
func ClipFrames(duration float64, fps int) int {
	return int(math.Ceil(duration*float64(fps) - 1e-9))
}

// Segment is one clip's place in the output.
type Segment struct {
	Clip ClipSpec
	// Frames the clip contributes, including overlapped ones.
	Frames int
	// In is the number of head frames shared with the previous clip.
	In int
	// Out is the number of tail frames shared with the next clip.
	Out int
	// Transition into the next clip, resolved against the registry.
	Transition transitions.Spec
}

// Plan is the resolved frame layout of a job.
type Plan struct {
	Segments []Segment
	Total    int
}

// Plan resolves transitions and overlaps. Overlaps are clamped so that no
// clip shares more frames than it has.
func (j *Job) Plan(reg *transitions.Registry) *Plan {
	if reg == nil {
		reg = transitions.Default()
	}
	byClip := make(map[int]TransitionSpec, len(j.Transitions))
	for _, t := range j.Transitions {
		byClip[t.AfterClip] = t
	}

	p := &Plan{Segments: make([]Segment, len(j.Clips))}
	for i, c := range j.Clips {
		p.Segments[i] = Segment{Clip: c, Frames: ClipFrames(c.Duration, j.FPS)}
	}
	for i := 0; i+1 < len(p.Segments); i++ {
		t, ok := byClip[i]
		if !ok {
			continue
		}
		impl, ok := reg.Lookup(t.Kind)
		if !ok {
			continue
		}
		spec := impl.Build(t.Duration)
		if spec.IsCut() {
			continue
		}
		cur, next := &p.Segments[i], &p.Segments[i+1]
		overlap := int(math.Round(spec.Duration * float64(j.FPS)))
		overlap = min(overlap, cur.Frames-cur.In, next.Frames)
		if overlap <= 0 {
			continue
		}
		cur.Out = overlap
		cur.Transition = spec
		next.In = overlap
	}
	for _, s := range p.Segments {
		p.Total += s.Frames - s.Out
	}
	return p
}

// TotalFrames is the number of frames the job produces.
func (j *Job) TotalFrames(reg *transitions.Registry) int {
	return j.Plan(reg).Total
}

// Duration is the output duration in seconds.
func (j *Job) Duration(reg *transitions.Registry) float64 {
	if j.FPS <= 0 {
		return 0
	}
	return float64(j.TotalFrames(reg)) / float64(j.FPS)
}
