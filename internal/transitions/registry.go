package transitions

import (
	"fmt"
	"sort"
)

// Kind is the persisted key of a transition strategy.
type Kind string

// Registered kinds. Values are stored in job files; never change them.
const (
	KindCut        Kind = "cut"
	KindCrossfade  Kind = "crossfade"
	KindDipToBlack Kind = "dip_to_black"
	KindWipe       Kind = "wipe"
	KindIris       Kind = "iris"
	KindPush       Kind = "push"
)

// Spec is a configured transition: a kind and how long the overlap lasts.
type Spec struct {
	Kind     Kind    `yaml:"kind" json:"kind"`
	Duration float64 `yaml:"duration" json:"duration"`
}

// IsCut reports whether the spec produces no overlap at all.
func (s Spec) IsCut() bool {
	return s.Kind == KindCut || s.Kind == "" || s.Duration <= 0
}

// Transition is one blend strategy.
type Transition interface {
	Kind() Kind
	Label() string
	DefaultDuration() float64
	// Build returns a spec for this kind. A non-positive duration selects
	// the default.
	Build(duration float64) Spec
	// Apply writes the blend of a and b at weight alpha into dst. a, b and
	// dst are packed yuv420p frames of w x h.
	Apply(dst, a, b []byte, w, h int, alpha float64)
}

// Registry maps kinds to strategies.
type Registry struct {
	byKind map[Kind]Transition
	order  []Kind
}

// NewRegistry builds a registry from the given strategies, in order.
func NewRegistry(ts ...Transition) (*Registry, error) {
	r := &Registry{byKind: make(map[Kind]Transition, len(ts))}
	for _, t := range ts {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a strategy. Registering a kind twice is an error.
func (r *Registry) Register(t Transition) error {
	if _, dup := r.byKind[t.Kind()]; dup {
		return fmt.Errorf("transitions: kind %q already registered", t.Kind())
	}
	r.byKind[t.Kind()] = t
	r.order = append(r.order, t.Kind())
	return nil
}

// Lookup returns the strategy for kind.
func (r *Registry) Lookup(kind Kind) (Transition, bool) {
	t, ok := r.byKind[kind]
	return t, ok
}

// All returns the strategies in registration order.
func (r *Registry) All() []Transition {
	out := make([]Transition, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.byKind[k])
	}
	return out
}

// Kinds returns the registered keys sorted alphabetically.
func (r *Registry) Kinds() []Kind {
	out := append([]Kind(nil), r.order...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

var defaultRegistry = mustRegistry(Cut{}, Crossfade{}, DipToBlack{}, Wipe{}, Iris{}, Push{})

func mustRegistry(ts ...Transition) *Registry {
	r, err := NewRegistry(ts...)
	if err != nil {
		panic(err)
	}
	return r
}

// Default returns the built-in registry.
func Default() *Registry {
	return defaultRegistry
}

// Lookup resolves kind in the built-in registry.
func Lookup(kind Kind) (Transition, bool) {
	return defaultRegistry.Lookup(kind)
}

// Apply blends through the built-in registry.
func Apply(kind Kind, dst, a, b []byte, w, h int, alpha float64) error {
	t, ok := defaultRegistry.Lookup(kind)
	if !ok {
		return fmt.Errorf("transitions: unknown kind %q", kind)
	}
	t.Apply(dst, a, b, w, h, alpha)
	return nil
}
