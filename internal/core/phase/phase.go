package phase

import (
	"fmt"
	"strings"
)

// Phase names a stage of the per-frame pipeline. Phases are totally ordered;
// the clock walks them from PreUpdate to FrameAdvance once per frame.
type Phase int

const (
	None Phase = iota
	Booted
	PreUpdate
	FixedUpdate
	Update
	UnscaledUpdate
	LateUpdate
	UnscaledLateUpdate
	CanvasPreRender
	PreCull
	PreRender
	PostRender
	FrameAdvance
	Shutdown
)

// Count is the number of phases, usable as an array length.
const Count = int(Shutdown) + 1

var names = [Count]string{
	None:               "None",
	Booted:             "Booted",
	PreUpdate:          "PreUpdate",
	FixedUpdate:        "FixedUpdate",
	Update:             "Update",
	UnscaledUpdate:     "UnscaledUpdate",
	LateUpdate:         "LateUpdate",
	UnscaledLateUpdate: "UnscaledLateUpdate",
	CanvasPreRender:    "CanvasPreRender",
	PreCull:            "PreCull",
	PreRender:          "PreRender",
	PostRender:         "PostRender",
	FrameAdvance:       "FrameAdvance",
	Shutdown:           "Shutdown",
}

func (p Phase) String() string {
	if p.Valid() {
		return names[p]
	}
	return fmt.Sprintf("Unknown(%d)", int(p))
}

// Valid reports whether p is one of the declared phases.
func (p Phase) Valid() bool { return p >= None && p <= Shutdown }

// IsUpdating reports whether p lies in the simulation range
// [PreUpdate, UnscaledLateUpdate].
func (p Phase) IsUpdating() bool { return p >= PreUpdate && p <= UnscaledLateUpdate }

// IsRendering reports whether p lies in the render range [PreCull, PostRender].
func (p Phase) IsRendering() bool { return p >= PreCull && p <= PostRender }

// Dispatchable reports whether subsystems may bind to p.
func (p Phase) Dispatchable() bool { return p >= PreUpdate && p <= FrameAdvance }

// Parse resolves a phase by name, case-insensitively.
func Parse(s string) (Phase, error) {
	for i, n := range names {
		if strings.EqualFold(n, s) {
			return Phase(i), nil
		}
	}
	return None, fmt.Errorf("unknown phase %q", s)
}

func (p Phase) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("invalid phase %d", int(p))
	}
	return []byte(names[p]), nil
}

func (p *Phase) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// All returns every declared phase in order.
func All() []Phase {
	out := make([]Phase, Count)
	for i := range out {
		out[i] = Phase(i)
	}
	return out
}
