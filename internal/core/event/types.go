package event

import (
	"time"

	"github.com/l1jgo/framecore/internal/core/phase"
)

// PhaseTick is published once each time the clock completes a phase.
type PhaseTick struct {
	Phase phase.Phase
	Delta time.Duration
}

// FrameAdvanced is published at the end of every frame with the new frame index.
type FrameAdvanced struct {
	Frame         uint64
	Delta         time.Duration
	UnscaledDelta time.Duration
}
