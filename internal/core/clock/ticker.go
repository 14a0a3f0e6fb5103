package clock

import "time"

// Timing is one frame's worth of deltas supplied by a tick source.
type Timing struct {
	FixedSteps    int
	FixedDelta    time.Duration
	Delta         time.Duration
	UnscaledDelta time.Duration
}

// TickSource produces the timing for the frame starting at now.
type TickSource interface {
	Next(now time.Time) Timing
}

// Stepper is a TickSource with a fixed-step accumulator. Scaled time feeds
// the accumulator; each whole FixedStep in it becomes one fixed update, up to
// MaxSteps per frame, with any excess dropped.
type Stepper struct {
	FixedStep time.Duration
	MaxSteps  int
	TimeScale float64

	last time.Time
	acc  time.Duration
}

func NewStepper(fixedStep time.Duration, maxSteps int, timeScale float64) *Stepper {
	return &Stepper{FixedStep: fixedStep, MaxSteps: maxSteps, TimeScale: timeScale}
}

func (s *Stepper) Next(now time.Time) Timing {
	var unscaled time.Duration
	if !s.last.IsZero() {
		unscaled = now.Sub(s.last)
		if unscaled < 0 {
			unscaled = 0
		}
	}
	s.last = now

	scaled := time.Duration(float64(unscaled) * s.TimeScale)
	t := Timing{
		FixedDelta:    s.FixedStep,
		Delta:         scaled,
		UnscaledDelta: unscaled,
	}
	if s.FixedStep <= 0 {
		return t
	}
	s.acc += scaled
	for s.acc >= s.FixedStep {
		if s.MaxSteps > 0 && t.FixedSteps == s.MaxSteps {
			s.acc = 0
			break
		}
		s.acc -= s.FixedStep
		t.FixedSteps++
	}
	return t
}
