package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStepperFirstFrameIsEmpty(t *testing.T) {
	s := NewStepper(10*time.Millisecond, 5, 1)
	got := s.Next(time.Unix(100, 0))
	assert.Equal(t, Timing{FixedDelta: 10 * time.Millisecond}, got)
}

func TestStepperAccumulates(t *testing.T) {
	s := NewStepper(10*time.Millisecond, 5, 1)
	base := time.Unix(100, 0)
	s.Next(base)

	got := s.Next(base.Add(25 * time.Millisecond))
	assert.Equal(t, 2, got.FixedSteps)
	assert.Equal(t, 25*time.Millisecond, got.Delta)
	assert.Equal(t, 25*time.Millisecond, got.UnscaledDelta)

	// 5ms carried over plus 5ms elapsed makes one more step.
	got = s.Next(base.Add(30 * time.Millisecond))
	assert.Equal(t, 1, got.FixedSteps)
}

func TestStepperClampsSteps(t *testing.T) {
	s := NewStepper(10*time.Millisecond, 3, 1)
	base := time.Unix(0, 0)
	s.Next(base)

	got := s.Next(base.Add(time.Second))
	assert.Equal(t, 3, got.FixedSteps)

	got = s.Next(base.Add(time.Second + 5*time.Millisecond))
	assert.Zero(t, got.FixedSteps, "excess time is dropped after a clamp")
}

func TestStepperTimeScale(t *testing.T) {
	s := NewStepper(10*time.Millisecond, 0, 0.5)
	base := time.Unix(0, 0)
	s.Next(base)

	got := s.Next(base.Add(40 * time.Millisecond))
	assert.Equal(t, 20*time.Millisecond, got.Delta)
	assert.Equal(t, 40*time.Millisecond, got.UnscaledDelta)
	assert.Equal(t, 2, got.FixedSteps)

	s.TimeScale = 0
	got = s.Next(base.Add(80 * time.Millisecond))
	assert.Zero(t, got.Delta)
	assert.Zero(t, got.FixedSteps)
}

func TestQueueCompacts(t *testing.T) {
	var q queue
	var ran []int
	q.push(func() { ran = append(ran, 1) })
	q.push(func() {
		ran = append(ran, 2)
		q.push(func() { ran = append(ran, 3) })
	})
	q.drain()
	assert.Equal(t, []int{1, 2}, ran)
	assert.Equal(t, 1, q.len())
	assert.Zero(t, q.head)

	q.drain()
	assert.Equal(t, []int{1, 2, 3}, ran)
	assert.Zero(t, q.len())
}
