package clock

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/l1jgo/framecore/internal/core/arena"
	"github.com/l1jgo/framecore/internal/core/boot"
	"github.com/l1jgo/framecore/internal/core/event"
	"github.com/l1jgo/framecore/internal/core/phase"
	"github.com/l1jgo/framecore/internal/core/system"
)

// Allocator is the frame-scratch allocator the clock resets every frame.
// Index is the frame counter; ResetAllocator advances it.
type Allocator interface {
	CreateAllocator(sizeBytes int)
	ResetAllocator()
	DestroyAllocator()
	Index() uint64
}

// Barrier forbids structural component mutation while a phase dispatches.
type Barrier interface {
	Lock()
	Unlock()
}

type Options struct {
	Allocator    Allocator // defaults to an arena.Arena
	Barrier      Barrier   // optional
	Hooks        *boot.Registry
	ScratchBytes int
}

type queueID int

const (
	queueBoot queueID = iota
	queuePreUpdate
	queueAfterLateUpdate
	queueBeforeRender
	queueEndOfFrame
	queueCount
)

// Clock drives the scheduler through the phases of each frame.
type Clock struct {
	sched   *system.Scheduler
	hub     *event.Hub
	alloc   Allocator
	barrier Barrier
	hooks   *boot.Registry
	log     *zap.Logger

	scratchBytes int
	current      phase.Phase
	booted       bool

	preUpdated     bool
	preUpdateFrame uint64

	queues [queueCount]queue
}

func New(sched *system.Scheduler, hub *event.Hub, log *zap.Logger, opts Options) *Clock {
	c := &Clock{
		sched:        sched,
		hub:          hub,
		alloc:        opts.Allocator,
		barrier:      opts.Barrier,
		hooks:        opts.Hooks,
		log:          log,
		scratchBytes: opts.ScratchBytes,
	}
	if c.alloc == nil {
		c.alloc = arena.New()
	}
	return c
}

// Phase returns the phase currently executing, or the last one completed.
func (c *Clock) Phase() phase.Phase { return c.current }

func (c *Clock) IsUpdating() bool  { return c.current.IsUpdating() }
func (c *Clock) IsRendering() bool { return c.current.IsRendering() }

// Frame returns the frame index.
func (c *Clock) Frame() uint64 { return c.alloc.Index() }

func (c *Clock) Hub() *event.Hub { return c.hub }

func (c *Clock) stopped() bool { return c.current == phase.Shutdown }

// Deferred callbacks. Each runs once, on the next occurrence of its phase.

func (c *Clock) OnBoot(fn func())          { c.queues[queueBoot].push(fn) }
func (c *Clock) OnPreUpdate(fn func())     { c.queues[queuePreUpdate].push(fn) }
func (c *Clock) AfterLateUpdate(fn func()) { c.queues[queueAfterLateUpdate].push(fn) }
func (c *Clock) BeforeRender(fn func())    { c.queues[queueBeforeRender].push(fn) }
func (c *Clock) EndOfFrame(fn func())      { c.queues[queueEndOfFrame].push(fn) }

// Boot creates the frame allocator, runs pre-boot hooks, admits every
// registered system, runs boot hooks and the boot queue. It runs once.
func (c *Clock) Boot() {
	if c.booted || c.stopped() {
		return
	}
	c.booted = true
	c.alloc.CreateAllocator(c.scratchBytes)

	for _, h := range c.hooks.PreBootHooks() {
		c.log.Debug("pre-boot hook", zap.String("hook", h.Name))
		h.Fn()
	}
	c.sched.ProcessInitQueue()

	c.current = phase.Booted
	for _, h := range c.hooks.BootHooks() {
		c.log.Debug("boot hook", zap.String("hook", h.Name))
		h.Fn()
	}
	c.queues[queueBoot].drain()
	event.Publish(c.hub, event.PhaseTick{Phase: phase.Booted})
	c.log.Info("clock booted", zap.Int("systems", c.sched.Len()))
}

// Advance runs one complete frame.
func (c *Clock) Advance(t Timing) {
	if c.stopped() {
		return
	}
	if !c.booted {
		c.Boot()
	}
	if c.sched.Pending() > 0 {
		c.sched.ProcessInitQueue()
	}

	for i := 0; i < t.FixedSteps; i++ {
		c.fixedUpdate(t.FixedDelta, t.Delta)
	}
	c.preUpdate(t.Delta)

	c.dispatch(phase.Update, t.Delta)
	c.dispatch(phase.UnscaledUpdate, t.UnscaledDelta)
	c.dispatch(phase.LateUpdate, t.Delta)
	c.dispatch(phase.UnscaledLateUpdate, t.UnscaledDelta)
	c.drain(queueAfterLateUpdate)

	c.dispatch(phase.CanvasPreRender, t.Delta)
	c.drain(queueBeforeRender)
	c.dispatch(phase.PreCull, t.Delta)
	c.dispatch(phase.PreRender, t.Delta)
	c.dispatch(phase.PostRender, t.Delta)

	c.frameAdvance(t)
}

func (c *Clock) fixedUpdate(fixed, delta time.Duration) {
	c.preUpdate(delta)
	c.dispatch(phase.FixedUpdate, fixed)
}

// preUpdate runs at most once per frame index regardless of how many fixed
// steps the frame contains.
func (c *Clock) preUpdate(dt time.Duration) {
	frame := c.alloc.Index()
	if c.stopped() || (c.preUpdated && c.preUpdateFrame == frame) {
		return
	}
	c.preUpdated = true
	c.preUpdateFrame = frame

	c.current = phase.PreUpdate
	c.drain(queuePreUpdate)
	c.dispatch(phase.PreUpdate, dt)
}

func (c *Clock) frameAdvance(t Timing) {
	c.dispatch(phase.FrameAdvance, t.Delta)
	c.drain(queueEndOfFrame)
	if c.stopped() {
		return
	}
	c.alloc.ResetAllocator()
	event.Publish(c.hub, event.FrameAdvanced{
		Frame:         c.alloc.Index(),
		Delta:         t.Delta,
		UnscaledDelta: t.UnscaledDelta,
	})
}

// drain runs a queue unless the clock was shut down earlier in the frame.
func (c *Clock) drain(id queueID) {
	if !c.stopped() {
		c.queues[id].drain()
	}
}

func (c *Clock) dispatch(p phase.Phase, dt time.Duration) {
	if c.stopped() {
		return
	}
	c.current = p
	if c.barrier != nil {
		c.barrier.Lock()
		defer c.barrier.Unlock()
	}
	c.sched.Dispatch(p, dt)
	if p != phase.FrameAdvance && !c.stopped() {
		event.Publish(c.hub, event.PhaseTick{Phase: p, Delta: dt})
	}
}

// Shutdown enters the terminal phase: every live system is shut down in
// reverse admission order and the frame allocator is destroyed. Later calls
// to Boot, Advance or Shutdown do nothing.
func (c *Clock) Shutdown() {
	if c.stopped() {
		return
	}
	c.current = phase.Shutdown
	event.Publish(c.hub, event.PhaseTick{Phase: phase.Shutdown})
	c.sched.Shutdown()
	if c.booted {
		c.alloc.DestroyAllocator()
	}
	c.log.Info("clock stopped", zap.Uint64("frames", c.alloc.Index()))
}

// Run advances one frame per interval until ctx is done. It does not call
// Shutdown.
func (c *Clock) Run(ctx context.Context, src TickSource, interval time.Duration) error {
	c.Boot()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.Advance(src.Next(time.Now()))
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if c.stopped() {
				return nil
			}
			c.Advance(src.Next(now))
		}
	}
}
