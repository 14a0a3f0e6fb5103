package system

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/joeycumines/go-catrate"
	"go.uber.org/zap"

	"github.com/l1jgo/framecore/internal/core/ecs"
	"github.com/l1jgo/framecore/internal/core/event"
	"github.com/l1jgo/framecore/internal/core/phase"
)

type entryState uint8

const (
	statePending entryState = iota
	stateLive
	stateRemoved
)

type entry struct {
	sys   System
	meta  Meta
	state entryState
}

// Options configures a Scheduler.
type Options struct {
	// Isolate recovers panics raised by HasWork/ProcessWork, logs them and
	// moves on to the next system. Production builds leave it off so faults
	// crash the loop.
	Isolate bool
	// FaultLogRates throttles fault logging per system (window -> events).
	// Empty means every fault is logged.
	FaultLogRates map[time.Duration]int
}

// Scheduler owns system registration, the per-phase buckets and dispatch.
// Single-goroutine access only; the dirty bits are unsynchronized.
type Scheduler struct {
	router *ecs.Router
	hub    *event.Hub
	log    *zap.Logger

	isolate bool
	limiter *catrate.Limiter

	members map[System]*entry
	pending []*entry
	live    []*entry // admission order

	buckets     [phase.Count][]*entry
	dirty       [phase.Count]bool
	dispatching [phase.Count]bool

	metas  map[kindKey]Meta
	faults uint64
}

func NewScheduler(router *ecs.Router, hub *event.Hub, log *zap.Logger, opts Options) *Scheduler {
	s := &Scheduler{
		router:  router,
		hub:     hub,
		log:     log,
		isolate: opts.Isolate,
		members: make(map[System]*entry, 32),
		pending: make([]*entry, 0, 16),
		live:    make([]*entry, 0, 32),
		metas:   make(map[kindKey]Meta, 32),
	}
	if opts.Isolate && len(opts.FaultLogRates) > 0 {
		s.limiter = catrate.NewLimiter(opts.FaultLogRates)
	}
	return s
}

// Register queues s for admission at the next ProcessInitQueue.
func (s *Scheduler) Register(sys System) error {
	if sys == nil {
		return ErrNilSystem
	}
	if _, ok := s.members[sys]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateRegistration, Identity(sys))
	}
	meta, err := s.meta(sys)
	if err != nil {
		return err
	}
	e := &entry{sys: sys, meta: meta, state: statePending}
	s.members[sys] = e
	s.pending = append(s.pending, e)
	return nil
}

func (s *Scheduler) meta(sys System) (Meta, error) {
	k := kindOf(sys)
	if m, ok := s.metas[k]; ok {
		return m, nil
	}
	m, err := resolveMeta(sys)
	if err != nil {
		return m, err
	}
	s.metas[k] = m
	return m, nil
}

// ProcessInitQueue admits every pending system in ascending init order.
// Systems with equal init order keep their registration order. Systems
// registered while the queue is being processed wait for the next call.
func (s *Scheduler) ProcessInitQueue() {
	if len(s.pending) == 0 {
		return
	}
	queue := s.pending
	s.pending = make([]*entry, 0, cap(queue))
	slices.SortStableFunc(queue, func(a, b *entry) int {
		return cmp.Compare(a.meta.InitOrder, b.meta.InitOrder)
	})

	for _, e := range queue {
		if e.state != statePending {
			continue // deregistered by an earlier Initialize
		}
		e.state = stateLive
		s.live = append(s.live, e)
		if h, ok := e.sys.(ecs.Handler); ok {
			s.router.Register(h)
		}
		e.sys.Initialize()
		if e.state != stateLive {
			continue // deregistered itself during Initialize
		}
		if e.meta.Phase != phase.None {
			s.buckets[e.meta.Phase] = append(s.buckets[e.meta.Phase], e)
			s.dirty[e.meta.Phase] = true
		}
		s.log.Debug("system registered",
			zap.String("system", Identity(e.sys)),
			zap.Stringer("phase", e.meta.Phase),
			zap.Int("priority", e.meta.Priority),
			zap.Int("init_order", e.meta.InitOrder),
		)
		event.Publish(s.hub, Registered{System: e.sys})
	}
}

// Deregister removes sys. A pending system is dropped without running any
// hook. A live system is unbucketed, unrouted and shut down; a panic from its
// Shutdown propagates to the caller.
func (s *Scheduler) Deregister(sys System) error {
	e, ok := s.members[sys]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotRegistered, Identity(sys))
	}
	delete(s.members, sys)

	if e.state == statePending {
		e.state = stateRemoved
		s.pending = slices.DeleteFunc(s.pending, func(x *entry) bool { return x == e })
		return nil
	}

	i := slices.Index(s.live, e)
	if i < 0 {
		return fmt.Errorf("%w: %s missing from live registry", ErrNotRegistered, Identity(sys))
	}
	s.live = slices.Delete(s.live, i, i+1)
	e.state = stateRemoved

	if p := e.meta.Phase; p != phase.None {
		// Copy so a dispatch in progress keeps its own view of the bucket.
		s.buckets[p] = slices.DeleteFunc(slices.Clone(s.buckets[p]), func(x *entry) bool { return x == e })
		s.dirty[p] = true
	}
	if h, ok := sys.(ecs.Handler); ok {
		s.router.Unregister(h)
	}
	sys.Shutdown()
	s.log.Debug("system deregistered", zap.String("system", Identity(sys)))
	event.Publish(s.hub, Deregistered{System: sys})
	return nil
}

// Dispatch runs every system bound to p that reports work, in ascending
// priority. The bucket is re-sorted only if it changed since the last sort.
func (s *Scheduler) Dispatch(p phase.Phase, dt time.Duration) {
	if !p.Dispatchable() {
		return
	}
	if s.dispatching[p] {
		panic(fmt.Errorf("%w: %s", ErrReentrantDispatch, p))
	}
	if s.dirty[p] {
		slices.SortStableFunc(s.buckets[p], func(a, b *entry) int {
			return cmp.Compare(a.meta.Priority, b.meta.Priority)
		})
		s.dirty[p] = false
	}

	s.dispatching[p] = true
	defer func() { s.dispatching[p] = false }()

	for _, e := range s.buckets[p] {
		if e.state != stateLive {
			continue // deregistered earlier in this dispatch
		}
		if s.isolate {
			s.safeRun(e, p, dt)
		} else {
			run(e.sys, dt)
		}
	}
}

func run(sys System, dt time.Duration) {
	if sys.HasWork() {
		sys.ProcessWork(dt)
	}
}

// safeRun executes one system with panic recovery so a single faulty system
// cannot take the frame down.
func (s *Scheduler) safeRun(e *entry, p phase.Phase, dt time.Duration) {
	defer func() {
		if rec := recover(); rec != nil {
			s.faults++
			id := Identity(e.sys)
			if s.limiter != nil {
				if _, ok := s.limiter.Allow(id); !ok {
					return
				}
			}
			s.log.Error("system fault recovered",
				zap.String("system", id),
				zap.Stringer("phase", p),
				zap.Any("panic", rec),
				zap.Stack("stack"),
			)
		}
	}()
	run(e.sys, dt)
}

// Shutdown clears all buckets and routing tables without invoking hooks,
// drops pending systems, then shuts live systems down in exact reverse order
// of admission.
func (s *Scheduler) Shutdown() {
	for p := range s.buckets {
		s.buckets[p] = nil
		s.dirty[p] = false
	}
	s.router.Reset()
	for _, e := range s.pending {
		e.state = stateRemoved
		delete(s.members, e.sys)
	}
	s.pending = s.pending[:0]

	for len(s.live) > 0 {
		last := len(s.live) - 1
		e := s.live[last]
		s.live[last] = nil
		s.live = s.live[:last]
		e.state = stateRemoved
		delete(s.members, e.sys)
		s.log.Debug("system shutdown", zap.String("system", Identity(e.sys)))
		e.sys.Shutdown()
	}
}

// Systems returns the live systems in admission order.
func (s *Scheduler) Systems() []System {
	out := make([]System, len(s.live))
	for i, e := range s.live {
		out[i] = e.sys
	}
	return out
}

// Bucket returns the systems bound to p in their current dispatch order.
// The order reflects the last sort; call after Dispatch for a settled view.
func (s *Scheduler) Bucket(p phase.Phase) []System {
	if !p.Valid() {
		return nil
	}
	out := make([]System, 0, len(s.buckets[p]))
	for _, e := range s.buckets[p] {
		out = append(out, e.sys)
	}
	return out
}

// Dirty reports whether p's bucket will be re-sorted on its next dispatch.
func (s *Scheduler) Dirty(p phase.Phase) bool { return p.Valid() && s.dirty[p] }

// MetaOf returns the memoized metadata of a registered system.
func (s *Scheduler) MetaOf(sys System) (Meta, bool) {
	e, ok := s.members[sys]
	if !ok {
		return Meta{}, false
	}
	return e.meta, true
}

func (s *Scheduler) Pending() int   { return len(s.pending) }
func (s *Scheduler) Len() int       { return len(s.live) }
func (s *Scheduler) Faults() uint64 { return s.faults }

func (s *Scheduler) Router() *ecs.Router { return s.router }
