package system

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/l1jgo/framecore/internal/core/ecs"
	"github.com/l1jgo/framecore/internal/core/event"
	"github.com/l1jgo/framecore/internal/core/phase"
)

// journal records hook invocations across systems.
type journal struct {
	calls []string
}

func (j *journal) add(s string) { j.calls = append(j.calls, s) }

// fake is a configurable system. Each name is its own kind, so metadata is
// memoized per fake name.
type fake struct {
	name     string
	phase    phase.Phase
	priority int
	order    int
	j        *journal

	idle      bool
	panicWork any
	onWork    func()
	dts       []time.Duration
}

func (p *fake) KindName() string   { return "fake:" + p.name }
func (p *fake) Name() string       { return p.name }
func (p *fake) Phase() phase.Phase { return p.phase }
func (p *fake) Priority() int      { return p.priority }
func (p *fake) InitOrder() int     { return p.order }
func (p *fake) Initialize()        { p.j.add("init:" + p.name) }
func (p *fake) Shutdown()          { p.j.add("shutdown:" + p.name) }
func (p *fake) HasWork() bool      { return !p.idle }
func (p *fake) ProcessWork(dt time.Duration) {
	p.j.add("work:" + p.name)
	p.dts = append(p.dts, dt)
	if p.onWork != nil {
		p.onWork()
	}
	if p.panicWork != nil {
		panic(p.panicWork)
	}
}

// plain declares nothing and gets DefaultMeta.
type plain struct{ j *journal }

func (p *plain) Initialize()                 { p.j.add("init:plain") }
func (p *plain) Shutdown()                   { p.j.add("shutdown:plain") }
func (p *plain) HasWork() bool               { return true }
func (p *plain) ProcessWork(_ time.Duration) { p.j.add("work:plain") }

type healthHandler struct {
	fake
	added, removed []any
}

type health struct{ HP int }

func (h *healthHandler) ComponentKind() ecs.Kind { return ecs.KindFor[*health]() }
func (h *healthHandler) Add(c any)               { h.added = append(h.added, c) }
func (h *healthHandler) Remove(c any)            { h.removed = append(h.removed, c) }

func newTestScheduler(t *testing.T, isolate bool) (*Scheduler, *event.Hub) {
	t.Helper()
	hub := event.NewHub()
	router := ecs.NewRouter(ecs.NewKindTable(), zap.NewNop())
	return NewScheduler(router, hub, zap.NewNop(), Options{Isolate: isolate}), hub
}

func mustRegister(t *testing.T, s *Scheduler, systems ...System) {
	t.Helper()
	for _, sys := range systems {
		require.NoError(t, s.Register(sys))
	}
}

func TestEndToEndPriorityOrder(t *testing.T) {
	s, _ := newTestScheduler(t, false)
	j := &journal{}
	mustRegister(t, s,
		&fake{name: "p10", phase: phase.Update, priority: 10, j: j},
		&fake{name: "p-5", phase: phase.Update, priority: -5, j: j},
		&fake{name: "p0", phase: phase.Update, priority: 0, j: j},
	)
	s.ProcessInitQueue()
	j.calls = nil

	s.Dispatch(phase.Update, 16*time.Millisecond)
	if diff := cmp.Diff([]string{"work:p-5", "work:p0", "work:p10"}, j.calls); diff != "" {
		t.Fatalf("dispatch order mismatch (-want +got):\n%s", diff)
	}
}

func TestRegisterThenDispatchSortsByPriority(t *testing.T) {
	s, _ := newTestScheduler(t, false)
	j := &journal{}
	mustRegister(t, s, &fake{name: "A", phase: phase.Update, priority: 5, j: j})
	s.ProcessInitQueue()
	s.Dispatch(phase.Update, 0)

	mustRegister(t, s, &fake{name: "B", phase: phase.Update, priority: 1, j: j})
	s.ProcessInitQueue()
	assert.True(t, s.Dirty(phase.Update))
	j.calls = nil

	s.Dispatch(phase.Update, 0)
	assert.Equal(t, []string{"work:B", "work:A"}, j.calls)
	assert.False(t, s.Dirty(phase.Update))
}

func TestInitOrderIsAscendingAndStable(t *testing.T) {
	s, _ := newTestScheduler(t, false)
	j := &journal{}
	mustRegister(t, s,
		&fake{name: "c", order: 2, j: j},
		&fake{name: "a1", order: 0, j: j},
		&fake{name: "b", order: 1, j: j},
		&fake{name: "a2", order: 0, j: j},
		&fake{name: "neg", order: -3, j: j},
		&fake{name: "a3", order: 0, j: j},
	)
	assert.Equal(t, 6, s.Pending())
	assert.Zero(t, s.Len())

	s.ProcessInitQueue()
	want := []string{"init:neg", "init:a1", "init:a2", "init:a3", "init:b", "init:c"}
	assert.Equal(t, want, j.calls)

	var names []string
	for _, sys := range s.Systems() {
		names = append(names, Identity(sys))
	}
	assert.Equal(t, []string{"neg", "a1", "a2", "a3", "b", "c"}, names)
	assert.Zero(t, s.Pending())
}

func TestEqualPriorityKeepsAdmissionOrder(t *testing.T) {
	s, _ := newTestScheduler(t, false)
	j := &journal{}
	mustRegister(t, s,
		&fake{name: "x", phase: phase.LateUpdate, priority: 1, j: j},
		&fake{name: "y", phase: phase.LateUpdate, priority: 1, j: j},
		&fake{name: "z", phase: phase.LateUpdate, priority: 0, j: j},
		&fake{name: "w", phase: phase.LateUpdate, priority: 1, j: j},
	)
	s.ProcessInitQueue()
	j.calls = nil
	s.Dispatch(phase.LateUpdate, 0)
	assert.Equal(t, []string{"work:z", "work:x", "work:y", "work:w"}, j.calls)
}

func TestDefaultMeta(t *testing.T) {
	s, _ := newTestScheduler(t, false)
	j := &journal{}
	p := &plain{j: j}
	mustRegister(t, s, p)

	m, ok := s.MetaOf(p)
	require.True(t, ok)
	assert.Equal(t, DefaultMeta, m)

	s.ProcessInitQueue()
	s.Dispatch(phase.Update, 0)
	assert.Equal(t, []string{"init:plain", "work:plain"}, j.calls)
}

func TestMetaIsMemoizedPerKind(t *testing.T) {
	s, _ := newTestScheduler(t, false)
	j := &journal{}
	first := &fake{name: "same", phase: phase.Update, priority: 3, j: j}
	second := &fake{name: "same", phase: phase.LateUpdate, priority: 9, j: j}
	mustRegister(t, s, first, second)

	m, _ := s.MetaOf(second)
	assert.Equal(t, phase.Update, m.Phase)
	assert.Equal(t, 3, m.Priority)
}

func TestNonePhaseHasNoBucket(t *testing.T) {
	s, _ := newTestScheduler(t, false)
	j := &journal{}
	mustRegister(t, s, &fake{name: "passive", phase: phase.None, j: j})
	s.ProcessInitQueue()

	for _, p := range phase.All() {
		assert.Empty(t, s.Bucket(p))
	}
	assert.Equal(t, 1, s.Len())
}

func TestInvalidPhaseRejected(t *testing.T) {
	s, _ := newTestScheduler(t, false)
	j := &journal{}
	for _, p := range []phase.Phase{phase.Booted, phase.Shutdown, phase.Phase(77)} {
		err := s.Register(&fake{name: "bad-" + p.String(), phase: p, j: j})
		assert.True(t, errors.Is(err, ErrInvalidMeta), "phase %s", p)
	}
	assert.Zero(t, s.Pending())
}

func TestDuplicateRegistration(t *testing.T) {
	s, _ := newTestScheduler(t, false)
	j := &journal{}
	p := &fake{name: "dup", j: j}
	mustRegister(t, s, p)

	assert.True(t, errors.Is(s.Register(p), ErrDuplicateRegistration), "pending duplicate")
	s.ProcessInitQueue()
	assert.True(t, errors.Is(s.Register(p), ErrDuplicateRegistration), "live duplicate")
	assert.True(t, errors.Is(s.Register(nil), ErrNilSystem))
}

func TestDeregisterPendingRunsNoHooks(t *testing.T) {
	s, hub := newTestScheduler(t, false)
	j := &journal{}
	p := &fake{name: "early", j: j}
	var notes int
	event.Subscribe(hub, func(Deregistered) { notes++ })

	mustRegister(t, s, p)
	require.NoError(t, s.Deregister(p))
	s.ProcessInitQueue()

	assert.Empty(t, j.calls)
	assert.Zero(t, notes)
	assert.Zero(t, s.Len())
	assert.True(t, errors.Is(s.Deregister(p), ErrNotRegistered))
}

func TestDeregisterLive(t *testing.T) {
	s, hub := newTestScheduler(t, false)
	j := &journal{}
	var registered, deregistered []System
	event.Subscribe(hub, func(ev Registered) { registered = append(registered, ev.System) })
	event.Subscribe(hub, func(ev Deregistered) { deregistered = append(deregistered, ev.System) })

	a := &fake{name: "a", phase: phase.Update, j: j}
	b := &fake{name: "b", phase: phase.Update, priority: 1, j: j}
	mustRegister(t, s, a, b)
	s.ProcessInitQueue()
	s.Dispatch(phase.Update, 0)
	j.calls = nil

	require.NoError(t, s.Deregister(a))
	assert.True(t, s.Dirty(phase.Update))
	s.Dispatch(phase.Update, 0)

	assert.Equal(t, []string{"shutdown:a", "work:b"}, j.calls)
	assert.Equal(t, []System{a, b}, registered)
	assert.Equal(t, []System{a}, deregistered)
	assert.Equal(t, []System{b}, s.Systems())

	// A removed system may be registered again as a fresh entry.
	mustRegister(t, s, a)
	assert.Equal(t, 1, s.Pending())
}

// quitter deregisters itself from inside Initialize.
type quitter struct {
	fake
	s *Scheduler
}

func (q *quitter) Initialize() { _ = q.s.Deregister(q) }

func TestDeregisterDuringInitializeIsNotAdmitted(t *testing.T) {
	s, hub := newTestScheduler(t, false)
	j := &journal{}
	var notes []string
	event.Subscribe(hub, func(Registered) { notes = append(notes, "registered") })
	event.Subscribe(hub, func(Deregistered) { notes = append(notes, "deregistered") })

	q := &quitter{fake: fake{name: "quitter", phase: phase.Update, j: j}, s: s}
	stay := &fake{name: "stay", phase: phase.Update, priority: 1, j: j}
	mustRegister(t, s, q, stay)
	s.ProcessInitQueue()

	assert.Equal(t, []System{stay}, s.Systems())
	assert.Equal(t, []System{stay}, s.Bucket(phase.Update))
	assert.Equal(t, []string{"deregistered", "registered"}, notes, "only stay is announced as registered")
	_, ok := s.MetaOf(q)
	assert.False(t, ok)

	j.calls = nil
	s.Dispatch(phase.Update, 0)
	assert.Equal(t, []string{"work:stay"}, j.calls)
}

func TestShutdownPanicPropagatesFromDeregister(t *testing.T) {
	s, _ := newTestScheduler(t, true)
	j := &journal{}
	p := &exploding{fake: fake{name: "boom", j: j}}
	mustRegister(t, s, p)
	s.ProcessInitQueue()
	assert.PanicsWithValue(t, "shutdown failed", func() { _ = s.Deregister(p) })
}

type exploding struct{ fake }

func (e *exploding) Shutdown() { panic("shutdown failed") }

func TestHasWorkGatesProcessWork(t *testing.T) {
	s, _ := newTestScheduler(t, false)
	j := &journal{}
	idle := &fake{name: "idle", idle: true, j: j}
	busy := &fake{name: "busy", priority: 1, j: j}
	mustRegister(t, s, idle, busy)
	s.ProcessInitQueue()
	j.calls = nil

	s.Dispatch(phase.Update, 5*time.Millisecond)
	assert.Equal(t, []string{"work:busy"}, j.calls)
	assert.Equal(t, []time.Duration{5 * time.Millisecond}, busy.dts)
}

func TestDispatchOnlyTargetPhase(t *testing.T) {
	s, _ := newTestScheduler(t, false)
	j := &journal{}
	mustRegister(t, s,
		&fake{name: "fixed", phase: phase.FixedUpdate, j: j},
		&fake{name: "late", phase: phase.LateUpdate, j: j},
	)
	s.ProcessInitQueue()
	j.calls = nil

	s.Dispatch(phase.FixedUpdate, 0)
	s.Dispatch(phase.Booted, 0)
	assert.Equal(t, []string{"work:fixed"}, j.calls)
}

func TestFaultIsolationInDevelopment(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	hub := event.NewHub()
	router := ecs.NewRouter(ecs.NewKindTable(), zap.NewNop())
	s := NewScheduler(router, hub, zap.New(core), Options{Isolate: true})

	j := &journal{}
	mustRegister(t, s,
		&fake{name: "before", priority: -1, j: j},
		&fake{name: "faulty", priority: 0, panicWork: errors.New("bad state"), j: j},
		&fake{name: "after", priority: 1, j: j},
	)
	s.ProcessInitQueue()
	j.calls = nil

	require.NotPanics(t, func() { s.Dispatch(phase.Update, 0) })
	assert.Equal(t, []string{"work:before", "work:faulty", "work:after"}, j.calls)
	assert.Equal(t, uint64(1), s.Faults())

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "faulty", fields["system"])
	assert.Equal(t, "Update", fields["phase"])
}

func TestFaultLogThrottle(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	router := ecs.NewRouter(ecs.NewKindTable(), zap.NewNop())
	s := NewScheduler(router, event.NewHub(), zap.New(core), Options{
		Isolate:       true,
		FaultLogRates: map[time.Duration]int{time.Hour: 2},
	})
	j := &journal{}
	mustRegister(t, s, &fake{name: "flaky", panicWork: "again", j: j})
	s.ProcessInitQueue()

	for i := 0; i < 5; i++ {
		s.Dispatch(phase.Update, 0)
	}
	assert.Equal(t, uint64(5), s.Faults())
	assert.Equal(t, 2, logs.Len())
}

func TestFaultPropagatesInProduction(t *testing.T) {
	s, _ := newTestScheduler(t, false)
	j := &journal{}
	mustRegister(t, s, &fake{name: "faulty", panicWork: "boom", j: j})
	s.ProcessInitQueue()
	assert.PanicsWithValue(t, "boom", func() { s.Dispatch(phase.Update, 0) })
	assert.Zero(t, s.Faults())
}

func TestDeregisterDuringDispatchSkipsRemoved(t *testing.T) {
	s, _ := newTestScheduler(t, false)
	j := &journal{}
	victim := &fake{name: "victim", priority: 2, j: j}
	killer := &fake{name: "killer", priority: 1, j: j}
	self := &fake{name: "self", priority: 0, j: j}
	killer.onWork = func() { require.NoError(t, s.Deregister(victim)) }
	self.onWork = func() { require.NoError(t, s.Deregister(self)) }
	mustRegister(t, s, victim, killer, self)
	s.ProcessInitQueue()
	j.calls = nil

	s.Dispatch(phase.Update, 0)
	assert.Equal(t, []string{"work:self", "shutdown:self", "work:killer", "shutdown:victim"}, j.calls)

	j.calls = nil
	killer.onWork = nil
	s.Dispatch(phase.Update, 0)
	assert.Equal(t, []string{"work:killer"}, j.calls)
}

func TestReentrantDispatchPanics(t *testing.T) {
	s, _ := newTestScheduler(t, true)
	j := &journal{}
	var inner any
	p := &fake{name: "nested", j: j}
	p.onWork = func() {
		defer func() { inner = recover() }()
		s.Dispatch(phase.Update, 0)
	}
	mustRegister(t, s, p)
	s.ProcessInitQueue()
	s.Dispatch(phase.Update, 0)

	err, ok := inner.(error)
	require.True(t, ok)
	assert.True(t, errors.Is(err, ErrReentrantDispatch))
}

func TestShutdownReverseAdmissionOrder(t *testing.T) {
	s, _ := newTestScheduler(t, false)
	j := &journal{}
	mustRegister(t, s,
		&fake{name: "second", order: 1, phase: phase.Update, j: j},
		&fake{name: "first", order: 0, phase: phase.LateUpdate, j: j},
		&fake{name: "third", order: 2, phase: phase.None, j: j},
	)
	s.ProcessInitQueue()
	late := &fake{name: "pending", j: j}
	mustRegister(t, s, late)
	j.calls = nil

	s.Shutdown()
	assert.Equal(t, []string{"shutdown:third", "shutdown:second", "shutdown:first"}, j.calls)
	assert.Zero(t, s.Len())
	assert.Zero(t, s.Pending())
	assert.Empty(t, s.Bucket(phase.Update))

	j.calls = nil
	s.Dispatch(phase.Update, 0)
	assert.Empty(t, j.calls)
	assert.NoError(t, s.Register(late), "shutdown forgets pending systems")
}

func TestComponentSystemsAreRouted(t *testing.T) {
	s, _ := newTestScheduler(t, false)
	j := &journal{}
	h := &healthHandler{fake: fake{name: "health", j: j}}
	mustRegister(t, s, h)

	c := &health{HP: 5}
	s.Router().Add(c)
	assert.Empty(t, h.added, "pending systems are not routed")

	s.ProcessInitQueue()
	s.Router().Add(c)
	assert.Equal(t, []any{c}, h.added)

	require.NoError(t, s.Deregister(h))
	s.Router().Remove(c)
	assert.Empty(t, h.removed)
}

func TestShutdownClearsRoutingWithoutHooks(t *testing.T) {
	s, _ := newTestScheduler(t, false)
	j := &journal{}
	h := &healthHandler{fake: fake{name: "health", j: j}}
	mustRegister(t, s, h)
	s.ProcessInitQueue()

	s.Shutdown()
	s.Router().Add(&health{})
	assert.Empty(t, h.added)
	assert.Empty(t, h.removed)
}

func TestIdentity(t *testing.T) {
	assert.Equal(t, "x", Identity(&fake{name: "x"}))
	assert.Equal(t, "*system.plain", Identity(&plain{}))
}
