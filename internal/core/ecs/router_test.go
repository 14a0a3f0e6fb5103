package ecs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type Damageable interface{ TakeDamage(int) }

type Health struct{ HP int }

func (h *Health) TakeDamage(n int) { h.HP -= n }

type Shield struct{ HP int }

func (s *Shield) TakeDamage(n int) { s.HP -= n }

type Tag struct{}

type recorder struct {
	name    string
	kind    Kind
	added   []any
	removed []any
}

func (r *recorder) ComponentKind() Kind { return r.kind }
func (r *recorder) Add(c any)           { r.added = append(r.added, c) }
func (r *recorder) Remove(c any)        { r.removed = append(r.removed, c) }

func newTestRouter(t *testing.T) (*Router, *KindTable) {
	t.Helper()
	table := NewKindTable()
	Declare[*Health](table, KindFor[Damageable]())
	Declare[*Shield](table, KindFor[Damageable]())
	return NewRouter(table, zap.NewNop()), table
}

func TestRelevantUnionsDeclaredKeys(t *testing.T) {
	r, _ := newTestRouter(t)
	base := &recorder{name: "base", kind: KindFor[Damageable]()}
	health := &recorder{name: "health", kind: KindFor[*Health]()}
	r.Register(base)
	r.Register(health)

	got := r.Relevant(KindFor[*Health](), true)
	assert.Equal(t, []Handler{health, base}, got)

	got = r.Relevant(KindFor[*Shield](), true)
	assert.Equal(t, []Handler{base}, got)
}

func TestRelevantWithoutCreate(t *testing.T) {
	r, _ := newTestRouter(t)
	r.Register(&recorder{kind: KindFor[*Health]()})

	assert.Nil(t, r.Relevant(KindFor[*Health](), false))
	assert.Len(t, r.Relevant(KindFor[*Health](), true), 1)
	assert.Len(t, r.Relevant(KindFor[*Health](), false), 1)
}

// The memo for a kind is built once. A handler registered later for one of
// its router keys is not added to it, while a handler registered for the
// exact kind is.
func TestMemoIsNotInvalidatedByKeyRegistrations(t *testing.T) {
	r, _ := newTestRouter(t)
	hBase := &recorder{name: "base", kind: KindFor[Damageable]()}
	r.Register(hBase)

	require.Equal(t, []Handler{hBase}, r.Relevant(KindFor[*Health](), true))

	hDerived := &recorder{name: "derived", kind: KindFor[*Health]()}
	r.Register(hDerived)

	hLateBase := &recorder{name: "late-base", kind: KindFor[Damageable]()}
	r.Register(hLateBase)

	c := &Health{HP: 10}
	r.Add(c)
	assert.Equal(t, []any{c}, hBase.added)
	assert.Equal(t, []any{c}, hDerived.added)
	assert.Empty(t, hLateBase.added, "memoized list must stay stale for key registrations")

	// A kind whose list is first built after the late registration sees it.
	s := &Shield{HP: 3}
	r.Add(s)
	assert.Equal(t, []any{c, s}, hBase.added)
	assert.Equal(t, []any{s}, hLateBase.added)
}

func TestRegisterBeforeFirstLookupKeepsKeys(t *testing.T) {
	r, _ := newTestRouter(t)
	hBase := &recorder{kind: KindFor[Damageable]()}
	hDerived := &recorder{kind: KindFor[*Health]()}
	r.Register(hBase)
	r.Register(hDerived)

	r.Add(&Health{})
	assert.Len(t, hBase.added, 1)
	assert.Len(t, hDerived.added, 1)
}

func TestUnregisterRemovesFromMemos(t *testing.T) {
	r, _ := newTestRouter(t)
	hBase := &recorder{kind: KindFor[Damageable]()}
	hDerived := &recorder{kind: KindFor[*Health]()}
	r.Register(hBase)
	r.Register(hDerived)
	r.Relevant(KindFor[*Health](), true)

	r.Unregister(hBase)
	c := &Health{}
	r.Add(c)
	r.Remove(c)
	assert.Empty(t, hBase.added)
	assert.Equal(t, []any{c}, hDerived.added)
	assert.Equal(t, []any{c}, hDerived.removed)
}

func TestAddWarnsWhenUnclaimed(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	r := NewRouter(NewKindTable(), zap.New(core))

	r.Add(&Tag{})
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "no system handles component kind", logs.All()[0].Message)

	r.Remove(&Tag{})
	assert.Equal(t, 1, logs.Len(), "Remove is silent")
}

func TestReset(t *testing.T) {
	r, _ := newTestRouter(t)
	h := &recorder{kind: KindFor[*Health]()}
	r.Register(h)
	r.Relevant(KindFor[*Health](), true)
	r.Reset()

	assert.Nil(t, r.Relevant(KindFor[*Health](), false))
	assert.Empty(t, r.Relevant(KindFor[*Health](), true))
}

func TestDeclarePanicsOnMismatch(t *testing.T) {
	table := NewKindTable()
	assert.Panics(t, func() { Declare[*Tag](table, KindFor[Damageable]()) })
	assert.Panics(t, func() { Declare[*Tag](table, KindFor[*Tag]()) })
	assert.NotPanics(t, func() { Declare[*Health](table, KindFor[Damageable](), KindFor[Damageable]()) })
	assert.Len(t, table.Keys(KindFor[*Health]()), 1)
}
