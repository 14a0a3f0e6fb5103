// Package singleton is the process-wide shared-state store: at most one
// instance per concrete type, created explicitly or on first Require, with
// static slots that are filled and cleared as instances come and go.
package singleton

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"slices"

	"go.uber.org/zap"
)

var (
	ErrDuplicateRegistration = errors.New("singleton already registered")
	ErrNotRegistered         = errors.New("singleton not registered")
)

// Attacher is notified after the instance has been stored and injected.
type Attacher interface {
	Attached(r *Registry)
}

// Detacher is notified after the instance has been removed and its slots cleared.
type Detacher interface {
	Detached()
}

// HostOwned marks types whose lifetime belongs to a host (windows, devices,
// GPU contexts). Creating one through Require logs a warning because nothing
// will release what the host normally would.
type HostOwned interface {
	HostOwned()
}

type record struct {
	inst  any
	owned bool // created by Require; closed on removal
}

type slot struct {
	set   func(any)
	clear func()
}

// Registry stores one instance per type. Loop-goroutine access only.
type Registry struct {
	items map[reflect.Type]*record
	order []reflect.Type
	slots map[reflect.Type][]slot

	onRegistered   []func(any)
	onDeregistered []func(any)

	log *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{
		items: make(map[reflect.Type]*record, 16),
		slots: make(map[reflect.Type][]slot, 16),
		log:   log,
	}
}

// OnRegistered adds a callback run for every registration, after injection.
func (r *Registry) OnRegistered(fn func(any)) { r.onRegistered = append(r.onRegistered, fn) }

// OnDeregistered adds a callback run for every removal, after slots are cleared.
func (r *Registry) OnDeregistered(fn func(any)) { r.onDeregistered = append(r.onDeregistered, fn) }

// Register stores inst as the singleton for T. The caller keeps ownership.
func Register[T any](r *Registry, inst *T) error {
	if inst == nil {
		return fmt.Errorf("register %s: nil instance", reflect.TypeFor[T]())
	}
	return r.add(reflect.TypeFor[T](), inst, false)
}

func (r *Registry) add(t reflect.Type, inst any, owned bool) error {
	if _, ok := r.items[t]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateRegistration, t)
	}
	r.items[t] = &record{inst: inst, owned: owned}
	r.order = append(r.order, t)
	for _, s := range r.slots[t] {
		s.set(inst)
	}
	if a, ok := inst.(Attacher); ok {
		a.Attached(r)
	}
	for _, fn := range r.onRegistered {
		fn(inst)
	}
	r.log.Debug("singleton registered", zap.Stringer("type", t), zap.Bool("owned", owned))
	return nil
}

// Deregister removes inst if it is the instance currently stored for T. A
// stale or repeated call is a no-op and reports false.
func Deregister[T any](r *Registry, inst *T) bool {
	t := reflect.TypeFor[T]()
	rec, ok := r.items[t]
	if !ok || rec.inst != any(inst) {
		return false
	}
	r.remove(t, rec)
	return true
}

func (r *Registry) remove(t reflect.Type, rec *record) {
	delete(r.items, t)
	if i := slices.Index(r.order, t); i >= 0 {
		r.order = slices.Delete(r.order, i, i+1)
	}
	for _, s := range r.slots[t] {
		s.clear()
	}
	if d, ok := rec.inst.(Detacher); ok {
		d.Detached()
	}
	for _, fn := range r.onDeregistered {
		fn(rec.inst)
	}
	if c, ok := rec.inst.(io.Closer); ok && rec.owned {
		if err := c.Close(); err != nil {
			r.log.Warn("close singleton", zap.Stringer("type", t), zap.Error(err))
		}
	}
	r.log.Debug("singleton deregistered", zap.Stringer("type", t))
}

// Get returns the singleton for T and panics if none is registered.
func Get[T any](r *Registry) *T {
	v, ok := TryGet[T](r)
	if !ok {
		panic(fmt.Errorf("%w: %s", ErrNotRegistered, reflect.TypeFor[T]()))
	}
	return v
}

// TryGet returns the singleton for T, if registered. Only the exact type matches.
func TryGet[T any](r *Registry) (*T, bool) {
	rec, ok := r.items[reflect.TypeFor[T]()]
	if !ok {
		return nil, false
	}
	return rec.inst.(*T), true
}

// Require returns the singleton for T, creating and registering a zero value
// if absent. Instances created here are owned by the registry.
func Require[T any](r *Registry) *T {
	if v, ok := TryGet[T](r); ok {
		return v
	}
	t := reflect.TypeFor[T]()
	inst := new(T)
	if _, ok := any(inst).(HostOwned); ok {
		r.log.Warn("creating host-owned singleton on demand; it may leak host resources",
			zap.Stringer("type", t))
	}
	if err := r.add(t, inst, true); err != nil {
		// An Attached hook or callback registered T re-entrantly.
		panic(err)
	}
	return inst
}

// Inject declares a static slot for T. The slot is written whenever a T is
// registered and reset to nil when it is removed. If a T is already present
// the slot is filled immediately.
func Inject[T any](r *Registry, dst **T) {
	t := reflect.TypeFor[T]()
	r.slots[t] = append(r.slots[t], slot{
		set:   func(v any) { *dst = v.(*T) },
		clear: func() { *dst = nil },
	})
	if rec, ok := r.items[t]; ok {
		*dst = rec.inst.(*T)
	}
}

// LookupAll returns every stored instance accepted by pred, in registration order.
func (r *Registry) LookupAll(pred func(any) bool) []any {
	var out []any
	for _, t := range r.order {
		if inst := r.items[t].inst; pred(inst) {
			out = append(out, inst)
		}
	}
	return out
}

// LookupAllOf returns every stored instance implementing I.
func LookupAllOf[I any](r *Registry) []I {
	var out []I
	for _, t := range r.order {
		if v, ok := r.items[t].inst.(I); ok {
			out = append(out, v)
		}
	}
	return out
}

// Len returns the number of stored singletons.
func (r *Registry) Len() int { return len(r.items) }

// Clear removes every singleton, most recently registered first, with the
// same slot, hook and ownership handling as Deregister.
func (r *Registry) Clear() {
	for len(r.order) > 0 {
		t := r.order[len(r.order)-1]
		r.remove(t, r.items[t])
	}
}
