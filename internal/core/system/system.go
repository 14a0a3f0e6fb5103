package system

import (
	"fmt"
	"reflect"
	"time"

	"github.com/l1jgo/framecore/internal/core/phase"
)

// System is a unit of per-phase work. Implementations are used as map keys
// and must be comparable; pointer receivers satisfy this.
type System interface {
	Initialize()
	Shutdown()
	HasWork() bool
	ProcessWork(dt time.Duration)
}

// Optional metadata methods. A kind's metadata is read from the first
// instance registered and memoized; later instances of the same kind reuse it.
type (
	Phased interface {
		Phase() phase.Phase
	}
	Prioritized interface {
		Priority() int
	}
	Ordered interface {
		InitOrder() int
	}
	// KindNamer distinguishes kinds that share one Go type, such as scripts.
	KindNamer interface {
		KindName() string
	}
	// Named gives a system a readable identity in logs.
	Named interface {
		Name() string
	}
)

// Meta is the resolved scheduling metadata of a system kind.
type Meta struct {
	Phase     phase.Phase
	Priority  int
	InitOrder int
}

// DefaultMeta applies to systems that declare nothing.
var DefaultMeta = Meta{Phase: phase.Update}

type kindKey struct {
	t    reflect.Type
	name string
}

func kindOf(s System) kindKey {
	k := kindKey{t: reflect.TypeOf(s)}
	if n, ok := s.(KindNamer); ok {
		k.name = n.KindName()
	}
	return k
}

func resolveMeta(s System) (Meta, error) {
	m := DefaultMeta
	if p, ok := s.(Phased); ok {
		m.Phase = p.Phase()
	}
	if p, ok := s.(Prioritized); ok {
		m.Priority = p.Priority()
	}
	if o, ok := s.(Ordered); ok {
		m.InitOrder = o.InitOrder()
	}
	if m.Phase != phase.None && !m.Phase.Dispatchable() {
		return m, fmt.Errorf("%w: %s declares phase %s", ErrInvalidMeta, Identity(s), m.Phase)
	}
	return m, nil
}

// Identity returns a readable name for s: Name() if implemented, then
// KindName(), then the Go type.
func Identity(s System) string {
	if n, ok := s.(Named); ok {
		return n.Name()
	}
	if n, ok := s.(KindNamer); ok {
		return n.KindName()
	}
	return reflect.TypeOf(s).String()
}

// Registered is published on the hub after a system is admitted and initialized.
type Registered struct {
	System System
}

// Deregistered is published after a live system has been shut down.
type Deregistered struct {
	System System
}
