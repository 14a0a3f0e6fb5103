package ecs

import (
	"fmt"
	"reflect"
	"slices"
)

// Kind identifies a component's concrete type, or a routing key a component
// type declares it should be routed through (usually an interface it satisfies).
type Kind = reflect.Type

// KindOf returns the dynamic kind of a component instance.
func KindOf(c any) Kind { return reflect.TypeOf(c) }

// KindFor returns the kind for the type parameter T.
func KindFor[T any]() Kind { return reflect.TypeFor[T]() }

// KindTable maps concrete component kinds to the additional router keys they
// are routed through. It replaces a runtime walk of a type hierarchy: a kind
// routes through exactly what its entry lists and nothing further.
type KindTable struct {
	keys map[Kind][]Kind
}

// DefaultKinds is populated by component packages from init().
var DefaultKinds = NewKindTable()

func NewKindTable() *KindTable {
	return &KindTable{keys: make(map[Kind][]Kind, 32)}
}

// Declare records the router keys for component type T. Interface keys must be
// implemented by T; a mismatch is a programming error and panics.
func Declare[T any](t *KindTable, keys ...Kind) {
	t.Declare(KindFor[T](), keys...)
}

func (t *KindTable) Declare(kind Kind, keys ...Kind) {
	for _, k := range keys {
		if k == nil || k == kind {
			panic(fmt.Errorf("ecs: invalid router key %v for %v", k, kind))
		}
		if k.Kind() == reflect.Interface && !kind.Implements(k) {
			panic(fmt.Errorf("ecs: %v does not implement router key %v", kind, k))
		}
	}
	cur := t.keys[kind]
	for _, k := range keys {
		if !slices.Contains(cur, k) {
			cur = append(cur, k)
		}
	}
	t.keys[kind] = cur
}

// Keys returns the declared router keys for kind, excluding kind itself.
func (t *KindTable) Keys(kind Kind) []Kind {
	if t == nil {
		return nil
	}
	return t.keys[kind]
}
