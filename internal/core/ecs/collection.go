package ecs

import "reflect"

// Collection is a ready-made Handler that keeps every routed component of
// kind T, in arrival order. Systems embed it to receive their components.
// T may be an interface declared as a router key. Components whose dynamic
// value is not comparable cannot be indexed and are ignored.
type Collection[T comparable] struct {
	items []T
	index map[T]int
}

func NewCollection[T comparable]() *Collection[T] {
	return &Collection[T]{
		index: make(map[T]int, 64),
	}
}

func (c *Collection[T]) ComponentKind() Kind { return KindFor[T]() }

// Add stores comp. Components of another type and duplicates are ignored.
func (c *Collection[T]) Add(comp any) {
	v, ok := comp.(T)
	if !ok || !keyable(v) {
		return
	}
	if _, dup := c.index[v]; dup {
		return
	}
	c.index[v] = len(c.items)
	c.items = append(c.items, v)
}

// Remove drops comp, keeping the order of the rest.
func (c *Collection[T]) Remove(comp any) {
	v, ok := comp.(T)
	if !ok || !keyable(v) {
		return
	}
	i, ok := c.index[v]
	if !ok {
		return
	}
	delete(c.index, v)
	copy(c.items[i:], c.items[i+1:])
	var zero T
	c.items[len(c.items)-1] = zero
	c.items = c.items[:len(c.items)-1]
	for j := i; j < len(c.items); j++ {
		c.index[c.items[j]] = j
	}
}

func (c *Collection[T]) Has(comp T) bool {
	if !keyable(comp) {
		return false
	}
	_, ok := c.index[comp]
	return ok
}

func (c *Collection[T]) Len() int {
	return len(c.items)
}

// Each visits the components in arrival order.
func (c *Collection[T]) Each(fn func(T)) {
	for _, v := range c.items {
		fn(v)
	}
}

// keyable reports whether v can be used as a map key without panicking.
// Only interface-typed T can carry a non-comparable dynamic value.
func keyable[T comparable](v T) bool {
	rv := reflect.ValueOf(&v).Elem()
	if rv.Kind() != reflect.Interface {
		return true
	}
	return rv.IsNil() || rv.Elem().Comparable()
}
