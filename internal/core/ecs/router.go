package ecs

import (
	"slices"

	"go.uber.org/zap"
)

// Handler is a subsystem that owns one component kind. The router forwards
// every instance whose kind routes to ComponentKind().
type Handler interface {
	ComponentKind() Kind
	Add(c any)
	Remove(c any)
}

// Router is the memoized kind -> handlers routing table.
//
// The relevant list for a concrete kind is built on its first lookup and is
// not rebuilt afterwards: a handler registered later for one of the kind's
// router keys is not seen by that kind. A handler registered for the exact
// kind is appended to the existing memo. Single-goroutine access only.
type Router struct {
	table    *KindTable
	direct   map[Kind][]Handler
	relevant map[Kind][]Handler
	log      *zap.Logger
}

func NewRouter(table *KindTable, log *zap.Logger) *Router {
	return &Router{
		table:    table,
		direct:   make(map[Kind][]Handler, 32),
		relevant: make(map[Kind][]Handler, 64),
		log:      log,
	}
}

// Register adds h under its exact component kind.
func (r *Router) Register(h Handler) {
	k := h.ComponentKind()
	r.direct[k] = append(r.direct[k], h)
	if memo, ok := r.relevant[k]; ok {
		r.relevant[k] = append(memo, h)
	}
}

// Unregister removes h from the direct table and from every memoized list.
func (r *Router) Unregister(h Handler) {
	k := h.ComponentKind()
	if list, ok := r.direct[k]; ok {
		list = slices.DeleteFunc(slices.Clone(list), func(x Handler) bool { return x == h })
		if len(list) == 0 {
			delete(r.direct, k)
		} else {
			r.direct[k] = list
		}
	}
	for kind, list := range r.relevant {
		if slices.Contains(list, h) {
			r.relevant[kind] = slices.DeleteFunc(slices.Clone(list), func(x Handler) bool { return x == h })
		}
	}
}

// Relevant returns the handlers an instance of kind routes to. When the kind
// has no memo and create is false it returns nil without building one.
func (r *Router) Relevant(kind Kind, create bool) []Handler {
	if memo, ok := r.relevant[kind]; ok {
		return memo
	}
	if !create {
		return nil
	}
	list := slices.Clone(r.direct[kind])
	for _, key := range r.table.Keys(kind) {
		for _, h := range r.direct[key] {
			if !slices.Contains(list, h) {
				list = append(list, h)
			}
		}
	}
	r.relevant[kind] = list
	return list
}

// Add forwards c to every relevant handler.
func (r *Router) Add(c any) {
	kind := KindOf(c)
	handlers := r.Relevant(kind, true)
	if len(handlers) == 0 {
		r.log.Warn("no system handles component kind", zap.Stringer("kind", kind))
		return
	}
	for _, h := range handlers {
		h.Add(c)
	}
}

// Remove forwards c to every relevant handler; unclaimed kinds are ignored.
func (r *Router) Remove(c any) {
	for _, h := range r.Relevant(KindOf(c), true) {
		h.Remove(c)
	}
}

// Reset drops every registration and memo without notifying handlers.
func (r *Router) Reset() {
	clear(r.direct)
	clear(r.relevant)
}
