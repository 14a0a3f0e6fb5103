package event

import (
	"reflect"
	"slices"
)

// ListenerID identifies a subscription for Unsubscribe.
type ListenerID uint64

type listener struct {
	id ListenerID
	fn any // func(T) for the keyed T
}

// Hub is a synchronous, type-keyed event hub. One Hub is owned by the phase
// clock and handed to every collaborator that publishes or subscribes.
// Loop-goroutine access only.
type Hub struct {
	handlers map[reflect.Type][]listener
	nextID   ListenerID
}

func NewHub() *Hub {
	return &Hub{handlers: make(map[reflect.Type][]listener)}
}

// Subscribe registers fn for events of type T. Handlers run in subscription order.
func Subscribe[T any](h *Hub, fn func(T)) ListenerID {
	t := reflect.TypeFor[T]()
	h.nextID++
	h.handlers[t] = append(h.handlers[t], listener{id: h.nextID, fn: fn})
	return h.nextID
}

// Unsubscribe removes a subscription. It reports whether id was found.
func (h *Hub) Unsubscribe(id ListenerID) bool {
	for t, list := range h.handlers {
		i := slices.IndexFunc(list, func(l listener) bool { return l.id == id })
		if i < 0 {
			continue
		}
		// Copy so a Publish in progress keeps iterating its own slice.
		list = slices.Delete(slices.Clone(list), i, i+1)
		if len(list) == 0 {
			delete(h.handlers, t)
		} else {
			h.handlers[t] = list
		}
		return true
	}
	return false
}

// Publish delivers ev to every handler subscribed to T at the time of the call.
// A nil Hub drops the event.
func Publish[T any](h *Hub, ev T) {
	if h == nil {
		return
	}
	for _, l := range h.handlers[reflect.TypeFor[T]()] {
		l.fn.(func(T))(ev)
	}
}

// Subscribers returns the number of handlers for T.
func Subscribers[T any](h *Hub) int {
	return len(h.handlers[reflect.TypeFor[T]()])
}
