package ecs

import "go.uber.org/zap"

type opKind uint8

const (
	opAdd opKind = iota
	opRemove
)

type pendingOp struct {
	kind opKind
	c    any
}

// World is the component-store side of the dispatch barrier. Outside a phase
// it routes Add/Remove straight to the router; between Lock and Unlock it
// queues them and applies them in order on Unlock, so handlers never see
// their collections change while they are being iterated.
type World struct {
	router  *Router
	locked  int
	pending []pendingOp
	log     *zap.Logger
}

func NewWorld(router *Router, log *zap.Logger) *World {
	return &World{
		router:  router,
		pending: make([]pendingOp, 0, 64),
		log:     log,
	}
}

func (w *World) Router() *Router { return w.router }

// Lock opens a dispatch section. Sections nest.
func (w *World) Lock() { w.locked++ }

// Unlock closes a dispatch section and flushes queued mutations once the
// outermost section closes.
func (w *World) Unlock() {
	if w.locked == 0 {
		panic("ecs: Unlock of unlocked World")
	}
	w.locked--
	if w.locked == 0 {
		w.flush()
	}
}

func (w *World) Locked() bool { return w.locked > 0 }

// Pending returns the number of queued mutations.
func (w *World) Pending() int { return len(w.pending) }

func (w *World) Add(c any) {
	if w.locked > 0 {
		w.pending = append(w.pending, pendingOp{kind: opAdd, c: c})
		return
	}
	w.router.Add(c)
}

func (w *World) Remove(c any) {
	if w.locked > 0 {
		w.pending = append(w.pending, pendingOp{kind: opRemove, c: c})
		return
	}
	w.router.Remove(c)
}

func (w *World) flush() {
	if len(w.pending) == 0 {
		return
	}
	w.log.Debug("flushing deferred component mutations", zap.Int("count", len(w.pending)))
	// Handlers may add more while we flush; those go straight through since
	// the world is unlocked again.
	ops := w.pending
	w.pending = make([]pendingOp, 0, cap(ops))
	for i := range ops {
		switch ops[i].kind {
		case opAdd:
			w.router.Add(ops[i].c)
		case opRemove:
			w.router.Remove(ops[i].c)
		}
		ops[i].c = nil
	}
}
