package clock

// queue is a FIFO of deferred callbacks.
type queue struct {
	items []func()
	head  int
}

func (q *queue) push(fn func()) { q.items = append(q.items, fn) }

func (q *queue) len() int { return len(q.items) - q.head }

// drain runs the callbacks present when it was called, front first. Callbacks
// pushed while draining stay queued for the next drain.
func (q *queue) drain() {
	n := q.len()
	for i := 0; i < n; i++ {
		fn := q.items[q.head]
		q.items[q.head] = nil
		q.head++
		fn()
	}
	q.compact()
}

func (q *queue) compact() {
	if q.head == 0 {
		return
	}
	rest := copy(q.items, q.items[q.head:])
	clear(q.items[rest:])
	q.items = q.items[:rest]
	q.head = 0
}
