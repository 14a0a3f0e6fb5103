// Package arena is a per-frame bump allocator. Memory handed out during a
// frame is valid until the clock resets the arena at the end of that frame.
package arena

import "fmt"

const align = 8

// Arena is not safe for concurrent use.
type Arena struct {
	buf   []byte
	off   int
	index uint64
	peak  int
}

func New() *Arena { return &Arena{} }

// CreateAllocator reserves size bytes of backing storage.
func (a *Arena) CreateAllocator(size int) {
	if size < 0 {
		panic(fmt.Sprintf("arena: negative size %d", size))
	}
	a.buf = make([]byte, size)
	a.off = 0
}

// ResetAllocator releases everything allocated this frame and advances the
// frame index.
func (a *Arena) ResetAllocator() {
	clear(a.buf[:a.off])
	a.off = 0
	a.index++
}

// DestroyAllocator drops the backing storage.
func (a *Arena) DestroyAllocator() {
	a.buf = nil
	a.off = 0
}

// Index is the number of completed frames.
func (a *Arena) Index() uint64 { return a.index }

// Alloc returns n zeroed bytes aligned to 8, or nil when the frame budget is
// exhausted.
func (a *Arena) Alloc(n int) []byte {
	start := (a.off + align - 1) &^ (align - 1)
	end := start + n
	if n < 0 || end > len(a.buf) {
		return nil
	}
	a.off = end
	if end > a.peak {
		a.peak = end
	}
	return a.buf[start:end:end]
}

// Used returns the bytes consumed in the current frame.
func (a *Arena) Used() int { return a.off }

// Peak returns the highest per-frame usage seen.
func (a *Arena) Peak() int { return a.peak }

func (a *Arena) Cap() int { return len(a.buf) }
