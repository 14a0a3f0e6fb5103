// Package value provides fixed-capacity inline blocks that carry exactly one
// plain value without allocating. Blocks store no type tag: a value must be
// loaded with the same type it was stored with.
package value

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"unsafe"
)

var (
	ErrTooLarge   = errors.New("value: type exceeds block capacity")
	ErrMisaligned = errors.New("value: type alignment exceeds block alignment")
	ErrNotPlain   = errors.New("value: type contains pointers")
)

// Block64 holds one value of at most 64 bytes.
type Block64 [8]uint64

// Block256 holds one value of at most 256 bytes.
type Block256 [32]uint64

// Block is the set of inline block types.
type Block interface {
	~[8]uint64 | ~[32]uint64
}

const blockAlign = unsafe.Alignof(uint64(0))

func (b *Block64) Cap() int  { return len(b) * 8 }
func (b *Block256) Cap() int { return len(b) * 8 }

func (b *Block64) Clear()  { *b = Block64{} }
func (b *Block256) Clear() { *b = Block256{} }

// Store copies v into b, overwriting whatever was there. It panics when T
// does not fit, is aligned beyond 8 bytes, or contains pointers.
func Store[T any, B Block](b *B, v T) {
	check[T](len(*b) * 8)
	*(*T)(unsafe.Pointer(b)) = v
}

// Load reinterprets the bytes of b as a T. The same checks as Store apply.
func Load[T any, B Block](b *B) T {
	check[T](len(*b) * 8)
	return *(*T)(unsafe.Pointer(b))
}

// Fits reports whether T can be carried by a block of capacity bytes.
func Fits[T any](capacity int) error {
	var zero T
	size := unsafe.Sizeof(zero)
	if size > uintptr(capacity) {
		return fmt.Errorf("%w: %s is %d bytes, capacity %d", ErrTooLarge, reflect.TypeFor[T](), size, capacity)
	}
	if unsafe.Alignof(zero) > blockAlign {
		return fmt.Errorf("%w: %s", ErrMisaligned, reflect.TypeFor[T]())
	}
	if !plain(reflect.TypeFor[T]()) {
		return fmt.Errorf("%w: %s", ErrNotPlain, reflect.TypeFor[T]())
	}
	return nil
}

func check[T any](capacity int) {
	var zero T
	if unsafe.Sizeof(zero) > uintptr(capacity) || unsafe.Alignof(zero) > blockAlign {
		panic(Fits[T](capacity))
	}
	if !plain(reflect.TypeFor[T]()) {
		panic(Fits[T](capacity))
	}
}

// plainCache memoizes the pointer scan per type.
var plainCache sync.Map // reflect.Type -> bool

func plain(t reflect.Type) bool {
	if v, ok := plainCache.Load(t); ok {
		return v.(bool)
	}
	ok := scan(t)
	plainCache.Store(t, ok)
	return ok
}

func scan(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return true
	case reflect.Array:
		return t.Len() == 0 || scan(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if !scan(t.Field(i).Type) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
