package value

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type vec3 struct{ X, Y, Z float32 }

type hit struct {
	Target uint64
	Point  vec3
	Normal vec3
	Flags  uint16
}

func recoverErr(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err, _ = r.(error)
		}
	}()
	fn()
	return nil
}

func TestStoreLoadUint64(t *testing.T) {
	var b Block64
	const x uint64 = 0xDEADBEEFCAFEF00D
	Store(&b, x)
	assert.Equal(t, x, Load[uint64](&b))
}

func TestStoreOverwrites(t *testing.T) {
	var b Block256
	Store(&b, hit{Target: 7, Point: vec3{1, 2, 3}, Flags: 3})
	Store(&b, hit{Target: 9, Normal: vec3{0, 1, 0}})

	got := Load[hit](&b)
	assert.Equal(t, uint64(9), got.Target)
	assert.Equal(t, vec3{}, got.Point)
	assert.Equal(t, vec3{0, 1, 0}, got.Normal)
}

func TestExactCapacityFits(t *testing.T) {
	var b Block64
	v := [64]byte{0: 1, 63: 2}
	Store(&b, v)
	assert.Equal(t, v, Load[[64]byte](&b))
}

func TestOversizeFails(t *testing.T) {
	var b Block64
	err := recoverErr(func() { Store(&b, [65]byte{}) })
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTooLarge))

	err = recoverErr(func() { _ = Load[[9]uint64](&b) })
	assert.True(t, errors.Is(err, ErrTooLarge))

	var big Block256
	assert.NoError(t, recoverErr(func() { Store(&big, [32]uint64{}) }))
	assert.True(t, errors.Is(recoverErr(func() { Store(&big, [257]byte{}) }), ErrTooLarge))
}

func TestPointerTypesRejected(t *testing.T) {
	var b Block256
	cases := map[string]func(){
		"string":  func() { Store(&b, "hello") },
		"pointer": func() { Store(&b, &hit{}) },
		"slice":   func() { Store(&b, []int{1}) },
		"struct":  func() { Store(&b, struct{ Name string }{"x"}) },
		"iface":   func() { Store[any](&b, 1) },
	}
	for name, fn := range cases {
		t.Run(name, func(t *testing.T) {
			assert.True(t, errors.Is(recoverErr(fn), ErrNotPlain))
		})
	}
}

func TestFits(t *testing.T) {
	assert.NoError(t, Fits[hit](64))
	assert.True(t, errors.Is(Fits[[100]byte](64), ErrTooLarge))
	assert.True(t, errors.Is(Fits[map[int]int](64), ErrNotPlain))
}

func TestClearAndCap(t *testing.T) {
	var b Block64
	Store(&b, uint32(5))
	b.Clear()
	assert.Zero(t, Load[uint32](&b))
	assert.Equal(t, 64, b.Cap())

	var big Block256
	assert.Equal(t, 256, big.Cap())
}

func BenchmarkStoreLoad(b *testing.B) {
	var blk Block64
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		Store(&blk, hit{Target: uint64(i)})
		_ = Load[hit](&blk)
	}
}
