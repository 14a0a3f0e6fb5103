package boot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHookOrder(t *testing.T) {
	r := &Registry{}
	var calls []string
	r.AddBoot("b1", func() { calls = append(calls, "b1") })
	r.AddPreBoot("p1", func() { calls = append(calls, "p1") })
	r.AddBoot("b2", func() { calls = append(calls, "b2") })
	r.AddPreBoot("p2", func() { calls = append(calls, "p2") })

	for _, h := range r.PreBootHooks() {
		h.Fn()
	}
	for _, h := range r.BootHooks() {
		h.Fn()
	}
	assert.Equal(t, []string{"p1", "p2", "b1", "b2"}, calls)
	assert.Equal(t, "b2", r.BootHooks()[1].Name)
}

func TestNilRegistry(t *testing.T) {
	var r *Registry
	assert.Empty(t, r.PreBootHooks())
	assert.Empty(t, r.BootHooks())
}
