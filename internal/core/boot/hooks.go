// Package boot is the explicit static registry of start-up hooks. Packages
// add themselves from init(); the clock runs pre-boot hooks before the system
// init queue drains and boot hooks after it.
package boot

// Hook is a named zero-argument start-up callback.
type Hook struct {
	Name string
	Fn   func()
}

// Registry holds the two ordered hook lists.
type Registry struct {
	preBoot []Hook
	boot    []Hook
}

// Default is the process-wide registry filled by PreBoot and Boot.
var Default = &Registry{}

// PreBoot adds fn to Default's pre-boot list.
func PreBoot(name string, fn func()) { Default.AddPreBoot(name, fn) }

// Boot adds fn to Default's boot list.
func Boot(name string, fn func()) { Default.AddBoot(name, fn) }

func (r *Registry) AddPreBoot(name string, fn func()) {
	r.preBoot = append(r.preBoot, Hook{Name: name, Fn: fn})
}

func (r *Registry) AddBoot(name string, fn func()) {
	r.boot = append(r.boot, Hook{Name: name, Fn: fn})
}

// PreBootHooks returns the pre-boot hooks in registration order.
func (r *Registry) PreBootHooks() []Hook {
	if r == nil {
		return nil
	}
	return r.preBoot
}

// BootHooks returns the boot hooks in registration order.
func (r *Registry) BootHooks() []Hook {
	if r == nil {
		return nil
	}
	return r.boot
}
