package scripting

import (
	"fmt"
	"time"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/l1jgo/framecore/internal/core/phase"
)

// ScriptError is the panic value raised when a script callback fails.
type ScriptError struct {
	System string
	Func   string
	Err    error
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("lua system %s: %s: %v", e.System, e.Func, e.Err)
}

func (e *ScriptError) Unwrap() error { return e.Err }

// ScriptSystem is a system.System backed by a Lua table. Callbacks receive
// the table as their first argument, so scripts may keep state on self.
// A missing has_work means the system always has work.
type ScriptSystem struct {
	vm  *lua.LState
	log *zap.Logger

	name      string
	phase     phase.Phase
	priority  int
	initOrder int

	self        *lua.LTable
	initialize  *lua.LFunction
	shutdown    *lua.LFunction
	hasWork     *lua.LFunction
	processWork *lua.LFunction
}

func (s *ScriptSystem) Name() string       { return s.name }
func (s *ScriptSystem) KindName() string   { return "lua:" + s.name }
func (s *ScriptSystem) Phase() phase.Phase { return s.phase }
func (s *ScriptSystem) Priority() int      { return s.priority }
func (s *ScriptSystem) InitOrder() int     { return s.initOrder }
func (s *ScriptSystem) Table() *lua.LTable { return s.self }

// Initialize panics with a *ScriptError if the script's initialize fails.
func (s *ScriptSystem) Initialize() {
	if err := s.call(s.initialize, 0); err != nil {
		panic(&ScriptError{System: s.name, Func: "initialize", Err: err})
	}
}

// Shutdown logs a failing shutdown callback instead of panicking so the
// remaining systems still shut down.
func (s *ScriptSystem) Shutdown() {
	if err := s.call(s.shutdown, 0); err != nil {
		s.log.Error("lua system shutdown failed", zap.String("system", s.name), zap.Error(err))
	}
}

func (s *ScriptSystem) HasWork() bool {
	if s.hasWork == nil {
		return true
	}
	if err := s.call(s.hasWork, 1); err != nil {
		panic(&ScriptError{System: s.name, Func: "has_work", Err: err})
	}
	ret := s.vm.Get(-1)
	s.vm.Pop(1)
	return lua.LVAsBool(ret)
}

// ProcessWork passes dt to the script in seconds.
func (s *ScriptSystem) ProcessWork(dt time.Duration) {
	if err := s.call(s.processWork, 0, lua.LNumber(dt.Seconds())); err != nil {
		panic(&ScriptError{System: s.name, Func: "process_work", Err: err})
	}
}

func (s *ScriptSystem) call(fn *lua.LFunction, nret int, args ...lua.LValue) error {
	if fn == nil {
		return nil
	}
	return s.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    nret,
		Protect: true,
	}, append([]lua.LValue{s.self}, args...)...)
}
