package scripting

import (
	"fmt"
	"os"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/l1jgo/framecore/internal/core/clock"
	"github.com/l1jgo/framecore/internal/core/singleton"
	"github.com/l1jgo/framecore/internal/data"
)

// Engine wraps a single gopher-lua VM shared by every scripted system.
// Loop-goroutine access only.
type Engine struct {
	vm    *lua.LState
	dir   string
	log   *zap.Logger
	frame func() uint64
	clk   *clock.Clock
}

// NewEngine creates a Lua engine rooted at scriptsDir and loads the shared
// helpers in scriptsDir/lib, if any.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})

	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, dir: scriptsDir, log: log}
	vm.SetGlobal("log", vm.NewFunction(e.luaLog))
	vm.SetGlobal("frame", vm.NewFunction(e.luaFrame))

	if err := e.loadDir(filepath.Join(scriptsDir, "lib")); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load lib scripts: %w", err)
	}
	return e, nil
}

// SetFrameSource sets what the frame() global reports. It takes precedence
// over an attached clock.
func (e *Engine) SetFrameSource(fn func() uint64) { e.frame = fn }

// Attach resolves the clock through the shared registry. frame() follows
// whichever clock is registered there and reports 0 once it is removed.
func (e *Engine) Attach(r *singleton.Registry) {
	singleton.Inject(r, &e.clk)
}

func (e *Engine) Close() { e.vm.Close() }

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

func (e *Engine) luaLog(L *lua.LState) int {
	e.log.Info(L.CheckString(1), zap.String("source", "lua"))
	return 0
}

func (e *Engine) luaFrame(L *lua.LState) int {
	var n uint64
	switch {
	case e.frame != nil:
		n = e.frame()
	case e.clk != nil:
		n = e.clk.Frame()
	}
	L.Push(lua.LNumber(n))
	return 1
}

// LoadManifest loads every system the table declares, in manifest order.
func (e *Engine) LoadManifest(tbl *data.SystemTable) ([]*ScriptSystem, error) {
	out := make([]*ScriptSystem, 0, tbl.Count())
	for _, entry := range tbl.All() {
		s, err := e.LoadSystem(entry)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// LoadSystem runs entry's script file and binds the table it returns.
func (e *Engine) LoadSystem(entry data.SystemEntry) (*ScriptSystem, error) {
	path := entry.Script
	if !filepath.IsAbs(path) {
		path = filepath.Join(e.dir, path)
	}
	fn, err := e.vm.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load system %s: %w", entry.Name, err)
	}
	s, err := e.bind(entry, fn)
	if err != nil {
		return nil, err
	}
	e.log.Debug("loaded lua system", zap.String("system", entry.Name), zap.String("file", path))
	return s, nil
}

// LoadSystemString is LoadSystem with the script given inline.
func (e *Engine) LoadSystemString(entry data.SystemEntry, src string) (*ScriptSystem, error) {
	fn, err := e.vm.LoadString(src)
	if err != nil {
		return nil, fmt.Errorf("load system %s: %w", entry.Name, err)
	}
	return e.bind(entry, fn)
}

func (e *Engine) bind(entry data.SystemEntry, chunk *lua.LFunction) (*ScriptSystem, error) {
	if err := e.vm.CallByParam(lua.P{
		Fn:      chunk,
		NRet:    1,
		Protect: true,
	}); err != nil {
		return nil, fmt.Errorf("run system %s: %w", entry.Name, err)
	}
	ret := e.vm.Get(-1)
	e.vm.Pop(1)

	tbl, ok := ret.(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("system %s: script returned %s, want table", entry.Name, ret.Type())
	}

	s := &ScriptSystem{
		vm:        e.vm,
		log:       e.log,
		name:      entry.Name,
		phase:     entry.ResolvedPhase(),
		priority:  entry.Priority,
		initOrder: entry.InitOrder,
		self:      tbl,
	}
	for _, cb := range []struct {
		key string
		dst **lua.LFunction
	}{
		{"initialize", &s.initialize},
		{"shutdown", &s.shutdown},
		{"has_work", &s.hasWork},
		{"process_work", &s.processWork},
	} {
		switch v := tbl.RawGetString(cb.key).(type) {
		case *lua.LNilType:
		case *lua.LFunction:
			*cb.dst = v
		default:
			return nil, fmt.Errorf("system %s: %s is %s, want function", entry.Name, cb.key, v.Type())
		}
	}
	return s, nil
}
