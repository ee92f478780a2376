package script

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	lua "github.com/yuin/gopher-lua"

	"sourcerer/lib/source"
)

// DefaultTimeout bounds a single command run.
const DefaultTimeout = 250 * time.Millisecond

// Host is what a command can drive.
type Host interface {
	Take(id string, force bool) error
	SetSignal(name string, level bool)
	ClearPendingQueue()
	SkipToLastPending()
}

// Runner executes source commands in one Lua state. The state exposes a
// global table "sourcerer" with take, trigger, clear_queue, skip and log,
// and a global "source" describing the source being taken.
type Runner struct {
	mu      sync.Mutex
	L       *lua.LState
	host    Host
	Timeout time.Duration
}

func NewRunner(host Host) *Runner {
	r := &Runner{
		L:       newState(lua.BaseLibName, lua.TabLibName, lua.StringLibName, lua.MathLibName),
		host:    host,
		Timeout: DefaultTimeout,
	}

	mod := r.L.NewTable()
	r.L.SetFuncs(mod, map[string]lua.LGFunction{
		"take":        r.take,
		"trigger":     r.trigger,
		"clear_queue": r.clearQueue,
		"skip":        r.skip,
		"log":         r.log,
	})
	r.L.SetGlobal("sourcerer", mod)
	return r
}

// Run executes src.Command. index is the list position of src.
func (r *Runner) Run(ctx context.Context, index int, src *source.Source) error {
	if src.Command == "" {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()
	r.L.SetContext(ctx)
	defer r.L.RemoveContext()

	info := r.L.NewTable()
	info.RawSetString("name", lua.LString(src.Name))
	info.RawSetString("index", lua.LNumber(index))
	info.RawSetString("kind", lua.LString(src.Kind))
	r.L.SetGlobal("source", info)

	if err := r.L.DoString(src.Command); err != nil {
		return fmt.Errorf("script: command for %q: %w", src.Name, err)
	}
	return nil
}

func (r *Runner) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.L.Close()
}

func (r *Runner) take(L *lua.LState) int {
	id := L.CheckAny(1)
	force := L.OptBool(2, false)
	if err := r.host.Take(lua.LVAsString(id), force); err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	L.Push(lua.LTrue)
	return 1
}

func (r *Runner) trigger(L *lua.LState) int {
	r.host.SetSignal(L.CheckString(1), L.OptBool(2, true))
	return 0
}

func (r *Runner) clearQueue(L *lua.LState) int {
	r.host.ClearPendingQueue()
	return 0
}

func (r *Runner) skip(L *lua.LState) int {
	r.host.SkipToLastPending()
	return 0
}

func (r *Runner) log(L *lua.LState) int {
	name := ""
	if info, ok := L.GetGlobal("source").(*lua.LTable); ok {
		name = lua.LVAsString(info.RawGetString("name"))
	}
	logrus.WithFields(logrus.Fields{
		"function": "log",
		"source":   name,
	}).Info(L.CheckString(1))
	return 0
}
