// Package script runs the Lua snippets stored on sources: custom easing
// curves and take commands.
package script

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	lua "github.com/yuin/gopher-lua"

	"sourcerer/lib/easing"
	"sourcerer/lib/source"
)

var ErrNoCurveFunc = errors.New("script: chunk does not define curve(t)")

// CurveTimeout bounds loading a curve and each sample of it. Samples run
// inside the switcher tick.
const CurveTimeout = 10 * time.Millisecond

// Curve samples a Lua function curve(t). A state is not safe for concurrent
// use, so calls are serialized.
type Curve struct {
	mu sync.Mutex
	L  *lua.LState
	fn *lua.LFunction
	// Timeout bounds each sample. A curve that overruns it is never called
	// again.
	Timeout time.Duration
	stuck   bool
}

func NewCurve(code string) (*Curve, error) {
	L := newState(lua.BaseLibName, lua.MathLibName)
	ctx, cancel := context.WithTimeout(context.Background(), CurveTimeout)
	defer cancel()
	L.SetContext(ctx)
	err := L.DoString(code)
	L.RemoveContext()
	if err != nil {
		L.Close()
		return nil, fmt.Errorf("script: load curve: %w", err)
	}
	fn, ok := L.GetGlobal("curve").(*lua.LFunction)
	if !ok {
		L.Close()
		return nil, ErrNoCurveFunc
	}
	return &Curve{L: L, fn: fn, Timeout: CurveTimeout}, nil
}

var libs = map[string]lua.LGFunction{
	lua.BaseLibName:   lua.OpenBase,
	lua.TabLibName:    lua.OpenTable,
	lua.StringLibName: lua.OpenString,
	lua.MathLibName:   lua.OpenMath,
}

// newState opens only the named standard libraries, leaving out io, os and
// package loading.
func newState(names ...string) *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	for _, name := range names {
		if err := L.CallByParam(lua.P{Fn: L.NewFunction(libs[name]), NRet: 0, Protect: true}, lua.LString(name)); err != nil {
			panic(err)
		}
	}
	return L
}

// Sample implements easing.Curve. A runtime error, a timeout or a
// non-numeric result reports no value.
func (c *Curve) Sample(t float64) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stuck {
		return 0, false
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()
	c.L.SetContext(ctx)
	err := c.L.CallByParam(lua.P{Fn: c.fn, NRet: 1, Protect: true}, lua.LNumber(t))
	c.L.RemoveContext()
	if err != nil {
		if ctx.Err() != nil {
			c.stuck = true
			logrus.WithFields(logrus.Fields{
				"function": "Sample",
				"timeout":  c.Timeout,
			}).Warn("Custom curve overran its timeout, using linear")
		}
		return 0, false
	}
	ret := c.L.Get(-1)
	c.L.Pop(1)
	n, ok := ret.(lua.LNumber)
	if !ok {
		return 0, false
	}
	return float64(n), true
}

func (c *Curve) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.L.Close()
}

// Curves compiles each distinct curve chunk once.
type Curves struct {
	mu     sync.Mutex
	curves map[string]*Curve
}

func NewCurves() *Curves {
	return &Curves{curves: map[string]*Curve{}}
}

// For returns the curve for src, or nil when it has none or it fails to
// load, in which case the custom shape falls back to linear.
func (cs *Curves) For(src *source.Source) easing.Curve {
	code := src.Transition.Curve
	if code == "" {
		return nil
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if c, ok := cs.curves[code]; ok {
		return c
	}
	c, err := NewCurve(code)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "For",
			"source":   src.Name,
		}).WithError(err).Warn("Custom curve failed to load, using linear")
		return nil
	}
	cs.curves[code] = c
	return c
}

func (cs *Curves) Close() {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	for code, c := range cs.curves {
		c.Close()
		delete(cs.curves, code)
	}
}
