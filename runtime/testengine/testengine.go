// Package testengine is a deterministic, scriptable test double for
// runtime.Engine (spec §9 Design Notes: "a statically bound default plus a
// test-double adapter"). It lets sandbox.Manager's state-machine behavior be
// exercised without a real WASM engine or guest module.
package testengine

import (
	"context"
	"sync/atomic"

	"github.com/attenuate/mntn/errs"
	"github.com/attenuate/mntn/hostfn"
	"github.com/attenuate/mntn/runtime"
)

// Call scripts one function's behavior: either a successful result or an
// error whose message runtime.Classify will interpret, plus how much fuel it
// consumes.
type Call struct {
	Results      []uint64
	Err          error
	FuelConsumed uint64
	Memory       []byte // memory to report as captured after this call
}

// Script is the fixed behavior table an Engine is built from.
type Script struct {
	CompileErr     error
	InstantiateErr error
	Calls          map[string]Call
	Exports        []string
	Imports        []string
}

// Engine is a runtime.Engine implementation driven entirely by a Script.
type Engine struct {
	script Script
	calls  atomic.Int64
}

// New constructs an Engine from script.
func New(script Script) *Engine {
	return &Engine{script: script}
}

// CallCount returns how many times Call has been invoked, for tests that
// assert on call counts.
func (e *Engine) CallCount() int64 { return e.calls.Load() }

type module struct {
	fuel    uint64
	exports []string
	imports []string
}

func (m *module) Close(ctx context.Context) error { return nil }

type instance struct {
	fuelQuota     uint64
	fuelRemaining uint64
	memory        []byte
	disposed      bool
}

func (e *Engine) Compile(ctx context.Context, bytes []byte, fuel uint64) (runtime.Module, error) {
	if e.script.CompileErr != nil {
		return nil, e.script.CompileErr
	}
	return &module{fuel: fuel, exports: e.script.Exports, imports: e.script.Imports}, nil
}

func (e *Engine) Instantiate(ctx context.Context, mod runtime.Module, imports hostfn.Table) (runtime.Instance, error) {
	if e.script.InstantiateErr != nil {
		return nil, e.script.InstantiateErr
	}
	m := mod.(*module)
	return &instance{fuelQuota: m.fuel, fuelRemaining: m.fuel}, nil
}

func (e *Engine) Call(ctx context.Context, inst runtime.Instance, function string, args []uint64) ([]uint64, error) {
	e.calls.Add(1)
	in := inst.(*instance)

	c, ok := e.script.Calls[function]
	if !ok {
		return nil, errs.New(errs.PhaseExecute, errs.KindOther).Detail("testengine: no script for function %q", function).Build()
	}

	if c.FuelConsumed > in.fuelRemaining {
		in.fuelRemaining = 0
	} else {
		in.fuelRemaining -= c.FuelConsumed
	}
	if c.Memory != nil {
		in.memory = c.Memory
	}
	if c.Err != nil {
		return nil, c.Err
	}
	return c.Results, nil
}

func (e *Engine) FuelRemaining(inst runtime.Instance) uint64 {
	return inst.(*instance).fuelRemaining
}

func (e *Engine) CaptureMemory(inst runtime.Instance) []byte {
	return inst.(*instance).memory
}

func (e *Engine) Dispose(ctx context.Context, inst runtime.Instance) error {
	inst.(*instance).disposed = true
	return nil
}

// Disposed reports whether Dispose has been called on inst at least once. It
// does not count calls.
func Disposed(inst runtime.Instance) bool {
	return inst.(*instance).disposed
}

func (e *Engine) Exports(mod runtime.Module) []string {
	return mod.(*module).exports
}

func (e *Engine) Imports(mod runtime.Module) []string {
	return mod.(*module).imports
}
