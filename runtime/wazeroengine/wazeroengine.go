// Package wazeroengine binds the Runtime Contract (package runtime) to
// tetratelabs/wazero, the pure-Go WASM runtime the teacher project is built
// on. wazero has no native fuel-consumption API (unlike wasmtime/WasmEdge),
// so fuel is approximated by counting guest function calls through
// wazero/experimental's function listener hook and cancelling the
// instantiation context once the budget is spent; the same cancellation
// mechanism enforces the wall-clock deadline.
package wazeroengine

import (
	"context"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/experimental"

	"github.com/attenuate/mntn/errs"
	"github.com/attenuate/mntn/hostfn"
	"github.com/attenuate/mntn/runtime"
)

// Engine is the wazero-backed runtime.Engine implementation. One Engine may
// compile and run many independent calls; it holds no per-call state beyond
// the shared wazero.Runtime.
type Engine struct {
	runtime wazero.Runtime
}

// New constructs an Engine with a fresh wazero.Runtime. ctx is used only for
// the runtime's own setup and may be unrelated to any later call's context.
func New(ctx context.Context) *Engine {
	cfg := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	return &Engine{runtime: wazero.NewRuntimeWithConfig(ctx, cfg)}
}

// Close releases the underlying wazero runtime and every module compiled
// against it.
func (e *Engine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

type module struct {
	compiled wazero.CompiledModule
	fuel     uint64
}

func (m *module) Close(ctx context.Context) error {
	return m.compiled.Close(ctx)
}

func (e *Engine) Compile(ctx context.Context, bytes []byte, fuel uint64) (runtime.Module, error) {
	compiled, err := e.runtime.CompileModule(ctx, bytes)
	if err != nil {
		return nil, errs.Wrap(errs.PhaseCompile, errs.KindCompilationFailed, err, "compile module")
	}
	return &module{compiled: compiled, fuel: fuel}, nil
}

// instance bundles the live wazero module plus the fuel meter and
// cancellation function that bound it.
type instance struct {
	api.Module
	meter  *fuelMeter
	cancel context.CancelFunc
}

func (e *Engine) Instantiate(ctx context.Context, mod runtime.Module, imports hostfn.Table) (runtime.Instance, error) {
	m := mod.(*module)

	if len(imports) > 0 {
		if err := bindImports(ctx, e.runtime, imports); err != nil {
			return nil, errs.Wrap(errs.PhaseInstantiate, errs.KindInstantiationFailed, err, "bind host imports")
		}
	}

	meter := newFuelMeter(m.fuel)
	runCtx, cancel := context.WithCancel(ctx)
	runCtx = experimental.WithFunctionListenerFactory(runCtx, meter)

	guest, err := e.runtime.InstantiateModule(runCtx, m.compiled, wazero.NewModuleConfig())
	if err != nil {
		cancel()
		return nil, errs.Wrap(errs.PhaseInstantiate, errs.KindInstantiationFailed, err, "instantiate module")
	}

	meter.onExhausted = cancel
	return &instance{Module: guest, meter: meter, cancel: cancel}, nil
}

func bindImports(ctx context.Context, rt wazero.Runtime, imports hostfn.Table) error {
	for namespace, fns := range imports {
		builder := rt.NewHostModuleBuilder(namespace)
		for name, exports := range fns {
			for _, exp := range exports {
				builder = builder.NewFunctionBuilder().
					WithGoModuleFunction(goModuleFunc(exp), toValueTypes(exp.Signature.Params), toValueTypes(exp.Signature.Results)).
					Export(name)
			}
		}
		if _, err := builder.Instantiate(ctx); err != nil {
			return err
		}
	}
	return nil
}

func toValueTypes(vts []hostfn.ValType) []api.ValueType {
	out := make([]api.ValueType, len(vts))
	for i, vt := range vts {
		switch vt {
		case hostfn.I64:
			out[i] = api.ValueTypeI64
		default:
			out[i] = api.ValueTypeI32
		}
	}
	return out
}

// goModuleFunc adapts a hostfn.Export, which only needs bounded memory
// reads, into wazero's lower-level api.GoModuleFunction so log_* exports can
// read the calling instance's linear memory by (ptr, len).
func goModuleFunc(exp hostfn.Export) api.GoModuleFunc {
	return api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
		args := append([]uint64(nil), stack[:len(exp.Signature.Params)]...)
		results, err := exp.Call(ctx, wazeroMemory{mod.Memory()}, args)
		if err != nil {
			panic(err) // surfaces as a host-call trap; classified by runtime.Classify
		}
		copy(stack, results)
	})
}

type wazeroMemory struct {
	mem api.Memory
}

func (m wazeroMemory) Read(offset, length uint32) ([]byte, bool) {
	return m.mem.Read(offset, length)
}

func (e *Engine) Call(ctx context.Context, inst runtime.Instance, function string, args []uint64) ([]uint64, error) {
	in := inst.(*instance)
	fn := in.Module.ExportedFunction(function)
	if fn == nil {
		return nil, errs.New(errs.PhaseExecute, errs.KindMissingExport).Detail("no exported function %q", function).Build()
	}

	results, err := fn.Call(ctx, args...)
	if err != nil {
		if in.meter.exhausted() {
			return nil, errs.New(errs.PhaseFuel, errs.KindOther).Detail("fuel exhausted").Cause(err).Build()
		}
		if ctx.Err() != nil {
			return nil, errs.New(errs.PhaseExecute, errs.KindOther).Detail("timeout").Cause(err).Build()
		}
		return nil, err
	}
	return results, nil
}

func (e *Engine) FuelRemaining(inst runtime.Instance) uint64 {
	return inst.(*instance).meter.remaining()
}

func (e *Engine) CaptureMemory(inst runtime.Instance) []byte {
	in := inst.(*instance)
	mem := in.Module.Memory()
	if mem == nil {
		return nil
	}
	size := mem.Size()
	data, ok := mem.Read(0, size)
	if !ok {
		return nil
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out
}

func (e *Engine) Dispose(ctx context.Context, inst runtime.Instance) error {
	in := inst.(*instance)
	in.cancel()
	return in.Module.Close(ctx)
}

func (e *Engine) Exports(mod runtime.Module) []string {
	m := mod.(*module)
	var names []string
	for name, def := range m.compiled.ExportedFunctions() {
		_ = def
		names = append(names, name)
	}
	return names
}

func (e *Engine) Imports(mod runtime.Module) []string {
	m := mod.(*module)
	var names []string
	for _, imp := range m.compiled.ImportedFunctions() {
		moduleName, name, _ := imp.Import()
		names = append(names, moduleName+"#"+name)
	}
	return names
}

// fuelMeter approximates fuel consumption by counting guest function calls
// (spec's fuel budget has no wazero-native equivalent; see package doc).
// Every call into any guest function costs one unit of fuel; when the
// budget is spent, onExhausted cancels the instantiation context, which
// wazero's WithCloseOnContextDone(true) turns into a module-closing
// interruption the adapter then reports as fuel_exhausted.
type fuelMeter struct {
	budget      uint64
	spent       atomic.Uint64
	out         atomic.Bool
	onExhausted func()
}

func newFuelMeter(budget uint64) *fuelMeter {
	return &fuelMeter{budget: budget}
}

func (f *fuelMeter) remaining() uint64 {
	spent := f.spent.Load()
	if spent >= f.budget {
		return 0
	}
	return f.budget - spent
}

func (f *fuelMeter) exhausted() bool {
	return f.out.Load()
}

// NewFunctionListener implements experimental.FunctionListenerFactory.
func (f *fuelMeter) NewFunctionListener(def api.FunctionDefinition) experimental.FunctionListener {
	return f
}

// Before implements experimental.FunctionListener.
func (f *fuelMeter) Before(ctx context.Context, mod api.Module, def api.FunctionDefinition, params []uint64, stack experimental.StackIterator) {
	if f.spent.Add(1) > f.budget {
		if f.out.CompareAndSwap(false, true) && f.onExhausted != nil {
			f.onExhausted()
		}
	}
}

// After implements experimental.FunctionListener.
func (f *fuelMeter) After(ctx context.Context, mod api.Module, def api.FunctionDefinition, results []uint64) {}

// Abort implements experimental.FunctionListener.
func (f *fuelMeter) Abort(ctx context.Context, mod api.Module, def api.FunctionDefinition, err error) {}

var _ runtime.Engine = (*Engine)(nil)
