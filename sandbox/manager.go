// Package sandbox implements the Execution Manager (component I): the
// compile -> instantiate -> execute -> capture -> dispose lifecycle that
// orchestrates every other component per call, and owns the fixed
// state-machine-to-outcome mapping.
package sandbox

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/attenuate/mntn/capability"
	"github.com/attenuate/mntn/capture"
	"github.com/attenuate/mntn/errs"
	"github.com/attenuate/mntn/forensics"
	"github.com/attenuate/mntn/fuelpolicy"
	"github.com/attenuate/mntn/hostfn"
	"github.com/attenuate/mntn/meter"
	"github.com/attenuate/mntn/runtime"
)

// Config is a per-call override of the process-wide fuel/timeout/capability
// defaults. TimeoutMS zero means "use the default". Fuel is only defaulted
// when FuelSet is false; a caller that sets FuelSet and supplies Fuel: 0 (or
// any value outside fuelpolicy's bounds) gets the spec's required rejection
// rather than a silent default.
type Config struct {
	Fuel         uint64
	FuelSet      bool
	TimeoutMS    uint64
	Capabilities capability.Set
}

// Metadata is returned alongside a successful call's results.
type Metadata struct {
	FuelRemaining        uint64
	ExecutionTimeUS      uint64
	MemoryHighWaterBytes int
}

// Outcome is the never-throws result of Fire: either a success with results
// and metadata, or a crash with a reason and a forensic dump.
type Outcome struct {
	Ok       bool
	Results  []uint64
	Metadata Metadata
	Reason   runtime.Reason
	Dump     *forensics.Dump
}

// Manager owns one runtime.Engine and the policy/logging it is configured
// with, and exposes the two primary library operations, Fire and Validate.
type Manager struct {
	engine runtime.Engine
	policy *fuelpolicy.Policy
	logger *zap.Logger
	meter  *meter.Meter
}

// Option configures optional Manager behavior at construction.
type Option func(*Manager)

// WithMeter attaches the optional fuel-accounting sidecar (spec §5/§9): every
// call that reaches the engine's Call, successful or not, records its fuel
// consumption into m. Calls rejected before that point (invalid input,
// compilation or instantiation failure) are not recorded.
func WithMeter(m *meter.Meter) Option {
	return func(mgr *Manager) { mgr.meter = m }
}

// New constructs a Manager bound to engine.
func New(engine runtime.Engine, policy *fuelpolicy.Policy, logger *zap.Logger, opts ...Option) *Manager {
	if policy == nil {
		policy = fuelpolicy.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	mgr := &Manager{engine: engine, policy: policy, logger: logger}
	for _, opt := range opts {
		opt(mgr)
	}
	return mgr
}

// resolveFuel returns the default fuel budget when cfg didn't explicitly set
// one, and otherwise returns cfg.Fuel unchanged for validateFuel to check —
// an explicit 0 (or any out-of-bounds value) must be rejected, not defaulted.
func (m *Manager) resolveFuel(cfg Config) uint64 {
	if !cfg.FuelSet {
		return m.policy.DefaultFuel()
	}
	return cfg.Fuel
}

// validateFuel enforces fuelpolicy's bounds on an explicitly-set fuel
// budget. A caller that omits Fuel (FuelSet == false) always gets the
// process default, which is already known-valid.
func validateFuel(cfg Config) error {
	if !cfg.FuelSet {
		return nil
	}
	return fuelpolicy.Validate(int64(cfg.Fuel))
}

func (m *Manager) resolveTimeout(cfg Config) time.Duration {
	ms := cfg.TimeoutMS
	if ms == 0 {
		ms = m.policy.DefaultTimeoutMS()
	}
	return time.Duration(ms) * time.Millisecond
}

func argsAsAny(args []uint64) []any {
	out := make([]any, len(args))
	for i, a := range args {
		out[i] = a
	}
	return out
}

func crash(reason runtime.Reason, dump *forensics.Dump) Outcome {
	return Outcome{Ok: false, Reason: reason, Dump: dump}
}

func ok(results []uint64, metadata Metadata) Outcome {
	return Outcome{Ok: true, Results: results, Metadata: metadata}
}

// invalidArgument builds the fixed crash(invalid_argument, minimal_dump)
// outcome for a pre-engine input error (spec §7): bad fuel or an unknown
// capability token. err is never nil.
func (m *Manager) invalidArgument(function string, args []uint64, fuel uint64, start time.Time, err error) Outcome {
	reason := runtime.Reason{Atom: runtime.AtomInvalidArgument, Detail: err.Error()}
	dump, dumpErr := capture.Minimal(capture.Context{
		Reason:          reason,
		FuelAllocated:   fuel,
		FunctionCalled:  function,
		Args:            argsAsAny(args),
		ExecutionTimeUS: uint64(time.Since(start).Microseconds()),
	})
	if dumpErr != nil {
		m.logger.Error("failed to build minimal dump after input validation failure", zap.Error(dumpErr))
	}
	return crash(reason, dump)
}

// recordConsumption reports fuel spent on this call to the optional meter
// sidecar. A no-op when Manager wasn't constructed with WithMeter.
func (m *Manager) recordConsumption(function string, fuelAllocated, fuelRemaining uint64) {
	if m.meter == nil {
		return
	}
	consumed := uint64(0)
	if fuelAllocated > fuelRemaining {
		consumed = fuelAllocated - fuelRemaining
	}
	m.meter.Record(function, consumed, time.Now())
}

// Fire compiles wasmBytes, instantiates it with an import table built from
// cfg's capability grants, calls function with args, and captures a
// forensic dump on any failure. It follows the fixed state machine
// (start -> compiling -> instantiating -> executing -> outcome -> disposed):
// every exit disposes the instance exactly once, and a host-side panic is
// recovered and reclassified as other_error rather than propagating.
//
// Fire never panics and never returns without either a result or a dump.
func (m *Manager) Fire(ctx context.Context, wasmBytes []byte, function string, args []uint64, cfg Config) (outcome Outcome) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			dump, err := capture.Minimal(capture.Context{
				Reason:          runtime.Reason{Atom: runtime.AtomOther, Detail: fmt.Sprintf("panic: %v", r)},
				FuelAllocated:   m.resolveFuel(cfg),
				FunctionCalled:  function,
				Args:            argsAsAny(args),
				ExecutionTimeUS: uint64(time.Since(start).Microseconds()),
			})
			if err != nil {
				m.logger.Error("failed to build minimal dump after panic", zap.Error(err))
			}
			outcome = crash(runtime.Reason{Atom: runtime.AtomOther, Detail: fmt.Sprintf("panic: %v", r)}, dump)
		}
	}()

	if err := validateFuel(cfg); err != nil {
		return m.invalidArgument(function, args, m.resolveFuel(cfg), start, err)
	}
	if err := cfg.Capabilities.Validate(); err != nil {
		return m.invalidArgument(function, args, m.resolveFuel(cfg), start, err)
	}

	fuel := m.resolveFuel(cfg)
	timeout := m.resolveTimeout(cfg)

	callCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	mod, err := m.engine.Compile(callCtx, wasmBytes, fuel)
	if err != nil {
		dump, dumpErr := capture.Minimal(capture.Context{
			Reason:          runtime.Reason{Atom: runtime.AtomCompilationFailed, Detail: err.Error()},
			FuelAllocated:   fuel,
			FunctionCalled:  function,
			Args:            argsAsAny(args),
			ExecutionTimeUS: uint64(time.Since(start).Microseconds()),
		})
		if dumpErr != nil {
			m.logger.Error("failed to build minimal dump after compile failure", zap.Error(dumpErr))
		}
		return crash(runtime.Reason{Atom: runtime.AtomCompilationFailed, Detail: err.Error()}, dump)
	}
	defer mod.Close(ctx)

	imports := hostfn.Build(cfg.Capabilities, m.logger)

	inst, err := m.engine.Instantiate(callCtx, mod, imports)
	if err != nil {
		dump, dumpErr := capture.Minimal(capture.Context{
			Reason:          runtime.Reason{Atom: runtime.AtomInstantiationFailed, Detail: err.Error()},
			FuelAllocated:   fuel,
			FunctionCalled:  function,
			Args:            argsAsAny(args),
			ExecutionTimeUS: uint64(time.Since(start).Microseconds()),
		})
		if dumpErr != nil {
			m.logger.Error("failed to build minimal dump after instantiation failure", zap.Error(dumpErr))
		}
		return crash(runtime.Reason{Atom: runtime.AtomInstantiationFailed, Detail: err.Error()}, dump)
	}
	defer m.engine.Dispose(ctx, inst)

	results, callErr := m.engine.Call(callCtx, inst, function, args)
	elapsed := uint64(time.Since(start).Microseconds())

	if callErr != nil {
		reason := m.classifyCallFailure(callCtx, callErr)
		dump, dumpErr := capture.Capture(m.engine, inst, capture.Context{
			Reason:          reason,
			FuelAllocated:   fuel,
			FunctionCalled:  function,
			Args:            argsAsAny(args),
			ExecutionTimeUS: elapsed,
		})
		if dumpErr != nil {
			m.logger.Error("failed to build dump after call failure", zap.Error(dumpErr))
		}
		if dump != nil {
			m.recordConsumption(function, fuel, dump.FuelRemaining())
		}
		return crash(reason, dump)
	}

	memory := m.engine.CaptureMemory(inst)
	fuelRemaining := m.engine.FuelRemaining(inst)
	m.recordConsumption(function, fuel, fuelRemaining)
	return ok(results, Metadata{
		FuelRemaining:        fuelRemaining,
		ExecutionTimeUS:      elapsed,
		MemoryHighWaterBytes: len(memory),
	})
}

// classifyCallFailure distinguishes a timeout (the call's context expired)
// from a genuine in-engine error, which is handed to runtime.Classify.
func (m *Manager) classifyCallFailure(callCtx context.Context, err error) runtime.Reason {
	if callCtx.Err() == context.DeadlineExceeded {
		return runtime.Reason{Atom: runtime.AtomTimeout, Detail: err.Error()}
	}
	return runtime.Classify(err)
}

// ValidateOptions configures Validate's export/import checks.
type ValidateOptions struct {
	RequiredExports []string
	AllowedImports  []string // nil means no restriction
}

// Validate compiles wasmBytes and checks that every required export is
// present and every import is in the allowed set, without ever
// instantiating or executing the module.
func (m *Manager) Validate(ctx context.Context, wasmBytes []byte, opts ValidateOptions) error {
	mod, err := m.engine.Compile(ctx, wasmBytes, m.policy.DefaultFuel())
	if err != nil {
		return errs.Wrap(errs.PhaseValidate, errs.KindCompilationFailed, err, "compile module")
	}
	defer mod.Close(ctx)

	exported := make(map[string]struct{})
	for _, name := range m.engine.Exports(mod) {
		exported[name] = struct{}{}
	}
	for _, want := range opts.RequiredExports {
		if _, ok := exported[want]; !ok {
			return errs.New(errs.PhaseValidate, errs.KindMissingExport).
				Detail("required export %q not found", want).Build()
		}
	}

	if opts.AllowedImports != nil {
		allowed := make(map[string]struct{}, len(opts.AllowedImports))
		for _, a := range opts.AllowedImports {
			allowed[a] = struct{}{}
		}
		for _, imp := range m.engine.Imports(mod) {
			if _, ok := allowed[imp]; !ok {
				return errs.New(errs.PhaseValidate, errs.KindDisallowedImport).
					Detail("import %q is not in the allowed set", imp).Build()
			}
		}
	}

	return nil
}
