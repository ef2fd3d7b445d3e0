// Package runtime defines the contract a pluggable WASM engine must honor
// (component D): compile, instantiate, call, read-fuel, snapshot-memory,
// dispose. Concrete bindings live in sibling packages (runtime/wazeroengine
// for the real tetratelabs/wazero adapter, runtime/testengine for the
// deterministic test double).
package runtime

import (
	"context"

	"github.com/attenuate/mntn/hostfn"
)

// Module is an opaque, re-instantiable compiled reference produced by
// Engine.Compile. It is never shared across calls in the core path.
type Module interface {
	// Close releases the compiled module. Idempotent.
	Close(ctx context.Context) error
}

// Instance is an opaque handle to one execution's linear memory, globals,
// and fuel ledger. Its lifetime is bounded by a single call.
type Instance interface{}

// Engine is the Runtime Contract every concrete adapter must implement.
type Engine interface {
	// Compile validates bytes and primes a fuel-bounded module reference.
	Compile(ctx context.Context, bytes []byte, fuel uint64) (Module, error)

	// Instantiate creates a fresh instance/store pair with zero-initialized
	// memory and the given import table bound under its namespaces.
	Instantiate(ctx context.Context, mod Module, imports hostfn.Table) (Instance, error)

	// Call invokes function on inst with args, fuel-bounded and subject to
	// ctx's deadline.
	Call(ctx context.Context, inst Instance, function string, args []uint64) ([]uint64, error)

	// FuelRemaining is callable at any time after instantiation, including
	// after a trap.
	FuelRemaining(inst Instance) uint64

	// CaptureMemory must succeed (possibly returning an empty slice) even if
	// the instance has trapped.
	CaptureMemory(inst Instance) []byte

	// Dispose releases engine resources for inst. Idempotent.
	Dispose(ctx context.Context, inst Instance) error

	// Exports returns the names of explicit function exports (used by
	// Validate) and Imports returns the "namespace#name" keys the module
	// declares as imports, without instantiating it.
	Exports(mod Module) []string
	Imports(mod Module) []string
}
