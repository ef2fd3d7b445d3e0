// Package mntn provides a capability-attenuated sandbox for executing
// untrusted compiled WebAssembly modules in strict isolation.
//
// # Overview
//
// Callers submit a module binary, a function name, arguments, a fuel
// budget, a wall-clock deadline, and a set of host-capability grants. The
// engine returns either a successful result with accounting metadata, or a
// structured post-mortem capturing the instance's final memory and failure
// reason.
//
// # Basic Usage
//
//	eng := wazeroengine.New(ctx)
//	defer eng.Close(ctx)
//
//	mgr := sandbox.New(eng, config.Default().Policy(), logger)
//	outcome := mgr.Fire(ctx, wasmBytes, "add", []uint64{1, 2}, sandbox.Config{
//	    Capabilities: capability.NewSet(capability.Time),
//	})
//	if !outcome.Ok {
//	    fmt.Println(forensics.Summary(outcome.Dump))
//	}
//
// # Capabilities
//
// Every capability is deny-by-default; granting one only adds the fixed set
// of host-function exports package hostfn builds for it. filesystem_write
// implies filesystem_read; every other token is independent.
//
// See the [sandbox], [capability], [forensics], and [analyser] packages for
// detailed API documentation.
package mntn
