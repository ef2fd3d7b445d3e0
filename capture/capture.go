// Package capture builds a forensics.Dump from a live (possibly trapped)
// engine instance, or synthesizes a minimal one when no instance exists.
package capture

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/attenuate/mntn/forensics"
	"github.com/attenuate/mntn/runtime"
)

// Context carries everything capture needs beyond the live instance: the
// failure reason, the fuel quota the call was given, which function was
// called, its original arguments (hashed, never retained), how long the call
// ran, and an optional stack trace.
type Context struct {
	Reason          runtime.Reason
	FuelAllocated   uint64
	FunctionCalled  string
	Args            []any
	ExecutionTimeUS uint64
	StackTrace      []forensics.StackFrame
}

var hashEncMode = func() cbor.EncMode {
	mode, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return mode
}()

// HashArgs returns the SHA-256 digest of a canonical CBOR encoding of args.
// Arguments themselves are never retained in a dump, only this digest —
// guards against a dump leaking secrets passed as call arguments.
func HashArgs(args []any) ([32]byte, error) {
	encoded, err := hashEncMode.Marshal(args)
	if err != nil {
		return [32]byte{}, err
	}
	return sha256.Sum256(encoded), nil
}

func newID() (string, error) {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf[:]), nil
}

// Capture reads inst's memory and fuel ledger through eng — memory strictly
// before fuel, so a read that disposes or mutates state as a side effect
// cannot invalidate the snapshot already taken (spec §4.G ordering) — and
// merges the result with ctx into a full Dump.
func Capture(eng runtime.Engine, inst runtime.Instance, ctx Context) (*forensics.Dump, error) {
	memory := eng.CaptureMemory(inst)
	fuelRemaining := eng.FuelRemaining(inst)

	id, err := newID()
	if err != nil {
		return nil, err
	}
	argsHash, err := HashArgs(ctx.Args)
	if err != nil {
		return nil, err
	}

	return forensics.New(forensics.Params{
		ID:              id,
		Timestamp:       time.Now().UTC(),
		Reason:          ctx.Reason,
		Memory:          memory,
		FuelRemaining:   fuelRemaining,
		FuelAllocated:   ctx.FuelAllocated,
		FunctionCalled:  ctx.FunctionCalled,
		ArgsHash:        argsHash,
		ExecutionTimeUS: ctx.ExecutionTimeUS,
		StackTrace:      ctx.StackTrace,
	})
}

// Minimal synthesizes a dump with empty memory and zero fuel_remaining, for
// failures that occur before an instance exists (compilation or
// instantiation).
func Minimal(ctx Context) (*forensics.Dump, error) {
	id, err := newID()
	if err != nil {
		return nil, err
	}
	argsHash, err := HashArgs(ctx.Args)
	if err != nil {
		return nil, err
	}

	return forensics.New(forensics.Params{
		ID:              id,
		Timestamp:       time.Now().UTC(),
		Reason:          ctx.Reason,
		FuelRemaining:   0,
		FuelAllocated:   ctx.FuelAllocated,
		FunctionCalled:  ctx.FunctionCalled,
		ArgsHash:        argsHash,
		ExecutionTimeUS: ctx.ExecutionTimeUS,
		StackTrace:      ctx.StackTrace,
	})
}
