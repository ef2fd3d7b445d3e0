// Package forensics defines the Forensic Dump value object: the immutable
// post-mortem record an Execution Manager call produces on failure, its
// binary wire format, and the codec between them.
package forensics

import (
	"fmt"
	"time"

	"github.com/attenuate/mntn/errs"
	"github.com/attenuate/mntn/runtime"
)

const pageSize = 65536

// StackFrame is one optional frame descriptor in a dump's stack trace.
type StackFrame struct {
	Function string
	Offset   uint32
}

// Dump is the immutable post-mortem record. Construct with New; every field
// is validated once at construction and never mutated afterward.
type Dump struct {
	id               string
	timestamp        time.Time
	reason           runtime.Reason
	memory           []byte
	fuelRemaining    uint64
	fuelAllocated    uint64
	functionCalled   string
	argsHash         [32]byte
	executionTimeUS  uint64
	stackTrace       []StackFrame
}

// Params bundles the constructor inputs for New.
type Params struct {
	ID              string
	Timestamp       time.Time
	Reason          runtime.Reason
	Memory          []byte
	FuelRemaining   uint64
	FuelAllocated   uint64
	FunctionCalled  string
	ArgsHash        [32]byte
	ExecutionTimeUS uint64
	StackTrace      []StackFrame
}

// New validates Params and constructs an immutable Dump.
//
// Invariants enforced (spec §3): (i) id is non-empty, (ii) memory length is
// a multiple of the page size or zero, and fuel_remaining <= fuel_allocated.
func New(p Params) (*Dump, error) {
	if p.ID == "" {
		return nil, errs.InvalidInput(errs.PhaseCapture, "dump id must not be empty")
	}
	if len(p.Memory)%pageSize != 0 {
		return nil, errs.New(errs.PhaseCapture, errs.KindInvalidInput).
			Detail("memory length %d is not a multiple of the page size %d", len(p.Memory), pageSize).Build()
	}
	if p.FuelRemaining > p.FuelAllocated {
		return nil, errs.New(errs.PhaseCapture, errs.KindInvalidInput).
			Detail("fuel_remaining %d exceeds fuel_allocated %d", p.FuelRemaining, p.FuelAllocated).Build()
	}

	mem := make([]byte, len(p.Memory))
	copy(mem, p.Memory)
	var frames []StackFrame
	if len(p.StackTrace) > 0 {
		frames = make([]StackFrame, len(p.StackTrace))
		copy(frames, p.StackTrace)
	}

	return &Dump{
		id:              p.ID,
		timestamp:       p.Timestamp,
		reason:          p.Reason,
		memory:          mem,
		fuelRemaining:   p.FuelRemaining,
		fuelAllocated:   p.FuelAllocated,
		functionCalled:  p.FunctionCalled,
		argsHash:        p.ArgsHash,
		executionTimeUS: p.ExecutionTimeUS,
		stackTrace:      frames,
	}, nil
}

func (d *Dump) ID() string                { return d.id }
func (d *Dump) Timestamp() time.Time      { return d.timestamp }
func (d *Dump) Reason() runtime.Reason    { return d.reason }
func (d *Dump) FuelRemaining() uint64     { return d.fuelRemaining }
func (d *Dump) FuelAllocated() uint64     { return d.fuelAllocated }
func (d *Dump) FunctionCalled() string    { return d.functionCalled }
func (d *Dump) ArgsHash() [32]byte        { return d.argsHash }
func (d *Dump) ExecutionTimeUS() uint64   { return d.executionTimeUS }

// Memory returns a copy of the captured memory snapshot; callers cannot
// mutate the dump's internal state through the returned slice.
func (d *Dump) Memory() []byte {
	out := make([]byte, len(d.memory))
	copy(out, d.memory)
	return out
}

// StackTrace returns a copy of the optional frame sequence, nil if absent.
func (d *Dump) StackTrace() []StackFrame {
	if d.stackTrace == nil {
		return nil
	}
	out := make([]StackFrame, len(d.stackTrace))
	copy(out, d.stackTrace)
	return out
}

// Summary renders the human line: id, function, reason, execution time,
// fuel-remaining percentage, memory size in KiB.
func Summary(d *Dump) string {
	pct := 0.0
	if d.fuelAllocated > 0 {
		pct = float64(d.fuelRemaining) / float64(d.fuelAllocated) * 100
	}
	return fmt.Sprintf(
		"dump %s: function=%s reason=%s elapsed=%dus fuel_remaining=%.1f%% memory=%dKiB",
		d.id, d.functionCalled, d.reason.String(), d.executionTimeUS, pct, len(d.memory)/1024,
	)
}
