package runtime

import "strings"

// Atom is a top-level failure reason, observable by callers of
// sandbox.Manager.Fire (spec §6: "Reason atoms observable by callers").
type Atom string

const (
	AtomFuelExhausted       Atom = "fuel_exhausted"
	AtomTrap                Atom = "trap"
	AtomTimeout             Atom = "timeout"
	AtomCompilationFailed   Atom = "compilation_failed"
	AtomInstantiationFailed Atom = "instantiation_failed"
	AtomInvalidArgument     Atom = "invalid_argument"
	AtomOther               Atom = "other"
)

// TrapKind further classifies an AtomTrap reason.
type TrapKind string

const (
	TrapUnreachable    TrapKind = "unreachable"
	TrapOutOfBounds    TrapKind = "out_of_bounds"
	TrapDivisionByZero TrapKind = "division_by_zero"
	TrapGeneric        TrapKind = "generic"
)

// Reason is the tagged variant stored in a forensic dump and returned to
// callers.
type Reason struct {
	Atom     Atom
	TrapKind TrapKind // only meaningful when Atom == AtomTrap
	Detail   string
}

func (r Reason) String() string {
	if r.Atom == AtomTrap {
		return string(r.Atom) + "(" + string(r.TrapKind) + ")"
	}
	return string(r.Atom)
}

// Classify maps a raw engine error to a Reason using the spec's fixed
// priority order (§4.E): fuel mention first, then unreachable, then
// out-of-bounds, then division-by-zero, then any other trap mention, else
// other. Adapters call this once they've ruled out their own
// engine-specific signals (e.g. a cancelled context caused by the fuel
// meter or a wall-clock deadline) and are left with a genuine in-engine
// error string to interpret.
func Classify(err error) Reason {
	if err == nil {
		return Reason{Atom: AtomOther, Detail: "nil error"}
	}
	msg := err.Error()
	lower := strings.ToLower(msg)

	switch {
	case strings.Contains(lower, "fuel"):
		return Reason{Atom: AtomFuelExhausted, Detail: msg}
	case strings.Contains(lower, "unreachable"):
		return Reason{Atom: AtomTrap, TrapKind: TrapUnreachable, Detail: msg}
	case strings.Contains(lower, "out of bounds"):
		return Reason{Atom: AtomTrap, TrapKind: TrapOutOfBounds, Detail: msg}
	case strings.Contains(lower, "divide by zero"), strings.Contains(lower, "division by zero"):
		return Reason{Atom: AtomTrap, TrapKind: TrapDivisionByZero, Detail: msg}
	case strings.Contains(lower, "trap"):
		return Reason{Atom: AtomTrap, TrapKind: TrapGeneric, Detail: msg}
	default:
		return Reason{Atom: AtomOther, Detail: msg}
	}
}

// HostCallFailed builds the fixed Reason for a host function that returned
// an error while the guest called it (spec §7: "a host function raising is
// treated as trap(generic, ...)").
func HostCallFailed(detail string) Reason {
	return Reason{Atom: AtomTrap, TrapKind: TrapGeneric, Detail: detail}
}
