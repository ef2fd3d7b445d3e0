package runtime

import "errors"

import "testing"

func TestClassifyPriority(t *testing.T) {
	cases := []struct {
		msg  string
		atom Atom
		kind TrapKind
	}{
		{"module ran out of fuel", AtomFuelExhausted, ""},
		{"wasm error: unreachable", AtomTrap, TrapUnreachable},
		{"out of bounds memory access", AtomTrap, TrapOutOfBounds},
		{"integer divide by zero", AtomTrap, TrapDivisionByZero},
		{"wasm trap: something else", AtomTrap, TrapGeneric},
		{"connection refused", AtomOther, ""},
	}
	for _, c := range cases {
		r := Classify(errors.New(c.msg))
		if r.Atom != c.atom {
			t.Errorf("Classify(%q).Atom = %v, want %v", c.msg, r.Atom, c.atom)
		}
		if c.atom == AtomTrap && r.TrapKind != c.kind {
			t.Errorf("Classify(%q).TrapKind = %v, want %v", c.msg, r.TrapKind, c.kind)
		}
	}
}

func TestClassifyFuelTakesPriorityOverTrapWording(t *testing.T) {
	r := Classify(errors.New("trap: all fuel consumed by WebAssembly"))
	if r.Atom != AtomFuelExhausted {
		t.Fatalf("expected fuel mention to win priority, got %v", r.Atom)
	}
}
