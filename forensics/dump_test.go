package forensics

import (
	"testing"
	"time"

	"github.com/attenuate/mntn/runtime"
)

func validParams() Params {
	return Params{
		ID:              "abc123",
		Timestamp:       time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Reason:          runtime.Reason{Atom: runtime.AtomTrap, TrapKind: runtime.TrapUnreachable, Detail: "unreachable executed"},
		Memory:          make([]byte, 65536),
		FuelRemaining:   10,
		FuelAllocated:   100,
		FunctionCalled:  "crash_after_n",
		ExecutionTimeUS: 1234,
	}
}

func TestNewRejectsEmptyID(t *testing.T) {
	p := validParams()
	p.ID = ""
	if _, err := New(p); err == nil {
		t.Fatal("expected error for empty id")
	}
}

func TestNewRejectsNonPageMultipleMemory(t *testing.T) {
	p := validParams()
	p.Memory = make([]byte, 100)
	if _, err := New(p); err == nil {
		t.Fatal("expected error for non-page-multiple memory length")
	}
}

func TestNewAllowsEmptyMemory(t *testing.T) {
	p := validParams()
	p.Memory = nil
	if _, err := New(p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewRejectsFuelRemainingExceedingAllocated(t *testing.T) {
	p := validParams()
	p.FuelRemaining = 200
	p.FuelAllocated = 100
	if _, err := New(p); err == nil {
		t.Fatal("expected error for fuel_remaining > fuel_allocated")
	}
}

func TestMemoryReturnsACopy(t *testing.T) {
	p := validParams()
	d, err := New(p)
	if err != nil {
		t.Fatal(err)
	}
	mem := d.Memory()
	mem[0] = 0xFF
	if d.Memory()[0] != 0 {
		t.Fatal("mutating the returned slice affected the dump's internal memory")
	}
}

func TestSummaryContainsKeyFields(t *testing.T) {
	d, err := New(validParams())
	if err != nil {
		t.Fatal(err)
	}
	s := Summary(d)
	for _, want := range []string{"abc123", "crash_after_n", "trap(unreachable)", "1234us"} {
		if !contains(s, want) {
			t.Errorf("summary %q missing %q", s, want)
		}
	}
}

func contains(haystack, needle string) bool {
	return len(haystack) >= len(needle) && indexOf(haystack, needle) >= 0
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}
