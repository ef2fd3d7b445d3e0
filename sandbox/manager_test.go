package sandbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/attenuate/mntn/capability"
	"github.com/attenuate/mntn/fuelpolicy"
	"github.com/attenuate/mntn/meter"
	"github.com/attenuate/mntn/runtime"
	"github.com/attenuate/mntn/runtime/testengine"
)

func TestFireSucceedsWithResultsAndMetadata(t *testing.T) {
	eng := testengine.New(testengine.Script{
		Calls: map[string]testengine.Call{
			"add": {Results: []uint64{42}, FuelConsumed: 5, Memory: make([]byte, 65536)},
		},
	})
	mgr := New(eng, fuelpolicy.New(), nil)

	outcome := mgr.Fire(context.Background(), []byte{}, "add", []uint64{1, 2}, Config{Fuel: 100, FuelSet: true})

	if !outcome.Ok {
		t.Fatalf("expected success, got crash: %+v", outcome.Reason)
	}
	if len(outcome.Results) != 1 || outcome.Results[0] != 42 {
		t.Fatalf("got results %v", outcome.Results)
	}
	if outcome.Metadata.FuelRemaining != 95 {
		t.Fatalf("fuel_remaining = %d, want 95", outcome.Metadata.FuelRemaining)
	}
	if outcome.Metadata.MemoryHighWaterBytes != 65536 {
		t.Fatalf("memory_high_water = %d, want 65536", outcome.Metadata.MemoryHighWaterBytes)
	}
}

func TestFireReportsTrapAndProducesDump(t *testing.T) {
	eng := testengine.New(testengine.Script{
		Calls: map[string]testengine.Call{
			"crash": {Err: errors.New("wasm trap: unreachable executed"), FuelConsumed: 3},
		},
	})
	mgr := New(eng, fuelpolicy.New(), nil)

	outcome := mgr.Fire(context.Background(), []byte{}, "crash", nil, Config{Fuel: 100, FuelSet: true})

	if outcome.Ok {
		t.Fatal("expected crash outcome")
	}
	if outcome.Reason.Atom != runtime.AtomTrap || outcome.Reason.TrapKind != runtime.TrapUnreachable {
		t.Fatalf("got reason %+v", outcome.Reason)
	}
	if outcome.Dump == nil {
		t.Fatal("expected a dump on crash")
	}
}

func TestFireReportsFuelExhaustion(t *testing.T) {
	eng := testengine.New(testengine.Script{
		Calls: map[string]testengine.Call{
			"loop": {Err: errors.New("all fuel consumed"), FuelConsumed: 100},
		},
	})
	mgr := New(eng, fuelpolicy.New(), nil)

	outcome := mgr.Fire(context.Background(), []byte{}, "loop", nil, Config{Fuel: 100, FuelSet: true})

	if outcome.Ok || outcome.Reason.Atom != runtime.AtomFuelExhausted {
		t.Fatalf("expected fuel_exhausted crash, got %+v", outcome)
	}
	if outcome.Dump.FuelRemaining() != 0 {
		t.Fatalf("fuel_remaining in dump = %d, want 0", outcome.Dump.FuelRemaining())
	}
}

func TestFireReportsCompilationFailedAsMinimalDump(t *testing.T) {
	eng := testengine.New(testengine.Script{CompileErr: errors.New("invalid magic number")})
	mgr := New(eng, fuelpolicy.New(), nil)

	outcome := mgr.Fire(context.Background(), []byte{}, "anything", nil, Config{})

	if outcome.Ok || outcome.Reason.Atom != runtime.AtomCompilationFailed {
		t.Fatalf("expected compilation_failed crash, got %+v", outcome)
	}
	if len(outcome.Dump.Memory()) != 0 {
		t.Fatal("expected empty memory for a minimal dump")
	}
}

func TestFireDefaultsFuelWhenOmitted(t *testing.T) {
	eng := testengine.New(testengine.Script{
		Calls: map[string]testengine.Call{
			"get_time_ms": {Results: []uint64{123}},
		},
	})
	mgr := New(eng, fuelpolicy.New(fuelpolicy.WithDefaultFuel(50)), nil)

	outcome := mgr.Fire(context.Background(), []byte{}, "get_time_ms", nil, Config{
		Capabilities: capability.NewSet(capability.Time),
	})

	if !outcome.Ok {
		t.Fatalf("expected success, got %+v", outcome.Reason)
	}
	if outcome.Metadata.FuelRemaining != 50 {
		t.Fatalf("fuel_remaining = %d, want the default 50", outcome.Metadata.FuelRemaining)
	}
}

func TestFireRejectsExplicitZeroFuel(t *testing.T) {
	eng := testengine.New(testengine.Script{
		Calls: map[string]testengine.Call{"add": {Results: []uint64{42}}},
	})
	mgr := New(eng, fuelpolicy.New(), nil)

	outcome := mgr.Fire(context.Background(), []byte{}, "add", []uint64{1, 2}, Config{Fuel: 0, FuelSet: true})

	if outcome.Ok {
		t.Fatal("expected fuel=0 to be rejected, not defaulted")
	}
	if outcome.Reason.Atom != runtime.AtomInvalidArgument {
		t.Fatalf("got reason %+v, want invalid_argument", outcome.Reason)
	}
	if outcome.Dump == nil {
		t.Fatal("expected a minimal dump on an invalid-argument crash")
	}
	if eng.CallCount() != 0 {
		t.Fatal("expected the engine to never be reached for invalid fuel")
	}
}

func TestFireRejectsFuelAboveMaximum(t *testing.T) {
	eng := testengine.New(testengine.Script{})
	mgr := New(eng, fuelpolicy.New(), nil)

	outcome := mgr.Fire(context.Background(), []byte{}, "add", nil, Config{
		Fuel: fuelpolicy.MaxFuel + 1, FuelSet: true,
	})

	if outcome.Ok || outcome.Reason.Atom != runtime.AtomInvalidArgument {
		t.Fatalf("expected invalid_argument crash for fuel above maximum, got %+v", outcome)
	}
}

func TestFireAllowsOmittedFuelToUseDefault(t *testing.T) {
	eng := testengine.New(testengine.Script{
		Calls: map[string]testengine.Call{"add": {Results: []uint64{42}}},
	})
	mgr := New(eng, fuelpolicy.New(), nil)

	outcome := mgr.Fire(context.Background(), []byte{}, "add", []uint64{1, 2}, Config{})

	if !outcome.Ok {
		t.Fatalf("expected omitted fuel to fall back to the default, got %+v", outcome.Reason)
	}
}

func TestFireRejectsUnknownCapabilityToken(t *testing.T) {
	eng := testengine.New(testengine.Script{})
	mgr := New(eng, fuelpolicy.New(), nil)

	outcome := mgr.Fire(context.Background(), []byte{}, "add", nil, Config{
		Fuel: 100, FuelSet: true,
		Capabilities: capability.NewSet(capability.Token("not_a_real_capability")),
	})

	if outcome.Ok || outcome.Reason.Atom != runtime.AtomInvalidArgument {
		t.Fatalf("expected invalid_argument crash for an unknown capability token, got %+v", outcome)
	}
	if eng.CallCount() != 0 {
		t.Fatal("expected the engine to never be reached for an invalid capability")
	}
}

func TestFireRecordsFuelConsumptionIntoMeter(t *testing.T) {
	eng := testengine.New(testengine.Script{
		Calls: map[string]testengine.Call{
			"add":   {Results: []uint64{42}, FuelConsumed: 5},
			"crash": {Err: errors.New("wasm trap: unreachable executed"), FuelConsumed: 100},
		},
	})
	m := meter.New()
	defer m.Close()
	mgr := New(eng, fuelpolicy.New(), nil, WithMeter(m))

	mgr.Fire(context.Background(), []byte{}, "add", []uint64{1, 2}, Config{Fuel: 100, FuelSet: true})
	mgr.Fire(context.Background(), []byte{}, "crash", nil, Config{Fuel: 100, FuelSet: true})

	snap := waitForMeterEntries(t, m, 2)
	if snap["add"].TotalConsumed != 5 {
		t.Fatalf("add TotalConsumed = %d, want 5", snap["add"].TotalConsumed)
	}
	if snap["crash"].TotalConsumed != 100 {
		t.Fatalf("crash TotalConsumed = %d, want 100", snap["crash"].TotalConsumed)
	}
}

func waitForMeterEntries(t *testing.T, m *meter.Meter, n int) map[string]meter.Stats {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if snap := m.Snapshot(); len(snap) >= n {
			return snap
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("meter never observed %d entries", n)
	return nil
}

func TestValidateRejectsMissingExport(t *testing.T) {
	eng := testengine.New(testengine.Script{Exports: []string{"add"}})
	mgr := New(eng, fuelpolicy.New(), nil)

	err := mgr.Validate(context.Background(), []byte{}, ValidateOptions{RequiredExports: []string{"multiply"}})
	if err == nil {
		t.Fatal("expected missing-export error")
	}
}

func TestValidateRejectsDisallowedImport(t *testing.T) {
	eng := testengine.New(testengine.Script{Imports: []string{"env#http_request"}})
	mgr := New(eng, fuelpolicy.New(), nil)

	err := mgr.Validate(context.Background(), []byte{}, ValidateOptions{AllowedImports: []string{"env#get_time_ms"}})
	if err == nil {
		t.Fatal("expected disallowed-import error")
	}
}

func TestValidateAllowsNilAllowedImportsAsUnrestricted(t *testing.T) {
	eng := testengine.New(testengine.Script{Imports: []string{"env#anything"}, Exports: []string{"run"}})
	mgr := New(eng, fuelpolicy.New(), nil)

	err := mgr.Validate(context.Background(), []byte{}, ValidateOptions{RequiredExports: []string{"run"}})
	if err != nil {
		t.Fatalf("unexpected error with unrestricted imports: %v", err)
	}
}
