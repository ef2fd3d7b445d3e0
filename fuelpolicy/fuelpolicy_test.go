package fuelpolicy

import "testing"

func TestValidateBoundaries(t *testing.T) {
	if err := Validate(0); err == nil {
		t.Fatal("expected fuel=0 to be rejected")
	}
	if err := Validate(-5); err == nil {
		t.Fatal("expected negative fuel to be rejected")
	}
	if err := Validate(int64(MaxFuel)); err != nil {
		t.Fatalf("expected fuel=MaxFuel to be accepted, got %v", err)
	}
	if err := Validate(int64(MaxFuel) + 1); err == nil {
		t.Fatal("expected fuel=MaxFuel+1 to be rejected")
	}
	if err := Validate(1); err != nil {
		t.Fatalf("expected fuel=1 to be accepted, got %v", err)
	}
}

func TestValidateFloatNotInteger(t *testing.T) {
	if err := ValidateFloat(10.5); err == nil {
		t.Fatal("expected non-integral fuel to be rejected")
	}
	if err := ValidateFloat(10.0); err != nil {
		t.Fatalf("expected integral float to be accepted, got %v", err)
	}
}

func TestFuelForTiers(t *testing.T) {
	p := New()
	cases := map[Tier]uint64{
		Trivial:  1_000,
		Simple:   10_000,
		Moderate: 100_000,
		Complex:  1_000_000,
		Heavy:    10_000_000,
	}
	for tier, want := range cases {
		if got := p.FuelFor(tier); got != want {
			t.Errorf("FuelFor(%s) = %d, want %d", tier, got, want)
		}
	}
}

func TestDefaults(t *testing.T) {
	p := New()
	if p.DefaultFuel() != defaultFuelValue {
		t.Errorf("DefaultFuel() = %d, want %d", p.DefaultFuel(), defaultFuelValue)
	}
	if p.DefaultTimeoutMS() != defaultTimeoutMSValue {
		t.Errorf("DefaultTimeoutMS() = %d, want %d", p.DefaultTimeoutMS(), defaultTimeoutMSValue)
	}
}

func TestOverrides(t *testing.T) {
	p := New(WithDefaultFuel(42), WithDefaultTimeoutMS(7))
	if p.DefaultFuel() != 42 {
		t.Errorf("DefaultFuel() = %d, want 42", p.DefaultFuel())
	}
	if p.DefaultTimeoutMS() != 7 {
		t.Errorf("DefaultTimeoutMS() = %d, want 7", p.DefaultTimeoutMS())
	}
}
