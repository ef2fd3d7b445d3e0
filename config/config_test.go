package config

import "testing"

func TestDefaultMatchesSpecDefaults(t *testing.T) {
	c := Default()
	if c.DefaultFuel != 100_000 {
		t.Errorf("DefaultFuel = %d, want 100000", c.DefaultFuel)
	}
	if c.DefaultTimeoutMS != 5_000 {
		t.Errorf("DefaultTimeoutMS = %d, want 5000", c.DefaultTimeoutMS)
	}
	if c.Runtime != RuntimeWazero {
		t.Errorf("Runtime = %q, want wazero", c.Runtime)
	}
}

func TestOptionsOverrideDefaults(t *testing.T) {
	c := Default(WithDefaultFuel(42), WithDefaultTimeoutMS(9), WithRuntime(RuntimeTest))
	if c.DefaultFuel != 42 || c.DefaultTimeoutMS != 9 || c.Runtime != RuntimeTest {
		t.Fatalf("got %+v", c)
	}
}
