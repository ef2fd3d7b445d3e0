// Package fuelpolicy resolves fuel and timeout defaults and validates a
// caller-supplied fuel budget against the spec's fixed bounds.
package fuelpolicy

import (
	"github.com/attenuate/mntn/errs"
)

// Tier names a complexity class with a pre-defined fuel budget.
type Tier string

const (
	Trivial  Tier = "trivial"
	Simple   Tier = "simple"
	Moderate Tier = "moderate"
	Complex  Tier = "complex"
	Heavy    Tier = "heavy"
)

var tierFuel = map[Tier]uint64{
	Trivial:  1_000,
	Simple:   10_000,
	Moderate: 100_000,
	Complex:  1_000_000,
	Heavy:    10_000_000,
}

// MaxFuel is the hard upper bound on a single call's fuel budget.
const MaxFuel uint64 = 100_000_000

const (
	defaultFuelValue      uint64 = 100_000
	defaultTimeoutMSValue uint64 = 5_000
)

// Policy resolves process-wide fuel/timeout defaults. Defaults are read once
// at construction and may be overridden per call by the caller of
// sandbox.Manager.Fire; Policy itself never mutates after New.
type Policy struct {
	defaultFuel      uint64
	defaultTimeoutMS uint64
}

// Option configures a Policy at construction.
type Option func(*Policy)

// WithDefaultFuel overrides the process-wide default fuel budget.
func WithDefaultFuel(fuel uint64) Option {
	return func(p *Policy) { p.defaultFuel = fuel }
}

// WithDefaultTimeoutMS overrides the process-wide default timeout.
func WithDefaultTimeoutMS(ms uint64) Option {
	return func(p *Policy) { p.defaultTimeoutMS = ms }
}

// New builds a Policy, applying process-wide defaults unless overridden.
func New(opts ...Option) *Policy {
	p := &Policy{
		defaultFuel:      defaultFuelValue,
		defaultTimeoutMS: defaultTimeoutMSValue,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// DefaultFuel returns the fuel budget used when a call omits one.
func (p *Policy) DefaultFuel() uint64 { return p.defaultFuel }

// DefaultTimeoutMS returns the timeout used when a call omits one.
func (p *Policy) DefaultTimeoutMS() uint64 { return p.defaultTimeoutMS }

// FuelFor returns the fixed fuel budget for a named complexity tier. Unknown
// tiers return the Simple budget, the most conservative non-trivial default.
func (p *Policy) FuelFor(tier Tier) uint64 {
	if fuel, ok := tierFuel[tier]; ok {
		return fuel
	}
	return tierFuel[Simple]
}

// Validate checks a caller-supplied fuel budget against the spec's fixed
// bounds: positive, non-zero, and at most MaxFuel.
func Validate(fuel int64) error {
	if fuel <= 0 {
		return errs.New(errs.PhaseFuel, errs.KindNotPositive).
			Detail("fuel must be positive, got %d", fuel).
			Build()
	}
	if uint64(fuel) > MaxFuel {
		return errs.New(errs.PhaseFuel, errs.KindExceedsMaximum).
			Detail("fuel %d exceeds maximum %d", fuel, MaxFuel).
			Build()
	}
	return nil
}

// ValidateFloat validates a fuel value that arrived as a JSON number (e.g.
// from a generic args map) before it has been narrowed to an integer type.
// This is the entry point that can actually observe a not_integer violation,
// since every other call site in this module already carries fuel as an
// integer.
func ValidateFloat(fuel float64) error {
	if fuel != float64(int64(fuel)) {
		return errs.New(errs.PhaseFuel, errs.KindNotInteger).
			Detail("fuel must be a whole number, got %v", fuel).
			Build()
	}
	return Validate(int64(fuel))
}
