// Package config resolves the process-wide configuration read once at
// initialization (spec §6): which runtime adapter is bound, and the
// default fuel/timeout used when a caller omits them. It carries no file
// parsing — reading config files is an explicit external-collaborator
// concern (spec §1 Non-goals) — only the functional-options construction
// idiom the teacher project uses for its own executor configuration.
package config

import "github.com/attenuate/mntn/fuelpolicy"

// RuntimeName names a runtime.Engine implementation. Only "wazero" ships as a
// concrete adapter in this module; the identifier exists so a caller's
// configuration can name its choice. Nothing in this module reads it: a
// Manager is bound to whichever runtime.Engine is passed to sandbox.New.
type RuntimeName string

const (
	RuntimeWazero RuntimeName = "wazero"
	RuntimeTest   RuntimeName = "test"
)

// Config is the process-wide, read-at-init configuration.
type Config struct {
	Runtime          RuntimeName
	DefaultFuel      uint64
	DefaultTimeoutMS uint64
}

// Option configures a Config at construction.
type Option func(*Config)

// WithRuntime sets the runtime adapter name recorded in Config.Runtime. It
// does not change which engine a Manager uses.
func WithRuntime(name RuntimeName) Option {
	return func(c *Config) { c.Runtime = name }
}

// WithDefaultFuel overrides the default fuel budget used when a caller
// omits one.
func WithDefaultFuel(fuel uint64) Option {
	return func(c *Config) { c.DefaultFuel = fuel }
}

// WithDefaultTimeoutMS overrides the default timeout used when a caller
// omits one.
func WithDefaultTimeoutMS(ms uint64) Option {
	return func(c *Config) { c.DefaultTimeoutMS = ms }
}

// Default returns the spec's fixed defaults: 100,000 fuel, 5,000ms timeout,
// and Runtime set to the wazero adapter's name.
func Default(opts ...Option) Config {
	c := Config{
		Runtime:          RuntimeWazero,
		DefaultFuel:      100_000,
		DefaultTimeoutMS: 5_000,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Policy builds the fuelpolicy.Policy matching this Config's defaults.
func (c Config) Policy() *fuelpolicy.Policy {
	return fuelpolicy.New(
		fuelpolicy.WithDefaultFuel(c.DefaultFuel),
		fuelpolicy.WithDefaultTimeoutMS(c.DefaultTimeoutMS),
	)
}
