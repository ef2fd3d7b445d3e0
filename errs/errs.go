// Package errs provides the structured error type shared by every package
// in this module.
package errs

import (
	"fmt"
	"strings"
)

// Phase identifies which component raised an error.
type Phase string

const (
	PhaseCapability  Phase = "capability"
	PhaseFuel        Phase = "fuel"
	PhaseHost        Phase = "host"
	PhaseCompile     Phase = "compile"
	PhaseInstantiate Phase = "instantiate"
	PhaseExecute     Phase = "execute"
	PhaseCapture     Phase = "capture"
	PhaseCodec       Phase = "codec"
	PhaseAnalyse     Phase = "analyse"
	PhaseValidate    Phase = "validate"
)

// Kind categorizes an error within a phase.
type Kind string

const (
	KindInvalidInput       Kind = "invalid_input"
	KindUnknownToken       Kind = "unknown_token"
	KindNotPositive        Kind = "not_positive"
	KindExceedsMaximum     Kind = "exceeds_maximum"
	KindNotInteger         Kind = "not_integer"
	KindInvalidFormat      Kind = "invalid_format"
	KindUnsupportedVersion Kind = "unsupported_version"
	KindOutOfBounds        Kind = "out_of_bounds"
	KindCompilationFailed  Kind = "compilation_failed"
	KindInstantiationFailed Kind = "instantiation_failed"
	KindMissingExport      Kind = "missing_export"
	KindDisallowedImport   Kind = "disallowed_import"
	KindOther              Kind = "other"
)

// Error is the structured error type used throughout the module.
type Error struct {
	Phase  Phase
	Kind   Kind
	Detail string
	Cause  error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error with the same Phase and Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Phase == t.Phase && e.Kind == t.Kind
}

// Builder constructs an *Error fluently.
type Builder struct {
	err Error
}

// New starts a builder for the given phase and kind.
func New(phase Phase, kind Kind) *Builder {
	return &Builder{err: Error{Phase: phase, Kind: kind}}
}

func (b *Builder) Detail(format string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(format, args...)
	} else {
		b.err.Detail = format
	}
	return b
}

func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

func (b *Builder) Build() *Error {
	out := b.err
	return &out
}

// Convenience constructors for the most common call sites.

func InvalidInput(phase Phase, detail string) *Error {
	return &Error{Phase: phase, Kind: KindInvalidInput, Detail: detail}
}

func OutOfBounds(phase Phase, detail string) *Error {
	return &Error{Phase: phase, Kind: KindOutOfBounds, Detail: detail}
}

func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{Phase: phase, Kind: kind, Detail: detail, Cause: cause}
}
