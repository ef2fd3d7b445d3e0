// Package capability implements the closed set of host-capability tokens a
// caller may grant to a guest module, their risk classification, and the
// attenuation rules (expansion and inclusion checks) that the Host-Function
// Table (package hostfn) relies on.
package capability

import (
	"fmt"
	"sort"
	"strings"

	"github.com/attenuate/mntn/errs"
)

// Token is a capability atom. The closed set is {time, random, log,
// filesystem_read, filesystem_write, network} plus the parameterized
// host_function(name) family.
type Token string

const (
	Time             Token = "time"
	Random           Token = "random"
	Log              Token = "log"
	FilesystemRead   Token = "filesystem_read"
	FilesystemWrite  Token = "filesystem_write"
	Network          Token = "network"
	hostFunctionTag        = "host_function:"
)

// HostFunction returns the parameterized token for a named host function.
func HostFunction(name string) Token {
	return Token(hostFunctionTag + name)
}

// HostFunctionName returns the function name if tok is a host_function(name)
// token, and whether tok was such a token.
func HostFunctionName(tok Token) (string, bool) {
	if !strings.HasPrefix(string(tok), hostFunctionTag) {
		return "", false
	}
	name := strings.TrimPrefix(string(tok), hostFunctionTag)
	return name, name != ""
}

// Risk is the fixed risk class of a capability.
type Risk string

const (
	RiskLow    Risk = "low"
	RiskMedium Risk = "medium"
	RiskHigh   Risk = "high"
)

var fixedAtoms = map[Token]struct {
	risk Risk
	desc string
}{
	Time:            {RiskLow, "read the host wall clock, in milliseconds"},
	Random:          {RiskLow, "read cryptographically random 32/64-bit integers"},
	Log:             {RiskLow, "write log lines at debug/info/warn/error level"},
	FilesystemRead:  {RiskMedium, "read files within a host-granted mount"},
	FilesystemWrite: {RiskHigh, "create, modify, or delete files within a host-granted mount (implies filesystem_read)"},
	Network:         {RiskHigh, "open outbound network connections"},
}

// Valid reports whether tok is a known atom or a well-formed host_function(name) token.
func Valid(tok Token) bool {
	if _, ok := fixedAtoms[tok]; ok {
		return true
	}
	_, ok := HostFunctionName(tok)
	return ok
}

// Describe returns a human description of tok. Unknown tokens are described
// generically rather than erroring — Describe is a display helper, not a
// validator.
func Describe(tok Token) string {
	if a, ok := fixedAtoms[tok]; ok {
		return a.desc
	}
	if name, ok := HostFunctionName(tok); ok {
		return fmt.Sprintf("call the host-provided function %q", name)
	}
	return "unrecognized capability token"
}

// RiskLevel returns tok's risk class. Unknown tokens are conservatively
// classified as high risk, per spec.
func RiskLevel(tok Token) Risk {
	if a, ok := fixedAtoms[tok]; ok {
		return a.risk
	}
	if _, ok := HostFunctionName(tok); ok {
		return RiskMedium
	}
	return RiskHigh
}

// Set is an unordered collection of capability tokens.
type Set map[Token]struct{}

// NewSet builds a Set from the given tokens.
func NewSet(toks ...Token) Set {
	s := make(Set, len(toks))
	for _, t := range toks {
		s[t] = struct{}{}
	}
	return s
}

// Has reports whether s contains tok exactly (no expansion).
func (s Set) Has(tok Token) bool {
	_, ok := s[tok]
	return ok
}

// Sorted returns s's tokens in a stable, deterministic order.
func (s Set) Sorted() []Token {
	out := make([]Token, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Validate rejects any token in s that isn't a recognized atom.
func (s Set) Validate() error {
	var invalid []string
	for _, t := range s.Sorted() {
		if !Valid(t) {
			invalid = append(invalid, string(t))
		}
	}
	if len(invalid) > 0 {
		return errs.New(errs.PhaseCapability, errs.KindUnknownToken).
			Detail("unknown capability token(s): %s", strings.Join(invalid, ", ")).
			Build()
	}
	return nil
}

// Expand applies the fixed implication filesystem_write -> {filesystem_write,
// filesystem_read}. All other tokens are identity under expansion.
func Expand(s Set) Set {
	out := make(Set, len(s)+1)
	for t := range s {
		out[t] = struct{}{}
	}
	if _, ok := out[FilesystemWrite]; ok {
		out[FilesystemRead] = struct{}{}
	}
	return out
}

// Includes reports whether every token in requested is present in granted
// after granted has been expanded.
func Includes(granted, requested Set) bool {
	expanded := Expand(granted)
	for t := range requested {
		if _, ok := expanded[t]; !ok {
			return false
		}
	}
	return true
}
