// Package analyser provides read-only views over a captured dump's memory:
// pattern search, string extraction, integer/byte reads, hex rendering, and
// utilization statistics. None of these operations mutate the dump.
package analyser

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/attenuate/mntn/errs"
	"github.com/attenuate/mntn/forensics"
)

const pageSize = 65536

// Analyser wraps a dump's memory snapshot for read-only inspection.
type Analyser struct {
	memory []byte
}

// New constructs an Analyser over dump's memory.
func New(dump *forensics.Dump) *Analyser {
	return &Analyser{memory: dump.Memory()}
}

// FindPattern returns the ascending offsets where needle occurs in memory.
// Matches may overlap: after a match at k, search resumes at k+1. An empty
// needle yields an empty result.
func (a *Analyser) FindPattern(needle []byte) []int {
	if len(needle) == 0 {
		return nil
	}
	var offsets []int
	for i := 0; i+len(needle) <= len(a.memory); i++ {
		if bytesEqual(a.memory[i:i+len(needle)], needle) {
			offsets = append(offsets, i)
		}
	}
	return offsets
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ExtractedString is one printable-ASCII run found in memory.
type ExtractedString struct {
	Offset int
	Value  string
}

// StringOptions configures ExtractStrings.
type StringOptions struct {
	MinLength int
	MaxLength int
}

// DefaultStringOptions matches the spec defaults: min_length=4,
// max_length=256.
func DefaultStringOptions() StringOptions {
	return StringOptions{MinLength: 4, MaxLength: 256}
}

// ExtractStrings scans memory for runs of printable ASCII bytes ([0x20,
// 0x7E]). Runs shorter than MinLength are skipped; runs longer than
// MaxLength are truncated at the boundary (the offset still points at the
// start of the run).
func (a *Analyser) ExtractStrings(opts StringOptions) []ExtractedString {
	if opts.MinLength <= 0 {
		opts.MinLength = DefaultStringOptions().MinLength
	}
	if opts.MaxLength <= 0 {
		opts.MaxLength = DefaultStringOptions().MaxLength
	}

	var out []ExtractedString
	runStart := -1
	var b strings.Builder

	flush := func(end int) {
		if runStart < 0 {
			return
		}
		if b.Len() >= opts.MinLength {
			val := b.String()
			if len(val) > opts.MaxLength {
				val = val[:opts.MaxLength]
			}
			out = append(out, ExtractedString{Offset: runStart, Value: val})
		}
		runStart = -1
		b.Reset()
	}

	for i, byteVal := range a.memory {
		if byteVal >= 0x20 && byteVal <= 0x7E {
			if runStart < 0 {
				runStart = i
			}
			b.WriteByte(byteVal)
		} else {
			flush(i)
		}
	}
	flush(len(a.memory))

	return out
}

func (a *Analyser) checkBounds(offset, width int) error {
	if offset < 0 || offset+width > len(a.memory) {
		return errs.OutOfBounds(errs.PhaseAnalyse, fmt.Sprintf("offset %d width %d exceeds memory length %d", offset, width, len(a.memory)))
	}
	return nil
}

// ReadI32 reads a little-endian signed 32-bit integer at offset.
func (a *Analyser) ReadI32(offset int) (int32, error) {
	if err := a.checkBounds(offset, 4); err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(a.memory[offset : offset+4])), nil
}

// ReadI64 reads a little-endian signed 64-bit integer at offset.
func (a *Analyser) ReadI64(offset int) (int64, error) {
	if err := a.checkBounds(offset, 8); err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(a.memory[offset : offset+8])), nil
}

// ReadBytes reads length bytes at offset.
func (a *Analyser) ReadBytes(offset, length int) ([]byte, error) {
	if err := a.checkBounds(offset, length); err != nil {
		return nil, err
	}
	out := make([]byte, length)
	copy(out, a.memory[offset:offset+length])
	return out, nil
}

// HexDump renders length bytes starting at offset as a canonical hex dump:
// one row per 16 bytes, an 8-hex-digit absolute offset, two spaces,
// space-separated two-digit hex bytes padded to 48 columns, two spaces, and
// an ASCII gutter (printable byte or '.').
func (a *Analyser) HexDump(offset, length int) (string, error) {
	if err := a.checkBounds(offset, length); err != nil {
		return "", err
	}
	var b strings.Builder
	for rowStart := 0; rowStart < length; rowStart += 16 {
		rowEnd := rowStart + 16
		if rowEnd > length {
			rowEnd = length
		}
		row := a.memory[offset+rowStart : offset+rowEnd]

		fmt.Fprintf(&b, "%08x  ", offset+rowStart)

		var hexPart strings.Builder
		for i, byteVal := range row {
			if i > 0 {
				hexPart.WriteByte(' ')
			}
			fmt.Fprintf(&hexPart, "%02x", byteVal)
		}
		b.WriteString(hexPart.String())
		for pad := hexPart.Len(); pad < 48; pad++ {
			b.WriteByte(' ')
		}
		b.WriteString("  ")

		for _, byteVal := range row {
			if byteVal >= 0x20 && byteVal <= 0x7E {
				b.WriteByte(byteVal)
			} else {
				b.WriteByte('.')
			}
		}
		b.WriteByte('\n')
	}
	return b.String(), nil
}

// Stats summarizes memory utilization.
type Stats struct {
	SizeBytes    int
	SizePages    int
	ZeroBytes    int
	NonZeroBytes int
	Utilization  float64
}

// Stats computes the memory utilization summary.
func (a *Analyser) Stats() Stats {
	s := Stats{SizeBytes: len(a.memory), SizePages: len(a.memory) / pageSize}
	for _, byteVal := range a.memory {
		if byteVal == 0 {
			s.ZeroBytes++
		} else {
			s.NonZeroBytes++
		}
	}
	if s.SizeBytes > 0 {
		s.Utilization = float64(s.NonZeroBytes) / float64(s.SizeBytes)
	}
	return s
}
