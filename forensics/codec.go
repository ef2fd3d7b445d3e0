package forensics

import (
	"bytes"
	"encoding/binary"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zlib"

	"github.com/attenuate/mntn/errs"
	"github.com/attenuate/mntn/runtime"
)

const (
	magic          = "MNTN"
	currentVersion = uint16(1)
)

// metadataWire is the self-describing encoding of every Dump field except
// memory. CBOR's core-deterministic mode gives invariant (iv) of §3: the
// same Dump always encodes to the same metadata bytes.
type metadataWire struct {
	ID              string            `cbor:"1,keyasint"`
	TimestampUnixNS int64             `cbor:"2,keyasint"`
	ReasonAtom      string            `cbor:"3,keyasint"`
	ReasonTrapKind  string            `cbor:"4,keyasint"`
	ReasonDetail    string            `cbor:"5,keyasint"`
	FuelRemaining   uint64            `cbor:"6,keyasint"`
	FuelAllocated   uint64            `cbor:"7,keyasint"`
	FunctionCalled  string            `cbor:"8,keyasint"`
	ArgsHash        []byte            `cbor:"9,keyasint"`
	ExecutionTimeUS uint64            `cbor:"10,keyasint"`
	StackTrace      []stackFrameWire  `cbor:"11,keyasint,omitempty"`
}

type stackFrameWire struct {
	Function string `cbor:"1,keyasint"`
	Offset   uint32 `cbor:"2,keyasint"`
}

var encMode = func() cbor.EncMode {
	opts := cbor.CoreDetEncOptions()
	mode, err := opts.EncMode()
	if err != nil {
		panic(err) // fixed, valid option set; cannot fail at runtime
	}
	return mode
}()

func toWire(d *Dump) metadataWire {
	w := metadataWire{
		ID:              d.id,
		TimestampUnixNS: d.timestamp.UTC().UnixNano(),
		ReasonAtom:      string(d.reason.Atom),
		ReasonTrapKind:  string(d.reason.TrapKind),
		ReasonDetail:    d.reason.Detail,
		FuelRemaining:   d.fuelRemaining,
		FuelAllocated:   d.fuelAllocated,
		FunctionCalled:  d.functionCalled,
		ArgsHash:        append([]byte(nil), d.argsHash[:]...),
		ExecutionTimeUS: d.executionTimeUS,
	}
	for _, f := range d.stackTrace {
		w.StackTrace = append(w.StackTrace, stackFrameWire{Function: f.Function, Offset: f.Offset})
	}
	return w
}

func fromWire(w metadataWire, memory []byte) (*Dump, error) {
	var argsHash [32]byte
	copy(argsHash[:], w.ArgsHash)

	var frames []StackFrame
	for _, f := range w.StackTrace {
		frames = append(frames, StackFrame{Function: f.Function, Offset: f.Offset})
	}

	return New(Params{
		ID:        w.ID,
		Timestamp: time.Unix(0, w.TimestampUnixNS).UTC(),
		Reason: runtime.Reason{
			Atom:     runtime.Atom(w.ReasonAtom),
			TrapKind: runtime.TrapKind(w.ReasonTrapKind),
			Detail:   w.ReasonDetail,
		},
		Memory:          memory,
		FuelRemaining:   w.FuelRemaining,
		FuelAllocated:   w.FuelAllocated,
		FunctionCalled:  w.FunctionCalled,
		ArgsHash:        argsHash,
		ExecutionTimeUS: w.ExecutionTimeUS,
		StackTrace:      frames,
	})
}

// Encode serializes d per the fixed wire format (spec §4.F): magic, version,
// memory_size, metadata_size, metadata, zlib-compressed memory.
func Encode(d *Dump) ([]byte, error) {
	metadataBytes, err := encMode.Marshal(toWire(d))
	if err != nil {
		return nil, errs.Wrap(errs.PhaseCodec, errs.KindInvalidFormat, err, "encode metadata")
	}

	var compressed bytes.Buffer
	zw := zlib.NewWriter(&compressed)
	if _, err := zw.Write(d.memory); err != nil {
		return nil, errs.Wrap(errs.PhaseCodec, errs.KindInvalidFormat, err, "compress memory")
	}
	if err := zw.Close(); err != nil {
		return nil, errs.Wrap(errs.PhaseCodec, errs.KindInvalidFormat, err, "flush compressor")
	}

	out := make([]byte, 0, 18+len(metadataBytes)+compressed.Len())
	out = append(out, magic...)
	out = binary.BigEndian.AppendUint16(out, currentVersion)
	out = binary.BigEndian.AppendUint64(out, uint64(len(d.memory)))
	out = binary.BigEndian.AppendUint32(out, uint32(len(metadataBytes)))
	out = append(out, metadataBytes...)
	out = append(out, compressed.Bytes()...)
	return out, nil
}

// Decode parses the fixed wire format back into an immutable Dump.
func Decode(data []byte) (*Dump, error) {
	if len(data) < 18 || string(data[:4]) != magic {
		return nil, errs.New(errs.PhaseCodec, errs.KindInvalidFormat).Detail("bad magic").Build()
	}
	version := binary.BigEndian.Uint16(data[4:6])
	if version > currentVersion {
		return nil, errs.New(errs.PhaseCodec, errs.KindUnsupportedVersion).
			Detail("version %d, current is %d", version, currentVersion).Build()
	}
	memorySize := binary.BigEndian.Uint64(data[6:14])
	metadataSize := binary.BigEndian.Uint32(data[14:18])

	if uint64(len(data)) < 18+uint64(metadataSize) {
		return nil, errs.New(errs.PhaseCodec, errs.KindInvalidFormat).Detail("truncated metadata").Build()
	}
	metadataBytes := data[18 : 18+metadataSize]
	var w metadataWire
	if err := cbor.Unmarshal(metadataBytes, &w); err != nil {
		return nil, errs.Wrap(errs.PhaseCodec, errs.KindInvalidFormat, err, "decode metadata")
	}

	var memory []byte
	compressedBytes := data[18+metadataSize:]
	if memorySize > 0 && len(compressedBytes) > 0 {
		zr, err := zlib.NewReader(bytes.NewReader(compressedBytes))
		if err != nil {
			return nil, errs.Wrap(errs.PhaseCodec, errs.KindInvalidFormat, err, "open zlib reader")
		}
		defer zr.Close()
		memory, err = io.ReadAll(zr)
		if err != nil {
			return nil, errs.Wrap(errs.PhaseCodec, errs.KindInvalidFormat, err, "decompress memory")
		}
		if uint64(len(memory)) != memorySize {
			return nil, errs.New(errs.PhaseCodec, errs.KindInvalidFormat).
				Detail("decompressed memory length %d does not match declared size %d", len(memory), memorySize).Build()
		}
	}

	return fromWire(w, memory)
}
