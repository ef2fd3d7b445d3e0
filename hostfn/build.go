package hostfn

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"time"

	"github.com/attenuate/mntn/capability"
	"go.uber.org/zap"
)

const envNamespace = "env"

// Build constructs a fresh import table for one call from the expanded
// capability set. No state is shared across calls: random reads go straight
// to crypto/rand.Reader per invocation, and the clock reads process wall
// time with no instance-local cache, matching the "no data flows between
// calls" isolation property in spec §5.
//
// logger may be nil; log_* exports become no-ops in that case, matching the
// requirement that the sidecar/observability path never be required for a
// call to succeed.
func Build(granted capability.Set, logger *zap.Logger) Table {
	expanded := capability.Expand(granted)
	t := make(Table)

	if expanded.Has(capability.Time) {
		t.add(envNamespace, timeExport())
	}
	if expanded.Has(capability.Random) {
		t.add(envNamespace, randomU32Export())
		t.add(envNamespace, randomU64Export())
	}
	if expanded.Has(capability.Log) {
		for _, lvl := range []logLevel{levelDebug, levelInfo, levelWarn, levelError} {
			t.add(envNamespace, logExport(lvl, logger))
		}
	}
	// filesystem_read, filesystem_write, and network are declared in the
	// capability registry but contribute no exports in this core (spec §4.C:
	// "future work").

	return t
}

func timeExport() Export {
	return Export{
		Name:      "get_time_ms",
		Signature: Signature{Results: []ValType{I64}},
		Call: func(ctx context.Context, mem Memory, args []uint64) ([]uint64, error) {
			ms := time.Now().UnixMilli()
			return []uint64{uint64(ms)}, nil
		},
	}
}

func randomU32Export() Export {
	return Export{
		Name:      "get_random_u32",
		Signature: Signature{Results: []ValType{I32}},
		Call: func(ctx context.Context, mem Memory, args []uint64) ([]uint64, error) {
			var buf [4]byte
			if _, err := rand.Read(buf[:]); err != nil {
				return nil, err
			}
			return []uint64{uint64(binary.LittleEndian.Uint32(buf[:]))}, nil
		},
	}
}

func randomU64Export() Export {
	return Export{
		Name:      "get_random_u64",
		Signature: Signature{Results: []ValType{I64}},
		Call: func(ctx context.Context, mem Memory, args []uint64) ([]uint64, error) {
			var buf [8]byte
			if _, err := rand.Read(buf[:]); err != nil {
				return nil, err
			}
			return []uint64{binary.LittleEndian.Uint64(buf[:])}, nil
		},
	}
}

type logLevel int

const (
	levelDebug logLevel = iota
	levelInfo
	levelWarn
	levelError
)

func (l logLevel) exportName() string {
	switch l {
	case levelDebug:
		return "log_debug"
	case levelInfo:
		return "log_info"
	case levelWarn:
		return "log_warn"
	default:
		return "log_error"
	}
}

func logExport(lvl logLevel, logger *zap.Logger) Export {
	return Export{
		Name:      lvl.exportName(),
		Signature: Signature{Params: []ValType{I32, I32}},
		Call: func(ctx context.Context, mem Memory, args []uint64) ([]uint64, error) {
			if logger == nil || len(args) < 2 {
				return nil, nil
			}
			ptr := uint32(args[0])
			length := uint32(args[1])
			data, ok := mem.Read(ptr, length)
			if !ok {
				// Out-of-bounds log bodies are reported, not faulted: a
				// misbehaving guest shouldn't be able to crash the host by
				// logging garbage.
				logger.Warn("guest log call with out-of-bounds body", zap.Uint32("ptr", ptr), zap.Uint32("len", length))
				return nil, nil
			}
			msg := string(data)
			switch lvl {
			case levelDebug:
				logger.Debug(msg, zap.String("source", "guest"))
			case levelInfo:
				logger.Info(msg, zap.String("source", "guest"))
			case levelWarn:
				logger.Warn(msg, zap.String("source", "guest"))
			case levelError:
				logger.Error(msg, zap.String("source", "guest"))
			}
			return nil, nil
		},
	}
}
