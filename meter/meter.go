// Package meter implements the optional fuel-accounting sidecar (spec §5):
// an in-memory table keyed by function name, single-writer through a
// channel-draining goroutine, with lock-free snapshot reads via an atomic
// pointer swap. It is never required for a call to succeed or for
// isolation between calls.
package meter

import (
	"sync/atomic"
	"time"
)

// Stats is one function's running fuel-accounting record.
type Stats struct {
	Count         uint64
	TotalConsumed uint64
	Max           uint64
	Min           uint64
	Last          uint64
	LastTimestamp time.Time
}

type record struct {
	function string
	consumed uint64
	when     time.Time
}

// Meter is the single-writer/lock-free-reader sidecar. Record never blocks
// (it drops the record when the channel's buffer is full) and Snapshot never
// blocks; Reset waits until the writer goroutine takes the request, and Close
// waits until the writer goroutine has drained pending records and exited.
type Meter struct {
	writes    chan record
	resets    chan struct{}
	snapshot  atomic.Pointer[map[string]Stats]
	done      chan struct{}
	closeOnce chan struct{}
}

// New starts the background writer goroutine and returns a ready Meter.
func New() *Meter {
	m := &Meter{
		writes: make(chan record, 256),
		resets: make(chan struct{}),
		done:   make(chan struct{}),
	}
	empty := make(map[string]Stats)
	m.snapshot.Store(&empty)
	go m.run()
	return m
}

func (m *Meter) run() {
	table := make(map[string]Stats)
	for {
		select {
		case r, ok := <-m.writes:
			if !ok {
				close(m.done)
				return
			}
			s := table[r.function]
			if s.Count == 0 || r.consumed < s.Min {
				s.Min = r.consumed
			}
			if r.consumed > s.Max {
				s.Max = r.consumed
			}
			s.Count++
			s.TotalConsumed += r.consumed
			s.Last = r.consumed
			s.LastTimestamp = r.when
			table[r.function] = s
			m.publish(table)
		case <-m.resets:
			table = make(map[string]Stats)
			m.publish(table)
		}
	}
}

func (m *Meter) publish(table map[string]Stats) {
	snapshot := make(map[string]Stats, len(table))
	for k, v := range table {
		snapshot[k] = v
	}
	m.snapshot.Store(&snapshot)
}

// Record logs one call's fuel consumption for function. Never blocks the
// caller on the writer goroutine beyond the channel's buffer; if the buffer
// is full, the record is dropped rather than stalling the execution path
// (the sidecar is strictly best-effort observability).
func (m *Meter) Record(function string, consumed uint64, when time.Time) {
	select {
	case m.writes <- record{function: function, consumed: consumed, when: when}:
	default:
	}
}

// Snapshot returns a read-only, point-in-time copy of the accounting table.
// It never allocates on the writer's behalf and never blocks.
func (m *Meter) Snapshot() map[string]Stats {
	return *m.snapshot.Load()
}

// Reset atomically clears every entry.
func (m *Meter) Reset() {
	m.resets <- struct{}{}
}

// Close stops the writer goroutine. Safe to call once; Record after Close
// panics, matching the rest of this module's not-for-reuse lifecycle
// objects.
func (m *Meter) Close() {
	close(m.writes)
	<-m.done
}
