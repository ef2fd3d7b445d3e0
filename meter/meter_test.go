package meter

import (
	"testing"
	"time"
)

func waitForCount(t *testing.T, m *Meter, function string, want uint64) Stats {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if s := m.Snapshot()[function]; s.Count == want {
			return s
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s to reach count %d", function, want)
	return Stats{}
}

func TestRecordAccumulatesStats(t *testing.T) {
	m := New()
	defer m.Close()

	m.Record("add", 10, time.Now())
	m.Record("add", 20, time.Now())

	s := waitForCount(t, m, "add", 2)
	if s.TotalConsumed != 30 {
		t.Fatalf("total_consumed = %d, want 30", s.TotalConsumed)
	}
	if s.Min != 10 || s.Max != 20 {
		t.Fatalf("min/max = %d/%d, want 10/20", s.Min, s.Max)
	}
	if s.Last != 20 {
		t.Fatalf("last = %d, want 20", s.Last)
	}
}

func TestResetClearsAllEntries(t *testing.T) {
	m := New()
	defer m.Close()

	m.Record("add", 10, time.Now())
	waitForCount(t, m, "add", 1)

	m.Reset()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if len(m.Snapshot()) == 0 {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("expected snapshot to be empty after Reset")
}

func TestSnapshotIsIndependentPerCall(t *testing.T) {
	m := New()
	defer m.Close()

	m.Record("add", 10, time.Now())
	waitForCount(t, m, "add", 1)

	s1 := m.Snapshot()
	m.Record("add", 10, time.Now())
	waitForCount(t, m, "add", 2)
	s2 := m.Snapshot()

	if s1["add"].Count == s2["add"].Count {
		t.Fatal("expected snapshots taken at different times to differ")
	}
}
