package trace

import (
	"sync"
	"testing"
	"time"
)

func TestSnapshotDefaults(t *testing.T) {
	tr := New()
	snap := tr.Snapshot()

	if snap.Routing != "unknown" {
		t.Errorf("routing = %q, want unknown", snap.Routing)
	}
	if snap.Language != "unknown" {
		t.Errorf("language = %q, want unknown", snap.Language)
	}
	if snap.Guardrail != "passed" {
		t.Errorf("guardrail = %q, want passed", snap.Guardrail)
	}
	if len(snap.Logs) != 0 {
		t.Errorf("logs = %d entries, want 0", len(snap.Logs))
	}
}

func TestRecordElapsed(t *testing.T) {
	clock := time.Unix(0, 0)
	tr := newWithClock(func() time.Time { return clock })

	clock = clock.Add(250 * time.Millisecond)
	tr.Record("routing", map[string]any{"category": "BOTH"})

	clock = clock.Add(750 * time.Millisecond)
	snap := tr.Snapshot()

	if len(snap.Logs) != 1 {
		t.Fatalf("logs = %d entries, want 1", len(snap.Logs))
	}
	if snap.Logs[0].ElapsedMS != 250 {
		t.Errorf("elapsed = %d, want 250", snap.Logs[0].ElapsedMS)
	}
	if snap.TotalTimeMS != 1000 {
		t.Errorf("total = %d, want 1000", snap.TotalTimeMS)
	}
}

func TestConcurrentRecords(t *testing.T) {
	tr := New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Record("tool_usage", map[string]any{"tool": "retrieval"})
			tr.SetRouting("BOTH", "ENGLISH")
		}()
	}
	wg.Wait()

	snap := tr.Snapshot()
	if len(snap.Logs) != 50 {
		t.Errorf("logs = %d entries, want 50", len(snap.Logs))
	}
	if snap.Routing != "BOTH" {
		t.Errorf("routing = %q, want BOTH", snap.Routing)
	}
}

func TestNilTraceIsNoop(t *testing.T) {
	var tr *Trace
	tr.Record("x", nil)
	tr.SetRouting("KNOWLEDGE", "PORTUGUESE")
	tr.SetGuardrail("blocked")

	snap := tr.Snapshot()
	if snap.Routing != "" || len(snap.Logs) != 0 {
		t.Errorf("nil trace snapshot = %+v, want zero value", snap)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	tr := New()
	tr.Record("a", nil)

	snap := tr.Snapshot()
	tr.Record("b", nil)

	if len(snap.Logs) != 1 {
		t.Errorf("snapshot grew after later record: %d entries", len(snap.Logs))
	}
}
