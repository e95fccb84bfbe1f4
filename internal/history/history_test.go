package history

import "testing"

func openTestLog(t *testing.T) *Log {
	t.Helper()
	l, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open test log: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestRecordStopAndRecent(t *testing.T) {
	l := openTestLog(t)

	if err := l.RecordStop("sess-1", 1, "initial", "calc.ms:2 (main)"); err != nil {
		t.Fatalf("RecordStop: %v", err)
	}
	if err := l.RecordStop("sess-1", 2, "breakpoint", "calc.ms:7 (average)"); err != nil {
		t.Fatalf("RecordStop: %v", err)
	}

	events, err := l.Recent("sess-1", 20)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Seq != 1 || events[1].Seq != 2 {
		t.Fatalf("expected chronological order, got seqs %d,%d", events[0].Seq, events[1].Seq)
	}
	if events[1].StopReason != "breakpoint" {
		t.Fatalf("expected stop_reason breakpoint, got %q", events[1].StopReason)
	}
}

func TestRecordEval(t *testing.T) {
	l := openTestLog(t)

	if err := l.RecordEval("sess-1", 1, "total / n", "ZeroDivisionError: division by zero"); err != nil {
		t.Fatalf("RecordEval: %v", err)
	}

	events, err := l.Recent("sess-1", 20)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(events) != 1 || events[0].Kind != KindEval {
		t.Fatalf("expected one eval event, got %+v", events)
	}
	if events[0].Command != "total / n" {
		t.Fatalf("unexpected command: %q", events[0].Command)
	}
}

func TestRecentLimitsAndOrders(t *testing.T) {
	l := openTestLog(t)
	for i := 1; i <= 5; i++ {
		l.RecordStop("sess-1", i, "step", "calc.ms:3 (main)")
	}

	events, err := l.Recent("sess-1", 3)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	// Most recent 3 of 5, still chronological: seqs 3,4,5.
	want := []int{3, 4, 5}
	for i, e := range events {
		if e.Seq != want[i] {
			t.Fatalf("expected seq %d at index %d, got %d", want[i], i, e.Seq)
		}
	}
}

func TestRecentOnNilLogReturnsEmptyNotError(t *testing.T) {
	var l *Log
	events, err := l.Recent("sess-1", 20)
	if err != nil {
		t.Fatalf("expected no error on nil log, got %v", err)
	}
	if events != nil {
		t.Fatalf("expected nil/empty events, got %+v", events)
	}
}

func TestDifferentSessionsAreIsolated(t *testing.T) {
	l := openTestLog(t)
	l.RecordStop("sess-a", 1, "initial", "a.ms:1 (main)")
	l.RecordStop("sess-b", 1, "initial", "b.ms:1 (main)")

	events, err := l.Recent("sess-a", 20)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(events) != 1 || events[0].SessionID != "sess-a" {
		t.Fatalf("expected only sess-a's event, got %+v", events)
	}
}
