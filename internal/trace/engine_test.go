package trace

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alonw0/scriptdbg/internal/runtime"
	"github.com/alonw0/scriptdbg/internal/runtime/miniscript"
)

// writeScript writes src to a temp file and returns its path. Using real
// files (not an in-memory reader) matches how frame.Eval's statement
// fallback and the interpreter's own file-path bookkeeping are exercised
// in production.
func writeScript(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "target.ms")
	if err := os.WriteFile(path, []byte(src), 0644); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

// run drives the real miniscript interpreter over script, calling onEvent
// for every trace event and returning the final exception (if any) and
// error. onEvent runs synchronously on the interpreter's own goroutine,
// exactly as the dispatcher's stop loop does in production.
func run(t *testing.T, path string, onEvent func(runtime.Event)) *runtime.ExceptionInfo {
	t.Helper()
	it := miniscript.New()
	exc, err := it.Run(path, onEvent)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return exc
}

func TestInitialStopFiresOnFirstLine(t *testing.T) {
	path := writeScript(t, "let x = 1;\nlet y = 2;\n")
	e := NewEngine()

	var reasons []Reason
	run(t, path, func(ev runtime.Event) {
		if ev.Kind != runtime.EventLine {
			return
		}
		stop, reason := e.OnEvent(ev)
		if stop {
			reasons = append(reasons, reason)
			e.SetContinue()
		}
	})

	if len(reasons) != 1 || reasons[0] != ReasonInitial {
		t.Fatalf("expected exactly one initial stop, got %+v", reasons)
	}
}

func TestBreakpointHitCountAndDeletion(t *testing.T) {
	path := writeScript(t, "let x = 1;\nlet y = 2;\nlet z = 3;\n")
	e := NewEngine()
	bp := e.SetBreakpoint(path, 2, "")

	var stops []Reason
	run(t, path, func(ev runtime.Event) {
		if ev.Kind != runtime.EventLine {
			return
		}
		stop, reason := e.OnEvent(ev)
		if stop {
			stops = append(stops, reason)
			e.SetContinue()
		}
	})

	if len(stops) != 2 {
		t.Fatalf("expected initial stop + breakpoint stop, got %+v", stops)
	}
	if stops[1] != ReasonBreakpoint {
		t.Fatalf("expected second stop to be breakpoint, got %s", stops[1])
	}
	if bp.HitCount != 1 {
		t.Fatalf("expected hit_count 1, got %d", bp.HitCount)
	}

	if !e.DeleteByNumber(bp.ID) {
		t.Fatal("expected delete to report success")
	}

	stops = nil
	run(t, path, func(ev runtime.Event) {
		if ev.Kind != runtime.EventLine {
			return
		}
		stop, reason := e.OnEvent(ev)
		if stop {
			stops = append(stops, reason)
			e.SetContinue()
		}
	})
	// The initial stop fires once per engine, so the second run on the same
	// engine stops nowhere once the breakpoint is gone.
	if len(stops) != 0 {
		t.Fatalf("expected no stop after deletion, got %+v", stops)
	}
}

func TestConditionalBreakpointStopsOnlyWhenTrue(t *testing.T) {
	path := writeScript(t, `
let hit = 0;
for i in range(10) {
	let doubled = i * 2;
}
`)
	e := NewEngine()
	// Line 4 is the loop body's only statement.
	e.SetBreakpoint(path, 4, "i == 7")

	var iAtStop runtime.Value
	var breakpointStops int
	run(t, path, func(ev runtime.Event) {
		if ev.Kind != runtime.EventLine {
			return
		}
		stop, reason := e.OnEvent(ev)
		if !stop {
			return
		}
		if reason == ReasonBreakpoint {
			breakpointStops++
			iAtStop, _ = ev.Frame.Eval(context.Background(), "i")
		}
		e.SetContinue()
	})

	if breakpointStops != 1 {
		t.Fatalf("expected exactly one breakpoint stop, got %d", breakpointStops)
	}
	n, ok := iAtStop.(int64)
	if !ok {
		if f, ok2 := iAtStop.(float64); ok2 {
			n = int64(f)
		} else {
			t.Fatalf("unexpected type for i: %T (%v)", iAtStop, iAtStop)
		}
	}
	if n != 7 {
		t.Fatalf("expected i == 7 at stop, got %v", n)
	}
}

func TestStepOverDoesNotDescendIntoHelperCall(t *testing.T) {
	path := writeScript(t, `
func h() {
	let inner = 1;
	return inner;
}
let before = 1;
let result = h();
let after = 2;
`)
	e := NewEngine()
	e.SetBreakpoint(path, 7, "") // the "let result = h();" call site

	var stops []struct {
		line   int
		reason Reason
	}
	run(t, path, func(ev runtime.Event) {
		if ev.Kind != runtime.EventLine {
			return
		}
		stop, reason := e.OnEvent(ev)
		if !stop {
			return
		}
		stops = append(stops, struct {
			line   int
			reason Reason
		}{ev.Frame.Line(), reason})
		switch reason {
		case ReasonInitial:
			e.SetContinue()
		case ReasonBreakpoint:
			e.SetStepOver(ev.Frame)
		}
	})

	if len(stops) != 3 {
		t.Fatalf("expected initial, breakpoint, and step stops, got %+v", stops)
	}
	if stops[1].line != 7 || stops[1].reason != ReasonBreakpoint {
		t.Fatalf("expected breakpoint stop at line 7, got %+v", stops[1])
	}
	if stops[2].line != 8 || stops[2].reason != ReasonStep {
		t.Fatalf("expected step-over stop at line 8 (not inside h), got %+v", stops[2])
	}
}

func TestStepOutStopsOnReturn(t *testing.T) {
	path := writeScript(t, `
func h() {
	let inner = 1;
	return inner;
}
let result = h();
let after = 2;
`)
	e := NewEngine()
	e.SetBreakpoint(path, 3, "") // inside h, before step-out is armed

	var stoppedAfterReturn bool
	run(t, path, func(ev runtime.Event) {
		switch ev.Kind {
		case runtime.EventLine:
			stop, reason := e.OnEvent(ev)
			if !stop {
				return
			}
			switch reason {
			case ReasonInitial:
				e.SetContinue()
			case ReasonBreakpoint:
				e.SetStepOut(ev.Frame)
			}
		case runtime.EventReturn:
			stop, reason := e.OnEvent(ev)
			if stop && reason == ReasonReturn {
				stoppedAfterReturn = true
			}
		}
	})

	if !stoppedAfterReturn {
		t.Fatal("expected a stop at the caller's line after step-out")
	}
}

func TestEmptyCollectionDivisionRaisesExceptionBreakpoint(t *testing.T) {
	path := writeScript(t, `
func f(xs) {
	let total = sum(xs);
	let n = len(xs);
	return total / n;
}
let xs = [];
let r = f(xs);
`)
	e := NewEngine()
	e.SetBreakpoint(path, 5, "")
	e.SetExceptionBreakpoint("ZeroDivisionError")

	var excStop bool
	var excInfo *runtime.ExceptionInfo
	var xsAtStop runtime.Value
	run(t, path, func(ev runtime.Event) {
		switch ev.Kind {
		case runtime.EventLine:
			stop, reason := e.OnEvent(ev)
			if !stop {
				return
			}
			if reason == ReasonBreakpoint {
				xsAtStop, _ = ev.Frame.Eval(context.Background(), "xs")
			}
			e.SetContinue()
		case runtime.EventException:
			stop, reason := e.OnEvent(ev)
			if stop && reason == ReasonException {
				excStop = true
				excInfo = ev.Exception
			}
		}
	})

	if !excStop || excInfo == nil {
		t.Fatal("expected an exception stop")
	}
	if excInfo.TypeName != "ZeroDivisionError" {
		t.Fatalf("expected ZeroDivisionError, got %s", excInfo.TypeName)
	}
	list, ok := xsAtStop.(*runtime.List)
	if !ok || len(list.Elems) != 0 {
		t.Fatalf("expected xs to be an empty list at the breakpoint, got %+v", xsAtStop)
	}
}
