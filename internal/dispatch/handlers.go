package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/alonw0/scriptdbg/internal/dbgerr"
	"github.com/alonw0/scriptdbg/internal/format"
	"github.com/alonw0/scriptdbg/internal/inspect"
	"github.com/alonw0/scriptdbg/internal/runtime"
	"github.com/alonw0/scriptdbg/internal/wire"
)

// handle dispatches one request to its named handler. The bool return
// reports whether the stop loop should release the target thread.
func (d *Dispatcher) handle(req wire.Record) (resp wire.Record, resuming bool) {
	defer func() {
		if r := recover(); r != nil {
			resp, resuming = errorResponse(req, fmt.Errorf("%w: %v", dbgerr.ErrHandler, r)), false
		}
	}()
	cmd, ok := stringField(req, "command")
	if !ok {
		return errorResponse(req, fmt.Errorf("%w: missing command field", dbgerr.ErrProtocol)), false
	}

	switch cmd {
	case "status":
		return d.handleStatus(req), false
	case "continue":
		d.engine.SetContinue()
		d.exception = nil
		return okResponse(req, nil), true
	case "step":
		d.engine.SetStepIn()
		d.exception = nil
		return okResponse(req, nil), true
	case "next":
		d.engine.SetStepOver(d.stack[0])
		return okResponse(req, nil), true
	case "finish":
		d.engine.SetStepOut(d.stack[0])
		return okResponse(req, nil), true
	case "break":
		return d.handleBreak(req), false
	case "delete":
		return d.handleDelete(req), false
	case "breakpoints":
		return d.handleBreakpoints(req), false
	case "locals":
		return d.handleLocals(req), false
	case "globals":
		return d.handleGlobals(req), false
	case "eval":
		return d.handleEval(req), false
	case "inspect":
		return d.handleInspect(req), false
	case "stack":
		return d.handleStackCmd(req), false
	case "up":
		return d.handleUp(req), false
	case "down":
		return d.handleDown(req), false
	case "quit":
		d.QuitRequested = true
		close(d.quitCh)
		return okResponse(req, nil), true
	case "history":
		return d.handleHistory(req), false
	default:
		return errorResponse(req, fmt.Errorf("%w: unknown command %q", dbgerr.ErrProtocol, cmd)), false
	}
}

func (d *Dispatcher) handleStatus(req wire.Record) wire.Record {
	fields := wire.Record{
		"stop_reason": string(d.stopReason),
		"location":    d.locationRecord(d.stack[0]),
		"variables":   wire.Record{"locals": d.formatBindings(d.stack[0].Locals())},
	}
	if d.exception != nil {
		fields["exception"] = exceptionRecord(d.exception)
	}
	return okResponse(req, fields)
}

func (d *Dispatcher) locationRecord(f runtime.Frame) wire.Record {
	return wire.Record{
		"file":     f.File(),
		"line":     f.Line(),
		"function": f.FuncName(),
	}
}

func exceptionRecord(exc *runtime.ExceptionInfo) wire.Record {
	return wire.Record{
		"type":      exc.TypeName,
		"message":   exc.Message,
		"traceback": exc.Traceback,
	}
}

// formatBindings renders a *runtime.Map of locals/globals, dropping
// dunder-keyed entries (§4.6).
func (d *Dispatcher) formatBindings(m *runtime.Map) format.Record {
	out := format.Record{}
	if m == nil {
		return out
	}
	for _, k := range m.Keys {
		if isDunder(k) {
			continue
		}
		v, _ := m.Get(k)
		out[k] = format.Format(v, d.opts.Format.MaxDepth, d.opts.Format)
	}
	return out
}

func isDunder(name string) bool {
	return len(name) > 4 && name[:2] == "__" && name[len(name)-2:] == "__"
}

func (d *Dispatcher) handleBreak(req wire.Record) wire.Record {
	file, hasFile := stringField(req, "file")
	_, hasLine := req["line"]
	exceptionName, hasException := stringField(req, "exception")
	condition, _ := stringField(req, "condition")

	if hasException {
		bp := d.engine.SetExceptionBreakpoint(exceptionName)
		return okResponse(req, wire.Record{"id": bp.ID, "exception": bp.Name})
	}
	if !hasFile || !hasLine {
		return errorResponse(req, fmt.Errorf("%w: break requires either (file,line) or exception", dbgerr.ErrProtocol))
	}
	line := intField(req, "line", 0)
	bp := d.engine.SetBreakpoint(file, line, condition)
	return okResponse(req, wire.Record{"id": bp.ID, "file": bp.File, "line": bp.Line, "condition": bp.Condition})
}

func (d *Dispatcher) handleDelete(req wire.Record) wire.Record {
	if _, ok := req["number"]; ok {
		n := intField(req, "number", -1)
		ok := d.engine.DeleteByNumber(n)
		return okResponse(req, wire.Record{"deleted": ok})
	}
	if name, ok := stringField(req, "exception"); ok {
		ok := d.engine.DeleteException(name)
		return okResponse(req, wire.Record{"deleted": ok})
	}
	file, hasFile := stringField(req, "file")
	if hasFile {
		line := intField(req, "line", 0)
		ok := d.engine.DeleteByLocation(file, line)
		return okResponse(req, wire.Record{"deleted": ok})
	}
	return errorResponse(req, fmt.Errorf("%w: delete requires number, (file,line), or exception", dbgerr.ErrProtocol))
}

func (d *Dispatcher) handleBreakpoints(req wire.Record) wire.Record {
	lines, excs := d.engine.ListBreakpoints()
	lineRecs := make([]wire.Record, 0, len(lines))
	for _, bp := range lines {
		lineRecs = append(lineRecs, wire.Record{
			"id": bp.ID, "file": bp.File, "line": bp.Line,
			"enabled": bp.Enabled, "condition": bp.Condition, "hit_count": bp.HitCount,
		})
	}
	excRecs := make([]wire.Record, 0, len(excs))
	for _, bp := range excs {
		excRecs = append(excRecs, wire.Record{"id": bp.ID, "exception": bp.Name})
	}
	return okResponse(req, wire.Record{"breakpoints": lineRecs, "exceptions": excRecs})
}

func (d *Dispatcher) handleLocals(req wire.Record) wire.Record {
	depth := intField(req, "depth", d.opts.Format.MaxDepth)
	opts := d.opts.Format
	opts.MaxDepth = depth
	f := d.selectedFrame()
	if f == nil {
		return errorResponse(req, fmt.Errorf("%w: no selected frame", dbgerr.ErrHandler))
	}
	return okResponse(req, wire.Record{"locals": d.formatBindingsWith(f.Locals(), opts)})
}

func (d *Dispatcher) handleGlobals(req wire.Record) wire.Record {
	depth := intField(req, "depth", d.opts.Format.MaxDepth)
	opts := d.opts.Format
	opts.MaxDepth = depth
	f := d.selectedFrame()
	if f == nil {
		return errorResponse(req, fmt.Errorf("%w: no selected frame", dbgerr.ErrHandler))
	}
	return okResponse(req, wire.Record{"globals": d.formatBindingsWith(f.Globals(), opts)})
}

func (d *Dispatcher) formatBindingsWith(m *runtime.Map, opts format.Options) format.Record {
	out := format.Record{}
	if m == nil {
		return out
	}
	for _, k := range m.Keys {
		if isDunder(k) {
			continue
		}
		v, _ := m.Get(k)
		out[k] = format.Format(v, opts.MaxDepth, opts)
	}
	return out
}

// evalResult carries an eval/inspect goroutine's outcome back to the
// caller over a buffered channel so a timed-out evaluation's goroutine can
// still complete and exit without blocking forever (§5, §9).
type evalResult struct {
	value runtime.Value
	err   error
}

// evalWithTimeout bounds expr's evaluation with a context the runtime is
// expected to check at its own statement/builtin-loop checkpoints. The
// buffered channel still guards against a runtime that never checks ctx,
// but a cooperative one actually stops running once the deadline passes,
// so the bound never leaks into other handlers by leaving a goroutine
// racing on the target's shared, unsynchronized environment.
func (d *Dispatcher) evalWithTimeout(expr string, f runtime.Frame) (runtime.Value, error) {
	timeout := d.opts.EvalTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ch := make(chan evalResult, 1)
	go func() {
		v, err := f.Eval(ctx, expr)
		ch <- evalResult{v, err}
	}()
	select {
	case r := <-ch:
		return r.value, r.err
	case <-ctx.Done():
		return nil, dbgerr.ErrEvalTimeout
	}
}

func (d *Dispatcher) handleEval(req wire.Record) wire.Record {
	expr, ok := stringField(req, "expr")
	if !ok {
		return errorResponse(req, fmt.Errorf("%w: eval requires expr", dbgerr.ErrProtocol))
	}
	f := d.selectedFrame()
	if f == nil {
		return errorResponse(req, fmt.Errorf("%w: no selected frame", dbgerr.ErrHandler))
	}
	v, err := d.evalWithTimeout(expr, f)
	if err != nil {
		d.recordEval(expr, err.Error())
		if err == dbgerr.ErrEvalTimeout {
			return errorResponse(req, err)
		}
		return errorResponse(req, fmt.Errorf("%w: %v", dbgerr.ErrEval, err))
	}
	rec := format.Format(v, d.opts.Format.MaxDepth, d.opts.Format)
	d.recordEval(expr, summarizeRecord(rec))
	return okResponse(req, wire.Record{"result": rec})
}

func (d *Dispatcher) handleInspect(req wire.Record) wire.Record {
	expr, ok := stringField(req, "expr")
	if !ok {
		return errorResponse(req, fmt.Errorf("%w: inspect requires expr", dbgerr.ErrProtocol))
	}
	f := d.selectedFrame()
	if f == nil {
		return errorResponse(req, fmt.Errorf("%w: no selected frame", dbgerr.ErrHandler))
	}
	depth := intField(req, "depth", d.opts.Inspect.MaxAttrDepth)
	opts := d.opts.Inspect
	opts.MaxAttrDepth = depth

	v, err := d.evalWithTimeout(expr, f)
	if err != nil {
		d.recordEval(expr, err.Error())
		if err == dbgerr.ErrEvalTimeout {
			return errorResponse(req, err)
		}
		return errorResponse(req, fmt.Errorf("%w: %v", dbgerr.ErrEval, err))
	}
	rec := inspect.Inspect(v, opts)
	d.recordEval(expr, summarizeRecord(rec))
	return okResponse(req, wire.Record{"result": rec})
}

func summarizeRecord(rec format.Record) string {
	if t, ok := rec["type"].(string); ok {
		return t
	}
	return "value"
}

func (d *Dispatcher) recordEval(expr, summary string) {
	if d.hist == nil {
		return
	}
	d.seq++
	if err := d.hist.RecordEval(d.sessionID, d.seq, expr, summary); err != nil && d.log != nil {
		d.log.Warn("history: record eval", "error", err)
	}
}

func (d *Dispatcher) handleStackCmd(req wire.Record) wire.Record {
	frames := make([]wire.Record, 0, len(d.stack))
	for i, f := range d.stack {
		frames = append(frames, wire.Record{
			"index":    i,
			"file":     f.File(),
			"line":     f.Line(),
			"function": f.FuncName(),
			"current":  i == d.selected,
		})
	}
	return okResponse(req, wire.Record{"frames": frames, "current_index": d.selected})
}

func (d *Dispatcher) handleUp(req wire.Record) wire.Record {
	if d.selected < len(d.stack)-1 {
		d.selected++
	}
	return okResponse(req, wire.Record{"selected_index": d.selected, "location": d.locationRecord(d.stack[d.selected])})
}

func (d *Dispatcher) handleDown(req wire.Record) wire.Record {
	if d.selected > 0 {
		d.selected--
	}
	return okResponse(req, wire.Record{"selected_index": d.selected, "location": d.locationRecord(d.stack[d.selected])})
}

func (d *Dispatcher) handleHistory(req wire.Record) wire.Record {
	count := intField(req, "count", 20)
	if d.hist == nil {
		return okResponse(req, wire.Record{"events": []wire.Record{}})
	}
	events, err := d.hist.Recent(d.sessionID, count)
	if err != nil {
		return errorResponse(req, fmt.Errorf("%w: %v", dbgerr.ErrHandler, err))
	}
	recs := make([]wire.Record, 0, len(events))
	for _, e := range events {
		recs = append(recs, wire.Record{
			"seq":            e.Seq,
			"kind":           string(e.Kind),
			"stop_reason":    e.StopReason,
			"location":       e.Location,
			"command":        e.Command,
			"result_summary": e.ResultSummary,
			"recorded_at":    e.RecordedAt,
		})
	}
	return okResponse(req, wire.Record{"events": recs})
}
