// Package trace implements the Tracing Engine (§4.5): the per-line,
// per-call, per-return, and per-exception stop decision, the breakpoint
// table, and the stepping-mode state machine. It is invoked synchronously,
// on the target's own thread, from the embedded runtime's trace hook — no
// locking is required here, because the target cannot observe a
// half-updated table while the dispatcher (which runs on that same thread
// during a stop) mutates it (§5).
package trace

import (
	"context"
	"path/filepath"
	"sort"

	"github.com/alonw0/scriptdbg/internal/runtime"
)

// Mode is the stepping-state discriminant (§3).
type Mode int

const (
	ModeRunning Mode = iota
	ModeSteppingIn
	ModeSteppingOver
	ModeSteppingOut
	ModePaused
)

// Reason identifies why the engine decided to stop.
type Reason string

const (
	ReasonBreakpoint Reason = "breakpoint"
	ReasonStep       Reason = "step"
	ReasonReturn     Reason = "return"
	ReasonException  Reason = "exception"
	ReasonInitial    Reason = "initial"
)

// LineBreakpoint is one entry in the per-(file,line) breakpoint table
// (§3). Identities are never reused within a session.
type LineBreakpoint struct {
	ID        int
	File      string
	Line      int
	Enabled   bool
	Condition string
	HitCount  int
}

// ExceptionBreakpoint is either the wildcard ("*", break on any raised
// exception) or a single named exception type.
type ExceptionBreakpoint struct {
	ID   int
	Name string
}

// Engine holds all tracing state for one attached session: the breakpoint
// table and the current stepping mode.
type Engine struct {
	byFileLine map[string]map[int]*LineBreakpoint
	byID       map[int]*LineBreakpoint

	exceptions     map[string]*ExceptionBreakpoint
	exceptionsByID map[int]*ExceptionBreakpoint

	nextID int

	mode   Mode
	anchor runtime.Frame

	seenFirstLine bool
}

func NewEngine() *Engine {
	return &Engine{
		byFileLine:     make(map[string]map[int]*LineBreakpoint),
		byID:           make(map[int]*LineBreakpoint),
		exceptions:     make(map[string]*ExceptionBreakpoint),
		exceptionsByID: make(map[int]*ExceptionBreakpoint),
	}
}

func canonicalPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

// SetBreakpoint inserts a line breakpoint, or — per the resolved Open
// Question (§9) — replaces the condition/enabled state of an existing
// breakpoint at the same (file, line) while keeping its original identity
// and hit count. The returned breakpoint's ID is always the caller-facing
// "success" value.
func (e *Engine) SetBreakpoint(file string, line int, condition string) *LineBreakpoint {
	file = canonicalPath(file)
	if byLine, ok := e.byFileLine[file]; ok {
		if bp, ok := byLine[line]; ok {
			bp.Condition = condition
			bp.Enabled = true
			return bp
		}
	} else {
		e.byFileLine[file] = make(map[int]*LineBreakpoint)
	}
	e.nextID++
	bp := &LineBreakpoint{ID: e.nextID, File: file, Line: line, Enabled: true, Condition: condition}
	e.byFileLine[file][line] = bp
	e.byID[bp.ID] = bp
	return bp
}

// SetExceptionBreakpoint installs an exception filter — the wildcard "*" or
// a named exception type — idempotently: a second call with the same name
// returns the existing entry rather than minting a new id.
func (e *Engine) SetExceptionBreakpoint(name string) *ExceptionBreakpoint {
	if bp, ok := e.exceptions[name]; ok {
		return bp
	}
	e.nextID++
	bp := &ExceptionBreakpoint{ID: e.nextID, Name: name}
	e.exceptions[name] = bp
	e.exceptionsByID[bp.ID] = bp
	return bp
}

// DeleteByNumber removes a breakpoint — line or exception — by its
// identity. Reports whether anything was removed.
func (e *Engine) DeleteByNumber(id int) bool {
	if bp, ok := e.byID[id]; ok {
		delete(e.byID, id)
		delete(e.byFileLine[bp.File], bp.Line)
		return true
	}
	if bp, ok := e.exceptionsByID[id]; ok {
		delete(e.exceptionsByID, id)
		delete(e.exceptions, bp.Name)
		return true
	}
	return false
}

// DeleteByLocation removes the line breakpoint at (file, line), if any.
func (e *Engine) DeleteByLocation(file string, line int) bool {
	file = canonicalPath(file)
	byLine, ok := e.byFileLine[file]
	if !ok {
		return false
	}
	bp, ok := byLine[line]
	if !ok {
		return false
	}
	delete(byLine, line)
	delete(e.byID, bp.ID)
	return true
}

// DeleteException removes a single named exception filter, or every
// exception filter when name is "*".
func (e *Engine) DeleteException(name string) bool {
	if name == "*" {
		if len(e.exceptions) == 0 {
			return false
		}
		e.exceptions = make(map[string]*ExceptionBreakpoint)
		e.exceptionsByID = make(map[int]*ExceptionBreakpoint)
		return true
	}
	bp, ok := e.exceptions[name]
	if !ok {
		return false
	}
	delete(e.exceptions, name)
	delete(e.exceptionsByID, bp.ID)
	return true
}

// ListBreakpoints returns every line breakpoint and every exception filter,
// each ordered by ascending id.
func (e *Engine) ListBreakpoints() ([]*LineBreakpoint, []*ExceptionBreakpoint) {
	lines := make([]*LineBreakpoint, 0, len(e.byID))
	for _, bp := range e.byID {
		lines = append(lines, bp)
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ID < lines[j].ID })

	excs := make([]*ExceptionBreakpoint, 0, len(e.exceptionsByID))
	for _, bp := range e.exceptionsByID {
		excs = append(excs, bp)
	}
	sort.Slice(excs, func(i, j int) bool { return excs[i].ID < excs[j].ID })
	return lines, excs
}

// SetContinue clears the stepping state back to Running.
func (e *Engine) SetContinue() {
	e.mode = ModeRunning
	e.anchor = nil
}

// SetStepIn arms a stop on the very next line event, regardless of frame.
func (e *Engine) SetStepIn() {
	e.mode = ModeSteppingIn
	e.anchor = nil
}

// SetStepOver arms a stop at the next line event in the same frame (or a
// caller of it, if the current call returns first).
func (e *Engine) SetStepOver(current runtime.Frame) {
	e.mode = ModeSteppingOver
	e.anchor = current
}

// SetStepOut arms a stop when the current frame returns to its caller.
func (e *Engine) SetStepOut(current runtime.Frame) {
	e.mode = ModeSteppingOut
	e.anchor = current
}

// Mode reports the engine's current stepping mode, mainly for tests and
// status reporting.
func (e *Engine) Mode() Mode { return e.mode }

// OnEvent is the tracing hook's sole decision point: given one trace event,
// it returns whether the target should stop and, if so, why. Calling it
// also performs the event's required side effects (incrementing hit
// counts, promoting a step-over anchor past a return).
func (e *Engine) OnEvent(ev runtime.Event) (bool, Reason) {
	switch ev.Kind {
	case runtime.EventLine:
		return e.onLine(ev)
	case runtime.EventCall:
		return false, ""
	case runtime.EventReturn:
		return e.onReturn(ev)
	case runtime.EventException:
		return e.onException(ev)
	default:
		return false, ""
	}
}

func (e *Engine) onLine(ev runtime.Event) (bool, Reason) {
	if !e.seenFirstLine {
		e.seenFirstLine = true
		e.mode = ModePaused
		return true, ReasonInitial
	}

	file := canonicalPath(ev.Frame.File())
	line := ev.Frame.Line()
	if bp, ok := e.byFileLine[file][line]; ok && bp.Enabled {
		if e.conditionMatches(bp, ev.Frame) {
			bp.HitCount++
			e.mode = ModePaused
			return true, ReasonBreakpoint
		}
	}

	switch e.mode {
	case ModeSteppingIn:
		e.mode = ModePaused
		return true, ReasonStep
	case ModeSteppingOver:
		if isCallerOrSelf(e.anchor, ev.Frame) {
			e.mode = ModePaused
			return true, ReasonStep
		}
	}
	return false, ""
}

func (e *Engine) onReturn(ev runtime.Event) (bool, Reason) {
	switch e.mode {
	case ModeSteppingOut:
		if sameFrame(ev.Frame, e.anchor) {
			e.mode = ModePaused
			return true, ReasonReturn
		}
	case ModeSteppingOver:
		if sameFrame(ev.Frame, e.anchor) {
			// The frame we were stepping over is itself returning to its
			// caller: promote the anchor so line events in the caller
			// still satisfy isCallerOrSelf.
			e.anchor = ev.Frame.Caller()
		}
	}
	return false, ""
}

func (e *Engine) onException(ev runtime.Event) (bool, Reason) {
	if e.exceptionMatches(ev.Exception) {
		e.mode = ModePaused
		return true, ReasonException
	}
	return false, ""
}

func (e *Engine) exceptionMatches(info *runtime.ExceptionInfo) bool {
	if info == nil {
		return false
	}
	if _, ok := e.exceptions["*"]; ok {
		return true
	}
	_, ok := e.exceptions[info.TypeName]
	return ok
}

// conditionMatches evaluates a breakpoint's condition, if any, in the
// stopping frame's bindings. An evaluation failure counts as "did not
// match" — it is swallowed here and never re-raised into the target (§4.5).
func (e *Engine) conditionMatches(bp *LineBreakpoint, fr runtime.Frame) bool {
	if bp.Condition == "" {
		return true
	}
	v, err := fr.Eval(context.Background(), bp.Condition)
	if err != nil {
		return false
	}
	return truthy(v)
}

func truthy(v runtime.Value) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case int64:
		return t != 0
	case int:
		return t != 0
	case float64:
		return t != 0
	case string:
		return t != ""
	case *runtime.List:
		return len(t.Elems) > 0
	case *runtime.Map:
		return len(t.Keys) > 0
	case *runtime.Set:
		return len(t.Elems) > 0
	default:
		return true
	}
}

func sameFrame(a, b runtime.Frame) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a == b
}

// isCallerOrSelf reports whether current is anchor itself or an ancestor of
// anchor (walking anchor's Caller() chain) — SteppingOver's "equals anchor
// or is a caller of it" test (§4.5).
func isCallerOrSelf(anchor, current runtime.Frame) bool {
	for f := anchor; f != nil; f = f.Caller() {
		if sameFrame(f, current) {
			return true
		}
	}
	return false
}
