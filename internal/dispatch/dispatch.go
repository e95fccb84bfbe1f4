// Package dispatch implements the Command Dispatcher & Stop Loop (§4.6):
// the daemon's main controller. On every stop it freezes the stack, resets
// the selected-frame index, and serves commands from the one connected IPC
// peer until a resuming command releases the target thread back to the
// tracing engine.
package dispatch

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/alonw0/scriptdbg/internal/format"
	"github.com/alonw0/scriptdbg/internal/history"
	"github.com/alonw0/scriptdbg/internal/inspect"
	"github.com/alonw0/scriptdbg/internal/runtime"
	"github.com/alonw0/scriptdbg/internal/trace"
	"github.com/alonw0/scriptdbg/internal/wire"
)

// Transport is the half of the framed IPC the dispatcher drives. It is
// satisfied by *transport.Server; spelled as an interface here so tests can
// substitute an in-process fake without opening a real socket.
type Transport interface {
	Accept() (bool, error)
	Receive() (wire.Record, bool)
	Send(wire.Record) error
}

// Options carries every configurable bound the dispatcher's handlers
// consult (§10 — sourced from config.Settings).
type Options struct {
	Format      format.Options
	Inspect     inspect.Options
	EvalTimeout time.Duration
}

// StatusSink lets the dispatcher report session lifecycle transitions back
// to the session registry without importing it directly (registry would
// otherwise need to import dispatch's Transport type to close the cycle).
type StatusSink interface {
	SetStatus(status string, errMsg string)
}

// Dispatcher owns one session's frozen stack, selected-frame index, and
// exception record, and drives the stop loop against one Transport and one
// Engine.
type Dispatcher struct {
	engine    *trace.Engine
	transport Transport
	opts      Options
	log       *slog.Logger
	hist      *history.Log
	sessionID string
	status    StatusSink

	stack      []runtime.Frame
	selected   int
	stopReason trace.Reason
	exception  *runtime.ExceptionInfo

	// lastExceptionFrame is the frame live at the most recent EventException,
	// kept regardless of whether an exception breakpoint matched, so a
	// final uncaught exception can still be presented as a stop even when
	// nothing was watching for it (see HandleUncaught).
	lastExceptionFrame runtime.Frame

	// QuitRequested is set once the "quit" handler runs. The daemon layer
	// does not poll it; it watches Done() (see quitCh) to decide when to
	// tear down.
	QuitRequested bool

	// quitCh is closed the instant the "quit" handler runs, on the target's
	// own goroutine. A "quit" response is marked resuming (§4.6) so the
	// stop loop releases the target back to line dispatch, but the target
	// thread cannot be made to stop executing from the outside — quit's
	// actual teardown happens one level up, in the daemon's own select
	// loop, which races this channel against the script finishing on its
	// own (§5 "a quit command is always accepted and always wins").
	quitCh chan struct{}

	seq int
}

func New(engine *trace.Engine, transport Transport, opts Options, log *slog.Logger, hist *history.Log, sessionID string, status StatusSink) *Dispatcher {
	return &Dispatcher{
		engine:    engine,
		transport: transport,
		opts:      opts,
		log:       log,
		hist:      hist,
		sessionID: sessionID,
		status:    status,
		quitCh:    make(chan struct{}),
	}
}

// Done returns a channel that is closed the moment a "quit" command is
// handled, regardless of whether the target thread has actually stopped
// running. Callers that own the process (the daemon) should race this
// against the target's natural completion and tear down as soon as either
// fires.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.quitCh
}

// Hook is installed as the embedded runtime's trace callback. It consults
// the tracing engine and, when it decides to stop, runs the stop loop
// synchronously on the calling (target) thread.
func (d *Dispatcher) Hook(ev runtime.Event) {
	if ev.Kind == runtime.EventException {
		d.lastExceptionFrame = ev.Frame
	}
	stop, reason := d.engine.OnEvent(ev)
	if !stop {
		return
	}
	d.HandleStop(ev.Frame, reason, ev.Exception)
}

// HandleUncaught presents the exception that escaped the target's
// top-level call as one final stop, so a client that never armed a
// matching exception breakpoint still gets to inspect state before the
// daemon tears down (§4.5 "uncaught exceptions... surface as a final
// exception stop"). When lastExceptionFrame is nil it falls back to the
// innermost frame of the previous stop; with neither available it returns
// without presenting a stop.
func (d *Dispatcher) HandleUncaught(exc *runtime.ExceptionInfo) {
	frame := d.lastExceptionFrame
	if frame == nil && len(d.stack) > 0 {
		frame = d.stack[0]
	}
	if frame == nil {
		return
	}
	d.HandleStop(frame, trace.ReasonException, exc)
}

// HandleStop freezes the stack, resets the selected frame, and serves
// commands until a resuming command is handled.
func (d *Dispatcher) HandleStop(frame runtime.Frame, reason trace.Reason, exc *runtime.ExceptionInfo) {
	d.stack = freezeStack(frame)
	d.selected = 0
	d.stopReason = reason
	d.exception = exc
	if d.status != nil {
		d.status.SetStatus("paused", "")
	}
	d.recordStop()
	if d.log != nil {
		d.log.Info("stop", "reason", reason, "location", d.locationString())
	}

	for {
		attached, err := d.transport.Accept()
		if err != nil {
			if d.log != nil {
				d.log.Warn("accept failed", "error", err)
			}
			continue
		}
		if !attached {
			continue
		}
		req, ok := d.transport.Receive()
		if !ok {
			// Peer disconnected mid-stop; keep the target paused and wait
			// for the next one.
			continue
		}
		if d.log != nil {
			d.log.Debug("command", "command", req["command"])
		}
		resp, resuming := d.handle(req)
		if err := d.transport.Send(resp); err != nil && d.log != nil {
			d.log.Warn("send failed", "error", err)
		}
		if resuming {
			if d.status != nil {
				d.status.SetStatus("running", "")
			}
			return
		}
	}
}

func freezeStack(f runtime.Frame) []runtime.Frame {
	var frames []runtime.Frame
	for cur := f; cur != nil; cur = cur.Caller() {
		frames = append(frames, cur)
	}
	return frames
}

func (d *Dispatcher) locationString() string {
	if len(d.stack) == 0 {
		return ""
	}
	f := d.stack[0]
	return fmt.Sprintf("%s:%d (%s)", f.File(), f.Line(), f.FuncName())
}

func (d *Dispatcher) recordStop() {
	if d.hist == nil {
		return
	}
	d.seq++
	loc := ""
	if len(d.stack) > 0 {
		loc = d.locationString()
	}
	if err := d.hist.RecordStop(d.sessionID, d.seq, string(d.stopReason), loc); err != nil && d.log != nil {
		d.log.Warn("history: record stop", "error", err)
	}
}

// selectedFrame returns the currently selected frame, or nil if the stack
// is empty (should not happen once a stop has occurred).
func (d *Dispatcher) selectedFrame() runtime.Frame {
	if d.selected < 0 || d.selected >= len(d.stack) {
		return nil
	}
	return d.stack[d.selected]
}

func errorResponse(req wire.Record, err error) wire.Record {
	resp := wire.Record{"error": err.Error()}
	if id, ok := req["request_id"]; ok {
		resp["request_id"] = id
	}
	return resp
}

func okResponse(req wire.Record, fields wire.Record) wire.Record {
	resp := wire.Record{"status": "ok"}
	if id, ok := req["request_id"]; ok {
		resp["request_id"] = id
	}
	for k, v := range fields {
		resp[k] = v
	}
	return resp
}

func stringField(req wire.Record, key string) (string, bool) {
	v, ok := req[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func intField(req wire.Record, key string, def int) int {
	v, ok := req[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return def
	}
}
