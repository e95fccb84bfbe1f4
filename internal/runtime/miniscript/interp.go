package miniscript

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/alonw0/scriptdbg/internal/dbgerr"
	"github.com/alonw0/scriptdbg/internal/runtime"
)

// Interpreter runs a parsed miniscript program, firing the four trace
// events on the installed hook from the same goroutine that executes the
// script — matching the single-target-thread model the debugger core
// assumes.
//
// Stdout receives everything the script's print() builtin writes. It
// defaults to os.Stdout; the daemon (internal/daemon) overrides it with the
// slave end of a pty when one can be opened, so the target script's own
// output survives being launched under the debugger.
// Args becomes the script's "args" global, a list of strings, mirroring
// the extra words after the script path on the `start` CLI invocation
// (§6 `start <script> [args…]`).
type Interpreter struct {
	Stdout io.Writer
	Args   []string
}

func New() *Interpreter { return &Interpreter{} }

type interp struct {
	hook   runtime.Hook
	file   string
	stack  []*frame
	stdout io.Writer

	// evalCtx bounds an in-flight Frame.Eval call, if any. It is read at
	// every statement boundary (and inside the builtins that can run long
	// without ever reaching one) so a timed-out eval's goroutine actually
	// stops instead of continuing to mutate shared envs after its caller
	// has given up on it.
	evalCtx atomic.Pointer[ctxBox]
}

// ctxBox lets a nil *ctxBox and a "no context installed" atomic.Pointer
// stay distinguishable from a context.Context that happens to be nil-ish,
// and gives setEvalCtx/clearEvalCtx a concrete identity to CompareAndSwap
// against so a stale eval's cleanup can never clear a newer eval's context.
type ctxBox struct{ ctx context.Context }

// setEvalCtx installs ctx as the cancellation source checked by
// checkCancel for the duration of one Frame.Eval call, returning the box
// to pass back to clearEvalCtx.
func (in *interp) setEvalCtx(ctx context.Context) *ctxBox {
	box := &ctxBox{ctx: ctx}
	in.evalCtx.Store(box)
	return box
}

// clearEvalCtx removes box only if it is still the installed context,
// so an orphaned goroutine from a timed-out eval can't clobber the
// context of a later eval that has since started.
func (in *interp) clearEvalCtx(box *ctxBox) {
	in.evalCtx.CompareAndSwap(box, nil)
}

// checkCancel panics with evalCancelled if the currently installed eval
// context has been cancelled. It is a no-op outside of Frame.Eval, where
// no context is installed.
func (in *interp) checkCancel() {
	box := in.evalCtx.Load()
	if box == nil {
		return
	}
	select {
	case <-box.ctx.Done():
		panic(evalCancelled{})
	default:
	}
}

// returnSignal unwinds exactly one function call frame.
type returnSignal struct{ value runtime.Value }

// scriptPanic unwinds all the way to Run when a raised exception is never
// caught — miniscript has no try/catch, so every raise during script
// execution eventually reaches here unless the process is torn down first.
// A raise inside Frame.Eval is recovered by evalExprNoHook/execStmtsNoHook.
type scriptPanic struct{ info *runtime.ExceptionInfo }

// evalCancelled unwinds an in-progress Frame.Eval call once its context is
// done, stopping the goroutine at the next statement or builtin-loop
// checkpoint rather than letting it run on after its caller has moved on.
type evalCancelled struct{}

func (in *Interpreter) Run(scriptPath string, hook runtime.Hook) (exc *runtime.ExceptionInfo, err error) {
	src, err := os.ReadFile(scriptPath)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	stmts, err := parseProgram(string(src))
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(scriptPath)
	if err != nil {
		abs = scriptPath
	}

	stdout := in.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	it := &interp{hook: hook, file: abs, stdout: stdout}
	root := newEnv(nil)
	registerBuiltins(root)
	argList := &runtime.List{}
	for _, a := range in.Args {
		argList.Elems = append(argList.Elems, a)
	}
	root.define("args", argList)
	top := &frame{file: abs, funcName: "<module>", local: root, global: root, in: it}
	it.stack = append(it.stack, top)

	defer func() {
		if r := recover(); r != nil {
			if sp, ok := r.(scriptPanic); ok {
				exc = sp.info
				err = nil
				return
			}
			panic(r)
		}
	}()

	it.execStmts(stmts, top)
	return nil, nil
}

func (in *interp) current() *frame { return in.stack[len(in.stack)-1] }

func (in *interp) execStmts(stmts []Stmt, fr *frame) {
	for _, s := range stmts {
		in.execStmt(s, fr)
	}
}

// execStmtsNoHook is used by Frame.Eval's statement fallback: it executes
// without firing line events, since eval is a one-shot side evaluation, not
// stepped execution.
func (in *interp) execStmtsNoHook(stmts []Stmt, fr *frame) (err error) {
	defer func() {
		if r := recover(); r != nil {
			switch rv := r.(type) {
			case scriptPanic:
				err = fmt.Errorf("%s: %s", rv.info.TypeName, rv.info.Message)
			case evalCancelled:
				err = dbgerr.ErrEvalTimeout
			default:
				panic(r)
			}
		}
	}()
	for _, s := range stmts {
		in.execStmtQuiet(s, fr)
	}
	return nil
}

func (in *interp) evalExprNoHook(e Expr, fr *frame) (v runtime.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			switch rv := r.(type) {
			case scriptPanic:
				err = fmt.Errorf("%s: %s", rv.info.TypeName, rv.info.Message)
			case evalCancelled:
				err = dbgerr.ErrEvalTimeout
			default:
				panic(r)
			}
		}
	}()
	return in.eval(e, fr), nil
}

func (in *interp) execStmt(s Stmt, fr *frame) {
	fr.line = s.stmtLine()
	in.hook(runtime.Event{Kind: runtime.EventLine, Frame: fr})
	in.execStmtQuiet(s, fr)
}

func (in *interp) execStmtQuiet(s Stmt, fr *frame) {
	in.checkCancel()
	switch st := s.(type) {
	case *letStmt:
		fr.local.define(st.Name, in.eval(st.Expr, fr))
	case *assignStmt:
		in.execAssign(st, fr)
	case *exprStmt:
		in.eval(st.Expr, fr)
	case *ifStmt:
		if truthy(in.eval(st.Cond, fr)) {
			in.execStmts(st.Then, fr)
		} else if st.Else != nil {
			in.execStmts(st.Else, fr)
		}
	case *forStmt:
		in.execFor(st, fr)
	case *funcDecl:
		fr.local.define(st.Name, in.makeClosure(st, fr.local))
	case *returnStmt:
		var v runtime.Value
		if st.Expr != nil {
			v = in.eval(st.Expr, fr)
		}
		panic(returnSignal{value: v})
	default:
		in.raise(fr, "InternalError", fmt.Sprintf("unhandled statement %T", s))
	}
}

func (in *interp) execAssign(st *assignStmt, fr *frame) {
	val := in.eval(st.Value, fr)
	switch t := st.Target.(type) {
	case *identExpr:
		if !fr.local.assign(t.Name, val) {
			fr.local.define(t.Name, val)
		}
	case *indexExpr:
		target := in.eval(t.Target, fr)
		idx := in.eval(t.Index, fr)
		in.setIndex(fr, target, idx, val)
	case *dotExpr:
		target := in.eval(t.Target, fr)
		in.setField(fr, target, t.Name, val)
	default:
		in.raise(fr, "SyntaxError", "invalid assignment target")
	}
}

func (in *interp) execFor(st *forStmt, fr *frame) {
	iterable := in.eval(st.Iterable, fr)
	loopEnv := newEnv(fr.local)
	loopFrame := &frame{file: fr.file, funcName: fr.funcName, local: loopEnv, global: fr.global, caller: fr.caller, in: in}
	switch c := iterable.(type) {
	case *runtime.List:
		// Iterates the live slice, exactly mirroring what a host
		// scripting language's for-loop does over a shared list
		// reference: mutating the list from inside the body (append,
		// remove) is visible to the rest of this same iteration.
		i := 0
		for i < len(c.Elems) {
			in.checkCancel()
			loopEnv.define(st.Var, c.Elems[i])
			loopFrame.line = st.Line
			in.execStmts(st.Body, loopFrame)
			i++
		}
	case *runtime.Set:
		i := 0
		for i < len(c.Elems) {
			in.checkCancel()
			loopEnv.define(st.Var, c.Elems[i])
			loopFrame.line = st.Line
			in.execStmts(st.Body, loopFrame)
			i++
		}
	case *runtime.Map:
		for _, k := range append([]string(nil), c.Keys...) {
			in.checkCancel()
			loopEnv.define(st.Var, k)
			loopFrame.line = st.Line
			in.execStmts(st.Body, loopFrame)
		}
	default:
		in.raise(fr, "TypeError", fmt.Sprintf("value of type %s is not iterable", runtime.TypeName(iterable)))
	}
}

func (in *interp) makeClosure(decl *funcDecl, defEnv *env) *closure {
	c := &closure{decl: decl, defEnv: defEnv}
	for _, p := range decl.Params {
		if p.Default != nil {
			// Defaults are evaluated exactly once, at definition time, in
			// the defining scope — not per call. A mutable default value
			// (e.g. a list literal) is therefore shared across every call
			// that doesn't pass that argument explicitly.
			defFrame := &frame{file: in.file, funcName: decl.Name, local: defEnv, global: in.stack[0].local, in: in}
			c.defaults = append(c.defaults, in.eval(p.Default, defFrame))
		} else {
			c.defaults = append(c.defaults, nil)
		}
	}
	return c
}

func (in *interp) call(fr *frame, callee runtime.Value, args []runtime.Value) (result runtime.Value) {
	c, ok := callee.(*closure)
	if !ok {
		if bf, ok := callee.(builtinFunc); ok {
			return bf.fn(in, fr, args)
		}
		in.raise(fr, "TypeError", fmt.Sprintf("value of type %s is not callable", runtime.TypeName(callee)))
		return nil
	}
	callEnv := newEnv(c.defEnv)
	for i, p := range c.decl.Params {
		if i < len(args) {
			callEnv.define(p.Name, args[i])
		} else {
			callEnv.define(p.Name, c.defaults[i])
		}
	}
	callFrame := &frame{file: in.file, funcName: c.decl.Name, local: callEnv, global: in.stack[0].local, caller: fr, in: in}
	in.stack = append(in.stack, callFrame)
	in.hook(runtime.Event{Kind: runtime.EventCall, Frame: callFrame})

	func() {
		defer func() {
			if r := recover(); r != nil {
				if rs, ok := r.(returnSignal); ok {
					result = rs.value
					return
				}
				in.stack = in.stack[:len(in.stack)-1]
				panic(r)
			}
		}()
		in.execStmts(c.decl.Body, callFrame)
	}()

	in.hook(runtime.Event{Kind: runtime.EventReturn, Frame: callFrame, ReturnValue: result})
	in.stack = in.stack[:len(in.stack)-1]
	return result
}

func (in *interp) raise(fr *frame, typeName, message string) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s\n", typeName, message)
	for f := fr; f != nil; f = f.caller {
		fmt.Fprintf(&sb, "  at %s (%s:%d)\n", f.funcName, f.file, f.line)
	}
	info := &runtime.ExceptionInfo{TypeName: typeName, Message: message, Traceback: sb.String()}
	in.hook(runtime.Event{Kind: runtime.EventException, Frame: fr, Exception: info})
	panic(scriptPanic{info: info})
}

func truthy(v runtime.Value) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case int64:
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
