package miniscript

import (
	"context"

	"github.com/alonw0/scriptdbg/internal/runtime"
)

// frame is miniscript's implementation of runtime.Frame: one activation
// record, valid only for the duration of the stop that produced it.
type frame struct {
	file     string
	line     int
	funcName string
	local    *env
	global   *env
	caller   *frame
	in       *interp
}

func (f *frame) File() string     { return f.file }
func (f *frame) Line() int        { return f.line }
func (f *frame) FuncName() string { return f.funcName }

func (f *frame) Locals() *runtime.Map {
	if f.local == f.global {
		// At module level the local and global scopes are the same env.
		return f.global.snapshot(nil)
	}
	return f.local.snapshot(f.global)
}

func (f *frame) Globals() *runtime.Map {
	return f.global.snapshot(nil)
}

func (f *frame) Caller() runtime.Frame {
	if f.caller == nil {
		return nil
	}
	return f.caller
}

// Eval installs ctx as the interpreter's cancellation source for the
// duration of this call, so a caller that times out can rely on the
// underlying goroutine actually stopping at the next statement or
// builtin-loop checkpoint rather than racing on past its deadline.
func (f *frame) Eval(ctx context.Context, expr string) (runtime.Value, error) {
	box := f.in.setEvalCtx(ctx)
	defer f.in.clearEvalCtx(box)

	e, err := parseExpr(expr)
	if err != nil {
		// Fall back to statement execution per the eval handler's contract:
		// a construct that only parses as a statement (e.g. an assignment)
		// is executed for effect and reports nil.
		stmts, serr := parseProgram(expr)
		if serr != nil {
			return nil, err
		}
		if execErr := f.in.execStmtsNoHook(stmts, f); execErr != nil {
			return nil, execErr
		}
		return nil, nil
	}
	return f.in.evalExprNoHook(e, f)
}
