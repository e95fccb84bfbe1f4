// Package dbgerr defines the sentinel error kinds of §7 that the
// dispatcher, the transport client and the CLI classify against with
// errors.Is/errors.As. Call sites that report one of these kinds wrap the
// sentinel with %w; lower-level failures (file, database, socket setup)
// are returned wrapped in their own context instead.
package dbgerr

import "errors"

var (
	// ErrNoSession means the CLI could not locate a live daemon for the
	// requested script. Soft failure.
	ErrNoSession = errors.New("no active session")

	// ErrAlreadyAttached means start was called while a live session for
	// the same script already exists.
	ErrAlreadyAttached = errors.New("a session is already attached to this script")

	// ErrProtocol means a request was malformed or missing a required
	// field.
	ErrProtocol = errors.New("protocol error")

	// ErrHandler wraps a panic or failure raised inside a command handler.
	ErrHandler = errors.New("handler error")

	// ErrEval wraps a syntax, name, or runtime error raised while
	// evaluating an expression. It is always returned structurally, never
	// re-raised into the target.
	ErrEval = errors.New("evaluation error")

	// ErrEvalTimeout means an eval or inspect invocation exceeded its
	// per-call wall-clock budget.
	ErrEvalTimeout = errors.New("evaluation timed out")

	// ErrTransport covers connection refused, reset, broken pipe, and
	// timeout conditions surfaced by the client half of the IPC.
	ErrTransport = errors.New("transport error")

	// ErrUncaughtException marks the final stop synthesized when the
	// target script raised past its top frame.
	ErrUncaughtException = errors.New("uncaught exception in target")
)
