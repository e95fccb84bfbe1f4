package main

import "errors"

// errBreakpointSpec is reported when break/delete is invoked without
// specifying either a (file,line) pair, a breakpoint number, or an
// exception name — §6 requires that either a line or exception breakpoint
// be named.
var errBreakpointSpec = errors.New("either (file,line), a breakpoint number, or an exception must be given")
