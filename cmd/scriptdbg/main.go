// Command scriptdbg is the CLI façade (§2, component 7): a thin client that
// resolves the target session, sends one request (the four resuming verbs
// follow it with a status request), prints exactly one structured response
// record, and exits. All debugger state lives in the
// scriptdbgd daemon this talks to over the framed IPC — this binary holds
// none of it across invocations beyond the convenience "current session"
// pointer left behind by start.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "scriptdbg",
		Short: "Attach to and control a scriptdbgd debugger session",
		Long:  "scriptdbg drives a running scriptdbgd daemon: set breakpoints, step, evaluate expressions, and walk the call stack of an attached target script.",
	}

	root.AddCommand(
		startCmd(),
		statusCmd(),
		breakCmd(),
		deleteCmd(),
		breakpointsCmd(),
		execCommand("continue"),
		execCommand("step"),
		execCommand("next"),
		execCommand("finish"),
		stackCmd(),
		upCmd(),
		downCmd(),
		localsCmd(),
		globalsCmd(),
		evalCmd(),
		inspectCmd(),
		historyCmd(),
		quitCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
