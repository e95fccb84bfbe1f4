// Command scriptdbgd is the debugger daemon: it attaches to exactly one
// target script, traces it, and serves the framed IPC protocol on that
// session's rendezvous socket until the script finishes, an uncaught
// exception is dismissed with quit, or a signal arrives. It is never run
// directly by a developer — cmd/scriptdbg's start handler forks it.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/alonw0/scriptdbg/internal/config"
	"github.com/alonw0/scriptdbg/internal/daemon"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: scriptdbgd <script> [args...]")
		os.Exit(1)
	}
	script := os.Args[1]
	scriptArgs := os.Args[2:]

	stateDir, err := config.UserStateDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "scriptdbgd: resolve state dir: %v\n", err)
		os.Exit(1)
	}
	if err := config.EnsureStateDir(stateDir); err != nil {
		fmt.Fprintf(os.Stderr, "scriptdbgd: ensure state dir: %v\n", err)
		os.Exit(1)
	}
	settings, err := config.LoadSettings(stateDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "scriptdbgd: load settings: %v\n", err)
		os.Exit(1)
	}

	cfg := daemon.Config{
		ScriptPath: script,
		ScriptArgs: scriptArgs,
		StateDir:   stateDir,
		Settings:   settings,
		LogFile:    logFilePath(stateDir),
	}

	if err := daemon.Run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "scriptdbgd: %v\n", err)
		os.Exit(1)
	}
}

func logFilePath(stateDir string) string {
	return filepath.Join(stateDir, "scriptdbgd.log")
}
