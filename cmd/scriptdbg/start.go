package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/alonw0/scriptdbg/internal/config"
	"github.com/alonw0/scriptdbg/internal/dbgerr"
	"github.com/alonw0/scriptdbg/internal/registry"
	"github.com/alonw0/scriptdbg/internal/transport"
	"github.com/alonw0/scriptdbg/internal/wire"
)

func startCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start <script> [args...]",
		Short: "Attach a new debugger daemon to a target script",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			script := args[0]
			scriptArgs := args[1:]

			abs, err := filepath.Abs(script)
			if err != nil {
				printErrorAndExit(err)
				return nil
			}
			stateDir, err := config.UserStateDir()
			if err != nil {
				printErrorAndExit(err)
				return nil
			}
			if err := config.EnsureStateDir(stateDir); err != nil {
				printErrorAndExit(err)
				return nil
			}

			reg := registry.New(stateDir)
			if existing, err := reg.FindActive(abs); err == nil && existing != nil {
				printAndExit(wire.Record{
					"error": dbgerr.ErrAlreadyAttached.Error(),
					"hint":  fmt.Sprintf("session %s is already attached to %s", existing.ID, abs),
				})
				return nil
			}

			daemonPath, err := findDaemonBinary()
			if err != nil {
				printErrorAndExit(err)
				return nil
			}

			daemonCmd := exec.Command(daemonPath, append([]string{abs}, scriptArgs...)...)
			daemonCmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
			daemonCmd.Stdin = nil
			daemonCmd.Stdout = nil
			daemonCmd.Stderr = nil
			if err := daemonCmd.Start(); err != nil {
				printErrorAndExit(fmt.Errorf("spawn daemon: %w", err))
				return nil
			}

			sess, err := reg.Create(abs, daemonCmd.Process.Pid)
			if err != nil {
				printErrorAndExit(err)
				return nil
			}
			// Detach: the daemon is already its own session leader (Setsid)
			// and outlives this process regardless.
			daemonCmd.Process.Release()

			// Only a readiness probe: the real commands that follow each
			// open their own connection. The daemon accepts exactly one
			// peer at a time (§4.4), so this connection must be closed
			// immediately or it would occupy that slot forever and wedge
			// the dispatcher's first Accept/Receive on an idle peer.
			probe, err := transport.Connect(sess.SocketPath, 5*time.Second)
			if err != nil {
				printAndExit(wire.Record{"error": err.Error(), "id": sess.ID, "script_path": sess.ScriptPath})
				return nil
			}
			probe.Close()

			setCurrentScript(stateDir, abs)
			printAndExit(wire.Record{
				"status":      "ok",
				"id":          sess.ID,
				"script_path": sess.ScriptPath,
				"pid":         sess.PID,
				"socket_path": sess.SocketPath,
			})
			return nil
		},
	}
	return cmd
}

// findDaemonBinary locates the scriptdbgd executable: first on PATH, then
// alongside this CLI binary (the layout a local build or install produces).
func findDaemonBinary() (string, error) {
	if p, err := exec.LookPath("scriptdbgd"); err == nil {
		return p, nil
	}
	self, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locate scriptdbgd: %w", err)
	}
	candidate := filepath.Join(filepath.Dir(self), "scriptdbgd")
	if _, err := os.Stat(candidate); err != nil {
		return "", fmt.Errorf("scriptdbgd not found on PATH or alongside %s", self)
	}
	return candidate, nil
}
