// Package daemon wires together one attached session's tracing engine,
// dispatcher, transport server, and registry entry, and runs the embedded
// script runtime to completion under their control. One daemon process
// serves exactly one target script (§1 Non-goals: no multi-target
// multiplexing per daemon) — cmd/scriptdbgd is the thin entrypoint that
// parses argv and calls Run.
package daemon

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/creack/pty"

	"github.com/alonw0/scriptdbg/internal/config"
	"github.com/alonw0/scriptdbg/internal/dispatch"
	"github.com/alonw0/scriptdbg/internal/format"
	"github.com/alonw0/scriptdbg/internal/history"
	"github.com/alonw0/scriptdbg/internal/inspect"
	"github.com/alonw0/scriptdbg/internal/logger"
	"github.com/alonw0/scriptdbg/internal/registry"
	"github.com/alonw0/scriptdbg/internal/runtime"
	"github.com/alonw0/scriptdbg/internal/runtime/miniscript"
	"github.com/alonw0/scriptdbg/internal/trace"
	"github.com/alonw0/scriptdbg/internal/transport"
)

// Config carries everything Run needs to attach to one target script. The
// session descriptor (script_path, pid, socket_path) must already exist in
// the registry — the launcher (cmd/scriptdbg's start handler) creates it
// right after spawning this process, recording this process's pid.
type Config struct {
	ScriptPath string
	ScriptArgs []string
	StateDir   string
	Settings   config.Settings
	LogFile    string
}

// Run attaches to cfg.ScriptPath, serves the framed IPC on the session's
// rendezvous socket, and blocks until the target script finishes, an
// uncaught exception is inspected and dismissed with quit, or a fatal
// signal arrives. It always returns after the session's descriptor and
// socket have been removed (clean shutdown) or left for the registry's
// next liveness scan to reap (the process exiting makes its own pid dead).
func Run(cfg Config) error {
	if err := logger.Init(cfg.Settings.LogLevel, cfg.LogFile); err != nil {
		return fmt.Errorf("daemon: init logger: %w", err)
	}
	log := logger.Log

	absScript, err := filepath.Abs(cfg.ScriptPath)
	if err != nil {
		return fmt.Errorf("daemon: resolve script path: %w", err)
	}

	reg := registry.New(cfg.StateDir)
	id := config.SessionID(absScript)
	socketPath := config.SocketPath(cfg.StateDir, id)

	srv := transport.NewServer(socketPath, cfg.Settings.AcceptTimeout)
	if err := srv.Start(); err != nil {
		reg.Update(id, func(s *registry.Session) {
			s.Status = registry.StatusError
			s.ErrorMessage = err.Error()
		})
		return fmt.Errorf("daemon: start transport: %w", err)
	}

	// The target script's own print() output is routed through a pty
	// rather than the daemon's bare stdout: Setsid detaches the daemon
	// from any controlling terminal (see cmd/scriptdbg's start handler),
	// so without a pty of its own the script would write into the void.
	// The master side is tee'd to a per-session log file a developer can
	// tail independently of the debugger protocol.
	var scriptStdout *os.File
	if ptmx, tty, err := pty.Open(); err != nil {
		log.Warn("pty unavailable, target stdout falls back to the daemon's own stdout", "error", err)
	} else {
		defer ptmx.Close()
		defer tty.Close()
		scriptStdout = tty
		outPath := filepath.Join(cfg.StateDir, "debug_"+id+".stdout.log")
		if outLog, err := os.Create(outPath); err != nil {
			log.Warn("open script output log", "error", err)
		} else {
			defer outLog.Close()
			go io.Copy(outLog, ptmx)
		}
	}

	var hist *history.Log
	if cfg.Settings.HistoryEnabled {
		h, err := history.Open(config.HistoryDBPath(cfg.StateDir))
		if err != nil {
			log.Warn("history log unavailable", "error", err)
		} else {
			hist = h
			defer hist.Close()
		}
	}

	sink := &registrySink{reg: reg, id: id}
	engine := trace.NewEngine()
	opts := dispatch.Options{
		Format:      formatOptions(cfg.Settings),
		Inspect:     inspect.Options{Options: formatOptions(cfg.Settings), MaxAttrDepth: cfg.Settings.InspectMaxDepth},
		EvalTimeout: cfg.Settings.EvalTimeout,
	}
	disp := dispatch.New(engine, srv, opts, log, hist, id, sink)

	rt := miniscript.New()
	rt.Args = cfg.ScriptArgs
	if scriptStdout != nil {
		rt.Stdout = scriptStdout
	}

	sink.SetStatus("running", "")

	type runResult struct {
		exc *runtime.ExceptionInfo
		err error
	}
	done := make(chan runResult, 1)
	go func() {
		exc, err := rt.Run(absScript, disp.Hook)
		done <- runResult{exc, err}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	cleanup := func() {
		srv.Close()
		if s, err := reg.FindActive(absScript); err == nil && s != nil {
			reg.Delete(s)
		}
	}

	select {
	case sig := <-sigCh:
		log.Info("received signal, shutting down", "signal", sig.String())
		cleanup()
		return nil

	case <-disp.Done():
		// quit always wins (§5): tear down now rather than waiting for the
		// target goroutine to reach its next line event on its own, which
		// for a long-running or looping script might never happen.
		log.Info("quit requested, shutting down")
		sink.SetStatus("terminated", "")
		cleanup()
		return nil

	case res := <-done:
		if res.err != nil {
			sink.SetStatus("error", res.err.Error())
			log.Error("script runtime error", "error", res.err)
			cleanup()
			return fmt.Errorf("daemon: run script: %w", res.err)
		}
		if res.exc != nil {
			log.Info("uncaught exception, presenting final stop", "type", res.exc.TypeName)
			disp.HandleUncaught(res.exc)
		}
		sink.SetStatus("terminated", "")
		cleanup()
		return nil
	}
}

func formatOptions(s config.Settings) format.Options {
	return format.Options{
		MaxDepth:           s.MaxDepth,
		MaxCollectionItems: s.MaxCollectionItems,
		MaxStringLength:    s.MaxStringLength,
		MaxValueLength:     s.MaxValueLength,
	}
}

// registrySink adapts the registry to dispatch.StatusSink so the dispatcher
// can report lifecycle transitions (running/paused) without importing the
// registry package directly.
type registrySink struct {
	reg *registry.Registry
	id  string
}

func (s *registrySink) SetStatus(status string, errMsg string) {
	s.reg.Update(s.id, func(sess *registry.Session) {
		sess.Status = registry.Status(status)
		sess.ErrorMessage = errMsg
	})
}
