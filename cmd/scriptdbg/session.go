package main

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alonw0/scriptdbg/internal/config"
	"github.com/alonw0/scriptdbg/internal/dbgerr"
	"github.com/alonw0/scriptdbg/internal/registry"
	"github.com/alonw0/scriptdbg/internal/transport"
)

// currentPointerPath names the file recording the most recently started
// session's script path, so execution and inspection subcommands can omit
// -s in the common case of one script being debugged at a time. It is
// purely a CLI convenience (§6 leaves session selection across the
// execution subcommands unspecified) — it is never consulted by the
// daemon or the registry itself.
func currentPointerPath(stateDir string) string {
	return filepath.Join(stateDir, "current")
}

func setCurrentScript(stateDir, absScript string) error {
	return os.WriteFile(currentPointerPath(stateDir), []byte(absScript), 0644)
}

func readCurrentScript(stateDir string) (string, error) {
	data, err := os.ReadFile(currentPointerPath(stateDir))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// resolveScriptPath returns the absolute script path a session-scoped
// subcommand should target: explicit if given (via -s/--script), else the
// last script passed to `start`.
func resolveScriptPath(explicit string) (string, error) {
	if explicit != "" {
		return filepath.Abs(explicit)
	}
	stateDir, err := config.UserStateDir()
	if err != nil {
		return "", err
	}
	cur, err := readCurrentScript(stateDir)
	if err != nil {
		return "", dbgerr.ErrNoSession
	}
	return cur, nil
}

// sessionClient resolves the live session for explicit (or the current
// script) and connects to its rendezvous socket.
func sessionClient(explicit string) (*transport.Client, *registry.Session, error) {
	stateDir, err := config.UserStateDir()
	if err != nil {
		return nil, nil, err
	}
	scriptPath, err := resolveScriptPath(explicit)
	if err != nil {
		return nil, nil, dbgerr.ErrNoSession
	}
	reg := registry.New(stateDir)
	sess, err := reg.FindActive(scriptPath)
	if err != nil {
		return nil, nil, err
	}
	if sess == nil {
		return nil, nil, dbgerr.ErrNoSession
	}
	client, err := transport.Connect(sess.SocketPath, connectTimeout)
	if err != nil {
		return nil, nil, err
	}
	return client, sess, nil
}

const connectTimeout = 3 * time.Second
