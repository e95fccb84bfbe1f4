// Package config resolves the on-disk state directory for the debugger and
// loads the user-overridable settings file that lives inside it.
package config

import (
	"os"
	"path/filepath"
)

const stateDirName = ".scriptdbg"

// UserStateDir returns the per-user directory holding session descriptors,
// socket files, the settings file, and the optional history database.
func UserStateDir() (string, error) {
	if dir := os.Getenv("SCRIPTDBG_STATE_DIR"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, stateDirName), nil
}

// EnsureStateDir creates the state directory if it does not already exist,
// with user-default permissions.
func EnsureStateDir(dir string) error {
	return os.MkdirAll(dir, 0755)
}

// SessionID truncates a digest of the absolute script path into a short,
// filesystem-safe identifier used for both the descriptor and socket file
// names: debug_<id>.json and debug_<id>.sock.
func SessionID(absScriptPath string) string {
	return truncatedDigest(absScriptPath)
}

// DescriptorPath returns the path to a session's on-disk descriptor.
func DescriptorPath(stateDir, sessionID string) string {
	return filepath.Join(stateDir, "debug_"+sessionID+".json")
}

// SocketPath returns the path to a session's rendezvous socket.
func SocketPath(stateDir, sessionID string) string {
	return filepath.Join(stateDir, "debug_"+sessionID+".sock")
}

// SettingsPath returns the path to the shared settings file.
func SettingsPath(stateDir string) string {
	return filepath.Join(stateDir, "config.yaml")
}

// HistoryDBPath returns the path to the optional history log database.
func HistoryDBPath(stateDir string) string {
	return filepath.Join(stateDir, "history.db")
}
