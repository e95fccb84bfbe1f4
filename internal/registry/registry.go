// Package registry implements the Session Registry (§4.3): an on-disk
// directory of JSON session descriptors keyed by a hash of the target
// script's absolute path, with a signal-0 liveness probe and stale-entry
// reaping. The registry never trusts a descriptor whose pid is not alive —
// every read path that returns a session has just confirmed it.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"

	"github.com/alonw0/scriptdbg/internal/config"
)

// Status is a session's lifecycle state (§3).
type Status string

const (
	StatusStarting   Status = "starting"
	StatusRunning    Status = "running"
	StatusPaused     Status = "paused"
	StatusTerminated Status = "terminated"
	StatusError      Status = "error"
)

// Session is one attached target's descriptor, persisted as
// <state_dir>/debug_<id>.json.
type Session struct {
	ID           string    `json:"id"`
	ScriptPath   string    `json:"script_path"`
	PID          int       `json:"pid"`
	SocketPath   string    `json:"socket_path"`
	CreatedAt    time.Time `json:"created_at"`
	Status       Status    `json:"status"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// Registry operates against one on-disk state directory.
type Registry struct {
	dir string
}

func New(stateDir string) *Registry {
	return &Registry{dir: stateDir}
}

// Create writes a new session descriptor for scriptPath, keyed by its
// absolute-path digest. Called by the launcher before the daemon process
// is fully up, so the initial status is "starting".
func (r *Registry) Create(scriptPath string, pid int) (*Session, error) {
	abs, err := filepath.Abs(scriptPath)
	if err != nil {
		return nil, fmt.Errorf("registry: resolve %s: %w", scriptPath, err)
	}
	if err := config.EnsureStateDir(r.dir); err != nil {
		return nil, fmt.Errorf("registry: ensure state dir: %w", err)
	}
	id := config.SessionID(abs)
	s := &Session{
		ID:         id,
		ScriptPath: abs,
		PID:        pid,
		SocketPath: config.SocketPath(r.dir, id),
		CreatedAt:  time.Now(),
		Status:     StatusStarting,
	}
	if err := r.write(s); err != nil {
		return nil, err
	}
	return s, nil
}

// Update applies mutate to the current on-disk descriptor and writes it
// back. If the existing file fails to parse, the mutated session entirely
// replaces it rather than aborting — a corrupt descriptor should never
// wedge a session that is otherwise alive.
func (r *Registry) Update(id string, mutate func(*Session)) (*Session, error) {
	path := config.DescriptorPath(r.dir, id)
	s, err := readDescriptor(path)
	if err != nil {
		s = &Session{ID: id}
	}
	mutate(s)
	if err := r.write(s); err != nil {
		return nil, err
	}
	return s, nil
}

// FindActive looks up the session for scriptPath and returns it only if its
// recorded pid is still alive. A dead pid causes both the descriptor and
// its socket to be deleted, and (nil, nil) is returned — matching
// find_active's "never trusts a dead pid" contract.
func (r *Registry) FindActive(scriptPath string) (*Session, error) {
	abs, err := filepath.Abs(scriptPath)
	if err != nil {
		return nil, fmt.Errorf("registry: resolve %s: %w", scriptPath, err)
	}
	id := config.SessionID(abs)
	path := config.DescriptorPath(r.dir, id)
	s, err := readDescriptor(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("registry: read %s: %w", path, err)
	}
	if !isAlive(s.PID) {
		r.reap(s)
		return nil, nil
	}
	return s, nil
}

// ListActive scans the state directory for session descriptors, reaping
// any whose pid is no longer alive, and returns the rest.
func (r *Registry) ListActive() ([]*Session, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("registry: read dir %s: %w", r.dir, err)
	}
	var active []*Session
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !isDescriptorName(name) {
			continue
		}
		s, err := readDescriptor(filepath.Join(r.dir, name))
		if err != nil {
			continue
		}
		if !isAlive(s.PID) {
			r.reap(s)
			continue
		}
		active = append(active, s)
	}
	return active, nil
}

// Delete unlinks a session's descriptor and socket. Missing files are not
// errors.
func (r *Registry) Delete(s *Session) error {
	for _, p := range []string{config.DescriptorPath(r.dir, s.ID), s.SocketPath} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("registry: remove %s: %w", p, err)
		}
	}
	return nil
}

func (r *Registry) reap(s *Session) {
	r.Delete(s)
}

func (r *Registry) write(s *Session) error {
	if err := config.EnsureStateDir(r.dir); err != nil {
		return fmt.Errorf("registry: ensure state dir: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("registry: marshal session %s: %w", s.ID, err)
	}
	path := config.DescriptorPath(r.dir, s.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("registry: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("registry: rename %s: %w", tmp, err)
	}
	return nil
}

func readDescriptor(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	if s.ID == "" {
		s.ID = descriptorID(filepath.Base(path))
	}
	return &s, nil
}

func descriptorID(filename string) string {
	name := filename
	name = name[len("debug_"):]
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '.' {
			return name[:i]
		}
	}
	return name
}

func isDescriptorName(name string) bool {
	return len(name) > len("debug_.json") && name[:6] == "debug_" && name[len(name)-5:] == ".json"
}

// isAlive sends signal 0 to pid: success or "process exists but not owned
// by us" both count as alive; ESRCH means the process is gone.
func isAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	if err == nil {
		return true
	}
	if err == unix.EPERM {
		return true
	}
	return false
}
