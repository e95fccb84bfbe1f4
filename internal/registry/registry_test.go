package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/alonw0/scriptdbg/internal/config"
)

func TestCreateFindActiveDelete(t *testing.T) {
	dir := t.TempDir()
	r := New(dir)

	script := filepath.Join(dir, "target.ms")
	os.WriteFile(script, []byte("let x = 1\n"), 0644)

	s, err := r.Create(script, os.Getpid())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if s.Status != StatusStarting {
		t.Fatalf("expected starting status, got %s", s.Status)
	}

	found, err := r.FindActive(script)
	if err != nil {
		t.Fatalf("FindActive: %v", err)
	}
	if found == nil || found.ID != s.ID {
		t.Fatalf("expected to find session %s, got %+v", s.ID, found)
	}

	if err := r.Delete(found); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(config.DescriptorPath(dir, s.ID)); !os.IsNotExist(err) {
		t.Fatal("descriptor file should be gone after Delete")
	}
}

func TestFindActiveReapsDeadPID(t *testing.T) {
	dir := t.TempDir()
	r := New(dir)
	script := filepath.Join(dir, "target.ms")

	// A pid that is vanishingly unlikely to be alive.
	const deadPID = 1 << 30
	s, err := r.Create(script, deadPID)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	found, err := r.FindActive(script)
	if err != nil {
		t.Fatalf("FindActive: %v", err)
	}
	if found != nil {
		t.Fatalf("expected dead session to be reaped, got %+v", found)
	}
	if _, err := os.Stat(config.DescriptorPath(dir, s.ID)); !os.IsNotExist(err) {
		t.Fatal("descriptor should have been removed by reap")
	}
}

func TestListActiveSkipsDeadSessions(t *testing.T) {
	dir := t.TempDir()
	r := New(dir)

	aliveScript := filepath.Join(dir, "a.ms")
	deadScript := filepath.Join(dir, "b.ms")
	r.Create(aliveScript, os.Getpid())
	r.Create(deadScript, 1<<30)

	sessions, err := r.ListActive()
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected exactly one live session, got %d", len(sessions))
	}
	if sessions[0].ScriptPath != aliveScript {
		t.Fatalf("expected %s, got %s", aliveScript, sessions[0].ScriptPath)
	}
}

func TestUpdateReplacesCorruptDescriptor(t *testing.T) {
	dir := t.TempDir()
	r := New(dir)
	script := filepath.Join(dir, "target.ms")
	s, _ := r.Create(script, os.Getpid())

	os.WriteFile(config.DescriptorPath(dir, s.ID), []byte("{not json"), 0644)

	updated, err := r.Update(s.ID, func(sess *Session) {
		sess.Status = StatusPaused
		sess.ScriptPath = script
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Status != StatusPaused {
		t.Fatalf("expected replaced descriptor to carry new status, got %s", updated.Status)
	}
}
