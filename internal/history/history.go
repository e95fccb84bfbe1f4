// Package history implements the optional session History Log (§3, §11):
// an append-only sqlite table of stop and eval events, migrated exactly as
// the teacher's internal/store.Open/migrate does it — a schema_migrations
// table plus embedded, sorted, per-file transactional migrations. It is
// never consulted by tracing or dispatch decisions; purely a post-hoc read
// surface for the "history" command. This is explicitly not time-travel
// debugging: nothing here ever rehydrates a frame or resumes from a past
// point.
package history

import (
	"database/sql"
	"embed"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Kind discriminates the two event shapes a session can record.
type Kind string

const (
	KindStop Kind = "stop"
	KindEval Kind = "eval"
)

// Event is one row of the history log, in read order.
type Event struct {
	SessionID     string
	Seq           int
	Kind          Kind
	StopReason    string
	Location      string
	Command       string
	ResultSummary string
	RecordedAt    time.Time
}

// Log wraps the history database. A nil *Log is valid and silently no-ops
// every write (history is optional, per config.Settings.HistoryEnabled).
type Log struct {
	db *sql.DB
}

// Open opens (creating if absent) the sqlite-backed history log at dsn and
// applies any pending migrations.
func Open(dsn string) (*Log, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: set WAL mode: %w", err)
	}
	l := &Log{db: db}
	if err := l.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: migrate: %w", err)
	}
	return l, nil
}

func (l *Log) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

func (l *Log) migrate() error {
	if _, err := l.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, f := range files {
		var applied int
		err := l.db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = ?", f).Scan(&applied)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", f, err)
		}
		if applied > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + f)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", f, err)
		}

		tx, err := l.db.Begin()
		if err != nil {
			return fmt.Errorf("begin tx for %s: %w", f, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", f, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", f); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %s: %w", f, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", f, err)
		}
	}
	return nil
}

// RecordStop appends a stop event. Failures are logged by the caller and
// never turn a dispatch response into an error (§4.6).
func (l *Log) RecordStop(sessionID string, seq int, reason, location string) error {
	if l == nil || l.db == nil {
		return nil
	}
	_, err := l.db.Exec(
		`INSERT INTO history_events (session_id, seq, kind, stop_reason, location) VALUES (?, ?, ?, ?, ?)`,
		sessionID, seq, KindStop, reason, location,
	)
	return err
}

// RecordEval appends an eval event, with a truncated result summary rather
// than the full (possibly large) formatted value.
func (l *Log) RecordEval(sessionID string, seq int, command, resultSummary string) error {
	if l == nil || l.db == nil {
		return nil
	}
	_, err := l.db.Exec(
		`INSERT INTO history_events (session_id, seq, kind, command, result_summary) VALUES (?, ?, ?, ?, ?)`,
		sessionID, seq, KindEval, command, resultSummary,
	)
	return err
}

// Recent returns the most recent count events for sessionID, oldest first.
// An absent log (nil *Log) or a log with no matching rows both report an
// empty slice, never an error (§4.6 — "absent history log is reported as an
// empty list, never an error").
func (l *Log) Recent(sessionID string, count int) ([]Event, error) {
	if l == nil || l.db == nil {
		return nil, nil
	}
	if count <= 0 {
		count = 20
	}
	rows, err := l.db.Query(
		`SELECT session_id, seq, kind, COALESCE(stop_reason, ''), COALESCE(location, ''),
		        COALESCE(command, ''), COALESCE(result_summary, ''), recorded_at
		 FROM history_events WHERE session_id = ? ORDER BY seq DESC LIMIT ?`,
		sessionID, count,
	)
	if err != nil {
		return nil, fmt.Errorf("history: query: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var kind string
		if err := rows.Scan(&e.SessionID, &e.Seq, &kind, &e.StopReason, &e.Location, &e.Command, &e.ResultSummary, &e.RecordedAt); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		e.Kind = Kind(kind)
		events = append(events, e)
	}
	// Reverse back to chronological order (the query is DESC so LIMIT
	// keeps the most recent rows).
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	return events, nil
}
