// Package journal provides the SQLite-backed event journal.
// Every suppressed relay error and every job workflow transition is
// recorded here for operator visibility. The journal is best-effort:
// a write failure is counted and logged but never blocks or fails the
// relay path, and registry state itself is never persisted.
package journal

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)

	"github.com/techlink-io/techlink/internal/infra/metrics"
)

// Journal wraps a SQLite connection with WAL mode and migrations.
// A nil *Journal is valid and drops every write — the daemon uses that
// when journaling is disabled in config.
type Journal struct {
	db *sql.DB
}

// Event is one journaled entry.
type Event struct {
	ID     int64     `json:"id"`
	At     time.Time `json:"at"`
	Kind   string    `json:"kind"`
	ConnID string    `json:"connId,omitempty"`
	UserID string    `json:"userId,omitempty"`
	Detail string    `json:"detail,omitempty"`
}

// Open creates or opens the journal database at dir/events.db.
// Enables WAL mode and a 5-second busy timeout.
func Open(dir string) (*Journal, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, "events.db")
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// SQLite is single-writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	j := &Journal{db: db}
	if err := j.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return j, nil
}

// Close cleanly shuts down the database.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	return j.db.Close()
}

// Ping checks database connectivity. Used by the health checker.
func (j *Journal) Ping() error {
	if j == nil {
		return nil
	}
	return j.db.Ping()
}

// migrate runs idempotent schema migrations.
func (j *Journal) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS events (
			id      INTEGER PRIMARY KEY AUTOINCREMENT,
			ts      INTEGER NOT NULL,
			kind    TEXT NOT NULL,
			conn_id TEXT NOT NULL DEFAULT '',
			user_id TEXT NOT NULL DEFAULT '',
			detail  TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts)`,
		`CREATE INDEX IF NOT EXISTS idx_events_kind ON events(kind)`,
	}
	for _, m := range migrations {
		if _, err := j.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

// Record journals one event. Best-effort: failures are counted and
// logged, never returned to the relay path.
func (j *Journal) Record(kind, connID, userID, detail string) {
	if j == nil {
		return
	}
	_, err := j.db.Exec(
		`INSERT INTO events (ts, kind, conn_id, user_id, detail) VALUES (?, ?, ?, ?, ?)`,
		time.Now().UnixMilli(), kind, connID, userID, detail,
	)
	if err != nil {
		metrics.JournalErrors.Inc()
		log.Printf("[journal] record %s failed: %v", kind, err)
	}
}

// Counts returns per-kind event counts since the given time.
func (j *Journal) Counts(since time.Time) (map[string]int, error) {
	if j == nil {
		return map[string]int{}, nil
	}
	rows, err := j.db.Query(
		`SELECT kind, COUNT(*) FROM events WHERE ts >= ? GROUP BY kind`,
		since.UnixMilli(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		counts[kind] = n
	}
	return counts, rows.Err()
}

// Recent returns the newest events, most recent first.
func (j *Journal) Recent(limit int) ([]Event, error) {
	if j == nil {
		return nil, nil
	}
	rows, err := j.db.Query(
		`SELECT id, ts, kind, conn_id, user_id, detail
		 FROM events ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var ts int64
		if err := rows.Scan(&e.ID, &ts, &e.Kind, &e.ConnID, &e.UserID, &e.Detail); err != nil {
			return nil, err
		}
		e.At = time.UnixMilli(ts)
		events = append(events, e)
	}
	return events, rows.Err()
}

// Prune deletes events older than the retention window. Returns the
// number of rows removed.
func (j *Journal) Prune(olderThan time.Duration) (int64, error) {
	if j == nil {
		return 0, nil
	}
	res, err := j.db.Exec(
		`DELETE FROM events WHERE ts < ?`,
		time.Now().Add(-olderThan).UnixMilli(),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
