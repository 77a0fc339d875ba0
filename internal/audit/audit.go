// Package audit keeps a local log of vault operations in sqlite. Entries
// name the operation only; passwords, usernames, and key material are never
// written here.
package audit

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const createSchema = `
CREATE TABLE IF NOT EXISTS vault_access_log (
	id         TEXT PRIMARY KEY,
	action     TEXT NOT NULL,
	detail     TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_access_log_created ON vault_access_log(created_at);
`

// Entry is one logged operation.
type Entry struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Log wraps the sqlite access log.
type Log struct {
	conn *sql.DB
}

// Open opens or creates the audit database at the given path.
func Open(path string) (*Log, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening audit database: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("setting %s: %w", pragma, err)
		}
	}

	if _, err := conn.Exec(createSchema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("creating audit schema: %w", err)
	}
	return &Log{conn: conn}, nil
}

// Close closes the database connection.
func (l *Log) Close() error {
	return l.conn.Close()
}

// Record writes an audit entry. Best-effort: the vault never fails an
// operation because its audit trail could not be written.
func (l *Log) Record(action, detail string) {
	_, _ = l.conn.Exec(
		`INSERT INTO vault_access_log (id, action, detail, created_at) VALUES (?, ?, ?, ?)`,
		uuid.NewString(), action, detail, time.Now().UTC().Format(time.RFC3339),
	)
}

// Recent retrieves the newest entries, newest first.
func (l *Log) Recent(limit int) ([]Entry, error) {
	rows, err := l.conn.Query(
		"SELECT id, action, detail, created_at FROM vault_access_log ORDER BY created_at DESC, id LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var createdAt string
		if err := rows.Scan(&e.ID, &e.Action, &e.Detail, &createdAt); err != nil {
			return nil, err
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
