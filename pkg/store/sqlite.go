// Package store persists the engine's state. SQLite is the primary
// backend; Memory backs tests and demos. Both satisfy the store interfaces
// the ledger, tracker, state machine, and sweeper define.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLite is the file-backed store.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and runs migrations.
// Use ":memory:" for an ephemeral database.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// modernc sqlite serializes writes itself, but a single connection
	// avoids SQLITE_BUSY under concurrent transactions.
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS inspections (
		id               TEXT PRIMARY KEY,
		template_id      TEXT NOT NULL,
		inspector_id     TEXT NOT NULL,
		created_by_id    TEXT NOT NULL,
		status           TEXT NOT NULL,
		origin           TEXT NOT NULL,
		location         TEXT NOT NULL DEFAULT '',
		location_id      TEXT NOT NULL DEFAULT '',
		overall_score    REAL,
		started_at       DATETIME NOT NULL,
		submitted_at     DATETIME,
		approved_at      DATETIME,
		rejected_at      DATETIME,
		rejection_reason TEXT NOT NULL DEFAULT '',
		rejected_by_id   TEXT NOT NULL DEFAULT '',
		notes            JSON
	);
	CREATE TABLE IF NOT EXISTS responses (
		id               TEXT PRIMARY KEY,
		inspection_id    TEXT NOT NULL,
		template_item_id TEXT NOT NULL,
		result           TEXT NOT NULL,
		note             TEXT NOT NULL DEFAULT '',
		evidence_refs    JSON,
		notes            JSON,
		created_at       DATETIME NOT NULL,
		updated_at       DATETIME NOT NULL,
		UNIQUE (inspection_id, template_item_id)
	);
	CREATE TABLE IF NOT EXISTS actions (
		id                  TEXT PRIMARY KEY,
		inspection_id       TEXT NOT NULL,
		response_id         TEXT NOT NULL,
		title               TEXT NOT NULL,
		description         TEXT NOT NULL DEFAULT '',
		severity            TEXT NOT NULL,
		status              TEXT NOT NULL,
		occurrence_severity TEXT NOT NULL DEFAULT '',
		injury_severity     TEXT NOT NULL DEFAULT '',
		due_date            DATETIME,
		assigned_to_id      TEXT NOT NULL DEFAULT '',
		work_order_required INTEGER NOT NULL DEFAULT 0,
		work_order_number   TEXT NOT NULL DEFAULT '',
		evidence_refs       JSON,
		notes               JSON,
		started_by_id       TEXT NOT NULL DEFAULT '',
		closed_by_id        TEXT NOT NULL DEFAULT '',
		closed_at           DATETIME,
		resolution_notes    TEXT NOT NULL DEFAULT '',
		created_at          DATETIME NOT NULL,
		updated_at          DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_actions_inspection ON actions (inspection_id);
	CREATE INDEX IF NOT EXISTS idx_actions_response ON actions (response_id);
	CREATE TABLE IF NOT EXISTS rejection_entries (
		id                     TEXT PRIMARY KEY,
		inspection_id          TEXT NOT NULL,
		template_item_id       TEXT NOT NULL DEFAULT '',
		reason                 TEXT NOT NULL DEFAULT '',
		follow_up_instructions TEXT NOT NULL DEFAULT '',
		created_at             DATETIME NOT NULL,
		created_by_id          TEXT NOT NULL,
		resolved_at            DATETIME
	);
	CREATE INDEX IF NOT EXISTS idx_rejections_inspection ON rejection_entries (inspection_id);
	`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

// --- column helpers -------------------------------------------------------

func encodeTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func encodeTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return encodeTime(*t)
}

func decodeTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func decodeTimePtr(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := decodeTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func encodeJSON(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func decodeJSON(ns sql.NullString, v any) error {
	if !ns.Valid || ns.String == "" || ns.String == "null" {
		return nil
	}
	return json.Unmarshal([]byte(ns.String), v)
}
