package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fieldsafe/sentinel/pkg/contracts"
)

// Outbox persists events to Postgres for external consumers. Appends are
// idempotent on event id, so a retried publish never duplicates a row.
type Outbox struct {
	db *sql.DB
}

// NewOutbox creates an Outbox over an open Postgres handle.
func NewOutbox(db *sql.DB) *Outbox {
	return &Outbox{db: db}
}

// Migrate creates the outbox table.
func (o *Outbox) Migrate(ctx context.Context) error {
	_, err := o.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS event_outbox (
			id           TEXT PRIMARY KEY,
			event_type   TEXT NOT NULL,
			event_json   JSONB NOT NULL,
			scheduled_at TIMESTAMPTZ NOT NULL,
			status       TEXT NOT NULL DEFAULT 'PENDING'
		)`)
	if err != nil {
		return fmt.Errorf("migrate event outbox: %w", err)
	}
	return nil
}

// Append schedules an event for delivery.
func (o *Outbox) Append(ctx context.Context, evt contracts.Event) error {
	eventJSON, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO event_outbox (id, event_type, event_json, scheduled_at, status)
		VALUES ($1, $2, $3, $4, 'PENDING')
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := o.db.ExecContext(ctx, query, evt.ID, string(evt.Type), eventJSON, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

// OutboxRecord is one pending delivery.
type OutboxRecord struct {
	ID        string
	Event     contracts.Event
	Scheduled time.Time
	Status    string
}

// GetPending returns undelivered events, oldest first.
func (o *Outbox) GetPending(ctx context.Context) ([]*OutboxRecord, error) {
	query := `
		SELECT id, event_json, scheduled_at, status
		FROM event_outbox
		WHERE status = 'PENDING'
		ORDER BY scheduled_at ASC
	`
	rows, err := o.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	//nolint:prealloc // result count unknown from SQL query
	var results []*OutboxRecord
	for rows.Next() {
		var id, status string
		var eventJSON []byte
		var scheduledAt time.Time

		if err := rows.Scan(&id, &eventJSON, &scheduledAt, &status); err != nil {
			return nil, err
		}

		var evt contracts.Event
		if err := json.Unmarshal(eventJSON, &evt); err != nil {
			return nil, fmt.Errorf("corrupt event JSON in outbox record %s: %w", id, err)
		}
		results = append(results, &OutboxRecord{
			ID:        id,
			Event:     evt,
			Scheduled: scheduledAt,
			Status:    status,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// MarkDone marks an event delivered.
func (o *Outbox) MarkDone(ctx context.Context, id string) error {
	query := `UPDATE event_outbox SET status = 'DONE' WHERE id = $1`
	_, err := o.db.ExecContext(ctx, query, id)
	return err
}
