package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fieldsafe/sentinel/pkg/contracts"
)

// PutRejectionEntry inserts a rejection entry.
func (s *SQLite) PutRejectionEntry(ctx context.Context, e *contracts.RejectionEntry) error {
	query := `
	INSERT INTO rejection_entries
		(id, inspection_id, template_item_id, reason, follow_up_instructions,
		 created_at, created_by_id, resolved_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		e.ID, e.InspectionID, e.TemplateItemID, e.Reason, e.FollowUpInstructions,
		encodeTime(e.CreatedAt), e.CreatedByID, encodeTimePtr(e.ResolvedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert rejection entry: %w", err)
	}
	return nil
}

// ListRejectionEntries returns all entries for an inspection, oldest first.
func (s *SQLite) ListRejectionEntries(ctx context.Context, inspectionID string) ([]contracts.RejectionEntry, error) {
	query := `
	SELECT id, inspection_id, template_item_id, reason, follow_up_instructions,
	       created_at, created_by_id, resolved_at
	FROM rejection_entries
	WHERE inspection_id = ?
	ORDER BY created_at ASC`
	rows, err := s.db.QueryContext(ctx, query, inspectionID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []contracts.RejectionEntry
	for rows.Next() {
		var e contracts.RejectionEntry
		var createdAt string
		var resolvedAt sql.NullString
		if err := rows.Scan(
			&e.ID, &e.InspectionID, &e.TemplateItemID, &e.Reason, &e.FollowUpInstructions,
			&createdAt, &e.CreatedByID, &resolvedAt,
		); err != nil {
			return nil, err
		}
		if e.CreatedAt, err = decodeTime(createdAt); err != nil {
			return nil, err
		}
		if e.ResolvedAt, err = decodeTimePtr(resolvedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ResolveRejectionEntries marks all unresolved entries for an inspection
// resolved.
func (s *SQLite) ResolveRejectionEntries(ctx context.Context, inspectionID string, resolvedAt time.Time) error {
	query := `
	UPDATE rejection_entries SET resolved_at = ?
	WHERE inspection_id = ? AND resolved_at IS NULL`
	if _, err := s.db.ExecContext(ctx, query, encodeTime(resolvedAt), inspectionID); err != nil {
		return fmt.Errorf("failed to resolve rejection entries: %w", err)
	}
	return nil
}
