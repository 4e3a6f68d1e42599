package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fieldsafe/sentinel/pkg/contracts"
)

const inspectionColumns = `id, template_id, inspector_id, created_by_id, status, origin,
	location, location_id, overall_score, started_at, submitted_at, approved_at,
	rejected_at, rejection_reason, rejected_by_id, notes`

// GetInspection returns nil, nil when the inspection does not exist.
func (s *SQLite) GetInspection(ctx context.Context, id string) (*contracts.Inspection, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+inspectionColumns+` FROM inspections WHERE id = ?`, id)
	insp, err := scanInspection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return insp, err
}

// PutInspection inserts or replaces the inspection row.
func (s *SQLite) PutInspection(ctx context.Context, insp *contracts.Inspection) error {
	notesJSON, err := encodeJSON(insp.Notes)
	if err != nil {
		return err
	}
	query := `
	INSERT INTO inspections (` + inspectionColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (id) DO UPDATE SET
		status = excluded.status,
		overall_score = excluded.overall_score,
		submitted_at = excluded.submitted_at,
		approved_at = excluded.approved_at,
		rejected_at = excluded.rejected_at,
		rejection_reason = excluded.rejection_reason,
		rejected_by_id = excluded.rejected_by_id,
		location = excluded.location,
		location_id = excluded.location_id,
		notes = excluded.notes`
	_, err = s.db.ExecContext(ctx, query,
		insp.ID, insp.TemplateID, insp.InspectorID, insp.CreatedByID,
		string(insp.Status), string(insp.Origin), insp.Location, insp.LocationID,
		insp.OverallScore, encodeTime(insp.StartedAt),
		encodeTimePtr(insp.SubmittedAt), encodeTimePtr(insp.ApprovedAt), encodeTimePtr(insp.RejectedAt),
		insp.RejectionReason, insp.RejectedByID, notesJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert inspection: %w", err)
	}
	return nil
}

// DeleteInspection removes the inspection and its dependent rows.
func (s *SQLite) DeleteInspection(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range []string{
		`DELETE FROM rejection_entries WHERE inspection_id = ?`,
		`DELETE FROM actions WHERE inspection_id = ?`,
		`DELETE FROM responses WHERE inspection_id = ?`,
		`DELETE FROM inspections WHERE id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return fmt.Errorf("failed to delete inspection: %w", err)
		}
	}
	return tx.Commit()
}

// ListInspections returns all inspections, newest first.
func (s *SQLite) ListInspections(ctx context.Context) ([]contracts.Inspection, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+inspectionColumns+` FROM inspections ORDER BY started_at DESC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []contracts.Inspection
	for rows.Next() {
		insp, err := scanInspection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *insp)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInspection(row rowScanner) (*contracts.Inspection, error) {
	var insp contracts.Inspection
	var status, origin, startedAt string
	var score sql.NullFloat64
	var submittedAt, approvedAt, rejectedAt, notes sql.NullString

	err := row.Scan(
		&insp.ID, &insp.TemplateID, &insp.InspectorID, &insp.CreatedByID,
		&status, &origin, &insp.Location, &insp.LocationID,
		&score, &startedAt, &submittedAt, &approvedAt,
		&rejectedAt, &insp.RejectionReason, &insp.RejectedByID, &notes,
	)
	if err != nil {
		return nil, err
	}
	insp.Status = contracts.InspectionStatus(status)
	insp.Origin = contracts.InspectionOrigin(origin)
	if score.Valid {
		insp.OverallScore = &score.Float64
	}
	if insp.StartedAt, err = decodeTime(startedAt); err != nil {
		return nil, err
	}
	if insp.SubmittedAt, err = decodeTimePtr(submittedAt); err != nil {
		return nil, err
	}
	if insp.ApprovedAt, err = decodeTimePtr(approvedAt); err != nil {
		return nil, err
	}
	if insp.RejectedAt, err = decodeTimePtr(rejectedAt); err != nil {
		return nil, err
	}
	if err := decodeJSON(notes, &insp.Notes); err != nil {
		return nil, fmt.Errorf("corrupt notes JSON on inspection %s: %w", insp.ID, err)
	}
	return &insp, nil
}
