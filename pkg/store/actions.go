package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fieldsafe/sentinel/pkg/contracts"
)

const actionColumns = `id, inspection_id, response_id, title, description, severity, status,
	occurrence_severity, injury_severity, due_date, assigned_to_id,
	work_order_required, work_order_number, evidence_refs, notes,
	started_by_id, closed_by_id, closed_at, resolution_notes, created_at, updated_at`

// GetAction returns nil, nil when the action does not exist.
func (s *SQLite) GetAction(ctx context.Context, id string) (*contracts.CorrectiveAction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+actionColumns+` FROM actions WHERE id = ?`, id)
	action, err := scanAction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return action, err
}

// PutAction inserts or replaces the action row.
func (s *SQLite) PutAction(ctx context.Context, a *contracts.CorrectiveAction) error {
	refsJSON, err := encodeJSON(a.EvidenceRefs)
	if err != nil {
		return err
	}
	notesJSON, err := encodeJSON(a.Notes)
	if err != nil {
		return err
	}
	query := `
	INSERT INTO actions (` + actionColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (id) DO UPDATE SET
		title = excluded.title,
		description = excluded.description,
		severity = excluded.severity,
		status = excluded.status,
		due_date = excluded.due_date,
		assigned_to_id = excluded.assigned_to_id,
		work_order_required = excluded.work_order_required,
		work_order_number = excluded.work_order_number,
		evidence_refs = excluded.evidence_refs,
		notes = excluded.notes,
		closed_by_id = excluded.closed_by_id,
		closed_at = excluded.closed_at,
		resolution_notes = excluded.resolution_notes,
		updated_at = excluded.updated_at`
	_, err = s.db.ExecContext(ctx, query,
		a.ID, a.InspectionID, a.ResponseID, a.Title, a.Description,
		string(a.Severity), string(a.Status),
		string(a.OccurrenceSeverity), string(a.InjurySeverity),
		encodeTimePtr(a.DueDate), a.AssignedToID,
		boolToInt(a.WorkOrderRequired), a.WorkOrderNumber, refsJSON, notesJSON,
		a.StartedByID, a.ClosedByID, encodeTimePtr(a.ClosedAt), a.ResolutionNotes,
		encodeTime(a.CreatedAt), encodeTime(a.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert action: %w", err)
	}
	return nil
}

// ListActionsForInspection returns all actions on an inspection, oldest
// first.
func (s *SQLite) ListActionsForInspection(ctx context.Context, inspectionID string) ([]contracts.CorrectiveAction, error) {
	return s.listActions(ctx,
		`SELECT `+actionColumns+` FROM actions WHERE inspection_id = ? ORDER BY created_at ASC`,
		inspectionID)
}

// ListOpenActionsForTemplateItem returns open-family actions raised
// against any response answering the template item, across inspections.
func (s *SQLite) ListOpenActionsForTemplateItem(ctx context.Context, templateItemID string) ([]contracts.CorrectiveAction, error) {
	return s.listActions(ctx,
		`SELECT `+actionColumns+` FROM actions
		 WHERE status IN ('open', 'in_progress')
		   AND response_id IN (SELECT id FROM responses WHERE template_item_id = ?)
		 ORDER BY created_at ASC`,
		templateItemID)
}

// ListOpenActions returns every open-family action. Used by the sweep.
func (s *SQLite) ListOpenActions(ctx context.Context) ([]contracts.CorrectiveAction, error) {
	return s.listActions(ctx,
		`SELECT `+actionColumns+` FROM actions WHERE status IN ('open', 'in_progress')`)
}

func (s *SQLite) listActions(ctx context.Context, query string, args ...any) ([]contracts.CorrectiveAction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []contracts.CorrectiveAction
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func scanAction(row rowScanner) (*contracts.CorrectiveAction, error) {
	var a contracts.CorrectiveAction
	var severity, status, occ, inj, createdAt, updatedAt string
	var workOrderRequired int
	var dueDate, closedAt, refs, notes sql.NullString

	err := row.Scan(
		&a.ID, &a.InspectionID, &a.ResponseID, &a.Title, &a.Description,
		&severity, &status, &occ, &inj,
		&dueDate, &a.AssignedToID,
		&workOrderRequired, &a.WorkOrderNumber, &refs, &notes,
		&a.StartedByID, &a.ClosedByID, &closedAt, &a.ResolutionNotes,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Severity = contracts.Severity(severity)
	a.Status = contracts.ActionStatus(status)
	a.OccurrenceSeverity = contracts.Severity(occ)
	a.InjurySeverity = contracts.Severity(inj)
	a.WorkOrderRequired = workOrderRequired != 0
	if a.DueDate, err = decodeTimePtr(dueDate); err != nil {
		return nil, err
	}
	if a.ClosedAt, err = decodeTimePtr(closedAt); err != nil {
		return nil, err
	}
	if a.CreatedAt, err = decodeTime(createdAt); err != nil {
		return nil, err
	}
	if a.UpdatedAt, err = decodeTime(updatedAt); err != nil {
		return nil, err
	}
	if err := decodeJSON(refs, &a.EvidenceRefs); err != nil {
		return nil, fmt.Errorf("corrupt evidence_refs JSON on action %s: %w", a.ID, err)
	}
	if err := decodeJSON(notes, &a.Notes); err != nil {
		return nil, fmt.Errorf("corrupt notes JSON on action %s: %w", a.ID, err)
	}
	return &a, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
