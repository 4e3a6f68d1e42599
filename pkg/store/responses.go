package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fieldsafe/sentinel/pkg/contracts"
)

const responseColumns = `id, inspection_id, template_item_id, result, note,
	evidence_refs, notes, created_at, updated_at`

// GetResponse returns nil, nil when no response exists for the pair.
func (s *SQLite) GetResponse(ctx context.Context, inspectionID, templateItemID string) (*contracts.Response, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+responseColumns+` FROM responses WHERE inspection_id = ? AND template_item_id = ?`,
		inspectionID, templateItemID)
	resp, err := scanResponse(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return resp, err
}

// PutResponse inserts or replaces the response row.
func (s *SQLite) PutResponse(ctx context.Context, resp *contracts.Response) error {
	refsJSON, err := encodeJSON(resp.EvidenceRefs)
	if err != nil {
		return err
	}
	notesJSON, err := encodeJSON(resp.Notes)
	if err != nil {
		return err
	}
	query := `
	INSERT INTO responses (` + responseColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (id) DO UPDATE SET
		result = excluded.result,
		note = excluded.note,
		evidence_refs = excluded.evidence_refs,
		notes = excluded.notes,
		updated_at = excluded.updated_at`
	_, err = s.db.ExecContext(ctx, query,
		resp.ID, resp.InspectionID, resp.TemplateItemID, string(resp.Result), resp.Note,
		refsJSON, notesJSON, encodeTime(resp.CreatedAt), encodeTime(resp.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert response: %w", err)
	}
	return nil
}

// ListResponses returns all responses for an inspection.
func (s *SQLite) ListResponses(ctx context.Context, inspectionID string) ([]contracts.Response, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+responseColumns+` FROM responses WHERE inspection_id = ?`, inspectionID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []contracts.Response
	for rows.Next() {
		resp, err := scanResponse(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *resp)
	}
	return out, rows.Err()
}

func scanResponse(row rowScanner) (*contracts.Response, error) {
	var resp contracts.Response
	var result, createdAt, updatedAt string
	var refs, notes sql.NullString

	err := row.Scan(
		&resp.ID, &resp.InspectionID, &resp.TemplateItemID, &result, &resp.Note,
		&refs, &notes, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	resp.Result = contracts.Result(result)
	if resp.CreatedAt, err = decodeTime(createdAt); err != nil {
		return nil, err
	}
	if resp.UpdatedAt, err = decodeTime(updatedAt); err != nil {
		return nil, err
	}
	if err := decodeJSON(refs, &resp.EvidenceRefs); err != nil {
		return nil, fmt.Errorf("corrupt evidence_refs JSON on response %s: %w", resp.ID, err)
	}
	if err := decodeJSON(notes, &resp.Notes); err != nil {
		return nil, fmt.Errorf("corrupt notes JSON on response %s: %w", resp.ID, err)
	}
	return &resp, nil
}
