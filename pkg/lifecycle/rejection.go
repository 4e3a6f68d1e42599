package lifecycle

import (
	"context"
	"fmt"

	"github.com/fieldsafe/sentinel/pkg/contracts"
)

// RejectionEntries returns all rejection entries recorded against an
// inspection, resolved and unresolved, oldest first.
func (m *Machine) RejectionEntries(ctx context.Context, inspectionID string) ([]contracts.RejectionEntry, error) {
	if _, err := m.Get(ctx, inspectionID); err != nil {
		return nil, err
	}
	entries, err := m.store.ListRejectionEntries(ctx, inspectionID)
	if err != nil {
		return nil, fmt.Errorf("list rejection entries: %w", err)
	}
	return entries, nil
}

// UnresolvedItemIDs returns the template items still flagged for rework.
// Satisfies the response ledger's RejectionSource, which narrows editing on
// rejected inspections to exactly these items.
func (m *Machine) UnresolvedItemIDs(ctx context.Context, inspectionID string) ([]string, error) {
	entries, err := m.store.ListRejectionEntries(ctx, inspectionID)
	if err != nil {
		return nil, fmt.Errorf("list rejection entries: %w", err)
	}
	seen := make(map[string]bool)
	var ids []string
	for _, e := range entries {
		if !e.Unresolved() || e.TemplateItemID == "" {
			continue
		}
		if seen[e.TemplateItemID] {
			continue
		}
		seen[e.TemplateItemID] = true
		ids = append(ids, e.TemplateItemID)
	}
	return ids, nil
}
