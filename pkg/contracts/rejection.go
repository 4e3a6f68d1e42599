package contracts

import "time"

// RejectionEntry records one template item a reviewer sent back for rework.
// An inspection accumulates entries across rejection rounds; only entries
// with ResolvedAt == nil define the current rework scope.
//
//nolint:govet // fieldalignment: struct layout is human-readable
type RejectionEntry struct {
	ID             string `json:"id"`
	InspectionID   string `json:"inspection_id"`
	TemplateItemID string `json:"template_item_id"`

	Reason               string `json:"reason"`
	FollowUpInstructions string `json:"follow_up_instructions,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	CreatedByID string     `json:"created_by_id"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}

// Unresolved reports whether the entry still scopes rework.
func (e *RejectionEntry) Unresolved() bool {
	return e.ResolvedAt == nil
}
