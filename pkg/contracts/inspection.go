package contracts

import "time"

// InspectionStatus is the lifecycle state of an inspection.
type InspectionStatus string

const (
	InspectionDraft     InspectionStatus = "draft"
	InspectionSubmitted InspectionStatus = "submitted"
	InspectionApproved  InspectionStatus = "approved"
	InspectionRejected  InspectionStatus = "rejected"
)

// Editable reports whether the inspector may still mutate responses.
// Rejected inspections are editable only within the rework scope, which the
// ledger enforces separately.
func (s InspectionStatus) Editable() bool {
	return s == InspectionDraft || s == InspectionRejected
}

// Terminal reports whether no further transitions are possible.
func (s InspectionStatus) Terminal() bool {
	return s == InspectionApproved
}

// InspectionOrigin records how an inspection came to exist.
type InspectionOrigin string

const (
	OriginIndependent InspectionOrigin = "independent"
	OriginAssignment  InspectionOrigin = "assignment"
)

// Inspection is one filled (or in-progress) checklist run.
//
//nolint:govet // fieldalignment: struct layout is human-readable
type Inspection struct {
	ID          string           `json:"id"`
	TemplateID  string           `json:"template_id"`
	InspectorID string           `json:"inspector_id"`
	CreatedByID string           `json:"created_by_id"`
	Status      InspectionStatus `json:"status"`
	Origin      InspectionOrigin `json:"origin"`

	Location   string `json:"location,omitempty"`
	LocationID string `json:"location_id,omitempty"`

	// OverallScore is the percentage of pass results among scorable
	// (pass/fail) responses, computed at submission. Nil when the
	// inspection has never been submitted or had nothing scorable.
	OverallScore *float64 `json:"overall_score,omitempty"`

	StartedAt   time.Time  `json:"started_at"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	ApprovedAt  *time.Time `json:"approved_at,omitempty"`
	RejectedAt  *time.Time `json:"rejected_at,omitempty"`

	// Rejection metadata for the most recent rejection round. Per-item
	// scope lives in RejectionEntry rows.
	RejectionReason string `json:"rejection_reason,omitempty"`
	RejectedByID    string `json:"rejected_by_id,omitempty"`

	Notes []Note `json:"notes,omitempty"`
}
