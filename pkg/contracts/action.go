package contracts

import "time"

// ActionStatus is the lifecycle state of a corrective action.
//
// open and in_progress are both "open family": presentation layers may
// collapse them, but gating logic only ever distinguishes closed from
// not-closed via OpenFamily.
type ActionStatus string

const (
	ActionOpen       ActionStatus = "open"
	ActionInProgress ActionStatus = "in_progress"
	ActionClosed     ActionStatus = "closed"
)

// OpenFamily reports whether the action still counts as open for gating
// (submission guard, overdue sweep, duplicate detection).
func (s ActionStatus) OpenFamily() bool {
	return s == ActionOpen || s == ActionInProgress
}

// Severity of a corrective action.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Valid reports whether s is a recognized severity.
func (s Severity) Valid() bool {
	return s == SeverityLow || s == SeverityMedium || s == SeverityHigh
}

// CorrectiveAction is a remediation record created against a failing
// response.
//
//nolint:govet // fieldalignment: struct layout is human-readable
type CorrectiveAction struct {
	ID           string `json:"id"`
	InspectionID string `json:"inspection_id"`
	ResponseID   string `json:"response_id"`

	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Severity    Severity     `json:"severity"`
	Status      ActionStatus `json:"status"`

	// The two risk axes the severity was derived from, when supplied.
	// Empty when a caller used the direct-severity compatibility path.
	OccurrenceSeverity Severity `json:"occurrence_severity,omitempty"`
	InjurySeverity     Severity `json:"injury_severity,omitempty"`

	DueDate      *time.Time `json:"due_date,omitempty"`
	AssignedToID string     `json:"assigned_to_id,omitempty"`

	WorkOrderRequired bool   `json:"work_order_required"`
	WorkOrderNumber   string `json:"work_order_number,omitempty"`

	EvidenceRefs []string `json:"evidence_refs,omitempty"`
	Notes        []Note   `json:"notes,omitempty"`

	StartedByID     string     `json:"started_by_id"`
	ClosedByID      string     `json:"closed_by_id,omitempty"`
	ClosedAt        *time.Time `json:"closed_at,omitempty"`
	ResolutionNotes string     `json:"resolution_notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasEvidence reports whether at least one evidence reference is attached.
func (a *CorrectiveAction) HasEvidence() bool {
	for _, ref := range a.EvidenceRefs {
		if ref != "" {
			return true
		}
	}
	return false
}

// Overdue reports whether the action is open family with a due date in the
// past. Overdue is a derived annotation, never a lifecycle state.
func (a *CorrectiveAction) Overdue(now time.Time) bool {
	return a.Status.OpenFamily() && a.DueDate != nil && a.DueDate.Before(now)
}
