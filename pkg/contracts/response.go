package contracts

import "time"

// Result is the inspector's recorded outcome for one template item.
type Result string

const (
	ResultPass  Result = "pass"
	ResultFail  Result = "fail"
	ResultNA    Result = "n/a"
	ResultUnset Result = "unset"
)

// Scorable reports whether the result participates in the overall score.
func (r Result) Scorable() bool {
	return r == ResultPass || r == ResultFail
}

// Valid reports whether r is one of the recognized results.
func (r Result) Valid() bool {
	switch r {
	case ResultPass, ResultFail, ResultNA, ResultUnset:
		return true
	}
	return false
}

// Response is an inspector's answer to one template item within one
// inspection. At most one Response exists per (inspection, template item).
//
//nolint:govet // fieldalignment: struct layout is human-readable
type Response struct {
	ID             string `json:"id"`
	InspectionID   string `json:"inspection_id"`
	TemplateItemID string `json:"template_item_id"`
	Result         Result `json:"result"`
	Note           string `json:"note,omitempty"`

	// EvidenceRefs are opaque references to attached evidence, ordered as
	// supplied. The engine counts them; it never interprets them.
	EvidenceRefs []string `json:"evidence_refs,omitempty"`

	Notes []Note `json:"notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasEvidence reports whether at least one evidence reference is attached.
func (r *Response) HasEvidence() bool {
	for _, ref := range r.EvidenceRefs {
		if ref != "" {
			return true
		}
	}
	return false
}
