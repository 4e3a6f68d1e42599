package lifecycle

import (
	"context"

	"github.com/fieldsafe/sentinel/pkg/contracts"
	"github.com/fieldsafe/sentinel/pkg/guard"
)

// Summary is the JSON report for one inspection: lifecycle state, result
// counts, score, action totals, and — while the inspection is editable —
// the current submission evaluation.
type Summary struct {
	Inspection contracts.Inspection `json:"inspection"`

	TemplateName    string `json:"template_name"`
	TemplateVersion string `json:"template_version"`

	Counts struct {
		Pass       int `json:"pass"`
		Fail       int `json:"fail"`
		NA         int `json:"na"`
		Unanswered int `json:"unanswered"`
	} `json:"counts"`

	OpenActions    int `json:"open_actions"`
	OverdueActions int `json:"overdue_actions"`

	UnresolvedRejections int `json:"unresolved_rejections"`

	// Evaluation is present only while the inspection is still editable.
	Evaluation *guard.Evaluation `json:"evaluation,omitempty"`
}

// Summarize assembles the report for one inspection.
func (m *Machine) Summarize(ctx context.Context, id string) (*Summary, error) {
	insp, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	tpl, err := m.templates.Get(insp.TemplateID)
	if err != nil {
		return nil, err
	}
	responses, err := m.responses.ListForInspection(ctx, id, tpl)
	if err != nil {
		return nil, err
	}
	actions, err := m.actions.ListForInspection(ctx, id)
	if err != nil {
		return nil, err
	}
	entries, err := m.store.ListRejectionEntries(ctx, id)
	if err != nil {
		return nil, err
	}

	s := &Summary{
		Inspection:      *insp,
		TemplateName:    tpl.Name,
		TemplateVersion: tpl.Version,
	}

	answered := make(map[string]bool)
	for _, r := range responses {
		switch r.Result {
		case contracts.ResultPass:
			s.Counts.Pass++
		case contracts.ResultFail:
			s.Counts.Fail++
		case contracts.ResultNA:
			s.Counts.NA++
		}
		if r.Result != contracts.ResultUnset {
			answered[r.TemplateItemID] = true
		}
	}
	for _, item := range tpl.FlatItems() {
		if !answered[item.ID] {
			s.Counts.Unanswered++
		}
	}

	now := m.clock()
	for i := range actions {
		if actions[i].Status.OpenFamily() {
			s.OpenActions++
		}
		if actions[i].Overdue(now) {
			s.OverdueActions++
		}
	}
	for _, e := range entries {
		if e.Unresolved() {
			s.UnresolvedRejections++
		}
	}

	if insp.Status.Editable() {
		eval := guard.Evaluate(tpl, responses, actions)
		s.Evaluation = &eval
	}
	return s, nil
}
