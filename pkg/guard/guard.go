// Package guard implements the submission-eligibility check for
// inspections.
//
// Evaluate is a pure function over a template snapshot plus the
// inspection's responses and corrective actions; it never mutates state.
// The state machine calls it under the inspection lock immediately before
// transitioning to submitted, and the API exposes it read-only so UIs can
// render blocking reasons before offering a submit button.
package guard

import "github.com/fieldsafe/sentinel/pkg/contracts"

// BlockReason explains why a failing response blocks submission.
type BlockReason string

const (
	// ReasonMissingAction — the failing response has no corrective action.
	ReasonMissingAction BlockReason = "missing_action"
	// ReasonMissingEvidence — actions exist but neither the response nor
	// any of its actions carries evidence.
	ReasonMissingEvidence BlockReason = "missing_evidence"
)

// MissingItem identifies a required template item with no usable response.
type MissingItem struct {
	TemplateItemID string `json:"template_item_id"`
	Prompt         string `json:"prompt"`
}

// FailingItem identifies a fail response that blocks submission.
type FailingItem struct {
	TemplateItemID string      `json:"template_item_id"`
	ResponseID     string      `json:"response_id"`
	Prompt         string      `json:"prompt"`
	Reason         BlockReason `json:"reason"`
}

// Evaluation is the structured result of a submission check. Both lists
// empty means the inspection is eligible to submit.
type Evaluation struct {
	MissingRequiredItems []MissingItem `json:"missing_required_items"`
	FailingResponses     []FailingItem `json:"failing_responses"`
}

// Eligible reports whether nothing blocks submission.
func (e *Evaluation) Eligible() bool {
	return len(e.MissingRequiredItems) == 0 && len(e.FailingResponses) == 0
}

// Evaluate runs the submission guard.
//
// Rules, in template order:
//   - every required item needs a response with a result other than unset;
//   - every fail response on an evidence-requiring item needs at least one
//     corrective action, and evidence on the response or on one of its
//     actions (evidence may live at the observation point or at the
//     remediation point — either satisfies the audit requirement);
//   - fail responses on items with EvidenceRequiredOnFail == false never
//     block;
//   - responses that reference no current template item are ignored
//     (template drift repair is out of scope).
func Evaluate(tpl *contracts.Template, responses []contracts.Response, actions []contracts.CorrectiveAction) Evaluation {
	byItem := make(map[string]*contracts.Response, len(responses))
	for i := range responses {
		byItem[responses[i].TemplateItemID] = &responses[i]
	}

	actionsByResponse := make(map[string][]*contracts.CorrectiveAction)
	for i := range actions {
		if actions[i].ResponseID != "" {
			actionsByResponse[actions[i].ResponseID] = append(actionsByResponse[actions[i].ResponseID], &actions[i])
		}
	}

	var eval Evaluation
	for _, item := range tpl.FlatItems() {
		resp := byItem[item.ID]

		if item.Required && (resp == nil || resp.Result == contracts.ResultUnset) {
			eval.MissingRequiredItems = append(eval.MissingRequiredItems, MissingItem{
				TemplateItemID: item.ID,
				Prompt:         item.Prompt,
			})
		}
		if resp == nil || resp.Result != contracts.ResultFail {
			continue
		}
		if !item.EvidenceRequiredOnFail {
			continue
		}

		attached := actionsByResponse[resp.ID]
		if len(attached) == 0 {
			eval.FailingResponses = append(eval.FailingResponses, FailingItem{
				TemplateItemID: item.ID,
				ResponseID:     resp.ID,
				Prompt:         item.Prompt,
				Reason:         ReasonMissingAction,
			})
			continue
		}

		if resp.HasEvidence() {
			continue
		}
		evidenced := false
		for _, a := range attached {
			if a.HasEvidence() {
				evidenced = true
				break
			}
		}
		if !evidenced {
			eval.FailingResponses = append(eval.FailingResponses, FailingItem{
				TemplateItemID: item.ID,
				ResponseID:     resp.ID,
				Prompt:         item.Prompt,
				Reason:         ReasonMissingEvidence,
			})
		}
	}

	return eval
}
