package api

import (
	"net/http"

	"github.com/fieldsafe/sentinel/pkg/contracts"
	"github.com/fieldsafe/sentinel/pkg/lifecycle"
)

type startInspectionRequest struct {
	TemplateID  string `json:"template_id"`
	InspectorID string `json:"inspector_id,omitempty"`
	Origin      string `json:"origin,omitempty"`
	Location    string `json:"location,omitempty"`
	LocationID  string `json:"location_id,omitempty"`
}

func (s *Server) handleStartInspection(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req startInspectionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.TemplateID == "" {
		WriteBadRequest(w, "Missing required field: template_id")
		return
	}

	insp, err := s.machine.Start(r.Context(), actor, lifecycle.StartInput{
		TemplateID:  req.TemplateID,
		InspectorID: req.InspectorID,
		Origin:      contracts.InspectionOrigin(req.Origin),
		Location:    req.Location,
		LocationID:  req.LocationID,
	})
	if err != nil {
		WriteFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, insp)
}

func (s *Server) handleListInspections(w http.ResponseWriter, r *http.Request) {
	inspections, err := s.machine.List(r.Context())
	if err != nil {
		WriteFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"inspections": inspections})
}

func (s *Server) handleGetInspection(w http.ResponseWriter, r *http.Request) {
	insp, err := s.machine.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, insp)
}

func (s *Server) handleDeleteInspection(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	if err := s.machine.DeleteDraft(r.Context(), actor, r.PathValue("id")); err != nil {
		WriteFault(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.machine.Summarize(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleEvaluation reports what currently blocks submission, without
// attempting the transition.
func (s *Server) handleEvaluation(w http.ResponseWriter, r *http.Request) {
	eval, err := s.machine.EvaluateSubmission(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"eligible":   eval.Eligible(),
		"evaluation": eval,
	})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	insp, err := s.machine.Submit(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		WriteFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, insp)
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	insp, err := s.machine.Approve(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		WriteFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, insp)
}

type rejectRequest struct {
	Reason  string `json:"reason"`
	Entries []struct {
		TemplateItemID       string `json:"template_item_id"`
		Reason               string `json:"reason,omitempty"`
		FollowUpInstructions string `json:"follow_up_instructions,omitempty"`
	} `json:"entries,omitempty"`
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req rejectRequest
	if !decodeBody(w, r, &req) {
		return
	}

	in := lifecycle.RejectInput{Reason: req.Reason}
	for _, e := range req.Entries {
		in.Entries = append(in.Entries, lifecycle.RejectEntryInput{
			TemplateItemID:       e.TemplateItemID,
			Reason:               e.Reason,
			FollowUpInstructions: e.FollowUpInstructions,
		})
	}

	insp, err := s.machine.Reject(r.Context(), actor, r.PathValue("id"), in)
	if err != nil {
		WriteFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, insp)
}

type noteRequest struct {
	Body string `json:"body"`
}

func (s *Server) handleInspectionNote(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req noteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	insp, err := s.machine.AddNote(r.Context(), actor.ID, r.PathValue("id"), req.Body)
	if err != nil {
		WriteFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, insp)
}

func (s *Server) handleRejectionEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := s.machine.RejectionEntries(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
