package api

import (
	"net/http"

	"github.com/fieldsafe/sentinel/pkg/contracts"
	"github.com/fieldsafe/sentinel/pkg/ledger"
)

type upsertResponseRequest struct {
	Result       string   `json:"result"`
	Note         string   `json:"note,omitempty"`
	EvidenceRefs []string `json:"evidence_refs,omitempty"`
}

func (s *Server) handleUpsertResponse(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req upsertResponseRequest
	if !decodeBody(w, r, &req) {
		return
	}

	inspectionID := r.PathValue("id")
	insp, err := s.machine.Get(r.Context(), inspectionID)
	if err != nil {
		WriteFault(w, r, err)
		return
	}
	tpl, err := s.machine.Template(r.Context(), inspectionID)
	if err != nil {
		WriteFault(w, r, err)
		return
	}

	resp, err := s.ledger.Upsert(r.Context(), actor.ID, insp, tpl, ledger.UpsertInput{
		TemplateItemID: r.PathValue("itemID"),
		Result:         contracts.Result(req.Result),
		Note:           req.Note,
		EvidenceRefs:   req.EvidenceRefs,
	})
	if err != nil {
		WriteFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListResponses(w http.ResponseWriter, r *http.Request) {
	inspectionID := r.PathValue("id")
	if _, err := s.machine.Get(r.Context(), inspectionID); err != nil {
		WriteFault(w, r, err)
		return
	}
	tpl, err := s.machine.Template(r.Context(), inspectionID)
	if err != nil {
		WriteFault(w, r, err)
		return
	}
	responses, err := s.ledger.ListForInspection(r.Context(), inspectionID, tpl)
	if err != nil {
		WriteFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"responses": responses})
}
