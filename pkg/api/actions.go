package api

import (
	"net/http"
	"time"

	"github.com/fieldsafe/sentinel/pkg/contracts"
	"github.com/fieldsafe/sentinel/pkg/tracker"
)

type createActionRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	OccurrenceSeverity string `json:"occurrence_severity,omitempty"`
	InjurySeverity     string `json:"injury_severity,omitempty"`
	Severity           string `json:"severity,omitempty"`

	DueDate      *time.Time `json:"due_date,omitempty"`
	AssignedToID string     `json:"assigned_to_id,omitempty"`

	WorkOrderRequired bool   `json:"work_order_required,omitempty"`
	WorkOrderNumber   string `json:"work_order_number,omitempty"`

	EvidenceRefs []string `json:"evidence_refs,omitempty"`
}

func (s *Server) handleCreateAction(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req createActionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	resp, err := s.ledger.Get(r.Context(), r.PathValue("id"), r.PathValue("itemID"))
	if err != nil {
		WriteFault(w, r, err)
		return
	}

	result, err := s.tracker.Create(r.Context(), actor, resp, tracker.CreateInput{
		Title:              req.Title,
		Description:        req.Description,
		OccurrenceSeverity: contracts.Severity(req.OccurrenceSeverity),
		InjurySeverity:     contracts.Severity(req.InjurySeverity),
		Severity:           contracts.Severity(req.Severity),
		DueDate:            req.DueDate,
		AssignedToID:       req.AssignedToID,
		WorkOrderRequired:  req.WorkOrderRequired,
		WorkOrderNumber:    req.WorkOrderNumber,
		EvidenceRefs:       req.EvidenceRefs,
	})
	if err != nil {
		WriteFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"action":          result.Action,
		"duplicate_of_id": result.DuplicateOfID,
	})
}

func (s *Server) handleGetAction(w http.ResponseWriter, r *http.Request) {
	action, err := s.tracker.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, action)
}

func (s *Server) handleListInspectionActions(w http.ResponseWriter, r *http.Request) {
	inspectionID := r.PathValue("id")
	if _, err := s.machine.Get(r.Context(), inspectionID); err != nil {
		WriteFault(w, r, err)
		return
	}
	actions, err := s.tracker.ListForInspection(r.Context(), inspectionID)
	if err != nil {
		WriteFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"actions": actions})
}

func (s *Server) handleStartAction(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	action, err := s.tracker.Start(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		WriteFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, action)
}

type closeActionRequest struct {
	ResolutionNotes string   `json:"resolution_notes"`
	WorkOrderNumber string   `json:"work_order_number,omitempty"`
	EvidenceRefs    []string `json:"evidence_refs,omitempty"`
}

func (s *Server) handleCloseAction(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req closeActionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	action, err := s.tracker.Close(r.Context(), actor, r.PathValue("id"), tracker.CloseInput{
		ResolutionNotes: req.ResolutionNotes,
		WorkOrderNumber: req.WorkOrderNumber,
		EvidenceRefs:    req.EvidenceRefs,
	})
	if err != nil {
		WriteFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, action)
}

func (s *Server) handleReopenAction(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	action, err := s.tracker.Reopen(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		WriteFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, action)
}

type reassignActionRequest struct {
	AssignedToID string `json:"assigned_to_id"`
}

func (s *Server) handleReassignAction(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req reassignActionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.AssignedToID == "" {
		WriteBadRequest(w, "Missing required field: assigned_to_id")
		return
	}
	action, err := s.tracker.Reassign(r.Context(), actor, r.PathValue("id"), req.AssignedToID)
	if err != nil {
		WriteFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, action)
}

func (s *Server) handleActionNote(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req noteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	action, err := s.tracker.AddNote(r.Context(), actor, r.PathValue("id"), req.Body)
	if err != nil {
		WriteFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, action)
}

// handleOpenActionsByItem lists open actions raised against one template
// item across all inspections. Clients surface this before raising a new
// action so a recurring failure does not fan out into parallel work.
func (s *Server) handleOpenActionsByItem(w http.ResponseWriter, r *http.Request) {
	actions, err := s.tracker.FindOpenByTemplateItem(r.Context(), r.PathValue("itemID"))
	if err != nil {
		WriteFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"actions": actions})
}

// handleOverdueActions serves the sweep's latest overdue snapshot. The list
// is an annotation refreshed in the background, not live state.
func (s *Server) handleOverdueActions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.overdue.IDs(r.Context())
	if err != nil {
		WriteInternal(w, err)
		return
	}
	actions := make([]*contracts.CorrectiveAction, 0, len(ids))
	for _, id := range ids {
		action, err := s.tracker.Get(r.Context(), id)
		if err != nil {
			// Closed or deleted since the last sweep pass.
			continue
		}
		actions = append(actions, action)
	}
	writeJSON(w, http.StatusOK, map[string]any{"actions": actions})
}
