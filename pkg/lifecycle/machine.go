// Package lifecycle implements the inspection state machine:
//
//	draft -> submitted -> approved
//	                   -> rejected -> submitted (rework)
//
// Approved is terminal. Submission is gated by the guard package; review
// transitions are gated by the reviewer role. Every transition is appended
// to the audit trail and published as a domain event after persistence.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/fieldsafe/sentinel/pkg/audit"
	"github.com/fieldsafe/sentinel/pkg/auth"
	"github.com/fieldsafe/sentinel/pkg/contracts"
	"github.com/fieldsafe/sentinel/pkg/fault"
	"github.com/fieldsafe/sentinel/pkg/guard"
	"github.com/fieldsafe/sentinel/pkg/lock"
)

// Store is the persistence surface the machine needs.
type Store interface {
	// GetInspection returns nil, nil when the inspection does not exist.
	GetInspection(ctx context.Context, id string) (*contracts.Inspection, error)
	PutInspection(ctx context.Context, insp *contracts.Inspection) error
	DeleteInspection(ctx context.Context, id string) error
	ListInspections(ctx context.Context) ([]contracts.Inspection, error)

	PutRejectionEntry(ctx context.Context, entry *contracts.RejectionEntry) error
	ListRejectionEntries(ctx context.Context, inspectionID string) ([]contracts.RejectionEntry, error)
	// ResolveRejectionEntries marks all unresolved entries resolved.
	ResolveRejectionEntries(ctx context.Context, inspectionID string, resolvedAt time.Time) error
}

// TemplateSource resolves template snapshots.
type TemplateSource interface {
	Get(id string) (*contracts.Template, error)
}

// ResponseSource lists an inspection's responses in template order.
type ResponseSource interface {
	ListForInspection(ctx context.Context, inspectionID string, tpl *contracts.Template) ([]contracts.Response, error)
}

// ActionSource lists an inspection's corrective actions.
type ActionSource interface {
	ListForInspection(ctx context.Context, inspectionID string) ([]contracts.CorrectiveAction, error)
}

// EventSink receives domain events after successful transitions.
type EventSink interface {
	Publish(ctx context.Context, evt contracts.Event) error
}

// Machine drives inspection lifecycle transitions. All transitions for one
// inspection serialize on its keyed lock, shared with the response ledger.
type Machine struct {
	store     Store
	templates TemplateSource
	responses ResponseSource
	actions   ActionSource
	events    EventSink
	trail     audit.Logger
	locks     *lock.Keyed
	logger    *slog.Logger
	clock     func() time.Time
	newID     func() string
}

// New creates a Machine.
func New(store Store, templates TemplateSource, responses ResponseSource, actions ActionSource,
	events EventSink, trail audit.Logger, locks *lock.Keyed, logger *slog.Logger) *Machine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{
		store:     store,
		templates: templates,
		responses: responses,
		actions:   actions,
		events:    events,
		trail:     trail,
		locks:     locks,
		logger:    logger,
		clock:     time.Now,
		newID:     uuid.NewString,
	}
}

// WithClock overrides the time source. Test hook.
func (m *Machine) WithClock(clock func() time.Time) *Machine {
	m.clock = clock
	return m
}

// StartInput describes a new inspection.
type StartInput struct {
	TemplateID  string
	InspectorID string // defaults to the acting user
	Origin      contracts.InspectionOrigin
	Location    string
	LocationID  string
}

// Start creates a draft inspection against a registered template.
func (m *Machine) Start(ctx context.Context, actor *auth.Actor, in StartInput) (*contracts.Inspection, error) {
	if _, err := m.templates.Get(in.TemplateID); err != nil {
		return nil, err
	}
	inspectorID := in.InspectorID
	if inspectorID == "" {
		inspectorID = actor.ID
	}
	origin := in.Origin
	if origin == "" {
		origin = contracts.OriginIndependent
	}

	now := m.clock().UTC()
	insp := &contracts.Inspection{
		ID:          m.newID(),
		TemplateID:  in.TemplateID,
		InspectorID: inspectorID,
		CreatedByID: actor.ID,
		Status:      contracts.InspectionDraft,
		Origin:      origin,
		Location:    norm.NFC.String(in.Location),
		LocationID:  in.LocationID,
		StartedAt:   now,
	}
	if err := m.store.PutInspection(ctx, insp); err != nil {
		return nil, fmt.Errorf("store inspection: %w", err)
	}
	m.audit(ctx, "inspection.start", insp.ID, map[string]any{
		"template_id": in.TemplateID,
		"inspector":   inspectorID,
		"origin":      origin,
	})
	m.logger.Info("inspection started",
		"inspection_id", insp.ID,
		"template_id", in.TemplateID,
		"inspector_id", inspectorID)
	return insp, nil
}

// Get returns an inspection or NotFound.
func (m *Machine) Get(ctx context.Context, id string) (*contracts.Inspection, error) {
	insp, err := m.store.GetInspection(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load inspection: %w", err)
	}
	if insp == nil {
		return nil, fault.New(fault.NotFound, "inspection %s not found", id)
	}
	return insp, nil
}

// List returns all inspections.
func (m *Machine) List(ctx context.Context) ([]contracts.Inspection, error) {
	return m.store.ListInspections(ctx)
}

// Template returns the template snapshot an inspection runs against.
func (m *Machine) Template(ctx context.Context, inspectionID string) (*contracts.Template, error) {
	insp, err := m.Get(ctx, inspectionID)
	if err != nil {
		return nil, err
	}
	return m.templates.Get(insp.TemplateID)
}

// EvaluateSubmission runs the submission guard read-only.
func (m *Machine) EvaluateSubmission(ctx context.Context, id string) (*guard.Evaluation, error) {
	insp, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	eval, _, err := m.evaluate(ctx, insp)
	return eval, err
}

func (m *Machine) evaluate(ctx context.Context, insp *contracts.Inspection) (*guard.Evaluation, []contracts.Response, error) {
	tpl, err := m.templates.Get(insp.TemplateID)
	if err != nil {
		return nil, nil, err
	}
	responses, err := m.responses.ListForInspection(ctx, insp.ID, tpl)
	if err != nil {
		return nil, nil, err
	}
	actions, err := m.actions.ListForInspection(ctx, insp.ID)
	if err != nil {
		return nil, nil, err
	}
	eval := guard.Evaluate(tpl, responses, actions)
	return &eval, responses, nil
}

// Submit moves a draft or rejected inspection to submitted, recomputing the
// overall score. The guard runs under the inspection lock so no response
// edit can slip between evaluation and the transition.
//
// Resubmission after rejection does not resolve rejection entries; they
// stay open until the reviewer approves.
func (m *Machine) Submit(ctx context.Context, actor *auth.Actor, id string) (*contracts.Inspection, error) {
	defer m.locks.Lock(id)()

	insp, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if insp.Status != contracts.InspectionDraft && insp.Status != contracts.InspectionRejected {
		return nil, fault.New(fault.InvalidState, "inspection %s is %s and cannot be submitted", id, insp.Status)
	}
	if actor.ID != insp.InspectorID && !actor.IsReviewer() {
		return nil, fault.New(fault.Forbidden, "only the assigned inspector may submit inspection %s", id)
	}

	eval, responses, err := m.evaluate(ctx, insp)
	if err != nil {
		return nil, err
	}
	if !eval.Eligible() {
		return nil, fault.New(fault.PreconditionFailed, "inspection %s is not eligible for submission", id).
			WithDetails(eval)
	}

	now := m.clock().UTC()
	insp.Status = contracts.InspectionSubmitted
	insp.SubmittedAt = &now
	insp.OverallScore = guard.Score(responses)
	if err := m.store.PutInspection(ctx, insp); err != nil {
		return nil, fmt.Errorf("store inspection: %w", err)
	}

	meta := map[string]any{}
	if insp.OverallScore != nil {
		meta["score"] = *insp.OverallScore
	}
	m.audit(ctx, "inspection.submit", id, meta)
	m.publish(ctx, contracts.Event{
		ID:           m.newID(),
		Type:         contracts.EventInspectionSubmitted,
		InspectionID: id,
		ActorID:      actor.ID,
		OccurredAt:   now,
		Payload:      meta,
	})
	m.logger.Info("inspection submitted", "inspection_id", id, "score", insp.OverallScore)
	return insp, nil
}

// Approve finalizes a submitted inspection. Reviewer gate. Approval
// implicitly resolves any rejection entries still open from earlier rounds.
func (m *Machine) Approve(ctx context.Context, actor *auth.Actor, id string) (*contracts.Inspection, error) {
	defer m.locks.Lock(id)()

	insp, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if insp.Status != contracts.InspectionSubmitted {
		return nil, fault.New(fault.InvalidState, "inspection %s is %s; only submitted inspections can be approved", id, insp.Status)
	}
	if !actor.IsReviewer() {
		return nil, fault.New(fault.Forbidden, "approval requires the reviewer role")
	}

	now := m.clock().UTC()
	if err := m.store.ResolveRejectionEntries(ctx, id, now); err != nil {
		return nil, fmt.Errorf("resolve rejection entries: %w", err)
	}
	insp.Status = contracts.InspectionApproved
	insp.ApprovedAt = &now
	if err := m.store.PutInspection(ctx, insp); err != nil {
		return nil, fmt.Errorf("store inspection: %w", err)
	}

	m.audit(ctx, "inspection.approve", id, nil)
	m.publish(ctx, contracts.Event{
		ID:           m.newID(),
		Type:         contracts.EventInspectionApproved,
		InspectionID: id,
		ActorID:      actor.ID,
		OccurredAt:   now,
	})
	m.logger.Info("inspection approved", "inspection_id", id, "by", actor.ID)
	return insp, nil
}

// RejectEntryInput flags one template item for rework.
type RejectEntryInput struct {
	TemplateItemID       string
	Reason               string
	FollowUpInstructions string
}

// RejectInput describes a rejection round.
type RejectInput struct {
	Reason  string
	Entries []RejectEntryInput
}

// Reject sends a submitted inspection back for rework. Reviewer gate.
// At least one entry is required, and every entry must name an item whose
// current response is fail: passing items are never sent back. The entries
// define the rework scope.
func (m *Machine) Reject(ctx context.Context, actor *auth.Actor, id string, in RejectInput) (*contracts.Inspection, error) {
	defer m.locks.Lock(id)()

	insp, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if insp.Status != contracts.InspectionSubmitted {
		return nil, fault.New(fault.InvalidState, "inspection %s is %s; only submitted inspections can be rejected", id, insp.Status)
	}
	if !actor.IsReviewer() {
		return nil, fault.New(fault.Forbidden, "rejection requires the reviewer role")
	}
	if in.Reason == "" {
		return nil, fault.New(fault.InvalidArgument, "rejection reason is required")
	}
	if len(in.Entries) == 0 {
		return nil, fault.New(fault.InvalidArgument, "at least one rejection entry is required")
	}

	tpl, err := m.templates.Get(insp.TemplateID)
	if err != nil {
		return nil, err
	}
	responses, err := m.responses.ListForInspection(ctx, id, tpl)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	failing := make(map[string]bool, len(responses))
	for i := range responses {
		if responses[i].Result == contracts.ResultFail {
			failing[responses[i].TemplateItemID] = true
		}
	}
	for _, e := range in.Entries {
		if tpl.Item(e.TemplateItemID) == nil {
			return nil, fault.New(fault.InvalidArgument, "rejection entry references unknown template item %s", e.TemplateItemID)
		}
		if !failing[e.TemplateItemID] {
			return nil, fault.New(fault.InvalidArgument, "rejection entry targets item %s, which has no failing response", e.TemplateItemID)
		}
	}

	now := m.clock().UTC()
	for _, e := range in.Entries {
		entry := &contracts.RejectionEntry{
			ID:                   m.newID(),
			InspectionID:         id,
			TemplateItemID:       e.TemplateItemID,
			Reason:               e.Reason,
			FollowUpInstructions: e.FollowUpInstructions,
			CreatedAt:            now,
			CreatedByID:          actor.ID,
		}
		if err := m.store.PutRejectionEntry(ctx, entry); err != nil {
			return nil, fmt.Errorf("store rejection entry: %w", err)
		}
	}

	insp.Status = contracts.InspectionRejected
	insp.RejectedAt = &now
	insp.RejectionReason = in.Reason
	insp.RejectedByID = actor.ID
	if err := m.store.PutInspection(ctx, insp); err != nil {
		return nil, fmt.Errorf("store inspection: %w", err)
	}

	m.audit(ctx, "inspection.reject", id, map[string]any{
		"reason":  in.Reason,
		"entries": len(in.Entries),
	})
	m.publish(ctx, contracts.Event{
		ID:           m.newID(),
		Type:         contracts.EventInspectionRejected,
		InspectionID: id,
		ActorID:      actor.ID,
		OccurredAt:   now,
		Payload:      map[string]any{"reason": in.Reason},
	})
	m.logger.Info("inspection rejected", "inspection_id", id, "by", actor.ID, "entries", len(in.Entries))
	return insp, nil
}

// DeleteDraft removes an inspection that never left draft. Only the
// inspector, the creator, or a reviewer may delete it, and not once any
// attached action has been closed.
func (m *Machine) DeleteDraft(ctx context.Context, actor *auth.Actor, id string) error {
	defer m.locks.Lock(id)()

	insp, err := m.Get(ctx, id)
	if err != nil {
		return err
	}
	if insp.Status != contracts.InspectionDraft {
		return fault.New(fault.InvalidState, "inspection %s is %s; only drafts can be deleted", id, insp.Status)
	}
	if actor.ID != insp.InspectorID && actor.ID != insp.CreatedByID && !actor.IsReviewer() {
		return fault.New(fault.Forbidden, "actor %s may not delete inspection %s", actor.ID, id)
	}
	actions, err := m.actions.ListForInspection(ctx, id)
	if err != nil {
		return fmt.Errorf("list actions: %w", err)
	}
	for i := range actions {
		if actions[i].Status == contracts.ActionClosed {
			return fault.New(fault.InvalidState,
				"inspection %s has closed action %s; completed remediation work cannot be discarded", id, actions[i].ID)
		}
	}
	if err := m.store.DeleteInspection(ctx, id); err != nil {
		return fmt.Errorf("delete inspection: %w", err)
	}
	m.audit(ctx, "inspection.delete", id, nil)
	return nil
}

// AddNote appends a note to the inspection's log. Notes are allowed in any
// state; they never change lifecycle status.
func (m *Machine) AddNote(ctx context.Context, actorID, id, body string) (*contracts.Inspection, error) {
	if body == "" {
		return nil, fault.New(fault.InvalidArgument, "note body is required")
	}

	defer m.locks.Lock(id)()

	insp, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	insp.Notes = append(insp.Notes, contracts.Note{
		ID:        m.newID(),
		AuthorID:  actorID,
		Body:      body,
		CreatedAt: m.clock().UTC(),
	})
	if err := m.store.PutInspection(ctx, insp); err != nil {
		return nil, fmt.Errorf("store inspection: %w", err)
	}
	return insp, nil
}

func (m *Machine) audit(ctx context.Context, action, inspectionID string, metadata map[string]any) {
	if m.trail == nil {
		return
	}
	if err := m.trail.Record(ctx, audit.EventMutation, action, "inspection:"+inspectionID, metadata); err != nil {
		m.logger.Warn("audit record failed", "action", action, "error", err)
	}
}

func (m *Machine) publish(ctx context.Context, evt contracts.Event) {
	if m.events == nil {
		return
	}
	if err := m.events.Publish(ctx, evt); err != nil {
		m.logger.Warn("event publish failed", "type", evt.Type, "error", err)
	}
}
