// Package tracker manages corrective actions: remediation records raised
// against failing responses, carrying severity, assignment, deadlines, and
// the work-order gate that controls closure.
package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fieldsafe/sentinel/pkg/auth"
	"github.com/fieldsafe/sentinel/pkg/contracts"
	"github.com/fieldsafe/sentinel/pkg/fault"
	"github.com/fieldsafe/sentinel/pkg/lock"
)

// Store is the persistence surface the tracker needs.
type Store interface {
	// GetAction returns nil, nil when the action does not exist.
	GetAction(ctx context.Context, id string) (*contracts.CorrectiveAction, error)
	PutAction(ctx context.Context, action *contracts.CorrectiveAction) error
	ListActionsForInspection(ctx context.Context, inspectionID string) ([]contracts.CorrectiveAction, error)
	// ListOpenActionsForTemplateItem returns open-family actions raised
	// against any response answering the template item, across inspections.
	ListOpenActionsForTemplateItem(ctx context.Context, templateItemID string) ([]contracts.CorrectiveAction, error)
}

// EventSink receives domain events after successful state changes.
type EventSink interface {
	Publish(ctx context.Context, evt contracts.Event) error
}

// Tracker coordinates corrective-action writes. Close and reassign
// serialize on the action's keyed lock.
type Tracker struct {
	store  Store
	events EventSink
	locks  *lock.Keyed
	sla    SLA
	logger *slog.Logger
	clock  func() time.Time
	newID  func() string
}

// New creates a Tracker.
func New(store Store, events EventSink, locks *lock.Keyed, sla SLA, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		store:  store,
		events: events,
		locks:  locks,
		sla:    sla,
		logger: logger,
		clock:  time.Now,
		newID:  uuid.NewString,
	}
}

// WithClock overrides the time source. Test hook.
func (t *Tracker) WithClock(clock func() time.Time) *Tracker {
	t.clock = clock
	return t
}

// CreateInput describes a new corrective action.
type CreateInput struct {
	Title       string
	Description string

	// Either both risk axes (preferred) or Severity directly.
	OccurrenceSeverity contracts.Severity
	InjurySeverity     contracts.Severity
	Severity           contracts.Severity

	DueDate      *time.Time
	AssignedToID string

	WorkOrderRequired bool
	WorkOrderNumber   string

	EvidenceRefs []string
}

// CreateResult pairs the created action with any open actions already
// raised against the same template item, on this inspection or any other.
// A recurring failure shows up here round after round. Duplicates are
// advisory; creation is never blocked by them.
type CreateResult struct {
	Action        *contracts.CorrectiveAction
	DuplicateOfID []string
}

// Create raises a corrective action against a failing response.
func (t *Tracker) Create(ctx context.Context, actor *auth.Actor, resp *contracts.Response, in CreateInput) (*CreateResult, error) {
	if resp.Result != contracts.ResultFail {
		return nil, fault.New(fault.InvalidState, "response %s is %s; actions attach only to fail responses", resp.ID, resp.Result)
	}
	if in.Title == "" {
		return nil, fault.New(fault.InvalidArgument, "action title is required")
	}

	severity, occ, inj, err := resolveSeverity(in)
	if err != nil {
		return nil, err
	}

	now := t.clock().UTC()
	due := in.DueDate
	if due == nil {
		d := t.sla.Due(severity, now)
		due = &d
	}

	action := &contracts.CorrectiveAction{
		ID:                 t.newID(),
		InspectionID:       resp.InspectionID,
		ResponseID:         resp.ID,
		Title:              in.Title,
		Description:        in.Description,
		Severity:           severity,
		Status:             contracts.ActionOpen,
		OccurrenceSeverity: occ,
		InjurySeverity:     inj,
		DueDate:            due,
		AssignedToID:       in.AssignedToID,
		WorkOrderRequired:  in.WorkOrderRequired,
		WorkOrderNumber:    in.WorkOrderNumber,
		EvidenceRefs:       in.EvidenceRefs,
		StartedByID:        actor.ID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	existing, err := t.store.ListOpenActionsForTemplateItem(ctx, resp.TemplateItemID)
	if err != nil {
		return nil, fmt.Errorf("list open actions for item: %w", err)
	}
	var duplicates []string
	for _, a := range existing {
		duplicates = append(duplicates, a.ID)
	}

	if err := t.store.PutAction(ctx, action); err != nil {
		return nil, fmt.Errorf("store action: %w", err)
	}
	t.logger.Info("corrective action created",
		"action_id", action.ID,
		"inspection_id", action.InspectionID,
		"severity", action.Severity,
		"due", due,
		"duplicates", len(duplicates))
	return &CreateResult{Action: action, DuplicateOfID: duplicates}, nil
}

func resolveSeverity(in CreateInput) (severity, occ, inj contracts.Severity, err error) {
	if in.OccurrenceSeverity != "" || in.InjurySeverity != "" {
		if in.OccurrenceSeverity != "" && !in.OccurrenceSeverity.Valid() {
			return "", "", "", fault.New(fault.InvalidArgument, "occurrence severity %q is not recognized", in.OccurrenceSeverity)
		}
		if in.InjurySeverity != "" && !in.InjurySeverity.Valid() {
			return "", "", "", fault.New(fault.InvalidArgument, "injury severity %q is not recognized", in.InjurySeverity)
		}
		return DeriveSeverity(in.OccurrenceSeverity, in.InjurySeverity), in.OccurrenceSeverity, in.InjurySeverity, nil
	}
	// Direct severity is the compatibility path for callers without a risk
	// assessment. With nothing supplied the default is medium, the
	// conservative middle.
	if in.Severity == "" {
		return DeriveSeverity("", ""), "", "", nil
	}
	if !in.Severity.Valid() {
		return "", "", "", fault.New(fault.InvalidArgument, "severity %q is not recognized", in.Severity)
	}
	return in.Severity, "", "", nil
}

// Get returns an action or NotFound.
func (t *Tracker) Get(ctx context.Context, id string) (*contracts.CorrectiveAction, error) {
	action, err := t.store.GetAction(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load action: %w", err)
	}
	if action == nil {
		return nil, fault.New(fault.NotFound, "action %s not found", id)
	}
	return action, nil
}

// FindOpenByTemplateItem returns every open-family action raised against
// the template item, across inspections. This is the recurring-failure
// lookup behind the duplicate advisory on Create.
func (t *Tracker) FindOpenByTemplateItem(ctx context.Context, templateItemID string) ([]contracts.CorrectiveAction, error) {
	if templateItemID == "" {
		return nil, fault.New(fault.InvalidArgument, "template item id is required")
	}
	actions, err := t.store.ListOpenActionsForTemplateItem(ctx, templateItemID)
	if err != nil {
		return nil, fmt.Errorf("list open actions for item: %w", err)
	}
	return actions, nil
}

// ListForInspection returns all actions raised on an inspection.
func (t *Tracker) ListForInspection(ctx context.Context, inspectionID string) ([]contracts.CorrectiveAction, error) {
	actions, err := t.store.ListActionsForInspection(ctx, inspectionID)
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	return actions, nil
}

// Start moves an open action to in_progress. Only the assignee or a
// reviewer may start it.
func (t *Tracker) Start(ctx context.Context, actor *auth.Actor, id string) (*contracts.CorrectiveAction, error) {
	defer t.locks.Lock(id)()

	action, err := t.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if action.Status != contracts.ActionOpen {
		return nil, fault.New(fault.InvalidState, "action %s is %s; only open actions can be started", id, action.Status)
	}
	if !t.mayWork(actor, action) {
		return nil, fault.New(fault.Forbidden, "actor %s is neither the assignee nor a reviewer", actor.ID)
	}

	action.Status = contracts.ActionInProgress
	action.UpdatedAt = t.clock().UTC()
	if err := t.store.PutAction(ctx, action); err != nil {
		return nil, fmt.Errorf("store action: %w", err)
	}
	return action, nil
}

// CloseInput carries the fields required to close an action.
type CloseInput struct {
	ResolutionNotes string
	// WorkOrderNumber backfills the work-order reference at close time.
	WorkOrderNumber string
	EvidenceRefs    []string
}

// Close completes an action. Requires resolution notes, and when the
// action was flagged work-order-required, a work-order number recorded on
// the action or supplied here.
func (t *Tracker) Close(ctx context.Context, actor *auth.Actor, id string, in CloseInput) (*contracts.CorrectiveAction, error) {
	defer t.locks.Lock(id)()

	action, err := t.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if action.Status == contracts.ActionClosed {
		return nil, fault.New(fault.InvalidState, "action %s is already closed", id)
	}
	if !t.mayWork(actor, action) {
		return nil, fault.New(fault.Forbidden, "actor %s is neither the assignee nor a reviewer", actor.ID)
	}
	if in.ResolutionNotes == "" {
		return nil, fault.New(fault.InvalidArgument, "resolution notes are required to close an action")
	}
	if in.WorkOrderNumber != "" {
		action.WorkOrderNumber = in.WorkOrderNumber
	}
	if action.WorkOrderRequired && action.WorkOrderNumber == "" {
		return nil, fault.New(fault.PreconditionFailed, "action %s requires a work order number before it can be closed", id)
	}

	now := t.clock().UTC()
	action.Status = contracts.ActionClosed
	action.ClosedAt = &now
	action.ClosedByID = actor.ID
	action.ResolutionNotes = in.ResolutionNotes
	if len(in.EvidenceRefs) > 0 {
		action.EvidenceRefs = append(action.EvidenceRefs, in.EvidenceRefs...)
	}
	action.UpdatedAt = now

	if err := t.store.PutAction(ctx, action); err != nil {
		return nil, fmt.Errorf("store action: %w", err)
	}
	t.publish(ctx, contracts.Event{
		ID:           t.newID(),
		Type:         contracts.EventActionClosed,
		InspectionID: action.InspectionID,
		ActionID:     action.ID,
		ActorID:      actor.ID,
		OccurredAt:   now,
	})
	t.logger.Info("corrective action closed", "action_id", id, "closed_by", actor.ID)
	return action, nil
}

// Reopen returns a closed action to open. Reviewer gate.
func (t *Tracker) Reopen(ctx context.Context, actor *auth.Actor, id string) (*contracts.CorrectiveAction, error) {
	defer t.locks.Lock(id)()

	action, err := t.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if action.Status != contracts.ActionClosed {
		return nil, fault.New(fault.InvalidState, "action %s is %s; only closed actions can be reopened", id, action.Status)
	}
	if !actor.IsReviewer() {
		return nil, fault.New(fault.Forbidden, "reopening requires the reviewer role")
	}

	action.Status = contracts.ActionOpen
	action.ClosedAt = nil
	action.ClosedByID = ""
	action.ResolutionNotes = ""
	action.UpdatedAt = t.clock().UTC()
	if err := t.store.PutAction(ctx, action); err != nil {
		return nil, fmt.Errorf("store action: %w", err)
	}
	t.logger.Info("corrective action reopened", "action_id", id, "by", actor.ID)
	return action, nil
}

// Reassign changes the assignee. Reviewer gate.
func (t *Tracker) Reassign(ctx context.Context, actor *auth.Actor, id, assigneeID string) (*contracts.CorrectiveAction, error) {
	if assigneeID == "" {
		return nil, fault.New(fault.InvalidArgument, "assignee id is required")
	}

	defer t.locks.Lock(id)()

	action, err := t.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsReviewer() {
		return nil, fault.New(fault.Forbidden, "reassignment requires the reviewer role")
	}
	if action.Status == contracts.ActionClosed {
		return nil, fault.New(fault.InvalidState, "action %s is closed and cannot be reassigned", id)
	}

	now := t.clock().UTC()
	previous := action.AssignedToID
	action.AssignedToID = assigneeID
	action.UpdatedAt = now
	if err := t.store.PutAction(ctx, action); err != nil {
		return nil, fmt.Errorf("store action: %w", err)
	}
	t.publish(ctx, contracts.Event{
		ID:           t.newID(),
		Type:         contracts.EventActionReassigned,
		InspectionID: action.InspectionID,
		ActionID:     action.ID,
		ActorID:      actor.ID,
		OccurredAt:   now,
		Payload:      map[string]any{"from": previous, "to": assigneeID},
	})
	return action, nil
}

// AddNote appends a note to the action's log. Same gate as Start and
// Close: the assignee or a reviewer.
func (t *Tracker) AddNote(ctx context.Context, actor *auth.Actor, id, body string) (*contracts.CorrectiveAction, error) {
	if body == "" {
		return nil, fault.New(fault.InvalidArgument, "note body is required")
	}

	defer t.locks.Lock(id)()

	action, err := t.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !t.mayWork(actor, action) {
		return nil, fault.New(fault.Forbidden, "actor %s is neither the assignee nor a reviewer", actor.ID)
	}
	now := t.clock().UTC()
	action.Notes = append(action.Notes, contracts.Note{
		ID:        t.newID(),
		AuthorID:  actor.ID,
		Body:      body,
		CreatedAt: now,
	})
	action.UpdatedAt = now
	if err := t.store.PutAction(ctx, action); err != nil {
		return nil, fmt.Errorf("store action: %w", err)
	}
	return action, nil
}

func (t *Tracker) mayWork(actor *auth.Actor, action *contracts.CorrectiveAction) bool {
	return actor.IsReviewer() || (action.AssignedToID != "" && actor.ID == action.AssignedToID)
}

func (t *Tracker) publish(ctx context.Context, evt contracts.Event) {
	if t.events == nil {
		return
	}
	if err := t.events.Publish(ctx, evt); err != nil {
		// Events are observability, not state; a publish failure never
		// rolls back the write.
		t.logger.Warn("event publish failed", "type", evt.Type, "error", err)
	}
}
