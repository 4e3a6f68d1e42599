// Package ledger owns the response record for each inspection: one row per
// (inspection, template item), written only while the inspection is
// editable.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/fieldsafe/sentinel/pkg/contracts"
	"github.com/fieldsafe/sentinel/pkg/fault"
	"github.com/fieldsafe/sentinel/pkg/lock"
)

// Store is the persistence surface the ledger needs.
type Store interface {
	// GetResponse returns nil, nil when no response exists for the pair.
	GetResponse(ctx context.Context, inspectionID, templateItemID string) (*contracts.Response, error)
	PutResponse(ctx context.Context, resp *contracts.Response) error
	ListResponses(ctx context.Context, inspectionID string) ([]contracts.Response, error)
}

// RejectionSource reports which template items still carry unresolved
// rejection entries for an inspection.
type RejectionSource interface {
	UnresolvedItemIDs(ctx context.Context, inspectionID string) ([]string, error)
}

// Ledger coordinates response upserts. All writes for one inspection
// serialize on that inspection's keyed lock, shared with the state machine
// so a submit cannot interleave with a response edit.
type Ledger struct {
	store      Store
	rejections RejectionSource
	locks      *lock.Keyed
	logger     *slog.Logger
	clock      func() time.Time
	newID      func() string
}

// New creates a Ledger.
func New(store Store, rejections RejectionSource, locks *lock.Keyed, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		store:      store,
		rejections: rejections,
		locks:      locks,
		logger:     logger,
		clock:      time.Now,
		newID:      uuid.NewString,
	}
}

// WithClock overrides the time source. Test hook.
func (l *Ledger) WithClock(clock func() time.Time) *Ledger {
	l.clock = clock
	return l
}

// UpsertInput is one response write.
type UpsertInput struct {
	TemplateItemID string
	Result         contracts.Result
	Note           string
	EvidenceRefs   []string
}

// Upsert records or updates the actor's answer for one template item.
//
// Rejected inspections are editable only on items flagged by unresolved
// rejection entries.
func (l *Ledger) Upsert(ctx context.Context, actorID string, insp *contracts.Inspection, tpl *contracts.Template, in UpsertInput) (*contracts.Response, error) {
	if !in.Result.Valid() {
		return nil, fault.New(fault.InvalidArgument, "result %q is not recognized", in.Result)
	}
	if tpl.Item(in.TemplateItemID) == nil {
		return nil, fault.New(fault.InvalidArgument, "template item %s is not part of template %s", in.TemplateItemID, tpl.ID)
	}

	defer l.locks.Lock(insp.ID)()

	if !insp.Status.Editable() {
		return nil, fault.New(fault.InvalidState, "inspection %s is %s and cannot be edited", insp.ID, insp.Status)
	}
	if insp.Status == contracts.InspectionRejected {
		ok, err := l.itemOpenForRework(ctx, insp.ID, in.TemplateItemID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fault.New(fault.InvalidState, "template item %s is not flagged for rework on inspection %s", in.TemplateItemID, insp.ID)
		}
	}

	now := l.clock().UTC()
	resp, err := l.store.GetResponse(ctx, insp.ID, in.TemplateItemID)
	if err != nil {
		return nil, fmt.Errorf("load response: %w", err)
	}
	if resp == nil {
		resp = &contracts.Response{
			ID:             l.newID(),
			InspectionID:   insp.ID,
			TemplateItemID: in.TemplateItemID,
			CreatedAt:      now,
		}
	}

	if in.Note != "" && in.Note != resp.Note {
		resp.Notes = append(resp.Notes, contracts.Note{
			ID:        l.newID(),
			AuthorID:  actorID,
			Body:      in.Note,
			CreatedAt: now,
		})
	}
	resp.Result = in.Result
	resp.Note = in.Note
	resp.EvidenceRefs = dedupeRefs(in.EvidenceRefs)
	resp.UpdatedAt = now

	if err := l.store.PutResponse(ctx, resp); err != nil {
		return nil, fmt.Errorf("store response: %w", err)
	}
	l.logger.Debug("response recorded",
		"inspection_id", insp.ID,
		"template_item_id", in.TemplateItemID,
		"result", in.Result,
		"actor_id", actorID)
	return resp, nil
}

func (l *Ledger) itemOpenForRework(ctx context.Context, inspectionID, templateItemID string) (bool, error) {
	ids, err := l.rejections.UnresolvedItemIDs(ctx, inspectionID)
	if err != nil {
		return false, fmt.Errorf("load rejection entries: %w", err)
	}
	if len(ids) == 0 {
		// Every rejection carries at least one entry, so an empty unresolved
		// set should not occur while rejected. Do not wedge the inspection
		// if it does.
		return true, nil
	}
	for _, id := range ids {
		if id == templateItemID {
			return true, nil
		}
	}
	return false, nil
}

// Get returns the response for one template item, or NotFound.
func (l *Ledger) Get(ctx context.Context, inspectionID, templateItemID string) (*contracts.Response, error) {
	resp, err := l.store.GetResponse(ctx, inspectionID, templateItemID)
	if err != nil {
		return nil, fmt.Errorf("load response: %w", err)
	}
	if resp == nil {
		return nil, fault.New(fault.NotFound, "no response for item %s on inspection %s", templateItemID, inspectionID)
	}
	return resp, nil
}

// ListForInspection returns the inspection's responses in template order.
// Responses whose item left the template sort last, by item id.
func (l *Ledger) ListForInspection(ctx context.Context, inspectionID string, tpl *contracts.Template) ([]contracts.Response, error) {
	responses, err := l.store.ListResponses(ctx, inspectionID)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}

	order := make(map[string]int)
	for i, item := range tpl.FlatItems() {
		order[item.ID] = i
	}
	orphanBase := len(order)
	sort.SliceStable(responses, func(i, j int) bool {
		pi, iok := order[responses[i].TemplateItemID]
		pj, jok := order[responses[j].TemplateItemID]
		if !iok {
			pi = orphanBase
		}
		if !jok {
			pj = orphanBase
		}
		if pi != pj {
			return pi < pj
		}
		return responses[i].TemplateItemID < responses[j].TemplateItemID
	})
	return responses, nil
}

// dedupeRefs drops empty and repeated refs, keeping first-seen order.
func dedupeRefs(refs []string) []string {
	if len(refs) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(refs))
	var out []string
	for _, ref := range refs {
		if ref == "" || seen[ref] {
			continue
		}
		seen[ref] = true
		out = append(out, ref)
	}
	return out
}
