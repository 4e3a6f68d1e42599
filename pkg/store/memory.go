package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fieldsafe/sentinel/pkg/contracts"
)

// Memory is the in-process store. One mutex guards everything; the store
// is not a bottleneck at in-memory scale.
type Memory struct {
	mu          sync.RWMutex
	inspections map[string]contracts.Inspection
	responses   map[string]contracts.Response // by response id
	actions     map[string]contracts.CorrectiveAction
	rejections  []contracts.RejectionEntry
}

// NewMemory creates an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		inspections: make(map[string]contracts.Inspection),
		responses:   make(map[string]contracts.Response),
		actions:     make(map[string]contracts.CorrectiveAction),
	}
}

// --- inspections ----------------------------------------------------------

func (m *Memory) GetInspection(_ context.Context, id string) (*contracts.Inspection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	insp, ok := m.inspections[id]
	if !ok {
		return nil, nil
	}
	return &insp, nil
}

func (m *Memory) PutInspection(_ context.Context, insp *contracts.Inspection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inspections[insp.ID] = *insp
	return nil
}

func (m *Memory) DeleteInspection(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.inspections, id)
	for rid, r := range m.responses {
		if r.InspectionID == id {
			delete(m.responses, rid)
		}
	}
	for aid, a := range m.actions {
		if a.InspectionID == id {
			delete(m.actions, aid)
		}
	}
	kept := m.rejections[:0]
	for _, e := range m.rejections {
		if e.InspectionID != id {
			kept = append(kept, e)
		}
	}
	m.rejections = kept
	return nil
}

func (m *Memory) ListInspections(_ context.Context) ([]contracts.Inspection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]contracts.Inspection, 0, len(m.inspections))
	for _, insp := range m.inspections {
		out = append(out, insp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}

// --- responses ------------------------------------------------------------

func (m *Memory) GetResponse(_ context.Context, inspectionID, templateItemID string) (*contracts.Response, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.responses {
		if r.InspectionID == inspectionID && r.TemplateItemID == templateItemID {
			cp := r
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *Memory) PutResponse(_ context.Context, resp *contracts.Response) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[resp.ID] = *resp
	return nil
}

func (m *Memory) ListResponses(_ context.Context, inspectionID string) ([]contracts.Response, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []contracts.Response
	for _, r := range m.responses {
		if r.InspectionID == inspectionID {
			out = append(out, r)
		}
	}
	return out, nil
}

// --- actions --------------------------------------------------------------

func (m *Memory) GetAction(_ context.Context, id string) (*contracts.CorrectiveAction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.actions[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (m *Memory) PutAction(_ context.Context, action *contracts.CorrectiveAction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions[action.ID] = *action
	return nil
}

func (m *Memory) ListActionsForInspection(_ context.Context, inspectionID string) ([]contracts.CorrectiveAction, error) {
	return m.filterActions(func(a *contracts.CorrectiveAction) bool {
		return a.InspectionID == inspectionID
	})
}

func (m *Memory) ListOpenActions(context.Context) ([]contracts.CorrectiveAction, error) {
	return m.filterActions(func(a *contracts.CorrectiveAction) bool {
		return a.Status.OpenFamily()
	})
}

func (m *Memory) ListOpenActionsForTemplateItem(_ context.Context, templateItemID string) ([]contracts.CorrectiveAction, error) {
	m.mu.RLock()
	items := make(map[string]string, len(m.responses))
	for id, r := range m.responses {
		items[id] = r.TemplateItemID
	}
	m.mu.RUnlock()
	return m.filterActions(func(a *contracts.CorrectiveAction) bool {
		return a.Status.OpenFamily() && items[a.ResponseID] == templateItemID
	})
}

func (m *Memory) filterActions(keep func(*contracts.CorrectiveAction) bool) ([]contracts.CorrectiveAction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []contracts.CorrectiveAction
	for _, a := range m.actions {
		if keep(&a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// --- rejection entries ----------------------------------------------------

func (m *Memory) PutRejectionEntry(_ context.Context, entry *contracts.RejectionEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejections = append(m.rejections, *entry)
	return nil
}

func (m *Memory) ListRejectionEntries(_ context.Context, inspectionID string) ([]contracts.RejectionEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []contracts.RejectionEntry
	for _, e := range m.rejections {
		if e.InspectionID == inspectionID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *Memory) ResolveRejectionEntries(_ context.Context, inspectionID string, resolvedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rejections {
		if m.rejections[i].InspectionID == inspectionID && m.rejections[i].ResolvedAt == nil {
			at := resolvedAt
			m.rejections[i].ResolvedAt = &at
		}
	}
	return nil
}
