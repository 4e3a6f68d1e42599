package tracker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldsafe/sentinel/pkg/auth"
	"github.com/fieldsafe/sentinel/pkg/contracts"
	"github.com/fieldsafe/sentinel/pkg/fault"
	"github.com/fieldsafe/sentinel/pkg/lock"
)

type memStore struct {
	actions map[string]*contracts.CorrectiveAction
	// itemByResponse mirrors the response rows the real stores join on.
	itemByResponse map[string]string
}

func newMemStore() *memStore {
	return &memStore{
		actions:        make(map[string]*contracts.CorrectiveAction),
		itemByResponse: make(map[string]string),
	}
}

func (m *memStore) GetAction(_ context.Context, id string) (*contracts.CorrectiveAction, error) {
	a, ok := m.actions[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (m *memStore) PutAction(_ context.Context, action *contracts.CorrectiveAction) error {
	cp := *action
	m.actions[action.ID] = &cp
	return nil
}

func (m *memStore) ListActionsForInspection(_ context.Context, inspectionID string) ([]contracts.CorrectiveAction, error) {
	var out []contracts.CorrectiveAction
	for _, a := range m.actions {
		if a.InspectionID == inspectionID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *memStore) ListOpenActionsForTemplateItem(_ context.Context, templateItemID string) ([]contracts.CorrectiveAction, error) {
	var out []contracts.CorrectiveAction
	for _, a := range m.actions {
		if a.Status.OpenFamily() && m.itemByResponse[a.ResponseID] == templateItemID {
			out = append(out, *a)
		}
	}
	return out, nil
}

type captureSink struct {
	events []contracts.Event
}

func (c *captureSink) Publish(_ context.Context, evt contracts.Event) error {
	c.events = append(c.events, evt)
	return nil
}

var fixedNow = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

func testTracker() (*Tracker, *memStore, *captureSink) {
	store := newMemStore()
	sink := &captureSink{}
	tr := New(store, sink, lock.NewKeyed(), DefaultSLA(), nil).
		WithClock(func() time.Time { return fixedNow })
	return tr, store, sink
}

func failResponse() *contracts.Response {
	return &contracts.Response{
		ID:             "resp-1",
		InspectionID:   "insp-1",
		TemplateItemID: "item-brakes",
		Result:         contracts.ResultFail,
	}
}

var (
	inspector = &auth.Actor{ID: "u-inspector", Roles: []auth.Role{auth.RoleInspector}}
	reviewer  = &auth.Actor{ID: "u-reviewer", Roles: []auth.Role{auth.RoleReviewer}}
	owner     = &auth.Actor{ID: "u-owner", Roles: []auth.Role{auth.RoleActionOwner}}
)

func TestCreateRequiresFailResponse(t *testing.T) {
	tr, _, _ := testTracker()
	resp := failResponse()
	resp.Result = contracts.ResultPass

	_, err := tr.Create(context.Background(), inspector, resp, CreateInput{Title: "fix it", Severity: contracts.SeverityLow})
	assert.Equal(t, fault.InvalidState, fault.KindOf(err))
}

func TestCreateDerivesSeverityAndDueDate(t *testing.T) {
	tr, _, _ := testTracker()

	res, err := tr.Create(context.Background(), inspector, failResponse(), CreateInput{
		Title:              "replace guard rail",
		OccurrenceSeverity: contracts.SeverityHigh,
		InjurySeverity:     contracts.SeverityHigh,
		AssignedToID:       owner.ID,
	})
	require.NoError(t, err)

	a := res.Action
	assert.Equal(t, contracts.SeverityHigh, a.Severity)
	assert.Equal(t, contracts.ActionOpen, a.Status)
	require.NotNil(t, a.DueDate)
	assert.Equal(t, fixedNow.AddDate(0, 0, 1), *a.DueDate)
}

func TestCreateDirectSeverityCompatibility(t *testing.T) {
	tr, _, _ := testTracker()

	res, err := tr.Create(context.Background(), inspector, failResponse(), CreateInput{
		Title:    "patch leak",
		Severity: contracts.SeverityLow,
	})
	require.NoError(t, err)
	assert.Equal(t, contracts.SeverityLow, res.Action.Severity)
	assert.Empty(t, res.Action.OccurrenceSeverity)
	require.NotNil(t, res.Action.DueDate)
	assert.Equal(t, fixedNow.AddDate(0, 0, 30), *res.Action.DueDate)
}

func TestCreateDefaultsSeverityToMedium(t *testing.T) {
	tr, _, _ := testTracker()

	res, err := tr.Create(context.Background(), inspector, failResponse(), CreateInput{Title: "x"})
	require.NoError(t, err)
	assert.Equal(t, contracts.SeverityMedium, res.Action.Severity)
	assert.Empty(t, res.Action.OccurrenceSeverity)
	require.NotNil(t, res.Action.DueDate)
	assert.Equal(t, fixedNow.AddDate(0, 0, 7), *res.Action.DueDate)
}

func TestCreateReportsDuplicatesAcrossInspections(t *testing.T) {
	tr, store, _ := testTracker()
	store.itemByResponse["resp-1"] = "item-brakes"
	store.itemByResponse["resp-2"] = "item-brakes"

	first, err := tr.Create(context.Background(), inspector, failResponse(), CreateInput{
		Title: "first", Severity: contracts.SeverityMedium,
	})
	require.NoError(t, err)
	assert.Empty(t, first.DuplicateOfID)

	// The same item failing on a later inspection surfaces the earlier
	// open action, and creation still goes through.
	recurrence := &contracts.Response{
		ID:             "resp-2",
		InspectionID:   "insp-2",
		TemplateItemID: "item-brakes",
		Result:         contracts.ResultFail,
	}
	second, err := tr.Create(context.Background(), inspector, recurrence, CreateInput{
		Title: "second", Severity: contracts.SeverityMedium,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{first.Action.ID}, second.DuplicateOfID)
}

func TestFindOpenByTemplateItem(t *testing.T) {
	tr, store, _ := testTracker()
	store.itemByResponse["resp-1"] = "item-brakes"

	a := createOpen(t, tr, CreateInput{AssignedToID: owner.ID})

	open, err := tr.FindOpenByTemplateItem(context.Background(), "item-brakes")
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, a.ID, open[0].ID)

	// Closing drops it from the lookup.
	_, err = tr.Close(context.Background(), owner, a.ID, CloseInput{ResolutionNotes: "done"})
	require.NoError(t, err)
	open, err = tr.FindOpenByTemplateItem(context.Background(), "item-brakes")
	require.NoError(t, err)
	assert.Empty(t, open)

	_, err = tr.FindOpenByTemplateItem(context.Background(), "")
	assert.Equal(t, fault.InvalidArgument, fault.KindOf(err))
}

func TestDeriveSeverityTable(t *testing.T) {
	cases := []struct {
		occ, inj, want contracts.Severity
	}{
		{contracts.SeverityLow, contracts.SeverityLow, contracts.SeverityLow},
		{contracts.SeverityHigh, contracts.SeverityHigh, contracts.SeverityHigh},
		{contracts.SeverityHigh, contracts.SeverityLow, contracts.SeverityMedium},
		{contracts.SeverityMedium, contracts.SeverityHigh, contracts.SeverityHigh},
		{contracts.SeverityMedium, contracts.SeverityLow, contracts.SeverityMedium},
		{contracts.SeverityHigh, "", contracts.SeverityHigh},
		{"", "", contracts.SeverityMedium},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, DeriveSeverity(tc.occ, tc.inj), "occ=%q inj=%q", tc.occ, tc.inj)
	}
}

func createOpen(t *testing.T, tr *Tracker, in CreateInput) *contracts.CorrectiveAction {
	t.Helper()
	if in.Title == "" {
		in.Title = "fix"
	}
	if in.Severity == "" && in.OccurrenceSeverity == "" {
		in.Severity = contracts.SeverityMedium
	}
	res, err := tr.Create(context.Background(), inspector, failResponse(), in)
	require.NoError(t, err)
	return res.Action
}

func TestStartTransitions(t *testing.T) {
	tr, _, _ := testTracker()
	a := createOpen(t, tr, CreateInput{AssignedToID: owner.ID})

	got, err := tr.Start(context.Background(), owner, a.ID)
	require.NoError(t, err)
	assert.Equal(t, contracts.ActionInProgress, got.Status)

	// Starting twice is invalid.
	_, err = tr.Start(context.Background(), owner, a.ID)
	assert.Equal(t, fault.InvalidState, fault.KindOf(err))
}

func TestStartForbiddenForStranger(t *testing.T) {
	tr, _, _ := testTracker()
	a := createOpen(t, tr, CreateInput{AssignedToID: owner.ID})

	_, err := tr.Start(context.Background(), inspector, a.ID)
	assert.Equal(t, fault.Forbidden, fault.KindOf(err))
}

func TestCloseHappyPath(t *testing.T) {
	tr, _, sink := testTracker()
	a := createOpen(t, tr, CreateInput{AssignedToID: owner.ID})

	got, err := tr.Close(context.Background(), owner, a.ID, CloseInput{ResolutionNotes: "replaced part"})
	require.NoError(t, err)
	assert.Equal(t, contracts.ActionClosed, got.Status)
	assert.Equal(t, owner.ID, got.ClosedByID)
	require.NotNil(t, got.ClosedAt)
	assert.Equal(t, fixedNow, *got.ClosedAt)

	require.Len(t, sink.events, 1)
	assert.Equal(t, contracts.EventActionClosed, sink.events[0].Type)
	assert.Equal(t, a.ID, sink.events[0].ActionID)
}

func TestCloseRequiresWorkOrder(t *testing.T) {
	tr, _, _ := testTracker()
	a := createOpen(t, tr, CreateInput{AssignedToID: owner.ID, WorkOrderRequired: true})

	_, err := tr.Close(context.Background(), owner, a.ID, CloseInput{ResolutionNotes: "done"})
	assert.Equal(t, fault.PreconditionFailed, fault.KindOf(err))

	// Supplying the number at close time satisfies the gate.
	got, err := tr.Close(context.Background(), owner, a.ID, CloseInput{
		ResolutionNotes: "done",
		WorkOrderNumber: "WO-77",
	})
	require.NoError(t, err)
	assert.Equal(t, "WO-77", got.WorkOrderNumber)
}

func TestCloseRequiresResolutionNotes(t *testing.T) {
	tr, _, _ := testTracker()
	a := createOpen(t, tr, CreateInput{AssignedToID: owner.ID})

	_, err := tr.Close(context.Background(), owner, a.ID, CloseInput{})
	assert.Equal(t, fault.InvalidArgument, fault.KindOf(err))
}

func TestCloseAlreadyClosed(t *testing.T) {
	tr, _, _ := testTracker()
	a := createOpen(t, tr, CreateInput{AssignedToID: owner.ID})

	_, err := tr.Close(context.Background(), owner, a.ID, CloseInput{ResolutionNotes: "done"})
	require.NoError(t, err)

	_, err = tr.Close(context.Background(), owner, a.ID, CloseInput{ResolutionNotes: "again"})
	assert.Equal(t, fault.InvalidState, fault.KindOf(err))
}

func TestCloseForbiddenForStranger(t *testing.T) {
	tr, _, _ := testTracker()
	a := createOpen(t, tr, CreateInput{AssignedToID: owner.ID})

	_, err := tr.Close(context.Background(), inspector, a.ID, CloseInput{ResolutionNotes: "done"})
	assert.Equal(t, fault.Forbidden, fault.KindOf(err))

	// Reviewer may close on behalf of others.
	_, err = tr.Close(context.Background(), reviewer, a.ID, CloseInput{ResolutionNotes: "done"})
	assert.NoError(t, err)
}

func TestReopen(t *testing.T) {
	tr, _, _ := testTracker()
	a := createOpen(t, tr, CreateInput{AssignedToID: owner.ID})
	_, err := tr.Close(context.Background(), owner, a.ID, CloseInput{ResolutionNotes: "done"})
	require.NoError(t, err)

	// Only reviewers reopen.
	_, err = tr.Reopen(context.Background(), owner, a.ID)
	assert.Equal(t, fault.Forbidden, fault.KindOf(err))

	got, err := tr.Reopen(context.Background(), reviewer, a.ID)
	require.NoError(t, err)
	assert.Equal(t, contracts.ActionOpen, got.Status)
	assert.Nil(t, got.ClosedAt)
	assert.Empty(t, got.ResolutionNotes)
}

func TestReassign(t *testing.T) {
	tr, _, sink := testTracker()
	a := createOpen(t, tr, CreateInput{AssignedToID: owner.ID})

	_, err := tr.Reassign(context.Background(), owner, a.ID, "u-next")
	assert.Equal(t, fault.Forbidden, fault.KindOf(err))

	got, err := tr.Reassign(context.Background(), reviewer, a.ID, "u-next")
	require.NoError(t, err)
	assert.Equal(t, "u-next", got.AssignedToID)

	require.Len(t, sink.events, 1)
	assert.Equal(t, contracts.EventActionReassigned, sink.events[0].Type)
	assert.Equal(t, map[string]any{"from": owner.ID, "to": "u-next"}, sink.events[0].Payload)
}

func TestAddNote(t *testing.T) {
	tr, _, _ := testTracker()
	a := createOpen(t, tr, CreateInput{AssignedToID: owner.ID})

	got, err := tr.AddNote(context.Background(), owner, a.ID, "waiting on parts")
	require.NoError(t, err)
	require.Len(t, got.Notes, 1)
	assert.Equal(t, "waiting on parts", got.Notes[0].Body)
	assert.Equal(t, owner.ID, got.Notes[0].AuthorID)

	_, err = tr.AddNote(context.Background(), owner, a.ID, "")
	assert.Equal(t, fault.InvalidArgument, fault.KindOf(err))
}

func TestAddNoteGatedLikeStartAndClose(t *testing.T) {
	tr, _, _ := testTracker()
	a := createOpen(t, tr, CreateInput{AssignedToID: owner.ID})

	_, err := tr.AddNote(context.Background(), inspector, a.ID, "drive-by comment")
	assert.Equal(t, fault.Forbidden, fault.KindOf(err))

	// Reviewers may annotate any action.
	got, err := tr.AddNote(context.Background(), reviewer, a.ID, "verified on site")
	require.NoError(t, err)
	require.Len(t, got.Notes, 1)
	assert.Equal(t, reviewer.ID, got.Notes[0].AuthorID)
}

func TestGetNotFound(t *testing.T) {
	tr, _, _ := testTracker()
	_, err := tr.Get(context.Background(), "missing")
	assert.Equal(t, fault.NotFound, fault.KindOf(err))
}

func TestOverdueAnnotation(t *testing.T) {
	past := fixedNow.AddDate(0, 0, -1)
	future := fixedNow.AddDate(0, 0, 1)

	open := contracts.CorrectiveAction{Status: contracts.ActionOpen, DueDate: &past}
	assert.True(t, open.Overdue(fixedNow))

	closed := contracts.CorrectiveAction{Status: contracts.ActionClosed, DueDate: &past}
	assert.False(t, closed.Overdue(fixedNow))

	notDue := contracts.CorrectiveAction{Status: contracts.ActionInProgress, DueDate: &future}
	assert.False(t, notDue.Overdue(fixedNow))
}
