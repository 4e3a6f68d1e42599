package store_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldsafe/sentinel/pkg/contracts"
	"github.com/fieldsafe/sentinel/pkg/store"
)

// fullStore is the union of the consumer-defined store interfaces; both
// backends satisfy it.
type fullStore interface {
	GetInspection(ctx context.Context, id string) (*contracts.Inspection, error)
	PutInspection(ctx context.Context, insp *contracts.Inspection) error
	DeleteInspection(ctx context.Context, id string) error
	ListInspections(ctx context.Context) ([]contracts.Inspection, error)

	GetResponse(ctx context.Context, inspectionID, templateItemID string) (*contracts.Response, error)
	PutResponse(ctx context.Context, resp *contracts.Response) error
	ListResponses(ctx context.Context, inspectionID string) ([]contracts.Response, error)

	GetAction(ctx context.Context, id string) (*contracts.CorrectiveAction, error)
	PutAction(ctx context.Context, action *contracts.CorrectiveAction) error
	ListActionsForInspection(ctx context.Context, inspectionID string) ([]contracts.CorrectiveAction, error)
	ListOpenActions(ctx context.Context) ([]contracts.CorrectiveAction, error)
	ListOpenActionsForTemplateItem(ctx context.Context, templateItemID string) ([]contracts.CorrectiveAction, error)

	PutRejectionEntry(ctx context.Context, entry *contracts.RejectionEntry) error
	ListRejectionEntries(ctx context.Context, inspectionID string) ([]contracts.RejectionEntry, error)
	ResolveRejectionEntries(ctx context.Context, inspectionID string, resolvedAt time.Time) error
}

func eachStore(t *testing.T, run func(t *testing.T, s fullStore)) {
	t.Helper()
	t.Run("sqlite", func(t *testing.T) {
		s, err := store.OpenSQLite(filepath.Join(t.TempDir(), "sentinel.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		run(t, s)
	})
	t.Run("memory", func(t *testing.T) {
		run(t, store.NewMemory())
	})
}

var baseTime = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func sampleInspection(id string, startedAt time.Time) *contracts.Inspection {
	return &contracts.Inspection{
		ID:          id,
		TemplateID:  "tpl-forklift",
		InspectorID: "u-ines",
		CreatedByID: "u-ines",
		Status:      contracts.InspectionDraft,
		Origin:      contracts.OriginIndependent,
		Location:    "Warehouse B",
		StartedAt:   startedAt,
	}
}

func TestInspectionRoundTrip(t *testing.T) {
	eachStore(t, func(t *testing.T, s fullStore) {
		ctx := context.Background()

		got, err := s.GetInspection(ctx, "missing")
		require.NoError(t, err)
		assert.Nil(t, got, "absent inspection must be nil, nil")

		insp := sampleInspection("insp-1", baseTime)
		insp.Notes = []contracts.Note{{ID: "n-1", AuthorID: "u-ines", Body: "first pass", CreatedAt: baseTime}}
		require.NoError(t, s.PutInspection(ctx, insp))

		got, err = s.GetInspection(ctx, "insp-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, contracts.InspectionDraft, got.Status)
		assert.Equal(t, "Warehouse B", got.Location)
		assert.Nil(t, got.OverallScore)
		assert.True(t, got.StartedAt.Equal(baseTime))
		require.Len(t, got.Notes, 1)
		assert.Equal(t, "first pass", got.Notes[0].Body)
	})
}

func TestPutInspectionUpsertsLifecycleFields(t *testing.T) {
	eachStore(t, func(t *testing.T, s fullStore) {
		ctx := context.Background()
		insp := sampleInspection("insp-1", baseTime)
		require.NoError(t, s.PutInspection(ctx, insp))

		submitted := baseTime.Add(2 * time.Hour)
		score := 87.5
		insp.Status = contracts.InspectionSubmitted
		insp.SubmittedAt = &submitted
		insp.OverallScore = &score
		require.NoError(t, s.PutInspection(ctx, insp))

		got, err := s.GetInspection(ctx, "insp-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, contracts.InspectionSubmitted, got.Status)
		require.NotNil(t, got.SubmittedAt)
		assert.True(t, got.SubmittedAt.Equal(submitted))
		require.NotNil(t, got.OverallScore)
		assert.Equal(t, 87.5, *got.OverallScore)
	})
}

func TestListInspectionsNewestFirst(t *testing.T) {
	eachStore(t, func(t *testing.T, s fullStore) {
		ctx := context.Background()
		require.NoError(t, s.PutInspection(ctx, sampleInspection("insp-old", baseTime)))
		require.NoError(t, s.PutInspection(ctx, sampleInspection("insp-new", baseTime.Add(time.Hour))))

		all, err := s.ListInspections(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "insp-new", all[0].ID)
		assert.Equal(t, "insp-old", all[1].ID)
	})
}

func TestResponseRoundTrip(t *testing.T) {
	eachStore(t, func(t *testing.T, s fullStore) {
		ctx := context.Background()

		got, err := s.GetResponse(ctx, "insp-1", "item-1")
		require.NoError(t, err)
		assert.Nil(t, got)

		resp := &contracts.Response{
			ID:             "resp-1",
			InspectionID:   "insp-1",
			TemplateItemID: "item-1",
			Result:         contracts.ResultFail,
			Note:           "guard rail bent",
			EvidenceRefs:   []string{"photo://rail-1.jpg"},
			CreatedAt:      baseTime,
			UpdatedAt:      baseTime,
		}
		require.NoError(t, s.PutResponse(ctx, resp))

		got, err = s.GetResponse(ctx, "insp-1", "item-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, contracts.ResultFail, got.Result)
		assert.Equal(t, []string{"photo://rail-1.jpg"}, got.EvidenceRefs)

		// Upsert on the same id replaces the mutable fields.
		resp.Result = contracts.ResultPass
		resp.Note = "rail replaced"
		resp.UpdatedAt = baseTime.Add(time.Hour)
		require.NoError(t, s.PutResponse(ctx, resp))

		got, err = s.GetResponse(ctx, "insp-1", "item-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, contracts.ResultPass, got.Result)
		assert.Equal(t, "rail replaced", got.Note)
		assert.True(t, got.UpdatedAt.Equal(baseTime.Add(time.Hour)))

		list, err := s.ListResponses(ctx, "insp-1")
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})
}

func TestActionRoundTrip(t *testing.T) {
	eachStore(t, func(t *testing.T, s fullStore) {
		ctx := context.Background()

		got, err := s.GetAction(ctx, "missing")
		require.NoError(t, err)
		assert.Nil(t, got)

		due := baseTime.AddDate(0, 0, 7)
		action := &contracts.CorrectiveAction{
			ID:                 "act-1",
			InspectionID:       "insp-1",
			ResponseID:         "resp-1",
			Title:              "Replace guard rail",
			Severity:           contracts.SeverityMedium,
			Status:             contracts.ActionOpen,
			OccurrenceSeverity: contracts.SeverityHigh,
			InjurySeverity:     contracts.SeverityLow,
			DueDate:            &due,
			AssignedToID:       "u-omar",
			WorkOrderRequired:  true,
			EvidenceRefs:       []string{"photo://rail-1.jpg"},
			CreatedAt:          baseTime,
			UpdatedAt:          baseTime,
		}
		require.NoError(t, s.PutAction(ctx, action))

		got, err = s.GetAction(ctx, "act-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, contracts.ActionOpen, got.Status)
		assert.Equal(t, contracts.SeverityHigh, got.OccurrenceSeverity)
		assert.True(t, got.WorkOrderRequired)
		require.NotNil(t, got.DueDate)
		assert.True(t, got.DueDate.Equal(due))
		assert.Nil(t, got.ClosedAt)

		closedAt := baseTime.Add(48 * time.Hour)
		action.Status = contracts.ActionClosed
		action.ClosedByID = "u-omar"
		action.ClosedAt = &closedAt
		action.ResolutionNotes = "rail replaced, WO-77"
		action.WorkOrderNumber = "WO-77"
		require.NoError(t, s.PutAction(ctx, action))

		got, err = s.GetAction(ctx, "act-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, contracts.ActionClosed, got.Status)
		assert.Equal(t, "WO-77", got.WorkOrderNumber)
		require.NotNil(t, got.ClosedAt)
		assert.True(t, got.ClosedAt.Equal(closedAt))
	})
}

func TestListOpenActionsFiltersClosed(t *testing.T) {
	eachStore(t, func(t *testing.T, s fullStore) {
		ctx := context.Background()
		put := func(id string, status contracts.ActionStatus, createdAt time.Time) {
			t.Helper()
			require.NoError(t, s.PutAction(ctx, &contracts.CorrectiveAction{
				ID:           id,
				InspectionID: "insp-1",
				ResponseID:   "resp-1",
				Title:        id,
				Severity:     contracts.SeverityLow,
				Status:       status,
				CreatedAt:    createdAt,
				UpdatedAt:    createdAt,
			}))
		}
		put("act-open", contracts.ActionOpen, baseTime)
		put("act-progress", contracts.ActionInProgress, baseTime.Add(time.Minute))
		put("act-closed", contracts.ActionClosed, baseTime.Add(2*time.Minute))

		open, err := s.ListOpenActions(ctx)
		require.NoError(t, err)
		require.Len(t, open, 2)
		assert.Equal(t, "act-open", open[0].ID)
		assert.Equal(t, "act-progress", open[1].ID)
	})
}

func TestListActionsForInspection(t *testing.T) {
	eachStore(t, func(t *testing.T, s fullStore) {
		ctx := context.Background()
		for i, inspectionID := range []string{"insp-1", "insp-1", "insp-2"} {
			require.NoError(t, s.PutAction(ctx, &contracts.CorrectiveAction{
				ID:           "act-" + string(rune('a'+i)),
				InspectionID: inspectionID,
				ResponseID:   "resp-1",
				Title:        "t",
				Severity:     contracts.SeverityLow,
				Status:       contracts.ActionOpen,
				CreatedAt:    baseTime.Add(time.Duration(i) * time.Minute),
				UpdatedAt:    baseTime,
			}))
		}

		actions, err := s.ListActionsForInspection(ctx, "insp-1")
		require.NoError(t, err)
		require.Len(t, actions, 2)
		assert.Equal(t, "act-a", actions[0].ID)
		assert.Equal(t, "act-b", actions[1].ID)
	})
}

func TestListOpenActionsForTemplateItem(t *testing.T) {
	eachStore(t, func(t *testing.T, s fullStore) {
		ctx := context.Background()

		// The same template item failed on two inspections.
		putResponse := func(id, inspectionID, itemID string) {
			t.Helper()
			require.NoError(t, s.PutResponse(ctx, &contracts.Response{
				ID:             id,
				InspectionID:   inspectionID,
				TemplateItemID: itemID,
				Result:         contracts.ResultFail,
				CreatedAt:      baseTime,
				UpdatedAt:      baseTime,
			}))
		}
		putResponse("resp-1", "insp-1", "item-brakes")
		putResponse("resp-2", "insp-2", "item-brakes")
		putResponse("resp-3", "insp-2", "item-horn")

		putAction := func(id, responseID, inspectionID string, status contracts.ActionStatus, createdAt time.Time) {
			t.Helper()
			require.NoError(t, s.PutAction(ctx, &contracts.CorrectiveAction{
				ID:           id,
				InspectionID: inspectionID,
				ResponseID:   responseID,
				Title:        id,
				Severity:     contracts.SeverityLow,
				Status:       status,
				CreatedAt:    createdAt,
				UpdatedAt:    createdAt,
			}))
		}
		putAction("act-1", "resp-1", "insp-1", contracts.ActionOpen, baseTime)
		putAction("act-2", "resp-2", "insp-2", contracts.ActionInProgress, baseTime.Add(time.Minute))
		putAction("act-3", "resp-2", "insp-2", contracts.ActionClosed, baseTime.Add(2*time.Minute))
		putAction("act-4", "resp-3", "insp-2", contracts.ActionOpen, baseTime.Add(3*time.Minute))

		got, err := s.ListOpenActionsForTemplateItem(ctx, "item-brakes")
		require.NoError(t, err)
		require.Len(t, got, 2, "open actions across inspections, closed excluded")
		assert.Equal(t, "act-1", got[0].ID)
		assert.Equal(t, "act-2", got[1].ID)

		got, err = s.ListOpenActionsForTemplateItem(ctx, "item-mirrors")
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestResolveRejectionEntriesSkipsResolved(t *testing.T) {
	eachStore(t, func(t *testing.T, s fullStore) {
		ctx := context.Background()
		earlier := baseTime.Add(-time.Hour)
		require.NoError(t, s.PutRejectionEntry(ctx, &contracts.RejectionEntry{
			ID: "rej-1", InspectionID: "insp-1", TemplateItemID: "item-3",
			Reason: "photo unusable", CreatedAt: baseTime, CreatedByID: "u-rev",
		}))
		require.NoError(t, s.PutRejectionEntry(ctx, &contracts.RejectionEntry{
			ID: "rej-0", InspectionID: "insp-1", TemplateItemID: "item-1",
			Reason: "stale", CreatedAt: earlier, CreatedByID: "u-rev",
			ResolvedAt: &earlier,
		}))
		require.NoError(t, s.PutRejectionEntry(ctx, &contracts.RejectionEntry{
			ID: "rej-other", InspectionID: "insp-2", TemplateItemID: "item-1",
			Reason: "other inspection", CreatedAt: baseTime, CreatedByID: "u-rev",
		}))

		resolvedAt := baseTime.Add(time.Hour)
		require.NoError(t, s.ResolveRejectionEntries(ctx, "insp-1", resolvedAt))

		entries, err := s.ListRejectionEntries(ctx, "insp-1")
		require.NoError(t, err)
		require.Len(t, entries, 2)
		for _, e := range entries {
			require.NotNil(t, e.ResolvedAt, "entry %s should be resolved", e.ID)
			switch e.ID {
			case "rej-0":
				assert.True(t, e.ResolvedAt.Equal(earlier), "already-resolved entry must keep its timestamp")
			case "rej-1":
				assert.True(t, e.ResolvedAt.Equal(resolvedAt))
			}
		}

		other, err := s.ListRejectionEntries(ctx, "insp-2")
		require.NoError(t, err)
		require.Len(t, other, 1)
		assert.Nil(t, other[0].ResolvedAt, "entries on other inspections stay open")
	})
}

func TestDeleteInspectionCascades(t *testing.T) {
	eachStore(t, func(t *testing.T, s fullStore) {
		ctx := context.Background()
		require.NoError(t, s.PutInspection(ctx, sampleInspection("insp-1", baseTime)))
		require.NoError(t, s.PutInspection(ctx, sampleInspection("insp-2", baseTime)))
		require.NoError(t, s.PutResponse(ctx, &contracts.Response{
			ID: "resp-1", InspectionID: "insp-1", TemplateItemID: "item-1",
			Result: contracts.ResultFail, CreatedAt: baseTime, UpdatedAt: baseTime,
		}))
		require.NoError(t, s.PutAction(ctx, &contracts.CorrectiveAction{
			ID: "act-1", InspectionID: "insp-1", ResponseID: "resp-1", Title: "t",
			Severity: contracts.SeverityLow, Status: contracts.ActionOpen,
			CreatedAt: baseTime, UpdatedAt: baseTime,
		}))
		require.NoError(t, s.PutRejectionEntry(ctx, &contracts.RejectionEntry{
			ID: "rej-1", InspectionID: "insp-1", CreatedAt: baseTime, CreatedByID: "u-rev",
		}))

		require.NoError(t, s.DeleteInspection(ctx, "insp-1"))

		insp, err := s.GetInspection(ctx, "insp-1")
		require.NoError(t, err)
		assert.Nil(t, insp)

		resp, err := s.GetResponse(ctx, "insp-1", "item-1")
		require.NoError(t, err)
		assert.Nil(t, resp)

		actions, err := s.ListActionsForInspection(ctx, "insp-1")
		require.NoError(t, err)
		assert.Empty(t, actions)

		entries, err := s.ListRejectionEntries(ctx, "insp-1")
		require.NoError(t, err)
		assert.Empty(t, entries)

		other, err := s.GetInspection(ctx, "insp-2")
		require.NoError(t, err)
		assert.NotNil(t, other, "unrelated inspections survive the delete")
	})
}
