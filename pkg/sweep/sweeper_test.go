package sweep

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldsafe/sentinel/pkg/contracts"
)

type stubStore struct {
	actions []contracts.CorrectiveAction
	err     error
}

func (s *stubStore) ListOpenActions(context.Context) ([]contracts.CorrectiveAction, error) {
	return s.actions, s.err
}

var sweepNow = time.Date(2026, 8, 1, 6, 0, 0, 0, time.UTC)

func action(id string, status contracts.ActionStatus, due time.Time) contracts.CorrectiveAction {
	return contracts.CorrectiveAction{ID: id, Status: status, DueDate: &due}
}

func TestSweepOnceFlagsOverdue(t *testing.T) {
	past := sweepNow.AddDate(0, 0, -3)
	future := sweepNow.AddDate(0, 0, 3)
	store := &stubStore{actions: []contracts.CorrectiveAction{
		action("a-late", contracts.ActionOpen, past),
		action("a-late-2", contracts.ActionInProgress, past),
		action("a-ontime", contracts.ActionOpen, future),
		{ID: "a-nodue", Status: contracts.ActionOpen},
	}}
	cache := NewMemoryCache()

	s := New(store, cache, time.Minute, nil).WithClock(func() time.Time { return sweepNow })

	count, err := s.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	ids, err := cache.IDs(context.Background())
	require.NoError(t, err)
	sort.Strings(ids)
	assert.Equal(t, []string{"a-late", "a-late-2"}, ids)

	late, err := cache.Overdue(context.Background(), "a-late")
	require.NoError(t, err)
	assert.True(t, late)
	onTime, err := cache.Overdue(context.Background(), "a-ontime")
	require.NoError(t, err)
	assert.False(t, onTime)
}

func TestSweepOnceClearsRecoveredActions(t *testing.T) {
	past := sweepNow.AddDate(0, 0, -1)
	store := &stubStore{actions: []contracts.CorrectiveAction{
		action("a-1", contracts.ActionOpen, past),
	}}
	cache := NewMemoryCache()
	s := New(store, cache, time.Minute, nil).WithClock(func() time.Time { return sweepNow })

	_, err := s.SweepOnce(context.Background())
	require.NoError(t, err)

	// Action closed between sweeps; store no longer returns it.
	store.actions = nil
	count, err := s.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	ids, err := cache.IDs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestRunStopsOnCancel(t *testing.T) {
	s := New(&stubStore{}, NewMemoryCache(), 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop on context cancel")
	}
}
