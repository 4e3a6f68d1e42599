package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldsafe/sentinel/pkg/contracts"
)

func evt(id string, t contracts.EventType) contracts.Event {
	return contracts.Event{ID: id, Type: t, ActorID: "u-1", OccurredAt: time.Now()}
}

func TestBusDeliversByType(t *testing.T) {
	bus := NewBus(nil, nil)

	var approved, rejected []string
	bus.Subscribe(contracts.EventInspectionApproved, func(_ context.Context, e contracts.Event) {
		approved = append(approved, e.ID)
	})
	bus.Subscribe(contracts.EventInspectionRejected, func(_ context.Context, e contracts.Event) {
		rejected = append(rejected, e.ID)
	})

	require.NoError(t, bus.Publish(context.Background(), evt("e-1", contracts.EventInspectionApproved)))
	require.NoError(t, bus.Publish(context.Background(), evt("e-2", contracts.EventInspectionApproved)))
	require.NoError(t, bus.Publish(context.Background(), evt("e-3", contracts.EventInspectionRejected)))

	assert.Equal(t, []string{"e-1", "e-2"}, approved)
	assert.Equal(t, []string{"e-3"}, rejected)
}

func TestBusSubscribeAll(t *testing.T) {
	bus := NewBus(nil, nil)

	var seen []contracts.EventType
	bus.SubscribeAll(func(_ context.Context, e contracts.Event) {
		seen = append(seen, e.Type)
	})

	require.NoError(t, bus.Publish(context.Background(), evt("e-1", contracts.EventActionClosed)))
	require.NoError(t, bus.Publish(context.Background(), evt("e-2", contracts.EventInspectionSubmitted)))

	assert.Equal(t, []contracts.EventType{contracts.EventActionClosed, contracts.EventInspectionSubmitted}, seen)
}

func TestBusSurvivesPanickingHandler(t *testing.T) {
	bus := NewBus(nil, nil)

	bus.Subscribe(contracts.EventActionClosed, func(context.Context, contracts.Event) {
		panic("notifier exploded")
	})
	delivered := false
	bus.Subscribe(contracts.EventActionClosed, func(context.Context, contracts.Event) {
		delivered = true
	})

	require.NoError(t, bus.Publish(context.Background(), evt("e-1", contracts.EventActionClosed)))
	assert.True(t, delivered, "later handlers still run after a panic")
}
