package events

import (
	"context"
	"errors"
	"testing"

	"hqe/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_DeliversInRegistrationOrder(t *testing.T) {
	bus := NewBus()
	var got []string
	record := func(name string) Listener {
		return ListenerFunc(func(ctx context.Context, ev Event) error {
			got = append(got, name+":"+string(ev.Kind))
			return nil
		})
	}
	bus.On(record("allure"))
	bus.On(record("summary"))

	require.NoError(t, bus.Emit(context.Background(), Event{Kind: RunStarted}))
	assert.Equal(t, []string{"allure:run_started", "summary:run_started"}, got)
}

func TestBus_JoinsErrorsAndKeepsDelivering(t *testing.T) {
	bus := NewBus()
	first := errors.New("disk full")
	bus.On(ListenerFunc(func(ctx context.Context, ev Event) error { return first }))
	bus.On(ListenerFunc(func(ctx context.Context, ev Event) error { panic("boom") }))
	delivered := false
	bus.On(ListenerFunc(func(ctx context.Context, ev Event) error {
		delivered = true
		return nil
	}))

	tc := domain.TestCase{Name: "loads"}
	err := bus.Emit(context.Background(), Event{Kind: Label, Case: &tc, Label: domain.Label{Name: "testType", Value: "regression"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, first)
	assert.Contains(t, err.Error(), "panicked")
	assert.True(t, delivered)
}

func TestRegistration_Unregister(t *testing.T) {
	bus := NewBus()
	calls := 0
	reg := bus.On(ListenerFunc(func(ctx context.Context, ev Event) error {
		calls++
		return nil
	}))
	other := bus.On(ListenerFunc(func(ctx context.Context, ev Event) error { return nil }))

	require.NoError(t, bus.Emit(context.Background(), Event{Kind: RunStarted}))
	reg.Unregister()
	reg.Unregister()
	require.NoError(t, bus.Emit(context.Background(), Event{Kind: RunFinished}))

	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, bus.Len())
	other.Unregister()
	assert.Equal(t, 0, bus.Len())
}

func TestBus_StampsTime(t *testing.T) {
	bus := NewBus()
	var seen Event
	bus.On(ListenerFunc(func(ctx context.Context, ev Event) error {
		seen = ev
		return nil
	}))
	require.NoError(t, bus.Emit(context.Background(), Event{Kind: Step, Step: "Visita a página inicial"}))
	assert.False(t, seen.Time.IsZero())
	assert.Equal(t, "Visita a página inicial", seen.Step)
}
