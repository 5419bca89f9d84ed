package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreCapsAndOrders(t *testing.T) {
	store := NewMemoryStore(3)
	ctx := context.Background()

	for _, action := range []string{"a", "b", "c", "d"} {
		require.NoError(t, store.Append(ctx, Event{Action: action}))
	}

	events, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "d", events[0].Action)
	assert.Equal(t, "b", events[2].Action)

	events, err = store.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "d", events[0].Action)
}

func TestRecorderStampsAndDelivers(t *testing.T) {
	rec := NewRecorder(4)

	rec.Record(Event{Action: "note_confirmed"})

	select {
	case ev := <-rec.Inbox():
		assert.Equal(t, "note_confirmed", ev.Action)
		assert.False(t, ev.Timestamp.IsZero())
	default:
		t.Fatal("expected a buffered event")
	}
}

func TestRecorderDropsWhenFull(t *testing.T) {
	var drops int
	rec := NewRecorder(1, WithDropCounter(func() { drops++ }))

	rec.Record(Event{Action: "first"})
	rec.Record(Event{Action: "second"})

	assert.Equal(t, 1, drops)
}

func TestWorkerPersistsUntilCancelled(t *testing.T) {
	store := NewMemoryStore(16)
	rec := NewRecorder(16)
	worker := NewWorker(store, rec.Inbox(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	rec.Record(Event{Action: "homebase_verified"})

	require.Eventually(t, func() bool {
		events, err := store.Recent(context.Background(), 1)
		return err == nil && len(events) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}
