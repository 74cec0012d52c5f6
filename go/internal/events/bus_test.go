package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelBusDelivers(t *testing.T) {
	bus := NewChannelBus(4)
	ch, unsub := bus.Subscribe()
	defer unsub()

	require.NoError(t, bus.Emit(context.Background(), Event{Type: TypeDraftCreated, TaskID: "t1"}))

	select {
	case e := <-ch:
		assert.Equal(t, TypeDraftCreated, e.Type)
		assert.Equal(t, "t1", e.TaskID)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestChannelBusDropsWhenFull(t *testing.T) {
	bus := NewChannelBus(1)
	ch, unsub := bus.Subscribe()
	defer unsub()

	// Second emit overflows the buffer; Emit must not block.
	done := make(chan struct{})
	go func() {
		_ = bus.Emit(context.Background(), Event{Type: TypeTimeslotMissing})
		_ = bus.Emit(context.Background(), Event{Type: TypeTimeslotMissing})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on a full subscriber")
	}
	assert.Len(t, ch, 1)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := NewChannelBus(1)
	ch, unsub := bus.Subscribe()
	unsub()
	unsub() // second call is a no-op

	_, open := <-ch
	assert.False(t, open)
	assert.NoError(t, bus.Emit(context.Background(), Event{Type: TypeError}))
}
