package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusSubscribe(t *testing.T) {
	t.Run("catch-all subscription receives every event", func(t *testing.T) {
		bus := NewBus(8)
		defer bus.Close()

		sub := bus.Subscribe()
		bus.Publish(NewAgentSpawned("agent-1", "code-generator"))
		bus.Publish(NewTaskFailed("task-1", "boom"))

		ev := <-sub.C()
		assert.Equal(t, EventAgentSpawned, ev.Type())
		ev = <-sub.C()
		assert.Equal(t, EventTaskFailed, ev.Type())
	})

	t.Run("typed subscription filters other events", func(t *testing.T) {
		bus := NewBus(8)
		defer bus.Close()

		sub := bus.Subscribe(EventTaskCompleted)
		bus.Publish(NewAgentSpawned("agent-1", "code-generator"))
		bus.Publish(NewTaskCompleted("task-1", 0))
		bus.Close()

		var received []EventType
		for ev := range sub.C() {
			received = append(received, ev.Type())
		}
		assert.Equal(t, []EventType{EventTaskCompleted}, received)
	})

	t.Run("multiple subscribers each get a copy", func(t *testing.T) {
		bus := NewBus(8)
		defer bus.Close()

		a := bus.Subscribe(EventWorkflowStarted)
		b := bus.Subscribe(EventWorkflowStarted)
		bus.Publish(NewWorkflowStarted("wf-1", "exec-1", 3))

		evA := <-a.C()
		evB := <-b.C()
		assert.Equal(t, EventWorkflowStarted, evA.Type())
		assert.Equal(t, EventWorkflowStarted, evB.Type())
	})
}

func TestBusDropCounting(t *testing.T) {
	bus := NewBus(1)
	defer bus.Close()

	_ = bus.Subscribe() // never drained

	bus.Publish(NewTaskFailed("task-1", "x"))
	bus.Publish(NewTaskFailed("task-2", "x"))
	bus.Publish(NewTaskFailed("task-3", "x"))

	// Buffer holds one event, the other two are dropped.
	assert.Equal(t, uint64(2), bus.DroppedCount())
}

func TestBusClose(t *testing.T) {
	t.Run("close is idempotent and closes channels", func(t *testing.T) {
		bus := NewBus(4)
		sub := bus.Subscribe()

		bus.Close()
		bus.Close()

		_, open := <-sub.C()
		assert.False(t, open)
	})

	t.Run("publish after close is a no-op", func(t *testing.T) {
		bus := NewBus(4)
		bus.Close()
		bus.Publish(NewTaskCompleted("task-1", 0))
		assert.Equal(t, uint64(0), bus.DroppedCount())
	})

	t.Run("subscribe after close yields a closed channel", func(t *testing.T) {
		bus := NewBus(4)
		bus.Close()
		sub := bus.Subscribe()
		_, open := <-sub.C()
		assert.False(t, open)
	})

	t.Run("unsubscribe removes the subscriber", func(t *testing.T) {
		bus := NewBus(4)
		defer bus.Close()

		sub := bus.Subscribe()
		bus.Unsubscribe(sub)
		require.NotPanics(t, func() { bus.Unsubscribe(sub) })

		bus.Publish(NewTaskCompleted("task-1", 0))
		_, open := <-sub.C()
		assert.False(t, open)
	})
}
