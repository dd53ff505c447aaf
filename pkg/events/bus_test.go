package events

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestEventBus_PublishSubscribe(t *testing.T) {
	bus := NewEventBus()

	var mu sync.Mutex
	var received []interface{}
	bus.Subscribe("budget.trimmed", func(event interface{}) {
		mu.Lock()
		received = append(received, event)
		mu.Unlock()
	})

	trim := MessagesTrimmedEvent{Strategy: "RemoveOldest", Count: 2, Tokens: 31}
	bus.Publish(trim.Topic(), trim)

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	})

	mu.Lock()
	defer mu.Unlock()
	got, ok := received[0].(MessagesTrimmedEvent)
	assert.True(t, ok)
	assert.Equal(t, 2, got.Count)
	assert.Equal(t, 31, got.Tokens)
}

func TestEventBus_OrderedDeliveryPerTopic(t *testing.T) {
	bus := NewEventBus()

	var mu sync.Mutex
	var order []int
	bus.Subscribe("chat.response", func(event interface{}) {
		mu.Lock()
		order = append(order, event.(int))
		mu.Unlock()
	})

	for i := 0; i < 20; i++ {
		bus.Publish("chat.response", i)
	}

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 20
	})

	mu.Lock()
	defer mu.Unlock()
	for i, v := range order {
		assert.Equal(t, i, v)
	}
}

func TestEventBus_NoSubscribersDoesNotBlock(t *testing.T) {
	bus := NewEventBus()
	bus.Publish("nobody.listening", "hello")
}

func TestEventBus_HandlerPanicDoesNotKillWorker(t *testing.T) {
	bus := NewEventBus()

	var mu sync.Mutex
	delivered := 0
	bus.Subscribe("chat.started", func(event interface{}) {
		mu.Lock()
		delivered++
		mu.Unlock()
		if delivered == 1 {
			panic("first handler call blows up")
		}
	})

	bus.Publish("chat.started", ChatStartedEvent{SessionID: "s1"})
	bus.Publish("chat.started", ChatStartedEvent{SessionID: "s2"})

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return delivered == 2
	})
}

func TestEventBus_FullQueueDropsAndCounts(t *testing.T) {
	bus := NewEventBusWithBuffer(1).(*InMemoryBus)
	defer bus.Shutdown()

	started := make(chan struct{})
	release := make(chan struct{})
	bus.Subscribe("slow.topic", func(event interface{}) {
		if event.(int) == 1 {
			close(started)
			<-release
		}
	})

	bus.Publish("slow.topic", 1)
	<-started // queue worker is now stuck in the handler

	bus.Publish("slow.topic", 2) // fills the single queue slot
	bus.Publish("slow.topic", 3) // no room left

	waitFor(t, func() bool { return bus.DroppedCount() == 1 })
	close(release)
}

func TestNoOpEventBus(t *testing.T) {
	bus := &NoOpEventBus{}
	bus.Subscribe("anything", func(event interface{}) {
		t.Fatal("handler should never run")
	})
	bus.Publish("anything", "payload")
}
