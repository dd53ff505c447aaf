package events

import (
	"sync"
	"sync/atomic"

	"github.com/mledur/quill/pkg/logging"
)

const defaultQueueSize = 256

// EventHandler is a function that handles an event
type EventHandler func(event interface{})

// Publisher allows publishing events
type Publisher interface {
	Publish(topic string, event interface{})
}

// Subscriber allows subscribing to events
type Subscriber interface {
	Subscribe(topic string, handler EventHandler)
}

// EventBus provides both publishing and subscribing
type EventBus interface {
	Publisher
	Subscriber
}

// InMemoryBus delivers events in insertion order per topic through a
// dedicated queue goroutine. Publishing never blocks: when a topic queue
// is full the event is dropped and counted instead.
type InMemoryBus struct {
	mu        sync.RWMutex
	handlers  map[string][]EventHandler
	queues    map[string]*topicQueue
	queueSize int
	dropped   atomic.Int64
	logger    logging.Logger
}

// NewEventBus creates a bus with the default per-topic queue size.
func NewEventBus() EventBus {
	return NewEventBusWithBuffer(defaultQueueSize)
}

// NewEventBusWithBuffer creates a bus with a custom per-topic queue size.
// A size of at least 1 is enforced to avoid unbuffered sends.
func NewEventBusWithBuffer(size int) EventBus {
	if size < 1 {
		size = 1
	}
	return &InMemoryBus{
		handlers:  make(map[string][]EventHandler),
		queues:    make(map[string]*topicQueue),
		queueSize: size,
		logger:    logging.NewComponentLogger("events"),
	}
}

// Subscribe adds a handler for a topic.
func (b *InMemoryBus) Subscribe(topic string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[topic] = append(b.handlers[topic], handler)
}

// Publish sends an event to every handler subscribed to the topic.
func (b *InMemoryBus) Publish(topic string, event interface{}) {
	subscribed := b.subscribedHandlers(topic)
	if len(subscribed) == 0 {
		return
	}

	queue := b.queueFor(topic)
	if !queue.offer(delivery{event: event, handlers: subscribed}) {
		b.dropped.Add(1)
		b.logger.Warn("topic queue full, dropping event", "topic", topic)
	}
}

// DroppedCount returns the number of events dropped due to full queues.
func (b *InMemoryBus) DroppedCount() int64 {
	return b.dropped.Load()
}

// Shutdown stops all topic queues. Primarily useful for tests.
func (b *InMemoryBus) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, q := range b.queues {
		q.stop()
	}
}

// subscribedHandlers snapshots the topic's handler list so a delivery is
// unaffected by concurrent Subscribe calls.
func (b *InMemoryBus) subscribedHandlers(topic string) []EventHandler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	subscribed := make([]EventHandler, len(b.handlers[topic]))
	copy(subscribed, b.handlers[topic])
	return subscribed
}

// queueFor returns the topic's queue, creating it on first publish.
func (b *InMemoryBus) queueFor(topic string) *topicQueue {
	b.mu.Lock()
	defer b.mu.Unlock()

	if queue, ok := b.queues[topic]; ok {
		return queue
	}

	queue := newTopicQueue(b.queueSize, b.logger)
	b.queues[topic] = queue
	return queue
}

// delivery pairs one event with the handlers that were subscribed when it
// was published.
type delivery struct {
	event    interface{}
	handlers []EventHandler
}

type topicQueue struct {
	ch       chan delivery
	wg       sync.WaitGroup
	stopOnce sync.Once
	logger   logging.Logger
}

func newTopicQueue(size int, logger logging.Logger) *topicQueue {
	q := &topicQueue{
		ch:     make(chan delivery, size),
		logger: logger,
	}
	q.wg.Add(1)
	go q.run()
	return q
}

// offer enqueues a delivery without blocking; it reports whether the
// queue accepted it.
func (q *topicQueue) offer(d delivery) bool {
	select {
	case q.ch <- d:
		return true
	default:
		return false
	}
}

func (q *topicQueue) run() {
	defer q.wg.Done()
	for d := range q.ch {
		for _, handler := range d.handlers {
			q.deliver(handler, d.event)
		}
	}
}

// deliver isolates handler panics so one bad subscriber cannot take the
// topic's queue down with it.
func (q *topicQueue) deliver(handler EventHandler, event interface{}) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("event handler panicked", "panic", r)
		}
	}()
	handler(event)
}

func (q *topicQueue) stop() {
	q.stopOnce.Do(func() {
		close(q.ch)
		q.wg.Wait()
	})
}
