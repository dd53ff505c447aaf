package events

// ChatStartedEvent is published when a user message is dispatched to a backend
type ChatStartedEvent struct {
	SessionID string
	Message   string
}

// Topic returns the topic name for chat started events
func (e ChatStartedEvent) Topic() string {
	return "chat.started"
}

// ChatResponseEvent is published when a backend response completes a turn
type ChatResponseEvent struct {
	SessionID string
	Message   string
	Response  string
	Error     error
}

// Topic returns the topic name for chat response events
func (e ChatResponseEvent) Topic() string {
	return "chat.response"
}

// MessagesTrimmedEvent is published when the budget engine evicts messages
// to bring a conversation back under its token ceiling.
type MessagesTrimmedEvent struct {
	Strategy string
	Count    int
	Tokens   int
}

// Topic returns the topic name for trim events
func (e MessagesTrimmedEvent) Topic() string {
	return "budget.trimmed"
}

// TokenCountEvent carries token usage reported by a backend or estimator
type TokenCountEvent struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

// Topic returns the topic name for token count events
func (e TokenCountEvent) Topic() string {
	return "tokens.counted"
}

// NoOpPublisher is a publisher that does nothing (for testing)
type NoOpPublisher struct{}

// Publish does nothing
func (n *NoOpPublisher) Publish(topic string, event interface{}) {
}

// NoOpEventBus is an event bus that does nothing (for testing)
type NoOpEventBus struct{}

// Publish does nothing
func (n *NoOpEventBus) Publish(topic string, event interface{}) {
}

// Subscribe does nothing
func (n *NoOpEventBus) Subscribe(topic string, handler EventHandler) {
}
