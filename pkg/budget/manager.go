// Package budget tracks the token cost of a growing message history
// against a model's context window and evicts messages under a pluggable
// strategy when the ceiling would otherwise be exceeded.
//
// Token counts come from a tokens.Estimator and are approximate; the
// reserve settings exist to absorb that inaccuracy. Being over budget is
// a steady, inspectable state rather than an error: when only system
// messages remain, trimming stops and IsOverBudget stays true.
package budget

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/mledur/quill/pkg/events"
	"github.com/mledur/quill/pkg/logging"
	"github.com/mledur/quill/pkg/tokens"
)

const (
	// messageOverhead is the fixed per-message framing cost added on top
	// of the estimated content cost.
	messageOverhead = 4

	// minContextTokens is the smallest context window the engine accepts.
	minContextTokens = 100
)

// Manager owns an ordered message store and is the single source of truth
// for used vs available tokens. Every operation, including the trimming
// loop triggered by AddMessage, runs under one exclusive critical section,
// so concurrent callers observe each call as atomic.
type Manager struct {
	mu sync.Mutex

	maxTokens          int
	reserveForResponse int
	reserveTokens      int
	strategy           Strategy
	keepFirstTurns     int

	estimator tokens.Estimator
	publisher events.Publisher
	logger    logging.Logger

	messages   []Message
	usedTokens int

	trimmedCount  int
	trimmedTokens int
}

// Option configures a Manager at construction time.
type Option func(*Manager)

// WithEstimator replaces the default heuristic estimator.
func WithEstimator(estimator tokens.Estimator) Option {
	return func(m *Manager) {
		if estimator != nil {
			m.estimator = estimator
		}
	}
}

// WithStrategy sets the initial eviction strategy.
func WithStrategy(strategy Strategy) Option {
	return func(m *Manager) {
		if strategy != nil {
			m.strategy = strategy
		}
	}
}

// WithKeepFirstTurns sets the number of protected turn-pairs for the
// sliding-window strategy.
func WithKeepFirstTurns(turns int) Option {
	return func(m *Manager) {
		m.keepFirstTurns = turns
	}
}

// WithReserveTokens sets the initial safety margin for estimator inaccuracy.
func WithReserveTokens(reserve int) Option {
	return func(m *Manager) {
		m.reserveTokens = reserve
	}
}

// WithPublisher injects an event publisher notified when messages are trimmed.
func WithPublisher(publisher events.Publisher) Option {
	return func(m *Manager) {
		if publisher != nil {
			m.publisher = publisher
		}
	}
}

// WithLogger injects a custom logger implementation.
func WithLogger(logger logging.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// New creates a budget manager for a context window of maxTokens with
// reserveForResponse tokens set aside for the model's reply.
func New(maxTokens, reserveForResponse int, opts ...Option) (*Manager, error) {
	if maxTokens < minContextTokens {
		return nil, fmt.Errorf("%w: maxTokens %d is below the minimum of %d", ErrInvalidArgument, maxTokens, minContextTokens)
	}
	if reserveForResponse < 0 || reserveForResponse >= maxTokens {
		return nil, fmt.Errorf("%w: reserveForResponse %d must be in [0, %d)", ErrInvalidArgument, reserveForResponse, maxTokens)
	}

	m := &Manager{
		maxTokens:          maxTokens,
		reserveForResponse: reserveForResponse,
		strategy:           RemoveOldest{},
		estimator:          tokens.Heuristic{},
		publisher:          &events.NoOpPublisher{},
		logger:             logging.NewComponentLogger("budget"),
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.reserveTokens < 0 {
		return nil, fmt.Errorf("%w: reserveTokens must not be negative", ErrInvalidArgument)
	}
	if m.keepFirstTurns < 0 {
		return nil, fmt.Errorf("%w: keepFirstTurns must not be negative", ErrInvalidArgument)
	}

	return m, nil
}

// AddMessage validates and appends one message, then trims until the
// budget is satisfied or only system messages remain. It returns the
// number of messages evicted as a side effect of this call.
func (m *Manager) AddMessage(role, content string) (int, error) {
	parsed, err := ParseRole(role)
	if err != nil {
		return 0, err
	}
	if content == "" {
		return 0, fmt.Errorf("%w: content must not be empty", ErrInvalidArgument)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cost := m.estimator.Estimate(content) + messageOverhead
	m.messages = append(m.messages, Message{
		Role:    parsed,
		Content: content,
		Tokens:  cost,
		AddedAt: time.Now(),
	})
	m.usedTokens += cost

	return m.trimLocked(), nil
}

// trimLocked evicts messages until usage fits the available budget.
// System messages are never candidates; when only they remain the budget
// may stay exceeded.
func (m *Manager) trimLocked() int {
	available := m.availableLocked()
	evicted := 0
	freed := 0

	for m.usedTokens > available {
		victim := m.strategy.Victim(m.messages, m.keepFirstTurns)
		if victim < 0 {
			break
		}

		msg := m.messages[victim]
		m.messages = append(m.messages[:victim], m.messages[victim+1:]...)
		m.usedTokens -= msg.Tokens
		m.trimmedCount++
		m.trimmedTokens += msg.Tokens
		evicted++
		freed += msg.Tokens

		m.logger.Debug("evicted message",
			"strategy", m.strategy.Name(),
			"role", msg.Role,
			"tokens", msg.Tokens,
			"used", m.usedTokens,
			"available", available,
		)
	}

	if evicted > 0 {
		event := events.MessagesTrimmedEvent{
			Strategy: m.strategy.Name(),
			Count:    evicted,
			Tokens:   freed,
		}
		m.publisher.Publish(event.Topic(), event)
	}

	return evicted
}

// WouldFit reports whether content could be added without exceeding the
// available budget. It never mutates state. Empty content always fits.
func (m *Manager) WouldFit(content string) bool {
	if content == "" {
		return true
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cost := m.estimator.Estimate(content) + messageOverhead
	return m.usedTokens+cost <= m.availableLocked()
}

// availableLocked derives the spendable budget from the configuration.
func (m *Manager) availableLocked() int {
	available := m.maxTokens - m.reserveForResponse - m.reserveTokens
	if available < 0 {
		return 0
	}
	return available
}

// MaxTokens returns the configured context window size
func (m *Manager) MaxTokens() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxTokens
}

// ReserveForResponse returns the tokens set aside for the model's reply
func (m *Manager) ReserveForResponse() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reserveForResponse
}

// ReserveTokens returns the current estimator safety margin
func (m *Manager) ReserveTokens() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reserveTokens
}

// SetReserveTokens adjusts the estimator safety margin
func (m *Manager) SetReserveTokens(reserve int) error {
	if reserve < 0 {
		return fmt.Errorf("%w: reserveTokens must not be negative", ErrInvalidArgument)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reserveTokens = reserve
	return nil
}

// Strategy returns the active eviction strategy
func (m *Manager) Strategy() Strategy {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.strategy
}

// SetStrategy switches the eviction strategy. Takes effect on the next trim.
func (m *Manager) SetStrategy(strategy Strategy) error {
	if strategy == nil {
		return fmt.Errorf("%w: strategy must not be nil", ErrInvalidArgument)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.strategy = strategy
	return nil
}

// KeepFirstTurns returns the protected turn-pair count for SlidingWindow
func (m *Manager) KeepFirstTurns() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.keepFirstTurns
}

// SetKeepFirstTurns adjusts the protected turn-pair count for SlidingWindow
func (m *Manager) SetKeepFirstTurns(turns int) error {
	if turns < 0 {
		return fmt.Errorf("%w: keepFirstTurns must not be negative", ErrInvalidArgument)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keepFirstTurns = turns
	return nil
}

// AvailableTokens returns max(0, maxTokens - reserveForResponse - reserveTokens)
func (m *Manager) AvailableTokens() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.availableLocked()
}

// UsedTokens returns the total token cost of all stored messages
func (m *Manager) UsedTokens() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.usedTokens
}

// RemainingTokens returns the unspent budget, never negative
func (m *Manager) RemainingTokens() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	remaining := m.availableLocked() - m.usedTokens
	if remaining < 0 {
		return 0
	}
	return remaining
}

// UsagePercent returns usage as a percentage of the available budget,
// capped at 100. A zero budget reads as fully used.
func (m *Manager) UsagePercent() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.usagePercentLocked()
}

func (m *Manager) usagePercentLocked() float64 {
	available := m.availableLocked()
	if available == 0 {
		return 100
	}
	return math.Min(100, float64(m.usedTokens)/float64(available)*100)
}

// IsOverBudget reports whether usage currently exceeds the available
// budget. This can stay true after trimming when system messages alone
// consume more than the budget.
func (m *Manager) IsOverBudget() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.usedTokens > m.availableLocked()
}

// MessageCount returns the number of stored messages
func (m *Manager) MessageCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

// Messages returns an ordered copy of the stored messages
func (m *Manager) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.messages))
	copy(out, m.messages)
	return out
}

// MessageContents returns the ordered message payloads without metadata
func (m *Manager) MessageContents() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.messages))
	for i, msg := range m.messages {
		out[i] = msg.Content
	}
	return out
}

// ClearHistory removes every non-system message and recomputes usage from
// the surviving system messages. Lifetime trim counters are untouched.
func (m *Manager) ClearHistory() {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.messages[:0]
	used := 0
	for _, msg := range m.messages {
		if msg.IsSystem() {
			kept = append(kept, msg)
			used += msg.Tokens
		}
	}
	m.messages = kept
	m.usedTokens = used
}

// ClearAll removes every message including system messages. Lifetime trim
// counters are untouched.
func (m *Manager) ClearAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.messages = nil
	m.usedTokens = 0
}

// TrimmedCount returns the total number of messages ever evicted
func (m *Manager) TrimmedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.trimmedCount
}

// TrimmedTokens returns the total token cost ever evicted
func (m *Manager) TrimmedTokens() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.trimmedTokens
}
