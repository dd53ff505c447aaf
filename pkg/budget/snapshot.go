package budget

import (
	"encoding/json"
	"fmt"
	"time"
)

// MaxSnapshotBytes is the largest snapshot payload Restore will parse.
// The guard runs before parsing to bound memory use.
const MaxSnapshotBytes = 10 << 20 // 10 MiB

type snapshotMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Tokens  int    `json:"tokens"`
}

type snapshot struct {
	MaxTokens          int               `json:"maxTokens"`
	ReserveForResponse int               `json:"reserveForResponse"`
	ReserveTokens      int               `json:"reserveTokens"`
	Strategy           string            `json:"strategy"`
	KeepFirstTurns     int               `json:"keepFirstTurns"`
	Messages           []snapshotMessage `json:"messages"`
	TrimmedCount       int               `json:"trimmedCount"`
	TrimmedTokens      int               `json:"trimmedTokens"`
}

// Snapshot serializes the full engine state: configuration, ordered
// message list, and lifetime trim counters. Restoring the result yields an
// engine with identical accounting.
func (m *Manager) Snapshot() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := snapshot{
		MaxTokens:          m.maxTokens,
		ReserveForResponse: m.reserveForResponse,
		ReserveTokens:      m.reserveTokens,
		Strategy:           m.strategy.Name(),
		KeepFirstTurns:     m.keepFirstTurns,
		Messages:           make([]snapshotMessage, len(m.messages)),
		TrimmedCount:       m.trimmedCount,
		TrimmedTokens:      m.trimmedTokens,
	}
	for i, msg := range m.messages {
		snap.Messages[i] = snapshotMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
			Tokens:  msg.Tokens,
		}
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("marshaling snapshot: %w", err)
	}
	return data, nil
}

// Restore reconstructs an engine from a snapshot payload. Messages keep
// their persisted token cost when positive and are re-estimated otherwise.
// An unknown strategy name silently falls back to the engine's default
// (or whatever WithStrategy set). Restore never trims: the message list
// comes back exactly as serialized, even if it exceeds the budget.
func Restore(data []byte, opts ...Option) (*Manager, error) {
	if len(data) > MaxSnapshotBytes {
		return nil, fmt.Errorf("%w: snapshot is %d bytes, maximum is %d", ErrInvalidFormat, len(data), MaxSnapshotBytes)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}

	m, err := New(snap.MaxTokens, snap.ReserveForResponse, opts...)
	if err != nil {
		return nil, err
	}

	if snap.ReserveTokens > 0 {
		m.reserveTokens = snap.ReserveTokens
	}
	if snap.KeepFirstTurns > 0 {
		m.keepFirstTurns = snap.KeepFirstTurns
	}
	if strategy, ok := strategyByName(snap.Strategy); ok {
		m.strategy = strategy
	}

	now := time.Now()
	for _, sm := range snap.Messages {
		role, err := ParseRole(sm.Role)
		if err != nil {
			return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidFormat, sm.Role)
		}
		cost := sm.Tokens
		if cost <= 0 {
			cost = m.estimator.Estimate(sm.Content) + messageOverhead
		}
		m.messages = append(m.messages, Message{
			Role:    role,
			Content: sm.Content,
			Tokens:  cost,
			AddedAt: now,
		})
		m.usedTokens += cost
	}

	m.trimmedCount = snap.TrimmedCount
	m.trimmedTokens = snap.TrimmedTokens

	return m, nil
}
