package budget

// Summary is an immutable point-in-time view of the engine: configuration,
// accounting, lifetime trim statistics, and per-message cost aggregates.
type Summary struct {
	MaxTokens          int
	ReserveForResponse int
	ReserveTokens      int
	AvailableTokens    int

	UsedTokens      int
	RemainingTokens int
	UsagePercent    float64
	OverBudget      bool

	MessageCount   int
	MessagesByRole map[Role]int

	TrimmedCount  int
	TrimmedTokens int

	Strategy       string
	KeepFirstTurns int

	// LargestMessageTokens and MeanMessageTokens describe the per-message
	// cost distribution of the current store; both are 0 when it is empty.
	LargestMessageTokens int
	MeanMessageTokens    float64
}

// Summary returns a consistent snapshot of the engine's state, taken under
// the same critical section as every mutating operation.
func (m *Manager) Summary() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	byRole := map[Role]int{}
	largest := 0
	for _, msg := range m.messages {
		byRole[msg.Role]++
		if msg.Tokens > largest {
			largest = msg.Tokens
		}
	}

	mean := 0.0
	if len(m.messages) > 0 {
		mean = float64(m.usedTokens) / float64(len(m.messages))
	}

	available := m.availableLocked()
	remaining := available - m.usedTokens
	if remaining < 0 {
		remaining = 0
	}

	return Summary{
		MaxTokens:          m.maxTokens,
		ReserveForResponse: m.reserveForResponse,
		ReserveTokens:      m.reserveTokens,
		AvailableTokens:    available,

		UsedTokens:      m.usedTokens,
		RemainingTokens: remaining,
		UsagePercent:    m.usagePercentLocked(),
		OverBudget:      m.usedTokens > available,

		MessageCount:   len(m.messages),
		MessagesByRole: byRole,

		TrimmedCount:  m.trimmedCount,
		TrimmedTokens: m.trimmedTokens,

		Strategy:       m.strategy.Name(),
		KeepFirstTurns: m.keepFirstTurns,

		LargestMessageTokens: largest,
		MeanMessageTokens:    mean,
	}
}
