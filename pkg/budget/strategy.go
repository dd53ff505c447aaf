package budget

// Strategy selects which message the trimmer evicts next.
// Implementations are pure selection functions over the ordered store:
// they never mutate it, and they must never pick a system message.
// The trimming loop itself is strategy-agnostic; adding a strategy means
// adding a type here and registering its name.
type Strategy interface {
	// Name returns the stable identifier used in snapshots and summaries.
	Name() string

	// Victim returns the index of the message to evict, or -1 when no
	// message is eligible.
	Victim(messages []Message, keepFirstTurns int) int
}

// RemoveOldest evicts the earliest-inserted non-system message. FIFO,
// fully deterministic.
type RemoveOldest struct{}

// Name returns "RemoveOldest"
func (RemoveOldest) Name() string { return "RemoveOldest" }

// Victim returns the index of the first non-system message
func (RemoveOldest) Victim(messages []Message, keepFirstTurns int) int {
	for i := range messages {
		if !messages[i].IsSystem() {
			return i
		}
	}
	return -1
}

// SlidingWindow protects the earliest keepFirstTurns user/assistant
// turn-pairs (two non-system messages per turn) and evicts the oldest
// message outside that protected quota.
type SlidingWindow struct{}

// Name returns "SlidingWindow"
func (SlidingWindow) Name() string { return "SlidingWindow" }

// Victim returns the oldest unprotected non-system message. When every
// non-system message falls within the protected quota, the oldest one is
// evicted anyway so the trimming loop can make progress; callers that need
// the first turns intact must size the budget to hold them.
func (SlidingWindow) Victim(messages []Message, keepFirstTurns int) int {
	protected := keepFirstTurns * 2
	seen := 0
	for i := range messages {
		if messages[i].IsSystem() {
			continue
		}
		if seen >= protected {
			return i
		}
		seen++
	}
	return RemoveOldest{}.Victim(messages, keepFirstTurns)
}

// RemoveLongest evicts the non-system message with the greatest token
// cost. Ties go to the earliest-inserted of the tied messages.
type RemoveLongest struct{}

// Name returns "RemoveLongest"
func (RemoveLongest) Name() string { return "RemoveLongest" }

// Victim returns the index of the most expensive non-system message
func (RemoveLongest) Victim(messages []Message, keepFirstTurns int) int {
	best := -1
	bestTokens := 0
	for i := range messages {
		if messages[i].IsSystem() {
			continue
		}
		// Strict comparison keeps the first maximum found.
		if best == -1 || messages[i].Tokens > bestTokens {
			best = i
			bestTokens = messages[i].Tokens
		}
	}
	return best
}

// strategyByName resolves a snapshot strategy name. Unknown names return
// false so the caller can keep its default instead of failing.
func strategyByName(name string) (Strategy, bool) {
	switch name {
	case RemoveOldest{}.Name():
		return RemoveOldest{}, true
	case SlidingWindow{}.Name():
		return SlidingWindow{}, true
	case RemoveLongest{}.Name():
		return RemoveLongest{}, true
	default:
		return nil, false
	}
}
