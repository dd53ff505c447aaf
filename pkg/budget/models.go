package budget

import (
	"fmt"
	"strings"
)

// DefaultContextWindow is used for model names not in the preset table.
const DefaultContextWindow = 128000

// modelContextWindows maps known model names to context window sizes.
var modelContextWindows = map[string]int{
	"gpt-4":             8192,
	"gpt-4-32k":         32768,
	"gpt-4-turbo":       128000,
	"gpt-4o":            128000,
	"gpt-4o-mini":       128000,
	"gpt-3.5-turbo":     16385,
	"claude-3-opus":     200000,
	"claude-3-5-sonnet": 200000,
}

// ContextWindowFor returns the context window size for a model name,
// falling back to DefaultContextWindow for unrecognized names.
func ContextWindowFor(model string) int {
	if window, ok := modelContextWindows[model]; ok {
		return window
	}
	if strings.HasPrefix(model, "claude-4") {
		return 200000
	}
	return DefaultContextWindow
}

// ForModel builds a manager sized to a known model's context window. The
// requested response reserve is clamped to stay strictly below the window.
func ForModel(model string, reserveForResponse int, opts ...Option) (*Manager, error) {
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("%w: model name must not be empty", ErrInvalidArgument)
	}

	window := ContextWindowFor(model)
	if reserveForResponse >= window {
		reserveForResponse = window - 1
	}

	return New(window, reserveForResponse, opts...)
}
