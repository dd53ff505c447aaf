package budget

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshot_RoundTrip(t *testing.T) {
	m := newTestManager(t, 110, 100,
		WithEstimator(fixedEstimator{cost: 1}),
		WithStrategy(SlidingWindow{}),
		WithKeepFirstTurns(2),
		WithReserveTokens(3),
	)

	// Force two evictions so the lifetime counters are non-zero.
	for _, content := range []string{"a", "b", "c", "d"} {
		_, err := m.AddMessage("user", content)
		require.NoError(t, err)
	}
	require.Equal(t, 3, m.TrimmedCount())

	_, err := m.AddMessage("system", "rules")
	require.NoError(t, err)

	data, err := m.Snapshot()
	require.NoError(t, err)

	restored, err := Restore(data, WithEstimator(fixedEstimator{cost: 1}))
	require.NoError(t, err)

	assert.Equal(t, m.MaxTokens(), restored.MaxTokens())
	assert.Equal(t, m.ReserveForResponse(), restored.ReserveForResponse())
	assert.Equal(t, m.ReserveTokens(), restored.ReserveTokens())
	assert.Equal(t, m.Strategy().Name(), restored.Strategy().Name())
	assert.Equal(t, m.KeepFirstTurns(), restored.KeepFirstTurns())
	assert.Equal(t, m.TrimmedCount(), restored.TrimmedCount())
	assert.Equal(t, m.TrimmedTokens(), restored.TrimmedTokens())
	assert.Equal(t, m.UsedTokens(), restored.UsedTokens())

	original := m.Messages()
	recovered := restored.Messages()
	require.Len(t, recovered, len(original))
	for i := range original {
		assert.Equal(t, original[i].Role, recovered[i].Role)
		assert.Equal(t, original[i].Content, recovered[i].Content)
		assert.Equal(t, original[i].Tokens, recovered[i].Tokens)
	}
}

func TestSnapshot_FieldNames(t *testing.T) {
	m := newTestManager(t, 200, 50)
	_, err := m.AddMessage("user", "hello")
	require.NoError(t, err)

	data, err := m.Snapshot()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))

	for _, field := range []string{
		"maxTokens", "reserveForResponse", "reserveTokens",
		"strategy", "keepFirstTurns", "messages",
		"trimmedCount", "trimmedTokens",
	} {
		assert.Contains(t, decoded, field)
	}

	messages := decoded["messages"].([]any)
	entry := messages[0].(map[string]any)
	assert.Contains(t, entry, "role")
	assert.Contains(t, entry, "content")
	assert.Contains(t, entry, "tokens")
}

func TestRestore_RejectsOversizedPayload(t *testing.T) {
	data := bytes.Repeat([]byte("x"), MaxSnapshotBytes+1)

	_, err := Restore(data)
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestRestore_RejectsMalformedJSON(t *testing.T) {
	_, err := Restore([]byte("{not json"))
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestRestore_UnknownStrategyFallsBackToDefault(t *testing.T) {
	data := []byte(`{
		"maxTokens": 200,
		"reserveForResponse": 50,
		"reserveTokens": 0,
		"strategy": "RemoveCheapest",
		"keepFirstTurns": 0,
		"messages": [],
		"trimmedCount": 0,
		"trimmedTokens": 0
	}`)

	m, err := Restore(data)
	require.NoError(t, err)
	assert.Equal(t, "RemoveOldest", m.Strategy().Name())
}

func TestRestore_RecomputesMissingTokenCosts(t *testing.T) {
	data := []byte(`{
		"maxTokens": 200,
		"reserveForResponse": 50,
		"reserveTokens": 0,
		"strategy": "RemoveOldest",
		"keepFirstTurns": 0,
		"messages": [
			{"role": "user", "content": "Hello world", "tokens": 0},
			{"role": "assistant", "content": "persisted", "tokens": 42}
		],
		"trimmedCount": 0,
		"trimmedTokens": 0
	}`)

	m, err := Restore(data)
	require.NoError(t, err)

	messages := m.Messages()
	require.Len(t, messages, 2)
	assert.Equal(t, 7, messages[0].Tokens, "re-estimated: 3 heuristic tokens + 4 overhead")
	assert.Equal(t, 42, messages[1].Tokens, "positive persisted cost is kept verbatim")
	assert.Equal(t, 49, m.UsedTokens())
}

func TestRestore_RejectsUnknownRole(t *testing.T) {
	data := []byte(`{
		"maxTokens": 200,
		"reserveForResponse": 50,
		"messages": [{"role": "narrator", "content": "hm", "tokens": 5}]
	}`)

	_, err := Restore(data)
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestRestore_InvalidConfigFailsValidation(t *testing.T) {
	data := []byte(`{"maxTokens": 10, "reserveForResponse": 0}`)

	_, err := Restore(data)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestRestore_DoesNotTrimOversizedHistory(t *testing.T) {
	// A snapshot may legitimately exceed the budget (system-only overflow);
	// restoring must reproduce it exactly rather than trim it.
	data := []byte(`{
		"maxTokens": 100,
		"reserveForResponse": 95,
		"messages": [
			{"role": "user", "content": "big", "tokens": 50},
			{"role": "user", "content": "bigger", "tokens": 60}
		]
	}`)

	m, err := Restore(data)
	require.NoError(t, err)
	assert.Equal(t, 2, m.MessageCount())
	assert.Equal(t, 110, m.UsedTokens())
	assert.True(t, m.IsOverBudget())
}
