package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionManager_AddAndGet(t *testing.T) {
	manager := NewSessionManager()
	s := newTestSession(t, &scriptedGen{})

	require.NoError(t, manager.AddSession(s))

	got, err := manager.GetSession(s.ID())
	require.NoError(t, err)
	assert.Same(t, s, got)
}

func TestSessionManager_GetUnknown(t *testing.T) {
	manager := NewSessionManager()

	_, err := manager.GetSession("missing")
	assert.ErrorContains(t, err, "no session with id")
}

func TestSessionManager_DuplicateAdd(t *testing.T) {
	manager := NewSessionManager()
	s := newTestSession(t, &scriptedGen{})

	require.NoError(t, manager.AddSession(s))
	assert.ErrorContains(t, manager.AddSession(s), "already exists")
}

func TestSessionManager_RemoveSession(t *testing.T) {
	manager := NewSessionManager()
	s := newTestSession(t, &scriptedGen{})
	require.NoError(t, manager.AddSession(s))

	manager.RemoveSession(s.ID())
	_, err := manager.GetSession(s.ID())
	assert.Error(t, err)

	// Removing again is a no-op.
	manager.RemoveSession(s.ID())
}

func TestSessionManager_SessionIDs(t *testing.T) {
	manager := NewSessionManager()
	first := newTestSession(t, &scriptedGen{})
	second := newTestSession(t, &scriptedGen{})
	require.NoError(t, manager.AddSession(first))
	require.NoError(t, manager.AddSession(second))

	ids := manager.SessionIDs()
	assert.ElementsMatch(t, []string{first.ID(), second.ID()}, ids)
}
