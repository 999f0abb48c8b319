package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecentEventsNewestFirst(t *testing.T) {
	env := newTestEnv(t)
	id := "srv-1"

	require.NoError(t, env.events.CreateEvent("a", "info", "first", nil))
	require.NoError(t, env.events.CreateEvent("b", "warn", "second", &id))
	require.NoError(t, env.events.CreateEvent("c", "info", "third", nil))

	events, err := env.events.GetRecentEvents(2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "c", events[0].Type)
	assert.Equal(t, "b", events[1].Type)
	require.NotNil(t, events[1].ServerID)
	assert.Equal(t, id, *events[1].ServerID)
	assert.Nil(t, events[0].ServerID)
}
