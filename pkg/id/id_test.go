package id

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRunIDRoundTripsTime(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	runID, err := NewRunIDAt(at)
	require.NoError(t, err)
	require.True(t, IsValid(runID))

	started, err := StartedAt(runID)
	require.NoError(t, err)
	require.True(t, at.Equal(started), "got %s", started)
}

func TestIsValidRejectsGarbage(t *testing.T) {
	require.False(t, IsValid("foobar"))

	_, err := StartedAt("foobar")
	require.Error(t, err)
}

func TestRunIDsAreUniqueAndOrdered(t *testing.T) {
	now := time.Now()
	const length = 10000
	seen := make(map[string]struct{}, length)
	prev := ""
	for i := 0; i < length; i++ {
		runID, err := NewRunIDAt(now)
		require.NoError(t, err)
		require.Greater(t, runID, prev)
		seen[runID] = struct{}{}
		prev = runID
	}
	require.Len(t, seen, length)
}
