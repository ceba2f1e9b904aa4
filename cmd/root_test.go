package cmd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStageTime(t *testing.T) {
	now := time.Date(2021, 1, 12, 7, 42, 10, 0, time.UTC)

	at = ""
	got, err := stageTime(now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2021, 1, 12, 7, 0, 0, 0, time.UTC), got)

	at = "2021-01-13T00:00:00Z"
	got, err = stageTime(now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2021, 1, 13, 0, 0, 0, 0, time.UTC), got)

	at = "tomorrow"
	_, err = stageTime(now)
	assert.Error(t, err)
	at = ""
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, n := range []string{"plan", "execute", "dispatch", "report", "export", "kpi-backfill"} {
		assert.True(t, names[n], n)
	}
}

func TestParseMode(t *testing.T) {
	m, err := parseMode("execution")
	require.NoError(t, err)
	assert.Equal(t, "execution", m.String())
	_, err = parseMode("daily")
	assert.Error(t, err)
}
