package msk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartAndEndOfDay(t *testing.T) {
	// 23:30 UTC is already the next day in Moscow (UTC+3).
	utc := time.Date(2025, 3, 10, 23, 30, 0, 0, time.UTC)

	start := StartOfDay(utc)
	assert.Equal(t, 2025, start.Year())
	assert.Equal(t, time.March, start.Month())
	assert.Equal(t, 11, start.Day())
	assert.Equal(t, 0, start.Hour())

	end := EndOfDay(utc)
	assert.Equal(t, 11, end.Day())
	assert.Equal(t, 23, end.Hour())
	assert.Equal(t, 59, end.Minute())
	assert.Equal(t, 59, end.Second())
}

func TestFormatISOStripsMillis(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 30, 45, 987654321, time.FixedZone("X", 3*3600))
	assert.Equal(t, "2025-06-01T09:30:45Z", FormatISO(ts))
}

func TestComputeSearchWindow(t *testing.T) {
	now := time.Date(2025, 5, 1, 10, 0, 0, 0, Location())

	t.Run("deadline inside horizon", func(t *testing.T) {
		deadline := now.AddDate(0, 0, 7)
		w := ComputeSearchWindow(now, deadline, 1, 28)
		require.True(t, w.Valid())
		assert.Equal(t, DayStartIn(now, 1), w.From)
		assert.Equal(t, EndOfDay(deadline), w.To)
	})

	t.Run("deadline beyond horizon is capped", func(t *testing.T) {
		deadline := now.AddDate(0, 0, 90)
		w := ComputeSearchWindow(now, deadline, 0, 28)
		assert.Equal(t, EndOfDay(now.AddDate(0, 0, 28)), w.To)
	})

	t.Run("readiness after deadline is invalid", func(t *testing.T) {
		deadline := now.Add(12 * time.Hour)
		w := ComputeSearchWindow(now, deadline, 3, 28)
		assert.False(t, w.Valid())
	})
}

func TestReadinessCutoffMovesWithClock(t *testing.T) {
	now := time.Date(2025, 5, 1, 23, 0, 0, 0, Location())
	before := ReadinessCutoff(now, 1)
	after := ReadinessCutoff(now.Add(2*time.Hour), 1)
	assert.True(t, after.After(before))
}
