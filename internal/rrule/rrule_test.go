package rrule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	dtstart := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)

	t.Run("yearly rule", func(t *testing.T) {
		rule, err := Parse("FREQ=YEARLY", dtstart)
		require.NoError(t, err)

		next := rule.After(dtstart, false)
		assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), next)
	})

	t.Run("accepts RRULE prefix", func(t *testing.T) {
		_, err := Parse("RRULE:FREQ=MONTHLY;INTERVAL=2", dtstart)
		require.NoError(t, err)
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := Parse("not a rule", dtstart)
		assert.Error(t, err)
	})
}

func TestNextOccurrence(t *testing.T) {
	dtstart := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)

	t.Run("after past occurrence", func(t *testing.T) {
		after := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
		next, err := NextOccurrence("FREQ=YEARLY", dtstart, after)
		require.NoError(t, err)
		require.NotNil(t, next)
		assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), *next)
	})

	t.Run("inclusive of exact match", func(t *testing.T) {
		next, err := NextOccurrence("FREQ=YEARLY", dtstart, dtstart)
		require.NoError(t, err)
		require.NotNil(t, next)
		assert.Equal(t, dtstart, *next)
	})

	t.Run("exhausted rule", func(t *testing.T) {
		next, err := NextOccurrence("FREQ=YEARLY;COUNT=1", dtstart, dtstart.AddDate(0, 0, 1))
		require.NoError(t, err)
		assert.Nil(t, next)
	})
}

func TestIsRecurring(t *testing.T) {
	assert.True(t, IsRecurring("FREQ=YEARLY"))
	assert.True(t, IsRecurring("RRULE:freq=monthly"))
	assert.False(t, IsRecurring(""))
	assert.False(t, IsRecurring("once"))
}
