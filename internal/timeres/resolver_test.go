package timeres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, value)
	require.NoError(t, err)
	return ts
}

func TestResolve_RelativeOffsets(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		anchor string
		delta  Delta
		want   string
	}{
		{
			name:   "five minutes",
			anchor: "2025-10-24T14:30:00-04:00",
			delta:  Minutes(5),
			want:   "2025-10-24T14:35:00-04:00",
		},
		{
			name:   "minutes roll over midnight",
			anchor: "2025-10-24T23:58:00-04:00",
			delta:  Minutes(5),
			want:   "2025-10-25T00:03:00-04:00",
		},
		{
			name:   "hours roll over midnight",
			anchor: "2025-12-31T23:00:00+09:00",
			delta:  Hours(2),
			want:   "2026-01-01T01:00:00+09:00",
		},
		{
			name:   "days across month boundary",
			anchor: "2025-01-30T08:15:00+00:00",
			delta:  Days(3),
			want:   "2025-02-02T08:15:00+00:00",
		},
		{
			name:   "zero offset is identity",
			anchor: "2025-06-01T12:00:00+05:30",
			delta:  Minutes(0),
			want:   "2025-06-01T12:00:00+05:30",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := Resolve(mustParse(t, tc.anchor), tc.delta)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got.Format(time.RFC3339))
		})
	}
}

func TestResolve_Absolute(t *testing.T) {
	t.Parallel()

	anchor := mustParse(t, "2025-10-24T14:30:00-04:00")
	got, err := Resolve(anchor, Absolute(2025, time.October, 25, 15, 0))
	require.NoError(t, err)
	assert.Equal(t, "2025-10-25T15:00:00-04:00", got.Format(time.RFC3339))
}

// The anchor's stated offset is used literally even when the delta crosses
// a DST transition in the zone the offset came from. 2025-11-02 02:00 is
// the US fall-back; the result keeps -04:00 rather than recomputing -05:00.
func TestResolve_PreservesOffsetAcrossDST(t *testing.T) {
	t.Parallel()

	anchor := mustParse(t, "2025-11-01T22:00:00-04:00")
	got, err := Resolve(anchor, Hours(8))
	require.NoError(t, err)
	assert.Equal(t, "2025-11-02T06:00:00-04:00", got.Format(time.RFC3339))

	_, offset := got.Zone()
	assert.Equal(t, -4*3600, offset)
}

// A zoned anchor (IANA location rather than fixed offset) is pinned to the
// offset it stated at the anchor instant.
func TestResolve_ZonedAnchorPinnedToStatedOffset(t *testing.T) {
	t.Parallel()

	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	anchor := time.Date(2025, time.March, 8, 23, 0, 0, 0, loc) // -05:00, spring-forward is next morning
	got, err := Resolve(anchor, Hours(5))
	require.NoError(t, err)

	_, offset := got.Zone()
	assert.Equal(t, -5*3600, offset)
	assert.Equal(t, "2025-03-09T04:00:00-05:00", got.Format(time.RFC3339))
}

func TestResolve_Errors(t *testing.T) {
	t.Parallel()

	anchor := mustParse(t, "2025-10-24T14:30:00-04:00")

	_, err := Resolve(anchor, Minutes(-1))
	assert.ErrorIs(t, err, ErrNegativeOffset)

	_, err = Resolve(time.Time{}, Minutes(5))
	assert.ErrorIs(t, err, ErrZeroAnchor)

	_, err = Resolve(anchor, Delta{})
	assert.Error(t, err)

	_, err = Resolve(anchor, Absolute(2025, time.October, 25, 27, 0))
	assert.Error(t, err)

	_, err = Resolve(anchor, Absolute(0, time.October, 25, 10, 0))
	assert.Error(t, err)
}
