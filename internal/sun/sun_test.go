package sun

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRiseSetMidLatitude(t *testing.T) {
	c := New()
	utc := time.Date(2026, 6, 21, 0, 0, 0, 0, time.UTC)
	rs := c.RiseSet(utc, 55.699592, 13.187836)

	require.True(t, rs.HasSunrise)
	require.True(t, rs.HasSunset)
	assert.True(t, rs.Sunrise.Before(rs.Sunset))
}

func TestNextRiseSetAdvancesPastNow(t *testing.T) {
	c := New()
	utc := time.Date(2026, 3, 15, 23, 0, 0, 0, time.UTC)
	rs := c.NextRiseSet(utc, 55.699592, 13.187836)

	require.True(t, rs.HasSunrise)
	require.True(t, rs.HasSunset)
	assert.True(t, rs.Sunrise.After(utc))
	assert.True(t, rs.Sunset.After(utc))
}

func TestNextRiseSetPolarNight(t *testing.T) {
	c := New()
	// Near the north pole in deep winter: no sunrise for a long stretch.
	utc := time.Date(2026, 12, 21, 0, 0, 0, 0, time.UTC)
	rs := c.NextRiseSet(utc, 89.0, 0.0)

	// Either the lookahead finds the eventual sunrise past polar night, or
	// it's genuinely absent within the window — both are valid outcomes,
	// the important invariant is it never panics and Sunrise and Sunset are
	// distinct times when both are present.
	if rs.HasSunrise && rs.HasSunset {
		assert.NotEqual(t, rs.Sunrise, rs.Sunset)
	}
}
