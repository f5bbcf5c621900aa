// Package sun computes sunrise and sunset times, backing SuntimeTrigger and
// SuntimeCondition's day/night determination.
package sun

import (
	"time"

	"github.com/nathan-osman/go-sunrise"
)

// RiseSet holds a day's sunrise and sunset, with flags distinguishing a
// genuinely absent event (polar day/night) from the zero time.
type RiseSet struct {
	Sunrise    time.Time
	Sunset     time.Time
	HasSunrise bool
	HasSunset  bool
}

// Calculator wraps go-sunrise with the lookahead logic the trigger engine
// needs: the next occurrence of each event, not just today's.
type Calculator struct{}

// New creates a sun-position calculator.
func New() *Calculator {
	return &Calculator{}
}

// RiseSet returns the sunrise and sunset for the UTC calendar day containing
// utc. Either may be absent near the poles.
func (c *Calculator) RiseSet(utc time.Time, lat, lon float64) RiseSet {
	sr, ss := sunrise.SunriseSunset(lat, lon, utc.Year(), utc.Month(), utc.Day())
	return RiseSet{
		Sunrise:    sr,
		Sunset:     ss,
		HasSunrise: !sr.IsZero(),
		HasSunset:  !ss.IsZero(),
	}
}

// maxLookaheadDays bounds the forward scan NextRiseSet performs when a pole
// is in the middle of a months-long polar day or night.
const maxLookaheadDays = 370

// NextRiseSet scans forward from utc, day by day, for the next sunrise and
// the next sunset strictly after utc. Near the poles one or both may not
// occur within the lookahead window, in which case the corresponding
// Has* flag is false.
func (c *Calculator) NextRiseSet(utc time.Time, lat, lon float64) RiseSet {
	day := utc
	var result RiseSet

	for i := 0; i < maxLookaheadDays; i++ {
		sr, ss := sunrise.SunriseSunset(lat, lon, day.Year(), day.Month(), day.Day())
		if !result.HasSunrise && !sr.IsZero() && sr.After(utc) {
			result.Sunrise = sr
			result.HasSunrise = true
		}
		if !result.HasSunset && !ss.IsZero() && ss.After(utc) {
			result.Sunset = ss
			result.HasSunset = true
		}
		if result.HasSunrise && result.HasSunset {
			break
		}
		day = day.AddDate(0, 0, 1)
	}
	return result
}
