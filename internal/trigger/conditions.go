package trigger

import (
	"sync"
	"time"

	"github.com/golang-module/carbon"

	"homescript-controller/internal/sun"
)

// Condition is the evaluation contract rules attach alongside a trigger:
// exactly one of success or failure is invoked, never both.
type Condition interface {
	Validate(success, failure func())
}

// TimeCondition passes when the current local time falls within a
// configured [from, to) wall-clock window, wrapping correctly across
// midnight when from is later in the day than to.
type TimeCondition struct {
	mu       sync.Mutex
	location *time.Location

	fromHour, fromMinute *int
	toHour, toMinute     *int
}

// NewTimeCondition creates a time-of-day window condition for location.
func NewTimeCondition(location *time.Location) *TimeCondition {
	return &TimeCondition{location: location}
}

// SetFrom configures the window's start time.
func (c *TimeCondition) SetFrom(hour, minute int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, m := hour, minute
	c.fromHour, c.fromMinute = &h, &m
}

// SetTo configures the window's end time.
func (c *TimeCondition) SetTo(hour, minute int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, m := hour, minute
	c.toHour, c.toMinute = &h, &m
}

// Validate reports whether now falls within the configured window, handling
// a window that wraps past midnight (from later in the day than to) the
// same way Xevion-go-ha's CheckWithinTimeRange does: push the earlier
// boundary back a day or the later boundary forward a day depending on
// which side of midnight the current moment falls on, then do a plain
// included-start range check.
func (c *TimeCondition) Validate(success, failure func()) {
	c.mu.Lock()
	fromHour, fromMinute, toHour, toMinute := c.fromHour, c.fromMinute, c.toHour, c.toMinute
	location := c.location
	c.mu.Unlock()

	if fromHour == nil || fromMinute == nil || toHour == nil || toMinute == nil {
		failure()
		return
	}

	now := time.Now().In(location)
	from := carbon.CreateFromStdTime(time.Date(now.Year(), now.Month(), now.Day(), *fromHour, *fromMinute, 0, 0, location))
	to := carbon.CreateFromStdTime(time.Date(now.Year(), now.Month(), now.Day(), *toHour, *toMinute, 0, 0, location))

	if to.Lt(from) {
		if to.IsPast() {
			to = to.AddDay()
		} else {
			from = from.SubDay()
		}
	}

	if carbon.CreateFromStdTime(now).BetweenIncludedStart(from, to) {
		success()
	} else {
		failure()
	}
}

// WeekdayCondition passes when the current local weekday is one of a
// configured set, numbered Monday=1 through Sunday=7.
type WeekdayCondition struct {
	mu       sync.Mutex
	location *time.Location
	weekdays map[int]struct{}
}

// NewWeekdayCondition creates a weekday-membership condition for location.
func NewWeekdayCondition(location *time.Location) *WeekdayCondition {
	return &WeekdayCondition{location: location, weekdays: make(map[int]struct{})}
}

// SetWeekdays configures the set of matching weekdays (1=Monday..7=Sunday).
func (c *WeekdayCondition) SetWeekdays(days []int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.weekdays = make(map[int]struct{}, len(days))
	for _, d := range days {
		c.weekdays[d] = struct{}{}
	}
}

// Validate reports whether today's weekday is in the configured set.
func (c *WeekdayCondition) Validate(success, failure func()) {
	c.mu.Lock()
	weekdays := c.weekdays
	location := c.location
	c.mu.Unlock()

	if len(weekdays) == 0 {
		failure()
		return
	}

	weekday := int(time.Now().In(location).Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday
	}
	if _, ok := weekdays[weekday]; ok {
		success()
	} else {
		failure()
	}
}

// SuntimeCondition passes when the current moment falls on the configured
// side (day/night) of sunrise and sunset, each independently offset.
type SuntimeCondition struct {
	mu                           sync.Mutex
	calc                         *sun.Calculator
	latitude, longitude          float64
	sunStatus                    *int // 1 = daytime, 0 = nighttime
	sunriseOffset, sunsetOffset  *int
}

// NewSuntimeCondition creates a day/night condition at the given coordinates.
func NewSuntimeCondition(calc *sun.Calculator, latitude, longitude float64) *SuntimeCondition {
	return &SuntimeCondition{calc: calc, latitude: latitude, longitude: longitude}
}

// SetSunStatus chooses whether the condition passes during daytime (1) or
// nighttime (0).
func (c *SuntimeCondition) SetSunStatus(status int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := status
	c.sunStatus = &v
}

// SetOffsets configures independent minute offsets applied to sunrise and
// sunset when deciding the day/night boundary.
func (c *SuntimeCondition) SetOffsets(sunriseOffset, sunsetOffset int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, s := sunriseOffset, sunsetOffset
	c.sunriseOffset, c.sunsetOffset = &r, &s
}

// Validate reports whether the current moment is on the configured side of
// sunrise/sunset. When today has neither a sunrise nor a sunset (polar day
// or night), it falls back to comparing against whichever of the next
// sunrise/sunset comes first to infer whether it's currently day or night;
// when only one of today's events occurs, that one alone decides.
func (c *SuntimeCondition) Validate(success, failure func()) {
	c.mu.Lock()
	sunStatus, sunriseOffset, sunsetOffset := c.sunStatus, c.sunriseOffset, c.sunsetOffset
	calc, lat, lon := c.calc, c.latitude, c.longitude
	c.mu.Unlock()

	if sunStatus == nil || sunriseOffset == nil || sunsetOffset == nil {
		failure()
		return
	}

	now := time.Now().UTC()
	today := calc.RiseSet(now, lat, lon)

	currentStatus := 1 // default: daytime
	var haveBoundary bool

	if today.HasSunrise {
		sunrise := today.Sunrise.Add(time.Duration(*sunriseOffset) * time.Minute)
		if now.Before(sunrise) {
			currentStatus = 0
		}
		haveBoundary = true
	}
	if today.HasSunset {
		sunset := today.Sunset.Add(time.Duration(*sunsetOffset) * time.Minute)
		if now.After(sunset) {
			currentStatus = 0
		}
		haveBoundary = true
	}

	if !haveBoundary {
		// polar day or night: use the next occurring event to tell which.
		next := calc.NextRiseSet(now, lat, lon)
		if next.HasSunrise && (!next.HasSunset || next.Sunrise.Before(next.Sunset)) {
			// next event is a sunrise: it's currently dark (polar night)
			boundary := next.Sunrise.Add(time.Duration(*sunriseOffset) * time.Minute)
			if now.Before(boundary) {
				currentStatus = 0
			}
		} else if next.HasSunset {
			// next event is a sunset: it's currently light (polar day)
			boundary := next.Sunset.Add(time.Duration(*sunriseOffset) * time.Minute)
			if now.After(boundary) {
				currentStatus = 0
			}
		}
	}

	if *sunStatus == currentStatus {
		success()
	} else {
		failure()
	}
}
