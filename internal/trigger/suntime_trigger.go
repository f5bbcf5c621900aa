package trigger

import (
	"time"

	"homescript-controller/internal/sun"
)

// SuntimeTrigger fires at sunrise or sunset (plus a configurable offset),
// recomputing its target minute/hour daily and deactivating itself during
// the stretch of a polar day/night where the chosen event doesn't occur.
type SuntimeTrigger struct {
	*TimeTrigger

	calc                 *sun.Calculator
	latitude, longitude  float64
	sunStatus            *int // 1 = sunrise, 0 = sunset
	offsetMinutes        *int
}

// NewSuntimeTrigger creates a sun-relative trigger at the given coordinates.
func NewSuntimeTrigger(index *Index, location *time.Location, calc *sun.Calculator, latitude, longitude float64, onFire func(map[string]string)) *SuntimeTrigger {
	return &SuntimeTrigger{
		TimeTrigger: NewTimeTrigger(index, location, onFire),
		calc:        calc,
		latitude:    latitude,
		longitude:   longitude,
	}
}

// Close deregisters the trigger from its index.
func (s *SuntimeTrigger) Close() {
	s.index.Delete(s)
}

// SetSunStatus chooses sunrise (1) or sunset (0) as the reference event.
func (s *SuntimeTrigger) SetSunStatus(status int) {
	s.mu.Lock()
	v := status
	s.sunStatus = &v
	ready := s.sunStatus != nil && s.offsetMinutes != nil
	s.mu.Unlock()
	if ready {
		s.Recalculate(time.Now().UTC())
		s.index.Add(s)
	}
}

// SetOffset sets the number of minutes to shift the fire time away from the
// sun event (negative fires earlier, positive fires later).
func (s *SuntimeTrigger) SetOffset(minutes int) {
	s.mu.Lock()
	v := minutes
	s.offsetMinutes = &v
	ready := s.sunStatus != nil && s.offsetMinutes != nil
	s.mu.Unlock()
	if ready {
		s.Recalculate(time.Now().UTC())
		s.index.Add(s)
	}
}

// Recalculate re-derives the fire time from the next sunrise/sunset,
// returning true if the trigger's bucket or active status changed.
func (s *SuntimeTrigger) Recalculate(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sunStatus == nil || s.offsetMinutes == nil {
		return false
	}

	riseSet := s.calc.NextRiseSet(now, s.latitude, s.longitude)

	var runTime time.Time
	var has bool
	if *s.sunStatus == 0 {
		runTime, has = riseSet.Sunset, riseSet.HasSunset
	} else {
		runTime, has = riseSet.Sunrise, riseSet.HasSunrise
	}

	if !has {
		if s.active {
			s.active = false
			return true
		}
		return false
	}

	runTime = runTime.Add(time.Duration(*s.offsetMinutes) * time.Minute)

	tomorrow := now.AddDate(0, 0, 1)
	sameDayAsNow := runTime.Day() == now.Day() && runTime.Month() == now.Month()
	sameDayAsTomorrow := runTime.Day() == tomorrow.Day() && runTime.Month() == tomorrow.Month()
	if !sameDayAsNow && !sameDayAsTomorrow {
		// The shifted event doesn't land today or tomorrow — polar day/night.
		if s.active {
			s.active = false
			return true
		}
		return false
	}

	newMinute := runTime.Minute()
	newHour := runTime.Hour()
	unchanged := s.minute != nil && s.hour != nil && *s.minute == newMinute && *s.hour == newHour && s.active
	if unchanged {
		return false
	}

	s.active = true
	s.minute = &newMinute
	s.hour = &newHour
	return true
}
