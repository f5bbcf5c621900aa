package trigger

import (
	"sync"
	"time"
)

// everyHour is the Hour() sentinel meaning "fire every hour at this minute".
const everyHour = -1

// TimeTrigger fires once a day at a fixed local wall-clock time. Internally
// it tracks the UTC minute/hour bucket the Index keys on; local-to-UTC
// conversion is redone on every Recalculate so a DST transition moves the
// trigger to the correct UTC bucket automatically.
type TimeTrigger struct {
	mu       sync.Mutex
	index    *Index
	location *time.Location

	minute  *int
	hour    *int // resolved UTC hour, or everyHour
	setHour *int // configured local hour, as given by the rule

	active bool
	onFire func(meta map[string]string)
}

// NewTimeTrigger creates a clock-time trigger that has not yet been
// configured — call SetMinute/SetHour before it registers itself.
func NewTimeTrigger(index *Index, location *time.Location, onFire func(map[string]string)) *TimeTrigger {
	return &TimeTrigger{
		index:    index,
		location: location,
		active:   true,
		onFire:   onFire,
	}
}

// Minute returns the UTC minute bucket this trigger currently occupies.
func (t *TimeTrigger) Minute() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.minute == nil {
		return 0
	}
	return *t.minute
}

// Hour returns the UTC hour this trigger fires in, or everyHour.
func (t *TimeTrigger) Hour() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.hour == nil {
		return everyHour
	}
	return *t.hour
}

// Active reports whether the trigger should fire when its bucket matches.
func (t *TimeTrigger) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// Close deregisters the trigger from its index.
func (t *TimeTrigger) Close() {
	t.index.Delete(t)
}

// Fire invokes the registered callback with trigger metadata.
func (t *TimeTrigger) Fire(meta map[string]string) {
	if t.onFire != nil {
		t.onFire(meta)
	}
}

// SetMinute configures the minute-of-hour this trigger fires on.
func (t *TimeTrigger) SetMinute(minute int) {
	t.mu.Lock()
	m := minute
	t.minute = &m
	ready := t.minute != nil && t.setHour != nil
	t.mu.Unlock()
	if ready {
		t.index.Add(t)
	}
}

// SetHour configures the local hour-of-day this trigger fires at. Passing
// everyHour makes the trigger fire every hour at its configured minute.
func (t *TimeTrigger) SetHour(hour int) {
	t.mu.Lock()
	h := hour
	t.setHour = &h
	if hour == everyHour {
		t.hour = &h
	} else {
		resolved := localHourToUTC(t.location, hour, time.Now().UTC())
		t.hour = &resolved
	}
	ready := t.minute != nil && t.setHour != nil
	t.mu.Unlock()
	if ready {
		t.index.Add(t)
	}
}

// Recalculate re-derives the UTC hour from the configured local hour,
// returning true if the trigger's bucket changed (e.g. a DST transition).
func (t *TimeTrigger) Recalculate(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.setHour == nil {
		return false
	}
	if t.hour != nil && *t.hour == everyHour && *t.setHour == everyHour {
		return false
	}

	previous := everyHour
	if t.hour != nil {
		previous = *t.hour
	}
	resolved := localHourToUTC(t.location, *t.setHour, now)
	t.hour = &resolved
	return previous != resolved
}

// localHourToUTC resolves a local wall-clock hour on ref's calendar date to
// the corresponding UTC hour, re-rolling to the next calendar day when the
// naive local hour has already passed system time today — this reproduces
// the original scheduler's DST-transition heuristic rather than a purely
// arithmetic offset conversion.
func localHourToUTC(location *time.Location, localHour int, ref time.Time) int {
	build := func(date time.Time) time.Time {
		return time.Date(date.Year(), date.Month(), date.Day(), localHour, 0, 0, 0, location)
	}

	candidate := build(ref)
	if time.Now().Hour() > candidate.UTC().Hour() {
		candidate = build(ref.AddDate(0, 0, 1))
	}
	return candidate.UTC().Hour()
}
