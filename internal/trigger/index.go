// Package trigger implements the minute-resolution scheduling engine:
// clock-time, sun-relative, and block-heater departure triggers, plus the
// time/weekday/suntime conditions scripts and rules attach to them.
package trigger

import "sync"

// Trigger is satisfied by every trigger kind the Index can hold. Minute and
// Hour report the trigger's current UTC bucket; Hour() == -1 means "every
// hour" (fire once per Minute regardless of hour).
type Trigger interface {
	Minute() int
	Hour() int
	Active() bool
	Close()
	Fire(meta map[string]string)
}

// Index buckets triggers by the UTC minute they fire on, mirroring the
// Python TimeTriggerManager's dict-of-lists-keyed-by-minute design so a
// tick only has to look at one bucket instead of scanning every trigger.
type Index struct {
	mu       sync.Mutex
	byMinute map[int][]Trigger
}

// NewIndex creates an empty trigger index.
func NewIndex() *Index {
	return &Index{byMinute: make(map[int][]Trigger)}
}

// Add registers a trigger under its current Minute() bucket.
func (idx *Index) Add(t Trigger) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	m := t.Minute()
	idx.byMinute[m] = append(idx.byMinute[m], t)
}

// Delete removes a trigger from whichever bucket currently holds it.
func (idx *Index) Delete(t Trigger) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for minute, list := range idx.byMinute {
		for i, existing := range list {
			if existing == t {
				idx.byMinute[minute] = append(list[:i], list[i+1:]...)
				break
			}
		}
	}
}

// ClearAll empties every bucket, used when rules are being reloaded wholesale.
func (idx *Index) ClearAll() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.byMinute = make(map[int][]Trigger)
}

// Snapshot returns a copy of the triggers currently filed under minute, safe
// to iterate without holding the index lock.
func (idx *Index) Snapshot(minute int) []Trigger {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	list := idx.byMinute[minute]
	out := make([]Trigger, len(list))
	copy(out, list)
	return out
}

// Relocate moves t out of fromMinute's bucket and into its current
// Minute() bucket (if it's still active) — used after Recalculate() changes
// a suntime trigger's fire time.
func (idx *Index) Relocate(t Trigger, fromMinute int) {
	idx.mu.Lock()
	list := idx.byMinute[fromMinute]
	for i, existing := range list {
		if existing == t {
			idx.byMinute[fromMinute] = append(list[:i], list[i+1:]...)
			break
		}
	}
	idx.mu.Unlock()
	if t.Active() {
		idx.Add(t)
	}
}

// RecalcAll re-derives every trigger's fire time — used when timezone or
// coordinates change — moving any trigger whose bucket shifted.
func (idx *Index) RecalcAll(recalc func(Trigger) bool) {
	idx.mu.Lock()
	snapshot := make(map[int][]Trigger, len(idx.byMinute))
	for minute, list := range idx.byMinute {
		snapshot[minute] = append([]Trigger(nil), list...)
	}
	idx.mu.Unlock()

	for minute, list := range snapshot {
		for _, t := range list {
			if recalc(t) {
				idx.Relocate(t, minute)
			}
		}
	}
}
