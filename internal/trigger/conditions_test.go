package trigger

import (
	"testing"
	"time"
)

func TestTimeConditionFailsUntilFullyConfigured(t *testing.T) {
	c := NewTimeCondition(time.UTC)
	success, failure := false, false
	c.Validate(func() { success = true }, func() { failure = true })
	if !failure || success {
		t.Fatalf("expected failure before from/to configured, got success=%v failure=%v", success, failure)
	}
}

func TestTimeConditionWithinSameDayWindow(t *testing.T) {
	c := NewTimeCondition(time.UTC)
	now := time.Now().In(time.UTC)
	c.SetFrom(0, 0)
	c.SetTo(23, 59)
	_ = now

	success := false
	c.Validate(func() { success = true }, func() {})
	if !success {
		t.Fatalf("expected the all-day window to always succeed")
	}
}

func TestTimeConditionMidnightWrap(t *testing.T) {
	c := NewTimeCondition(time.UTC)
	// from 00:01 to 00:00 is later-to-earlier, so the window wraps past
	// midnight and covers the whole day except the 00:00 minute; whatever the
	// wall-clock time, exactly one of success or failure must be invoked.
	c.SetFrom(0, 1)
	c.SetTo(0, 0)

	success, failure := false, false
	c.Validate(func() { success = true }, func() { failure = true })
	if success == failure {
		t.Fatalf("expected exactly one outcome")
	}
}

func TestWeekdayConditionMatchesConfiguredDays(t *testing.T) {
	c := NewWeekdayCondition(time.UTC)
	today := int(time.Now().UTC().Weekday())
	if today == 0 {
		today = 7
	}
	c.SetWeekdays([]int{today})

	success := false
	c.Validate(func() { success = true }, func() { t.Fatal("expected success for today's weekday") })
	if !success {
		t.Fatalf("expected success")
	}
}

func TestWeekdayConditionRejectsOtherDays(t *testing.T) {
	c := NewWeekdayCondition(time.UTC)
	today := int(time.Now().UTC().Weekday())
	if today == 0 {
		today = 7
	}
	other := today%7 + 1
	c.SetWeekdays([]int{other})

	failed := false
	c.Validate(func() { t.Fatal("expected failure") }, func() { failed = true })
	if !failed {
		t.Fatalf("expected failure")
	}
}
