package trigger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeTriggerRegistersOnceBothFieldsSet(t *testing.T) {
	idx := NewIndex()
	loc, err := time.LoadLocation("UTC")
	require.NoError(t, err)

	fired := false
	tr := NewTimeTrigger(idx, loc, func(meta map[string]string) {
		fired = true
		assert.Equal(t, "time", meta["triggertype"])
	})

	tr.SetMinute(30)
	assert.Empty(t, idx.Snapshot(30), "trigger should not register until hour is also set")

	tr.SetHour(everyHour)
	assert.Len(t, idx.Snapshot(30), 1)

	tr.Fire(map[string]string{"triggertype": "time"})
	assert.True(t, fired)
}

func TestTimeTriggerEveryHourNeverRecalculates(t *testing.T) {
	idx := NewIndex()
	loc := time.UTC
	tr := NewTimeTrigger(idx, loc, nil)
	tr.SetHour(everyHour)
	tr.SetMinute(5)

	changed := tr.Recalculate(time.Now().UTC())
	assert.False(t, changed)
	assert.Equal(t, everyHour, tr.Hour())
}

func TestIndexRelocateMovesTriggerBetweenBuckets(t *testing.T) {
	idx := NewIndex()
	loc := time.UTC
	tr := NewTimeTrigger(idx, loc, nil)
	tr.SetHour(everyHour)
	tr.SetMinute(10)
	require.Len(t, idx.Snapshot(10), 1)

	tr.mu.Lock()
	m := 20
	tr.minute = &m
	tr.mu.Unlock()

	idx.Relocate(tr, 10)
	assert.Empty(t, idx.Snapshot(10))
	assert.Len(t, idx.Snapshot(20), 1)
}
