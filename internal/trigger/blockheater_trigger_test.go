package trigger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedSensor struct {
	celsius float64
	ok      bool
}

func (f fixedSensor) SensorValue(string) (float64, bool) {
	return f.celsius, f.ok
}

func TestBlockheaterTriggerInactiveAboveThreshold(t *testing.T) {
	idx := NewIndex()
	b := NewBlockheaterTrigger(idx, time.UTC, fixedSensor{celsius: 12, ok: true}, nil, nil)
	b.SetSensorID("outdoor-temp")
	b.SetDeparture(7, 0)

	assert.False(t, b.Active())
}

func TestBlockheaterTriggerOffsetCappedAt120Minutes(t *testing.T) {
	idx := NewIndex()
	// A very cold reading pushes the raw formula past 120 minutes
	// (-60C gives round(60 + 6000/95) = 123); the cap must still apply.
	b := NewBlockheaterTrigger(idx, time.UTC, fixedSensor{celsius: -60, ok: true}, nil, nil)
	b.SetSensorID("outdoor-temp")
	b.SetDeparture(7, 0)

	require.True(t, b.Active())
	// departure 07:00 minus 120 minutes = 05:00
	assert.Equal(t, 5, b.Hour())
	assert.Equal(t, 0, b.Minute())
}

func TestBlockheaterTriggerWrapsPastMidnight(t *testing.T) {
	idx := NewIndex()
	b := NewBlockheaterTrigger(idx, time.UTC, fixedSensor{celsius: 0, ok: true}, nil, nil)
	b.SetSensorID("outdoor-temp")
	// departure at 00:30 with a large offset should wrap to the previous day
	b.SetDeparture(0, 30)

	require.True(t, b.Active())
	assert.GreaterOrEqual(t, b.Hour(), 0)
	assert.Less(t, b.Hour(), 24)
}

func TestBlockheaterTriggerClosureNotifiesFactory(t *testing.T) {
	idx := NewIndex()
	var closed *BlockheaterTrigger
	b := NewBlockheaterTrigger(idx, time.UTC, fixedSensor{celsius: 5, ok: true}, nil, func(t *BlockheaterTrigger) {
		closed = t
	})
	b.SetSensorID("outdoor-temp")
	b.SetDeparture(8, 0)

	b.Close()
	assert.Same(t, b, closed)
}
