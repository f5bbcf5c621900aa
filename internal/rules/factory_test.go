package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homescript-controller/internal/sun"
	"homescript-controller/internal/trigger"
	"homescript-controller/internal/types"
)

type stubSensors struct {
	values map[string]float64
}

func (s stubSensors) SensorValue(id string) (float64, bool) {
	v, ok := s.values[id]
	return v, ok
}

func TestFactoryCreateTimeTrigger(t *testing.T) {
	idx := trigger.NewIndex()
	f := New(idx, time.UTC, sun.New(), stubSensors{}, 55.7, 13.2)

	fired := false
	tr, err := f.CreateTrigger("time", func(map[string]string) { fired = true }, TimeTriggerParams{Hour: -1, Minute: 15})
	require.NoError(t, err)
	require.NotNil(t, tr)

	tr.Fire(map[string]string{})
	assert.True(t, fired)
}

func TestFactorySensorValueUpdatedRoutesToMatchingBlockheater(t *testing.T) {
	idx := trigger.NewIndex()
	sensors := stubSensors{values: map[string]float64{"garage-temp": 20}}
	f := New(idx, time.UTC, sun.New(), sensors, 55.7, 13.2)

	tr, err := f.CreateTrigger("blockheater", nil, BlockheaterTriggerParams{
		SensorID:        "garage-temp",
		DepartureHour:   7,
		DepartureMinute: 0,
	})
	require.NoError(t, err)
	bh := tr.(*trigger.BlockheaterTrigger)
	assert.False(t, bh.Active()) // 20C is above the 10C threshold

	f.SensorValueUpdated("garage-temp", types.ValueTemperature, -5)
	assert.True(t, bh.Active())
}

func TestFactoryDeletingBlockheaterRemovesItFromRouting(t *testing.T) {
	idx := trigger.NewIndex()
	sensors := stubSensors{values: map[string]float64{"garage-temp": -5}}
	f := New(idx, time.UTC, sun.New(), sensors, 55.7, 13.2)

	tr, err := f.CreateTrigger("blockheater", nil, BlockheaterTriggerParams{
		SensorID:        "garage-temp",
		DepartureHour:   7,
		DepartureMinute: 0,
	})
	require.NoError(t, err)
	tr.Close()

	assert.Empty(t, f.blockheaterTriggers)
}
