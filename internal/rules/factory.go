// Package rules implements the event factory that assembles triggers and
// conditions for scripts and routes sensor updates to the block-heater
// triggers that care about them.
package rules

import (
	"fmt"
	"time"

	"homescript-controller/internal/sun"
	"homescript-controller/internal/trigger"
	"homescript-controller/internal/types"
)

// Factory creates triggers and conditions on behalf of loaded rules and
// keeps a side list of block-heater triggers so sensor updates can be
// routed to the ones that reference a given device.
type Factory struct {
	index    *trigger.Index
	location *time.Location
	calc     *sun.Calculator
	sensors  trigger.SensorSource
	latitude float64
	longitude float64

	blockheaterTriggers []*trigger.BlockheaterTrigger
}

// New creates an event factory bound to the given trigger index, location,
// sun calculator, and sensor source.
func New(index *trigger.Index, location *time.Location, calc *sun.Calculator, sensors trigger.SensorSource, latitude, longitude float64) *Factory {
	return &Factory{
		index:     index,
		location:  location,
		calc:      calc,
		sensors:   sensors,
		latitude:  latitude,
		longitude: longitude,
	}
}

// ClearAll drops every trigger from the index, used when rules are reloaded
// wholesale.
func (f *Factory) ClearAll() {
	f.index.ClearAll()
	f.blockheaterTriggers = nil
}

// RecalcAll re-derives every trigger's fire time, used after the timezone
// or coordinates change.
func (f *Factory) RecalcAll() {
	f.index.RecalcAll(func(t trigger.Trigger) bool {
		switch typed := t.(type) {
		case *trigger.BlockheaterTrigger:
			return typed.Recalculate(time.Now().UTC())
		case *trigger.SuntimeTrigger:
			return typed.Recalculate(time.Now().UTC())
		case *trigger.TimeTrigger:
			return typed.Recalculate(time.Now().UTC())
		default:
			return false
		}
	})
}

// TimeTriggerParams configures a clock-time trigger.
type TimeTriggerParams struct {
	Hour   int
	Minute int
}

// SuntimeTriggerParams configures a sun-relative trigger.
type SuntimeTriggerParams struct {
	SunStatus int // 1 = sunrise, 0 = sunset
	Offset    int // minutes
}

// BlockheaterTriggerParams configures a departure-scaled pre-heat trigger.
type BlockheaterTriggerParams struct {
	SensorID        string
	DepartureHour   int
	DepartureMinute int
}

// CreateTrigger builds a trigger of the named kind, wired to onFire.
func (f *Factory) CreateTrigger(kind string, onFire func(meta map[string]string), params interface{}) (trigger.Trigger, error) {
	switch kind {
	case "time":
		p, ok := params.(TimeTriggerParams)
		if !ok {
			return nil, fmt.Errorf("rules: time trigger requires TimeTriggerParams")
		}
		t := trigger.NewTimeTrigger(f.index, f.location, onFire)
		t.SetHour(p.Hour)
		t.SetMinute(p.Minute)
		return t, nil

	case "suntime":
		p, ok := params.(SuntimeTriggerParams)
		if !ok {
			return nil, fmt.Errorf("rules: suntime trigger requires SuntimeTriggerParams")
		}
		t := trigger.NewSuntimeTrigger(f.index, f.location, f.calc, f.latitude, f.longitude, onFire)
		t.SetSunStatus(p.SunStatus)
		t.SetOffset(p.Offset)
		return t, nil

	case "blockheater":
		p, ok := params.(BlockheaterTriggerParams)
		if !ok {
			return nil, fmt.Errorf("rules: blockheater trigger requires BlockheaterTriggerParams")
		}
		t := trigger.NewBlockheaterTrigger(f.index, f.location, f.sensors, onFire, f.deleteBlockheater)
		t.SetSensorID(p.SensorID)
		t.SetDeparture(p.DepartureHour, p.DepartureMinute)
		f.blockheaterTriggers = append(f.blockheaterTriggers, t)
		return t, nil

	default:
		return nil, fmt.Errorf("rules: unknown trigger kind %q", kind)
	}
}

func (f *Factory) deleteBlockheater(t *trigger.BlockheaterTrigger) {
	for i, existing := range f.blockheaterTriggers {
		if existing == t {
			f.blockheaterTriggers = append(f.blockheaterTriggers[:i], f.blockheaterTriggers[i+1:]...)
			return
		}
	}
}

// TimeConditionParams configures a time-of-day window condition.
type TimeConditionParams struct {
	FromHour, FromMinute int
	ToHour, ToMinute     int
}

// WeekdayConditionParams configures a weekday-membership condition.
type WeekdayConditionParams struct {
	Weekdays []int
}

// SuntimeConditionParams configures a day/night condition.
type SuntimeConditionParams struct {
	SunStatus                  int
	SunriseOffset, SunsetOffset int
}

// CreateCondition builds a condition of the named kind.
func (f *Factory) CreateCondition(kind string, params interface{}) (trigger.Condition, error) {
	switch kind {
	case "time":
		p, ok := params.(TimeConditionParams)
		if !ok {
			return nil, fmt.Errorf("rules: time condition requires TimeConditionParams")
		}
		c := trigger.NewTimeCondition(f.location)
		c.SetFrom(p.FromHour, p.FromMinute)
		c.SetTo(p.ToHour, p.ToMinute)
		return c, nil

	case "weekdays":
		p, ok := params.(WeekdayConditionParams)
		if !ok {
			return nil, fmt.Errorf("rules: weekday condition requires WeekdayConditionParams")
		}
		c := trigger.NewWeekdayCondition(f.location)
		c.SetWeekdays(p.Weekdays)
		return c, nil

	case "suntime":
		p, ok := params.(SuntimeConditionParams)
		if !ok {
			return nil, fmt.Errorf("rules: suntime condition requires SuntimeConditionParams")
		}
		c := trigger.NewSuntimeCondition(f.calc, f.latitude, f.longitude)
		c.SetSunStatus(p.SunStatus)
		c.SetOffsets(p.SunriseOffset, p.SunsetOffset)
		return c, nil

	default:
		return nil, fmt.Errorf("rules: unknown condition kind %q", kind)
	}
}

// SensorValueUpdated routes a fresh temperature reading to whichever
// block-heater trigger reads from deviceID, mirroring the original
// factory's sensorValueUpdated signal handler.
func (f *Factory) SensorValueUpdated(deviceID string, valueType types.ValueType, celsius float64) {
	if valueType != types.ValueTemperature {
		return
	}
	for _, t := range f.blockheaterTriggers {
		if t.SensorID() == deviceID {
			t.SetTemp(celsius)
			return
		}
	}
}
