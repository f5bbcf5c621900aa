package trigger

import (
	"math"
	"time"
)

// SensorSource resolves a device's last known Celsius temperature reading,
// the minimal slice of the device registry BlockheaterTrigger needs.
type SensorSource interface {
	SensorValue(deviceID string) (celsius float64, ok bool)
}

// maxPreheatMinutes caps how early a block heater may be switched on,
// regardless of how cold the recorded temperature is.
const maxPreheatMinutes = 120

// BlockheaterTrigger fires early enough before a configured departure time
// to let an engine block heater warm the car, with the lead time scaled by
// the last recorded outdoor temperature. It is a TimeTrigger whose setHour
// and minute are derived rather than configured directly.
type BlockheaterTrigger struct {
	*TimeTrigger

	sensors SensorSource
	onClose func(*BlockheaterTrigger)

	sensorID        string
	departureHour   *int
	departureMinute *int
	temp            *float64
}

// NewBlockheaterTrigger creates a departure-scaled pre-heat trigger.
// onClose lets the owning factory drop its bookkeeping reference when the
// trigger is closed, mirroring the Python factory's blockheaterTriggers list.
func NewBlockheaterTrigger(index *Index, location *time.Location, sensors SensorSource, onFire func(map[string]string), onClose func(*BlockheaterTrigger)) *BlockheaterTrigger {
	return &BlockheaterTrigger{
		TimeTrigger: NewTimeTrigger(index, location, onFire),
		sensors:     sensors,
		onClose:     onClose,
	}
}

// SensorID returns the device this trigger reads its temperature from, used
// by the factory to route sensorValueUpdated notifications.
func (b *BlockheaterTrigger) SensorID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sensorID
}

// SetSensorID configures which device's temperature reading drives the
// pre-heat offset.
func (b *BlockheaterTrigger) SetSensorID(id string) {
	b.mu.Lock()
	b.sensorID = id
	ready := b.readyLocked()
	b.mu.Unlock()
	if ready {
		b.Recalculate(time.Now().UTC())
		b.index.Add(b)
	}
}

// SetDeparture configures the local departure time the heater must finish
// warming up before.
func (b *BlockheaterTrigger) SetDeparture(hour, minute int) {
	b.mu.Lock()
	h, m := hour, minute
	b.departureHour = &h
	b.departureMinute = &m
	ready := b.readyLocked()
	b.mu.Unlock()
	if ready {
		b.Recalculate(time.Now().UTC())
		b.index.Add(b)
	}
}

func (b *BlockheaterTrigger) readyLocked() bool {
	return b.departureHour != nil && b.departureMinute != nil && b.sensorID != ""
}

// SetTemp records a fresh temperature reading and immediately recalculates,
// the callback path a BlockheaterTrigger's owning factory uses when the
// device registry reports a new sensorValueUpdated event.
func (b *BlockheaterTrigger) SetTemp(celsius float64) {
	b.mu.Lock()
	b.temp = &celsius
	b.mu.Unlock()
	b.Recalculate(time.Now().UTC())
}

// Close deregisters the trigger and notifies the owning factory.
func (b *BlockheaterTrigger) Close() {
	b.index.Delete(b)
	if b.onClose != nil {
		b.onClose(b)
	}
}

// Recalculate derives the pre-heat lead time from the last known
// temperature using the empirical formula round(60 + 100*T/(T-35)), capped
// at maxPreheatMinutes, then feeds the resulting local hour/minute into the
// embedded TimeTrigger's own Recalculate for UTC-bucket resolution.
func (b *BlockheaterTrigger) Recalculate(now time.Time) bool {
	b.mu.Lock()
	if b.temp == nil {
		sensorID := b.sensorID
		b.mu.Unlock()
		if sensorID == "" || b.sensors == nil {
			return false
		}
		reading, ok := b.sensors.SensorValue(sensorID)
		if !ok {
			return false
		}
		b.mu.Lock()
		b.temp = &reading
	}

	temp := *b.temp
	if b.departureHour == nil || b.departureMinute == nil {
		b.mu.Unlock()
		return false
	}

	if temp > 10 {
		wasActive := b.active
		b.active = false
		b.mu.Unlock()
		return wasActive
	}

	offset := int(math.Round(60 + 100*temp/(temp-35)))
	if offset > maxPreheatMinutes {
		offset = maxPreheatMinutes
	}

	minutes := (*b.departureHour)*60 + *b.departureMinute - offset
	if minutes < 0 {
		minutes += 24 * 60
	}
	setHour := minutes / 60
	minute := minutes % 60
	b.setHour = &setHour
	b.minute = &minute
	b.active = true
	b.mu.Unlock()

	return b.TimeTrigger.Recalculate(now)
}
