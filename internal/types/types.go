package types

import "time"

// Device represents a smart home device addressable by the script host
// and trigger engine (e.g. a block-heater's temperature sensor).
type Device struct {
	ID         string     `yaml:"id"`
	Name       string     `yaml:"name"`
	Type       string     `yaml:"type"`
	Model      string     `yaml:"model,omitempty"`
	Vendor     string     `yaml:"vendor,omitempty"`
	Attributes []string   `yaml:"attributes"`
	Actions    []string   `yaml:"actions"`
	MQTT       MQTTConfig `yaml:"mqtt"`
}

// MQTTConfig holds MQTT-specific configuration
type MQTTConfig struct {
	StateTopic   string `yaml:"state_topic"`
	CommandTopic string `yaml:"command_topic"`
}

// DevicesConfig is the root device-list configuration structure
type DevicesConfig struct {
	Devices   []*Device `yaml:"devices"`
	Generated time.Time `yaml:"generated,omitempty"`
}

// Event represents an event routed to Lua scripts
type Event struct {
	Source    string                 // "mqtt", "time", "device", "state"
	Type      string                 // event type
	Device    string                 // device ID (if applicable)
	Attribute string                 // attribute name (if applicable)
	Topic     string                 // MQTT topic (if applicable)
	Data      map[string]interface{} // event payload
	Timestamp time.Time
}

// TemperatureScale mirrors the telldus Device.SCALE_TEMPERATURE_* constants
// consumed by BlockheaterTrigger.
type TemperatureScale int

const (
	ScaleCelsius TemperatureScale = iota
	ScaleFahrenheit
)

// ValueType mirrors the telldus Device.TEMPERATURE/HUMIDITY/... constants
// used to discriminate sensorValueUpdated signals.
type ValueType int

const (
	ValueTemperature ValueType = iota
	ValueHumidity
	ValueRainRate
	ValueWindSpeed
)
