// Package devices implements the concrete device/sensor registry that
// backs spec §6's "DeviceManager" external interface: device(id) returning
// an object exposing sensorValue(type, scale). It also owns the bbolt-backed
// cache of last-known sensor readings directly, rather than going through a
// separate generic key/value package — the cache has exactly one consumer
// and one key shape ("device:<id>"), so a registry-scoped helper replaces
// what would otherwise be a thin, single-purpose wrapper package.
package devices

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"homescript-controller/internal/logger"
	"homescript-controller/internal/mqtt"
	"homescript-controller/internal/types"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.etcd.io/bbolt"
)

var stateBucket = []byte("device_state")

// Sensor is the per-device handle returned by Registry.Device, mirroring
// the telldus `Device` object's sensorValue(type, scale) accessor that
// BlockheaterTrigger and the Lua device API read through.
type Sensor struct {
	id       string
	registry *Registry
}

// SensorValue returns the last known reading for the given value type and
// scale, or (0, false) if no reading has ever been observed — this is the
// "None/missing denotes unknown" contract of spec §6.
func (s *Sensor) SensorValue(valueType types.ValueType, scale types.TemperatureScale) (float64, bool) {
	return s.registry.sensorValue(s.id, valueType, scale)
}

// Registry tracks device configuration and the latest state reported over
// MQTT, persisting readings to bbolt so a restart doesn't lose the last
// known temperature (this is device state, not trigger state — the spec's
// Non-goal only excludes persisting trigger state across restarts).
type Registry struct {
	client  *mqtt.Client
	db      *bbolt.DB
	devices map[string]*types.Device
	states  map[string]map[string]interface{}
	mu      sync.RWMutex
}

// New creates a device registry for the given device list, opening (or
// creating) the bbolt cache at dbPath. An empty dbPath disables persistence
// entirely — readings then only live in memory for the process lifetime.
func New(client *mqtt.Client, dbPath string, deviceList []*types.Device) (*Registry, error) {
	r := &Registry{
		client:  client,
		devices: make(map[string]*types.Device),
		states:  make(map[string]map[string]interface{}),
	}

	if dbPath != "" {
		db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: 1 * time.Second})
		if err != nil {
			return nil, fmt.Errorf("failed to open device state cache: %w", err)
		}
		if err := db.Update(func(tx *bbolt.Tx) error {
			_, err := tx.CreateBucketIfNotExists(stateBucket)
			return err
		}); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to create device state bucket: %w", err)
		}
		r.db = db
	}

	for _, dev := range deviceList {
		r.devices[dev.ID] = dev
		r.states[dev.ID] = r.loadCachedState(dev.ID)
	}
	return r, nil
}

// Close releases the bbolt cache, if one was opened.
func (r *Registry) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *Registry) loadCachedState(id string) map[string]interface{} {
	state := make(map[string]interface{})
	if r.db == nil {
		return state
	}
	err := r.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(stateBucket).Get(deviceKey(id))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &state)
	})
	if err != nil {
		logger.Warn("failed to load cached state for %s: %v", id, err)
		return make(map[string]interface{})
	}
	return state
}

func (r *Registry) persistState(id string, state map[string]interface{}) {
	if r.db == nil {
		return
	}
	data, err := json.Marshal(state)
	if err != nil {
		logger.Warn("failed to marshal device state for %s: %v", id, err)
		return
	}
	err = r.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(stateBucket).Put(deviceKey(id), data)
	})
	if err != nil {
		logger.Warn("failed to persist device state for %s: %v", id, err)
	}
}

func deviceKey(id string) []byte {
	return []byte("device:" + id)
}

// Device returns the sensor handle for id, used by BlockheaterTrigger.
func (r *Registry) Device(id string) *Sensor {
	return &Sensor{id: id, registry: r}
}

func (r *Registry) sensorValue(id string, valueType types.ValueType, scale types.TemperatureScale) (float64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state, ok := r.states[id]
	if !ok {
		return 0, false
	}

	key := valueKey(valueType)
	raw, ok := state[key]
	if !ok {
		return 0, false
	}
	value, ok := raw.(float64)
	if !ok {
		return 0, false
	}

	if valueType == types.ValueTemperature && scale == types.ScaleFahrenheit {
		value = value*9/5 + 32
	}
	return value, true
}

func valueKey(valueType types.ValueType) string {
	switch valueType {
	case types.ValueTemperature:
		return "temperature"
	case types.ValueHumidity:
		return "humidity"
	case types.ValueRainRate:
		return "rain_rate"
	case types.ValueWindSpeed:
		return "wind_speed"
	default:
		return "unknown"
	}
}

// UpdateState records a new reading for a device, persisting it to the
// bbolt cache so the registry survives a restart.
func (r *Registry) UpdateState(id string, state map[string]interface{}) {
	r.mu.Lock()
	if _, ok := r.devices[id]; !ok {
		r.mu.Unlock()
		return
	}
	if r.states[id] == nil {
		r.states[id] = make(map[string]interface{})
	}
	for k, v := range state {
		r.states[id][k] = v
	}
	snapshot := make(map[string]interface{}, len(r.states[id]))
	for k, v := range r.states[id] {
		snapshot[k] = v
	}
	r.mu.Unlock()

	r.persistState(id, snapshot)
}

// Get returns a JSON-serializable snapshot of a device's state, reachable
// from scripts as `deviceManager:get(id)` through the attribute bridge.
func (r *Registry) Get(id string) (map[string]interface{}, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state, ok := r.states[id]
	if !ok {
		return nil, fmt.Errorf("device not found: %s", id)
	}
	result := make(map[string]interface{}, len(state))
	for k, v := range state {
		result[k] = v
	}
	return result, nil
}

// Set publishes attribute changes to a device's command topic.
func (r *Registry) Set(id string, attrs map[string]interface{}) error {
	r.mu.RLock()
	dev, ok := r.devices[id]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("device not found: %s", id)
	}
	if r.client == nil {
		return fmt.Errorf("no MQTT client configured")
	}

	payload, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	logger.Debug("Publishing to %s: %s", dev.MQTT.CommandTopic, string(payload))
	return r.client.Publish(dev.MQTT.CommandTopic, payload)
}

// ListDevices returns all known devices.
func (r *Registry) ListDevices() []*types.Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*types.Device, 0, len(r.devices))
	for _, dev := range r.devices {
		result = append(result, dev)
	}
	return result
}

// SubscribeToDevices wires MQTT state topics into UpdateState and invokes
// onTemp whenever a fresh TEMPERATURE reading arrives — the path by which
// the trigger engine's Event Factory learns of new block-heater sensor
// readings (spec §4.3's sensorValueUpdated routing).
func (r *Registry) SubscribeToDevices(onTemp func(deviceID string, celsius float64)) error {
	if r.client == nil {
		return nil
	}
	for _, dev := range r.devices {
		d := dev
		err := r.client.Subscribe(d.MQTT.StateTopic, func(_ paho.Client, msg paho.Message) {
			var payload map[string]interface{}
			if err := json.Unmarshal(msg.Payload(), &payload); err != nil {
				logger.Warn("failed to decode state payload for %s: %v", d.ID, err)
				return
			}
			r.UpdateState(d.ID, payload)
			if temp, ok := payload["temperature"].(float64); ok && onTemp != nil {
				onTemp(d.ID, temp)
			}
		})
		if err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", d.MQTT.StateTopic, err)
		}
	}
	return nil
}
