package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Settings holds the controller-wide configuration consumed by the trigger
// engine and script host: timezone, location, MQTT and script directories.
// This is the concrete stand-in for spec §6's external "Settings (key ->
// string)" store.
type Settings struct {
	Timezone      string  `yaml:"tz"`
	Latitude      float64 `yaml:"latitude"`
	Longitude     float64 `yaml:"longitude"`
	MQTTBroker    string  `yaml:"mqtt_broker"`
	MQTTUsername  string  `yaml:"mqtt_username"`
	MQTTPassword  string  `yaml:"mqtt_password"`
	ScriptDir     string  `yaml:"script_dir"`
	StatePath     string  `yaml:"state_path"`
	LogSinkListen string  `yaml:"log_sink_listen"`
	LogLevel      string  `yaml:"log_level"`
}

// DefaultSettings mirrors the defaults named in spec §6.
func DefaultSettings() Settings {
	return Settings{
		Timezone:      "UTC",
		Latitude:      55.699592,
		Longitude:     13.187836,
		MQTTBroker:    "tcp://localhost:1883",
		ScriptDir:     "./config/scripts",
		StatePath:     "./data/state.db",
		LogSinkListen: "",
		LogLevel:      "error",
	}
}

// LoadSettings reads a YAML settings file, filling in DefaultSettings for
// any field the file omits (latitude/longitude included); a latitude or
// longitude written as 0 in the file stays 0.
func LoadSettings(path string) (Settings, error) {
	settings := DefaultSettings()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return settings, nil
		}
		return settings, fmt.Errorf("failed to read settings: %w", err)
	}

	if err := yaml.Unmarshal(data, &settings); err != nil {
		return settings, fmt.Errorf("failed to parse settings: %w", err)
	}

	if settings.Timezone == "" {
		settings.Timezone = "UTC"
	}

	return settings, nil
}

// Save writes settings back to disk as YAML.
func (s Settings) Save(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	return nil
}
