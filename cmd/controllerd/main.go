package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"homescript-controller/internal/bridge"
	"homescript-controller/internal/config"
	"homescript-controller/internal/devices"
	"homescript-controller/internal/geolocation"
	"homescript-controller/internal/logger"
	"homescript-controller/internal/logsink"
	"homescript-controller/internal/mqtt"
	"homescript-controller/internal/rules"
	"homescript-controller/internal/scripthost"
	"homescript-controller/internal/sun"
	"homescript-controller/internal/trigger"
	"homescript-controller/internal/types"
)

var (
	settingsPath = "./config/settings.yaml"
	devicesPath  = "./config/devices.yaml"
	logLevel     = "error"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "controllerd",
		Short: "Home automation script host and trigger engine",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level, err := logger.ParseLevel(logLevel)
			if err != nil {
				level = logger.ERROR
			}
			logger.Init(level, true)
		},
	}

	rootCmd.PersistentFlags().StringVar(&settingsPath, "settings", settingsPath, "Path to settings.yaml")
	rootCmd.PersistentFlags().StringVar(&devicesPath, "devices", devicesPath, "Path to devices.yaml")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", logLevel, "Log level (debug, info, warn, error, critical)")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(lintCmd())

	if err := rootCmd.Execute(); err != nil {
		logger.Critical("fatal error: %v", err)
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the controller: trigger engine, script host, and log sink",
		Run: func(cmd *cobra.Command, args []string) {
			if err := runController(); err != nil {
				logger.Critical("controller error: %v", err)
				os.Exit(1)
			}
		},
	}
}

func lintCmd() *cobra.Command {
	var scriptDir string
	cmd := &cobra.Command{
		Use:   "lint",
		Short: "Load every script once and report sandbox/parse errors without starting the engine",
		Run: func(cmd *cobra.Command, args []string) {
			if scriptDir == "" {
				settings, err := config.LoadSettings(settingsPath)
				if err != nil {
					logger.Critical("failed to load settings: %v", err)
					os.Exit(1)
				}
				scriptDir = settings.ScriptDir
			}
			if err := runLint(scriptDir); err != nil {
				logger.Critical("lint error: %v", err)
				os.Exit(1)
			}
		},
	}
	cmd.Flags().StringVar(&scriptDir, "scripts", "", "Directory of *.lua scripts (defaults to settings.yaml's script_dir)")
	return cmd
}

func runLint(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	failures := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".lua") {
			continue
		}
		path := dir + "/" + entry.Name()
		if err := scripthost.LintFile(path); err != nil {
			logger.Error("%v", err)
			failures++
			continue
		}
		logger.Info("%s: ok", entry.Name())
	}
	if failures > 0 {
		logger.Error("%d script(s) failed to load", failures)
		os.Exit(1)
	}
	return nil
}

func runController() error {
	logger.Info("starting home automation controller...")

	settings, err := config.LoadSettings(settingsPath)
	if err != nil {
		return err
	}

	location, err := time.LoadLocation(settings.Timezone)
	if err != nil {
		logger.Warn("invalid timezone %q, falling back to UTC: %v", settings.Timezone, err)
		location = time.UTC
	}

	latitude, longitude := settings.Latitude, settings.Longitude
	if latitude == 0 && longitude == 0 {
		logger.Info("no coordinates configured, attempting to detect location from IP...")
		if loc, err := geolocation.GetLocationByIP(); err == nil {
			latitude, longitude = loc.Latitude, loc.Longitude
		} else {
			logger.Warn("failed to detect location from IP: %v", err)
			logger.Warn("falling back to configured default coordinates")
		}
	}

	deviceConfig, err := config.LoadDevicesYAML(devicesPath)
	if err != nil {
		logger.Warn("failed to load device list, continuing with no devices: %v", err)
		deviceConfig = nil
	}

	var mqttClient *mqtt.Client
	mqttClient, err = mqtt.NewClient(mqtt.Config{
		Broker:   settings.MQTTBroker,
		ClientID: "homescript-controller-" + time.Now().Format("20060102150405"),
		Username: settings.MQTTUsername,
		Password: settings.MQTTPassword,
	})
	if err != nil {
		logger.Warn("failed to connect to MQTT, device I/O will be unavailable: %v", err)
	} else {
		defer mqttClient.Disconnect()
	}

	var deviceList []*types.Device
	if deviceConfig != nil {
		deviceList = deviceConfig.Devices
	}
	registry, err := devices.New(mqttClient, settings.StatePath, deviceList)
	if err != nil {
		return err
	}
	defer func() {
		if err := registry.Close(); err != nil {
			logger.Error("error closing device state cache: %v", err)
		}
	}()

	calc := sun.New()
	index := trigger.NewIndex()
	factory := rules.New(index, location, calc, sensorAdapter{registry}, latitude, longitude)
	engine := trigger.NewEngine(index, location)
	engine.Start()
	defer engine.Stop()

	if registry != nil {
		if err := registry.SubscribeToDevices(func(deviceID string, celsius float64) {
			factory.SensorValueUpdated(deviceID, types.ValueTemperature, celsius)
		}); err != nil {
			logger.Warn("failed to subscribe to device state topics: %v", err)
		}
	}

	hub := logsink.NewHub()
	if settings.LogSinkListen != "" {
		go func() {
			if err := hub.ListenAndServe(settings.LogSinkListen); err != nil {
				logger.Error("log sink server stopped: %v", err)
			}
		}()
	}

	loop := bridge.NewMainLoop(256)
	loop.Start()
	defer loop.Stop()
	proxy := bridge.NewProxy(loop)

	host := scripthost.NewHost(settings.ScriptDir, hub, proxy, registry)
	if err := host.LoadAll(); err != nil {
		return err
	}
	defer host.Shutdown()

	logger.Info("controller is running. press Ctrl+C to stop.")
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down...")
	return nil
}

// sensorAdapter bridges the device registry's Sensor-returning API to the
// trigger engine's narrower SensorSource contract.
type sensorAdapter struct {
	registry *devices.Registry
}

func (a sensorAdapter) SensorValue(deviceID string) (float64, bool) {
	if a.registry == nil {
		return 0, false
	}
	return a.registry.Device(deviceID).SensorValue(types.ValueTemperature, types.ScaleCelsius)
}
