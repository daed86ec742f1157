package vehicletracker

import (
	"errors"
	"os"
	"time"

	"github.com/travigo/fleettracker/pkg/ctdf"
	"github.com/travigo/fleettracker/pkg/util"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// Maximum number of history entries retained per session
	HistoryCap int `yaml:"history_cap"`

	// Speeds in km/h
	SpeedLimit    float64 `yaml:"speed_limit"`
	CriticalSpeed float64 `yaml:"critical_speed"`
	MaxSpeed      float64 `yaml:"max_speed"`

	OfflineThreshold time.Duration `yaml:"offline_threshold"`
	OnlineWindow     time.Duration `yaml:"online_window"`
	SweepInterval    time.Duration `yaml:"sweep_interval"`
	SweepConcurrency int           `yaml:"sweep_concurrency"`

	RouteDeviationMeters float64 `yaml:"route_deviation_meters"`
	LowBatteryPercent    float64 `yaml:"low_battery_percent"`

	GeofenceMinRadius float64 `yaml:"geofence_min_radius"`
	GeofenceMaxRadius float64 `yaml:"geofence_max_radius"`

	DefaultUpdateInterval string `yaml:"default_update_interval"`

	PersistInterval   time.Duration `yaml:"persist_interval"`
	TerminalRetention time.Duration `yaml:"terminal_retention"`
	DispatchBuffer    int           `yaml:"dispatch_buffer"`

	Region ctdf.BoundingBox `yaml:"region"`

	ChangeDetection ChangeDetectionConfig `yaml:"change_detection"`
}

func DefaultConfig() Config {
	return Config{
		HistoryCap:            1000,
		SpeedLimit:            80,
		CriticalSpeed:         100,
		MaxSpeed:              200,
		OfflineThreshold:      10 * time.Minute,
		OnlineWindow:          5 * time.Minute,
		SweepInterval:         1 * time.Minute,
		SweepConcurrency:      8,
		RouteDeviationMeters:  200,
		LowBatteryPercent:     15,
		GeofenceMinRadius:     10,
		GeofenceMaxRadius:     10000,
		DefaultUpdateInterval: "PT30S",
		PersistInterval:       15 * time.Second,
		TerminalRetention:     1 * time.Hour,
		DispatchBuffer:        10000,
		Region:                ctdf.DefaultOperatingRegion,
		ChangeDetection:       defaultChangeConfig,
	}
}

// LoadConfig builds the configuration from the defaults, an optional YAML file and then
// environment variable overrides
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()

	if path == "" {
		path = os.Getenv("TRAVIGO_TRACKER_CONFIG")
	}

	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return config, err
		}
		defer file.Close()

		if err := yaml.NewDecoder(file).Decode(&config); err != nil {
			return config, err
		}
	}

	config.applyEnvironment()

	return config, config.Validate()
}

func (c *Config) applyEnvironment() {
	util.EnvInt("TRAVIGO_TRACKER_HISTORY_CAP", &c.HistoryCap)

	util.EnvFloat("TRAVIGO_TRACKER_SPEED_LIMIT", &c.SpeedLimit)
	util.EnvFloat("TRAVIGO_TRACKER_CRITICAL_SPEED", &c.CriticalSpeed)
	util.EnvFloat("TRAVIGO_TRACKER_MAX_SPEED", &c.MaxSpeed)

	util.EnvDuration("TRAVIGO_TRACKER_OFFLINE_THRESHOLD", &c.OfflineThreshold)
	util.EnvDuration("TRAVIGO_TRACKER_ONLINE_WINDOW", &c.OnlineWindow)
	util.EnvDuration("TRAVIGO_TRACKER_SWEEP_INTERVAL", &c.SweepInterval)

	util.EnvFloat("TRAVIGO_TRACKER_ROUTE_DEVIATION_METERS", &c.RouteDeviationMeters)
	util.EnvFloat("TRAVIGO_TRACKER_LOW_BATTERY_PERCENT", &c.LowBatteryPercent)

	util.EnvFloat("TRAVIGO_TRACKER_GEOFENCE_MIN_RADIUS", &c.GeofenceMinRadius)
	util.EnvFloat("TRAVIGO_TRACKER_GEOFENCE_MAX_RADIUS", &c.GeofenceMaxRadius)

	util.EnvDuration("TRAVIGO_TRACKER_PERSIST_INTERVAL", &c.PersistInterval)
	util.EnvDuration("TRAVIGO_TRACKER_TERMINAL_RETENTION", &c.TerminalRetention)

	// Kept from the realtime journey tracker so existing deployments carry over
	util.EnvFloat("REALTIME_MIN_LOCATION_CHANGE_METERS", &c.ChangeDetection.MinLocationChangeMeters)
	util.EnvDuration("REALTIME_MAX_TIME_BETWEEN_WRITES", &c.ChangeDetection.MaxTimeBetweenWrites)
	util.EnvDuration("REALTIME_MIN_TIME_BETWEEN_UPDATES", &c.ChangeDetection.MinTimeBetweenUpdates)
}

func (c *Config) Validate() error {
	if c.HistoryCap <= 0 {
		return errors.New("history cap must be positive")
	}
	if c.SpeedLimit <= 0 || c.CriticalSpeed < c.SpeedLimit || c.MaxSpeed < c.CriticalSpeed {
		return errors.New("speed thresholds must satisfy 0 < speed limit <= critical speed <= max speed")
	}
	if c.OfflineThreshold <= 0 || c.OnlineWindow <= 0 || c.SweepInterval <= 0 {
		return errors.New("connectivity durations must be positive")
	}
	if c.PersistInterval <= 0 || c.TerminalRetention <= 0 {
		return errors.New("persist interval and terminal retention must be positive")
	}
	if c.GeofenceMinRadius <= 0 || c.GeofenceMaxRadius < c.GeofenceMinRadius {
		return errors.New("geofence radius range is invalid")
	}
	if c.Region.IsZero() {
		return errors.New("operating region must be set")
	}
	if c.SweepConcurrency <= 0 {
		c.SweepConcurrency = 1
	}
	if c.DispatchBuffer <= 0 {
		c.DispatchBuffer = 1
	}

	return nil
}
