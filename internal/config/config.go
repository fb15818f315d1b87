// Package config loads navekfd's YAML configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full navekfd configuration, loaded from a single YAML file
// named by the -config flag.
type Config struct {
	HTTPPort    int    `yaml:"http_port"`
	MetricsPort int    `yaml:"metrics_port"`
	LogLevel    string `yaml:"log_level"`
	LogOutput   string `yaml:"log_output"`

	Filter FilterConfig `yaml:"filter"`
	Auth   AuthConfig   `yaml:"auth"`
	Serial SerialConfig `yaml:"serial"`
}

// FilterConfig seeds the EKF's noise models and reference constants.
type FilterConfig struct {
	// Gravity is parsed but not applied: the daemon's filter always uses
	// navekf.DefaultGravity.
	Gravity         float64   `yaml:"gravity"`
	EarthMagNED     [3]float64 `yaml:"earth_mag_ned"`
	ProcessSigmaPos float64   `yaml:"process_sigma_pos"`
	ProcessSigmaVel float64   `yaml:"process_sigma_vel"`
	ProcessSigmaAtt float64   `yaml:"process_sigma_att"`
	ProcessSigmaGBias float64 `yaml:"process_sigma_gyro_bias"`
	ProcessSigmaABias float64 `yaml:"process_sigma_accel_bias"`
	GPSSigmaPos     float64   `yaml:"gps_sigma_pos"`
	GPSSigmaVel     float64   `yaml:"gps_sigma_vel"`
	BaroSigma       float64   `yaml:"baro_sigma"`
	MagSigma        float64   `yaml:"mag_sigma"`
}

// AuthConfig configures the telemetry package's JWT signing authority. An
// empty Secret disables authentication entirely: the live feed treats every
// client as public clearance, and the query API serves every endpoint,
// including the bias read, without a token.
type AuthConfig struct {
	Secret string        `yaml:"secret"`
	TTL    time.Duration `yaml:"ttl"`
}

// SerialConfig configures an optional serial telemetry exporter. An empty
// Port disables it.
type SerialConfig struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
}

// Default returns a Config populated with navekfd's built-in defaults.
func Default() Config {
	return Config{
		HTTPPort:    8093,
		MetricsPort: 9093,
		LogLevel:    "info",
		LogOutput:   "stdout",
		Filter: FilterConfig{
			Gravity:           9.80665,
			EarthMagNED:       [3]float64{0.29, -0.05, 0.42},
			ProcessSigmaPos:   0.01,
			ProcessSigmaVel:   0.1,
			ProcessSigmaAtt:   0.001,
			ProcessSigmaGBias: 1e-4,
			ProcessSigmaABias: 1e-3,
			GPSSigmaPos:       1.5,
			GPSSigmaVel:       0.5,
			BaroSigma:         0.5,
			MagSigma:          0.05,
		},
		Auth: AuthConfig{TTL: time.Hour},
	}
}

// Load reads and parses a YAML config file, starting from Default() so any
// field the file omits keeps its built-in value.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	return cfg, nil
}
