package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// MQTT topic layout. Every simulator topic lives under TopicPrefix.
const (
	TopicPrefix = "power/cigre_mv"

	// DefaultVoltageTopic is the topic bus voltage snapshots are published to.
	DefaultVoltageTopic = TopicPrefix + "/bus_voltages"
)

// InfluxDB defaults. Telegraf's mqtt_consumer input writes the published
// payload under this measurement, and the bundled Grafana dashboard reads
// it from this bucket.
const (
	DefaultInfluxMeasurement = "mqtt_consumer"
	DefaultInfluxBucket      = "iot_bucket"
)

// Config is the root configuration structure for the grid simulator.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Simulation SimulationConfig `yaml:"simulation"`
	Network    NetworkConfig    `yaml:"network"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	Database   DatabaseConfig   `yaml:"database"`
	API        APIConfig        `yaml:"api"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// SimulationConfig controls the publish loop cadence and randomisation.
type SimulationConfig struct {
	// Topic is the MQTT topic every voltage snapshot is published to.
	Topic string `yaml:"topic"`

	// LoadScaling bounds the uniform load-scaling factor drawn each cycle.
	LoadScaling ScalingRange `yaml:"load_scaling"`

	// Interval bounds the pause between two publishes. The draw is
	// uniform over [Min, Max).
	Interval IntervalRange `yaml:"interval"`

	// Seed fixes the random source. 0 seeds from the clock.
	Seed uint64 `yaml:"seed"`

	// MaxCycles stops the loop after this many publishes. 0 runs forever.
	MaxCycles uint64 `yaml:"max_cycles"`
}

// ScalingRange is a closed interval of load-scaling factors.
type ScalingRange struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// IntervalRange is a half-open interval of sleep durations.
type IntervalRange struct {
	Min time.Duration `yaml:"min"`
	Max time.Duration `yaml:"max"`
}

// NetworkConfig selects the grid model and tunes the load-flow solver.
type NetworkConfig struct {
	// ModelFile is an optional YAML topology. Empty uses the embedded
	// CIGRE MV benchmark.
	ModelFile string       `yaml:"model_file"`
	Solver    SolverConfig `yaml:"solver"`
}

// SolverConfig contains Newton-Raphson convergence settings.
type SolverConfig struct {
	ToleranceMVA  float64 `yaml:"tolerance_mva"`
	MaxIterations int     `yaml:"max_iterations"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker MQTTBrokerConfig `yaml:"broker"`
	Auth   MQTTAuthConfig   `yaml:"auth"`
	QoS    int              `yaml:"qos"`

	// PublishTimeout bounds the wait for a publish acknowledgement.
	// 0 waits until the broker answers or the connection drops.
	PublishTimeout time.Duration `yaml:"publish_timeout"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	Measurement   string `yaml:"measurement"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// DatabaseConfig contains SQLite settings for the cycle history.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`

	// Retention prunes cycles older than this at startup. 0 keeps everything.
	Retention time.Duration `yaml:"retention"`
}

// APIConfig contains HTTP status API settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load builds the configuration and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values, when path is non-empty
//  3. Environment variables (override file values)
//
// Parameters:
//   - path: Path to the YAML configuration file, or "" for defaults only
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If the file cannot be read or parsed, an override is malformed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Simulation: SimulationConfig{
			Topic: DefaultVoltageTopic,
			LoadScaling: ScalingRange{
				Min: 0.8,
				Max: 1.2,
			},
			Interval: IntervalRange{
				Min: 5 * time.Second,
				Max: 10 * time.Second,
			},
		},
		Network: NetworkConfig{
			Solver: SolverConfig{
				ToleranceMVA:  1e-8,
				MaxIterations: 10,
			},
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "cigre-mv-grid-simulator",
			},
			QoS: 1,
		},
		InfluxDB: InfluxDBConfig{
			Bucket:      DefaultInfluxBucket,
			Measurement: DefaultInfluxMeasurement,
		},
		Database: DatabaseConfig{
			Path:        "./data/gridsim.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// The broker address uses MQTT_BROKER_HOST / MQTT_BROKER_PORT; everything
// else follows the pattern GRIDSIM_SECTION_KEY.
func applyEnvOverrides(cfg *Config) error {
	// MQTT broker
	if v := os.Getenv("MQTT_BROKER_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("MQTT_BROKER_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MQTT_BROKER_PORT %q is not an integer: %w", v, err)
		}
		cfg.MQTT.Broker.Port = port
	}
	if v := os.Getenv("GRIDSIM_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GRIDSIM_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("GRIDSIM_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Database
	if v := os.Getenv("GRIDSIM_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// Logging
	if v := os.Getenv("GRIDSIM_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	return nil
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Simulation
	if c.Simulation.Topic == "" {
		errs = append(errs, "simulation.topic is required")
	}
	if c.Simulation.LoadScaling.Min <= 0 || c.Simulation.LoadScaling.Max < c.Simulation.LoadScaling.Min {
		errs = append(errs, "simulation.load_scaling must satisfy 0 < min <= max")
	}
	if c.Simulation.Interval.Min <= 0 || c.Simulation.Interval.Max < c.Simulation.Interval.Min {
		errs = append(errs, "simulation.interval must satisfy 0 < min <= max")
	}

	// Solver
	if c.Network.Solver.ToleranceMVA <= 0 {
		errs = append(errs, "network.solver.tolerance_mva must be positive")
	}
	if c.Network.Solver.MaxIterations < 1 {
		errs = append(errs, "network.solver.max_iterations must be at least 1")
	}

	// MQTT
	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.PublishTimeout < 0 {
		errs = append(errs, "mqtt.publish_timeout cannot be negative")
	}

	// Optional sinks are only checked when enabled
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "" || c.InfluxDB.Org == "" {
			errs = append(errs, "influxdb.url, influxdb.org and influxdb.bucket are required when influxdb is enabled")
		}
		if c.InfluxDB.Measurement == "" {
			errs = append(errs, "influxdb.measurement is required when influxdb is enabled")
		}
	}
	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when database is enabled")
	}
	if c.Database.Retention < 0 {
		errs = append(errs, "database.retention cannot be negative")
	}
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return errors.New("configuration errors: " + strings.Join(errs, "; "))
	}

	return nil
}

// BrokerAddress returns the host:port pair of the MQTT broker.
func (c *Config) BrokerAddress() string {
	return fmt.Sprintf("%s:%d", c.MQTT.Broker.Host, c.MQTT.Broker.Port)
}

// GetReadTimeout returns the read timeout as a Duration.
func (c APIConfig) GetReadTimeout() time.Duration {
	return time.Duration(c.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the write timeout as a Duration.
func (c APIConfig) GetWriteTimeout() time.Duration {
	return time.Duration(c.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the idle timeout as a Duration.
func (c APIConfig) GetIdleTimeout() time.Duration {
	return time.Duration(c.Timeouts.Idle) * time.Second
}
