package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_ValidConfig(t *testing.T) {
	content := `
simulation:
  topic: "power/test/bus_voltages"
  load_scaling:
    min: 0.9
    max: 1.1
  interval:
    min: 1s
    max: 2s
  seed: 42
mqtt:
  broker:
    host: "broker.local"
    port: 1884
    client_id: "test-client"
  qos: 1
database:
  enabled: true
  path: "/tmp/test.db"
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Simulation.Topic != "power/test/bus_voltages" {
		t.Errorf("Simulation.Topic = %q, want %q", cfg.Simulation.Topic, "power/test/bus_voltages")
	}
	if cfg.Simulation.Interval.Min != time.Second || cfg.Simulation.Interval.Max != 2*time.Second {
		t.Errorf("Simulation.Interval = %+v, want [1s, 2s)", cfg.Simulation.Interval)
	}
	if cfg.Simulation.Seed != 42 {
		t.Errorf("Simulation.Seed = %d, want 42", cfg.Simulation.Seed)
	}
	if cfg.MQTT.Broker.Host != "broker.local" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "broker.local")
	}
	if cfg.BrokerAddress() != "broker.local:1884" {
		t.Errorf("BrokerAddress() = %q, want %q", cfg.BrokerAddress(), "broker.local:1884")
	}
	// Untouched sections keep their defaults
	if cfg.Network.Solver.MaxIterations != 10 {
		t.Errorf("Network.Solver.MaxIterations = %d, want 10", cfg.Network.Solver.MaxIterations)
	}
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	t.Setenv("MQTT_BROKER_HOST", "")
	t.Setenv("MQTT_BROKER_PORT", "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error = %v", err)
	}

	if cfg.Simulation.Topic != DefaultVoltageTopic {
		t.Errorf("Simulation.Topic = %q, want %q", cfg.Simulation.Topic, DefaultVoltageTopic)
	}
	if cfg.BrokerAddress() != "localhost:1883" {
		t.Errorf("BrokerAddress() = %q, want %q", cfg.BrokerAddress(), "localhost:1883")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
simulation:
  load_scaling:
    min: 1.5
    max: 1.0
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected validation error for inverted scaling range, got nil")
	}
}

func TestLoad_InvalidBrokerPortEnv(t *testing.T) {
	t.Setenv("MQTT_BROKER_PORT", "not-a-port")

	_, err := Load("")
	if err == nil {
		t.Fatal("Load() expected error for non-integer MQTT_BROKER_PORT, got nil")
	}
	if !strings.Contains(err.Error(), "MQTT_BROKER_PORT") {
		t.Errorf("Load() error = %v, want mention of MQTT_BROKER_PORT", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "defaults are valid",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "empty topic",
			mutate:  func(c *Config) { c.Simulation.Topic = "" },
			wantErr: true,
		},
		{
			name:    "zero scaling minimum",
			mutate:  func(c *Config) { c.Simulation.LoadScaling.Min = 0 },
			wantErr: true,
		},
		{
			name:    "degenerate scaling range",
			mutate:  func(c *Config) { c.Simulation.LoadScaling = ScalingRange{Min: 1, Max: 1} },
			wantErr: false,
		},
		{
			name:    "inverted interval",
			mutate:  func(c *Config) { c.Simulation.Interval = IntervalRange{Min: 10 * time.Second, Max: 5 * time.Second} },
			wantErr: true,
		},
		{
			name:    "zero solver tolerance",
			mutate:  func(c *Config) { c.Network.Solver.ToleranceMVA = 0 },
			wantErr: true,
		},
		{
			name:    "zero solver iterations",
			mutate:  func(c *Config) { c.Network.Solver.MaxIterations = 0 },
			wantErr: true,
		},
		{
			name:    "invalid QoS",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: true,
		},
		{
			name:    "invalid broker port low",
			mutate:  func(c *Config) { c.MQTT.Broker.Port = 0 },
			wantErr: true,
		},
		{
			name:    "invalid broker port high",
			mutate:  func(c *Config) { c.MQTT.Broker.Port = 70000 },
			wantErr: true,
		},
		{
			name:    "negative publish timeout",
			mutate:  func(c *Config) { c.MQTT.PublishTimeout = -time.Second },
			wantErr: true,
		},
		{
			name:    "negative database retention",
			mutate:  func(c *Config) { c.Database.Retention = -time.Hour },
			wantErr: true,
		},
		{
			name: "influxdb enabled without bucket",
			mutate: func(c *Config) {
				c.InfluxDB = InfluxDBConfig{Enabled: true, URL: "http://x", Org: "o", Measurement: "m"}
			},
			wantErr: true,
		},
		{
			name:    "database enabled without path",
			mutate:  func(c *Config) { c.Database = DatabaseConfig{Enabled: true} },
			wantErr: true,
		},
		{
			name:    "api disabled ignores port",
			mutate:  func(c *Config) { c.API = APIConfig{Enabled: false, Port: 0} },
			wantErr: false,
		},
		{
			name:    "api enabled with invalid port",
			mutate:  func(c *Config) { c.API = APIConfig{Enabled: true, Port: 0} },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ValidateReportsAllErrors(t *testing.T) {
	cfg := defaultConfig()
	cfg.Simulation.Topic = ""
	cfg.MQTT.QoS = 5

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error, got nil")
	}
	for _, want := range []string{"simulation.topic", "mqtt.qos"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() error = %q, want it to mention %q", err, want)
		}
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
	}

	if got := cfg.API.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}

	if got := cfg.API.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}

	if got := cfg.API.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("MQTT_BROKER_HOST", "mqtt.example.com")
	t.Setenv("MQTT_BROKER_PORT", "8883")
	t.Setenv("GRIDSIM_MQTT_USERNAME", "testuser")
	t.Setenv("GRIDSIM_MQTT_PASSWORD", "testpass")
	t.Setenv("GRIDSIM_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("GRIDSIM_DATABASE_PATH", "/custom/path.db")
	t.Setenv("GRIDSIM_LOG_LEVEL", "debug")

	if err := applyEnvOverrides(cfg); err != nil {
		t.Fatalf("applyEnvOverrides() error = %v", err)
	}

	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}
	if cfg.MQTT.Broker.Port != 8883 {
		t.Errorf("MQTT.Broker.Port = %d, want 8883", cfg.MQTT.Broker.Port)
	}
	if cfg.MQTT.Auth.Username != "testuser" {
		t.Errorf("MQTT.Auth.Username = %q, want %q", cfg.MQTT.Auth.Username, "testuser")
	}
	if cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth.Password = %q, want %q", cfg.MQTT.Auth.Password, "testpass")
	}
	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}
	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/path.db")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.MQTT.Broker.Host != "localhost" {
		t.Errorf("defaultConfig MQTT.Broker.Host = %q, want localhost", cfg.MQTT.Broker.Host)
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.MQTT.QoS != 1 {
		t.Errorf("defaultConfig MQTT.QoS = %d, want 1", cfg.MQTT.QoS)
	}
	if cfg.Simulation.LoadScaling != (ScalingRange{Min: 0.8, Max: 1.2}) {
		t.Errorf("defaultConfig LoadScaling = %+v, want [0.8, 1.2]", cfg.Simulation.LoadScaling)
	}
	if cfg.Simulation.Interval != (IntervalRange{Min: 5 * time.Second, Max: 10 * time.Second}) {
		t.Errorf("defaultConfig Interval = %+v, want [5s, 10s)", cfg.Simulation.Interval)
	}
	if cfg.Simulation.Topic != "power/cigre_mv/bus_voltages" {
		t.Errorf("defaultConfig Simulation.Topic = %q", cfg.Simulation.Topic)
	}
	// The Grafana dashboard reads mqtt_consumer from iot_bucket.
	if cfg.InfluxDB.Measurement != "mqtt_consumer" {
		t.Errorf("defaultConfig InfluxDB.Measurement = %q, want mqtt_consumer", cfg.InfluxDB.Measurement)
	}
	if cfg.InfluxDB.Bucket != "iot_bucket" {
		t.Errorf("defaultConfig InfluxDB.Bucket = %q, want iot_bucket", cfg.InfluxDB.Bucket)
	}
}
