// Package config handles loading and validating grid simulator configuration.
//
// This package manages:
//   - Loading configuration from an optional YAML file
//   - Overriding with environment variables (MQTT_BROKER_HOST, MQTT_BROKER_PORT, GRIDSIM_*)
//   - Validation of required fields
//   - Default value handling
//
// Without a config file the simulator runs on defaults plus environment,
// which matches a bare container deployment next to a broker.
//
// Security Considerations:
//   - Broker credentials and the InfluxDB token should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load(os.Getenv("GRIDSIM_CONFIG"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.BrokerAddress())
package config
