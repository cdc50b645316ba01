// Package mqtt provides MQTT client connectivity for the grid simulator.
//
// This package manages:
//   - A single connection to the broker (no auto-reconnect)
//   - Message publishing with QoS guarantees and context-aware waits
//   - Topic subscriptions for the watch command
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// The simulator is a pure producer. Voltage snapshots go to one topic;
// downstream consumers (Telegraf, dashboards) subscribe independently.
//
//	gridsim → MQTT Broker → Telegraf → InfluxDB → Grafana
//
// A lost connection is not repaired. The next publish fails with
// ErrNotConnected and the simulation routine ends.
//
// # Security Considerations
//
//   - TLS is available via cfg.Broker.TLS (minimum TLS 1.2)
//   - Credentials are passed through to the broker unchanged
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.PublishContext(ctx, cfg.Simulation.Topic, payload, 1, false)
package mqtt
