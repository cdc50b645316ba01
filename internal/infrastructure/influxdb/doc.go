// Package influxdb stores simulated bus voltages in InfluxDB.
//
// Writes go through the non-blocking write API of influxdb-client-go v2
// and are sent in batches.
//
// # Data Layout
//
//   - mqtt_consumer (influxdb.measurement): tag name (bus), tag run_id,
//     field vm_pu. The Grafana dashboard queries this measurement in the
//     iot_bucket bucket, grouped by name.
//   - simulation_cycle: tag run_id, fields cycle, load_scaling,
//     iterations, slack_p_mw, losses_mw
//   - simulation_failure: tags stage, run_id, field count
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteBusVoltages(runID, time.Now(), voltages)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are delivered to the
// SetOnError callback. Connection and health check errors are returned
// directly.
package influxdb
