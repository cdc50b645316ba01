// Package api implements the read-only HTTP status API of the grid simulator.
//
// This package provides:
//   - Health endpoint aggregating the broker and sink health checks
//   - The most recent voltage snapshot and the loaded network topology
//   - Cycle history from the SQLite store
//   - Prometheus metrics at /metrics
//   - Middleware stack (request ID, logging, recovery, metrics)
//
// # Architecture
//
// The server never touches the simulation loop's network object. It reads
// the latest snapshot through the SnapshotSource interface and serves a
// clone of the topology taken at startup.
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
