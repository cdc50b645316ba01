package main

import (
	"context"
	"time"

	"github.com/nerrad567/gray-logic-gridsim/internal/history"
	"github.com/nerrad567/gray-logic-gridsim/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-gridsim/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-gridsim/internal/simulation"
)

// historyRecorder is the history repository plus the database it lives
// in, so one value serves as recorder, history lister and health check.
type historyRecorder struct {
	*history.Repository
	db *database.DB
}

// HealthCheck checks the underlying database.
func (h *historyRecorder) HealthCheck(ctx context.Context) error {
	return h.db.HealthCheck(ctx)
}

// influxRecorder forwards snapshots to InfluxDB. Writes are batched
// asynchronously; failures arrive on the client's error callback.
type influxRecorder struct {
	client *influxdb.Client
}

func (r influxRecorder) RecordSnapshot(_ context.Context, snap *simulation.Snapshot) error {
	voltages := make([]influxdb.BusVoltage, len(snap.Readings))
	for i, reading := range snap.Readings {
		voltages[i] = influxdb.BusVoltage{Name: reading.Name, VmPU: reading.VmPU}
	}

	r.client.WriteBusVoltages(snap.RunID, snap.Timestamp, voltages)
	r.client.WriteCycleSummary(influxdb.CycleSummary{
		RunID:       snap.RunID,
		Cycle:       snap.Cycle,
		Timestamp:   snap.Timestamp,
		LoadScaling: snap.LoadScaling,
		Iterations:  snap.Iterations,
		SlackPMW:    snap.SlackPMW,
		LossesMW:    snap.LossesMW,
	})
	return nil
}

// influxObserver records terminal failures as InfluxDB events.
type influxObserver struct {
	client *influxdb.Client
	runID  string
}

func (o influxObserver) ObserveCycle(*simulation.Snapshot) {}

func (o influxObserver) ObserveFailure(stage simulation.Stage) {
	o.client.WriteFailure(o.runID, string(stage), time.Now())
}

// observers fans cycle outcomes out to several observers.
type observers []simulation.Observer

func (o observers) ObserveCycle(snap *simulation.Snapshot) {
	for _, obs := range o {
		obs.ObserveCycle(snap)
	}
}

func (o observers) ObserveFailure(stage simulation.Stage) {
	for _, obs := range o {
		obs.ObserveFailure(stage)
	}
}
