package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-gridsim/internal/infrastructure/config"
)

// DefaultMeasurement holds per-bus voltage magnitudes. It is the measurement
// Telegraf's mqtt_consumer input uses for the published payload.
const DefaultMeasurement = config.DefaultInfluxMeasurement

// cycleMeasurement holds one summary point per simulation cycle.
const cycleMeasurement = "simulation_cycle"

// failureMeasurement holds one point per terminal failure.
const failureMeasurement = "simulation_failure"

// BusVoltage is one bus reading to store.
type BusVoltage struct {
	Name string
	VmPU float64
}

// CycleSummary describes one simulation cycle.
type CycleSummary struct {
	RunID       string
	Cycle       uint64
	Timestamp   time.Time
	LoadScaling float64
	Iterations  int
	SlackPMW    float64
	LossesMW    float64
}

// WriteBusVoltages writes one point per bus, tagged with the bus name.
//
// With the default measurement the points share the layout Telegraf's
// mqtt_consumer input produces from the published payload (tag "name",
// field "vm_pu"), so the bundled dashboard reads either source.
//
// The write is non-blocking; data is batched and sent asynchronously.
// Errors are delivered to the SetOnError callback.
func (c *Client) WriteBusVoltages(runID string, ts time.Time, voltages []BusVoltage) {
	if !c.IsConnected() {
		return
	}

	for _, p := range busVoltagePoints(c.measurement, runID, ts, voltages) {
		c.writeAPI.WritePoint(p)
	}
}

// WriteCycleSummary writes the scalar results of one cycle.
func (c *Client) WriteCycleSummary(s CycleSummary) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(cycleSummaryPoint(s))
}

// WriteFailure records a terminal cycle failure as an event point
// (measurement simulation_failure, tag stage, field count=1).
func (c *Client) WriteFailure(runID, stage string, ts time.Time) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(failurePoint(runID, stage, ts))
}

func busVoltagePoints(measurement, runID string, ts time.Time, voltages []BusVoltage) []*write.Point {
	points := make([]*write.Point, 0, len(voltages))
	for _, v := range voltages {
		tags := map[string]string{"name": v.Name}
		if runID != "" {
			tags["run_id"] = runID
		}
		points = append(points, write.NewPoint(
			measurement,
			tags,
			map[string]interface{}{"vm_pu": v.VmPU},
			ts,
		))
	}
	return points
}

func cycleSummaryPoint(s CycleSummary) *write.Point {
	tags := map[string]string{}
	if s.RunID != "" {
		tags["run_id"] = s.RunID
	}
	return write.NewPoint(
		cycleMeasurement,
		tags,
		map[string]interface{}{
			"cycle":        int64(s.Cycle), //nolint:gosec // cycle counts stay far below MaxInt64
			"load_scaling": s.LoadScaling,
			"iterations":   int64(s.Iterations),
			"slack_p_mw":   s.SlackPMW,
			"losses_mw":    s.LossesMW,
		},
		s.Timestamp,
	)
}

func failurePoint(runID, stage string, ts time.Time) *write.Point {
	tags := map[string]string{"stage": stage}
	if runID != "" {
		tags["run_id"] = runID
	}
	return write.NewPoint(failureMeasurement, tags, map[string]interface{}{"count": 1}, ts)
}
