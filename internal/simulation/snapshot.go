package simulation

import (
	"math"
	"time"
)

// Snapshot is the outcome of one successful cycle.
type Snapshot struct {
	RunID         string           `json:"run_id"`
	Cycle         uint64           `json:"cycle"`
	Timestamp     time.Time        `json:"timestamp"`
	LoadScaling   float64          `json:"load_scaling"`
	Readings      []VoltageReading `json:"readings"`
	Iterations    int              `json:"iterations"`
	SolveDuration time.Duration    `json:"solve_duration_ns"`
	SlackPMW      float64          `json:"slack_p_mw"`
	SlackQMVAr    float64          `json:"slack_q_mvar"`
	LossesMW      float64          `json:"losses_mw"`

	// Payload is the exact byte sequence sent to the broker.
	Payload []byte `json:"-"`
}

// VoltageRange returns the lowest and highest bus voltage of the snapshot.
// Both are 0 when there are no readings.
func (s *Snapshot) VoltageRange() (minPU, maxPU float64) {
	if len(s.Readings) == 0 {
		return 0, 0
	}
	minPU, maxPU = math.Inf(1), math.Inf(-1)
	for _, r := range s.Readings {
		minPU = math.Min(minPU, r.VmPU)
		maxPU = math.Max(maxPU, r.VmPU)
	}
	return minPU, maxPU
}
