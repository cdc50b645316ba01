package simulation

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/nerrad567/gray-logic-gridsim/internal/infrastructure/config"
)

// Policy draws the per-cycle load scaling and sleep interval.
//
// Thread Safety:
//   - Not safe for concurrent use. The simulation loop owns it.
type Policy struct {
	scaling  config.ScalingRange
	interval config.IntervalRange
	rng      *rand.Rand
}

// NewPolicy creates a Policy from configuration. A zero seed uses a
// time-based source, any other seed makes draws reproducible.
func NewPolicy(cfg config.SimulationConfig) *Policy {
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano()) //nolint:gosec // non-negative clock value
	}
	return NewPolicyWithSource(cfg, rand.NewPCG(seed, seed>>1|1))
}

// NewPolicyWithSource creates a Policy drawing from src.
func NewPolicyWithSource(cfg config.SimulationConfig, src rand.Source) *Policy {
	return &Policy{
		scaling:  cfg.LoadScaling,
		interval: cfg.Interval,
		rng:      rand.New(src), //nolint:gosec // simulation noise, not security
	}
}

// DrawScaling returns a factor uniformly drawn from the configured range
// and rounded to two decimals.
func (p *Policy) DrawScaling() float64 {
	x := p.scaling.Min + p.rng.Float64()*(p.scaling.Max-p.scaling.Min)
	return math.Round(x*100) / 100
}

// DrawInterval returns a duration uniformly drawn from [Min, Max).
// A degenerate range always returns Min.
func (p *Policy) DrawInterval() time.Duration {
	span := p.interval.Max - p.interval.Min
	if span <= 0 {
		return p.interval.Min
	}
	return p.interval.Min + time.Duration(p.rng.Int64N(int64(span)))
}
