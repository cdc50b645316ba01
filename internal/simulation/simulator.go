package simulation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-gridsim/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-gridsim/internal/network"
	"github.com/nerrad567/gray-logic-gridsim/internal/powerflow"
)

// DefaultQoS is the publish QoS: at-least-once delivery.
const DefaultQoS byte = 1

// Solver computes the load flow of a network.
type Solver interface {
	Solve(ctx context.Context, net *network.Network) (*powerflow.Result, error)
}

// Publisher sends a payload to the broker and waits for the acknowledgement.
type Publisher interface {
	PublishContext(ctx context.Context, topic string, payload []byte, qos byte, retained bool) error
}

// Recorder receives every published snapshot. Errors are logged only.
type Recorder interface {
	RecordSnapshot(ctx context.Context, snap *Snapshot) error
}

// Observer is notified of cycle outcomes, typically to update metrics.
type Observer interface {
	ObserveCycle(snap *Snapshot)
	ObserveFailure(stage Stage)
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Options configures a Simulator. Network, Solver, Publisher and Policy
// are required.
type Options struct {
	Network   *network.Network
	Solver    Solver
	Publisher Publisher
	Policy    *Policy
	Topic     string
	QoS       byte

	// MaxCycles stops Run after this many successful cycles. 0 runs forever.
	MaxCycles uint64

	RunID     string
	Recorders []Recorder
	Observer  Observer
	Logger    *logging.Logger

	// Sleep and Now default to real time.
	Sleep SleepFunc
	Now   func() time.Time
}

// Simulator runs the solve-and-publish loop.
//
// Thread Safety:
//   - Run and RunCycle must be called from a single goroutine.
//   - Latest and Cycles are safe for concurrent use.
type Simulator struct {
	net       *network.Network
	solver    Solver
	publisher Publisher
	policy    *Policy
	topic     string
	qos       byte
	maxCycles uint64
	runID     string
	recorders []Recorder
	observer  Observer
	logger    *logging.Logger
	sleep     SleepFunc
	now       func() time.Time

	mu     sync.RWMutex
	latest *Snapshot
	cycles uint64
}

// New creates a Simulator.
//
// Returns:
//   - *Simulator: Ready to Run
//   - error: If a required option is missing
func New(opts Options) (*Simulator, error) {
	switch {
	case opts.Network == nil:
		return nil, errors.New("simulation: network is required")
	case opts.Solver == nil:
		return nil, errors.New("simulation: solver is required")
	case opts.Publisher == nil:
		return nil, errors.New("simulation: publisher is required")
	case opts.Policy == nil:
		return nil, errors.New("simulation: policy is required")
	case opts.Topic == "":
		return nil, errors.New("simulation: topic is required")
	}

	s := &Simulator{
		net:       opts.Network,
		solver:    opts.Solver,
		publisher: opts.Publisher,
		policy:    opts.Policy,
		topic:     opts.Topic,
		qos:       opts.QoS,
		maxCycles: opts.MaxCycles,
		runID:     opts.RunID,
		recorders: opts.Recorders,
		observer:  opts.Observer,
		logger:    opts.Logger,
		sleep:     opts.Sleep,
		now:       opts.Now,
	}
	if s.logger == nil {
		s.logger = logging.Discard()
	}
	if s.sleep == nil {
		s.sleep = sleepContext
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Run executes cycles until one fails, MaxCycles is reached or ctx is done.
//
// Returns:
//   - nil: MaxCycles reached
//   - ctx.Err(): The context was cancelled during a cycle or a sleep
//   - *CycleError: A cycle failed; the routine must not continue
func (s *Simulator) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		snap, err := s.RunCycle(ctx)
		if err != nil {
			// Interrupts surfacing through the solver or the publish wait
			// are shutdowns, not cycle failures.
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return err
		}

		if s.maxCycles > 0 && snap.Cycle >= s.maxCycles {
			s.logger.Info("cycle limit reached", "cycles", snap.Cycle)
			return nil
		}

		wait := s.policy.DrawInterval()
		s.logger.Debug("sleeping until next cycle", "cycle", snap.Cycle, "wait", wait)
		if err := s.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// RunCycle performs one draw, solve, join, encode and publish sequence.
// Nothing is published if any step before publish fails.
//
// Returns:
//   - *Snapshot: The published snapshot
//   - error: *CycleError describing the failed stage
func (s *Simulator) RunCycle(ctx context.Context) (*Snapshot, error) {
	s.mu.RLock()
	cycle := s.cycles + 1
	s.mu.RUnlock()

	scaling := s.policy.DrawScaling()
	s.net.SetLoadScaling(scaling)

	start := s.now()
	res, err := s.solver.Solve(ctx, s.net)
	solveDuration := s.now().Sub(start)
	if err != nil {
		return nil, s.fail(ctx, StageSolve, cycle, fmt.Errorf("%w: %w", ErrSolveFailed, err))
	}

	readings, err := JoinReadings(s.net.BusNames(), res.VmPU)
	if err != nil {
		return nil, s.fail(ctx, StageJoin, cycle, err)
	}

	payload, err := EncodePayload(readings)
	if err != nil {
		return nil, s.fail(ctx, StageEncode, cycle, err)
	}

	if err := s.publisher.PublishContext(ctx, s.topic, payload, s.qos, false); err != nil {
		return nil, s.fail(ctx, StagePublish, cycle, fmt.Errorf("%w: %w", ErrPublishFailed, err))
	}

	snap := &Snapshot{
		RunID:         s.runID,
		Cycle:         cycle,
		Timestamp:     s.now().UTC(),
		LoadScaling:   scaling,
		Readings:      readings,
		Iterations:    res.Iterations,
		SolveDuration: solveDuration,
		SlackPMW:      res.SlackPMW,
		SlackQMVAr:    res.SlackQMVAr,
		LossesMW:      res.LossesMW,
		Payload:       payload,
	}

	s.mu.Lock()
	s.cycles = cycle
	s.latest = snap
	s.mu.Unlock()

	s.logger.Info("published bus voltages",
		"cycle", cycle,
		"load_scaling_percent", scaling*100,
		"readings", len(readings),
		"iterations", res.Iterations,
		"solve_ms", solveDuration.Milliseconds(),
	)

	if s.observer != nil {
		s.observer.ObserveCycle(snap)
	}
	s.record(ctx, snap)

	return snap, nil
}

// record hands snap to every recorder. Failures never stop the loop.
func (s *Simulator) record(ctx context.Context, snap *Snapshot) {
	for _, r := range s.recorders {
		if err := r.RecordSnapshot(ctx, snap); err != nil {
			s.logger.Warn("recording snapshot failed",
				"cycle", snap.Cycle,
				"recorder", fmt.Sprintf("%T", r),
				"error", err,
			)
		}
	}
}

// fail builds the CycleError. Failures caused by an interrupt are not
// reported to the observer.
func (s *Simulator) fail(ctx context.Context, stage Stage, cycle uint64, err error) error {
	if s.observer != nil && ctx.Err() == nil {
		s.observer.ObserveFailure(stage)
	}
	return &CycleError{Stage: stage, Cycle: cycle, Err: err}
}

// Latest returns the most recent published snapshot, or nil before the
// first cycle completes.
func (s *Simulator) Latest() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// Cycles returns the number of successfully published cycles.
func (s *Simulator) Cycles() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cycles
}

// sleepContext waits for d unless ctx is cancelled first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
