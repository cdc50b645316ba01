package simulation

import (
	"errors"
	"fmt"
)

// Domain-specific errors for the simulation loop.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrConnectFailed marks a broker connection failure before the first cycle.
	ErrConnectFailed = errors.New("simulation: connect failed")

	// ErrSolveFailed wraps a load-flow failure.
	ErrSolveFailed = errors.New("simulation: solve failed")

	// ErrReadingMismatch is returned when the solver result does not cover every bus.
	ErrReadingMismatch = errors.New("simulation: reading count does not match bus count")

	// ErrEncodeFailed wraps a payload serialisation failure.
	ErrEncodeFailed = errors.New("simulation: encode failed")

	// ErrPublishFailed wraps a transport publish failure.
	ErrPublishFailed = errors.New("simulation: publish failed")
)

// Stage names the step of a cycle that failed.
type Stage string

// Routine stages, in execution order. Loading the network and connecting
// happen once before the first cycle.
const (
	StageLoadNetwork Stage = "load_network"
	StageConnect     Stage = "connect"
	StageSolve       Stage = "solve"
	StageJoin        Stage = "join"
	StageEncode      Stage = "encode"
	StagePublish     Stage = "publish"
)

// CycleError reports a terminal failure of the simulation routine.
// Cycle is 0 for failures before the first cycle.
type CycleError struct {
	Stage Stage
	Cycle uint64
	Err   error
}

func (e *CycleError) Error() string {
	if e.Cycle == 0 {
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("cycle %d: %s: %v", e.Cycle, e.Stage, e.Err)
}

func (e *CycleError) Unwrap() error {
	return e.Err
}
