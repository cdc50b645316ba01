package network

import "errors"

// Domain-specific errors for topology construction.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrInvalidModel is returned when a topology description cannot be
	// turned into a solvable network.
	ErrInvalidModel = errors.New("network: invalid model")

	// ErrUnknownBus is returned when an element references a bus name
	// that is not declared.
	ErrUnknownBus = errors.New("network: unknown bus")

	// ErrUnknownLineType is returned when a line references an undeclared std_type.
	ErrUnknownLineType = errors.New("network: unknown line type")

	// ErrIsolatedBus is returned when a bus cannot be reached from the
	// external grid through in-service branches.
	ErrIsolatedBus = errors.New("network: bus not connected to external grid")
)
