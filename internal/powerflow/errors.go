package powerflow

import "errors"

// Domain-specific errors for load-flow solving.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotConverged is returned when the mismatch is still above
	// tolerance after the maximum number of iterations.
	ErrNotConverged = errors.New("powerflow: did not converge")

	// ErrSingularJacobian is returned when a Newton step cannot be solved.
	ErrSingularJacobian = errors.New("powerflow: singular jacobian")

	// ErrDiverged is returned when the iteration produces non-finite voltages.
	ErrDiverged = errors.New("powerflow: solution diverged")
)
