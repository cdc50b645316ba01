// Package powerflow solves the steady-state AC load flow of a network.Network.
//
// The solver uses the full Newton-Raphson method in polar coordinates. The
// external grid bus is the slack; every other bus is a PQ bus whose
// injection is the negative of its scaled, in-service load demand.
// Lines use the π-model and transformers the series impedance derived from
// their short-circuit voltage, with off-nominal tap ratio and phase shift.
//
// Usage:
//
//	solver := powerflow.NewSolver(cfg.Network.Solver)
//	res, err := solver.Solve(ctx, net)
//	if errors.Is(err, powerflow.ErrNotConverged) {
//	    // no voltages for this cycle
//	}
//	for i, vm := range res.VmPU {
//	    fmt.Println(net.Buses[i].Name, vm)
//	}
//
// Solve never mutates the network; results are indexed like net.Buses.
package powerflow
