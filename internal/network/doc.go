// Package network holds the electrical topology the simulator solves every cycle.
//
// A Network is a list of buses in insertion order plus the branches
// (lines, two-winding transformers), constant-power loads and the single
// external grid connecting them. Bus identity is the insertion index; every
// published voltage snapshot follows that order.
//
// The default model is the CIGRE MV benchmark, embedded in the binary:
//
//	net, err := network.CIGREMV()
//	if err != nil {
//	    return fmt.Errorf("loading grid model: %w", err)
//	}
//	net.SetLoadScaling(1.05)
//
// Custom topologies use the same YAML schema and are loaded with LoadFile.
// Both paths validate the model before returning it; a Network that comes
// back without error has unique bus names, resolved references, exactly one
// slack and no islanded buses.
package network
