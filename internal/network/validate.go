package network

import (
	"fmt"
	"strings"
)

// Validate checks that the network can be handed to the load-flow solver.
//
// It verifies:
//   - at least one bus, each with a positive nominal voltage
//   - every element references an existing bus
//   - both ends of a line share the same nominal voltage
//   - line and transformer parameters give a finite, non-zero series impedance
//   - the external grid has a positive voltage setpoint
//   - every bus is reachable from the external grid through in-service branches
//
// Returns:
//   - error: wrapping ErrInvalidModel, ErrUnknownBus or ErrIsolatedBus
func (n *Network) Validate() error {
	if len(n.Buses) == 0 {
		return fmt.Errorf("%w: no buses", ErrInvalidModel)
	}
	if n.SnMVA <= 0 {
		return fmt.Errorf("%w: sn_mva must be positive", ErrInvalidModel)
	}

	inRange := func(i int) bool { return i >= 0 && i < len(n.Buses) }

	for i, b := range n.Buses {
		if b.Index != i {
			return fmt.Errorf("%w: bus %q has index %d at position %d", ErrInvalidModel, b.Name, b.Index, i)
		}
		if b.VnKV <= 0 {
			return fmt.Errorf("%w: bus %q vn_kv must be positive", ErrInvalidModel, b.Name)
		}
	}

	for _, l := range n.Lines {
		if !inRange(l.FromBus) || !inRange(l.ToBus) {
			return fmt.Errorf("%w: line %q", ErrUnknownBus, l.Name)
		}
		if l.FromBus == l.ToBus {
			return fmt.Errorf("%w: line %q connects bus %d to itself", ErrInvalidModel, l.Name, l.FromBus)
		}
		if from, to := n.Buses[l.FromBus], n.Buses[l.ToBus]; from.VnKV != to.VnKV {
			return fmt.Errorf("%w: line %q joins %q (%g kV) and %q (%g kV); use a transformer",
				ErrInvalidModel, l.Name, from.Name, from.VnKV, to.Name, to.VnKV)
		}
		if l.LengthKm <= 0 {
			return fmt.Errorf("%w: line %q length_km must be positive", ErrInvalidModel, l.Name)
		}
		if l.ROhmPerKm == 0 && l.XOhmPerKm == 0 {
			return fmt.Errorf("%w: line %q has zero impedance", ErrInvalidModel, l.Name)
		}
		if l.Parallel < 1 {
			return fmt.Errorf("%w: line %q parallel must be at least 1", ErrInvalidModel, l.Name)
		}
	}

	for _, t := range n.Transformers {
		if !inRange(t.HVBus) || !inRange(t.LVBus) {
			return fmt.Errorf("%w: transformer %q", ErrUnknownBus, t.Name)
		}
		if t.HVBus == t.LVBus {
			return fmt.Errorf("%w: transformer %q connects bus %d to itself", ErrInvalidModel, t.Name, t.HVBus)
		}
		if t.SnMVA <= 0 || t.VnHVKV <= 0 || t.VnLVKV <= 0 {
			return fmt.Errorf("%w: transformer %q ratings must be positive", ErrInvalidModel, t.Name)
		}
		if t.VkPercent <= 0 || t.VkrPercent < 0 || t.VkrPercent > t.VkPercent {
			return fmt.Errorf("%w: transformer %q needs 0 <= vkr_percent <= vk_percent and vk_percent > 0", ErrInvalidModel, t.Name)
		}
	}

	for _, l := range n.Loads {
		if !inRange(l.Bus) {
			return fmt.Errorf("%w: load %q", ErrUnknownBus, l.Name)
		}
	}

	if !inRange(n.ExtGrid.Bus) {
		return fmt.Errorf("%w: ext_grid", ErrUnknownBus)
	}
	if n.ExtGrid.VmPU <= 0 {
		return fmt.Errorf("%w: ext_grid vm_pu must be positive", ErrInvalidModel)
	}

	if isolated := n.unreachableBuses(); len(isolated) > 0 {
		return fmt.Errorf("%w: %s", ErrIsolatedBus, strings.Join(isolated, ", "))
	}

	return nil
}

// unreachableBuses returns the names of buses with no in-service path to the slack.
func (n *Network) unreachableBuses() []string {
	adj := make([][]int, len(n.Buses))
	for _, l := range n.Lines {
		if l.InService {
			adj[l.FromBus] = append(adj[l.FromBus], l.ToBus)
			adj[l.ToBus] = append(adj[l.ToBus], l.FromBus)
		}
	}
	for _, t := range n.Transformers {
		if t.InService {
			adj[t.HVBus] = append(adj[t.HVBus], t.LVBus)
			adj[t.LVBus] = append(adj[t.LVBus], t.HVBus)
		}
	}

	seen := make([]bool, len(n.Buses))
	queue := []int{n.ExtGrid.Bus}
	seen[n.ExtGrid.Bus] = true
	for len(queue) > 0 {
		b := queue[0]
		queue = queue[1:]
		for _, nb := range adj[b] {
			if !seen[nb] {
				seen[nb] = true
				queue = append(queue, nb)
			}
		}
	}

	var isolated []string
	for i, ok := range seen {
		if !ok {
			isolated = append(isolated, n.Buses[i].Name)
		}
	}
	return isolated
}
