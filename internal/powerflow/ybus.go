package powerflow

import (
	"math"
	"math/cmplx"

	"github.com/nerrad567/gray-logic-gridsim/internal/network"
)

// admittance is the dense bus admittance matrix in per unit.
// The CIGRE-sized networks this simulator targets have tens of buses,
// so a dense layout keeps the Jacobian assembly simple.
type admittance [][]complex128

// buildYbus assembles the per-unit bus admittance matrix on the network
// power base (SnMVA).
func buildYbus(net *network.Network) admittance {
	n := len(net.Buses)
	y := make(admittance, n)
	for i := range y {
		y[i] = make([]complex128, n)
	}

	omega := 2 * math.Pi * net.FHz

	for _, l := range net.Lines {
		if !l.InService {
			continue
		}
		zBase := net.Buses[l.FromBus].VnKV * net.Buses[l.FromBus].VnKV / net.SnMVA
		par := float64(l.Parallel)

		zSeries := complex(l.ROhmPerKm*l.LengthKm/par, l.XOhmPerKm*l.LengthKm/par) / complex(zBase, 0)
		ys := 1 / zSeries
		// Total shunt susceptance, split equally between both ends.
		b := omega * l.CNFPerKm * 1e-9 * l.LengthKm * par * zBase
		yc := complex(0, b/2)

		stamp(y, l.FromBus, l.ToBus, ys+yc, -ys, -ys, ys+yc)
	}

	for _, t := range net.Transformers {
		if !t.InService {
			continue
		}
		ys := transformerSeriesAdmittance(net, t)
		tap := transformerTap(net, t)
		tau2 := real(tap)*real(tap) + imag(tap)*imag(tap)

		stamp(y, t.HVBus, t.LVBus,
			ys/complex(tau2, 0),
			-ys/cmplx.Conj(tap),
			-ys/tap,
			ys,
		)
	}

	return y
}

// stamp adds a two-port branch to the admittance matrix.
func stamp(y admittance, f, t int, yff, yft, ytf, ytt complex128) {
	y[f][f] += yff
	y[f][t] += yft
	y[t][f] += ytf
	y[t][t] += ytt
}

// transformerSeriesAdmittance converts the short-circuit voltage to a
// series admittance on the network power base.
func transformerSeriesAdmittance(net *network.Network, t network.Transformer) complex128 {
	// Rating voltages that differ from bus voltages rescale the impedance
	// to the LV bus voltage base.
	vnLVBus := net.Buses[t.LVBus].VnKV
	ratio := (t.VnLVKV / vnLVBus) * (t.VnLVKV / vnLVBus)

	z := t.VkPercent / 100 * net.SnMVA / t.SnMVA * ratio
	r := t.VkrPercent / 100 * net.SnMVA / t.SnMVA * ratio
	x := math.Sqrt(z*z - r*r)

	return 1 / complex(r, x)
}

// transformerTap returns the complex off-nominal turns ratio. The phase
// shift moves the LV angle by -ShiftDegree relative to the HV side.
func transformerTap(net *network.Network, t network.Transformer) complex128 {
	nominal := (t.VnHVKV / net.Buses[t.HVBus].VnKV) / (t.VnLVKV / net.Buses[t.LVBus].VnKV)
	step := 1 + float64(t.TapPos-t.TapNeutral)*t.TapStepPercent/100
	return cmplx.Rect(nominal*step, t.ShiftDegree*math.Pi/180)
}

// injections returns the per-unit specified complex power at each bus.
func injections(net *network.Network) []complex128 {
	s := make([]complex128, len(net.Buses))
	for _, l := range net.Loads {
		if !l.InService {
			continue
		}
		s[l.Bus] -= complex(l.PMW*l.Scaling, l.QMVAr*l.Scaling) / complex(net.SnMVA, 0)
	}
	return s
}

// initialAngles spreads transformer phase shifts from the slack outwards
// so the first iteration starts close to the final angles.
func initialAngles(net *network.Network) []float64 {
	type edge struct {
		to    int
		shift float64
	}
	adj := make([][]edge, len(net.Buses))
	for _, l := range net.Lines {
		if l.InService {
			adj[l.FromBus] = append(adj[l.FromBus], edge{l.ToBus, 0})
			adj[l.ToBus] = append(adj[l.ToBus], edge{l.FromBus, 0})
		}
	}
	for _, t := range net.Transformers {
		if t.InService {
			rad := t.ShiftDegree * math.Pi / 180
			adj[t.HVBus] = append(adj[t.HVBus], edge{t.LVBus, -rad})
			adj[t.LVBus] = append(adj[t.LVBus], edge{t.HVBus, rad})
		}
	}

	va := make([]float64, len(net.Buses))
	seen := make([]bool, len(net.Buses))
	slack := net.ExtGrid.Bus
	va[slack] = net.ExtGrid.VaDegree * math.Pi / 180
	seen[slack] = true
	queue := []int{slack}
	for len(queue) > 0 {
		b := queue[0]
		queue = queue[1:]
		for _, e := range adj[b] {
			if !seen[e.to] {
				seen[e.to] = true
				va[e.to] = va[b] + e.shift
				queue = append(queue, e.to)
			}
		}
	}
	return va
}
