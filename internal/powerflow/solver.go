package powerflow

import (
	"context"
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"

	"github.com/nerrad567/gray-logic-gridsim/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-gridsim/internal/network"
)

// Default convergence settings.
const (
	DefaultToleranceMVA  = 1e-8
	DefaultMaxIterations = 10
)

// Result holds a converged load-flow solution. Slices are indexed like
// the network's buses.
type Result struct {
	VmPU       []float64
	VaDegree   []float64
	Iterations int

	// Power drawn from the external grid. Positive means import.
	SlackPMW   float64
	SlackQMVAr float64

	// LossesMW is the active power consumed by branches.
	LossesMW float64
}

// Solver runs Newton-Raphson load flows.
//
// Thread Safety:
//   - Solve holds no state between calls and is safe for concurrent use.
type Solver struct {
	toleranceMVA  float64
	maxIterations int
}

// NewSolver creates a Solver from configuration. Non-positive settings
// fall back to the defaults.
func NewSolver(cfg config.SolverConfig) *Solver {
	s := &Solver{
		toleranceMVA:  cfg.ToleranceMVA,
		maxIterations: cfg.MaxIterations,
	}
	if s.toleranceMVA <= 0 {
		s.toleranceMVA = DefaultToleranceMVA
	}
	if s.maxIterations < 1 {
		s.maxIterations = DefaultMaxIterations
	}
	return s
}

// Solve computes bus voltages for the network's current load scaling.
//
// Parameters:
//   - ctx: Checked between iterations
//   - net: Validated network; not modified
//
// Returns:
//   - *Result: Voltage magnitudes and angles for every bus
//   - error: ErrNotConverged, ErrSingularJacobian, ErrDiverged, or the context error
func (s *Solver) Solve(ctx context.Context, net *network.Network) (*Result, error) {
	n := len(net.Buses)
	if n == 0 {
		return nil, fmt.Errorf("%w: empty network", ErrNotConverged)
	}

	ybus := buildYbus(net)
	sbus := injections(net)
	slack := net.ExtGrid.Bus

	// Every non-slack bus is PQ.
	pq := make([]int, 0, n-1)
	for i := range n {
		if i != slack {
			pq = append(pq, i)
		}
	}
	npq := len(pq)

	va := initialAngles(net)
	vm := make([]float64, n)
	for i := range vm {
		vm[i] = 1
	}
	vm[slack] = net.ExtGrid.VmPU

	v := make([]complex128, n)
	for i := range v {
		v[i] = cmplx.Rect(vm[i], va[i])
	}

	tol := s.toleranceMVA / net.SnMVA
	dim := 2 * npq

	f := mismatch(ybus, v, sbus, pq)
	converged := infNorm(f) < tol
	iter := 0

	if npq > 0 {
		jac := mat.NewDense(dim, dim, nil)
		var lu mat.LU
		var dx mat.VecDense

		for !converged && iter < s.maxIterations {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			iter++

			fillJacobian(jac, ybus, v, pq)
			lu.Factorize(jac)
			if err := lu.SolveVecTo(&dx, false, mat.NewVecDense(dim, f)); err != nil {
				return nil, fmt.Errorf("%w: iteration %d: %v", ErrSingularJacobian, iter, err)
			}

			for k, bus := range pq {
				va[bus] -= dx.AtVec(k)
				vm[bus] -= dx.AtVec(npq + k)
			}
			for i := range v {
				v[i] = cmplx.Rect(vm[i], va[i])
				if cmplx.IsNaN(v[i]) || cmplx.IsInf(v[i]) {
					return nil, fmt.Errorf("%w: iteration %d", ErrDiverged, iter)
				}
			}

			f = mismatch(ybus, v, sbus, pq)
			converged = infNorm(f) < tol
		}
	}

	if !converged {
		return nil, fmt.Errorf("%w: mismatch %.3g MVA after %d iterations",
			ErrNotConverged, infNorm(f)*net.SnMVA, iter)
	}

	return s.result(net, ybus, v, iter), nil
}

// result converts the converged voltage vector into engineering units.
func (s *Solver) result(net *network.Network, ybus admittance, v []complex128, iter int) *Result {
	n := len(v)
	res := &Result{
		VmPU:       make([]float64, n),
		VaDegree:   make([]float64, n),
		Iterations: iter,
	}
	for i, vi := range v {
		res.VmPU[i] = cmplx.Abs(vi)
		res.VaDegree[i] = cmplx.Phase(vi) * 180 / math.Pi
	}

	slack := net.ExtGrid.Bus
	sSlack := v[slack] * cmplx.Conj(current(ybus, v, slack)) * complex(net.SnMVA, 0)
	res.SlackPMW = real(sSlack)
	res.SlackQMVAr = imag(sSlack)

	loadP, _ := net.TotalLoad()
	res.LossesMW = res.SlackPMW - loadP

	return res
}

// current returns the injected current at bus i.
func current(ybus admittance, v []complex128, i int) complex128 {
	var sum complex128
	for k, yik := range ybus[i] {
		if yik != 0 {
			sum += yik * v[k]
		}
	}
	return sum
}

// mismatch returns [ΔP(pq); ΔQ(pq)] for the current voltage estimate.
func mismatch(ybus admittance, v, sbus []complex128, pq []int) []float64 {
	npq := len(pq)
	f := make([]float64, 2*npq)
	for k, i := range pq {
		d := v[i]*cmplx.Conj(current(ybus, v, i)) - sbus[i]
		f[k] = real(d)
		f[npq+k] = imag(d)
	}
	return f
}

// fillJacobian writes the polar Newton-Raphson Jacobian
//
//	[ dP/dVa  dP/dVm ]
//	[ dQ/dVa  dQ/dVm ]
//
// restricted to PQ rows and columns.
func fillJacobian(jac *mat.Dense, ybus admittance, v []complex128, pq []int) {
	npq := len(pq)
	ibus := make([]complex128, len(v))
	for i := range v {
		ibus[i] = current(ybus, v, i)
	}

	for r, i := range pq {
		for c, k := range pq {
			yik := ybus[i][k]
			vnk := v[k] / complex(cmplx.Abs(v[k]), 0)

			// dS_i/dVa_k = j V_i conj(δik I_i - Y_ik V_k)
			// dS_i/dVm_k = V_i conj(Y_ik Vn_k) + δik conj(I_i) Vn_i
			dVa := -yik * v[k]
			dVm := v[i] * cmplx.Conj(yik*vnk)
			if i == k {
				dVa += ibus[i]
				dVm += cmplx.Conj(ibus[i]) * vnk
			}
			dVa = complex(0, 1) * v[i] * cmplx.Conj(dVa)

			jac.Set(r, c, real(dVa))
			jac.Set(r, npq+c, real(dVm))
			jac.Set(npq+r, c, imag(dVa))
			jac.Set(npq+r, npq+c, imag(dVm))
		}
	}
}

func infNorm(f []float64) float64 {
	var m float64
	for _, x := range f {
		if a := math.Abs(x); a > m || math.IsNaN(a) {
			m = a
		}
	}
	return m
}
