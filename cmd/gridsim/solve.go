package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/nerrad567/gray-logic-gridsim/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-gridsim/internal/powerflow"
	"github.com/nerrad567/gray-logic-gridsim/internal/simulation"
)

// solveOnce solves the configured network at a fixed scaling and writes
// the payload the simulator would publish, followed by a newline.
func solveOnce(ctx context.Context, configPath string, scaling float64, w io.Writer) error {
	if scaling <= 0 {
		return fmt.Errorf("scaling must be positive, got %v", scaling)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	net, err := loadNetwork(cfg.Network)
	if err != nil {
		return fmt.Errorf("loading network: %w", err)
	}

	net.SetLoadScaling(scaling)
	result, err := powerflow.NewSolver(cfg.Network.Solver).Solve(ctx, net)
	if err != nil {
		return fmt.Errorf("%w: %w", simulation.ErrSolveFailed, err)
	}

	readings, err := simulation.JoinReadings(net.BusNames(), result.VmPU)
	if err != nil {
		return err
	}
	payload, err := simulation.EncodePayload(readings)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "%s\n", payload)
	return err
}

// printNetwork writes the bus table of the configured network.
func printNetwork(configPath string, w io.Writer) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	net, err := loadNetwork(cfg.Network)
	if err != nil {
		return fmt.Errorf("loading network: %w", err)
	}

	loadsPerBus := make(map[int]int)
	for _, l := range net.Loads {
		loadsPerBus[l.Bus]++
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "INDEX\tNAME\tVN_KV\tLOADS\n")
	for _, b := range net.Buses {
		marker := ""
		if b.Index == net.ExtGrid.Bus {
			marker = " (slack)"
		}
		fmt.Fprintf(tw, "%d\t%s%s\t%g\t%d\n", b.Index, b.Name, marker, b.VnKV, loadsPerBus[b.Index])
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	pMW, qMVAr := net.TotalLoad()
	_, err = fmt.Fprintf(w, "\n%s: %d buses, %d lines, %d transformers, %d loads (%.3f MW, %.3f MVAr)\n",
		net.Name, net.BusCount(), len(net.Lines), len(net.Transformers), len(net.Loads), pMW, qMVAr)
	return err
}
