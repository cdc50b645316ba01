// gridsim - CIGRE MV grid simulator
//
// gridsim loads the CIGRE medium-voltage benchmark network, solves its
// power flow under randomly scaled load, and publishes per-bus voltage
// magnitudes to an MQTT broker every few seconds.
//
// Commands:
//
//	gridsim [run]            run the simulation (default)
//	gridsim solve            solve once and print the payload
//	gridsim network          print the bus table
//	gridsim watch            print voltage snapshots received from the broker
//	gridsim version          print build information
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// configEnvVar names the config file when --config is not given.
const configEnvVar = "GRIDSIM_CONFIG"

func main() {
	// Cancel on Ctrl+C and SIGTERM so sleeps and publish waits unwind.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
