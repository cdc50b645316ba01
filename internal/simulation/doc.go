// Package simulation drives the publish loop.
//
// Every cycle the Simulator:
//  1. draws a load-scaling factor and applies it to every load
//  2. solves the load flow
//  3. joins bus names with voltage magnitudes in bus order
//  4. encodes the readings as a JSON array
//  5. publishes the payload (QoS 1, not retained)
//  6. hands the snapshot to best-effort recorders
//
// then sleeps for a randomised interval before the next cycle.
//
// Any failure in solve or publish ends the loop with a *CycleError naming
// the stage and cycle. There is no retry. Recorder failures are logged and
// ignored.
//
// The Simulator owns the network: nothing else may mutate it while Run is
// active. The most recent snapshot is available through Latest for
// concurrent readers such as the status API.
package simulation
