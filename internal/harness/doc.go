// Package harness runs conformance scenarios against a real simulation.
//
// A scenario is a YAML file: a plant spec, a seed, a tick count, control
// commands pinned to ticks, and assertions over the final state. The harness
// drives an actual sim.Simulation with a deterministic clock and sequential
// IDs, so the same scenario produces a byte-identical trace every run.
//
// Traces serialize through canonical JSON and compare against golden files
// under testdata/golden via goldie. To regenerate golden files, run:
//
//	go test ./internal/harness -update
package harness
