// Package domain defines the shared types for the pharmline decision engine:
// batches and their blending sequences, the production schedule, component
// health and maintenance records, tablet-press telemetry, and yield
// recommendations.
//
// Types here are plain data. Behavior lives in the subsystem packages
// (internal/batch, internal/sched, internal/maint, internal/yield); consumers
// of the engine receive copies of these structs as snapshots.
package domain
