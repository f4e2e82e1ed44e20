package harness

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/calebmcnary/pharmline/internal/approval"
	"github.com/calebmcnary/pharmline/internal/config"
	"github.com/calebmcnary/pharmline/internal/sim"
	"github.com/calebmcnary/pharmline/internal/testutil"
)

// Run executes a scenario against a real simulation and returns the result.
//
// Every run starts from the same fixed wall-clock origin with a sequential ID
// generator, so a scenario's trace depends only on its seed and commands.
//
// Execution flow:
//  1. Compile the plant spec (embedded default when none given)
//  2. Assemble a fresh simulation
//  3. For each tick, enqueue the tick's commands, then advance
//  4. Evaluate assertions against the final snapshot
func Run(scenario *Scenario) (*Result, error) {
	plant := config.DefaultPlant()
	if scenario.Plant != "" {
		var err error
		plant, err = config.LoadPlant(scenario.Plant)
		if err != nil {
			return nil, fmt.Errorf("load plant spec: %w", err)
		}
	}

	simulation, err := sim.New(sim.Config{
		Plant:       plant,
		Seed:        scenario.Seed,
		Start:       testutil.BaseTime,
		TickMinutes: scenario.TickMinutes,
		IDGen:       testutil.NewSequenceIDGenerator("id"),
		Log:         slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	})
	if err != nil {
		return nil, fmt.Errorf("assemble simulation: %w", err)
	}

	byTick := make(map[int][]CommandStep)
	for _, step := range scenario.Commands {
		byTick[step.Tick] = append(byTick[step.Tick], step)
	}

	result := NewResult()
	for tick := 1; tick <= scenario.Ticks; tick++ {
		for _, step := range byTick[tick] {
			simulation.Enqueue(buildCommand(step))
		}
		report := simulation.Tick()
		result.Trace = append(result.Trace, reportEvents(report)...)
	}

	result.Final = simulation.Snapshot()
	for _, msg := range EvaluateAssertions(result.Final, scenario.Assertions) {
		result.AddError(msg)
	}

	return result, nil
}

// buildCommand maps a scenario command step to a simulation command.
func buildCommand(step CommandStep) sim.Command {
	return sim.Command{
		Type:             sim.CommandType(step.Command),
		RecipeID:         step.Recipe,
		Speed:            step.Speed,
		Scenario:         sim.Scenario(step.Scenario),
		RecommendationID: step.Recommendation,
		Credentials: approval.Credentials{
			Username: step.Username,
			Password: step.Password,
		},
	}
}

// reportEvents flattens one tick report into trace events.
func reportEvents(rep sim.TickReport) []TraceEvent {
	var events []TraceEvent
	add := func(kind, detail string) {
		events = append(events, TraceEvent{Tick: rep.Tick, Kind: kind, Detail: detail})
	}

	if rep.Batch.StateChanged {
		add(KindState, fmt.Sprintf("%s -> %s", rep.Batch.From, rep.Batch.To))
	}
	for _, step := range rep.Batch.CompletedSteps {
		add(KindStep, string(step))
	}
	for _, a := range rep.Maint.Anomalies {
		add(KindAnomaly, fmt.Sprintf("[%s] %s", a.Severity, a.Source))
	}
	for _, wo := range rep.Maint.NewWorkOrders {
		add(KindWorkOrder, fmt.Sprintf("%s %s (%s)", wo.ID, wo.Component, wo.Status))
	}
	for _, wo := range rep.Maint.AdvancedOrders {
		add(KindWorkOrder, fmt.Sprintf("%s %s (%s)", wo.ID, wo.Component, wo.Status))
	}
	for _, po := range rep.Maint.NewPurchaseOrders {
		add(KindPurchaseOrder, fmt.Sprintf("%s %dx %s (%s)", po.ID, po.Quantity, po.SpareID, po.Status))
	}
	for _, po := range rep.Maint.AdvancedPurchases {
		add(KindPurchaseOrder, fmt.Sprintf("%s %dx %s (%s)", po.ID, po.Quantity, po.SpareID, po.Status))
	}
	for _, d := range rep.Yield.Detections {
		add(KindDrift, fmt.Sprintf("[%s] %s %s %.1f%%", d.Severity, d.Parameter, d.Direction, d.MagnitudePct))
	}
	for _, r := range rep.Yield.NewRecommendations {
		add(KindRecommendation, fmt.Sprintf("%s %s: %s", r.ID, r.Parameter, r.Adjustment))
	}
	for _, a := range rep.Approvals {
		add(KindApproval, fmt.Sprintf("%s by %s", a.RecommendationID, a.Role))
	}
	if rep.Err != "" {
		add(KindError, rep.Err)
	}

	return events
}
