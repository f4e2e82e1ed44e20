package harness

import (
	"fmt"
	"strings"

	"github.com/calebmcnary/pharmline/internal/domain"
	"github.com/calebmcnary/pharmline/internal/sim"
)

// EvaluateAssertions checks every assertion against the final snapshot and
// returns failure messages. An empty slice means all assertions held.
func EvaluateAssertions(snap sim.Snapshot, assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		if msg := evaluateAssertion(snap, a); msg != "" {
			failures = append(failures, fmt.Sprintf("assertion %d (%s): %s", i, a.Type, msg))
		}
	}
	return failures
}

func evaluateAssertion(snap sim.Snapshot, a Assertion) string {
	switch a.Type {
	case AssertBatchState:
		return assertBatchState(snap, a)
	case AssertStepStatus:
		return assertStepStatus(snap, a)
	case AssertWorkOrderCount:
		return assertWorkOrderCount(snap, a)
	case AssertRecommendationBounds:
		return assertRecommendationBounds(snap)
	case AssertScheduleNoOverlap:
		return assertScheduleNoOverlap(snap)
	case AssertFinalError:
		return assertFinalError(snap, a)
	}
	return fmt.Sprintf("unknown assertion type %q", a.Type)
}

func assertBatchState(snap sim.Snapshot, a Assertion) string {
	state := domain.BatchIdle
	if snap.Batch != nil {
		state = snap.Batch.State
	}
	if string(state) != a.State {
		return fmt.Sprintf("batch state %q, expected %q", state, a.State)
	}
	return ""
}

func assertStepStatus(snap sim.Snapshot, a Assertion) string {
	if snap.Batch == nil {
		return fmt.Sprintf("no batch in process, expected step %q to be %q", a.Step, a.Status)
	}
	step := snap.Batch.StepByName(domain.StepName(a.Step))
	if step == nil {
		return fmt.Sprintf("batch has no step %q", a.Step)
	}
	if string(step.Status) != a.Status {
		return fmt.Sprintf("step %q is %q, expected %q", a.Step, step.Status, a.Status)
	}
	return ""
}

func assertWorkOrderCount(snap sim.Snapshot, a Assertion) string {
	if len(snap.WorkOrders) != a.Count {
		return fmt.Sprintf("%d work orders, expected %d", len(snap.WorkOrders), a.Count)
	}
	return ""
}

func assertRecommendationBounds(snap sim.Snapshot) string {
	for _, r := range snap.Recommendations {
		if r.RecommendedValue < r.SOPMin || r.RecommendedValue > r.SOPMax {
			return fmt.Sprintf("recommendation %s: value %.2f outside SOP band [%.2f, %.2f]",
				r.ID, r.RecommendedValue, r.SOPMin, r.SOPMax)
		}
	}
	return ""
}

// assertScheduleNoOverlap checks that no two schedule entries still on the
// timeline share a resource over overlapping intervals. Delayed entries are
// off the timeline and exempt.
func assertScheduleNoOverlap(snap sim.Snapshot) string {
	entries := snap.Schedule
	for i := 0; i < len(entries); i++ {
		if entries[i].Status == domain.ScheduleDelayed {
			continue
		}
		for j := i + 1; j < len(entries); j++ {
			if entries[j].Status == domain.ScheduleDelayed {
				continue
			}
			if !sharesResource(entries[i], entries[j]) {
				continue
			}
			if entries[i].Start.Before(entries[j].End) && entries[j].Start.Before(entries[i].End) {
				return fmt.Sprintf("batches %s and %s overlap on a shared resource",
					entries[i].BatchNumber, entries[j].BatchNumber)
			}
		}
	}
	return ""
}

func sharesResource(a, b domain.ScheduledBatch) bool {
	for _, ra := range a.ResourceIDs {
		for _, rb := range b.ResourceIDs {
			if ra == rb {
				return true
			}
		}
	}
	return false
}

func assertFinalError(snap sim.Snapshot, a Assertion) string {
	if a.Error == "" {
		if snap.Error != "" {
			return fmt.Sprintf("unexpected error %q", snap.Error)
		}
		return ""
	}
	if !strings.Contains(snap.Error, a.Error) {
		return fmt.Sprintf("error %q does not contain %q", snap.Error, a.Error)
	}
	return ""
}
