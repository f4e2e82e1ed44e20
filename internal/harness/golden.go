package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/calebmcnary/pharmline/internal/domain"
)

// TraceSnapshot captures the trace of a scenario execution for golden file
// comparison. Serialized through canonical JSON so the bytes are stable
// across runs and platforms.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Seed         int64        `json:"seed"`
	Ticks        int          `json:"ticks"`
	Trace        []TraceEvent `json:"trace"`
}

// toCanonicalMap converts the snapshot to the generic shape canonical JSON
// marshaling accepts.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		traceList[i] = map[string]any{
			"tick":   event.Tick,
			"kind":   event.Kind,
			"detail": event.Detail,
		}
	}
	return map[string]any{
		"scenario_name": s.ScenarioName,
		"seed":          s.Seed,
		"ticks":         s.Ticks,
		"trace":         traceList,
	}
}

// RunWithGolden executes a scenario and compares its trace against the golden
// file testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns an error if scenario execution fails; trace mismatches fail the
// test through goldie.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	snapshot := TraceSnapshot{
		ScenarioName: scenario.Name,
		Seed:         scenario.Seed,
		Ticks:        scenario.Ticks,
		Trace:        result.Trace,
	}

	traceJSON, err := domain.MarshalCanonical(snapshot.toCanonicalMap())
	if err != nil {
		return nil, err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, traceJSON)

	return result, nil
}
