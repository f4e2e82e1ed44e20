package harness

import "github.com/calebmcnary/pharmline/internal/sim"

// TraceEvent is one observable decision of the run, pinned to its tick.
type TraceEvent struct {
	Tick   int    `json:"tick"`
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

// Trace event kinds.
const (
	KindState          = "state"
	KindStep           = "step"
	KindAnomaly        = "anomaly"
	KindWorkOrder      = "workOrder"
	KindPurchaseOrder  = "purchaseOrder"
	KindDrift          = "drift"
	KindRecommendation = "recommendation"
	KindApproval       = "approval"
	KindError          = "error"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall success: every assertion held.
	Pass bool `json:"pass"`

	// Trace contains the run's decisions in tick order. Used for golden
	// comparison.
	Trace []TraceEvent `json:"trace"`

	// Errors contains assertion failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Final is the simulation state after the last tick, the surface the
	// assertions evaluated.
	Final sim.Snapshot `json:"final"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds an assertion failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
