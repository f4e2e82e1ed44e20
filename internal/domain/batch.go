package domain

import "time"

// BatchState is the top-level state of a batch in process.
type BatchState string

const (
	BatchIdle          BatchState = "idle"
	BatchLoading       BatchState = "loading"
	BatchBlending      BatchState = "blending"
	BatchSampling      BatchState = "sampling"
	BatchDischarge     BatchState = "discharge"
	BatchCleaning      BatchState = "cleaning"
	BatchComplete      BatchState = "complete"
	BatchEmergencyStop BatchState = "emergency-stop"
)

// StepStatus tracks progress of a single blending step.
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepInProgress StepStatus = "in-progress"
	StepCompleted  StepStatus = "completed"
)

// StepName identifies a blending sequence step. Steps complete strictly in
// the order listed by BlendStepOrder.
type StepName string

const (
	StepStartDelay StepName = "start-delay"
	StepCharging   StepName = "charging"
	StepPreBlend   StepName = "pre-blend"
	StepMainBlend  StepName = "main-blend"
	StepLubePause  StepName = "lube-pause"
	StepLubeBlend  StepName = "lube-blend"
	StepDischarge  StepName = "discharge"
)

// BlendStepOrder is the canonical step sequence for a blending batch.
var BlendStepOrder = []StepName{
	StepStartDelay,
	StepCharging,
	StepPreBlend,
	StepMainBlend,
	StepLubePause,
	StepLubeBlend,
	StepDischarge,
}

// BlendStep is one step of a batch's blending sequence. ActualMinutes
// accumulates simulated time while the step is in progress and is monotonic
// until the step completes.
type BlendStep struct {
	Name            StepName   `json:"name"`
	SetPointMinutes float64    `json:"setPointMinutes"`
	ActualMinutes   float64    `json:"actualMinutes"`
	Status          StepStatus `json:"status"`
}

// RecipeItem is a single ingredient line of a recipe. Added is flipped by the
// operator as material is charged.
type RecipeItem struct {
	Ingredient string  `json:"ingredient"`
	Quantity   float64 `json:"quantity"`
	Unit       string  `json:"unit"`
	Added      bool    `json:"added"`
}

// Recipe describes a product run: ingredients plus per-step set-point
// durations in minutes. Steps not listed fall back to DefaultStepMinutes.
type Recipe struct {
	ID             string              `json:"id"`
	Name           string              `json:"name"`
	ProductID      string              `json:"productId"`
	TargetQuantity float64             `json:"targetQuantity"`
	Unit           string              `json:"unit"`
	Items          []RecipeItem        `json:"items"`
	StepMinutes    map[StepName]float64 `json:"stepMinutes,omitempty"`
}

// DefaultStepMinutes are the set-point durations used when a recipe does not
// override a step.
var DefaultStepMinutes = map[StepName]float64{
	StepStartDelay: 1,
	StepCharging:   4,
	StepPreBlend:   5,
	StepMainBlend:  15,
	StepLubePause:  2,
	StepLubeBlend:  3,
	StepDischarge:  5,
}

// StepSetPoint returns the set-point duration for a step, falling back to
// DefaultStepMinutes.
func (r Recipe) StepSetPoint(name StepName) float64 {
	if r.StepMinutes != nil {
		if m, ok := r.StepMinutes[name]; ok {
			return m
		}
	}
	return DefaultStepMinutes[name]
}

// Batch is one production batch moving through the blending line.
//
// Invariant: at most one step of Sequence is in-progress, and steps complete
// strictly in BlendStepOrder. The discharge step completing drives State to
// BatchComplete and unlocks the yield engine.
type Batch struct {
	ID             string      `json:"id"`
	BatchNumber    string      `json:"batchNumber"`
	ProductID      string      `json:"productId"`
	TargetQuantity float64     `json:"targetQuantity"`
	Recipe         Recipe      `json:"recipe"`
	State          BatchState  `json:"state"`
	Sequence       []BlendStep `json:"sequence"`
	StartedAt      time.Time   `json:"startedAt"`
}

// CurrentStep returns the in-progress step, or nil when no step is active.
func (b *Batch) CurrentStep() *BlendStep {
	for i := range b.Sequence {
		if b.Sequence[i].Status == StepInProgress {
			return &b.Sequence[i]
		}
	}
	return nil
}

// StepByName returns the named step, or nil if the sequence does not contain it.
func (b *Batch) StepByName(name StepName) *BlendStep {
	for i := range b.Sequence {
		if b.Sequence[i].Name == name {
			return &b.Sequence[i]
		}
	}
	return nil
}

// Active reports whether the batch is in a state that accrues process time
// and equipment wear.
func (b *Batch) Active() bool {
	switch b.State {
	case BatchLoading, BatchBlending, BatchSampling, BatchDischarge, BatchCleaning:
		return true
	}
	return false
}
