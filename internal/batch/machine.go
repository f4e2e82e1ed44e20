// Package batch implements the blending batch state machine.
//
// A Machine owns at most one batch at a time and is driven by the simulation
// loop: control commands arrive between ticks, Tick advances the in-progress
// step by elapsed simulated minutes. Rejected commands mutate nothing and
// return an INVALID_TRANSITION error.
package batch

import (
	"time"

	"github.com/calebmcnary/pharmline/internal/domain"
)

// TickResult reports what a single tick changed.
type TickResult struct {
	// CompletedSteps lists steps that finished this tick, in order.
	CompletedSteps []domain.StepName
	// StateChanged is set when the batch state moved, with From/To filled.
	StateChanged bool
	From         domain.BatchState
	To           domain.BatchState
	// DischargeCompleted is the yield-engine unlock signal: set on the tick
	// the discharge step finishes and the batch reaches complete.
	DischargeCompleted bool
}

// Machine is the batch process state machine.
//
// Thread-safety: none. The simulation loop is the single writer.
type Machine struct {
	batch *domain.Batch
	held  bool
	idGen domain.IDGenerator
}

// NewMachine returns an idle machine.
func NewMachine(idGen domain.IDGenerator) *Machine {
	return &Machine{idGen: idGen}
}

// Batch returns the current batch, or nil when the line is empty.
func (m *Machine) Batch() *domain.Batch {
	return m.batch
}

// Held reports whether the batch is suspended.
func (m *Machine) Held() bool {
	return m.held
}

// Start loads a new batch for the recipe. Allowed only when no batch is
// active: a prior batch must be complete, reset, or never started.
func (m *Machine) Start(recipe domain.Recipe, batchNumber string, now time.Time) (*domain.Batch, error) {
	if m.batch != nil && m.batch.State != domain.BatchIdle && m.batch.State != domain.BatchComplete {
		return nil, domain.NewInvalidTransition("start", m.batch.State)
	}

	seq := make([]domain.BlendStep, 0, len(domain.BlendStepOrder))
	for _, name := range domain.BlendStepOrder {
		seq = append(seq, domain.BlendStep{
			Name:            name,
			SetPointMinutes: recipe.StepSetPoint(name),
			Status:          domain.StepPending,
		})
	}

	m.batch = &domain.Batch{
		ID:             m.idGen.NewID(),
		BatchNumber:    batchNumber,
		ProductID:      recipe.ProductID,
		TargetQuantity: recipe.TargetQuantity,
		Recipe:         recipe,
		State:          domain.BatchLoading,
		Sequence:       seq,
		StartedAt:      now,
	}
	m.held = false
	return m.batch, nil
}

// Suspend holds the batch without resetting step progress.
func (m *Machine) Suspend() error {
	if m.batch == nil || !m.batch.Active() {
		return domain.NewInvalidTransition("suspend", m.state())
	}
	if m.held {
		return domain.NewInvalidTransition("suspend", m.batch.State)
	}
	m.held = true
	return nil
}

// Resume releases a held batch.
func (m *Machine) Resume() error {
	if !m.held {
		return domain.NewInvalidTransition("resume", m.state())
	}
	m.held = false
	return nil
}

// EmergencyStop force-transitions to emergency-stop from any state and
// freezes step progress. Idempotent once stopped.
func (m *Machine) EmergencyStop() error {
	if m.batch == nil {
		return domain.NewInvalidTransition("emergency_stop", domain.BatchIdle)
	}
	m.batch.State = domain.BatchEmergencyStop
	m.held = false
	return nil
}

// EmergencyReset returns a stopped line to idle and clears the sequence:
// every step back to pending with zero accrued minutes.
func (m *Machine) EmergencyReset() error {
	if m.batch == nil || m.batch.State != domain.BatchEmergencyStop {
		return domain.NewInvalidTransition("emergency_reset", m.state())
	}
	for i := range m.batch.Sequence {
		m.batch.Sequence[i].Status = domain.StepPending
		m.batch.Sequence[i].ActualMinutes = 0
	}
	m.batch.State = domain.BatchIdle
	return nil
}

// Reset drops the batch entirely. Used by simulation reset, not a line
// control command.
func (m *Machine) Reset() {
	m.batch = nil
	m.held = false
}

// Tick advances the batch by elapsed simulated minutes.
//
// Loading flips to blending with the first step activated. While blending,
// the in-progress step accrues minutes; overshoot past a set point carries
// into the next step so long ticks never lose time. The discharge step
// drives the state to discharge while running, and to complete when done.
func (m *Machine) Tick(elapsedMinutes float64) TickResult {
	var res TickResult
	if m.batch == nil || m.held || !m.batch.Active() {
		return res
	}

	from := m.batch.State

	if m.batch.State == domain.BatchLoading {
		m.batch.State = domain.BatchBlending
		m.batch.Sequence[0].Status = domain.StepInProgress
	}

	remaining := elapsedMinutes
	for remaining > 0 {
		step := m.batch.CurrentStep()
		if step == nil {
			break
		}

		need := step.SetPointMinutes - step.ActualMinutes
		if remaining < need {
			step.ActualMinutes += remaining
			remaining = 0
			break
		}

		step.ActualMinutes = step.SetPointMinutes
		step.Status = domain.StepCompleted
		remaining -= need
		res.CompletedSteps = append(res.CompletedSteps, step.Name)

		if step.Name == domain.StepDischarge {
			m.batch.State = domain.BatchComplete
			res.DischargeCompleted = true
			break
		}
		m.advance(step.Name)
	}

	if step := m.batch.CurrentStep(); step != nil && step.Name == domain.StepDischarge &&
		m.batch.State == domain.BatchBlending {
		m.batch.State = domain.BatchDischarge
	}

	if m.batch.State != from {
		res.StateChanged = true
		res.From = from
		res.To = m.batch.State
	}
	return res
}

// advance marks the step after name in-progress.
func (m *Machine) advance(name domain.StepName) {
	for i := range m.batch.Sequence {
		if m.batch.Sequence[i].Name == name && i+1 < len(m.batch.Sequence) {
			m.batch.Sequence[i+1].Status = domain.StepInProgress
			return
		}
	}
}

func (m *Machine) state() domain.BatchState {
	if m.batch == nil {
		return domain.BatchIdle
	}
	return m.batch.State
}
