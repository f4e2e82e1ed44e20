package batch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calebmcnary/pharmline/internal/domain"
	"github.com/calebmcnary/pharmline/internal/testutil"
)

func testRecipe() domain.Recipe {
	return domain.Recipe{
		ID:             "rcp-test",
		Name:           "Test Blend",
		ProductID:      "prod-test",
		TargetQuantity: 100,
	}
}

func startedMachine(t *testing.T) *Machine {
	t.Helper()
	m := NewMachine(testutil.NewSequenceIDGenerator("bat"))
	_, err := m.Start(testRecipe(), "B-001", testutil.BaseTime)
	require.NoError(t, err)
	return m
}

func TestStartBuildsSequence(t *testing.T) {
	m := startedMachine(t)
	b := m.Batch()

	assert.Equal(t, "bat-001", b.ID)
	assert.Equal(t, domain.BatchLoading, b.State)
	require.Len(t, b.Sequence, len(domain.BlendStepOrder))
	for i, name := range domain.BlendStepOrder {
		assert.Equal(t, name, b.Sequence[i].Name)
		assert.Equal(t, domain.StepPending, b.Sequence[i].Status)
		assert.Equal(t, domain.DefaultStepMinutes[name], b.Sequence[i].SetPointMinutes)
	}
}

func TestStartRejectedWhileActive(t *testing.T) {
	m := startedMachine(t)

	_, err := m.Start(testRecipe(), "B-002", testutil.BaseTime)
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeInvalidTransition))
	assert.Equal(t, "B-001", m.Batch().BatchNumber, "rejected start mutates nothing")
}

func TestFirstTickEntersBlending(t *testing.T) {
	m := startedMachine(t)

	res := m.Tick(0.5)

	assert.Equal(t, domain.BatchBlending, m.Batch().State)
	assert.True(t, res.StateChanged)
	assert.Equal(t, domain.BatchLoading, res.From)
	assert.Equal(t, domain.BatchBlending, res.To)

	step := m.Batch().CurrentStep()
	require.NotNil(t, step)
	assert.Equal(t, domain.StepStartDelay, step.Name)
	assert.Equal(t, 0.5, step.ActualMinutes)
}

func TestStepCompletionAdvancesInOrder(t *testing.T) {
	m := startedMachine(t)

	// start-delay is 1 minute; a 1.5 minute tick completes it and carries
	// the overshoot into charging.
	res := m.Tick(1.5)

	assert.Equal(t, []domain.StepName{domain.StepStartDelay}, res.CompletedSteps)
	step := m.Batch().CurrentStep()
	require.NotNil(t, step)
	assert.Equal(t, domain.StepCharging, step.Name)
	assert.Equal(t, 0.5, step.ActualMinutes)
}

func TestExactlyOneStepInProgress(t *testing.T) {
	m := startedMachine(t)

	for i := 0; i < 40; i++ {
		m.Tick(1)

		active := 0
		for _, s := range m.Batch().Sequence {
			if s.Status == domain.StepInProgress {
				active++
			}
		}
		assert.LessOrEqual(t, active, 1, "tick %d", i)
	}
}

func TestDischargeCompletionDrivesComplete(t *testing.T) {
	m := startedMachine(t)

	// Total default sequence is 35 minutes.
	var total TickResult
	for i := 0; i < 34; i++ {
		res := m.Tick(1)
		assert.False(t, res.DischargeCompleted)
		total.CompletedSteps = append(total.CompletedSteps, res.CompletedSteps...)
	}
	assert.Equal(t, domain.BatchDischarge, m.Batch().State)

	res := m.Tick(1)
	assert.True(t, res.DischargeCompleted)
	assert.Equal(t, domain.BatchComplete, m.Batch().State)
	assert.Contains(t, res.CompletedSteps, domain.StepDischarge)

	// Completed batches accrue nothing further.
	after := m.Tick(1)
	assert.Empty(t, after.CompletedSteps)
	assert.False(t, after.StateChanged)
}

func TestLongTickCompletesMultipleSteps(t *testing.T) {
	m := startedMachine(t)

	res := m.Tick(6) // covers start-delay (1), charging (4), 1 min into pre-blend

	assert.Equal(t,
		[]domain.StepName{domain.StepStartDelay, domain.StepCharging},
		res.CompletedSteps)
	step := m.Batch().CurrentStep()
	require.NotNil(t, step)
	assert.Equal(t, domain.StepPreBlend, step.Name)
	assert.Equal(t, 1.0, step.ActualMinutes)
}

func TestSuspendHoldsProgress(t *testing.T) {
	m := startedMachine(t)
	m.Tick(1.5)

	require.NoError(t, m.Suspend())
	assert.True(t, m.Held())

	held := m.Tick(10)
	assert.Empty(t, held.CompletedSteps)
	assert.Equal(t, 0.5, m.Batch().StepByName(domain.StepCharging).ActualMinutes)

	require.NoError(t, m.Resume())
	m.Tick(0.5)
	assert.Equal(t, 1.0, m.Batch().StepByName(domain.StepCharging).ActualMinutes)
}

func TestSuspendResumeInvalidTransitions(t *testing.T) {
	m := NewMachine(testutil.NewSequenceIDGenerator("bat"))

	assert.True(t, domain.IsCode(m.Suspend(), domain.ErrCodeInvalidTransition))
	assert.True(t, domain.IsCode(m.Resume(), domain.ErrCodeInvalidTransition))

	_, err := m.Start(testRecipe(), "B-001", testutil.BaseTime)
	require.NoError(t, err)
	require.NoError(t, m.Suspend())
	assert.True(t, domain.IsCode(m.Suspend(), domain.ErrCodeInvalidTransition),
		"double suspend rejected")
}

func TestEmergencyStopMidMainBlend(t *testing.T) {
	m := startedMachine(t)
	m.Tick(12) // inside main-blend (starts at minute 10)

	step := m.Batch().CurrentStep()
	require.NotNil(t, step)
	require.Equal(t, domain.StepMainBlend, step.Name)

	require.NoError(t, m.EmergencyStop())
	assert.Equal(t, domain.BatchEmergencyStop, m.Batch().State)

	frozen := m.Tick(5)
	assert.Empty(t, frozen.CompletedSteps)
	assert.Equal(t, 2.0, m.Batch().StepByName(domain.StepMainBlend).ActualMinutes)
}

func TestEmergencyResetClearsSequence(t *testing.T) {
	m := startedMachine(t)
	m.Tick(12)
	require.NoError(t, m.EmergencyStop())

	require.NoError(t, m.EmergencyReset())

	assert.Equal(t, domain.BatchIdle, m.Batch().State)
	for _, s := range m.Batch().Sequence {
		assert.Equal(t, domain.StepPending, s.Status)
		assert.Equal(t, 0.0, s.ActualMinutes)
	}

	// Idle after reset means a new run may start.
	_, err := m.Start(testRecipe(), "B-002", testutil.BaseTime)
	assert.NoError(t, err)
}

func TestEmergencyResetRequiresStop(t *testing.T) {
	m := startedMachine(t)
	assert.True(t, domain.IsCode(m.EmergencyReset(), domain.ErrCodeInvalidTransition))
}

func TestRecipeStepOverride(t *testing.T) {
	m := NewMachine(testutil.NewSequenceIDGenerator("bat"))
	r := testRecipe()
	r.StepMinutes = map[domain.StepName]float64{domain.StepMainBlend: 2}
	_, err := m.Start(r, "B-010", testutil.BaseTime)
	require.NoError(t, err)

	assert.Equal(t, 2.0, m.Batch().StepByName(domain.StepMainBlend).SetPointMinutes)
}
