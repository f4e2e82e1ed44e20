package maint

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calebmcnary/pharmline/internal/domain"
	"github.com/calebmcnary/pharmline/internal/testutil"
)

// fixedWindow always offers a window at a fixed start.
type fixedWindow struct {
	start time.Time
}

func (f fixedWindow) FindIdleWindow(now time.Time, schedule []domain.ScheduledBatch, durationHours float64) *domain.Window {
	return &domain.Window{Start: f.start, End: f.start.Add(time.Duration(durationHours * float64(time.Hour)))}
}

func TestAnalyzeComponentHealthy(t *testing.T) {
	d := AnalyzeComponent(testutil.BaseTime, domain.ComponentHealth{
		Name:               "Vacuum Pump",
		Health:             92,
		RULHours:           900,
		Trend:              domain.TrendStable,
		FailureProbability: 0.1,
	}, nil, nil, nil)

	assert.False(t, d.RequiresMaintenance)
	assert.Equal(t, domain.WorkPriorityLow, d.Priority)
	assert.Contains(t, d.Reasoning, "No maintenance required")
	assert.Empty(t, d.Type)
}

func TestAnalyzeComponentWornMotorWithLowSpare(t *testing.T) {
	// Worked example: health 55, declining, failure probability 0.4, spare
	// stock 2 below minimum 5 → spare replacement.
	spare := &domain.SparePart{ID: "sp-motor-belt", Quantity: 2, MinStock: 5}
	d := AnalyzeComponent(testutil.BaseTime, domain.ComponentHealth{
		Name:               "V-Blender Motor",
		Health:             55,
		Trend:              domain.TrendDeclining,
		FailureProbability: 0.4,
	}, spare, nil, fixedWindow{start: testutil.BaseTime.Add(2 * time.Hour)})

	assert.True(t, d.RequiresMaintenance)
	assert.Equal(t, domain.MaintenanceSpareReplacement, d.Type)
	assert.Equal(t, domain.WorkPriorityHigh, d.Priority)
	assert.Equal(t, float64(SpareReplacementHours), d.EstimatedHours)
	require.NotNil(t, d.SuggestedTime)
	assert.Equal(t, testutil.BaseTime.Add(2*time.Hour), *d.SuggestedTime)
	require.NotNil(t, d.IdleWindow)
	assert.Equal(t, 4*time.Hour, d.IdleWindow.Duration())
}

func TestAnalyzeComponentGeneralMaintenance(t *testing.T) {
	// Failure probability alone triggers the decision; spare stock is fine
	// so general maintenance suffices.
	spare := &domain.SparePart{ID: "sp", Quantity: 6, MinStock: 2}
	d := AnalyzeComponent(testutil.BaseTime, domain.ComponentHealth{
		Name:               "Compression Roller",
		Health:             72,
		Trend:              domain.TrendDeclining,
		FailureProbability: 0.35,
	}, spare, nil, nil)

	assert.True(t, d.RequiresMaintenance)
	assert.Equal(t, domain.MaintenanceGeneral, d.Type)
	assert.Equal(t, domain.WorkPriorityMedium, d.Priority)
	assert.Equal(t, float64(GeneralMaintenanceHours), d.EstimatedHours)
}

func TestAnalyzeComponentCriticalBands(t *testing.T) {
	d := AnalyzeComponent(testutil.BaseTime, domain.ComponentHealth{
		Name:   "Tablet Press Punch Set",
		Health: 25,
		Trend:  domain.TrendCritical,
	}, nil, nil, nil)

	assert.True(t, d.RequiresMaintenance)
	assert.Equal(t, domain.WorkPriorityCritical, d.Priority)
	assert.Equal(t, domain.MaintenanceSpareReplacement, d.Type,
		"critical trend forces replacement even without a spare link")
}

func TestAnalyzeComponentCriticalTrendAtHighHealth(t *testing.T) {
	d := AnalyzeComponent(testutil.BaseTime, domain.ComponentHealth{
		Name:   "Blender Bearing Assembly",
		Health: 80,
		Trend:  domain.TrendCritical,
	}, nil, nil, nil)

	assert.True(t, d.RequiresMaintenance)
	assert.Equal(t, domain.WorkPriorityHigh, d.Priority)
}
