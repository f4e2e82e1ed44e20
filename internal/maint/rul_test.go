package maint

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/calebmcnary/pharmline/internal/testutil"
)

func TestPredictRULHealthyComponent(t *testing.T) {
	pred := PredictRUL(testutil.BaseTime, RULInput{
		Component:        "V-Blender Motor",
		CurrentHealth:    100,
		Vibration:        2.0,
		TemperatureDelta: 3,
		MotorLoadAvg:     70,
	})

	// No stress factors: base degradation 0.001 %/h.
	assert.Equal(t, 0.001, pred.DegradationRate)
	assert.Equal(t, 100000.0, pred.PredictedRUL)
	assert.Equal(t, 0.85, pred.Confidence)
	assert.Equal(t, 0.01, pred.FailureProbability, "long RUL floors at 0.01")
	assert.Equal(t, testutil.BaseTime.Add(100000*time.Hour), pred.PredictedFailureDate)
}

func TestPredictRULStressFactorsCompound(t *testing.T) {
	pred := PredictRUL(testutil.BaseTime, RULInput{
		Component:        "Blender Bearing Assembly",
		CurrentHealth:    60,
		Vibration:        6.2, // > 5.0 → x1.5
		TemperatureDelta: 12,  // > 10 → x1.3
		MotorLoadAvg:     93,  // > 90 → x1.4
	})

	assert.InDelta(t, 0.001*1.5*1.3*1.4, pred.DegradationRate, 1e-12)
	assert.InDelta(t, 21978, pred.PredictedRUL, 1)

	// Confidence dropped by vibration and temperature stress, clamped low end.
	assert.InDelta(t, 0.77, pred.Confidence, 1e-9)
}

func TestPredictRULConfidenceClamp(t *testing.T) {
	pred := PredictRUL(testutil.BaseTime, RULInput{
		Component:     "x",
		CurrentHealth: 50,
	})
	assert.GreaterOrEqual(t, pred.Confidence, 0.6)
	assert.LessOrEqual(t, pred.Confidence, 0.95)
}

func TestPredictRULFailureProbabilityRises(t *testing.T) {
	// Health 0.5% at max degradation: RUL ~ 182h → probability ~0.82.
	pred := PredictRUL(testutil.BaseTime, RULInput{
		Component:        "worn",
		CurrentHealth:    0.5,
		Vibration:        9,
		TemperatureDelta: 20,
		MotorLoadAvg:     99,
	})
	assert.Greater(t, pred.FailureProbability, 0.8)
	assert.LessOrEqual(t, pred.FailureProbability, 0.99)
}
