package yield

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calebmcnary/pharmline/internal/domain"
	"github.com/calebmcnary/pharmline/internal/testutil"
)

// flatWindow builds n identical samples.
func flatWindow(n int, base domain.TabletPressSignals) []domain.TabletPressSignals {
	out := make([]domain.TabletPressSignals, n)
	for i := range out {
		out[i] = base
	}
	return out
}

func nominalSignals() domain.TabletPressSignals {
	return domain.TabletPressSignals{
		Weight:               500,
		Thickness:            4.5,
		Hardness:             12,
		FeederSpeed:          27.5,
		TurretSpeed:          47.5,
		Vacuum:               -300,
		PreCompressionForce:  3.5,
		MainCompressionForce: 16,
	}
}

func TestCalculateTrend(t *testing.T) {
	assert.Equal(t, Trend{}, CalculateTrend(nil))
	assert.Equal(t, Trend{}, CalculateTrend([]float64{5}))

	up := CalculateTrend([]float64{1, 2, 3, 4, 5})
	assert.InDelta(t, 1.0, up.Slope, 1e-9)

	flat := CalculateTrend([]float64{7, 7, 7, 7})
	assert.Equal(t, 0.0, flat.Slope)
	assert.Equal(t, 0.0, flat.PercentChange)
}

func TestDetectDriftNeedsFullWindow(t *testing.T) {
	window := flatWindow(BaselineWindow-1, nominalSignals())
	got := DetectDrift(window, BaselineWindow, testutil.BaseTime, testutil.NewSequenceIDGenerator("dr"))
	assert.Nil(t, got)
}

func TestDetectDriftStableSignalsQuiet(t *testing.T) {
	window := flatWindow(BaselineWindow, nominalSignals())
	got := DetectDrift(window, BaselineWindow, testutil.BaseTime, testutil.NewSequenceIDGenerator("dr"))
	assert.Empty(t, got)
}

// shiftTail raises one parameter in the last ShortWindow samples so the
// short-window mean lands at shortMean while the baseline stays near base.
func shiftTail(window []domain.TabletPressSignals, set func(*domain.TabletPressSignals, float64), v float64) {
	for i := len(window) - ShortWindow; i < len(window); i++ {
		set(&window[i], v)
	}
}

func TestDetectDriftWeightSeverityBands(t *testing.T) {
	tests := []struct {
		name      string
		tailValue float64
		severity  domain.Severity
		direction domain.DriftDirection
	}{
		// Baseline mean with 25 samples at 500 and 5 at v is (25*500+5*v)/30.
		// v=530: baseline 505, short 530 → ~4.95% change: medium.
		{"medium increase", 530, domain.SeverityMedium, domain.DriftIncreasing},
		// v=560: baseline 510, short 560 → ~9.8%: high.
		{"high increase", 560, domain.SeverityHigh, domain.DriftIncreasing},
		// v=490: baseline 498.33, short 490 → ~1.67%: low.
		{"low decrease", 490, domain.SeverityLow, domain.DriftDecreasing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			window := flatWindow(BaselineWindow, nominalSignals())
			shiftTail(window, func(s *domain.TabletPressSignals, v float64) { s.Weight = v }, tt.tailValue)

			got := DetectDrift(window, BaselineWindow, testutil.BaseTime, testutil.NewSequenceIDGenerator("dr"))
			require.Len(t, got, 1)
			d := got[0]
			assert.Equal(t, domain.ParamWeight, d.Parameter)
			assert.Equal(t, tt.severity, d.Severity)
			assert.Equal(t, tt.direction, d.Direction)
			assert.NotEmpty(t, d.Description)
			assert.NotEmpty(t, d.RecommendedAction)
		})
	}
}

func TestDetectDriftSubPercentSuppressed(t *testing.T) {
	window := flatWindow(BaselineWindow, nominalSignals())
	shiftTail(window, func(s *domain.TabletPressSignals, v float64) { s.Weight = v }, 502)

	got := DetectDrift(window, BaselineWindow, testutil.BaseTime, testutil.NewSequenceIDGenerator("dr"))
	assert.Empty(t, got, "sub-percent change is noise")
}

func TestDetectDriftTransientAgainstSlopeSuppressed(t *testing.T) {
	// A run trending down (10 samples at 540, then 15 at 470) whose last 5
	// samples pop back to 505: the short-window mean sits 1.17% above the
	// baseline, but the full-window slope is negative, so no drift.
	window := flatWindow(BaselineWindow, nominalSignals())
	for i := range window {
		switch {
		case i < 10:
			window[i].Weight = 540
		case i < 25:
			window[i].Weight = 470
		default:
			window[i].Weight = 505
		}
	}

	got := DetectDrift(window, BaselineWindow, testutil.BaseTime, testutil.NewSequenceIDGenerator("dr"))
	assert.Empty(t, got, "tail excursion against the run's slope is transient")
}

func TestDetectDriftActionFollowsDirection(t *testing.T) {
	window := flatWindow(BaselineWindow, nominalSignals())
	shiftTail(window, func(s *domain.TabletPressSignals, v float64) { s.Weight = v }, 470)

	got := DetectDrift(window, BaselineWindow, testutil.BaseTime, testutil.NewSequenceIDGenerator("dr"))
	require.Len(t, got, 1)
	assert.Equal(t, domain.DriftDecreasing, got[0].Direction)
	assert.Equal(t, "Increase feeder speed slightly", got[0].RecommendedAction)
}
