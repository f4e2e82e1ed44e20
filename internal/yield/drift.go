package yield

import (
	"fmt"
	"math"
	"time"

	"github.com/calebmcnary/pharmline/internal/domain"
)

// Drift detection windows and bands.
const (
	// ShortWindow is the number of recent samples compared against the
	// baseline mean.
	ShortWindow = 5
	// BaselineWindow is the default full-window size.
	BaselineWindow = 30
	// driftEmitFloor suppresses sub-percent noise.
	driftEmitFloor = 1.0
)

// driftSeverity bands: change above 7% is high, above 3% medium, else low.
func driftSeverity(magnitudePct float64) domain.Severity {
	switch {
	case magnitudePct > 7:
		return domain.SeverityHigh
	case magnitudePct > 3:
		return domain.SeverityMedium
	default:
		return domain.SeverityLow
	}
}

// monitored parameters, in emission order.
var driftParameters = []string{
	domain.ParamWeight,
	domain.ParamThickness,
	domain.ParamHardness,
	domain.ParamFeederSpeed,
	domain.ParamTurretSpeed,
}

// DetectDrift compares the short-window mean of each monitored parameter
// against the baseline-window mean and reports sustained directional change.
// The least-squares fit over the full window must agree with the short-window
// direction: a tail excursion against the run's overall slope is transient,
// not drift.
//
// windowSize <= 0 selects the 30-sample default. Fewer samples than the full
// window yields no detections: drift is only meaningful against a settled
// baseline.
func DetectDrift(signals []domain.TabletPressSignals, windowSize int, now time.Time, idGen domain.IDGenerator) []domain.DriftDetection {
	if windowSize <= 0 {
		windowSize = BaselineWindow
	}
	if len(signals) < windowSize {
		return nil
	}

	window := signals[len(signals)-windowSize:]
	short := window[len(window)-ShortWindow:]

	var detections []domain.DriftDetection
	for _, param := range driftParameters {
		values := make([]float64, len(window))
		var baseSum float64
		for i, s := range window {
			values[i] = s.Value(param)
			baseSum += values[i]
		}
		baseline := baseSum / float64(len(window))
		if baseline == 0 {
			continue
		}

		var shortSum float64
		for _, s := range short {
			shortSum += s.Value(param)
		}
		shortMean := shortSum / float64(len(short))

		change := (shortMean - baseline) / math.Abs(baseline) * 100
		magnitude := math.Abs(change)
		if magnitude < driftEmitFloor {
			continue
		}
		if trend := CalculateTrend(values); (change > 0) != (trend.Slope > 0) {
			continue
		}

		direction := domain.DriftIncreasing
		if change < 0 {
			direction = domain.DriftDecreasing
		}

		detections = append(detections, domain.DriftDetection{
			ID:                idGen.NewID(),
			Parameter:         param,
			Direction:         direction,
			MagnitudePct:      magnitude,
			Severity:          driftSeverity(magnitude),
			DetectedAt:        now,
			Description:       driftDescription(param, direction),
			RecommendedAction: driftAction(param, direction),
		})
	}
	return detections
}

func driftDescription(param string, dir domain.DriftDirection) string {
	switch param {
	case domain.ParamWeight:
		return fmt.Sprintf("Tablet weight %s - potential fill depth adjustment needed", dir)
	case domain.ParamThickness:
		return fmt.Sprintf("Thickness %s - check punch wear or compression settings", dir)
	case domain.ParamHardness:
		return fmt.Sprintf("Hardness %s - may affect dissolution profile", dir)
	case domain.ParamFeederSpeed:
		return "Feeder speed drift detected - check hopper level"
	case domain.ParamTurretSpeed:
		return "Turret speed variation - verify drive belt tension"
	}
	return fmt.Sprintf("%s %s", param, dir)
}

func driftAction(param string, dir domain.DriftDirection) string {
	switch param {
	case domain.ParamWeight:
		if dir == domain.DriftDecreasing {
			return "Increase feeder speed slightly"
		}
		return "Decrease feeder speed slightly"
	case domain.ParamThickness:
		if dir == domain.DriftIncreasing {
			return "Increase compression force"
		}
		return "Decrease compression force"
	case domain.ParamHardness:
		if dir == domain.DriftDecreasing {
			return "Increase main compression force"
		}
		return "Decrease main compression force"
	case domain.ParamFeederSpeed:
		return "Check hopper level and material flow"
	case domain.ParamTurretSpeed:
		return "Verify drive belt tension and motor condition"
	}
	return "Review process parameters"
}
