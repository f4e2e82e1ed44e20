package yield

import (
	"math"

	"github.com/calebmcnary/pharmline/internal/domain"
)

// Yield grading thresholds.
const (
	TargetYield      = 97
	WarningYield     = 95
	CriticalYield    = 93
	TargetRSD        = 1.5
	TargetRejectRate = 1.5
)

// Confidence bounds for the outcome model, matching the RUL clamp.
const (
	MinConfidence = 0.6
	MaxConfidence = 0.95
)

// PredictYield projects the run's yield from the batch profile.
//
// The in-spec percentage anchors the projection; weight variability above the
// %RSD target and rejects above the reject target pull it down, the
// historical average nudges it toward the line's norm. The corrected
// projection assumes pending recommendations are applied, each worth half a
// point of yield. Confidence derives from the sample window's weight
// variance: a tight %RSD means the projection rests on a settled process.
func PredictYield(
	profile domain.BatchProfile,
	historicalYields []float64,
	activeRecommendations int,
) domain.OutcomePrediction {
	base := profile.InSpecPercentage

	if penalty := (profile.WeightRSD - TargetRSD) * 2; penalty > 0 {
		base -= penalty
	}
	if penalty := (profile.RejectRate - TargetRejectRate) * 0.5; penalty > 0 {
		base -= penalty
	}

	if len(historicalYields) > 0 {
		var sum float64
		for _, y := range historicalYields {
			sum += y
		}
		avg := sum / float64(len(historicalYields))
		base += (avg - base) * 0.1
	}

	current := math.Max(85, math.Min(99, base))

	const improvementPerRec = 0.5
	corrected := math.Min(99.5, current+float64(activeRecommendations)*improvementPerRec+1.5)

	correctedReject := math.Max(0.3, profile.RejectRate-float64(activeRecommendations)*0.4)

	confidence := math.Max(MinConfidence, math.Min(MaxConfidence,
		MaxConfidence-profile.WeightRSD*0.05))

	risk := domain.RiskLow
	switch {
	case current < CriticalYield:
		risk = domain.RiskHigh
	case current < WarningYield:
		risk = domain.RiskMedium
	}

	return domain.OutcomePrediction{
		CurrentYield:         current,
		CorrectedYield:       corrected,
		CurrentRejectRate:    profile.RejectRate,
		CorrectedRejectRate:  correctedReject,
		Confidence:           confidence,
		Risk:                 risk,
		PotentialImprovement: corrected - current,
	}
}
