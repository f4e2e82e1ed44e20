package yield

import (
	"fmt"
	"math"

	"github.com/calebmcnary/pharmline/internal/domain"
)

// Per-rule correction gains and single-step caps. The delta scales with the
// measured deviation; the cap keeps any one adjustment a trim, not a swing.
const (
	feederGainRPMPerMg   = 0.1
	feederMaxStepRPM     = 1.0
	compressionGainKNPer = 0.25
	compressionMaxStepKN = 1.0
	turretGainRPMPerRSD  = 1.0
	turretMaxStepRPM     = 1.5
	preCompGainKNPerPct  = 0.2
	preCompMaxStepKN     = 0.5
)

// GenerateRecommendations proposes bounded actuator adjustments from the
// current signals and profile.
//
// Four rules, one per actuator: feeder speed compensates weight deviation,
// main compression compensates hardness deviation, turret speed slows to
// tighten %RSD, pre-compression rises to cut capping rejects. Each delta is
// proportional to the measured deviation, capped per step, and clamped into
// the SOP band; the expected improvement shrinks with whatever the clamp
// takes away, and a recommendation left with no change is suppressed.
func GenerateRecommendations(
	signals domain.TabletPressSignals,
	profile domain.BatchProfile,
	sop domain.SOPLimits,
	specs domain.ProductSpecs,
	idGen domain.IDGenerator,
) []domain.YieldRecommendation {
	if sop == nil {
		sop = domain.DefaultSOPLimits()
	}

	var recs []domain.YieldRecommendation
	add := func(param string, current, delta, improvement float64, reasoning string) {
		band, ok := sop[param]
		if !ok {
			return
		}
		value := band.Clamp(current + delta)
		applied := value - current
		if applied == 0 {
			return // clamping killed the adjustment
		}
		sign := ""
		if applied > 0 {
			sign = "+"
		}
		recs = append(recs, domain.YieldRecommendation{
			ID:                  idGen.NewID(),
			Parameter:           param,
			CurrentValue:        current,
			RecommendedValue:    value,
			Unit:                band.Unit,
			Adjustment:          fmt.Sprintf("%s%.1f %s", sign, applied, band.Unit),
			ExpectedImprovement: improvement * (applied / delta),
			SOPMin:              band.Min,
			SOPMax:              band.Max,
			Risk:                domain.RiskLow,
			Reasoning:           reasoning,
		})
	}

	weightDev := signals.Weight - specs.Weight.Target
	if math.Abs(weightDev) > specs.Weight.Tolerance*0.5 {
		delta := capStep(-weightDev*feederGainRPMPerMg, feederMaxStepRPM)
		reasoning := "Slight increase to compensate for gradual weight decrease trend"
		if weightDev > 0 {
			reasoning = "Slight decrease to compensate for weight increase trend"
		}
		add(domain.ParamFeederSpeed, signals.FeederSpeed, delta, 0.15, reasoning)
	}

	hardnessDev := signals.Hardness - specs.Hardness.Target
	if math.Abs(hardnessDev) > 1 {
		delta := capStep(-hardnessDev*compressionGainKNPer, compressionMaxStepKN)
		reasoning := "Increase hardness to target center; reduces friability rejects"
		if hardnessDev > 0 {
			reasoning = "Decrease compression to avoid over-hardness issues"
		}
		add(domain.ParamMainCompressionForce, signals.MainCompressionForce, delta, 0.22, reasoning)
	}

	if excess := profile.WeightRSD - TargetRSD; excess > 0 {
		delta := capStep(-excess*turretGainRPMPerRSD, turretMaxStepRPM)
		add(domain.ParamTurretSpeed, signals.TurretSpeed, delta, 0.18,
			"Minor reduction to improve fill uniformity and reduce %RSD")
	}

	if excess := profile.RejectRate - TargetRejectRate; excess > 0 {
		delta := capStep(excess*preCompGainKNPerPct, preCompMaxStepKN)
		add(domain.ParamPreCompressionForce, signals.PreCompressionForce, delta, 0.12,
			"Better de-aeration reduces capping and lamination")
	}

	return recs
}

// capStep limits a delta's magnitude to maxStep, preserving sign.
func capStep(delta, maxStep float64) float64 {
	if delta > maxStep {
		return maxStep
	}
	if delta < -maxStep {
		return -maxStep
	}
	return delta
}

// ValidateRecommendation reports whether a recommendation's value sits inside
// its SOP band. Parameters without a band pass.
func ValidateRecommendation(rec domain.YieldRecommendation, sop domain.SOPLimits) bool {
	if sop == nil {
		sop = domain.DefaultSOPLimits()
	}
	band, ok := sop[rec.Parameter]
	if !ok {
		return true
	}
	return band.Contains(rec.RecommendedValue)
}
