package domain

import "time"

// TabletPressSignals is one sample of the tablet-press instrument cluster.
type TabletPressSignals struct {
	Weight               float64   `json:"weight"`    // mg
	Thickness            float64   `json:"thickness"` // mm
	Hardness             float64   `json:"hardness"`  // kP
	FeederSpeed          float64   `json:"feederSpeed"` // rpm
	TurretSpeed          float64   `json:"turretSpeed"` // rpm
	Vacuum               float64   `json:"vacuum"`      // mbar
	PreCompressionForce  float64   `json:"preCompressionForce"`  // kN
	MainCompressionForce float64   `json:"mainCompressionForce"` // kN
	Timestamp            time.Time `json:"timestamp"`
}

// Parameter names used by drift detection and recommendations.
const (
	ParamWeight               = "weight"
	ParamThickness            = "thickness"
	ParamHardness             = "hardness"
	ParamFeederSpeed          = "feederSpeed"
	ParamTurretSpeed          = "turretSpeed"
	ParamVacuum               = "vacuum"
	ParamPreCompressionForce  = "preCompressionForce"
	ParamMainCompressionForce = "mainCompressionForce"
)

// Value returns the named parameter from the sample. Unknown names return 0.
func (s TabletPressSignals) Value(param string) float64 {
	switch param {
	case ParamWeight:
		return s.Weight
	case ParamThickness:
		return s.Thickness
	case ParamHardness:
		return s.Hardness
	case ParamFeederSpeed:
		return s.FeederSpeed
	case ParamTurretSpeed:
		return s.TurretSpeed
	case ParamVacuum:
		return s.Vacuum
	case ParamPreCompressionForce:
		return s.PreCompressionForce
	case ParamMainCompressionForce:
		return s.MainCompressionForce
	}
	return 0
}

// BatchProfile is the rolling statistical profile of the current press run,
// recomputed every tick from the sample window.
type BatchProfile struct {
	BatchNumber      string  `json:"batchNumber"`
	AvgWeight        float64 `json:"avgWeight"`
	WeightRSD        float64 `json:"weightRsd"` // percent relative std deviation
	AvgThickness     float64 `json:"avgThickness"`
	AvgHardness      float64 `json:"avgHardness"`
	RejectRate       float64 `json:"rejectRate"` // percent
	TabletsProduced  int     `json:"tabletsProduced"`
	TabletsPerMinute float64 `json:"tabletsPerMinute"`
	InSpecPercentage float64 `json:"inSpecPercentage"`
}

// DriftDirection is the sign of a detected drift.
type DriftDirection string

const (
	DriftIncreasing DriftDirection = "increasing"
	DriftDecreasing DriftDirection = "decreasing"
)

// DriftDetection reports a sustained directional change of a monitored
// parameter relative to its baseline window.
type DriftDetection struct {
	ID                string         `json:"id"`
	Parameter         string         `json:"parameter"`
	Direction         DriftDirection `json:"direction"`
	MagnitudePct      float64        `json:"magnitudePct"`
	Severity          Severity       `json:"severity"`
	DetectedAt        time.Time      `json:"detectedAt"`
	Description       string         `json:"description"`
	RecommendedAction string         `json:"recommendedAction"`
}

// RiskLevel grades recommendations and predictions.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// YieldRecommendation is a bounded parameter adjustment proposed by the yield
// engine.
//
// Invariant: SOPMin <= RecommendedValue <= SOPMax. A recommendation whose
// computed value would violate the bounds is clamped or suppressed before it
// is ever emitted.
type YieldRecommendation struct {
	ID                  string     `json:"id"`
	Parameter           string     `json:"parameter"`
	CurrentValue        float64    `json:"currentValue"`
	RecommendedValue    float64    `json:"recommendedValue"`
	Unit                string     `json:"unit"`
	Adjustment          string     `json:"adjustment"`
	ExpectedImprovement float64    `json:"expectedImprovement"` // yield percentage points
	SOPMin              float64    `json:"sopMin"`
	SOPMax              float64    `json:"sopMax"`
	Risk                RiskLevel  `json:"riskLevel"`
	Reasoning           string     `json:"reasoning"`
	Approved            bool       `json:"approved"`
	AppliedAt           *time.Time `json:"appliedAt,omitempty"`
}

// OutcomePrediction is the derived yield/reject projection for the current
// run. Not persisted.
type OutcomePrediction struct {
	CurrentYield         float64   `json:"currentYield"`
	CorrectedYield       float64   `json:"correctedYield"`
	CurrentRejectRate    float64   `json:"currentRejectRate"`
	CorrectedRejectRate  float64   `json:"correctedRejectRate"`
	Confidence           float64   `json:"confidence"` // 0-1
	Risk                 RiskLevel `json:"riskLevel"`
	PotentialImprovement float64   `json:"potentialImprovement"`
}

// SOPLimit is the Standard Operating Procedure band for one actuator
// parameter.
type SOPLimit struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Unit string  `json:"unit"`
}

// SOPLimits maps actuator parameters to their allowed bands.
type SOPLimits map[string]SOPLimit

// DefaultSOPLimits mirrors the plant's standard tablet-press SOP.
func DefaultSOPLimits() SOPLimits {
	return SOPLimits{
		ParamFeederSpeed:          {Min: 20, Max: 35, Unit: "rpm"},
		ParamTurretSpeed:          {Min: 40, Max: 55, Unit: "rpm"},
		ParamPreCompressionForce:  {Min: 2, Max: 5, Unit: "kN"},
		ParamMainCompressionForce: {Min: 12, Max: 20, Unit: "kN"},
		ParamVacuum:               {Min: -400, Max: -200, Unit: "mbar"},
	}
}

// Clamp limits v to the band.
func (l SOPLimit) Clamp(v float64) float64 {
	if v < l.Min {
		return l.Min
	}
	if v > l.Max {
		return l.Max
	}
	return v
}

// Contains reports whether v lies within the band.
func (l SOPLimit) Contains(v float64) bool {
	return v >= l.Min && v <= l.Max
}

// TargetSpec is a quality target with tolerance (weight, thickness) or an
// absolute band (hardness).
type TargetSpec struct {
	Target    float64 `json:"target"`
	Tolerance float64 `json:"tolerance,omitempty"`
	Min       float64 `json:"min,omitempty"`
	Max       float64 `json:"max,omitempty"`
}

// ProductSpecs are the in-spec quality bands for the current product.
type ProductSpecs struct {
	Weight    TargetSpec `json:"weight"`
	Thickness TargetSpec `json:"thickness"`
	Hardness  TargetSpec `json:"hardness"`
}

// DefaultProductSpecs is the standard 500 mg tablet specification.
func DefaultProductSpecs() ProductSpecs {
	return ProductSpecs{
		Weight:    TargetSpec{Target: 500, Tolerance: 5},
		Thickness: TargetSpec{Target: 4.5, Tolerance: 0.2},
		Hardness:  TargetSpec{Target: 12, Min: 8, Max: 16},
	}
}
