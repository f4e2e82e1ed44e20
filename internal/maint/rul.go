// Package maint implements the predictive-maintenance decision engine:
// remaining-useful-life prediction, threshold-based anomaly detection, the
// per-component maintenance decision, and the stateful work-order /
// purchase-order lifecycle.
//
// The pure functions in rul.go, anomaly.go and decision.go form the
// maintenance service boundary; Engine consumes them through the Service
// interface so remote implementations can be substituted.
package maint

import (
	"math"
	"time"

	"github.com/calebmcnary/pharmline/internal/domain"
)

// Decision thresholds.
const (
	VibrationThreshold   = 5.0 // mm/s
	TemperatureThreshold = 65  // degC
	MotorLoadThreshold   = 90  // percent

	GeneralMaintenanceHours = 2
	SpareReplacementHours   = 4
)

// RULInput carries the component condition and averaged sensor context for a
// remaining-useful-life prediction.
type RULInput struct {
	Component        string  `json:"component"`
	CurrentHealth    float64 `json:"currentHealth"`
	OperatingHours   float64 `json:"operatingHours"`
	Vibration        float64 `json:"vibration"`
	TemperatureDelta float64 `json:"temperatureDelta"`
	MotorLoadAvg     float64 `json:"motorLoadAvg"`
}

// PredictRUL estimates remaining useful life from current health and sensor
// stress factors.
//
// The base degradation rate of 0.001%/h is scaled up when sensors show
// stress: high vibration x1.5, elevated temperature x1.3, motor overload
// x1.4. Confidence starts at 0.85, drops with each active stress factor, and
// clamps to [0.6, 0.95]. Failure probability rises as predicted RUL falls
// below 1000 hours.
func PredictRUL(now time.Time, in RULInput) domain.RULPrediction {
	const baseDegradationRate = 0.001

	vibrationFactor := 1.0
	if in.Vibration > VibrationThreshold {
		vibrationFactor = 1.5
	}
	temperatureFactor := 1.0
	if in.TemperatureDelta > 10 {
		temperatureFactor = 1.3
	}
	loadFactor := 1.0
	if in.MotorLoadAvg > MotorLoadThreshold {
		loadFactor = 1.4
	}

	rate := baseDegradationRate * vibrationFactor * temperatureFactor * loadFactor
	rul := math.Round(in.CurrentHealth / rate)

	confidence := 0.85 - math.Abs(vibrationFactor-1)*0.1 - math.Abs(temperatureFactor-1)*0.1
	confidence = math.Max(0.6, math.Min(0.95, confidence))

	failureProb := math.Min(0.99, math.Max(0.01, 1-rul/1000))

	return domain.RULPrediction{
		Component:            in.Component,
		PredictedRUL:         rul,
		Confidence:           confidence,
		DegradationRate:      rate,
		FailureProbability:   failureProb,
		PredictedFailureDate: now.Add(time.Duration(rul * float64(time.Hour))),
	}
}
