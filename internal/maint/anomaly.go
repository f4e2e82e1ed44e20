package maint

import (
	"fmt"

	"github.com/calebmcnary/pharmline/internal/domain"
)

// Thresholds are the sensor alarm limits for anomaly detection. Zero fields
// fall back to the standard limits.
type Thresholds struct {
	Vibration   float64 `json:"vibration"`
	Temperature float64 `json:"temperature"`
	MotorLoad   float64 `json:"motorLoad"`
}

// withDefaults fills unset thresholds.
func (t Thresholds) withDefaults() Thresholds {
	if t.Vibration <= 0 {
		t.Vibration = VibrationThreshold
	}
	if t.Temperature <= 0 {
		t.Temperature = TemperatureThreshold
	}
	if t.MotorLoad <= 0 {
		t.MotorLoad = MotorLoadThreshold
	}
	return t
}

// DetectAnomalies runs threshold detection over a window of sensor samples.
//
// Severity scales with how far a reading exceeds its threshold: vibration
// beyond 1.5x is high and beyond 1.2x medium; temperature 15 degrees over is
// high and 5 over medium; motor load over 95% is high, anything else over
// threshold medium.
func DetectAnomalies(samples []domain.SensorSample, th Thresholds, idGen domain.IDGenerator) []domain.Anomaly {
	th = th.withDefaults()

	var anomalies []domain.Anomaly
	for _, s := range samples {
		if s.Vibration > th.Vibration {
			severity := domain.SeverityLow
			switch {
			case s.Vibration > th.Vibration*1.5:
				severity = domain.SeverityHigh
			case s.Vibration > th.Vibration*1.2:
				severity = domain.SeverityMedium
			}
			anomalies = append(anomalies, domain.Anomaly{
				ID:        idGen.NewID(),
				Timestamp: s.Timestamp,
				Source:    "Vibration Sensor",
				Severity:  severity,
				Description: fmt.Sprintf("High vibration detected: %.2f mm/s (threshold: %g mm/s)",
					s.Vibration, th.Vibration),
			})
		}

		if s.Temperature > th.Temperature {
			severity := domain.SeverityLow
			switch {
			case s.Temperature > th.Temperature+15:
				severity = domain.SeverityHigh
			case s.Temperature > th.Temperature+5:
				severity = domain.SeverityMedium
			}
			anomalies = append(anomalies, domain.Anomaly{
				ID:        idGen.NewID(),
				Timestamp: s.Timestamp,
				Source:    "Temperature Sensor",
				Severity:  severity,
				Description: fmt.Sprintf("High temperature detected: %.1f°C (threshold: %g°C)",
					s.Temperature, th.Temperature),
			})
		}

		if s.MotorLoad > th.MotorLoad {
			severity := domain.SeverityMedium
			if s.MotorLoad > 95 {
				severity = domain.SeverityHigh
			}
			anomalies = append(anomalies, domain.Anomaly{
				ID:        idGen.NewID(),
				Timestamp: s.Timestamp,
				Source:    "Motor Load Sensor",
				Severity:  severity,
				Description: fmt.Sprintf("Motor overload detected: %.1f%% (threshold: %g%%)",
					s.MotorLoad, th.MotorLoad),
			})
		}
	}
	return anomalies
}
