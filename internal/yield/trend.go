// Package yield implements the tablet-press yield optimization engine:
// rolling batch profiling, drift detection, outcome prediction and bounded
// parameter recommendations.
//
// The engine stays in standby until the batch's discharge step completes.
// The pure functions in trend.go, drift.go, predict.go and recommend.go form
// the yield service boundary; Engine consumes them through the Service
// interface.
package yield

// Trend is a least-squares linear fit over an evenly spaced series.
type Trend struct {
	Slope         float64 `json:"slope"`
	PercentChange float64 `json:"percentChange"`
}

// CalculateTrend fits a line through values (x = sample index) and expresses
// the total change across the series as a percentage of the mean. Fewer than
// two points, or a degenerate fit, return a zero trend.
func CalculateTrend(values []float64) Trend {
	n := len(values)
	if n < 2 {
		return Trend{}
	}

	var sumX, sumY, sumXY, sumX2 float64
	for i, v := range values {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumX2 += x * x
	}

	nf := float64(n)
	denom := nf*sumX2 - sumX*sumX
	if denom == 0 {
		return Trend{}
	}

	slope := (nf*sumXY - sumX*sumY) / denom
	avg := sumY / nf
	percent := 0.0
	if avg != 0 {
		percent = slope * nf / avg * 100
	}
	return Trend{Slope: slope, PercentChange: percent}
}
