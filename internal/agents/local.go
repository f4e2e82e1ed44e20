// Package agents implements the external service boundaries of the decision
// engine: in-process implementations of the maintenance and yield services,
// an HTTP server exposing them, and an HTTP client for reaching a remote
// deployment.
//
// The simulation runs against Local by default; Server and Client exist so
// the same decision logic can be hosted out-of-process without any engine
// changes.
package agents

import (
	"time"

	"github.com/calebmcnary/pharmline/internal/domain"
	"github.com/calebmcnary/pharmline/internal/maint"
	"github.com/calebmcnary/pharmline/internal/yield"
)

// Local implements both maint.Service and yield.Service by delegating to the
// pure decision functions.
type Local struct {
	windows maint.WindowFinder
	idGen   domain.IDGenerator
	now     func() time.Time
	sop     domain.SOPLimits
	specs   domain.ProductSpecs
}

// NewLocal builds the in-process service boundary. windows is the scheduler's
// idle-window lookup; now supplies simulated time. A nil now falls back to
// wall-clock time.
func NewLocal(windows maint.WindowFinder, idGen domain.IDGenerator, now func() time.Time) *Local {
	if now == nil {
		now = time.Now
	}
	return &Local{
		windows: windows,
		idGen:   idGen,
		now:     now,
		sop:     domain.DefaultSOPLimits(),
		specs:   domain.DefaultProductSpecs(),
	}
}

// --- maint.Service ---

func (l *Local) AnalyzeComponent(component domain.ComponentHealth, spare *domain.SparePart, schedule []domain.ScheduledBatch) (domain.MaintenanceDecision, error) {
	return maint.AnalyzeComponent(l.now(), component, spare, schedule, l.windows), nil
}

func (l *Local) PredictRUL(in maint.RULInput) (domain.RULPrediction, error) {
	return maint.PredictRUL(l.now(), in), nil
}

func (l *Local) DetectAnomalies(samples []domain.SensorSample, th maint.Thresholds) ([]domain.Anomaly, error) {
	return maint.DetectAnomalies(samples, th, l.idGen), nil
}

func (l *Local) FindIdleWindow(schedule []domain.ScheduledBatch, durationHours float64) (*domain.Window, error) {
	if l.windows == nil {
		return nil, nil
	}
	return l.windows.FindIdleWindow(l.now(), schedule, durationHours), nil
}

// --- yield.Service ---

func (l *Local) DetectDrift(window []domain.TabletPressSignals, windowSize int) ([]domain.DriftDetection, error) {
	return yield.DetectDrift(window, windowSize, l.now(), l.idGen), nil
}

func (l *Local) PredictYield(profile domain.BatchProfile, historicalYields []float64, activeRecommendations int) (domain.OutcomePrediction, error) {
	return yield.PredictYield(profile, historicalYields, activeRecommendations), nil
}

func (l *Local) GenerateRecommendations(signals domain.TabletPressSignals, profile domain.BatchProfile, sop domain.SOPLimits, specs domain.ProductSpecs) ([]domain.YieldRecommendation, error) {
	return yield.GenerateRecommendations(signals, profile, sop, specs, l.idGen), nil
}

func (l *Local) ValidateRecommendation(rec domain.YieldRecommendation, sop domain.SOPLimits) (bool, error) {
	return yield.ValidateRecommendation(rec, sop), nil
}

func (l *Local) SOPLimits() (domain.SOPLimits, domain.ProductSpecs, error) {
	return l.sop, l.specs, nil
}
