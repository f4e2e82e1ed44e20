package yield

import (
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/calebmcnary/pharmline/internal/domain"
)

// Service is the yield service boundary the engine calls through.
// agents.Local delegates to this package's pure functions; agents.Client
// reaches a remote service.
type Service interface {
	DetectDrift(window []domain.TabletPressSignals, windowSize int) ([]domain.DriftDetection, error)
	PredictYield(profile domain.BatchProfile, historicalYields []float64, activeRecommendations int) (domain.OutcomePrediction, error)
	GenerateRecommendations(signals domain.TabletPressSignals, profile domain.BatchProfile, sop domain.SOPLimits, specs domain.ProductSpecs) ([]domain.YieldRecommendation, error)
	ValidateRecommendation(rec domain.YieldRecommendation, sop domain.SOPLimits) (bool, error)
	SOPLimits() (domain.SOPLimits, domain.ProductSpecs, error)
}

// detectCooldownTicks suppresses re-detection of the same parameter while the
// operator reacts to the previous one.
const detectCooldownTicks = 10

// TickEvents reports what one yield tick produced.
type TickEvents struct {
	// Standby is set while the engine waits for discharge completion;
	// nothing else is populated.
	Standby bool

	Sample             domain.TabletPressSignals
	Profile            domain.BatchProfile
	Detections         []domain.DriftDetection
	Prediction         *domain.OutcomePrediction
	NewRecommendations []*domain.YieldRecommendation
}

// Engine runs the press monitoring loop once a batch discharges.
//
// The engine owns tablet-press signal generation: a seeded random walk
// around actuator baselines and quality targets, so the whole run is
// reproducible from the seed. Scenario injection shifts quality baselines
// through InjectOffset.
//
// Thread-safety: none. The simulation loop is the single writer.
type Engine struct {
	svc   Service
	idGen domain.IDGenerator
	log   *slog.Logger
	rng   *rand.Rand

	sop   domain.SOPLimits
	specs domain.ProductSpecs

	active      bool
	batchNumber string
	tick        int

	samples         []domain.TabletPressSignals
	tabletsProduced int
	profile         domain.BatchProfile
	prediction      *domain.OutcomePrediction

	detections      []domain.DriftDetection
	lastDetected    map[string]int
	recommendations []*domain.YieldRecommendation
	historicalYield []float64

	// baseline holds actuator set points; offsets holds injected quality
	// drift, added on top of product targets.
	baseline map[string]float64
	offsets  map[string]float64
}

// NewEngine builds a standby engine. sop/specs fall back to the standard
// tablet line when empty.
func NewEngine(svc Service, idGen domain.IDGenerator, log *slog.Logger, rng *rand.Rand, sop domain.SOPLimits, specs domain.ProductSpecs) *Engine {
	if len(sop) == 0 {
		sop = domain.DefaultSOPLimits()
	}
	if specs.Weight.Target == 0 {
		specs = domain.DefaultProductSpecs()
	}
	if log == nil {
		log = slog.Default()
	}

	e := &Engine{
		svc:          svc,
		idGen:        idGen,
		log:          log,
		rng:          rng,
		sop:          sop,
		specs:        specs,
		lastDetected: map[string]int{},
		baseline:     map[string]float64{},
		offsets:      map[string]float64{},
	}
	for param, band := range sop {
		e.baseline[param] = (band.Min + band.Max) / 2
	}
	return e
}

// Active reports whether the engine has left standby.
func (e *Engine) Active() bool { return e.active }

// Activate starts monitoring the discharged batch.
func (e *Engine) Activate(batchNumber string) {
	e.active = true
	e.batchNumber = batchNumber
	e.log.Info("yield engine active", "batch", batchNumber)
}

// Deactivate records the run's final yield into history and returns to
// standby, keeping recommendations for audit.
func (e *Engine) Deactivate() {
	if e.active && e.prediction != nil {
		e.historicalYield = append(e.historicalYield, e.prediction.CurrentYield)
	}
	e.active = false
	e.batchNumber = ""
	e.samples = nil
	e.tabletsProduced = 0
	e.profile = domain.BatchProfile{}
	e.prediction = nil
	e.offsets = map[string]float64{}
	e.lastDetected = map[string]int{}
}

// InjectOffset shifts a quality parameter's generation baseline, the hook
// scenario injection uses for weight_drift and hardness_drift.
func (e *Engine) InjectOffset(param string, delta float64) {
	e.offsets[param] += delta
}

// Profile returns the current batch profile.
func (e *Engine) Profile() domain.BatchProfile { return e.profile }

// Prediction returns the latest outcome prediction, nil while standby or
// before the first full window.
func (e *Engine) Prediction() *domain.OutcomePrediction { return e.prediction }

// Detections returns the drift detection log.
func (e *Engine) Detections() []domain.DriftDetection { return e.detections }

// Recommendations returns all recommendations, pending and applied.
func (e *Engine) Recommendations() []*domain.YieldRecommendation { return e.recommendations }

// Recommendation returns the recommendation with the given ID, or nil.
func (e *Engine) Recommendation(id string) *domain.YieldRecommendation {
	for _, r := range e.recommendations {
		if r.ID == id {
			return r
		}
	}
	return nil
}

// Samples returns the live sample window.
func (e *Engine) Samples() []domain.TabletPressSignals { return e.samples }

// Tick runs one monitoring cycle: sample, profile, drift, prediction,
// recommendations. In standby it computes nothing. A service failure returns
// the error with all state from before the failing phase preserved.
func (e *Engine) Tick(now time.Time) (TickEvents, error) {
	if !e.active {
		return TickEvents{Standby: true}, nil
	}
	e.tick++

	sample := e.generateSample(now)
	e.samples = append(e.samples, sample)
	if len(e.samples) > 2*BaselineWindow {
		e.samples = e.samples[len(e.samples)-2*BaselineWindow:]
	}
	e.tabletsProduced += int(sample.TurretSpeed * stationsPerRevolution / 60)

	e.profile = ComputeProfile(e.batchNumber, e.window(), e.specs, e.tabletsProduced)

	ev := TickEvents{Sample: sample, Profile: e.profile}

	detections, err := e.detect()
	if err != nil {
		return ev, err
	}
	ev.Detections = detections

	pred, err := e.svc.PredictYield(e.profile, e.historicalYield, e.pendingCount())
	if err != nil {
		return ev, &domain.SimError{
			Code:    domain.ErrCodeServiceFailure,
			Message: "yield prediction unavailable",
			Err:     err,
		}
	}
	e.prediction = &pred
	ev.Prediction = &pred

	if len(detections) > 0 {
		recs, err := e.recommend(sample)
		if err != nil {
			return ev, err
		}
		ev.NewRecommendations = recs
	}
	return ev, nil
}

// ApproveRecommendation marks a recommendation applied and folds its value
// into the live signal baseline. Idempotent: approving an applied
// recommendation changes nothing.
func (e *Engine) ApproveRecommendation(id string, now time.Time) (*domain.YieldRecommendation, error) {
	rec := e.Recommendation(id)
	if rec == nil {
		return nil, &domain.SimError{
			Code:    domain.ErrCodeInvalidTransition,
			Message: "unknown recommendation",
			Subject: id,
		}
	}
	if rec.Approved {
		return rec, nil
	}

	rec.Approved = true
	applied := now
	rec.AppliedAt = &applied

	e.baseline[rec.Parameter] = rec.RecommendedValue
	if quality := correctedQualityParam(rec.Parameter); quality != "" {
		delete(e.offsets, quality)
	}

	e.log.Info("recommendation applied",
		"id", rec.ID, "parameter", rec.Parameter, "value", rec.RecommendedValue)
	return rec, nil
}

// Magnitude expresses a recommendation's change as a percentage of the
// current value, the quantity the approval gate grades.
func Magnitude(rec domain.YieldRecommendation) float64 {
	if rec.CurrentValue == 0 {
		return 0
	}
	return math.Abs(rec.RecommendedValue-rec.CurrentValue) / math.Abs(rec.CurrentValue) * 100
}

// correctedQualityParam maps an actuator to the quality signal its
// correction repairs.
func correctedQualityParam(actuator string) string {
	switch actuator {
	case domain.ParamFeederSpeed:
		return domain.ParamWeight
	case domain.ParamMainCompressionForce:
		return domain.ParamHardness
	case domain.ParamPreCompressionForce:
		return domain.ParamThickness
	}
	return ""
}

// generateSample produces one press sample: actuators jitter around their
// baselines, quality signals jitter around product targets plus any injected
// drift offset.
func (e *Engine) generateSample(now time.Time) domain.TabletPressSignals {
	jitter := func(scale float64) float64 {
		return (e.rng.Float64() - 0.5) * 2 * scale
	}
	return domain.TabletPressSignals{
		Weight:               e.specs.Weight.Target + e.offsets[domain.ParamWeight] + jitter(1.5),
		Thickness:            e.specs.Thickness.Target + e.offsets[domain.ParamThickness] + jitter(0.03),
		Hardness:             e.specs.Hardness.Target + e.offsets[domain.ParamHardness] + jitter(0.1),
		FeederSpeed:          e.baseline[domain.ParamFeederSpeed] + jitter(0.3),
		TurretSpeed:          e.baseline[domain.ParamTurretSpeed] + jitter(0.4),
		Vacuum:               e.baseline[domain.ParamVacuum] + jitter(8),
		PreCompressionForce:  e.baseline[domain.ParamPreCompressionForce] + jitter(0.1),
		MainCompressionForce: e.baseline[domain.ParamMainCompressionForce] + jitter(0.2),
		Timestamp:            now,
	}
}

func (e *Engine) window() []domain.TabletPressSignals {
	if len(e.samples) <= BaselineWindow {
		return e.samples
	}
	return e.samples[len(e.samples)-BaselineWindow:]
}

// detect runs drift detection with a per-parameter cooldown.
func (e *Engine) detect() ([]domain.DriftDetection, error) {
	if len(e.samples) < BaselineWindow {
		return nil, nil
	}
	raw, err := e.svc.DetectDrift(e.window(), BaselineWindow)
	if err != nil {
		return nil, &domain.SimError{
			Code:    domain.ErrCodeServiceFailure,
			Message: "drift detection unavailable",
			Err:     err,
		}
	}

	var kept []domain.DriftDetection
	for _, d := range raw {
		if last, ok := e.lastDetected[d.Parameter]; ok && e.tick-last < detectCooldownTicks {
			continue
		}
		e.lastDetected[d.Parameter] = e.tick
		kept = append(kept, d)
		e.detections = append(e.detections, d)
		e.log.Info("drift detected",
			"parameter", d.Parameter, "direction", d.Direction,
			"magnitude", d.MagnitudePct, "severity", d.Severity)
	}
	return kept, nil
}

// recommend asks the service for adjustments, keeping only validated
// proposals for parameters without a pending recommendation.
func (e *Engine) recommend(sample domain.TabletPressSignals) ([]*domain.YieldRecommendation, error) {
	recs, err := e.svc.GenerateRecommendations(sample, e.profile, e.sop, e.specs)
	if err != nil {
		return nil, &domain.SimError{
			Code:    domain.ErrCodeServiceFailure,
			Message: "recommendation generation unavailable",
			Err:     err,
		}
	}

	var kept []*domain.YieldRecommendation
	for i := range recs {
		rec := recs[i]
		if e.pendingFor(rec.Parameter) != nil {
			continue
		}
		ok, err := e.svc.ValidateRecommendation(rec, e.sop)
		if err != nil {
			return kept, &domain.SimError{
				Code:    domain.ErrCodeServiceFailure,
				Message: "recommendation validation unavailable",
				Err:     err,
			}
		}
		if !ok {
			continue
		}
		r := rec
		e.recommendations = append(e.recommendations, &r)
		kept = append(kept, &r)
		e.log.Info("recommendation generated",
			"id", r.ID, "parameter", r.Parameter,
			"current", r.CurrentValue, "recommended", r.RecommendedValue)
	}
	return kept, nil
}

func (e *Engine) pendingFor(param string) *domain.YieldRecommendation {
	for _, r := range e.recommendations {
		if r.Parameter == param && !r.Approved {
			return r
		}
	}
	return nil
}

func (e *Engine) pendingCount() int {
	n := 0
	for _, r := range e.recommendations {
		if !r.Approved {
			n++
		}
	}
	return n
}
