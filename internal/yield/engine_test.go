package yield

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calebmcnary/pharmline/internal/domain"
	"github.com/calebmcnary/pharmline/internal/testutil"
)

// stubService backs the service boundary with this package's pure functions
// so engine tests stay in-process. fail flips every call into an error.
type stubService struct {
	fail  bool
	now   time.Time
	idGen domain.IDGenerator
}

func (s *stubService) DetectDrift(window []domain.TabletPressSignals, windowSize int) ([]domain.DriftDetection, error) {
	if s.fail {
		return nil, errors.New("drift service down")
	}
	return DetectDrift(window, windowSize, s.now, s.idGen), nil
}

func (s *stubService) PredictYield(profile domain.BatchProfile, historicalYields []float64, activeRecommendations int) (domain.OutcomePrediction, error) {
	if s.fail {
		return domain.OutcomePrediction{}, errors.New("prediction service down")
	}
	return PredictYield(profile, historicalYields, activeRecommendations), nil
}

func (s *stubService) GenerateRecommendations(signals domain.TabletPressSignals, profile domain.BatchProfile, sop domain.SOPLimits, specs domain.ProductSpecs) ([]domain.YieldRecommendation, error) {
	if s.fail {
		return nil, errors.New("recommendation service down")
	}
	return GenerateRecommendations(signals, profile, sop, specs, s.idGen), nil
}

func (s *stubService) ValidateRecommendation(rec domain.YieldRecommendation, sop domain.SOPLimits) (bool, error) {
	if s.fail {
		return false, errors.New("validation service down")
	}
	return ValidateRecommendation(rec, sop), nil
}

func (s *stubService) SOPLimits() (domain.SOPLimits, domain.ProductSpecs, error) {
	if s.fail {
		return nil, domain.ProductSpecs{}, errors.New("sop service down")
	}
	return domain.DefaultSOPLimits(), domain.DefaultProductSpecs(), nil
}

func yieldFixture(t *testing.T) (*Engine, *stubService, *testutil.ManualClock) {
	t.Helper()
	clock := testutil.NewManualClock()
	svc := &stubService{now: clock.Now(), idGen: testutil.NewSequenceIDGenerator("yd")}
	eng := NewEngine(svc, testutil.NewSequenceIDGenerator("rec"), nil,
		rand.New(rand.NewSource(1)), nil, domain.ProductSpecs{})
	return eng, svc, clock
}

// runTicks advances the engine n ticks, one minute apart, failing on error.
func runTicks(t *testing.T, eng *Engine, clock *testutil.ManualClock, n int) TickEvents {
	t.Helper()
	var ev TickEvents
	for i := 0; i < n; i++ {
		clock.Advance(time.Minute)
		var err error
		ev, err = eng.Tick(clock.Now())
		require.NoError(t, err)
	}
	return ev
}

func TestEngineStandby(t *testing.T) {
	eng, _, clock := yieldFixture(t)

	ev, err := eng.Tick(clock.Now())
	require.NoError(t, err)
	assert.True(t, ev.Standby)
	assert.False(t, eng.Active())
	assert.Empty(t, eng.Samples())
	assert.Nil(t, eng.Prediction())
}

func TestEngineSamplesAndProfile(t *testing.T) {
	eng, _, clock := yieldFixture(t)
	eng.Activate("B-2024-0001")

	ev := runTicks(t, eng, clock, 5)
	assert.False(t, ev.Standby)
	assert.Len(t, eng.Samples(), 5)
	assert.Equal(t, "B-2024-0001", ev.Profile.BatchNumber)
	assert.InDelta(t, 500, ev.Profile.AvgWeight, 2, "quality jitters around target")
	assert.Greater(t, ev.Profile.TabletsProduced, 0)
	require.NotNil(t, ev.Prediction)
	assert.Greater(t, ev.Prediction.CurrentYield, 90.0)
}

func TestEngineNoDriftOnStableProcess(t *testing.T) {
	eng, _, clock := yieldFixture(t)
	eng.Activate("B-2024-0001")

	runTicks(t, eng, clock, BaselineWindow+10)
	assert.Empty(t, eng.Detections())
	assert.Empty(t, eng.Recommendations())
}

func TestEngineDriftDetectionAndRecommendation(t *testing.T) {
	eng, _, clock := yieldFixture(t)
	eng.Activate("B-2024-0001")

	runTicks(t, eng, clock, BaselineWindow)
	eng.InjectOffset(domain.ParamWeight, 25)

	var detected bool
	var recs []*domain.YieldRecommendation
	for i := 0; i < ShortWindow+2; i++ {
		ev := runTicks(t, eng, clock, 1)
		if len(ev.Detections) > 0 {
			detected = true
			assert.Equal(t, domain.ParamWeight, ev.Detections[0].Parameter)
			assert.Equal(t, domain.DriftIncreasing, ev.Detections[0].Direction)
		}
		recs = append(recs, ev.NewRecommendations...)
	}
	require.True(t, detected, "injected 5%% weight shift must surface as drift")

	require.NotEmpty(t, recs)
	feeder := recs[0]
	assert.Equal(t, domain.ParamFeederSpeed, feeder.Parameter)
	assert.Less(t, feeder.RecommendedValue, feeder.CurrentValue, "high weight pulls feeder down")
	assert.False(t, feeder.Approved)
}

func TestEngineDetectionCooldown(t *testing.T) {
	eng, _, clock := yieldFixture(t)
	eng.Activate("B-2024-0001")

	runTicks(t, eng, clock, BaselineWindow)
	eng.InjectOffset(domain.ParamWeight, 25)
	runTicks(t, eng, clock, detectCooldownTicks-1)

	weightHits := 0
	for _, d := range eng.Detections() {
		if d.Parameter == domain.ParamWeight {
			weightHits++
		}
	}
	assert.Equal(t, 1, weightHits, "cooldown suppresses repeat detections")
}

func TestEnginePendingDedupe(t *testing.T) {
	eng, _, clock := yieldFixture(t)
	eng.Activate("B-2024-0001")

	runTicks(t, eng, clock, BaselineWindow)
	eng.InjectOffset(domain.ParamWeight, 25)
	runTicks(t, eng, clock, detectCooldownTicks+ShortWindow)

	feeders := 0
	for _, r := range eng.Recommendations() {
		if r.Parameter == domain.ParamFeederSpeed {
			feeders++
		}
	}
	assert.Equal(t, 1, feeders, "one pending recommendation per parameter")
}

func TestEngineApproveRecommendation(t *testing.T) {
	eng, _, clock := yieldFixture(t)
	eng.Activate("B-2024-0001")

	runTicks(t, eng, clock, BaselineWindow)
	eng.InjectOffset(domain.ParamWeight, 25)
	runTicks(t, eng, clock, ShortWindow+2)
	require.NotEmpty(t, eng.Recommendations())
	rec := eng.Recommendations()[0]

	approvedAt := clock.Now()
	got, err := eng.ApproveRecommendation(rec.ID, approvedAt)
	require.NoError(t, err)
	assert.True(t, got.Approved)
	require.NotNil(t, got.AppliedAt)
	assert.Equal(t, approvedAt, *got.AppliedAt)

	// Idempotent: re-approval keeps the original timestamp.
	clock.Advance(time.Hour)
	again, err := eng.ApproveRecommendation(rec.ID, clock.Now())
	require.NoError(t, err)
	assert.Equal(t, approvedAt, *again.AppliedAt)

	// Approval folds into generation: the injected drift is cleared and
	// fresh samples return to target.
	ev := runTicks(t, eng, clock, 1)
	assert.InDelta(t, 500, ev.Sample.Weight, 2)
}

func TestEngineApproveUnknownRecommendation(t *testing.T) {
	eng, _, clock := yieldFixture(t)
	eng.Activate("B-2024-0001")

	_, err := eng.ApproveRecommendation("rec-999", clock.Now())
	var simErr *domain.SimError
	require.ErrorAs(t, err, &simErr)
	assert.Equal(t, domain.ErrCodeInvalidTransition, simErr.Code)
}

func TestEngineServiceFailurePreservesState(t *testing.T) {
	eng, svc, clock := yieldFixture(t)
	eng.Activate("B-2024-0001")

	runTicks(t, eng, clock, 5)
	before := eng.Prediction()
	require.NotNil(t, before)
	samplesBefore := len(eng.Samples())

	svc.fail = true
	clock.Advance(time.Minute)
	_, err := eng.Tick(clock.Now())
	var simErr *domain.SimError
	require.ErrorAs(t, err, &simErr)
	assert.Equal(t, domain.ErrCodeServiceFailure, simErr.Code)

	assert.Same(t, before, eng.Prediction(), "failed phase leaves prior prediction")
	assert.Equal(t, samplesBefore+1, len(eng.Samples()), "sampling precedes the failing phase")

	// Recovery picks up where the run left off.
	svc.fail = false
	ev := runTicks(t, eng, clock, 1)
	assert.NotNil(t, ev.Prediction)
}

func TestEngineDeactivateResetsRun(t *testing.T) {
	eng, _, clock := yieldFixture(t)
	eng.Activate("B-2024-0001")
	runTicks(t, eng, clock, 5)

	eng.Deactivate()
	assert.False(t, eng.Active())
	assert.Empty(t, eng.Samples())
	assert.Nil(t, eng.Prediction())

	ev, err := eng.Tick(clock.Now())
	require.NoError(t, err)
	assert.True(t, ev.Standby)
}

func TestMagnitude(t *testing.T) {
	assert.InDelta(t, 5.0, Magnitude(domain.YieldRecommendation{
		CurrentValue: 100, RecommendedValue: 95,
	}), 1e-9)
	assert.Equal(t, 0.0, Magnitude(domain.YieldRecommendation{
		CurrentValue: 0, RecommendedValue: 5,
	}))
}
