package maint

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calebmcnary/pharmline/internal/domain"
	"github.com/calebmcnary/pharmline/internal/testutil"
)

// localService implements Service over the package's pure functions.
type localService struct {
	now   func() time.Time
	idGen domain.IDGenerator
	fail  bool
}

func (s *localService) AnalyzeComponent(c domain.ComponentHealth, spare *domain.SparePart, schedule []domain.ScheduledBatch) (domain.MaintenanceDecision, error) {
	if s.fail {
		return domain.MaintenanceDecision{}, errors.New("service down")
	}
	return AnalyzeComponent(s.now(), c, spare, schedule, nil), nil
}

func (s *localService) PredictRUL(in RULInput) (domain.RULPrediction, error) {
	if s.fail {
		return domain.RULPrediction{}, errors.New("service down")
	}
	return PredictRUL(s.now(), in), nil
}

func (s *localService) DetectAnomalies(samples []domain.SensorSample, th Thresholds) ([]domain.Anomaly, error) {
	if s.fail {
		return nil, errors.New("service down")
	}
	return DetectAnomalies(samples, th, s.idGen), nil
}

func (s *localService) FindIdleWindow(schedule []domain.ScheduledBatch, durationHours float64) (*domain.Window, error) {
	return nil, nil
}

// fakeReserver records reserve and release calls.
type fakeReserver struct {
	reserved map[string]bool
	denied   bool
}

func (f *fakeReserver) Reserve(ids []string, until time.Time) error {
	if f.denied {
		return &domain.SimError{Code: domain.ErrCodeResourceContention, Message: "busy"}
	}
	for _, id := range ids {
		f.reserved[id] = true
	}
	return nil
}

func (f *fakeReserver) Release(ids []string) {
	for _, id := range ids {
		delete(f.reserved, id)
	}
}

type engineFixture struct {
	engine *Engine
	clock  *testutil.ManualClock
	svc    *localService
	res    *fakeReserver
}

func newEngineFixture(t *testing.T, components []ComponentSetup, spares []domain.SparePart) *engineFixture {
	t.Helper()
	clock := testutil.NewManualClock()
	svc := &localService{now: clock.Now, idGen: testutil.NewSequenceIDGenerator("an")}
	technicians := []domain.Technician{
		{ID: "tech-001", Name: "Marcus Webb", Skill: domain.SkillSpecialist, Available: true},
		{ID: "tech-002", Name: "Elena Ruiz", Skill: domain.SkillSenior, Available: true},
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := NewEngine(EngineConfig{}, svc, testutil.NewSequenceIDGenerator("wo"), log,
		components, technicians, spares)
	return &engineFixture{
		engine: engine,
		clock:  clock,
		svc:    svc,
		res:    &fakeReserver{reserved: map[string]bool{}},
	}
}

func quietSample(ts time.Time) domain.SensorSample {
	return domain.SensorSample{Vibration: 2, Temperature: 55, MotorLoad: 70, Timestamp: ts}
}

func (f *engineFixture) tick(t *testing.T, elapsed time.Duration, s domain.SensorSample) TickEvents {
	t.Helper()
	now := f.clock.Advance(elapsed)
	s.Timestamp = now
	ev, err := f.engine.Tick(now, elapsed, true, s, nil, f.res)
	require.NoError(t, err)
	return ev
}

func TestEngineWearAccrual(t *testing.T) {
	f := newEngineFixture(t, []ComponentSetup{
		{Name: "V-Blender Motor", InitialHealth: 100, WearPerHour: 0.5},
	}, nil)

	f.tick(t, 2*time.Hour, quietSample(time.Time{}))

	c := f.engine.Component("V-Blender Motor")
	require.NotNil(t, c)
	assert.InDelta(t, 99.0, c.Health, 1e-9)
	assert.Equal(t, domain.TrendStable, c.Trend)
}

func TestEngineWearStopsWhenLineIdle(t *testing.T) {
	f := newEngineFixture(t, []ComponentSetup{
		{Name: "V-Blender Motor", InitialHealth: 100, WearPerHour: 0.5},
	}, nil)

	now := f.clock.Advance(2 * time.Hour)
	_, err := f.engine.Tick(now, 2*time.Hour, false, quietSample(now), nil, f.res)
	require.NoError(t, err)

	assert.Equal(t, 100.0, f.engine.Component("V-Blender Motor").Health)
}

func TestEngineSustainedAnomalyFilter(t *testing.T) {
	f := newEngineFixture(t, []ComponentSetup{
		{Name: "V-Blender Motor", InitialHealth: 100, WearPerHour: 0.1},
	}, nil)

	spike := domain.SensorSample{Vibration: 8, Temperature: 55, MotorLoad: 70}

	// Two spikes: below the sustained window of 3, no anomaly yet.
	ev := f.tick(t, time.Minute, spike)
	assert.Empty(t, ev.Anomalies)
	ev = f.tick(t, time.Minute, spike)
	assert.Empty(t, ev.Anomalies)

	// Third consecutive spike crosses the window.
	ev = f.tick(t, time.Minute, spike)
	require.Len(t, ev.Anomalies, 1)
	assert.Equal(t, "Vibration Sensor", ev.Anomalies[0].Source)
	assert.Equal(t, domain.SeverityHigh, ev.Anomalies[0].Severity)
	assert.Len(t, f.engine.Anomalies(), 1)
}

func TestEngineSpikeResetClearsCount(t *testing.T) {
	f := newEngineFixture(t, []ComponentSetup{
		{Name: "V-Blender Motor", InitialHealth: 100, WearPerHour: 0.1},
	}, nil)

	spike := domain.SensorSample{Vibration: 8, Temperature: 55, MotorLoad: 70}

	f.tick(t, time.Minute, spike)
	f.tick(t, time.Minute, spike)
	f.tick(t, time.Minute, quietSample(time.Time{})) // resets the streak
	ev := f.tick(t, time.Minute, spike)
	assert.Empty(t, ev.Anomalies, "streak restarted after quiet sample")
}

func TestEngineOpensWorkOrderForWornComponent(t *testing.T) {
	f := newEngineFixture(t, []ComponentSetup{
		{Name: "V-Blender Motor", InitialHealth: 55, WearPerHour: 0.1,
			SpareID: "sp-motor-belt", ResourceID: "res-blender-1"},
	}, []domain.SparePart{
		{ID: "sp-motor-belt", Name: "Drive Belt", Quantity: 6, MinStock: 2, LeadTimeHours: 24, Vendor: "Kessler Drives"},
	})

	ev := f.tick(t, time.Minute, quietSample(time.Time{}))

	require.Len(t, ev.NewWorkOrders, 1)
	wo := ev.NewWorkOrders[0]
	assert.Equal(t, "wo-001", wo.ID)
	assert.Equal(t, "V-Blender Motor", wo.Component)
	assert.Equal(t, domain.MaintenanceGeneral, wo.Type, "stocked spare means general maintenance")
	assert.Equal(t, domain.WorkOrderScheduled, wo.Status)
	assert.Equal(t, domain.WorkPriorityHigh, wo.Priority)
	assert.Equal(t, "tech-002", wo.TechnicianID, "senior preferred for non-critical work")

	// Notifications go to the maintenance team.
	require.NotEmpty(t, wo.Notifications)
	assert.Equal(t, domain.NotifyMaintenanceTeam, wo.Notifications[0].Recipient)

	// No duplicate order while one is open.
	f.engine.lastAnalyze = time.Time{}
	ev = f.tick(t, time.Minute, quietSample(time.Time{}))
	assert.Empty(t, ev.NewWorkOrders)
}

func TestEngineCriticalAssignsSpecialistAndNotifiesSupervisor(t *testing.T) {
	f := newEngineFixture(t, []ComponentSetup{
		{Name: "Tablet Press Punch Set", InitialHealth: 25, WearPerHour: 0.1},
	}, nil)

	ev := f.tick(t, time.Minute, quietSample(time.Time{}))

	require.Len(t, ev.NewWorkOrders, 1)
	wo := ev.NewWorkOrders[0]
	assert.Equal(t, domain.WorkPriorityCritical, wo.Priority)
	assert.Equal(t, "tech-001", wo.TechnicianID, "specialist preferred for critical work")

	recipients := make([]string, 0, len(wo.Notifications))
	for _, n := range wo.Notifications {
		recipients = append(recipients, n.Recipient)
	}
	assert.Contains(t, recipients, domain.NotifyProductionSupervisor)
}

func TestEngineLowStockCreatesPurchaseOrder(t *testing.T) {
	f := newEngineFixture(t, []ComponentSetup{
		{Name: "V-Blender Motor", InitialHealth: 45, WearPerHour: 0.1, SpareID: "sp-motor-belt"},
	}, []domain.SparePart{
		{ID: "sp-motor-belt", Name: "Drive Belt", Quantity: 2, MinStock: 5, LeadTimeHours: 24, Vendor: "Kessler Drives"},
	})

	ev := f.tick(t, time.Minute, quietSample(time.Time{}))

	require.Len(t, ev.NewWorkOrders, 1)
	wo := ev.NewWorkOrders[0]
	assert.Equal(t, domain.MaintenanceSpareReplacement, wo.Type)
	assert.Equal(t, domain.WorkOrderScheduled, wo.Status,
		"stock of 2 still covers the single required unit")

	require.Len(t, ev.NewPurchaseOrders, 1)
	po := ev.NewPurchaseOrders[0]
	assert.Equal(t, "sp-motor-belt", po.SpareID)
	assert.Equal(t, wo.ID, po.WorkOrderID)
	assert.Equal(t, domain.PurchasePending, po.Status)
	assert.Equal(t, 3, po.Quantity, "restock to minimum")
}

func TestEngineZeroMinStockStillOrdersSpares(t *testing.T) {
	// MinStock 0 with nothing on hand: the below-minimum restock rule never
	// fires, but the order is uncoverable and must still get a purchase
	// order, or waiting-spares would never exit.
	f := newEngineFixture(t, []ComponentSetup{
		{Name: "V-Blender Motor", InitialHealth: 45, WearPerHour: 0, SpareID: "sp-motor-belt"},
	}, []domain.SparePart{
		{ID: "sp-motor-belt", Name: "Drive Belt", Quantity: 0, MinStock: 0, LeadTimeHours: 10, Vendor: "Kessler Drives"},
	})

	ev := f.tick(t, time.Minute, quietSample(time.Time{}))
	require.Len(t, ev.NewWorkOrders, 1)
	wo := ev.NewWorkOrders[0]
	require.Equal(t, domain.WorkOrderWaitingSpares, wo.Status)

	require.Len(t, ev.NewPurchaseOrders, 1)
	po := ev.NewPurchaseOrders[0]
	assert.Equal(t, "sp-motor-belt", po.SpareID)
	assert.Equal(t, wo.ID, po.WorkOrderID)
	assert.Equal(t, 1, po.Quantity, "covers the order's own requirement")

	// The delivery lands and the order unblocks.
	f.tick(t, 11*time.Hour, quietSample(time.Time{}))
	assert.Equal(t, domain.PurchaseReceived, po.Status)
	assert.NotEqual(t, domain.WorkOrderWaitingSpares, wo.Status)
}

func TestEnginePurchaseLifecycleUnblocksWorkOrder(t *testing.T) {
	f := newEngineFixture(t, []ComponentSetup{
		{Name: "V-Blender Motor", InitialHealth: 45, WearPerHour: 0, SpareID: "sp-motor-belt"},
	}, []domain.SparePart{
		{ID: "sp-motor-belt", Name: "Drive Belt", Quantity: 0, MinStock: 1, LeadTimeHours: 10, Vendor: "Kessler Drives"},
	})

	ev := f.tick(t, time.Minute, quietSample(time.Time{}))
	require.Len(t, ev.NewWorkOrders, 1)
	wo := ev.NewWorkOrders[0]
	require.Equal(t, domain.WorkOrderWaitingSpares, wo.Status)
	po := ev.NewPurchaseOrders[0]

	// 10h lead time: 3h in the order is shipped-bound (25%..75% → ordered).
	f.tick(t, 3*time.Hour, quietSample(time.Time{}))
	assert.Equal(t, domain.PurchaseOrdered, po.Status)

	f.tick(t, 5*time.Hour, quietSample(time.Time{}))
	assert.Equal(t, domain.PurchaseShipped, po.Status)

	// Past the full lead time: received, stock lands, work order unblocks.
	f.tick(t, 3*time.Hour, quietSample(time.Time{}))
	assert.Equal(t, domain.PurchaseReceived, po.Status)
	assert.Equal(t, 1, f.engine.Spare("sp-motor-belt").Quantity)
	assert.NotEqual(t, domain.WorkOrderWaitingSpares, wo.Status)
}

func TestEngineWorkOrderRunsToCompletion(t *testing.T) {
	f := newEngineFixture(t, []ComponentSetup{
		{Name: "V-Blender Motor", InitialHealth: 55, WearPerHour: 0.1,
			SpareID: "sp-motor-belt", ResourceID: "res-blender-1"},
	}, []domain.SparePart{
		{ID: "sp-motor-belt", Name: "Drive Belt", Quantity: 6, MinStock: 2, LeadTimeHours: 24, Vendor: "Kessler Drives"},
	})

	ev := f.tick(t, time.Minute, quietSample(time.Time{}))
	require.Len(t, ev.NewWorkOrders, 1)
	wo := ev.NewWorkOrders[0]

	// Scheduled time is now (no idle-window service): next tick starts it
	// and reserves the blender.
	f.tick(t, time.Minute, quietSample(time.Time{}))
	assert.Equal(t, domain.WorkOrderInProgress, wo.Status)
	assert.True(t, f.res.reserved["res-blender-1"])
	require.NotNil(t, wo.StartedAt)

	// General maintenance takes 2h: after that the order completes, the
	// resource frees, health recovers, technician is released.
	f.tick(t, 2*time.Hour, quietSample(time.Time{}))
	assert.Equal(t, domain.WorkOrderCompleted, wo.Status)
	assert.False(t, f.res.reserved["res-blender-1"])

	c := f.engine.Component("V-Blender Motor")
	assert.Equal(t, 95.0, c.Health)
	assert.Equal(t, domain.TrendStable, c.Trend)
	assert.Equal(t, 0.0, c.FailureProbability)

	for _, tech := range f.engine.Technicians() {
		assert.True(t, tech.Available)
		assert.Empty(t, tech.CurrentTask)
	}
}

func TestEngineResourceContentionDelaysStart(t *testing.T) {
	f := newEngineFixture(t, []ComponentSetup{
		{Name: "V-Blender Motor", InitialHealth: 55, WearPerHour: 0.1, ResourceID: "res-blender-1"},
	}, nil)
	f.res.denied = true

	ev := f.tick(t, time.Minute, quietSample(time.Time{}))
	require.Len(t, ev.NewWorkOrders, 1)
	wo := ev.NewWorkOrders[0]

	f.tick(t, time.Minute, quietSample(time.Time{}))
	assert.Equal(t, domain.WorkOrderScheduled, wo.Status, "stays scheduled while the line is busy")

	f.res.denied = false
	f.tick(t, time.Minute, quietSample(time.Time{}))
	assert.Equal(t, domain.WorkOrderInProgress, wo.Status)
}

func TestEngineServiceFailurePreservesState(t *testing.T) {
	f := newEngineFixture(t, []ComponentSetup{
		{Name: "V-Blender Motor", InitialHealth: 55, WearPerHour: 0.1},
	}, nil)
	f.svc.fail = true

	now := f.clock.Advance(time.Minute)
	_, err := f.engine.Tick(now, time.Minute, true, quietSample(now), nil, f.res)

	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeServiceFailure))
	assert.Empty(t, f.engine.WorkOrders(), "failed analysis opens nothing")

	// Recovery: the same analysis succeeds next tick.
	f.svc.fail = false
	ev := f.tick(t, time.Minute, quietSample(time.Time{}))
	assert.Len(t, ev.NewWorkOrders, 1)
}
