// Package sim runs the plant decision engine: one virtual-clock tick drives
// the sensor source, the batch state machine, the scheduler, the maintenance
// engine and the yield engine in a fixed order, so later subsystems observe
// the current tick's updated state from earlier ones.
//
// Control commands are consumed from a thread-safe queue at tick start.
// Nothing in the loop is fatal: service failures land in an error slot with
// prior state preserved, invalid commands are rejected at the boundary.
package sim

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/calebmcnary/pharmline/internal/agents"
	"github.com/calebmcnary/pharmline/internal/approval"
	"github.com/calebmcnary/pharmline/internal/batch"
	"github.com/calebmcnary/pharmline/internal/config"
	"github.com/calebmcnary/pharmline/internal/domain"
	"github.com/calebmcnary/pharmline/internal/maint"
	"github.com/calebmcnary/pharmline/internal/sched"
	"github.com/calebmcnary/pharmline/internal/yield"
)

// Config assembles a simulation. Plant is required; everything else has a
// production default.
type Config struct {
	Plant *config.Plant

	// Seed drives every random stream. The same seed and command sequence
	// produce an identical run.
	Seed int64

	// Start is the simulated wall-clock origin. Zero selects the current
	// time; deterministic runs should pin it.
	Start time.Time

	// TickMinutes is the simulated minutes one tick advances at 1x speed.
	// Zero selects 1.
	TickMinutes float64

	// MaintService / YieldService override the in-process service boundary,
	// e.g. with an agents.Client. Nil selects agents.Local.
	MaintService maint.Service
	YieldService yield.Service

	// Authorizer backs the approval gate. Nil selects the static credential
	// table.
	Authorizer approval.Authorizer

	IDGen domain.IDGenerator
	Log   *slog.Logger
}

// Approval records a recommendation sign-off committed through the gate.
type Approval struct {
	RecommendationID string
	Role             approval.Role
	At               time.Time
}

// TickReport is what one tick produced, for persistence and tracing.
type TickReport struct {
	Tick    int
	Time    time.Time
	Elapsed time.Duration

	// Skipped is set when the tick ran while paused: commands were consumed
	// but no time passed and no subsystem moved.
	Skipped bool

	// BatchID and BatchNumber identify the live batch, when one exists.
	BatchID     string
	BatchNumber string

	Sample    domain.SensorSample
	Batch     batch.TickResult
	Maint     maint.TickEvents
	Yield     yield.TickEvents
	Approvals []Approval
	Err       string
}

// Simulation is the single-writer tick loop over all subsystems.
//
// Thread-safety: Enqueue may be called from any goroutine; everything else
// belongs to the loop's goroutine.
type Simulation struct {
	cfg   Config
	log   *slog.Logger
	queue *commandQueue

	clock     *VirtualClock
	rng       *rand.Rand
	sensors   *Sensors
	machine   *batch.Machine
	scheduler *sched.Scheduler
	resources *sched.Table
	maintEng  *maint.Engine
	yieldEng  *yield.Engine
	gate      *approval.Gate

	schedule       []domain.ScheduledBatch
	selectedRecipe string
	batchSeq       int
	tick           int
	paused         bool
	lastSample     domain.SensorSample
	lastError      string
	approvals      []Approval
}

// New assembles a simulation from the config.
func New(cfg Config) (*Simulation, error) {
	if cfg.Plant == nil {
		return nil, errors.New("sim: plant config required")
	}
	if cfg.Start.IsZero() {
		cfg.Start = time.Now().UTC()
	}
	if cfg.TickMinutes <= 0 {
		cfg.TickMinutes = 1
	}
	if cfg.IDGen == nil {
		cfg.IDGen = domain.UUIDGenerator{}
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	if cfg.Authorizer == nil {
		cfg.Authorizer = approval.NewStaticAuthorizer(nil)
	}

	s := &Simulation{
		cfg:   cfg,
		log:   cfg.Log,
		queue: newCommandQueue(),
	}
	s.init()
	return s, nil
}

// init builds (or rebuilds, on reset) every subsystem from the config.
func (s *Simulation) init() {
	plant := s.cfg.Plant

	s.clock = NewVirtualClock(s.cfg.Start, s.cfg.TickMinutes)
	s.rng = rand.New(rand.NewSource(s.cfg.Seed))
	s.sensors = NewSensors(s.rng)
	s.machine = batch.NewMachine(s.cfg.IDGen)
	s.scheduler = sched.New(plant.HorizonHours, s.cfg.IDGen)
	s.resources = sched.NewTable(plant.Resources)
	s.gate = approval.NewGate(s.cfg.Authorizer, s.log)

	maintSvc := s.cfg.MaintService
	yieldSvc := s.cfg.YieldService
	if maintSvc == nil || yieldSvc == nil {
		local := agents.NewLocal(s.scheduler, s.cfg.IDGen, s.Now)
		if maintSvc == nil {
			maintSvc = local
		}
		if yieldSvc == nil {
			yieldSvc = local
		}
	}

	setups := make([]maint.ComponentSetup, 0, len(plant.Components))
	for _, c := range plant.Components {
		setups = append(setups, maint.ComponentSetup{
			Name:          c.Name,
			InitialHealth: c.InitialHealth,
			WearPerHour:   c.WearPerHour,
			SpareID:       c.SpareID,
			ResourceID:    c.ResourceID,
		})
	}
	s.maintEng = maint.NewEngine(maint.EngineConfig{
		Thresholds: maint.Thresholds{
			Vibration:   plant.Thresholds.Vibration,
			Temperature: plant.Thresholds.Temperature,
			MotorLoad:   plant.Thresholds.MotorLoad,
		},
	}, maintSvc, s.cfg.IDGen, s.log, setups, plant.Technicians, plant.Spares)

	s.yieldEng = yield.NewEngine(yieldSvc, s.cfg.IDGen, s.log, s.rng,
		plant.SOPLimits, plant.ProductSpecs)

	s.schedule = s.scheduler.Schedule(s.cfg.Start, plant.Orders, s.resources.All())
	s.selectedRecipe = ""
	if len(plant.Recipes) > 0 {
		s.selectedRecipe = plant.Recipes[0].ID
	}
	s.batchSeq = 0
	s.tick = 0
	s.paused = false
	s.lastSample = domain.SensorSample{}
	s.lastError = ""
	s.approvals = nil
}

// Enqueue queues a control command for the next tick. Safe from any
// goroutine.
func (s *Simulation) Enqueue(c Command) {
	s.queue.Enqueue(c)
}

// Now returns the current simulated time.
func (s *Simulation) Now() time.Time { return s.clock.Now() }

// TickCount returns the number of completed (non-skipped) ticks.
func (s *Simulation) TickCount() int { return s.tick }

// Paused reports whether ticks are currently skipped.
func (s *Simulation) Paused() bool { return s.paused }

// Err returns the error slot's content from the last tick, empty when the
// tick was clean.
func (s *Simulation) Err() string { return s.lastError }

// Schedule returns the live production schedule.
func (s *Simulation) Schedule() []domain.ScheduledBatch { return s.schedule }

// Machine exposes the batch state machine.
func (s *Simulation) Machine() *batch.Machine { return s.machine }

// Maintenance exposes the maintenance engine.
func (s *Simulation) Maintenance() *maint.Engine { return s.maintEng }

// Yield exposes the yield engine.
func (s *Simulation) Yield() *yield.Engine { return s.yieldEng }

// Resources exposes the shared resource table.
func (s *Simulation) Resources() *sched.Table { return s.resources }

// Tick consumes pending commands and advances every subsystem by one tick.
//
// Fixed order: sensors, batch state machine, scheduler, maintenance engine,
// yield engine. While paused, commands are still consumed but time does not
// advance and no subsystem moves, so step progress and sample windows
// survive a pause untouched.
func (s *Simulation) Tick() TickReport {
	s.lastError = ""

	for _, c := range s.queue.Drain() {
		s.apply(c)
	}

	if s.paused {
		return TickReport{
			Tick:      s.tick,
			Time:      s.clock.Now(),
			Skipped:   true,
			Approvals: s.drainApprovals(),
			Err:       s.lastError,
		}
	}

	elapsed := s.clock.Advance()
	s.tick++
	now := s.clock.Now()

	report := TickReport{Tick: s.tick, Time: now, Elapsed: elapsed}

	sample := s.sensors.Sample(now)
	s.lastSample = sample
	report.Sample = sample

	report.Batch = s.machine.Tick(elapsed.Minutes())
	if b := s.machine.Batch(); b != nil {
		report.BatchID = b.ID
		report.BatchNumber = b.BatchNumber
	}
	if report.Batch.DischargeCompleted {
		s.yieldEng.Activate(s.machine.Batch().BatchNumber)
	}

	s.advanceSchedule(now)

	b := s.machine.Batch()
	lineActive := b != nil && b.Active() && !s.machine.Held()

	maintEvents, err := s.maintEng.Tick(now, elapsed, lineActive, sample, s.schedule, s.resources)
	if err != nil {
		s.fail(err)
	}
	report.Maint = maintEvents

	yieldEvents, err := s.yieldEng.Tick(now)
	if err != nil {
		s.fail(err)
	}
	report.Yield = yieldEvents

	report.Approvals = s.drainApprovals()
	report.Err = s.lastError
	return report
}

// drainApprovals hands the sign-offs committed since the last report to the
// caller.
func (s *Simulation) drainApprovals() []Approval {
	out := s.approvals
	s.approvals = nil
	return out
}

// advanceSchedule drives scheduled batches through queued, in-progress and
// completed as simulated time passes their start and end.
//
// Completions run first so equipment they free is visible to starts within
// the same tick, then resources whose recovery time has passed flip back to
// available. Going in-progress reserves the batch's resources atomically
// with the status flip; contention (a work order holding the blender)
// pushes the entry's interval to the blocker's recovery time and clear of
// every other live entry on the same equipment, or marks it delayed when no
// such slot exists inside the horizon.
func (s *Simulation) advanceSchedule(now time.Time) {
	horizonEnd := now.Add(s.scheduler.Horizon())

	for i := range s.schedule {
		sb := &s.schedule[i]
		if sb.Status == domain.ScheduleInProgress && !now.Before(sb.End) {
			sb.Status = domain.ScheduleCompleted
			s.resources.Release(sb.ResourceIDs)
			s.log.Info("batch completed", "batch", sb.BatchNumber)
		}
	}

	s.resources.Refresh(now)

	for i := range s.schedule {
		sb := &s.schedule[i]
		if sb.Status != domain.ScheduleQueued || now.Before(sb.Start) {
			continue
		}
		if err := s.resources.Reserve(sb.ResourceIDs, sb.End); err != nil {
			s.deferBatch(sb, now, horizonEnd)
			continue
		}
		sb.Status = domain.ScheduleInProgress
		s.log.Info("batch started", "batch", sb.BatchNumber, "line", sb.Line)
	}
}

// deferBatch pushes a blocked entry to the latest recovery time among its
// busy resources, keeping its duration, then clear of every other live
// entry it shares a resource or line with. No feasible slot inside the
// horizon marks it delayed.
func (s *Simulation) deferBatch(sb *domain.ScheduledBatch, now, horizonEnd time.Time) {
	duration := sb.End.Sub(sb.Start)
	next := now
	for _, id := range sb.ResourceIDs {
		r := s.resources.Get(id)
		if r == nil || r.Available {
			continue
		}
		if r.NextAvailable == nil {
			sb.Status = domain.ScheduleDelayed
			return
		}
		if r.NextAvailable.After(next) {
			next = *r.NextAvailable
		}
	}
	next = s.clearOf(sb, next, duration)
	if next.After(horizonEnd) {
		sb.Status = domain.ScheduleDelayed
		return
	}
	if next.After(sb.Start) {
		sb.Start = next
		sb.End = next.Add(duration)
	}
}

// clearOf slides a candidate start past every queued or in-progress entry
// that shares a resource or line with sb and would overlap [start,
// start+duration). Each pass restarts the scan: landing after one blocker
// can collide with another.
func (s *Simulation) clearOf(sb *domain.ScheduledBatch, start time.Time, duration time.Duration) time.Time {
	for moved := true; moved; {
		moved = false
		end := start.Add(duration)
		for i := range s.schedule {
			other := &s.schedule[i]
			if other.ID == sb.ID || !contendsWith(sb, other) {
				continue
			}
			if sched.Overlaps(start, end, other.Start, other.End) {
				start = other.End
				moved = true
				break
			}
		}
	}
	return start
}

// contendsWith reports whether two entries can hold the same equipment: a
// shared resource ID or the same line, with only queued and in-progress
// entries contending.
func contendsWith(a, b *domain.ScheduledBatch) bool {
	if b.Status != domain.ScheduleQueued && b.Status != domain.ScheduleInProgress {
		return false
	}
	for _, x := range a.ResourceIDs {
		for _, y := range b.ResourceIDs {
			if x == y {
				return true
			}
		}
	}
	return a.Line != "" && a.Line == b.Line
}

// fail records a failure into the error slot. First error of the tick wins;
// later ones are logged only.
func (s *Simulation) fail(err error) {
	s.log.Error("tick error", "err", err)
	if s.lastError == "" {
		s.lastError = err.Error()
	}
}

// apply executes one control command. Invalid transitions are rejected
// without mutation and without occupying the error slot; authorization and
// lookup failures are reported through it.
func (s *Simulation) apply(c Command) {
	switch c.Type {
	case CmdStart:
		recipeID := c.RecipeID
		if recipeID == "" {
			recipeID = s.selectedRecipe
		}
		r := s.cfg.Plant.Recipe(recipeID)
		if r == nil {
			s.fail(fmt.Errorf("unknown recipe %q", recipeID))
			return
		}
		number := fmt.Sprintf("B-%d-%03d", s.clock.Now().Year(), s.batchSeq+1)
		if _, err := s.machine.Start(*r, number, s.clock.Now()); err != nil {
			s.log.Debug("command rejected", "command", c.Type, "err", err)
			return
		}
		s.batchSeq++

	case CmdStop:
		s.yieldEng.Deactivate()
		s.machine.Reset()

	case CmdSuspend:
		if err := s.machine.Suspend(); err != nil {
			s.log.Debug("command rejected", "command", c.Type, "err", err)
		}

	case CmdResume:
		if err := s.machine.Resume(); err != nil {
			s.log.Debug("command rejected", "command", c.Type, "err", err)
		}

	case CmdEmergencyStop:
		if err := s.machine.EmergencyStop(); err != nil {
			s.log.Debug("command rejected", "command", c.Type, "err", err)
			return
		}
		s.yieldEng.Deactivate()
		s.log.Warn("emergency stop engaged")

	case CmdEmergencyReset:
		if err := s.machine.EmergencyReset(); err != nil {
			s.log.Debug("command rejected", "command", c.Type, "err", err)
		}

	case CmdSelectRecipe:
		if s.cfg.Plant.Recipe(c.RecipeID) == nil {
			s.fail(fmt.Errorf("unknown recipe %q", c.RecipeID))
			return
		}
		s.selectedRecipe = c.RecipeID

	case CmdSetSpeed:
		s.clock.SetSpeed(c.Speed)

	case CmdTogglePause:
		s.paused = !s.paused

	case CmdResetSimulation:
		s.init()

	case CmdInjectScenario:
		switch c.Scenario {
		case ScenarioWeightDrift:
			s.yieldEng.InjectOffset(domain.ParamWeight, WeightDriftDelta)
		case ScenarioHardnessDrift:
			s.yieldEng.InjectOffset(domain.ParamHardness, HardnessDriftDelta)
		default:
			if !s.sensors.Inject(c.Scenario) {
				s.fail(fmt.Errorf("unknown scenario %q", c.Scenario))
			}
		}

	case CmdApproveRecommendation:
		s.approveRecommendation(c)

	case CmdTriggerAnalysis:
		s.maintEng.ForceAnalysis()

	default:
		s.fail(fmt.Errorf("unknown command %q", c.Type))
	}
}

// approveRecommendation routes an approval through the gate: the change's
// magnitude selects the required role, and only a successful authentication
// reaches the yield engine.
func (s *Simulation) approveRecommendation(c Command) {
	rec := s.yieldEng.Recommendation(c.RecommendationID)
	if rec == nil {
		s.fail(&domain.SimError{
			Code:    domain.ErrCodeInvalidTransition,
			Message: "unknown recommendation",
			Subject: c.RecommendationID,
		})
		return
	}

	role := s.gate.RequiredRole(yield.Magnitude(*rec))
	err := s.gate.Commit(role, c.Credentials, func() error {
		_, err := s.yieldEng.ApproveRecommendation(c.RecommendationID, s.clock.Now())
		return err
	})
	if err != nil {
		s.fail(err)
		return
	}
	s.approvals = append(s.approvals, Approval{
		RecommendationID: c.RecommendationID,
		Role:             role,
		At:               s.clock.Now(),
	})
}
