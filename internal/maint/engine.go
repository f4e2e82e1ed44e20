package maint

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/calebmcnary/pharmline/internal/domain"
)

// Service is the maintenance service boundary the engine calls through.
// agents.Local delegates to the pure functions in this package; agents.Client
// reaches a remote service.
type Service interface {
	AnalyzeComponent(component domain.ComponentHealth, spare *domain.SparePart, schedule []domain.ScheduledBatch) (domain.MaintenanceDecision, error)
	PredictRUL(in RULInput) (domain.RULPrediction, error)
	DetectAnomalies(samples []domain.SensorSample, th Thresholds) ([]domain.Anomaly, error)
	FindIdleWindow(schedule []domain.ScheduledBatch, durationHours float64) (*domain.Window, error)
}

// ResourceReserver is the slice of the scheduler's resource table the engine
// needs: taking equipment out of service for the duration of a work order and
// handing it back, atomically with the work-order status change.
type ResourceReserver interface {
	Reserve(ids []string, until time.Time) error
	Release(ids []string)
}

// componentState tracks one monitored component plus its plant links.
type componentState struct {
	health      domain.ComponentHealth
	wearPerHour float64
	spareID     string
	resourceID  string
}

// EngineConfig sets up the maintenance engine.
type EngineConfig struct {
	Thresholds Thresholds
	// SustainedWindow is the number of consecutive over-threshold samples
	// before an anomaly is raised. Zero selects the default of 3.
	SustainedWindow int
	// AnalysisIntervalHours is the cadence of component analysis in
	// simulated time. Zero selects the default of 1h.
	AnalysisIntervalHours float64
}

// ComponentSetup declares one component for engine construction.
type ComponentSetup struct {
	Name          string
	InitialHealth float64
	WearPerHour   float64
	SpareID       string
	ResourceID    string
}

// TickEvents reports what one engine tick produced, for logging and
// persistence.
type TickEvents struct {
	Anomalies         []domain.Anomaly
	NewWorkOrders     []*domain.WorkOrder
	AdvancedOrders    []*domain.WorkOrder
	NewPurchaseOrders []*domain.PurchaseOrder
	AdvancedPurchases []*domain.PurchaseOrder
}

// Engine runs the component monitoring loop and the work-order and
// purchase-order lifecycles.
//
// Thread-safety: none. The simulation loop is the single writer.
type Engine struct {
	cfg         EngineConfig
	svc         Service
	idGen       domain.IDGenerator
	log         *slog.Logger
	components  []*componentState
	technicians []*domain.Technician
	spares      []*domain.SparePart
	workOrders  []*domain.WorkOrder
	purchases   []*domain.PurchaseOrder
	anomalies   []domain.Anomaly
	lastAnalyze time.Time
	// overCount tracks consecutive over-threshold samples per sensor for
	// the sustained-window anomaly filter.
	overCount map[string]int
}

// NewEngine builds the engine from plant setup data.
func NewEngine(
	cfg EngineConfig,
	svc Service,
	idGen domain.IDGenerator,
	log *slog.Logger,
	components []ComponentSetup,
	technicians []domain.Technician,
	spares []domain.SparePart,
) *Engine {
	if cfg.SustainedWindow <= 0 {
		cfg.SustainedWindow = 3
	}
	if cfg.AnalysisIntervalHours <= 0 {
		cfg.AnalysisIntervalHours = 1
	}
	if log == nil {
		log = slog.Default()
	}

	e := &Engine{cfg: cfg, svc: svc, idGen: idGen, log: log, overCount: map[string]int{}}
	for _, c := range components {
		health := c.InitialHealth
		if health <= 0 {
			health = 100
		}
		e.components = append(e.components, &componentState{
			health: domain.ComponentHealth{
				Name:   c.Name,
				Health: health,
				Trend:  domain.TrendStable,
			},
			wearPerHour: c.WearPerHour,
			spareID:     c.SpareID,
			resourceID:  c.ResourceID,
		})
	}
	for i := range technicians {
		t := technicians[i]
		e.technicians = append(e.technicians, &t)
	}
	for i := range spares {
		s := spares[i]
		e.spares = append(e.spares, &s)
	}
	return e
}

// Components returns the current component health snapshot.
func (e *Engine) Components() []domain.ComponentHealth {
	out := make([]domain.ComponentHealth, 0, len(e.components))
	for _, c := range e.components {
		out = append(out, c.health)
	}
	return out
}

// Component returns the named component's health, or nil.
func (e *Engine) Component(name string) *domain.ComponentHealth {
	for _, c := range e.components {
		if c.health.Name == name {
			return &c.health
		}
	}
	return nil
}

// WorkOrders returns all work orders, newest last.
func (e *Engine) WorkOrders() []*domain.WorkOrder { return e.workOrders }

// PurchaseOrders returns all purchase orders, newest last.
func (e *Engine) PurchaseOrders() []*domain.PurchaseOrder { return e.purchases }

// Anomalies returns the append-only anomaly log.
func (e *Engine) Anomalies() []domain.Anomaly { return e.anomalies }

// Technicians returns the technician roster.
func (e *Engine) Technicians() []*domain.Technician { return e.technicians }

// Spares returns the spare-part inventory.
func (e *Engine) Spares() []*domain.SparePart { return e.spares }

// Spare returns the spare with the given ID, or nil.
func (e *Engine) Spare(id string) *domain.SparePart {
	for _, s := range e.spares {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// ForceAnalysis makes the next tick run component analysis regardless of the
// configured cadence. Backs the operator's trigger-analysis command.
func (e *Engine) ForceAnalysis() {
	e.lastAnalyze = time.Time{}
}

// Tick advances the maintenance engine by elapsed simulated time.
//
// Order within the tick: wear accrual, sustained anomaly detection, periodic
// component analysis (which may open work orders), then lifecycle advancement
// of open work orders and purchase orders. A service failure aborts the
// analysis phase only; prior state is preserved and the error is returned for
// the caller's error slot.
func (e *Engine) Tick(
	now time.Time,
	elapsed time.Duration,
	lineActive bool,
	sample domain.SensorSample,
	schedule []domain.ScheduledBatch,
	resources ResourceReserver,
) (TickEvents, error) {
	var ev TickEvents

	e.accrueWear(elapsed, lineActive, sample)

	anomalies, err := e.detectSustained(sample)
	if err != nil {
		return ev, err
	}
	ev.Anomalies = anomalies

	var svcErr error
	if e.lastAnalyze.IsZero() || now.Sub(e.lastAnalyze) >= time.Duration(e.cfg.AnalysisIntervalHours*float64(time.Hour)) {
		created, err := e.analyzeAll(now, sample, schedule)
		if err != nil {
			svcErr = err
		} else {
			e.lastAnalyze = now
			ev.NewWorkOrders = created
			for _, wo := range created {
				ev.NewPurchaseOrders = append(ev.NewPurchaseOrders, e.purchasesFor(wo.ID)...)
			}
		}
	}

	ev.AdvancedPurchases = e.advancePurchases(now)
	ev.AdvancedOrders = e.advanceWorkOrders(now, resources)

	return ev, svcErr
}

// accrueWear decays component health while the line runs. Sensor stress
// accelerates wear with the same factors RUL prediction uses, and the trend
// tracks absolute health: under 40 critical, under 70 declining.
func (e *Engine) accrueWear(elapsed time.Duration, lineActive bool, sample domain.SensorSample) {
	if !lineActive || elapsed <= 0 {
		return
	}
	hours := elapsed.Hours()
	th := e.cfg.Thresholds.withDefaults()

	factor := 1.0
	if sample.Vibration > th.Vibration {
		factor *= 1.5
	}
	if sample.Temperature > th.Temperature {
		factor *= 1.3
	}
	if sample.MotorLoad > th.MotorLoad {
		factor *= 1.4
	}

	for _, c := range e.components {
		if wo := e.openOrderFor(c.health.Name); wo != nil && wo.Status == domain.WorkOrderInProgress {
			continue // under maintenance, no wear
		}
		c.health.Health -= c.wearPerHour * factor * hours
		if c.health.Health < 0 {
			c.health.Health = 0
		}
		switch {
		case c.health.Health < 40:
			c.health.Trend = domain.TrendCritical
		case c.health.Health < 70:
			c.health.Trend = domain.TrendDeclining
		default:
			c.health.Trend = domain.TrendStable
		}
	}
}

// detectSustained applies the sustained-window filter before the service's
// threshold detector runs: a single spike is noise, N consecutive
// over-threshold samples are an anomaly.
func (e *Engine) detectSustained(sample domain.SensorSample) ([]domain.Anomaly, error) {
	counts := e.overCount
	th := e.cfg.Thresholds.withDefaults()

	over := map[string]bool{
		"vibration":   sample.Vibration > th.Vibration,
		"temperature": sample.Temperature > th.Temperature,
		"motorLoad":   sample.MotorLoad > th.MotorLoad,
	}

	sustained := false
	for sensor, exceeded := range over {
		if !exceeded {
			counts[sensor] = 0
			continue
		}
		counts[sensor]++
		if counts[sensor] == e.cfg.SustainedWindow {
			sustained = true
		}
	}
	if !sustained {
		return nil, nil
	}

	anomalies, err := e.svc.DetectAnomalies([]domain.SensorSample{sample}, e.cfg.Thresholds)
	if err != nil {
		return nil, &domain.SimError{
			Code:    domain.ErrCodeServiceFailure,
			Message: "anomaly detection unavailable",
			Err:     err,
		}
	}
	e.anomalies = append(e.anomalies, anomalies...)
	for _, a := range anomalies {
		e.log.Info("anomaly detected",
			"id", a.ID, "source", a.Source, "severity", a.Severity)
	}
	return anomalies, nil
}

// analyzeAll runs the decision engine over every component without an open
// work order and opens work orders for positive decisions.
func (e *Engine) analyzeAll(now time.Time, sample domain.SensorSample, schedule []domain.ScheduledBatch) ([]*domain.WorkOrder, error) {
	var created []*domain.WorkOrder
	for _, c := range e.components {
		if e.openOrderFor(c.health.Name) != nil {
			continue
		}

		pred, err := e.svc.PredictRUL(RULInput{
			Component:        c.health.Name,
			CurrentHealth:    c.health.Health,
			Vibration:        sample.Vibration,
			TemperatureDelta: sample.Temperature - TemperatureThreshold + 10,
			MotorLoadAvg:     sample.MotorLoad,
		})
		if err != nil {
			return created, &domain.SimError{
				Code:    domain.ErrCodeServiceFailure,
				Message: "RUL prediction unavailable",
				Subject: c.health.Name,
				Err:     err,
			}
		}
		c.health.RULHours = pred.PredictedRUL
		c.health.FailureProbability = pred.FailureProbability
		failureAt := pred.PredictedFailureDate
		c.health.PredictedFailure = &failureAt

		decision, err := e.svc.AnalyzeComponent(c.health, e.Spare(c.spareID), schedule)
		if err != nil {
			return created, &domain.SimError{
				Code:    domain.ErrCodeServiceFailure,
				Message: "component analysis unavailable",
				Subject: c.health.Name,
				Err:     err,
			}
		}
		if !decision.RequiresMaintenance {
			continue
		}
		created = append(created, e.openWorkOrder(now, c, decision))
	}
	return created, nil
}

// openWorkOrder creates the work order for a positive decision: technician
// assignment, spare requirements with purchase-order fallback, notifications.
func (e *Engine) openWorkOrder(now time.Time, c *componentState, d domain.MaintenanceDecision) *domain.WorkOrder {
	wo := &domain.WorkOrder{
		ID:             e.idGen.NewID(),
		Component:      c.health.Name,
		Type:           d.Type,
		Priority:       d.Priority,
		EstimatedHours: d.EstimatedHours,
		CreatedAt:      now,
		Instructions:   d.Reasoning,
	}

	if d.SuggestedTime != nil {
		wo.ScheduledAt = d.SuggestedTime
	} else {
		t := now
		wo.ScheduledAt = &t
	}

	if tech := e.assignTechnician(wo); tech != nil {
		wo.TechnicianID = tech.ID
		tech.Available = false
		tech.CurrentTask = wo.ID
	}

	wo.Status = domain.WorkOrderScheduled
	if d.Type == domain.MaintenanceSpareReplacement && c.spareID != "" {
		wo.Requirements = []domain.SpareRequirement{{SpareID: c.spareID, Quantity: 1}}
		short := e.shortfall(wo)
		s := e.Spare(c.spareID)
		// An uncoverable requirement must always put a purchase order on
		// the way: waiting-spares exits only through a delivery. Stock below
		// minimum restocks even when this order is still coverable.
		if short > 0 || (s != nil && s.Quantity < s.MinStock) {
			e.createPurchaseOrder(now, wo, c.spareID, short)
		}
		if short > 0 {
			wo.Status = domain.WorkOrderWaitingSpares
		}
	}

	e.notify(wo, now, domain.NotifyMaintenanceTeam,
		fmt.Sprintf("Work order %s opened for %s (%s, priority %s)", wo.ID, wo.Component, wo.Type, wo.Priority))
	if wo.Priority == domain.WorkPriorityCritical {
		e.notify(wo, now, domain.NotifyProductionSupervisor,
			fmt.Sprintf("Critical maintenance required on %s", wo.Component))
	}

	e.workOrders = append(e.workOrders, wo)
	e.log.Info("work order created",
		"id", wo.ID, "component", wo.Component, "type", wo.Type,
		"priority", wo.Priority, "status", wo.Status)
	return wo
}

func (e *Engine) notify(wo *domain.WorkOrder, now time.Time, recipient, message string) {
	wo.Notifications = append(wo.Notifications, domain.Notification{
		Recipient: recipient,
		Message:   message,
		SentAt:    now,
	})
}

// assignTechnician picks the best available technician: specialist for
// critical work, senior otherwise, any available as fallback.
func (e *Engine) assignTechnician(wo *domain.WorkOrder) *domain.Technician {
	preferred := domain.SkillSenior
	if wo.Priority == domain.WorkPriorityCritical {
		preferred = domain.SkillSpecialist
	}

	var fallback *domain.Technician
	for _, t := range e.technicians {
		if !t.Available {
			continue
		}
		if t.Skill == preferred {
			return t
		}
		if fallback == nil {
			fallback = t
		}
	}
	return fallback
}

// shortfall returns the total missing quantity across a work order's spare
// requirements.
func (e *Engine) shortfall(wo *domain.WorkOrder) int {
	missing := 0
	for _, req := range wo.Requirements {
		s := e.Spare(req.SpareID)
		if s == nil {
			missing += req.Quantity
			continue
		}
		if s.Quantity < req.Quantity {
			missing += req.Quantity - s.Quantity
		}
	}
	return missing
}

func (e *Engine) createPurchaseOrder(now time.Time, wo *domain.WorkOrder, spareID string, qty int) {
	s := e.Spare(spareID)
	vendor := ""
	lead := 48.0
	restock := qty
	if s != nil {
		vendor = s.Vendor
		lead = s.LeadTimeHours
		// Restock to minimum plus the order's own need.
		if deficit := s.MinStock - s.Quantity; deficit > restock {
			restock = deficit
		}
	}

	po := &domain.PurchaseOrder{
		ID:               e.idGen.NewID(),
		SpareID:          spareID,
		Quantity:         restock,
		Vendor:           vendor,
		Status:           domain.PurchasePending,
		CreatedAt:        now,
		ExpectedDelivery: now.Add(time.Duration(lead * float64(time.Hour))),
		WorkOrderID:      wo.ID,
	}
	e.purchases = append(e.purchases, po)
	e.log.Info("purchase order created",
		"id", po.ID, "spare", po.SpareID, "quantity", po.Quantity, "vendor", po.Vendor)
}

func (e *Engine) purchasesFor(workOrderID string) []*domain.PurchaseOrder {
	var out []*domain.PurchaseOrder
	for _, po := range e.purchases {
		if po.WorkOrderID == workOrderID {
			out = append(out, po)
		}
	}
	return out
}

// advancePurchases moves purchase orders through their lifecycle as lead time
// elapses: approved at 10%, ordered at 25%, shipped at 75%, received at 100%,
// when the stock lands and waiting work orders re-check their requirements.
func (e *Engine) advancePurchases(now time.Time) []*domain.PurchaseOrder {
	var advanced []*domain.PurchaseOrder
	for _, po := range e.purchases {
		if po.Status == domain.PurchaseReceived {
			continue
		}
		lead := po.ExpectedDelivery.Sub(po.CreatedAt)
		progress := 1.0
		if lead > 0 {
			progress = float64(now.Sub(po.CreatedAt)) / float64(lead)
		}

		next := po.Status
		switch {
		case progress >= 1:
			next = domain.PurchaseReceived
		case progress >= 0.75:
			next = domain.PurchaseShipped
		case progress >= 0.25:
			next = domain.PurchaseOrdered
		case progress >= 0.10:
			next = domain.PurchaseApproved
		}
		if next == po.Status {
			continue
		}
		po.Status = next
		advanced = append(advanced, po)
		e.log.Info("purchase order advanced", "id", po.ID, "status", po.Status)

		if next == domain.PurchaseReceived {
			if s := e.Spare(po.SpareID); s != nil {
				s.Quantity += po.Quantity
			}
			for _, wo := range e.workOrders {
				if wo.Status == domain.WorkOrderWaitingSpares && e.shortfall(wo) == 0 {
					wo.Status = domain.WorkOrderScheduled
					e.log.Info("work order spares arrived", "id", wo.ID)
				}
			}
		}
	}
	return advanced
}

// advanceWorkOrders drives scheduled orders into progress at their scheduled
// time (reserving the component's line resource) and completes them after
// the estimated duration, resetting component health and RUL baseline.
func (e *Engine) advanceWorkOrders(now time.Time, resources ResourceReserver) []*domain.WorkOrder {
	var advanced []*domain.WorkOrder
	for _, wo := range e.workOrders {
		switch wo.Status {
		case domain.WorkOrderScheduled:
			if wo.ScheduledAt == nil || now.Before(*wo.ScheduledAt) {
				continue
			}
			c := e.componentState(wo.Component)
			until := now.Add(time.Duration(wo.EstimatedHours * float64(time.Hour)))
			if c != nil && c.resourceID != "" && resources != nil {
				if err := resources.Reserve([]string{c.resourceID}, until); err != nil {
					// Line busy: work order stays scheduled, retried next tick.
					continue
				}
			}
			started := now
			wo.StartedAt = &started
			wo.Status = domain.WorkOrderInProgress
			advanced = append(advanced, wo)
			e.log.Info("work order started", "id", wo.ID, "component", wo.Component)

		case domain.WorkOrderInProgress:
			if wo.StartedAt == nil {
				continue
			}
			done := wo.StartedAt.Add(time.Duration(wo.EstimatedHours * float64(time.Hour)))
			if now.Before(done) {
				continue
			}
			e.completeWorkOrder(wo, now, resources)
			advanced = append(advanced, wo)
		}
	}
	return advanced
}

func (e *Engine) completeWorkOrder(wo *domain.WorkOrder, now time.Time, resources ResourceReserver) {
	wo.Status = domain.WorkOrderCompleted

	if c := e.componentState(wo.Component); c != nil {
		if wo.Type == domain.MaintenanceSpareReplacement {
			c.health.Health = 100
			for _, req := range wo.Requirements {
				if s := e.Spare(req.SpareID); s != nil && s.Quantity >= req.Quantity {
					s.Quantity -= req.Quantity
				}
			}
		} else {
			// General maintenance recovers most but not all wear.
			c.health.Health = 95
		}
		c.health.Trend = domain.TrendStable
		c.health.LastMaintenance = now
		c.health.FailureProbability = 0
		c.health.RULHours = 0
		c.health.PredictedFailure = nil

		if c.resourceID != "" && resources != nil {
			resources.Release([]string{c.resourceID})
		}
	}

	for _, t := range e.technicians {
		if t.CurrentTask == wo.ID {
			t.Available = true
			t.CurrentTask = ""
			t.NextAvailable = nil
		}
	}

	e.log.Info("work order completed", "id", wo.ID, "component", wo.Component)
}

func (e *Engine) componentState(name string) *componentState {
	for _, c := range e.components {
		if c.health.Name == name {
			return c
		}
	}
	return nil
}

// openOrderFor returns the component's open (non-completed) work order, or
// nil.
func (e *Engine) openOrderFor(component string) *domain.WorkOrder {
	for _, wo := range e.workOrders {
		if wo.Component == component && wo.Status != domain.WorkOrderCompleted {
			return wo
		}
	}
	return nil
}
