package sim

import (
	"time"

	"github.com/calebmcnary/pharmline/internal/domain"
)

// Snapshot is a plain-data view of the whole simulation at one instant.
// Everything is copied: consumers can hold a snapshot across ticks without
// observing later mutation.
type Snapshot struct {
	Time   time.Time `json:"time"`
	Tick   int       `json:"tick"`
	Speed  float64   `json:"speed"`
	Paused bool      `json:"paused"`
	Error  string    `json:"error,omitempty"`

	Batch     *domain.Batch `json:"batch,omitempty"`
	Suspended bool          `json:"suspended"`

	Sensors   domain.SensorSample     `json:"sensors"`
	Schedule  []domain.ScheduledBatch `json:"schedule"`
	Resources []domain.Resource       `json:"resources"`

	Components     []domain.ComponentHealth `json:"components"`
	WorkOrders     []domain.WorkOrder       `json:"workOrders"`
	PurchaseOrders []domain.PurchaseOrder   `json:"purchaseOrders"`
	Anomalies      []domain.Anomaly         `json:"anomalies"`
	Technicians    []domain.Technician      `json:"technicians"`
	Spares         []domain.SparePart       `json:"spares"`

	YieldActive     bool                         `json:"yieldActive"`
	Profile         domain.BatchProfile          `json:"profile"`
	Prediction      *domain.OutcomePrediction    `json:"prediction,omitempty"`
	Detections      []domain.DriftDetection      `json:"detections"`
	Recommendations []domain.YieldRecommendation `json:"recommendations"`
}

// Snapshot captures the current state as plain data.
func (s *Simulation) Snapshot() Snapshot {
	snap := Snapshot{
		Time:      s.clock.Now(),
		Tick:      s.tick,
		Speed:     s.clock.Speed(),
		Paused:    s.paused,
		Error:     s.lastError,
		Suspended: s.machine.Held(),
		Sensors:   s.lastSample,
	}

	if b := s.machine.Batch(); b != nil {
		copied := *b
		copied.Sequence = append([]domain.BlendStep(nil), b.Sequence...)
		snap.Batch = &copied
	}

	snap.Schedule = append([]domain.ScheduledBatch(nil), s.schedule...)
	snap.Resources = append([]domain.Resource(nil), s.resources.All()...)

	snap.Components = s.maintEng.Components()
	for _, wo := range s.maintEng.WorkOrders() {
		snap.WorkOrders = append(snap.WorkOrders, *wo)
	}
	for _, po := range s.maintEng.PurchaseOrders() {
		snap.PurchaseOrders = append(snap.PurchaseOrders, *po)
	}
	snap.Anomalies = append([]domain.Anomaly(nil), s.maintEng.Anomalies()...)
	for _, t := range s.maintEng.Technicians() {
		snap.Technicians = append(snap.Technicians, *t)
	}
	for _, sp := range s.maintEng.Spares() {
		snap.Spares = append(snap.Spares, *sp)
	}

	snap.YieldActive = s.yieldEng.Active()
	snap.Profile = s.yieldEng.Profile()
	if p := s.yieldEng.Prediction(); p != nil {
		copied := *p
		snap.Prediction = &copied
	}
	snap.Detections = append([]domain.DriftDetection(nil), s.yieldEng.Detections()...)
	for _, r := range s.yieldEng.Recommendations() {
		snap.Recommendations = append(snap.Recommendations, *r)
	}

	return snap
}
