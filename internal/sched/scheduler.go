// Package sched places batch orders on the production timeline and manages
// the shared resource table.
//
// Scheduling is greedy: orders sort by priority then arrival, each order is
// placed at the earliest instant its line is free and every required resource
// reports available. Orders that cannot start within the planning horizon are
// marked delayed rather than dropped.
package sched

import (
	"sort"
	"time"

	"github.com/calebmcnary/pharmline/internal/domain"
)

// DefaultHorizonHours is the planning horizon when none is configured.
const DefaultHorizonHours = 48

// Scheduler plans batches and answers idle-window queries.
//
// Thread-safety: none. The simulation loop is the single writer.
type Scheduler struct {
	horizon time.Duration
	idGen   domain.IDGenerator
}

// New creates a scheduler. horizonHours <= 0 selects the 48h default.
func New(horizonHours float64, idGen domain.IDGenerator) *Scheduler {
	if horizonHours <= 0 {
		horizonHours = DefaultHorizonHours
	}
	return &Scheduler{
		horizon: time.Duration(horizonHours * float64(time.Hour)),
		idGen:   idGen,
	}
}

// Horizon returns the planning horizon.
func (s *Scheduler) Horizon() time.Duration {
	return s.horizon
}

// Schedule places orders on the timeline.
//
// Sort: priority (urgent > high > normal), then arrival, then ID for a total
// order. Placement: earliest start at or after now where the order's line is
// free and every required resource is available; a busy resource pushes the
// start to its NextAvailable. No feasible start within the horizon marks the
// batch delayed, pinned at the horizon edge.
func (s *Scheduler) Schedule(now time.Time, orders []domain.BatchOrder, resources []domain.Resource) []domain.ScheduledBatch {
	sorted := make([]domain.BatchOrder, len(orders))
	copy(sorted, orders)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Priority.Rank() != b.Priority.Rank() {
			return a.Priority.Rank() < b.Priority.Rank()
		}
		if a.Arrival != b.Arrival {
			return a.Arrival < b.Arrival
		}
		return a.ID < b.ID
	})

	byID := make(map[string]*domain.Resource, len(resources))
	for i := range resources {
		byID[resources[i].ID] = &resources[i]
	}

	horizonEnd := now.Add(s.horizon)
	lineFree := map[string]time.Time{}
	resourceFree := map[string]time.Time{}

	scheduled := make([]domain.ScheduledBatch, 0, len(sorted))
	for _, o := range sorted {
		start, ok := s.earliestStart(now, o, byID, lineFree, resourceFree)
		duration := time.Duration(o.DurationHours * float64(time.Hour))

		sb := domain.ScheduledBatch{
			ID:          s.idGen.NewID(),
			OrderID:     o.ID,
			BatchNumber: o.BatchNumber,
			ProductName: o.ProductName,
			Line:        o.Line,
			Priority:    o.Priority.Rank(),
			ResourceIDs: o.ResourceIDs,
		}

		if !ok || start.After(horizonEnd) {
			sb.Status = domain.ScheduleDelayed
			sb.Start = horizonEnd
			sb.End = horizonEnd.Add(duration)
			scheduled = append(scheduled, sb)
			continue
		}

		sb.Status = domain.ScheduleQueued
		sb.Start = start
		sb.End = start.Add(duration)
		lineFree[o.Line] = sb.End
		for _, rid := range o.ResourceIDs {
			resourceFree[rid] = sb.End
		}
		scheduled = append(scheduled, sb)
	}
	return scheduled
}

// earliestStart computes the first instant the order's line and all required
// resources are free. Returns ok=false when a required resource is out of
// service with no recovery time, or is unknown.
func (s *Scheduler) earliestStart(
	now time.Time,
	o domain.BatchOrder,
	byID map[string]*domain.Resource,
	lineFree, resourceFree map[string]time.Time,
) (time.Time, bool) {
	start := now
	if free, ok := lineFree[o.Line]; ok && free.After(start) {
		start = free
	}
	for _, rid := range o.ResourceIDs {
		r, ok := byID[rid]
		if !ok {
			return time.Time{}, false
		}
		if !r.Available {
			if r.NextAvailable == nil {
				return time.Time{}, false
			}
			if r.NextAvailable.After(start) {
				start = *r.NextAvailable
			}
		}
		if free, ok := resourceFree[rid]; ok && free.After(start) {
			start = free
		}
	}
	return start, true
}

// FindIdleWindow scans the union of queued and in-progress intervals on the
// schedule and returns the first gap of at least durationHours starting no
// earlier than now. Returns nil when no such gap exists within the horizon.
func (s *Scheduler) FindIdleWindow(now time.Time, schedule []domain.ScheduledBatch, durationHours float64) *domain.Window {
	need := time.Duration(durationHours * float64(time.Hour))
	horizonEnd := now.Add(s.horizon)

	busy := make([]domain.Window, 0, len(schedule))
	for _, sb := range schedule {
		switch sb.Status {
		case domain.ScheduleQueued, domain.ScheduleInProgress:
			if sb.End.After(now) {
				busy = append(busy, domain.Window{Start: sb.Start, End: sb.End})
			}
		}
	}
	sort.Slice(busy, func(i, j int) bool { return busy[i].Start.Before(busy[j].Start) })

	cursor := now
	for _, b := range busy {
		if b.Start.Sub(cursor) >= need {
			return &domain.Window{Start: cursor, End: cursor.Add(need)}
		}
		if b.End.After(cursor) {
			cursor = b.End
		}
	}
	if horizonEnd.Sub(cursor) >= need {
		return &domain.Window{Start: cursor, End: cursor.Add(need)}
	}
	return nil
}
