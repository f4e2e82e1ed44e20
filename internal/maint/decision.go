package maint

import (
	"fmt"
	"time"

	"github.com/calebmcnary/pharmline/internal/domain"
)

// AnalyzeComponent decides whether a component needs maintenance now.
//
// Maintenance is required when health drops below 60%, failure probability
// exceeds 0.3, or the trend has gone critical. The maintenance type is
// spare_replacement when the component's associated spare part sits below its
// minimum stock (the low stock itself signals accelerated wear), otherwise
// general. Priority bands: health under 30 is critical; under 60 or a
// critical trend is high; everything else requiring maintenance is medium.
//
// The decision proposes a non-disruptive slot by asking the scheduler for the
// first idle window fitting the estimated duration.
func AnalyzeComponent(
	now time.Time,
	component domain.ComponentHealth,
	spare *domain.SparePart,
	schedule []domain.ScheduledBatch,
	windows WindowFinder,
) domain.MaintenanceDecision {
	requires := component.Health < 60 ||
		component.FailureProbability > 0.3 ||
		component.Trend == domain.TrendCritical

	d := domain.MaintenanceDecision{
		Component:           component.Name,
		RequiresMaintenance: requires,
		Priority:            domain.WorkPriorityLow,
	}

	if !requires {
		d.Reasoning = fmt.Sprintf(
			"Component health at %.0f%% with RUL of %.0fh. No maintenance required.",
			component.Health, component.RULHours)
		return d
	}

	spareLow := spare != nil && spare.Quantity < spare.MinStock
	if spareLow || component.Health < 50 || component.Trend == domain.TrendCritical {
		d.Type = domain.MaintenanceSpareReplacement
		d.EstimatedHours = SpareReplacementHours
		d.Reasoning = fmt.Sprintf(
			"Critical condition detected. Health: %.0f%%, Trend: %s. Spare replacement required.",
			component.Health, component.Trend)
	} else {
		d.Type = domain.MaintenanceGeneral
		d.EstimatedHours = GeneralMaintenanceHours
		d.Reasoning = fmt.Sprintf(
			"Preventive maintenance recommended. Health: %.0f%%, RUL: %.0fh. General maintenance sufficient.",
			component.Health, component.RULHours)
	}

	switch {
	case component.Health < 30:
		d.Priority = domain.WorkPriorityCritical
	case component.Health < 60 || component.Trend == domain.TrendCritical:
		d.Priority = domain.WorkPriorityHigh
	default:
		d.Priority = domain.WorkPriorityMedium
	}

	if windows != nil {
		if w := windows.FindIdleWindow(now, schedule, d.EstimatedHours); w != nil {
			d.IdleWindow = w
			start := w.Start
			d.SuggestedTime = &start
		}
	}
	return d
}

// WindowFinder locates maintenance slots in the production schedule.
// Implemented by sched.Scheduler.
type WindowFinder interface {
	FindIdleWindow(now time.Time, schedule []domain.ScheduledBatch, durationHours float64) *domain.Window
}
