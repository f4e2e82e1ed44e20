package sched

import (
	"time"

	"github.com/calebmcnary/pharmline/internal/domain"
)

// Conflict is a pair of live schedule entries overlapping in time on a
// shared resource or line.
type Conflict struct {
	BatchA     string `json:"batchA"`
	BatchB     string `json:"batchB"`
	ResourceID string `json:"resourceId,omitempty"`
	Line       string `json:"line,omitempty"`
}

// FindConflicts reports every pair of queued or in-progress entries whose
// intervals overlap on a shared resource or on the same line. Delayed and
// completed entries hold nothing and are skipped.
func FindConflicts(schedule []domain.ScheduledBatch) []Conflict {
	var conflicts []Conflict
	for i := range schedule {
		a := &schedule[i]
		if !holdsInterval(a.Status) {
			continue
		}
		for j := i + 1; j < len(schedule); j++ {
			b := &schedule[j]
			if !holdsInterval(b.Status) || !Overlaps(a.Start, a.End, b.Start, b.End) {
				continue
			}
			if rid := sharedResource(a.ResourceIDs, b.ResourceIDs); rid != "" {
				conflicts = append(conflicts, Conflict{
					BatchA: a.BatchNumber, BatchB: b.BatchNumber, ResourceID: rid,
				})
			} else if a.Line != "" && a.Line == b.Line {
				conflicts = append(conflicts, Conflict{
					BatchA: a.BatchNumber, BatchB: b.BatchNumber, Line: a.Line,
				})
			}
		}
	}
	return conflicts
}

func holdsInterval(s domain.ScheduleStatus) bool {
	return s == domain.ScheduleQueued || s == domain.ScheduleInProgress
}

// Overlaps reports whether the half-open intervals [aStart,aEnd) and
// [bStart,bEnd) intersect.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

func sharedResource(a, b []string) string {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return x
			}
		}
	}
	return ""
}
