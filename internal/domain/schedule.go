package domain

import "time"

// OrderPriority ranks batch orders. Urgent beats high beats normal.
type OrderPriority string

const (
	PriorityUrgent OrderPriority = "urgent"
	PriorityHigh   OrderPriority = "high"
	PriorityNormal OrderPriority = "normal"
)

// Rank maps a priority to its numeric form: lower is more urgent.
// Unknown priorities sort last.
func (p OrderPriority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 0
	case PriorityHigh:
		return 1
	case PriorityNormal:
		return 2
	}
	return 3
}

// BatchOrder is an entry in the master order list awaiting scheduling.
// Arrival is the order's position in the intake sequence and breaks priority
// ties.
type BatchOrder struct {
	ID            string        `json:"id"`
	BatchNumber   string        `json:"batchNumber"`
	ProductName   string        `json:"productName"`
	RecipeID      string        `json:"recipeId"`
	Line          string        `json:"line"`
	Priority      OrderPriority `json:"priority"`
	DurationHours float64       `json:"durationHours"`
	Arrival       int           `json:"arrival"`
	ResourceIDs   []string      `json:"resourceIds"`
}

// ScheduleStatus is the lifecycle state of a scheduled batch.
type ScheduleStatus string

const (
	ScheduleQueued     ScheduleStatus = "queued"
	ScheduleInProgress ScheduleStatus = "in-progress"
	ScheduleCompleted  ScheduleStatus = "completed"
	ScheduleDelayed    ScheduleStatus = "delayed"
)

// ScheduledBatch is a batch order placed on the timeline. One ScheduledBatch
// maps 1:1 to a BatchOrder. Priority is numeric: lower is more urgent.
type ScheduledBatch struct {
	ID          string         `json:"id"`
	OrderID     string         `json:"orderId"`
	BatchNumber string         `json:"batchNumber"`
	ProductName string         `json:"productName"`
	Line        string         `json:"line"`
	Start       time.Time      `json:"start"`
	End         time.Time      `json:"end"`
	Status      ScheduleStatus `json:"status"`
	Priority    int            `json:"priority"`
	ResourceIDs []string       `json:"resourceIds"`
}

// ResourceType classifies schedulable resources.
type ResourceType string

const (
	ResourceEquipment ResourceType = "equipment"
	ResourceOperator  ResourceType = "operator"
	ResourceMaterial  ResourceType = "material"
	ResourceRoom      ResourceType = "room"
)

// Resource is a schedulable asset. The resource table is the single source of
// truth for availability; only the scheduler and the maintenance engine flip
// Available, and always together with the owning work-order or
// scheduled-batch status change.
type Resource struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Type          ResourceType `json:"type"`
	Available     bool         `json:"available"`
	NextAvailable *time.Time   `json:"nextAvailable,omitempty"`
}

// Window is a contiguous interval on the production timeline, used for
// maintenance idle-window placement.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration returns the window length.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}
