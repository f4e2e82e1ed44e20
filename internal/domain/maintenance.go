package domain

import "time"

// HealthTrend describes the direction of a component's condition.
type HealthTrend string

const (
	TrendStable    HealthTrend = "stable"
	TrendDeclining HealthTrend = "declining"
	TrendCritical  HealthTrend = "critical"
)

// ComponentHealth is the tracked condition of one line component. Health
// decays with operating time and resets toward full after a completed work
// order.
type ComponentHealth struct {
	Name               string      `json:"name"`
	Health             float64     `json:"health"` // percent, 0-100
	RULHours           float64     `json:"rulHours"`
	Trend              HealthTrend `json:"trend"`
	LastMaintenance    time.Time   `json:"lastMaintenance"`
	FailureProbability float64     `json:"failureProbability"` // 0-1
	PredictedFailure   *time.Time  `json:"predictedFailure,omitempty"`
}

// Severity grades anomalies and drift detections.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Anomaly is one entry of the append-only anomaly log.
type Anomaly struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Source       string    `json:"source"`
	Severity     Severity  `json:"severity"`
	Description  string    `json:"description"`
	Acknowledged bool      `json:"acknowledged"`
}

// SkillTier ranks technicians. Specialists are preferred for critical work.
type SkillTier string

const (
	SkillJunior     SkillTier = "junior"
	SkillSenior     SkillTier = "senior"
	SkillSpecialist SkillTier = "specialist"
)

// Technician is a maintenance worker. CurrentTask holds the work-order ID
// while assigned.
type Technician struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Skill         SkillTier  `json:"skill"`
	Available     bool       `json:"available"`
	CurrentTask   string     `json:"currentTask,omitempty"`
	NextAvailable *time.Time `json:"nextAvailable,omitempty"`
}

// SparePart is inventory for component replacement. Dropping below MinStock
// triggers a purchase order.
type SparePart struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	PartNumber    string  `json:"partNumber"`
	Quantity      int     `json:"quantity"`
	MinStock      int     `json:"minStock"`
	LeadTimeHours float64 `json:"leadTimeHours"`
	Vendor        string  `json:"vendor"`
	UnitCost      float64 `json:"unitCost"`
}

// MaintenanceType distinguishes routine service from part replacement.
type MaintenanceType string

const (
	MaintenanceGeneral          MaintenanceType = "general"
	MaintenanceSpareReplacement MaintenanceType = "spare_replacement"
)

// WorkOrderStatus is the work-order state machine:
// pending -> scheduled -> in-progress -> completed, with waiting-spares as a
// side-state entered while any required spare is out of stock.
type WorkOrderStatus string

const (
	WorkOrderPending       WorkOrderStatus = "pending"
	WorkOrderScheduled     WorkOrderStatus = "scheduled"
	WorkOrderInProgress    WorkOrderStatus = "in-progress"
	WorkOrderCompleted     WorkOrderStatus = "completed"
	WorkOrderWaitingSpares WorkOrderStatus = "waiting-spares"
)

// WorkOrderPriority grades maintenance urgency.
type WorkOrderPriority string

const (
	WorkPriorityLow      WorkOrderPriority = "low"
	WorkPriorityMedium   WorkOrderPriority = "medium"
	WorkPriorityHigh     WorkOrderPriority = "high"
	WorkPriorityCritical WorkOrderPriority = "critical"
)

// SpareRequirement is one (spare, quantity) line of a work order.
type SpareRequirement struct {
	SpareID  string `json:"spareId"`
	Quantity int    `json:"quantity"`
}

// Notification records a message sent on behalf of a work order.
type Notification struct {
	Recipient string    `json:"recipient"`
	Message   string    `json:"message"`
	SentAt    time.Time `json:"sentAt"`
}

// Notification recipients.
const (
	NotifyMaintenanceTeam      = "maintenance_team"
	NotifyProductionSupervisor = "production_supervisor"
)

// WorkOrder is a maintenance job against one component.
type WorkOrder struct {
	ID             string             `json:"id"`
	Component      string             `json:"component"`
	Type           MaintenanceType    `json:"type"`
	Status         WorkOrderStatus    `json:"status"`
	Priority       WorkOrderPriority  `json:"priority"`
	TechnicianID   string             `json:"technicianId,omitempty"`
	ScheduledAt    *time.Time         `json:"scheduledAt,omitempty"`
	StartedAt      *time.Time         `json:"startedAt,omitempty"`
	Requirements   []SpareRequirement `json:"requirements,omitempty"`
	EstimatedHours float64            `json:"estimatedHours"`
	CreatedAt      time.Time          `json:"createdAt"`
	Instructions   string             `json:"instructions"`
	Notifications  []Notification     `json:"notifications,omitempty"`
}

// PurchaseOrderStatus is the procurement lifecycle:
// pending -> approved -> ordered -> shipped -> received.
type PurchaseOrderStatus string

const (
	PurchasePending  PurchaseOrderStatus = "pending"
	PurchaseApproved PurchaseOrderStatus = "approved"
	PurchaseOrdered  PurchaseOrderStatus = "ordered"
	PurchaseShipped  PurchaseOrderStatus = "shipped"
	PurchaseReceived PurchaseOrderStatus = "received"
)

// PurchaseOrder restocks a spare part for a waiting work order.
type PurchaseOrder struct {
	ID               string              `json:"id"`
	SpareID          string              `json:"spareId"`
	Quantity         int                 `json:"quantity"`
	Vendor           string              `json:"vendor"`
	Status           PurchaseOrderStatus `json:"status"`
	CreatedAt        time.Time           `json:"createdAt"`
	ExpectedDelivery time.Time           `json:"expectedDelivery"`
	WorkOrderID      string              `json:"workOrderId"`
}

// MaintenanceDecision is the per-component output of the decision engine.
type MaintenanceDecision struct {
	Component           string            `json:"component"`
	RequiresMaintenance bool              `json:"requiresMaintenance"`
	Type                MaintenanceType   `json:"type,omitempty"`
	Priority            WorkOrderPriority `json:"priority"`
	Reasoning           string            `json:"reasoning"`
	EstimatedHours      float64           `json:"estimatedHours"`
	SuggestedTime       *time.Time        `json:"suggestedTime,omitempty"`
	IdleWindow          *Window           `json:"idleWindow,omitempty"`
}

// RULPrediction is the remaining-useful-life estimate for a component.
type RULPrediction struct {
	Component            string    `json:"component"`
	PredictedRUL         float64   `json:"predictedRul"` // hours
	Confidence           float64   `json:"confidence"`   // 0-1
	DegradationRate      float64   `json:"degradationRate"` // percent per hour
	FailureProbability   float64   `json:"failureProbability"`
	PredictedFailureDate time.Time `json:"predictedFailureDate"`
}

// SensorSample is one reading of the line-level sensors consumed by anomaly
// detection.
type SensorSample struct {
	Vibration   float64   `json:"vibration"`   // mm/s
	Temperature float64   `json:"temperature"` // degC
	MotorLoad   float64   `json:"motorLoad"`   // percent
	Timestamp   time.Time `json:"timestamp"`
}
