package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/calebmcnary/pharmline/internal/domain"
)

// AnomalyRecord is a stored anomaly with the tick that produced it.
type AnomalyRecord struct {
	Seq     int
	Anomaly domain.Anomaly
}

// WorkOrderEvent is one lifecycle stage of a work order. Order.Status carries
// the stage the row recorded.
type WorkOrderEvent struct {
	Seq   int
	At    time.Time
	Order domain.WorkOrder
}

// PurchaseOrderEvent is one lifecycle stage of a purchase order.
type PurchaseOrderEvent struct {
	Seq   int
	At    time.Time
	Order domain.PurchaseOrder
}

// DriftRecord is a stored drift detection with the tick that produced it.
type DriftRecord struct {
	Seq       int
	Detection domain.DriftDetection
}

// RecommendationRecord is a stored recommendation. Approved and AppliedAt are
// joined in from the approvals table.
type RecommendationRecord struct {
	Seq            int
	At             time.Time
	Recommendation domain.YieldRecommendation
}

// ApprovalRecord is a stored sign-off.
type ApprovalRecord struct {
	ID               int64
	Seq              int
	At               time.Time
	RecommendationID string
	Role             string
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

// ReadBatchEvents returns the batch history in tick order.
// Returns an empty slice (not nil) if no events exist.
func (s *Store) ReadBatchEvents(ctx context.Context) ([]BatchEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT batch_id, batch_number, seq, ts, event, from_state, to_state, step
		FROM batch_events
		ORDER BY seq ASC, event ASC, step COLLATE BINARY ASC, to_state COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query batch events: %w", err)
	}
	defer rows.Close()

	events := []BatchEvent{}
	for rows.Next() {
		var ev BatchEvent
		var ts, from, to, step string
		if err := rows.Scan(&ev.BatchID, &ev.BatchNumber, &ev.Seq, &ts, &ev.Event, &from, &to, &step); err != nil {
			return nil, fmt.Errorf("scan batch event: %w", err)
		}
		if ev.At, err = parseTime(ts); err != nil {
			return nil, err
		}
		ev.From = domain.BatchState(from)
		ev.To = domain.BatchState(to)
		ev.Step = domain.StepName(step)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate batch events: %w", err)
	}
	return events, nil
}

// ReadAnomalies returns all anomalies in deterministic order:
// seq ASC, id ASC COLLATE BINARY.
func (s *Store) ReadAnomalies(ctx context.Context) ([]AnomalyRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seq, ts, source, severity, description
		FROM anomalies
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query anomalies: %w", err)
	}
	defer rows.Close()

	records := []AnomalyRecord{}
	for rows.Next() {
		var rec AnomalyRecord
		var ts, severity string
		if err := rows.Scan(&rec.Anomaly.ID, &rec.Seq, &ts, &rec.Anomaly.Source, &severity, &rec.Anomaly.Description); err != nil {
			return nil, fmt.Errorf("scan anomaly: %w", err)
		}
		if rec.Anomaly.Timestamp, err = parseTime(ts); err != nil {
			return nil, err
		}
		rec.Anomaly.Severity = domain.Severity(severity)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate anomalies: %w", err)
	}
	return records, nil
}

// ReadWorkOrderEvents returns the work-order lifecycle history in
// deterministic order: seq ASC, id ASC COLLATE BINARY, status ASC.
func (s *Store) ReadWorkOrderEvents(ctx context.Context) ([]WorkOrderEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, status, seq, ts, component, type, priority, technician_id, estimated_hours, requirements
		FROM work_orders
		ORDER BY seq ASC, id COLLATE BINARY ASC, status COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query work orders: %w", err)
	}
	defer rows.Close()

	events := []WorkOrderEvent{}
	for rows.Next() {
		var ev WorkOrderEvent
		var ts, status, typ, priority, reqJSON string
		if err := rows.Scan(
			&ev.Order.ID, &status, &ev.Seq, &ts, &ev.Order.Component,
			&typ, &priority, &ev.Order.TechnicianID, &ev.Order.EstimatedHours, &reqJSON,
		); err != nil {
			return nil, fmt.Errorf("scan work order: %w", err)
		}
		if ev.At, err = parseTime(ts); err != nil {
			return nil, err
		}
		ev.Order.Status = domain.WorkOrderStatus(status)
		ev.Order.Type = domain.MaintenanceType(typ)
		ev.Order.Priority = domain.WorkOrderPriority(priority)
		if ev.Order.Requirements, err = unmarshalRequirements(reqJSON); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate work orders: %w", err)
	}
	return events, nil
}

// ReadPurchaseOrderEvents returns the procurement history in deterministic
// order: seq ASC, id ASC COLLATE BINARY, status ASC.
func (s *Store) ReadPurchaseOrderEvents(ctx context.Context) ([]PurchaseOrderEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, status, seq, ts, spare_id, quantity, vendor, work_order_id, expected_delivery
		FROM purchase_orders
		ORDER BY seq ASC, id COLLATE BINARY ASC, status COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query purchase orders: %w", err)
	}
	defer rows.Close()

	events := []PurchaseOrderEvent{}
	for rows.Next() {
		var ev PurchaseOrderEvent
		var ts, status, delivery string
		if err := rows.Scan(
			&ev.Order.ID, &status, &ev.Seq, &ts, &ev.Order.SpareID,
			&ev.Order.Quantity, &ev.Order.Vendor, &ev.Order.WorkOrderID, &delivery,
		); err != nil {
			return nil, fmt.Errorf("scan purchase order: %w", err)
		}
		if ev.At, err = parseTime(ts); err != nil {
			return nil, err
		}
		if ev.Order.ExpectedDelivery, err = parseTime(delivery); err != nil {
			return nil, err
		}
		ev.Order.Status = domain.PurchaseOrderStatus(status)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate purchase orders: %w", err)
	}
	return events, nil
}

// ReadDriftDetections returns all drift detections in deterministic order:
// seq ASC, id ASC COLLATE BINARY.
func (s *Store) ReadDriftDetections(ctx context.Context) ([]DriftRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seq, ts, parameter, direction, magnitude_pct, severity, description, recommended_action
		FROM drift_detections
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query drift detections: %w", err)
	}
	defer rows.Close()

	records := []DriftRecord{}
	for rows.Next() {
		var rec DriftRecord
		var ts, direction, severity string
		if err := rows.Scan(
			&rec.Detection.ID, &rec.Seq, &ts, &rec.Detection.Parameter, &direction,
			&rec.Detection.MagnitudePct, &severity, &rec.Detection.Description,
			&rec.Detection.RecommendedAction,
		); err != nil {
			return nil, fmt.Errorf("scan drift detection: %w", err)
		}
		if rec.Detection.DetectedAt, err = parseTime(ts); err != nil {
			return nil, err
		}
		rec.Detection.Direction = domain.DriftDirection(direction)
		rec.Detection.Severity = domain.Severity(severity)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate drift detections: %w", err)
	}
	return records, nil
}

// ReadRecommendations returns all recommendations in deterministic order with
// approval state joined in from the approvals table.
func (s *Store) ReadRecommendations(ctx context.Context) ([]RecommendationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.seq, r.ts, r.parameter, r.current_value, r.recommended_value,
		       r.unit, r.adjustment, r.expected_improvement, r.sop_min, r.sop_max,
		       r.risk, r.reasoning, a.ts
		FROM recommendations r
		LEFT JOIN approvals a ON a.recommendation_id = r.id
		ORDER BY r.seq ASC, r.id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query recommendations: %w", err)
	}
	defer rows.Close()

	records := []RecommendationRecord{}
	for rows.Next() {
		var rec RecommendationRecord
		var ts, risk string
		var approvedTS *string
		r := &rec.Recommendation
		if err := rows.Scan(
			&r.ID, &rec.Seq, &ts, &r.Parameter, &r.CurrentValue, &r.RecommendedValue,
			&r.Unit, &r.Adjustment, &r.ExpectedImprovement, &r.SOPMin, &r.SOPMax,
			&risk, &r.Reasoning, &approvedTS,
		); err != nil {
			return nil, fmt.Errorf("scan recommendation: %w", err)
		}
		if rec.At, err = parseTime(ts); err != nil {
			return nil, err
		}
		r.Risk = domain.RiskLevel(risk)
		if approvedTS != nil {
			applied, err := parseTime(*approvedTS)
			if err != nil {
				return nil, err
			}
			r.Approved = true
			r.AppliedAt = &applied
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recommendations: %w", err)
	}
	return records, nil
}

// ReadApprovals returns all sign-offs in deterministic order:
// seq ASC, recommendation_id ASC COLLATE BINARY.
func (s *Store) ReadApprovals(ctx context.Context) ([]ApprovalRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, recommendation_id, seq, ts, role
		FROM approvals
		ORDER BY seq ASC, recommendation_id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query approvals: %w", err)
	}
	defer rows.Close()

	records := []ApprovalRecord{}
	for rows.Next() {
		var rec ApprovalRecord
		var ts string
		if err := rows.Scan(&rec.ID, &rec.RecommendationID, &rec.Seq, &ts, &rec.Role); err != nil {
			return nil, fmt.Errorf("scan approval: %w", err)
		}
		if rec.At, err = parseTime(ts); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate approvals: %w", err)
	}
	return records, nil
}

// Trace event kinds, in the order events of the same tick sort.
const (
	TraceBatch          = "batch"
	TraceAnomaly        = "anomaly"
	TraceWorkOrder      = "work_order"
	TracePurchaseOrder  = "purchase_order"
	TraceDrift          = "drift"
	TraceRecommendation = "recommendation"
	TraceApproval       = "approval"
)

var traceKindOrder = map[string]int{
	TraceBatch:          0,
	TraceAnomaly:        1,
	TraceWorkOrder:      2,
	TracePurchaseOrder:  3,
	TraceDrift:          4,
	TraceRecommendation: 5,
	TraceApproval:       6,
}

// TraceEvent is one entry of the unified decision trace.
type TraceEvent struct {
	Seq     int       `json:"seq"`
	At      time.Time `json:"at"`
	Kind    string    `json:"kind"`
	Ref     string    `json:"ref"`
	Summary string    `json:"summary"`
}

// ReadTrace merges every table into one chronological decision trace. Events
// of the same tick sort by kind (batch first, approvals last) then by ref, so
// the trace is deterministic for a given database.
func (s *Store) ReadTrace(ctx context.Context) ([]TraceEvent, error) {
	var trace []TraceEvent

	batchEvents, err := s.ReadBatchEvents(ctx)
	if err != nil {
		return nil, err
	}
	for _, ev := range batchEvents {
		var summary string
		if ev.Event == BatchEventState {
			summary = fmt.Sprintf("batch %s: %s -> %s", ev.BatchNumber, ev.From, ev.To)
		} else {
			summary = fmt.Sprintf("batch %s: step %s completed", ev.BatchNumber, ev.Step)
		}
		trace = append(trace, TraceEvent{
			Seq: ev.Seq, At: ev.At, Kind: TraceBatch, Ref: ev.BatchID, Summary: summary,
		})
	}

	anomalies, err := s.ReadAnomalies(ctx)
	if err != nil {
		return nil, err
	}
	for _, rec := range anomalies {
		trace = append(trace, TraceEvent{
			Seq: rec.Seq, At: rec.Anomaly.Timestamp, Kind: TraceAnomaly, Ref: rec.Anomaly.ID,
			Summary: fmt.Sprintf("[%s] %s: %s", rec.Anomaly.Severity, rec.Anomaly.Source, rec.Anomaly.Description),
		})
	}

	workOrders, err := s.ReadWorkOrderEvents(ctx)
	if err != nil {
		return nil, err
	}
	for _, ev := range workOrders {
		trace = append(trace, TraceEvent{
			Seq: ev.Seq, At: ev.At, Kind: TraceWorkOrder, Ref: ev.Order.ID,
			Summary: fmt.Sprintf("work order %s (%s, %s priority): %s", ev.Order.ID, ev.Order.Component, ev.Order.Priority, ev.Order.Status),
		})
	}

	purchases, err := s.ReadPurchaseOrderEvents(ctx)
	if err != nil {
		return nil, err
	}
	for _, ev := range purchases {
		trace = append(trace, TraceEvent{
			Seq: ev.Seq, At: ev.At, Kind: TracePurchaseOrder, Ref: ev.Order.ID,
			Summary: fmt.Sprintf("purchase order %s (%dx %s from %s): %s", ev.Order.ID, ev.Order.Quantity, ev.Order.SpareID, ev.Order.Vendor, ev.Order.Status),
		})
	}

	drifts, err := s.ReadDriftDetections(ctx)
	if err != nil {
		return nil, err
	}
	for _, rec := range drifts {
		trace = append(trace, TraceEvent{
			Seq: rec.Seq, At: rec.Detection.DetectedAt, Kind: TraceDrift, Ref: rec.Detection.ID,
			Summary: fmt.Sprintf("[%s] %s drifting %s by %.1f%%", rec.Detection.Severity, rec.Detection.Parameter, rec.Detection.Direction, rec.Detection.MagnitudePct),
		})
	}

	recs, err := s.ReadRecommendations(ctx)
	if err != nil {
		return nil, err
	}
	for _, rec := range recs {
		r := rec.Recommendation
		trace = append(trace, TraceEvent{
			Seq: rec.Seq, At: rec.At, Kind: TraceRecommendation, Ref: r.ID,
			Summary: fmt.Sprintf("adjust %s: %.2f -> %.2f %s (%s)", r.Parameter, r.CurrentValue, r.RecommendedValue, r.Unit, r.Adjustment),
		})
	}

	approvals, err := s.ReadApprovals(ctx)
	if err != nil {
		return nil, err
	}
	for _, rec := range approvals {
		summary := fmt.Sprintf("recommendation %s applied", rec.RecommendationID)
		if rec.Role != "" {
			summary = fmt.Sprintf("recommendation %s applied (signed off by %s)", rec.RecommendationID, rec.Role)
		}
		trace = append(trace, TraceEvent{
			Seq: rec.Seq, At: rec.At, Kind: TraceApproval, Ref: rec.RecommendationID, Summary: summary,
		})
	}

	sort.SliceStable(trace, func(i, j int) bool {
		if trace[i].Seq != trace[j].Seq {
			return trace[i].Seq < trace[j].Seq
		}
		if trace[i].Kind != trace[j].Kind {
			return traceKindOrder[trace[i].Kind] < traceKindOrder[trace[j].Kind]
		}
		return trace[i].Ref < trace[j].Ref
	})

	if trace == nil {
		trace = []TraceEvent{}
	}
	return trace, nil
}
