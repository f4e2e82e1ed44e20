package store

import (
	"context"
	"fmt"
	"time"

	"github.com/calebmcnary/pharmline/internal/domain"
)

// Batch event kinds.
const (
	BatchEventState = "state"
	BatchEventStep  = "step"
)

// BatchEvent is one entry of the batch history: a state transition or a
// completed blending step.
type BatchEvent struct {
	BatchID     string
	BatchNumber string
	Seq         int
	At          time.Time
	Event       string
	From        domain.BatchState
	To          domain.BatchState
	Step        domain.StepName
}

// timeText serializes timestamps for storage. RFC 3339 with nanoseconds keeps
// lexicographic and chronological order aligned.
func timeText(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// WriteBatchEvent inserts a batch history entry.
// Uses ON CONFLICT DO NOTHING for idempotency - re-recording a tick's
// transition is silently ignored.
func (s *Store) WriteBatchEvent(ctx context.Context, ev BatchEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO batch_events
		(batch_id, batch_number, seq, ts, event, from_state, to_state, step)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		ev.BatchID,
		ev.BatchNumber,
		ev.Seq,
		timeText(ev.At),
		ev.Event,
		string(ev.From),
		string(ev.To),
		string(ev.Step),
	)
	if err != nil {
		return fmt.Errorf("write batch event: %w", err)
	}
	return nil
}

// WriteAnomaly inserts an anomaly log entry.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are
// silently ignored. Other constraint violations still return errors.
func (s *Store) WriteAnomaly(ctx context.Context, seq int, a domain.Anomaly) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO anomalies
		(id, seq, ts, source, severity, description)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		a.ID,
		seq,
		timeText(a.Timestamp),
		a.Source,
		string(a.Severity),
		a.Description,
	)
	if err != nil {
		return fmt.Errorf("write anomaly: %w", err)
	}
	return nil
}

// WriteWorkOrder inserts a work-order lifecycle row for the order's current
// status. One row exists per (id, status) pair, so recording the same stage
// twice is a no-op while each advance appends history.
func (s *Store) WriteWorkOrder(ctx context.Context, seq int, at time.Time, wo domain.WorkOrder) error {
	reqJSON, err := marshalRequirements(wo.Requirements)
	if err != nil {
		return fmt.Errorf("write work order: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO work_orders
		(id, status, seq, ts, component, type, priority, technician_id, estimated_hours, requirements)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, status) DO NOTHING
	`,
		wo.ID,
		string(wo.Status),
		seq,
		timeText(at),
		wo.Component,
		string(wo.Type),
		string(wo.Priority),
		wo.TechnicianID,
		wo.EstimatedHours,
		reqJSON,
	)
	if err != nil {
		return fmt.Errorf("write work order: %w", err)
	}
	return nil
}

// WritePurchaseOrder inserts a purchase-order lifecycle row for the order's
// current status, one row per (id, status) pair.
func (s *Store) WritePurchaseOrder(ctx context.Context, seq int, at time.Time, po domain.PurchaseOrder) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO purchase_orders
		(id, status, seq, ts, spare_id, quantity, vendor, work_order_id, expected_delivery)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, status) DO NOTHING
	`,
		po.ID,
		string(po.Status),
		seq,
		timeText(at),
		po.SpareID,
		po.Quantity,
		po.Vendor,
		po.WorkOrderID,
		timeText(po.ExpectedDelivery),
	)
	if err != nil {
		return fmt.Errorf("write purchase order: %w", err)
	}
	return nil
}

// WriteDriftDetection inserts a drift detection.
// Uses ON CONFLICT(id) DO NOTHING for idempotency.
func (s *Store) WriteDriftDetection(ctx context.Context, seq int, d domain.DriftDetection) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO drift_detections
		(id, seq, ts, parameter, direction, magnitude_pct, severity, description, recommended_action)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		d.ID,
		seq,
		timeText(d.DetectedAt),
		d.Parameter,
		string(d.Direction),
		d.MagnitudePct,
		string(d.Severity),
		d.Description,
		d.RecommendedAction,
	)
	if err != nil {
		return fmt.Errorf("write drift detection: %w", err)
	}
	return nil
}

// WriteRecommendation inserts a yield recommendation as proposed.
// Uses ON CONFLICT(id) DO NOTHING for idempotency. Approval state is not
// stored here; sign-offs land in the approvals table.
func (s *Store) WriteRecommendation(ctx context.Context, seq int, at time.Time, r domain.YieldRecommendation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO recommendations
		(id, seq, ts, parameter, current_value, recommended_value, unit, adjustment,
		 expected_improvement, sop_min, sop_max, risk, reasoning)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		r.ID,
		seq,
		timeText(at),
		r.Parameter,
		r.CurrentValue,
		r.RecommendedValue,
		r.Unit,
		r.Adjustment,
		r.ExpectedImprovement,
		r.SOPMin,
		r.SOPMax,
		string(r.Risk),
		r.Reasoning,
	)
	if err != nil {
		return fmt.Errorf("write recommendation: %w", err)
	}
	return nil
}

// WriteApproval records a recommendation sign-off. Returns the row ID and
// whether a new record was inserted.
//
// Uses ON CONFLICT(recommendation_id) DO NOTHING: a recommendation is applied
// at most once, so a second sign-off returns the existing row with
// inserted=false.
//
// Note: The recommendation referenced must exist (foreign key constraint).
func (s *Store) WriteApproval(ctx context.Context, seq int, at time.Time, recommendationID, role string) (id int64, inserted bool, err error) {
	// Use a transaction to ensure atomicity of insert-or-select
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("write approval: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	result, err := tx.ExecContext(ctx, `
		INSERT INTO approvals
		(recommendation_id, seq, ts, role)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(recommendation_id) DO NOTHING
	`,
		recommendationID,
		seq,
		timeText(at),
		role,
	)
	if err != nil {
		return 0, false, fmt.Errorf("write approval: insert: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, false, fmt.Errorf("write approval: rows affected: %w", err)
	}

	if rowsAffected > 0 {
		id, err = result.LastInsertId()
		if err != nil {
			return 0, false, fmt.Errorf("write approval: last insert id: %w", err)
		}
		inserted = true
	} else {
		// Conflict - the recommendation was already signed off, fetch the
		// existing row
		err = tx.QueryRowContext(ctx, `
			SELECT id FROM approvals WHERE recommendation_id = ?
		`, recommendationID).Scan(&id)
		if err != nil {
			return 0, false, fmt.Errorf("write approval: select existing: %w", err)
		}
		inserted = false
	}

	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("write approval: commit: %w", err)
	}

	return id, inserted, nil
}

// HasApproval checks if a recommendation already has a recorded sign-off.
func (s *Store) HasApproval(ctx context.Context, recommendationID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM approvals WHERE recommendation_id = ?
	`, recommendationID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check approval: %w", err)
	}
	return count > 0, nil
}
