package store

import (
	"context"
	"fmt"

	"github.com/calebmcnary/pharmline/internal/sim"
)

// RecordTick persists everything one tick decided: batch transitions and
// completed steps, anomalies, work-order and purchase-order lifecycle
// advances, drift detections, new recommendations and sign-offs.
//
// Idempotent like the underlying writes: replaying a report is harmless.
// Skipped (paused) ticks carry at most sign-offs committed by commands.
func (s *Store) RecordTick(ctx context.Context, rep sim.TickReport) error {
	for _, a := range rep.Approvals {
		if _, _, err := s.WriteApproval(ctx, rep.Tick, a.At, a.RecommendationID, string(a.Role)); err != nil {
			return fmt.Errorf("record tick %d: %w", rep.Tick, err)
		}
	}
	if rep.Skipped {
		return nil
	}

	if rep.Batch.StateChanged {
		err := s.WriteBatchEvent(ctx, BatchEvent{
			BatchID:     rep.BatchID,
			BatchNumber: rep.BatchNumber,
			Seq:         rep.Tick,
			At:          rep.Time,
			Event:       BatchEventState,
			From:        rep.Batch.From,
			To:          rep.Batch.To,
		})
		if err != nil {
			return fmt.Errorf("record tick %d: %w", rep.Tick, err)
		}
	}
	for _, step := range rep.Batch.CompletedSteps {
		err := s.WriteBatchEvent(ctx, BatchEvent{
			BatchID:     rep.BatchID,
			BatchNumber: rep.BatchNumber,
			Seq:         rep.Tick,
			At:          rep.Time,
			Event:       BatchEventStep,
			Step:        step,
		})
		if err != nil {
			return fmt.Errorf("record tick %d: %w", rep.Tick, err)
		}
	}

	for _, a := range rep.Maint.Anomalies {
		if err := s.WriteAnomaly(ctx, rep.Tick, a); err != nil {
			return fmt.Errorf("record tick %d: %w", rep.Tick, err)
		}
	}
	for _, wo := range rep.Maint.NewWorkOrders {
		if err := s.WriteWorkOrder(ctx, rep.Tick, rep.Time, *wo); err != nil {
			return fmt.Errorf("record tick %d: %w", rep.Tick, err)
		}
	}
	for _, wo := range rep.Maint.AdvancedOrders {
		if err := s.WriteWorkOrder(ctx, rep.Tick, rep.Time, *wo); err != nil {
			return fmt.Errorf("record tick %d: %w", rep.Tick, err)
		}
	}
	for _, po := range rep.Maint.NewPurchaseOrders {
		if err := s.WritePurchaseOrder(ctx, rep.Tick, rep.Time, *po); err != nil {
			return fmt.Errorf("record tick %d: %w", rep.Tick, err)
		}
	}
	for _, po := range rep.Maint.AdvancedPurchases {
		if err := s.WritePurchaseOrder(ctx, rep.Tick, rep.Time, *po); err != nil {
			return fmt.Errorf("record tick %d: %w", rep.Tick, err)
		}
	}

	for _, d := range rep.Yield.Detections {
		if err := s.WriteDriftDetection(ctx, rep.Tick, d); err != nil {
			return fmt.Errorf("record tick %d: %w", rep.Tick, err)
		}
	}
	for _, r := range rep.Yield.NewRecommendations {
		if err := s.WriteRecommendation(ctx, rep.Tick, rep.Time, *r); err != nil {
			return fmt.Errorf("record tick %d: %w", rep.Tick, err)
		}
	}

	return nil
}
