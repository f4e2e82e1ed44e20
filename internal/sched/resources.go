package sched

import (
	"fmt"
	"time"

	"github.com/calebmcnary/pharmline/internal/domain"
)

// Table is the resource availability table, the single source of truth for
// who holds what. Reservation is all-or-nothing: either every requested
// resource flips together or none does, so no caller ever observes a partial
// reservation.
//
// Thread-safety: none. Only the scheduler and the maintenance engine mutate
// the table, both from the single-writer tick loop.
type Table struct {
	resources []domain.Resource
}

// NewTable builds a table from the plant's resource list.
func NewTable(resources []domain.Resource) *Table {
	rs := make([]domain.Resource, len(resources))
	copy(rs, resources)
	return &Table{resources: rs}
}

// Get returns the resource with the given ID, or nil.
func (t *Table) Get(id string) *domain.Resource {
	for i := range t.resources {
		if t.resources[i].ID == id {
			return &t.resources[i]
		}
	}
	return nil
}

// All returns the live resource slice. Callers must not mutate availability
// directly; use Reserve and Release.
func (t *Table) All() []domain.Resource {
	return t.resources
}

// Reserve marks every listed resource unavailable until the given time.
// Fails with RESOURCE_CONTENTION if any resource is unknown or already held,
// in which case nothing flips.
func (t *Table) Reserve(ids []string, until time.Time) error {
	for _, id := range ids {
		r := t.Get(id)
		if r == nil {
			return &domain.SimError{
				Code:    domain.ErrCodeResourceContention,
				Message: "unknown resource",
				Subject: id,
			}
		}
		if !r.Available {
			return &domain.SimError{
				Code:    domain.ErrCodeResourceContention,
				Message: fmt.Sprintf("resource %s already reserved", r.Name),
				Subject: id,
			}
		}
	}
	for _, id := range ids {
		r := t.Get(id)
		r.Available = false
		u := until
		r.NextAvailable = &u
	}
	return nil
}

// Refresh flips resources whose recovery time has passed back to available
// and returns their IDs. It covers resources that enter the plant out of
// service with a known recovery time, and holders that never release;
// reservations still in force (NextAvailable in the future) are untouched.
func (t *Table) Refresh(now time.Time) []string {
	var freed []string
	for i := range t.resources {
		r := &t.resources[i]
		if r.Available || r.NextAvailable == nil {
			continue
		}
		if now.Before(*r.NextAvailable) {
			continue
		}
		r.Available = true
		r.NextAvailable = nil
		freed = append(freed, r.ID)
	}
	return freed
}

// Release marks every listed resource available again. Unknown IDs are
// ignored; releasing an already-free resource is a no-op.
func (t *Table) Release(ids []string) {
	for _, id := range ids {
		if r := t.Get(id); r != nil {
			r.Available = true
			r.NextAvailable = nil
		}
	}
}
