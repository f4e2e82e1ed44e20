package domain

import "github.com/google/uuid"

// IDLength is the length of generated domain IDs. Short IDs keep work-order
// and recommendation references readable in logs and traces.
const IDLength = 9

// IDGenerator produces unique identifiers for domain records.
// Implemented by UUIDGenerator (production) and testutil.SequenceIDGenerator
// (deterministic tests and golden traces).
type IDGenerator interface {
	NewID() string
}

// UUIDGenerator generates random UUID-derived short IDs.
//
// Thread-safety: stateless and safe for concurrent use.
type UUIDGenerator struct{}

// NewID returns the first 9 characters of a random UUID.
func (UUIDGenerator) NewID() string {
	return uuid.NewString()[:IDLength]
}
