package store

import (
	"encoding/json"
	"fmt"

	"github.com/calebmcnary/pharmline/internal/domain"
)

// marshalRequirements converts a work order's spare requirements to canonical
// JSON TEXT for storage, so two runs of the same seed produce byte-identical
// rows.
func marshalRequirements(reqs []domain.SpareRequirement) (string, error) {
	if len(reqs) == 0 {
		return "[]", nil
	}

	// Round-trip through plain JSON to get the generic shape canonical
	// marshaling accepts.
	raw, err := json.Marshal(reqs)
	if err != nil {
		return "", fmt.Errorf("marshal requirements: %w", err)
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return "", fmt.Errorf("marshal requirements: %w", err)
	}

	data, err := domain.MarshalCanonical(generic)
	if err != nil {
		return "", fmt.Errorf("marshal requirements: %w", err)
	}
	return string(data), nil
}

// unmarshalRequirements parses stored JSON TEXT back to spare requirements.
func unmarshalRequirements(data string) ([]domain.SpareRequirement, error) {
	if data == "" || data == "[]" {
		return nil, nil
	}
	var reqs []domain.SpareRequirement
	if err := json.Unmarshal([]byte(data), &reqs); err != nil {
		return nil, fmt.Errorf("unmarshal requirements: %w", err)
	}
	return reqs, nil
}
