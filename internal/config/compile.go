package config

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// CompilePlant parses a CUE value into a Plant.
// Uses the CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the plant struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`plant: { name: "Line 2" ... }`)
//	p, err := CompilePlant(v.LookupPath(cue.ParsePath("plant")))
func CompilePlant(v cue.Value) (*Plant, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if !v.Exists() {
		return nil, &CompileError{
			Field:   "plant",
			Message: "plant struct not found",
		}
	}

	p := &Plant{}

	// name is required
	nameVal := v.LookupPath(cue.ParsePath("name"))
	if !nameVal.Exists() {
		return nil, &CompileError{
			Field:   "name",
			Message: "name is required",
			Pos:     v.Pos(),
		}
	}
	name, err := nameVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	p.Name = name

	if lineVal := v.LookupPath(cue.ParsePath("line")); lineVal.Exists() {
		if p.Line, err = lineVal.String(); err != nil {
			return nil, formatCUEError(err)
		}
	}

	if hVal := v.LookupPath(cue.ParsePath("horizonHours")); hVal.Exists() {
		if p.HorizonHours, err = hVal.Float64(); err != nil {
			return nil, formatCUEError(err)
		}
	} else {
		p.HorizonHours = 48
	}

	if err := decodeSection(v, "thresholds", &p.Thresholds); err != nil {
		return nil, err
	}

	// components is required: a plant with nothing to monitor is a spec bug.
	compVal := v.LookupPath(cue.ParsePath("components"))
	if !compVal.Exists() {
		return nil, &CompileError{
			Field:   "components",
			Message: "at least one component is required",
			Pos:     v.Pos(),
		}
	}
	if err := decodeInto(compVal, "components", &p.Components); err != nil {
		return nil, err
	}

	if err := decodeSection(v, "technicians", &p.Technicians); err != nil {
		return nil, err
	}
	if err := decodeSection(v, "spares", &p.Spares); err != nil {
		return nil, err
	}
	if err := decodeSection(v, "resources", &p.Resources); err != nil {
		return nil, err
	}
	if err := decodeSection(v, "orders", &p.Orders); err != nil {
		return nil, err
	}
	if err := decodeSection(v, "recipes", &p.Recipes); err != nil {
		return nil, err
	}
	if err := decodeSection(v, "sopLimits", &p.SOPLimits); err != nil {
		return nil, err
	}
	if err := decodeSection(v, "productSpecs", &p.ProductSpecs); err != nil {
		return nil, err
	}

	if errs := ValidatePlant(p); len(errs) > 0 {
		return nil, errs[0]
	}

	return p, nil
}

// decodeSection decodes an optional top-level field of the plant struct.
// Absent fields leave the target at its zero value.
func decodeSection(v cue.Value, field string, target any) error {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return nil
	}
	return decodeInto(fv, field, target)
}

func decodeInto(v cue.Value, field string, target any) error {
	if err := v.Err(); err != nil {
		return formatCUEError(err)
	}
	if err := v.Decode(target); err != nil {
		return &CompileError{
			Field:   field,
			Message: err.Error(),
			Pos:     v.Pos(),
		}
	}
	return nil
}

// CompileError provides field and position context for plant compile failures.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
