package config

import (
	"fmt"
	"strings"

	"github.com/calebmcnary/pharmline/internal/domain"
)

// Plant validation error codes (E200-E299)
const (
	ErrPlantNameEmpty      = "E200" // name is required
	ErrNoComponents        = "E201" // at least one component required
	ErrHealthOutOfRange    = "E202" // initial health must be 0-100
	ErrDuplicateName       = "E203" // duplicate component/spare/technician/resource/recipe
	ErrSOPBandInverted     = "E204" // SOP min must be < max
	ErrThresholdInvalid    = "E205" // sensor threshold must be positive
	ErrUnknownRecipeRef    = "E206" // order references unknown recipe
	ErrUnknownResourceRef  = "E207" // order references unknown resource
	ErrUnknownSpareRef     = "E208" // component references unknown spare
	ErrOrderDurationBad    = "E209" // order duration must be positive
	ErrUnknownPriority     = "E210" // order priority not urgent/high/normal
	ErrUnknownSkill        = "E211" // technician skill not junior/senior/specialist
	ErrSpareStockNegative  = "E212" // spare quantity/min stock must be >= 0
)

// ValidationError is a schema validation error for a compiled plant.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidatePlant checks a compiled plant against schema rules.
// Returns all errors found (does not fail-fast).
func ValidatePlant(p *Plant) []ValidationError {
	var errs []ValidationError

	if strings.TrimSpace(p.Name) == "" {
		errs = append(errs, ValidationError{
			Field: "name", Message: "name is required and must be non-empty",
			Code: ErrPlantNameEmpty,
		})
	}

	if len(p.Components) == 0 {
		errs = append(errs, ValidationError{
			Field: "components", Message: "at least one component is required",
			Code: ErrNoComponents,
		})
	}

	resources := map[string]bool{}
	for _, r := range p.Resources {
		if resources[r.ID] {
			errs = append(errs, ValidationError{
				Field: "resources", Message: fmt.Sprintf("duplicate resource %q", r.ID),
				Code: ErrDuplicateName,
			})
		}
		resources[r.ID] = true
	}

	seen := map[string]bool{}
	for _, c := range p.Components {
		if c.InitialHealth < 0 || c.InitialHealth > 100 {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("components.%s", c.Name),
				Message: fmt.Sprintf("initial health %.1f out of range [0,100]", c.InitialHealth),
				Code:    ErrHealthOutOfRange,
			})
		}
		if seen["component/"+c.Name] {
			errs = append(errs, ValidationError{
				Field: "components", Message: fmt.Sprintf("duplicate component %q", c.Name),
				Code: ErrDuplicateName,
			})
		}
		seen["component/"+c.Name] = true
		if c.SpareID != "" && p.Spare(c.SpareID) == nil {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("components.%s", c.Name),
				Message: fmt.Sprintf("unknown spare %q", c.SpareID),
				Code:    ErrUnknownSpareRef,
			})
		}
		if c.ResourceID != "" && !resources[c.ResourceID] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("components.%s", c.Name),
				Message: fmt.Sprintf("unknown resource %q", c.ResourceID),
				Code:    ErrUnknownResourceRef,
			})
		}
	}

	for _, s := range p.Spares {
		if seen["spare/"+s.ID] {
			errs = append(errs, ValidationError{
				Field: "spares", Message: fmt.Sprintf("duplicate spare %q", s.ID),
				Code: ErrDuplicateName,
			})
		}
		seen["spare/"+s.ID] = true
		if s.Quantity < 0 || s.MinStock < 0 {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("spares.%s", s.ID),
				Message: "quantity and minStock must be >= 0",
				Code:    ErrSpareStockNegative,
			})
		}
	}

	for _, tech := range p.Technicians {
		if seen["technician/"+tech.ID] {
			errs = append(errs, ValidationError{
				Field: "technicians", Message: fmt.Sprintf("duplicate technician %q", tech.ID),
				Code: ErrDuplicateName,
			})
		}
		seen["technician/"+tech.ID] = true
		switch tech.Skill {
		case domain.SkillJunior, domain.SkillSenior, domain.SkillSpecialist:
		default:
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("technicians.%s", tech.ID),
				Message: fmt.Sprintf("unknown skill %q", tech.Skill),
				Code:    ErrUnknownSkill,
			})
		}
	}

	recipes := map[string]bool{}
	for _, r := range p.Recipes {
		if recipes[r.ID] {
			errs = append(errs, ValidationError{
				Field: "recipes", Message: fmt.Sprintf("duplicate recipe %q", r.ID),
				Code: ErrDuplicateName,
			})
		}
		recipes[r.ID] = true
	}

	for _, o := range p.Orders {
		if o.DurationHours <= 0 {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("orders.%s", o.ID),
				Message: fmt.Sprintf("duration %.2f must be positive", o.DurationHours),
				Code:    ErrOrderDurationBad,
			})
		}
		switch o.Priority {
		case domain.PriorityUrgent, domain.PriorityHigh, domain.PriorityNormal:
		default:
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("orders.%s", o.ID),
				Message: fmt.Sprintf("unknown priority %q", o.Priority),
				Code:    ErrUnknownPriority,
			})
		}
		if o.RecipeID != "" && !recipes[o.RecipeID] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("orders.%s", o.ID),
				Message: fmt.Sprintf("unknown recipe %q", o.RecipeID),
				Code:    ErrUnknownRecipeRef,
			})
		}
		for _, rid := range o.ResourceIDs {
			if !resources[rid] {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("orders.%s", o.ID),
					Message: fmt.Sprintf("unknown resource %q", rid),
					Code:    ErrUnknownResourceRef,
				})
			}
		}
	}

	for param, band := range p.SOPLimits {
		if band.Min >= band.Max {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("sopLimits.%s", param),
				Message: fmt.Sprintf("min %.2f must be below max %.2f", band.Min, band.Max),
				Code:    ErrSOPBandInverted,
			})
		}
	}

	if p.Thresholds.Vibration <= 0 || p.Thresholds.Temperature <= 0 ||
		p.Thresholds.MotorLoad <= 0 {
		errs = append(errs, ValidationError{
			Field:   "thresholds",
			Message: "vibration, temperature and motorLoad thresholds must be positive",
			Code:    ErrThresholdInvalid,
		})
	}

	return errs
}
