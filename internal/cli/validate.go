package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/calebmcnary/pharmline/internal/config"
)

// ErrCodeCompile marks a plant spec that failed CUE compilation.
const ErrCodeCompile = "E100"

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                     `json:"valid"`
	Errors []config.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <plant.cue>",
		Short: "Validate a plant spec without running it",
		Long: `Validate a CUE plant specification without running a simulation.

Compiles the spec against the embedded schema, then checks schema rules:
reference integrity (spares, recipes, resources), value ranges, SOP bands
and sensor thresholds.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	plant, err := config.LoadPlant(path)
	if err != nil {
		// Schema rule violations come back as ValidationError; anything
		// else (unreadable file, CUE syntax, type mismatch) is a compile
		// failure.
		var validationErr config.ValidationError
		if errors.As(err, &validationErr) {
			return outputValidationErrors(formatter, []config.ValidationError{validationErr})
		}
		return outputCompileFailure(formatter, err)
	}

	formatter.VerboseLog("Compiled plant %q from %s", plant.Name, path)

	if errs := config.ValidatePlant(plant); len(errs) > 0 {
		return outputValidationErrors(formatter, errs)
	}

	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true})
	}
	fmt.Fprintln(formatter.Writer, "✓ Plant spec valid")
	return nil
}

// outputCompileFailure reports a spec that did not compile. Compile failures
// are command errors: there is nothing schema-level to list yet.
func outputCompileFailure(formatter *OutputFormatter, err error) error {
	_ = formatter.Error(ErrCodeCompile, err.Error(), nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", ErrCodeCompile, err.Error()))
}

// outputValidationErrors reports schema rule violations.
func outputValidationErrors(formatter *OutputFormatter, errs []config.ValidationError) error {
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: errs},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, err := range errs {
		fmt.Fprintf(formatter.Writer, "  %s %s: %s\n", err.Code, err.Field, err.Message)
	}

	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
