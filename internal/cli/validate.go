package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/ctorder/internal/compiler"
	"github.com/roach88/ctorder/internal/ir"
	"github.com/roach88/ctorder/internal/model"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid   bool                       `json:"valid"`
	Classes int                        `json:"classes"`
	Errors  []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <specs-dir>",
		Short: "Validate class declarations",
		Long: `Validate CUE class declarations without producing IR.

Checks the shape of each class, references between classes (bases,
initializer targets, constructor names) and the hierarchy itself:
inheritance or containment cycles and delegation cycles.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, specsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	loadResult, loadErrors := LoadSpecs(specsDir, LoadModeCollectAll)
	if loadResult == nil && len(loadErrors) > 0 {
		_ = formatter.Error(errorCode(loadErrors[0]), loadMessage(loadErrors[0]), nil)
		return NewExitError(ExitCommandError, loadErrors[0].Error())
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, specsDir)

	verrs := validateAll(loadResult.Classes, loadErrors, formatter)
	if len(verrs) > 0 {
		return outputValidationErrors(formatter, verrs)
	}
	return outputValidateSuccess(formatter, len(loadResult.Classes))
}

// validateAll collects compile errors, schema errors and hierarchy errors.
// The hierarchy is only checked when the schema is clean.
func validateAll(classes []ir.ClassSpec, loadErrors []error, formatter *OutputFormatter) []compiler.ValidationError {
	var all []compiler.ValidationError
	for _, err := range loadErrors {
		all = append(all, compiler.ValidationError{
			Field:   "load",
			Message: loadMessage(err),
			Code:    errorCode(err),
		})
	}

	for _, class := range classes {
		formatter.VerboseLog("Validating class: %s", class.Name)
	}
	schema := compiler.Validate(classes)
	all = append(all, schema...)
	if len(schema) > 0 || len(classes) == 0 {
		return all
	}

	registry := model.NewRegistry()
	if err := registry.DeclareAll(model.FromSpecs(classes)); err != nil {
		verr := compiler.ValidationError{Field: "hierarchy", Message: err.Error(), Code: ErrCodeModel}
		var me *model.ModelError
		if errors.As(err, &me) {
			verr.Class = me.Class
		}
		all = append(all, verr)
	}
	return all
}

func outputValidateSuccess(formatter *OutputFormatter, classes int) error {
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Classes: classes})
	}
	fmt.Fprintf(formatter.Writer, "✓ All %d class(es) valid\n", classes)
	return nil
}

// outputValidationErrors reports validation failures (exit code 1).
func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError) error {
	if formatter.Format == "json" {
		if err := formatter.JSON(CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: errs},
			Error:  &CLIError{Code: errs[0].Code, Message: errs[0].Message},
		}); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, err := range errs {
		fmt.Fprintf(formatter.Writer, "  %s\n", err.Error())
	}
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
