package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/ctorder/internal/ir"
	"github.com/roach88/ctorder/internal/planner"
)

// PlanOptions holds flags for the plan command.
type PlanOptions struct {
	*RootOptions
	Layer bool // plan the class as a base sub-object
}

// PlanResult is a plan with its destruction order and hash.
type PlanResult struct {
	Plan         ir.Plan   `json:"plan"`
	Destruction  []ir.Step `json:"destruction"`
	VirtualBases []string  `json:"virtual_bases"`
	PlanHash     string    `json:"plan_hash"`
}

// NewPlanCommand creates the plan command.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlanOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "plan <specs-dir> <class>",
		Short: "Show the construction and destruction order of a class",
		Long: `Show the order in which a complete object of a class is built and
destroyed: virtual bases, direct bases and members, each with the class
of the sub-object.

With --layer the class is planned as a base sub-object of some more
derived class. Its virtual bases are then listed as references only.

Example:
  ctorder plan ./specs Diamond
  ctorder plan ./specs Left --layer --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Layer, "layer", false, "plan the class as a base sub-object")

	return cmd
}

func runPlan(opts *PlanOptions, specsDir, class string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	registry, _, err := LoadRegistry(specsDir)
	if err != nil {
		_ = formatter.Error(errorCode(err), loadMessage(err), nil)
		return WrapExitError(ExitCommandError, "failed to load specs", err)
	}
	d, err := registry.Describe(class)
	if err != nil {
		_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
		return WrapExitError(ExitCommandError, "unknown class", err)
	}

	plan := planner.Build(d)
	if opts.Layer {
		plan = planner.BuildLayer(d)
	}
	hash, err := ir.PlanHash(plan)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to hash plan", err)
	}

	result := PlanResult{
		Plan:         plan,
		Destruction:  plan.Reverse(),
		VirtualBases: []string{},
		PlanHash:     hash,
	}
	for _, vb := range planner.VirtualBases(d) {
		result.VirtualBases = append(result.VirtualBases, vb.Name())
	}

	if opts.Format == "json" {
		return formatter.Success(result)
	}
	return outputPlanText(formatter, result)
}

func outputPlanText(formatter *OutputFormatter, result PlanResult) error {
	w := formatter.Writer
	kind := "most-derived"
	if !result.Plan.MostDerived {
		kind = "base sub-object"
	}
	fmt.Fprintf(w, "Plan for %s (%s)\n\n", result.Plan.Class, kind)

	fmt.Fprintln(w, "=== Construction ===")
	writeSteps(w, result.Plan.Steps)
	fmt.Fprintf(w, "  %d. body %s\n\n", len(result.Plan.Steps)+1, result.Plan.Class)

	fmt.Fprintln(w, "=== Destruction ===")
	fmt.Fprintf(w, "  1. body ~%s\n", result.Plan.Class)
	for i, s := range result.Destruction {
		fmt.Fprintf(w, "  %d. %s %s (%s)\n", i+2, s.Kind, s.Target, s.Class)
	}
	fmt.Fprintln(w)

	if len(result.Plan.References) > 0 {
		fmt.Fprintf(w, "Shared virtual bases (built by the most-derived class): %v\n", result.Plan.References)
	}
	fmt.Fprintf(w, "Plan hash: %s\n", result.PlanHash)
	return nil
}

func writeSteps(w io.Writer, steps []ir.Step) {
	for i, s := range steps {
		fmt.Fprintf(w, "  %d. %s %s (%s)\n", i+1, s.Kind, s.Target, s.Class)
	}
}
