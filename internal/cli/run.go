package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/ctorder/internal/engine"
	"github.com/roach88/ctorder/internal/ir"
	"github.com/roach88/ctorder/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database    string
	Constructor string
	Arg         string
	Via         string // destroy through this base class
	Keep        bool   // leave the object live
	Output      string // write the trace to this file

	// RunIDs overrides the run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs engine.RunIDGenerator
}

// FailureInfo describes a construction failure.
type FailureInfo struct {
	Object string `json:"object"`
	Path   string `json:"path"`
	Class  string `json:"class"`
	Step   string `json:"step"`
	Cause  string `json:"cause"`
}

// RunResult is the outcome of one object lifetime.
type RunResult struct {
	RunID       string       `json:"run_id"`
	Class       string       `json:"class"`
	Constructor string       `json:"constructor"`
	Output      string       `json:"output"`
	Outcome     string       `json:"outcome"`
	Events      int          `json:"events"`
	SpecHash    string       `json:"spec_hash"`
	PlanHash    string       `json:"plan_hash"`
	Failure     *FailureInfo `json:"failure,omitempty"`
	Error       string       `json:"error,omitempty"` // destruction error
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(rootOpts, nil)
}

func newRunCommand(rootOpts *RootOptions, runIDs engine.RunIDGenerator) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts, RunIDs: runIDs}

	cmd := &cobra.Command{
		Use:   "run <specs-dir> <class>",
		Short: "Construct and destroy one object, recording its trace",
		Long: `Construct a complete object of a class and then destroy it.

Every lifecycle event is appended to a SQLite database (created if it
does not exist) under a fresh run id, together with the class specs and
the plan the run used. Use "ctorder trace" to read it back.

If construction fails, the already-built sub-objects are torn down in
reverse order and the command exits with status 1.

Example:
  ctorder run --db ./ctorder.db ./specs Diamond
  ctorder run --db ./ctorder.db ./specs Derived --constructor pair --arg 7
  ctorder run --db ./ctorder.db ./specs Derived --via Base`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runObject(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Constructor, "constructor", "", "constructor of the class (default: \"default\")")
	cmd.Flags().StringVar(&opts.Arg, "arg", "", "constructor argument")
	cmd.Flags().StringVar(&opts.Via, "via", "", "destroy through a handle of this base class")
	cmd.Flags().BoolVar(&opts.Keep, "keep", false, "construct only; leave the object live")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the run's events as JSON to this file")

	return cmd
}

func runObject(opts *RunOptions, specsDir, class string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := opts.Logger().With().Str("component", "run").Str("class", class).Logger()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	registry, classes, err := LoadRegistry(specsDir)
	if err != nil {
		_ = formatter.Error(errorCode(err), loadMessage(err), nil)
		return WrapExitError(ExitCommandError, "failed to load specs", err)
	}
	logger.Debug().Int("classes", len(classes)).Str("dir", specsDir).Msg("specs loaded")

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("error closing database")
		}
	}()

	specHash, err := st.WriteSpecs(ctx, classes)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to record specs", err)
	}
	// Seq values are unique across the whole database.
	lastSeq, err := st.LastSeq(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read database", err)
	}

	runIDs := opts.RunIDs
	if runIDs == nil {
		runIDs = engine.UUIDv7Generator{}
	}
	rec := engine.NewRecorder()
	sink := store.NewSink(st)
	eng := engine.New(registry,
		engine.WithClock(engine.NewClockAt(lastSeq)),
		engine.WithRunIDs(runIDs),
		engine.WithObserver(rec, sink, engine.NewLogObserver(logger)),
	)

	plan, err := eng.Plan(class)
	if err != nil {
		_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
		return WrapExitError(ExitCommandError, "unknown class", err)
	}
	planHash, err := ir.PlanHash(plan)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to hash plan", err)
	}

	ctorName := opts.Constructor
	if ctorName == "" {
		ctorName = ir.DefaultConstructor
	}
	req := engine.Request{Constructor: ctorName}
	if cmd.Flags().Changed("arg") {
		req.Arg = opts.Arg
	}

	inst, cerr := eng.Construct(ctx, class, req)
	if inst == nil {
		_ = formatter.Error(ErrCodeGeneric, cerr.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to construct", cerr)
	}

	result := RunResult{
		RunID:       inst.RunID(),
		Class:       class,
		Constructor: ctorName,
		Outcome:     ir.OutcomeLive,
		SpecHash:    specHash,
		PlanHash:    planHash,
	}
	var lf *engine.LifecycleFailure
	if errors.As(cerr, &lf) {
		result.Outcome = ir.OutcomeFailed
		result.Failure = &FailureInfo{
			Object: lf.Object,
			Path:   lf.Path,
			Class:  lf.Class,
			Step:   string(lf.Step),
			Cause:  fmt.Sprint(lf.Cause),
		}
	}

	if err := st.WriteRun(ctx, ir.Run{
		ID:            result.RunID,
		Class:         class,
		Constructor:   ctorName,
		SpecHash:      specHash,
		PlanHash:      planHash,
		EngineVersion: ir.EngineVersion,
		IRVersion:     ir.IRVersion,
		Outcome:       result.Outcome,
	}); err != nil {
		return WrapExitError(ExitCommandError, "failed to record run", err)
	}

	if result.Failure == nil && !opts.Keep {
		result.Outcome, result.Error = destroy(ctx, eng, inst, opts.Via)
		if err := st.SetOutcome(ctx, result.RunID, result.Outcome); err != nil {
			return WrapExitError(ExitCommandError, "failed to record outcome", err)
		}
	}

	if err := sink.Err(); err != nil {
		return WrapExitError(ExitCommandError, "failed to record events", err)
	}
	result.Output = rec.Output()
	result.Events = len(rec.Events())
	logger.Info().Str("run_id", result.RunID).Str("outcome", result.Outcome).Int("events", result.Events).Msg("run recorded")

	if opts.Output != "" {
		if err := writeEventsToFile(rec.Events(), opts.Output); err != nil {
			return WrapExitError(ExitCommandError, "failed to write trace", err)
		}
	}

	if err := outputRun(formatter, result); err != nil {
		return err
	}
	if result.Failure != nil {
		return WrapExitError(ExitFailure, "construction failed", cerr)
	}
	return nil
}

// destroy ends the object's lifetime and returns the outcome and the
// destruction error, if any.
func destroy(ctx context.Context, eng *engine.Engine, inst *engine.Instance, via string) (string, string) {
	var err error
	if via != "" {
		err = eng.DestroyVia(ctx, inst, via)
	} else {
		err = eng.Destroy(ctx, inst)
	}
	switch {
	case err == nil:
		return ir.OutcomeDestroyed, ""
	case errors.Is(err, engine.ErrPartialDestruction):
		return ir.OutcomePartial, err.Error()
	case inst.Phase() == engine.PhaseDestroyed:
		return ir.OutcomeDestroyed, err.Error()
	default:
		return ir.OutcomeLive, err.Error()
	}
}

func outputRun(formatter *OutputFormatter, result RunResult) error {
	if formatter.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: result, RunID: result.RunID}
		if result.Failure != nil {
			resp.Status = "error"
			resp.Error = &CLIError{Code: "LIFECYCLE_FAILURE", Message: result.Failure.Cause}
		}
		return formatter.JSON(resp)
	}

	w := formatter.Writer
	fmt.Fprintln(w, result.Output)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Run:     %s\n", result.RunID)
	fmt.Fprintf(w, "Outcome: %s\n", result.Outcome)
	fmt.Fprintf(w, "Events:  %d\n", result.Events)
	if f := result.Failure; f != nil {
		fmt.Fprintf(w, "Failure: %s %s (%s) in %s: %s\n", f.Step, f.Path, f.Class, f.Object, f.Cause)
	}
	if result.Error != "" {
		fmt.Fprintf(w, "Error:   %s\n", result.Error)
	}
	return nil
}

// writeEventsToFile writes the events as indented JSON.
func writeEventsToFile(events []ir.Event, filename string) error {
	data, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling events: %w", err)
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}
