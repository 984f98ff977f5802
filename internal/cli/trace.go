package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/ctorder/internal/ir"
	"github.com/roach88/ctorder/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string
	Class    string // list filter
	Kind     string // event filter
}

// TraceResult is one run read back from the store.
type TraceResult struct {
	Run      ir.Run     `json:"run"`
	Output   string     `json:"output"`
	Timeline []ir.Event `json:"timeline"`
	Stats    TraceStats `json:"stats"`
}

// TraceStats counts the events of a run.
type TraceStats struct {
	TotalEvents int `json:"total_events"`
	Layers      int `json:"layers"`
	Dispatches  int `json:"dispatches"`
	Failures    int `json:"failures"`
	Unwinds     int `json:"unwinds"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Read recorded runs",
		Long: `Read runs recorded by "ctorder run".

Without --run, lists the recorded runs, optionally only those of one
class. With --run, prints the run's events in seq order: every layer
entered and left, every sub-object begun, completed and torn down, each
virtual call and where it went, and any failure and unwind.

Examples:
  ctorder trace --db ./ctorder.db
  ctorder trace --db ./ctorder.db --class Diamond
  ctorder trace --db ./ctorder.db --run 0192... --kind dispatch
  ctorder trace --db ./ctorder.db --run 0192... --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run id to print")
	cmd.Flags().StringVar(&opts.Class, "class", "", "list only runs of this class")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "print only events of this kind")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd)

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	if opts.RunID == "" {
		return listRuns(ctx, st, opts, formatter)
	}

	result, err := readTrace(ctx, st, opts.RunID, opts.Kind)
	if errors.Is(err, store.ErrRunNotFound) {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("run not found: %s", opts.RunID), nil)
		return WrapExitError(ExitCommandError, "run not found", err)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read trace", err)
	}

	if opts.Format == "json" {
		return formatter.JSON(CLIResponse{Status: "ok", Data: result, RunID: result.Run.ID})
	}
	return outputTraceText(formatter.Writer, result, opts.Verbose)
}

func listRuns(ctx context.Context, st *store.Store, opts *TraceOptions, formatter *OutputFormatter) error {
	runs, err := st.ListRuns(ctx, opts.Class)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}
	if opts.Format == "json" {
		return formatter.Success(runs)
	}

	w := formatter.Writer
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}
	for _, r := range runs {
		fmt.Fprintf(w, "%s  %-10s %s(%s)\n", r.ID, r.Outcome, r.Class, r.Constructor)
	}
	return nil
}

// readTrace reads one run. kind, when set, filters the timeline; the stats
// always cover the whole run.
func readTrace(ctx context.Context, st *store.Store, runID, kind string) (TraceResult, error) {
	run, err := st.ReadRun(ctx, runID)
	if err != nil {
		return TraceResult{}, err
	}
	events, err := st.ReadEvents(ctx, runID)
	if err != nil {
		return TraceResult{}, err
	}
	output, err := st.ReadOutput(ctx, runID)
	if err != nil {
		return TraceResult{}, err
	}

	result := TraceResult{
		Run:      run,
		Output:   output,
		Timeline: []ir.Event{},
		Stats:    traceStats(events),
	}
	for _, ev := range events {
		if kind == "" || string(ev.Kind) == kind {
			result.Timeline = append(result.Timeline, ev)
		}
	}
	return result, nil
}

func traceStats(events []ir.Event) TraceStats {
	stats := TraceStats{TotalEvents: len(events)}
	for _, ev := range events {
		switch ev.Kind {
		case ir.EventLayerEnter:
			stats.Layers++
		case ir.EventDispatch:
			stats.Dispatches++
		case ir.EventFailure:
			stats.Failures++
		case ir.EventUnwind:
			stats.Unwinds++
		}
	}
	return stats
}

func outputTraceText(w io.Writer, result TraceResult, verbose bool) error {
	r := result.Run
	fmt.Fprintf(w, "Trace for Run: %s\n", r.ID)
	fmt.Fprintf(w, "Object:  %s(%s)\n", r.Class, r.Constructor)
	fmt.Fprintf(w, "Outcome: %s\n", r.Outcome)
	fmt.Fprintf(w, "Output:  %q\n", result.Output)
	if verbose {
		fmt.Fprintf(w, "Specs:   %s\n", r.SpecHash)
		fmt.Fprintf(w, "Plan:    %s\n", r.PlanHash)
		fmt.Fprintf(w, "Engine:  %s (IR %s)\n", r.EngineVersion, r.IRVersion)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no events)")
	}
	depth := 0
	for _, ev := range result.Timeline {
		if ev.Kind == ir.EventLayerExit && depth > 0 {
			depth--
		}
		fmt.Fprintf(w, "  [%d] %s%s\n", ev.Seq, strings.Repeat("  ", depth), formatEvent(ev))
		if ev.Kind == ir.EventLayerEnter {
			depth++
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Total Events: %d\n", result.Stats.TotalEvents)
	fmt.Fprintf(w, "  Layers:       %d\n", result.Stats.Layers)
	fmt.Fprintf(w, "  Dispatches:   %d\n", result.Stats.Dispatches)
	fmt.Fprintf(w, "  Failures:     %d\n", result.Stats.Failures)
	fmt.Fprintf(w, "  Unwinds:      %d\n", result.Stats.Unwinds)
	return nil
}

// formatEvent renders one event on a line.
func formatEvent(ev ir.Event) string {
	var b strings.Builder
	b.WriteString(string(ev.Kind))
	b.WriteByte(' ')
	b.WriteString(ev.Path)
	if ev.Class != "" && ev.Class != ev.Path {
		fmt.Fprintf(&b, " (%s)", ev.Class)
	}
	if ev.Step != "" {
		fmt.Fprintf(&b, " %s", ev.Step)
	}
	switch ev.Kind {
	case ir.EventOutput:
		fmt.Fprintf(&b, " %q", ev.Detail)
	default:
		if ev.Detail != "" {
			fmt.Fprintf(&b, " %s", ev.Detail)
		}
	}
	return b.String()
}
