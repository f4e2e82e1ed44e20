package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/calebmcnary/pharmline/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Kind     string // optional - filter to one event kind
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Events []store.TraceEvent `json:"events"`
	Stats  TraceStats         `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	TotalEvents int            `json:"total_events"`
	ByKind      map[string]int `json:"by_kind"`
}

var traceKinds = []string{
	store.TraceBatch,
	store.TraceAnomaly,
	store.TraceWorkOrder,
	store.TracePurchaseOrder,
	store.TraceDrift,
	store.TraceRecommendation,
	store.TraceApproval,
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Read the decision log",
		Long: `Read the decision log written by a run with --db.

Events merge into one timeline ordered by tick: batch transitions and
steps, anomalies, work and purchase order stages, drift detections,
recommendations and their sign-offs.

Examples:
  pharmline trace --db ./pharmline.db
  pharmline trace --db ./pharmline.db --kind work_order
  pharmline trace --db ./pharmline.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite decision log (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "filter to one event kind")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	if opts.Kind != "" && !isTraceKind(opts.Kind) {
		return NewExitError(ExitCommandError,
			fmt.Sprintf("unknown kind %q: must be one of %s", opts.Kind, strings.Join(traceKinds, ", ")))
	}

	// Opening would create an empty database; a missing path is operator error.
	if _, err := os.Stat(opts.Database); err != nil {
		return WrapExitError(ExitCommandError, "decision log not found", err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open decision log", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	events, err := st.ReadTrace(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read trace", err)
	}

	if opts.Kind != "" {
		filtered := make([]store.TraceEvent, 0, len(events))
		for _, ev := range events {
			if ev.Kind == opts.Kind {
				filtered = append(filtered, ev)
			}
		}
		events = filtered
	}

	byKind := make(map[string]int)
	for _, ev := range events {
		byKind[ev.Kind]++
	}
	result := TraceResult{
		Events: events,
		Stats:  TraceStats{TotalEvents: len(events), ByKind: byKind},
	}

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	return outputTraceText(formatter, result)
}

func isTraceKind(kind string) bool {
	for _, k := range traceKinds {
		if k == kind {
			return true
		}
	}
	return false
}

func outputTraceText(f *OutputFormatter, result TraceResult) error {
	w := f.Writer

	if len(result.Events) == 0 {
		fmt.Fprintln(w, "No decisions recorded.")
		return nil
	}

	fmt.Fprintf(w, "Decision trace: %d event(s)\n\n", result.Stats.TotalEvents)
	for _, ev := range result.Events {
		fmt.Fprintf(w, "  [%4d] %-14s %s\n", ev.Seq, ev.Kind, ev.Summary)
		if f.Verbose {
			fmt.Fprintf(w, "         at %s  ref %s\n", ev.At.Format("2006-01-02 15:04:05"), ev.Ref)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Stats ===")
	for _, kind := range traceKinds {
		if n := result.Stats.ByKind[kind]; n > 0 {
			fmt.Fprintf(w, "  %-14s %d\n", kind, n)
		}
	}
	return nil
}
