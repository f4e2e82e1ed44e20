package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/calebmcnary/pharmline/internal/domain"
	"github.com/calebmcnary/pharmline/internal/sched"
)

// ScheduleOptions holds flags for the schedule command.
type ScheduleOptions struct {
	*RootOptions
	At string // RFC3339 planning origin; empty selects now
}

// ScheduleResult is the schedule command's success payload.
type ScheduleResult struct {
	Plant        string                  `json:"plant"`
	HorizonHours float64                 `json:"horizon_hours"`
	Batches      []domain.ScheduledBatch `json:"batches"`
}

// NewScheduleCommand creates the schedule command.
func NewScheduleCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScheduleOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "schedule [plant.cue]",
		Short: "Plan the plant's order book",
		Long: `Place the plant's order book on the production timeline without
running a simulation.

Orders sort by priority then arrival and take the earliest slot where
their line and every required resource is free. Orders that cannot start
within the planning horizon are marked delayed.

Examples:
  pharmline schedule
  pharmline schedule ./plant.cue --at 2026-09-01T06:00:00Z`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return runSchedule(opts, path, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.At, "at", "", "planning origin as RFC3339 (default: now)")

	return cmd
}

func runSchedule(opts *ScheduleOptions, plantPath string, cmd *cobra.Command) error {
	now := time.Now().UTC()
	if opts.At != "" {
		parsed, err := time.Parse(time.RFC3339, opts.At)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --at timestamp", err)
		}
		now = parsed
	}

	plant, err := loadPlant(plantPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load plant spec", err)
	}

	scheduler := sched.New(plant.HorizonHours, domain.UUIDGenerator{})
	table := sched.NewTable(plant.Resources)
	batches := scheduler.Schedule(now, plant.Orders, table.All())

	result := ScheduleResult{
		Plant:        plant.Name,
		HorizonHours: scheduler.Horizon().Hours(),
		Batches:      batches,
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
	return outputScheduleText(formatter, result)
}

func outputScheduleText(f *OutputFormatter, result ScheduleResult) error {
	w := f.Writer

	fmt.Fprintf(w, "Schedule for %s (horizon %.0fh)\n\n", result.Plant, result.HorizonHours)
	if len(result.Batches) == 0 {
		fmt.Fprintln(w, "  (no orders)")
		return nil
	}

	for _, sb := range result.Batches {
		fmt.Fprintf(w, "  %-10s %-24s %-8s %s -> %s  %s\n",
			sb.BatchNumber, sb.ProductName, sb.Line,
			sb.Start.Format("01-02 15:04"), sb.End.Format("01-02 15:04"),
			sb.Status)
		if f.Verbose {
			fmt.Fprintf(w, "             order %s  resources %v\n", sb.OrderID, sb.ResourceIDs)
		}
	}
	return nil
}
