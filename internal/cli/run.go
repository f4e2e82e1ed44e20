package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/calebmcnary/pharmline/internal/config"
	"github.com/calebmcnary/pharmline/internal/sim"
	"github.com/calebmcnary/pharmline/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	Ticks    int
	Seed     int64
	Speed    float64
	Recipe   string
	Start    bool
}

// RunResult is the run command's success payload.
type RunResult struct {
	Plant    string       `json:"plant"`
	Ticks    int          `json:"ticks"`
	Snapshot sim.Snapshot `json:"snapshot"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run [plant.cue]",
		Short: "Drive the simulation for a fixed number of ticks",
		Long: `Run the plant simulation for a fixed number of ticks and print the
final state.

Without an argument the embedded default plant is used. With --db every
tick's events are appended to the SQLite decision log, which the trace
command can read back later.

Examples:
  pharmline run --ticks 120 --start
  pharmline run ./plant.cue --seed 7 --db ./pharmline.db --start
  pharmline run --ticks 60 --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return runSimulation(opts, path, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite decision log (optional)")
	cmd.Flags().IntVar(&opts.Ticks, "ticks", 60, "number of ticks to run")
	cmd.Flags().Int64Var(&opts.Seed, "seed", 1, "random seed for all stochastic streams")
	cmd.Flags().Float64Var(&opts.Speed, "speed", 1, "simulation speed multiplier")
	cmd.Flags().StringVar(&opts.Recipe, "recipe", "", "recipe to select before the first tick")
	cmd.Flags().BoolVar(&opts.Start, "start", false, "start a batch on the first tick")

	return cmd
}

func runSimulation(opts *RunOptions, plantPath string, cmd *cobra.Command) error {
	if opts.Ticks < 1 {
		return NewExitError(ExitCommandError, "--ticks must be at least 1")
	}
	if opts.Speed <= 0 {
		return NewExitError(ExitCommandError, "--speed must be positive")
	}

	logLevel := slog.LevelWarn
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel,
	}))

	plant, err := loadPlant(plantPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load plant spec", err)
	}

	s, err := sim.New(sim.Config{
		Plant: plant,
		Seed:  opts.Seed,
		Log:   log,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to assemble simulation", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var st *store.Store
	if opts.Database != "" {
		st, err = store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open decision log", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				log.Error("closing decision log", "err", closeErr)
			}
		}()
	}

	if opts.Speed != 1 {
		s.Enqueue(sim.Command{Type: sim.CmdSetSpeed, Speed: opts.Speed})
	}
	if opts.Recipe != "" {
		s.Enqueue(sim.Command{Type: sim.CmdSelectRecipe, RecipeID: opts.Recipe})
	}
	if opts.Start {
		s.Enqueue(sim.Command{Type: sim.CmdStart, RecipeID: opts.Recipe})
	}

	for i := 0; i < opts.Ticks; i++ {
		rep := s.Tick()
		if st != nil {
			if err := st.RecordTick(ctx, rep); err != nil {
				return WrapExitError(ExitCommandError, "failed to persist tick", err)
			}
		}
		if rep.Err != "" {
			log.Warn("tick error", "tick", rep.Tick, "err", rep.Err)
		}
	}

	snap := s.Snapshot()
	result := RunResult{Plant: plant.Name, Ticks: opts.Ticks, Snapshot: snap}

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	return outputRunText(formatter, result)
}

// loadPlant resolves a plant spec path, falling back to the embedded default.
func loadPlant(path string) (*config.Plant, error) {
	if path == "" {
		return config.DefaultPlant(), nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return config.LoadPlant(path)
}

func outputRunText(f *OutputFormatter, result RunResult) error {
	w := f.Writer
	snap := result.Snapshot

	fmt.Fprintf(w, "Ran %d tick(s) on %s\n", result.Ticks, result.Plant)
	fmt.Fprintf(w, "Simulated time: %s\n", snap.Time.Format("2006-01-02 15:04"))

	if snap.Batch != nil {
		fmt.Fprintf(w, "Batch: %s (%s)\n", snap.Batch.BatchNumber, snap.Batch.State)
	} else {
		fmt.Fprintln(w, "Batch: none")
	}

	fmt.Fprintf(w, "Work orders: %d  Purchase orders: %d  Anomalies: %d\n",
		len(snap.WorkOrders), len(snap.PurchaseOrders), len(snap.Anomalies))
	fmt.Fprintf(w, "Drift detections: %d  Recommendations: %d\n",
		len(snap.Detections), len(snap.Recommendations))

	if snap.Error != "" {
		fmt.Fprintf(w, "Last error: %s\n", snap.Error)
	}

	if f.Verbose && len(snap.Schedule) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "=== Schedule ===")
		for _, sb := range snap.Schedule {
			fmt.Fprintf(w, "  %-10s %-24s %s -> %s  %s\n",
				sb.BatchNumber, sb.ProductName,
				sb.Start.Format("01-02 15:04"), sb.End.Format("01-02 15:04"),
				sb.Status)
		}
	}
	return nil
}
