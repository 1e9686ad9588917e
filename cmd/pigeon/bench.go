package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/copyleftdev/pigeon/internal/optimization/objectives"
	"github.com/copyleftdev/pigeon/internal/optimization/pio"
)

type benchOptions struct {
	seeds       int
	firstSeed   int64
	objectives  []string
	popSize     int
	iters       int
	dims        int
	strategy    string
	concurrency int
}

// benchRow aggregates the final costs of one objective over all seeds.
type benchRow struct {
	Objective string
	Runs      int
	Mean      float64
	StdDev    float64
	Best      float64
	Worst     float64
}

func newBenchCmd(a *app) *cobra.Command {
	o := &benchOptions{}
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run every objective over a range of seeds",
		Long: `Runs each objective once per seed, concurrently, and prints the mean,
spread and extremes of the final global best cost.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rows, err := runBench(ctx, a, o)
			if err != nil {
				return err
			}
			return printBench(cmd.OutOrStdout(), rows)
		},
	}

	cmd.Flags().IntVar(&o.seeds, "seeds", 5, "Number of seeds per objective")
	cmd.Flags().Int64Var(&o.firstSeed, "first-seed", 1, "First seed; runs use first-seed, first-seed+1, ...")
	cmd.Flags().StringSliceVar(&o.objectives, "objectives", nil, "Objectives to run (default all)")
	cmd.Flags().IntVar(&o.popSize, "pop", 30, "Population size")
	cmd.Flags().IntVar(&o.iters, "iters", 200, "Max iterations")
	cmd.Flags().IntVar(&o.dims, "dims", 2, "Dimensions")
	cmd.Flags().StringVar(&o.strategy, "strategy", string(pio.TowardGlobalBest), "Landmark strategy (global-best, elite-centroid)")
	cmd.Flags().IntVar(&o.concurrency, "concurrency", runtime.GOMAXPROCS(0), "Runs executed at once")
	return cmd
}

// runBench runs every (objective, seed) pair on its own engine. The first
// failure cancels the remaining runs.
func runBench(ctx context.Context, a *app, o *benchOptions) ([]benchRow, error) {
	names := o.objectives
	if len(names) == 0 {
		names = objectives.Names()
	}
	if o.seeds < 1 {
		return nil, fmt.Errorf("--seeds must be positive, got %d", o.seeds)
	}

	base := a.cfg.RunDefaults()
	base.PopulationSize = o.popSize
	base.MaxIterations = o.iters
	base.Dimensions = o.dims
	base.Strategy = pio.LandmarkStrategy(o.strategy)

	// Reject bad parameters once instead of once per run.
	for _, name := range names {
		c := base
		c.Objective = name
		if _, _, err := c.Validate(); err != nil {
			return nil, fmt.Errorf("invalid bench configuration for %s: %w", name, err)
		}
	}

	costs := make([][]float64, len(names))
	for i := range costs {
		costs[i] = make([]float64, o.seeds)
	}

	g, ctx := errgroup.WithContext(ctx)
	if o.concurrency > 0 {
		g.SetLimit(o.concurrency)
	}
	logger := a.engineLogger()
	for i, name := range names {
		for j := 0; j < o.seeds; j++ {
			i, j, name := i, j, name
			g.Go(func() error {
				c := base
				c.Objective = name
				e := pio.NewEngine(pio.NewSource(o.firstSeed+int64(j)), pio.WithLogger(logger))
				if err := e.Configure(c); err != nil {
					return err
				}
				res, err := e.Optimize(ctx)
				if err != nil {
					return fmt.Errorf("%s seed %d: %w", name, o.firstSeed+int64(j), err)
				}
				costs[i][j] = res.BestSolution.Value
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rows := make([]benchRow, len(names))
	for i, name := range names {
		mean, std := stat.MeanStdDev(costs[i], nil)
		if len(costs[i]) < 2 {
			std = 0
		}
		rows[i] = benchRow{
			Objective: name,
			Runs:      len(costs[i]),
			Mean:      mean,
			StdDev:    std,
			Best:      floats.Min(costs[i]),
			Worst:     floats.Max(costs[i]),
		}
	}
	a.logger.Info("bench finished", map[string]interface{}{
		"objectives": len(names),
		"seeds":      o.seeds,
	})
	return rows, nil
}

func printBench(w io.Writer, rows []benchRow) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "OBJECTIVE\tRUNS\tMEAN\tSTDDEV\tBEST\tWORST")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%d\t%.6g\t%.6g\t%.6g\t%.6g\n", r.Objective, r.Runs, r.Mean, r.StdDev, r.Best, r.Worst)
	}
	return tw.Flush()
}
