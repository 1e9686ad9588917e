package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/copyleftdev/pigeon/internal/optimization"
	"github.com/copyleftdev/pigeon/internal/optimization/pio"
	"github.com/copyleftdev/pigeon/internal/optimization/refine"
)

type runOptions struct {
	configPath string
	objective  string
	popSize    int
	iters      int
	dims       int
	seed       int64
	strategy   string
	boundary   string
	tracePath  string
	refine     bool
	jsonOut    bool
}

// runFile is the YAML layout accepted by --config.
type runFile struct {
	pio.Config `yaml:",inline"`
	Seed       *int64 `yaml:"seed,omitempty"`
}

// runResult is what run prints.
type runResult struct {
	Objective  string                `json:"objective"`
	Dimensions int                   `json:"dimensions"`
	Seed       int64                 `json:"seed"`
	State      pio.State             `json:"state"`
	Iterations int                   `json:"iterations"`
	Best       optimization.Solution `json:"best"`
	Initial    float64               `json:"initial_cost"`
	Elapsed    time.Duration         `json:"elapsed_ns"`
	Refinement *refine.Result        `json:"refinement,omitempty"`
}

func newRunCmd(a *app) *cobra.Command {
	o := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a single optimization to completion",
		Long: `Runs one PIO optimization. Parameters come from the PIO_* environment,
then --config, then the flags given on the command line.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOptimization(cmd, a, o)
		},
	}

	cmd.Flags().StringVar(&o.configPath, "config", "", "YAML run file")
	cmd.Flags().StringVar(&o.objective, "objective", "sphere", "Objective function")
	cmd.Flags().IntVar(&o.popSize, "pop", 30, "Population size")
	cmd.Flags().IntVar(&o.iters, "iters", 200, "Max iterations")
	cmd.Flags().IntVar(&o.dims, "dims", 2, "Dimensions")
	cmd.Flags().Int64Var(&o.seed, "seed", 0, "Random seed (0 seeds from the clock)")
	cmd.Flags().StringVar(&o.strategy, "strategy", string(pio.TowardGlobalBest), "Landmark strategy (global-best, elite-centroid)")
	cmd.Flags().StringVar(&o.boundary, "boundary", string(pio.Reflect), "Boundary policy (reflect, absorb)")
	cmd.Flags().StringVar(&o.tracePath, "trace", "", "Write the convergence history as JSONL to this file")
	cmd.Flags().BoolVar(&o.refine, "refine", false, "Polish the result with a bounded Nelder-Mead search")
	cmd.Flags().BoolVar(&o.jsonOut, "json", false, "Print the result as JSON")
	return cmd
}

// loadRunFile overlays the YAML file at path on base.
func loadRunFile(path string, base pio.Config) (pio.Config, *int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, nil, fmt.Errorf("failed to read run file: %w", err)
	}

	file := runFile{Config: base}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return base, nil, fmt.Errorf("failed to parse run file %s: %w", path, err)
	}

	var keys map[string]interface{}
	if err := yaml.Unmarshal(data, &keys); err == nil {
		_, hasBounds := keys["bounds"]
		_, hasDims := keys["dimensions"]
		if hasBounds && !hasDims {
			file.Dimensions = 0
		}
	}
	return file.Config, file.Seed, nil
}

// resolveRun merges environment defaults, the run file and changed flags.
func resolveRun(cmd *cobra.Command, a *app, o *runOptions) (pio.Config, int64, error) {
	cfg := a.cfg.RunDefaults()
	seed := a.cfg.Optimization.Seed

	if o.configPath != "" {
		fileCfg, fileSeed, err := loadRunFile(o.configPath, cfg)
		if err != nil {
			return cfg, 0, err
		}
		cfg = fileCfg
		if fileSeed != nil {
			seed = *fileSeed
		}
	}

	flags := cmd.Flags()
	if flags.Changed("objective") {
		cfg.Objective = o.objective
	}
	if flags.Changed("pop") {
		cfg.PopulationSize = o.popSize
	}
	if flags.Changed("iters") {
		cfg.MaxIterations = o.iters
	}
	if flags.Changed("dims") {
		cfg.Dimensions = o.dims
		if len(cfg.Bounds) != o.dims {
			cfg.Bounds = nil
		}
	}
	if flags.Changed("strategy") {
		cfg.Strategy = pio.LandmarkStrategy(o.strategy)
	}
	if flags.Changed("boundary") {
		cfg.Boundary = pio.BoundaryPolicy(o.boundary)
	}
	if flags.Changed("seed") {
		seed = o.seed
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return cfg, seed, nil
}

func runOptimization(cmd *cobra.Command, a *app, o *runOptions) error {
	cfg, seed, err := resolveRun(cmd, a, o)
	if err != nil {
		return err
	}

	engine := pio.NewEngine(pio.NewSource(seed), pio.WithLogger(a.engineLogger()))
	if err := engine.Configure(cfg); err != nil {
		return fmt.Errorf("invalid run configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	_, runErr := engine.Optimize(ctx)
	elapsed := time.Since(start)

	if o.tracePath != "" {
		if err := writeTrace(o.tracePath, engine.History()); err != nil {
			return err
		}
	}

	snap := engine.Snapshot()
	history := engine.ConvergenceHistory()
	res := runResult{
		Objective:  engine.Config().Objective,
		Dimensions: engine.Config().Dimensions,
		Seed:       seed,
		State:      engine.State(),
		Iterations: snap.Iteration,
		Best:       snap.Best(),
		Elapsed:    elapsed,
	}
	if len(history) > 0 {
		res.Initial = history[0]
	}

	if runErr != nil {
		if errors.Is(runErr, ctx.Err()) {
			a.logger.Warn("run interrupted", map[string]interface{}{"iteration": snap.Iteration})
		}
		if len(history) > 0 {
			_ = printResult(cmd.OutOrStdout(), res, o.jsonOut)
		}
		return runErr
	}

	if o.refine {
		polished, err := refine.Refine(engine.Objective().Eval, engine.Config().Bounds, res.Best, refine.Options{})
		if err != nil {
			return err
		}
		res.Refinement = &polished
	}

	return printResult(cmd.OutOrStdout(), res, o.jsonOut)
}

func writeTrace(path string, h *pio.History) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create trace: %w", err)
	}
	if err := h.WriteJSONL(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func formatVector(x []float64) string {
	parts := make([]string, len(x))
	for i, v := range x {
		parts[i] = fmt.Sprintf("%.6g", v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func printResult(w io.Writer, res runResult, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	fmt.Fprintf(w, "objective:   %s (%d dimensions, seed %d)\n", res.Objective, res.Dimensions, res.Seed)
	fmt.Fprintf(w, "state:       %s after %d iterations in %s\n", res.State, res.Iterations, res.Elapsed.Round(time.Microsecond))
	fmt.Fprintf(w, "best cost:   %.10g (initial %.10g)\n", res.Best.Value, res.Initial)
	fmt.Fprintf(w, "best x:      %s\n", formatVector(res.Best.Parameters))
	if r := res.Refinement; r != nil {
		if r.Improved {
			fmt.Fprintf(w, "refined:     %.10g at %s (%d evaluations)\n", r.Refined.Value, formatVector(r.Refined.Parameters), r.Evaluations)
		} else {
			fmt.Fprintf(w, "refined:     no improvement (%d evaluations)\n", r.Evaluations)
		}
	}
	return nil
}
