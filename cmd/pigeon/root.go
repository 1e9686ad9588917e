package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/copyleftdev/pigeon/internal/config"
	"github.com/copyleftdev/pigeon/internal/logging"
)

// app carries what every subcommand needs after the root pre-run.
type app struct {
	logLevel  string
	logFormat string

	cfg    *config.Config
	logger *logging.Logger
}

// engineLogger routes engine output through the process logger.
func (a *app) engineLogger() *zap.Logger {
	return logging.NewZapLogger(a.logger.WithFields(map[string]interface{}{"component": "engine"}))
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "pigeon",
		Short: "Pigeon-Inspired Optimization of benchmark functions",
		Long: `pigeon minimizes continuous benchmark functions with Pigeon-Inspired
Optimization: a Map-and-Compass phase that follows the global best under an
annealed inertia, then a Landmark phase that halves and refills the flock.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			a.cfg = cfg

			level := cfg.Logging.Level
			if cmd.Flags().Changed("log-level") {
				level = a.logLevel
			}
			format := cfg.Logging.Format
			if cmd.Flags().Changed("log-format") {
				format = a.logFormat
			}

			a.logger, err = newLogger(level, format, cfg.Logging.Output, cmd.ErrOrStderr())
			return err
		},
	}

	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "text", "Log format (json, text)")

	root.AddCommand(
		newRunCmd(a),
		newBenchCmd(a),
		newObjectivesCmd(),
		newServeCmd(a),
	)
	return root
}

// newLogger builds the process logger. stderr means the command's error
// stream so tests can capture it.
func newLogger(level, format, output string, stderr io.Writer) (*logging.Logger, error) {
	if output != "" && output != "stderr" {
		return logging.NewLogger(&logging.Config{Level: level, Format: format, Output: output})
	}
	lvl, err := logging.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	f, err := logging.ParseFormat(format)
	if err != nil {
		return nil, err
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return logging.New(lvl, stderr).WithFormat(f), nil
}
