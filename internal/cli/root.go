// Package cli defines Cobra command definitions for the staffer-sims CLI.
// This file contains the root command, version flag, and exit handling.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/staffer-dev/staffer-sims/internal/config"
	"github.com/staffer-dev/staffer-sims/internal/logging"
)

// Exit codes returned by Execute.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitInterrupted = 130
)

var (
	verbose bool
	version = "dev" // set via ldflags at build time
)

var rootCmd = &cobra.Command{
	Use:   "staffer-sims",
	Short: "Persona-driven conversation simulator for the staffer recruiter",
	Long: `staffer-sims plays a scripted hiring-manager persona against the staffer
recruiter model, gates the persona turn by turn from a seeded behavior
profile, and classifies whether the recruiter gathered the role details
and got the summary confirmed.`,
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command under ctx and returns the process exit code.
// A canceled ctx maps to ExitInterrupted.
func Execute(ctx context.Context) int {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			fmt.Fprintln(os.Stderr, "Interrupted.")
			return ExitInterrupted
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		return ExitFailure
	}
	if ctx.Err() != nil {
		return ExitInterrupted
	}
	return ExitOK
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Debug logging and controller lines in the transcript")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(viewCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(validateCmd)
}

// loadConfig reads the project configuration from the working directory.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(".")
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

// newLogger builds the diagnostic logger on stderr so it never interleaves
// with the progress display.
func newLogger(cfg *config.Config) *slog.Logger {
	return logging.New(os.Stderr, cfg.Logging)
}
