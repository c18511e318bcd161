// validate.go implements the "staffer-sims validate" command.
package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/staffer-dev/staffer-sims/internal/config"
	"github.com/staffer-dev/staffer-sims/internal/log"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration",
	Long: `Load .staffer/config.yaml, .env and the environment, print a summary
with secrets masked, and report any problem that would stop a run.
Use --init to write a default .staffer/config.yaml first.`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

var initConfigFlag bool

func init() {
	validateCmd.Flags().BoolVar(&initConfigFlag, "init", false, "Write a default .staffer/config.yaml if none exists")
}

func runValidate(cmd *cobra.Command, args []string) error {
	if initConfigFlag {
		path := filepath.Join(log.StateDir, "config.yaml")
		if _, err := os.Stat(path); err == nil {
			fmt.Printf("%s already exists, leaving it unchanged.\n", path)
		} else {
			if err := config.WriteConfig(".", config.DefaultConfig()); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	printConfig(cmd.OutOrStdout(), cfg)

	if err := cfg.Validate(); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "\nConfiguration is valid.")
	return nil
}

// printConfig writes a summary of cfg with every secret masked.
func printConfig(w io.Writer, cfg *config.Config) {
	sut, proxy := cfg.SUTEndpoint(), cfg.ProxyEndpoint()
	sim := cfg.Simulation

	fmt.Fprintln(w, "Configuration")
	fmt.Fprintf(w, "  Environment:     %s\n", cfg.Environment)
	fmt.Fprintf(w, "  Provider:        %s\n", cfg.Provider)
	fmt.Fprintf(w, "  SUT:             %s %s (%s)\n", sut.Kind, sut.BaseURL, sut.Model)
	fmt.Fprintf(w, "  Proxy:           %s %s (%s)\n", proxy.Kind, proxy.BaseURL, proxy.Model)
	fmt.Fprintf(w, "  OpenAI key:      %s\n", config.Mask(cfg.Keys.OpenAI))
	fmt.Fprintf(w, "  OpenRouter key:  %s\n", config.Mask(cfg.Keys.OpenRouter))
	if cfg.TracingEnabled() {
		fmt.Fprintf(w, "  Langfuse:        enabled (%s, key %s)\n", cfg.Langfuse.Host, config.Mask(cfg.Langfuse.PublicKey))
	} else {
		fmt.Fprintln(w, "  Langfuse:        disabled")
	}
	fmt.Fprintf(w, "  Max turns:       %d\n", sim.MaxTurns)
	fmt.Fprintf(w, "  Timeouts:        conversation %ds, request %ds\n", sim.ConversationTimeout, sim.RequestTimeout)
	fmt.Fprintf(w, "  Call retries:    %d (base delay %.1fs)\n", sim.RetryAttempts, sim.RetryDelay)
	fmt.Fprintf(w, "  Controller:      %t\n", sim.UseController)
	if sim.RNGSeed != nil {
		fmt.Fprintf(w, "  Seed:            %d\n", *sim.RNGSeed)
	}
	fmt.Fprintf(w, "  Output:          %s\n", cfg.OutputDir)
	fmt.Fprintf(w, "  Logging:         %s/%s\n", cfg.Logging.Level, cfg.Logging.Format)
}
