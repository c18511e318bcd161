// clean.go implements the "staffer-sims clean" command for manual transcript cleanup.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/staffer-dev/staffer-sims/internal/cleanup"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove old run transcripts",
	Long: `Remove old run transcripts and reports from the output directory.

By default, removes runs older than --max-age-days (default 30).
Use --keep to keep only the N most recent runs instead.
Use --dry-run to preview what would be removed.`,
	Args: cobra.NoArgs,
	RunE: runClean,
}

var (
	keepFlag       int
	maxAgeDaysFlag int
	dryRunFlag     bool
	cleanDirFlag   string
)

func init() {
	cleanCmd.Flags().IntVar(&keepFlag, "keep", 0, "Keep only the last N runs (0 = use age-based cleanup)")
	cleanCmd.Flags().IntVar(&maxAgeDaysFlag, "max-age-days", 30, "Remove runs older than this many days")
	cleanCmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "Preview what would be removed without deleting")
	cleanCmd.Flags().StringVar(&cleanDirFlag, "output", "", "Transcript directory (default: config output_dir)")
}

func runClean(cmd *cobra.Command, args []string) error {
	dir := cleanDirFlag
	if dir == "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		dir = cfg.OutputDir
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		fmt.Println("No runs to clean up.")
		return nil
	}

	var pruned []string
	var err error

	switch {
	case keepFlag > 0:
		pruned, err = cleanup.PruneKeepRecent(dir, keepFlag, dryRunFlag)
	case maxAgeDaysFlag > 0:
		pruned, err = cleanup.PruneByAge(dir, maxAgeDaysFlag, dryRunFlag)
	default:
		return fmt.Errorf("--max-age-days must be positive")
	}
	if err != nil {
		return fmt.Errorf("cleanup failed: %w", err)
	}

	if len(pruned) == 0 {
		fmt.Println("No runs to clean up.")
		return nil
	}

	verb := "Removed"
	if dryRunFlag {
		verb = "Would remove"
	}

	for _, name := range pruned {
		fmt.Printf("  %s %s\n", verb, name)
	}
	fmt.Printf("%s %d run(s).\n", verb, len(pruned))

	return nil
}
