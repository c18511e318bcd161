// history.go implements the "staffer-sims history" command.
package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/staffer-dev/staffer-sims/internal/analysis"
	"github.com/staffer-dev/staffer-sims/internal/log"
	"github.com/staffer-dev/staffer-sims/internal/report"
	"github.com/staffer-dev/staffer-sims/internal/store"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent simulation runs",
	Long: `List the most recent runs recorded in .staffer/runs.db, followed by
totals from the event log. Use --run to show one run's turns and failures.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

var (
	historyLimitFlag int
	historyRunFlag   string
)

func init() {
	historyCmd.Flags().IntVar(&historyLimitFlag, "limit", 10, "Number of runs to show")
	historyCmd.Flags().StringVar(&historyRunFlag, "run", "", "Show the stored turns and failures of one run")
}

func runHistory(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(log.StateDir); os.IsNotExist(err) {
		fmt.Println("No runs recorded yet.")
		return nil
	}
	if historyLimitFlag <= 0 {
		return fmt.Errorf("--limit must be positive")
	}

	st, err := store.Open(filepath.Join(log.StateDir, store.DBFile))
	if err != nil {
		return fmt.Errorf("opening run store: %w", err)
	}
	defer func() { _ = st.Close() }()

	if historyRunFlag != "" {
		if err := showRun(cmd.Context(), st, historyRunFlag); err != nil {
			return err
		}
		return showRunEvents(historyRunFlag)
	}

	runs, err := st.Recent(cmd.Context(), historyLimitFlag)
	if err != nil {
		return fmt.Errorf("listing runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded yet.")
	}
	for _, r := range runs {
		fmt.Println(formatRunLine(r))
	}

	logger, err := log.NewLogger(".")
	if err != nil {
		return fmt.Errorf("opening event log: %w", err)
	}
	events, err := logger.ReadAll()
	if err != nil {
		return fmt.Errorf("reading event log: %w", err)
	}
	if len(events) > 0 {
		fmt.Println()
		fmt.Print(report.FormatStats(report.Summarize(events)))
	}
	return nil
}

func showRun(ctx context.Context, st *store.Store, id string) error {
	run, err := st.GetRun(ctx, id)
	if err != nil {
		return fmt.Errorf("loading run: %w", err)
	}
	if run == nil {
		return fmt.Errorf("run %s not found", id)
	}
	turns, err := st.Turns(ctx, id)
	if err != nil {
		return fmt.Errorf("loading turns: %w", err)
	}
	failures, err := st.Failures(ctx, id)
	if err != nil {
		return fmt.Errorf("loading failures: %w", err)
	}

	fmt.Println(formatRunLine(*run))
	if run.TranscriptPath != "" {
		fmt.Printf("Transcript: %s\n", run.TranscriptPath)
	}
	fmt.Println()
	for _, t := range turns {
		fmt.Printf("%2d %-6s %s\n", t.Turn, t.Role, analysis.Preview(t.Content))
	}
	if len(failures) > 0 {
		fmt.Printf("\nFailures (%d):\n", len(failures))
		for _, f := range failures {
			line := fmt.Sprintf("  - [%s] %s", f.Category, f.Reason)
			if f.TurnOccurred > 0 {
				line += fmt.Sprintf(" (turn %d)", f.TurnOccurred)
			}
			fmt.Println(line)
		}
	}
	return nil
}

func showRunEvents(id string) error {
	logger, err := log.NewLogger(".")
	if err != nil {
		return fmt.Errorf("opening event log: %w", err)
	}
	events, err := logger.ForRun(id)
	if err != nil {
		return fmt.Errorf("reading event log: %w", err)
	}
	if len(events) == 0 {
		return nil
	}
	fmt.Println("\nEvents:")
	for _, e := range events {
		line := fmt.Sprintf("  %s %s", e.Time.Local().Format("15:04:05"), e.Event)
		if e.Turn > 0 {
			line += fmt.Sprintf(" turn=%d", e.Turn)
		}
		if e.Status != "" {
			line += " status=" + e.Status
		}
		if e.Error != "" {
			line += " error=" + e.Error
		}
		fmt.Println(line)
	}
	return nil
}

func formatRunLine(r store.Run) string {
	timeout := ""
	if r.TimeoutReached {
		timeout = " [timeout]"
	}
	return fmt.Sprintf("%s  %-24s %-28s seed=%-10d %s (%d%%) %d turns%s",
		r.ID, truncate(r.Persona, 24), truncate(r.Scenario, 28), r.Seed,
		r.Status, r.CompletionLevel, r.TotalTurns, timeout)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
