// view.go implements the "staffer-sims view" command.
package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/staffer-dev/staffer-sims/internal/transcript"
	"github.com/staffer-dev/staffer-sims/internal/tui"
)

var viewCmd = &cobra.Command{
	Use:   "view <transcript.jsonl>",
	Short: "Browse a run transcript",
	Long: `Open a JSONL transcript in a scrollable viewer. When stdout is not a
terminal the transcript is printed as markdown instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runView,
}

func runView(cmd *cobra.Command, args []string) error {
	path := args[0]
	turns, err := transcript.ReadJSONL(path)
	if err != nil {
		return err
	}
	if len(turns) == 0 {
		return fmt.Errorf("%s has no turns", path)
	}

	title := strings.TrimSuffix(filepath.Base(path), ".jsonl")
	err = tui.View(title, turns)
	if errors.Is(err, tui.ErrNotTTY) {
		return tui.WriteFallback(cmd.OutOrStdout(), title, turns)
	}
	return err
}
