// Package tui implements the transcript viewer using Bubble Tea.
package tui

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/staffer-dev/staffer-sims/internal/analysis"
	"github.com/staffer-dev/staffer-sims/internal/transcript"
)

// ErrNotTTY is returned by View when stdout is not a terminal.
var ErrNotTTY = errors.New("stdout is not a terminal")

// IsTTY returns true if stdout is connected to a terminal.
func IsTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// View opens the interactive viewer for turns in alternate screen mode.
func View(title string, turns []analysis.Turn) error {
	if !IsTTY() {
		return ErrNotTTY
	}
	p := tea.NewProgram(NewModel(title, turns), tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err := p.Run()
	return err
}

// WriteFallback prints turns as a markdown transcript for non-interactive
// output.
func WriteFallback(w io.Writer, title string, turns []analysis.Turn) error {
	_, err := fmt.Fprintln(w, transcript.Markdown(transcript.Header{RunID: title}, turns, true))
	return err
}

func joinDot(parts []string) string {
	return strings.Join(parts, " \u2022 ")
}
