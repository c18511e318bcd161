// Package ui provides terminal UI components for staffer-sims.
// This file implements the live turn display shown while a simulation runs.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"

	"github.com/staffer-dev/staffer-sims/internal/simulate"
)

// TurnStatus represents the progress of a single conversation turn.
type TurnStatus int

const (
	StatusWaitingSUT   TurnStatus = iota // SUT call in flight
	StatusWaitingProxy                   // persona proxy call in flight
	StatusCompleted                      // both replies received
)

// TurnState holds the display state of a single turn.
type TurnState struct {
	Turn    int // 0-based
	Status  TurnStatus
	Elapsed time.Duration
	Flags   []string // controller decisions and summary marker
}

// ProgressDisplay manages a live-updating terminal view of a run. It
// implements simulate.Observer.
type ProgressDisplay struct {
	mu          sync.Mutex
	out         io.Writer
	title       string
	maxTurns    int
	turns       []*TurnState
	started     bool
	isTTY       bool
	linesDrawn  int
	startTimes  map[int]time.Time
	lastPrinted map[int]TurnStatus // tracks last printed status per turn (non-TTY)
}

var _ simulate.Observer = (*ProgressDisplay)(nil)

// NewProgressDisplay creates a ProgressDisplay on stdout for a run titled
// title with at most maxTurns turns.
func NewProgressDisplay(title string, maxTurns int) *ProgressDisplay {
	return newProgressDisplay(os.Stdout, term.IsTerminal(int(os.Stdout.Fd())), title, maxTurns)
}

func newProgressDisplay(out io.Writer, isTTY bool, title string, maxTurns int) *ProgressDisplay {
	return &ProgressDisplay{
		out:         out,
		title:       title,
		maxTurns:    maxTurns,
		isTTY:       isTTY,
		startTimes:  make(map[int]time.Time),
		lastPrinted: make(map[int]TurnStatus),
	}
}

// Start draws the initial progress display.
func (p *ProgressDisplay) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.started = true
	p.render()
}

// Phase records that a call for turn has started.
func (p *ProgressDisplay) Phase(turn int, phase simulate.Phase) {
	p.mu.Lock()
	defer p.mu.Unlock()

	state := p.turn(turn)
	switch phase {
	case simulate.PhaseSUT:
		state.Status = StatusWaitingSUT
		p.startTimes[turn] = time.Now()
	case simulate.PhaseProxy:
		state.Status = StatusWaitingProxy
	}

	if p.started {
		p.render()
	}
}

// TurnDone records a completed exchange.
func (p *ProgressDisplay) TurnDone(ev simulate.TurnEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	state := p.turn(ev.Turn)
	state.Status = StatusCompleted
	state.Elapsed = ev.Elapsed
	state.Flags = turnFlags(ev)

	if p.started {
		p.render()
	}
}

// Finish finalizes the display by moving the cursor below all output
// and printing a summary line.
func (p *ProgressDisplay) Finish(status string, completion int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.isTTY && p.linesDrawn > 0 {
		fmt.Fprint(p.out, "\n")
	}

	completed := 0
	for _, t := range p.turns {
		if t.Status == StatusCompleted {
			completed++
		}
	}
	fmt.Fprintf(p.out, "\nDone: %d/%d turns, %s (%d%%)\n", completed, p.maxTurns, status, completion)
}

func (p *ProgressDisplay) turn(n int) *TurnState {
	for len(p.turns) <= n {
		p.turns = append(p.turns, &TurnState{Turn: len(p.turns)})
	}
	return p.turns[n]
}

func turnFlags(ev simulate.TurnEvent) []string {
	var flags []string
	if ev.Decision.ClarifyingAllowed {
		flags = append(flags, "clarify")
	}
	if ev.Decision.Tangent {
		flags = append(flags, "tangent")
	}
	if ev.Summary {
		flags = append(flags, "summary")
	}
	return flags
}

// render draws or redraws the progress display.
func (p *ProgressDisplay) render() {
	if !p.isTTY {
		p.renderPlain()
		return
	}
	p.renderTTY()
}

// renderTTY draws the progress display using ANSI escape codes for in-place updates.
func (p *ProgressDisplay) renderTTY() {
	if p.linesDrawn > 0 {
		fmt.Fprintf(p.out, "\033[%dA", p.linesDrawn)
	}

	var buf strings.Builder

	fmt.Fprintf(&buf, "\033[2K\033[1m▶ Simulation - %q\033[0m\n", p.title)
	buf.WriteString("\033[2K\n")

	for _, t := range p.turns {
		buf.WriteString("\033[2K")
		buf.WriteString(formatTurnLine(t, p.startTimes, p.maxTurns))
		buf.WriteString("\n")
	}

	fmt.Fprint(p.out, buf.String())
	p.linesDrawn = len(p.turns) + 2 // header + blank + turns
}

// renderPlain writes non-TTY output (for CI/piping).
// Only prints on status transitions to avoid duplicate lines.
func (p *ProgressDisplay) renderPlain() {
	for _, t := range p.turns {
		if prev, seen := p.lastPrinted[t.Turn]; seen && prev == t.Status {
			continue
		}
		fmt.Fprintln(p.out, formatTurnLinePlain(t, p.maxTurns))
		p.lastPrinted[t.Turn] = t.Status
	}
}

// formatTurnLine formats a single turn line with ANSI colors and status icons.
func formatTurnLine(t *TurnState, startTimes map[int]time.Time, maxTurns int) string {
	return fmt.Sprintf("  %s Turn %d/%d  %s", statusIcon(t.Status), t.Turn+1, maxTurns, statusDetail(t, startTimes))
}

// formatTurnLinePlain formats a turn line for non-TTY output.
func formatTurnLinePlain(t *TurnState, maxTurns int) string {
	var status string
	switch t.Status {
	case StatusWaitingSUT:
		status = "SUT"
	case StatusWaitingProxy:
		status = "PERSONA"
	case StatusCompleted:
		status = fmt.Sprintf("DONE [%s]", formatDuration(t.Elapsed))
	}
	line := fmt.Sprintf("[%s] Turn %d/%d", status, t.Turn+1, maxTurns)
	if len(t.Flags) > 0 {
		line += " (" + strings.Join(t.Flags, ", ") + ")"
	}
	return line
}

// statusIcon returns the status icon for a turn.
func statusIcon(status TurnStatus) string {
	switch status {
	case StatusCompleted:
		return "\033[32m✅\033[0m" // green checkmark
	default:
		return "\033[33m⏳\033[0m" // yellow hourglass
	}
}

// statusDetail returns the right-side detail text for a turn.
func statusDetail(t *TurnState, startTimes map[int]time.Time) string {
	switch t.Status {
	case StatusCompleted:
		detail := fmt.Sprintf("\033[90m[%s]\033[0m", formatDuration(t.Elapsed))
		if len(t.Flags) > 0 {
			detail += " \033[35m" + strings.Join(t.Flags, " ") + "\033[0m"
		}
		return detail
	case StatusWaitingProxy:
		return fmt.Sprintf("\033[33m[persona replying, %s]\033[0m", formatDuration(time.Since(startTimes[t.Turn])))
	default:
		return fmt.Sprintf("\033[33m[SUT replying, %s]\033[0m", formatDuration(time.Since(startTimes[t.Turn])))
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh%dm%ds", h, m, s)
}
