// Package report renders the console summary of a finished simulation and
// aggregates the run event log for history views.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/staffer-dev/staffer-sims/internal/analysis"
	"github.com/staffer-dev/staffer-sims/internal/log"
	"github.com/staffer-dev/staffer-sims/internal/simulate"
)

// maxListedFailures is how many failures are printed before the rest are
// collapsed into a count.
const maxListedFailures = 3

const rule = "========================================"

const (
	primaryColor = "#7C3AED"
	successColor = "#10B981"
	warningColor = "#F59E0B"
	errorColor   = "#EF4444"
	dimColor     = "#6B7280"
)

// Styles are the lipgloss styles used by Format.
type Styles struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Dim     lipgloss.Style
}

// DefaultStyles returns the console styles. lipgloss drops the colors when
// stdout is not a terminal.
func DefaultStyles() Styles {
	return Styles{
		Title:   lipgloss.NewStyle().Foreground(lipgloss.Color(primaryColor)).Bold(true),
		Label:   lipgloss.NewStyle().Bold(true),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color(successColor)),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color(warningColor)),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color(errorColor)),
		Dim:     lipgloss.NewStyle().Foreground(lipgloss.Color(dimColor)),
	}
}

// PlainStyles renders without any decoration. Used for report files.
func PlainStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{Title: plain, Label: plain, Success: plain, Warning: plain, Error: plain, Dim: plain}
}

// Format produces the styled console summary of res.
func Format(res *simulate.Results) string {
	return FormatWith(res, DefaultStyles())
}

// FormatWith produces the summary of res using st.
func FormatWith(res *simulate.Results, st Styles) string {
	var b strings.Builder
	out := res.FinalOutcome

	b.WriteString(rule + "\n")
	b.WriteString("  " + st.Title.Render("Simulation Report") + "\n")
	b.WriteString(rule + "\n\n")

	field(&b, st, "Run", res.RunID)
	field(&b, st, "Persona", res.Persona)
	field(&b, st, "Scenario", res.Scenario)
	field(&b, st, "Seed", fmt.Sprint(res.Seed))
	b.WriteString("\n")

	status := fmt.Sprintf("%s (%d%%)", out.Status, out.CompletionLevel)
	field(&b, st, "Status", statusStyle(out.Status, st).Render(status))
	field(&b, st, "Turns", fmt.Sprint(res.TotalTurns))
	duration := fmt.Sprintf("%s / %ds", formatDuration(time.Duration(res.ElapsedTime*float64(time.Second))), res.TimeoutLimit)
	if res.TimeoutReached {
		duration += " " + st.Warning.Render("[timeout reached]")
	}
	field(&b, st, "Duration", duration)
	if len(out.SuccessIndicators) > 0 {
		field(&b, st, "Indicators", st.Success.Render(strings.Join(out.SuccessIndicators, ", ")))
	}
	b.WriteString("\n")

	if len(out.Failures) > 0 {
		field(&b, st, "Failures", fmt.Sprintf("%d total", out.TotalFailures))
		for i, f := range out.Failures {
			if i == maxListedFailures {
				b.WriteString("  " + st.Dim.Render(fmt.Sprintf("... and %d more", len(out.Failures)-maxListedFailures)) + "\n")
				break
			}
			b.WriteString("  - " + st.Error.Render("["+string(f.Category)+"]") + " " + failureLine(f) + "\n")
		}
		b.WriteString("\n")
	}

	if lines := infoLines(res.InformationGathered); len(lines) > 0 {
		b.WriteString(st.Label.Render("Information Gathered:") + "\n")
		for _, l := range lines {
			b.WriteString("  " + l + "\n")
		}
		b.WriteString("\n")
	}

	u := res.UsageStats
	if u.SUTCalls+u.ProxyCalls > 0 {
		b.WriteString(st.Label.Render("Usage:") + "\n")
		fmt.Fprintf(&b, "  Tokens:     %d (%d in / %d out)\n", u.TotalTokens, u.InputTokens, u.OutputTokens)
		fmt.Fprintf(&b, "  Calls:      %d SUT / %d proxy\n", u.SUTCalls, u.ProxyCalls)
		fmt.Fprintf(&b, "  Cost:       $%.4f\n", u.EstimatedCost)
		b.WriteString("\n")
	}

	if res.TranscriptPath != "" {
		field(&b, st, "Transcript", st.Dim.Render(res.TranscriptPath))
	}
	b.WriteString(rule + "\n")

	return b.String()
}

// WriteReport writes the plain summary next to the run's transcript as
// {base}.report.md and returns its path.
func WriteReport(dir string, res *simulate.Results) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(res.TranscriptPath), ".md")
	if res.TranscriptPath == "" {
		base = res.RunID
	}
	path := filepath.Join(dir, base+".report.md")

	if err := os.WriteFile(path, []byte(FormatWith(res, PlainStyles())), 0644); err != nil {
		return "", fmt.Errorf("writing report file: %w", err)
	}
	return path, nil
}

// field writes a bold label padded to a fixed column, then value.
func field(b *strings.Builder, st Styles, label, value string) {
	b.WriteString(st.Label.Render(label+":"))
	b.WriteString(strings.Repeat(" ", max(1, 12-len(label))))
	b.WriteString(value + "\n")
}

func statusStyle(s analysis.Status, st Styles) lipgloss.Style {
	switch s {
	case analysis.StatusCompleted:
		return st.Success
	case analysis.StatusAwaitingConfirm, analysis.StatusIncomplete:
		return st.Warning
	}
	return st.Error
}

func failureLine(f analysis.FailureDetail) string {
	line := f.Reason
	if f.ErrorMessage != "" {
		line += ": " + f.ErrorMessage
	}
	if f.TurnOccurred > 0 {
		line += fmt.Sprintf(" (turn %d)", f.TurnOccurred)
	}
	return line
}

func infoLines(info analysis.InformationGathered) []string {
	var lines []string
	add := func(label string, v *string) {
		if v != nil && *v != "" {
			lines = append(lines, fmt.Sprintf("%-12s%s", label+":", *v))
		}
	}
	add("Role", info.RoleType)
	add("Location", info.Location)
	add("Workplace", info.WorkplaceType)
	add("Employment", info.EmploymentType)
	add("Experience", info.ExperienceLevel)
	add("Salary", info.SalaryRange)
	add("Deadline", info.Deadline)
	if len(info.SkillsMentioned) > 0 {
		lines = append(lines, fmt.Sprintf("%-12s%s", "Skills:", strings.Join(info.SkillsMentioned, ", ")))
	}
	return lines
}

// Stats aggregates the run event log.
type Stats struct {
	Runs      int
	Completed int
	Failed    int
	Retries   int
	Skipped   int
	Tokens    int
	CostUSD   float64
	Duration  time.Duration
}

// Summarize folds log events into Stats. Durations and cost come from
// run_completed events only.
func Summarize(events []log.LogEvent) Stats {
	var s Stats
	for _, e := range events {
		switch e.Event {
		case log.EventRunCompleted:
			s.Runs++
			if e.Status == string(analysis.StatusCompleted) {
				s.Completed++
			}
			s.Tokens += e.Tokens
			s.CostUSD += e.CostUSD
			s.Duration += time.Duration(e.DurationMs) * time.Millisecond
		case log.EventRunFailed:
			s.Failed++
		case log.EventRunRetry:
			s.Retries++
		case log.EventRunSkipped:
			s.Skipped++
		}
	}
	return s
}

// FormatStats renders Stats as a short block for the history command.
func FormatStats(s Stats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Runs:        %d (%d completed successfully)\n", s.Runs, s.Completed)
	if s.Failed > 0 || s.Retries > 0 || s.Skipped > 0 {
		fmt.Fprintf(&b, "  Failed:    %d\n", s.Failed)
		fmt.Fprintf(&b, "  Retries:   %d\n", s.Retries)
		fmt.Fprintf(&b, "  Skipped:   %d\n", s.Skipped)
	}
	if s.Duration > 0 {
		fmt.Fprintf(&b, "Duration:    %s\n", formatDuration(s.Duration))
	}
	if s.Tokens > 0 {
		fmt.Fprintf(&b, "Tokens:      %d\n", s.Tokens)
	}
	if s.CostUSD > 0 {
		fmt.Fprintf(&b, "Cost:        $%.4f\n", s.CostUSD)
	}
	return b.String()
}

// formatDuration produces a human-readable duration string such as "5m 32s"
// or "1h 12m 5s". Sub-second durations are shown as "< 1s".
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "< 1s"
	}

	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60

	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}
