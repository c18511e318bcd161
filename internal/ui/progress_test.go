package ui

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/staffer-dev/staffer-sims/internal/controller"
	"github.com/staffer-dev/staffer-sims/internal/simulate"
)

func TestProgressDisplayPlain(t *testing.T) {
	var buf bytes.Buffer
	p := newProgressDisplay(&buf, false, "Alex Rivera / Urgent Backend Hire", 6)
	p.Start()

	p.Phase(0, simulate.PhaseSUT)
	p.Phase(0, simulate.PhaseProxy)
	p.TurnDone(simulate.TurnEvent{Turn: 0, Elapsed: 3 * time.Second, Decision: controller.Decision{Tangent: true}})
	p.Phase(1, simulate.PhaseSUT)
	p.TurnDone(simulate.TurnEvent{Turn: 1, Elapsed: 2 * time.Second, Summary: true})
	p.Finish("completed_successfully", 100)

	want := []string{
		"[SUT] Turn 1/6",
		"[PERSONA] Turn 1/6",
		"[DONE [3s]] Turn 1/6 (tangent)",
		"[SUT] Turn 2/6",
		"[DONE [2s]] Turn 2/6 (summary)",
		"",
		"Done: 2/6 turns, completed_successfully (100%)",
	}
	got := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("output:\n%s\nwant:\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}
}

func TestProgressDisplayTTYRedraws(t *testing.T) {
	var buf bytes.Buffer
	p := newProgressDisplay(&buf, true, "run", 3)
	p.Start()
	p.Phase(0, simulate.PhaseSUT)
	p.TurnDone(simulate.TurnEvent{Turn: 0, Elapsed: time.Second, Decision: controller.Decision{ClarifyingAllowed: true}})

	out := buf.String()
	if !strings.Contains(out, "\033[3A") {
		t.Errorf("expected cursor-up redraw over header, blank and one turn line: %q", out)
	}
	if !strings.Contains(out, "Turn 1/3") || !strings.Contains(out, "clarify") {
		t.Errorf("turn line missing: %q", out)
	}
}

func TestProgressDisplayIgnoresEventsBeforeStart(t *testing.T) {
	var buf bytes.Buffer
	p := newProgressDisplay(&buf, false, "run", 2)
	p.Phase(0, simulate.PhaseSUT)
	if buf.Len() != 0 {
		t.Errorf("output before Start: %q", buf.String())
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{1400 * time.Millisecond, "1s"},
		{90 * time.Second, "1m30s"},
		{time.Hour + 2*time.Minute, "1h2m0s"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
