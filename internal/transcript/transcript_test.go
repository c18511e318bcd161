package transcript

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/staffer-dev/staffer-sims/internal/analysis"
)

func sampleTurns() []analysis.Turn {
	ctrl := "TURN CONTROLLER (turn 0, seed 42):\n- Clarifying question allowed: no"
	ts := time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)
	return []analysis.Turn{
		{Role: analysis.RoleSystem, Content: "Hi! What role are you hiring for?", Model: "gpt-4o-mini", Timestamp: ts},
		{Role: analysis.RoleUser, Content: "A senior backend engineer, \"urgently\" <3", Model: "openai/gpt-4o-mini", Timestamp: ts.Add(time.Second), TurnController: &ctrl},
	}
}

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Alex Rivera":              "alex-rivera",
		"  Urgent   Backend Hire ": "urgent-backend-hire",
		"Café & Co. (NYC)":         "caf--co-nyc",
		"snake_case-ok":            "snake_case-ok",
	}
	for in, want := range tests {
		if got := Slugify(in); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBaseName(t *testing.T) {
	got := BaseName("09-30_16-10-2026_run-abc123", "Alex Rivera", "Urgent Backend Hire")
	want := "09-30_16-10-2026_run-abc123__alex-rivera__urgent-backend-hire"
	if got != want {
		t.Errorf("BaseName = %q, want %q", got, want)
	}
}

func TestMarkdown(t *testing.T) {
	h := Header{RunID: "r1", Persona: "Alex Rivera", Scenario: "Urgent Backend Hire", Elapsed: 12500 * time.Millisecond, TimeoutLimit: 120}
	md := Markdown(h, sampleTurns(), false)

	for _, want := range []string{
		"# Transcript r1",
		"**Persona:** Alex Rivera",
		"**Scenario:** Urgent Backend Hire",
		"**SUT Model:** gpt-4o-mini (2026-10-16T09:30:00Z)",
		"**Proxy Model:** openai/gpt-4o-mini",
		"**Duration:** 12.5s / 120s",
		"**System**: Hi! What role are you hiring for?",
		"**User**: A senior backend engineer",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
	if strings.Contains(md, "<details>") {
		t.Error("controller block rendered without verbose")
	}
	if strings.Contains(md, "Failure Analysis") {
		t.Error("failure block rendered without outcome")
	}
}

func TestMarkdownVerboseAndFailures(t *testing.T) {
	h := Header{
		RunID: "r1", Persona: "P", Scenario: "S",
		Outcome: &analysis.Outcome{
			Status:          analysis.StatusIncomplete,
			CompletionLevel: 50,
			TotalFailures:   3,
			Failures: []analysis.FailureDetail{
				{Category: analysis.CategoryProtocolViolation, Reason: "SUT asked 2 questions", TurnOccurred: 1},
				{Category: analysis.CategoryIncompleteInformation, Reason: "no summary provided"},
				{Category: analysis.CategoryProtocolViolation, Reason: "SUT asked 3 questions", TurnOccurred: 3},
			},
		},
	}
	md := Markdown(h, sampleTurns(), true)

	if !strings.Contains(md, "<details><summary>Turn controller</summary>") {
		t.Errorf("verbose controller block missing:\n%s", md)
	}
	if strings.Index(md, "<details>") > strings.Index(md, "**User**") {
		t.Error("controller block should precede the persona turn")
	}
	section := md[strings.Index(md, "### protocol_violation"):]
	if !strings.Contains(section, "- SUT asked 2 questions (turn 1)\n- SUT asked 3 questions (turn 3)") {
		t.Errorf("failures not grouped by category:\n%s", md)
	}
	if strings.Count(md, "### ") != 2 {
		t.Errorf("expected 2 category headings:\n%s", md)
	}
}

func TestWriteAndReadJSONL(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "output")
	turns := sampleTurns()

	paths, err := Write(dir, Header{RunID: "r1", Persona: "Alex Rivera", Scenario: "Hire"}, turns, false)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if filepath.Base(paths.JSONL) != "r1__alex-rivera__hire.jsonl" {
		t.Errorf("jsonl path: %s", paths.JSONL)
	}
	if _, err := os.Stat(paths.Markdown); err != nil {
		t.Errorf("markdown not written: %v", err)
	}

	raw, err := os.ReadFile(paths.JSONL)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(raw), `\u003c`) {
		t.Errorf("html should not be escaped: %s", raw)
	}
	if !strings.Contains(string(raw), `"turn_controller":null`) {
		t.Errorf("SUT turn should carry a null turn_controller: %s", raw)
	}

	got, err := ReadJSONL(paths.JSONL)
	if err != nil {
		t.Fatalf("ReadJSONL: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d turns, want 2", len(got))
	}
	if got[1].TurnController == nil || *got[1].TurnController != *turns[1].TurnController {
		t.Errorf("controller text lost: %+v", got[1])
	}
	if !got[0].Timestamp.Equal(turns[0].Timestamp) {
		t.Errorf("timestamp: got %v", got[0].Timestamp)
	}
}

func TestReadJSONLMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.jsonl")
	if err := os.WriteFile(path, []byte("{\"role\":\"system\"}\nnot json\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadJSONL(path); err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Errorf("expected line 2 parse error, got %v", err)
	}
}

func TestRunIDRoundTrip(t *testing.T) {
	now := time.Date(2026, 10, 16, 14, 5, 0, 0, time.Local)
	id := NewRunID(now)

	if !strings.HasPrefix(id, "14-05_16-10-2026_run-") || len(id) != len("14-05_16-10-2026_run-")+6 {
		t.Errorf("unexpected run id %q", id)
	}
	got, ok := ParseRunID(id)
	if !ok || !got.Equal(now) {
		t.Errorf("ParseRunID(%q) = %v, %v", id, got, ok)
	}
	if _, ok := ParseRunID("notes.md"); ok {
		t.Error("expected non-run name to fail")
	}
}
