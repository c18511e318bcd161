package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/staffer-dev/staffer-sims/internal/analysis"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), ".staffer", DBFile))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSaveAndGetRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run := &Run{
		ID: "r1", Persona: "Alex Rivera", Scenario: "Urgent Backend Hire",
		Seed: 4294967295, SeedExplicit: true,
		Status: string(analysis.StatusIncomplete), CompletionLevel: 50, TotalTurns: 2,
		ElapsedSeconds: 3.5, TranscriptPath: "out/r1.md", JSONLPath: "out/r1.jsonl",
		TotalTokens: 120, EstimatedCost: 0.0001,
	}
	turns := []analysis.Turn{
		{Role: analysis.RoleSystem, Content: "What role?"},
		{Role: analysis.RoleUser, Content: "Backend engineer."},
	}
	failures := []analysis.FailureDetail{
		{Category: analysis.CategoryUserAbandonment, Reason: "conversation too short"},
		{Category: analysis.CategoryProtocolViolation, Reason: "two questions", TurnOccurred: 1},
	}

	if err := s.SaveRun(ctx, run, turns, failures); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	got, err := s.GetRun(ctx, "r1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got == nil {
		t.Fatal("run not found")
	}
	if got.Seed != 4294967295 || !got.SeedExplicit || got.CompletionLevel != 50 || got.TimeoutReached {
		t.Errorf("unexpected run: %+v", got)
	}

	storedTurns, err := s.Turns(ctx, "r1")
	if err != nil {
		t.Fatalf("Turns: %v", err)
	}
	if len(storedTurns) != 2 || storedTurns[0].Turn != 1 || storedTurns[1].Role != "user" {
		t.Errorf("unexpected turns: %+v", storedTurns)
	}

	storedFailures, err := s.Failures(ctx, "r1")
	if err != nil {
		t.Fatalf("Failures: %v", err)
	}
	if len(storedFailures) != 2 || storedFailures[0].TurnOccurred != 0 || storedFailures[1].TurnOccurred != 1 {
		t.Errorf("unexpected failures: %+v", storedFailures)
	}
}

func TestGetRunMissing(t *testing.T) {
	s := newTestStore(t)
	got, err := s.GetRun(context.Background(), "nope")
	if err != nil || got != nil {
		t.Errorf("GetRun missing: got %v, %v", got, err)
	}
}

func TestSaveRunDuplicateIDFails(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	run := &Run{ID: "dup", Persona: "P", Scenario: "S", Status: "incomplete"}
	if err := s.SaveRun(ctx, run, nil, nil); err != nil {
		t.Fatalf("first SaveRun: %v", err)
	}
	if err := s.SaveRun(ctx, run, []analysis.Turn{{Role: analysis.RoleSystem, Content: "x"}}, nil); err == nil {
		t.Fatal("expected primary key violation")
	}
	turns, err := s.Turns(ctx, "dup")
	if err != nil {
		t.Fatal(err)
	}
	if len(turns) != 0 {
		t.Errorf("failed transaction left %d turns behind", len(turns))
	}
}

func TestFindCompleted(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	save := func(id string, seed uint32, explicit bool, status analysis.Status) {
		t.Helper()
		err := s.SaveRun(ctx, &Run{ID: id, Persona: "Alex", Scenario: "Hire", Seed: seed, SeedExplicit: explicit, Status: string(status)}, nil, nil)
		if err != nil {
			t.Fatalf("SaveRun %s: %v", id, err)
		}
	}
	save("incomplete", 7, true, analysis.StatusIncomplete)
	save("random-seed", 8, false, analysis.StatusCompleted)
	save("done", 7, true, analysis.StatusCompleted)

	got, err := s.FindCompleted(ctx, "Alex", "Hire", 7)
	if err != nil {
		t.Fatalf("FindCompleted: %v", err)
	}
	if got == nil || got.ID != "done" {
		t.Errorf("expected run done, got %+v", got)
	}

	got, err = s.FindCompleted(ctx, "Alex", "Hire", 8)
	if err != nil {
		t.Fatalf("FindCompleted: %v", err)
	}
	if got != nil {
		t.Errorf("runs with a generated seed must not count as duplicates: %+v", got)
	}
}

func TestRecent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		run := &Run{ID: id, Persona: "P", Scenario: "S", Status: "incomplete", CreatedAt: base.Add(time.Duration(i) * time.Hour)}
		if err := s.SaveRun(ctx, run, nil, nil); err != nil {
			t.Fatalf("SaveRun: %v", err)
		}
	}

	runs, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "c" || runs[1].ID != "b" {
		t.Errorf("unexpected order: %+v", runs)
	}
	if !runs[0].CreatedAt.Equal(base.Add(2 * time.Hour)) {
		t.Errorf("CreatedAt: got %v", runs[0].CreatedAt)
	}
}
