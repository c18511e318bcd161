package log

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestNewLoggerCreatesStateDir(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLogger(dir)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, StateDir)); err != nil {
		t.Fatalf("state dir missing: %v", err)
	}
	if got, want := l.Path(), filepath.Join(dir, StateDir, "log.jsonl"); got != want {
		t.Errorf("Path: got %q, want %q", got, want)
	}
}

func TestReadAllMissingFile(t *testing.T) {
	l, err := NewLogger(t.TempDir())
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	events, err := l.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("expected no events, got %d", len(events))
	}
}

func TestAppendAndForRun(t *testing.T) {
	l, err := NewLogger(t.TempDir())
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}

	mustAppend := func(e LogEvent) {
		t.Helper()
		if err := l.Append(e); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	mustAppend(LogEvent{Event: EventRunStarted, RunID: "a", Persona: "Alex", Seed: 42})
	mustAppend(LogEvent{Event: EventRunStarted, RunID: "b"})
	mustAppend(LogEvent{Event: EventRunCompleted, RunID: "a", Status: "incomplete", CompletionLevel: 50})

	events, err := l.ForRun("a")
	if err != nil {
		t.Fatalf("ForRun: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Time.IsZero() {
		t.Error("time not stamped")
	}
	if events[0].Seed != 42 || events[1].CompletionLevel != 50 {
		t.Errorf("fields not preserved: %+v", events)
	}
}

func TestAppendConcurrent(t *testing.T) {
	l, err := NewLogger(t.TempDir())
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(turn int) {
			defer wg.Done()
			_ = l.Append(LogEvent{Event: EventTurnCompleted, RunID: "r", Turn: turn})
		}(i)
	}
	wg.Wait()

	events, err := l.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(events) != 20 {
		t.Errorf("got %d events, want 20", len(events))
	}
}
