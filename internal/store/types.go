// Package store provides SQLite-backed persistence for simulation runs.
package store

import "time"

// Run is one persisted simulation run.
type Run struct {
	ID              string
	Persona         string
	Scenario        string
	Seed            uint32
	SeedExplicit    bool // seed came from the CLI, config or scenario rather than entropy
	Status          string
	CompletionLevel int
	TotalTurns      int
	ElapsedSeconds  float64
	TimeoutReached  bool
	TranscriptPath  string
	JSONLPath       string
	TotalTokens     int
	EstimatedCost   float64
	CreatedAt       time.Time
}

// TurnRow is a stored conversation turn. Turn is 1-based.
type TurnRow struct {
	RunID   string
	Turn    int
	Role    string
	Content string
}

// FailureRow is a stored failure detail.
type FailureRow struct {
	RunID        string
	Category     string
	Reason       string
	ErrorMessage string
	TurnOccurred int
}
