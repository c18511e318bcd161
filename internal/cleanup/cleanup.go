// Package cleanup implements pruning of old simulation transcripts.
package cleanup

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/staffer-dev/staffer-sims/internal/transcript"
)

// Group is every file an output directory holds for one run: the markdown
// and JSONL transcripts and the report.
type Group struct {
	RunID string
	Time  time.Time
	Files []string
}

// Groups collects the run groups in dir, oldest first. Files whose name does
// not start with a run id are ignored.
func Groups(dir string) ([]Group, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading output directory: %w", err)
	}

	byID := make(map[string]*Group)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		id := runIDOf(entry.Name())
		t, ok := transcript.ParseRunID(id)
		if !ok {
			continue
		}
		g, seen := byID[id]
		if !seen {
			g = &Group{RunID: id, Time: t}
			byID[id] = g
		}
		g.Files = append(g.Files, entry.Name())
	}

	groups := make([]Group, 0, len(byID))
	for _, g := range byID {
		groups = append(groups, *g)
	}
	// Run ids do not sort chronologically as strings.
	sort.Slice(groups, func(i, j int) bool {
		if !groups[i].Time.Equal(groups[j].Time) {
			return groups[i].Time.Before(groups[j].Time)
		}
		return groups[i].RunID < groups[j].RunID
	})
	return groups, nil
}

// PruneByAge removes run groups older than maxAgeDays.
// If dryRun is true, no files are deleted; the function only returns
// the run ids that would be removed. Returns the list of pruned run ids.
func PruneByAge(dir string, maxAgeDays int, dryRun bool) ([]string, error) {
	groups, err := Groups(dir)
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().AddDate(0, 0, -maxAgeDays)
	var pruned []string

	for _, g := range groups {
		if !g.Time.Before(cutoff) {
			continue
		}
		if !dryRun {
			if err := removeGroup(dir, g); err != nil {
				return pruned, err
			}
		}
		pruned = append(pruned, g.RunID)
	}

	return pruned, nil
}

// PruneKeepRecent removes all run groups except the most recent keep
// runs. If dryRun is true, no files are deleted. Returns the list of pruned
// run ids, oldest first.
func PruneKeepRecent(dir string, keep int, dryRun bool) ([]string, error) {
	groups, err := Groups(dir)
	if err != nil {
		return nil, err
	}

	if len(groups) <= keep {
		return nil, nil
	}

	var pruned []string
	for _, g := range groups[:len(groups)-keep] {
		if !dryRun {
			if err := removeGroup(dir, g); err != nil {
				return pruned, err
			}
		}
		pruned = append(pruned, g.RunID)
	}

	return pruned, nil
}

func removeGroup(dir string, g Group) error {
	for _, name := range g.Files {
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing %s: %w", name, err)
		}
	}
	return nil
}

// runIDOf returns the leading run id of a transcript file name such as
// "14-05_16-10-2026_run-3fa2c1__alex__backend-hire.jsonl".
func runIDOf(name string) string {
	if id, _, ok := strings.Cut(name, "__"); ok {
		return id
	}
	id, _, _ := strings.Cut(name, ".")
	return id
}
