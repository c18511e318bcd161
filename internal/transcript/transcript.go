// Package transcript renders finished conversations to markdown and JSONL
// files and reads JSONL transcripts back for viewing.
package transcript

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/staffer-dev/staffer-sims/internal/analysis"
)

// Header describes the run a transcript belongs to.
type Header struct {
	RunID        string
	Persona      string
	Scenario     string
	Elapsed      time.Duration
	TimeoutLimit int // seconds
	Outcome      *analysis.Outcome
}

// Paths are the files written for one run.
type Paths struct {
	Markdown string
	JSONL    string
}

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	unsafeRe     = regexp.MustCompile(`[^a-z0-9_-]`)
)

// Slugify lowercases s, turns whitespace runs into dashes and drops anything
// outside [a-z0-9_-].
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = whitespaceRe.ReplaceAllString(s, "-")
	return unsafeRe.ReplaceAllString(s, "")
}

// BaseName is the shared file name stem of a run's outputs.
func BaseName(runID, persona, scenario string) string {
	if persona == "" {
		persona = "persona"
	}
	if scenario == "" {
		scenario = "scenario"
	}
	return runID + "__" + Slugify(persona) + "__" + Slugify(scenario)
}

// Write saves the markdown and JSONL transcripts into dir, creating it if needed.
func Write(dir string, h Header, turns []analysis.Turn, verbose bool) (Paths, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return Paths{}, fmt.Errorf("creating output directory: %w", err)
	}

	base := filepath.Join(dir, BaseName(h.RunID, h.Persona, h.Scenario))
	paths := Paths{Markdown: base + ".md", JSONL: base + ".jsonl"}

	if err := os.WriteFile(paths.Markdown, []byte(Markdown(h, turns, verbose)), 0644); err != nil {
		return Paths{}, fmt.Errorf("writing markdown transcript: %w", err)
	}
	if err := writeJSONL(paths.JSONL, turns); err != nil {
		return Paths{}, err
	}
	return paths, nil
}

func writeJSONL(path string, turns []analysis.Turn) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating jsonl transcript: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, t := range turns {
		if err := enc.Encode(t); err != nil {
			return fmt.Errorf("encoding turn: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("writing jsonl transcript: %w", err)
	}
	return nil
}

// Markdown renders the human-readable transcript. With verbose set, each
// persona turn that carries controller output is preceded by a collapsible
// audit block.
func Markdown(h Header, turns []analysis.Turn, verbose bool) string {
	blocks := []string{
		"# Transcript " + h.RunID,
		"**Persona:** " + h.Persona,
		"**Scenario:** " + h.Scenario,
	}
	if line := modelLine("SUT", analysis.RoleSystem, turns); line != "" {
		blocks = append(blocks, line)
	}
	if line := modelLine("Proxy", analysis.RoleUser, turns); line != "" {
		blocks = append(blocks, line)
	}
	if h.Elapsed > 0 {
		d := fmt.Sprintf("**Duration:** %.1fs", h.Elapsed.Seconds())
		if h.TimeoutLimit > 0 {
			d += fmt.Sprintf(" / %ds", h.TimeoutLimit)
		}
		blocks = append(blocks, d)
	}
	if h.Outcome != nil && len(h.Outcome.Failures) > 0 {
		blocks = append(blocks, failureBlock(*h.Outcome))
	}
	blocks = append(blocks, "")

	for _, t := range turns {
		if verbose && t.Role == analysis.RoleUser && t.TurnController != nil {
			blocks = append(blocks, "<details><summary>Turn controller</summary>\n\n```\n"+
				strings.TrimSpace(*t.TurnController)+"\n```\n\n</details>")
		}
		blocks = append(blocks, fmt.Sprintf("**%s**: %s", roleTitle(t.Role), t.Content))
	}
	return strings.Join(blocks, "\n\n")
}

func roleTitle(r analysis.Role) string {
	s := string(r)
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// modelLine reports the model and first reply time of a role.
func modelLine(label string, role analysis.Role, turns []analysis.Turn) string {
	for _, t := range turns {
		if t.Role != role || t.Model == "" {
			continue
		}
		line := fmt.Sprintf("**%s Model:** %s", label, t.Model)
		if !t.Timestamp.IsZero() {
			line += " (" + t.Timestamp.UTC().Format(time.RFC3339) + ")"
		}
		return line
	}
	return ""
}

// failureBlock groups failures by category in order of first appearance.
func failureBlock(o analysis.Outcome) string {
	var order []analysis.FailureCategory
	byCat := make(map[analysis.FailureCategory][]analysis.FailureDetail)
	for _, f := range o.Failures {
		if _, seen := byCat[f.Category]; !seen {
			order = append(order, f.Category)
		}
		byCat[f.Category] = append(byCat[f.Category], f)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## Failure Analysis\n\n**Status:** %s (%d%%), %d failure(s)\n", o.Status, o.CompletionLevel, o.TotalFailures)
	for _, cat := range order {
		fmt.Fprintf(&b, "\n### %s\n", cat)
		for _, f := range byCat[cat] {
			b.WriteString("- " + f.Reason)
			if f.TurnOccurred > 0 {
				fmt.Fprintf(&b, " (turn %d)", f.TurnOccurred)
			}
			if f.ErrorMessage != "" {
				b.WriteString(": " + f.ErrorMessage)
			}
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// ReadJSONL loads the turns of a JSONL transcript.
func ReadJSONL(path string) ([]analysis.Turn, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening transcript: %w", err)
	}
	defer f.Close()

	var turns []analysis.Turn
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		var t analysis.Turn
		if err := json.Unmarshal(line, &t); err != nil {
			return nil, fmt.Errorf("parse transcript line %d: %w", lineNum, err)
		}
		turns = append(turns, t)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading transcript: %w", err)
	}
	return turns, nil
}
