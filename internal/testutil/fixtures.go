// Package testutil provides test helper utilities for staffer-sims tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// TempProject creates a temporary directory with the given files and returns its path.
// Files is a map of relative path -> content. Directories are created as needed.
// The directory is automatically cleaned up when the test finishes.
func TempProject(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()

	for relPath, content := range files {
		absPath := filepath.Join(dir, relPath)
		if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
			t.Fatalf("creating directory for %s: %v", relPath, err)
		}
		if err := os.WriteFile(absPath, []byte(content), 0644); err != nil {
			t.Fatalf("writing %s: %v", relPath, err)
		}
	}

	return dir
}

// PersonaYAML is a complete hiring-manager persona.
const PersonaYAML = `name: Alex Rivera
role: Engineering Manager
voice: terse, busy, slightly stressed
goals:
  - hire a senior backend engineer quickly
  - keep the budget under control
behavior_dials:
  question_propensity:
    when_uncertain: 0.5
    when_budget: 0.4
  tangent_propensity:
    after_field_capture: 0.4
  elaboration_distribution:
    one_sentence: 0.7
    two_sentences: 0.3
  hesitation_patterns:
    - "Hmm…"
    - "Honestly…"
role_adherence: You are the hiring manager. The assistant is the recruiter.
forbidden_behaviors:
  - Acting as the recruiter
required_behaviors:
  - Answer the recruiter's question directly
response_formula: Answer in 1 sentence.
recovery_phrase: Sorry, I'm the one who needs help here.
character_motivation: You are drowning in work and need help fast.
`

// ScenarioYAML is a complete scenario with every pressure axis set.
const ScenarioYAML = `title: Urgent Backend Hire
entry_context: We need a senior backend engineer, our systems are getting hammered.
max_turns: 8
pressure_index:
  timeline: high
  quality: medium
  budget: low
`

// MinimalPersonaYAML carries only the required persona fields.
const MinimalPersonaYAML = "name: Sam\nrole: Founder\n"

// MinimalScenarioYAML carries only the required scenario fields.
const MinimalScenarioYAML = "title: Quick Chat\n"

// PersonaProject returns a file set containing persona and scenario fixtures
// under personas/ and scenarios/.
func PersonaProject() map[string]string {
	return map[string]string{
		"personas/alex.yaml":     PersonaYAML,
		"personas/minimal.yaml":  MinimalPersonaYAML,
		"scenarios/urgent.yaml":  ScenarioYAML,
		"scenarios/minimal.yaml": MinimalScenarioYAML,
		"prompts/recruiter.md":   RecruiterPromptMD,
		"prompts/no_section.md":  "# Recruiter\n\nAsk good questions.\n",
	}
}

// RecruiterPromptMD is a recruiter prompt with a custom mandatory field list.
const RecruiterPromptMD = `# Recruiter

### 🧱 MANDATORY FIELDS TO EXTRACT
- Job Title
- Location
  - If remote → Time Zones Allowed
- Vacancies

### ✅ CLOSURE
Summarize.
`
