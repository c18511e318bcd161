package dials

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/staffer-dev/staffer-sims/internal/persona"
)

// DefaultHesitationPatterns is used when the persona defines none.
var DefaultHesitationPatterns = []string{"Hmm…", "Honestly…", "Let me think…"}

// BuildContract renders the interaction contract embedded once per run in the
// persona system prompt. The dial values are written exactly as computed so
// the prompt and the turn controller agree.
func BuildContract(p *persona.Persona, s *persona.Scenario, d Dials, seed uint32) string {
	patterns := p.BehaviorDials.HesitationPatterns
	if len(patterns) == 0 {
		patterns = DefaultHesitationPatterns
	}

	lines := []string{
		"INTERACTION CONTRACT (engine-controlled):",
		"PRIORITIES:",
		"1) mandatory_fields (answer recruiter; provide the requested field)",
		"2) consultative_questions (only after fields are provided)",
		"3) tangent_handling (micro-detours max 1 every 3–4 turns; resume last question)",
		"4) closure_policy (when recruiter summarizes, confirm succinctly)",
		"BEHAVIOR DIALS:",
		"- clarifying_question_prob: " + FormatProb(d.ClarifyingQuestionProb),
		"- tangent_prob_after_field: " + FormatProb(d.TangentProbAfterField),
		"- hesitation_insert_prob: " + FormatProb(d.HesitationInsertProb),
		fmt.Sprintf("- randomness_seed: %d", seed),
		"HESITATION PATTERNS: " + strings.Join(patterns, ", "),
	}
	return strings.Join(lines, "\n")
}

// FormatProb prints a dial with the shortest exact representation.
func FormatProb(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Tags returns the trace tags describing a run's persona, scenario and dials.
func Tags(p *persona.Persona, s *persona.Scenario, d Dials, seed uint32) []string {
	return []string{
		p.Name,
		s.Title,
		fmt.Sprintf("seed:%d", seed),
		fmt.Sprintf("clarify:%.2f", d.ClarifyingQuestionProb),
		fmt.Sprintf("tangent:%.2f", d.TangentProbAfterField),
		fmt.Sprintf("hesitation:%.2f", d.HesitationInsertProb),
	}
}
