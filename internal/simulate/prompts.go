package simulate

import (
	"log/slog"
	"os"
	"strings"

	"github.com/staffer-dev/staffer-sims/internal/persona"
	"github.com/staffer-dev/staffer-sims/prompts"
)

// FirstTurnFallback replaces a first SUT message that breaks the
// single-greeting-question rule.
const FirstTurnFallback = "Hi — how can I help you?"

// maxGreetingLen bounds the text kept before the first question mark on turn 0.
const maxGreetingLen = 500

// BuildProxySystemPrompt assembles the persona proxy's system prompt from the
// persona, the scenario and the run's interaction contract.
func BuildProxySystemPrompt(p *persona.Persona, s *persona.Scenario, contract string) string {
	var parts []string
	list := func(header string, items []string) {
		if len(items) == 0 {
			return
		}
		parts = append(parts, header)
		for _, item := range items {
			parts = append(parts, "- "+item)
		}
	}

	if p.RoleAdherence != "" {
		parts = append(parts, p.RoleAdherence)
	}
	list("FORBIDDEN BEHAVIORS:", p.ForbiddenBehaviors)
	list("REQUIRED BEHAVIORS:", p.RequiredBehaviors)
	if p.ResponseFormula != "" {
		parts = append(parts, "RESPONSE FORMULA: "+p.ResponseFormula)
		formula := strings.ToLower(p.ResponseFormula)
		if strings.Contains(formula, "1 sentence") || strings.Contains(formula, "one sentence") {
			parts = append(parts, "HARD LIMIT: Your replies MUST be a single sentence only. No multi-part answers.")
		}
	}
	if p.RecoveryPhrase != "" {
		parts = append(parts, "RECOVERY PHRASE: "+p.RecoveryPhrase)
	}
	if p.CharacterMotivation != "" {
		parts = append(parts, "CHARACTER MOTIVATION: "+p.CharacterMotivation)
	}

	if s.RoleAdherence != "" {
		parts = append(parts, s.RoleAdherence)
	}
	list("FORBIDDEN BEHAVIORS (scenario):", s.ForbiddenBehaviors)
	list("REQUIRED BEHAVIORS (scenario):", s.RequiredBehaviors)
	// Persona-level formula and recovery phrase take precedence.
	if s.ResponseFormula != "" && p.ResponseFormula == "" {
		parts = append(parts, "RESPONSE FORMULA (scenario): "+s.ResponseFormula)
	}
	if s.RecoveryPhrase != "" && p.RecoveryPhrase == "" {
		parts = append(parts, "RECOVERY PHRASE (scenario): "+s.RecoveryPhrase)
	}
	if s.CharacterMotivation != "" {
		parts = append(parts, "CHARACTER MOTIVATION (scenario): "+s.CharacterMotivation)
	}

	if s.Title != "" || s.EntryContext != "" {
		parts = append(parts, "SCENARIO CONTEXT (for grounding, do not repeat verbatim):")
		if s.Title != "" {
			parts = append(parts, "- Title: "+s.Title)
		}
		if entry := strings.TrimSpace(s.EntryContext); entry != "" {
			parts = append(parts, "- Entry context: "+entry)
		}
		parts = append(parts,
			"Respond in one natural sentence. Align with the scenario context; do not invent a different role title.",
			"If greeted with 'How can I help you?', state your hiring need from the entry context succinctly.",
			"Never mirror or repeat the assistant's question verbatim; answer directly and concisely.",
		)
	}

	if contract != "" {
		parts = append(parts, contract)
	}
	return strings.Join(parts, "\n")
}

// LoadRecruiterPrompt reads the SUT system prompt from path. An empty path
// uses the embedded prompt; an unreadable file falls back to the embedded
// prompt and then to a one-line instruction.
func LoadRecruiterPrompt(path string, logger *slog.Logger) string {
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil && strings.TrimSpace(string(data)) != "" {
			return string(data)
		}
		if logger != nil {
			logger.Warn("recruiter prompt not readable, using embedded prompt", "path", path, "error", err)
		}
	}
	if strings.TrimSpace(prompts.RecruiterPrompt) != "" {
		return prompts.RecruiterPrompt
	}
	return prompts.RecruiterFallback
}

// sutSystemPrompt is the dialog controller block followed by the intro
// prompt on turn 0 or the recruiter prompt afterwards.
func sutSystemPrompt(turn int, recruiter string) string {
	body := recruiter
	if turn == 0 {
		body = prompts.IntroPrompt
	}
	return strings.TrimRight(prompts.DialogController, "\n") + "\n\n" + body
}

// EnforceFirstTurn keeps the greeting up to and including the first question
// mark. Replies with no question, or an overlong greeting, are replaced by
// FirstTurnFallback.
func EnforceFirstTurn(text string) string {
	if text == "" {
		return FirstTurnFallback
	}
	q := strings.Index(text, "?")
	if q == -1 {
		return FirstTurnFallback
	}
	trimmed := strings.TrimSpace(text[:q+1])
	if len([]rune(trimmed)) > maxGreetingLen {
		return FirstTurnFallback
	}
	return trimmed
}

// EnforceSingleQuestion truncates text after its first question mark when a
// second one follows.
func EnforceSingleQuestion(text string) string {
	q := strings.Index(text, "?")
	if q == -1 || !strings.Contains(text[q+1:], "?") {
		return text
	}
	return strings.TrimSpace(text[:q+1])
}
