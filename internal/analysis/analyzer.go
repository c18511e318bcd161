package analysis

import (
	"fmt"
	"strings"
)

var (
	summaryPhrases = []string{
		"here's the role", "here is the role", "to summarize", "summary of the role",
		"candidate preview", "publish", "job description", "role summary",
		"should i lock these in", "great, i've got everything",
	}
	confirmationPhrases = []string{
		"yes", "looks good", "that's correct", "perfect", "sounds good",
		"that works", "confirmed", "accurate", "exactly what i need",
	}
	roleAdherencePhrases     = []string{"sorry, i'm the one who needs help"}
	personaCharacteristics   = []string{"drowning in work", "systems are getting hammered"}
	recruiterPhrases         = []string{"i can help you with", "let me ask you about", "what's your budget", "i'll need to know", "let me gather", "i'm here to help you find"}
	breakingCharacterPhrases = []string{"i'm an ai", "as an ai", "i'm a language model", "i'm not real", "this is a simulation", "i'm programmed"}
	refusalPhrases           = []string{"i don't know", "i can't help"}
	tangentMarkers           = []string{"anyway", "side note", "btw"}
)

// Analyzer runs field extraction and outcome classification against a fixed
// set of mandatory fields.
type Analyzer struct {
	fields []Field
}

// NewAnalyzer returns an Analyzer for fields. An empty set uses
// DefaultMandatoryFields.
func NewAnalyzer(fields []Field) *Analyzer {
	if len(fields) == 0 {
		fields = DefaultMandatoryFields
	}
	return &Analyzer{fields: append([]Field(nil), fields...)}
}

// Fields returns a copy of the mandatory field set.
func (a *Analyzer) Fields() []Field {
	return append([]Field(nil), a.fields...)
}

// IsSummary reports whether a SUT reply announces a role summary.
func IsSummary(text string) bool {
	return containsAny(strings.ToLower(text), summaryPhrases)
}

// IsConfirmation reports whether a persona reply confirms a summary.
func IsConfirmation(text string) bool {
	return containsAny(strings.ToLower(text), confirmationPhrases)
}

// HasTangentMarker reports whether a persona reply textually drifts off
// topic.
func HasTangentMarker(text string) bool {
	return containsAny(strings.ToLower(text), tangentMarkers)
}

// AnalyzeCompleteness flags a conversation that misses more than half of the
// mandatory fields, or that ended before two full exchanges.
func (a *Analyzer) AnalyzeCompleteness(turns []Turn) []FailureDetail {
	var failures []FailureDetail

	extracted := a.ExtractFields(joinContent(turns))
	var missing, gathered []string
	for _, f := range a.fields {
		if extracted[f.Key] == "" {
			missing = append(missing, f.Label)
		} else {
			gathered = append(gathered, f.Key)
		}
	}

	total := len(a.fields)
	if 2*len(missing) > total {
		failures = append(failures, FailureDetail{
			Category: CategoryIncompleteInformation,
			Reason:   fmt.Sprintf("Missing %d out of %d mandatory fields", len(missing), total),
			Context: map[string]any{
				"missing_fields":        missing,
				"gathered_fields":       gathered,
				"completion_percentage": float64(total-len(missing)) / float64(total) * 100,
			},
		})
	}

	if len(turns) < 4 {
		failures = append(failures, FailureDetail{
			Category: CategoryUserAbandonment,
			Reason:   fmt.Sprintf("Conversation ended prematurely with only %d turns", len(turns)),
			Context:  map[string]any{"total_turns": len(turns)},
		})
	}

	return failures
}

// AnalyzePersonaAdherence checks persona turns for role reversal and broken
// character, and SUT turns for multi-question messages and refusals.
func AnalyzePersonaAdherence(turns []Turn) []FailureDetail {
	var failures []FailureDetail

	for i, turn := range turns {
		content := strings.ToLower(turn.Content)
		n := i + 1

		switch turn.Role {
		case RoleUser:
			if hits := matching(content, recruiterPhrases); len(hits) > 0 {
				failures = append(failures, FailureDetail{
					Category:     CategoryPersonaDrift,
					Reason:       "Proxy user acting like recruiter instead of hiring manager",
					TurnOccurred: n,
					Context:      map[string]any{"violating_phrases": hits},
				})
			}
			if hits := matching(content, breakingCharacterPhrases); len(hits) > 0 {
				failures = append(failures, FailureDetail{
					Category:     CategoryPersonaDrift,
					Reason:       "Proxy broke character and revealed AI nature",
					TurnOccurred: n,
					Context:      map[string]any{"breaking_phrases": hits},
				})
			}
		case RoleSystem:
			if q := strings.Count(content, "?"); q > 1 {
				failures = append(failures, FailureDetail{
					Category:     CategoryProtocolViolation,
					Reason:       fmt.Sprintf("SUT asked %d questions in one turn (should be 1)", q),
					TurnOccurred: n,
					Context:      map[string]any{"question_count": q},
				})
			}
			if containsAny(content, refusalPhrases) {
				failures = append(failures, FailureDetail{
					Category:     CategorySUTError,
					Reason:       "SUT expressed inability to help (should maintain recruiter role)",
					TurnOccurred: n,
				})
			}
		}
	}

	return failures
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

func matching(s string, phrases []string) []string {
	var hits []string
	for _, p := range phrases {
		if strings.Contains(s, p) {
			hits = append(hits, p)
		}
	}
	return hits
}

func joinContent(turns []Turn) string {
	parts := make([]string, len(turns))
	for i, t := range turns {
		parts[i] = t.Content
	}
	return strings.Join(parts, " ")
}
