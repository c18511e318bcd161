package analysis

import (
	"fmt"
	"strings"
)

// ClassifyInput carries the transcript and the side-channel signals the
// engine observed while running it.
type ClassifyInput struct {
	Turns              []Turn
	SUTProvidedSummary bool
	ProxyConfirmed     bool
	TimeoutReached     bool
	APIErrors          []string
	ElapsedTime        float64 // seconds
	TimeoutLimit       int     // seconds
}

// Classify maps a finished conversation to its terminal status. A timeout
// takes precedence over API errors, and either suppresses the success path.
// Adherence and completeness detectors always run.
func (a *Analyzer) Classify(in ClassifyInput) Outcome {
	out := Outcome{
		Status:            StatusIncomplete,
		SuccessIndicators: []string{},
		Issues:            []string{},
	}
	var failures []FailureDetail

	if in.TimeoutReached {
		failures = append(failures, FailureDetail{
			Category: CategoryTimeout,
			Reason:   fmt.Sprintf("Conversation exceeded %ds time limit", in.TimeoutLimit),
			Context: map[string]any{
				"elapsed_time":    in.ElapsedTime,
				"timeout_limit":   in.TimeoutLimit,
				"turns_completed": len(in.Turns),
			},
		})
		out.Status = StatusTimeout
		out.CompletionLevel = 25
		out.Issues = append(out.Issues, "conversation_timeout")
	}

	if len(in.APIErrors) > 0 {
		for i, msg := range in.APIErrors {
			failures = append(failures, FailureDetail{
				Category:     apiErrorCategory(msg),
				Reason:       "API request failed during conversation",
				ErrorMessage: msg,
				Context:      map[string]any{"error_index": i},
			})
		}
		if !in.TimeoutReached {
			out.Status = StatusError
			out.CompletionLevel = 10
			out.Issues = append(out.Issues, "api_errors_occurred")
		}
	}

	failures = append(failures, AnalyzePersonaAdherence(in.Turns)...)
	failures = append(failures, a.AnalyzeCompleteness(in.Turns)...)

	if !in.TimeoutReached && len(in.APIErrors) == 0 {
		switch {
		case in.SUTProvidedSummary && in.ProxyConfirmed:
			out.Status = StatusCompleted
			out.CompletionLevel = 100
			out.SuccessIndicators = append(out.SuccessIndicators, "role_summary_provided", "user_confirmed_summary")
		case in.SUTProvidedSummary:
			out.Status = StatusAwaitingConfirm
			out.CompletionLevel = 80
			out.SuccessIndicators = append(out.SuccessIndicators, "role_summary_provided")
			out.Issues = append(out.Issues, "user_did_not_confirm")
			failures = append(failures, FailureDetail{
				Category: CategoryUserAbandonment,
				Reason:   "User did not confirm the provided summary",
			})
		default:
			out.Status = StatusIncomplete
			out.CompletionLevel = 50
			out.Issues = append(out.Issues, "no_role_summary_provided")
			failures = append(failures, FailureDetail{
				Category: CategoryIncompleteInformation,
				Reason:   "SUT did not provide a role summary",
			})
		}
	}

	for _, turn := range in.Turns {
		if turn.Role != RoleUser {
			continue
		}
		content := strings.ToLower(turn.Content)
		if containsAny(content, roleAdherencePhrases) {
			out.SuccessIndicators = append(out.SuccessIndicators, "role_adherence_maintained")
		}
		if containsAny(content, personaCharacteristics) {
			out.SuccessIndicators = append(out.SuccessIndicators, "persona_characteristics_expressed")
		}
	}

	if failures == nil {
		failures = []FailureDetail{}
	}
	out.Failures = failures
	out.TotalFailures = len(failures)
	return out
}

func apiErrorCategory(msg string) FailureCategory {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "sut"):
		return CategorySUTError
	case strings.Contains(lower, "proxy"):
		return CategoryProxyError
	}
	return CategoryAPIError
}
