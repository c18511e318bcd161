package simulate

import (
	"regexp"
	"strings"

	"github.com/staffer-dev/staffer-sims/internal/controller"
)

// Patterns for clarifying questions the persona may not ask on a turn where
// the controller forbids them. Order matters: specific lead-ins are removed
// before the catch-all question sentence.
var clarifyingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:just\s+)?to\s+clarify[^.!?]*\?`),
	regexp.MustCompile(`(?i)quick\s+question[:,]?[^.!?]*\?`),
	regexp.MustCompile(`(?i)(?:i\s+was|i'm|i\s+am)\s+wondering\s+(?:if|whether|what|how)[^.!?]*[.?]?`),
	regexp.MustCompile(`(?i)(?:could|can|would)\s+you\s+(?:clarify|explain|elaborate|tell\s+me|confirm|specify)[^.!?]*[.?]?`),
	regexp.MustCompile(`(?i)what\s+(?:do|did|does)\s+(?:you|that|this)\s+mean[^.!?]*\?`),
	regexp.MustCompile(`(?i)(?:do|did)\s+you\s+(?:mean|need|want)[^.!?]*\?`),
	regexp.MustCompile(`(?i)(?:is|are)\s+(?:that|this|there|those)\b[^.!?]*\?`),
	regexp.MustCompile(`(?i)(?:any|anything)\s+(?:else|other)[^.!?]*\?`),
	regexp.MustCompile(`(?i)(?:let\s+me\s+know|tell\s+me)\s+(?:if|whether)[^.!?]*[.?]?`),
	regexp.MustCompile(`(?i)(?:right|correct|ok|okay|yeah)\s*\?`),
	regexp.MustCompile(`[^.!?]*\?`),
}

var (
	spaceRunRe    = regexp.MustCompile(`[ \t]{2,}`)
	danglingPunct = regexp.MustCompile(`[\s,;:\-–—]+$`)
	spaceBeforeRe = regexp.MustCompile(`\s+([.,!;:])`)
)

// Phrases in a SUT reply that invite the persona to ask back.
var uncertaintyTriggers = []string{
	"not sure", "unclear", "could you clarify", "can you clarify", "do you mean",
	"can you elaborate", "could you elaborate", "depends on", "it depends",
	"which one", "either", "options", "would you prefer", "let me know if",
}

var clarifyingQuestions = []string{
	"Sorry, what exactly do you mean by that?",
	"Just so I'm clear, what do you need from me there?",
	"Can you say a bit more about what you're after?",
}

var tangentPhrases = []string{
	"Side note, our on-call rotation has been brutal this month. Anyway, back to your question.",
	"Btw, the team just finished a painful migration. Anyway, where were we.",
	"Side note, half the team is out next week. Anyway, carry on.",
}

// StripClarifyingQuestions removes clarifying questions from a persona reply
// and tidies the trailing punctuation. If nothing would be left, the reply is
// returned with every question mark turned into a period.
func StripClarifyingQuestions(text string) string {
	out := text
	for _, re := range clarifyingPatterns {
		out = re.ReplaceAllString(out, "")
	}
	out = strings.TrimSpace(spaceRunRe.ReplaceAllString(out, " "))
	out = spaceBeforeRe.ReplaceAllString(out, "$1")
	out = danglingPunct.ReplaceAllString(out, "")

	if out == "" {
		return strings.TrimSpace(strings.ReplaceAll(text, "?", "."))
	}
	if out == strings.TrimSpace(text) {
		return out
	}
	if !strings.ContainsAny(out[len(out)-1:], ".!") {
		out += "."
	}
	return out
}

// ShowsUncertainty reports whether a SUT reply contains an uncertainty trigger.
func ShowsUncertainty(sutReply string) bool {
	lower := strings.ToLower(sutReply)
	for _, t := range uncertaintyTriggers {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}

// ApplyFilters enforces a turn decision on the persona reply. Canned phrases
// are picked deterministically from the run seed and turn.
func ApplyFilters(reply, sutReply string, d controller.Decision, seed uint32, turn int) string {
	out := reply
	if !d.ClarifyingAllowed {
		out = StripClarifyingQuestions(out)
	} else if ShowsUncertainty(sutReply) {
		out = appendSentence(out, pick(clarifyingQuestions, seed, turn, "clarify_phrase"))
	}
	if d.Tangent {
		out = appendSentence(out, pick(tangentPhrases, seed, turn, "tangent_phrase"))
	}
	return out
}

func pick(options []string, seed uint32, turn int, kind string) string {
	i := int(controller.HashRoll(seed, turn, kind) * float64(len(options)))
	return options[min(i, len(options)-1)]
}

func appendSentence(text, sentence string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return sentence
	}
	return text + " " + sentence
}
