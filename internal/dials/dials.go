// Package dials derives the per-run behavior dials of the simulated persona
// from its propensities and the scenario's pressure index, and renders the
// interaction contract that carries those dials into the persona prompt.
package dials

import (
	"encoding/binary"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/staffer-dev/staffer-sims/internal/persona"
)

// Default propensities used when the persona leaves them unset.
const (
	DefaultWhenUncertain     = 0.6
	DefaultAfterFieldCapture = 0.3
	DefaultTwoSentences      = 0.25
)

// Dials are the three probabilities that gate persona behavior for one run.
// They are fixed once computed.
type Dials struct {
	ClarifyingQuestionProb float64 `json:"clarifying_question_prob"`
	TangentProbAfterField  float64 `json:"tangent_prob_after_field"`
	HesitationInsertProb   float64 `json:"hesitation_insert_prob"`
}

var levelValues = map[persona.Level]float64{
	persona.LevelHigh:   1.0,
	persona.LevelMedium: 0.7,
	persona.LevelLow:    0.4,
}

// LevelValue maps a pressure level to its numeric weight. Unset or
// unrecognised levels count as medium.
func LevelValue(l persona.Level) float64 {
	if v, ok := levelValues[persona.Level(strings.ToLower(string(l)))]; ok {
		return v
	}
	return levelValues[persona.LevelMedium]
}

// Compute derives the dials for p in s and resolves the run seed. The
// scenario's RNGSeed wins when set; otherwise a fresh seed is drawn.
func Compute(p *persona.Persona, s *persona.Scenario) (Dials, uint32) {
	timeline := LevelValue(s.PressureIndex.Timeline)
	quality := LevelValue(s.PressureIndex.Quality)
	budget := LevelValue(s.PressureIndex.Budget)
	pressureAvg := (timeline + quality + budget) / 3

	whenUncertain := valueOr(p.BehaviorDials.QuestionPropensity.WhenUncertain, DefaultWhenUncertain)
	afterField := valueOr(p.BehaviorDials.TangentPropensity.AfterFieldCapture, DefaultAfterFieldCapture)
	twoSentences := valueOr(p.BehaviorDials.ElaborationDistribution.TwoSentences, DefaultTwoSentences)

	clarify := clamp01(whenUncertain * pressureAvg)
	clarify = clamp01(clarify * (0.9 + 0.2*budget))

	d := Dials{
		ClarifyingQuestionProb: round3(clarify),
		TangentProbAfterField:  round3(clamp01(afterField * math.Min(1, pressureAvg))),
		HesitationInsertProb:   round3(clamp01(twoSentences)),
	}

	seed := NewSeed()
	if s.RNGSeed != nil {
		seed = *s.RNGSeed
	}
	return d, seed
}

// NewSeed returns a 32-bit seed taken from the first eight hex digits of a
// random UUID.
func NewSeed() uint32 {
	id := uuid.New()
	return binary.BigEndian.Uint32(id[:4])
}

func valueOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}

func round3(x float64) float64 {
	return math.Round(x*1000) / 1000
}
