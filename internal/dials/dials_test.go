package dials

import (
	"strings"
	"testing"

	"github.com/staffer-dev/staffer-sims/internal/persona"
)

func ptr[T any](v T) *T { return &v }

func TestComputeDefaults(t *testing.T) {
	p := &persona.Persona{Name: "Sam", Role: "Founder"}
	s := &persona.Scenario{Title: "t", RNGSeed: ptr(uint32(42))}

	d, seed := Compute(p, s)

	if seed != 42 {
		t.Errorf("seed: got %d, want 42", seed)
	}
	want := Dials{ClarifyingQuestionProb: 0.437, TangentProbAfterField: 0.21, HesitationInsertProb: 0.25}
	if d != want {
		t.Errorf("dials: got %+v, want %+v", d, want)
	}
}

func TestComputeUsesPressureIndex(t *testing.T) {
	p := &persona.Persona{Name: "Alex", Role: "EM"}
	p.BehaviorDials.QuestionPropensity.WhenUncertain = ptr(0.5)
	p.BehaviorDials.TangentPropensity.AfterFieldCapture = ptr(0.4)
	p.BehaviorDials.ElaborationDistribution.TwoSentences = ptr(0.3)
	s := &persona.Scenario{
		Title:         "t",
		PressureIndex: persona.PressureIndex{Timeline: "high", Quality: "medium", Budget: "low"},
		RNGSeed:       ptr(uint32(7)),
	}

	d, _ := Compute(p, s)

	want := Dials{ClarifyingQuestionProb: 0.343, TangentProbAfterField: 0.28, HesitationInsertProb: 0.3}
	if d != want {
		t.Errorf("dials: got %+v, want %+v", d, want)
	}
}

func TestComputeDialBounds(t *testing.T) {
	levels := []persona.Level{"high", "medium", "low", "", "bogus"}
	props := []float64{0, 0.5, 1}

	for _, tl := range levels {
		for _, q := range levels {
			for _, b := range levels {
				for _, prop := range props {
					p := &persona.Persona{Name: "n", Role: "r"}
					p.BehaviorDials.QuestionPropensity.WhenUncertain = ptr(prop)
					p.BehaviorDials.TangentPropensity.AfterFieldCapture = ptr(prop)
					p.BehaviorDials.ElaborationDistribution.TwoSentences = ptr(prop)
					s := &persona.Scenario{Title: "t", PressureIndex: persona.PressureIndex{Timeline: tl, Quality: q, Budget: b}}

					d, _ := Compute(p, s)
					for name, v := range map[string]float64{
						"clarify":    d.ClarifyingQuestionProb,
						"tangent":    d.TangentProbAfterField,
						"hesitation": d.HesitationInsertProb,
					} {
						if v < 0 || v > 1 {
							t.Fatalf("%s out of range: %v (levels %q/%q/%q prop %v)", name, v, tl, q, b, prop)
						}
					}
				}
			}
		}
	}
}

func TestComputeSaturatesAtOne(t *testing.T) {
	p := &persona.Persona{Name: "n", Role: "r"}
	p.BehaviorDials.QuestionPropensity.WhenUncertain = ptr(1.0)
	s := &persona.Scenario{Title: "t", PressureIndex: persona.PressureIndex{Timeline: "high", Quality: "high", Budget: "high"}}

	d, _ := Compute(p, s)
	if d.ClarifyingQuestionProb != 1 {
		t.Errorf("clarify: got %v, want 1", d.ClarifyingQuestionProb)
	}
}

func TestLevelValue(t *testing.T) {
	tests := map[persona.Level]float64{"high": 1, "HIGH": 1, "medium": 0.7, "low": 0.4, "": 0.7, "other": 0.7}
	for lvl, want := range tests {
		if got := LevelValue(lvl); got != want {
			t.Errorf("LevelValue(%q) = %v, want %v", lvl, got, want)
		}
	}
}

func TestBuildContractEmbedsExactDials(t *testing.T) {
	p := &persona.Persona{Name: "n", Role: "r"}
	d := Dials{ClarifyingQuestionProb: 0.343, TangentProbAfterField: 0.28, HesitationInsertProb: 0.3}

	contract := BuildContract(p, &persona.Scenario{Title: "t"}, d, 12345)

	for _, want := range []string{
		"INTERACTION CONTRACT (engine-controlled):",
		"- clarifying_question_prob: 0.343",
		"- tangent_prob_after_field: 0.28",
		"- hesitation_insert_prob: 0.3",
		"- randomness_seed: 12345",
		"HESITATION PATTERNS: Hmm…, Honestly…, Let me think…",
	} {
		if !strings.Contains(contract, want) {
			t.Errorf("contract missing %q:\n%s", want, contract)
		}
	}

	mandatory := strings.Index(contract, "1) mandatory_fields")
	closure := strings.Index(contract, "4) closure_policy")
	if mandatory < 0 || closure < mandatory {
		t.Error("priorities out of order")
	}
}

func TestBuildContractUsesPersonaPatterns(t *testing.T) {
	p := &persona.Persona{Name: "n", Role: "r"}
	p.BehaviorDials.HesitationPatterns = []string{"Uh", "Well"}

	contract := BuildContract(p, &persona.Scenario{Title: "t"}, Dials{}, 1)
	if !strings.Contains(contract, "HESITATION PATTERNS: Uh, Well") {
		t.Errorf("persona patterns not used:\n%s", contract)
	}
}

func TestTags(t *testing.T) {
	p := &persona.Persona{Name: "Alex"}
	s := &persona.Scenario{Title: "Urgent"}
	tags := Tags(p, s, Dials{ClarifyingQuestionProb: 0.343, TangentProbAfterField: 0.28, HesitationInsertProb: 0.3}, 9)

	want := []string{"Alex", "Urgent", "seed:9", "clarify:0.34", "tangent:0.28", "hesitation:0.30"}
	if strings.Join(tags, ",") != strings.Join(want, ",") {
		t.Errorf("Tags: got %v, want %v", tags, want)
	}
}
