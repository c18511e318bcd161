package controller

import (
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/staffer-dev/staffer-sims/internal/dials"
)

var testFields = map[string]string{
	"job_title": "Job Title",
	"location":  "Location",
}

func TestHashRollKnownValues(t *testing.T) {
	tests := []struct {
		turn int
		kind string
		want float64
	}{
		{0, KindClarify, 0.994751073885709},
		{0, KindTangent, 0.2523103153798729},
		{3, KindClarify, 0.3981782940682024},
		{3, KindTangent, 0.004998562391847372},
	}
	for _, tt := range tests {
		got := HashRoll(42, tt.turn, tt.kind)
		if math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("HashRoll(42, %d, %q) = %v, want %v", tt.turn, tt.kind, got, tt.want)
		}
	}
}

func TestHashRollRange(t *testing.T) {
	for seed := uint32(0); seed < 50; seed++ {
		for turn := 0; turn < 20; turn++ {
			v := HashRoll(seed, turn, KindClarify)
			if v < 0 || v >= 1 {
				t.Fatalf("roll out of range: %v", v)
			}
		}
	}
}

func TestDecideIsDeterministic(t *testing.T) {
	c := New(NewLabelDetector(testFields), 3)
	d := dials.Dials{ClarifyingQuestionProb: 0.5, TangentProbAfterField: 0.5}

	run := func() []Decision {
		var out []Decision
		last := c.NoTangentYet()
		for turn := 0; turn < 12; turn++ {
			dec := c.Decide(Input{TurnIndex: turn, SUTReply: "Job Title: Engineer", LastTangentTurn: last, Dials: d, Seed: 99})
			if dec.Tangent {
				last = turn
			}
			out = append(out, dec)
		}
		return out
	}

	if a, b := run(), run(); !reflect.DeepEqual(a, b) {
		t.Fatal("decision sequences differ for the same seed")
	}
}

func TestDecideClarifyThreshold(t *testing.T) {
	c := New(NewLabelDetector(testFields), 3)

	// roll for (42, 3, clarify) is ~0.398
	allowed := c.Decide(Input{TurnIndex: 3, Dials: dials.Dials{ClarifyingQuestionProb: 0.4}, Seed: 42})
	if !allowed.ClarifyingAllowed {
		t.Error("expected clarifying allowed at p=0.4")
	}
	denied := c.Decide(Input{TurnIndex: 3, Dials: dials.Dials{ClarifyingQuestionProb: 0.39}, Seed: 42})
	if denied.ClarifyingAllowed {
		t.Error("expected clarifying denied at p=0.39")
	}
}

func TestDecideTangentRequiresCapturedField(t *testing.T) {
	c := New(NewLabelDetector(testFields), 3)
	d := dials.Dials{TangentProbAfterField: 1.0}

	dec := c.Decide(Input{TurnIndex: 5, SUTReply: "What is the job title?", LastTangentTurn: c.NoTangentYet(), Dials: d, Seed: 1})
	if dec.Tangent {
		t.Fatal("tangent decided without a captured field")
	}
	if dec.TangentRoll != 1.0 {
		t.Errorf("ineligible tangent roll: got %v, want 1.0", dec.TangentRoll)
	}
	if !strings.Contains(dec.Text, "no field captured this turn") {
		t.Errorf("missing reason in text:\n%s", dec.Text)
	}
}

func TestDecideTangentCooldown(t *testing.T) {
	c := New(NewLabelDetector(testFields), 3)
	d := dials.Dials{TangentProbAfterField: 1.0}

	var tangents []int
	last := c.NoTangentYet()
	for turn := 0; turn < 15; turn++ {
		dec := c.Decide(Input{TurnIndex: turn, SUTReply: "Location: Austin", LastTangentTurn: last, Dials: d, Seed: 5})
		if dec.Tangent {
			if !dec.FieldJustCaptured {
				t.Fatalf("turn %d: tangent without captured field", turn)
			}
			tangents = append(tangents, turn)
			last = turn
		}
	}

	if want := []int{0, 3, 6, 9, 12}; !reflect.DeepEqual(tangents, want) {
		t.Fatalf("tangent turns: got %v, want %v", tangents, want)
	}
	for i := 1; i < len(tangents); i++ {
		if tangents[i]-tangents[i-1] < 3 {
			t.Errorf("tangents %d and %d inside cooldown", tangents[i-1], tangents[i])
		}
	}
}

func TestDecideCooldownRemaining(t *testing.T) {
	c := New(NewLabelDetector(testFields), 3)

	dec := c.Decide(Input{TurnIndex: 4, SUTReply: "Location: Remote", LastTangentTurn: 3, Dials: dials.Dials{TangentProbAfterField: 1}, Seed: 1})
	if dec.CooldownRemaining != 2 {
		t.Errorf("cooldown remaining: got %d, want 2", dec.CooldownRemaining)
	}
	if dec.Tangent {
		t.Error("tangent taken during cooldown")
	}
}

func TestDecideNewlyCaptured(t *testing.T) {
	c := New(NewLabelDetector(testFields), 3)

	dec := c.Decide(Input{
		SUTReply:        "Job Title: Engineer, Location: Austin",
		FieldsCaptured:  map[string]bool{"job_title": true},
		LastTangentTurn: c.NoTangentYet(),
	})
	if !reflect.DeepEqual(dec.NewlyCaptured, []string{"location"}) {
		t.Errorf("NewlyCaptured: got %v", dec.NewlyCaptured)
	}
}

func TestDecisionText(t *testing.T) {
	c := New(NewLabelDetector(testFields), 3)
	dec := c.Decide(Input{TurnIndex: 2, Dials: dials.Dials{ClarifyingQuestionProb: 0.343, TangentProbAfterField: 0.28}, Seed: 42, LastTangentTurn: -3})

	for _, want := range []string{"TURN CONTROLLER (turn 2, seed 42):", "p 0.343", "p 0.28", "- reasons:"} {
		if !strings.Contains(dec.Text, want) {
			t.Errorf("text missing %q:\n%s", want, dec.Text)
		}
	}
}

func TestNewDefaultsCooldown(t *testing.T) {
	if c := New(NewLabelDetector(nil), 0); c.Cooldown() != DefaultCooldownTurns {
		t.Errorf("Cooldown: got %d", c.Cooldown())
	}
}

func TestDisabled(t *testing.T) {
	d := Disabled()
	if d.ClarifyingAllowed || d.Tangent || d.Text != "" {
		t.Errorf("Disabled: got %+v", d)
	}
}

func TestLabelDetector(t *testing.T) {
	det := NewLabelDetector(testFields)

	tests := []struct {
		text string
		want []string
	}{
		{"JOB TITLE: Staff Engineer", []string{"job_title"}},
		{"The job title is engineer", nil},
		{"job title: x\nlocation: y", []string{"job_title", "location"}},
		{"Relocation: covered", nil},
		{"Remote or hybrid. Location: Berlin", []string{"location"}},
	}
	for _, tt := range tests {
		if got := det.Captured(tt.text); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Captured(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}
