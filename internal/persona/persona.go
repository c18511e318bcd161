// Package persona loads the hiring-manager persona and scenario definitions
// that drive a simulated conversation.
package persona

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrMissingField is returned when a required persona or scenario field is empty.
var ErrMissingField = errors.New("missing required field")

// Persona describes the simulated hiring manager.
type Persona struct {
	Name                string       `yaml:"name"`
	Role                string       `yaml:"role"`
	Voice               string       `yaml:"voice"`
	Goals               []string     `yaml:"goals"`
	BehaviorDials       Propensities `yaml:"behavior_dials"`
	RoleAdherence       string       `yaml:"role_adherence"`
	ForbiddenBehaviors  []string     `yaml:"forbidden_behaviors"`
	RequiredBehaviors   []string     `yaml:"required_behaviors"`
	ResponseFormula     string       `yaml:"response_formula"`
	RecoveryPhrase      string       `yaml:"recovery_phrase"`
	CharacterMotivation string       `yaml:"character_motivation"`
}

// Propensities holds the persona's raw behavioral tendencies. Nil values
// fall back to the defaults applied by the dial computer.
type Propensities struct {
	QuestionPropensity struct {
		WhenUncertain *float64 `yaml:"when_uncertain"`
		WhenBudget    *float64 `yaml:"when_budget"`
	} `yaml:"question_propensity"`
	TangentPropensity struct {
		AfterFieldCapture *float64 `yaml:"after_field_capture"`
	} `yaml:"tangent_propensity"`
	ElaborationDistribution struct {
		OneSentence  *float64 `yaml:"one_sentence"`
		TwoSentences *float64 `yaml:"two_sentences"`
	} `yaml:"elaboration_distribution"`
	HesitationPatterns []string `yaml:"hesitation_patterns"`
}

// Level is one of high, medium or low on a pressure axis.
type Level string

const (
	LevelHigh   Level = "high"
	LevelMedium Level = "medium"
	LevelLow    Level = "low"
)

// PressureIndex scores the scenario's pressure on three axes.
type PressureIndex struct {
	Timeline Level `yaml:"timeline"`
	Quality  Level `yaml:"quality"`
	Budget   Level `yaml:"budget"`
}

// Scenario describes the situation the persona enters the conversation with.
type Scenario struct {
	Title               string        `yaml:"title"`
	EntryContext        string        `yaml:"entry_context"`
	MaxTurns            int           `yaml:"max_turns"`
	PressureIndex       PressureIndex `yaml:"pressure_index"`
	RoleAdherence       string        `yaml:"role_adherence"`
	ForbiddenBehaviors  []string      `yaml:"forbidden_behaviors"`
	RequiredBehaviors   []string      `yaml:"required_behaviors"`
	ResponseFormula     string        `yaml:"response_formula"`
	RecoveryPhrase      string        `yaml:"recovery_phrase"`
	CharacterMotivation string        `yaml:"character_motivation"`

	// Optional per-scenario overrides. CLI flags take precedence.
	Temperature         *float64 `yaml:"temperature"`
	TopP                *float64 `yaml:"top_p"`
	RNGSeed             *uint32  `yaml:"rng_seed"`
	ConversationTimeout *int     `yaml:"conversation_timeout"`
	UseController       *bool    `yaml:"use_controller"`
}

// LoadPersona reads and validates a persona YAML file.
func LoadPersona(path string) (*Persona, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading persona: %w", err)
	}
	var p Persona
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing persona %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("persona %s: %w", path, err)
	}
	return &p, nil
}

// LoadScenario reads and validates a scenario YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing scenario %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return &s, nil
}

// Validate checks that the persona has a name and role and that every
// propensity lies in [0,1].
func (p *Persona) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("name: %w", ErrMissingField)
	}
	if p.Role == "" {
		return fmt.Errorf("role: %w", ErrMissingField)
	}
	checks := []struct {
		name string
		v    *float64
	}{
		{"question_propensity.when_uncertain", p.BehaviorDials.QuestionPropensity.WhenUncertain},
		{"question_propensity.when_budget", p.BehaviorDials.QuestionPropensity.WhenBudget},
		{"tangent_propensity.after_field_capture", p.BehaviorDials.TangentPropensity.AfterFieldCapture},
		{"elaboration_distribution.one_sentence", p.BehaviorDials.ElaborationDistribution.OneSentence},
		{"elaboration_distribution.two_sentences", p.BehaviorDials.ElaborationDistribution.TwoSentences},
	}
	for _, c := range checks {
		if c.v != nil && (*c.v < 0 || *c.v > 1) {
			return fmt.Errorf("behavior_dials.%s must be within [0,1], got %v", c.name, *c.v)
		}
	}
	return nil
}

// Validate checks the scenario title, turn budget and pressure levels.
func (s *Scenario) Validate() error {
	if s.Title == "" {
		return fmt.Errorf("title: %w", ErrMissingField)
	}
	if s.MaxTurns < 0 {
		return fmt.Errorf("max_turns must not be negative, got %d", s.MaxTurns)
	}
	for axis, lvl := range map[string]Level{
		"timeline": s.PressureIndex.Timeline,
		"quality":  s.PressureIndex.Quality,
		"budget":   s.PressureIndex.Budget,
	} {
		if !lvl.Valid() {
			return fmt.Errorf("pressure_index.%s: unknown level %q", axis, lvl)
		}
	}
	if s.ConversationTimeout != nil && *s.ConversationTimeout <= 0 {
		return fmt.Errorf("conversation_timeout must be positive, got %d", *s.ConversationTimeout)
	}
	return nil
}

// Valid reports whether l is empty or one of the known levels.
func (l Level) Valid() bool {
	switch Level(strings.ToLower(string(l))) {
	case "", LevelHigh, LevelMedium, LevelLow:
		return true
	}
	return false
}
