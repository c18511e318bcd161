// Package controller makes the per-turn gating decisions for the simulated
// persona: whether a clarifying question is allowed and whether a tangent is
// taken. Decisions are a pure function of the run seed, the turn index and
// the decision kind, so a run replayed with the same seed gates identically.
package controller

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sort"
	"strings"

	"github.com/staffer-dev/staffer-sims/internal/dials"
)

// DefaultCooldownTurns is the minimum distance between two tangents.
const DefaultCooldownTurns = 3

// Decision kinds fed into the hash roll.
const (
	KindClarify = "clarify"
	KindTangent = "tangent"
)

// FieldDetector reports which mandatory fields a piece of text captures.
type FieldDetector interface {
	Captured(text string) []string
}

// Input is everything one turn decision depends on.
type Input struct {
	TurnIndex       int
	SUTReply        string
	FieldsCaptured  map[string]bool
	LastTangentTurn int
	Dials           dials.Dials
	Seed            uint32
}

// Decision is the outcome for one turn. Text is an audit block for the
// transcript and is never sent to either model.
type Decision struct {
	Text              string   `json:"text"`
	ClarifyingAllowed bool     `json:"clarifying_allowed"`
	Tangent           bool     `json:"tangent"`
	ClarifyRoll       float64  `json:"clarify_roll"`
	TangentRoll       float64  `json:"tangent_roll"`
	CooldownRemaining int      `json:"cooldown_remaining"`
	FieldJustCaptured bool     `json:"field_just_captured"`
	NewlyCaptured     []string `json:"newly_captured,omitempty"`
}

// Controller decides clarifying and tangent gates turn by turn.
type Controller struct {
	detector FieldDetector
	cooldown int
}

// New returns a Controller. A non-positive cooldown uses DefaultCooldownTurns.
func New(detector FieldDetector, cooldownTurns int) *Controller {
	if cooldownTurns <= 0 {
		cooldownTurns = DefaultCooldownTurns
	}
	return &Controller{detector: detector, cooldown: cooldownTurns}
}

// Cooldown returns the configured tangent cooldown in turns.
func (c *Controller) Cooldown() int {
	return c.cooldown
}

// NoTangentYet is the LastTangentTurn value to use before any tangent has
// happened. It leaves turn 0 outside the cooldown window.
func (c *Controller) NoTangentYet() int {
	return -c.cooldown
}

// Decide computes the gating decision for in.TurnIndex.
func (c *Controller) Decide(in Input) Decision {
	d := Decision{}

	d.ClarifyRoll = HashRoll(in.Seed, in.TurnIndex, KindClarify)
	d.ClarifyingAllowed = d.ClarifyRoll < in.Dials.ClarifyingQuestionProb

	captured := c.detector.Captured(in.SUTReply)
	d.FieldJustCaptured = len(captured) > 0
	for _, key := range captured {
		if !in.FieldsCaptured[key] {
			d.NewlyCaptured = append(d.NewlyCaptured, key)
		}
	}
	sort.Strings(d.NewlyCaptured)

	d.CooldownRemaining = max(0, in.LastTangentTurn+c.cooldown-in.TurnIndex)

	var reasons []string
	eligible := d.CooldownRemaining <= 0 && d.FieldJustCaptured
	if eligible {
		d.TangentRoll = HashRoll(in.Seed, in.TurnIndex, KindTangent)
	} else {
		d.TangentRoll = 1.0
		if d.CooldownRemaining > 0 {
			reasons = append(reasons, fmt.Sprintf("tangent cooldown active (%d turns left)", d.CooldownRemaining))
		}
		if !d.FieldJustCaptured {
			reasons = append(reasons, "no field captured this turn")
		}
	}
	d.Tangent = d.TangentRoll < in.Dials.TangentProbAfterField

	if !d.ClarifyingAllowed {
		reasons = append(reasons, "clarify roll above threshold")
	}
	if len(reasons) == 0 {
		reasons = append(reasons, "none")
	}

	d.Text = renderText(in, d, reasons)
	return d
}

// Disabled is the decision used when the controller is turned off: no
// clarifying question and no tangent.
func Disabled() Decision {
	return Decision{ClarifyRoll: 1, TangentRoll: 1}
}

// HashRoll maps (seed, turn, kind) to a stable value in [0,1) using the first
// 32 bits of SHA-256("{seed}:{turn}:{kind}").
func HashRoll(seed uint32, turn int, kind string) float64 {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d:%d:%s", seed, turn, kind)))
	return float64(binary.BigEndian.Uint32(sum[:4])) / (1 << 32)
}

func renderText(in Input, d Decision, reasons []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "TURN CONTROLLER (turn %d, seed %d):\n", in.TurnIndex, in.Seed)
	fmt.Fprintf(&b, "- clarifying_question: %s (roll %.4f vs p %s)\n",
		allowed(d.ClarifyingAllowed), d.ClarifyRoll, dials.FormatProb(in.Dials.ClarifyingQuestionProb))
	fmt.Fprintf(&b, "- tangent: %s (roll %.4f vs p %s, cooldown_remaining %d, field_just_captured %t)\n",
		allowed(d.Tangent), d.TangentRoll, dials.FormatProb(in.Dials.TangentProbAfterField),
		d.CooldownRemaining, d.FieldJustCaptured)
	fmt.Fprintf(&b, "- reasons: %s", strings.Join(reasons, "; "))
	return b.String()
}

func allowed(ok bool) string {
	if ok {
		return "allowed"
	}
	return "not allowed"
}
