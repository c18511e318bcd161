// Package simulate runs scripted conversations between the SUT recruiter and
// the persona proxy, gates the persona turn by turn and classifies the result.
package simulate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/staffer-dev/staffer-sims/internal/analysis"
	"github.com/staffer-dev/staffer-sims/internal/controller"
	"github.com/staffer-dev/staffer-sims/internal/dials"
	"github.com/staffer-dev/staffer-sims/internal/llm"
	"github.com/staffer-dev/staffer-sims/internal/log"
	"github.com/staffer-dev/staffer-sims/internal/persona"
	"github.com/staffer-dev/staffer-sims/internal/store"
	"github.com/staffer-dev/staffer-sims/internal/trace"
	"github.com/staffer-dev/staffer-sims/internal/transcript"
)

// DefaultTimeout is the conversation wall-clock budget when none is configured.
const DefaultTimeout = 120 * time.Second

// DefaultMaxTurns bounds a run whose scenario and options leave max turns unset.
const DefaultMaxTurns = 18

// RunRecorder persists a finished run.
type RunRecorder interface {
	SaveRun(ctx context.Context, run *store.Run, turns []analysis.Turn, failures []analysis.FailureDetail) error
}

// Phase is the part of a turn currently in flight.
type Phase string

const (
	PhaseSUT   Phase = "sut"
	PhaseProxy Phase = "proxy"
)

// TurnEvent describes one completed SUT/persona exchange.
type TurnEvent struct {
	Turn       int
	SUTReply   string
	ProxyReply string
	Decision   controller.Decision
	Summary    bool
	Elapsed    time.Duration
}

// Observer follows a run as it progresses.
type Observer interface {
	Phase(turn int, phase Phase)
	TurnDone(ev TurnEvent)
}

// EngineConfig holds an Engine's collaborators. SUT, Proxy and Analyzer are
// required; the rest are optional.
type EngineConfig struct {
	SUT             llm.Client
	Proxy           llm.Client
	SUTModel        string
	ProxyModel      string
	Analyzer        *analysis.Analyzer
	RecruiterPrompt string
	CooldownTurns   int
	Tracer          trace.Service
	Store           RunRecorder
	Events          *log.Logger
	Logger          *slog.Logger
	Now             func() time.Time
}

// Options control a single run. Scenario overrides win over these values.
type Options struct {
	OutputDir     string
	MaxTurns      int
	Timeout       time.Duration
	UseController bool
	Temperature   *float64
	TopP          *float64
	Verbose       bool
	Observer      Observer
}

// Results is the record of a finished run.
type Results struct {
	RunID               string                       `json:"run_id"`
	Persona             string                       `json:"persona"`
	Scenario            string                       `json:"scenario"`
	Seed                uint32                       `json:"seed"`
	Dials               dials.Dials                  `json:"dials"`
	TotalTurns          int                          `json:"total_turns"`
	Turns               []analysis.Turn              `json:"-"`
	ConversationSummary analysis.ConversationSummary `json:"conversation_summary"`
	FinalOutcome        analysis.Outcome             `json:"final_outcome"`
	InformationGathered analysis.InformationGathered `json:"information_gathered"`
	TranscriptPath      string                       `json:"transcript_path"`
	JSONLPath           string                       `json:"jsonl_path"`
	ElapsedTime         float64                      `json:"elapsed_time"`
	TimeoutReached      bool                         `json:"timeout_reached"`
	TimeoutLimit        int                          `json:"timeout_limit"`
	APIErrors           []string                     `json:"api_errors,omitempty"`
	UsageStats          llm.UsageStats               `json:"usage_stats"`
}

// Engine drives conversations. Per-run state lives inside Run, so an Engine
// holds no counters between runs.
type Engine struct {
	sut             llm.Client
	proxy           llm.Client
	sutModel        string
	proxyModel      string
	analyzer        *analysis.Analyzer
	controller      *controller.Controller
	recruiterPrompt string
	tracer          trace.Service
	store           RunRecorder
	events          *log.Logger
	logger          *slog.Logger
	now             func() time.Time
}

// New returns an Engine for cfg.
func New(cfg EngineConfig) *Engine {
	e := &Engine{
		sut:             cfg.SUT,
		proxy:           cfg.Proxy,
		sutModel:        cfg.SUTModel,
		proxyModel:      cfg.ProxyModel,
		analyzer:        cfg.Analyzer,
		recruiterPrompt: cfg.RecruiterPrompt,
		tracer:          cfg.Tracer,
		store:           cfg.Store,
		events:          cfg.Events,
		logger:          cfg.Logger,
		now:             cfg.Now,
	}
	if e.analyzer == nil {
		e.analyzer = analysis.NewAnalyzer(nil)
	}
	if e.recruiterPrompt == "" {
		e.recruiterPrompt = LoadRecruiterPrompt("", nil)
	}
	if e.tracer == nil {
		e.tracer = trace.Nop{}
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.now == nil {
		e.now = time.Now
	}
	detector := controller.NewLabelDetector(analysis.Labels(e.analyzer.Fields()))
	e.controller = controller.New(detector, cfg.CooldownTurns)
	return e
}

// runState is the mutable state of one run.
type runState struct {
	runID              string
	turns              []analysis.Turn
	history            []llm.Message
	usage              llm.UsageStats
	apiErrors          []string
	fieldsCaptured     map[string]bool
	lastTangentTurn    int
	sutProvidedSummary bool
	timeoutReached     bool
}

// Run executes one conversation for persona p in scenario s. LLM failures end
// the conversation and are reported in the outcome; the returned error is
// reserved for cancellation and for failures writing the transcript.
func (e *Engine) Run(ctx context.Context, p *persona.Persona, s *persona.Scenario, opts Options) (*Results, error) {
	opts = resolveOptions(opts, s)
	start := e.now()
	runID := transcript.NewRunID(start)

	d, seed := dials.Compute(p, s)
	contract := dials.BuildContract(p, s, d, seed)
	proxyPrompt := BuildProxySystemPrompt(p, s, contract)

	maxTurns := opts.MaxTurns
	if s.MaxTurns > 0 {
		maxTurns = s.MaxTurns
	}

	logger := e.logger.With("run_id", runID)
	logger.Info("starting simulation",
		"persona", p.Name, "scenario", s.Title, "max_turns", maxTurns,
		"seed", seed, "timeout", opts.Timeout, "controller", opts.UseController)
	e.logEvent(log.LogEvent{Event: log.EventRunStarted, RunID: runID, Persona: p.Name, Scenario: s.Title, Seed: seed})

	e.tracer.StartTrace(ctx, "persona_conversation",
		map[string]any{"persona": p.Name, "scenario": s.Title, "entry_context": s.EntryContext},
		map[string]any{"run_id": runID, "dials": d, "seed": seed})
	e.tracer.UpdateTrace(ctx, nil, nil, dials.Tags(p, s, d, seed))

	st := &runState{
		runID:           runID,
		fieldsCaptured:  make(map[string]bool),
		lastTangentTurn: e.controller.NoTangentYet(),
	}

	for turn := 0; turn < maxTurns; turn++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.now().Sub(start) >= opts.Timeout {
			st.timeoutReached = true
			logger.Warn("conversation timeout reached", "turn", turn, "limit", opts.Timeout)
			break
		}

		done, err := e.turn(ctx, logger, st, turn, s, d, seed, proxyPrompt, opts)
		if err != nil {
			return nil, err
		}
		if done {
			break
		}
	}

	elapsed := e.now().Sub(start)
	if !st.timeoutReached && elapsed >= opts.Timeout {
		st.timeoutReached = true
		logger.Warn("conversation timeout reached", "turn", len(st.turns)/2, "limit", opts.Timeout)
	}
	return e.finish(ctx, logger, st, runID, p, s, d, seed, opts, elapsed)
}

// turn runs one SUT reply and one persona reply. It reports whether the
// conversation is over.
func (e *Engine) turn(ctx context.Context, logger *slog.Logger, st *runState, turn int,
	s *persona.Scenario, d dials.Dials, seed uint32, proxyPrompt string, opts Options) (bool, error) {
	turnStart := e.now()
	if opts.Observer != nil {
		opts.Observer.Phase(turn, PhaseSUT)
	}

	sutReply, err := e.sutTurn(ctx, st, turn)
	if err != nil {
		if ctx.Err() != nil {
			return true, ctx.Err()
		}
		st.apiErrors = append(st.apiErrors, "SUT API error: "+err.Error())
		e.logCallError(logger, err, turn)
		return true, nil
	}
	st.turns = append(st.turns, analysis.Turn{Role: analysis.RoleSystem, Content: sutReply, Model: e.sutModel, Timestamp: e.now()})
	st.history = append(st.history, llm.Message{Role: llm.RoleAssistant, Content: sutReply})

	// The latest SUT reply decides whether a summary is on the table.
	st.sutProvidedSummary = analysis.IsSummary(sutReply)
	if st.sutProvidedSummary {
		logger.Info("SUT provided summary", "turn", turn+1)
	}

	decision := controller.Disabled()
	if opts.UseController {
		decision = e.controller.Decide(controller.Input{
			TurnIndex:       turn,
			SUTReply:        sutReply,
			FieldsCaptured:  st.fieldsCaptured,
			LastTangentTurn: st.lastTangentTurn,
			Dials:           d,
			Seed:            seed,
		})
		for _, key := range decision.NewlyCaptured {
			st.fieldsCaptured[key] = true
		}
		logger.Debug("turn controller", "turn", turn,
			"clarifying_allowed", decision.ClarifyingAllowed, "tangent", decision.Tangent,
			"cooldown_remaining", decision.CooldownRemaining)
	}

	if opts.Observer != nil {
		opts.Observer.Phase(turn, PhaseProxy)
	}
	proxyReply, err := e.proxyTurn(ctx, st, turn, s, proxyPrompt, opts)
	if err != nil {
		if ctx.Err() != nil {
			return true, ctx.Err()
		}
		st.apiErrors = append(st.apiErrors, "Proxy API error: "+err.Error())
		e.logCallError(logger, err, turn)
		return true, nil
	}
	proxyReply = ApplyFilters(proxyReply, sutReply, decision, seed, turn)

	var ctrlText *string
	if opts.UseController {
		text := decision.Text
		ctrlText = &text
	}
	st.turns = append(st.turns, analysis.Turn{Role: analysis.RoleUser, Content: proxyReply, Model: e.proxyModel, Timestamp: e.now(), TurnController: ctrlText})
	st.history = append(st.history, llm.Message{Role: llm.RoleUser, Content: proxyReply})

	if decision.Tangent || analysis.HasTangentMarker(proxyReply) {
		st.lastTangentTurn = turn
	}

	if opts.Observer != nil {
		opts.Observer.TurnDone(TurnEvent{
			Turn:       turn,
			SUTReply:   sutReply,
			ProxyReply: proxyReply,
			Decision:   decision,
			Summary:    st.sutProvidedSummary,
			Elapsed:    e.now().Sub(turnStart),
		})
	}
	e.logEvent(log.LogEvent{Event: log.EventTurnCompleted, RunID: st.runID, Turn: turn + 1, DurationMs: e.now().Sub(turnStart).Milliseconds()})

	if st.sutProvidedSummary && analysis.IsConfirmation(proxyReply) {
		logger.Info("conversation completed", "turn", turn+1)
		return true, nil
	}
	return false, nil
}

func (e *Engine) sutTurn(ctx context.Context, st *runState, turn int) (string, error) {
	msgs := make([]llm.Message, 0, len(st.history)+1)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: sutSystemPrompt(turn, e.recruiterPrompt)})
	msgs = append(msgs, st.history...)

	span := e.tracer.StartSpan(ctx, fmt.Sprintf("sut_turn_%d", turn), msgs, map[string]any{"turn": turn, "model": e.sutModel})
	resp, err := e.sut.Send(ctx, llm.Request{Messages: msgs, Model: e.sutModel})
	if err != nil {
		span.End(map[string]any{"error": err.Error()})
		return "", err
	}
	st.usage.Add(llm.CallerSUT, resp.Usage)

	reply := resp.Content
	if !analysis.IsSummary(reply) {
		if turn == 0 {
			reply = EnforceFirstTurn(reply)
		} else {
			reply = EnforceSingleQuestion(reply)
		}
	}
	span.End(map[string]any{"text": reply, "usage": resp.Usage})
	return reply, nil
}

func (e *Engine) proxyTurn(ctx context.Context, st *runState, turn int, s *persona.Scenario, systemPrompt string, opts Options) (string, error) {
	history := sanitizeForProxy(st.history)
	if turn == 0 {
		if entry := strings.TrimSpace(s.EntryContext); entry != "" {
			history = []llm.Message{{Role: llm.RoleUser, Content: entry}}
		}
	}
	msgs := make([]llm.Message, 0, len(history)+1)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})
	msgs = append(msgs, history...)

	span := e.tracer.StartSpan(ctx, fmt.Sprintf("proxy_turn_%d", turn), msgs, map[string]any{"turn": turn, "model": e.proxyModel})
	resp, err := e.proxy.Send(ctx, llm.Request{
		Messages:    msgs,
		Model:       e.proxyModel,
		Temperature: opts.Temperature,
		TopP:        opts.TopP,
	})
	if err != nil {
		span.End(map[string]any{"error": err.Error()})
		return "", err
	}
	st.usage.Add(llm.CallerProxy, resp.Usage)
	span.End(map[string]any{"text": resp.Content, "usage": resp.Usage})
	return resp.Content, nil
}

// sanitizeForProxy keeps only user and assistant messages so the proxy sees
// exactly one system prompt.
func sanitizeForProxy(history []llm.Message) []llm.Message {
	out := make([]llm.Message, 0, len(history))
	for _, m := range history {
		if m.Role == llm.RoleUser || m.Role == llm.RoleAssistant {
			out = append(out, m)
		}
	}
	return out
}

func (e *Engine) finish(ctx context.Context, logger *slog.Logger, st *runState, runID string,
	p *persona.Persona, s *persona.Scenario, d dials.Dials, seed uint32, opts Options, elapsed time.Duration) (*Results, error) {
	timeoutLimit := int(opts.Timeout / time.Second)

	proxyConfirmed := false
	if n := len(st.turns); n > 0 && st.turns[n-1].Role == analysis.RoleUser {
		proxyConfirmed = analysis.IsConfirmation(st.turns[n-1].Content)
	}

	outcome := e.analyzer.Classify(analysis.ClassifyInput{
		Turns:              st.turns,
		SUTProvidedSummary: st.sutProvidedSummary,
		ProxyConfirmed:     proxyConfirmed,
		TimeoutReached:     st.timeoutReached,
		APIErrors:          st.apiErrors,
		ElapsedTime:        elapsed.Seconds(),
		TimeoutLimit:       timeoutLimit,
	})
	summary := analysis.Summarize(st.turns)
	info := e.analyzer.ExtractInformation(st.turns)

	header := transcript.Header{
		RunID:        runID,
		Persona:      p.Name,
		Scenario:     s.Title,
		Elapsed:      elapsed,
		TimeoutLimit: timeoutLimit,
		Outcome:      &outcome,
	}
	paths, err := transcript.Write(opts.OutputDir, header, st.turns, opts.Verbose)
	if err != nil {
		e.logEvent(log.LogEvent{Event: log.EventRunFailed, RunID: runID, Error: err.Error()})
		return nil, fmt.Errorf("saving transcript: %w", err)
	}
	logger.Info("saved transcript", "markdown", paths.Markdown, "jsonl", paths.JSONL)

	res := &Results{
		RunID:               runID,
		Persona:             p.Name,
		Scenario:            s.Title,
		Seed:                seed,
		Dials:               d,
		TotalTurns:          len(st.turns),
		Turns:               st.turns,
		ConversationSummary: summary,
		FinalOutcome:        outcome,
		InformationGathered: info,
		TranscriptPath:      paths.Markdown,
		JSONLPath:           paths.JSONL,
		ElapsedTime:         elapsed.Seconds(),
		TimeoutReached:      st.timeoutReached,
		TimeoutLimit:        timeoutLimit,
		APIErrors:           st.apiErrors,
		UsageStats:          st.usage,
	}

	e.recordTrace(ctx, res, header)
	e.persist(ctx, logger, res, s.RNGSeed != nil)

	logger.Info("simulation completed",
		"status", outcome.Status, "completion", outcome.CompletionLevel,
		"turns", res.TotalTurns, "failures", outcome.TotalFailures, "elapsed", elapsed.Round(time.Millisecond))
	e.logEvent(log.LogEvent{
		Event:           log.EventRunCompleted,
		RunID:           runID,
		Persona:         p.Name,
		Scenario:        s.Title,
		Seed:            seed,
		Status:          string(outcome.Status),
		CompletionLevel: outcome.CompletionLevel,
		DurationMs:      elapsed.Milliseconds(),
		Tokens:          st.usage.TotalTokens,
		CostUSD:         st.usage.EstimatedCost,
	})
	return res, nil
}

func (e *Engine) recordTrace(ctx context.Context, res *Results, header transcript.Header) {
	md := transcript.Markdown(header, res.Turns, false)
	output := map[string]any{
		"conversation_summary": res.ConversationSummary,
		"final_outcome":        res.FinalOutcome,
		"information_gathered": res.InformationGathered,
	}
	e.tracer.UpdateTrace(ctx, output, map[string]any{
		"run_id":            res.RunID,
		"total_turns":       res.TotalTurns,
		"completion_status": res.FinalOutcome.Status,
		"completion_level":  res.FinalOutcome.CompletionLevel,
		"transcript_path":   res.TranscriptPath,
		"jsonl_path":        res.JSONLPath,
		"usage":             res.UsageStats,
	}, nil)
	e.tracer.Event(ctx, "conversation_evaluation",
		map[string]any{"transcript": md, "total_turns": res.TotalTurns, "persona": res.Persona, "scenario": res.Scenario},
		output)
	e.tracer.Flush(ctx)
}

func (e *Engine) persist(ctx context.Context, logger *slog.Logger, res *Results, seedExplicit bool) {
	if e.store == nil {
		return
	}
	run := &store.Run{
		ID:              res.RunID,
		Persona:         res.Persona,
		Scenario:        res.Scenario,
		Seed:            res.Seed,
		SeedExplicit:    seedExplicit,
		Status:          string(res.FinalOutcome.Status),
		CompletionLevel: res.FinalOutcome.CompletionLevel,
		TotalTurns:      res.TotalTurns,
		ElapsedSeconds:  res.ElapsedTime,
		TimeoutReached:  res.TimeoutReached,
		TranscriptPath:  res.TranscriptPath,
		JSONLPath:       res.JSONLPath,
		TotalTokens:     res.UsageStats.TotalTokens,
		EstimatedCost:   res.UsageStats.EstimatedCost,
	}
	if err := e.store.SaveRun(ctx, run, res.Turns, res.FinalOutcome.Failures); err != nil {
		logger.Warn("saving run to store failed", "error", err)
	}
}

func (e *Engine) logCallError(logger *slog.Logger, err error, turn int) {
	var apiErr *llm.APIError
	if errors.As(err, &apiErr) {
		logger.Error("LLM call failed", "turn", turn, "caller", apiErr.Caller, "kind", apiErr.Kind, "status", apiErr.StatusCode, "error", err)
		return
	}
	logger.Error("LLM call failed", "turn", turn, "error", err)
}

// logEvent appends to the run event log. Failures only warn.
func (e *Engine) logEvent(ev log.LogEvent) {
	if e.events == nil {
		return
	}
	if err := e.events.Append(ev); err != nil {
		e.logger.Warn("writing event log failed", "event", ev.Event, "error", err)
	}
}

// resolveOptions applies scenario overrides and defaults.
func resolveOptions(opts Options, s *persona.Scenario) Options {
	if s.Temperature != nil {
		opts.Temperature = s.Temperature
	}
	if s.TopP != nil {
		opts.TopP = s.TopP
	}
	if s.ConversationTimeout != nil && *s.ConversationTimeout > 0 {
		opts.Timeout = time.Duration(*s.ConversationTimeout) * time.Second
	}
	if s.UseController != nil {
		opts.UseController = *s.UseController
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxTurns <= 0 {
		opts.MaxTurns = DefaultMaxTurns
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "output"
	}
	return opts
}
