// run.go implements the "staffer-sims run" command: one persona against one
// scenario, with whole-run retry, duplicate skip and a printed report.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/staffer-dev/staffer-sims/internal/analysis"
	"github.com/staffer-dev/staffer-sims/internal/config"
	"github.com/staffer-dev/staffer-sims/internal/llm"
	"github.com/staffer-dev/staffer-sims/internal/log"
	"github.com/staffer-dev/staffer-sims/internal/persona"
	"github.com/staffer-dev/staffer-sims/internal/report"
	"github.com/staffer-dev/staffer-sims/internal/simulate"
	"github.com/staffer-dev/staffer-sims/internal/store"
	"github.com/staffer-dev/staffer-sims/internal/trace"
	"github.com/staffer-dev/staffer-sims/internal/ui"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one persona simulation",
	Long: `Run a simulated conversation between the recruiter (SUT) and a
hiring-manager persona in a scenario. Transcripts are written to the
output directory, the run is recorded in .staffer/runs.db, and a report is
printed at the end.

Flags override the scenario file, which overrides the configuration.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

// runFlags holds the raw flag values of the run command.
type runFlags struct {
	persona        string
	scenario       string
	output         string
	sutPrompt      string
	seed           string
	temperature    float64
	topP           float64
	timeout        int
	maxTurns       int
	useController  bool
	retries        int
	retryDelay     float64
	skipDuplicates bool
}

var runOpts runFlags

func init() {
	f := runCmd.Flags()
	f.StringVar(&runOpts.persona, "persona", "", "Path to persona YAML file")
	f.StringVar(&runOpts.scenario, "scenario", "", "Path to scenario YAML file")
	f.StringVar(&runOpts.output, "output", "", "Output directory for transcripts (default: config output_dir)")
	f.StringVar(&runOpts.sutPrompt, "sut-prompt", "", "Path to the SUT system prompt file (default: embedded recruiter prompt)")
	f.StringVar(&runOpts.seed, "seed", "", "Deterministic RNG seed for per-turn decisions")
	f.Float64Var(&runOpts.temperature, "temperature", 0, "Proxy sampling temperature (0..2)")
	f.Float64Var(&runOpts.topP, "top_p", 0, "Proxy nucleus sampling top_p (0..1]")
	f.IntVar(&runOpts.timeout, "timeout", 0, "Maximum conversation duration in seconds")
	f.IntVar(&runOpts.maxTurns, "max-turns", 0, "Maximum number of turns")
	f.BoolVar(&runOpts.useController, "use-controller", true, "Gate persona replies with the turn controller")
	f.IntVar(&runOpts.retries, "retries", 2, "Whole-run retries on transient API failures")
	f.Float64Var(&runOpts.retryDelay, "retry-delay", 2, "Base delay in seconds between whole-run retries")
	f.BoolVar(&runOpts.skipDuplicates, "skip-duplicates", false, "Skip when a completed run exists for the same persona, scenario and seed")

	_ = runCmd.MarkFlagRequired("persona")
	_ = runCmd.MarkFlagRequired("scenario")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	p, err := persona.LoadPersona(runOpts.persona)
	if err != nil {
		return err
	}
	s, err := persona.LoadScenario(runOpts.scenario)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyRunFlags(runOpts, cmd.Flags().Changed, cfg, s); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := newLogger(cfg)

	outputDir := cfg.OutputDir
	if runOpts.output != "" {
		outputDir = runOpts.output
	}

	events, err := log.NewLogger(".")
	if err != nil {
		logger.Warn("event log unavailable", "error", err)
	}

	st, err := store.Open(filepath.Join(log.StateDir, store.DBFile))
	if err != nil {
		logger.Warn("run store unavailable", "error", err)
	} else {
		defer func() { _ = st.Close() }()
	}

	if runOpts.skipDuplicates {
		skipped, err := skipDuplicate(ctx, st, events, p, s)
		if err != nil {
			return err
		}
		if skipped {
			return nil
		}
	}

	recruiterPrompt := simulate.LoadRecruiterPrompt(runOpts.sutPrompt, logger)
	analyzer := analysis.NewAnalyzer(analysis.MandatoryFieldsOrDefault(recruiterPrompt))
	sutEP, proxyEP := cfg.SUTEndpoint(), cfg.ProxyEndpoint()

	newEngine := func() *simulate.Engine {
		ecfg := simulate.EngineConfig{
			SUT:             newClient(sutEP, llm.CallerSUT, cfg, logger),
			Proxy:           newClient(proxyEP, llm.CallerProxy, cfg, logger),
			SUTModel:        sutEP.Model,
			ProxyModel:      proxyEP.Model,
			Analyzer:        analyzer,
			RecruiterPrompt: recruiterPrompt,
			Tracer:          newTracer(cfg, logger),
			Events:          events,
			Logger:          logger,
		}
		if st != nil {
			ecfg.Store = st
		}
		return simulate.New(ecfg)
	}

	maxTurns := cfg.Simulation.MaxTurns
	if s.MaxTurns > 0 {
		maxTurns = s.MaxTurns
	}
	progress := ui.NewProgressDisplay(fmt.Sprintf("%s / %s", p.Name, s.Title), maxTurns)

	opts := simulate.Options{
		OutputDir:     outputDir,
		MaxTurns:      cfg.Simulation.MaxTurns,
		Timeout:       time.Duration(cfg.Simulation.ConversationTimeout) * time.Second,
		UseController: cfg.Simulation.UseController,
		Temperature:   cfg.Simulation.Temperature,
		TopP:          cfg.Simulation.TopP,
		Verbose:       verbose,
		Observer:      progress,
	}
	ropts := simulate.RetryOptions{
		Retries: runOpts.retries,
		Delay:   seconds(runOpts.retryDelay),
		Events:  events,
	}

	progress.Start()
	res, err := simulate.RunWithRetry(ctx, newEngine, p, s, opts, ropts)
	if err != nil {
		return fmt.Errorf("simulation failed: %w", err)
	}
	progress.Finish(string(res.FinalOutcome.Status), res.FinalOutcome.CompletionLevel)

	fmt.Println()
	fmt.Print(report.Format(res))

	path, err := report.WriteReport(outputDir, res)
	if err != nil {
		logger.Warn("writing report failed", "error", err)
	} else {
		fmt.Printf("Report:      %s\n", path)
	}
	return nil
}

// applyRunFlags validates the flags the user set and writes them into cfg
// and into the scenario, where they take precedence over the file's own
// overrides. A seed from the flag or the environment always wins.
func applyRunFlags(rf runFlags, changed func(string) bool, cfg *config.Config, s *persona.Scenario) error {
	if changed("seed") {
		seed, err := config.ParseSeed(rf.seed)
		if err != nil {
			return fmt.Errorf("--seed %q: %w", rf.seed, err)
		}
		cfg.Simulation.RNGSeed = &seed
	}
	if cfg.Simulation.RNGSeed != nil {
		seed := *cfg.Simulation.RNGSeed
		s.RNGSeed = &seed
	}

	if changed("temperature") {
		if rf.temperature < 0 || rf.temperature > 2 {
			return fmt.Errorf("%w: --temperature %.2f outside [0, 2]", config.ErrInvalid, rf.temperature)
		}
		t := rf.temperature
		cfg.Simulation.Temperature = &t
		s.Temperature = &t
	}
	if changed("top_p") {
		if rf.topP <= 0 || rf.topP > 1 {
			return fmt.Errorf("%w: --top_p %.2f outside (0, 1]", config.ErrInvalid, rf.topP)
		}
		v := rf.topP
		cfg.Simulation.TopP = &v
		s.TopP = &v
	}
	if changed("timeout") {
		if rf.timeout <= 0 {
			return fmt.Errorf("%w: --timeout must be positive", config.ErrInvalid)
		}
		v := rf.timeout
		cfg.Simulation.ConversationTimeout = v
		s.ConversationTimeout = &v
	}
	if changed("max-turns") {
		if rf.maxTurns <= 0 {
			return fmt.Errorf("%w: --max-turns must be positive", config.ErrInvalid)
		}
		cfg.Simulation.MaxTurns = rf.maxTurns
		s.MaxTurns = rf.maxTurns
	}
	if changed("use-controller") {
		v := rf.useController
		cfg.Simulation.UseController = v
		s.UseController = &v
	}
	if rf.retries < 0 {
		return fmt.Errorf("%w: --retries must not be negative", config.ErrInvalid)
	}
	if rf.retryDelay < 0 {
		return fmt.Errorf("%w: --retry-delay must not be negative", config.ErrInvalid)
	}
	return nil
}

// skipDuplicate reports whether a completed run with the same persona,
// scenario and explicit seed is already recorded. Runs without a fixed seed
// are never duplicates.
func skipDuplicate(ctx context.Context, st *store.Store, events *log.Logger, p *persona.Persona, s *persona.Scenario) (bool, error) {
	if st == nil || s.RNGSeed == nil {
		return false, nil
	}
	prev, err := st.FindCompleted(ctx, p.Name, s.Title, *s.RNGSeed)
	if err != nil {
		return false, fmt.Errorf("checking for duplicate runs: %w", err)
	}
	if prev == nil {
		return false, nil
	}

	fmt.Printf("Skipping: run %s already completed %q / %q with seed %d.\n", prev.ID, p.Name, s.Title, *s.RNGSeed)
	if events != nil {
		_ = events.Append(log.LogEvent{
			Event:    log.EventRunSkipped,
			RunID:    prev.ID,
			Persona:  p.Name,
			Scenario: s.Title,
			Seed:     *s.RNGSeed,
			Reason:   "duplicate of completed run",
		})
	}
	return true, nil
}

// newClient builds the chat client for one side of the conversation.
func newClient(ep config.Endpoint, caller llm.Caller, cfg *config.Config, logger *slog.Logger) llm.Client {
	timeout := time.Duration(cfg.Simulation.RequestTimeout) * time.Second
	retry := llm.RetryPolicy{
		MaxAttempts: cfg.Simulation.RetryAttempts,
		BaseDelay:   seconds(cfg.Simulation.RetryDelay),
		MaxDelay:    llm.DefaultRetryPolicy.MaxDelay,
	}
	if ep.Kind == config.KindDirect {
		return llm.NewDirectClient(ep.BaseURL, ep.Model, timeout, retry, logger)
	}
	return llm.NewOpenAIClient(llm.OpenAIConfig{
		Caller:  caller,
		APIKey:  ep.APIKey,
		BaseURL: ep.BaseURL,
		Model:   ep.Model,
		Timeout: timeout,
		Retry:   retry,
		Logger:  logger,
	})
}

// newTracer returns a Langfuse service when keys are configured.
func newTracer(cfg *config.Config, logger *slog.Logger) trace.Service {
	if !cfg.TracingEnabled() {
		return trace.Nop{}
	}
	return trace.NewLangfuse(trace.LangfuseConfig{
		PublicKey: cfg.Langfuse.PublicKey,
		SecretKey: cfg.Langfuse.SecretKey,
		Host:      cfg.Langfuse.Host,
	}, logger)
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
