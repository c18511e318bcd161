// serve.go implements the "staffer-sims serve-sut" command.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/staffer-dev/staffer-sims/internal/analysis"
	"github.com/staffer-dev/staffer-sims/internal/config"
	"github.com/staffer-dev/staffer-sims/internal/llm"
	"github.com/staffer-dev/staffer-sims/internal/server"
	"github.com/staffer-dev/staffer-sims/internal/simulate"
)

var serveCmd = &cobra.Command{
	Use:   "serve-sut",
	Short: "Serve the recruiter model over HTTP",
	Long: `Serve the recruiter (SUT) as a chat endpoint at POST /sut/chat.
Point SUT_URL at it with provider "custom" to simulate against it.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var (
	serveAddrFlag   string
	servePromptFlag string
	serveModelFlag  string
)

func init() {
	serveCmd.Flags().StringVar(&serveAddrFlag, "addr", ":8080", "Listen address")
	serveCmd.Flags().StringVar(&servePromptFlag, "sut-prompt", "", "Path to the recruiter system prompt (default: embedded)")
	serveCmd.Flags().StringVar(&serveModelFlag, "model", "", "Upstream model (default: the configured SUT model)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	ep := upstreamEndpoint(cfg)
	if ep.APIKey == "" {
		return fmt.Errorf("%w: no API key for upstream %s", config.ErrInvalid, ep.BaseURL)
	}
	if serveModelFlag != "" {
		ep.Model = serveModelFlag
	}

	prompt := simulate.LoadRecruiterPrompt(servePromptFlag, logger)
	srv := server.New(server.Config{
		Client:       newClient(ep, llm.CallerSUT, cfg, logger),
		Model:        ep.Model,
		SystemPrompt: prompt,
		Analyzer:     analysis.NewAnalyzer(analysis.MandatoryFieldsOrDefault(prompt)),
		Logger:       logger,
	})

	fmt.Printf("Serving SUT chat on %s (model %s)\n", serveAddrFlag, ep.Model)
	return srv.ListenAndServe(cmd.Context(), serveAddrFlag)
}

// upstreamEndpoint picks the OpenAI-compatible endpoint the server forwards
// to. With the custom provider the SUT endpoint may be this server itself,
// so the proxy endpoint is used instead.
func upstreamEndpoint(cfg *config.Config) config.Endpoint {
	if ep := cfg.SUTEndpoint(); ep.Kind == config.KindOpenAI {
		return ep
	}
	return cfg.ProxyEndpoint()
}
