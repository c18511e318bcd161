// Package config handles reading .staffer/config.yaml, the project .env file
// and environment overrides into one explicit Config.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every validation and parse failure.
var ErrInvalid = errors.New("invalid configuration")

// Provider presets.
const (
	ProviderOpenAI     = "openai"
	ProviderOpenRouter = "openrouter"
	ProviderBoth       = "both"
	ProviderCustom     = "custom"
)

// Endpoint kinds.
const (
	KindOpenAI = "openai" // OpenAI-compatible chat completions
	KindDirect = "direct" // staffer SUT chat endpoint
)

const (
	openAIBaseURL     = "https://api.openai.com/v1"
	openRouterBaseURL = "https://openrouter.ai/api/v1"
	openAIModel       = "gpt-4o-mini"
	openRouterModel   = "openai/gpt-4o-mini"
)

// Config is the top-level structure for .staffer/config.yaml.
type Config struct {
	Version     int              `yaml:"version"`
	Environment string           `yaml:"environment"`
	Provider    string           `yaml:"provider"` // "openai" | "openrouter" | "both" | "custom"
	Keys        KeysConfig       `yaml:"-"`
	SUT         EndpointConfig   `yaml:"sut"`
	Proxy       EndpointConfig   `yaml:"proxy"`
	Langfuse    LangfuseConfig   `yaml:"langfuse"`
	Simulation  SimulationConfig `yaml:"simulation"`
	Logging     LoggingConfig    `yaml:"logging"`
	OutputDir   string           `yaml:"output_dir"`
}

// KeysConfig holds API secrets. They come from the environment only and are
// never written back to disk.
type KeysConfig struct {
	OpenAI     string
	OpenRouter string
}

// EndpointConfig overrides a preset's URL or model. Empty fields keep the preset.
type EndpointConfig struct {
	URL   string `yaml:"url"`
	Model string `yaml:"model"`
}

// LangfuseConfig controls tracing. Tracing is off unless both keys are set.
type LangfuseConfig struct {
	PublicKey string `yaml:"-"`
	SecretKey string `yaml:"-"`
	Host      string `yaml:"host"`
}

// SimulationConfig controls the conversation loop and its HTTP calls.
type SimulationConfig struct {
	MaxTurns            int      `yaml:"max_turns"`
	ConversationTimeout int      `yaml:"conversation_timeout"` // seconds
	RequestTimeout      int      `yaml:"request_timeout"`      // seconds
	RetryAttempts       int      `yaml:"retry_attempts"`
	RetryDelay          float64  `yaml:"retry_delay"` // seconds
	Temperature         *float64 `yaml:"temperature,omitempty"`
	TopP                *float64 `yaml:"top_p,omitempty"`
	RNGSeed             *uint32  `yaml:"rng_seed,omitempty"`
	UseController       bool     `yaml:"use_controller"`
}

// LoggingConfig controls the diagnostic slog logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug" | "info" | "warn" | "error"
	Format string `yaml:"format"` // "text" | "json"
}

// Endpoint is a resolved LLM endpoint for one role.
type Endpoint struct {
	Kind    string
	BaseURL string
	APIKey  string
	Model   string
}

const configDir = ".staffer"
const configFile = "config.yaml"

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version:     1,
		Environment: "development",
		Provider:    ProviderOpenRouter,
		SUT:         EndpointConfig{URL: "http://localhost:8080/sut/chat"},
		Langfuse:    LangfuseConfig{Host: "https://cloud.langfuse.com"},
		Simulation: SimulationConfig{
			MaxTurns:            18,
			ConversationTimeout: 120,
			RequestTimeout:      120,
			RetryAttempts:       3,
			RetryDelay:          1.0,
			UseController:       true,
		},
		Logging:   LoggingConfig{Level: "info", Format: "text"},
		OutputDir: "output",
	}
}

// ReadConfig reads .staffer/config.yaml from the given project directory.
// dir is the project root (not .staffer/ itself).
// Returns an error if the file is not found or YAML is malformed.
func ReadConfig(dir string) (*Config, error) {
	path := filepath.Join(dir, configDir, configFile)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w: %v", ErrInvalid, err)
	}

	return cfg, nil
}

// WriteConfig writes cfg to .staffer/config.yaml in the given project directory.
// Creates the .staffer/ directory if it does not exist.
func WriteConfig(dir string, cfg *Config) error {
	dirPath := filepath.Join(dir, configDir)
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}

	path := filepath.Join(dirPath, configFile)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// Load builds the configuration for the project at dir: defaults, then
// .staffer/config.yaml if present, then .env, then the process environment.
// Existing environment variables win over .env entries.
func Load(dir string) (*Config, error) {
	cfg, err := ReadConfig(dir)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		cfg = DefaultConfig()
	}

	envPath := filepath.Join(dir, ".env")
	if _, statErr := os.Stat(envPath); statErr == nil {
		if err := godotenv.Load(envPath); err != nil {
			return nil, fmt.Errorf("loading %s: %w: %v", envPath, ErrInvalid, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays environment variables onto cfg.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str("ENVIRONMENT", &c.Environment)
	if level, ok := environmentLogLevel[strings.ToLower(c.Environment)]; ok {
		c.Logging.Level = level
	}

	str("API_PROVIDER", &c.Provider)
	str("OPENAI_API_KEY", &c.Keys.OpenAI)
	str("OPENROUTER_API_KEY", &c.Keys.OpenRouter)
	str("LANGFUSE_PUBLIC_KEY", &c.Langfuse.PublicKey)
	str("LANGFUSE_SECRET_KEY", &c.Langfuse.SecretKey)
	str("LANGFUSE_HOST", &c.Langfuse.Host)
	str("SUT_URL", &c.SUT.URL)
	str("PROXY_URL", &c.Proxy.URL)
	str("SUT_MODEL", &c.SUT.Model)
	str("PROXY_MODEL", &c.Proxy.Model)
	str("OUTPUT_DIR", &c.OutputDir)
	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_FORMAT", &c.Logging.Format)

	ints := []struct {
		key string
		dst *int
	}{
		{"MAX_TURNS", &c.Simulation.MaxTurns},
		{"REQUEST_TIMEOUT", &c.Simulation.RequestTimeout},
		{"RETRY_ATTEMPTS", &c.Simulation.RetryAttempts},
		{"CONVERSATION_TIMEOUT", &c.Simulation.ConversationTimeout},
	}
	for _, f := range ints {
		v, ok := lookup(f.key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s=%q: %w: not an integer", f.key, v, ErrInvalid)
		}
		*f.dst = n
	}

	if v, ok := lookup("RETRY_DELAY"); ok && v != "" {
		d, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("RETRY_DELAY=%q: %w: not a number", v, ErrInvalid)
		}
		c.Simulation.RetryDelay = d
	}
	for _, f := range []struct {
		key string
		dst **float64
	}{
		{"TEMPERATURE", &c.Simulation.Temperature},
		{"TOP_P", &c.Simulation.TopP},
	} {
		v, ok := lookup(f.key)
		if !ok || v == "" {
			continue
		}
		x, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("%s=%q: %w: not a number", f.key, v, ErrInvalid)
		}
		*f.dst = &x
	}
	if v, ok := lookup("RNG_SEED"); ok && v != "" {
		seed, err := ParseSeed(v)
		if err != nil {
			return fmt.Errorf("RNG_SEED=%q: %w", v, err)
		}
		c.Simulation.RNGSeed = &seed
	}

	return nil
}

var environmentLogLevel = map[string]string{
	"production":  "warn",
	"staging":     "info",
	"development": "debug",
}

// ParseSeed parses a decimal 32-bit unsigned seed.
func ParseSeed(s string) (uint32, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: seed must be an integer in [0, 4294967295]", ErrInvalid)
	}
	return uint32(n), nil
}

// Validate rejects configurations the simulator cannot run with.
func (c *Config) Validate() error {
	var problems []string

	switch c.Provider {
	case ProviderOpenAI:
		if c.Keys.OpenAI == "" {
			problems = append(problems, "OPENAI_API_KEY is required for provider openai")
		}
	case ProviderOpenRouter:
		if c.Keys.OpenRouter == "" {
			problems = append(problems, "OPENROUTER_API_KEY is required for provider openrouter")
		}
	case ProviderBoth:
		if c.Keys.OpenAI == "" {
			problems = append(problems, "OPENAI_API_KEY is required for provider both")
		}
		if c.Keys.OpenRouter == "" {
			problems = append(problems, "OPENROUTER_API_KEY is required for provider both")
		}
	case ProviderCustom:
		if c.SUT.URL == "" || c.Proxy.URL == "" {
			problems = append(problems, "SUT_URL and PROXY_URL are required for provider custom")
		}
		if c.Keys.OpenAI == "" && c.Keys.OpenRouter == "" {
			problems = append(problems, "an API key is required for the custom proxy endpoint")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown provider %q (want openai, openrouter, both or custom)", c.Provider))
	}

	s := c.Simulation
	if s.Temperature != nil && (*s.Temperature < 0 || *s.Temperature > 2) {
		problems = append(problems, fmt.Sprintf("temperature %.2f outside [0, 2]", *s.Temperature))
	}
	if s.TopP != nil && (*s.TopP <= 0 || *s.TopP > 1) {
		problems = append(problems, fmt.Sprintf("top_p %.2f outside (0, 1]", *s.TopP))
	}
	if s.MaxTurns <= 0 {
		problems = append(problems, "max_turns must be positive")
	}
	if s.ConversationTimeout <= 0 {
		problems = append(problems, "conversation_timeout must be positive")
	}
	if s.RequestTimeout <= 0 {
		problems = append(problems, "request_timeout must be positive")
	}
	if s.RetryAttempts < 0 {
		problems = append(problems, "retry_attempts must not be negative")
	}
	if s.RetryDelay < 0 {
		problems = append(problems, "retry_delay must not be negative")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		problems = append(problems, fmt.Sprintf("unknown log level %q", c.Logging.Level))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("unknown log format %q", c.Logging.Format))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// SUTEndpoint resolves the system-under-test endpoint for the provider.
// For provider "both" the SUT runs on OpenAI.
func (c *Config) SUTEndpoint() Endpoint {
	var ep Endpoint
	switch c.Provider {
	case ProviderOpenAI, ProviderBoth:
		ep = Endpoint{Kind: KindOpenAI, BaseURL: openAIBaseURL, APIKey: c.Keys.OpenAI, Model: openAIModel}
	case ProviderCustom:
		ep = Endpoint{Kind: KindDirect, BaseURL: c.SUT.URL, Model: openAIModel}
	default:
		ep = Endpoint{Kind: KindOpenAI, BaseURL: openRouterBaseURL, APIKey: c.Keys.OpenRouter, Model: openRouterModel}
	}
	if c.SUT.Model != "" {
		ep.Model = c.SUT.Model
	}
	return ep
}

// ProxyEndpoint resolves the persona-proxy endpoint for the provider.
// For provider "both" the proxy runs on OpenRouter.
func (c *Config) ProxyEndpoint() Endpoint {
	var ep Endpoint
	switch c.Provider {
	case ProviderOpenAI:
		ep = Endpoint{Kind: KindOpenAI, BaseURL: openAIBaseURL, APIKey: c.Keys.OpenAI, Model: openAIModel}
	case ProviderCustom:
		key := c.Keys.OpenRouter
		if key == "" {
			key = c.Keys.OpenAI
		}
		ep = Endpoint{
			Kind:    KindOpenAI,
			BaseURL: strings.TrimSuffix(strings.TrimRight(c.Proxy.URL, "/"), "/chat/completions"),
			APIKey:  key,
			Model:   openRouterModel,
		}
	default:
		ep = Endpoint{Kind: KindOpenAI, BaseURL: openRouterBaseURL, APIKey: c.Keys.OpenRouter, Model: openRouterModel}
	}
	if c.Proxy.Model != "" {
		ep.Model = c.Proxy.Model
	}
	return ep
}

// TracingEnabled reports whether Langfuse keys are configured.
func (c *Config) TracingEnabled() bool {
	return c.Langfuse.PublicKey != "" && c.Langfuse.SecretKey != ""
}

// Mask hides all but the first four characters of a secret.
func Mask(secret string) string {
	if secret == "" {
		return "(not set)"
	}
	if len(secret) <= 4 {
		return "****"
	}
	return secret[:4] + "****"
}
