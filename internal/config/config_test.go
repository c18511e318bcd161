package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestConfigYAMLRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := DefaultConfig()
	cfg.Provider = ProviderOpenAI
	cfg.Simulation.MaxTurns = 12
	temp := 0.4
	cfg.Simulation.Temperature = &temp
	cfg.Keys.OpenAI = "sk-secret"

	if err := WriteConfig(tmpDir, cfg); err != nil {
		t.Fatalf("WriteConfig failed: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(tmpDir, ".staffer", "config.yaml"))
	if err != nil {
		t.Fatalf("reading written config: %v", err)
	}
	if strings.Contains(string(raw), "sk-secret") {
		t.Error("API key was written to disk")
	}

	loaded, err := ReadConfig(tmpDir)
	if err != nil {
		t.Fatalf("ReadConfig failed: %v", err)
	}
	if loaded.Provider != ProviderOpenAI {
		t.Errorf("Provider: got %q, want %q", loaded.Provider, ProviderOpenAI)
	}
	if loaded.Simulation.MaxTurns != 12 {
		t.Errorf("MaxTurns: got %d, want 12", loaded.Simulation.MaxTurns)
	}
	if loaded.Simulation.Temperature == nil || *loaded.Simulation.Temperature != 0.4 {
		t.Errorf("Temperature: got %v, want 0.4", loaded.Simulation.Temperature)
	}
}

func TestPartialConfigKeepsDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, ".staffer")
	if err := os.MkdirAll(path, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(path, "config.yaml"), []byte("provider: openai\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := ReadConfig(tmpDir)
	if err != nil {
		t.Fatalf("ReadConfig failed: %v", err)
	}
	if cfg.Simulation.RequestTimeout != 120 {
		t.Errorf("RequestTimeout: got %d, want default 120", cfg.Simulation.RequestTimeout)
	}
	if !cfg.Simulation.UseController {
		t.Error("UseController should default to true")
	}
}

func TestReadConfigMalformed(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, ".staffer")
	if err := os.MkdirAll(path, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(path, "config.yaml"), []byte("simulation: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := ReadConfig(tmpDir)
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid, got %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.applyEnv(envMap(map[string]string{
		"ENVIRONMENT":          "production",
		"API_PROVIDER":         "openai",
		"OPENAI_API_KEY":       "sk-test",
		"MAX_TURNS":            "6",
		"RETRY_DELAY":          "0.5",
		"TEMPERATURE":          "0.9",
		"RNG_SEED":             "1234",
		"CONVERSATION_TIMEOUT": "60",
		"SUT_MODEL":            "gpt-4o",
	}))
	if err != nil {
		t.Fatalf("applyEnv: %v", err)
	}

	if cfg.Provider != ProviderOpenAI || cfg.Keys.OpenAI != "sk-test" {
		t.Errorf("provider/key not applied: %q %q", cfg.Provider, cfg.Keys.OpenAI)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("production log level: got %q, want warn", cfg.Logging.Level)
	}
	if cfg.Simulation.MaxTurns != 6 || cfg.Simulation.ConversationTimeout != 60 {
		t.Errorf("ints not applied: %+v", cfg.Simulation)
	}
	if cfg.Simulation.RetryDelay != 0.5 {
		t.Errorf("RetryDelay: got %v", cfg.Simulation.RetryDelay)
	}
	if cfg.Simulation.Temperature == nil || *cfg.Simulation.Temperature != 0.9 {
		t.Errorf("Temperature: got %v", cfg.Simulation.Temperature)
	}
	if cfg.Simulation.RNGSeed == nil || *cfg.Simulation.RNGSeed != 1234 {
		t.Errorf("RNGSeed: got %v", cfg.Simulation.RNGSeed)
	}
	if got := cfg.SUTEndpoint().Model; got != "gpt-4o" {
		t.Errorf("SUT model override: got %q", got)
	}
}

func TestApplyEnvExplicitLogLevelWins(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.applyEnv(envMap(map[string]string{"ENVIRONMENT": "production", "LOG_LEVEL": "debug"}))
	if err != nil {
		t.Fatalf("applyEnv: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Level: got %q, want debug", cfg.Logging.Level)
	}
}

func TestApplyEnvRejectsBadNumbers(t *testing.T) {
	tests := map[string]string{
		"MAX_TURNS":   "many",
		"RETRY_DELAY": "soon",
		"TOP_P":       "high",
		"RNG_SEED":    "-1",
	}
	for key, val := range tests {
		t.Run(key, func(t *testing.T) {
			err := DefaultConfig().applyEnv(envMap(map[string]string{key: val}))
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("OPENROUTER_API_KEY=or-from-dotenv\nMAX_TURNS=4\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("OPENROUTER_API_KEY", "")
	os.Unsetenv("OPENROUTER_API_KEY")
	t.Setenv("MAX_TURNS", "9")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Keys.OpenRouter != "or-from-dotenv" {
		t.Errorf("key from .env: got %q", cfg.Keys.OpenRouter)
	}
	if cfg.Simulation.MaxTurns != 9 {
		t.Errorf("process env should win over .env: got %d", cfg.Simulation.MaxTurns)
	}
	os.Unsetenv("OPENROUTER_API_KEY")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		c := DefaultConfig()
		c.Keys.OpenRouter = "or-key"
		return c
	}
	f := func(v float64) *float64 { return &v }

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults with key", func(*Config) {}, ""},
		{"unknown provider", func(c *Config) { c.Provider = "azure" }, "unknown provider"},
		{"missing openai key", func(c *Config) { c.Provider = ProviderOpenAI }, "OPENAI_API_KEY"},
		{"both needs two keys", func(c *Config) { c.Provider = ProviderBoth }, "OPENAI_API_KEY"},
		{"temperature too high", func(c *Config) { c.Simulation.Temperature = f(2.5) }, "temperature"},
		{"top_p zero", func(c *Config) { c.Simulation.TopP = f(0) }, "top_p"},
		{"top_p one ok", func(c *Config) { c.Simulation.TopP = f(1) }, ""},
		{"zero max turns", func(c *Config) { c.Simulation.MaxTurns = 0 }, "max_turns"},
		{"zero timeout", func(c *Config) { c.Simulation.ConversationTimeout = 0 }, "conversation_timeout"},
		{"negative retries", func(c *Config) { c.Simulation.RetryAttempts = -1 }, "retry_attempts"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "log format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestEndpoints(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Keys = KeysConfig{OpenAI: "oa", OpenRouter: "or"}

	cfg.Provider = ProviderBoth
	if ep := cfg.SUTEndpoint(); ep.BaseURL != openAIBaseURL || ep.APIKey != "oa" {
		t.Errorf("both/SUT: %+v", ep)
	}
	if ep := cfg.ProxyEndpoint(); ep.BaseURL != openRouterBaseURL || ep.Model != openRouterModel {
		t.Errorf("both/proxy: %+v", ep)
	}

	cfg.Provider = ProviderCustom
	cfg.Proxy.URL = "https://llm.internal/v1/chat/completions"
	if ep := cfg.SUTEndpoint(); ep.Kind != KindDirect || ep.BaseURL != "http://localhost:8080/sut/chat" {
		t.Errorf("custom/SUT: %+v", ep)
	}
	if ep := cfg.ProxyEndpoint(); ep.BaseURL != "https://llm.internal/v1" || ep.APIKey != "or" {
		t.Errorf("custom/proxy: %+v", ep)
	}
}

func TestMask(t *testing.T) {
	tests := map[string]string{
		"":            "(not set)",
		"abc":         "****",
		"sk-abcdefgh": "sk-a****",
	}
	for in, want := range tests {
		if got := Mask(in); got != want {
			t.Errorf("Mask(%q) = %q, want %q", in, got, want)
		}
	}
}
