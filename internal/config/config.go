// Package config handles loading and validating gateway configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the top-level configuration for the coachgate service.
// Loaded once in main and passed explicitly into constructors — there is
// deliberately no package-level cached instance.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
	Providers ProvidersConfig `koanf:"providers"`
	Fallback  FallbackConfig  `koanf:"fallback"`
	Persona   PersonaConfig   `koanf:"persona"`
}

// ServerConfig holds HTTP server settings. There is intentionally no write
// timeout knob: one would cut off long-running narration streams.
type ServerConfig struct {
	Port        int           `koanf:"port"`
	ReadTimeout time.Duration `koanf:"read_timeout"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level string `koanf:"level"`
}

// ProvidersConfig names the two provider slots. Secondary is optional; a
// gateway with no secondary simply never falls back.
type ProvidersConfig struct {
	Primary   *ProviderConfig `koanf:"primary"`
	Secondary *ProviderConfig `koanf:"secondary"`
}

// ProviderConfig holds the settings for a single text-generation backend.
type ProviderConfig struct {
	// Wire selects the codec: "responses" (single-prompt) or "chat"
	// (role-messages).
	Wire    string `koanf:"wire"`
	BaseURL string `koanf:"base_url"`
	APIKey  string `koanf:"api_key"`

	// Model is the default model id; Tiers optionally maps a reasoning
	// effort ("low", "medium", "high") onto a different model.
	Model string            `koanf:"model"`
	Tiers map[string]string `koanf:"tiers"`

	MaxTokens   int     `koanf:"max_tokens"`
	Temperature float64 `koanf:"temperature"`
	TopP        float64 `koanf:"top_p"`
}

// FallbackConfig holds the retry policy.
type FallbackConfig struct {
	// Ordering is one of primary-only, secondary-only,
	// primary-then-secondary, secondary-then-primary.
	Ordering string `koanf:"ordering"`

	// RetryOn lists the failure classifications that permit a retry on
	// the other provider: network-error, timeout, http-5xx, http-429,
	// http-4xx, empty-output, malformed-response.
	RetryOn []string `koanf:"retry_on"`
}

// PersonaConfig points at the active character profile record.
type PersonaConfig struct {
	Profile string `koanf:"profile"`
}

// Load reads configuration from a YAML file, layers environment variable
// overrides on top, and returns a fully populated Config.
func Load(path string) (*Config, error) {
	// Load .env into the process environment (ignored if not present) so
	// API keys can live outside the config file.
	_ = godotenv.Load()

	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("loading config file: %w", err)
	}

	// Layer environment variables on top. Any env var starting with
	// "COACHGATE_" can override a config value; the callback transforms
	// the name into a koanf key path:
	//   COACHGATE_SERVER_PORT -> server.port
	if err := k.Load(env.Provider("COACHGATE_", ".", func(s string) string {
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(s, "COACHGATE_")),
			"_", ".",
		)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand ${VAR_NAME} placeholders in provider API keys. koanf doesn't
	// do this automatically, so we resolve them against the environment
	// ourselves.
	expand := func(p *ProviderConfig) {
		if p == nil {
			return
		}
		if strings.HasPrefix(p.APIKey, "${") && strings.HasSuffix(p.APIKey, "}") {
			p.APIKey = os.Getenv(p.APIKey[2 : len(p.APIKey)-1])
		}
	}
	expand(cfg.Providers.Primary)
	expand(cfg.Providers.Secondary)

	if cfg.Providers.Primary == nil {
		return nil, fmt.Errorf("config: providers.primary is required")
	}

	return &cfg, nil
}
