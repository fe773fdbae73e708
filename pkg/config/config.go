// Package config loads skillforge settings from config.yaml, SKILLFORGE_*
// environment variables and command flags through viper.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/jingkaihe/skillforge/pkg/forgeerr"
	"github.com/jingkaihe/skillforge/pkg/telemetry"
)

// Provider names an LLM backend.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
	ProviderGoogle    Provider = "google"
)

// Config is the full skillforge configuration.
type Config struct {
	StateDir  string `mapstructure:"state_dir" validate:"required"`
	LogLevel  string `mapstructure:"log_level" validate:"oneof=panic fatal error warn warning info debug trace"`
	LogFormat string `mapstructure:"log_format" validate:"oneof=text json"`

	Firecrawl  FirecrawlConfig  `mapstructure:"firecrawl"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Discovery  DiscoveryConfig  `mapstructure:"discovery"`
	Corpus     CorpusConfig     `mapstructure:"corpus"`
	Teacher    TeacherConfig    `mapstructure:"teacher"`
	Sandbox    SandboxConfig    `mapstructure:"sandbox"`
	Validation ValidationConfig `mapstructure:"validation"`
	Traces     TracesConfig     `mapstructure:"traces"`
	Tracing    telemetry.Config `mapstructure:"tracing"`
}

// FirecrawlConfig configures the crawl/search service client.
type FirecrawlConfig struct {
	APIKey            string        `mapstructure:"api_key"`
	BaseURL           string        `mapstructure:"base_url" validate:"required,url"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" validate:"gt=0"`
	Burst             int           `mapstructure:"burst" validate:"gte=1"`
	Timeout           time.Duration `mapstructure:"timeout" validate:"gt=0"`
	PollInterval      time.Duration `mapstructure:"poll_interval" validate:"gt=0"`
	Retry             RetryConfig   `mapstructure:"retry"`
}

// LLMConfig configures the model provider.
type LLMConfig struct {
	Provider        Provider    `mapstructure:"provider" validate:"oneof=anthropic openai google"`
	Model           string      `mapstructure:"model"`
	MaxTokens       int         `mapstructure:"max_tokens" validate:"gt=0"`
	AnthropicAPIKey string      `mapstructure:"anthropic_api_key"`
	OpenAIAPIKey    string      `mapstructure:"openai_api_key"`
	OpenAIBaseURL   string      `mapstructure:"openai_base_url" validate:"omitempty,url"`
	GeminiAPIKey    string      `mapstructure:"gemini_api_key"`
	Retry           RetryConfig `mapstructure:"retry"`
}

// DiscoveryConfig bounds source discovery.
type DiscoveryConfig struct {
	MapLimit    int `mapstructure:"map_limit" validate:"gt=0"`
	SearchLimit int `mapstructure:"search_limit" validate:"gt=0"`
	MaxSeeds    int `mapstructure:"max_seeds" validate:"gt=0"`
}

// CorpusConfig configures corpus assembly.
type CorpusConfig struct {
	Root    string `mapstructure:"root" validate:"required"`
	Limit   int    `mapstructure:"limit" validate:"gt=0"`
	Stealth bool   `mapstructure:"stealth"`
}

// TeacherConfig bounds the teacher session.
type TeacherConfig struct {
	MaxAttempts      int `mapstructure:"max_attempts" validate:"gt=0"`
	AmbiguityRetries int `mapstructure:"ambiguity_retries" validate:"gte=0"`
}

// SandboxConfig configures the compile-check sandbox. Commands are shell-like
// strings split with shlex; the code file path is appended as the last argument.
type SandboxConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
	Python  string        `mapstructure:"python" validate:"required"`
	Bash    string        `mapstructure:"bash" validate:"required"`
	Node    string        `mapstructure:"node" validate:"required"`
}

// ValidationConfig holds the post-session content thresholds.
type ValidationConfig struct {
	MinChars  int `mapstructure:"min_chars" validate:"gt=0"`
	WarnChars int `mapstructure:"warn_chars" validate:"gt=0,ltefield=MinChars"`
}

// TracesConfig selects the session trace store.
type TracesConfig struct {
	Store string `mapstructure:"store" validate:"oneof=json sqlite"`
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	home, _ := os.UserHomeDir()
	stateDir := filepath.Join(home, ".skillforge")

	v.SetDefault("state_dir", stateDir)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	v.SetDefault("firecrawl.api_key", "")
	v.SetDefault("firecrawl.base_url", "https://api.firecrawl.dev")
	v.SetDefault("firecrawl.requests_per_second", 2.0)
	v.SetDefault("firecrawl.burst", 1)
	v.SetDefault("firecrawl.timeout", 2*time.Minute)
	v.SetDefault("firecrawl.poll_interval", 2*time.Second)
	v.SetDefault("firecrawl.retry.attempts", 3)
	v.SetDefault("firecrawl.retry.initial_delay", 1000)
	v.SetDefault("firecrawl.retry.max_delay", 10000)
	v.SetDefault("firecrawl.retry.backoff_type", "exponential")

	v.SetDefault("llm.provider", string(ProviderAnthropic))
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.max_tokens", 8192)
	v.SetDefault("llm.anthropic_api_key", "")
	v.SetDefault("llm.openai_api_key", "")
	v.SetDefault("llm.openai_base_url", "")
	v.SetDefault("llm.gemini_api_key", "")
	v.SetDefault("llm.retry.attempts", 3)
	v.SetDefault("llm.retry.initial_delay", 1000)
	v.SetDefault("llm.retry.max_delay", 10000)
	v.SetDefault("llm.retry.backoff_type", "exponential")

	v.SetDefault("discovery.map_limit", 200)
	v.SetDefault("discovery.search_limit", 5)
	v.SetDefault("discovery.max_seeds", 3)

	v.SetDefault("corpus.root", filepath.Join(stateDir, "corpora"))
	v.SetDefault("corpus.limit", 50)
	v.SetDefault("corpus.stealth", false)

	v.SetDefault("teacher.max_attempts", 5)
	v.SetDefault("teacher.ambiguity_retries", 1)

	v.SetDefault("sandbox.enabled", true)
	v.SetDefault("sandbox.timeout", 20*time.Second)
	v.SetDefault("sandbox.python", "python3 -m py_compile")
	v.SetDefault("sandbox.bash", "bash -n")
	v.SetDefault("sandbox.node", "node --check")

	v.SetDefault("validation.min_chars", 500)
	v.SetDefault("validation.warn_chars", 200)

	v.SetDefault("traces.store", "json")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.sampler_type", "always")
	v.SetDefault("tracing.sampler_ratio", 1.0)
}

// Init sets up v the way the CLI expects: SKILLFORGE_ env prefix, defaults,
// and an optional config.yaml in $HOME/.skillforge or the working directory.
// A missing config file is not an error.
func Init(v *viper.Viper) error {
	v.SetEnvPrefix("SKILLFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("$HOME/.skillforge")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return forgeerr.Wrap(forgeerr.KindConfig, err, "failed to read config file")
		}
	}
	return nil
}

// Load decodes and validates the configuration held by v. Conventional
// provider environment variables fill in keys the config leaves empty.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, forgeerr.Wrap(forgeerr.KindConfig, err, "failed to unmarshal configuration")
	}

	cfg.applyEnvFallbacks()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnvFallbacks() {
	fallback := func(dst *string, env string) {
		if *dst == "" {
			*dst = os.Getenv(env)
		}
	}
	fallback(&c.Firecrawl.APIKey, "FIRECRAWL_API_KEY")
	fallback(&c.LLM.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	fallback(&c.LLM.OpenAIAPIKey, "OPENAI_API_KEY")
	fallback(&c.LLM.GeminiAPIKey, "GEMINI_API_KEY")
	fallback(&c.LLM.GeminiAPIKey, "GOOGLE_API_KEY")
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks structural constraints. Credentials are checked separately
// by RequireCredentials so that offline commands work without keys.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return forgeerr.New(forgeerr.KindConfig, "invalid configuration: %s failed %q", fe.Namespace(), fe.Tag())
		}
		return forgeerr.Wrap(forgeerr.KindConfig, err, "invalid configuration")
	}
	return nil
}

// RequireCredentials reports a config error unless the crawl service key and
// the active provider's key are present.
func (c *Config) RequireCredentials() error {
	if err := c.RequireFirecrawlCredentials(); err != nil {
		return err
	}
	return c.RequireLLMCredentials()
}

// RequireFirecrawlCredentials reports a config error unless the crawl service key is present.
func (c *Config) RequireFirecrawlCredentials() error {
	if c.Firecrawl.APIKey == "" {
		return forgeerr.New(forgeerr.KindConfig, "FIRECRAWL_API_KEY environment variable not set")
	}
	return nil
}

// RequireLLMCredentials reports a config error unless the active provider's key is present.
func (c *Config) RequireLLMCredentials() error {
	switch c.LLM.Provider {
	case ProviderAnthropic:
		if c.LLM.AnthropicAPIKey == "" {
			return forgeerr.New(forgeerr.KindConfig, "ANTHROPIC_API_KEY environment variable not set")
		}
	case ProviderOpenAI:
		if c.LLM.OpenAIAPIKey == "" {
			return forgeerr.New(forgeerr.KindConfig, "OPENAI_API_KEY environment variable not set")
		}
	case ProviderGoogle:
		if c.LLM.GeminiAPIKey == "" {
			return forgeerr.New(forgeerr.KindConfig, "GEMINI_API_KEY environment variable not set")
		}
	default:
		return forgeerr.New(forgeerr.KindConfig, "unknown llm provider %q", c.LLM.Provider)
	}
	return nil
}

// CacheDir is where search results are cached.
func (c *Config) CacheDir() string {
	return filepath.Join(c.StateDir, "cache")
}

// KnowledgeDir is where deep-dive crawls are stored.
func (c *Config) KnowledgeDir() string {
	return filepath.Join(c.StateDir, "knowledge")
}

// SessionsDir is where the JSON trace store keeps session files.
func (c *Config) SessionsDir() string {
	return filepath.Join(c.StateDir, "sessions")
}
