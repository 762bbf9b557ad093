package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Option adjusts how Load resolves configuration.
type Option func(*loadOptions)

type loadOptions struct {
	configFile string
	overrides  map[string]any
}

// WithConfigFile forces a specific config file instead of the search path.
func WithConfigFile(path string) Option {
	return func(o *loadOptions) { o.configFile = path }
}

// WithOverride applies a caller override after file and env values.
func WithOverride(key string, value any) Option {
	return func(o *loadOptions) {
		if o.overrides == nil {
			o.overrides = map[string]any{}
		}
		o.overrides[key] = value
	}
}

// Load resolves configuration in precedence order: defaults, then the config
// file, then FIXPOINT_* environment variables, then caller overrides.
func Load(opts ...Option) (*Config, error) {
	var options loadOptions
	for _, opt := range opts {
		opt(&options)
	}

	v := viper.New()
	applyDefaults(v)

	if options.configFile != "" {
		v.SetConfigFile(options.configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".fixpoint"))
		}
	}

	v.SetEnvPrefix("FIXPOINT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if options.configFile != "" {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	for key, value := range options.overrides {
		v.Set(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	// OPENAI_API_KEY works as a fallback for users who never ran setup.
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	normalize(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("model", DefaultModel)
	v.SetDefault("base_url", DefaultBaseURL)
	v.SetDefault("max_tokens", DefaultMaxTokens)
	v.SetDefault("temperature", DefaultTemperature)
	v.SetDefault("top_p", DefaultTopP)
	v.SetDefault("llm_timeout_seconds", DefaultLLMTimeoutSeconds)
	v.SetDefault("llm_max_retries", 3)
	v.SetDefault("tool_max_concurrent", DefaultToolMaxConcurrent)
	v.SetDefault("tool_cache_size", DefaultToolCacheSize)
	v.SetDefault("tool_cache_ttl_seconds", int(DefaultToolCacheTTL.Seconds()))
	v.SetDefault("verification_enabled", true)
	v.SetDefault("checkpoint_interval", DefaultCheckpointInterval)
	v.SetDefault("prompt_timeout_seconds", DefaultPromptTimeoutSecs)
	v.SetDefault("consent_ttl_seconds", DefaultConsentTTLSeconds)
	v.SetDefault("consent_poll_millis", DefaultConsentPollMillis)
	v.SetDefault("user_id", defaultUserID())
}

func normalize(cfg *Config) {
	cfg.Model = strings.TrimSpace(cfg.Model)
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	cfg.UserID = strings.TrimSpace(cfg.UserID)

	if cfg.ToolMaxConcurrent <= 0 {
		cfg.ToolMaxConcurrent = DefaultToolMaxConcurrent
	}
	if cfg.ToolCacheSize < 0 {
		cfg.ToolCacheSize = 0
	}
	if cfg.CheckpointInterval <= 0 {
		cfg.CheckpointInterval = DefaultCheckpointInterval
	}
	if cfg.UserID == "" {
		cfg.UserID = defaultUserID()
	}
	if cfg.CheckpointDir == "" || cfg.PreferencePath == "" || cfg.AuditLogPath == "" {
		if home, err := os.UserHomeDir(); err == nil {
			base := filepath.Join(home, ".fixpoint")
			if cfg.CheckpointDir == "" {
				cfg.CheckpointDir = filepath.Join(base, "checkpoints")
			}
			if cfg.PreferencePath == "" {
				cfg.PreferencePath = filepath.Join(base, "preferences.json")
			}
			if cfg.AuditLogPath == "" {
				cfg.AuditLogPath = filepath.Join(base, "consent-audit.jsonl")
			}
		}
	}
}

func defaultUserID() string {
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	return "local"
}
