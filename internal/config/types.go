// Package config loads and persists runtime settings for the fixpoint CLI.
package config

import (
	"fmt"
	"time"
)

const (
	DefaultModel       = "gpt-4o-mini"
	DefaultBaseURL     = "https://api.openai.com/v1"
	DefaultMaxTokens   = 8192
	DefaultTemperature = 0.7
	DefaultTopP        = 1.0

	DefaultToolMaxConcurrent = 5
	DefaultToolCacheSize     = 256
	DefaultToolCacheTTL      = 5 * time.Minute

	DefaultConsentTTLSeconds  = 300
	DefaultConsentPollMillis  = 500
	DefaultPromptTimeoutSecs  = 300
	DefaultCheckpointInterval = 10
	DefaultLLMTimeoutSeconds  = 120
)

// Config captures the user-configurable settings shared across commands.
type Config struct {
	Model       string  `yaml:"model" mapstructure:"model"`
	APIKey      string  `yaml:"api_key" mapstructure:"api_key"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
	TopP        float64 `yaml:"top_p" mapstructure:"top_p"`

	LLMTimeoutSeconds int `yaml:"llm_timeout_seconds" mapstructure:"llm_timeout_seconds"`
	LLMMaxRetries     int `yaml:"llm_max_retries" mapstructure:"llm_max_retries"`

	ToolMaxConcurrent    int `yaml:"tool_max_concurrent" mapstructure:"tool_max_concurrent"`
	ToolCacheSize        int `yaml:"tool_cache_size" mapstructure:"tool_cache_size"`
	ToolCacheTTLSeconds  int `yaml:"tool_cache_ttl_seconds" mapstructure:"tool_cache_ttl_seconds"`
	VerificationEnabled  bool `yaml:"verification_enabled" mapstructure:"verification_enabled"`
	CheckpointInterval   int  `yaml:"checkpoint_interval" mapstructure:"checkpoint_interval"`
	PromptTimeoutSeconds int  `yaml:"prompt_timeout_seconds" mapstructure:"prompt_timeout_seconds"`

	ConsentTTLSeconds  int `yaml:"consent_ttl_seconds" mapstructure:"consent_ttl_seconds"`
	ConsentPollMillis  int `yaml:"consent_poll_millis" mapstructure:"consent_poll_millis"`

	CheckpointDir  string `yaml:"checkpoint_dir" mapstructure:"checkpoint_dir"`
	PreferencePath string `yaml:"preference_path" mapstructure:"preference_path"`
	AuditLogPath   string `yaml:"audit_log_path" mapstructure:"audit_log_path"`

	UserID  string `yaml:"user_id" mapstructure:"user_id"`
	Verbose bool   `yaml:"verbose" mapstructure:"verbose"`
	NoColor bool   `yaml:"no_color" mapstructure:"no_color"`
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("model must not be empty")
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive, got %d", c.MaxTokens)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be in [0, 2], got %v", c.Temperature)
	}
	if c.ToolMaxConcurrent <= 0 {
		return fmt.Errorf("tool_max_concurrent must be positive, got %d", c.ToolMaxConcurrent)
	}
	return nil
}

// ConsentTTL returns the consent request lifetime as a duration.
func (c *Config) ConsentTTL() time.Duration {
	return time.Duration(c.ConsentTTLSeconds) * time.Second
}

// ConsentPoll returns the consent store poll interval as a duration.
func (c *Config) ConsentPoll() time.Duration {
	return time.Duration(c.ConsentPollMillis) * time.Millisecond
}

// PromptTimeout returns how long a pending human prompt blocks the task.
func (c *Config) PromptTimeout() time.Duration {
	return time.Duration(c.PromptTimeoutSeconds) * time.Second
}

// ToolCacheTTL returns the read-only tool cache lifetime.
func (c *Config) ToolCacheTTL() time.Duration {
	return time.Duration(c.ToolCacheTTLSeconds) * time.Second
}
