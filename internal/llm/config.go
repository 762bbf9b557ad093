// Package llm implements inference clients speaking the OpenAI-compatible
// chat completions API, plus retry and streaming adapters layered on top.
package llm

import "time"

// Config carries provider connection settings.
type Config struct {
	APIKey  string
	BaseURL string
	// Timeout in seconds for one HTTP round trip; 0 uses the default.
	Timeout    int
	Headers    map[string]string
	MaxRetries int
}

const defaultRequestTimeout = 120 * time.Second

func (c Config) requestTimeout() time.Duration {
	if c.Timeout > 0 {
		return time.Duration(c.Timeout) * time.Second
	}
	return defaultRequestTimeout
}
