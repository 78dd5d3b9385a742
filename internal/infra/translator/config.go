package translator

import (
	"fmt"
	"time"

	"marketpulse/pkg/config"
)

const (
	// minInputLimit is the minimum allowed input truncation limit.
	minInputLimit = 100

	// maxInputLimit is the maximum allowed input truncation limit.
	maxInputLimit = 5000
)

// Config holds shared configuration for the AI-backed translators.
type Config struct {
	// Language is the target language for translated output.
	Language string

	// InputLimit is the maximum number of characters sent to the API.
	// Longer input is truncated before the prompt is built.
	InputLimit int

	// Model is the provider model identifier.
	Model string

	// MaxTokens is the maximum number of tokens for the API response.
	MaxTokens int

	// Timeout is the maximum duration for a single translation call.
	Timeout time.Duration
}

// Validate checks the configuration fields.
func (c *Config) Validate() error {
	if c.Language == "" {
		return fmt.Errorf("language cannot be empty")
	}
	if c.InputLimit < minInputLimit || c.InputLimit > maxInputLimit {
		return fmt.Errorf("input limit %d outside valid range [%d, %d]",
			c.InputLimit, minInputLimit, maxInputLimit)
	}
	if c.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("max tokens must be positive, got %d", c.MaxTokens)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.Timeout)
	}
	return nil
}

// LoadConfig loads translator settings from the environment.
//
// Environment variables:
//   - TRANSLATOR_LANG: target language (default: French)
//   - TRANSLATOR_INPUT_LIMIT: input truncation limit (default: 500)
//   - TRANSLATOR_MODEL: provider model override
func LoadConfig(defaultModel string) (*Config, error) {
	cfg := &Config{
		Language:   config.GetEnvString("TRANSLATOR_LANG", "French"),
		InputLimit: config.GetEnvInt("TRANSLATOR_INPUT_LIMIT", 500),
		Model:      config.GetEnvString("TRANSLATOR_MODEL", defaultModel),
		MaxTokens:  1024,
		Timeout:    60 * time.Second,
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid translator configuration: %w", err)
	}
	return cfg, nil
}

// truncateInput caps the text sent to the provider. The marker tells the
// model the source was cut so it does not invent an ending.
func truncateInput(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit] + "..."
}
