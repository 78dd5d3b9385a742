package translator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sony/gobreaker"

	"marketpulse/internal/resilience/circuitbreaker"
	"marketpulse/internal/resilience/retry"
)

// Claude implements the Translator interface using Anthropic's API.
type Claude struct {
	client         anthropic.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
	config         *Config
}

// NewClaude creates a new Claude translator with the given API key.
func NewClaude(apiKey string, config *Config) *Claude {
	slog.Info("Initialized Claude translator",
		slog.String("language", config.Language),
		slog.String("model", config.Model))

	return &Claude{
		client:         anthropic.NewClient(option.WithAPIKey(apiKey)),
		circuitBreaker: circuitbreaker.New(circuitbreaker.TranslateAPIConfig()),
		retryConfig:    retry.TranslateConfig(),
		config:         config,
	}
}

// Translate converts text into the configured target language.
func (c *Claude) Translate(ctx context.Context, text string) (string, error) {
	if text == "" {
		return "", nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	var result string

	retryErr := retry.WithBackoff(ctx, c.retryConfig, func() error {
		cbResult, err := c.circuitBreaker.Execute(func() (interface{}, error) {
			return c.doTranslate(ctx, text)
		})

		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				slog.Warn("claude api circuit breaker open, request rejected",
					slog.String("service", "claude-api"),
					slog.String("state", c.circuitBreaker.State().String()))
				return fmt.Errorf("claude api unavailable: circuit breaker open")
			}
			return err
		}

		result = cbResult.(string)
		return nil
	})

	if retryErr != nil {
		return "", fmt.Errorf("claude translate failed after retries: %w", retryErr)
	}

	return result, nil
}

func (c *Claude) buildPrompt(text string) string {
	return fmt.Sprintf(
		"Translate the following English news text into %s. Reply with the translation only, no commentary:\n%s",
		c.config.Language, text)
}

// doTranslate performs the actual API call without retry or circuit breaker.
func (c *Claude) doTranslate(ctx context.Context, inputText string) (string, error) {
	prompt := c.buildPrompt(truncateInput(inputText, c.config.InputLimit))

	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.config.Model),
		MaxTokens: int64(c.config.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewTextBlock(prompt),
			),
		},
	})
	if err != nil {
		return "", fmt.Errorf("claude api error: %w", err)
	}

	if len(message.Content) == 0 {
		return "", fmt.Errorf("claude api returned empty response")
	}

	textBlock, ok := message.Content[0].AsAny().(anthropic.TextBlock)
	if !ok {
		return "", fmt.Errorf("claude api returned unexpected response type")
	}

	return textBlock.Text, nil
}
