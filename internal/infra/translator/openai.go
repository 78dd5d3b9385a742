package translator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	"marketpulse/internal/resilience/circuitbreaker"
	"marketpulse/internal/resilience/retry"
)

// OpenAI implements the Translator interface using OpenAI's chat API.
// It includes circuit breaker and retry logic for improved reliability.
type OpenAI struct {
	client         *openai.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
	config         *Config
}

// NewOpenAI creates a new OpenAI translator with the given API key.
func NewOpenAI(apiKey string, config *Config) *OpenAI {
	slog.Info("Initialized OpenAI translator",
		slog.String("language", config.Language),
		slog.String("model", config.Model))

	return &OpenAI{
		client:         openai.NewClient(apiKey),
		circuitBreaker: circuitbreaker.New(circuitbreaker.TranslateAPIConfig()),
		retryConfig:    retry.TranslateConfig(),
		config:         config,
	}
}

// Translate converts text into the configured target language.
func (o *OpenAI) Translate(ctx context.Context, text string) (string, error) {
	if text == "" {
		return "", nil
	}

	ctx, cancel := context.WithTimeout(ctx, o.config.Timeout)
	defer cancel()

	var result string

	retryErr := retry.WithBackoff(ctx, o.retryConfig, func() error {
		cbResult, err := o.circuitBreaker.Execute(func() (interface{}, error) {
			return o.doTranslate(ctx, text)
		})

		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				slog.Warn("openai api circuit breaker open, request rejected",
					slog.String("service", "openai-api"),
					slog.String("state", o.circuitBreaker.State().String()))
				return fmt.Errorf("openai api unavailable: circuit breaker open")
			}
			return err
		}

		result = cbResult.(string)
		return nil
	})

	if retryErr != nil {
		return "", fmt.Errorf("openai translate failed after retries: %w", retryErr)
	}

	return result, nil
}

func (o *OpenAI) buildPrompt(text string) string {
	return fmt.Sprintf(
		"Translate the following English news text into %s. Reply with the translation only, no commentary:\n%s",
		o.config.Language, text)
}

// doTranslate performs the actual API call without retry or circuit breaker.
func (o *OpenAI) doTranslate(ctx context.Context, inputText string) (string, error) {
	prompt := o.buildPrompt(truncateInput(inputText, o.config.InputLimit))

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.config.Model,
		Messages: []openai.ChatCompletionMessage{{
			Role:    "system",
			Content: prompt,
		}},
	})
	if err != nil {
		return "", fmt.Errorf("openai api error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai api returned empty response")
	}

	return resp.Choices[0].Message.Content, nil
}
