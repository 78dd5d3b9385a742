package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// TelegramConfig contains configuration for the Telegram Bot API client.
type TelegramConfig struct {
	// BotToken authenticates against the Bot API
	BotToken string

	// ChatID is the destination chat or channel
	ChatID string

	// Timeout is the HTTP request timeout for Bot API calls
	Timeout time.Duration

	// APIBaseURL overrides the Bot API endpoint, used in tests
	APIBaseURL string
}

const telegramAPIBase = "https://api.telegram.org"

// TelegramClient sends messages through the Telegram Bot API. It performs a
// single request per Send; spacing and retries belong to the Governor.
type TelegramClient struct {
	config     TelegramConfig
	httpClient *http.Client
}

// NewTelegramClient creates a new TelegramClient with the specified configuration.
func NewTelegramClient(config TelegramConfig) *TelegramClient {
	if config.APIBaseURL == "" {
		config.APIBaseURL = telegramAPIBase
	}
	if config.Timeout == 0 {
		config.Timeout = 15 * time.Second
	}
	return &TelegramClient{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// telegramSendPayload is the sendMessage request body.
type telegramSendPayload struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

// telegramErrorResponse is the Bot API error envelope.
type telegramErrorResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
	Parameters  struct {
		RetryAfter int `json:"retry_after"` // In seconds
	} `json:"parameters"`
}

// Send posts one HTML-formatted message to the configured chat.
//
// Error types:
//   - 429: RateLimitError with retry_after from the response
//   - 4xx (non-429): ClientError (non-retryable)
//   - 5xx: ServerError (retryable)
//   - Timeout: PoolTimeoutError
func (t *TelegramClient) Send(ctx context.Context, text string) error {
	requestID := uuid.New().String()

	payload := telegramSendPayload{
		ChatID:                t.config.ChatID,
		Text:                  text,
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal sendMessage payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.config.APIBaseURL, t.config.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("create http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return &PoolTimeoutError{Message: fmt.Sprintf("Telegram request timed out: %v", err)}
		}
		return fmt.Errorf("execute http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		slog.Debug("Telegram message sent",
			slog.String("request_id", requestID),
			slog.Int("bytes", len(text)))
		return nil
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return &RateLimitError{
			Message:    "Telegram rate limit exceeded",
			RetryAfter: extractRetryAfter(resp, body),
		}
	}

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return &ClientError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("Telegram API client error: %s", string(body)),
		}
	}

	if resp.StatusCode >= 500 {
		return &ServerError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("Telegram API server error: %s", string(body)),
		}
	}

	return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// extractRetryAfter extracts retry_after from a Telegram error response.
// It tries the JSON parameters first, then the Retry-After header.
func extractRetryAfter(resp *http.Response, body []byte) time.Duration {
	var tgErr telegramErrorResponse
	if err := json.Unmarshal(body, &tgErr); err == nil && tgErr.Parameters.RetryAfter > 0 {
		return time.Duration(tgErr.Parameters.RetryAfter) * time.Second
	}

	if retryAfterHeader := resp.Header.Get("Retry-After"); retryAfterHeader != "" {
		if seconds, err := strconv.Atoi(retryAfterHeader); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}

	// Default retry after 5 seconds
	return 5 * time.Second
}
