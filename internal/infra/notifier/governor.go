package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// GovernorConfig controls send spacing and the retry policy.
type GovernorConfig struct {
	// MinInterval is the minimum spacing between consecutive sends
	MinInterval time.Duration

	// MaxAttempts is the per-message retry budget
	MaxAttempts int

	// BaseDelay scales the backoff between retries (attempt * BaseDelay)
	BaseDelay time.Duration

	// PoolDelay is the fixed backoff after a pool or request timeout
	PoolDelay time.Duration
}

// DefaultGovernorConfig returns the production send policy: 1.8s spacing,
// three attempts, attempt-scaled backoff and a longer pause after timeouts.
func DefaultGovernorConfig() GovernorConfig {
	return GovernorConfig{
		MinInterval: 1800 * time.Millisecond,
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		PoolDelay:   10 * time.Second,
	}
}

// Governor wraps a Messenger with an exclusive send gate. All sends in the
// process are serialized through one mutex and paced by a token bucket, so
// concurrent jobs cannot interleave or burst past the transport's limits.
type Governor struct {
	mu        sync.Mutex
	limiter   *rate.Limiter
	transport Messenger
	config    GovernorConfig

	// lastSuccess is the time of the last confirmed transmission.
	// Spacing is measured from here, not from when a send started, so
	// retries inside one send cannot eat into the next send's gap.
	lastSuccess time.Time
}

// NewGovernor creates a Governor in front of the given transport.
func NewGovernor(transport Messenger, config GovernorConfig) *Governor {
	return &Governor{
		// burst 1: the next token only becomes available MinInterval
		// after the previous send
		limiter:   rate.NewLimiter(rate.Every(config.MinInterval), 1),
		transport: transport,
		config:    config,
	}
}

// Send delivers one message through the gate.
//
// Retry strategy:
//   - 429 errors: wait the retry_after the transport reported
//   - Pool timeouts: wait the fixed PoolDelay
//   - Server/network errors: wait attempt * BaseDelay
//   - Client errors (4xx): fail immediately
//
// Failures are wrapped in DeliveryError so callers can keep the record
// unsent and let a later cycle retry it.
func (g *Governor) Send(ctx context.Context, text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("send gate: %w", err)
	}

	// 最後の送信成功時刻からの間隔を保証する
	if !g.lastSuccess.IsZero() {
		if wait := g.config.MinInterval - time.Since(g.lastSuccess); wait > 0 {
			if err := g.sleep(ctx, wait); err != nil {
				return err
			}
		}
	}

	var lastErr error
	for attempt := 1; attempt <= g.config.MaxAttempts; attempt++ {
		err := g.transport.Send(ctx, text)
		if err == nil {
			g.lastSuccess = time.Now()
			return nil
		}
		lastErr = err

		if rateLimitErr, ok := is429Error(err); ok {
			slog.Warn("messaging rate limit hit, backing off",
				slog.Duration("retry_after", rateLimitErr.RetryAfter),
				slog.Int("attempt", attempt))
			if err := g.sleep(ctx, rateLimitErr.RetryAfter); err != nil {
				return err
			}
			continue
		}

		if isPoolTimeout(err) {
			slog.Warn("messaging pool timeout, backing off",
				slog.Duration("delay", g.config.PoolDelay),
				slog.Int("attempt", attempt))
			if err := g.sleep(ctx, g.config.PoolDelay); err != nil {
				return err
			}
			continue
		}

		if !isRetryableError(err) {
			slog.Error("send failed with non-retryable error",
				slog.Any("error", err),
				slog.Int("attempt", attempt))
			return &DeliveryError{Attempts: attempt, Err: err}
		}

		if attempt < g.config.MaxAttempts {
			delay := time.Duration(attempt) * g.config.BaseDelay
			slog.Warn("send failed, retrying",
				slog.Any("error", err),
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay))
			if err := g.sleep(ctx, delay); err != nil {
				return err
			}
		}
	}

	slog.Error("send failed after all retries",
		slog.Any("error", lastErr),
		slog.Int("max_attempts", g.config.MaxAttempts))
	return &DeliveryError{Attempts: g.config.MaxAttempts, Err: lastErr}
}

func (g *Governor) sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return fmt.Errorf("context canceled during backoff: %w", ctx.Err())
	}
}
