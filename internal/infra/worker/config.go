package worker

import (
	"fmt"
	"log/slog"
	"time"

	"marketpulse/internal/pkg/config"
)

// WorkerConfig holds the scheduling configuration for the bot process:
// the cron expressions for the news cycle and the twice-daily market
// reports, the timezone they are evaluated in, the per-cycle timeout,
// and the health server port.
//
// Values are loaded from environment variables with a fail-open
// strategy: an invalid value falls back to its default and is reported
// through logs and metrics, so a typo in deployment config degrades the
// schedule instead of crashing the process.
type WorkerConfig struct {
	// NewsCycleSchedule is the cron expression for the combined
	// ingest + delivery cycle.
	// Default: "*/30 * * * *" (every 30 minutes)
	NewsCycleSchedule string

	// MorningReportSchedule is the cron expression for the morning
	// crypto and forex market report.
	// Default: "0 8 * * *"
	MorningReportSchedule string

	// EveningReportSchedule is the cron expression for the evening
	// market report.
	// Default: "0 20 * * *"
	EveningReportSchedule string

	// Timezone is the IANA timezone name the cron schedules are
	// evaluated in.
	// Default: "Europe/Paris"
	Timezone string

	// CycleTimeout is the maximum duration of a single news cycle.
	// The cycle context is cancelled when it elapses.
	// Range: 1 minute to 1 hour. Default: 10 minutes.
	CycleTimeout time.Duration

	// HealthPort is the port for the health check HTTP server.
	// Range: 1024-65535. Default: 9091.
	HealthPort int
}

// DefaultConfig returns the production schedule: a news cycle every
// 30 minutes and market reports at 08:00 and 20:00 Paris time.
func DefaultConfig() WorkerConfig {
	return WorkerConfig{
		NewsCycleSchedule:     "*/30 * * * *",
		MorningReportSchedule: "0 8 * * *",
		EveningReportSchedule: "0 20 * * *",
		Timezone:              "Europe/Paris",
		CycleTimeout:          10 * time.Minute,
		HealthPort:            9091,
	}
}

// Validate checks every field and returns the aggregated errors, so a
// broken deployment config reports all problems at once.
func (c *WorkerConfig) Validate() error {
	var errs []error

	if err := config.ValidateCronSchedule(c.NewsCycleSchedule); err != nil {
		errs = append(errs, fmt.Errorf("news cycle schedule: %w", err))
	}
	if err := config.ValidateCronSchedule(c.MorningReportSchedule); err != nil {
		errs = append(errs, fmt.Errorf("morning report schedule: %w", err))
	}
	if err := config.ValidateCronSchedule(c.EveningReportSchedule); err != nil {
		errs = append(errs, fmt.Errorf("evening report schedule: %w", err))
	}
	if err := config.ValidateTimezone(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone: %w", err))
	}
	if err := config.ValidatePositiveDuration(c.CycleTimeout); err != nil {
		errs = append(errs, fmt.Errorf("cycle timeout: %w", err))
	}
	if err := config.ValidateIntRange(c.HealthPort, 1024, 65535); err != nil {
		errs = append(errs, fmt.Errorf("health port: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed: %v", errs)
	}
	return nil
}

// LoadConfigFromEnv loads the worker configuration from environment
// variables with validation and fallback to defaults.
//
// Environment variables:
//   - NEWS_CYCLE_SCHEDULE: cron expression (default "*/30 * * * *")
//   - MORNING_REPORT_SCHEDULE: cron expression (default "0 8 * * *")
//   - EVENING_REPORT_SCHEDULE: cron expression (default "0 20 * * *")
//   - WORKER_TIMEZONE: IANA timezone name (default "Europe/Paris")
//   - NEWS_CYCLE_TIMEOUT: duration string 1m-1h (default "10m")
//   - WORKER_HEALTH_PORT: integer 1024-65535 (default 9091)
//
// Every fallback is logged as a warning and counted on the worker
// metrics, and the function never returns an invalid configuration.
func LoadConfigFromEnv(logger *slog.Logger, metrics *WorkerMetrics) *WorkerConfig {
	cfg := DefaultConfig()
	fallbackApplied := false

	loadString := func(envKey, field string, dst *string, validate func(string) error) {
		result := config.LoadEnvString(envKey, *dst, validate)
		*dst = result.Value
		if result.FallbackApplied {
			fallbackApplied = true
			metrics.RecordValidationError(field)
			metrics.RecordFallback(field)
			logger.Warn("configuration fallback applied",
				slog.String("field", field),
				slog.String("env_key", envKey),
				slog.String("warning", result.Warning))
		}
	}

	loadString("NEWS_CYCLE_SCHEDULE", "news_cycle_schedule", &cfg.NewsCycleSchedule, config.ValidateCronSchedule)
	loadString("MORNING_REPORT_SCHEDULE", "morning_report_schedule", &cfg.MorningReportSchedule, config.ValidateCronSchedule)
	loadString("EVENING_REPORT_SCHEDULE", "evening_report_schedule", &cfg.EveningReportSchedule, config.ValidateCronSchedule)
	loadString("WORKER_TIMEZONE", "timezone", &cfg.Timezone, config.ValidateTimezone)

	timeoutResult := config.LoadEnvDuration("NEWS_CYCLE_TIMEOUT", cfg.CycleTimeout, func(d time.Duration) error {
		return config.ValidateDuration(d, 1*time.Minute, 1*time.Hour)
	})
	cfg.CycleTimeout = timeoutResult.Value
	if timeoutResult.FallbackApplied {
		fallbackApplied = true
		metrics.RecordValidationError("cycle_timeout")
		metrics.RecordFallback("cycle_timeout")
		logger.Warn("configuration fallback applied",
			slog.String("field", "cycle_timeout"),
			slog.String("env_key", "NEWS_CYCLE_TIMEOUT"),
			slog.String("warning", timeoutResult.Warning))
	}

	portResult := config.LoadEnvInt("WORKER_HEALTH_PORT", cfg.HealthPort, func(v int) error {
		return config.ValidateIntRange(v, 1024, 65535)
	})
	cfg.HealthPort = portResult.Value
	if portResult.FallbackApplied {
		fallbackApplied = true
		metrics.RecordValidationError("health_port")
		metrics.RecordFallback("health_port")
		logger.Warn("configuration fallback applied",
			slog.String("field", "health_port"),
			slog.String("env_key", "WORKER_HEALTH_PORT"),
			slog.String("warning", portResult.Warning))
	}

	metrics.SetFallbackActive(fallbackApplied)
	metrics.RecordLoadTimestamp()

	return &cfg
}
