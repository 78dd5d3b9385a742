package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"marketpulse/internal/classifier"
	pgRepo "marketpulse/internal/infra/adapter/persistence/postgres"
	sqliteRepo "marketpulse/internal/infra/adapter/persistence/sqlite"
	"marketpulse/internal/infra/db"
	"marketpulse/internal/infra/feeds"
	"marketpulse/internal/infra/market"
	"marketpulse/internal/infra/notifier"
	"marketpulse/internal/infra/translator"
	workerPkg "marketpulse/internal/infra/worker"
	"marketpulse/internal/observability/logging"
	"marketpulse/internal/observability/metrics"
	"marketpulse/internal/report"
	"marketpulse/internal/repository"
	"marketpulse/internal/usecase/deliver"
	"marketpulse/internal/usecase/ingest"
	pkgconfig "marketpulse/pkg/config"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	logger := logging.NewLogger()
	slog.SetDefault(logger)

	database, driver, err := db.Open()
	if err != nil {
		logger.Error("failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	if err := db.MigrateUp(database, driver); err != nil {
		logger.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Load worker configuration (fail-open strategy)
	workerMetrics := workerPkg.NewWorkerMetrics()
	workerConfig := workerPkg.LoadConfigFromEnv(logger, workerMetrics)
	logger.Info("worker configuration loaded",
		slog.String("news_cycle_schedule", workerConfig.NewsCycleSchedule),
		slog.String("morning_report_schedule", workerConfig.MorningReportSchedule),
		slog.String("evening_report_schedule", workerConfig.EveningReportSchedule),
		slog.String("timezone", workerConfig.Timezone),
		slog.Duration("cycle_timeout", workerConfig.CycleTimeout),
		slog.Int("health_port", workerConfig.HealthPort))

	repo := newNewsRepository(database, driver)
	logger.Info("news repository initialized", slog.String("driver", driver))

	governor := notifier.NewGovernor(createTelegramClient(logger), loadGovernorConfig(logger))

	ingestService := ingest.NewService(
		repo,
		feeds.NewRSSFetcher(createHTTPClient()),
		createClassifier(logger),
		createTranslator(logger),
		feeds.DefaultSources(),
	)

	deliverService := deliver.NewService(repo, governor, loadDeliveryConfig(logger))

	bot := &botWorker{
		logger:        logger,
		config:        workerConfig,
		workerMetrics: workerMetrics,
		ingest:        &ingestService,
		deliver:       &deliverService,
		crypto:        market.NewCryptoClient(),
		forex:         market.NewForexClient(),
		sender:        governor,
	}

	startMetricsServer(ctx, logger)

	healthAddr := fmt.Sprintf(":%d", workerConfig.HealthPort)
	healthServer := workerPkg.NewHealthServer(healthAddr, logger)
	go func() {
		if err := healthServer.Start(ctx); err != nil && err != http.ErrServerClosed {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()

	scheduler, err := bot.startScheduler()
	if err != nil {
		logger.Error("failed to start scheduler", slog.Any("error", err))
		os.Exit(1)
	}

	healthServer.SetReady(true)
	logger.Info("bot started",
		slog.String("news_cycle_schedule", workerConfig.NewsCycleSchedule),
		slog.String("timezone", workerConfig.Timezone))

	bot.sendStartupBanner(ctx)

	<-ctx.Done()
	logger.Info("shutdown signal received")
	healthServer.SetReady(false)

	stopCtx := scheduler.Stop()
	select {
	case <-stopCtx.Done():
		logger.Info("scheduler stopped")
	case <-time.After(30 * time.Second):
		logger.Warn("scheduler stop timed out")
	}
}

// botWorker bundles the scheduled jobs and their dependencies. A single
// gate serializes job execution so an overrunning news cycle cannot
// overlap the next one or a market report.
type botWorker struct {
	logger        *slog.Logger
	config        *workerPkg.WorkerConfig
	workerMetrics *workerPkg.WorkerMetrics
	ingest        *ingest.Service
	deliver       *deliver.Service
	crypto        market.CryptoProvider
	forex         market.ForexProvider
	sender        notifier.Messenger

	gate sync.Mutex
	loc  *time.Location

	// lastReportDay guards against sending the same report twice in one
	// day, e.g. after a scheduler restart. Keyed by job name, written
	// only while gate is held.
	lastReportDay map[string]string
}

// startScheduler registers the cron jobs and starts the scheduler.
func (b *botWorker) startScheduler() (*cron.Cron, error) {
	loc, err := time.LoadLocation(b.config.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", b.config.Timezone, err)
	}
	b.loc = loc
	b.lastReportDay = make(map[string]string)
	c := cron.New(cron.WithLocation(loc))

	if _, err := c.AddFunc(b.config.NewsCycleSchedule, b.runNewsCycle); err != nil {
		return nil, fmt.Errorf("add news cycle job: %w", err)
	}
	if _, err := c.AddFunc(b.config.MorningReportSchedule, func() {
		b.runMarketReport("morning_report")
	}); err != nil {
		return nil, fmt.Errorf("add morning report job: %w", err)
	}
	if _, err := c.AddFunc(b.config.EveningReportSchedule, func() {
		b.runMarketReport("evening_report")
	}); err != nil {
		return nil, fmt.Errorf("add evening report job: %w", err)
	}

	c.Start()
	return c, nil
}

// runNewsCycle executes one ingest pass followed by one delivery pass.
func (b *botWorker) runNewsCycle() {
	const job = "news_cycle"

	if !b.gate.TryLock() {
		b.logger.Warn("previous job still running, skipping news cycle")
		metrics.RecordJobSkipped(job)
		return
	}
	defer b.gate.Unlock()

	startTime := time.Now()
	b.logger.Info("news cycle started")

	ctx, cancel := context.WithTimeout(context.Background(), b.config.CycleTimeout)
	defer cancel()

	stats, err := b.ingest.RunCycle(ctx)
	if err != nil {
		b.logger.Error("ingest failed", slog.Any("error", err))
		metrics.RecordJobRun(job, false, time.Since(startTime))
		return
	}

	delivered, err := b.deliver.RunDeliveryCycle(ctx)
	if err != nil {
		b.logger.Error("delivery failed", slog.Any("error", err))
		metrics.RecordJobRun(job, false, time.Since(startTime))
		return
	}

	metrics.RecordJobRun(job, true, time.Since(startTime))
	b.workerMetrics.RecordLastSuccess(job)

	b.logger.Info("news cycle completed",
		slog.Int("sources", stats.Sources),
		slog.Int64("feed_items", stats.FeedItems),
		slog.Int64("inserted", stats.Inserted),
		slog.Int64("duplicated", stats.Duplicated),
		slog.Int64("translate_errors", stats.TranslateErrors),
		slog.Int("priority_sent", delivered.PrioritySent),
		slog.Int("digest_sent", delivered.DigestSent),
		slog.Int("failed", delivered.Failed),
		slog.Int("cooldown_skipped", delivered.CooldownSkipped),
		slog.Duration("duration", time.Since(startTime)),
	)
}

// runMarketReport sends the crypto snapshot followed by the forex and
// gold snapshot.
func (b *botWorker) runMarketReport(job string) {
	if !b.gate.TryLock() {
		b.logger.Warn("previous job still running, skipping market report", slog.String("job", job))
		metrics.RecordJobSkipped(job)
		return
	}
	defer b.gate.Unlock()

	day := time.Now().In(b.loc).Format("2006-01-02")
	if b.lastReportDay[job] == day {
		b.logger.Info("market report already sent today, skipping",
			slog.String("job", job), slog.String("day", day))
		metrics.RecordJobSkipped(job)
		return
	}

	startTime := time.Now()
	b.logger.Info("market report started", slog.String("job", job))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	now := time.Now()
	btc := b.crypto.Crypto(ctx, "bitcoin")
	eth := b.crypto.Crypto(ctx, "ethereum")
	sol := b.crypto.Crypto(ctx, "solana")

	if err := b.sender.Send(ctx, report.CryptoReport(now, btc, eth, sol)); err != nil {
		b.logger.Error("crypto report send failed", slog.String("job", job), slog.Any("error", err))
		metrics.RecordMessageSendError("report")
		metrics.RecordJobRun(job, false, time.Since(startTime))
		return
	}
	metrics.RecordMessageSent("report")

	fx := b.forex.EURUSD(ctx)
	gold := b.forex.Gold(ctx)

	if err := b.sender.Send(ctx, report.ForexReport(fx, gold)); err != nil {
		b.logger.Error("forex report send failed", slog.String("job", job), slog.Any("error", err))
		metrics.RecordMessageSendError("report")
		metrics.RecordJobRun(job, false, time.Since(startTime))
		return
	}
	metrics.RecordMessageSent("report")

	b.lastReportDay[job] = day
	metrics.RecordJobRun(job, true, time.Since(startTime))
	b.workerMetrics.RecordLastSuccess(job)
	b.logger.Info("market report completed",
		slog.String("job", job),
		slog.Duration("duration", time.Since(startTime)))
}

// sendStartupBanner announces the bot start. Best effort: a failure is
// logged but never blocks startup.
func (b *botWorker) sendStartupBanner(ctx context.Context) {
	sendCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := b.sender.Send(sendCtx, report.StartupBanner(time.Now())); err != nil {
		b.logger.Warn("startup banner send failed", slog.Any("error", err))
		return
	}
	metrics.RecordMessageSent("banner")
}

// newNewsRepository selects the repository adapter for the configured
// database driver.
func newNewsRepository(database *sql.DB, driver string) repository.NewsRepository {
	if driver == db.DriverPostgres {
		return pgRepo.NewNewsRepo(database)
	}
	return sqliteRepo.NewNewsRepo(database)
}

// createClassifier builds the keyword classifier, optionally from a
// YAML keyword file.
func createClassifier(logger *slog.Logger) *classifier.Classifier {
	path := os.Getenv("CLASSIFIER_KEYWORDS_FILE")
	if path == "" {
		return classifier.New()
	}

	c, err := classifier.Load(path)
	if err != nil {
		logger.Error("failed to load classifier keywords",
			slog.String("path", path), slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("classifier keywords loaded", slog.String("path", path))
	return c
}

// createTranslator creates a translator based on the TRANSLATOR_TYPE
// environment variable. Translation is optional: the default is a
// pass-through that keeps the original English text.
func createTranslator(logger *slog.Logger) translator.Translator {
	translatorType := os.Getenv("TRANSLATOR_TYPE")
	if translatorType == "" {
		translatorType = "none"
	}

	switch translatorType {
	case "none":
		logger.Info("Translation disabled, keeping original text")
		return translator.NewNoop()
	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			logger.Error("OPENAI_API_KEY is required when TRANSLATOR_TYPE=openai")
			os.Exit(1)
		}
		cfg, err := translator.LoadConfig("gpt-4o-mini")
		if err != nil {
			logger.Error("failed to load translator configuration", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("Using OpenAI API for translation",
			slog.String("language", cfg.Language),
			slog.String("model", cfg.Model))
		return translator.NewOpenAI(apiKey, cfg)
	case "claude":
		apiKey := os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			logger.Error("ANTHROPIC_API_KEY is required when TRANSLATOR_TYPE=claude")
			os.Exit(1)
		}
		cfg, err := translator.LoadConfig("claude-3-5-haiku-latest")
		if err != nil {
			logger.Error("failed to load translator configuration", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("Using Claude API for translation",
			slog.String("language", cfg.Language),
			slog.String("model", cfg.Model))
		return translator.NewClaude(apiKey, cfg)
	default:
		logger.Error("Invalid TRANSLATOR_TYPE",
			slog.String("type", translatorType),
			slog.String("expected", "none, openai or claude"))
		os.Exit(1)
		return nil
	}
}

// createTelegramClient builds the Telegram transport from the required
// bot credentials.
func createTelegramClient(logger *slog.Logger) *notifier.TelegramClient {
	botToken := os.Getenv("TELEGRAM_BOT_TOKEN")
	if botToken == "" {
		logger.Error("TELEGRAM_BOT_TOKEN is required")
		os.Exit(1)
	}
	chatID := os.Getenv("TELEGRAM_CHAT_ID")
	if chatID == "" {
		logger.Error("TELEGRAM_CHAT_ID is required")
		os.Exit(1)
	}

	timeout := pkgconfig.GetEnvDuration("TELEGRAM_TIMEOUT", 15*time.Second)
	if err := pkgconfig.ValidateDurationRange(timeout, 1*time.Second, 2*time.Minute); err != nil {
		logger.Warn("TELEGRAM_TIMEOUT out of range, using default",
			slog.String("error", err.Error()))
		timeout = 15 * time.Second
	}

	return notifier.NewTelegramClient(notifier.TelegramConfig{
		BotToken: botToken,
		ChatID:   chatID,
		Timeout:  timeout,
	})
}

// loadGovernorConfig loads the send spacing configuration.
//
// Environment variables:
//   - MIN_SEND_INTERVAL: minimum spacing between sends (default "1.8s")
//   - SEND_MAX_ATTEMPTS: attempts per message (default 3)
func loadGovernorConfig(logger *slog.Logger) notifier.GovernorConfig {
	cfg := notifier.DefaultGovernorConfig()

	interval := pkgconfig.GetEnvDuration("MIN_SEND_INTERVAL", cfg.MinInterval)
	if err := pkgconfig.ValidatePositiveDuration(interval); err != nil {
		logger.Warn("MIN_SEND_INTERVAL must be positive, using default",
			slog.String("error", err.Error()))
	} else {
		cfg.MinInterval = interval
	}

	cfg.MaxAttempts = pkgconfig.GetEnvInt("SEND_MAX_ATTEMPTS", cfg.MaxAttempts)
	return cfg
}

// loadDeliveryConfig loads the per-cycle delivery policy.
//
// Environment variables:
//   - PRIORITY_LIMIT: priority records per cycle (default 3)
//   - DIGEST_LIMIT: digest records per cycle (default 3)
//   - URGENT_COOLDOWN: spacing between urgent person alerts
//     (default "1h", "0" disables the cooldown)
func loadDeliveryConfig(logger *slog.Logger) deliver.Config {
	cfg := deliver.DefaultConfig()
	cfg.PriorityLimit = pkgconfig.GetEnvInt("PRIORITY_LIMIT", cfg.PriorityLimit)
	cfg.DigestLimit = pkgconfig.GetEnvInt("DIGEST_LIMIT", cfg.DigestLimit)

	cooldown := pkgconfig.GetEnvDuration("URGENT_COOLDOWN", cfg.UrgentCooldown)
	if err := pkgconfig.ValidateNonNegativeDuration(cooldown); err != nil {
		logger.Warn("URGENT_COOLDOWN must not be negative, using default",
			slog.String("error", err.Error()))
	} else {
		cfg.UrgentCooldown = cooldown
	}

	return cfg
}

// createHTTPClient creates the HTTP client used for feed fetching.
// TLS 1.2+ is enforced.
func createHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
	}
}
