// Package ingest implements the news cycle's intake half: fetch feed items,
// reject duplicates through the store's fingerprint gate, classify, translate
// and persist. Delivery is a separate use case so a crashed translation run
// never loses accepted records.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"marketpulse/internal/domain/entity"
	"marketpulse/internal/infra/feeds"
	"marketpulse/internal/infra/translator"
	"marketpulse/internal/observability/metrics"
	"marketpulse/internal/repository"
)

const (
	// translatorParallelism caps concurrent AI translation calls
	translatorParallelism = 5

	// bodyTranslateLimit is how much of the body is sent for translation
	bodyTranslateLimit = 300
)

// Classifier assigns an importance tier from title and body keywords.
type Classifier interface {
	Classify(title, body string) entity.ImportanceTier
}

// Service runs the intake pipeline over the configured sources.
type Service struct {
	Repo       repository.NewsRepository
	Fetcher    feeds.Fetcher
	Classifier Classifier
	Translator translator.Translator
	Sources    []feeds.Source
}

// NewService creates an ingest Service.
func NewService(
	repo repository.NewsRepository,
	fetcher feeds.Fetcher,
	classifier Classifier,
	trans translator.Translator,
	sources []feeds.Source,
) Service {
	return Service{
		Repo:       repo,
		Fetcher:    fetcher,
		Classifier: classifier,
		Translator: trans,
		Sources:    sources,
	}
}

// Stats contains statistics about one intake run.
type Stats struct {
	Sources         int
	FeedItems       int64
	Inserted        int64
	Duplicated      int64
	TranslateErrors int64
	Duration        time.Duration
}

// RunCycle fetches every source and stores the items that pass the dedup
// gate. A failing source is logged and skipped; a failing store aborts.
func (s *Service) RunCycle(ctx context.Context) (*Stats, error) {
	logger := slog.Default()
	start := time.Now()
	stats := &Stats{Sources: len(s.Sources)}

	for _, src := range s.Sources {
		if err := s.processSource(ctx, src, stats); err != nil {
			return stats, err
		}
	}

	stats.Duration = time.Since(start)
	logger.Info("news intake completed",
		slog.Int("sources", stats.Sources),
		slog.Int64("feed_items", stats.FeedItems),
		slog.Int64("inserted", stats.Inserted),
		slog.Int64("duplicated", stats.Duplicated),
		slog.Int64("translate_errors", stats.TranslateErrors),
		slog.Duration("duration", stats.Duration),
	)

	return stats, nil
}

// processSource fetches one feed and stores its new items. Fetch and batch
// check failures are logged and skipped so one dead feed cannot starve the
// rest of the cycle.
func (s *Service) processSource(ctx context.Context, src feeds.Source, stats *Stats) error {
	logger := slog.Default()

	items, err := s.Fetcher.Fetch(ctx, src.URL)
	if err != nil {
		logger.Warn("failed to fetch feed",
			slog.String("source", src.Name),
			slog.String("feed_url", src.URL),
			slog.Any("error", err))
		metrics.RecordFeedFetchError(src.Name, "fetch_failed")
		return nil
	}

	if len(items) == 0 {
		logger.Info("feed is empty",
			slog.String("source", src.Name),
			slog.String("feed_url", src.URL))
		return nil
	}

	if src.Limit > 0 && len(items) > src.Limit {
		items = items[:src.Limit]
	}
	metrics.RecordNewsFetched(src.Name, len(items))

	// N+1問題解消: 事前に全指紋をバッチで存在チェック
	fingerprints := make([]string, 0, len(items))
	for _, item := range items {
		fingerprints = append(fingerprints, entity.Fingerprint(item.Title, item.URL))
	}
	existsMap, err := s.Repo.ExistsByFingerprintBatch(ctx, fingerprints)
	if err != nil {
		logger.Warn("failed to batch check fingerprints",
			slog.String("source", src.Name),
			slog.Any("error", err))
		metrics.RecordFeedFetchError(src.Name, "batch_check_failed")
		return nil
	}

	return s.processItems(ctx, src, items, fingerprints, existsMap, stats)
}

// processItems classifies, translates and stores feed items in parallel.
// Translation failures fall back to the original text; the dedup gate is
// still authoritative for items the batch check missed.
func (s *Service) processItems(
	ctx context.Context,
	src feeds.Source,
	items []feeds.Item,
	fingerprints []string,
	existsMap map[string]bool,
	stats *Stats,
) error {
	translateSem := make(chan struct{}, translatorParallelism)
	eg, egCtx := errgroup.WithContext(ctx)

	for i, feedItem := range items {
		item := feedItem
		fingerprint := fingerprints[i]

		atomic.AddInt64(&stats.FeedItems, 1)

		if existsMap[fingerprint] {
			atomic.AddInt64(&stats.Duplicated, 1)
			metrics.RecordNewsDuplicated()
			continue
		}

		eg.Go(func() error {
			tier := s.Classifier.Classify(item.Title, item.Body)

			translateSem <- struct{}{}
			titleTr := s.translate(egCtx, item.Title, stats)
			bodyTr := s.translate(egCtx, truncateRunes(item.Body, bodyTranslateLimit), stats)
			<-translateSem

			if err := egCtx.Err(); err != nil {
				return err
			}

			record := &entity.NewsRecord{
				Fingerprint:     fingerprint,
				Title:           item.Title,
				Body:            item.Body,
				TitleTranslated: titleTr,
				BodyTranslated:  bodyTr,
				Importance:      tier,
				SourceURL:       item.URL,
				CreatedAt:       time.Now().UTC(),
			}
			if err := s.Repo.Insert(egCtx, record); err != nil {
				// 同じサイクル内の競合はゲートが弾く
				if errors.Is(err, entity.ErrDuplicate) {
					atomic.AddInt64(&stats.Duplicated, 1)
					metrics.RecordNewsDuplicated()
					return nil
				}
				return fmt.Errorf("insert news record: %w", err)
			}
			atomic.AddInt64(&stats.Inserted, 1)
			metrics.RecordNewsInserted(string(tier))
			return nil
		})
	}

	return eg.Wait()
}

// translate runs one fragment through the translator, falling back to the
// original text on error so intake never blocks on the AI provider.
func (s *Service) translate(ctx context.Context, text string, stats *Stats) string {
	if text == "" {
		return ""
	}

	start := time.Now()
	translated, err := s.Translator.Translate(ctx, text)
	metrics.RecordTranslationDuration(time.Since(start))

	if err != nil {
		atomic.AddInt64(&stats.TranslateErrors, 1)
		metrics.RecordTranslateError()
		slog.Warn("translation failed, keeping original text",
			slog.Any("error", err))
		return text
	}
	return translated
}

func truncateRunes(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
