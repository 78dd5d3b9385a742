// Package feeds fetches crypto news headlines from RSS/Atom sources.
// It uses the gofeed library with circuit breaker and retry for reliability.
package feeds

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/sony/gobreaker"

	"marketpulse/internal/resilience/circuitbreaker"
	"marketpulse/internal/resilience/retry"
)

// Source identifies a single feed and how many of its newest entries are
// taken per cycle.
type Source struct {
	Name  string
	URL   string
	Limit int
}

// DefaultSources returns the feeds polled when none are configured.
// Crypto feeds take 5 items per cycle, the general business feeds 3.
func DefaultSources() []Source {
	return []Source{
		{Name: "cointelegraph", URL: "https://cointelegraph.com/rss", Limit: 5},
		{Name: "coindesk", URL: "https://www.coindesk.com/arc/outboundfeeds/rss/", Limit: 5},
		{Name: "cryptonews", URL: "https://cryptonews.com/news/feed/", Limit: 5},
		{Name: "reuters-business", URL: "https://feeds.reuters.com/reuters/businessNews", Limit: 3},
		{Name: "cnn-money", URL: "http://rss.cnn.com/rss/money_latest.rss", Limit: 3},
	}
}

// Item is one headline pulled from a feed.
type Item struct {
	Title       string
	Body        string
	URL         string
	PublishedAt time.Time
}

// Fetcher retrieves feed items. Implemented by RSSFetcher; the ingest
// service depends on this interface so tests can stub it.
type Fetcher interface {
	Fetch(ctx context.Context, feedURL string) ([]Item, error)
}

// RSSFetcher implements Fetcher using the gofeed library.
// It includes circuit breaker and retry logic for improved reliability.
type RSSFetcher struct {
	client         *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
}

// NewRSSFetcher creates a new RSSFetcher with the given HTTP client.
func NewRSSFetcher(client *http.Client) *RSSFetcher {
	return &RSSFetcher{
		client:         client,
		circuitBreaker: circuitbreaker.New(circuitbreaker.FeedFetchConfig()),
		retryConfig:    retry.FeedFetchConfig(),
	}
}

// Fetch retrieves and parses a feed from the given URL.
func (f *RSSFetcher) Fetch(ctx context.Context, feedURL string) ([]Item, error) {
	var items []Item

	retryErr := retry.WithBackoff(ctx, f.retryConfig, func() error {
		cbResult, err := f.circuitBreaker.Execute(func() (interface{}, error) {
			return f.doFetch(ctx, feedURL)
		})

		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				slog.Warn("feed fetch circuit breaker open, request rejected",
					slog.String("service", "feed-fetch"),
					slog.String("url", feedURL),
					slog.String("state", f.circuitBreaker.State().String()))
			}
			return err
		}

		items = cbResult.([]Item)
		return nil
	})

	if retryErr != nil {
		return nil, retryErr
	}

	return items, nil
}

// doFetch performs the actual feed fetch without retry or circuit breaker.
func (f *RSSFetcher) doFetch(ctx context.Context, feedURL string) ([]Item, error) {
	fp := gofeed.NewParser()
	fp.UserAgent = "MarketPulseBot"
	fp.Client = f.client

	feed, err := fp.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(feed.Items))
	for _, it := range feed.Items {
		pubAt := time.Now()
		if it.PublishedParsed != nil {
			pubAt = *it.PublishedParsed
		}

		// Content優先、なければDescriptionを使用
		body := it.Content
		if body == "" {
			body = it.Description
		}

		items = append(items, Item{
			Title:       it.Title,
			Body:        body,
			URL:         it.Link,
			PublishedAt: pubAt,
		})
	}

	return items, nil
}
