// Package metrics provides centralized Prometheus metrics for the bot.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ingest metrics track the news classification pipeline
var (
	// NewsFetchedTotal counts feed items pulled per source
	NewsFetchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "news_fetched_total",
			Help: "Total number of feed items fetched per source",
		},
		[]string{"source"},
	)

	// NewsInsertedTotal counts records accepted by the dedup gate, by tier
	NewsInsertedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "news_inserted_total",
			Help: "Total number of news records stored",
		},
		[]string{"tier"},
	)

	// NewsDuplicatedTotal counts items rejected as duplicates
	NewsDuplicatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "news_duplicated_total",
			Help: "Total number of feed items rejected as duplicates",
		},
	)

	// TranslateErrorsTotal counts translation failures (originals kept)
	TranslateErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "translate_errors_total",
			Help: "Total number of translation failures",
		},
	)

	// TranslationDuration measures time to translate one fragment
	TranslationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "translation_duration_seconds",
			Help:    "Time taken to translate one text fragment",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		},
	)

	// FeedFetchErrors counts errors during feed fetching
	FeedFetchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_fetch_errors_total",
			Help: "Total number of feed fetch errors",
		},
		[]string{"source", "error_type"},
	)
)

// Delivery metrics track the outbound queue
var (
	// MessagesSentTotal counts delivered messages by kind (alert, digest, report)
	MessagesSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_sent_total",
			Help: "Total number of messages delivered",
		},
		[]string{"kind"},
	)

	// MessageSendErrorsTotal counts permanently failed sends by kind
	MessageSendErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "message_send_errors_total",
			Help: "Total number of permanently failed sends",
		},
		[]string{"kind"},
	)

	// UrgentCooldownSkipsTotal counts urgent-tier records held back by cooldown
	UrgentCooldownSkipsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "urgent_cooldown_skips_total",
			Help: "Total number of urgent alerts skipped by the cooldown window",
		},
	)
)

// Job metrics track scheduled runs
var (
	// JobRunsTotal counts job executions by job name and result
	JobRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "job_runs_total",
			Help: "Total number of scheduled job runs",
		},
		[]string{"job", "status"},
	)

	// JobDuration measures job run time by job name
	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "job_duration_seconds",
			Help:    "Time taken by one scheduled job run",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
		[]string{"job"},
	)

	// JobSkippedTotal counts overlapping triggers rejected by the job lock
	JobSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "job_skipped_total",
			Help: "Total number of job triggers skipped because a job was running",
		},
		[]string{"job"},
	)
)
