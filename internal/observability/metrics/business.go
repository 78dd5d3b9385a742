package metrics

import (
	"time"
)

// RecordNewsFetched records the number of feed items pulled from a source.
func RecordNewsFetched(source string, count int) {
	NewsFetchedTotal.WithLabelValues(source).Add(float64(count))
}

// RecordNewsInserted records one stored record in the given tier.
func RecordNewsInserted(tier string) {
	NewsInsertedTotal.WithLabelValues(tier).Inc()
}

// RecordNewsDuplicated records one item rejected by the dedup gate.
func RecordNewsDuplicated() {
	NewsDuplicatedTotal.Inc()
}

// RecordTranslateError records a translation failure.
func RecordTranslateError() {
	TranslateErrorsTotal.Inc()
}

// RecordTranslationDuration records the time taken for one translation call.
func RecordTranslationDuration(duration time.Duration) {
	TranslationDuration.Observe(duration.Seconds())
}

// RecordFeedFetchError records a feed fetch failure.
func RecordFeedFetchError(source, errorType string) {
	FeedFetchErrors.WithLabelValues(source, errorType).Inc()
}

// RecordMessageSent records one delivered message of the given kind.
func RecordMessageSent(kind string) {
	MessagesSentTotal.WithLabelValues(kind).Inc()
}

// RecordMessageSendError records a permanently failed send of the given kind.
func RecordMessageSendError(kind string) {
	MessageSendErrorsTotal.WithLabelValues(kind).Inc()
}

// RecordUrgentCooldownSkip records an urgent alert held back by the cooldown.
func RecordUrgentCooldownSkip() {
	UrgentCooldownSkipsTotal.Inc()
}

// RecordJobRun records a completed job run with its duration.
func RecordJobRun(job string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "failure"
	}
	JobRunsTotal.WithLabelValues(job, status).Inc()
	JobDuration.WithLabelValues(job).Observe(duration.Seconds())
}

// RecordJobSkipped records an overlapping trigger rejected by the job lock.
func RecordJobSkipped(job string) {
	JobSkippedTotal.WithLabelValues(job).Inc()
}
