package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordNewsFetched(t *testing.T) {
	before := testutil.ToFloat64(NewsFetchedTotal.WithLabelValues("test-source"))
	RecordNewsFetched("test-source", 7)
	after := testutil.ToFloat64(NewsFetchedTotal.WithLabelValues("test-source"))
	assert.InDelta(t, 7, after-before, 0.001)
}

func TestRecordNewsInserted(t *testing.T) {
	before := testutil.ToFloat64(NewsInsertedTotal.WithLabelValues("HIGH"))
	RecordNewsInserted("HIGH")
	after := testutil.ToFloat64(NewsInsertedTotal.WithLabelValues("HIGH"))
	assert.InDelta(t, 1, after-before, 0.001)
}

func TestRecordJobRun(t *testing.T) {
	beforeOK := testutil.ToFloat64(JobRunsTotal.WithLabelValues("news_cycle", "success"))
	beforeFail := testutil.ToFloat64(JobRunsTotal.WithLabelValues("news_cycle", "failure"))

	RecordJobRun("news_cycle", true, 100*time.Millisecond)
	RecordJobRun("news_cycle", false, 50*time.Millisecond)

	assert.InDelta(t, 1, testutil.ToFloat64(JobRunsTotal.WithLabelValues("news_cycle", "success"))-beforeOK, 0.001)
	assert.InDelta(t, 1, testutil.ToFloat64(JobRunsTotal.WithLabelValues("news_cycle", "failure"))-beforeFail, 0.001)
}

func TestRecorders_DoNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordNewsDuplicated()
		RecordTranslateError()
		RecordTranslationDuration(2 * time.Second)
		RecordFeedFetchError("cointelegraph", "fetch_failed")
		RecordMessageSent("alert")
		RecordMessageSendError("digest")
		RecordUrgentCooldownSkip()
		RecordJobSkipped("daily_report")
	})
}
