package ingest_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketpulse/internal/domain/entity"
	"marketpulse/internal/infra/feeds"
	"marketpulse/internal/usecase/ingest"
)

// fakeRepo stores records in memory and enforces fingerprint uniqueness.
type fakeRepo struct {
	mu        sync.Mutex
	records   []*entity.NewsRecord
	insertErr error
}

func (r *fakeRepo) Insert(_ context.Context, record *entity.NewsRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return r.insertErr
	}
	for _, existing := range r.records {
		if existing.Fingerprint == record.Fingerprint {
			return fmt.Errorf("Insert: %w", entity.ErrDuplicate)
		}
	}
	record.ID = int64(len(r.records) + 1)
	r.records = append(r.records, record)
	return nil
}

func (r *fakeRepo) SelectUnsent(context.Context, []entity.ImportanceTier, int) ([]*entity.NewsRecord, error) {
	return nil, nil
}

func (r *fakeRepo) MarkSent(context.Context, int64) error { return nil }

func (r *fakeRepo) LastSentAt(context.Context, entity.ImportanceTier) (time.Time, error) {
	return time.Time{}, nil
}

func (r *fakeRepo) ExistsByFingerprintBatch(_ context.Context, fingerprints []string) (map[string]bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make(map[string]bool)
	for _, fp := range fingerprints {
		for _, existing := range r.records {
			if existing.Fingerprint == fp {
				result[fp] = true
			}
		}
	}
	return result, nil
}

func (r *fakeRepo) byTitle(title string) *entity.NewsRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, record := range r.records {
		if record.Title == title {
			return record
		}
	}
	return nil
}

// fakeFetcher serves canned items per feed URL.
type fakeFetcher struct {
	items map[string][]feeds.Item
	errs  map[string]error
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) ([]feeds.Item, error) {
	if err := f.errs[url]; err != nil {
		return nil, err
	}
	return f.items[url], nil
}

// keywordClassifier marks anything containing "fed" as a macro alert.
type keywordClassifier struct{}

func (keywordClassifier) Classify(title, _ string) entity.ImportanceTier {
	if title == "Fed cuts rates" {
		return entity.TierMacro
	}
	return entity.TierMedium
}

// upperTranslator pseudo-translates by prefixing, or fails when broken.
type upperTranslator struct{ broken bool }

func (u *upperTranslator) Translate(_ context.Context, text string) (string, error) {
	if u.broken {
		return "", errors.New("provider down")
	}
	return "fr:" + text, nil
}

func singleSource(url string) []feeds.Source {
	return []feeds.Source{{Name: "test-feed", URL: url, Limit: 10}}
}

func TestService_RunCycle_StoresClassifiedTranslatedItems(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	fetcher := &fakeFetcher{items: map[string][]feeds.Item{
		"http://feed": {
			{Title: "Fed cuts rates", Body: "macro body", URL: "http://a"},
			{Title: "Minor update", Body: "minor body", URL: "http://b"},
		},
	}}

	svc := ingest.NewService(repo, fetcher, keywordClassifier{}, &upperTranslator{}, singleSource("http://feed"))
	stats, err := svc.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(2), stats.FeedItems)
	assert.Equal(t, int64(2), stats.Inserted)
	assert.Equal(t, int64(0), stats.Duplicated)

	macro := repo.byTitle("Fed cuts rates")
	require.NotNil(t, macro)
	assert.Equal(t, entity.TierMacro, macro.Importance)
	assert.Equal(t, "fr:Fed cuts rates", macro.TitleTranslated)
	assert.Equal(t, "fr:macro body", macro.BodyTranslated)
	assert.Equal(t, entity.Fingerprint("Fed cuts rates", "http://a"), macro.Fingerprint)
	assert.False(t, macro.Sent)
}

func TestService_RunCycle_SkipsKnownFingerprints(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	item := feeds.Item{Title: "Seen before", Body: "b", URL: "http://seen"}
	require.NoError(t, repo.Insert(context.Background(), &entity.NewsRecord{
		Fingerprint: entity.Fingerprint(item.Title, item.URL),
		Title:       item.Title,
		Importance:  entity.TierMedium,
	}))

	fetcher := &fakeFetcher{items: map[string][]feeds.Item{
		"http://feed": {item},
	}}

	svc := ingest.NewService(repo, fetcher, keywordClassifier{}, &upperTranslator{}, singleSource("http://feed"))
	stats, err := svc.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1), stats.Duplicated)
	assert.Equal(t, int64(0), stats.Inserted)
}

func TestService_RunCycle_SameTitleDifferentURLBothStored(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	fetcher := &fakeFetcher{items: map[string][]feeds.Item{
		"http://feed": {
			{Title: "Same headline", Body: "b", URL: "http://one"},
			{Title: "Same headline", Body: "b", URL: "http://two"},
		},
	}}

	svc := ingest.NewService(repo, fetcher, keywordClassifier{}, &upperTranslator{}, singleSource("http://feed"))
	stats, err := svc.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(2), stats.Inserted)
}

func TestService_RunCycle_FetchFailureSkipsSource(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	fetcher := &fakeFetcher{
		items: map[string][]feeds.Item{
			"http://good": {{Title: "ok", Body: "b", URL: "http://x"}},
		},
		errs: map[string]error{"http://bad": errors.New("connection refused")},
	}

	svc := ingest.NewService(repo, fetcher, keywordClassifier{}, &upperTranslator{}, []feeds.Source{
		{Name: "bad", URL: "http://bad", Limit: 5},
		{Name: "good", URL: "http://good", Limit: 5},
	})
	stats, err := svc.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1), stats.Inserted)
}

func TestService_RunCycle_TranslationFailureKeepsOriginal(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	fetcher := &fakeFetcher{items: map[string][]feeds.Item{
		"http://feed": {{Title: "Untranslatable", Body: "raw body", URL: "http://u"}},
	}}

	svc := ingest.NewService(repo, fetcher, keywordClassifier{}, &upperTranslator{broken: true}, singleSource("http://feed"))
	stats, err := svc.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1), stats.Inserted)
	assert.GreaterOrEqual(t, stats.TranslateErrors, int64(1))

	record := repo.byTitle("Untranslatable")
	require.NotNil(t, record)
	assert.Equal(t, "Untranslatable", record.TitleTranslated)
	assert.Equal(t, "raw body", record.BodyTranslated)
}

func TestService_RunCycle_AppliesSourceLimit(t *testing.T) {
	t.Parallel()

	var items []feeds.Item
	for i := 0; i < 10; i++ {
		items = append(items, feeds.Item{
			Title: fmt.Sprintf("headline %d", i),
			URL:   fmt.Sprintf("http://item/%d", i),
		})
	}

	repo := &fakeRepo{}
	fetcher := &fakeFetcher{items: map[string][]feeds.Item{"http://feed": items}}

	svc := ingest.NewService(repo, fetcher, keywordClassifier{}, &upperTranslator{}, []feeds.Source{
		{Name: "capped", URL: "http://feed", Limit: 3},
	})
	stats, err := svc.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(3), stats.FeedItems)
	assert.Equal(t, int64(3), stats.Inserted)
}

func TestService_RunCycle_StoreErrorAborts(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{insertErr: entity.ErrStorageUnavailable}
	fetcher := &fakeFetcher{items: map[string][]feeds.Item{
		"http://feed": {{Title: "t", Body: "b", URL: "http://x"}},
	}}

	svc := ingest.NewService(repo, fetcher, keywordClassifier{}, &upperTranslator{}, singleSource("http://feed"))
	_, err := svc.RunCycle(context.Background())
	assert.ErrorIs(t, err, entity.ErrStorageUnavailable)
}
