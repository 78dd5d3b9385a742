package sqlite_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"
	sqlite3 "github.com/mattn/go-sqlite3"

	"marketpulse/internal/domain/entity"
	"marketpulse/internal/infra/adapter/persistence/sqlite"
	"marketpulse/internal/resilience/retry"
)

/* ────────────────────────────  ヘルパ  ──────────────────────────── */

func fastRetry() retry.Config {
	return retry.Config{
		MaxAttempts:    3,
		InitialDelay:   time.Millisecond,
		MaxDelay:       5 * time.Millisecond,
		Multiplier:     2.0,
		JitterFraction: 0,
	}
}

func newsRows(records ...*entity.NewsRecord) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "fingerprint", "title", "body",
		"title_translated", "body_translated",
		"importance", "source_url", "sent", "sent_at", "created_at",
	})
	for _, r := range records {
		var sentAt interface{}
		if !r.SentAt.IsZero() {
			sentAt = r.SentAt
		}
		rows.AddRow(r.ID, r.Fingerprint, r.Title, r.Body,
			r.TitleTranslated, r.BodyTranslated,
			string(r.Importance), r.SourceURL, r.Sent, sentAt, r.CreatedAt)
	}
	return rows
}

func uniqueViolation() error {
	return sqlite3.Error{
		Code:         sqlite3.ErrConstraint,
		ExtendedCode: sqlite3.ErrConstraintUnique,
	}
}

func busyErr() error {
	return sqlite3.Error{Code: sqlite3.ErrBusy}
}

/* ──────────────────────────── 1. Insert ──────────────────────────── */

func TestNewsRepo_Insert(t *testing.T) {
	t.Parallel()

	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	record := &entity.NewsRecord{
		Fingerprint: "abc123",
		Title:       "Bitcoin ETF approved",
		Body:        "body",
		Importance:  entity.TierInstitution,
		SourceURL:   "https://example.com/etf",
		CreatedAt:   now,
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO news")).
		WithArgs("abc123", "Bitcoin ETF approved", "body", "", "",
			"INSTITUTION_ALERT", "https://example.com/etf", now).
		WillReturnResult(sqlmock.NewResult(7, 1))

	repo := sqlite.NewNewsRepo(db)
	if err := repo.Insert(context.Background(), record); err != nil {
		t.Fatalf("Insert err=%v", err)
	}
	if record.ID != 7 {
		t.Fatalf("Insert ID=%d, want 7", record.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestNewsRepo_Insert_Duplicate(t *testing.T) {
	t.Parallel()

	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO news")).
		WillReturnError(uniqueViolation())

	repo := sqlite.NewNewsRepo(db)
	err := repo.Insert(context.Background(), &entity.NewsRecord{
		Fingerprint: "dup", Title: "t", Importance: entity.TierMedium,
		CreatedAt: time.Now(),
	})
	if !errors.Is(err, entity.ErrDuplicate) {
		t.Fatalf("Insert err=%v, want ErrDuplicate", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestNewsRepo_Insert_RetriesBusy(t *testing.T) {
	t.Parallel()

	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO news")).
		WillReturnError(busyErr())
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO news")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	repo := sqlite.NewNewsRepoWithRetry(db, fastRetry())
	err := repo.Insert(context.Background(), &entity.NewsRecord{
		Fingerprint: "fp", Title: "t", Importance: entity.TierHigh,
		CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("Insert err=%v, want nil after retry", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestNewsRepo_Insert_BusyExhausted(t *testing.T) {
	t.Parallel()

	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	for i := 0; i < 3; i++ {
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO news")).
			WillReturnError(busyErr())
	}

	repo := sqlite.NewNewsRepoWithRetry(db, fastRetry())
	err := repo.Insert(context.Background(), &entity.NewsRecord{
		Fingerprint: "fp", Title: "t", Importance: entity.TierHigh,
		CreatedAt: time.Now(),
	})
	if !errors.Is(err, entity.ErrStorageUnavailable) {
		t.Fatalf("Insert err=%v, want ErrStorageUnavailable", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

/* ──────────────────────────── 2. SelectUnsent ──────────────────────────── */

func TestNewsRepo_SelectUnsent(t *testing.T) {
	t.Parallel()

	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	now := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	want := []*entity.NewsRecord{
		{ID: 3, Fingerprint: "a", Title: "urgent", Importance: entity.TierUrgentPerson, CreatedAt: now},
		{ID: 1, Fingerprint: "b", Title: "macro", Importance: entity.TierMacro, CreatedAt: now.Add(-time.Hour)},
	}

	mock.ExpectQuery("SELECT.*FROM news").
		WithArgs("URGENT_PERSON_ALERT", "INSTITUTION_ALERT", "MACRO_ALERT", 3).
		WillReturnRows(newsRows(want...))

	repo := sqlite.NewNewsRepo(db)
	got, err := repo.SelectUnsent(context.Background(), entity.PriorityTiers, 3)
	if err != nil {
		t.Fatalf("SelectUnsent err=%v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("SelectUnsent mismatch (-want +got):\n%s", diff)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestNewsRepo_SelectUnsent_NoTiers(t *testing.T) {
	t.Parallel()

	db, _, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	repo := sqlite.NewNewsRepo(db)
	got, err := repo.SelectUnsent(context.Background(), nil, 3)
	if err != nil || got != nil {
		t.Fatalf("SelectUnsent got=%v err=%v, want nil, nil", got, err)
	}
}

/* ──────────────────────────── 3. MarkSent ──────────────────────────── */

func TestNewsRepo_MarkSent(t *testing.T) {
	t.Parallel()

	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE news SET sent = 1")).
		WithArgs(sqlmock.AnyArg(), int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := sqlite.NewNewsRepo(db)
	if err := repo.MarkSent(context.Background(), 5); err != nil {
		t.Fatalf("MarkSent err=%v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestNewsRepo_MarkSent_AlreadySent(t *testing.T) {
	t.Parallel()

	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE news SET sent = 1")).
		WithArgs(sqlmock.AnyArg(), int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT sent FROM news")).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"sent"}).AddRow(true))

	repo := sqlite.NewNewsRepo(db)
	if err := repo.MarkSent(context.Background(), 5); err != nil {
		t.Fatalf("MarkSent err=%v, want nil for already-sent", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestNewsRepo_MarkSent_NotFound(t *testing.T) {
	t.Parallel()

	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE news SET sent = 1")).
		WithArgs(sqlmock.AnyArg(), int64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT sent FROM news")).
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"sent"}))

	repo := sqlite.NewNewsRepo(db)
	err := repo.MarkSent(context.Background(), 99)
	if !errors.Is(err, entity.ErrNotFound) {
		t.Fatalf("MarkSent err=%v, want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

/* ──────────────────────────── 4. LastSentAt ──────────────────────────── */

func TestNewsRepo_LastSentAt(t *testing.T) {
	t.Parallel()

	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	last := time.Date(2026, 8, 1, 10, 30, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT sent_at FROM news")).
		WithArgs("URGENT_PERSON_ALERT").
		WillReturnRows(sqlmock.NewRows([]string{"sent_at"}).AddRow(last))

	repo := sqlite.NewNewsRepo(db)
	got, err := repo.LastSentAt(context.Background(), entity.TierUrgentPerson)
	if err != nil {
		t.Fatalf("LastSentAt err=%v", err)
	}
	if !got.Equal(last) {
		t.Fatalf("LastSentAt=%v, want %v", got, last)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestNewsRepo_LastSentAt_NeverSent(t *testing.T) {
	t.Parallel()

	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT sent_at FROM news")).
		WithArgs("MACRO_ALERT").
		WillReturnRows(sqlmock.NewRows([]string{"sent_at"}))

	repo := sqlite.NewNewsRepo(db)
	got, err := repo.LastSentAt(context.Background(), entity.TierMacro)
	if err != nil {
		t.Fatalf("LastSentAt err=%v", err)
	}
	if !got.IsZero() {
		t.Fatalf("LastSentAt=%v, want zero time", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

/* ──────────────────────────── 5. ExistsByFingerprintBatch ──────────────────────────── */

func TestNewsRepo_ExistsByFingerprintBatch(t *testing.T) {
	t.Parallel()

	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT fingerprint FROM news")).
		WithArgs("aa", "bb").
		WillReturnRows(sqlmock.NewRows([]string{"fingerprint"}).AddRow("aa"))

	repo := sqlite.NewNewsRepo(db)
	got, err := repo.ExistsByFingerprintBatch(context.Background(), []string{"aa", "bb"})
	if err != nil {
		t.Fatalf("ExistsByFingerprintBatch err=%v", err)
	}
	if !got["aa"] || got["bb"] {
		t.Fatalf("ExistsByFingerprintBatch=%v, want aa only", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestNewsRepo_ExistsByFingerprintBatch_Empty(t *testing.T) {
	t.Parallel()

	db, _, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	repo := sqlite.NewNewsRepo(db)
	got, err := repo.ExistsByFingerprintBatch(context.Background(), nil)
	if err != nil || len(got) != 0 {
		t.Fatalf("ExistsByFingerprintBatch got=%v err=%v", got, err)
	}
}
