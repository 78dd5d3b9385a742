// Package postgres provides the PostgreSQL implementation of the news
// repository. Semantics mirror the SQLite adapter: duplicates map to
// ErrDuplicate and serialization conflicts are retried with backoff.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"marketpulse/internal/domain/entity"
	"marketpulse/internal/repository"
	"marketpulse/internal/resilience/retry"
)

// NewsRepo implements the NewsRepository interface using PostgreSQL.
type NewsRepo struct {
	db       *sql.DB
	retryCfg retry.Config
}

// NewNewsRepo creates a new PostgreSQL-backed news repository.
func NewNewsRepo(db *sql.DB) repository.NewsRepository {
	return &NewsRepo{db: db, retryCfg: retry.DBConfig()}
}

// NewNewsRepoWithRetry creates a repository with a custom contention retry
// policy.
func NewNewsRepoWithRetry(db *sql.DB, cfg retry.Config) repository.NewsRepository {
	return &NewsRepo{db: db, retryCfg: cfg}
}

func isDuplicate(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// isContention matches serialization failures, deadlocks and lock timeouts.
func isContention(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "40001", "40P01", "55P03":
		return true
	}
	return false
}

func (repo *NewsRepo) withRetry(ctx context.Context, op string, fn func() error) error {
	err := retry.WithBackoffIf(ctx, repo.retryCfg, isContention, fn)
	if err != nil && isContention(err) {
		return fmt.Errorf("%s: %w: %v", op, entity.ErrStorageUnavailable, err)
	}
	return err
}

func (repo *NewsRepo) Insert(ctx context.Context, record *entity.NewsRecord) error {
	const query = `
INSERT INTO news
(fingerprint, title, body, title_translated, body_translated, importance, source_url, sent, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, $8)
RETURNING id
`
	return repo.withRetry(ctx, "Insert", func() error {
		err := repo.db.QueryRowContext(ctx, query,
			record.Fingerprint, record.Title, record.Body,
			record.TitleTranslated, record.BodyTranslated,
			string(record.Importance), record.SourceURL, record.CreatedAt,
		).Scan(&record.ID)
		if err != nil {
			if isDuplicate(err) {
				return fmt.Errorf("Insert: %w", entity.ErrDuplicate)
			}
			return fmt.Errorf("Insert: QueryRowContext: %w", err)
		}
		return nil
	})
}

func tierRankCase() string {
	var b strings.Builder
	b.WriteString("CASE importance")
	for _, tier := range entity.Tiers {
		fmt.Fprintf(&b, " WHEN '%s' THEN %d", tier, tier.Rank())
	}
	fmt.Fprintf(&b, " ELSE %d END", len(entity.Tiers))
	return b.String()
}

func (repo *NewsRepo) SelectUnsent(ctx context.Context, tiers []entity.ImportanceTier, limit int) ([]*entity.NewsRecord, error) {
	if len(tiers) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(tiers))
	args := make([]interface{}, 0, len(tiers)+1)
	for i, tier := range tiers {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args = append(args, string(tier))
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
SELECT id, fingerprint, title, body, title_translated, body_translated, importance, source_url, sent, sent_at, created_at
FROM news
WHERE sent = FALSE AND importance IN (%s)
ORDER BY %s, created_at DESC, id DESC
LIMIT $%d
`, strings.Join(placeholders, ","), tierRankCase(), len(tiers)+1)

	var records []*entity.NewsRecord
	err := repo.withRetry(ctx, "SelectUnsent", func() error {
		rows, err := repo.db.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("SelectUnsent: QueryContext: %w", err)
		}
		defer func() { _ = rows.Close() }()

		records = make([]*entity.NewsRecord, 0, limit)
		for rows.Next() {
			var record entity.NewsRecord
			var importance string
			var sentAt sql.NullTime
			err := rows.Scan(&record.ID,
				&record.Fingerprint, &record.Title, &record.Body,
				&record.TitleTranslated, &record.BodyTranslated,
				&importance, &record.SourceURL,
				&record.Sent, &sentAt, &record.CreatedAt)
			if err != nil {
				return fmt.Errorf("SelectUnsent: Scan: %w", err)
			}
			record.Importance = entity.ImportanceTier(importance)
			if sentAt.Valid {
				record.SentAt = sentAt.Time
			}
			records = append(records, &record)
		}

		if err := rows.Err(); err != nil {
			return fmt.Errorf("SelectUnsent: rows.Err: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (repo *NewsRepo) MarkSent(ctx context.Context, id int64) error {
	const query = `UPDATE news SET sent = TRUE, sent_at = $1 WHERE id = $2 AND sent = FALSE`

	return repo.withRetry(ctx, "MarkSent", func() error {
		res, err := repo.db.ExecContext(ctx, query, time.Now().UTC(), id)
		if err != nil {
			return fmt.Errorf("MarkSent: ExecContext: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("MarkSent: RowsAffected: %w", err)
		}
		if n > 0 {
			return nil
		}

		var sent bool
		err = repo.db.QueryRowContext(ctx, `SELECT sent FROM news WHERE id = $1 LIMIT 1`, id).Scan(&sent)
		if err == sql.ErrNoRows {
			return fmt.Errorf("MarkSent: id %d: %w", id, entity.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("MarkSent: QueryRowContext: %w", err)
		}
		return nil
	})
}

func (repo *NewsRepo) LastSentAt(ctx context.Context, tier entity.ImportanceTier) (time.Time, error) {
	const query = `
SELECT sent_at FROM news
WHERE importance = $1 AND sent = TRUE AND sent_at IS NOT NULL
ORDER BY sent_at DESC
LIMIT 1
`
	var last time.Time
	err := repo.withRetry(ctx, "LastSentAt", func() error {
		var sentAt sql.NullTime
		err := repo.db.QueryRowContext(ctx, query, string(tier)).Scan(&sentAt)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return fmt.Errorf("LastSentAt: QueryRowContext: %w", err)
		}
		if sentAt.Valid {
			last = sentAt.Time
		}
		return nil
	})
	if err != nil {
		return time.Time{}, err
	}
	return last, nil
}

func (repo *NewsRepo) ExistsByFingerprintBatch(ctx context.Context, fingerprints []string) (map[string]bool, error) {
	if len(fingerprints) == 0 {
		return make(map[string]bool), nil
	}

	// ANY($1)でプレースホルダ数の制限を回避する
	const query = `SELECT fingerprint FROM news WHERE fingerprint = ANY($1)`

	var result map[string]bool
	err := repo.withRetry(ctx, "ExistsByFingerprintBatch", func() error {
		rows, err := repo.db.QueryContext(ctx, query, fingerprints)
		if err != nil {
			return fmt.Errorf("ExistsByFingerprintBatch: QueryContext: %w", err)
		}
		defer func() { _ = rows.Close() }()

		result = make(map[string]bool)
		for rows.Next() {
			var fp string
			if err := rows.Scan(&fp); err != nil {
				return fmt.Errorf("ExistsByFingerprintBatch: Scan: %w", err)
			}
			result[fp] = true
		}

		if err := rows.Err(); err != nil {
			return fmt.Errorf("ExistsByFingerprintBatch: rows.Err: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
