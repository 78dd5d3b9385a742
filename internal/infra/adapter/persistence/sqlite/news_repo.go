// Package sqlite provides the SQLite implementation of the news repository.
// Duplicate fingerprints are detected through the UNIQUE constraint and lock
// contention is retried with backoff before being reported as unavailable.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"marketpulse/internal/domain/entity"
	"marketpulse/internal/repository"
	"marketpulse/internal/resilience/retry"
)

// NewsRepo implements the NewsRepository interface using SQLite.
type NewsRepo struct {
	db       *sql.DB
	retryCfg retry.Config
}

// NewNewsRepo creates a new SQLite-backed news repository.
func NewNewsRepo(db *sql.DB) repository.NewsRepository {
	return &NewsRepo{db: db, retryCfg: retry.DBConfig()}
}

// NewNewsRepoWithRetry creates a repository with a custom contention retry
// policy.
func NewNewsRepoWithRetry(db *sql.DB, cfg retry.Config) repository.NewsRepository {
	return &NewsRepo{db: db, retryCfg: cfg}
}

// isDuplicate reports whether err is a UNIQUE constraint violation.
func isDuplicate(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.Code == sqlite3.ErrConstraint &&
		(sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey)
}

// isContention reports whether err is a transient lock conflict worth retrying.
func isContention(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
}

// withRetry runs fn, retrying lock contention with backoff. When every
// attempt fails on contention the caller sees ErrStorageUnavailable.
func (repo *NewsRepo) withRetry(ctx context.Context, op string, fn func() error) error {
	err := retry.WithBackoffIf(ctx, repo.retryCfg, isContention, fn)
	if err != nil && isContention(err) {
		return fmt.Errorf("%s: %w: %v", op, entity.ErrStorageUnavailable, err)
	}
	return err
}

// Insert stores a new record. ErrDuplicate is returned when the fingerprint
// already exists; the record's ID is filled in on success.
func (repo *NewsRepo) Insert(ctx context.Context, record *entity.NewsRecord) error {
	const query = `
INSERT INTO news
(fingerprint, title, body, title_translated, body_translated, importance, source_url, sent, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?)
`
	return repo.withRetry(ctx, "Insert", func() error {
		res, err := repo.db.ExecContext(ctx, query,
			record.Fingerprint, record.Title, record.Body,
			record.TitleTranslated, record.BodyTranslated,
			string(record.Importance), record.SourceURL, record.CreatedAt,
		)
		if err != nil {
			if isDuplicate(err) {
				return fmt.Errorf("Insert: %w", entity.ErrDuplicate)
			}
			return fmt.Errorf("Insert: ExecContext: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("Insert: LastInsertId: %w", err)
		}
		record.ID = id
		return nil
	})
}

// tierRankCase builds the CASE expression ordering rows by importance rank.
// Tier names come from the entity constants only, never from user input.
func tierRankCase() string {
	var b strings.Builder
	b.WriteString("CASE importance")
	for _, tier := range entity.Tiers {
		fmt.Fprintf(&b, " WHEN '%s' THEN %d", tier, tier.Rank())
	}
	fmt.Fprintf(&b, " ELSE %d END", len(entity.Tiers))
	return b.String()
}

// SelectUnsent retrieves up to limit unsent records in the given tiers,
// highest tier first, newest first within a tier.
func (repo *NewsRepo) SelectUnsent(ctx context.Context, tiers []entity.ImportanceTier, limit int) ([]*entity.NewsRecord, error) {
	if len(tiers) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(tiers))
	args := make([]interface{}, 0, len(tiers)+1)
	for i, tier := range tiers {
		placeholders[i] = "?"
		args = append(args, string(tier))
	}
	args = append(args, limit)

	// プレースホルダとCASE式は制御された値のみで組み立てる
	query := fmt.Sprintf(`
SELECT id, fingerprint, title, body, title_translated, body_translated, importance, source_url, sent, sent_at, created_at
FROM news
WHERE sent = 0 AND importance IN (%s)
ORDER BY %s, created_at DESC, id DESC
LIMIT ?
`, strings.Join(placeholders, ","), tierRankCase())

	var records []*entity.NewsRecord
	err := repo.withRetry(ctx, "SelectUnsent", func() error {
		rows, err := repo.db.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("SelectUnsent: QueryContext: %w", err)
		}
		defer func() { _ = rows.Close() }()

		records = make([]*entity.NewsRecord, 0, limit)
		for rows.Next() {
			record, err := scanNews(rows)
			if err != nil {
				return fmt.Errorf("SelectUnsent: %w", err)
			}
			records = append(records, record)
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

func scanNews(rows *sql.Rows) (*entity.NewsRecord, error) {
	var record entity.NewsRecord
	var importance string
	var sentAt sql.NullTime
	err := rows.Scan(&record.ID,
		&record.Fingerprint, &record.Title, &record.Body,
		&record.TitleTranslated, &record.BodyTranslated,
		&importance, &record.SourceURL,
		&record.Sent, &sentAt, &record.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("Scan: %w", err)
	}
	record.Importance = entity.ImportanceTier(importance)
	if sentAt.Valid {
		record.SentAt = sentAt.Time
	}
	return &record, nil
}

// MarkSent flags a record as delivered. Calling it again for the same record
// is a no-op; an unknown id returns ErrNotFound.
func (repo *NewsRepo) MarkSent(ctx context.Context, id int64) error {
	const query = `UPDATE news SET sent = 1, sent_at = ? WHERE id = ? AND sent = 0`

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

		// 0行更新は「既送信」か「存在しない」のどちらか
		var sent bool
		err = repo.db.QueryRowContext(ctx, `SELECT sent FROM news WHERE id = ? LIMIT 1`, id).Scan(&sent)
		if err == sql.ErrNoRows {
			return fmt.Errorf("MarkSent: id %d: %w", id, entity.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("MarkSent: QueryRowContext: %w", err)
		}
		return nil
	})
}

// LastSentAt returns the most recent delivery time for a tier, or the zero
// time when nothing in that tier has been sent.
func (repo *NewsRepo) LastSentAt(ctx context.Context, tier entity.ImportanceTier) (time.Time, error) {
	const query = `
SELECT sent_at FROM news
WHERE importance = ? AND sent = 1 AND sent_at IS NOT NULL
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

// ExistsByFingerprintBatch はバッチで指紋の存在チェックを行い、N+1問題を解消する
func (repo *NewsRepo) ExistsByFingerprintBatch(ctx context.Context, fingerprints []string) (map[string]bool, error) {
	if len(fingerprints) == 0 {
		return make(map[string]bool), nil
	}

	// SQLiteのプレースホルダ上限は999
	// 参考: https://www.sqlite.org/limits.html#max_variable_number
	const maxPlaceholders = 999
	if len(fingerprints) > maxPlaceholders {
		return nil, fmt.Errorf("ExistsByFingerprintBatch: too many fingerprints (%d > %d)", len(fingerprints), maxPlaceholders)
	}

	placeholders := make([]string, len(fingerprints))
	args := make([]interface{}, len(fingerprints))
	for i, fp := range fingerprints {
		placeholders[i] = "?"
		args[i] = fp
	}

	query := fmt.Sprintf("SELECT fingerprint FROM news WHERE fingerprint IN (%s)",
		strings.Join(placeholders, ","))

	var result map[string]bool
	err := repo.withRetry(ctx, "ExistsByFingerprintBatch", func() error {
		rows, err := repo.db.QueryContext(ctx, query, args...)
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
