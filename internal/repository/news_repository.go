// Package repository defines the persistence interfaces consumed by the use
// case layer. Concrete implementations live under
// internal/infra/adapter/persistence.
package repository

import (
	"context"
	"time"

	"marketpulse/internal/domain/entity"
)

// NewsRepository provides transactional access to stored news records.
//
// Every operation is atomic: it is either fully applied or not applied at
// all. Implementations map driver-level unique violations to
// entity.ErrDuplicate and exhausted lock contention to
// entity.ErrStorageUnavailable.
type NewsRepository interface {
	// Insert persists a new record and assigns record.ID.
	// Returns entity.ErrDuplicate if a record with the same fingerprint
	// already exists; the unique constraint is the deduplication authority
	// even under concurrent writers.
	Insert(ctx context.Context, record *entity.NewsRecord) error

	// SelectUnsent returns unsent records whose tier is in tiers, ordered by
	// tier rank ascending (most urgent first) then created_at descending,
	// capped at limit. Tie-breaks on id so the order is stable across
	// re-queries of the same snapshot.
	SelectUnsent(ctx context.Context, tiers []entity.ImportanceTier, limit int) ([]*entity.NewsRecord, error)

	// MarkSent flips a record to sent and stamps sent_at. Idempotent: marking
	// an already-sent record is a no-op success. Unknown ids return
	// entity.ErrNotFound.
	MarkSent(ctx context.Context, id int64) error

	// LastSentAt returns the most recent sent_at for the given tier, or the
	// zero time if nothing of that tier was ever sent.
	LastSentAt(ctx context.Context, tier entity.ImportanceTier) (time.Time, error)

	// ExistsByFingerprintBatch reports which of the given fingerprints are
	// already stored. A cheap pre-filter for the ingestion path; Insert still
	// handles the race via the unique constraint.
	ExistsByFingerprintBatch(ctx context.Context, fingerprints []string) (map[string]bool, error)
}
