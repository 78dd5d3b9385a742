package entity

import "errors"

// Sentinel errors for domain layer operations.
var (
	// ErrDuplicate indicates that a record with the same fingerprint already
	// exists. Expected and non-fatal: the ingestion path swallows it.
	ErrDuplicate = errors.New("duplicate news record")

	// ErrNotFound indicates that a requested record was not found.
	ErrNotFound = errors.New("news record not found")

	// ErrStorageUnavailable indicates that the store stayed contended after
	// the bounded retry budget was exhausted. Fatal for the current cycle.
	ErrStorageUnavailable = errors.New("storage unavailable")
)
