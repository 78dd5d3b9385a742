package db

import (
	"database/sql"
	"fmt"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS news (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	fingerprint      TEXT NOT NULL UNIQUE,
	title            TEXT NOT NULL,
	body             TEXT NOT NULL DEFAULT '',
	title_translated TEXT NOT NULL DEFAULT '',
	body_translated  TEXT NOT NULL DEFAULT '',
	importance       TEXT NOT NULL,
	source_url       TEXT NOT NULL DEFAULT '',
	sent             BOOLEAN NOT NULL DEFAULT 0,
	sent_at          TIMESTAMP,
	created_at       TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_news_unsent ON news (sent, importance);
CREATE INDEX IF NOT EXISTS idx_news_sent_at ON news (importance, sent_at);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS news (
	id               BIGSERIAL PRIMARY KEY,
	fingerprint      TEXT NOT NULL UNIQUE,
	title            TEXT NOT NULL,
	body             TEXT NOT NULL DEFAULT '',
	title_translated TEXT NOT NULL DEFAULT '',
	body_translated  TEXT NOT NULL DEFAULT '',
	importance       TEXT NOT NULL,
	source_url       TEXT NOT NULL DEFAULT '',
	sent             BOOLEAN NOT NULL DEFAULT FALSE,
	sent_at          TIMESTAMPTZ,
	created_at       TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_news_unsent ON news (sent, importance);
CREATE INDEX IF NOT EXISTS idx_news_sent_at ON news (importance, sent_at);
`

// MigrateUp creates the schema for the given driver if it does not exist.
// Statements are idempotent so repeated startups are safe.
func MigrateUp(conn *sql.DB, driver string) error {
	var schema string
	switch driver {
	case DriverSQLite:
		schema = sqliteSchema
	case DriverPostgres:
		schema = postgresSchema
	default:
		return fmt.Errorf("unsupported driver %q", driver)
	}

	if _, err := conn.Exec(schema); err != nil {
		return fmt.Errorf("apply schema (%s): %w", driver, err)
	}
	return nil
}
