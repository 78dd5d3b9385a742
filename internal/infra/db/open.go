package db

import (
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"marketpulse/pkg/config"
)

// Driver names as registered with database/sql.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

// Open connects to the configured database. SQLite is the default; set
// DB_DRIVER=postgres together with DATABASE_URL to run against Postgres.
// The SQLite DSN enables WAL and a busy timeout so concurrent jobs block
// instead of failing immediately.
func Open() (*sql.DB, string, error) {
	driver := config.GetEnvString("DB_DRIVER", "sqlite")

	switch driver {
	case "sqlite", "sqlite3":
		path := config.GetEnvString("DB_PATH", "data/marketpulse.db")
		busyMS := config.GetEnvInt("DB_BUSY_TIMEOUT_MS", 60000)
		dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=%d&_foreign_keys=on", path, busyMS)
		conn, err := sql.Open(DriverSQLite, dsn)
		if err != nil {
			return nil, "", fmt.Errorf("open sqlite %s: %w", path, err)
		}
		// A single writer keeps SQLITE_BUSY out of the common path.
		conn.SetMaxOpenConns(1)
		if err := conn.Ping(); err != nil {
			conn.Close()
			return nil, "", fmt.Errorf("ping sqlite %s: %w", path, err)
		}
		return conn, DriverSQLite, nil

	case "postgres", "pgx":
		dsn := os.Getenv("DATABASE_URL")
		if dsn == "" {
			return nil, "", fmt.Errorf("DB_DRIVER=postgres requires DATABASE_URL")
		}
		conn, err := sql.Open(DriverPostgres, dsn)
		if err != nil {
			return nil, "", fmt.Errorf("open postgres: %w", err)
		}
		conn.SetMaxOpenConns(config.GetEnvInt("DB_MAX_OPEN_CONNS", 10))
		conn.SetMaxIdleConns(config.GetEnvInt("DB_MAX_IDLE_CONNS", 5))
		conn.SetConnMaxLifetime(config.GetEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute))
		if err := conn.Ping(); err != nil {
			conn.Close()
			return nil, "", fmt.Errorf("ping postgres: %w", err)
		}
		return conn, DriverPostgres, nil

	default:
		return nil, "", fmt.Errorf("unsupported DB_DRIVER %q", driver)
	}
}
