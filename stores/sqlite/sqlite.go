package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	slogctx "github.com/veqryn/slog-context"
	_ "modernc.org/sqlite"
	"os"
	"path/filepath"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	role_names    TEXT NOT NULL DEFAULT '',
	created_time  TEXT NOT NULL,
	updated_time  TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS entries (
	id             TEXT PRIMARY KEY,
	user_id        TEXT NOT NULL,
	date           TEXT NOT NULL,
	time_period    TEXT NOT NULL,
	glucose_amount REAL NOT NULL,
	insulin_dosage REAL,
	weight         REAL,
	created_time   TEXT NOT NULL,
	updated_time   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS entries_user_date ON entries (user_id, date);
`

type SQLiteStore struct {
	DB *sql.DB
}

// New opens (creating if needed) the database file at path and makes sure
// the tables exist.
func New(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		err := os.MkdirAll(dir, 0o700)
		if err != nil {
			return nil, fmt.Errorf("sqlite cannot create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("sqlite cannot open db: %w", err)
	}
	// one writer at a time
	db.SetMaxOpenConns(1)

	_, err = db.Exec(schema)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite cannot create schema: %w", err)
	}
	return &SQLiteStore{DB: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.DB.Close()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	log := slogctx.FromCtx(ctx)
	var version string
	err := s.DB.QueryRowContext(ctx, "select sqlite_version()").Scan(&version)
	if err != nil {
		return fmt.Errorf("sqlite cannot ping db: %w", err)
	}
	log.Info("sqlite Ping ok", "version", version)
	return nil
}
