package infrastructure

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

type SQLiteClient struct {
	DB *sql.DB
}

// NewSQLiteClient opens (or creates) the ledger database file.
func NewSQLiteClient(ctx context.Context, path string) (*SQLiteClient, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	// SQLite has a single writer; one connection keeps writers queued in
	// the pool instead of failing with SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite: %w", err)
	}

	client := &SQLiteClient{DB: db}
	if err := client.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return client, nil
}

func (s *SQLiteClient) Migrate(ctx context.Context) error {
	_, err := s.DB.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY,
			display_name TEXT,
			created_on TEXT NOT NULL,
			paid_balance INTEGER NOT NULL DEFAULT 0
		);
	`)
	if err != nil {
		return fmt.Errorf("create users table: %w", err)
	}

	_, err = s.DB.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS daily_usage (
			user_id INTEGER NOT NULL,
			usage_date TEXT NOT NULL,
			used_count INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (user_id, usage_date)
		);
	`)
	if err != nil {
		return fmt.Errorf("create daily_usage table: %w", err)
	}
	return nil
}

func (s *SQLiteClient) Close() error {
	return s.DB.Close()
}
