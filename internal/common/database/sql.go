package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"restaurant-receptionist/internal/common/config"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// SQLClient wraps a *sql.DB opened with either the postgres or the sqlite
// driver. Queries use $N placeholders, which both drivers accept.
type SQLClient struct {
	DB     *sql.DB
	Driver string
}

func NewPostgres(cfg config.PostgresConfig) (*SQLClient, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &SQLClient{DB: db, Driver: "postgres"}, nil
}

func NewSQLite(cfg config.SQLiteConfig) (*SQLClient, error) {
	db, err := sql.Open("sqlite", cfg.Path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// one writer at a time
	db.SetMaxOpenConns(1)

	return &SQLClient{DB: db, Driver: "sqlite"}, nil
}

// NewSQL opens the backend named by cfg.Driver.
func NewSQL(cfg config.DatabaseConfig) (*SQLClient, error) {
	switch cfg.Driver {
	case "postgres":
		return NewPostgres(cfg.Postgres)
	case "sqlite":
		return NewSQLite(cfg.SQLite)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func (c *SQLClient) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

func (c *SQLClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}

func (c *SQLClient) Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return c.DB.QueryContext(ctx, query, args...)
}

func (c *SQLClient) QueryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return c.DB.QueryRowContext(ctx, query, args...)
}

func (c *SQLClient) Exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return c.DB.ExecContext(ctx, query, args...)
}
