// Package postgres implements the user store on PostgreSQL through pgx.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/msomdec/portfolio-users/internal/domain"
	"github.com/msomdec/portfolio-users/internal/migrations"
	schema "github.com/msomdec/portfolio-users/internal/repository/postgres/migrations"
)

// DB is the PostgreSQL implementation of domain.Database.
type DB struct {
	Pool   *pgxpool.Pool
	logger *slog.Logger
	now    func() time.Time
}

var _ domain.Database = (*DB)(nil)

// Options tunes the connection pool. Zero values keep pgx defaults.
type Options struct {
	MaxConns    int32
	ConnTimeout time.Duration
}

// New connects to the database at url and verifies the connection.
func New(ctx context.Context, url string, opts Options, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	if opts.ConnTimeout > 0 {
		cfg.ConnConfig.ConnectTimeout = opts.ConnTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{Pool: pool, logger: logger, now: defaultNow}, nil
}

// Migrate applies the embedded PostgreSQL schema. The shared runner speaks
// database/sql, so it gets a *sql.DB view of the pool.
func (d *DB) Migrate(ctx context.Context) error {
	sqlDB := stdlib.OpenDBFromPool(d.Pool)
	defer sqlDB.Close()
	return migrations.Run(ctx, sqlDB, schema.FS, migrations.Postgres, d.logger)
}

// Users returns the user store backed by this database.
func (d *DB) Users() domain.UserStore {
	return NewUserRepository(d)
}

// SetClock replaces the time source used for audit timestamps.
func (d *DB) SetClock(now func() time.Time) {
	d.now = func() time.Time { return now().UTC().Truncate(time.Microsecond) }
}

func (d *DB) Close() error {
	d.Pool.Close()
	return nil
}

// PostgreSQL stores timestamps with microsecond precision.
func defaultNow() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
