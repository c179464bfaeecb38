package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/msomdec/portfolio-users/internal/domain"
	"github.com/msomdec/portfolio-users/internal/migrations"
	schema "github.com/msomdec/portfolio-users/internal/repository/sqlite/migrations"
	moderncsqlite "modernc.org/sqlite"
)

// SQLite's built-in LOWER only folds ASCII; unicode_lower folds every script.
func init() {
	moderncsqlite.MustRegisterDeterministicScalarFunction("unicode_lower", 1, unicodeLower)
}

func unicodeLower(_ *moderncsqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		return v, nil
	}
}

// DB is the SQLite implementation of domain.Database.
type DB struct {
	SqlDB  *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

var _ domain.Database = (*DB)(nil)

// New opens a SQLite database at the given path and configures it for use.
// It enables WAL mode and foreign keys.
func New(dbPath string, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}

	sqlDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Foreign keys are a per-connection setting, so the pool is pinned to a
	// single connection before the pragmas run.
	sqlDB.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent read performance.
	if _, err := sqlDB.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	// Enable foreign key enforcement.
	if _, err := sqlDB.ExecContext(context.Background(), "PRAGMA foreign_keys=ON"); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := sqlDB.PingContext(context.Background()); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{SqlDB: sqlDB, logger: logger, now: defaultNow}, nil
}

// Migrate applies the embedded SQLite schema.
func (d *DB) Migrate(ctx context.Context) error {
	return migrations.Run(ctx, d.SqlDB, schema.FS, migrations.SQLite, d.logger)
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
	return d.SqlDB.Close()
}

func defaultNow() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
