package domain

import "context"

// Database defines lifecycle operations for the underlying database.
// Each implementation (SQLite, Postgres) owns its own migration files,
// so the whole storage backend is swappable.
type Database interface {
	Migrate(ctx context.Context) error
	Users() UserStore
	Close() error
}
