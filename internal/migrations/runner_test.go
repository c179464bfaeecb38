package migrations_test

import (
	"context"
	"database/sql"
	"testing"
	"testing/fstest"

	"github.com/msomdec/portfolio-users/internal/migrations"
	_ "modernc.org/sqlite"
)

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"001_create_things.sql": {Data: []byte(`CREATE TABLE things (id INTEGER PRIMARY KEY, name TEXT NOT NULL);`)},
		"002_add_index.sql":     {Data: []byte(`CREATE INDEX idx_things_name ON things(name);`)},
		"README.md":             {Data: []byte("not a migration")},
	}
}

func openMemoryDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	// A single connection keeps every statement on the same in-memory database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRunMigrations(t *testing.T) {
	db := openMemoryDB(t)
	ctx := context.Background()

	if err := migrations.Run(ctx, db, testFS(), migrations.SQLite, nil); err != nil {
		t.Fatalf("first migration run: %v", err)
	}

	if _, err := db.ExecContext(ctx, "INSERT INTO things (name) VALUES (?)", "widget"); err != nil {
		t.Fatalf("insert into things: %v", err)
	}

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		t.Fatalf("count schema_migrations: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 migration records, got %d", count)
	}
}

func TestRunMigrationsIdempotent(t *testing.T) {
	db := openMemoryDB(t)
	ctx := context.Background()

	if err := migrations.Run(ctx, db, testFS(), migrations.SQLite, nil); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := migrations.Run(ctx, db, testFS(), migrations.SQLite, nil); err != nil {
		t.Fatalf("second run (idempotent): %v", err)
	}

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		t.Fatalf("count schema_migrations: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 migration records, got %d", count)
	}
}

func TestRunMigrations_FailureRollsBack(t *testing.T) {
	db := openMemoryDB(t)
	ctx := context.Background()

	fsys := fstest.MapFS{
		"001_ok.sql":     {Data: []byte(`CREATE TABLE ok (id INTEGER PRIMARY KEY);`)},
		"002_broken.sql": {Data: []byte(`CREATE TABLE broken (;`)},
	}

	if err := migrations.Run(ctx, db, fsys, migrations.SQLite, nil); err == nil {
		t.Fatal("expected broken migration to fail")
	}

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		t.Fatalf("count schema_migrations: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected only the first migration to be recorded, got %d", count)
	}
}
