package db

import (
	"strings"
	"testing"
	"testing/fstest"
)

func TestLoadMigrationsFromEmbeddedFS(t *testing.T) {
	t.Parallel()

	migrations, err := LoadMigrations()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(migrations) == 0 {
		t.Fatal("expected embedded migrations")
	}
	for i, m := range migrations {
		if m.UpSQL == "" || m.DownSQL == "" {
			t.Fatalf("migration %d missing SQL: %+v", m.Version, m)
		}
		if i > 0 && migrations[i-1].Version >= m.Version {
			t.Fatalf("migrations out of order at index %d", i)
		}
	}
	if migrations[0].Version != 1 || migrations[0].Name != "create_candles" {
		t.Fatalf("unexpected first migration: %+v", migrations[0])
	}
}

func TestLoadMigrationsPairsUpAndDown(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"migrations/0002_second.up.sql":   {Data: []byte("CREATE TABLE b (id INT);")},
		"migrations/0002_second.down.sql": {Data: []byte("DROP TABLE b;")},
		"migrations/0001_first.up.sql":    {Data: []byte("CREATE TABLE a (id INT);")},
		"migrations/0001_first.down.sql":  {Data: []byte("DROP TABLE a;")},
	}

	migrations, err := loadMigrations(fsys)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("expected 2 migrations, got %d", len(migrations))
	}
	if migrations[0].Version != 1 || migrations[0].Name != "first" {
		t.Fatalf("unexpected first migration: %+v", migrations[0])
	}
	if !strings.Contains(migrations[1].UpSQL, "CREATE TABLE b") {
		t.Fatalf("unexpected up SQL: %q", migrations[1].UpSQL)
	}
}

func TestLoadMigrationsMissingDown(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"migrations/0001_first.up.sql": {Data: []byte("CREATE TABLE a (id INT);")},
	}
	if _, err := loadMigrations(fsys); err == nil {
		t.Fatal("expected error for missing down file")
	}
}

func TestLoadMigrationsRejectsBadFilename(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"migrations/first-migration.up.sql":  {Data: []byte("CREATE TABLE a (id INT);")},
		"migrations/0001_first.down.sql":     {Data: []byte("DROP TABLE a;")},
		"migrations/0001_first.up.sql":       {Data: []byte("CREATE TABLE a (id INT);")},
		"migrations/0002_second.unknown.sql": {Data: []byte("SELECT 1;")},
	}
	if _, err := loadMigrations(fsys); err == nil {
		t.Fatal("expected error for invalid filename")
	}
}

func TestLoadMigrationsRejectsEmptyFile(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"migrations/0001_first.up.sql":   {Data: []byte("   ")},
		"migrations/0001_first.down.sql": {Data: []byte("DROP TABLE a;")},
	}
	if _, err := loadMigrations(fsys); err == nil {
		t.Fatal("expected error for empty migration file")
	}
}

func TestLoadMigrationsRejectsConflictingNames(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"migrations/0001_first.up.sql":     {Data: []byte("CREATE TABLE a (id INT);")},
		"migrations/0001_renamed.down.sql": {Data: []byte("DROP TABLE a;")},
	}
	if _, err := loadMigrations(fsys); err == nil {
		t.Fatal("expected error for conflicting migration names")
	}
}
