package db

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migration pairs the up and down SQL for one schema version.
type Migration struct {
	Version int64
	Name    string
	UpSQL   string
	DownSQL string
}

var migrationNameRx = regexp.MustCompile(`^migrations/([0-9]+)_([a-z0-9_]+)\.(up|down)\.sql$`)

// LoadMigrations parses the embedded migration files, requiring both an up
// and a down file per version.
func LoadMigrations() ([]Migration, error) {
	return loadMigrations(migrationsFS)
}

func loadMigrations(fsys fs.FS) ([]Migration, error) {
	paths, err := fs.Glob(fsys, "migrations/*.sql")
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, errors.New("no migration files found")
	}

	index := make(map[int64]*Migration)
	for _, p := range paths {
		matches := migrationNameRx.FindStringSubmatch(p)
		if matches == nil {
			return nil, fmt.Errorf("invalid migration filename: %s", p)
		}

		version, err := strconv.ParseInt(matches[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse version in %s: %w", p, err)
		}
		name := matches[2]
		direction := matches[3]

		sqlBytes, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", p, err)
		}
		sqlText := strings.TrimSpace(string(sqlBytes))
		if sqlText == "" {
			return nil, fmt.Errorf("empty migration file: %s", p)
		}

		m, ok := index[version]
		if !ok {
			m = &Migration{Version: version, Name: name}
			index[version] = m
		} else if m.Name != name {
			return nil, fmt.Errorf("conflicting names for version %d: %s vs %s", version, m.Name, name)
		}

		switch direction {
		case "up":
			if m.UpSQL != "" {
				return nil, fmt.Errorf("duplicate up migration for version %d", version)
			}
			m.UpSQL = sqlText
		case "down":
			if m.DownSQL != "" {
				return nil, fmt.Errorf("duplicate down migration for version %d", version)
			}
			m.DownSQL = sqlText
		}
	}

	migrations := make([]Migration, 0, len(index))
	for _, m := range index {
		if m.UpSQL == "" || m.DownSQL == "" {
			return nil, fmt.Errorf("migration version %d must include both up and down files", m.Version)
		}
		migrations = append(migrations, *m)
	}
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })
	return migrations, nil
}

func ensureMigrationTable(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version     BIGINT PRIMARY KEY,
    name        TEXT NOT NULL,
    applied_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`)
	return err
}

func appliedVersions(ctx context.Context, pool *pgxpool.Pool) (map[int64]struct{}, error) {
	rows, err := pool.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int64]struct{})
	for rows.Next() {
		var version int64
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = struct{}{}
	}
	return applied, rows.Err()
}

// MigrateUp applies every pending migration in order and returns how many ran.
func MigrateUp(ctx context.Context, pool *pgxpool.Pool) (int, error) {
	if err := ensureMigrationTable(ctx, pool); err != nil {
		return 0, err
	}
	migrations, err := LoadMigrations()
	if err != nil {
		return 0, err
	}
	appliedSet, err := appliedVersions(ctx, pool)
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, m := range migrations {
		if _, ok := appliedSet[m.Version]; ok {
			continue
		}
		tx, err := pool.Begin(ctx)
		if err != nil {
			return applied, err
		}
		if _, err := tx.Exec(ctx, m.UpSQL); err != nil {
			tx.Rollback(ctx)
			return applied, fmt.Errorf("version %d up failed: %w", m.Version, err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, m.Version, m.Name); err != nil {
			tx.Rollback(ctx)
			return applied, fmt.Errorf("record version %d failed: %w", m.Version, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return applied, err
		}
		applied++
	}
	return applied, nil
}

// MigrateDown rolls back the newest `steps` applied migrations.
func MigrateDown(ctx context.Context, pool *pgxpool.Pool, steps int) (int, error) {
	if steps <= 0 {
		return 0, fmt.Errorf("steps must be > 0")
	}
	if err := ensureMigrationTable(ctx, pool); err != nil {
		return 0, err
	}
	migrations, err := LoadMigrations()
	if err != nil {
		return 0, err
	}
	byVersion := make(map[int64]Migration, len(migrations))
	for _, m := range migrations {
		byVersion[m.Version] = m
	}

	rows, err := pool.Query(ctx, `SELECT version FROM schema_migrations ORDER BY version DESC LIMIT $1`, steps)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	versions := make([]int64, 0, steps)
	for rows.Next() {
		var version int64
		if err := rows.Scan(&version); err != nil {
			return 0, err
		}
		versions = append(versions, version)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	rolledBack := 0
	for _, version := range versions {
		m, ok := byVersion[version]
		if !ok {
			return rolledBack, fmt.Errorf("cannot find migration source for applied version %d", version)
		}
		tx, err := pool.Begin(ctx)
		if err != nil {
			return rolledBack, err
		}
		if _, err := tx.Exec(ctx, m.DownSQL); err != nil {
			tx.Rollback(ctx)
			return rolledBack, fmt.Errorf("version %d down failed: %w", m.Version, err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM schema_migrations WHERE version = $1`, m.Version); err != nil {
			tx.Rollback(ctx)
			return rolledBack, fmt.Errorf("delete version %d failed: %w", m.Version, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return rolledBack, err
		}
		rolledBack++
	}
	return rolledBack, nil
}

// CurrentVersion reports the newest applied migration, or (0, "") when none.
func CurrentVersion(ctx context.Context, pool *pgxpool.Pool) (int64, string, error) {
	if err := ensureMigrationTable(ctx, pool); err != nil {
		return 0, "", err
	}
	var version int64
	var name string
	err := pool.QueryRow(ctx, `SELECT version, name FROM schema_migrations ORDER BY version DESC LIMIT 1`).Scan(&version, &name)
	if err == nil {
		return version, name, nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, "", nil
	}
	return 0, "", err
}
