// Package migrations applies the SQL schema embedded in the binary.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/dealroom/api/pkg/logger"
)

//go:embed sql/*.sql
var embedded embed.FS

// Files returns the embedded migration files.
func Files() fs.FS {
	sub, err := fs.Sub(embedded, "sql")
	if err != nil {
		panic(err)
	}
	return sub
}

// Runner executes database migrations.
type Runner struct {
	db     *sql.DB
	files  fs.FS
	logger *logger.Logger
}

// NewRunner creates a migration runner over the given files. Files are named
// <version>_<name>.up.sql and <version>_<name>.down.sql.
func NewRunner(db *sql.DB, files fs.FS, log *logger.Logger) *Runner {
	return &Runner{
		db:     db,
		files:  files,
		logger: log.With("component", "migrations"),
	}
}

// MigrationRecord represents a migration in the schema_migrations table.
type MigrationRecord struct {
	Version   string
	AppliedAt time.Time
}

// Status is the state of one available migration.
type Status struct {
	Version   string
	Applied   bool
	AppliedAt time.Time
}

// EnsureMigrationTable creates the schema_migrations table if it doesn't exist.
func (r *Runner) EnsureMigrationTable(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(14) PRIMARY KEY,
			applied_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)`)
	return err
}

// AppliedMigrations returns all applied migration versions.
func (r *Runner) AppliedMigrations(ctx context.Context) ([]MigrationRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT version, applied_at FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []MigrationRecord
	for rows.Next() {
		var rec MigrationRecord
		if err := rows.Scan(&rec.Version, &rec.AppliedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// PendingMigrations returns migrations that need to be applied.
func (r *Runner) PendingMigrations(ctx context.Context) ([]string, error) {
	available, err := Versions(r.files)
	if err != nil {
		return nil, fmt.Errorf("failed to scan migrations: %w", err)
	}

	applied, err := r.AppliedMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}

	appliedSet := make(map[string]bool, len(applied))
	for _, rec := range applied {
		appliedSet[rec.Version] = true
	}

	var pending []string
	for _, v := range available {
		if !appliedSet[v] {
			pending = append(pending, v)
		}
	}
	return pending, nil
}

// Up runs all pending migrations, each in its own transaction.
func (r *Runner) Up(ctx context.Context) error {
	if err := r.EnsureMigrationTable(ctx); err != nil {
		return fmt.Errorf("failed to ensure migration table: %w", err)
	}

	pending, err := r.PendingMigrations(ctx)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		r.logger.Info("no pending migrations")
		return nil
	}

	for _, version := range pending {
		if err := r.runMigration(ctx, version, "up"); err != nil {
			return fmt.Errorf("migration %s failed: %w", version, err)
		}
		r.logger.Info("migration applied", "version", version)
	}
	return nil
}

// Down rolls back the last applied migration.
func (r *Runner) Down(ctx context.Context) error {
	applied, err := r.AppliedMigrations(ctx)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		r.logger.Info("no migrations to roll back")
		return nil
	}

	last := applied[len(applied)-1]
	if err := r.runMigration(ctx, last.Version, "down"); err != nil {
		return fmt.Errorf("rollback %s failed: %w", last.Version, err)
	}
	r.logger.Info("migration rolled back", "version", last.Version)
	return nil
}

// Status reports every available migration and whether it was applied.
func (r *Runner) Status(ctx context.Context) ([]Status, error) {
	if err := r.EnsureMigrationTable(ctx); err != nil {
		return nil, err
	}
	applied, err := r.AppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}
	available, err := Versions(r.files)
	if err != nil {
		return nil, err
	}

	appliedAt := make(map[string]time.Time, len(applied))
	for _, rec := range applied {
		appliedAt[rec.Version] = rec.AppliedAt
	}

	out := make([]Status, 0, len(available))
	for _, v := range available {
		at, ok := appliedAt[v]
		out = append(out, Status{Version: v, Applied: ok, AppliedAt: at})
	}
	return out, nil
}

func (r *Runner) runMigration(ctx context.Context, version, direction string) error {
	name, err := FileFor(r.files, version, direction)
	if err != nil {
		return err
	}
	content, err := fs.ReadFile(r.files, name)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, string(content)); err != nil {
		return err
	}

	if direction == "up" {
		_, err = tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", version)
	} else {
		_, err = tx.ExecContext(ctx, "DELETE FROM schema_migrations WHERE version = $1", version)
	}
	if err != nil {
		return err
	}

	return tx.Commit()
}

// Versions returns the sorted versions that have an up migration.
func Versions(files fs.FS) ([]string, error) {
	entries, err := fs.Glob(files, "*.up.sql")
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(entries))
	var versions []string
	for _, name := range entries {
		version, _, ok := strings.Cut(path.Base(name), "_")
		if !ok || version == "" || seen[version] {
			continue
		}
		seen[version] = true
		versions = append(versions, version)
	}
	sort.Strings(versions)
	return versions, nil
}

// FileFor returns the file implementing version in the given direction.
func FileFor(files fs.FS, version, direction string) (string, error) {
	pattern := fmt.Sprintf("%s_*.%s.sql", version, direction)
	matches, err := fs.Glob(files, pattern)
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("migration file not found: %s", pattern)
	}
	return matches[0], nil
}
