package db

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	embeddedmigrations "github.com/solatis/firewrite/migrations"
)

/*
 * Embedded schema migrations.
 *
 * Each driver has its own ordered set of .sql files under migrations/. The
 * migrations table records id, SHA-256 checksum, apply time and duration;
 * a recorded migration whose embedded file changed (or vanished) blocks
 * further migration. Every pending file runs in its own transaction along
 * with its bookkeeping row.
 */

// MigrationStatus represents the state of a single migration.
type MigrationStatus struct {
	ID          string
	Checksum    string
	Applied     bool
	AppliedAt   *time.Time
	ExecutionMs int64
}

type migration struct {
	id       string
	checksum string
	sql      string
}

type migrator struct {
	db         *sqlx.DB
	migrations []migration
}

// MigrateUp applies every pending migration in filename order.
func MigrateUp(ctx context.Context, db *sqlx.DB) error {
	m, err := newMigrator(ctx, db)
	if err != nil {
		return err
	}

	recorded, err := m.recorded(ctx)
	if err != nil {
		return err
	}
	if err := m.verify(recorded); err != nil {
		return fmt.Errorf("migration checksum validation failed: %w", err)
	}

	for _, mig := range m.migrations {
		if _, ok := recorded[mig.id]; ok {
			continue
		}
		if err := m.apply(ctx, mig); err != nil {
			return err
		}
	}
	return nil
}

// MigrateStatus reports every embedded migration, applied or pending.
func MigrateStatus(ctx context.Context, db *sqlx.DB) ([]MigrationStatus, error) {
	m, err := newMigrator(ctx, db)
	if err != nil {
		return nil, err
	}
	recorded, err := m.recorded(ctx)
	if err != nil {
		return nil, err
	}

	statuses := make([]MigrationStatus, 0, len(m.migrations))
	for _, mig := range m.migrations {
		if s, ok := recorded[mig.id]; ok {
			statuses = append(statuses, s)
			continue
		}
		statuses = append(statuses, MigrationStatus{ID: mig.id, Checksum: mig.checksum})
	}
	return statuses, nil
}

// RequireMigrated fails unless every embedded migration has been applied.
func RequireMigrated(ctx context.Context, db *sqlx.DB) error {
	statuses, err := MigrateStatus(ctx, db)
	if err != nil {
		return err
	}
	for _, s := range statuses {
		if !s.Applied {
			return fmt.Errorf("migration %s not applied - run 'firewrite migrate' first", s.ID)
		}
	}
	return nil
}

func newMigrator(ctx context.Context, db *sqlx.DB) (*migrator, error) {
	fsys, dir, err := migrationSource(db.DriverName())
	if err != nil {
		return nil, err
	}
	migrations, err := loadMigrations(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to parse migrations: %w", err)
	}

	if _, err := db.ExecContext(ctx, trackingTableDDL(db.DriverName())); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}
	return &migrator{db: db, migrations: migrations}, nil
}

func migrationSource(driver string) (fs.FS, string, error) {
	switch driver {
	case "sqlite3":
		return embeddedmigrations.SqliteMigrations, "sqlite", nil
	case "postgres":
		return embeddedmigrations.PostgresMigrations, "postgres", nil
	default:
		return nil, "", fmt.Errorf("unsupported database driver: %s", driver)
	}
}

func loadMigrations(fsys fs.FS, dir string) ([]migration, error) {
	names, err := fs.Glob(fsys, path.Join(dir, "*.sql"))
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	migrations := make([]migration, 0, len(names))
	for _, name := range names {
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		sum := sha256.Sum256(content)
		migrations = append(migrations, migration{
			id:       path.Base(name),
			checksum: hex.EncodeToString(sum[:]),
			sql:      string(content),
		})
	}
	return migrations, nil
}

// trackingTableDDL must match the migrations table in 001_initial_schema.sql.
func trackingTableDDL(driver string) string {
	if driver == "sqlite3" {
		return `CREATE TABLE IF NOT EXISTS migrations (
			migration_id TEXT PRIMARY KEY,
			checksum TEXT NOT NULL,
			applied_at TEXT NOT NULL,
			execution_ms INTEGER NOT NULL,
			CHECK (applied_at LIKE '____-__-__T__:__:__Z')
		)`
	}
	return `CREATE TABLE IF NOT EXISTS migrations (
		migration_id TEXT PRIMARY KEY,
		checksum TEXT NOT NULL,
		applied_at TIMESTAMP WITHOUT TIME ZONE NOT NULL,
		execution_ms INTEGER NOT NULL
	)`
}

// recorded loads the bookkeeping rows keyed by migration id.
func (m *migrator) recorded(ctx context.Context) (map[string]MigrationStatus, error) {
	var rows []struct {
		ID          string `db:"migration_id"`
		Checksum    string `db:"checksum"`
		AppliedAt   string `db:"applied_at"`
		ExecutionMs int64  `db:"execution_ms"`
	}
	// applied_at is TEXT on sqlite; postgres timestamps scan into the same
	// RFC 3339 layout.
	err := m.db.SelectContext(ctx, &rows,
		"SELECT migration_id, checksum, applied_at, execution_ms FROM migrations ORDER BY migration_id")
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}

	out := make(map[string]MigrationStatus, len(rows))
	for _, r := range rows {
		s := MigrationStatus{ID: r.ID, Checksum: r.Checksum, Applied: true, ExecutionMs: r.ExecutionMs}
		if t, err := time.Parse(time.RFC3339Nano, r.AppliedAt); err == nil {
			s.AppliedAt = &t
		}
		out[r.ID] = s
	}
	return out, nil
}

// verify rejects recorded migrations that no longer match an embedded file.
func (m *migrator) verify(recorded map[string]MigrationStatus) error {
	embedded := make(map[string]string, len(m.migrations))
	for _, mig := range m.migrations {
		embedded[mig.id] = mig.checksum
	}
	for id, s := range recorded {
		want, ok := embedded[id]
		if !ok {
			return fmt.Errorf("migration %s exists in database but not in embedded files", id)
		}
		if s.Checksum != want {
			return fmt.Errorf("checksum mismatch for migration %s: expected %s, got %s", id, want, s.Checksum)
		}
	}
	return nil
}

// apply runs one migration and records it in the same transaction.
func (m *migrator) apply(ctx context.Context, mig migration) error {
	start := time.Now()

	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for migration %s: %w", mig.id, err)
	}
	defer tx.Rollback() //nolint:errcheck

	// lib/pq rejects multi-statement Exec.
	for _, stmt := range splitStatements(mig.sql) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", mig.id, err)
		}
	}

	appliedAt := any(time.Now().UTC())
	if tx.DriverName() == "sqlite3" {
		appliedAt = time.Now().UTC().Format(time.RFC3339)
	}
	_, err = tx.ExecContext(ctx, tx.Rebind(
		"INSERT INTO migrations (migration_id, checksum, applied_at, execution_ms) VALUES (?, ?, ?, ?)"),
		mig.id, mig.checksum, appliedAt, time.Since(start).Milliseconds())
	if err != nil {
		return fmt.Errorf("failed to record migration %s: %w", mig.id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %s: %w", mig.id, err)
	}
	return nil
}

// splitStatements breaks a migration file on ';', dropping blank chunks and
// full-line "--" comments.
func splitStatements(sql string) []string {
	var lines []string
	for _, line := range strings.Split(sql, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		lines = append(lines, line)
	}

	var stmts []string
	for _, chunk := range strings.Split(strings.Join(lines, "\n"), ";") {
		if s := strings.TrimSpace(chunk); s != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts
}
