package store

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Migration is one schema step. Its SQL lives in schema/NNN_name.up.sql and
// schema/NNN_name.down.sql; the first comment line of the up file is its
// description.
type Migration struct {
	Version     int
	Description string
	Up          string
	Down        string
}

//go:embed schema/*.sql
var schemaFS embed.FS

var migrations = mustLoadMigrations(schemaFS)

func mustLoadMigrations(fsys fs.FS) []Migration {
	ms, err := loadMigrations(fsys)
	if err != nil {
		panic(err)
	}
	return ms
}

func loadMigrations(fsys fs.FS) ([]Migration, error) {
	files, err := fs.Glob(fsys, "schema/*.sql")
	if err != nil {
		return nil, err
	}
	byVersion := make(map[int]*Migration)
	for _, file := range files {
		base := path.Base(file)
		num, rest, ok := strings.Cut(base, "_")
		if !ok {
			return nil, fmt.Errorf("migration %s: want NNN_name.up.sql", base)
		}
		version, err := strconv.Atoi(num)
		if err != nil || version <= 0 {
			return nil, fmt.Errorf("migration %s: bad version %q", base, num)
		}
		data, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, err
		}
		m := byVersion[version]
		if m == nil {
			m = &Migration{Version: version}
			byVersion[version] = m
		}
		switch {
		case strings.HasSuffix(rest, ".up.sql"):
			m.Up = string(data)
			first, _, _ := strings.Cut(m.Up, "\n")
			m.Description = strings.TrimSpace(strings.TrimPrefix(first, "--"))
		case strings.HasSuffix(rest, ".down.sql"):
			m.Down = string(data)
		default:
			return nil, fmt.Errorf("migration %s: want .up.sql or .down.sql", base)
		}
	}

	out := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.Up == "" || m.Down == "" {
			return nil, fmt.Errorf("migration %d: missing up or down", m.Version)
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	for i, m := range out {
		if m.Version != i+1 {
			return nil, fmt.Errorf("migration %d: versions must be consecutive from 1", m.Version)
		}
	}
	return out, nil
}

const createMigrationsTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version     INTEGER PRIMARY KEY,
	applied_at  INTEGER NOT NULL,
	description TEXT
)`

// inTx runs fn in a transaction, committing only if it succeeds.
func inTx(db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func schemaVersion(db *sql.DB) (int, error) {
	var v int
	if err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}

// MigrateDB applies every pending migration, each in its own transaction.
func MigrateDB(db *sql.DB) error {
	if _, err := db.Exec(createMigrationsTable); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}
	current, err := schemaVersion(db)
	if err != nil {
		return err
	}
	for _, m := range migrations[min(current, len(migrations)):] {
		err := inTx(db, func(tx *sql.Tx) error {
			if _, err := tx.Exec(m.Up); err != nil {
				return err
			}
			_, err := tx.Exec("INSERT INTO schema_migrations (version, applied_at, description) VALUES (?, ?, ?)",
				m.Version, time.Now().UnixNano(), m.Description)
			return err
		})
		if err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}
	}
	return nil
}

// RollbackMigration undoes the newest applied migration.
func RollbackMigration(db *sql.DB) error {
	current, err := schemaVersion(db)
	if err != nil {
		return err
	}
	if current == 0 {
		return fmt.Errorf("no migrations to roll back")
	}
	if current > len(migrations) {
		return fmt.Errorf("schema version %d is newer than this build", current)
	}
	m := migrations[current-1]
	err = inTx(db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(m.Down); err != nil {
			return err
		}
		_, err := tx.Exec("DELETE FROM schema_migrations WHERE version = ?", m.Version)
		return err
	})
	if err != nil {
		return fmt.Errorf("roll back migration %d: %w", m.Version, err)
	}
	return nil
}

// MigrationStatus lists applied and pending migrations.
type MigrationStatus struct {
	CurrentVersion int
	LatestVersion  int
	Pending        []Migration
	Applied        []AppliedMigration
}

// AppliedMigration is one row of schema_migrations.
type AppliedMigration struct {
	Version     int
	AppliedAt   time.Time
	Description string
}

// GetMigrationStatus reports the schema state. A database that was never
// migrated has every migration pending.
func GetMigrationStatus(db *sql.DB) (*MigrationStatus, error) {
	st := &MigrationStatus{LatestVersion: len(migrations)}

	rows, err := db.Query("SELECT version, applied_at, description FROM schema_migrations ORDER BY version")
	if err != nil {
		st.Pending = migrations
		return st, nil
	}
	defer rows.Close()

	for rows.Next() {
		var (
			am AppliedMigration
			at int64
		)
		if err := rows.Scan(&am.Version, &at, &am.Description); err != nil {
			return nil, fmt.Errorf("scan migration: %w", err)
		}
		am.AppliedAt = time.Unix(0, at)
		st.Applied = append(st.Applied, am)
		st.CurrentVersion = max(st.CurrentVersion, am.Version)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if st.CurrentVersion < len(migrations) {
		st.Pending = migrations[st.CurrentVersion:]
	}
	return st, nil
}

// ValidateSchema checks that every table the store queries exists.
func ValidateSchema(db *sql.DB) error {
	var missing []string
	for _, table := range []string{"sessions", "history", "press_counts", "schema_migrations"} {
		var n int
		err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&n)
		if err != nil {
			return fmt.Errorf("check table %s: %w", table, err)
		}
		if n == 0 {
			missing = append(missing, table)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing tables: %s", strings.Join(missing, ", "))
	}
	return nil
}
