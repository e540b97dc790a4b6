package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"inputoverlay/internal/input"
)

// ErrNoSession is returned by EndSession for an unknown session.
var ErrNoSession = errors.New("session not found")

// Store represents the SQLite input history.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database at the given path and runs migrations.
func Open(path string) (*Store, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := MigrateDB(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DB returns the underlying handle, for migration commands.
func (s *Store) DB() *sql.DB {
	return s.db
}

// BeginSession opens a session for the given layout and returns its ID.
func (s *Store) BeginSession(layout string, start time.Time) (int64, error) {
	result, err := s.db.Exec(
		`INSERT INTO sessions (layout, start_ns) VALUES (?, ?)`,
		layout, start.UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert session: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get last insert id: %w", err)
	}
	return id, nil
}

// EndSession closes an open session.
func (s *Store) EndSession(id int64, end time.Time) error {
	result, err := s.db.Exec(`UPDATE sessions SET end_ns = ? WHERE id = ?`, end.UnixNano(), id)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %d", ErrNoSession, id)
	}
	return nil
}

// Sessions returns the most recent sessions, newest first.
func (s *Store) Sessions(limit int) ([]Session, error) {
	rows, err := s.db.Query(`
		SELECT id, layout, start_ns, end_ns
		FROM sessions
		ORDER BY start_ns DESC, id DESC
		LIMIT ?`, limitOrAll(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var ss Session
		if err := rows.Scan(&ss.ID, &ss.Layout, &ss.StartNs, &ss.EndNs); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, ss)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// EntryFromEvent converts a press or release into a history entry.
func EntryFromEvent(session int64, ev input.Event) Entry {
	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return Entry{
		SessionID:   session,
		Code:        ev.Code,
		Name:        ev.Code.String(),
		Pressed:     ev.Pressed,
		Device:      ev.Device,
		TimestampNs: ts.UnixNano(),
	}
}

// Insert writes entries in one transaction and updates the press counts.
func (s *Store) Insert(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	insert, err := tx.PrepareContext(ctx, `
		INSERT INTO history (session_id, code, name, pressed, device, timestamp_ns)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer insert.Close()

	count, err := tx.PrepareContext(ctx, `
		INSERT INTO press_counts (code, name, presses, last_ns) VALUES (?, ?, 1, ?)
		ON CONFLICT(code) DO UPDATE SET
			presses = presses + 1,
			name = excluded.name,
			last_ns = MAX(last_ns, excluded.last_ns)`)
	if err != nil {
		return fmt.Errorf("prepare count: %w", err)
	}
	defer count.Close()

	for _, e := range entries {
		var session interface{}
		if e.SessionID != 0 {
			session = e.SessionID
		}
		if _, err := insert.ExecContext(ctx, session, uint32(e.Code), e.Name, e.Pressed, e.Device, e.TimestampNs); err != nil {
			return fmt.Errorf("insert history: %w", err)
		}
		if !e.Pressed {
			continue
		}
		if _, err := count.ExecContext(ctx, uint32(e.Code), e.Name, e.TimestampNs); err != nil {
			return fmt.Errorf("update press count: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit history: %w", err)
	}
	return nil
}

// Recent returns the newest entries, newest first.
func (s *Store) Recent(limit int) ([]Entry, error) {
	rows, err := s.db.Query(`
		SELECT id, COALESCE(session_id, 0), code, name, pressed, device, timestamp_ns
		FROM history
		ORDER BY timestamp_ns DESC, id DESC
		LIMIT ?`, limitOrAll(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("query recent history: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// Range returns entries with startNs <= timestamp < endNs in time order.
func (s *Store) Range(startNs, endNs int64) ([]Entry, error) {
	rows, err := s.db.Query(`
		SELECT id, COALESCE(session_id, 0), code, name, pressed, device, timestamp_ns
		FROM history
		WHERE timestamp_ns >= ? AND timestamp_ns < ?
		ORDER BY timestamp_ns, id`, startNs, endNs,
	)
	if err != nil {
		return nil, fmt.Errorf("query history range: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// Counts returns per-code press totals, most pressed first.
func (s *Store) Counts(limit int) ([]Count, error) {
	rows, err := s.db.Query(`
		SELECT code, name, presses, last_ns
		FROM press_counts
		ORDER BY presses DESC, code
		LIMIT ?`, limitOrAll(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("query press counts: %w", err)
	}
	defer rows.Close()

	var counts []Count
	for rows.Next() {
		var c Count
		var code uint32
		if err := rows.Scan(&code, &c.Name, &c.Presses, &c.LastNs); err != nil {
			return nil, fmt.Errorf("scan press count: %w", err)
		}
		c.Code = input.Code(code)
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate press counts: %w", err)
	}
	return counts, nil
}

// Prune deletes entries older than before. Press counts are kept.
func (s *Store) Prune(before time.Time) (int64, error) {
	result, err := s.db.Exec(`DELETE FROM history WHERE timestamp_ns < ?`, before.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return n, nil
}

// Stats summarizes the database.
func (s *Store) Stats() (*Stats, error) {
	var st Stats
	err := s.db.QueryRow(`
		SELECT COUNT(*),
			COALESCE(SUM(pressed), 0),
			COUNT(DISTINCT code),
			COALESCE(MIN(timestamp_ns), 0),
			COALESCE(MAX(timestamp_ns), 0)
		FROM history`,
	).Scan(&st.Entries, &st.Presses, &st.Codes, &st.OldestNs, &st.NewestNs)
	if err != nil {
		return nil, fmt.Errorf("query history stats: %w", err)
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM sessions`).Scan(&st.Sessions); err != nil {
		return nil, fmt.Errorf("query session count: %w", err)
	}
	return &st, nil
}

func limitOrAll(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

// scanEntries is a helper to scan history rows into a slice.
func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry

	for rows.Next() {
		var e Entry
		var code uint32
		if err := rows.Scan(&e.ID, &e.SessionID, &code, &e.Name, &e.Pressed, &e.Device, &e.TimestampNs); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		e.Code = input.Code(code)
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}

	return entries, nil
}
