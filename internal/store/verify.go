package store

import (
	"fmt"

	"inputoverlay/internal/input"
)

// Mismatch is a press count that disagrees with the history table.
type Mismatch struct {
	Code    input.Code
	Counted int64 // press_counts.presses
	History int64 // pressed rows in history
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s: counted %d, history %d", m.Code, m.Counted, m.History)
}

// VerifyCounts compares press_counts against the history table. Pruning
// removes history but keeps counts, so a count may exceed the history; a
// count below it, or history without a count, is a mismatch.
func (s *Store) VerifyCounts() ([]Mismatch, error) {
	rows, err := s.db.Query(`
		SELECT h.code, COALESCE(c.presses, 0), h.presses
		FROM (SELECT code, COUNT(*) AS presses FROM history WHERE pressed = 1 GROUP BY code) h
		LEFT JOIN press_counts c ON c.code = h.code
		WHERE COALESCE(c.presses, 0) < h.presses
		ORDER BY h.code`)
	if err != nil {
		return nil, fmt.Errorf("query count mismatches: %w", err)
	}
	defer rows.Close()

	var mismatches []Mismatch
	for rows.Next() {
		var m Mismatch
		var code uint32
		if err := rows.Scan(&code, &m.Counted, &m.History); err != nil {
			return nil, fmt.Errorf("scan mismatch: %w", err)
		}
		m.Code = input.Code(code)
		mismatches = append(mismatches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mismatches: %w", err)
	}
	return mismatches, nil
}

// RebuildCounts recomputes press_counts from the history table. Presses
// whose history was pruned are lost.
func (s *Store) RebuildCounts() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM press_counts`); err != nil {
		return fmt.Errorf("clear press counts: %w", err)
	}
	if _, err := tx.Exec(`
		INSERT INTO press_counts (code, name, presses, last_ns)
		SELECT code, MAX(name), COUNT(*), MAX(timestamp_ns)
		FROM history WHERE pressed = 1 GROUP BY code`); err != nil {
		return fmt.Errorf("rebuild press counts: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rebuild: %w", err)
	}
	return nil
}
