package chat

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"director/internal/logging"
)

const schema = `
CREATE TABLE IF NOT EXISTS turns (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	author TEXT NOT NULL,
	is_user_authored INTEGER NOT NULL DEFAULT 0,
	is_system_notice INTEGER NOT NULL DEFAULT 0,
	text TEXT NOT NULL,
	created_at TEXT NOT NULL
);
`

// SQLiteStore persists the conversation log to a local database file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (or creates) the database at path and ensures the
// schema exists.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open chat db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set journal mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	logging.Session("chat store opened: %s", path)
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Append adds a turn to the end of the log.
func (s *SQLiteStore) Append(turn Turn) error {
	_, err := s.db.Exec(
		`INSERT INTO turns (id, author, is_user_authored, is_system_notice, text, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		turn.ID, turn.Author, boolInt(turn.IsUserAuthored), boolInt(turn.IsSystemNotice),
		turn.Text, turn.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to append turn: %w", err)
	}
	return nil
}

// Recent returns the most recent n turns in chronological order.
func (s *SQLiteStore) Recent(n int) ([]Turn, error) {
	query := `SELECT id, author, is_user_authored, is_system_notice, text, created_at
		FROM turns ORDER BY seq DESC`
	args := []interface{}{}
	if n > 0 {
		query += " LIMIT ?"
		args = append(args, n)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		var userAuthored, systemNotice int
		var createdAt string
		if err := rows.Scan(&t.ID, &t.Author, &userAuthored, &systemNotice, &t.Text, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		t.IsUserAuthored = userAuthored != 0
		t.IsSystemNotice = systemNotice != 0
		if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			t.CreatedAt = ts
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read turns: %w", err)
	}

	// Query returned newest-first; flip to chronological.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// Len returns the number of stored turns.
func (s *SQLiteStore) Len() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM turns").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count turns: %w", err)
	}
	return n, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
