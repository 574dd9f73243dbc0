package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/justestif/moodtune/internal/dataset"
)

// SQLite is a track table in a SQLite file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path and ensures the schema.
// ":memory:" gives a private in-memory database.
func OpenSQLite(path string) (*SQLite, error) {
	if path != ":memory:" {
		// Ensure directory exists
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	// Each connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// DB returns the underlying handle.
func (s *SQLite) DB() *sql.DB {
	return s.db
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// ReplaceAll swaps the table contents for records in one transaction.
func (s *SQLite) ReplaceAll(ctx context.Context, records []dataset.Record) error {
	if err := validateAll(records); err != nil {
		return err
	}

	return WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM tracks`); err != nil {
			return fmt.Errorf("clearing tracks: %w", err)
		}
		return insertAll(ctx, tx, records)
	})
}

// Append inserts records in one transaction.
func (s *SQLite) Append(ctx context.Context, records []dataset.Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := validateAll(records); err != nil {
		return err
	}

	return WithTx(ctx, s.db, func(tx *sql.Tx) error {
		return insertAll(ctx, tx, records)
	})
}

func insertAll(ctx context.Context, tx *sql.Tx, records []dataset.Record) error {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(dataset.Columns)), ", ")
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO tracks (`+selectColumns+`) VALUES (`+placeholders+`)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range records {
		if _, err := stmt.ExecContext(ctx, recordArgs(r)...); err != nil {
			return fmt.Errorf("inserting track %d: %w", i, err)
		}
	}
	return nil
}

// Load returns every track in insertion order.
func (s *SQLite) Load(ctx context.Context) ([]dataset.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM tracks ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying tracks: %w", err)
	}
	defer rows.Close()

	var records []dataset.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tracks: %w", err)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("%w: tracks table is empty", dataset.ErrNoData)
	}
	return records, nil
}

// Count returns the number of stored tracks.
func (s *SQLite) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tracks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting tracks: %w", err)
	}
	return n, nil
}

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS tracks (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		title            TEXT NOT NULL,
		artist           TEXT NOT NULL,
		emotion          TEXT NOT NULL,
		danceability     REAL NOT NULL,
		energy           REAL NOT NULL,
		valence          REAL NOT NULL,
		tempo            REAL NOT NULL,
		acousticness     REAL NOT NULL,
		instrumentalness REAL NOT NULL,
		liveness         REAL NOT NULL,
		speechiness      REAL NOT NULL,
		created_at       TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
	)
`
