// Package db stores the track table in PostgreSQL or SQLite so it can be
// seeded once and used as a training source.
package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/justestif/moodtune/internal/dataset"
)

// Common errors.
var (
	ErrUnsupportedDSN = errors.New("unsupported database DSN")
)

// TrackStore is a persistent track table.
type TrackStore interface {
	dataset.Source
	ReplaceAll(ctx context.Context, records []dataset.Record) error
	Append(ctx context.Context, records []dataset.Record) error
	Count(ctx context.Context) (int, error)
	Close() error
}

// Open connects to the store named by dsn. postgres:// and postgresql://
// URLs use PostgreSQL; sqlite:// URLs and bare paths use SQLite.
func Open(ctx context.Context, dsn string) (TrackStore, error) {
	switch {
	case dsn == "":
		return nil, fmt.Errorf("%w: empty", ErrUnsupportedDSN)
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		pg, err := New(ctx, dsn)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		return &pgStore{TrackRepository: pg.Tracks(), db: pg}, nil
	case strings.Contains(dsn, "://") && !strings.HasPrefix(dsn, "sqlite://"):
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDSN, dsn)
	default:
		return OpenSQLite(strings.TrimPrefix(dsn, "sqlite://"))
	}
}

// DB wraps a PostgreSQL connection pool.
type DB struct {
	pool *pgxpool.Pool
}

// New creates a new database connection pool.
func New(ctx context.Context, databaseURL string) (*DB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Migrate creates the tracks table if it does not exist.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// Close closes the database connection pool.
func (db *DB) Close() {
	db.pool.Close()
}

// Pool returns the underlying connection pool for advanced operations.
func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

// Tracks returns a TrackRepository.
func (db *DB) Tracks() *TrackRepository {
	return &TrackRepository{pool: db.pool}
}

// pgStore adapts a TrackRepository to TrackStore.
type pgStore struct {
	*TrackRepository
	db *DB
}

func (s *pgStore) Close() error {
	s.db.Close()
	return nil
}

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS tracks (
		id               BIGSERIAL PRIMARY KEY,
		title            TEXT NOT NULL,
		artist           TEXT NOT NULL,
		emotion          TEXT NOT NULL,
		danceability     DOUBLE PRECISION NOT NULL,
		energy           DOUBLE PRECISION NOT NULL,
		valence          DOUBLE PRECISION NOT NULL,
		tempo            DOUBLE PRECISION NOT NULL,
		acousticness     DOUBLE PRECISION NOT NULL,
		instrumentalness DOUBLE PRECISION NOT NULL,
		liveness         DOUBLE PRECISION NOT NULL,
		speechiness      DOUBLE PRECISION NOT NULL,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)
`
