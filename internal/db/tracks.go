package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/justestif/moodtune/internal/dataset"
)

// TrackRepository handles track database operations.
type TrackRepository struct {
	pool *pgxpool.Pool
}

// ReplaceAll swaps the table contents for records in one transaction.
func (r *TrackRepository) ReplaceAll(ctx context.Context, records []dataset.Record) error {
	if err := validateAll(records); err != nil {
		return err
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM tracks`); err != nil {
			return fmt.Errorf("clearing tracks: %w", err)
		}

		_, err := tx.CopyFrom(ctx,
			pgx.Identifier{"tracks"},
			dataset.Columns,
			pgx.CopyFromSlice(len(records), func(i int) ([]any, error) {
				return recordArgs(records[i]), nil
			}),
		)
		if err != nil {
			return fmt.Errorf("copying tracks: %w", err)
		}
		return nil
	})
}

// Append inserts multiple tracks efficiently.
func (r *TrackRepository) Append(ctx context.Context, records []dataset.Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := validateAll(records); err != nil {
		return err
	}

	query := `
		INSERT INTO tracks (` + selectColumns + `)
		SELECT * FROM unnest($1::text[], $2::text[], $3::text[],
			$4::float8[], $5::float8[], $6::float8[], $7::float8[],
			$8::float8[], $9::float8[], $10::float8[], $11::float8[])
	`

	titles := make([]string, len(records))
	artists := make([]string, len(records))
	labels := make([]string, len(records))
	var columns [8][]float64
	for i := range columns {
		columns[i] = make([]float64, len(records))
	}

	for i, rec := range records {
		titles[i] = rec.Title
		artists[i] = rec.Artist
		labels[i] = rec.Emotion.String()
		for j, v := range rec.Values() {
			columns[j][i] = v
		}
	}

	args := []any{titles, artists, labels}
	for _, c := range columns {
		args = append(args, c)
	}

	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("batch inserting tracks: %w", err)
	}
	return nil
}

// Load returns every track in insertion order.
func (r *TrackRepository) Load(ctx context.Context) ([]dataset.Record, error) {
	query := `SELECT ` + selectColumns + ` FROM tracks ORDER BY id`
	rows, err := r.pool.Query(ctx, query)
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
func (r *TrackRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tracks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting tracks: %w", err)
	}
	return n, nil
}
