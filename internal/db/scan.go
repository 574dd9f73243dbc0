package db

import (
	"fmt"
	"strings"

	"github.com/justestif/moodtune/internal/dataset"
	"github.com/justestif/moodtune/internal/emotion"
)

// selectColumns lists the record columns in dataset.Columns order.
var selectColumns = strings.Join(dataset.Columns, ", ")

// rowScanner is satisfied by pgx.Rows and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanRecord reads one row selected with selectColumns.
func scanRecord(row rowScanner) (dataset.Record, error) {
	var (
		rec    dataset.Record
		label  string
		values [8]float64
	)
	dest := []any{&rec.Title, &rec.Artist, &label}
	for i := range values {
		dest = append(dest, &values[i])
	}
	if err := row.Scan(dest...); err != nil {
		return dataset.Record{}, fmt.Errorf("scanning track: %w", err)
	}

	l, err := emotion.Parse(label)
	if err != nil {
		return dataset.Record{}, fmt.Errorf("track %q: %w", rec.Title, err)
	}
	rec.Emotion = l
	rec.SetValues(values)
	return rec, nil
}

// recordArgs returns the insert arguments for a record in dataset.Columns order.
func recordArgs(r dataset.Record) []any {
	args := []any{r.Title, r.Artist, r.Emotion.String()}
	for _, v := range r.Values() {
		args = append(args, v)
	}
	return args
}

// validateAll rejects records that could not be read back.
func validateAll(records []dataset.Record) error {
	for i, r := range records {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}
	return nil
}
