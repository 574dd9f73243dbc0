package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/justestif/moodtune/internal/emotion"
)

// CSVSource reads the track table from a CSV file with a header row.
type CSVSource struct {
	Path string
}

// NewCSVSource returns a source reading path, or DefaultPath when path is empty.
func NewCSVSource(path string) *CSVSource {
	if path == "" {
		path = DefaultPath
	}
	return &CSVSource{Path: path}
}

// Load reads and validates every row of the file.
// A missing file is reported as ErrNoData.
func (s *CSVSource) Load(_ context.Context) ([]Record, error) {
	f, err := os.Open(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s does not exist", ErrNoData, s.Path)
	}
	if err != nil {
		return nil, fmt.Errorf("opening dataset: %w", err)
	}
	defer f.Close()

	records, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.Path, err)
	}
	return records, nil
}

// ReadCSV parses a track table. Columns are located by header name; extra
// columns are ignored. Missing columns or an empty table yield ErrNoData.
func ReadCSV(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty file", ErrNoData)
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	cols := make([]int, len(Columns))
	for i, name := range Columns {
		pos, ok := index[name]
		if !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrNoData, name)
		}
		cols[i] = pos
	}

	var records []Record
	line := 1
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rec, err := parseRow(row, cols)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no rows", ErrNoData)
	}
	return records, nil
}

func parseRow(row []string, cols []int) (Record, error) {
	label, err := emotion.Parse(row[cols[2]])
	if err != nil {
		return Record{}, err
	}

	rec := Record{
		Title:   row[cols[0]],
		Artist:  row[cols[1]],
		Emotion: label,
	}

	var values [8]float64
	for i := range values {
		raw := strings.TrimSpace(row[cols[3+i]])
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Record{}, fmt.Errorf("column %s: %w", FeatureColumns[i], err)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Record{}, fmt.Errorf("column %s: value %q is not finite", FeatureColumns[i], raw)
		}
		values[i] = v
	}
	rec.SetValues(values)
	return rec, nil
}

// WriteCSV writes records with a header row in Columns order.
func WriteCSV(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	row := make([]string, len(Columns))
	for _, r := range records {
		row[0] = r.Title
		row[1] = r.Artist
		row[2] = r.Emotion.String()
		for i, v := range r.Values() {
			row[3+i] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// SaveCSV writes records to path, creating or truncating the file.
func SaveCSV(path string, records []Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := WriteCSV(f, records); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
