// Package features builds classifier input vectors from raw track attributes.
package features

import (
	"fmt"

	"github.com/justestif/moodtune/internal/dataset"
)

// Epsilon is added to valence before dividing energy by it.
const Epsilon = 0.001

// Vector widths.
const (
	RawWidth     = 8
	DerivedWidth = RawWidth + 3
)

// Raw is a track's audio features in dataset.FeatureColumns order:
// danceability, energy, valence, tempo, acousticness, instrumentalness,
// liveness, speechiness.
type Raw [RawWidth]float64

// Indexes into Raw.
const (
	Danceability = iota
	Energy
	Valence
	Tempo
	Acousticness
	Instrumentalness
	Liveness
	Speechiness
)

// Composite feature names, appended after the raw columns.
const (
	EnergyValenceRatio = "energy_valence_ratio"
	TempoEnergy        = "tempo_energy"
	AcousticDance      = "acoustic_dance"
)

// RawNames returns the column names of a raw vector.
func RawNames() []string {
	return append([]string(nil), dataset.FeatureColumns...)
}

// DerivedNames returns the column names of a derived vector.
func DerivedNames() []string {
	return append(RawNames(), EnergyValenceRatio, TempoEnergy, AcousticDance)
}

// FromRecord extracts the raw vector of a record.
func FromRecord(r dataset.Record) Raw {
	return Raw(r.Values())
}

// Slice returns the raw vector as a fresh slice.
func (r Raw) Slice() []float64 {
	out := make([]float64, RawWidth)
	copy(out, r[:])
	return out
}

// Extend returns the raw features followed by the three composites.
func (r Raw) Extend() []float64 {
	out := make([]float64, RawWidth, DerivedWidth)
	copy(out, r[:])
	return append(out,
		r[Energy]/(r[Valence]+Epsilon),
		r[Tempo]*r[Energy],
		r[Acousticness]*r[Danceability],
	)
}

// Derive builds the derived feature matrix for every record, in order.
// An empty table is reported as dataset.ErrNoData.
func Derive(records []dataset.Record) ([][]float64, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("deriving features: %w", dataset.ErrNoData)
	}
	rows := make([][]float64, len(records))
	for i, r := range records {
		rows[i] = FromRecord(r).Extend()
	}
	return rows, nil
}

// Matrix builds the raw feature matrix for every record, in order.
func Matrix(records []dataset.Record) ([][]float64, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("building feature matrix: %w", dataset.ErrNoData)
	}
	rows := make([][]float64, len(records))
	for i, r := range records {
		rows[i] = FromRecord(r).Slice()
	}
	return rows, nil
}
