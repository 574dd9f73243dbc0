package ml

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Scaler standardizes features to zero mean and unit variance using the
// population standard deviation. Constant columns keep a scale of 1.
type Scaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// FitScaler learns per-column mean and scale from X.
func FitScaler(X [][]float64) (*Scaler, error) {
	if len(X) == 0 {
		return nil, ErrEmptyInput
	}
	d := len(X[0])
	s := &Scaler{Mean: make([]float64, d), Scale: make([]float64, d)}

	col := make([]float64, len(X))
	for j := 0; j < d; j++ {
		for i, row := range X {
			if len(row) != d {
				return nil, fmt.Errorf("%w: row %d has %d features, want %d", ErrDimension, i, len(row), d)
			}
			col[i] = row[j]
		}
		mean, variance := stat.PopMeanVariance(col, nil)
		if !finite(mean, variance) {
			return nil, fmt.Errorf("%w: column %d has non-finite moments", ErrNumerical, j)
		}
		scale := math.Sqrt(variance)
		if scale < 1e-12 {
			scale = 1
		}
		s.Mean[j] = mean
		s.Scale[j] = scale
	}
	return s, nil
}

// Transform returns a standardized copy of x.
func (s *Scaler) Transform(x []float64) ([]float64, error) {
	if err := checkInput(x, len(s.Mean)); err != nil {
		return nil, err
	}
	out := make([]float64, len(x))
	for j, v := range x {
		out[j] = (v - s.Mean[j]) / s.Scale[j]
	}
	return out, nil
}

// TransformAll standardizes every row of X.
func (s *Scaler) TransformAll(X [][]float64) ([][]float64, error) {
	out := make([][]float64, len(X))
	for i, row := range X {
		scaled, err := s.Transform(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = scaled
	}
	return out, nil
}

// Validate checks a deserialized scaler.
func (s *Scaler) Validate() error {
	if len(s.Mean) == 0 || len(s.Mean) != len(s.Scale) {
		return fmt.Errorf("%w: scaler has %d means and %d scales", ErrInvalidModel, len(s.Mean), len(s.Scale))
	}
	for j := range s.Mean {
		if !finite(s.Mean[j], s.Scale[j]) || s.Scale[j] == 0 {
			return fmt.Errorf("%w: scaler column %d", ErrInvalidModel, j)
		}
	}
	return nil
}
