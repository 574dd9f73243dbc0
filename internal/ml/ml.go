// Package ml implements the preprocessing, tree ensembles and evaluation helpers
// behind the emotion classifier. Classifiers learn integer class codes and are
// plain data so they can be serialized as JSON and validated on load.
package ml

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

// Common errors.
var (
	ErrEmptyInput   = errors.New("empty training set")
	ErrDimension    = errors.New("inconsistent feature dimensions")
	ErrStratify     = errors.New("cannot stratify")
	ErrNumerical    = errors.New("numerical failure")
	ErrSingleClass  = errors.New("training set has a single class")
	ErrInvalidModel = errors.New("invalid model")
)

// Classifier maps a feature vector to a class code.
type Classifier interface {
	Predict(x []float64) (int, error)
	NumFeatures() int
}

// checkMatrix validates a training matrix and returns its dimensions.
func checkMatrix(X [][]float64, y []int) (n, d int, err error) {
	n = len(X)
	if n == 0 {
		return 0, 0, ErrEmptyInput
	}
	if len(y) != n {
		return 0, 0, fmt.Errorf("%w: %d rows, %d labels", ErrDimension, n, len(y))
	}
	d = len(X[0])
	if d == 0 {
		return 0, 0, fmt.Errorf("%w: zero features", ErrDimension)
	}
	for i, row := range X {
		if len(row) != d {
			return 0, 0, fmt.Errorf("%w: row %d has %d features, want %d", ErrDimension, i, len(row), d)
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return 0, 0, fmt.Errorf("%w: row %d feature %d is not finite", ErrNumerical, i, j)
			}
		}
	}
	return n, d, nil
}

// encodeClasses returns the sorted distinct labels and each sample's position in them.
func encodeClasses(y []int) (classes []int, encoded []int) {
	classes = slices.Clone(y)
	slices.Sort(classes)
	classes = slices.Compact(classes)

	pos := make(map[int]int, len(classes))
	for i, c := range classes {
		pos[c] = i
	}
	encoded = make([]int, len(y))
	for i, label := range y {
		encoded[i] = pos[label]
	}
	return classes, encoded
}

func checkInput(x []float64, want int) error {
	if len(x) != want {
		return fmt.Errorf("%w: got %d features, want %d", ErrDimension, len(x), want)
	}
	return nil
}

func argmax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

func finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func validateClasses(classes []int) error {
	if len(classes) == 0 {
		return fmt.Errorf("%w: no classes", ErrInvalidModel)
	}
	if !slices.IsSorted(classes) || len(slices.Compact(slices.Clone(classes))) != len(classes) {
		return fmt.Errorf("%w: classes must be sorted and distinct", ErrInvalidModel)
	}
	return nil
}

// Pipeline standardizes the input before handing it to a classifier.
type Pipeline struct {
	Scaler     *Scaler
	Classifier Classifier
}

// Predict implements Classifier.
func (p *Pipeline) Predict(x []float64) (int, error) {
	scaled, err := p.Scaler.Transform(x)
	if err != nil {
		return 0, err
	}
	return p.Classifier.Predict(scaled)
}

// NumFeatures implements Classifier.
func (p *Pipeline) NumFeatures() int {
	return len(p.Scaler.Mean)
}
