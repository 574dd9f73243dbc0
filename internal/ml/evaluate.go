package ml

import (
	"fmt"
	"math"
	"runtime"
	"slices"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
)

// FitFunc trains a classifier on a subset of the data.
type FitFunc func(X [][]float64, y []int) (Classifier, error)

// PredictAll classifies every row of X.
func PredictAll(c Classifier, X [][]float64) ([]int, error) {
	out := make([]int, len(X))
	for i, row := range X {
		p, err := c.Predict(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = p
	}
	return out, nil
}

// Accuracy returns the fraction of positions where want and got agree.
func Accuracy(want, got []int) float64 {
	if len(want) == 0 || len(want) != len(got) {
		return 0
	}
	hits := 0
	for i := range want {
		if want[i] == got[i] {
			hits++
		}
	}
	return float64(hits) / float64(len(want))
}

// ClassScore is the held-out precision, recall and F1 of one class.
type ClassScore struct {
	Class     int
	Precision float64
	Recall    float64
	F1        float64
	Support   int // occurrences of Class in want
}

// ClassReport scores every class seen in want or got, in class order. A class
// that is never predicted has zero precision.
func ClassReport(want, got []int) []ClassScore {
	if len(want) != len(got) {
		return nil
	}
	hits := map[int]int{}
	actual := map[int]int{}
	predicted := map[int]int{}
	for i := range want {
		actual[want[i]]++
		predicted[got[i]]++
		if want[i] == got[i] {
			hits[want[i]]++
		}
	}

	var classes []int
	for c := range actual {
		classes = append(classes, c)
	}
	for c := range predicted {
		if _, ok := actual[c]; !ok {
			classes = append(classes, c)
		}
	}
	slices.Sort(classes)

	report := make([]ClassScore, len(classes))
	for i, c := range classes {
		s := ClassScore{Class: c, Support: actual[c]}
		if predicted[c] > 0 {
			s.Precision = float64(hits[c]) / float64(predicted[c])
		}
		if actual[c] > 0 {
			s.Recall = float64(hits[c]) / float64(actual[c])
		}
		if s.Precision+s.Recall > 0 {
			s.F1 = 2 * s.Precision * s.Recall / (s.Precision + s.Recall)
		}
		report[i] = s
	}
	return report
}

// CrossValidate fits one classifier per fold in parallel and returns the
// held-out accuracy of each, in fold order.
func CrossValidate(X [][]float64, y []int, folds []Fold, fit FitFunc) ([]float64, error) {
	scores := make([]float64, len(folds))

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for f, fold := range folds {
		g.Go(func() error {
			trainX, trainY := Take(X, y, fold.Train)
			testX, testY := Take(X, y, fold.Test)

			c, err := fit(trainX, trainY)
			if err != nil {
				return fmt.Errorf("fold %d: %w", f+1, err)
			}
			pred, err := PredictAll(c, testX)
			if err != nil {
				return fmt.Errorf("fold %d: %w", f+1, err)
			}
			scores[f] = Accuracy(testY, pred)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return scores, nil
}

// MeanStd returns the mean and population standard deviation of scores.
func MeanStd(scores []float64) (mean, std float64) {
	if len(scores) == 0 {
		return 0, 0
	}
	mean, variance := stat.PopMeanVariance(scores, nil)
	return mean, math.Sqrt(variance)
}
