package ml

import (
	"encoding/json"
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blobs returns k well separated clusters of n points each in d dimensions.
func blobs(k, n, d int, seed uint64) ([][]float64, []int) {
	rng := rand.New(rand.NewPCG(seed, seed))
	var X [][]float64
	var y []int
	for c := 0; c < k; c++ {
		for i := 0; i < n; i++ {
			row := make([]float64, d)
			for j := range row {
				row[j] = rng.NormFloat64()*0.3 + float64(c*5)
			}
			X = append(X, row)
			y = append(y, c)
		}
	}
	return X, y
}

func TestScaler(t *testing.T) {
	X := [][]float64{{1, 5}, {2, 5}, {3, 5}}
	s, err := FitScaler(X)
	require.NoError(t, err)

	assert.InDelta(t, 2, s.Mean[0], 1e-12)
	assert.InDelta(t, math.Sqrt(2.0/3.0), s.Scale[0], 1e-12)
	assert.Equal(t, 1.0, s.Scale[1], "constant column keeps unit scale")

	out, err := s.Transform([]float64{3, 5})
	require.NoError(t, err)
	assert.InDelta(t, 1/math.Sqrt(2.0/3.0), out[0], 1e-12)
	assert.Equal(t, 0.0, out[1])

	_, err = s.Transform([]float64{1})
	assert.ErrorIs(t, err, ErrDimension)

	_, err = FitScaler(nil)
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestScalerValidate(t *testing.T) {
	tests := []struct {
		name    string
		scaler  Scaler
		wantErr bool
	}{
		{"valid", Scaler{Mean: []float64{0, 1}, Scale: []float64{1, 2}}, false},
		{"empty", Scaler{}, true},
		{"length mismatch", Scaler{Mean: []float64{0}, Scale: []float64{1, 2}}, true},
		{"zero scale", Scaler{Mean: []float64{0}, Scale: []float64{0}}, true},
		{"nan mean", Scaler{Mean: []float64{math.NaN()}, Scale: []float64{1}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.scaler.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidModel)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCutPoints(t *testing.T) {
	assert.Nil(t, cutPoints([]float64{1}, 8))
	assert.Equal(t, []float64{1.5, 2.5}, cutPoints([]float64{1, 2, 3}, 8))

	unique := make([]float64, 1000)
	for i := range unique {
		unique[i] = float64(i)
	}
	cuts := cutPoints(unique, 16)
	assert.LessOrEqual(t, len(cuts), 15)
	assert.IsIncreasing(t, cuts)
}

func TestPartition(t *testing.T) {
	col := []uint8{3, 0, 2, 1, 0}
	idx := []int{0, 1, 2, 3, 4}
	k := partition(idx, col, 1)
	require.Equal(t, 3, k)
	for _, i := range idx[:k] {
		assert.LessOrEqual(t, col[i], uint8(1))
	}
	for _, i := range idx[k:] {
		assert.Greater(t, col[i], uint8(1))
	}
}

func TestGradientBoosting(t *testing.T) {
	X, y := blobs(3, 40, 2, 1)
	cfg := DefaultBoostingConfig()
	cfg.Stages = 20

	var calls int
	cfg.Progress = func(done, total int) {
		calls++
		assert.Equal(t, 20, total)
	}

	m, err := FitGradientBoosting(X, y, cfg)
	require.NoError(t, err)
	assert.Equal(t, 20, calls)
	assert.Equal(t, []int{0, 1, 2}, m.Classes)
	assert.Equal(t, 2, m.NumFeatures())
	require.NoError(t, m.Validate())

	pred, err := PredictAll(m, X)
	require.NoError(t, err)
	assert.Equal(t, 1.0, Accuracy(y, pred))

	_, err = m.Predict([]float64{1})
	assert.ErrorIs(t, err, ErrDimension)
}

func TestGradientBoostingErrors(t *testing.T) {
	cfg := DefaultBoostingConfig()

	_, err := FitGradientBoosting(nil, nil, cfg)
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = FitGradientBoosting([][]float64{{1}, {2}}, []int{4, 4}, cfg)
	assert.ErrorIs(t, err, ErrSingleClass)

	_, err = FitGradientBoosting([][]float64{{1}, {2, 3}}, []int{0, 1}, cfg)
	assert.ErrorIs(t, err, ErrDimension)

	_, err = FitGradientBoosting([][]float64{{1}, {math.Inf(1)}}, []int{0, 1}, cfg)
	assert.ErrorIs(t, err, ErrNumerical)
}

func TestRandomForest(t *testing.T) {
	X, y := blobs(4, 25, 3, 2)
	for i := range y {
		y[i] += 10
	}
	cfg := DefaultForestConfig()
	cfg.Trees = 15

	m, err := FitRandomForest(X, y, cfg)
	require.NoError(t, err)
	assert.Equal(t, []int{10, 11, 12, 13}, m.Classes)
	assert.Len(t, m.Trees, 15)
	require.NoError(t, m.Validate())

	pred, err := PredictAll(m, X)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, Accuracy(y, pred), 0.95)

	probs, err := m.Probabilities(X[0])
	require.NoError(t, err)
	var total float64
	for _, p := range probs {
		total += p
	}
	assert.InDelta(t, 1, total, 1e-9)
}

func TestRandomForestDeterministic(t *testing.T) {
	X, y := blobs(3, 20, 4, 3)
	cfg := DefaultForestConfig()
	cfg.Trees = 10

	cfg.Workers = 1
	a, err := FitRandomForest(X, y, cfg)
	require.NoError(t, err)
	cfg.Workers = 4
	b, err := FitRandomForest(X, y, cfg)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestRandomForestSingleClass(t *testing.T) {
	X := [][]float64{{1, 2}, {3, 4}, {5, 6}}
	m, err := FitRandomForest(X, []int{5, 5, 5}, DefaultForestConfig())
	require.NoError(t, err)

	got, err := m.Predict([]float64{0, 0})
	require.NoError(t, err)
	assert.Equal(t, 5, got)
}

func TestModelJSONRoundTrip(t *testing.T) {
	X, y := blobs(3, 15, 2, 4)
	cfg := DefaultBoostingConfig()
	cfg.Stages = 5
	gb, err := FitGradientBoosting(X, y, cfg)
	require.NoError(t, err)

	data, err := json.Marshal(gb)
	require.NoError(t, err)
	var back GradientBoosting
	require.NoError(t, json.Unmarshal(data, &back))
	require.NoError(t, back.Validate())

	for _, row := range X {
		want, _ := gb.Predict(row)
		got, err := back.Predict(row)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestTreeValidate(t *testing.T) {
	tests := []struct {
		name string
		tree Tree
	}{
		{"empty", Tree{}},
		{"cycle", Tree{Nodes: []Node{{Feature: 0, Left: 0, Right: 0}}}},
		{"child out of range", Tree{Nodes: []Node{{Feature: 0, Left: 1, Right: 5}, {Feature: -1, Value: []float64{1}}}}},
		{"feature out of range", Tree{Nodes: []Node{{Feature: 3, Left: 1, Right: 2}, {Feature: -1, Value: []float64{1}}, {Feature: -1, Value: []float64{1}}}}},
		{"bad leaf", Tree{Nodes: []Node{{Feature: -1, Value: []float64{1, 2}}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.tree.validate(2, 1), ErrInvalidModel)
		})
	}
}

func TestStratifiedSplit(t *testing.T) {
	y := make([]int, 0, 100)
	for i := 0; i < 100; i++ {
		y = append(y, i%4)
	}
	fold, err := StratifiedSplit(y, 0.2, 42)
	require.NoError(t, err)
	assert.Len(t, fold.Test, 20)
	assert.Len(t, fold.Train, 80)

	perClass := map[int]int{}
	for _, i := range fold.Test {
		perClass[y[i]]++
	}
	assert.Equal(t, map[int]int{0: 5, 1: 5, 2: 5, 3: 5}, perClass)

	again, err := StratifiedSplit(y, 0.2, 42)
	require.NoError(t, err)
	assert.Equal(t, fold, again)

	_, err = StratifiedSplit([]int{0, 0, 0, 1}, 0.2, 42)
	assert.ErrorIs(t, err, ErrStratify)
}

func TestStratifiedSplitSmallClass(t *testing.T) {
	fold, err := StratifiedSplit([]int{0, 0, 1, 1, 1, 1, 1, 1, 1, 1}, 0.2, 1)
	require.NoError(t, err)

	classes := map[int]bool{}
	for _, i := range fold.Train {
		classes[[]int{0, 0, 1, 1, 1, 1, 1, 1, 1, 1}[i]] = true
	}
	assert.Len(t, classes, 2, "every class stays in training")
}

func TestStratifiedSplitTestCount(t *testing.T) {
	tests := []struct {
		name     string
		sizes    []int
		wantTest int
	}{
		{"two classes", []int{2, 8}, 2},
		{"uneven classes", []int{7, 13, 4}, 5},
		{"generator weights", []int{56, 44, 40, 36, 40, 36, 40}, 59},
		{"remainder goes to largest fraction", []int{50, 30, 21}, 21},
		{"one per class minimum", []int{3, 3, 3, 3, 3, 3, 3}, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var y []int
			for c, n := range tt.sizes {
				for i := 0; i < n; i++ {
					y = append(y, c)
				}
			}

			fold, err := StratifiedSplit(y, 0.2, 42)
			require.NoError(t, err)
			assert.Len(t, fold.Test, tt.wantTest)
			assert.Len(t, fold.Train, len(y)-tt.wantTest)

			testPerClass := make([]int, len(tt.sizes))
			for _, i := range fold.Test {
				testPerClass[y[i]]++
			}
			for c, n := range testPerClass {
				assert.GreaterOrEqual(t, n, 1, "class %d missing from test", c)
				assert.Less(t, n, tt.sizes[c], "class %d missing from train", c)
			}
		})
	}
}

func TestAllocate(t *testing.T) {
	assert.Equal(t, []int{11, 6, 4}, allocate([]int{50, 30, 21}, 21))
	assert.Equal(t, []int{1, 1}, allocate([]int{2, 8}, 2))
	assert.Equal(t, []int{5, 5, 5, 5}, allocate([]int{25, 25, 25, 25}, 20))
}

func TestShuffleSplit(t *testing.T) {
	tests := []struct {
		n         int
		wantTrain int
		wantTest  int
	}{
		{1, 1, 1},
		{2, 1, 1},
		{5, 4, 1},
		{11, 8, 3},
		{100, 80, 20},
	}
	for _, tt := range tests {
		fold, err := ShuffleSplit(tt.n, 0.2, 42)
		require.NoError(t, err)
		assert.Len(t, fold.Train, tt.wantTrain, "n=%d", tt.n)
		assert.Len(t, fold.Test, tt.wantTest, "n=%d", tt.n)
	}

	_, err := ShuffleSplit(0, 0.2, 42)
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestStratifiedKFold(t *testing.T) {
	y := []int{0, 0, 0, 0, 0, 1, 1, 1, 1, 1, 2, 2, 2}
	folds, err := StratifiedKFold(y, 5, 42)
	require.NoError(t, err)
	require.Len(t, folds, 5)

	seen := make([]int, len(y))
	for _, f := range folds {
		assert.Equal(t, len(y), len(f.Train)+len(f.Test))
		for _, i := range f.Test {
			seen[i]++
		}
	}
	for i, n := range seen {
		assert.Equal(t, 1, n, "sample %d tested once", i)
	}

	_, err = StratifiedKFold([]int{0, 1, 2, 0, 1, 2}, 5, 42)
	assert.ErrorIs(t, err, ErrStratify)

	_, err = StratifiedKFold([]int{0, 1}, 5, 42)
	assert.ErrorIs(t, err, ErrStratify)

	_, err = StratifiedKFold(y, 1, 42)
	assert.Error(t, err)
}

func TestCrossValidate(t *testing.T) {
	X, y := blobs(2, 20, 2, 5)
	folds, err := StratifiedKFold(y, 4, 42)
	require.NoError(t, err)

	cfg := DefaultForestConfig()
	cfg.Trees = 5
	scores, err := CrossValidate(X, y, folds, func(X [][]float64, y []int) (Classifier, error) {
		return FitRandomForest(X, y, cfg)
	})
	require.NoError(t, err)
	require.Len(t, scores, 4)
	for _, s := range scores {
		assert.Equal(t, 1.0, s)
	}

	boom := errors.New("boom")
	_, err = CrossValidate(X, y, folds, func([][]float64, []int) (Classifier, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestMeanStd(t *testing.T) {
	mean, std := MeanStd([]float64{0.8, 0.9, 1.0})
	assert.InDelta(t, 0.9, mean, 1e-12)
	assert.InDelta(t, math.Sqrt(0.02/3), std, 1e-12)

	mean, std = MeanStd(nil)
	assert.Zero(t, mean)
	assert.Zero(t, std)
}

func TestAccuracy(t *testing.T) {
	assert.Equal(t, 0.5, Accuracy([]int{1, 2, 3, 4}, []int{1, 2, 0, 0}))
	assert.Zero(t, Accuracy(nil, nil))
	assert.Zero(t, Accuracy([]int{1}, []int{1, 2}))
}

func TestClassReport(t *testing.T) {
	report := ClassReport([]int{0, 0, 1, 1, 2}, []int{0, 1, 1, 1, 0})
	require.Len(t, report, 3)

	tests := []struct {
		class     int
		precision float64
		recall    float64
		f1        float64
		support   int
	}{
		{0, 0.5, 0.5, 0.5, 2},
		{1, 2.0 / 3, 1, 0.8, 2},
		{2, 0, 0, 0, 1},
	}
	for i, tt := range tests {
		got := report[i]
		assert.Equal(t, tt.class, got.Class)
		assert.InDelta(t, tt.precision, got.Precision, 1e-12, "class %d precision", tt.class)
		assert.InDelta(t, tt.recall, got.Recall, 1e-12, "class %d recall", tt.class)
		assert.InDelta(t, tt.f1, got.F1, 1e-12, "class %d f1", tt.class)
		assert.Equal(t, tt.support, got.Support)
	}

	predictedOnly := ClassReport([]int{0}, []int{3})
	require.Len(t, predictedOnly, 2)
	assert.Equal(t, ClassScore{Class: 3}, predictedOnly[1])

	assert.Nil(t, ClassReport([]int{1}, nil))
}

func TestPipeline(t *testing.T) {
	X, y := blobs(2, 20, 2, 6)
	s, err := FitScaler(X)
	require.NoError(t, err)
	scaled, err := s.TransformAll(X)
	require.NoError(t, err)

	cfg := DefaultForestConfig()
	cfg.Trees = 5
	rf, err := FitRandomForest(scaled, y, cfg)
	require.NoError(t, err)

	p := &Pipeline{Scaler: s, Classifier: rf}
	assert.Equal(t, 2, p.NumFeatures())
	got, err := p.Predict(X[0])
	require.NoError(t, err)
	assert.Equal(t, y[0], got)
}
