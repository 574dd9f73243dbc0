package model

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justestif/moodtune/internal/features"
	"github.com/justestif/moodtune/internal/ml"
)

func sampleData(width int) ([][]float64, []int) {
	var X [][]float64
	var y []int
	for c := 0; c < 3; c++ {
		for i := 0; i < 10; i++ {
			row := make([]float64, width)
			for j := range row {
				row[j] = float64(c) + float64(i)*0.01 + float64(j)*0.001
			}
			X = append(X, row)
			y = append(y, c)
		}
	}
	return X, y
}

func fallbackModel(t *testing.T) *Model {
	t.Helper()
	X, y := sampleData(features.RawWidth)
	cfg := ml.DefaultForestConfig()
	cfg.Trees = 5
	rf, err := ml.FitRandomForest(X, y, cfg)
	require.NoError(t, err)
	return New(Fallback, nil, rf, Metrics{TestAccuracy: 1, TrainSize: 24, TestSize: 6})
}

func primaryModel(t *testing.T) *Model {
	t.Helper()
	X, y := sampleData(features.DerivedWidth)
	scaler, err := ml.FitScaler(X)
	require.NoError(t, err)
	scaled, err := scaler.TransformAll(X)
	require.NoError(t, err)

	cfg := ml.DefaultBoostingConfig()
	cfg.Stages = 3
	gb, err := ml.FitGradientBoosting(scaled, y, cfg)
	require.NoError(t, err)
	return New(Primary, scaler, gb, Metrics{TestAccuracy: 0.9, CVMean: 0.85, CVStd: 0.05, CVScores: []float64{0.8, 0.9}})
}

func rawOf(row []float64) features.Raw {
	var r features.Raw
	copy(r[:], row)
	return r
}

func TestModelTypeAndWidth(t *testing.T) {
	fb := fallbackModel(t)
	assert.Equal(t, TypeRandomForest, fb.Type())
	assert.Equal(t, features.RawWidth, fb.NumFeatures())
	assert.Equal(t, features.RawNames(), fb.FeatureNames)

	pm := primaryModel(t)
	assert.Equal(t, TypeGradientBoosting, pm.Type())
	assert.Equal(t, features.DerivedWidth, pm.NumFeatures())

	var none *Model
	assert.Equal(t, TypeNone, none.Type())
	assert.Zero(t, none.NumFeatures())
}

func TestModelValidate(t *testing.T) {
	assert.NoError(t, fallbackModel(t).Validate())
	assert.NoError(t, primaryModel(t).Validate())

	pm := primaryModel(t)
	pm.Scaler = nil
	assert.ErrorIs(t, pm.Validate(), ErrCorruptArtifact)

	fb := fallbackModel(t)
	fb.Kind = Primary
	assert.ErrorIs(t, fb.Validate(), ErrCorruptArtifact)

	fb = fallbackModel(t)
	fb.Kind = "other"
	assert.ErrorIs(t, fb.Validate(), ErrCorruptArtifact)
}

func TestStoreRoundTripFallback(t *testing.T) {
	store := NewStore(t.TempDir())
	m := fallbackModel(t)
	require.NoError(t, store.Save(m))
	assert.True(t, store.Exists())
	assert.NoFileExists(t, store.ScalerPath())

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, m.ID, got.ID)
	assert.Equal(t, Fallback, got.Kind)
	assert.True(t, m.TrainedAt.Equal(got.TrainedAt))
	assert.Equal(t, m.Metrics, got.Metrics)

	X, _ := sampleData(features.RawWidth)
	for _, row := range X {
		want, err := m.Predict(rawOf(row))
		require.NoError(t, err)
		have, err := got.Predict(rawOf(row))
		require.NoError(t, err)
		assert.Equal(t, want, have)
	}
}

func TestStoreRoundTripPrimary(t *testing.T) {
	store := NewStore(t.TempDir())
	m := primaryModel(t)
	require.NoError(t, store.Save(m))
	assert.FileExists(t, store.ScalerPath())

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, Primary, got.Kind)
	assert.Equal(t, m.Scaler, got.Scaler)

	raw := features.Raw{0.5, 0.6, 0.4, 120, 0.2, 0.1, 0.15, 0.05}
	want, err := m.Predict(raw)
	require.NoError(t, err)
	have, err := got.Predict(raw)
	require.NoError(t, err)
	assert.Equal(t, want, have)
}

func TestStoreLoadMissing(t *testing.T) {
	store := NewStore(t.TempDir())
	assert.False(t, store.Exists())
	_, err := store.Load()
	assert.ErrorIs(t, err, ErrNoModel)
}

func TestStoreRejectsMismatchedScaler(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	require.NoError(t, store.Save(primaryModel(t)))

	stale, err := os.ReadFile(store.ScalerPath())
	require.NoError(t, err)
	require.NoError(t, store.Save(primaryModel(t)))
	require.NoError(t, os.WriteFile(store.ScalerPath(), stale, 0o644))

	_, err = store.Load()
	assert.ErrorIs(t, err, ErrCorruptArtifact)
}

func TestStoreRejectsMissingScaler(t *testing.T) {
	store := NewStore(t.TempDir())
	require.NoError(t, store.Save(primaryModel(t)))
	require.NoError(t, os.Remove(store.ScalerPath()))

	_, err := store.Load()
	assert.ErrorIs(t, err, ErrCorruptArtifact)
}

func TestStoreRejectsTruncatedModel(t *testing.T) {
	store := NewStore(t.TempDir())
	require.NoError(t, store.Save(fallbackModel(t)))

	data, err := os.ReadFile(store.ModelPath())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(store.ModelPath(), data[:len(data)/2], 0o644))

	_, err = store.Load()
	assert.ErrorIs(t, err, ErrCorruptArtifact)
}

func TestStoreRejectsBadTree(t *testing.T) {
	store := NewStore(t.TempDir())
	m := fallbackModel(t)
	rf := m.Classifier.(*ml.RandomForest)
	rf.Trees[0].Nodes[0] = ml.Node{Feature: 0, Left: 0, Right: 0}

	classifier, err := json.Marshal(rf)
	require.NoError(t, err)
	require.NoError(t, writeJSON(store.ModelPath(), modelArtifact{
		Version:      formatVersion,
		ID:           uuid.New(),
		Kind:         Fallback,
		Type:         TypeRandomForest,
		FeatureNames: features.RawNames(),
		Classifier:   classifier,
	}))

	_, err = store.Load()
	assert.ErrorIs(t, err, ErrCorruptArtifact)
}

func TestStoreFallbackRemovesStaleScaler(t *testing.T) {
	store := NewStore(t.TempDir())
	require.NoError(t, store.Save(primaryModel(t)))
	require.FileExists(t, store.ScalerPath())

	require.NoError(t, store.Save(fallbackModel(t)))
	assert.NoFileExists(t, store.ScalerPath())

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, Fallback, got.Kind)
}

func TestStoreNoTempFilesLeft(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	require.NoError(t, store.Save(primaryModel(t)))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{ModelFile, ScalerFile}, names)
}
