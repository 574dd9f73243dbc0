// Package model defines the trained emotion classifier artifact and its
// on-disk store.
package model

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/justestif/moodtune/internal/features"
	"github.com/justestif/moodtune/internal/ml"
)

// Common errors.
var (
	ErrNoModel         = errors.New("no trained model")
	ErrCorruptArtifact = errors.New("corrupt model artifact")
)

// Kind tells which training pipeline produced a model.
type Kind string

const (
	// Primary models scale the derived feature set and use gradient boosting.
	Primary Kind = "primary"
	// Fallback models use the raw features with a random forest.
	Fallback Kind = "fallback"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == Primary || k == Fallback
}

// Width returns the input width a model of this kind expects.
func (k Kind) Width() int {
	if k == Primary {
		return features.DerivedWidth
	}
	return features.RawWidth
}

// FeatureNames returns the input column names for this kind.
func (k Kind) FeatureNames() []string {
	if k == Primary {
		return features.DerivedNames()
	}
	return features.RawNames()
}

// Classifier type names as reported by ModelInfo.
const (
	TypeGradientBoosting = "GradientBoosting"
	TypeRandomForest     = "RandomForest"
	TypeNone             = "none"
)

// Metrics describes how a model scored during training.
type Metrics struct {
	TestAccuracy float64   `json:"test_accuracy"`
	TrainSize    int       `json:"train_size"`
	TestSize     int       `json:"test_size"`
	CVScores     []float64 `json:"cv_scores,omitempty"`
	CVMean       float64   `json:"cv_mean,omitempty"`
	CVStd        float64   `json:"cv_std,omitempty"`

	Classes []ClassMetrics `json:"classes,omitempty"`
}

// ClassMetrics scores one label on the held-out split.
type ClassMetrics struct {
	Label     string  `json:"label"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// Model is an immutable trained classifier plus the metadata of the run that
// produced it. Primary models carry the scaler fitted on their training split.
type Model struct {
	ID           uuid.UUID
	Kind         Kind
	TrainedAt    time.Time
	FeatureNames []string
	Metrics      Metrics
	Scaler       *ml.Scaler
	Classifier   ml.Classifier
}

// New wraps a freshly trained classifier in a model with a new run ID.
func New(kind Kind, scaler *ml.Scaler, c ml.Classifier, metrics Metrics) *Model {
	return &Model{
		ID:           uuid.New(),
		Kind:         kind,
		TrainedAt:    time.Now().UTC(),
		FeatureNames: kind.FeatureNames(),
		Metrics:      metrics,
		Scaler:       scaler,
		Classifier:   c,
	}
}

// Input builds the classifier input for a raw vector: primary models get the
// composites appended and the result standardized, fallback models the raw
// features unchanged.
func (m *Model) Input(raw features.Raw) ([]float64, error) {
	if m.Kind != Primary {
		return raw.Slice(), nil
	}
	if m.Scaler == nil {
		return nil, fmt.Errorf("%w: primary model without scaler", ErrCorruptArtifact)
	}
	return m.Scaler.Transform(raw.Extend())
}

// Predict returns the class code the classifier assigns to raw. The code is
// not checked against the emotion table.
func (m *Model) Predict(raw features.Raw) (int, error) {
	x, err := m.Input(raw)
	if err != nil {
		return 0, err
	}
	return m.Classifier.Predict(x)
}

// NumFeatures returns the width of the vector the classifier consumes.
func (m *Model) NumFeatures() int {
	if m == nil || m.Classifier == nil {
		return 0
	}
	return m.Classifier.NumFeatures()
}

// Type names the classifier family.
func (m *Model) Type() string {
	if m == nil {
		return TypeNone
	}
	switch m.Classifier.(type) {
	case *ml.GradientBoosting:
		return TypeGradientBoosting
	case *ml.RandomForest:
		return TypeRandomForest
	case nil:
		return TypeNone
	default:
		return fmt.Sprintf("%T", m.Classifier)
	}
}

// Validate checks that the pieces of a model fit together.
func (m *Model) Validate() error {
	if !m.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrCorruptArtifact, m.Kind)
	}
	if m.Classifier == nil {
		return fmt.Errorf("%w: missing classifier", ErrCorruptArtifact)
	}
	width := m.Kind.Width()
	if got := m.Classifier.NumFeatures(); got != width {
		return fmt.Errorf("%w: %s classifier expects %d features, want %d", ErrCorruptArtifact, m.Kind, got, width)
	}
	if !slices.Equal(m.FeatureNames, m.Kind.FeatureNames()) {
		return fmt.Errorf("%w: unexpected feature names %v", ErrCorruptArtifact, m.FeatureNames)
	}
	if m.Kind == Primary {
		if m.Scaler == nil {
			return fmt.Errorf("%w: primary model without scaler", ErrCorruptArtifact)
		}
		if err := m.Scaler.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrCorruptArtifact, err)
		}
		if len(m.Scaler.Mean) != width {
			return fmt.Errorf("%w: scaler width %d, want %d", ErrCorruptArtifact, len(m.Scaler.Mean), width)
		}
	}
	return nil
}
