package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/justestif/moodtune/internal/ml"
)

// Artifact file names inside the model directory.
const (
	ModelFile  = "emotion_classifier.json"
	ScalerFile = "scaler.json"

	// DefaultDir is the model directory used when none is configured.
	DefaultDir = "models"

	formatVersion = 1
)

type modelArtifact struct {
	Version      int             `json:"version"`
	ID           uuid.UUID       `json:"id"`
	Kind         Kind            `json:"kind"`
	Type         string          `json:"type"`
	TrainedAt    time.Time       `json:"trained_at"`
	FeatureNames []string        `json:"feature_names"`
	Metrics      Metrics         `json:"metrics"`
	Classifier   json.RawMessage `json:"classifier"`
}

type scalerArtifact struct {
	Version int        `json:"version"`
	ModelID uuid.UUID  `json:"model_id"`
	Scaler  *ml.Scaler `json:"scaler"`
}

// Store persists one model at fixed paths inside a directory. Every save
// replaces the previous model wholesale.
type Store struct {
	dir string
}

// NewStore returns a store rooted at dir, or DefaultDir when dir is empty.
func NewStore(dir string) *Store {
	if dir == "" {
		dir = DefaultDir
	}
	return &Store{dir: dir}
}

// Dir returns the model directory.
func (s *Store) Dir() string { return s.dir }

// ModelPath returns the path of the model artifact.
func (s *Store) ModelPath() string { return filepath.Join(s.dir, ModelFile) }

// ScalerPath returns the path of the scaler artifact.
func (s *Store) ScalerPath() string { return filepath.Join(s.dir, ScalerFile) }

// Exists reports whether a model artifact is present.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.ModelPath())
	return err == nil
}

// Save persists m. The scaler of a primary model is written first and tagged
// with the model's run ID; the model file is written last, so a crash in
// between leaves the previous model loadable or none at all.
func (s *Store) Save(m *Model) error {
	if err := m.Validate(); err != nil {
		return err
	}
	typ := m.Type()
	if typ != TypeGradientBoosting && typ != TypeRandomForest {
		return fmt.Errorf("cannot persist classifier of type %s", typ)
	}

	classifier, err := json.Marshal(m.Classifier)
	if err != nil {
		return fmt.Errorf("encoding classifier: %w", err)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating model directory: %w", err)
	}

	if m.Kind == Primary {
		err := writeJSON(s.ScalerPath(), scalerArtifact{
			Version: formatVersion,
			ModelID: m.ID,
			Scaler:  m.Scaler,
		})
		if err != nil {
			return fmt.Errorf("writing scaler: %w", err)
		}
	}

	err = writeJSON(s.ModelPath(), modelArtifact{
		Version:      formatVersion,
		ID:           m.ID,
		Kind:         m.Kind,
		Type:         typ,
		TrainedAt:    m.TrainedAt,
		FeatureNames: m.FeatureNames,
		Metrics:      m.Metrics,
		Classifier:   classifier,
	})
	if err != nil {
		return fmt.Errorf("writing model: %w", err)
	}

	if m.Kind == Fallback {
		if err := os.Remove(s.ScalerPath()); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("removing stale scaler: %w", err)
		}
	}
	return nil
}

// Load reads and validates the persisted model. It returns ErrNoModel when
// nothing has been saved and wraps ErrCorruptArtifact for anything unreadable.
func (s *Store) Load() (*Model, error) {
	data, err := os.ReadFile(s.ModelPath())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoModel
	}
	if err != nil {
		return nil, fmt.Errorf("reading model: %w", err)
	}

	var a modelArtifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorruptArtifact, ModelFile, err)
	}
	if a.Version != formatVersion {
		return nil, fmt.Errorf("%w: unsupported format version %d", ErrCorruptArtifact, a.Version)
	}

	m := &Model{
		ID:           a.ID,
		Kind:         a.Kind,
		TrainedAt:    a.TrainedAt,
		FeatureNames: a.FeatureNames,
		Metrics:      a.Metrics,
	}
	switch {
	case a.Kind == Primary && a.Type == TypeGradientBoosting:
		var gb ml.GradientBoosting
		if err := decodeClassifier(a.Classifier, &gb); err != nil {
			return nil, err
		}
		m.Classifier = &gb
	case a.Kind == Fallback && a.Type == TypeRandomForest:
		var rf ml.RandomForest
		if err := decodeClassifier(a.Classifier, &rf); err != nil {
			return nil, err
		}
		m.Classifier = &rf
	default:
		return nil, fmt.Errorf("%w: %s model of type %q", ErrCorruptArtifact, a.Kind, a.Type)
	}

	if m.Kind == Primary {
		scaler, err := s.loadScaler(m.ID)
		if err != nil {
			return nil, err
		}
		m.Scaler = scaler
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Store) loadScaler(id uuid.UUID) (*ml.Scaler, error) {
	data, err := os.ReadFile(s.ScalerPath())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: primary model without %s", ErrCorruptArtifact, ScalerFile)
	}
	if err != nil {
		return nil, fmt.Errorf("reading scaler: %w", err)
	}

	var a scalerArtifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorruptArtifact, ScalerFile, err)
	}
	if a.ModelID != id {
		return nil, fmt.Errorf("%w: scaler belongs to run %s, model is %s", ErrCorruptArtifact, a.ModelID, id)
	}
	if a.Scaler == nil {
		return nil, fmt.Errorf("%w: empty scaler", ErrCorruptArtifact)
	}
	return a.Scaler, nil
}

type validator interface {
	Validate() error
}

func decodeClassifier(data json.RawMessage, into validator) error {
	if err := json.Unmarshal(data, into); err != nil {
		return fmt.Errorf("%w: classifier: %w", ErrCorruptArtifact, err)
	}
	if err := into.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrCorruptArtifact, err)
	}
	return nil
}

// writeJSON writes v to a temporary file next to path and renames it into
// place, so readers see either the old or the new content.
func writeJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
