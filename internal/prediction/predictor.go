// Package prediction serves emotion labels from the active model.
package prediction

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/justestif/moodtune/internal/dataset"
	"github.com/justestif/moodtune/internal/emotion"
	"github.com/justestif/moodtune/internal/features"
	"github.com/justestif/moodtune/internal/metrics"
	"github.com/justestif/moodtune/internal/model"
)

// Loader provides the persisted model. *model.Store implements it.
type Loader interface {
	Load() (*model.Model, error)
}

// Reasons a prediction degrades to the default label.
const (
	ReasonNoModel     = "no_model"
	ReasonModelError  = "model_error"
	ReasonInvalidCode = "invalid_code"
	ReasonPanic       = "panic"
)

// Info reports the dataset and the active model.
type Info struct {
	TotalSongs          int            `json:"total_songs"`
	EmotionDistribution map[string]int `json:"emotion_distribution"`
	FeaturesCount       int            `json:"features_count"`
	ModelType           string         `json:"model_type"`
	ModelKind           string         `json:"model_kind,omitempty"`
	ModelID             string         `json:"model_id,omitempty"`
	TestAccuracy        float64        `json:"test_accuracy"`
	TrainedAt           *time.Time     `json:"trained_at,omitempty"`
}

// Predictor owns the active model. The model is swapped atomically, so
// Predict never blocks on training; the first lookup without a model tries
// to load the persisted one.
type Predictor struct {
	loader  Loader
	logger  *zap.Logger
	metrics *metrics.Metrics

	current atomic.Pointer[model.Model]
	summary atomic.Pointer[dataset.Summary]
	loadMu  sync.Mutex
}

// Option configures a Predictor.
type Option func(*Predictor)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Predictor) {
		p.logger = logger
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Predictor) {
		p.metrics = m
	}
}

// New creates a predictor that lazily loads its model from loader. A nil
// loader means models only arrive through Install.
func New(loader Loader, opts ...Option) *Predictor {
	p := &Predictor{
		loader: loader,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Install makes m the active model.
func (p *Predictor) Install(m *model.Model) {
	p.current.Store(m)
	if m != nil {
		p.logger.Info("model installed",
			zap.String("kind", string(m.Kind)),
			zap.String("model_id", m.ID.String()),
		)
	}
}

// SetSummary records the dataset the active model was trained on.
func (p *Predictor) SetSummary(s dataset.Summary) {
	p.summary.Store(&s)
}

// Loaded reports whether a model is active, loading it if needed.
func (p *Predictor) Loaded() bool {
	return p.model() != nil
}

// Model returns the active model, or nil.
func (p *Predictor) Model() *model.Model {
	return p.model()
}

// Predict classifies a raw feature vector. It never fails: without a usable
// model, or when the model misbehaves, it returns emotion.Default.
func (p *Predictor) Predict(raw features.Raw) (label emotion.Label) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("prediction panicked", zap.Any("panic", r))
			p.metrics.ObserveDegraded(ReasonPanic)
			label = emotion.Default
		}
	}()

	m := p.model()
	if m == nil {
		p.metrics.ObserveDegraded(ReasonNoModel)
		return emotion.Default
	}

	code, err := m.Predict(raw)
	if err != nil {
		p.logger.Warn("prediction failed", zap.Error(err))
		p.metrics.ObserveDegraded(ReasonModelError)
		return emotion.Default
	}

	label, ok := emotion.FromCode(code)
	if !ok {
		p.logger.Warn("model returned unknown label code", zap.Int("code", code))
		p.metrics.ObserveDegraded(ReasonInvalidCode)
		return emotion.Default
	}
	p.metrics.ObservePrediction(label.String())
	return label
}

// ModelInfo describes the dataset summary and the active model.
func (p *Predictor) ModelInfo() Info {
	var s dataset.Summary
	if cur := p.summary.Load(); cur != nil {
		s = *cur
	}
	info := Info{
		TotalSongs:          s.Total,
		EmotionDistribution: s.Counts(),
		ModelType:           model.TypeNone,
	}

	m := p.model()
	if m == nil {
		return info
	}
	info.FeaturesCount = m.NumFeatures()
	info.ModelType = m.Type()
	info.ModelKind = string(m.Kind)
	info.ModelID = m.ID.String()
	info.TestAccuracy = m.Metrics.TestAccuracy
	trainedAt := m.TrainedAt
	info.TrainedAt = &trainedAt
	return info
}

// model returns the active model, loading the persisted one on first use.
// Concurrent callers share a single load.
func (p *Predictor) model() *model.Model {
	if m := p.current.Load(); m != nil {
		return m
	}
	if p.loader == nil {
		return nil
	}

	p.loadMu.Lock()
	defer p.loadMu.Unlock()
	if m := p.current.Load(); m != nil {
		return m
	}

	m, err := p.load()
	switch {
	case errors.Is(err, model.ErrNoModel):
		p.logger.Debug("no persisted model")
		p.metrics.ObserveModelLoad("missing")
		return nil
	case err != nil:
		p.logger.Warn("loading persisted model", zap.Error(err))
		p.metrics.ObserveModelLoad("error")
		return nil
	}

	p.metrics.ObserveModelLoad("ok")
	p.current.Store(m)
	p.logger.Info("model loaded",
		zap.String("kind", string(m.Kind)),
		zap.String("model_id", m.ID.String()),
	)
	return m
}

// load calls the loader, treating a panic as a corrupt artifact.
func (p *Predictor) load() (m *model.Model, err error) {
	defer func() {
		if r := recover(); r != nil {
			m, err = nil, model.ErrCorruptArtifact
		}
	}()
	return p.loader.Load()
}
