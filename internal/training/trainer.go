// Package training fits the emotion classifier. It tries the primary
// gradient boosting pipeline first and falls back to a random forest on the
// raw features when the primary pipeline cannot be trained.
package training

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/justestif/moodtune/internal/dataset"
	"github.com/justestif/moodtune/internal/emotion"
	"github.com/justestif/moodtune/internal/metrics"
	"github.com/justestif/moodtune/internal/ml"
	"github.com/justestif/moodtune/internal/model"
)

// Config holds the training hyperparameters.
type Config struct {
	Seed         uint64
	TestFraction float64
	Folds        int
	Boosting     ml.BoostingConfig
	Forest       ml.ForestConfig
}

// DefaultConfig returns the standard hyperparameters.
func DefaultConfig() Config {
	return Config{
		Seed:         42,
		TestFraction: 0.2,
		Folds:        5,
		Boosting:     ml.DefaultBoostingConfig(),
		Forest:       ml.DefaultForestConfig(),
	}
}

// Phase names a long running step reported through a ProgressFunc.
type Phase string

// Training phases.
const (
	PhaseBoosting        Phase = "boosting"
	PhaseCrossValidation Phase = "cross-validation"
	PhaseForest          Phase = "forest"
)

// ProgressFunc receives progress updates. It may be called from several
// goroutines, but never concurrently.
type ProgressFunc func(phase Phase, done, total int)

// Attempt records one pipeline run.
type Attempt struct {
	Kind     model.Kind
	Success  bool
	Err      error
	Metrics  model.Metrics
	Duration time.Duration
}

// Evaluation is the prediction made for one held-out record. Index refers to
// the records passed to Train.
type Evaluation struct {
	Index int
	Want  emotion.Label
	Got   emotion.Label
}

// Result describes a training run.
type Result struct {
	Model      *model.Model
	Attempts   []Attempt
	Summary    dataset.Summary
	Evaluation []Evaluation
	// Degraded is set when the primary pipeline failed and the fallback model
	// was used.
	Degraded bool
}

// Trainer fits and persists models. Concurrent calls to Train are serialized.
type Trainer struct {
	mu       sync.Mutex
	cfg      Config
	store    *model.Store
	logger   *zap.Logger
	metrics  *metrics.Metrics
	progress ProgressFunc
}

// Option configures a Trainer.
type Option func(*Trainer)

// WithConfig sets the hyperparameters.
func WithConfig(cfg Config) Option {
	return func(t *Trainer) {
		t.cfg = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(t *Trainer) {
		t.logger = logger
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Trainer) {
		t.metrics = m
	}
}

// WithProgress sets a progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(t *Trainer) {
		t.progress = fn
	}
}

// New creates a trainer that persists models to store. A nil store keeps
// models in memory only.
func New(store *model.Store, opts ...Option) *Trainer {
	t := &Trainer{
		cfg:    DefaultConfig(),
		store:  store,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// TrainFrom loads the track table from src and trains on it.
func (t *Trainer) TrainFrom(ctx context.Context, src dataset.Source) (*Result, error) {
	records, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading dataset: %w", err)
	}
	return t.Train(records)
}

// Train fits exactly one model on records and persists it. It returns
// dataset.ErrNoData when no usable record remains. A failed primary pipeline
// is reported in the result, not as an error.
func (t *Trainer) Train(records []dataset.Record) (*Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	records = t.usable(records)
	if len(records) == 0 {
		return nil, fmt.Errorf("training: %w", dataset.ErrNoData)
	}

	res := &Result{Summary: dataset.Summarize(records)}
	t.logger.Info("training started",
		zap.Int("records", res.Summary.Total),
		zap.Any("distribution", res.Summary.Counts()),
	)

	out, attempt := t.attempt(model.Primary, func() (*outcome, error) {
		return t.trainPrimary(records)
	})
	res.Attempts = append(res.Attempts, attempt)

	if !attempt.Success {
		t.logger.Warn("primary training failed, using fallback",
			zap.Error(attempt.Err),
			zap.Duration("duration", attempt.Duration),
		)
		res.Degraded = true

		out, attempt = t.attempt(model.Fallback, func() (*outcome, error) {
			return t.trainFallback(records)
		})
		res.Attempts = append(res.Attempts, attempt)
		if !attempt.Success {
			return res, fmt.Errorf("fallback training: %w", attempt.Err)
		}
	}

	res.Model = out.model
	res.Evaluation = out.evaluation

	if t.store != nil {
		if err := t.store.Save(out.model); err != nil {
			return res, fmt.Errorf("persisting model: %w", err)
		}
	}
	t.metrics.SetTestAccuracy(string(out.model.Kind), out.model.Metrics.TestAccuracy)

	t.logger.Info("training finished",
		zap.String("kind", string(out.model.Kind)),
		zap.String("model_id", out.model.ID.String()),
		zap.Float64("test_accuracy", out.model.Metrics.TestAccuracy),
		zap.Float64("cv_mean", out.model.Metrics.CVMean),
		zap.Bool("degraded", res.Degraded),
	)
	return res, nil
}

// usable drops records with an unknown label or non-finite features.
func (t *Trainer) usable(records []dataset.Record) []dataset.Record {
	out := make([]dataset.Record, 0, len(records))
	for i, r := range records {
		if err := r.Validate(); err != nil {
			t.logger.Warn("dropping record", zap.Int("index", i), zap.String("title", r.Title), zap.Error(err))
			continue
		}
		out = append(out, r)
	}
	return out
}

type outcome struct {
	model      *model.Model
	evaluation []Evaluation
}

// attempt runs one pipeline, turning a panic into a failed attempt.
func (t *Trainer) attempt(kind model.Kind, fn func() (*outcome, error)) (out *outcome, a Attempt) {
	a.Kind = kind
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			out = nil
			a.Success = false
			a.Err = fmt.Errorf("%s pipeline panicked: %v", kind, r)
		}
		a.Duration = time.Since(start)
		if a.Success {
			a.Metrics = out.model.Metrics
		}
		t.metrics.ObserveTraining(string(kind), a.Success, a.Duration.Seconds())
	}()

	out, err := fn()
	if err != nil {
		a.Err = err
		return nil, a
	}
	a.Success = true
	return out, a
}

func (t *Trainer) report(phase Phase) func(done, total int) {
	if t.progress == nil {
		return nil
	}
	return func(done, total int) {
		t.progress(phase, done, total)
	}
}

func labels(records []dataset.Record) []int {
	y := make([]int, len(records))
	for i, r := range records {
		y[i] = int(r.Emotion)
	}
	return y
}

// evaluate predicts every held-out row and pairs the result with the true label.
func evaluate(c ml.Classifier, X [][]float64, y []int, test []int) ([]Evaluation, model.Metrics, error) {
	testX, testY := ml.Take(X, y, test)
	pred, err := ml.PredictAll(c, testX)
	if err != nil {
		return nil, model.Metrics{}, err
	}
	evals := make([]Evaluation, len(test))
	for i, idx := range test {
		evals[i] = Evaluation{
			Index: idx,
			Want:  emotion.Label(testY[i]),
			Got:   emotion.Label(pred[i]),
		}
	}

	scores := ml.ClassReport(testY, pred)
	classes := make([]model.ClassMetrics, len(scores))
	for i, sc := range scores {
		name := fmt.Sprintf("code %d", sc.Class)
		if l, ok := emotion.FromCode(sc.Class); ok {
			name = l.String()
		}
		classes[i] = model.ClassMetrics{
			Label:     name,
			Precision: sc.Precision,
			Recall:    sc.Recall,
			F1:        sc.F1,
			Support:   sc.Support,
		}
	}
	return evals, model.Metrics{
		TestAccuracy: ml.Accuracy(testY, pred),
		TestSize:     len(test),
		Classes:      classes,
	}, nil
}
