package training

import (
	"fmt"
	"sync"

	"github.com/justestif/moodtune/internal/dataset"
	"github.com/justestif/moodtune/internal/features"
	"github.com/justestif/moodtune/internal/ml"
	"github.com/justestif/moodtune/internal/model"
)

// trainPrimary standardizes the derived features and fits gradient boosting
// on a stratified split, then cross-validates the same pipeline.
func (t *Trainer) trainPrimary(records []dataset.Record) (*outcome, error) {
	X, err := features.Derive(records)
	if err != nil {
		return nil, err
	}
	y := labels(records)

	split, err := ml.StratifiedSplit(y, t.cfg.TestFraction, t.cfg.Seed)
	if err != nil {
		return nil, fmt.Errorf("splitting: %w", err)
	}
	folds, err := ml.StratifiedKFold(y, t.cfg.Folds, t.cfg.Seed)
	if err != nil {
		return nil, fmt.Errorf("cross-validation folds: %w", err)
	}

	trainX, trainY := ml.Take(X, y, split.Train)
	cfg := t.cfg.Boosting
	cfg.Progress = t.report(PhaseBoosting)
	pipeline, err := fitPrimary(trainX, trainY, cfg)
	if err != nil {
		return nil, err
	}

	evals, scored, err := evaluate(pipeline, X, y, split.Test)
	if err != nil {
		return nil, fmt.Errorf("evaluating: %w", err)
	}

	scores, err := ml.CrossValidate(X, y, folds, t.foldFitter(len(folds)))
	if err != nil {
		return nil, fmt.Errorf("cross-validating: %w", err)
	}

	scored.TrainSize = len(split.Train)
	scored.CVScores = scores
	scored.CVMean, scored.CVStd = ml.MeanStd(scores)
	m := model.New(model.Primary, pipeline.Scaler, pipeline.Classifier, scored)
	return &outcome{model: m, evaluation: evals}, nil
}

// foldFitter fits the primary pipeline once per fold, without per-stage
// progress, reporting each completed fold instead.
func (t *Trainer) foldFitter(total int) ml.FitFunc {
	var (
		mu   sync.Mutex
		done int
	)
	cfg := t.cfg.Boosting
	cfg.Progress = nil
	return func(X [][]float64, y []int) (ml.Classifier, error) {
		p, err := fitPrimary(X, y, cfg)
		if err != nil {
			return nil, err
		}
		if t.progress != nil {
			mu.Lock()
			done++
			t.progress(PhaseCrossValidation, done, total)
			mu.Unlock()
		}
		return p, nil
	}
}

func fitPrimary(X [][]float64, y []int, cfg ml.BoostingConfig) (*ml.Pipeline, error) {
	scaler, err := ml.FitScaler(X)
	if err != nil {
		return nil, fmt.Errorf("fitting scaler: %w", err)
	}
	scaled, err := scaler.TransformAll(X)
	if err != nil {
		return nil, fmt.Errorf("scaling: %w", err)
	}
	gb, err := ml.FitGradientBoosting(scaled, y, cfg)
	if err != nil {
		return nil, fmt.Errorf("fitting gradient boosting: %w", err)
	}
	return &ml.Pipeline{Scaler: scaler, Classifier: gb}, nil
}

// trainFallback fits a random forest on the raw features with a plain
// shuffled split. It only fails on malformed input.
func (t *Trainer) trainFallback(records []dataset.Record) (*outcome, error) {
	X, err := features.Matrix(records)
	if err != nil {
		return nil, err
	}
	y := labels(records)

	split, err := ml.ShuffleSplit(len(records), t.cfg.TestFraction, t.cfg.Seed)
	if err != nil {
		return nil, fmt.Errorf("splitting: %w", err)
	}

	trainX, trainY := ml.Take(X, y, split.Train)
	cfg := t.cfg.Forest
	cfg.Seed = t.cfg.Seed
	cfg.Progress = t.report(PhaseForest)
	rf, err := ml.FitRandomForest(trainX, trainY, cfg)
	if err != nil {
		return nil, fmt.Errorf("fitting random forest: %w", err)
	}

	evals, scored, err := evaluate(rf, X, y, split.Test)
	if err != nil {
		return nil, fmt.Errorf("evaluating: %w", err)
	}

	scored.TrainSize = len(split.Train)
	m := model.New(model.Fallback, nil, rf, scored)
	return &outcome{model: m, evaluation: evals}, nil
}
