package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/justestif/moodtune/internal/dataset"
	"github.com/justestif/moodtune/internal/training"
)

func runTrain(ctx context.Context, a *app, args []string) error {
	fs := a.flags("train")
	quiet := fs.Bool("quiet", false, "hide progress bars")
	if err := fs.Parse(args); err != nil {
		return err
	}

	src, release, err := a.source(ctx)
	if err != nil {
		return err
	}
	defer release()

	opts := []training.Option{
		training.WithConfig(a.cfg.TrainerConfig()),
		training.WithLogger(a.logger),
		training.WithMetrics(a.metrics),
	}
	var bars *progressBars
	if !*quiet {
		bars = newProgressBars(a.stderr)
		opts = append(opts, training.WithProgress(bars.update))
	}

	res, err := training.New(a.store, opts...).TrainFrom(ctx, src)
	if bars != nil {
		bars.wait()
	}
	if errors.Is(err, dataset.ErrNoData) {
		return fmt.Errorf("%w (run \"moodtune generate\" to create a synthetic table)", err)
	}
	if err != nil {
		return err
	}

	printResult(a.stdout, res)
	fmt.Fprintf(a.stdout, "Saved to %s\n", a.store.Dir())
	return nil
}

// trainAtStartup trains before serving; failures leave the server in degraded mode.
func trainAtStartup(ctx context.Context, a *app, trainer *training.Trainer, src dataset.Source) *training.Result {
	res, err := trainer.TrainFrom(ctx, src)
	if err != nil {
		a.logger.Warn("startup training failed, predictions degrade to neutral until a model is trained",
			zap.Error(err))
	}
	if res == nil || res.Model == nil {
		return nil
	}
	a.logger.Info("model trained",
		zap.String("model_id", res.Model.ID.String()),
		zap.String("kind", string(res.Model.Kind)),
		zap.Float64("test_accuracy", res.Model.Metrics.TestAccuracy),
		zap.Bool("degraded", res.Degraded),
	)
	return res
}

func printResult(w io.Writer, res *training.Result) {
	m := res.Model
	fmt.Fprintf(w, "Trained %s model %s (%s) on %s tracks\n",
		m.Kind, m.ID, m.Type(), humanize.Comma(int64(res.Summary.Total)))

	for _, a := range res.Attempts {
		status := "ok"
		if !a.Success {
			status = "failed: " + a.Err.Error()
		}
		fmt.Fprintf(w, "  %-8s %s in %s\n", a.Kind, status, a.Duration.Round(time.Millisecond))
	}

	fmt.Fprintf(w, "Test accuracy: %.1f%% (%s train / %s test)\n",
		m.Metrics.TestAccuracy*100,
		humanize.Comma(int64(m.Metrics.TrainSize)),
		humanize.Comma(int64(m.Metrics.TestSize)))
	if len(m.Metrics.CVScores) > 0 {
		fmt.Fprintf(w, "Cross-validation: %.3f ± %.3f over %d folds\n",
			m.Metrics.CVMean, m.Metrics.CVStd, len(m.Metrics.CVScores))
	}
	if len(m.Metrics.Classes) > 0 {
		fmt.Fprintf(w, "  %-10s %9s %6s %6s %7s\n", "label", "precision", "recall", "f1", "support")
		for _, c := range m.Metrics.Classes {
			fmt.Fprintf(w, "  %-10s %9.2f %6.2f %6.2f %7d\n", c.Label, c.Precision, c.Recall, c.F1, c.Support)
		}
	}
	if res.Degraded {
		fmt.Fprintln(w, "Primary pipeline failed; using the fallback model.")
	}
}
