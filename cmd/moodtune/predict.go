package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/justestif/moodtune/internal/dataset"
	"github.com/justestif/moodtune/internal/features"
	"github.com/justestif/moodtune/internal/prediction"
	"github.com/justestif/moodtune/internal/recommend"
)

func runPredict(ctx context.Context, a *app, args []string) error {
	fs := a.flags("predict")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: moodtune predict %s\n", strings.Join(dataset.FeatureColumns, " "))
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	raw, err := parseFeatures(fs.Args())
	if err != nil {
		return err
	}

	predictor := prediction.New(a.store, prediction.WithLogger(a.logger))
	if !predictor.Loaded() {
		a.logger.Warn("no trained model, answering neutral", zap.String("dir", a.store.Dir()))
	}

	label := predictor.Predict(raw)
	fmt.Fprintf(a.stdout, "%s: %s\n", label, recommend.Describe(label))
	return nil
}

func runInfo(ctx context.Context, a *app, args []string) error {
	fs := a.flags("info")
	if err := fs.Parse(args); err != nil {
		return err
	}

	predictor := prediction.New(a.store, prediction.WithLogger(a.logger))

	src, release, err := a.source(ctx)
	if err != nil {
		return err
	}
	defer release()
	if records, err := src.Load(ctx); err == nil {
		predictor.SetSummary(dataset.Summarize(records))
	} else {
		a.logger.Debug("track table unavailable", zap.Error(err))
	}

	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(predictor.ModelInfo())
}

// parseFeatures reads the 8 raw features in dataset.FeatureColumns order.
func parseFeatures(args []string) (features.Raw, error) {
	var raw features.Raw
	if len(args) != features.RawWidth {
		return raw, fmt.Errorf("expected %d features (%s), got %d",
			features.RawWidth, strings.Join(dataset.FeatureColumns, ", "), len(args))
	}
	for i, s := range args {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return raw, fmt.Errorf("%s: %w", dataset.FeatureColumns[i], err)
		}
		raw[i] = v
	}
	return raw, nil
}
