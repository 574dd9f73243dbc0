package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/justestif/moodtune/internal/dataset"
	"github.com/justestif/moodtune/internal/prediction"
	"github.com/justestif/moodtune/internal/recommend"
	"github.com/justestif/moodtune/internal/spotify"
	"github.com/justestif/moodtune/internal/sync"
	"github.com/justestif/moodtune/internal/training"
	"github.com/justestif/moodtune/internal/web"
)

func runServe(ctx context.Context, a *app, args []string) error {
	fs := a.flags("serve")
	addr := fs.String("addr", a.cfg.Server.Addr, "listen address")
	train := fs.Bool("train", a.cfg.Server.TrainOnStart, "train a model before serving")
	if err := fs.Parse(args); err != nil {
		return err
	}

	src, release, err := a.source(ctx)
	if err != nil {
		return err
	}
	defer release()

	predictor := prediction.New(a.store,
		prediction.WithLogger(a.logger),
		prediction.WithMetrics(a.metrics),
	)
	trainer := training.New(a.store,
		training.WithConfig(a.cfg.TrainerConfig()),
		training.WithLogger(a.logger),
		training.WithMetrics(a.metrics),
	)

	if *train {
		if res := trainAtStartup(ctx, a, trainer, src); res != nil {
			predictor.Install(res.Model)
			predictor.SetSummary(res.Summary)
		}
	} else if records, err := src.Load(ctx); err == nil {
		predictor.SetSummary(dataset.Summarize(records))
	} else {
		a.logger.Warn("track table unavailable", zap.Error(err))
	}

	var sp *spotify.Client
	if a.cfg.HasSpotifyConfig() {
		sp, err = a.spotifyClient(ctx)
		if err != nil {
			return err
		}
	} else {
		a.logger.Info("spotify credentials not set, track lookup disabled")
	}

	var importer *sync.Service
	if appender, ok := src.(sync.Appender); ok && sp != nil {
		importer = sync.New(sp, predictor, appender)
	}

	handlers := web.NewHandlers(web.HandlersConfig{
		Predictor:   predictor,
		Recommender: recommend.New(src, predictor),
		Trainer:     trainer,
		Source:      src,
		Spotify:     sp,
		Importer:    importer,
		Logger:      a.logger,
	})
	server := web.NewServer(web.ServerConfig{
		Addr:            *addr,
		ShutdownTimeout: a.cfg.Server.ShutdownTimeout,
		Logger:          a.logger,
		Metrics:         a.metrics,
	}, handlers)

	return server.Run(ctx)
}
