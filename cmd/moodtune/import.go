package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/justestif/moodtune/internal/db"
	"github.com/justestif/moodtune/internal/prediction"
	"github.com/justestif/moodtune/internal/spotify"
	"github.com/justestif/moodtune/internal/sync"
)

func runImport(ctx context.Context, a *app, args []string) error {
	fs := a.flags("import")
	dsn := fs.String("db", a.cfg.Data.Database, "target database (postgres:// URL or SQLite path)")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: moodtune import [-db DSN] <spotify track id>...")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dsn == "" {
		return errors.New("no database given: set data.database or pass -db")
	}

	sp, err := a.spotifyClient(ctx)
	if err != nil {
		return err
	}

	store, err := db.Open(ctx, *dsn)
	if err != nil {
		return err
	}
	defer store.Close()

	predictor := prediction.New(a.store, prediction.WithLogger(a.logger))
	if !predictor.Loaded() {
		return fmt.Errorf("no trained model in %s (run \"moodtune train\" first)", a.store.Dir())
	}

	res, err := sync.New(sp, predictor, store).ImportTracks(ctx, fs.Args(), true)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.stdout, "Imported %s tracks\n", humanize.Comma(int64(res.TracksCount)))
	if len(res.Skipped) > 0 {
		fmt.Fprintf(a.stdout, "Skipped (no audio features): %s\n", strings.Join(res.Skipped, ", "))
	}
	return nil
}

// spotifyClient builds a client-credentials client from the config.
func (a *app) spotifyClient(ctx context.Context) (*spotify.Client, error) {
	rps := a.cfg.Spotify.RequestsPerSecond
	return spotify.NewWithCredentials(ctx, a.cfg.Spotify.ClientID, a.cfg.Spotify.ClientSecret,
		spotify.WithRateLimit(rps, max(1, int(math.Ceil(rps)))),
		spotify.WithMetrics(a.metrics),
	)
}
