package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"github.com/justestif/moodtune/internal/clustering"
	"github.com/justestif/moodtune/internal/dataset"
	"github.com/justestif/moodtune/internal/db"
	"github.com/justestif/moodtune/internal/emotion"
)

func runClusters(ctx context.Context, a *app, args []string) error {
	fs := a.flags("clusters")
	k := fs.Int("k", clustering.DefaultMoodConfig().NumClusters, "number of clusters")
	minSize := fs.Int("min-size", clustering.DefaultMoodConfig().MinClusterSize, "clusters smaller than this are outliers")
	if err := fs.Parse(args); err != nil {
		return err
	}

	src, release, err := a.source(ctx)
	if err != nil {
		return err
	}
	defer release()

	records, err := src.Load(ctx)
	if err != nil {
		return err
	}

	report, err := clustering.DetectMoodClusters(records, clustering.MoodConfig{
		NumClusters:    *k,
		MinClusterSize: *minSize,
	})
	if err != nil {
		return err
	}

	fmt.Fprint(a.stdout, clustering.FormatClusterSummary(report))
	return nil
}

func runGenerate(ctx context.Context, a *app, args []string) error {
	fs := a.flags("generate")
	n := fs.Int("n", 1000, "number of tracks")
	seed := fs.Uint64("seed", a.cfg.Training.Seed, "random seed")
	out := fs.String("out", a.cfg.Data.Path, "output CSV path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *n < 1 {
		return errors.New("-n must be positive")
	}

	records := dataset.NewGenerator(*seed).Generate(*n)

	if err := os.MkdirAll(filepath.Dir(*out), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(*out), err)
	}
	if err := dataset.SaveCSV(*out, records); err != nil {
		return err
	}

	summary := dataset.Summarize(records)
	fmt.Fprintf(a.stdout, "Wrote %s tracks to %s\n", humanize.Comma(int64(summary.Total)), *out)
	for _, l := range emotion.All() {
		fmt.Fprintf(a.stdout, "  %-9s %s\n", l, humanize.Comma(int64(summary.Distribution[l])))
	}
	return nil
}

func runSeed(ctx context.Context, a *app, args []string) error {
	fs := a.flags("seed")
	from := fs.String("from", a.cfg.Data.Path, "CSV track table to copy")
	dsn := fs.String("db", a.cfg.Data.Database, "target database (postgres:// URL or SQLite path)")
	appendRows := fs.Bool("append", false, "keep existing rows")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dsn == "" {
		return errors.New("no database given: set data.database or pass -db")
	}

	records, err := dataset.NewCSVSource(*from).Load(ctx)
	if err != nil {
		return err
	}

	store, err := db.Open(ctx, *dsn)
	if err != nil {
		return err
	}
	defer store.Close()

	if *appendRows {
		err = store.Append(ctx, records)
	} else {
		err = store.ReplaceAll(ctx, records)
	}
	if err != nil {
		return err
	}

	total, err := store.Count(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Seeded %s tracks from %s (%s stored)\n",
		humanize.Comma(int64(len(records))), *from, humanize.Comma(int64(total)))
	return nil
}
