// Command moodtune trains the emotion classifier and serves mood-based
// music recommendations.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/justestif/moodtune/internal/config"
	"github.com/justestif/moodtune/internal/dataset"
	"github.com/justestif/moodtune/internal/db"
	"github.com/justestif/moodtune/internal/logging"
	"github.com/justestif/moodtune/internal/metrics"
	"github.com/justestif/moodtune/internal/model"
)

const usage = `Usage: moodtune <command> [flags]

Commands:
  serve      run the HTTP API
  train      train and save the emotion classifier
  predict    classify 8 audio features
  info       show the saved model
  clusters   group the track table with k-means
  generate   write a synthetic track table
  seed       copy a CSV track table into a database
  import     label Spotify tracks and add them to the database

Run "moodtune <command> -h" for command flags.
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type command func(ctx context.Context, a *app, args []string) error

var commands = map[string]command{
	"serve":    runServe,
	"train":    runTrain,
	"predict":  runPredict,
	"info":     runInfo,
	"clusters": runClusters,
	"generate": runGenerate,
	"seed":     runSeed,
	"import":   runImport,
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return errors.New("no command given")
	}
	if args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		fmt.Fprint(stdout, usage)
		return nil
	}

	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprint(stderr, usage)
		return fmt.Errorf("unknown command %q", args[0])
	}

	// A missing .env is fine; the environment may already be set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck // stderr sync fails on some terminals

	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.New(),
		store:   model.NewStore(cfg.Model.Dir),
		stdout:  stdout,
		stderr:  stderr,
	}
	if err := cmd(ctx, a, args[1:]); err != nil && !errors.Is(err, flag.ErrHelp) {
		return err
	}
	return nil
}

// app carries the state shared by every command.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Metrics
	store   *model.Store
	stdout  io.Writer
	stderr  io.Writer
}

// flags returns a flag set that reports errors instead of exiting.
func (a *app) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet("moodtune "+name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	return fs
}

// source opens the configured track table. The returned func releases it.
func (a *app) source(ctx context.Context) (dataset.Source, func(), error) {
	if !a.cfg.HasDatabase() {
		return dataset.NewCSVSource(a.cfg.Data.Path), func() {}, nil
	}

	store, err := db.Open(ctx, a.cfg.Data.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("opening track database: %w", err)
	}
	return store, func() {
		if err := store.Close(); err != nil {
			a.logger.Warn("closing track database", zap.Error(err))
		}
	}, nil
}
