// Package config loads moodtune settings from TOML files and the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/justestif/moodtune/internal/dataset"
	"github.com/justestif/moodtune/internal/model"
	"github.com/justestif/moodtune/internal/training"
)

const (
	appName = "moodtune"

	// EnvPrefix marks environment overrides. A double underscore separates
	// sections, so MOODTUNE_SERVER__ADDR sets server.addr.
	EnvPrefix = "MOODTUNE_"
)

// Config is the application configuration, one field per TOML section.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Data     DataConfig     `koanf:"data"`
	Model    ModelConfig    `koanf:"model"`
	Training TrainingConfig `koanf:"training"`
	Spotify  SpotifyConfig  `koanf:"spotify"`
	Log      LogConfig      `koanf:"log"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	TrainOnStart    bool          `koanf:"train_on_start"` // retrain when the server starts
}

// DataConfig names the track table. Database, when set, takes precedence over Path.
type DataConfig struct {
	Path     string `koanf:"path"`     // CSV file
	Database string `koanf:"database"` // postgres:// URL, sqlite:// URL or SQLite file path
}

// ModelConfig holds artifact settings.
type ModelConfig struct {
	Dir string `koanf:"dir"`
}

// TrainingConfig holds the classifier hyperparameters.
type TrainingConfig struct {
	Seed         uint64  `koanf:"seed"`
	TestFraction float64 `koanf:"test_fraction"`
	Folds        int     `koanf:"folds"`
	Stages       int     `koanf:"stages"`
	LearningRate float64 `koanf:"learning_rate"`
	MaxDepth     int     `koanf:"max_depth"`
	Trees        int     `koanf:"trees"`
}

// SpotifyConfig holds Web API credentials. SPOTIFY_ID and SPOTIFY_SECRET are
// used when the file and MOODTUNE_ variables leave them empty.
type SpotifyConfig struct {
	ClientID          string  `koanf:"client_id"`
	ClientSecret      string  `koanf:"client_secret"`
	RequestsPerSecond float64 `koanf:"requests_per_second"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level       string `koanf:"level"` // debug, info, warn, error
	Development bool   `koanf:"development"`
}

// Default returns the built-in configuration.
func Default() *Config {
	tc := training.DefaultConfig()
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
			TrainOnStart:    true,
		},
		Data:  DataConfig{Path: dataset.DefaultPath},
		Model: ModelConfig{Dir: model.DefaultDir},
		Training: TrainingConfig{
			Seed:         tc.Seed,
			TestFraction: tc.TestFraction,
			Folds:        tc.Folds,
			Stages:       tc.Boosting.Stages,
			LearningRate: tc.Boosting.LearningRate,
			MaxDepth:     tc.Boosting.MaxDepth,
			Trees:        tc.Forest.Trees,
		},
		Spotify: SpotifyConfig{RequestsPerSecond: 5},
		Log:     LogConfig{Level: "info"},
	}
}

// Load reads the default config files and environment.
func Load() (*Config, error) {
	return LoadFiles(DefaultPaths()...)
}

// LoadFiles reads each existing file in order (last wins), then applies
// MOODTUNE_ environment overrides on top of the defaults.
func LoadFiles(paths ...string) (*Config, error) {
	k := koanf.New(".")

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, fmt.Errorf("loading %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if cfg.Spotify.ClientID == "" {
		cfg.Spotify.ClientID = os.Getenv("SPOTIFY_ID")
	}
	if cfg.Spotify.ClientSecret == "" {
		cfg.Spotify.ClientSecret = os.Getenv("SPOTIFY_SECRET")
	}

	cfg.Data.Path = expandPath(cfg.Data.Path)
	cfg.Model.Dir = expandPath(cfg.Model.Dir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultPaths returns the config files consulted by Load, lowest priority first.
func DefaultPaths() []string {
	return []string{
		// 1. $XDG_CONFIG_HOME/moodtune/config.toml
		filepath.Join(xdg.ConfigHome, appName, "config.toml"),
		// 2. ./moodtune.toml (pwd, highest priority)
		appName + ".toml",
	}
}

// Validate rejects settings training or serving cannot use.
func (c *Config) Validate() error {
	t := c.Training
	switch {
	case t.TestFraction <= 0 || t.TestFraction >= 1:
		return fmt.Errorf("training.test_fraction must be in (0,1), got %v", t.TestFraction)
	case t.Folds < 2:
		return fmt.Errorf("training.folds must be at least 2, got %d", t.Folds)
	case t.Stages < 1:
		return fmt.Errorf("training.stages must be positive, got %d", t.Stages)
	case t.LearningRate <= 0:
		return fmt.Errorf("training.learning_rate must be positive, got %v", t.LearningRate)
	case t.MaxDepth < 1:
		return fmt.Errorf("training.max_depth must be positive, got %d", t.MaxDepth)
	case t.Trees < 1:
		return fmt.Errorf("training.trees must be positive, got %d", t.Trees)
	case c.Spotify.RequestsPerSecond <= 0:
		return fmt.Errorf("spotify.requests_per_second must be positive, got %v", c.Spotify.RequestsPerSecond)
	}
	return nil
}

// TrainerConfig converts the hyperparameters for the trainer.
func (c *Config) TrainerConfig() training.Config {
	tc := training.DefaultConfig()
	tc.Seed = c.Training.Seed
	tc.TestFraction = c.Training.TestFraction
	tc.Folds = c.Training.Folds
	tc.Boosting.Stages = c.Training.Stages
	tc.Boosting.LearningRate = c.Training.LearningRate
	tc.Boosting.MaxDepth = c.Training.MaxDepth
	tc.Forest.Trees = c.Training.Trees
	tc.Forest.Seed = c.Training.Seed
	return tc
}

// HasDatabase returns true if the track table lives in a database.
func (c *Config) HasDatabase() bool {
	return c.Data.Database != ""
}

// HasSpotifyConfig returns true if Spotify credentials are configured.
func (c *Config) HasSpotifyConfig() bool {
	return c.Spotify.ClientID != "" && c.Spotify.ClientSecret != ""
}

// envKey maps MOODTUNE_TRAINING__TEST_FRACTION to training.test_fraction.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

func expandPath(path string) string {
	if path != "" && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
