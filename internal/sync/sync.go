// Package sync imports Spotify catalogue tracks into the track table,
// labelled by the active classifier.
package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	"github.com/justestif/moodtune/internal/dataset"
	"github.com/justestif/moodtune/internal/emotion"
	"github.com/justestif/moodtune/internal/features"
	"github.com/justestif/moodtune/internal/spotify"
)

// Common errors.
var (
	// ErrSyncTooRecent is returned when sync is attempted within the cooldown period.
	ErrSyncTooRecent = errors.New("sync attempted too recently")

	// ErrNoTracks is returned when no track IDs are given.
	ErrNoTracks = errors.New("no track IDs given")
)

// DefaultSyncCooldown is the default time between allowed syncs.
const DefaultSyncCooldown = 1 * time.Minute

// Fetcher looks tracks up in the Spotify catalogue. *spotify.Client implements it.
type Fetcher interface {
	Track(ctx context.Context, id string) (*spotify.Track, error)
	AudioFeatures(ctx context.Context, ids []string) (map[string]features.Raw, error)
}

// Labeler assigns a mood. *prediction.Predictor implements it.
type Labeler interface {
	Predict(raw features.Raw) emotion.Label
}

// Appender stores tracks. Both database track stores implement it.
type Appender interface {
	Append(ctx context.Context, records []dataset.Record) error
}

// Service handles syncing catalogue tracks into the track table.
type Service struct {
	fetcher      Fetcher
	labeler      Labeler
	store        Appender
	syncCooldown time.Duration
	now          func() time.Time

	mu       gosync.Mutex
	lastSync time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithSyncCooldown sets the minimum time between syncs.
func WithSyncCooldown(d time.Duration) Option {
	return func(s *Service) {
		s.syncCooldown = d
	}
}

// New creates a new sync service.
func New(fetcher Fetcher, labeler Labeler, store Appender, opts ...Option) *Service {
	s := &Service{
		fetcher:      fetcher,
		labeler:      labeler,
		store:        store,
		syncCooldown: DefaultSyncCooldown,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SyncResult contains the result of a sync operation.
type SyncResult struct {
	TracksCount  int            `json:"tracks_count"`
	Skipped      []string       `json:"skipped,omitempty"` // IDs without audio features
	Distribution map[string]int `json:"emotion_distribution"`
	SyncedAt     time.Time      `json:"synced_at"`
}

// CanSync checks if enough time has passed since the last sync.
// Also returns the time when the next sync will be available.
func (s *Service) CanSync() (bool, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canSyncLocked()
}

func (s *Service) canSyncLocked() (bool, time.Time) {
	if s.lastSync.IsZero() {
		// Never synced, allow
		return true, time.Time{}
	}

	nextSyncTime := s.lastSync.Add(s.syncCooldown)
	if s.now().Before(nextSyncTime) {
		return false, nextSyncTime
	}
	return true, time.Time{}
}

// ImportTracks fetches the given tracks, labels each with the classifier and
// appends them to the track table. Tracks Spotify has no audio features for
// are skipped. Returns ErrSyncTooRecent if called within the cooldown period
// unless force is set.
func (s *Service) ImportTracks(ctx context.Context, ids []string, force bool) (*SyncResult, error) {
	ids = unique(ids)
	if len(ids) == 0 {
		return nil, ErrNoTracks
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Check cooldown unless forced
	if !force {
		if ok, nextTime := s.canSyncLocked(); !ok {
			return nil, fmt.Errorf("%w: next sync available at %s", ErrSyncTooRecent, nextTime.Format(time.RFC3339))
		}
	}

	byID, err := s.fetcher.AudioFeatures(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("fetching audio features: %w", err)
	}

	result := &SyncResult{}
	var records []dataset.Record
	for _, id := range ids {
		raw, ok := byID[id]
		if !ok {
			result.Skipped = append(result.Skipped, id)
			continue
		}

		track, err := s.fetcher.Track(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("fetching track: %w", err)
		}

		rec := dataset.Record{
			Title:   track.Title,
			Artist:  track.Artist,
			Emotion: s.labeler.Predict(raw),
		}
		rec.SetValues(raw)
		records = append(records, rec)
	}

	if len(records) > 0 {
		if err := s.store.Append(ctx, records); err != nil {
			return nil, fmt.Errorf("storing tracks: %w", err)
		}
	}

	// Update last sync time
	s.lastSync = s.now()

	result.TracksCount = len(records)
	result.Distribution = dataset.Summarize(records).Counts()
	result.SyncedAt = s.lastSync
	return result, nil
}

// GetLastSyncTime returns the last sync time, or nil if nothing was synced yet.
func (s *Service) GetLastSyncTime() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastSync.IsZero() {
		return nil
	}
	t := s.lastSync
	return &t
}

func unique(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
