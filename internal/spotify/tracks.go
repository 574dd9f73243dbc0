package spotify

import (
	"context"
	"fmt"
	"strings"

	"github.com/zmb3/spotify/v2"

	"github.com/justestif/moodtune/internal/features"
)

// Track is catalogue metadata for a single track.
type Track struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Artist string `json:"artist"` // Comma-separated artist names
	Album  string `json:"album"`
}

// TrackFeatures pairs a track with its audio features.
type TrackFeatures struct {
	Track
	Features features.Raw `json:"features"`
}

// Track fetches metadata for one track.
func (c *Client) Track(ctx context.Context, id string) (*Track, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	full, err := c.api.GetTrack(ctx, spotify.ID(id))
	c.metrics.ObserveSpotify("track", err)
	if err != nil {
		return nil, fmt.Errorf("fetching track %s: %w", id, err)
	}

	track := convertTrack(full)
	return &track, nil
}

// TrackFeatures fetches metadata and audio features for one track.
func (c *Client) TrackFeatures(ctx context.Context, id string) (*TrackFeatures, error) {
	track, err := c.Track(ctx, id)
	if err != nil {
		return nil, err
	}

	byID, err := c.AudioFeatures(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	raw, ok := byID[id]
	if !ok {
		return nil, fmt.Errorf("track %s: %w", id, ErrNoAudioFeatures)
	}

	return &TrackFeatures{Track: *track, Features: raw}, nil
}

// convertTrack converts a Spotify FullTrack to Track.
func convertTrack(full *spotify.FullTrack) Track {
	// Join artist names
	artists := make([]string, len(full.Artists))
	for i, a := range full.Artists {
		artists[i] = a.Name
	}

	return Track{
		ID:     full.ID.String(),
		Title:  full.Name,
		Artist: strings.Join(artists, ", "),
		Album:  full.Album.Name,
	}
}
