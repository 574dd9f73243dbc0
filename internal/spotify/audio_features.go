package spotify

import (
	"context"
	"errors"
	"fmt"

	"github.com/zmb3/spotify/v2"

	"github.com/justestif/moodtune/internal/features"
)

// maxTracksPerRequest is the Spotify API limit for track IDs per request.
const maxTracksPerRequest = 100

// ErrNoAudioFeatures is returned when Spotify has no analysis for a track.
var ErrNoAudioFeatures = errors.New("no audio features available")

// AudioFeatures retrieves audio features for the given track IDs, keyed by ID.
// Batches requests to max 100 tracks per request per Spotify API limits.
// Tracks without available audio features are absent from the result.
func (c *Client) AudioFeatures(ctx context.Context, ids []string) (map[string]features.Raw, error) {
	out := make(map[string]features.Raw, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	total := len(ids)

	// Fetch in batches of 100
	for i := 0; i < total; i += maxTracksPerRequest {
		end := min(i+maxTracksPerRequest, total)
		batch := make([]spotify.ID, 0, end-i)
		for _, id := range ids[i:end] {
			batch = append(batch, spotify.ID(id))
		}

		if err := c.wait(ctx); err != nil {
			return nil, err
		}

		results, err := c.api.GetAudioFeatures(ctx, batch...)
		c.metrics.ObserveSpotify("audio_features", err)
		if err != nil {
			return nil, fmt.Errorf("fetching audio features (batch %d-%d): %w", i+1, end, err)
		}

		for _, f := range results {
			if f == nil {
				continue // Track has no audio features
			}
			out[f.ID.String()] = toRaw(f)
		}
	}

	return out, nil
}

// toRaw copies audio feature values into a raw feature vector.
func toRaw(f *spotify.AudioFeatures) features.Raw {
	var raw features.Raw
	raw[features.Danceability] = float64(f.Danceability)
	raw[features.Energy] = float64(f.Energy)
	raw[features.Valence] = float64(f.Valence)
	raw[features.Tempo] = float64(f.Tempo)
	raw[features.Acousticness] = float64(f.Acousticness)
	raw[features.Instrumentalness] = float64(f.Instrumentalness)
	raw[features.Liveness] = float64(f.Liveness)
	raw[features.Speechiness] = float64(f.Speechiness)
	return raw
}
