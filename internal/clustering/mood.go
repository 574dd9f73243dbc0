// Package clustering groups tracks by audio-feature similarity using k-means and
// reports how well the clusters line up with the labelled moods.
package clustering

import (
	"errors"
	"fmt"
	"slices"

	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"

	"github.com/justestif/moodtune/internal/dataset"
	"github.com/justestif/moodtune/internal/emotion"
)

// ErrTooFewTracks is returned when there are fewer tracks than clusters.
var ErrTooFewTracks = errors.New("fewer tracks than clusters")

// MoodConfig holds mood-based clustering parameters.
type MoodConfig struct {
	NumClusters    int // Number of clusters to create (default: 7, one per mood)
	MinClusterSize int // Clusters smaller than this are reported as outliers
}

// DefaultMoodConfig returns the recommended default configuration.
func DefaultMoodConfig() MoodConfig {
	return MoodConfig{
		NumClusters:    emotion.Count,
		MinClusterSize: 3,
	}
}

// Cluster is a group of tracks with similar audio features.
type Cluster struct {
	Name        string             `json:"name"`        // Quadrant name derived from the centroid
	Description string             `json:"description"` // Brief description of the mood
	Size        int                `json:"size"`
	Centroid    map[string]float64 `json:"centroid"`

	// Dominant is the most frequent label in the cluster; Purity is its share.
	Dominant     emotion.Label    `json:"dominant_emotion"`
	Purity       float64          `json:"purity"`
	Distribution map[string]int   `json:"emotion_distribution"`
	Tracks       []dataset.Record `json:"-"`
}

// Report is the result of a clustering run.
type Report struct {
	Clusters []Cluster `json:"clusters"`
	Outliers int       `json:"outliers"`

	// Purity is the share of clustered tracks whose label matches their
	// cluster's dominant label.
	Purity float64 `json:"purity"`
}

// trackObservation wraps a record to implement clusters.Observation interface.
type trackObservation struct {
	record *dataset.Record
	coords clusters.Coordinates
}

func (o trackObservation) Coordinates() clusters.Coordinates {
	return o.coords
}

func (o trackObservation) Distance(point clusters.Coordinates) float64 {
	return o.coords.Distance(point)
}

// featureNames defines the audio features used for clustering.
var featureNames = []string{"energy", "valence", "danceability", "acousticness"}

// DetectMoodClusters partitions records with k-means over energy, valence,
// danceability and acousticness. k-means starts from random centres, so
// repeated runs may differ.
func DetectMoodClusters(records []dataset.Record, cfg MoodConfig) (*Report, error) {
	if cfg.NumClusters <= 0 {
		cfg.NumClusters = DefaultMoodConfig().NumClusters
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("clustering: %w", dataset.ErrNoData)
	}
	if len(records) < cfg.NumClusters {
		return nil, fmt.Errorf("%w: %d tracks, %d clusters", ErrTooFewTracks, len(records), cfg.NumClusters)
	}

	var obs clusters.Observations
	for i := range records {
		obs = append(obs, trackObservation{
			record: &records[i],
			coords: extractFeatures(&records[i]),
		})
	}

	km := kmeans.New()
	result, err := km.Partition(obs, cfg.NumClusters)
	if err != nil {
		return nil, fmt.Errorf("k-means: %w", err)
	}

	report := &Report{}
	matched, clustered := 0, 0
	for _, cluster := range result {
		var tracks []dataset.Record
		for _, o := range cluster.Observations {
			if to, ok := o.(trackObservation); ok {
				tracks = append(tracks, *to.record)
			}
		}

		if len(tracks) == 0 {
			continue
		}
		if len(tracks) < cfg.MinClusterSize {
			report.Outliers += len(tracks)
			continue
		}

		centroid := make(map[string]float64, len(featureNames))
		for i, name := range featureNames {
			centroid[name] = cluster.Center[i]
		}

		summary := dataset.Summarize(tracks)
		dominant := emotion.Default
		for _, l := range emotion.All() {
			if summary.Distribution[l] > summary.Distribution[dominant] {
				dominant = l
			}
		}

		category := GetMoodCategory(centroid)
		report.Clusters = append(report.Clusters, Cluster{
			Name:         category.Name,
			Description:  category.Description,
			Size:         len(tracks),
			Centroid:     centroid,
			Dominant:     dominant,
			Purity:       float64(summary.Distribution[dominant]) / float64(len(tracks)),
			Distribution: summary.Counts(),
			Tracks:       tracks,
		})
		matched += summary.Distribution[dominant]
		clustered += len(tracks)
	}

	if clustered > 0 {
		report.Purity = float64(matched) / float64(clustered)
	}

	// Largest clusters first
	slices.SortStableFunc(report.Clusters, func(a, b Cluster) int {
		return b.Size - a.Size
	})

	return report, nil
}

// extractFeatures extracts the audio features used for clustering as a coordinate vector.
func extractFeatures(r *dataset.Record) clusters.Coordinates {
	return clusters.Coordinates{
		r.Energy,
		r.Valence,
		r.Danceability,
		r.Acousticness,
	}
}
