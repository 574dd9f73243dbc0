package clustering

import (
	"fmt"
	"strings"
	"testing"

	"github.com/justestif/moodtune/internal/dataset"
	"github.com/justestif/moodtune/internal/emotion"
)

func TestFormatClusterSummary(t *testing.T) {
	makeTracks := func(prefix string, n int) []dataset.Record {
		tracks := make([]dataset.Record, n)
		for i := range tracks {
			tracks[i] = dataset.Record{
				Title:  fmt.Sprintf("%sSong%d", prefix, i+1),
				Artist: fmt.Sprintf("Artist%d", i+1),
			}
		}
		return tracks
	}

	makeCluster := func(name string, tracks []dataset.Record, dominant emotion.Label, purity float64) Cluster {
		return Cluster{
			Name:     name,
			Size:     len(tracks),
			Tracks:   tracks,
			Dominant: dominant,
			Purity:   purity,
			Centroid: map[string]float64{
				"energy":       0.75,
				"valence":      0.65,
				"danceability": 0.70,
				"acousticness": 0.20,
			},
		}
	}

	tests := []struct {
		name           string
		report         *Report
		wantContains   []string
		wantNotContain []string
	}{
		{
			name:   "empty report",
			report: &Report{},
			wantContains: []string{
				"No mood clusters found from 0 tracks",
			},
			wantNotContain: []string{
				"outliers",
			},
		},
		{
			name:   "only outliers",
			report: &Report{Outliers: 2},
			wantContains: []string{
				"No mood clusters found from 2 tracks",
				"(2 outliers skipped)",
			},
		},
		{
			name: "single cluster with 3 tracks",
			report: &Report{
				Clusters: []Cluster{makeCluster("Upbeat Party", makeTracks("", 3), emotion.Happy, 1)},
				Purity:   1,
			},
			wantContains: []string{
				"Found 1 mood cluster from 3 tracks",
				"label purity 100%",
				"Cluster 1: Upbeat Party (3 tracks, mostly happy at 100%)",
				"energy 0.75, valence 0.65, danceability 0.70, acousticness 0.20",
				`"Song1" - Artist1`,
				`"Song3" - Artist3`,
			},
			wantNotContain: []string{
				"more",
				"outliers",
			},
		},
		{
			name: "clusters with outliers and overflow",
			report: &Report{
				Clusters: []Cluster{
					makeCluster("Intense & Dark", makeTracks("A", 5), emotion.Angry, 0.6),
					makeCluster("Chill & Happy", makeTracks("B", 1), emotion.Calm, 1),
				},
				Outliers: 3,
				Purity:   0.75,
			},
			wantContains: []string{
				"Found 2 mood clusters from 9 tracks",
				"(3 outliers skipped)",
				"mostly angry at 60%",
				"... and 2 more",
				"Cluster 2: Chill & Happy (1 track,",
			},
			wantNotContain: []string{
				`"ASong4"`,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatClusterSummary(tt.report)

			for _, want := range tt.wantContains {
				if !strings.Contains(got, want) {
					t.Errorf("FormatClusterSummary() missing expected content %q\nGot:\n%s", want, got)
				}
			}

			for _, notWant := range tt.wantNotContain {
				if strings.Contains(got, notWant) {
					t.Errorf("FormatClusterSummary() contains unexpected content %q\nGot:\n%s", notWant, got)
				}
			}
		})
	}
}
