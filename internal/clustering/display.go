package clustering

import (
	"fmt"
	"strings"
)

const sampleTrackCount = 3

// FormatClusterSummary returns a human-readable summary of mood clusters.
// Shows size, dominant mood and first 3 sample tracks for each cluster.
// Outliers are summarized by count only.
func FormatClusterSummary(report *Report) string {
	var sb strings.Builder

	totalTracks := report.Outliers
	for _, c := range report.Clusters {
		totalTracks += c.Size
	}

	if len(report.Clusters) == 0 {
		sb.WriteString(fmt.Sprintf("No mood clusters found from %d tracks", totalTracks))
		if report.Outliers > 0 {
			sb.WriteString(fmt.Sprintf(" (%d outliers skipped)", report.Outliers))
		}
		sb.WriteString("\n")
		return sb.String()
	}

	clusterWord := "cluster"
	if len(report.Clusters) > 1 {
		clusterWord = "clusters"
	}

	sb.WriteString(fmt.Sprintf("Found %d mood %s from %d tracks", len(report.Clusters), clusterWord, totalTracks))
	if report.Outliers > 0 {
		sb.WriteString(fmt.Sprintf(" (%d outliers skipped)", report.Outliers))
	}
	sb.WriteString(fmt.Sprintf(", label purity %.0f%%\n", report.Purity*100))

	for i, c := range report.Clusters {
		sb.WriteString("\n")
		sb.WriteString(formatCluster(i+1, c))
	}

	return sb.String()
}

// formatCluster formats a single cluster with its sample tracks.
func formatCluster(num int, c Cluster) string {
	var sb strings.Builder

	trackWord := "track"
	if c.Size > 1 {
		trackWord = "tracks"
	}

	sb.WriteString(fmt.Sprintf("Cluster %d: %s (%d %s, mostly %s at %.0f%%)\n",
		num, c.Name, c.Size, trackWord, c.Dominant, c.Purity*100))
	sb.WriteString(fmt.Sprintf("  energy %.2f, valence %.2f, danceability %.2f, acousticness %.2f\n",
		c.Centroid["energy"], c.Centroid["valence"], c.Centroid["danceability"], c.Centroid["acousticness"]))

	sampleCount := min(sampleTrackCount, len(c.Tracks))
	for i := 0; i < sampleCount; i++ {
		track := c.Tracks[i]
		sb.WriteString(fmt.Sprintf("  • \"%s\" - %s\n", track.Title, track.Artist))
	}

	remaining := len(c.Tracks) - sampleTrackCount
	if remaining > 0 {
		sb.WriteString(fmt.Sprintf("  ... and %d more\n", remaining))
	}

	return sb.String()
}
