package clustering

// generateMoodName creates a descriptive name based on audio feature centroid values.
// Uses a 2x2 energy/valence quadrant system with acousticness modifier.
//
// Quadrants:
//   - High Energy + High Valence = "Upbeat Party"
//   - High Energy + Low Valence  = "Intense & Dark"
//   - Low Energy  + High Valence = "Chill & Happy"
//   - Low Energy  + Low Valence  = "Reflective & Melancholy"
//
// Acousticness modifier: if > 0.6, appends "Acoustic" to the name.
func generateMoodName(centroid map[string]float64) string {
	var baseName string

	switch quadrantOf(centroid) {
	case upbeat:
		baseName = "Upbeat Party"
	case intense:
		baseName = "Intense & Dark"
	case chill:
		baseName = "Chill & Happy"
	default:
		baseName = "Reflective & Melancholy"
	}

	if centroid["acousticness"] > 0.6 {
		return baseName + " (Acoustic)"
	}

	return baseName
}

type quadrant int

const (
	upbeat quadrant = iota
	intense
	chill
	reflective
)

// quadrantOf places a centroid on the energy/valence plane.
func quadrantOf(centroid map[string]float64) quadrant {
	highEnergy := centroid["energy"] > 0.6
	highValence := centroid["valence"] > 0.5

	switch {
	case highEnergy && highValence:
		return upbeat
	case highEnergy:
		return intense
	case highValence:
		return chill
	default:
		return reflective
	}
}

// MoodCategory represents a mood classification for display purposes.
type MoodCategory struct {
	Name        string  // Display name
	Energy      float64 // Average energy level
	Valence     float64 // Average positivity
	Description string  // Brief description of the mood
}

// GetMoodCategory returns a detailed mood category for a centroid.
func GetMoodCategory(centroid map[string]float64) MoodCategory {
	var description string
	switch quadrantOf(centroid) {
	case upbeat:
		description = "High-energy, positive vibes - perfect for dancing and celebrations"
	case intense:
		description = "Intense, driving energy with darker emotional tones"
	case chill:
		description = "Relaxed and uplifting - great for unwinding"
	default:
		description = "Contemplative and introspective - ideal for quiet moments"
	}

	return MoodCategory{
		Name:        generateMoodName(centroid),
		Energy:      centroid["energy"],
		Valence:     centroid["valence"],
		Description: description,
	}
}
