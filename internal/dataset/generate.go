package dataset

import (
	"math/rand/v2"

	"github.com/justestif/moodtune/internal/emotion"
)

// span is a [lo, hi] range whose midpoint centres a generated feature.
type span struct{ lo, hi float64 }

func (s span) mid() float64 { return (s.lo + s.hi) / 2 }

// moodProfile describes how the labelled features of one mood are distributed.
type moodProfile struct {
	weight       int
	danceability span
	energy       span
	valence      span
	tempo        span
	titles       []string
	artists      []string
}

var profiles = [emotion.Count]moodProfile{
	emotion.Happy: {
		weight:       56,
		danceability: span{0.6, 0.9}, energy: span{0.7, 0.95}, valence: span{0.7, 0.95}, tempo: span{120, 160},
		titles:  []string{"Walking on Sunshine", "Good Vibrations", "Here Comes the Sun", "September", "Dancing Queen", "Celebration"},
		artists: []string{"Katrina and the Waves", "The Beach Boys", "The Beatles", "Earth, Wind & Fire", "ABBA", "Kool & The Gang"},
	},
	emotion.Sad: {
		weight:       44,
		danceability: span{0.2, 0.5}, energy: span{0.1, 0.4}, valence: span{0.1, 0.4}, tempo: span{60, 100},
		titles:  []string{"Someone Like You", "Hurt", "Tears in Heaven", "Mad World", "Everybody Hurts", "Skinny Love"},
		artists: []string{"Adele", "Johnny Cash", "Eric Clapton", "Tears for Fears", "R.E.M.", "Bon Iver"},
	},
	emotion.Angry: {
		weight:       40,
		danceability: span{0.4, 0.7}, energy: span{0.8, 0.98}, valence: span{0.2, 0.5}, tempo: span{140, 180},
		titles:  []string{"Break Stuff", "Killing in the Name", "Bulls on Parade", "Painkiller", "Breaking the Law"},
		artists: []string{"Limp Bizkit", "Rage Against the Machine", "Judas Priest", "Iron Maiden"},
	},
	emotion.Calm: {
		weight:       36,
		danceability: span{0.1, 0.4}, energy: span{0.05, 0.3}, valence: span{0.3, 0.6}, tempo: span{50, 90},
		titles:  []string{"Weightless", "River Flows in You", "Clair de Lune", "Gymnopédie No. 1", "Moonlight Sonata"},
		artists: []string{"Marconi Union", "Yiruma", "Claude Debussy", "Erik Satie", "Ludwig van Beethoven"},
	},
	emotion.Energetic: {
		weight:       40,
		danceability: span{0.5, 0.8}, energy: span{0.8, 0.98}, valence: span{0.6, 0.9}, tempo: span{150, 190},
		titles:  []string{"Eye of the Tiger", "We Will Rock You", "Pump Up the Jam", "Jump", "Thunderstruck"},
		artists: []string{"Survivor", "Queen", "Technotronic", "Van Halen", "AC/DC"},
	},
	emotion.Romantic: {
		weight:       36,
		danceability: span{0.2, 0.5}, energy: span{0.2, 0.5}, valence: span{0.4, 0.7}, tempo: span{70, 110},
		titles:  []string{"Unchained Melody", "At Last", "Fly Me to the Moon", "Perfect", "All of Me"},
		artists: []string{"The Righteous Brothers", "Etta James", "Frank Sinatra", "Ed Sheeran", "John Legend"},
	},
	emotion.Neutral: {
		weight:       40,
		danceability: span{0.3, 0.6}, energy: span{0.3, 0.6}, valence: span{0.3, 0.6}, tempo: span{90, 130},
		titles:  []string{"Ordinary Day", "Middle Ground", "Balanced Life", "Everyday Song", "Regular Beat"},
		artists: []string{"Everyday Artist", "Normal Band", "Balance Music", "Standard Group", "Common Band"},
	},
}

// Generator produces synthetic track tables whose features depend on the mood label.
type Generator struct {
	rng *rand.Rand
}

// NewGenerator returns a generator seeded for reproducible output.
func NewGenerator(seed uint64) *Generator {
	return &Generator{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Generate returns n records. Labels are drawn by the mood weights; danceability,
// energy and valence are normal around the mood's range midpoint (sd 0.1) clipped
// to [0,1], tempo is normal (sd 10) clipped to [40,200], the rest are uniform.
func (g *Generator) Generate(n int) []Record {
	total := 0
	for _, p := range profiles {
		total += p.weight
	}

	records := make([]Record, n)
	for i := range records {
		label := g.pickLabel(total)
		p := profiles[label]
		records[i] = Record{
			Title:            p.titles[g.rng.IntN(len(p.titles))],
			Artist:           p.artists[g.rng.IntN(len(p.artists))],
			Emotion:          label,
			Danceability:     g.normal(p.danceability.mid(), 0.1, 0, 1),
			Energy:           g.normal(p.energy.mid(), 0.1, 0, 1),
			Valence:          g.normal(p.valence.mid(), 0.1, 0, 1),
			Tempo:            g.normal(p.tempo.mid(), 10, 40, 200),
			Acousticness:     g.rng.Float64() * 0.8,
			Instrumentalness: g.rng.Float64() * 0.9,
			Liveness:         g.rng.Float64() * 0.8,
			Speechiness:      g.rng.Float64() * 0.6,
		}
	}
	return records
}

// GenerateFor returns n records of a single mood.
func (g *Generator) GenerateFor(label emotion.Label, n int) []Record {
	records := make([]Record, 0, n)
	for len(records) < n {
		batch := g.Generate(n)
		for _, r := range batch {
			if r.Emotion == label && len(records) < n {
				records = append(records, r)
			}
		}
	}
	return records
}

func (g *Generator) pickLabel(total int) emotion.Label {
	x := g.rng.IntN(total)
	for i, p := range profiles {
		if x < p.weight {
			return emotion.Label(i)
		}
		x -= p.weight
	}
	return emotion.Neutral
}

func (g *Generator) normal(mean, sd, lo, hi float64) float64 {
	v := mean + g.rng.NormFloat64()*sd
	return min(max(v, lo), hi)
}
