// Package recommend picks tracks from the dataset for a requested mood.
package recommend

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/justestif/moodtune/internal/dataset"
	"github.com/justestif/moodtune/internal/emotion"
	"github.com/justestif/moodtune/internal/prediction"
)

// DefaultCount is the number of tracks returned per request.
const DefaultCount = 5

// similar lists the moods searched, in order, when a mood has no tracks of its own.
var similar = [emotion.Count][]emotion.Label{
	emotion.Happy:     {emotion.Happy, emotion.Energetic},
	emotion.Sad:       {emotion.Sad, emotion.Calm},
	emotion.Angry:     {emotion.Angry, emotion.Energetic},
	emotion.Calm:      {emotion.Calm, emotion.Sad},
	emotion.Energetic: {emotion.Energetic, emotion.Happy},
	emotion.Romantic:  {emotion.Romantic, emotion.Calm},
	emotion.Neutral:   {emotion.Neutral, emotion.Calm},
}

var descriptions = [emotion.Count]string{
	emotion.Happy:     "Cheerful and upbeat music recommendations",
	emotion.Sad:       "Melancholic and emotional music recommendations",
	emotion.Angry:     "Hard-hitting and intense music recommendations",
	emotion.Calm:      "Calm and relaxing music recommendations",
	emotion.Energetic: "Lively and motivating music recommendations",
	emotion.Romantic:  "Romantic and tender music recommendations",
	emotion.Neutral:   "Balanced, mid-tempo music recommendations",
}

// GenericDescription describes recommendations for an unknown mood.
const GenericDescription = "Music recommendations"

// Similar returns the moods that stand in for l, starting with l itself.
func Similar(l emotion.Label) []emotion.Label {
	if !l.Valid() {
		return nil
	}
	return append([]emotion.Label(nil), similar[l]...)
}

// Describe returns a short description of recommendations for l.
func Describe(l emotion.Label) string {
	if !l.Valid() {
		return GenericDescription
	}
	return descriptions[l]
}

// Features are the rounded audio features shown with a recommendation.
type Features struct {
	Danceability float64 `json:"danceability"`
	Energy       float64 `json:"energy"`
	Valence      float64 `json:"valence"`
	Tempo        float64 `json:"tempo"`
}

// Track is one recommended track.
type Track struct {
	Title    string   `json:"title"`
	Artist   string   `json:"artist"`
	Emotion  string   `json:"emotion"`
	Features Features `json:"features"`
}

// Stats summarizes a set of recommendations.
type Stats struct {
	TotalRecommendations int             `json:"total_recommendations"`
	Emotion              string          `json:"emotion"`
	AvgDanceability      float64         `json:"avg_danceability"`
	AvgEnergy            float64         `json:"avg_energy"`
	ModelInfo            prediction.Info `json:"model_info"`
}

// Analysis echoes the mood the recommendations were made for.
type Analysis struct {
	DetectedEmotion string `json:"detected_emotion"`
	Confidence      string `json:"confidence"`
	MoodDescription string `json:"mood_description"`
}

// Response is the full answer to a recommendation request.
type Response struct {
	Recommendations []Track  `json:"recommendations"`
	Stats           Stats    `json:"stats"`
	Description     string   `json:"description"`
	EmotionAnalysis Analysis `json:"emotion_analysis"`
}

// InfoProvider reports the active model. *prediction.Predictor implements it.
type InfoProvider interface {
	ModelInfo() prediction.Info
}

// Service answers recommendation requests from a dataset source.
type Service struct {
	source dataset.Source
	info   InfoProvider
	count  int

	mu  sync.Mutex
	rng *rand.Rand
}

// Option configures a Service.
type Option func(*Service)

// WithSeed makes sampling reproducible.
func WithSeed(seed uint64) Option {
	return func(s *Service) {
		s.rng = rand.New(rand.NewPCG(seed, seed))
	}
}

// WithCount sets how many tracks are returned.
func WithCount(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.count = n
		}
	}
}

// New creates a recommendation service. info may be nil.
func New(source dataset.Source, info InfoProvider, opts ...Option) *Service {
	now := uint64(time.Now().UnixNano())
	s := &Service{
		source: source,
		info:   info,
		count:  DefaultCount,
		rng:    rand.New(rand.NewPCG(now, now>>32)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Recommend returns up to the configured number of random tracks for mood.
// Tracks of the mood itself are preferred, then tracks of similar moods, then
// the whole table. An unknown mood name goes straight to the whole table.
func (s *Service) Recommend(ctx context.Context, mood string) (*Response, error) {
	records, err := s.source.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading dataset: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("recommending: %w", dataset.ErrNoData)
	}

	name := strings.ToLower(strings.TrimSpace(mood))
	label, parseErr := emotion.Parse(name)
	known := parseErr == nil

	pool := records
	if known {
		pool = Candidates(records, label)
	}
	picked := s.sample(pool)

	resp := &Response{
		Recommendations: make([]Track, len(picked)),
		Stats: Stats{
			TotalRecommendations: len(picked),
			Emotion:              name,
		},
		Description: GenericDescription,
		EmotionAnalysis: Analysis{
			DetectedEmotion: name,
			Confidence:      "high",
		},
	}
	if known {
		resp.Description = Describe(label)
		resp.EmotionAnalysis.MoodDescription = Describe(label)
	}
	if s.info != nil {
		resp.Stats.ModelInfo = s.info.ModelInfo()
	}

	var dance, energy float64
	for i, r := range picked {
		t := toTrack(r)
		resp.Recommendations[i] = t
		dance += t.Features.Danceability
		energy += t.Features.Energy
	}
	if n := float64(len(picked)); n > 0 {
		resp.Stats.AvgDanceability = round(dance/n, 3)
		resp.Stats.AvgEnergy = round(energy/n, 3)
	}
	return resp, nil
}

// Candidates returns the records of mood l, or of its similar moods when l has
// none, or every record when neither matches.
func Candidates(records []dataset.Record, l emotion.Label) []dataset.Record {
	if exact := dataset.Filter(records, l); len(exact) > 0 {
		return exact
	}
	if near := dataset.Filter(records, Similar(l)...); len(near) > 0 {
		return near
	}
	return records
}

// sample draws up to s.count distinct records uniformly at random.
func (s *Service) sample(pool []dataset.Record) []dataset.Record {
	n := min(s.count, len(pool))

	s.mu.Lock()
	perm := s.rng.Perm(len(pool))
	s.mu.Unlock()

	out := make([]dataset.Record, n)
	for i := range out {
		out[i] = pool[perm[i]]
	}
	return out
}

func toTrack(r dataset.Record) Track {
	return Track{
		Title:   r.Title,
		Artist:  r.Artist,
		Emotion: r.Emotion.String(),
		Features: Features{
			Danceability: round(r.Danceability, 3),
			Energy:       round(r.Energy, 3),
			Valence:      round(r.Valence, 3),
			Tempo:        round(r.Tempo, 1),
		},
	}
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
