// Package dataset loads, validates and summarizes the track table the classifier learns from.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/justestif/moodtune/internal/emotion"
)

// ErrNoData is returned when the track table is missing, empty, or lacks
// required columns. Training cannot proceed past it.
var ErrNoData = errors.New("no data")

// DefaultPath is the well-known relative location of the track table.
const DefaultPath = "data/music_emotion.csv"

// Column names of the track table.
const (
	ColTitle            = "title"
	ColArtist           = "artist"
	ColEmotion          = "emotion"
	ColDanceability     = "danceability"
	ColEnergy           = "energy"
	ColValence          = "valence"
	ColTempo            = "tempo"
	ColAcousticness     = "acousticness"
	ColInstrumentalness = "instrumentalness"
	ColLiveness         = "liveness"
	ColSpeechiness      = "speechiness"
)

// FeatureColumns lists the numeric columns in raw feature order.
var FeatureColumns = []string{
	ColDanceability,
	ColEnergy,
	ColValence,
	ColTempo,
	ColAcousticness,
	ColInstrumentalness,
	ColLiveness,
	ColSpeechiness,
}

// Columns lists every required column in file order.
var Columns = append([]string{ColTitle, ColArtist, ColEmotion}, FeatureColumns...)

// Record is one row of the track table.
type Record struct {
	Title            string
	Artist           string
	Emotion          emotion.Label
	Danceability     float64
	Energy           float64
	Valence          float64
	Tempo            float64 // beats per minute
	Acousticness     float64
	Instrumentalness float64
	Liveness         float64
	Speechiness      float64
}

// Values returns the numeric features in FeatureColumns order.
func (r Record) Values() [8]float64 {
	return [8]float64{
		r.Danceability,
		r.Energy,
		r.Valence,
		r.Tempo,
		r.Acousticness,
		r.Instrumentalness,
		r.Liveness,
		r.Speechiness,
	}
}

// SetValues assigns the numeric features from a FeatureColumns-ordered array.
func (r *Record) SetValues(v [8]float64) {
	r.Danceability = v[0]
	r.Energy = v[1]
	r.Valence = v[2]
	r.Tempo = v[3]
	r.Acousticness = v[4]
	r.Instrumentalness = v[5]
	r.Liveness = v[6]
	r.Speechiness = v[7]
}

// Validate checks that the label is known and every feature is finite.
func (r Record) Validate() error {
	if !r.Emotion.Valid() {
		return fmt.Errorf("%w: code %d", emotion.ErrUnknownLabel, uint8(r.Emotion))
	}
	for i, v := range r.Values() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s is not finite", FeatureColumns[i])
		}
	}
	return nil
}

// Source provides the track table.
type Source interface {
	Load(ctx context.Context) ([]Record, error)
}

// Summary describes the label distribution of a track table.
type Summary struct {
	Total        int
	Distribution [emotion.Count]int
}

// Summarize counts records per label. Records with unknown labels are not counted.
func Summarize(records []Record) Summary {
	var s Summary
	for _, r := range records {
		if !r.Emotion.Valid() {
			continue
		}
		s.Total++
		s.Distribution[r.Emotion]++
	}
	return s
}

// Counts returns the distribution keyed by label name, always with every label present.
func (s Summary) Counts() map[string]int {
	counts := make(map[string]int, emotion.Count)
	for _, l := range emotion.All() {
		counts[l.String()] = s.Distribution[l]
	}
	return counts
}

// Filter returns the records carrying one of the given labels, preserving order.
func Filter(records []Record, labels ...emotion.Label) []Record {
	var want [emotion.Count]bool
	for _, l := range labels {
		if l.Valid() {
			want[l] = true
		}
	}
	var out []Record
	for _, r := range records {
		if r.Emotion.Valid() && want[r.Emotion] {
			out = append(out, r)
		}
	}
	return out
}
