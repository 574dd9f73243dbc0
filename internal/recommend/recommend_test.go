package recommend

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justestif/moodtune/internal/dataset"
	"github.com/justestif/moodtune/internal/emotion"
	"github.com/justestif/moodtune/internal/prediction"
)

type staticSource struct {
	records []dataset.Record
	err     error
}

func (s staticSource) Load(context.Context) ([]dataset.Record, error) {
	return s.records, s.err
}

type staticInfo struct{}

func (staticInfo) ModelInfo() prediction.Info {
	return prediction.Info{ModelType: "RandomForest", TotalSongs: 3}
}

func track(title string, l emotion.Label) dataset.Record {
	return dataset.Record{
		Title:        title,
		Artist:       "artist",
		Emotion:      l,
		Danceability: 0.12345,
		Energy:       0.6789,
		Valence:      0.5,
		Tempo:        121.26,
	}
}

func titles(tracks []Track) []string {
	var out []string
	for _, t := range tracks {
		out = append(out, t.Title)
	}
	return out
}

func TestRecommendExactMood(t *testing.T) {
	src := staticSource{records: []dataset.Record{
		track("h1", emotion.Happy),
		track("s1", emotion.Sad),
		track("h2", emotion.Happy),
		track("e1", emotion.Energetic),
	}}
	svc := New(src, staticInfo{}, WithSeed(1))

	resp, err := svc.Recommend(context.Background(), " Happy ")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"h1", "h2"}, titles(resp.Recommendations))
	assert.Equal(t, 2, resp.Stats.TotalRecommendations)
	assert.Equal(t, "happy", resp.Stats.Emotion)
	assert.Equal(t, "RandomForest", resp.Stats.ModelInfo.ModelType)
	assert.Equal(t, Describe(emotion.Happy), resp.Description)
	assert.Equal(t, "happy", resp.EmotionAnalysis.DetectedEmotion)
	assert.Equal(t, "high", resp.EmotionAnalysis.Confidence)
}

func TestRecommendExpandsToSimilarMoods(t *testing.T) {
	tests := []struct {
		mood string
		want []string
	}{
		{"sad", []string{"c1"}},
		{"romantic", []string{"c1"}},
		{"neutral", []string{"c1"}},
		{"angry", []string{"e1"}},
		{"happy", []string{"e1"}},
	}
	src := staticSource{records: []dataset.Record{
		track("c1", emotion.Calm),
		track("e1", emotion.Energetic),
	}}
	svc := New(src, nil, WithSeed(2))

	for _, tt := range tests {
		t.Run(tt.mood, func(t *testing.T) {
			resp, err := svc.Recommend(context.Background(), tt.mood)
			require.NoError(t, err)
			assert.Equal(t, tt.want, titles(resp.Recommendations))
		})
	}
}

func TestRecommendFallsBackToWholeTable(t *testing.T) {
	src := staticSource{records: []dataset.Record{
		track("a1", emotion.Angry),
		track("a2", emotion.Angry),
	}}
	svc := New(src, nil, WithSeed(3))

	resp, err := svc.Recommend(context.Background(), "calm")
	require.NoError(t, err)
	assert.Len(t, resp.Recommendations, 2)

	resp, err = svc.Recommend(context.Background(), "melancholy")
	require.NoError(t, err)
	assert.Len(t, resp.Recommendations, 2)
	assert.Equal(t, GenericDescription, resp.Description)
	assert.Empty(t, resp.EmotionAnalysis.MoodDescription)
	assert.Equal(t, "melancholy", resp.Stats.Emotion)
}

func TestRecommendSamplesDistinctTracks(t *testing.T) {
	records := dataset.NewGenerator(5).GenerateFor(emotion.Calm, 40)
	for i := range records {
		records[i].Title = string(rune('A' + i))
	}
	svc := New(staticSource{records: records}, nil, WithSeed(4))

	resp, err := svc.Recommend(context.Background(), "calm")
	require.NoError(t, err)
	require.Len(t, resp.Recommendations, DefaultCount)

	seen := map[string]bool{}
	for _, tr := range resp.Recommendations {
		assert.False(t, seen[tr.Title], "duplicate %s", tr.Title)
		seen[tr.Title] = true
		assert.Equal(t, "calm", tr.Emotion)
	}
}

func TestRecommendRoundsFeatures(t *testing.T) {
	svc := New(staticSource{records: []dataset.Record{track("x", emotion.Sad)}}, nil)

	resp, err := svc.Recommend(context.Background(), "sad")
	require.NoError(t, err)
	require.Len(t, resp.Recommendations, 1)

	f := resp.Recommendations[0].Features
	assert.Equal(t, 0.123, f.Danceability)
	assert.Equal(t, 0.679, f.Energy)
	assert.Equal(t, 121.3, f.Tempo)
	assert.Equal(t, 0.123, resp.Stats.AvgDanceability)
	assert.Equal(t, 0.679, resp.Stats.AvgEnergy)
}

func TestRecommendErrors(t *testing.T) {
	_, err := New(staticSource{}, nil).Recommend(context.Background(), "happy")
	assert.ErrorIs(t, err, dataset.ErrNoData)

	boom := errors.New("boom")
	_, err = New(staticSource{err: boom}, nil).Recommend(context.Background(), "happy")
	assert.ErrorIs(t, err, boom)
}

func TestWithCount(t *testing.T) {
	records := dataset.NewGenerator(6).GenerateFor(emotion.Happy, 20)
	svc := New(staticSource{records: records}, nil, WithCount(8))

	resp, err := svc.Recommend(context.Background(), "happy")
	require.NoError(t, err)
	assert.Len(t, resp.Recommendations, 8)
}

func TestSimilarAndDescribe(t *testing.T) {
	for _, l := range emotion.All() {
		s := Similar(l)
		require.NotEmpty(t, s)
		assert.Equal(t, l, s[0])
		assert.NotEqual(t, GenericDescription, Describe(l))
	}
	assert.Nil(t, Similar(emotion.Label(42)))
	assert.Equal(t, GenericDescription, Describe(emotion.Label(42)))
}
