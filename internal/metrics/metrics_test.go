package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()
	m.ObservePrediction("happy")
	m.ObservePrediction("happy")
	m.ObserveDegraded("no_model")
	m.ObserveTraining("primary", false, 1.5)
	m.ObserveTraining("fallback", true, 0.5)
	m.SetTestAccuracy("fallback", 0.8)
	m.ObserveSpotify("audio_features", errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Predictions.WithLabelValues("happy")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PredictionsDegraded.WithLabelValues("no_model")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TrainingRuns.WithLabelValues("primary", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TrainingRuns.WithLabelValues("fallback", "success")))
	assert.Equal(t, 0.8, testutil.ToFloat64(m.TestAccuracy.WithLabelValues("fallback")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SpotifyRequests.WithLabelValues("audio_features", "error")))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObservePrediction("sad")
		m.ObserveDegraded("no_model")
		m.ObserveModelLoad("ok")
		m.ObserveTraining("primary", true, 1)
		m.SetTestAccuracy("primary", 1)
		m.ObserveSpotify("track", nil)
	})
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObservePrediction("calm")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `moodtune_predictions_total{emotion="calm"} 1`)
}

func TestSeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New()
		New()
	})
}
