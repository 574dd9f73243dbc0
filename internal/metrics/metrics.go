// Package metrics holds the Prometheus instruments of the classifier service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the service. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	Predictions         *prometheus.CounterVec
	PredictionsDegraded *prometheus.CounterVec
	ModelLoads          *prometheus.CounterVec
	TrainingRuns        *prometheus.CounterVec
	TrainingDuration    *prometheus.HistogramVec
	TestAccuracy        *prometheus.GaugeVec
	SpotifyRequests     *prometheus.CounterVec
}

// New creates the metrics on a fresh registry that also carries the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Predictions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "moodtune_predictions_total",
			Help: "The total number of emotion predictions, by predicted emotion",
		}, []string{"emotion"}),
		PredictionsDegraded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "moodtune_predictions_degraded_total",
			Help: "Predictions that fell back to neutral, by reason",
		}, []string{"reason"}),
		ModelLoads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "moodtune_model_loads_total",
			Help: "Attempts to load the persisted model, by result",
		}, []string{"result"}),
		TrainingRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "moodtune_training_runs_total",
			Help: "Training pipeline attempts, by pipeline kind and result",
		}, []string{"kind", "result"}),
		TrainingDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "moodtune_training_duration_seconds",
			Help:    "The duration of training pipeline attempts in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"kind"}),
		TestAccuracy: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "moodtune_model_test_accuracy",
			Help: "Held-out accuracy of the most recently trained model",
		}, []string{"kind"}),
		SpotifyRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "moodtune_spotify_requests_total",
			Help: "Spotify Web API calls, by endpoint and result",
		}, []string{"endpoint", "result"}),
	}
}

// Registry returns the registry the metrics are registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObservePrediction counts a served prediction.
func (m *Metrics) ObservePrediction(emotion string) {
	if m == nil {
		return
	}
	m.Predictions.WithLabelValues(emotion).Inc()
}

// ObserveDegraded counts a prediction that degraded to neutral.
func (m *Metrics) ObserveDegraded(reason string) {
	if m == nil {
		return
	}
	m.PredictionsDegraded.WithLabelValues(reason).Inc()
}

// ObserveModelLoad counts a model load attempt.
func (m *Metrics) ObserveModelLoad(result string) {
	if m == nil {
		return
	}
	m.ModelLoads.WithLabelValues(result).Inc()
}

// ObserveTraining records one training pipeline attempt.
func (m *Metrics) ObserveTraining(kind string, success bool, seconds float64) {
	if m == nil {
		return
	}
	result := "success"
	if !success {
		result = "failure"
	}
	m.TrainingRuns.WithLabelValues(kind, result).Inc()
	m.TrainingDuration.WithLabelValues(kind).Observe(seconds)
}

// SetTestAccuracy records the held-out accuracy of a new model.
func (m *Metrics) SetTestAccuracy(kind string, accuracy float64) {
	if m == nil {
		return
	}
	m.TestAccuracy.Reset()
	m.TestAccuracy.WithLabelValues(kind).Set(accuracy)
}

// ObserveSpotify counts a Spotify Web API call.
func (m *Metrics) ObserveSpotify(endpoint string, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.SpotifyRequests.WithLabelValues(endpoint, result).Inc()
}
