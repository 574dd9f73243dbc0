package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/justestif/moodtune/internal/clustering"
	"github.com/justestif/moodtune/internal/dataset"
	"github.com/justestif/moodtune/internal/features"
	"github.com/justestif/moodtune/internal/model"
	"github.com/justestif/moodtune/internal/prediction"
	"github.com/justestif/moodtune/internal/recommend"
	"github.com/justestif/moodtune/internal/spotify"
	"github.com/justestif/moodtune/internal/sync"
	"github.com/justestif/moodtune/internal/training"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// HandlersConfig wires the services behind the API. Spotify and Importer
// may be nil.
type HandlersConfig struct {
	Predictor   *prediction.Predictor
	Recommender *recommend.Service
	Trainer     *training.Trainer
	Source      dataset.Source
	Spotify     *spotify.Client
	Importer    *sync.Service
	Logger      *zap.Logger
}

// Handlers contains HTTP handlers for the API.
type Handlers struct {
	predictor   *prediction.Predictor
	recommender *recommend.Service
	trainer     *training.Trainer
	source      dataset.Source
	spotify     *spotify.Client
	importer    *sync.Service
	logger      *zap.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(cfg HandlersConfig) *Handlers {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		predictor:   cfg.Predictor,
		recommender: cfg.Recommender,
		trainer:     cfg.Trainer,
		source:      cfg.Source,
		spotify:     cfg.Spotify,
		importer:    cfg.Importer,
		logger:      logger,
	}
}

// Health reports liveness (GET /api/health).
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type recommendRequest struct {
	Emotion string `json:"emotion"`
}

// Recommendations returns tracks for a mood (POST /api/recommendations).
func (h *Handlers) Recommendations(w http.ResponseWriter, r *http.Request) {
	var req recommendRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.recommender.Recommend(r.Context(), req.Emotion)
	if errors.Is(err, dataset.ErrNoData) {
		h.logger.Warn("recommendations unavailable", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "no track data available")
		return
	}
	if err != nil {
		h.logger.Error("recommending", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load recommendations")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

type predictRequest struct {
	Features []float64 `json:"features"`
}

type predictResponse struct {
	Emotion string `json:"emotion"`
}

// Predict classifies a raw feature vector (POST /api/predict).
func (h *Handlers) Predict(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Features) != features.RawWidth {
		writeError(w, http.StatusBadRequest,
			"features must hold "+strconv.Itoa(features.RawWidth)+" numbers: "+strings.Join(dataset.FeatureColumns, ", "))
		return
	}

	var raw features.Raw
	copy(raw[:], req.Features)
	writeJSON(w, http.StatusOK, predictResponse{Emotion: h.predictor.Predict(raw).String()})
}

// Model reports the active model (GET /api/model).
func (h *Handlers) Model(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.predictor.ModelInfo())
}

type attemptResponse struct {
	Kind       model.Kind    `json:"kind"`
	Success    bool          `json:"success"`
	Error      string        `json:"error,omitempty"`
	Metrics    model.Metrics `json:"metrics"`
	DurationMs int64         `json:"duration_ms"`
}

type trainResponse struct {
	ModelID             string            `json:"model_id"`
	ModelKind           model.Kind        `json:"model_kind"`
	ModelType           string            `json:"model_type"`
	Degraded            bool              `json:"degraded"`
	TotalSongs          int               `json:"total_songs"`
	EmotionDistribution map[string]int    `json:"emotion_distribution"`
	Attempts            []attemptResponse `json:"attempts"`
}

// Train retrains from the configured source and installs the new model
// (POST /api/train).
func (h *Handlers) Train(w http.ResponseWriter, r *http.Request) {
	res, err := h.trainer.TrainFrom(r.Context(), h.source)
	if res != nil && res.Model != nil {
		h.predictor.Install(res.Model)
		h.predictor.SetSummary(res.Summary)
	}

	switch {
	case errors.Is(err, dataset.ErrNoData):
		writeError(w, http.StatusUnprocessableEntity, "no training data available")
		return
	case err != nil:
		h.logger.Error("training", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "training failed: "+err.Error())
		return
	}

	resp := trainResponse{
		ModelID:             res.Model.ID.String(),
		ModelKind:           res.Model.Kind,
		ModelType:           res.Model.Type(),
		Degraded:            res.Degraded,
		TotalSongs:          res.Summary.Total,
		EmotionDistribution: res.Summary.Counts(),
	}
	for _, a := range res.Attempts {
		ar := attemptResponse{
			Kind:       a.Kind,
			Success:    a.Success,
			Metrics:    a.Metrics,
			DurationMs: a.Duration.Milliseconds(),
		}
		if a.Err != nil {
			ar.Error = a.Err.Error()
		}
		resp.Attempts = append(resp.Attempts, ar)
	}

	writeJSON(w, http.StatusOK, resp)
}

// Clusters groups the track table with k-means (GET /api/clusters?k=N).
func (h *Handlers) Clusters(w http.ResponseWriter, r *http.Request) {
	cfg := clustering.DefaultMoodConfig()
	if k := r.URL.Query().Get("k"); k != "" {
		n, err := strconv.Atoi(k)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "k must be a positive integer")
			return
		}
		cfg.NumClusters = n
	}

	records, err := h.source.Load(r.Context())
	if err == nil {
		var report *clustering.Report
		report, err = clustering.DetectMoodClusters(records, cfg)
		if err == nil {
			writeJSON(w, http.StatusOK, report)
			return
		}
	}

	switch {
	case errors.Is(err, dataset.ErrNoData):
		writeError(w, http.StatusServiceUnavailable, "no track data available")
	case errors.Is(err, clustering.ErrTooFewTracks):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.logger.Error("clustering", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "clustering failed")
	}
}

type trackEmotionResponse struct {
	spotify.Track
	Features        map[string]float64 `json:"features"`
	Emotion         string             `json:"emotion"`
	MoodDescription string             `json:"mood_description"`
}

// TrackEmotion classifies a Spotify catalogue track (GET /api/tracks/{id}/emotion).
func (h *Handlers) TrackEmotion(w http.ResponseWriter, r *http.Request) {
	if h.spotify == nil {
		writeError(w, http.StatusServiceUnavailable, spotify.ErrNotConfigured.Error())
		return
	}

	id := chi.URLParam(r, "id")
	tf, err := h.spotify.TrackFeatures(r.Context(), id)
	if errors.Is(err, spotify.ErrNoAudioFeatures) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		h.logger.Warn("spotify lookup", zap.String("track_id", id), zap.Error(err))
		writeError(w, http.StatusBadGateway, "spotify lookup failed")
		return
	}

	label := h.predictor.Predict(tf.Features)
	named := make(map[string]float64, features.RawWidth)
	for i, name := range features.RawNames() {
		named[name] = tf.Features[i]
	}

	writeJSON(w, http.StatusOK, trackEmotionResponse{
		Track:           tf.Track,
		Features:        named,
		Emotion:         label.String(),
		MoodDescription: recommend.Describe(label),
	})
}

type importRequest struct {
	TrackIDs []string `json:"track_ids"`
	Force    bool     `json:"force"`
}

// Import labels Spotify tracks with the active model and appends them to the
// track table (POST /api/import).
func (h *Handlers) Import(w http.ResponseWriter, r *http.Request) {
	if h.importer == nil {
		writeError(w, http.StatusServiceUnavailable, "import needs spotify credentials and a track database")
		return
	}

	var req importRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.importer.ImportTracks(r.Context(), req.TrackIDs, req.Force)
	switch {
	case errors.Is(err, sync.ErrNoTracks):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, sync.ErrSyncTooRecent):
		writeError(w, http.StatusTooManyRequests, err.Error())
	case err != nil:
		h.logger.Warn("import", zap.Error(err))
		writeError(w, http.StatusBadGateway, "import failed")
	default:
		writeJSON(w, http.StatusOK, res)
	}
}

// decodeJSON reads a JSON body into v, answering 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error":     msg,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
