package prediction

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/pkg/logger"
	"github.com/goccy/go-json"
)

const maxBodyBytes = 64 << 10

// Response is the body returned by POST /api/v1/predict.
type Response struct {
	PredictionInCrores string  `json:"prediction_in_crores"`
	Prediction         float64 `json:"prediction"`
	CacheHit           bool    `json:"cache_hit"`
	ModelVersion       string  `json:"model_version"`
}

// ModelInfo describes the loaded bundle.
type ModelInfo struct {
	Version         string             `json:"version"`
	RunID           string             `json:"run_id"`
	CreatedAt       time.Time          `json:"created_at"`
	Regressor       string             `json:"regressor"`
	TargetTransform string             `json:"target_transform"`
	Features        []string           `json:"features"`
	Metrics         map[string]float64 `json:"metrics,omitempty"`
}

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Handler exposes the Service over HTTP.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service: service,
		logger:  slog.Default().With("component", "prediction-handler"),
	}
}

// Register mounts the prediction routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/predict", h.Predict)
	mux.HandleFunc("GET /api/v1/model", h.Model)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "request body must be a JSON prediction request", nil)
		return
	}

	result, err := h.service.Predict(r.Context(), req)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, Response{
		PredictionInCrores: FormatCrores(result.Price),
		Prediction:         result.Price,
		CacheHit:           result.CacheHit,
		ModelVersion:       result.ModelVersion,
	})
}

func (h *Handler) Model(w http.ResponseWriter, r *http.Request) {
	b := h.service.Bundle()
	h.writeJSON(w, http.StatusOK, ModelInfo{
		Version:         b.Version,
		RunID:           b.RunID,
		CreatedAt:       b.CreatedAt,
		Regressor:       string(b.Model.Kind),
		TargetTransform: string(b.Model.TargetTransform),
		Features:        b.Model.Features,
		Metrics:         b.Metrics,
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	cache := h.service.Cache()
	if cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	hits, misses := cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": hitRate,
		"breaker":  cache.BreakerState().String(),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	cache := h.service.Cache()
	if cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled", nil)
		return
	}
	deleted, err := cache.Invalidate(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusServiceUnavailable, "cache invalidation failed", nil)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

// writeAppError keeps internal details out of responses: client errors carry
// their message and field errors, everything else is a generic 500.
func (h *Handler) writeAppError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	if !apperrors.IsClientError(err) {
		h.writeError(w, status, "internal error", nil)
		return
	}
	msg := "invalid input"
	var fields map[string]string
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		msg = appErr.Message
		fields = appErr.Fields
	}
	h.writeError(w, status, msg, fields)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string, fields map[string]string) {
	h.writeJSON(w, status, errorResponse{Error: message, Fields: fields})
}
