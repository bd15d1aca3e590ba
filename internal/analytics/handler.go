package analytics

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/internal/train"
	"github.com/goccy/go-json"
)

const defaultListLimit = 20

// SnapshotLister reads persisted snapshots, newest first.
type SnapshotLister interface {
	ListSnapshots(ctx context.Context, limit int) ([]AggregatedStats, error)
}

// RunLister reads tracked training runs, newest first.
type RunLister interface {
	RecentRuns(ctx context.Context, limit int) ([]train.Run, error)
}

type Handler struct {
	aggregator *Aggregator
	snapshots  SnapshotLister
	runs       RunLister
	logger     *slog.Logger
}

// NewHandler creates a Handler. snapshots and runs may be nil when postgres
// is not configured.
func NewHandler(aggregator *Aggregator, snapshots SnapshotLister, runs RunLister) *Handler {
	return &Handler{
		aggregator: aggregator,
		snapshots:  snapshots,
		runs:       runs,
		logger:     slog.Default().With("component", "analytics-handler"),
	}
}

// Register mounts the analytics routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/analytics", h.Stats)
	mux.HandleFunc("GET /api/v1/analytics/snapshots", h.Snapshots)
	mux.HandleFunc("GET /api/v1/analytics/training", h.TrainingRuns)
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.aggregator.Stats())
}

func (h *Handler) Snapshots(w http.ResponseWriter, r *http.Request) {
	if h.snapshots == nil {
		h.writeError(w, http.StatusServiceUnavailable, "snapshot storage is disabled")
		return
	}
	limit, ok := h.limit(w, r)
	if !ok {
		return
	}
	snaps, err := h.snapshots.ListSnapshots(r.Context(), limit)
	if err != nil {
		h.logger.Error("listing snapshots failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if snaps == nil {
		snaps = []AggregatedStats{}
	}
	h.writeJSON(w, http.StatusOK, snaps)
}

func (h *Handler) TrainingRuns(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		h.writeError(w, http.StatusServiceUnavailable, "experiment tracking is disabled")
		return
	}
	limit, ok := h.limit(w, r)
	if !ok {
		return
	}
	runs, err := h.runs.RecentRuns(r.Context(), limit)
	if err != nil {
		h.logger.Error("listing training runs failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if runs == nil {
		runs = []train.Run{}
	}
	h.writeJSON(w, http.StatusOK, runs)
}

func (h *Handler) limit(w http.ResponseWriter, r *http.Request) (int, bool) {
	s := r.URL.Query().Get("limit")
	if s == "" {
		return defaultListLimit, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 1000 {
		h.writeError(w, http.StatusBadRequest, "limit must be an integer between 1 and 1000")
		return 0, false
	}
	return n, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write analytics response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
