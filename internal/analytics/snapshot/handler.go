package snapshot

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/microtrend-io/microtrend/internal/analytics"
	"github.com/microtrend-io/microtrend/pkg/logger"
)

// Reader is the read side of Store.
type Reader interface {
	Latest(ctx context.Context) (*analytics.AggregatedStats, error)
	List(ctx context.Context, limit int) ([]analytics.AggregatedStats, error)
}

// Handler serves persisted snapshot history over HTTP.
type Handler struct {
	store  Reader
	logger *slog.Logger
}

// NewHandler creates a Handler backed by the given snapshot reader.
func NewHandler(store Reader) *Handler {
	return &Handler{
		store:  store,
		logger: logger.WithComponent("snapshot-handler"),
	}
}

// Latest answers the most recent persisted snapshot, or 404 if none exist.
func (h *Handler) Latest(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Latest(r.Context())
	if err != nil {
		h.logger.Error("failed to load latest snapshot", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to load snapshot")
		return
	}
	if stats == nil {
		h.writeError(w, http.StatusNotFound, "no snapshots recorded yet")
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

// List answers the last N persisted snapshots, newest first. limit defaults
// to 20 and is capped at keepSnapshots.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	if limit > keepSnapshots {
		limit = keepSnapshots
	}

	snapshots, err := h.store.List(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list snapshots", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list snapshots")
		return
	}
	if snapshots == nil {
		snapshots = []analytics.AggregatedStats{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"snapshots": snapshots,
		"count":     len(snapshots),
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
