package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/subremind/backend/internal/domain"
)

// StatsProvider builds the admin overview.
type StatsProvider interface {
	Stats(ctx context.Context) (*domain.Stats, error)
}

// SweepHistory lists journaled sweeps, newest first.
type SweepHistory interface {
	ListRecent(ctx context.Context, limit int) ([]*domain.SweepRun, error)
}

// SweepRunner runs a sweep on demand.
type SweepRunner interface {
	RunNow(ctx context.Context, trigger domain.Trigger) (domain.SweepSummary, error)
}

type AdminHandler struct {
	stats   StatsProvider
	history SweepHistory
	runner  SweepRunner
}

func NewAdminHandler(stats StatsProvider, history SweepHistory, runner SweepRunner) *AdminHandler {
	return &AdminHandler{stats: stats, history: history, runner: runner}
}

// GetStats handles GET /api/admin/stats.
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.Stats(r.Context())
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, stats)
}

// ListSweeps handles GET /api/admin/sweeps?limit=N.
func (h *AdminHandler) ListSweeps(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			Error(w, domain.ErrBadRequest("limit must be between 1 and 500"))
			return
		}
		limit = n
	}

	runs, err := h.history.ListRecent(r.Context(), limit)
	if err != nil {
		Error(w, domain.ErrInternal("failed to list sweeps", err))
		return
	}
	if runs == nil {
		runs = []*domain.SweepRun{}
	}
	JSON(w, http.StatusOK, runs)
}

// RunSweep handles POST /api/admin/sweeps/{trigger}.
func (h *AdminHandler) RunSweep(w http.ResponseWriter, r *http.Request) {
	trigger := domain.Trigger(chi.URLParam(r, "trigger"))
	if !trigger.Valid() {
		Error(w, domain.ErrNotFound("unknown trigger"))
		return
	}

	summary, err := h.runner.RunNow(r.Context(), trigger)
	if err != nil {
		if _, ok := domain.AsAppError(err); !ok {
			err = domain.ErrInternal("sweep failed", err)
		}
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, summary)
}
